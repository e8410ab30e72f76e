// Package queuemgr implements the process-wide ProcessQueueManager,
// SenderQueueManager, and ExactlyOnceQueueManager registries: routing,
// priority-bucketed fair scheduling, and GC of abandoned queues.
package queuemgr

import (
	"sort"
	"sync"
	"time"

	"github.com/messixukejia/loongcollector/internal/feedback"
	"github.com/messixukejia/loongcollector/internal/metrics"
	"github.com/messixukejia/loongcollector/internal/model"
	"github.com/messixukejia/loongcollector/internal/queue"
)

// PushStatus is the outcome of a pushQueue call.
type PushStatus int

const (
	PushOK PushStatus = iota
	PushQueueFull
	PushQueueNotFound
)

// ProcessQueueParams configures createOrUpdateQueue.
type ProcessQueueParams struct {
	Circular bool
	Capacity int
	Low      int
	High     int
	Priority int
}

type processEntry struct {
	queue     queue.ProcessQueueInterface
	priority  int
	deleted   bool
	deletedAt time.Time
}

// ProcessQueueManager is the process-wide QueueKey -> ProcessQueue
// registry. Push and the other plain lookups take the shared lock;
// mutation (create/delete/GC) and PopItem, which advances the per-bucket
// cursor, take the exclusive lock; the individual queues remain
// independently synchronized.
type ProcessQueueManager struct {
	mu      sync.RWMutex
	queues  map[model.QueueKey]*processEntry
	buckets map[int][]model.QueueKey
	cursor  map[int]int

	metricsReg *metrics.Registry
	gcGrace    time.Duration
}

// NewProcessQueueManager builds an empty manager. gcGrace is the minimum
// time a deleted queue must sit idle before RunGC reaps it.
func NewProcessQueueManager(reg *metrics.Registry, gcGrace time.Duration) *ProcessQueueManager {
	return &ProcessQueueManager{
		queues:     make(map[model.QueueKey]*processEntry),
		buckets:    make(map[int][]model.QueueKey),
		cursor:     make(map[int]int),
		metricsReg: reg,
		gcGrace:    gcGrace,
	}
}

// CreateOrUpdateQueue is idempotent: on first call it builds a bounded or
// circular queue per params.Circular; on a later call for the same key it
// updates capacity/watermarks in place without draining, and clears a
// pending deletion if one was set.
func (m *ProcessQueueManager) CreateOrUpdateQueue(key model.QueueKey, pipelineName string, params ProcessQueueParams) queue.ProcessQueueInterface {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.queues[key]; ok {
		e.deleted = false
		e.queue.Reconfigure(params.Capacity, params.Low, params.High)
		if e.priority != params.Priority {
			m.removeFromBucket(e.priority, key)
			e.priority = params.Priority
			m.buckets[params.Priority] = append(m.buckets[params.Priority], key)
		}
		return e.queue
	}

	var qm *metrics.QueueMetrics
	queueType := metrics.QueueTypeBounded
	if params.Circular {
		queueType = metrics.QueueTypeCircular
	}
	if m.metricsReg != nil {
		qm = m.metricsReg.ForQueue(metrics.QueueLabels{
			PipelineName:  pipelineName,
			ComponentName: metrics.ComponentProcessQueue,
			QueueType:     queueType,
		})
	}

	var q queue.ProcessQueueInterface
	if params.Circular {
		q = queue.NewCircularProcessQueue(key, params.Priority, params.Capacity, params.Low, params.High, qm)
	} else {
		q = queue.NewBoundedProcessQueue(key, params.Priority, params.Capacity, params.Low, params.High, qm)
	}

	m.queues[key] = &processEntry{queue: q, priority: params.Priority}
	m.buckets[params.Priority] = append(m.buckets[params.Priority], key)
	return q
}

// DeleteQueue marks key for removal. A queue that is already empty is
// reaped immediately since the grace period's only purpose is letting
// in-flight items drain; a non-empty queue is marked deleted and reaped
// later by RunGC once both the grace period has elapsed and it has drained.
func (m *ProcessQueueManager) DeleteQueue(key model.QueueKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.queues[key]
	if !ok {
		return
	}
	if e.queue.IsEmpty() {
		m.removeFromBucket(e.priority, key)
		delete(m.queues, key)
		return
	}
	e.deleted = true
	e.deletedAt = time.Now()
}

// ReuseQueue undoes a pending deletion, for a config that returned before
// the GC sweep reaped it.
func (m *ProcessQueueManager) ReuseQueue(key model.QueueKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.queues[key]
	if !ok {
		return false
	}
	e.deleted = false
	return true
}

// RunGC reaps every deleted queue that has sat idle past the grace period
// and is now empty.
func (m *ProcessQueueManager) RunGC() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for key, e := range m.queues {
		if e.deleted && now.Sub(e.deletedAt) >= m.gcGrace && e.queue.IsEmpty() {
			m.removeFromBucket(e.priority, key)
			delete(m.queues, key)
		}
	}
}

func (m *ProcessQueueManager) removeFromBucket(priority int, key model.QueueKey) {
	bucket := m.buckets[priority]
	for i, k := range bucket {
		if k == key {
			m.buckets[priority] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
}

// PushQueue is the only entry point inputs use to feed a process queue.
func (m *ProcessQueueManager) PushQueue(key model.QueueKey, item *model.ProcessQueueItem) PushStatus {
	m.mu.RLock()
	e, ok := m.queues[key]
	m.mu.RUnlock()
	if !ok || e.deleted {
		return PushQueueNotFound
	}
	if e.queue.Push(item) {
		return PushOK
	}
	return PushQueueFull
}

// SetDownstreamQueues wires a process queue's sender-queue gate list.
func (m *ProcessQueueManager) SetDownstreamQueues(key model.QueueKey, queues []queue.SenderQueueInterface) {
	m.mu.RLock()
	e, ok := m.queues[key]
	m.mu.RUnlock()
	if ok {
		e.queue.SetDownstreamQueues(queues)
	}
}

// SetUpstreamFeedbacks wires a process queue's feedback list.
func (m *ProcessQueueManager) SetUpstreamFeedbacks(key model.QueueKey, fbs []feedback.Interface) {
	m.mu.RLock()
	e, ok := m.queues[key]
	m.mu.RUnlock()
	if ok {
		e.queue.SetUpstreamFeedbacks(fbs)
	}
}

// EnablePop/DisablePop toggle whether the scheduler may draw from key.
func (m *ProcessQueueManager) EnablePop(key model.QueueKey) {
	m.mu.RLock()
	e, ok := m.queues[key]
	m.mu.RUnlock()
	if ok {
		e.queue.EnablePop()
	}
}

func (m *ProcessQueueManager) DisablePop(key model.QueueKey) {
	m.mu.RLock()
	e, ok := m.queues[key]
	m.mu.RUnlock()
	if ok {
		e.queue.DisablePop()
	}
}

// PopItem draws the next item across every registered queue using a
// priority-bucket-then-round-robin-within-bucket fairness policy: lower
// priority numbers are drained first, and within one priority bucket each
// queue gets an equal turn via a rotating cursor. A queue whose Pop
// predicate fails (disabled, empty, or downstream not admitting) is
// skipped in favor of the next queue in its bucket.
func (m *ProcessQueueManager) PopItem() (*model.ProcessQueueItem, model.QueueKey, bool) {
	// Full lock, not RLock: the loop below advances m.cursor, a plain map,
	// on the hit path. Multiple processor-pool workers call PopItem
	// concurrently, so that write needs exclusivity, not just the read
	// protection an RLock gives the map lookups around it.
	m.mu.Lock()
	defer m.mu.Unlock()

	priorities := make([]int, 0, len(m.buckets))
	for p := range m.buckets {
		priorities = append(priorities, p)
	}
	sort.Ints(priorities)

	for _, p := range priorities {
		keys := m.buckets[p]
		n := len(keys)
		if n == 0 {
			continue
		}
		start := m.cursor[p] % n
		for i := 0; i < n; i++ {
			idx := (start + i) % n
			key := keys[idx]
			e, ok := m.queues[key]
			if !ok {
				continue
			}
			if item, popped := e.queue.Pop(); popped {
				m.cursor[p] = (idx + 1) % n
				return item, key, true
			}
		}
	}
	return nil, model.InvalidQueueKey, false
}

// IsAllQueueEmpty reports whether every registered queue is empty, used by
// shutdown to decide whether draining has finished.
func (m *ProcessQueueManager) IsAllQueueEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.queues {
		if !e.queue.IsEmpty() {
			return false
		}
	}
	return true
}

// Queue returns the raw queue for key, for tests and for wiring downstream
// sender queues at pipeline init.
func (m *ProcessQueueManager) Queue(key model.QueueKey) (queue.ProcessQueueInterface, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.queues[key]
	if !ok {
		return nil, false
	}
	return e.queue, true
}
