package queuemgr

import (
	"sync"
	"time"

	"github.com/messixukejia/loongcollector/internal/limiter"
	"github.com/messixukejia/loongcollector/internal/metrics"
	"github.com/messixukejia/loongcollector/internal/model"
	"github.com/messixukejia/loongcollector/internal/queue"
)

// SenderQueueParams configures createOrUpdateQueue for the sender side.
// Checkpoints is only consulted when ExactlyOnce is set.
type SenderQueueParams struct {
	ExactlyOnce         bool
	Capacity            int
	Low                 int
	High                int
	Checkpoints         []*model.RangeCheckpoint
	ConcurrencyLimiters []*limiter.ConcurrencyLimiter
	RateLimiter         *limiter.RateLimiter
}

type senderEntry struct {
	queue     queue.SenderQueueInterface
	deleted   bool
	deletedAt time.Time
}

// SenderQueueManager is the process-wide QueueKey -> SenderQueue registry.
// Unlike ProcessQueueManager it has no priority scheduling of its own:
// flusher worker pools drain every registered queue's AvailableItems
// directly, since send fairness is expressed entirely through the queues'
// own concurrency/rate limiters.
type SenderQueueManager struct {
	mu     sync.RWMutex
	queues map[model.QueueKey]*senderEntry

	metricsReg *metrics.Registry
	gcGrace    time.Duration
}

// NewSenderQueueManager builds an empty manager.
func NewSenderQueueManager(reg *metrics.Registry, gcGrace time.Duration) *SenderQueueManager {
	return &SenderQueueManager{
		queues:     make(map[model.QueueKey]*senderEntry),
		metricsReg: reg,
		gcGrace:    gcGrace,
	}
}

// CreateOrUpdateQueue is idempotent like its process-queue counterpart. An
// existing bounded queue's watermarks and limiters can be updated in
// place; switching a key between bounded and exactly-once modes is not
// supported in place -- callers must delete and recreate.
func (m *SenderQueueManager) CreateOrUpdateQueue(key model.QueueKey, pipelineName string, params SenderQueueParams) queue.SenderQueueInterface {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.queues[key]; ok {
		e.deleted = false
		if bq, ok := e.queue.(*queue.BoundedSenderQueue); ok {
			bq.SetConcurrencyLimiters(params.ConcurrencyLimiters)
			bq.SetRateLimiter(params.RateLimiter)
		}
		return e.queue
	}

	queueType := metrics.QueueTypeSender
	if params.ExactlyOnce {
		queueType = metrics.QueueTypeExactlyOnce
	}
	var qm *metrics.QueueMetrics
	if m.metricsReg != nil {
		qm = m.metricsReg.ForQueue(metrics.QueueLabels{
			PipelineName:  pipelineName,
			ComponentName: metrics.ComponentSenderQueue,
			QueueType:     queueType,
		})
	}

	var q queue.SenderQueueInterface
	if params.ExactlyOnce {
		q = queue.NewExactlyOnceSenderQueue(key, params.Checkpoints, qm)
	} else {
		bq := queue.NewBoundedSenderQueue(key, params.Capacity, params.Low, params.High, qm)
		bq.SetConcurrencyLimiters(params.ConcurrencyLimiters)
		bq.SetRateLimiter(params.RateLimiter)
		q = bq
	}

	m.queues[key] = &senderEntry{queue: q}
	return q
}

// DeleteQueue mirrors ProcessQueueManager.DeleteQueue: reap immediately if
// already empty, else mark pending and let RunGC reap once drained.
func (m *SenderQueueManager) DeleteQueue(key model.QueueKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.queues[key]
	if !ok {
		return
	}
	if e.queue.IsEmpty() {
		delete(m.queues, key)
		return
	}
	e.deleted = true
	e.deletedAt = time.Now()
}

// ReuseQueue undoes a pending deletion for a config that returned before
// the GC sweep reaped it.
func (m *SenderQueueManager) ReuseQueue(key model.QueueKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.queues[key]
	if !ok {
		return false
	}
	e.deleted = false
	return true
}

// RunGC reaps every deleted, now-empty queue past its grace period.
func (m *SenderQueueManager) RunGC() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for key, e := range m.queues {
		if e.deleted && now.Sub(e.deletedAt) >= m.gcGrace && e.queue.IsEmpty() {
			delete(m.queues, key)
		}
	}
}

// PushQueue is called from a process queue's Pop path (through the
// SenderQueueInterface directly) and from the exactly-once input path.
func (m *SenderQueueManager) PushQueue(key model.QueueKey, item *model.SenderQueueItem) PushStatus {
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

// GetAvailableItems draws items across every registered sender queue.
// limit < 0 means "as many as every queue's own limiters permit"; limit
// >= 0 caps the total returned across all queues combined.
func (m *SenderQueueManager) GetAvailableItems(limit int) []*model.SenderQueueItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.SenderQueueItem
	for _, e := range m.queues {
		if e.deleted {
			continue
		}
		remaining := -1
		if limit >= 0 {
			remaining = limit - len(out)
			if remaining <= 0 {
				break
			}
		}
		out = append(out, e.queue.AvailableItems(remaining)...)
	}
	return out
}

// IsAllQueueEmpty reports whether every registered sender queue is empty.
func (m *SenderQueueManager) IsAllQueueEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.queues {
		if !e.queue.IsEmpty() {
			return false
		}
	}
	return true
}

// Queue returns the raw queue for key.
func (m *SenderQueueManager) Queue(key model.QueueKey) (queue.SenderQueueInterface, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.queues[key]
	if !ok {
		return nil, false
	}
	return e.queue, true
}
