// Package queue implements the bounded and circular process queues and
// the bounded and exactly-once sender queues a pipeline's runtime builds
// for each input and flusher.
package queue

import (
	"sync"
	"time"

	"github.com/messixukejia/loongcollector/internal/feedback"
	"github.com/messixukejia/loongcollector/internal/metrics"
	"github.com/messixukejia/loongcollector/internal/model"
)

// ProcessQueueInterface is the surface BoundedProcessQueue and
// CircularProcessQueue share; the ProcessQueueManager only ever talks to
// queues through this.
type ProcessQueueInterface interface {
	Key() model.QueueKey
	Priority() int
	Push(item *model.ProcessQueueItem) bool
	Pop() (*model.ProcessQueueItem, bool)
	SetDownstreamQueues(queues []SenderQueueInterface)
	SetUpstreamFeedbacks(fbs []feedback.Interface)
	SetInProcessCountHook(hook func())
	EnablePop()
	DisablePop()
	Reconfigure(capacity, low, high int)
	IsEmpty() bool
	Size() int
}

// BoundedProcessQueue is a finite FIFO of ProcessQueueItem for one pipeline.
// Push refuses once size reaches the high watermark; the refusal lifts only
// once size drops back to the low watermark (hysteresis). Pop additionally
// requires every downstream sender queue to currently admit pushes, so
// work never strands mid-pipeline while flushers are saturated.
type BoundedProcessQueue struct {
	mu sync.Mutex

	key      model.QueueKey
	priority int

	capacity int
	low      int
	high     int

	items       []*model.ProcessQueueItem
	dataSize    int64
	validToPush bool
	popEnabled  bool

	downstream []SenderQueueInterface
	upstream   []feedback.Interface
	onPop      func()

	metrics *metrics.QueueMetrics
}

// NewBoundedProcessQueue constructs a queue bound to key with the given
// watermarks. 0 <= low < high <= capacity is required; a
// violation is a configuration bug, not a runtime condition, so it panics
// the way an out-of-range slice index would -- callers (pipeline init)
// validate config before reaching here.
func NewBoundedProcessQueue(key model.QueueKey, priority, capacity, low, high int, m *metrics.QueueMetrics) *BoundedProcessQueue {
	if low >= high || high > capacity || low < 0 {
		panic("loongcollector: invalid process queue watermarks")
	}
	return &BoundedProcessQueue{
		key:         key,
		priority:    priority,
		capacity:    capacity,
		low:         low,
		high:        high,
		validToPush: true,
		metrics:     m,
	}
}

func (q *BoundedProcessQueue) Key() model.QueueKey { return q.key }
func (q *BoundedProcessQueue) Priority() int        { return q.priority }

func (q *BoundedProcessQueue) SetDownstreamQueues(queues []SenderQueueInterface) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.downstream = queues
}

func (q *BoundedProcessQueue) SetUpstreamFeedbacks(fbs []feedback.Interface) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.upstream = fbs
}

func (q *BoundedProcessQueue) SetInProcessCountHook(hook func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onPop = hook
}

func (q *BoundedProcessQueue) EnablePop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.popEnabled = true
}

func (q *BoundedProcessQueue) DisablePop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.popEnabled = false
}

// Reconfigure changes capacity/watermarks in place without draining,
// used when a pipeline config update reuses an existing queue.
func (q *BoundedProcessQueue) Reconfigure(capacity, low, high int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.capacity, q.low, q.high = capacity, low, high
}

// Push enqueues item iff the queue currently admits pushes.
func (q *BoundedProcessQueue) Push(item *model.ProcessQueueItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.validToPush {
		return false
	}

	item.EnqueueTime = time.Now()
	q.items = append(q.items, item)
	size := int64(item.Group.DataSize())
	q.dataSize += size

	if q.metrics != nil {
		q.metrics.InItemsTotal.Inc()
		q.metrics.InItemDataSizeBytes.Add(float64(size))
		q.metrics.QueueSizeTotal.Set(float64(len(q.items)))
		q.metrics.QueueDataSizeByte.Set(float64(q.dataSize))
	}

	if len(q.items) >= q.high {
		q.validToPush = false
		q.setValidMetric(0)
	}
	return true
}

// Pop returns the oldest item iff popping is enabled, the queue is
// non-empty, and every downstream sender queue currently admits pushes.
// Before returning it fires the in-process-count hook while still holding
// the queue's own lock, so a concurrent reload observes a consistent count.
func (q *BoundedProcessQueue) Pop() (*model.ProcessQueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.popEnabled || len(q.items) == 0 {
		return nil, false
	}
	for _, d := range q.downstream {
		if !d.ValidToPush() {
			return nil, false
		}
	}

	item := q.items[0]
	q.items = q.items[1:]
	q.dataSize -= int64(item.Group.DataSize())
	if q.dataSize < 0 {
		q.dataSize = 0
	}

	if q.metrics != nil {
		q.metrics.OutItemsTotal.Inc()
		q.metrics.QueueSizeTotal.Set(float64(len(q.items)))
		q.metrics.QueueDataSizeByte.Set(float64(q.dataSize))
	}

	if !q.validToPush && len(q.items) <= q.low {
		q.validToPush = true
		q.setValidMetric(1)
		for _, fb := range q.upstream {
			fb.FeedbackQueueAvailable(q.key)
		}
	}

	if q.onPop != nil {
		q.onPop()
	}
	return item, true
}

func (q *BoundedProcessQueue) setValidMetric(v float64) {
	if q.metrics != nil {
		q.metrics.ValidToPushFlag.Set(v)
	}
}

func (q *BoundedProcessQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

func (q *BoundedProcessQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
