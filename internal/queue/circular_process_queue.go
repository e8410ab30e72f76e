package queue

import (
	"sync"
	"time"

	"github.com/messixukejia/loongcollector/internal/feedback"
	"github.com/messixukejia/loongcollector/internal/metrics"
	"github.com/messixukejia/loongcollector/internal/model"
)

// CircularProcessQueue shares BoundedProcessQueue's surface but trades
// completeness for liveness: once full, the oldest item is evicted
// (dropped, counted) to admit the new one instead of refusing the push.
// Used where a high-volume debug input should never block on backpressure.
type CircularProcessQueue struct {
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

// NewCircularProcessQueue constructs an evicting queue. Watermarks still
// govern the validToPush flag and feedback firing the same way as the
// bounded variant; only the push-at-capacity behavior differs.
func NewCircularProcessQueue(key model.QueueKey, priority, capacity, low, high int, m *metrics.QueueMetrics) *CircularProcessQueue {
	if low >= high || high > capacity || low < 0 {
		panic("loongcollector: invalid circular queue watermarks")
	}
	return &CircularProcessQueue{
		key: key, priority: priority,
		capacity: capacity, low: low, high: high,
		validToPush: true,
		metrics:     m,
	}
}

func (q *CircularProcessQueue) Key() model.QueueKey { return q.key }
func (q *CircularProcessQueue) Priority() int        { return q.priority }

func (q *CircularProcessQueue) SetDownstreamQueues(queues []SenderQueueInterface) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.downstream = queues
}

func (q *CircularProcessQueue) SetUpstreamFeedbacks(fbs []feedback.Interface) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.upstream = fbs
}

func (q *CircularProcessQueue) SetInProcessCountHook(hook func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onPop = hook
}

func (q *CircularProcessQueue) EnablePop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.popEnabled = true
}

func (q *CircularProcessQueue) DisablePop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.popEnabled = false
}

func (q *CircularProcessQueue) Reconfigure(capacity, low, high int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.capacity, q.low, q.high = capacity, low, high
}

// Push always succeeds: if the queue is at capacity, the oldest item is
// evicted first and counted as discarded.
func (q *CircularProcessQueue) Push(item *model.ProcessQueueItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		evicted := q.items[0]
		q.items = q.items[1:]
		q.dataSize -= int64(evicted.Group.DataSize())
		if q.dataSize < 0 {
			q.dataSize = 0
		}
		if q.metrics != nil {
			q.metrics.DiscardedItemsTotal.Inc()
		}
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

func (q *CircularProcessQueue) Pop() (*model.ProcessQueueItem, bool) {
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

func (q *CircularProcessQueue) setValidMetric(v float64) {
	if q.metrics != nil {
		q.metrics.ValidToPushFlag.Set(v)
	}
}

func (q *CircularProcessQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

func (q *CircularProcessQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
