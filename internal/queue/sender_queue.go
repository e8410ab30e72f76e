package queue

import (
	"sync"
	"time"

	"github.com/messixukejia/loongcollector/internal/limiter"
	"github.com/messixukejia/loongcollector/internal/metrics"
	"github.com/messixukejia/loongcollector/internal/model"
)

// SenderQueueInterface is the surface a BoundedProcessQueue checks before
// popping (ValidToPush) and the surface flusher sender workers drain
// (AvailableItems/Remove/Retry). BoundedSenderQueue and
// ExactlyOnceSenderQueue both implement it.
type SenderQueueInterface interface {
	Key() model.QueueKey
	ValidToPush() bool
	Push(item *model.SenderQueueItem) bool
	Remove(item *model.SenderQueueItem) bool
	Retry(item *model.SenderQueueItem)
	AvailableItems(maxCount int) []*model.SenderQueueItem
	IsEmpty() bool
	Size() int
}

// BoundedSenderQueue is the per-(pipeline, flusher) FIFO of
// SenderQueueItem, gated on pop by zero or more named ConcurrencyLimiters
// and an optional byte-per-second RateLimiter.
type BoundedSenderQueue struct {
	mu sync.Mutex

	key model.QueueKey

	capacity int
	low      int
	high     int

	items       []*model.SenderQueueItem
	dataSize    int64
	validToPush bool

	concurrencyLimiters []*limiter.ConcurrencyLimiter
	rateLimiter         *limiter.RateLimiter

	metrics *metrics.QueueMetrics
}

// NewBoundedSenderQueue constructs a sender queue bound to key.
func NewBoundedSenderQueue(key model.QueueKey, capacity, low, high int, m *metrics.QueueMetrics) *BoundedSenderQueue {
	if low >= high || high > capacity || low < 0 {
		panic("loongcollector: invalid sender queue watermarks")
	}
	return &BoundedSenderQueue{
		key: key, capacity: capacity, low: low, high: high,
		validToPush: true,
		metrics:     m,
	}
}

func (q *BoundedSenderQueue) Key() model.QueueKey { return q.key }

// SetConcurrencyLimiters replaces the queue's named token limiters.
func (q *BoundedSenderQueue) SetConcurrencyLimiters(limiters []*limiter.ConcurrencyLimiter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.concurrencyLimiters = limiters
}

// SetRateLimiter attaches (or clears, with nil) a byte-per-second budget.
func (q *BoundedSenderQueue) SetRateLimiter(rl *limiter.RateLimiter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rateLimiter = rl
}

func (q *BoundedSenderQueue) ValidToPush() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.validToPush
}

// Push enqueues item (status Idle) iff the watermark currently admits it.
func (q *BoundedSenderQueue) Push(item *model.SenderQueueItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.validToPush {
		return false
	}

	item.Status = model.ItemStatusIdle
	item.EnqueueTime = time.Now()
	item.QueueKey = q.key
	q.items = append(q.items, item)
	q.dataSize += item.Size

	if q.metrics != nil {
		q.metrics.InItemsTotal.Inc()
		q.metrics.InItemDataSizeBytes.Add(float64(item.Size))
		q.metrics.QueueSizeTotal.Set(float64(len(q.items)))
		q.metrics.QueueDataSizeByte.Set(float64(q.dataSize))
	}

	if len(q.items) >= q.high {
		q.validToPush = false
		q.setValidMetric(0)
	}
	return true
}

// AvailableItems draws up to maxCount contiguous Idle items from the front
// of the queue, gating each draw on every concurrency limiter having a
// free token and the rate limiter's byte budget. maxCount < 0 means "as
// many as policy permits". Items are never reordered: the scan stops at
// the first non-Idle item it meets, so a queue never dispatches item N+1
// while item N (already Sending) still occupies the front.
func (q *BoundedSenderQueue) AvailableItems(maxCount int) []*model.SenderQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*model.SenderQueueItem
	for _, item := range q.items {
		if maxCount >= 0 && len(out) >= maxCount {
			break
		}
		if item.Status != model.ItemStatusIdle {
			break
		}
		if !q.allLimitersHaveToken() {
			break
		}
		if q.rateLimiter != nil && !q.rateLimiter.AllowN(int(item.Size)) {
			break
		}

		for _, l := range q.concurrencyLimiters {
			l.Acquire()
		}
		item.Status = model.ItemStatusSending
		item.AttemptCount++
		out = append(out, item)
	}
	return out
}

func (q *BoundedSenderQueue) allLimitersHaveToken() bool {
	for _, l := range q.concurrencyLimiters {
		if !l.HasAvailableToken() {
			return false
		}
	}
	return true
}

// Remove drops item from the queue after a successful send, releasing its
// concurrency tokens and re-opening the watermark if appropriate. An
// invalid (unknown) handle is rejected with false.
func (q *BoundedSenderQueue) Remove(item *model.SenderQueueItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexOf(item)
	if idx < 0 {
		return false
	}

	item.Status = model.ItemStatusSent
	for _, l := range q.concurrencyLimiters {
		l.Release()
	}

	q.items = append(q.items[:idx], q.items[idx+1:]...)
	q.dataSize -= item.Size
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
	}
	return true
}

// Retry moves item back to Idle and reinstates it at the head of the
// queue, preserving send order across a retry.
func (q *BoundedSenderQueue) Retry(item *model.SenderQueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexOf(item)
	if idx < 0 {
		return
	}
	for _, l := range q.concurrencyLimiters {
		l.Release()
	}
	item.Status = model.ItemStatusIdle

	q.items = append(q.items[:idx], q.items[idx+1:]...)
	q.items = append([]*model.SenderQueueItem{item}, q.items...)
}

func (q *BoundedSenderQueue) indexOf(item *model.SenderQueueItem) int {
	for i, it := range q.items {
		if it == item {
			return i
		}
	}
	return -1
}

func (q *BoundedSenderQueue) setValidMetric(v float64) {
	if q.metrics != nil {
		q.metrics.ValidToPushFlag.Set(v)
	}
}

func (q *BoundedSenderQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

func (q *BoundedSenderQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
