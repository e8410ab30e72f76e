package queue

import (
	"sync"

	"github.com/messixukejia/loongcollector/internal/metrics"
	"github.com/messixukejia/loongcollector/internal/model"
)

// ExactlyOnceSenderQueue is a BoundedSenderQueue of fixed capacity equal to
// the configured range concurrency. Every slot binds to one
// RangeCheckpoint; an item carrying checkpoint c is placed in the slot
// whose Index == c.Index. At most one in-flight item per slot at any time.
//
// ValidToPush reports whether *any* slot is currently free. The queue
// layer cannot know which slot an individual ProcessQueueItem targets
// until it has already been popped from the process queue -- pushing
// still checks the specific target slot and can refuse even when
// ValidToPush reported true for a different slot. This mirrors the
// upstream gating BoundedProcessQueue already does for ordinary sender
// queues: it is a coarse "is there room anywhere downstream" signal, not a
// guarantee for one particular item.
type ExactlyOnceSenderQueue struct {
	mu sync.Mutex

	key   model.QueueKey
	slots []*model.SenderQueueItem
	ckpts []*model.RangeCheckpoint

	metrics *metrics.QueueMetrics
}

// NewExactlyOnceSenderQueue builds a queue with one slot per checkpoint.
// The slot count is fixed for the queue's lifetime.
func NewExactlyOnceSenderQueue(key model.QueueKey, checkpoints []*model.RangeCheckpoint, m *metrics.QueueMetrics) *ExactlyOnceSenderQueue {
	q := &ExactlyOnceSenderQueue{
		key:     key,
		slots:   make([]*model.SenderQueueItem, len(checkpoints)),
		ckpts:   append([]*model.RangeCheckpoint(nil), checkpoints...),
		metrics: m,
	}
	return q
}

func (q *ExactlyOnceSenderQueue) Key() model.QueueKey { return q.key }

// Checkpoint returns the checkpoint bound to slot index, or nil if out of
// range.
func (q *ExactlyOnceSenderQueue) Checkpoint(index int) *model.RangeCheckpoint {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.ckpts) {
		return nil
	}
	return q.ckpts[index]
}

func (q *ExactlyOnceSenderQueue) ValidToPush() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, s := range q.slots {
		if s == nil {
			return true
		}
	}
	return false
}

// Push places item in the slot named by item.Checkpoint.Index. It refuses
// when the checkpoint is missing/out of range or the slot is already
// occupied.
func (q *ExactlyOnceSenderQueue) Push(item *model.SenderQueueItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if item.Checkpoint == nil {
		return false
	}
	idx := item.Checkpoint.Index
	if idx < 0 || idx >= len(q.slots) {
		return false
	}
	if q.slots[idx] != nil {
		return false
	}

	item.Status = model.ItemStatusIdle
	item.QueueKey = q.key
	q.slots[idx] = item

	if q.metrics != nil {
		q.metrics.InItemsTotal.Inc()
		q.metrics.InItemDataSizeBytes.Add(float64(item.Size))
		q.metrics.QueueSizeTotal.Set(float64(q.occupied()))
	}
	return true
}

// AvailableItems marks up to maxCount Idle slots as Sending, in ascending
// slot-index order, and returns them. maxCount < 0 means "every Idle slot".
func (q *ExactlyOnceSenderQueue) AvailableItems(maxCount int) []*model.SenderQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*model.SenderQueueItem
	for _, item := range q.slots {
		if item == nil || item.Status != model.ItemStatusIdle {
			continue
		}
		if maxCount >= 0 && len(out) >= maxCount {
			break
		}
		item.Status = model.ItemStatusSending
		item.AttemptCount++
		out = append(out, item)
	}
	return out
}

// Remove frees the slot holding item once the flusher has durably
// persisted the advanced sequence ID (the caller is expected to have
// already called AdvanceCheckpoint).
func (q *ExactlyOnceSenderQueue) Remove(item *model.SenderQueueItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.findSlot(item)
	if idx < 0 {
		return false
	}
	item.Status = model.ItemStatusSent
	q.slots[idx] = nil

	if q.metrics != nil {
		q.metrics.OutItemsTotal.Inc()
		q.metrics.QueueSizeTotal.Set(float64(q.occupied()))
	}
	return true
}

// Retry resets the slot holding item back to Idle without clearing it, so
// the same slot is retried rather than reinserted -- a slot's position is
// its index, there is no head to reinstate it at.
func (q *ExactlyOnceSenderQueue) Retry(item *model.SenderQueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.findSlot(item) < 0 {
		return
	}
	item.Status = model.ItemStatusIdle
}

// AdvanceCheckpoint bumps the sequence ID for the slot holding item. The
// flusher calls this once the send has been durably recorded, before
// Remove frees the slot.
func (q *ExactlyOnceSenderQueue) AdvanceCheckpoint(item *model.SenderQueueItem, sequenceID uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.findSlot(item)
	if idx < 0 {
		return
	}
	q.ckpts[idx].SequenceID = sequenceID
}

func (q *ExactlyOnceSenderQueue) findSlot(item *model.SenderQueueItem) int {
	for i, it := range q.slots {
		if it == item {
			return i
		}
	}
	return -1
}

func (q *ExactlyOnceSenderQueue) occupied() int {
	n := 0
	for _, s := range q.slots {
		if s != nil {
			n++
		}
	}
	return n
}

func (q *ExactlyOnceSenderQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.occupied() == 0
}

func (q *ExactlyOnceSenderQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.occupied()
}
