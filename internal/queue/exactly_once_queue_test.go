package queue

import (
	"testing"

	"github.com/messixukejia/loongcollector/internal/model"
)

func newCheckpoints(n int) []*model.RangeCheckpoint {
	out := make([]*model.RangeCheckpoint, n)
	for i := range out {
		out[i] = &model.RangeCheckpoint{Index: i, HashKey: "range"}
	}
	return out
}

func TestExactlyOnceSenderQueueOneItemPerSlot(t *testing.T) {
	q := NewExactlyOnceSenderQueue(1, newCheckpoints(2), nil)

	a := &model.SenderQueueItem{Checkpoint: q.Checkpoint(0)}
	b := &model.SenderQueueItem{Checkpoint: q.Checkpoint(0)}

	if !q.Push(a) {
		t.Fatalf("first push into an empty slot should succeed")
	}
	if q.Push(b) {
		t.Fatalf("second push into an occupied slot should be refused")
	}
}

func TestExactlyOnceSenderQueueValidToPushIsCoarse(t *testing.T) {
	q := NewExactlyOnceSenderQueue(1, newCheckpoints(2), nil)
	a := &model.SenderQueueItem{Checkpoint: q.Checkpoint(0)}
	q.Push(a)

	if !q.ValidToPush() {
		t.Fatalf("a free slot remains, ValidToPush should report true")
	}

	c := &model.SenderQueueItem{Checkpoint: q.Checkpoint(1)}
	q.Push(c)
	if q.ValidToPush() {
		t.Fatalf("every slot is occupied, ValidToPush should report false")
	}
}

func TestExactlyOnceSenderQueueRemoveFreesSlotForReuse(t *testing.T) {
	q := NewExactlyOnceSenderQueue(1, newCheckpoints(1), nil)
	a := &model.SenderQueueItem{Checkpoint: q.Checkpoint(0)}
	q.Push(a)
	q.AvailableItems(-1)

	q.AdvanceCheckpoint(a, 42)
	if !q.Remove(a) {
		t.Fatalf("remove should succeed on an item it is tracking")
	}
	if q.Checkpoint(0).SequenceID != 42 {
		t.Fatalf("expected checkpoint sequence to advance before the slot was freed")
	}

	b := &model.SenderQueueItem{Checkpoint: q.Checkpoint(0)}
	if !q.Push(b) {
		t.Fatalf("freed slot should accept a new item")
	}
}
