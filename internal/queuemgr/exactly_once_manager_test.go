package queuemgr

import (
	"testing"

	"github.com/messixukejia/loongcollector/internal/model"
)

func TestExactlyOnceQueueManagerCreateQueueSlotsPerHashKey(t *testing.T) {
	m := NewExactlyOnceQueueManager()
	q := m.CreateQueue(1, "p", []string{"rangeA", "rangeB"}, nil, nil)

	a := &model.SenderQueueItem{Checkpoint: q.Checkpoint(0)}
	if !q.Push(a) {
		t.Fatalf("expected push into slot 0 to succeed")
	}
	if m.Checkpoint(1, 0).HashKey != "rangeA" {
		t.Fatalf("expected slot 0 to be bound to rangeA")
	}
}

func TestExactlyOnceQueueManagerPreservesCheckpointAcrossReload(t *testing.T) {
	m := NewExactlyOnceQueueManager()
	q := m.CreateQueue(1, "p", []string{"rangeA"}, nil, nil)
	item := &model.SenderQueueItem{Checkpoint: q.Checkpoint(0)}
	q.Push(item)
	q.AvailableItems(-1)
	q.AdvanceCheckpoint(item, 7)

	m.DeleteQueue(1, false) // reload: preserve checkpoints
	q2 := m.CreateQueue(1, "p", []string{"rangeA"}, nil, nil)
	if q2.Checkpoint(0).SequenceID != 7 {
		t.Fatalf("expected the checkpoint's sequence id to survive a reload, got %d", q2.Checkpoint(0).SequenceID)
	}
}

func TestExactlyOnceQueueManagerReleasesCheckpointOnRemoval(t *testing.T) {
	m := NewExactlyOnceQueueManager()
	q := m.CreateQueue(1, "p", []string{"rangeA"}, nil, nil)
	item := &model.SenderQueueItem{Checkpoint: q.Checkpoint(0)}
	q.Push(item)
	q.AvailableItems(-1)
	q.AdvanceCheckpoint(item, 7)

	m.DeleteQueue(1, true) // full removal: release checkpoints
	q2 := m.CreateQueue(1, "p", []string{"rangeA"}, nil, nil)
	if q2.Checkpoint(0).SequenceID != 0 {
		t.Fatalf("expected a fresh checkpoint starting at sequence 0, got %d", q2.Checkpoint(0).SequenceID)
	}
}
