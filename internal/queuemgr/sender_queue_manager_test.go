package queuemgr

import (
	"testing"
	"time"

	"github.com/messixukejia/loongcollector/internal/model"
)

func newSenderItem() *model.SenderQueueItem {
	return &model.SenderQueueItem{Bytes: []byte("x"), Size: 1}
}

func TestSenderQueueManagerPushStatuses(t *testing.T) {
	m := NewSenderQueueManager(nil, time.Minute)
	if st := m.PushQueue(1, newSenderItem()); st != PushQueueNotFound {
		t.Fatalf("expected QueueNotFound, got %v", st)
	}

	m.CreateOrUpdateQueue(1, "p", SenderQueueParams{Capacity: 1, Low: 0, High: 1})
	if st := m.PushQueue(1, newSenderItem()); st != PushOK {
		t.Fatalf("expected OK, got %v", st)
	}
	if st := m.PushQueue(1, newSenderItem()); st != PushQueueFull {
		t.Fatalf("expected QueueFull, got %v", st)
	}
}

func TestSenderQueueManagerGetAvailableItemsAcrossQueues(t *testing.T) {
	m := NewSenderQueueManager(nil, time.Minute)
	m.CreateOrUpdateQueue(1, "a", SenderQueueParams{Capacity: 4, Low: 0, High: 4})
	m.CreateOrUpdateQueue(2, "b", SenderQueueParams{Capacity: 4, Low: 0, High: 4})
	m.PushQueue(1, newSenderItem())
	m.PushQueue(2, newSenderItem())

	items := m.GetAvailableItems(-1)
	if len(items) != 2 {
		t.Fatalf("expected items drawn from both queues, got %d", len(items))
	}
}

func TestSenderQueueManagerIsAllQueueEmpty(t *testing.T) {
	m := NewSenderQueueManager(nil, time.Minute)
	m.CreateOrUpdateQueue(1, "a", SenderQueueParams{Capacity: 4, Low: 0, High: 4})
	if !m.IsAllQueueEmpty() {
		t.Fatalf("fresh queue should report empty")
	}
	m.PushQueue(1, newSenderItem())
	if m.IsAllQueueEmpty() {
		t.Fatalf("queue holding an item should not report empty")
	}
}
