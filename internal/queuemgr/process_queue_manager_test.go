package queuemgr

import (
	"testing"
	"time"

	"github.com/messixukejia/loongcollector/internal/model"
)

func newTestItem() *model.ProcessQueueItem {
	return &model.ProcessQueueItem{Group: model.NewEventGroup(16)}
}

func TestProcessQueueManagerPushStatuses(t *testing.T) {
	m := NewProcessQueueManager(nil, time.Minute)

	if st := m.PushQueue(1, newTestItem()); st != PushQueueNotFound {
		t.Fatalf("expected QueueNotFound for an unregistered key, got %v", st)
	}

	m.CreateOrUpdateQueue(1, "p", ProcessQueueParams{Capacity: 2, Low: 0, High: 1, Priority: 0})
	if st := m.PushQueue(1, newTestItem()); st != PushOK {
		t.Fatalf("expected OK, got %v", st)
	}
	if st := m.PushQueue(1, newTestItem()); st != PushQueueFull {
		t.Fatalf("expected QueueFull at the high watermark, got %v", st)
	}
}

func TestProcessQueueManagerCreateOrUpdateIsIdempotent(t *testing.T) {
	m := NewProcessQueueManager(nil, time.Minute)
	q1 := m.CreateOrUpdateQueue(1, "p", ProcessQueueParams{Capacity: 4, Low: 1, High: 3, Priority: 0})
	q2 := m.CreateOrUpdateQueue(1, "p", ProcessQueueParams{Capacity: 8, Low: 2, High: 6, Priority: 0})
	if q1 != q2 {
		t.Fatalf("expected the same queue instance to be reused on update")
	}
}

func TestProcessQueueManagerDeleteRecreateRoundTrip(t *testing.T) {
	m := NewProcessQueueManager(nil, time.Minute)
	q1, ok := m.Queue(1)
	if ok {
		t.Fatalf("no queue should exist yet")
	}
	q1 = m.CreateOrUpdateQueue(1, "p", ProcessQueueParams{Capacity: 4, Low: 1, High: 3, Priority: 0})
	m.DeleteQueue(1)

	if _, ok := m.Queue(1); ok {
		t.Fatalf("an empty deleted queue should be reaped immediately")
	}

	q2 := m.CreateOrUpdateQueue(1, "p", ProcessQueueParams{Capacity: 4, Low: 1, High: 3, Priority: 0})
	if q1 == q2 {
		t.Fatalf("expected a fresh queue instance after delete+recreate")
	}
}

func TestProcessQueueManagerDeleteDefersWhenNonEmpty(t *testing.T) {
	m := NewProcessQueueManager(nil, time.Millisecond)
	m.CreateOrUpdateQueue(1, "p", ProcessQueueParams{Capacity: 4, Low: 1, High: 3, Priority: 0})
	m.PushQueue(1, newTestItem())
	m.DeleteQueue(1)

	if _, ok := m.Queue(1); !ok {
		t.Fatalf("a non-empty deleted queue should survive until GC")
	}
	time.Sleep(2 * time.Millisecond)
	m.RunGC()
	if _, ok := m.Queue(1); !ok {
		t.Fatalf("gc ran past the grace period but the queue is still non-empty, it must remain")
	}

	m.EnablePop(1)
	m.PopItem()
	m.RunGC()
	if _, ok := m.Queue(1); ok {
		t.Fatalf("expected gc to reap the queue once it drained")
	}
}

func TestProcessQueueManagerReuseQueueCancelsPendingDelete(t *testing.T) {
	m := NewProcessQueueManager(nil, time.Millisecond)
	m.CreateOrUpdateQueue(1, "p", ProcessQueueParams{Capacity: 4, Low: 1, High: 3, Priority: 0})
	m.PushQueue(1, newTestItem())
	m.DeleteQueue(1)

	if !m.ReuseQueue(1) {
		t.Fatalf("expected ReuseQueue to find the pending-delete entry")
	}
	time.Sleep(2 * time.Millisecond)
	m.RunGC()
	if _, ok := m.Queue(1); !ok {
		t.Fatalf("ReuseQueue should have cancelled the deletion, queue should still exist")
	}
}

func TestProcessQueueManagerPriorityBucketRoundRobin(t *testing.T) {
	m := NewProcessQueueManager(nil, time.Minute)
	m.CreateOrUpdateQueue(1, "a", ProcessQueueParams{Capacity: 4, Low: 0, High: 4, Priority: 0})
	m.CreateOrUpdateQueue(2, "b", ProcessQueueParams{Capacity: 4, Low: 0, High: 4, Priority: 0})
	m.EnablePop(1)
	m.EnablePop(2)

	m.PushQueue(1, newTestItem())
	m.PushQueue(1, newTestItem())
	m.PushQueue(2, newTestItem())
	m.PushQueue(2, newTestItem())

	seen := map[model.QueueKey]int{}
	for i := 0; i < 4; i++ {
		_, key, ok := m.PopItem()
		if !ok {
			t.Fatalf("expected an item on pop %d", i)
		}
		seen[key]++
	}
	if seen[1] != 2 || seen[2] != 2 {
		t.Fatalf("expected round robin to draw evenly from both queues, got %v", seen)
	}
}

func TestProcessQueueManagerLowerPriorityDrainsFirst(t *testing.T) {
	m := NewProcessQueueManager(nil, time.Minute)
	m.CreateOrUpdateQueue(1, "low-pri", ProcessQueueParams{Capacity: 4, Low: 0, High: 4, Priority: 1})
	m.CreateOrUpdateQueue(2, "high-pri", ProcessQueueParams{Capacity: 4, Low: 0, High: 4, Priority: 0})
	m.EnablePop(1)
	m.EnablePop(2)
	m.PushQueue(1, newTestItem())
	m.PushQueue(2, newTestItem())

	_, key, ok := m.PopItem()
	if !ok || key != 2 {
		t.Fatalf("expected the lower priority number (higher priority) queue to drain first, got key %v", key)
	}
}
