package queue

import "testing"

func TestCircularProcessQueueEvictsOldestWhenFull(t *testing.T) {
	q := NewCircularProcessQueue(1, 0, 2, 0, 2, nil)
	q.EnablePop()

	first := newTestItem()
	second := newTestItem()
	third := newTestItem()

	q.Push(first)
	q.Push(second)
	q.Push(third) // evicts first

	item, ok := q.Pop()
	if !ok {
		t.Fatalf("expected an item")
	}
	if item != second {
		t.Fatalf("expected the oldest surviving item (second) to pop first, got a different item")
	}
	item, ok = q.Pop()
	if !ok || item != third {
		t.Fatalf("expected third to be the only remaining item")
	}
}

func TestCircularProcessQueuePushNeverRefuses(t *testing.T) {
	q := NewCircularProcessQueue(1, 0, 1, 0, 1, nil)
	for i := 0; i < 10; i++ {
		if !q.Push(newTestItem()) {
			t.Fatalf("circular queue push must never return false")
		}
	}
	if q.Size() != 1 {
		t.Fatalf("expected capacity-bounded size of 1, got %d", q.Size())
	}
}
