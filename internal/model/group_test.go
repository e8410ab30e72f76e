package model

import "testing"

func TestEventGroupTags(t *testing.T) {
	g := NewEventGroup(0)
	if _, ok := g.GetTag("missing"); ok {
		t.Fatalf("expected a fresh group to have no tags")
	}

	g.SetTag("env", "prod")
	if v, ok := g.GetTag("env"); !ok || v != "prod" {
		t.Fatalf("expected tag env=prod, got %q ok=%v", v, ok)
	}

	g.SetTag("env", "staging")
	if v, _ := g.GetTag("env"); v != "staging" {
		t.Fatalf("expected SetTag to overwrite, got %q", v)
	}

	g.DeleteTag("env")
	if _, ok := g.GetTag("env"); ok {
		t.Fatalf("expected env to be gone after DeleteTag")
	}
}

func TestEventGroupAddEvent(t *testing.T) {
	g := NewEventGroup(0)
	g.AddEvent(Event{Type: EventTypeLog})
	g.AddEvent(Event{Type: EventTypeMetric})
	if len(g.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(g.Events))
	}
}

func TestEventGroupDataSize(t *testing.T) {
	g := NewEventGroup(0)
	g.SetTag("k", "v")
	g.AddEvent(Event{Contents: []KV{{Key: "message", Value: "hello"}}})
	if g.DataSize() <= 0 {
		t.Fatalf("expected a non-zero data size for a group with content and tags")
	}
}

func TestEventGroupNewSharedRefClonesTagsIndependently(t *testing.T) {
	g := NewEventGroup(0)
	g.SetTag("k", "v")
	g.AddEvent(Event{Type: EventTypeLog})

	clone := g.NewSharedRef()
	clone.DeleteTag("k")

	if _, ok := g.GetTag("k"); !ok {
		t.Fatalf("expected deleting a tag on the clone to not affect the original group")
	}
	if len(clone.Events) != len(g.Events) {
		t.Fatalf("expected the clone to share the same events slice")
	}
}
