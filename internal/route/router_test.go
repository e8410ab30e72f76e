package route

import (
	"testing"

	"github.com/messixukejia/loongcollector/internal/model"
)

func mustCondition(t *testing.T, raw string) *Condition {
	c, err := NewCondition([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error building condition: %v", err)
	}
	return c
}

func TestRouterMatchesInDeclarationOrder(t *testing.T) {
	r := NewRouter([]Entry{
		{Condition: mustCondition(t, `{"Type":"event_type","Value":"log"}`), FlusherIndex: 0},
		{Condition: mustCondition(t, `{"Type":"event_type","Value":"metric"}`), FlusherIndex: 1},
	}, 2, nil)

	g := model.NewEventGroup(0)
	g.AddEvent(model.Event{Type: model.EventTypeLog})

	matched := r.Route(g)
	if len(matched) != 1 || matched[0] != 0 {
		t.Fatalf("expected exactly flusher 0 to match, got %v", matched)
	}
}

func TestRouterDefaultsToAllFlushersWhenNothingMatches(t *testing.T) {
	r := NewRouter([]Entry{
		{Condition: mustCondition(t, `{"Type":"event_type","Value":"metric"}`), FlusherIndex: 1},
	}, 3, nil)

	g := model.NewEventGroup(0)
	g.AddEvent(model.Event{Type: model.EventTypeLog})

	matched := r.Route(g)
	if len(matched) != 3 {
		t.Fatalf("expected the no-match default branch to route to all 3 flushers, got %v", matched)
	}
}

func TestRouterNoMatchUsesExplicitDefaultWhenSet(t *testing.T) {
	r := NewRouter([]Entry{
		{Condition: mustCondition(t, `{"Type":"event_type","Value":"metric"}`), FlusherIndex: 1},
	}, 3, []int{2})

	g := model.NewEventGroup(0)
	g.AddEvent(model.Event{Type: model.EventTypeLog})

	matched := r.Route(g)
	if len(matched) != 1 || matched[0] != 2 {
		t.Fatalf("expected the explicit default to override all-flushers, got %v", matched)
	}
}

func TestRouterDeduplicatesRepeatedFlusherIndex(t *testing.T) {
	r := NewRouter([]Entry{
		{Condition: mustCondition(t, `{"Type":"event_type","Value":"log"}`), FlusherIndex: 0},
		{Condition: mustCondition(t, `{"Type":"tag","Key":"env","Value":"prod"}`), FlusherIndex: 0},
	}, 2, nil)

	g := model.NewEventGroup(0)
	g.AddEvent(model.Event{Type: model.EventTypeLog})
	g.SetTag("env", "prod")

	matched := r.Route(g)
	if len(matched) != 1 || matched[0] != 0 {
		t.Fatalf("expected flusher 0 listed once despite two matching conditions, got %v", matched)
	}
}
