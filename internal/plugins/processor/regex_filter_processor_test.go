package processor

import (
	"testing"

	"github.com/messixukejia/loongcollector/internal/model"
)

func eventWith(key, value string) model.Event {
	return model.Event{
		Type:     model.EventTypeLog,
		Contents: []model.KV{{Key: key, Value: value}},
	}
}

func TestRegexFilterProcessorDropsMatches(t *testing.T) {
	p := &RegexFilterProcessor{}
	if err := p.Init(nil, []byte(`{"key":"level","pattern":"^debug$","drop_on_match":true}`)); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	g := model.NewEventGroup(0)
	g.AddEvent(eventWith("level", "debug"))
	g.AddEvent(eventWith("level", "info"))

	out := p.Process(g)
	if out == nil {
		t.Fatalf("expected one surviving event, got nil group")
	}
	if len(out.Events) != 1 {
		t.Fatalf("expected 1 event to survive, got %d", len(out.Events))
	}
	if v, _ := out.Events[0].GetContent("level"); v != "info" {
		t.Fatalf("expected the surviving event to be the info one, got %q", v)
	}
}

func TestRegexFilterProcessorDropsEmptiedGroup(t *testing.T) {
	p := &RegexFilterProcessor{}
	if err := p.Init(nil, []byte(`{"key":"level","pattern":"^debug$","drop_on_match":true}`)); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	g := model.NewEventGroup(0)
	g.AddEvent(eventWith("level", "debug"))

	if out := p.Process(g); out != nil {
		t.Fatalf("expected a fully-filtered group to come back nil, got %v", out)
	}
}

func TestRegexFilterProcessorKeepsOnlyMatchesWhenInverted(t *testing.T) {
	p := &RegexFilterProcessor{}
	if err := p.Init(nil, []byte(`{"key":"level","pattern":"^error$","drop_on_match":false}`)); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	g := model.NewEventGroup(0)
	g.AddEvent(eventWith("level", "error"))
	g.AddEvent(eventWith("level", "info"))

	out := p.Process(g)
	if out == nil || len(out.Events) != 1 {
		t.Fatalf("expected only the matching event to survive when drop_on_match is false")
	}
	if v, _ := out.Events[0].GetContent("level"); v != "error" {
		t.Fatalf("expected the surviving event to be the error one, got %q", v)
	}
}

func TestRegexFilterProcessorRejectsMissingFields(t *testing.T) {
	p := &RegexFilterProcessor{}
	if err := p.Init(nil, []byte(`{"pattern":"x"}`)); err == nil {
		t.Fatalf("expected an error when key is missing")
	}
	if err := p.Init(nil, []byte(`{"key":"x","pattern":"("}`)); err == nil {
		t.Fatalf("expected an error for an invalid regular expression")
	}
}
