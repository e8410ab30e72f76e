package model

import (
	"testing"
	"time"
)

func TestEventTypeStringAndParseRoundTrip(t *testing.T) {
	cases := []struct {
		typ  EventType
		want string
	}{
		{EventTypeLog, "log"},
		{EventTypeMetric, "metric"},
		{EventTypeSpan, "trace"},
	}
	for _, tc := range cases {
		if got := tc.typ.String(); got != tc.want {
			t.Fatalf("String(%v) = %q, want %q", tc.typ, got, tc.want)
		}
		parsed, ok := ParseEventType(tc.want)
		if !ok || parsed != tc.typ {
			t.Fatalf("ParseEventType(%q) = (%v, %v), want (%v, true)", tc.want, parsed, ok, tc.typ)
		}
	}
}

func TestParseEventTypeAcceptsSpanAlias(t *testing.T) {
	parsed, ok := ParseEventType("span")
	if !ok || parsed != EventTypeSpan {
		t.Fatalf("expected \"span\" to parse as EventTypeSpan, got (%v, %v)", parsed, ok)
	}
}

func TestParseEventTypeRejectsUnknown(t *testing.T) {
	if _, ok := ParseEventType("bogus"); ok {
		t.Fatalf("expected an unknown type string to fail to parse")
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 0, 123456000, time.UTC)
	ts := FromTime(now)
	if ts.Seconds != now.Unix() || ts.Nanos != int32(now.Nanosecond()) {
		t.Fatalf("unexpected timestamp conversion: %+v", ts)
	}
	back := ts.ToTime()
	if !back.Equal(now) {
		t.Fatalf("expected round trip to preserve the instant, got %v want %v", back, now)
	}
}

func TestEventGetContent(t *testing.T) {
	e := Event{Contents: []KV{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}}
	if v, ok := e.GetContent("b"); !ok || v != "2" {
		t.Fatalf("expected to find key b, got %q ok=%v", v, ok)
	}
	if _, ok := e.GetContent("missing"); ok {
		t.Fatalf("expected a missing key to report not found")
	}
}

func TestEventSetContentUpsertsAndAppends(t *testing.T) {
	e := Event{}
	e.SetContent("a", "1")
	e.SetContent("b", "2")
	e.SetContent("a", "updated")

	if len(e.Contents) != 2 {
		t.Fatalf("expected 2 distinct keys, got %d: %+v", len(e.Contents), e.Contents)
	}
	if v, _ := e.GetContent("a"); v != "updated" {
		t.Fatalf("expected key a to be overwritten, got %q", v)
	}
	if v, _ := e.GetContent("b"); v != "2" {
		t.Fatalf("expected key b to be unaffected, got %q", v)
	}
}
