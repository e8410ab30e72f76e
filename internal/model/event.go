package model

import "time"

// EventType is the closed set of telemetry kinds a single Event can carry.
type EventType uint8

const (
	EventTypeLog EventType = iota
	EventTypeMetric
	EventTypeSpan
)

func (t EventType) String() string {
	switch t {
	case EventTypeLog:
		return "log"
	case EventTypeMetric:
		return "metric"
	case EventTypeSpan:
		return "trace"
	default:
		return "unknown"
	}
}

// ParseEventType maps the wire string used in a filter's "event_type"
// condition value onto an EventType.
func ParseEventType(s string) (EventType, bool) {
	switch s {
	case "log":
		return EventTypeLog, true
	case "metric":
		return EventTypeMetric, true
	case "trace", "span":
		return EventTypeSpan, true
	default:
		return 0, false
	}
}

// Timestamp is a seconds+nanoseconds pair instead of a single time.Time,
// so callers that care about on-wire precision keep it exactly.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// FromTime converts a time.Time into the wire-precision Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// ToTime converts back to a time.Time in the local machine's UTC frame.
func (ts Timestamp) ToTime() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// KV is a single (key, value) pair. Both strings are expected to be views
// into the owning EventGroup's SourceBuffer on the hot path, though nothing
// here enforces that -- callers assembling events by hand (tests, adapters)
// may pass ordinary Go strings.
type KV struct {
	Key   string
	Value string
}

// Event is the tagged union of telemetry data points flowing through a
// pipeline: one log line, one metric point, or one span.
type Event struct {
	Type      EventType
	Time      Timestamp
	Contents  []KV
	Tags      []KV
}

// GetContent returns the value for key, and whether it was present.
func (e *Event) GetContent(key string) (string, bool) {
	for _, kv := range e.Contents {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// SetContent upserts a (key, value) content pair.
func (e *Event) SetContent(key, value string) {
	for i := range e.Contents {
		if e.Contents[i].Key == key {
			e.Contents[i].Value = value
			return
		}
	}
	e.Contents = append(e.Contents, KV{Key: key, Value: value})
}

// approxSize estimates the byte footprint of one event for queue data-size
// accounting; it is intentionally cheap rather than exact.
func (e *Event) approxSize() int64 {
	var n int64
	for _, kv := range e.Contents {
		n += int64(len(kv.Key) + len(kv.Value))
	}
	for _, kv := range e.Tags {
		n += int64(len(kv.Key) + len(kv.Value))
	}
	return n
}
