// Package route implements the pipeline-internal demultiplexer that
// decides which flusher(s) receive each event group.
package route

import (
	"encoding/json"
	"fmt"

	"github.com/messixukejia/loongcollector/internal/model"
)

// Kind is Condition's closed set of variants.
type Kind string

const (
	KindEventType Kind = "event_type"
	KindTag       Kind = "tag"
)

// Condition is one routing predicate: either "every event in the group has
// this type" or "the group carries this tag". Built once at pipeline init
// from JSON config; never mutated afterward except through its own
// DiscardingTag side effect on a matched group.
type Condition struct {
	kind Kind

	eventType model.EventType

	tagKey        string
	tagValue      string
	discardingTag bool
}

type rawCondition struct {
	Type          json.RawMessage `json:"Type"`
	Value         json.RawMessage `json:"Value"`
	Key           string          `json:"Key"`
	DiscardingTag bool            `json:"DiscardingTag"`
}

// NewCondition parses raw JSON into a Condition. The "Type" key is
// case-sensitive and must be present as a non-empty string naming a known
// variant; a "tag" condition additionally requires "Key" and "Value", an
// "event_type" condition requires "Value".
func NewCondition(raw json.RawMessage) (*Condition, error) {
	var rc rawCondition
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil, fmt.Errorf("route: malformed condition: %w", err)
	}
	if len(rc.Type) == 0 {
		return nil, fmt.Errorf("route: condition missing Type")
	}

	var typeStr string
	if err := json.Unmarshal(rc.Type, &typeStr); err != nil {
		return nil, fmt.Errorf("route: Type must be a string")
	}
	if typeStr == "" {
		return nil, fmt.Errorf("route: Type must not be empty")
	}

	switch Kind(typeStr) {
	case KindEventType:
		if len(rc.Value) == 0 {
			return nil, fmt.Errorf("route: event_type condition missing Value")
		}
		var valueStr string
		if err := json.Unmarshal(rc.Value, &valueStr); err != nil {
			return nil, fmt.Errorf("route: event_type Value must be a string")
		}
		et, ok := model.ParseEventType(valueStr)
		if !ok {
			return nil, fmt.Errorf("route: unknown event type %q", valueStr)
		}
		return &Condition{kind: KindEventType, eventType: et}, nil

	case KindTag:
		if rc.Key == "" {
			return nil, fmt.Errorf("route: tag condition missing Key")
		}
		if len(rc.Value) == 0 {
			return nil, fmt.Errorf("route: tag condition missing Value")
		}
		var valueStr string
		if err := json.Unmarshal(rc.Value, &valueStr); err != nil {
			return nil, fmt.Errorf("route: tag Value must be a string")
		}
		return &Condition{
			kind:          KindTag,
			tagKey:        rc.Key,
			tagValue:      valueStr,
			discardingTag: rc.DiscardingTag,
		}, nil

	default:
		return nil, fmt.Errorf("route: unknown condition type %q", typeStr)
	}
}

// Check evaluates the predicate against g without any side effect.
func (c *Condition) Check(g *model.EventGroup) bool {
	switch c.kind {
	case KindEventType:
		for i := range g.Events {
			if g.Events[i].Type != c.eventType {
				return false
			}
		}
		return true
	case KindTag:
		v, ok := g.GetTag(c.tagKey)
		return ok && v == c.tagValue
	default:
		return false
	}
}

// ApplySideEffect runs a condition's side effect once it has matched. Only
// a Tag condition with DiscardingTag set has one: the matched tag is
// removed from the group.
func (c *Condition) ApplySideEffect(g *model.EventGroup) {
	if c.kind == KindTag && c.discardingTag {
		g.DeleteTag(c.tagKey)
	}
}
