package collectionpipeline

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// PluginConfig captures one entry of a config's inputs/processors/flushers
// array: the "Type" discriminator plus the entire raw object, which is
// handed to the constructed plugin's Init unchanged so plugin-specific
// fields never have to be named here.
type PluginConfig struct {
	Type string
	Raw  json.RawMessage
}

func (p *PluginConfig) UnmarshalJSON(b []byte) error {
	var head struct {
		Type string `json:"Type"`
	}
	if err := sonic.Unmarshal(b, &head); err != nil {
		return err
	}
	p.Type = head.Type
	p.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// RouteEntryConfig is one element of the config's "route" array.
type RouteEntryConfig struct {
	Condition    json.RawMessage `json:"Condition"`
	FlusherIndex int             `json:"FlusherIndex"`
}

// GlobalConfig holds pipeline-wide knobs: queue shape, topic naming, and
// exactly-once concurrency.
type GlobalConfig struct {
	TopicType                 string `json:"TopicType"`
	EnableTimestampNanosecond bool   `json:"EnableTimestampNanosecond"`

	ProcessQueueCircular  bool `json:"ProcessQueueCircular"`
	ProcessQueueCapacity  int  `json:"ProcessQueueCapacity"`
	ProcessQueueLow       int  `json:"ProcessQueueLow"`
	ProcessQueueHigh      int  `json:"ProcessQueueHigh"`
	ProcessQueuePriority  int  `json:"ProcessQueuePriority"`

	SenderQueueCapacity int `json:"SenderQueueCapacity"`
	SenderQueueLow      int `json:"SenderQueueLow"`
	SenderQueueHigh     int `json:"SenderQueueHigh"`

	// ExactlyOnceConcurrency > 0 switches every flusher's sender queue for
	// this pipeline to a single shared ExactlyOnceSenderQueue with this many
	// slots (modeled pipeline-wide here rather than per-input for
	// simplicity, since a pipeline config in practice carries one file
	// input when exactly-once is enabled).
	ExactlyOnceConcurrency int `json:"ExactlyOnceConcurrency"`
}

func (g *GlobalConfig) applyDefaults() {
	if g.ProcessQueueCapacity == 0 {
		g.ProcessQueueCapacity = 1024
	}
	if g.ProcessQueueHigh == 0 {
		g.ProcessQueueHigh = g.ProcessQueueCapacity * 3 / 4
	}
	if g.ProcessQueueLow == 0 {
		g.ProcessQueueLow = g.ProcessQueueHigh / 2
	}
	if g.SenderQueueCapacity == 0 {
		g.SenderQueueCapacity = 1024
	}
	if g.SenderQueueHigh == 0 {
		g.SenderQueueHigh = g.SenderQueueCapacity * 3 / 4
	}
	if g.SenderQueueLow == 0 {
		g.SenderQueueLow = g.SenderQueueHigh / 2
	}
}

// Config is the top-level JSON shape of one pipeline config.
type Config struct {
	Inputs     []PluginConfig     `json:"inputs"`
	Processors []PluginConfig     `json:"processors"`
	Flushers   []PluginConfig     `json:"flushers"`
	Route      []RouteEntryConfig `json:"route"`
	Global     GlobalConfig       `json:"global"`

	// RouteDefault, if non-empty, overrides the router's no-match branch
	// with this explicit list of flusher indices instead of routing to
	// every flusher. Absent (nil/empty), "all flushers" wins.
	RouteDefault []int `json:"RouteDefault"`
}

// ParseConfig decodes raw JSON into a Config, applying default watermarks
// for any queue sizing field left at its zero value. Decoding uses sonic
// rather than encoding/json since this path runs on every reload tick,
// not just once at process startup.
func ParseConfig(raw []byte) (*Config, error) {
	var cfg Config
	if err := sonic.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	cfg.Global.applyDefaults()
	return &cfg, nil
}
