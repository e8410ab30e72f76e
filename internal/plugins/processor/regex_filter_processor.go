package processor

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/messixukejia/loongcollector/internal/model"
	"github.com/messixukejia/loongcollector/internal/pluginapi"
)

func init() {
	pluginapi.RegisterProcessor("regex_filter_processor", func() pluginapi.Processor { return &RegexFilterProcessor{} })
}

type regexFilterConfig struct {
	Key     string `json:"key"`
	Pattern string `json:"pattern"`
	Drop    bool   `json:"drop_on_match"`
}

// RegexFilterProcessor drops individual events whose named content field
// matches (or, inverted, fails to match) a fixed regular expression. An
// EventGroup with every event dropped is itself dropped by returning nil.
type RegexFilterProcessor struct {
	key     string
	pattern *regexp.Regexp
	drop    bool
}

func (p *RegexFilterProcessor) Type() string { return "regex_filter_processor" }

func (p *RegexFilterProcessor) Init(ctx *pluginapi.Context, params json.RawMessage) error {
	var cfg regexFilterConfig
	if err := json.Unmarshal(params, &cfg); err != nil {
		return fmt.Errorf("regex_filter_processor: invalid config: %w", err)
	}
	if cfg.Key == "" || cfg.Pattern == "" {
		return fmt.Errorf("regex_filter_processor: key and pattern are required")
	}
	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return fmt.Errorf("regex_filter_processor: invalid pattern: %w", err)
	}
	p.key = cfg.Key
	p.pattern = re
	p.drop = cfg.Drop
	return nil
}

func (p *RegexFilterProcessor) Process(g *model.EventGroup) *model.EventGroup {
	kept := g.Events[:0]
	for _, e := range g.Events {
		v, _ := e.GetContent(p.key)
		matched := p.pattern.MatchString(v)
		if matched == p.drop {
			continue
		}
		kept = append(kept, e)
	}
	g.Events = kept
	if len(g.Events) == 0 {
		return nil
	}
	return g
}
