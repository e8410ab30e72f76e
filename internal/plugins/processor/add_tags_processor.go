// Package processor holds the Processor plugin implementations a
// collection pipeline wires into its synchronous processor chain.
package processor

import (
	"encoding/json"
	"fmt"

	"github.com/messixukejia/loongcollector/internal/model"
	"github.com/messixukejia/loongcollector/internal/pluginapi"
)

func init() {
	pluginapi.RegisterProcessor("add_tags_processor", func() pluginapi.Processor { return &AddTagsProcessor{} })
}

type addTagsConfig struct {
	Tags map[string]string `json:"tags"`
}

// AddTagsProcessor upserts a fixed set of group-level tags onto every
// EventGroup that passes through it.
type AddTagsProcessor struct {
	tags map[string]string
}

func (p *AddTagsProcessor) Type() string { return "add_tags_processor" }

func (p *AddTagsProcessor) Init(ctx *pluginapi.Context, params json.RawMessage) error {
	var cfg addTagsConfig
	if len(params) > 0 {
		if err := json.Unmarshal(params, &cfg); err != nil {
			return fmt.Errorf("add_tags_processor: invalid config: %w", err)
		}
	}
	p.tags = cfg.Tags
	return nil
}

func (p *AddTagsProcessor) Process(g *model.EventGroup) *model.EventGroup {
	for k, v := range p.tags {
		g.SetTag(k, v)
	}
	return g
}
