// Package pluginapi defines the closed set of plugin kinds a
// CollectionPipeline wires together -- Input, Processor, Flusher -- and the
// registries that map a config's "Type" string to a constructor.
package pluginapi

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/messixukejia/loongcollector/internal/metrics"
	"github.com/messixukejia/loongcollector/internal/model"
	"github.com/messixukejia/loongcollector/internal/queuemgr"
)

// Context is the per-plugin-instance handle into its owning pipeline.
// It is assembled by CollectionPipeline.init and is immutable after that
// point; plugins read it freely from any thread.
type Context struct {
	Project      string
	PipelineName string
	PluginID     int
	InputIndex   int // input plugins only: which of the pipeline's inputs this is
	Index        int // processor/flusher plugins: their position in the chain

	Logger  *zap.Logger
	Metrics *metrics.PipelineMetrics

	// Push feeds one produced group into the pipeline's process queue. Only
	// Input implementations call this.
	Push func(item *model.ProcessQueueItem) queuemgr.PushStatus
}

// Input produces ProcessQueueItems on its own thread (file tailing, a
// scrape scheduler tick, an eBPF poll) until Stop is called.
type Input interface {
	Type() string
	Init(ctx *Context, params json.RawMessage) error
	Start() error
	Stop() error
}

// Processor is a pure EventGroup -> EventGroup transform, run synchronously
// on the processor chain's calling thread. A nil return discards the group.
type Processor interface {
	Type() string
	Init(ctx *Context, params json.RawMessage) error
	Process(g *model.EventGroup) *model.EventGroup
}

// Flusher owns outbound delivery for one pipeline branch: it serializes a
// routed group into a SenderQueueItem's payload and, once the sender
// worker pool dequeues that item, transmits it.
type Flusher interface {
	Type() string
	Init(ctx *Context, params json.RawMessage) error
	Serialize(g *model.EventGroup) ([]byte, error)
	Send(item *model.SenderQueueItem) error
	Stop(flush bool) error
}

type (
	InputFactory     func() Input
	ProcessorFactory func() Processor
	FlusherFactory   func() Flusher
)

var (
	inputRegistry     = map[string]InputFactory{}
	processorRegistry = map[string]ProcessorFactory{}
	flusherRegistry   = map[string]FlusherFactory{}
)

// RegisterInput, RegisterProcessor, and RegisterFlusher add a plugin-type
// name to the matching registry. Plugin packages call these from an init
// func so importing a plugin package is enough to make its type available.
func RegisterInput(typeName string, f InputFactory)         { inputRegistry[typeName] = f }
func RegisterProcessor(typeName string, f ProcessorFactory)  { processorRegistry[typeName] = f }
func RegisterFlusher(typeName string, f FlusherFactory)       { flusherRegistry[typeName] = f }

// NewInput, NewProcessor, and NewFlusher construct a fresh plugin instance
// by its config "Type" name.
func NewInput(typeName string) (Input, bool) {
	f, ok := inputRegistry[typeName]
	if !ok {
		return nil, false
	}
	return f(), true
}

func NewProcessor(typeName string) (Processor, bool) {
	f, ok := processorRegistry[typeName]
	if !ok {
		return nil, false
	}
	return f(), true
}

func NewFlusher(typeName string) (Flusher, bool) {
	f, ok := flusherRegistry[typeName]
	if !ok {
		return nil, false
	}
	return f(), true
}
