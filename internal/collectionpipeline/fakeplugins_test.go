package collectionpipeline

import (
	"encoding/json"
	"fmt"

	"github.com/messixukejia/loongcollector/internal/model"
	"github.com/messixukejia/loongcollector/internal/pluginapi"
)

type fakeInput struct {
	ctx     *pluginapi.Context
	started bool
	stopped bool
}

func (f *fakeInput) Type() string { return "fake_input" }
func (f *fakeInput) Init(ctx *pluginapi.Context, _ json.RawMessage) error {
	f.ctx = ctx
	return nil
}
func (f *fakeInput) Start() error { f.started = true; return nil }
func (f *fakeInput) Stop() error  { f.stopped = true; return nil }

type failingInput struct{}

func (f *failingInput) Type() string                                     { return "failing_input" }
func (f *failingInput) Init(*pluginapi.Context, json.RawMessage) error    { return fmt.Errorf("boom") }
func (f *failingInput) Start() error                                     { return nil }
func (f *failingInput) Stop() error                                      { return nil }

type passthroughProcessor struct{}

func (p *passthroughProcessor) Type() string { return "passthrough_processor" }
func (p *passthroughProcessor) Init(*pluginapi.Context, json.RawMessage) error { return nil }
func (p *passthroughProcessor) Process(g *model.EventGroup) *model.EventGroup  { return g }

type droppingProcessor struct{}

func (p *droppingProcessor) Type() string { return "dropping_processor" }
func (p *droppingProcessor) Init(*pluginapi.Context, json.RawMessage) error { return nil }
func (p *droppingProcessor) Process(*model.EventGroup) *model.EventGroup    { return nil }

type fakeFlusher struct {
	sent    [][]byte
	stopped bool
	flushed bool
}

func (f *fakeFlusher) Type() string { return "fake_flusher" }
func (f *fakeFlusher) Init(*pluginapi.Context, json.RawMessage) error { return nil }
func (f *fakeFlusher) Serialize(g *model.EventGroup) ([]byte, error) {
	return []byte(fmt.Sprintf("events=%d", len(g.Events))), nil
}
func (f *fakeFlusher) Send(item *model.SenderQueueItem) error {
	f.sent = append(f.sent, item.Bytes)
	return nil
}
func (f *fakeFlusher) Stop(flush bool) error {
	f.stopped = true
	f.flushed = flush
	return nil
}

type failingFlusher struct{}

func (f *failingFlusher) Type() string { return "failing_flusher" }
func (f *failingFlusher) Init(*pluginapi.Context, json.RawMessage) error {
	return fmt.Errorf("flusher init boom")
}
func (f *failingFlusher) Serialize(*model.EventGroup) ([]byte, error) { return nil, nil }
func (f *failingFlusher) Send(*model.SenderQueueItem) error           { return nil }
func (f *failingFlusher) Stop(bool) error                             { return nil }

// erroringFlusher builds and serializes fine but its Send always fails, so
// tests can exercise the sender pool's retry path.
type erroringFlusher struct {
	attempts int
}

func (f *erroringFlusher) Type() string { return "erroring_flusher" }
func (f *erroringFlusher) Init(*pluginapi.Context, json.RawMessage) error { return nil }
func (f *erroringFlusher) Serialize(g *model.EventGroup) ([]byte, error) {
	return []byte(fmt.Sprintf("events=%d", len(g.Events))), nil
}
func (f *erroringFlusher) Send(*model.SenderQueueItem) error {
	f.attempts++
	return fmt.Errorf("send boom")
}
func (f *erroringFlusher) Stop(bool) error { return nil }

func init() {
	pluginapi.RegisterInput("fake_input", func() pluginapi.Input { return &fakeInput{} })
	pluginapi.RegisterInput("failing_input", func() pluginapi.Input { return &failingInput{} })
	pluginapi.RegisterProcessor("passthrough_processor", func() pluginapi.Processor { return &passthroughProcessor{} })
	pluginapi.RegisterProcessor("dropping_processor", func() pluginapi.Processor { return &droppingProcessor{} })
	pluginapi.RegisterFlusher("failing_flusher", func() pluginapi.Flusher { return &failingFlusher{} })
}

// registerErroringFlusher registers "erroring_flusher" with a factory that
// always hands back the same instance, so a test can inspect its attempts.
func registerErroringFlusher() *erroringFlusher {
	f := &erroringFlusher{}
	pluginapi.RegisterFlusher("erroring_flusher", func() pluginapi.Flusher { return f })
	return f
}

// registerFakeFlusher registers "fake_flusher" with a factory that always
// hands back the same instance, so a test can inspect what it recorded.
func registerFakeFlusher() *fakeFlusher {
	f := &fakeFlusher{}
	pluginapi.RegisterFlusher("fake_flusher", func() pluginapi.Flusher { return f })
	return f
}
