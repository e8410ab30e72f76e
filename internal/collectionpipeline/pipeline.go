// Package collectionpipeline assembles plugins, queues, and a router into
// one running pipeline, and drives its New -> Initialized -> Running ->
// Stopping -> Stopped lifecycle.
package collectionpipeline

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/messixukejia/loongcollector/internal/feedback"
	"github.com/messixukejia/loongcollector/internal/metrics"
	"github.com/messixukejia/loongcollector/internal/model"
	"github.com/messixukejia/loongcollector/internal/perr"
	"github.com/messixukejia/loongcollector/internal/pluginapi"
	"github.com/messixukejia/loongcollector/internal/queue"
	"github.com/messixukejia/loongcollector/internal/queuemgr"
	"github.com/messixukejia/loongcollector/internal/route"
)

// State is CollectionPipeline's lifecycle position.
type State int

const (
	StateNew State = iota
	StateInitialized
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DrainTimeout bounds how long stop() waits for inProcessCount to reach
// zero before logging a warning and proceeding anyway.
var DrainTimeout = 30 * time.Second

type inputEntry struct {
	plugin pluginapi.Input
	index  int
}

// CollectionPipeline is the assembled runtime object for one config name.
type CollectionPipeline struct {
	mu    sync.Mutex
	state State

	name    string
	project string
	runID   string
	key     model.QueueKey

	deps Deps

	inputs     []inputEntry
	processors []pluginapi.Processor
	flushers   []pluginapi.Flusher
	router     *route.Router

	processQueue      queue.ProcessQueueInterface
	senderQueues      []queue.SenderQueueInterface
	exactlyOnce       *queue.ExactlyOnceSenderQueue
	upstreamFeedbacks []feedback.Interface

	hooksBound int32

	pluginIDCounter int64
	inProcessCount  int64

	pipelineMetrics *metrics.PipelineMetrics
	logger          *zap.Logger
}

// New constructs an uninitialized pipeline. runID should be unique per
// init attempt (the runtime layer mints one, typically a uuid) so log
// lines from successive reloads of the same config name are distinguishable.
func New(name, project, runID string, deps Deps) *CollectionPipeline {
	return &CollectionPipeline{
		name:    name,
		project: project,
		runID:   runID,
		deps:    deps,
		logger:  deps.Logger,
	}
}

func (p *CollectionPipeline) Name() string  { return p.name }
func (p *CollectionPipeline) State() State  { p.mu.Lock(); defer p.mu.Unlock(); return p.state }

// Key returns the QueueKey this pipeline's process queue is bound to.
func (p *CollectionPipeline) Key() model.QueueKey { return p.key }

// OwnsQueueKey reports whether key names this pipeline's process queue or
// any one of its sender queues, so a worker pool that only has a key (from
// PopItem or a SenderQueueItem) can find its way back to the pipeline.
func (p *CollectionPipeline) OwnsQueueKey(key model.QueueKey) bool {
	if p.key == key {
		return true
	}
	for _, sq := range p.senderQueues {
		if sq.Key() == key {
			return true
		}
	}
	return false
}

// GenNextPluginMeta assigns the next monotonically increasing plugin ID
// within this pipeline.
func (p *CollectionPipeline) GenNextPluginMeta() int {
	return int(atomic.AddInt64(&p.pluginIDCounter, 1))
}

// Init parses cfg, builds every plugin instance, and wires the queues and
// router. On any failure every plugin successfully built so far is asked
// to unwind (Stop, best-effort) and Init returns a wrapped
// perr.ErrConfigInvalid.
func (p *CollectionPipeline) Init(cfg *Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateNew {
		return fmt.Errorf("%w: pipeline %q already initialized", perr.ErrInternal, p.name)
	}

	p.key = p.deps.Keys.GetOrCreateKey(p.name)
	p.pipelineMetrics = p.deps.Metrics.ForPipeline(p.project, p.name)

	builtInputs := make([]inputEntry, 0, len(cfg.Inputs))
	builtProcessors := make([]pluginapi.Processor, 0, len(cfg.Processors))
	builtFlushers := make([]pluginapi.Flusher, 0, len(cfg.Flushers))

	unwind := func() {
		for _, in := range builtInputs {
			_ = in.plugin.Stop()
		}
		for _, f := range builtFlushers {
			_ = f.Stop(false)
		}
	}

	for i, ic := range cfg.Inputs {
		plugin, ok := pluginapi.NewInput(ic.Type)
		if !ok {
			unwind()
			return fmt.Errorf("%w: unknown input type %q", perr.ErrConfigInvalid, ic.Type)
		}
		ctx := &pluginapi.Context{
			Project: p.project, PipelineName: p.name, InputIndex: i,
			PluginID: p.GenNextPluginMeta(), Logger: p.logger, Metrics: p.pipelineMetrics,
			Push: func(item *model.ProcessQueueItem) queuemgr.PushStatus {
				return p.deps.ProcessQueues.PushQueue(p.key, item)
			},
		}
		if err := plugin.Init(ctx, ic.Raw); err != nil {
			unwind()
			return fmt.Errorf("%w: input %q: %v", perr.ErrConfigInvalid, ic.Type, err)
		}
		builtInputs = append(builtInputs, inputEntry{plugin: plugin, index: i})
	}

	for i, pc := range cfg.Processors {
		plugin, ok := pluginapi.NewProcessor(pc.Type)
		if !ok {
			unwind()
			return fmt.Errorf("%w: unknown processor type %q", perr.ErrConfigInvalid, pc.Type)
		}
		ctx := &pluginapi.Context{
			Project: p.project, PipelineName: p.name, PluginID: p.GenNextPluginMeta(),
			Index: i, Logger: p.logger, Metrics: p.pipelineMetrics,
		}
		if err := plugin.Init(ctx, pc.Raw); err != nil {
			unwind()
			return fmt.Errorf("%w: processor %q: %v", perr.ErrConfigInvalid, pc.Type, err)
		}
		builtProcessors = append(builtProcessors, plugin)
	}

	for i, fc := range cfg.Flushers {
		plugin, ok := pluginapi.NewFlusher(fc.Type)
		if !ok {
			unwind()
			return fmt.Errorf("%w: unknown flusher type %q", perr.ErrConfigInvalid, fc.Type)
		}
		ctx := &pluginapi.Context{
			Project: p.project, PipelineName: p.name, PluginID: p.GenNextPluginMeta(),
			Index: i, Logger: p.logger, Metrics: p.pipelineMetrics,
		}
		if err := plugin.Init(ctx, fc.Raw); err != nil {
			unwind()
			return fmt.Errorf("%w: flusher %q: %v", perr.ErrConfigInvalid, fc.Type, err)
		}
		builtFlushers = append(builtFlushers, plugin)
	}

	if len(builtFlushers) == 0 {
		unwind()
		return fmt.Errorf("%w: pipeline %q has no flushers", perr.ErrConfigInvalid, p.name)
	}

	routeEntries := make([]route.Entry, 0, len(cfg.Route))
	for _, rc := range cfg.Route {
		cond, err := route.NewCondition(rc.Condition)
		if err != nil {
			unwind()
			return fmt.Errorf("%w: route entry: %v", perr.ErrConfigInvalid, err)
		}
		routeEntries = append(routeEntries, route.Entry{Condition: cond, FlusherIndex: rc.FlusherIndex})
	}

	p.inputs = builtInputs
	p.processors = builtProcessors
	p.flushers = builtFlushers
	p.router = route.NewRouter(routeEntries, len(builtFlushers), cfg.RouteDefault)

	senderQueues := make([]queue.SenderQueueInterface, len(builtFlushers))
	if cfg.Global.ExactlyOnceConcurrency > 0 {
		hashKeys := make([]string, cfg.Global.ExactlyOnceConcurrency)
		for i := range hashKeys {
			hashKeys[i] = fmt.Sprintf("%s/range/%d", p.name, i)
		}
		eo := p.deps.ExactlyOnce.CreateQueue(p.key, p.name, hashKeys, nil, p.deps.Metrics)
		p.exactlyOnce = eo
		for i := range senderQueues {
			senderQueues[i] = eo
		}
	} else {
		for i := range builtFlushers {
			sk := p.deps.Keys.GetOrCreateKey(fmt.Sprintf("%s/flusher/%d", p.name, i))
			senderQueues[i] = p.deps.SenderQueues.CreateOrUpdateQueue(sk, p.name, queuemgr.SenderQueueParams{
				Capacity: cfg.Global.SenderQueueCapacity,
				Low:      cfg.Global.SenderQueueLow,
				High:     cfg.Global.SenderQueueHigh,
			})
		}
	}
	p.senderQueues = senderQueues

	p.processQueue = p.deps.ProcessQueues.CreateOrUpdateQueue(p.key, p.name, queuemgr.ProcessQueueParams{
		Circular: cfg.Global.ProcessQueueCircular,
		Capacity: cfg.Global.ProcessQueueCapacity,
		Low:      cfg.Global.ProcessQueueLow,
		High:     cfg.Global.ProcessQueueHigh,
		Priority: cfg.Global.ProcessQueuePriority,
	})

	var fbs []feedback.Interface
	for _, in := range builtInputs {
		if fb, ok := in.plugin.(feedback.Interface); ok {
			fbs = append(fbs, fb)
		}
	}
	p.upstreamFeedbacks = fbs

	// A Modified-config reload reuses the same QueueKey, so
	// CreateOrUpdateQueue above can hand back the exact live queue object
	// the pipeline being replaced is still popping from. Init deliberately
	// does not rebind that queue's hooks here: doing so would immediately
	// redirect every hit of the shared queue's hook to this not-yet-running
	// replacement while the old pipeline is still crediting/debiting its own
	// inProcessCount against the same queue. BindQueueHooks does the actual
	// rebind, and Manager only calls it once the old pipeline has fully
	// stopped (or immediately, for a brand new queue key with no prior
	// owner).
	p.state = StateInitialized
	return nil
}

// BindQueueHooks points the process queue's downstream/in-process/feedback
// hooks at this pipeline. Safe to call more than once; only the first call
// takes effect. Must not be called while a previous owner of the same
// QueueKey (a reload's old pipeline) is still popping from it.
func (p *CollectionPipeline) BindQueueHooks() {
	if !atomic.CompareAndSwapInt32(&p.hooksBound, 0, 1) {
		return
	}
	p.processQueue.SetDownstreamQueues(p.senderQueues)
	p.processQueue.SetInProcessCountHook(func() { atomic.AddInt64(&p.inProcessCount, 1) })
	p.processQueue.SetUpstreamFeedbacks(p.upstreamFeedbacks)
}

// Start binds this pipeline's queue hooks (a no-op if Manager already
// bound them post-handoff), enables popping on the process queue, and
// starts every input's production loop on its own goroutine. Idempotent:
// calling Start on an already-Running pipeline is a no-op.
func (p *CollectionPipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateRunning {
		return nil
	}
	if p.state != StateInitialized {
		return fmt.Errorf("%w: pipeline %q is not initialized", perr.ErrInternal, p.name)
	}

	p.BindQueueHooks()
	p.deps.ProcessQueues.EnablePop(p.key)
	for _, in := range p.inputs {
		in := in
		go func() {
			if err := in.plugin.Start(); err != nil {
				p.logger.Warn("input start failed", zap.String("pipeline", p.name), zap.Int("inputIndex", in.index), zap.Error(err))
			}
		}()
	}
	p.state = StateRunning
	return nil
}

// Process runs the configured processor chain synchronously over
// groupList, dropping any group a processor discards (nil return).
func (p *CollectionPipeline) Process(groupList []*model.EventGroup, inputIndex int) []*model.EventGroup {
	start := time.Now()
	out := make([]*model.EventGroup, 0, len(groupList))
	for _, g := range groupList {
		p.pipelineMetrics.ProcessorsInGroupsTotal.Inc()
		p.pipelineMetrics.ProcessorsInEventsTotal.Add(float64(len(g.Events)))
		p.pipelineMetrics.ProcessorsInSizeBytes.Add(float64(g.DataSize()))

		cur := g
		for _, proc := range p.processors {
			cur = proc.Process(cur)
			if cur == nil {
				break
			}
		}
		if cur != nil {
			out = append(out, cur)
		}
	}
	p.pipelineMetrics.ProcessorsTotalProcessMs.Add(float64(time.Since(start).Milliseconds()))
	return out
}

// Send routes every group in groupList and pushes the routed payload into
// each matching flusher's sender queue. Every group and every target is
// attempted; it returns false if any serialize failed or any push was
// refused (QueueFull), and the caller (an input backing off) decides how
// to treat that.
func (p *CollectionPipeline) Send(groupList []*model.EventGroup) bool {
	ok := true
	for _, g := range groupList {
		indices := p.router.Route(g)
		for i, idx := range indices {
			target := g
			if i != len(indices)-1 {
				target = g.NewSharedRef()
			}
			if !p.sendToFlusher(idx, target) {
				ok = false
			}
		}
	}
	return ok
}

func (p *CollectionPipeline) sendToFlusher(idx int, g *model.EventGroup) bool {
	flusher := p.flushers[idx]
	payload, err := flusher.Serialize(g)
	if err != nil {
		p.logger.Warn("flusher serialize failed", zap.String("pipeline", p.name), zap.Error(err))
		return false
	}

	item := &model.SenderQueueItem{
		Bytes:         payload,
		Size:          int64(len(payload)),
		OriginFlusher: flusher.Type(),
	}
	if p.exactlyOnce != nil {
		if rs, has := g.GetTag("rangeIndex"); has {
			if n, err := strconv.Atoi(rs); err == nil {
				item.Checkpoint = p.exactlyOnce.Checkpoint(n)
			}
		}
	}

	sq := p.senderQueues[idx]
	if !sq.Push(item) {
		return false
	}
	p.pipelineMetrics.FlushersInGroupsTotal.Inc()
	p.pipelineMetrics.FlushersInEventsTotal.Add(float64(len(g.Events)))
	p.pipelineMetrics.FlushersInSizeBytes.Add(float64(item.Size))
	return true
}

// ProcessAndSend is the unit of work a processor-pool worker runs for each
// item PopItem hands it: run item's group through the processor chain,
// route and push whatever survives to the matching sender queues, then
// release the in-process slot the item has held since it was popped. It
// is the only caller of SubInProcessCnt outside tests.
func (p *CollectionPipeline) ProcessAndSend(item *model.ProcessQueueItem) {
	defer p.SubInProcessCnt()
	out := p.Process([]*model.EventGroup{item.Group}, item.InputIndex)
	if len(out) != 0 {
		p.Send(out)
	}
}

// SendItem delivers one item already drawn from this pipeline's sender
// queues to the flusher that owns it, then reports the outcome back to
// the queue it came from: Remove on success, Retry (preserving send
// order) on failure. It is the unit of work a sender-pool worker runs for
// each item GetAvailableItems hands it.
//
// The owning index is found by matching item.QueueKey against each sender
// queue's own key, which is unique per flusher in bounded mode; in
// exactly-once mode every flusher shares one queue and therefore one key,
// so OriginFlusher (the flusher's Type, stamped on the item at push time)
// breaks the tie.
func (p *CollectionPipeline) SendItem(item *model.SenderQueueItem) {
	idx := -1
	for i, sq := range p.senderQueues {
		if sq.Key() != item.QueueKey {
			continue
		}
		if p.flushers[i].Type() == item.OriginFlusher {
			idx = i
			break
		}
		if idx < 0 {
			idx = i
		}
	}
	if idx < 0 {
		p.logger.Error("sender item matches no flusher in this pipeline",
			zap.String("pipeline", p.name), zap.String("flusher", item.OriginFlusher))
		return
	}

	f, sq := p.flushers[idx], p.senderQueues[idx]
	if err := f.Send(item); err != nil {
		p.logger.Warn("flusher send failed, retrying",
			zap.String("pipeline", p.name), zap.String("flusher", f.Type()), zap.Error(err))
		sq.Retry(item)
		return
	}
	sq.Remove(item)
	p.pipelineMetrics.FlushersOutItemsTotal.Inc()
}

// SubInProcessCnt is called once an item popped from the process queue has
// been pushed to every target sender queue. An underflow is logged, not
// corrected: it should never happen under correct
// AddInProcessCnt/SubInProcessCnt pairing, and clamping it would hide the
// bug that produced it.
func (p *CollectionPipeline) SubInProcessCnt() {
	if atomic.AddInt64(&p.inProcessCount, -1) < 0 {
		p.logger.Error("inProcessCount underflow", zap.String("pipeline", p.name))
	}
}

func (p *CollectionPipeline) InProcessCount() int64 {
	return atomic.LoadInt64(&p.inProcessCount)
}

// Stop disables further pops, asks every input to stop producing, waits
// (bounded) for inProcessCount to reach zero, then stops every flusher.
// isRemoving=false is a reload: checkpoints are preserved so Start on a
// freshly-Init'd replacement pipeline resumes from them. isRemoving=true
// releases them.
func (p *CollectionPipeline) Stop(isRemoving bool) error {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return nil
	}
	p.state = StateStopping
	p.mu.Unlock()

	p.deps.ProcessQueues.DisablePop(p.key)
	for _, in := range p.inputs {
		if err := in.plugin.Stop(); err != nil {
			p.logger.Warn("input stop failed", zap.String("pipeline", p.name), zap.Error(err))
		}
	}

	deadline := time.Now().Add(DrainTimeout)
	for p.InProcessCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if p.InProcessCount() != 0 {
		p.logger.Warn("drain timed out, proceeding with items still in flight",
			zap.String("pipeline", p.name), zap.Int64("inProcessCount", p.InProcessCount()))
	}

	for _, f := range p.flushers {
		if err := f.Stop(!isRemoving); err != nil {
			p.logger.Warn("flusher stop failed", zap.String("pipeline", p.name), zap.Error(err))
		}
	}

	// A reload reuses this pipeline's QueueKey (and per-flusher sender
	// keys) verbatim: the replacement's Init already called
	// CreateOrUpdateQueue/CreateQueue against the same keys before this
	// Stop ran, so on isRemoving=false these queues are the replacement's
	// queues now, not this pipeline's to tear down. Only a genuine removal
	// deletes them.
	if isRemoving {
		p.deps.ProcessQueues.DeleteQueue(p.key)
	}
	if p.exactlyOnce != nil {
		p.deps.ExactlyOnce.DeleteQueue(p.key, isRemoving)
	} else if isRemoving {
		for i := range p.flushers {
			sk := p.deps.Keys.GetOrCreateKey(fmt.Sprintf("%s/flusher/%d", p.name, i))
			p.deps.SenderQueues.DeleteQueue(sk)
		}
	}

	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()
	return nil
}
