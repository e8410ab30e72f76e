package collectionpipeline

import (
	"fmt"
	"sync"

	"github.com/messixukejia/loongcollector/internal/model"
)

// Manager owns the set of live pipelines and reconciles config changes
// against it.
type Manager struct {
	mu        sync.RWMutex
	pipelines map[string]*CollectionPipeline

	deps      Deps
	project   string
	nextRunID func() string
}

// NewManager builds an empty manager. nextRunID mints a fresh identifier
// for each pipeline build attempt (e.g. a uuid generator); it is injected
// so tests can supply a deterministic sequence.
func NewManager(deps Deps, project string, nextRunID func() string) *Manager {
	return &Manager{
		pipelines: make(map[string]*CollectionPipeline),
		deps:      deps,
		project:   project,
		nextRunID: nextRunID,
	}
}

// ConfigUpdate is one named config's raw JSON.
type ConfigUpdate struct {
	Name string
	Raw  []byte
}

// UpdateConfigs reconciles added/modified/removed config names against the
// live pipeline set, per config, in build-before-teardown order: a
// Modified pipeline's replacement is fully built before the old one is
// stopped, so there is never a window where the config name isn't being
// served.
func (m *Manager) UpdateConfigs(added, modified, removed []ConfigUpdate) []error {
	var errs []error

	for _, rc := range removed {
		m.mu.Lock()
		p, ok := m.pipelines[rc.Name]
		if ok {
			delete(m.pipelines, rc.Name)
		}
		m.mu.Unlock()
		if ok {
			if err := p.Stop(true); err != nil {
				errs = append(errs, fmt.Errorf("stop removed pipeline %q: %w", rc.Name, err))
			}
		}
	}

	for _, ac := range added {
		if err := m.buildAndStart(ac); err != nil {
			errs = append(errs, err)
		}
	}

	for _, mc := range modified {
		m.mu.RLock()
		old := m.pipelines[mc.Name]
		m.mu.RUnlock()

		cfg, err := ParseConfig(mc.Raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse modified config %q: %w", mc.Name, err))
			continue
		}

		replacement := New(mc.Name, m.project, m.nextRunID(), m.deps)
		if err := replacement.Init(cfg); err != nil {
			errs = append(errs, fmt.Errorf("init replacement for %q, keeping old running: %w", mc.Name, err))
			continue
		}

		if old != nil {
			// old still owns this reused QueueKey's pop/hook rights until
			// Stop disables popping and drains its in-flight count to
			// zero. Binding replacement's hooks any earlier would let a
			// processorWorker's pop on the shared queue credit
			// replacement.inProcessCount while old.ProcessAndSend is the
			// one that eventually decrements it -- a permanent count
			// skew. Only once old.Stop returns is the handoff safe.
			if err := old.Stop(false); err != nil {
				errs = append(errs, fmt.Errorf("stop previous version of %q: %w", mc.Name, err))
			}
		}
		replacement.BindQueueHooks()
		if err := replacement.Start(); err != nil {
			errs = append(errs, fmt.Errorf("start replacement for %q: %w", mc.Name, err))
			continue
		}

		m.mu.Lock()
		m.pipelines[mc.Name] = replacement
		m.mu.Unlock()
	}

	return errs
}

func (m *Manager) buildAndStart(ac ConfigUpdate) error {
	cfg, err := ParseConfig(ac.Raw)
	if err != nil {
		return fmt.Errorf("parse added config %q: %w", ac.Name, err)
	}

	p := New(ac.Name, m.project, m.nextRunID(), m.deps)
	if err := p.Init(cfg); err != nil {
		return fmt.Errorf("init added pipeline %q: %w", ac.Name, err)
	}
	p.BindQueueHooks()
	if err := p.Start(); err != nil {
		return fmt.Errorf("start added pipeline %q: %w", ac.Name, err)
	}

	m.mu.Lock()
	m.pipelines[ac.Name] = p
	m.mu.Unlock()
	return nil
}

// FindConfigByName reports whether name currently has a live pipeline.
func (m *Manager) FindConfigByName(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pipelines[name]
	return ok
}

// Names returns every currently live pipeline's config name.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.pipelines))
	for name := range m.pipelines {
		out = append(out, name)
	}
	return out
}

// FindPipelineByConfigName returns the live pipeline for name, if any.
func (m *Manager) FindPipelineByConfigName(name string) (*CollectionPipeline, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pipelines[name]
	return p, ok
}

// FindPipelineByQueueKey returns the live pipeline whose process queue or
// whose one of whose sender queues is bound to key. Worker pools use this
// to go from what PopItem/GetAvailableItems handed them back to the
// pipeline that owns it.
func (m *Manager) FindPipelineByQueueKey(key model.QueueKey) (*CollectionPipeline, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pipelines {
		if p.OwnsQueueKey(key) {
			return p, true
		}
	}
	return nil, false
}

// StopAll stops every live pipeline, for process shutdown.
func (m *Manager) StopAll(isRemoving bool) []error {
	m.mu.Lock()
	pipelines := make([]*CollectionPipeline, 0, len(m.pipelines))
	for _, p := range m.pipelines {
		pipelines = append(pipelines, p)
	}
	m.pipelines = make(map[string]*CollectionPipeline)
	m.mu.Unlock()

	var errs []error
	for _, p := range pipelines {
		if err := p.Stop(isRemoving); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
