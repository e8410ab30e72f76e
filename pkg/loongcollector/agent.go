package loongcollector

import (
	"context"
	"errors"
	"time"

	"github.com/messixukejia/loongcollector/internal/adminapi"
	"github.com/messixukejia/loongcollector/internal/collectionpipeline"
	"github.com/messixukejia/loongcollector/internal/dashboard"
	"github.com/messixukejia/loongcollector/internal/runtime"

	// Registering the built-in plugin types against pluginapi's registries
	// via their package init() funcs; a binary embedding this facade gets
	// every stock input/processor/flusher without listing them itself.
	_ "github.com/messixukejia/loongcollector/internal/plugins/flusher"
	_ "github.com/messixukejia/loongcollector/internal/plugins/input"
	_ "github.com/messixukejia/loongcollector/internal/plugins/processor"
)

// Re-exported types so downstream code can reference loongcollector.Config
// and loongcollector.CollectionPipeline without importing internal/.
type (
	Config             = AgentConfig
	CollectionPipeline = collectionpipeline.CollectionPipeline
	ConfigUpdate       = collectionpipeline.ConfigUpdate
)

// Agent bundles a runtime.Runtime with its admin API and dashboard
// servers into the single value a binary constructs and runs.
type Agent struct {
	cfg       *AgentConfig
	rt        *runtime.Runtime
	admin     *adminapi.Server
	dashboard *dashboard.Server
}

// New builds an Agent from a loaded AgentConfig.
func New(cfg *AgentConfig) (*Agent, error) {
	if cfg == nil {
		return nil, errors.New("loongcollector: config is required")
	}
	rt, err := runtime.New(cfg.toRuntimeConfig())
	if err != nil {
		return nil, err
	}
	return &Agent{
		cfg:       cfg,
		rt:        rt,
		admin:     adminapi.New(rt, cfg.AdminAddr),
		dashboard: dashboard.New(rt, cfg.DashboardAddr, time.Second),
	}, nil
}

// Conf loads cfg from path and builds an Agent.
func Conf(path string) (*Agent, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Runtime exposes the underlying runtime.Runtime for advanced callers that
// need direct access to the queue managers or metrics registry.
func (a *Agent) Runtime() *runtime.Runtime { return a.rt }

// Run loads every pipeline config, starts the admin API, dashboard, and
// metrics server, then blocks on ctx, periodically reloading pipeline
// configs from disk until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.rt.LoadAll(); err != nil {
		return err
	}
	a.rt.StartMetricsServer()
	a.rt.StartWorkerPools()
	a.admin.Start()
	a.dashboard.Start()

	ticker := time.NewTicker(a.cfg.ReloadPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return a.Shutdown()
		case <-ticker.C:
			_ = a.rt.Reload()
		}
	}
}

// Shutdown stops the dashboard, admin API, and every live pipeline.
func (a *Agent) Shutdown() error {
	dashErr := a.dashboard.Stop()
	adminErr := a.admin.Stop()
	rtErr := a.rt.Shutdown()
	return errors.Join(dashErr, adminErr, rtErr)
}
