// Package runtime assembles the process-wide singletons a loongcollector
// process needs -- key manager, queue managers, pipeline manager, metrics
// registry, logger -- into one explicit value rather than ambient
// globals. It depends on internal/collectionpipeline rather than the
// reverse, so collectionpipeline never has to import this package.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/messixukejia/loongcollector/internal/collectionpipeline"
	"github.com/messixukejia/loongcollector/internal/keymgr"
	"github.com/messixukejia/loongcollector/internal/metrics"
	"github.com/messixukejia/loongcollector/internal/obslog"
	"github.com/messixukejia/loongcollector/internal/queuemgr"
)

// Config bootstraps a Runtime. ConfigDir holds one JSON collection-pipeline
// config per file, named "<pipeline-name>.json", scanned on startup and on
// every reload tick.
type Config struct {
	Project     string
	ConfigDir   string
	MetricsAddr string
	GCGrace     time.Duration

	// ProcessorPoolSize and SenderPoolSize are the number of worker
	// goroutines draining every pipeline's process queues and sender
	// queues respectively. SenderBatchSize caps how many sender items one
	// GetAvailableItems draw returns per worker iteration (<0 means
	// "whatever the queues' own limiters admit").
	ProcessorPoolSize int
	SenderPoolSize    int
	SenderBatchSize   int
}

func (c *Config) applyDefaults() {
	if c.Project == "" {
		c.Project = "default"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9100"
	}
	if c.GCGrace <= 0 {
		c.GCGrace = 30 * time.Second
	}
	if c.ProcessorPoolSize <= 0 {
		c.ProcessorPoolSize = 4
	}
	if c.SenderPoolSize <= 0 {
		c.SenderPoolSize = 4
	}
	if c.SenderBatchSize == 0 {
		c.SenderBatchSize = 64
	}
}

// Runtime owns every process-wide singleton and the currently loaded set
// of pipeline config names, so Reload can diff against it.
type Runtime struct {
	cfg Config

	Keys          *keymgr.Manager
	ProcessQueues *queuemgr.ProcessQueueManager
	SenderQueues  *queuemgr.SenderQueueManager
	ExactlyOnce   *queuemgr.ExactlyOnceQueueManager
	Metrics       *metrics.Registry
	Logger        *zap.Logger
	Pipelines     *collectionpipeline.Manager

	loaded     map[string]string // name -> raw config, for reload diffing
	metricsSrv *http.Server

	poolStop chan struct{}
	poolWG   sync.WaitGroup
}

// New wires every singleton together in one place: build the shared
// pieces once and hand them to the thing that needs them. It performs no
// validation of its own and currently always returns a nil error.
func New(cfg Config) (*Runtime, error) {
	cfg.applyDefaults()

	reg := metrics.NewRegistry()
	logger := obslog.New()

	r := &Runtime{
		cfg:           cfg,
		Keys:          keymgr.New(),
		ProcessQueues: queuemgr.NewProcessQueueManager(reg, cfg.GCGrace),
		SenderQueues:  queuemgr.NewSenderQueueManager(reg, cfg.GCGrace),
		ExactlyOnce:   queuemgr.NewExactlyOnceQueueManager(),
		Metrics:       reg,
		Logger:        logger,
		loaded:        make(map[string]string),
	}

	deps := collectionpipeline.Deps{
		Keys:          r.Keys,
		ProcessQueues: r.ProcessQueues,
		SenderQueues:  r.SenderQueues,
		ExactlyOnce:   r.ExactlyOnce,
		Metrics:       reg,
		Logger:        logger,
	}
	r.Pipelines = collectionpipeline.NewManager(deps, cfg.Project, newRunID)
	return r, nil
}

// newRunID mints an identifier for one pipeline build attempt, using
// github.com/google/uuid the same way the rest of the corpus reaches for
// it to mint opaque identifiers.
func newRunID() string {
	return uuid.NewString()
}

// LoadAll reads every "*.json" file in cfg.ConfigDir and installs it as an
// added pipeline config. Intended for first startup; subsequent changes go
// through Reload.
func (r *Runtime) LoadAll() error {
	files, err := r.scanConfigDir()
	if err != nil {
		return err
	}

	var added []collectionpipeline.ConfigUpdate
	for name, raw := range files {
		added = append(added, collectionpipeline.ConfigUpdate{Name: name, Raw: []byte(raw)})
	}
	if errs := r.Pipelines.UpdateConfigs(added, nil, nil); len(errs) != 0 {
		return errors.Join(errs...)
	}
	r.loaded = files
	return nil
}

// Reload rescans cfg.ConfigDir and diffs it against the last loaded set,
// producing added/modified/removed buckets for Manager.UpdateConfigs. A
// file whose bytes are unchanged since the last load is left alone.
func (r *Runtime) Reload() error {
	files, err := r.scanConfigDir()
	if err != nil {
		return err
	}

	var added, modified, removed []collectionpipeline.ConfigUpdate
	for name, raw := range files {
		prev, existed := r.loaded[name]
		switch {
		case !existed:
			added = append(added, collectionpipeline.ConfigUpdate{Name: name, Raw: []byte(raw)})
		case prev != raw:
			modified = append(modified, collectionpipeline.ConfigUpdate{Name: name, Raw: []byte(raw)})
		}
	}
	for name := range r.loaded {
		if _, ok := files[name]; !ok {
			removed = append(removed, collectionpipeline.ConfigUpdate{Name: name})
		}
	}

	errs := r.Pipelines.UpdateConfigs(added, modified, removed)
	r.loaded = files
	if len(errs) != 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (r *Runtime) scanConfigDir() (map[string]string, error) {
	out := make(map[string]string)
	if r.cfg.ConfigDir == "" {
		return out, nil
	}
	entries, err := os.ReadDir(r.cfg.ConfigDir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("runtime: scan config dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		raw, err := os.ReadFile(filepath.Join(r.cfg.ConfigDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("runtime: read %s: %w", e.Name(), err)
		}
		out[name] = string(raw)
	}
	return out, nil
}

// StartMetricsServer exposes /metrics on cfg.MetricsAddr via
// promhttp.HandlerFor bound to the runtime's own registry.
func (r *Runtime) StartMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.Metrics.Registerer(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{Addr: r.cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.Logger.Error("metrics server exited", zap.Error(err))
		}
	}()
}

// Run loads every pipeline config, starts the metrics server and the
// processor/sender worker pools, and blocks until ctx is cancelled, then
// shuts everything down.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.LoadAll(); err != nil {
		return err
	}
	r.StartMetricsServer()
	r.StartWorkerPools()
	<-ctx.Done()
	return r.Shutdown()
}

// Shutdown stops the worker pools, every live pipeline, and the metrics
// server, in that order: workers must stop pulling from a pipeline's
// queues before the pipeline itself is torn down, or a worker could hand
// an item to a flusher that is already mid-Stop.
func (r *Runtime) Shutdown() error {
	r.StopWorkerPools()

	var errs []error
	if errsStop := r.Pipelines.StopAll(false); len(errsStop) != 0 {
		errs = append(errs, errsStop...)
	}
	if r.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.metricsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	_ = r.Logger.Sync()
	return errors.Join(errs...)
}
