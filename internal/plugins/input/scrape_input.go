package input

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/messixukejia/loongcollector/internal/model"
	"github.com/messixukejia/loongcollector/internal/pluginapi"
	"github.com/messixukejia/loongcollector/internal/queuemgr"
)

func init() {
	pluginapi.RegisterInput("scrape_input", func() pluginapi.Input { return &ScrapeInput{} })
}

type scrapeConfig struct {
	JobName         string            `json:"job_name"`
	Targets         []string          `json:"targets"`
	MetricsPath     string            `json:"metrics_path"`
	Scheme          string            `json:"scheme"`
	ScrapeIntervalS int               `json:"scrape_interval_seconds"`
	TimeoutS        int               `json:"timeout_seconds"`
	Labels          map[string]string `json:"labels"`
}

func (c *scrapeConfig) applyDefaults() {
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	if c.Scheme == "" {
		c.Scheme = "http"
	}
	if c.ScrapeIntervalS <= 0 {
		c.ScrapeIntervalS = 15
	}
	if c.TimeoutS <= 0 {
		c.TimeoutS = 10
	}
}

func (c *scrapeConfig) validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("scrape_input: at least one target is required")
	}
	return nil
}

// scrapeScheduler runs the periodic scrape loop for one target, one
// goroutine per target on its own ticker, with a blocking resty call each
// tick.
type scrapeScheduler struct {
	jobName  string
	target   string
	url      string
	labels   map[string]string
	interval time.Duration
	client   *resty.Client
	push     func(item *model.ProcessQueueItem) queuemgr.PushStatus
	inputIdx int
	logger   *zap.Logger
	paused   *atomic.Bool

	stop chan struct{}
	done chan struct{}
}

func (s *scrapeScheduler) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if s.paused != nil && s.paused.Load() {
				continue
			}
			s.scrapeOnce()
		}
	}
}

func (s *scrapeScheduler) scrapeOnce() {
	resp, err := s.client.R().Get(s.url)
	if err != nil {
		return
	}
	g := model.NewEventGroup(256)
	g.SetTag("job", s.jobName)
	g.SetTag("instance", s.target)
	for k, v := range s.labels {
		g.SetTag(k, v)
	}

	scraper := bufio.NewScanner(strings.NewReader(resp.String()))
	now := model.FromTime(time.Now())
	for scraper.Scan() {
		line := strings.TrimSpace(scraper.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := parseMetricLine(line)
		if !ok {
			continue
		}
		g.AddEvent(model.Event{
			Type: model.EventTypeMetric,
			Time: now,
			Contents: []model.KV{
				{Key: "name", Value: name},
				{Key: "value", Value: value},
			},
		})
	}
	if len(g.Events) == 0 {
		return
	}
	status := s.push(&model.ProcessQueueItem{Group: g, InputIndex: s.inputIdx, EnqueueTime: time.Now()})
	if status == queuemgr.PushQueueFull {
		// Stop scraping this target until the process queue's low
		// watermark fires FeedbackQueueAvailable; otherwise every tick
		// between now and then would build a group just to have it
		// rejected.
		if s.paused != nil {
			s.paused.Store(true)
		}
		s.logger.Sugar().Warnf("scrape_input: queue full for target %s, pausing until feedback", s.target)
		return
	}
	if status != queuemgr.PushOK {
		s.logger.Sugar().Warnf("scrape_input: push rejected for target %s: %v", s.target, status)
	}
}

// parseMetricLine splits a bare Prometheus text-exposition line ("name{labels} value")
// into its metric name and value, ignoring the label set -- the group-level
// tags already carry job/instance identity.
func parseMetricLine(line string) (name, value string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", false
	}
	namePart := fields[0]
	if i := strings.IndexByte(namePart, '{'); i >= 0 {
		namePart = namePart[:i]
	}
	if _, err := strconv.ParseFloat(fields[len(fields)-1], 64); err != nil {
		return "", "", false
	}
	return namePart, fields[len(fields)-1], true
}

// ScrapeInput polls a set of HTTP targets on a fixed interval and emits one
// metric event per exposed sample line. It implements feedback.Interface so
// its schedulers back off once the pipeline's process queue fills, instead
// of building and immediately discarding scrape results tick after tick.
type ScrapeInput struct {
	ctx        *pluginapi.Context
	cfg        scrapeConfig
	schedulers []*scrapeScheduler
	paused     atomic.Bool
	wg         sync.WaitGroup
}

func (in *ScrapeInput) Type() string { return "scrape_input" }

func (in *ScrapeInput) Init(ctx *pluginapi.Context, params json.RawMessage) error {
	var cfg scrapeConfig
	if len(params) > 0 {
		if err := json.Unmarshal(params, &cfg); err != nil {
			return fmt.Errorf("scrape_input: invalid config: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}
	in.ctx = ctx
	in.cfg = cfg
	return nil
}

func (in *ScrapeInput) Start() error {
	client := resty.New().SetTimeout(time.Duration(in.cfg.TimeoutS) * time.Second)
	in.schedulers = make([]*scrapeScheduler, 0, len(in.cfg.Targets))
	for _, target := range in.cfg.Targets {
		s := &scrapeScheduler{
			jobName:  in.cfg.JobName,
			target:   target,
			url:      fmt.Sprintf("%s://%s%s", in.cfg.Scheme, target, in.cfg.MetricsPath),
			labels:   in.cfg.Labels,
			interval: time.Duration(in.cfg.ScrapeIntervalS) * time.Second,
			client:   client,
			push:     in.ctx.Push,
			inputIdx: in.ctx.InputIndex,
			logger:   in.ctx.Logger,
			paused:   &in.paused,
			stop:     make(chan struct{}),
			done:     make(chan struct{}),
		}
		in.schedulers = append(in.schedulers, s)
		in.wg.Add(1)
		go func() {
			defer in.wg.Done()
			s.run()
		}()
	}
	return nil
}

func (in *ScrapeInput) Stop() error {
	for _, s := range in.schedulers {
		close(s.stop)
	}
	in.wg.Wait()
	return nil
}

// FeedbackQueueAvailable satisfies feedback.Interface: the process queue
// calls this once it has drained back below its low watermark, so every
// scheduler paused on a full queue resumes on its next tick.
func (in *ScrapeInput) FeedbackQueueAvailable(model.QueueKey) {
	in.paused.Store(false)
}
