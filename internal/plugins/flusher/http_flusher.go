package flusher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/messixukejia/loongcollector/internal/model"
	"github.com/messixukejia/loongcollector/internal/pluginapi"
)

func init() {
	pluginapi.RegisterFlusher("http_flusher", func() pluginapi.Flusher { return &HTTPFlusher{} })
}

type httpConfig struct {
	Endpoint     string            `json:"endpoint"`
	Headers      map[string]string `json:"headers"`
	TimeoutS     int               `json:"timeout_seconds"`
	MaxRetries   int               `json:"max_retries"`
	Compress     bool              `json:"compress"`
	CompressLvl  int               `json:"compress_level"`
}

func (c *httpConfig) applyDefaults() {
	if c.TimeoutS <= 0 {
		c.TimeoutS = 30
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.CompressLvl <= 0 {
		c.CompressLvl = 1
	}
}

func (c *httpConfig) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("http_flusher: endpoint is required")
	}
	return nil
}

// HTTPFlusher POSTs each routed group as a JSON body to a fixed endpoint.
// resty sits on top of the HTTP transport of a retryablehttp client;
// retries and backoff come from resty's own retry settings (max_retries
// attempts, 1s to 30s wait), not from retryablehttp's retry policy, which
// only runs in retryablehttp.Client.Do. Optional payload compression reuses
// one zstd encoder per flusher instance instead of allocating per send.
type HTTPFlusher struct {
	ctx        *pluginapi.Context
	cfg        httpConfig
	client     *resty.Client
	compressor *zstdCompressor
}

func (f *HTTPFlusher) Type() string { return "http_flusher" }

func (f *HTTPFlusher) Init(ctx *pluginapi.Context, params json.RawMessage) error {
	var cfg httpConfig
	if len(params) > 0 {
		if err := json.Unmarshal(params, &cfg); err != nil {
			return fmt.Errorf("http_flusher: invalid config: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = time.Second
	retryClient.RetryWaitMax = 30 * time.Second
	retryClient.Logger = nil

	client := resty.New().
		SetTimeout(time.Duration(cfg.TimeoutS) * time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		SetTransport(retryClient.HTTPClient.Transport)
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}

	f.ctx = ctx
	f.cfg = cfg
	f.client = client

	if cfg.Compress {
		comp, err := newZstdCompressor(cfg.CompressLvl)
		if err != nil {
			return err
		}
		f.compressor = comp
	}
	return nil
}

// Serialize marshals the group's events and tags into a JSON body, then
// zstd-compresses it when configured to; the queue layer stores whatever
// bytes come out without caring which.
func (f *HTTPFlusher) Serialize(g *model.EventGroup) ([]byte, error) {
	type wireGroup struct {
		Tags   map[string]string `json:"tags"`
		Events []model.Event     `json:"events"`
	}
	payload, err := json.Marshal(wireGroup{Tags: g.Tags, Events: g.Events})
	if err != nil {
		return nil, fmt.Errorf("http_flusher: marshal: %w", err)
	}
	if f.compressor != nil {
		return f.compressor.Compress(payload)
	}
	return payload, nil
}

func (f *HTTPFlusher) Send(item *model.SenderQueueItem) error {
	req := f.client.R().SetBody(bytes.NewReader(item.Bytes))
	if f.cfg.Compress {
		req.SetHeader("Content-Encoding", "zstd")
	}
	resp, err := req.Post(f.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("http_flusher: post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("http_flusher: endpoint returned %s", resp.Status())
	}
	return nil
}

func (f *HTTPFlusher) Stop(flush bool) error {
	if f.compressor != nil {
		return f.compressor.Close()
	}
	return nil
}
