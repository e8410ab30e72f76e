// Package input holds the Input plugin implementations a collection
// pipeline can wire up by config "Type" name.
package input

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/messixukejia/loongcollector/internal/model"
	"github.com/messixukejia/loongcollector/internal/pluginapi"
	"github.com/messixukejia/loongcollector/internal/queuemgr"
)

func init() {
	pluginapi.RegisterInput("opcua_input", func() pluginapi.Input { return &OPCUAInput{} })
}

// OPCUANodeConfig describes one monitored OPC UA node.
type OPCUANodeConfig struct {
	NodeID   string `json:"node_id"`
	SensorID string `json:"sensor_id"`
	ValueKey string `json:"value_key"`
}

// opcuaConfig is the JSON shape for an "opcua_input" plugin entry.
type opcuaConfig struct {
	Endpoint         string            `json:"endpoint"`
	Username         string            `json:"username"`
	Password         string            `json:"password"`
	SecurityMode     string            `json:"security_mode"`
	SecurityPolicy   string            `json:"security_policy"`
	ApplicationName  string            `json:"application_name"`
	PublishInterval  time.Duration     `json:"publish_interval_ms"`
	SamplingInterval time.Duration     `json:"sampling_interval_ms"`
	Nodes            []OPCUANodeConfig `json:"nodes"`
}

func (c *opcuaConfig) applyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "loongcollector"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 250
	}
	for i := range c.Nodes {
		if c.Nodes[i].SensorID == "" {
			c.Nodes[i].SensorID = c.Nodes[i].NodeID
		}
		if c.Nodes[i].ValueKey == "" {
			c.Nodes[i].ValueKey = "value"
		}
	}
}

func (c *opcuaConfig) validate() error {
	if c.Endpoint == "" {
		return errors.New("opcua_input: endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("opcua_input: at least one node must be configured")
	}
	return nil
}

// OPCUAInput subscribes to a set of OPC UA nodes and pushes one EventGroup
// per data-change notification into the owning pipeline's process queue.
type OPCUAInput struct {
	ctx    *pluginapi.Context
	cfg    opcuaConfig
	client *opcua.Client
	sub    *opcua.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup

	handleMap map[uint32]OPCUANodeConfig
	mu        sync.Mutex
	seq       map[string]uint64
	started   bool
}

func (in *OPCUAInput) Type() string { return "opcua_input" }

func (in *OPCUAInput) Init(ctx *pluginapi.Context, params json.RawMessage) error {
	var cfg opcuaConfig
	if len(params) > 0 {
		if err := json.Unmarshal(params, &cfg); err != nil {
			return fmt.Errorf("opcua_input: invalid config: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}
	in.ctx = ctx
	in.cfg = cfg
	in.seq = make(map[string]uint64)
	return nil
}

func (in *OPCUAInput) Start() error {
	in.mu.Lock()
	if in.started {
		in.mu.Unlock()
		return fmt.Errorf("opcua_input: already started")
	}
	in.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	clientOpts := in.buildClientOptions()

	client, err := opcua.NewClient(in.cfg.Endpoint, clientOpts...)
	if err != nil {
		cancel()
		return fmt.Errorf("opcua_input: new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		cancel()
		return fmt.Errorf("opcua_input: connect: %w", err)
	}

	notifyCh := make(chan *opcua.PublishNotificationData, len(in.cfg.Nodes)*4)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: in.cfg.PublishInterval * time.Millisecond,
	}, notifyCh)
	if err != nil {
		cancel()
		_ = client.Close(ctx)
		return fmt.Errorf("opcua_input: subscribe: %w", err)
	}

	handleMap := make(map[uint32]OPCUANodeConfig, len(in.cfg.Nodes))
	for i, node := range in.cfg.Nodes {
		nodeID, err := ua.ParseNodeID(node.NodeID)
		if err != nil {
			in.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("opcua_input: parse node id %q: %w", node.NodeID, err)
		}
		handle := uint32(i + 1)
		req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, handle)
		if in.cfg.SamplingInterval > 0 {
			req.RequestedParameters.SamplingInterval = float64(in.cfg.SamplingInterval)
		}
		res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
		if err != nil {
			in.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("opcua_input: monitor node %q: %w", node.NodeID, err)
		}
		if len(res.Results) == 0 || res.Results[0].StatusCode != ua.StatusOK {
			in.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("opcua_input: monitor node %q failed", node.NodeID)
		}
		handleMap[handle] = node
	}

	in.mu.Lock()
	in.client = client
	in.sub = sub
	in.cancel = cancel
	in.handleMap = handleMap
	in.started = true
	in.mu.Unlock()

	in.wg.Add(1)
	go in.consume(ctx, notifyCh)
	return nil
}

func (in *OPCUAInput) Stop() error {
	in.mu.Lock()
	if !in.started {
		in.mu.Unlock()
		return nil
	}
	cancel := in.cancel
	sub := in.sub
	client := in.client
	in.started = false
	in.cancel = nil
	in.sub = nil
	in.client = nil
	in.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()

	var err error
	if sub != nil {
		if e := sub.Cancel(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	if client != nil {
		if e := client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}

	in.wg.Wait()
	return err
}

func (in *OPCUAInput) consume(ctx context.Context, ch <-chan *opcua.PublishNotificationData) {
	defer in.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-ch:
			if notif == nil || notif.Error != nil {
				continue
			}
			in.processNotification(notif.Value)
		}
	}
}

func (in *OPCUAInput) processNotification(val interface{}) {
	data, ok := val.(*ua.DataChangeNotification)
	if !ok {
		return
	}

	for _, item := range data.MonitoredItems {
		nodeCfg, ok := in.handleMap[item.ClientHandle]
		if !ok {
			continue
		}
		fv, ok := variantToFloat(item.Value.Value)
		if !ok {
			in.ctx.Logger.Sugar().Warnf("opcua_input: skipping node %s, unsupported type %T", nodeCfg.NodeID, item.Value.Value)
			continue
		}

		ts := item.Value.ServerTimestamp
		if ts.IsZero() {
			ts = item.Value.SourceTimestamp
		}
		if ts.IsZero() {
			ts = time.Now()
		}

		g := model.NewEventGroup(64)
		g.SetTag("sensor_id", nodeCfg.SensorID)
		g.SetTag("source_node_id", nodeCfg.NodeID)
		g.AddEvent(model.Event{
			Type: model.EventTypeMetric,
			Time: model.FromTime(ts),
			Contents: []model.KV{
				{Key: nodeCfg.ValueKey, Value: fmt.Sprintf("%g", fv)},
				{Key: "seq", Value: fmt.Sprintf("%d", in.nextSeq(nodeCfg.SensorID))},
			},
		})

		if status := in.ctx.Push(&model.ProcessQueueItem{
			Group:       g,
			InputIndex:  in.ctx.InputIndex,
			EnqueueTime: time.Now(),
		}); status != queuemgr.PushOK {
			in.ctx.Logger.Sugar().Warnf("opcua_input: push rejected for sensor %s: %v", nodeCfg.SensorID, status)
		}
	}
}

func (in *OPCUAInput) nextSeq(sensor string) uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	next := in.seq[sensor] + 1
	in.seq[sensor] = next
	return next
}

func (in *OPCUAInput) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(in.cfg.SecurityMode),
		opcua.SecurityPolicy(in.cfg.SecurityPolicy),
		opcua.ApplicationName(in.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if in.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(in.cfg.Username, in.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func (in *OPCUAInput) cleanupOnError(ctx context.Context, cancel context.CancelFunc, sub *opcua.Subscription, client *opcua.Client) {
	cancel()
	if sub != nil {
		_ = sub.Cancel(ctx)
	}
	if client != nil {
		_ = client.Close(ctx)
	}
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
