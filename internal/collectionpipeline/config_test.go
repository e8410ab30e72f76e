package collectionpipeline

import "testing"

func TestParseConfigAppliesQueueDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"inputs":[],"flushers":[{"Type":"fake_flusher"}]}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if cfg.Global.ProcessQueueCapacity != 1024 {
		t.Fatalf("expected default process queue capacity, got %d", cfg.Global.ProcessQueueCapacity)
	}
	if cfg.Global.SenderQueueCapacity != 1024 {
		t.Fatalf("expected default sender queue capacity, got %d", cfg.Global.SenderQueueCapacity)
	}
	if len(cfg.RouteDefault) != 0 {
		t.Fatalf("expected no default route override when RouteDefault is absent, got %v", cfg.RouteDefault)
	}
}

func TestParseConfigDecodesRouteDefault(t *testing.T) {
	raw := `{
		"inputs": [],
		"flushers": [{"Type":"fake_flusher"}, {"Type":"fake_flusher"}],
		"RouteDefault": [1]
	}`
	cfg, err := ParseConfig([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(cfg.RouteDefault) != 1 || cfg.RouteDefault[0] != 1 {
		t.Fatalf("expected RouteDefault [1], got %v", cfg.RouteDefault)
	}
}

func TestParseConfigDecodesPluginTypeAndRaw(t *testing.T) {
	raw := `{
		"inputs": [{"Type":"fake_input","path":"/tmp/x"}],
		"flushers": [{"Type":"fake_flusher"}]
	}`
	cfg, err := ParseConfig([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(cfg.Inputs) != 1 || cfg.Inputs[0].Type != "fake_input" {
		t.Fatalf("expected one fake_input entry, got %v", cfg.Inputs)
	}
	if len(cfg.Inputs[0].Raw) == 0 {
		t.Fatalf("expected the raw input object to be preserved for the plugin's own Init")
	}
}
