package loongcollector

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAgentConfigApplyDefaults(t *testing.T) {
	cfg := AgentConfig{}
	cfg.applyDefaults()

	if cfg.Project != "default" {
		t.Fatalf("expected default project, got %q", cfg.Project)
	}
	if cfg.ConfigDir != "./data/pipelines" {
		t.Fatalf("expected default config dir, got %q", cfg.ConfigDir)
	}
	if cfg.MetricsAddr != ":9100" || cfg.AdminAddr != ":9101" || cfg.DashboardAddr != ":9102" {
		t.Fatalf("unexpected default addresses: %+v", cfg)
	}
	if cfg.GCGrace != 30*time.Second {
		t.Fatalf("expected default gc grace, got %v", cfg.GCGrace)
	}
	if cfg.ReloadPeriod != 10*time.Second {
		t.Fatalf("expected default reload period, got %v", cfg.ReloadPeriod)
	}
}

func TestAgentConfigValidateRejectsEmptyConfigDir(t *testing.T) {
	cfg := AgentConfig{}
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected validate to reject an empty config dir")
	}
	cfg.ConfigDir = "./somewhere"
	if err := cfg.validate(); err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	raw := "project: prod\nconfig_dir: ./pipelines\nmetrics_addr: :9200\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if cfg.Project != "prod" {
		t.Fatalf("expected project prod, got %q", cfg.Project)
	}
	if cfg.ConfigDir != "./pipelines" {
		t.Fatalf("expected configured config dir, got %q", cfg.ConfigDir)
	}
	if cfg.MetricsAddr != ":9200" {
		t.Fatalf("expected configured metrics addr, got %q", cfg.MetricsAddr)
	}
	// untouched fields should still pick up their defaults.
	if cfg.AdminAddr != ":9101" {
		t.Fatalf("expected default admin addr, got %q", cfg.AdminAddr)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestNewRejectsNilConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("expected New to reject a nil config")
	}
}

func TestAgentNewAndShutdown(t *testing.T) {
	cfg := &AgentConfig{
		ConfigDir:     t.TempDir(),
		MetricsAddr:   freeAddr(t),
		AdminAddr:     freeAddr(t),
		DashboardAddr: freeAddr(t),
	}
	cfg.applyDefaults()

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if a.Runtime() == nil {
		t.Fatalf("expected a non-nil runtime")
	}
	if err := a.Shutdown(); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a free port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}
