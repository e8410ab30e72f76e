// Package loongcollector is the public facade over internal/runtime: a
// small set of type aliases and constructors so downstream code can
// import one package instead of reaching into internal/.
package loongcollector

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/messixukejia/loongcollector/internal/runtime"
)

// AgentConfig is the top-level YAML document a loongcollector process
// loads at startup: one struct, yaml tags, applyDefaults then validate.
type AgentConfig struct {
	Project      string        `yaml:"project"`
	ConfigDir    string        `yaml:"config_dir"`
	MetricsAddr  string        `yaml:"metrics_addr"`
	AdminAddr    string        `yaml:"admin_addr"`
	DashboardAddr string       `yaml:"dashboard_addr"`
	GCGrace      time.Duration `yaml:"gc_grace"`
	ReloadPeriod time.Duration `yaml:"reload_period"`
}

func (c *AgentConfig) applyDefaults() {
	if c.Project == "" {
		c.Project = "default"
	}
	if c.ConfigDir == "" {
		c.ConfigDir = "./data/pipelines"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9100"
	}
	if c.AdminAddr == "" {
		c.AdminAddr = ":9101"
	}
	if c.DashboardAddr == "" {
		c.DashboardAddr = ":9102"
	}
	if c.GCGrace <= 0 {
		c.GCGrace = 30 * time.Second
	}
	if c.ReloadPeriod <= 0 {
		c.ReloadPeriod = 10 * time.Second
	}
}

func (c *AgentConfig) validate() error {
	if c.ConfigDir == "" {
		return fmt.Errorf("config_dir is required")
	}
	return nil
}

// LoadConfig reads and validates an AgentConfig from a YAML file on disk.
func LoadConfig(path string) (*AgentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg AgentConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AgentConfig) toRuntimeConfig() runtime.Config {
	return runtime.Config{
		Project:     c.Project,
		ConfigDir:   c.ConfigDir,
		MetricsAddr: c.MetricsAddr,
		GCGrace:     c.GCGrace,
	}
}
