// Package loongcollector re-exports pkg/loongcollector at the module root
// so consumers can import github.com/messixukejia/loongcollector directly
// instead of reaching into pkg/.
package loongcollector

import (
	base "github.com/messixukejia/loongcollector/pkg/loongcollector"
)

type (
	Config             = base.Config
	Agent              = base.Agent
	CollectionPipeline = base.CollectionPipeline
	ConfigUpdate       = base.ConfigUpdate
)

// LoadConfig reads and validates an AgentConfig from a YAML file on disk.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Conf loads a config file and builds an Agent ready to Run.
func Conf(path string) (*Agent, error) {
	return base.Conf(path)
}

// New builds an Agent from an already-loaded Config.
func New(cfg *Config) (*Agent, error) {
	return base.New(cfg)
}
