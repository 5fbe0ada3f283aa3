package vilabot

import (
	coreconfig "github.com/m3rciful/chatbots/core/config"
	coredatabase "github.com/m3rciful/chatbots/core/database"
)

// Config is the vilabot configuration document.
type Config struct {
	coreconfig.Config `yaml:",inline"`
	Database          coredatabase.Config `yaml:"database"`
}

// CoreConfig exposes the shared section to the runner.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// LoadConfig reads path and overlays the environment.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg, &cfg.Config); err != nil {
		return nil, err
	}
	return &cfg, nil
}
