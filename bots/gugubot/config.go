package gugubot

import (
	"fmt"
	"os"

	coreconfig "github.com/m3rciful/chatbots/core/config"
	coredatabase "github.com/m3rciful/chatbots/core/database"
	"github.com/m3rciful/chatbots/core/game"
)

// GameConfig tunes the photo hunt.
type GameConfig struct {
	// PromptsFile lists one object per line; empty selects the built-in list.
	PromptsFile string `yaml:"prompts_file" envconfig:"GAME_PROMPTS_FILE"`
	MinPlayers  int    `yaml:"min_players" envconfig:"GAME_MIN_PLAYERS"`
	// Optional local animations sent when a game starts or ends.
	StartAnimation  string `yaml:"start_animation"`
	FinishAnimation string `yaml:"finish_animation"`
}

// Config is the gugubot configuration document.
type Config struct {
	coreconfig.Config `yaml:",inline"`
	Database          coredatabase.Config `yaml:"database"`
	Game              GameConfig          `yaml:"game"`
}

// CoreConfig exposes the shared section to the runner.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// LoadConfig reads path, overlays the environment and applies defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg, &cfg.Config); err != nil {
		return nil, err
	}
	if cfg.Game.MinPlayers <= 0 {
		cfg.Game.MinPlayers = 2
	}
	return &cfg, nil
}

// Prompts returns the configured prompt list.
func (g GameConfig) Prompts() ([]string, error) {
	if g.PromptsFile == "" {
		return game.DefaultPrompts(), nil
	}
	data, err := os.ReadFile(g.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	prompts := game.ParsePrompts(string(data))
	if len(prompts) == 0 {
		return nil, fmt.Errorf("prompts file %s is empty", g.PromptsFile)
	}
	return prompts, nil
}
