// Package config loads the runner CLI settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL     = "http://127.0.0.1:5179"
	DefaultTimeout     = 30 * time.Second
	DefaultStatePath   = "configs/cli_state.json"
	DefaultHistoryFile = "configs/.cli_history"
)

// Config holds CLI configuration. PrettyJSON is a pointer so an explicit
// false in the file is distinguishable from an absent key.
type Config struct {
	BaseURL     string        `yaml:"baseURL"`
	Timeout     time.Duration `yaml:"timeout"`
	StatePath   string        `yaml:"statePath"`
	HistoryFile string        `yaml:"historyFile"`
	PrettyJSON  *bool         `yaml:"prettyJSON"`
}

// Pretty reports whether replies are printed indented.
func (c Config) Pretty() bool {
	return c.PrettyJSON != nil && *c.PrettyJSON
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&c.BaseURL, DefaultBaseURL)
	fill(&c.StatePath, DefaultStatePath)
	fill(&c.HistoryFile, DefaultHistoryFile)
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PrettyJSON == nil {
		c.PrettyJSON = new(bool)
	}
	return c
}
