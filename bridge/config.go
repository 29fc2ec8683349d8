package bridge

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the top-level YAML configuration for the otfit daemon.
// Zero values take defaults; cmd flags override the file.
type FileConfig struct {
	DBPath   string `yaml:"db_path"`
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`

	FitDiT SpaceConfig `yaml:"fitdit"`
	Leffa  SpaceConfig `yaml:"leffa"`

	Watch   WatchFileConfig   `yaml:"watch"`
	Browser BrowserFileConfig `yaml:"browser"`
}

// SpaceConfig points at a hosted model space.
type SpaceConfig struct {
	Space       string `yaml:"space"`
	ResolveBase string `yaml:"resolve_base"`
}

// WatchFileConfig controls the store change watcher.
type WatchFileConfig struct {
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

// BrowserFileConfig controls the optional picker browser attachment.
type BrowserFileConfig struct {
	RemoteURL string `yaml:"remote_url"`
	Headless  bool   `yaml:"headless"`
}

func (c *FileConfig) defaults() {
	if c.DBPath == "" {
		c.DBPath = "otfit.db"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8547"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = 200 * time.Millisecond
	}
	if c.Watch.Debounce < 0 {
		c.Watch.Debounce = 0
	}
}

// DefaultFileConfig returns a config with every default applied.
func DefaultFileConfig() *FileConfig {
	cfg := &FileConfig{}
	cfg.defaults()
	return cfg
}

// LoadConfigFile reads a YAML config file and applies defaults.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("bridge: parse config %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}
