package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes one stress scenario. Values left zero in the YAML file
// keep their defaults; flags override both.
type Config struct {
	Duration      time.Duration `yaml:"duration"`
	Workers       int           `yaml:"workers"`
	Entities      int           `yaml:"entities"`
	MessageBurst  int           `yaml:"message_burst"`
	DrainInterval time.Duration `yaml:"drain_interval"`
}

func defaultConfig() Config {
	return Config{
		Duration:      10 * time.Second,
		Workers:       8,
		Entities:      10000,
		MessageBurst:  4,
		DrainInterval: 10 * time.Millisecond,
	}
}

// loadConfig returns the defaults overlaid with the YAML scenario at path,
// if one was given.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read scenario: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if cfg.Workers <= 0 || cfg.Entities <= 0 {
		return cfg, fmt.Errorf("scenario %s: workers and entities must be positive", path)
	}
	if cfg.DrainInterval <= 0 {
		return cfg, fmt.Errorf("scenario %s: drain_interval must be positive", path)
	}
	return cfg, nil
}
