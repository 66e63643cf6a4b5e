package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type config struct {
	Port            string `yaml:"port"`
	AgentServiceURL string `yaml:"agentServiceURL"`
	CachePath       string `yaml:"cachePath"`
	// StepLogHideDelay is the grace delay before the step log collapses
	// after a finished turn, e.g. "2s".
	StepLogHideDelay duration `yaml:"stepLogHideDelay"`
}

// duration lets the config carry human-readable values like "2s" or "500ms".
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("error parsing duration %q: %w", value.Value, err)
	}
	*d = duration(parsed)
	return nil
}

func defaultConfig() config {
	return config{
		Port:             "8081",
		AgentServiceURL:  "http://localhost:8000",
		StepLogHideDelay: duration(2 * time.Second),
	}
}

// loadConfig reads the yaml config at path, falling back to defaults when the
// file does not exist. Missing fields keep their defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	if cfg.Port == "" {
		cfg.Port = defaultConfig().Port
	}
	if cfg.AgentServiceURL == "" {
		cfg.AgentServiceURL = defaultConfig().AgentServiceURL
	}
	if cfg.StepLogHideDelay <= 0 {
		cfg.StepLogHideDelay = defaultConfig().StepLogHideDelay
	}
	return cfg, nil
}
