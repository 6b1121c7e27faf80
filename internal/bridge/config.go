package bridge

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes the worker a Bridge owns and its timing policy.
type Config struct {
	Name    string // log tag, e.g. "reminder"
	Command string
	Args    []string
	Env     map[string]string

	ReconnectDelay time.Duration // fixed backoff between attempts
	DefaultTimeout time.Duration // per-request budget when caller passes none
	WatchWorker    bool          // sample worker CPU/RSS while connected
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "bridge"
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	return c
}

// fileConfig is the on-disk YAML shape. Durations are strings ("5s", "10s")
// so the file stays readable.
type fileConfig struct {
	Name           string            `yaml:"name"`
	Command        string            `yaml:"command"`
	Args           []string          `yaml:"args"`
	Env            map[string]string `yaml:"env"`
	ReconnectDelay string            `yaml:"reconnect_delay"`
	DefaultTimeout string            `yaml:"default_timeout"`
	WatchWorker    bool              `yaml:"watch_worker"`
}

// LoadConfig reads a bridge config from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if fc.Command == "" {
		return Config{}, fmt.Errorf("%s: command is required", path)
	}

	cfg := Config{
		Name:        fc.Name,
		Command:     fc.Command,
		Args:        fc.Args,
		Env:         fc.Env,
		WatchWorker: fc.WatchWorker,
	}
	if fc.ReconnectDelay != "" {
		d, err := time.ParseDuration(fc.ReconnectDelay)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%s: bad reconnect_delay %q", path, fc.ReconnectDelay)
		}
		cfg.ReconnectDelay = d
	}
	if fc.DefaultTimeout != "" {
		d, err := time.ParseDuration(fc.DefaultTimeout)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%s: bad default_timeout %q", path, fc.DefaultTimeout)
		}
		cfg.DefaultTimeout = d
	}
	return cfg, nil
}
