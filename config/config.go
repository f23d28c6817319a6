package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Server describes one simulated inference server.
type Server struct {
	ID       int     `yaml:"id"`
	Capacity float64 `yaml:"capacity"`
}

// Request describes one inference request to admit during the run.
type Request struct {
	ID       int     `yaml:"id"`
	Kind     string  `yaml:"kind"`
	Priority int     `yaml:"priority"`
	Cost     float64 `yaml:"cost"`
}

// Config holds all configuration for a run.
type Config struct {
	Servers  []Server  `yaml:"servers"`
	Requests []Request `yaml:"requests"`

	// Policy is one of RR, SJF, PRIORIDADE. Unknown values are not fatal:
	// the fleet falls back to RR and main logs the fallback.
	Policy string `yaml:"policy"`

	// MigrationThreshold is the max/min load-skew ratio that triggers a
	// migration. Zero selects the built-in default.
	MigrationThreshold float64 `yaml:"migration_threshold"`

	// Seed for the arrival-delay source. Zero means derive one from the
	// clock (non-reproducible run).
	Seed uint64 `yaml:"seed"`

	// JournalPath, when set, enables the scheduling-decision journal.
	JournalPath string `yaml:"journal"`

	// MetricsAddr, when set, serves prometheus metrics during the run,
	// e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr"`
}

// Load reads a YAML config file from the given path and returns the parsed
// Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks that all config values are valid. An empty server or
// request list is an error: the simulation must refuse to start rather than
// enter an undefined run.
func (c *Config) validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("no servers configured")
	}
	if len(c.Requests) == 0 {
		return fmt.Errorf("no requests configured")
	}

	seenServer := make(map[int]bool, len(c.Servers))
	for _, s := range c.Servers {
		if s.ID <= 0 {
			return fmt.Errorf("server id %d: must be positive", s.ID)
		}
		if seenServer[s.ID] {
			return fmt.Errorf("server id %d: duplicated", s.ID)
		}
		seenServer[s.ID] = true
		if s.Capacity <= 0 {
			return fmt.Errorf("server %d: capacity must be positive, got %v", s.ID, s.Capacity)
		}
	}

	seenRequest := make(map[int]bool, len(c.Requests))
	for _, r := range c.Requests {
		if r.ID <= 0 {
			return fmt.Errorf("request id %d: must be positive", r.ID)
		}
		if seenRequest[r.ID] {
			return fmt.Errorf("request id %d: duplicated", r.ID)
		}
		seenRequest[r.ID] = true
		if r.Priority <= 0 {
			return fmt.Errorf("request %d: priority must be positive, got %d", r.ID, r.Priority)
		}
		if r.Cost <= 0 {
			return fmt.Errorf("request %d: cost must be positive, got %v", r.ID, r.Cost)
		}
	}

	if c.MigrationThreshold != 0 && c.MigrationThreshold <= 1 {
		return fmt.Errorf("migration_threshold must be greater than 1, got %v", c.MigrationThreshold)
	}

	return nil
}
