package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Octogonapus/StorageRace/benchmark"
	objectprovider "github.com/Octogonapus/StorageRace/object_provider"
	"github.com/Octogonapus/StorageRace/progress"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type ProviderConfig struct {
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options"`
}

type RaceConfig struct {
	ObjectSizeBytes  int64         `yaml:"objectSizeBytes"`
	ObjectCount      int           `yaml:"objectCount"`
	Concurrency      int           `yaml:"concurrency"`
	KeyPrefix        string        `yaml:"keyPrefix"`
	PartSizeMB       int           `yaml:"partSizeMB"`
	PassTimeout      time.Duration `yaml:"passTimeout"`
	ProgressInterval time.Duration `yaml:"progressInterval"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Providers []ProviderConfig `yaml:"providers"`
	Race      RaceConfig       `yaml:"race"`
	Server    ServerConfig     `yaml:"server"`
}

// Load reads a YAML config file. Environment variables in the file are expanded first, so
// credentials can stay out of it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}
	err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Defaults()
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults fills every zero value that has a sensible default.
func (c *Config) Defaults() {
	if c.Race.ObjectSizeBytes == 0 {
		c.Race.ObjectSizeBytes = 1024 * 1024
	}
	if c.Race.ObjectCount == 0 {
		c.Race.ObjectCount = 100
	}
	if c.Race.Concurrency == 0 {
		c.Race.Concurrency = 16
	}
	if c.Race.KeyPrefix == "" {
		c.Race.KeyPrefix = "storagerace/"
	}
	if c.Race.PassTimeout == 0 {
		c.Race.PassTimeout = benchmark.DefaultPassTimeout
	}
	if c.Race.ProgressInterval == 0 {
		c.Race.ProgressInterval = progress.DefaultInterval
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

func (c *Config) Validate() error {
	seen := map[string]bool{}
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("%w: provider %d has no name", ErrInvalidConfig, i)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate provider name %q", ErrInvalidConfig, p.Name)
		}
		seen[p.Name] = true
		if !objectprovider.IsKnownProvider(p.Type) {
			return fmt.Errorf("%w: provider %q has unknown type %q, expected one of %s", ErrInvalidConfig, p.Name, p.Type, objectprovider.ExplainProviders())
		}
	}
	if c.Race.PassTimeout < 0 || c.Race.ProgressInterval < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) Provider(name string) (*ProviderConfig, error) {
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			return &c.Providers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no provider named %q", ErrInvalidConfig, name)
}

// Request is the race section as a benchmark request.
func (c *Config) Request() benchmark.BenchmarkRequest {
	return benchmark.BenchmarkRequest{
		ObjectSizeBytes: c.Race.ObjectSizeBytes,
		ObjectCount:     c.Race.ObjectCount,
		Concurrency:     c.Race.Concurrency,
		KeyPrefix:       c.Race.KeyPrefix,
		PartSizeMB:      c.Race.PartSizeMB,
	}
}
