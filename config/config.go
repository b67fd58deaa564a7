// Package config holds the layered cache settings. Precedence, lowest to
// highest: built-in defaults, YAML config file, environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by the manager.
const (
	BackendMemory   = "memory"
	BackendDisk     = "disk"
	BackendRedis    = "redis"
	BackendBigcache = "bigcache"
)

// Config is the full cache configuration. Environment overrides apply only
// to variables that are actually set.
type Config struct {
	Enabled           bool   `yaml:"enabled" env:"APICACHE_ENABLED"`
	Backend           string `yaml:"backend" env:"APICACHE_BACKEND"`
	DefaultTTLSeconds int    `yaml:"default_ttl_seconds" env:"APICACHE_DEFAULT_TTL_SECONDS"`
	MaxEntries        int    `yaml:"max_entries" env:"APICACHE_MAX_ENTRIES"`

	// ConnectionString is backend-specific (redis URL today).
	ConnectionString string `yaml:"connection_string" env:"APICACHE_CONNECTION_STRING"`
	// CacheDirectory is the disk backend's root.
	CacheDirectory string `yaml:"cache_directory" env:"APICACHE_CACHE_DIRECTORY"`

	// Endpoints maps "domain" or "domain.operation" to a TTL override.
	Endpoints map[string]Endpoint `yaml:"endpoints"`
}

// Endpoint is one per-endpoint override. In YAML it may be written as a bare
// integer TTL or as an object with a ttl field:
//
//	endpoints:
//	  light: 30
//	  light.status: {ttl: 10}
type Endpoint struct {
	TTLSeconds int
}

func (e *Endpoint) UnmarshalYAML(node *yaml.Node) error {
	var bare int
	if err := node.Decode(&bare); err == nil {
		e.TTLSeconds = bare
		return nil
	}
	var obj struct {
		TTL int `yaml:"ttl"`
	}
	if err := node.Decode(&obj); err != nil {
		return fmt.Errorf("endpoint override must be an integer or {ttl: n}: %w", err)
	}
	e.TTLSeconds = obj.TTL
	return nil
}

func (e Endpoint) MarshalYAML() (any, error) { return e.TTLSeconds, nil }

// Default returns the built-in configuration layer.
func Default() *Config {
	return &Config{
		Enabled:           true,
		Backend:           BackendMemory,
		DefaultTTLSeconds: 300,
		MaxEntries:        1000,
	}
}

// Load builds the effective configuration. path may be empty (no file
// layer); a named file must exist and parse.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	return cfg, nil
}

// DefaultTTL converts the global TTL to a duration; 0 means no expiry.
func (c *Config) DefaultTTL() time.Duration {
	if c.DefaultTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// EndpointTTL resolves the TTL for one endpoint: "domain.operation" exact,
// then "domain", then the global default.
func (c *Config) EndpointTTL(domain, operation string) time.Duration {
	if e, ok := c.Endpoints[domain+"."+operation]; ok {
		return time.Duration(e.TTLSeconds) * time.Second
	}
	if e, ok := c.Endpoints[domain]; ok {
		return time.Duration(e.TTLSeconds) * time.Second
	}
	return c.DefaultTTL()
}
