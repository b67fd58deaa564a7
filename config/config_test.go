package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Enabled || cfg.Backend != BackendMemory {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.DefaultTTL() != 5*time.Minute {
		t.Fatalf("DefaultTTL = %v", cfg.DefaultTTL())
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
backend: disk
default_ttl_seconds: 60
cache_directory: /tmp/apicache-test
endpoints:
  light: 30
  light.status: {ttl: 10}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendDisk || cfg.DefaultTTLSeconds != 60 {
		t.Fatalf("file layer not applied: %+v", cfg)
	}
	// untouched fields keep their defaults
	if !cfg.Enabled || cfg.MaxEntries != 1000 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "backend: disk\n")
	t.Setenv("APICACHE_BACKEND", "redis")
	t.Setenv("APICACHE_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendRedis {
		t.Fatalf("env should win over file, got backend %q", cfg.Backend)
	}
	if cfg.Enabled {
		t.Fatal("APICACHE_ENABLED=false not applied")
	}
}

func TestEndpointTTLLookupOrder(t *testing.T) {
	path := writeConfig(t, `
default_ttl_seconds: 300
endpoints:
  light: 30
  light.status: {ttl: 10}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.EndpointTTL("light", "status"); got != 10*time.Second {
		t.Fatalf("exact endpoint TTL = %v, want 10s", got)
	}
	if got := cfg.EndpointTTL("light", "list"); got != 30*time.Second {
		t.Fatalf("domain TTL = %v, want 30s", got)
	}
	if got := cfg.EndpointTTL("climate", "status"); got != 300*time.Second {
		t.Fatalf("fallthrough TTL = %v, want 300s", got)
	}
}

func TestMissingNamedFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestMalformedEndpointRejected(t *testing.T) {
	path := writeConfig(t, "endpoints:\n  light: [1, 2]\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed endpoint override")
	}
}
