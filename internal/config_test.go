package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	pkgconfig "github.com/ferrost/othala/pkg/config"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Vault.APIKey = "secret"
	return cfg
}

func TestDefaultConfigValidates(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigValidationFailures(t *testing.T) {
	cases := map[string]func(*Config){
		"zero port":         func(c *Config) { c.App.HTTP.Port = 0 },
		"port out of range": func(c *Config) { c.App.HTTP.Port = 70000 },
		"missing api url":   func(c *Config) { c.Vault.APIURL = "" },
		"missing api key":   func(c *Config) { c.Vault.APIKey = "" },
		"bad auth mode":     func(c *Config) { c.Auth.Mode = "basic" },
		"token mode no key": func(c *Config) { c.Auth.Mode = AuthModeToken; c.Auth.Token = "" },
		"sub-second ttl":    func(c *Config) { c.Cache.StructureTTL = Duration(time.Millisecond) },
		"tiny chunk size":   func(c *Config) { c.Stream.ChunkSize = 8 },
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: validation passed", name)
		}
	}
}

func TestAuthEnabled(t *testing.T) {
	cfg := validConfig()
	if cfg.Auth.AuthEnabled() {
		t.Error("auth enabled by default")
	}
	cfg.Auth.Mode = AuthModeToken
	cfg.Auth.Token = "tok"
	if !cfg.Auth.AuthEnabled() {
		t.Error("token mode not reported as enabled")
	}
}

func TestLoadFromYAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_VAULT_KEY", "expanded-key")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  http:
    port: 9999
vault:
  api_url: https://localhost:27124
  api_key: ${TEST_VAULT_KEY}
  path: /tmp/vault
cache:
  structure_ttl: 2m
  notes_ttl: 90s
  resource_ttl: 2m
stream:
  chunk_size: 512
  frame_delay: 5ms
watcher:
  enabled: true
  debounce: 300ms
templates:
  enabled: false
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9999 {
		t.Errorf("port = %d", cfg.App.HTTP.Port)
	}
	if cfg.Vault.APIKey != "expanded-key" {
		t.Errorf("api key = %q, env not expanded", cfg.Vault.APIKey)
	}
	if cfg.Cache.NotesTTL.Std() != 90*time.Second {
		t.Errorf("notes ttl = %v", cfg.Cache.NotesTTL)
	}
	if !cfg.Watcher.Enabled || cfg.Watcher.Debounce.Std() != 300*time.Millisecond {
		t.Errorf("watcher = %+v", cfg.Watcher)
	}
	if cfg.Templates.Enabled {
		t.Error("templates not disabled by file")
	}
}
