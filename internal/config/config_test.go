package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
server:
  url: https://registro.example.com
  token: abc
  headers:
    X-School: "7"
topics:
  - nuovo_voto
  - nuova_comunicazione
reconnect:
  base_delay: 500ms
  max_attempts: 0
  cancel_on_disconnect: false
metrics:
  addr: ":9102"
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Server.URL != "https://registro.example.com" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Server.Headers["X-School"] != "7" {
		t.Errorf("Server.Headers = %v", cfg.Server.Headers)
	}
	if len(cfg.Topics) != 2 || cfg.Topics[1] != "nuova_comunicazione" {
		t.Errorf("Topics = %v", cfg.Topics)
	}
	if cfg.Reconnect.BaseDelay != 500*time.Millisecond {
		t.Errorf("Reconnect.BaseDelay = %s", cfg.Reconnect.BaseDelay)
	}
	if *cfg.Reconnect.MaxAttempts != 0 {
		t.Errorf("explicit max_attempts 0 must survive defaults, got %d", *cfg.Reconnect.MaxAttempts)
	}
	if *cfg.Reconnect.CancelOnDisconnect {
		t.Errorf("Reconnect.CancelOnDisconnect = true, want false")
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_REGISTRO_TOKEN", "secret123")

	path := writeTempFile(t, `
server:
  url: http://localhost:3000
  token: ${TEST_REGISTRO_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Token != "secret123" {
		t.Errorf("Server.Token = %q, want %q", cfg.Server.Token, "secret123")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeTempFile(t, `
server:
  url: http://localhost:3000
  retries: 3
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Path != "/socket.io/" {
		t.Errorf("Server.Path = %q", cfg.Server.Path)
	}
	if cfg.Server.Namespace != "/" {
		t.Errorf("Server.Namespace = %q", cfg.Server.Namespace)
	}
	if cfg.Server.HandshakeTimeout != 10*time.Second {
		t.Errorf("Server.HandshakeTimeout = %s", cfg.Server.HandshakeTimeout)
	}
	if cfg.Reconnect.BaseDelay != time.Second {
		t.Errorf("Reconnect.BaseDelay = %s", cfg.Reconnect.BaseDelay)
	}
	if *cfg.Reconnect.MaxAttempts != 5 {
		t.Errorf("Reconnect.MaxAttempts = %d", *cfg.Reconnect.MaxAttempts)
	}
	if !*cfg.Reconnect.CancelOnDisconnect {
		t.Errorf("Reconnect.CancelOnDisconnect = false")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.History.Size != 100 {
		t.Errorf("History.Size = %d", cfg.History.Size)
	}
}

func TestValidate(t *testing.T) {
	negative := -1

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing url", func(c *Config) { c.Server.URL = "" }, "server.url is required"},
		{"bad scheme", func(c *Config) { c.Server.URL = "ftp://x" }, "server.url"},
		{"namespace", func(c *Config) { c.Server.Namespace = "registro" }, "server.namespace"},
		{"empty topic", func(c *Config) { c.Topics = []string{""} }, "topics[0] is empty"},
		{"lifecycle topic", func(c *Config) { c.Topics = []string{"nuovo_voto", "disconnect"} }, "topics[1]"},
		{"base delay", func(c *Config) { c.Reconnect.BaseDelay = -time.Second }, "reconnect.base_delay"},
		{"max attempts", func(c *Config) { c.Reconnect.MaxAttempts = &negative }, "reconnect.max_attempts"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"metrics path", func(c *Config) { c.Metrics.Addr = ":9102"; c.Metrics.Path = "metrics" }, "metrics.path"},
		{"history", func(c *Config) { c.History.Size = -1 }, "history.size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Server.URL = "https://registro.example.com"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
