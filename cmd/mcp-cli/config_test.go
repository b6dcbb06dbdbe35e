package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() failed: %v", err)
	}

	want := defaultConfig()
	if cfg != want {
		t.Fatalf("loadConfig(\"\") = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := writeConfigFile(t, `
transport = "sse"
url = "http://localhost:8080/sse"
request_timeout = "5s"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() failed: %v", err)
	}

	if cfg.Transport != "sse" {
		t.Errorf("Transport = %q, want sse", cfg.Transport)
	}
	if cfg.URL != "http://localhost:8080/sse" {
		t.Errorf("URL = %q, want the configured url", cfg.URL)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %s, want 5s", cfg.RequestTimeout)
	}

	// Keys absent from the file keep their defaults.
	def := defaultConfig()
	if cfg.Server != def.Server {
		t.Errorf("Server = %q, want default %q", cfg.Server, def.Server)
	}
	if cfg.ConnectTimeout != def.ConnectTimeout {
		t.Errorf("ConnectTimeout = %s, want default %s", cfg.ConnectTimeout, def.ConnectTimeout)
	}
	if cfg.ConnectRetries != def.ConnectRetries {
		t.Errorf("ConnectRetries = %d, want default %d", cfg.ConnectRetries, def.ConnectRetries)
	}
}

func TestLoadConfigInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad duration", `connect_timeout = "soon"`},
		{"zero retries", `connect_retries = 0`},
		{"not toml", `transport = `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			if _, err := loadConfig(path); err == nil {
				t.Fatal("loadConfig() succeeded, want error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("loadConfig() succeeded on a missing file, want error")
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
transport = "sse"
url = "http://file.example/sse"
`)

	t.Setenv("MCP_CLI_TRANSPORT", "ws")
	t.Setenv("MCP_CLI_URL", "ws://env.example/ws")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() failed: %v", err)
	}

	if cfg.Transport != "ws" {
		t.Errorf("Transport = %q, want the environment value ws", cfg.Transport)
	}
	if cfg.URL != "ws://env.example/ws" {
		t.Errorf("URL = %q, want the environment value", cfg.URL)
	}
}

func TestNewTransport(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server = "./server --flag"
	if _, err := newTransport(cfg); err != nil {
		t.Fatalf("newTransport(stdio) failed: %v", err)
	}

	cfg = defaultConfig()
	cfg.Transport = "sse"
	if _, err := newTransport(cfg); err == nil {
		t.Fatal("newTransport(sse) without url succeeded, want error")
	}
	cfg.URL = "http://localhost:8080/sse"
	if _, err := newTransport(cfg); err != nil {
		t.Fatalf("newTransport(sse) failed: %v", err)
	}

	cfg.Transport = "carrier-pigeon"
	if _, err := newTransport(cfg); err == nil {
		t.Fatal("newTransport with unknown kind succeeded, want error")
	}
}
