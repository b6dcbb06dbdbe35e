package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// config holds the resolved runtime settings, after overlaying the config
// file and environment on top of the defaults. Command-line flags are
// applied last, in main.
type config struct {
	Server    string
	URL       string
	Transport string

	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	ConnectRetries uint

	Verbose bool
}

// fileConfig is the TOML key mapping for the config file.
type fileConfig struct {
	Server         string `toml:"server"`
	URL            string `toml:"url"`
	Transport      string `toml:"transport"`
	ConnectTimeout string `toml:"connect_timeout"`
	RequestTimeout string `toml:"request_timeout"`
	ConnectRetries int    `toml:"connect_retries"`
	Verbose        bool   `toml:"verbose"`
}

func defaultConfig() config {
	return config{
		Server:         "./server",
		Transport:      "stdio",
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,
		ConnectRetries: 3,
	}
}

// loadConfig overlays the TOML file at path (if given) and the MCP_CLI_*
// environment variables on top of the defaults. Only keys actually present
// in the file override defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	if path != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return config{}, fmt.Errorf("load config: %w", err)
		}

		if meta.IsDefined("server") {
			cfg.Server = strings.TrimSpace(raw.Server)
		}
		if meta.IsDefined("url") {
			cfg.URL = strings.TrimSpace(raw.URL)
		}
		if meta.IsDefined("transport") {
			cfg.Transport = strings.TrimSpace(raw.Transport)
		}
		if meta.IsDefined("connect_timeout") {
			d, err := time.ParseDuration(raw.ConnectTimeout)
			if err != nil {
				return config{}, fmt.Errorf("load config: invalid connect_timeout: %w", err)
			}
			cfg.ConnectTimeout = d
		}
		if meta.IsDefined("request_timeout") {
			d, err := time.ParseDuration(raw.RequestTimeout)
			if err != nil {
				return config{}, fmt.Errorf("load config: invalid request_timeout: %w", err)
			}
			cfg.RequestTimeout = d
		}
		if meta.IsDefined("connect_retries") {
			if raw.ConnectRetries < 1 {
				return config{}, fmt.Errorf("load config: connect_retries must be at least 1")
			}
			cfg.ConnectRetries = uint(raw.ConnectRetries)
		}
		if meta.IsDefined("verbose") {
			cfg.Verbose = raw.Verbose
		}
	}

	if v := os.Getenv("MCP_CLI_SERVER"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("MCP_CLI_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("MCP_CLI_TRANSPORT"); v != "" {
		cfg.Transport = v
	}

	return cfg, nil
}
