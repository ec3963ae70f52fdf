// Package config loads client configuration from an optional YAML file
// with environment overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerURL  string `yaml:"server_url"`  // chat server base URL
	ListenAddr string `yaml:"listen_addr"` // local address serving the view surfaces
	StatePath  string `yaml:"state_path"`  // persisted client state database
	Verbose    bool   `yaml:"verbose"`
}

func Default() Config {
	return Config{
		ServerURL:  "http://localhost:3000",
		ListenAddr: "127.0.0.1:8080",
		StatePath:  "client-state.db",
	}
}

// Load reads path if it exists and applies PELUSA_* env overrides on
// top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if uerr := yaml.Unmarshal(data, &cfg); uerr != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, uerr)
			}
		case !os.IsNotExist(err):
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PELUSA_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("PELUSA_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("PELUSA_STATE_PATH"); v != "" {
		c.StatePath = v
	}
}
