// Package config loads decisiontrace configuration from an optional YAML
// profile and environment variables. Environment wins over the profile,
// which wins over defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds CLI and store configuration.
type Config struct {
	LogFile  string `yaml:"log_file"`
	Backend  string `yaml:"backend"` // "file" | "sqlite"
	LogLevel string `yaml:"log_level"`
	NoColor  bool   `yaml:"no_color"`
}

const (
	DefaultLogFile = "data/decision_log.jsonl"
	DefaultBackend = "file"

	profileEnv     = "DECISIONTRACE_PROFILE"
	defaultProfile = "decisiontrace.yaml"
)

// Load resolves the effective configuration.
func Load() (*Config, error) {
	cfg := &Config{
		LogFile:  DefaultLogFile,
		Backend:  DefaultBackend,
		LogLevel: "INFO",
	}

	profile := os.Getenv(profileEnv)
	explicit := profile != ""
	if profile == "" {
		profile = defaultProfile
	}
	if err := mergeProfile(cfg, profile, explicit); err != nil {
		return nil, err
	}

	if v := os.Getenv("DECISIONTRACE_LOG"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("DECISIONTRACE_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if os.Getenv("NO_COLOR") != "" {
		cfg.NoColor = true
	}

	if cfg.Backend != "file" && cfg.Backend != "sqlite" {
		return nil, fmt.Errorf("config: unknown backend %q (want file or sqlite)", cfg.Backend)
	}
	return cfg, nil
}

// mergeProfile overlays a YAML profile onto cfg. A missing default profile is
// fine; a missing explicitly requested profile is an error.
func mergeProfile(cfg *Config, path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("config: load profile %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse profile %q: %w", path, err)
	}
	return nil
}
