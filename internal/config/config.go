package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Simulator SimulatorConfig `toml:"simulator"`
	Advisory  AdvisoryConfig  `toml:"advisory"`
	Raw       map[string]any  `toml:"-"`
	Path      string          `toml:"-"`
	// Found is false when the file did not exist and defaults apply.
	Found bool `toml:"-"`
}

type SimulatorConfig struct {
	Addr               string `toml:"addr"`
	DBPath             string `toml:"db_path"`
	RosterPath         string `toml:"roster_path"`
	TickIntervalMS     int    `toml:"tick_interval_ms"`
	Seed               uint64 `toml:"seed"`
	HealthEvery        int    `toml:"health_every"`
	DecomposeCacheSize int    `toml:"decompose_cache_size"`
	// Absent keys stay nil and keep the simulator default; 0 disables.
	DriftProbability     *float64 `toml:"drift_probability"`
	OfflineProbability   *float64 `toml:"offline_probability"`
	SignalProbability    *float64 `toml:"signal_probability"`
	InsightProbability   *float64 `toml:"insight_probability"`
	DisablePerturbations bool     `toml:"disable_perturbations"`
}

type AdvisoryConfig struct {
	Endpoint        string `toml:"endpoint"`
	Model           string `toml:"model"`
	ReasoningEffort string `toml:"reasoning_effort"`
	// APIKeyEnv names the environment variable holding the bearer token.
	APIKeyEnv string `toml:"api_key_env"`
	TimeoutMS int    `toml:"timeout_ms"`
	Retries   int    `toml:"retries"`
}

// Enabled reports whether an advisory endpoint is configured at all.
func (a AdvisoryConfig) Enabled() bool {
	return strings.TrimSpace(a.Endpoint) != "" && strings.TrimSpace(a.Model) != ""
}

// Token reads the bearer token from the configured environment variable.
func (a AdvisoryConfig) Token() string {
	name := strings.TrimSpace(a.APIKeyEnv)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}

// Load reads the TOML file at path. A missing file is not an error: the
// zero Config is returned with Found=false and callers fall back to defaults.
func Load(path string) (Config, error) {
	resolved := path
	if resolved == "" {
		resolved = defaultConfigPath()
	}
	resolved, err := ExpandHome(resolved)
	if err != nil {
		return Config{}, err
	}

	bytes, err := os.ReadFile(resolved)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{Path: resolved}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(bytes), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file: %w", err)
	}
	var raw map[string]any
	if _, err := toml.Decode(string(bytes), &raw); err != nil {
		return Config{}, fmt.Errorf("decode raw config: %w", err)
	}
	cfg.Raw = raw
	cfg.Path = resolved
	cfg.Found = true
	return cfg, nil
}

// ExpandHome resolves a leading ~ against the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	trimmed := strings.TrimPrefix(path, "~")
	trimmed = strings.TrimPrefix(trimmed, "\\")
	trimmed = strings.TrimPrefix(trimmed, "/")
	return filepath.Clean(filepath.Join(home, trimmed)), nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".enterprise_sim/config.toml"
	}
	return filepath.Join(home, ".enterprise_sim", "config.toml")
}
