package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Extension is the file extension picked up from directory arguments.
const Extension = ".lbf"

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
	profiles   = []string{"cpu", "mem"}
)

// Config holds all the necessary configuration for an App instance to run.
// The yaml tags describe the optional configuration file; command-line flags
// override what it sets.
type Config struct {
	Paths  []string `yaml:"paths"`
	Output string   `yaml:"output"`
	Verify bool     `yaml:"verify"`

	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`

	Env             map[string]string `yaml:"env"`
	EmptyEnvAsUnset bool              `yaml:"empty_env_as_unset"`
	MaxIterations   int               `yaml:"max_iterations"`

	Profile         string `yaml:"profile"`
	HealthcheckPort int    `yaml:"healthcheck_port"`
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("at least one input path is required")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if !slices.Contains(logLevels, cfg.LogLevel) {
		return nil, fmt.Errorf("invalid log level %q: must be one of %v", cfg.LogLevel, logLevels)
	}
	if !slices.Contains(logFormats, cfg.LogFormat) {
		return nil, fmt.Errorf("invalid log format %q: must be one of %v", cfg.LogFormat, logFormats)
	}
	if cfg.Profile != "" && !slices.Contains(profiles, cfg.Profile) {
		return nil, fmt.Errorf("invalid profile mode %q: must be one of %v", cfg.Profile, profiles)
	}
	if cfg.MaxIterations < 0 {
		return nil, fmt.Errorf("max iterations must not be negative, got %d", cfg.MaxIterations)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}

// LoadFile reads a YAML configuration file. Unknown keys are rejected. The
// result is not validated; pass it through NewConfig once flags are applied.
func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}
