// Package config loads herolog.yaml and the env file whose variables are
// passed to heroku CLI invocations.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/charliek/herolog/internal/constants"
	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/logs"
)

// Config represents the top-level herolog configuration
type Config struct {
	App         string       `yaml:"app"`
	BufferSize  int          `yaml:"buffer_size"`
	Filters     []string     `yaml:"filters"`
	FilterMode  string       `yaml:"filter_mode"`
	LogLevel    string       `yaml:"log_level"`
	StableAfter string       `yaml:"stable_after"`
	Heroku      HerokuConfig `yaml:"heroku"`
	API         APIConfig    `yaml:"api"`

	// dir is the directory of the loaded file; relative paths resolve against it
	dir string
}

// HerokuConfig configures how the heroku CLI is invoked
type HerokuConfig struct {
	Binary  string            `yaml:"binary"`
	EnvFile string            `yaml:"env_file"`
	Env     map[string]string `yaml:"env"`
}

// APIConfig defines the HTTP API configuration
type APIConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"` // empty disables bearer auth
}

// Default returns a configuration with every default applied
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	if err := CheckFilePermissions(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// LoadOrDefault loads path, or the first file FindConfigFile finds when path
// is empty. With no path and no file present the defaults are returned.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	found, err := FindConfigFile()
	if err != nil {
		return Default(), nil
	}
	return Load(found)
}

// Parse parses configuration from YAML bytes. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BufferSize == 0 {
		c.BufferSize = constants.DefaultLogBufferSize
	}
	if c.FilterMode == "" {
		c.FilterMode = "all"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Heroku.Binary == "" {
		c.Heroku.Binary = constants.DefaultHerokuBinary
	}
	if c.API.Host == "" {
		c.API.Host = constants.DefaultAPIHost
	}
	if c.API.Port == 0 {
		c.API.Port = constants.DefaultAPIPort
	}
}

// Predicates parses the configured startup filters
func (c *Config) Predicates() ([]logs.Predicate, error) {
	preds := make([]logs.Predicate, 0, len(c.Filters))
	for _, spec := range c.Filters {
		p, err := logs.ParsePredicate(spec)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// Mode returns the configured filter mode, ModeAll if unset or invalid
func (c *Config) Mode() logs.Mode {
	m, err := logs.ParseMode(c.FilterMode)
	if err != nil {
		return logs.ModeAll
	}
	return m
}

// SlogLevel returns the configured log level
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLogLevel(c.LogLevel)
	return level
}

// StableAfterDuration returns stable_after, or the default when unset
func (c *Config) StableAfterDuration() time.Duration {
	if c.StableAfter == "" {
		return constants.DefaultStableAfter
	}
	d, err := time.ParseDuration(c.StableAfter)
	if err != nil {
		return constants.DefaultStableAfter
	}
	return d
}

// APIAddress returns host:port for the API listener
func (c *Config) APIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// HerokuEnv returns the variables passed to heroku invocations.
// Inline heroku.env entries override those from heroku.env_file.
func (c *Config) HerokuEnv() (map[string]string, error) {
	var fileEnv map[string]string
	if c.Heroku.EnvFile != "" {
		var err error
		fileEnv, err = LoadEnvFile(resolvePath(c.Heroku.EnvFile, c.dir))
		if err != nil {
			return nil, fmt.Errorf("loading heroku env file: %w", err)
		}
	}
	return MergeEnv(fileEnv, c.Heroku.Env), nil
}

func parseLogLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
