package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTypingDelay    = 20 * time.Millisecond
	DefaultSettleDelay    = 200 * time.Millisecond
	DefaultReconnectDelay = 5 * time.Second

	envPrefix = "ATCRELAY_"
)

// DefaultPath returns the config file location under the user config dir.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "atcrelay", "agent.yaml")
}

type Config struct {
	ServerURL      string `yaml:"server_url" env:"SERVER_URL"`           // e.g. ws://localhost:8000
	InstallationID string `yaml:"installation_id" env:"INSTALLATION_ID"` // created once, reused across sessions

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	LogDir   string `yaml:"log_dir,omitempty" env:"LOG_DIR"`

	AirportFile  string `yaml:"airport_file" env:"AIRPORT_FILE"`
	ScenarioFile string `yaml:"scenario_file,omitempty" env:"SCENARIO_FILE"`

	TypingDelay    time.Duration `yaml:"typing_delay" env:"TYPING_DELAY"`
	SettleDelay    time.Duration `yaml:"settle_delay" env:"SETTLE_DELAY"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" env:"RECONNECT_DELAY"`

	Console bool `yaml:"console" env:"CONSOLE"`

	// Shared secret presented on connect. Never written to disk.
	Password string `yaml:"-" env:"PASSWORD"`
}

// Default returns a config with the reference timings filled in.
func Default() *Config {
	return &Config{
		LogLevel:       "info",
		TypingDelay:    DefaultTypingDelay,
		SettleDelay:    DefaultSettleDelay,
		ReconnectDelay: DefaultReconnectDelay,
		Console:        true,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ATCRELAY_* environment variables. Unset
// variables leave the current value alone.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// EnsureInstallationID assigns a new identifier if none is set and reports
// whether it did so; the caller is expected to Save in that case.
func (c *Config) EnsureInstallationID() bool {
	if c.InstallationID != "" {
		return false
	}
	c.InstallationID = uuid.NewString()
	return true
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.AirportFile == "" {
		return fmt.Errorf("airport_file is required")
	}
	if c.TypingDelay < 0 || c.SettleDelay < 0 || c.ReconnectDelay <= 0 {
		return fmt.Errorf("delays must be non-negative and reconnect_delay positive")
	}
	return nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
