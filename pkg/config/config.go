// Package config loads bridge configuration from an optional yaml file with
// environment-variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/policyops/isebridge/pkg/ise"
)

// envPrefix namespaces all environment overrides (ISEBRIDGE_ISE_ADDRESS etc.).
const envPrefix = "ISEBRIDGE"

// HTTPConfig contains the inbound webhook server settings.
type HTTPConfig struct {
	Addr   string `yaml:"addr" envconfig:"ADDR"`
	APIKey string `yaml:"api_key" envconfig:"API_KEY"`
}

// PolicyConfig names the remote objects each authorization rule binds to.
// All of them must already exist on the policy engine at startup.
type PolicyConfig struct {
	PolicySetName    string   `yaml:"policy_set_name" envconfig:"SET_NAME"`
	ShellProfileName string   `yaml:"shell_profile_name" envconfig:"SHELL_PROFILE"`
	CommandSetNames  []string `yaml:"command_set_names" envconfig:"COMMAND_SETS"`
}

// ScheduleConfig toggles deferred rule creation and removal.
type ScheduleConfig struct {
	Start bool `yaml:"start" envconfig:"START"`
	End   bool `yaml:"end" envconfig:"END"`
}

// Config is the root configuration structure.
type Config struct {
	// LogLevel controls slog verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	HTTP     HTTPConfig     `yaml:"http" envconfig:"HTTP"`
	ISE      ise.Config     `yaml:"ise" envconfig:"ISE"`
	Policy   PolicyConfig   `yaml:"policy" envconfig:"POLICY"`
	Schedule ScheduleConfig `yaml:"schedule" envconfig:"SCHEDULE"`

	// AuditDB is the sqlite action-log path; empty disables auditing.
	AuditDB string `yaml:"audit_db" envconfig:"AUDIT_DB"`

	// DevMode enables development features like Swagger UI.
	DevMode bool `yaml:"dev_mode" envconfig:"DEV_MODE"`
}

// Load reads configuration from the given yaml path (optional) and applies
// environment overrides. Priority: env vars > config file > defaults.
func Load(path string) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process env vars: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8000"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate fails fast on settings without which no webhook can be honored.
func (c *Config) Validate() error {
	if c.ISE.Address == "" {
		return fmt.Errorf("ise address is required")
	}
	if c.ISE.Username == "" || c.ISE.Password == "" {
		return fmt.Errorf("ise credentials are required")
	}
	if c.Policy.PolicySetName == "" {
		return fmt.Errorf("policy set name is required")
	}
	if c.Policy.ShellProfileName == "" {
		return fmt.Errorf("shell profile name is required")
	}
	if len(c.Policy.CommandSetNames) == 0 {
		return fmt.Errorf("at least one command set name is required")
	}
	return nil
}

// SlogLevel maps the configured log level onto slog.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
