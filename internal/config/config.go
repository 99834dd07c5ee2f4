// Package config loads and validates the permctl configuration file,
// including the command policy whitelist.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"permctl/internal/domain"
)

// Default locations. The config path can be overridden by the
// PERMCTL_CONFIG environment variable or the --config flag.
const (
	DefaultConfigPath  = "/etc/permctl/config.yaml"
	DefaultSudoersPath = "/etc/sudoers.d/permctl"
	DefaultDBPath      = "/var/lib/permctl/permissions.db"

	// DefaultSweepSchedule runs the expiry sweep every five minutes
	// when `permctl watch` is used.
	DefaultSweepSchedule = "*/5 * * * *"
)

// CommandConfig is the YAML shape of one whitelisted command.
type CommandConfig struct {
	Description string `yaml:"description"`
	// MaxDuration is the longest grant allowed for this command, in minutes.
	MaxDuration        int64    `yaml:"max_duration"`
	RequiredGroups     []string `yaml:"required_groups"`
	AuditUsage         bool     `yaml:"audit_usage"`
	MaxConcurrentUsers int      `yaml:"max_concurrent_users"`
}

// Config is the on-disk configuration.
type Config struct {
	AllowedCommands map[string]CommandConfig `yaml:"allowed_commands"`
	SudoersPath     string                   `yaml:"sudoers_path"`
	DBPath          string                   `yaml:"db_path"`
	LogLevel        string                   `yaml:"log_level"`
	SweepSchedule   string                   `yaml:"sweep_schedule"`
}

// Path returns the effective config path: explicit argument, then
// PERMCTL_CONFIG, then the default.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("PERMCTL_CONFIG"); v != "" {
		return v
	}
	return DefaultConfigPath
}

// Load reads, parses, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SudoersPath == "" {
		c.SudoersPath = DefaultSudoersPath
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SweepSchedule == "" {
		c.SweepSchedule = DefaultSweepSchedule
	}
	for cmd, cc := range c.AllowedCommands {
		if cc.MaxConcurrentUsers == 0 {
			cc.MaxConcurrentUsers = 10
			c.AllowedCommands[cmd] = cc
		}
	}
}

// Validate checks paths and every command policy.
func (c *Config) Validate() error {
	for _, path := range []string{c.SudoersPath, c.DBPath} {
		if !filepath.IsAbs(path) {
			return domain.ErrValidation("path must be absolute: %q", path)
		}
	}
	return c.Policies().Validate()
}

// Policies converts the YAML whitelist into the immutable domain policy set.
func (c *Config) Policies() domain.PolicySet {
	set := make(domain.PolicySet, len(c.AllowedCommands))
	for cmd, cc := range c.AllowedCommands {
		set[cmd] = domain.CommandPolicy{
			Description:        cc.Description,
			MaxDuration:        time.Duration(cc.MaxDuration) * time.Minute,
			RequiredGroups:     cc.RequiredGroups,
			AuditUsage:         cc.AuditUsage,
			MaxConcurrentUsers: cc.MaxConcurrentUsers,
		}
	}
	return set
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Save writes the config as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Default returns a starter configuration with one example command,
// written by `permctl init`.
func Default() *Config {
	cfg := &Config{
		AllowedCommands: map[string]CommandConfig{
			"/usr/bin/docker": {
				Description:        "Docker command access",
				MaxDuration:        480,
				RequiredGroups:     []string{"docker"},
				AuditUsage:         true,
				MaxConcurrentUsers: 5,
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}
