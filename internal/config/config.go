// Package config loads focal's configuration from file, environment and
// defaults, and builds the loggers the daemons write to.
package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration tree.
type Config struct {
	// DataDir holds the database, trigger file and logs.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	Remote    RemoteConfig    `mapstructure:"remote" yaml:"remote"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Legacy    LegacyConfig    `mapstructure:"legacy" yaml:"legacy"`
}

// RemoteConfig points at the sync backend.
type RemoteConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Token   string `mapstructure:"token" yaml:"token"`
}

// SyncConfig tunes the sync service.
type SyncConfig struct {
	PullInterval     time.Duration `mapstructure:"pull_interval" yaml:"pull_interval"`
	DrainBatchSize   int           `mapstructure:"drain_batch_size" yaml:"drain_batch_size"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	BaseDelay        time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	SettingsDebounce time.Duration `mapstructure:"settings_debounce" yaml:"settings_debounce"`
}

// DashboardConfig tunes the WebSocket dashboard.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// LogConfig tunes daemon log output and rotation.
type LogConfig struct {
	// File is the log file path; empty logs to stderr.
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// LegacyConfig points at the pre-database storage file.
type LegacyConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		DataDir: dataDir,
		Remote: RemoteConfig{
			BaseURL: "https://sync.focal.app",
		},
		Sync: SyncConfig{
			PullInterval:     60 * time.Second,
			DrainBatchSize:   25,
			MaxRetries:       5,
			BaseDelay:        2 * time.Second,
			SettingsDebounce: 2 * time.Second,
		},
		Dashboard: DashboardConfig{
			Enabled: false,
			Port:    8484,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Legacy: LegacyConfig{
			Path: filepath.Join(dataDir, "legacy.json"),
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".focal"
	}
	return filepath.Join(home, ".focal")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load reads configuration from the given file (or the default location
// when path is empty), layered over defaults and FOCAL_* environment
// variables. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FOCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("remote.base_url", def.Remote.BaseURL)
	v.SetDefault("remote.token", "")
	v.SetDefault("sync.pull_interval", def.Sync.PullInterval)
	v.SetDefault("sync.drain_batch_size", def.Sync.DrainBatchSize)
	v.SetDefault("sync.max_retries", def.Sync.MaxRetries)
	v.SetDefault("sync.base_delay", def.Sync.BaseDelay)
	v.SetDefault("sync.settings_debounce", def.Sync.SettingsDebounce)
	v.SetDefault("dashboard.enabled", def.Dashboard.Enabled)
	v.SetDefault("dashboard.port", def.Dashboard.Port)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)
	v.SetDefault("log.max_age_days", def.Log.MaxAgeDays)
	v.SetDefault("legacy.path", def.Legacy.Path)

	if path == "" {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// WriteDefault writes the built-in configuration to path as YAML.
// Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// DatabasePath returns the SQLite file location under the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "focal.db")
}

// NewLogger builds the daemon logger. With a log file configured the
// output rotates via lumberjack; otherwise it goes to stderr.
func (c *Config) NewLogger(prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if c.Log.File != "" {
		out = &lumberjack.Logger{
			Filename:   c.Log.File,
			MaxSize:    c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAge:     c.Log.MaxAgeDays,
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}
