// Package config loads pharmsync configuration.
//
// Configuration is resolved in precedence order: explicit flags (applied
// by the CLI after loading), environment variables (PHARMSYNC_*), a
// pharmsync.yaml config file, then built-in defaults. The config file is
// searched for in the working directory and in ~/.pharmsync/.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved application configuration.
type Config struct {
	// DBPath is the local SQLite database file.
	DBPath string `mapstructure:"db_path"`

	// RemoteURL is the base URL of the remote store. Empty disables
	// syncing entirely (pure offline mode).
	RemoteURL string `mapstructure:"remote_url"`

	// AuthToken is the bearer token for the remote store.
	AuthToken string `mapstructure:"auth_token"`

	// PollInterval is how often the sync queue is drained.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// ProbeInterval is how often connectivity is probed.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`

	// BatchSize caps queue entries uploaded per drain pass.
	BatchSize int `mapstructure:"batch_size"`

	// PullEnabled controls downloading remote changes.
	PullEnabled bool `mapstructure:"pull_enabled"`

	// Retention, when positive, lets the daemon purge synced queue
	// entries older than this. Zero keeps the full queue history.
	Retention time.Duration `mapstructure:"retention"`

	// IntakeDir, when set, is watched for supplier delivery manifests.
	IntakeDir string `mapstructure:"intake_dir"`

	// DashboardPort, when positive, serves the WebSocket dashboard.
	DashboardPort int `mapstructure:"dashboard_port"`

	// LogFile, when set, routes daemon logs there with rotation.
	LogFile string `mapstructure:"log_file"`
}

// File is the config file name the loader looks for.
const File = "pharmsync.yaml"

// Load reads configuration from the config file, environment and
// defaults. A missing config file is not an error; the defaults apply.
// An explicit path overrides the search locations.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("db_path", DefaultDBPath())
	v.SetDefault("poll_interval", 30*time.Second)
	v.SetDefault("probe_interval", 10*time.Second)
	v.SetDefault("batch_size", 50)
	v.SetDefault("pull_enabled", true)

	v.SetEnvPrefix("PHARMSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(File, filepath.Ext(File)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pharmsync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.PollInterval < 0 || c.ProbeInterval < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative")
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative")
	}
	return nil
}

// DefaultDBPath returns the default local database location,
// ~/.pharmsync/local.db, falling back to the working directory when the
// home directory cannot be determined.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".pharmsync", "local.db")
	}
	return filepath.Join(home, ".pharmsync", "local.db")
}
