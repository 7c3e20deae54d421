package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds all configuration for simplestore
type Config struct {
	// Root of the persistent namespaces
	DataDir string `mapstructure:"data_dir"`
	// Root of namespaces opened with the cache config; defaults to <data_dir>/cache
	CacheDir string `mapstructure:"cache_dir"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json, text

	Storage  StorageConfig  `mapstructure:"storage"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// StorageConfig defines how namespace entries are persisted
type StorageConfig struct {
	Engine     string `mapstructure:"engine"` // filesystem, badger, pebble
	SyncWrites bool   `mapstructure:"sync_writes"`

	// Compression
	Compression          string `mapstructure:"compression"` // none, snappy
	CompressionThreshold int    `mapstructure:"compression_threshold"`

	// Encryption; empty disables it
	EncryptionKey string `mapstructure:"encryption_key"`
}

// ExecutorConfig sizes the IO worker pool
type ExecutorConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// MetricsConfig defines metrics configuration
type MetricsConfig struct {
	Enable    bool   `mapstructure:"enable"`
	Namespace string `mapstructure:"namespace"`
}

// Load loads configuration from defaults, an optional config file, the
// environment and the flags of cmd, in increasing precedence.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Bind command line flags
	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	// Read from config file if specified
	if flag := cmd.Flags().Lookup("config"); flag != nil && flag.Value.String() != "" {
		v.SetConfigFile(flag.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Read from environment variables
	v.SetEnvPrefix("SIMPLESTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return decode(v)
}

// Default returns the configuration used when no file, environment or
// flags are involved. dataDir is required.
func Default(dataDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.Set("data_dir", dataDir)
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	// Unmarshal configuration
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate and setup defaults
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Empty data_dir fails validation; registered so env lookups see it
	v.SetDefault("data_dir", "")
	v.SetDefault("cache_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// Storage defaults
	v.SetDefault("storage.engine", "filesystem")
	v.SetDefault("storage.sync_writes", true)
	v.SetDefault("storage.compression", "none")
	v.SetDefault("storage.compression_threshold", 256)
	v.SetDefault("storage.encryption_key", "")

	// Executor defaults
	v.SetDefault("executor.workers", 4)
	v.SetDefault("executor.queue_size", 256)

	// Metrics defaults
	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.namespace", "simplestore")
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"data-dir":       "data_dir",
		"cache-dir":      "cache_dir",
		"log-level":      "log_level",
		"log-format":     "log_format",
		"engine":         "storage.engine",
		"sync-writes":    "storage.sync_writes",
		"compression":    "storage.compression",
		"encryption-key": "storage.encryption_key",
		"workers":        "executor.workers",
	}

	for flag, key := range flags {
		// Subcommands only declare the flags they need.
		pflag := cmd.Flags().Lookup(flag)
		if pflag == nil {
			continue
		}
		if err := v.BindPFlag(key, pflag); err != nil {
			return err
		}
	}

	return nil
}

func validate(cfg *Config) error {
	// Validate that data_dir is configured (either via flag, config file, or env var)
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required: specify via --data-dir flag, config file, or SIMPLESTORE_DATA_DIR environment variable")
	}

	// Make data dir absolute if it's not already
	if !filepath.IsAbs(cfg.DataDir) {
		absDir, err := filepath.Abs(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to resolve data directory: %w", err)
		}
		cfg.DataDir = absDir
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.DataDir, "cache")
	} else if !filepath.IsAbs(cfg.CacheDir) {
		absDir, err := filepath.Abs(cfg.CacheDir)
		if err != nil {
			return fmt.Errorf("failed to resolve cache directory: %w", err)
		}
		cfg.CacheDir = absDir
	}

	switch cfg.Storage.Engine {
	case "filesystem", "badger", "pebble":
	default:
		return fmt.Errorf("unknown storage engine %q: expected filesystem, badger or pebble", cfg.Storage.Engine)
	}

	switch cfg.Storage.Compression {
	case "none", "snappy":
	case "":
		cfg.Storage.Compression = "none"
	default:
		return fmt.Errorf("unknown compression %q: expected none or snappy", cfg.Storage.Compression)
	}
	if cfg.Storage.CompressionThreshold < 0 {
		return fmt.Errorf("storage.compression_threshold must not be negative")
	}

	if cfg.Executor.Workers <= 0 {
		return fmt.Errorf("executor.workers must be positive, got %d", cfg.Executor.Workers)
	}
	if cfg.Executor.QueueSize <= 0 {
		return fmt.Errorf("executor.queue_size must be positive, got %d", cfg.Executor.QueueSize)
	}

	if !cfg.Storage.SyncWrites {
		logrus.Debug("storage.sync_writes disabled: acknowledged writes may be lost on power failure")
	}

	return nil
}
