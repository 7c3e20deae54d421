package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maxiofs/simplestore/internal/config"
	"github.com/maxiofs/simplestore/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "simplestore",
		Short: "Inspect and edit a simplestore data directory",
		Long: `simplestore reads and writes the namespaces of a simplestore data
directory. Stop applications using the directory first: a namespace may
only be open in one place at a time.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add configuration flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Configuration file path")
	flags.StringP("data-dir", "d", "", "Data directory path")
	flags.String("cache-dir", "", "Cache directory path (default <data-dir>/cache)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "json", "Log format (json, text)")
	flags.String("engine", "filesystem", "Storage engine (filesystem, badger, pebble)")
	flags.Bool("sync-writes", true, "Fsync every write")
	flags.String("compression", "none", "Value compression (none, snappy)")
	flags.String("encryption-key", "", "Key used to seal stored values")
	flags.Int("workers", 4, "IO worker goroutines")

	flags.StringP("namespace", "n", "", "Namespace to operate on (\"\" is the root namespace)")
	flags.Bool("cache", false, "Open the namespace with the cache configuration")
	flags.Bool("metrics", false, "Print metrics to stderr when done")

	rootCmd.AddCommand(
		newGetCommand(),
		newPutCommand(),
		newRemoveCommand(),
		newContainsCommand(),
		newKeysCommand(),
		newClearCommand(),
		newDeleteAllCommand(),
		newGenKeyCommand(),
	)

	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogging(cfg)

	logrus.WithFields(logrus.Fields{
		"version":  version,
		"data_dir": cfg.DataDir,
		"engine":   cfg.Storage.Engine,
	}).Debug("Configuration loaded")

	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	logging.Configure(logrus.StandardLogger(), logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
}
