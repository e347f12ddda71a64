// Package cmd implements the vitalsum command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/penlight/vitalsum/config"
	"github.com/penlight/vitalsum/logging"
)

var (
	cfgFile  string
	logLevel string
	noColor  bool
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "vitalsum",
	Short: "On-device health summary with optional AI enhancement",
	Long: `vitalsum turns daily sensor readings into a health summary.

A local scoring stage produces an immediate result from sleep, activity,
and recovery data; an AI provider then enhances it when the cache, rate
limits, and budget allow. Without network access the summary degrades
gracefully instead of failing.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./vitalsum.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// activeConfigFile returns the config file the loader would read, if
// one exists on disk.
func activeConfigFile() (string, bool) {
	if cfgFile != "" {
		return cfgFile, true
	}
	for _, path := range config.ConfigPaths() {
		expanded := os.ExpandEnv(path)
		if _, err := os.Stat(expanded); err == nil {
			return expanded, true
		}
	}
	return "", false
}

// loadConfiguration builds the layered configuration: defaults, then
// file, then environment, then flags.
func loadConfiguration(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader()

	if cfgFile != "" {
		loader.AddSource(config.NewFileSource(cfgFile))
	} else {
		for _, path := range config.ConfigPaths() {
			loader.AddSource(config.NewFileSource(path))
		}
	}
	loader.AddSource(config.NewEnvSource("VITALSUM"))
	loader.AddSource(config.NewFlagSource(cmd.Flags()))
	loader.AddSource(config.NewFlagSource(cmd.Root().PersistentFlags()))
	loader.AddValidator(config.NewStandardValidator())

	cfg, err := loader.LoadWithDefaults()
	if err != nil {
		return nil, err
	}

	logging.InitGlobalLogger(cfg.App.LogLevel, cfg.App.LogFile)

	if verbose {
		fmt.Fprintf(os.Stderr, "Using configuration: %+v\n", cfg)
	}

	return cfg, nil
}
