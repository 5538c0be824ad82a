package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/screa/duco-miner/internal/config"
	logpkg "github.com/screa/duco-miner/internal/logger"
	minerpkg "github.com/screa/duco-miner/pkg/miner"
)

var (
	configPath string
	threads    int
	logFile    string
	logLevel   string
	verbose    bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "duco-miner",
		Short: "Multi-threaded pool miner",
		Long: `A command line miner that discovers a pool node, requests jobs over a
line-oriented connection, brute-forces each job and submits the result.
Every thread runs its own connection and reconnects on failure.`,
		SilenceUsage: true,
		RunE:         runMiner,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultFile, "YAML configuration file")
	rootCmd.Flags().IntVarP(&threads, "threads", "t", 0, "Number of worker threads (overrides thread_count)")
	rootCmd.Flags().StringVarP(&logFile, "log-file", "l", "", "Rotating log file in addition to stdout")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug level)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runMiner(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	miner, err := minerpkg.NewMiner(cfg, logger)
	if err != nil {
		return err
	}

	// Ctrl+C closes every connection and lets the workers return
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return miner.Mine(ctx)
}

// applyFlags lets explicitly set flags win over the config file
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("threads") {
		cfg.ThreadCount = threads
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = logFile
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
}

func setupLogging(cfg *config.Config) (*logpkg.Logger, error) {
	logger := logpkg.New()
	if cfg.LogFile != "" {
		var err error
		logger, err = logpkg.NewRotating(cfg.LogFile)
		if err != nil {
			return nil, err
		}
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	return logger, nil
}
