package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/vk/taskgrid/internal/config"
	"github.com/vk/taskgrid/internal/ctxlog"
)

var (
	flagConfig    string
	flagWorkers   int
	flagLogLevel  string
	flagLogFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "taskgrid",
		Short:         "Task-graph scheduler workloads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to an HCL settings file")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "worker count override (0 = keep the configured count, one per CPU by default)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "log format: text or json")
	rootCmd.AddCommand(newBenchCmd(), newDemoCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger creates a slog.Logger from the persistent flags without touching
// the global default.
func newLogger() *slog.Logger {
	var level slog.Level
	switch flagLogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if flagLogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	return slog.New(handler)
}

// loadSettings resolves settings from the optional config file plus flag
// overrides and returns a context carrying the configured logger.
func loadSettings(ctx context.Context) (context.Context, config.Settings, error) {
	ctx = ctxlog.WithLogger(ctx, newLogger())

	settings := config.Default()
	if flagConfig != "" {
		loaded, err := config.NewHCLLoader().Load(ctx, flagConfig)
		if err != nil {
			return ctx, settings, err
		}
		settings = *loaded
	}
	if flagWorkers > 0 {
		settings.Workers = flagWorkers
	}
	return ctx, settings, nil
}
