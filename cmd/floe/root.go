package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/floe-sci/floe/internal/ctxlog"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "floe",
	Short: "Parallel test harness for HPC model workflows",
	Long: `Floe runs suites of model test cases on HPC systems.
Each test case is a sequence of steps tied together by the files they
produce and consume; independent steps run concurrently within the
resources of the current allocation, login node, or workstation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmd.SetContext(setupLogging(cmd.Context()))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(
		runCmd,
		planCmd,
		stepCmd,
	)
}

// setupLogging builds the process logger and attaches it to the context so
// every layer below logs through it.
func setupLogging(ctx context.Context) context.Context {
	opts := &slog.HandlerOptions{Level: parseLogLevel(logLevel)}
	var handler slog.Handler
	if strings.EqualFold(logFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return ctxlog.WithLogger(ctx, logger)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
