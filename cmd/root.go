// Package cmd contains the CLI commands. main.go is a minimal entry point;
// all command wiring lives here.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/digitizerx/digitizerx/internal/log"
)

var debugLogging bool

var rootCmd = &cobra.Command{
	Use:   "digitizerx",
	Short: "DigitizerX - manufacturing operations backend",
	Long: `DigitizerX is the backend for the manufacturing operations app:
a JSON API serving the AI assistant (retrieval-augmented answers over
indexed plant documents) and the universal scanner input resolver.

Run 'digitizerx serve' to start the HTTP API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "enable debug logging")
}

// initLogger builds the process-wide logger. Debug level comes from the
// --debug flag or the DEBUG environment variable. Logs go to stderr so
// stdout stays clean for command output.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if debugLogging || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.NewWithWriter(os.Stderr, log.Config{Level: level, JSON: false})
	slog.SetDefault(logger)
	return logger
}
