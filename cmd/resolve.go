package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/digitizerx/digitizerx/internal/config"
	"github.com/digitizerx/digitizerx/internal/database"
	"github.com/digitizerx/digitizerx/internal/resolver"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <input>",
	Short: "Resolve a scanned or typed value to an app route",
	Long: `Classifies one input the way the scanner endpoint does - JSON QR
payloads, URLs, work order codes, bin codes, asset and part codes - and
prints the resolved route. Prints "no match" when nothing resolves.

No model provider is needed; only the database is consulted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResolve(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, input string) error {
	logger := initLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx := cmd.Context()
	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer pool.Close()

	r := resolver.New(resolver.NewPostgresDirectory(pool), cfg.DefaultPlant, logger)

	path := r.Resolve(ctx, input)
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "no match")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
