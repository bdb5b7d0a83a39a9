package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/digitizerx/digitizerx/internal/app"
	"github.com/digitizerx/digitizerx/internal/config"
	"github.com/digitizerx/digitizerx/internal/rag"
)

const timeRound = 10 * time.Millisecond

func statPath(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return info, nil
}

var (
	indexModule    string
	indexSubmodule string
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index a document or directory for the assistant",
	Long: `Chunks and embeds plant documents (txt, md, csv) into the retrieval
store. Re-indexing a file replaces its previous chunks. With a directory, a
.dgxignore file at its root (gitignore syntax) excludes paths.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(cmd, args[0])
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexModule, "module", "", "module scope for the indexed chunks")
	indexCmd.Flags().StringVar(&indexSubmodule, "submodule", "", "submodule scope for the indexed chunks")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, path string) error {
	logger := initLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil { // embedding needs the API key
		return fmt.Errorf("validating config: %w", err)
	}

	ctx := cmd.Context()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	indexer := rag.NewIndexer(a.Provider, rag.NewPostgresSearcher(a.Pool), cfg.EmbeddingModel, nil, logger)

	info, err := statPath(path)
	if err != nil {
		return err
	}

	if info.IsDir() {
		result, err := indexer.IndexDirectory(ctx, path, indexModule, indexSubmodule)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files (%d chunks), skipped %d, failed %d in %s\n",
			result.FilesAdded, result.ChunksAdded, result.FilesSkipped, result.FilesFailed, result.Duration.Round(timeRound))
		return nil
	}

	n, err := indexer.IndexFile(ctx, path, indexModule, indexSubmodule)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %s (%d chunks)\n", path, n)
	return nil
}
