package rag

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/digitizerx/digitizerx/internal/ai"
)

// defaultIndexExtensions are the file types indexed by default. Plant
// documentation arrives as exported text: SOPs, work instructions,
// checklists.
var defaultIndexExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
}

// Chunking tunables. Chunks stay well under the embedding model's token
// limit; the overlap keeps sentences split across a boundary retrievable
// from both sides.
const (
	chunkSize      = 1200
	chunkOverlap   = 200
	embedBatchSize = 64
)

// Chunk is one embedded slice of a source document.
type Chunk struct {
	Content   string
	Embedding []float32
	Page      *int32
	Section   string
	Source    string
	Module    string
	Submodule string
}

// DocumentStore persists embedded chunks. Defined by the consumer so the
// indexer tests run without Postgres.
type DocumentStore interface {
	// ReplaceSource atomically replaces all chunks of one source document.
	ReplaceSource(ctx context.Context, source string, chunks []Chunk) error
}

// IndexResult summarizes one indexing run.
type IndexResult struct {
	FilesAdded   int
	FilesSkipped int
	FilesFailed  int
	ChunksAdded  int
	Duration     time.Duration
}

// Indexer ingests plant documents into the retrieval store: read, chunk,
// batch-embed, persist. Re-indexing a file replaces its previous chunks.
type Indexer struct {
	provider   ai.Provider
	store      DocumentStore
	model      string
	extensions map[string]bool
	logger     *slog.Logger
}

// NewIndexer creates an indexer. extensions overrides the default indexable
// file types when non-empty.
func NewIndexer(provider ai.Provider, store DocumentStore, model string, extensions []string, logger *slog.Logger) *Indexer {
	extMap := make(map[string]bool, len(defaultIndexExtensions))
	if len(extensions) > 0 {
		for _, ext := range extensions {
			extMap[strings.ToLower(ext)] = true
		}
	} else {
		for k, v := range defaultIndexExtensions {
			extMap[k] = v
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		provider:   provider,
		store:      store,
		model:      model,
		extensions: extMap,
		logger:     logger,
	}
}

// IndexFile ingests a single file. module and submodule scope the chunks for
// filtered retrieval; either may be empty.
func (idx *Indexer) IndexFile(ctx context.Context, path, module, submodule string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}

	// Read through os.Root so symlinks cannot escape the parent directory.
	root, err := os.OpenRoot(filepath.Dir(absPath))
	if err != nil {
		return 0, fmt.Errorf("opening root directory: %w", err)
	}
	defer func() {
		_ = root.Close()
	}()

	name := filepath.Base(absPath)
	info, err := root.Stat(name)
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory, use IndexDirectory", path)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !idx.extensions[ext] {
		return 0, fmt.Errorf("unsupported file type %s", ext)
	}

	content, err := root.ReadFile(name)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}

	pieces := splitChunks(string(content))
	if len(pieces) == 0 {
		return 0, nil
	}

	chunks := make([]Chunk, 0, len(pieces))
	for batch := range chunkBatches(pieces, embedBatchSize) {
		emb, err := idx.provider.Embed(ctx, ai.EmbeddingRequest{Model: idx.model, Inputs: batch})
		if err != nil {
			return 0, fmt.Errorf("embedding %s: %w", name, err)
		}
		for i, vec := range emb.Vectors {
			chunks = append(chunks, Chunk{
				Content:   batch[i],
				Embedding: vec,
				Source:    name,
				Module:    module,
				Submodule: submodule,
			})
		}
	}

	if err := idx.store.ReplaceSource(ctx, name, chunks); err != nil {
		return 0, fmt.Errorf("storing chunks for %s: %w", name, err)
	}

	idx.logger.Info("indexed document", "source", name, "chunks", len(chunks))
	return len(chunks), nil
}

// IndexDirectory walks dir and ingests every supported file. An ignore file
// (.dgxignore, gitignore syntax) at the directory root excludes paths.
// Failures on individual files are counted, not fatal.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir, module, submodule string) (IndexResult, error) {
	start := time.Now()
	var result IndexResult

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return result, fmt.Errorf("resolving directory: %w", err)
	}

	var ignorer *ignore.GitIgnore
	if ig, err := ignore.CompileIgnoreFile(filepath.Join(absDir, ".dgxignore")); err == nil {
		ignorer = ig
	}

	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(absDir, path)
		if err != nil {
			return err
		}
		if ignorer != nil && ignorer.MatchesPath(rel) {
			result.FilesSkipped++
			return nil
		}
		if !idx.extensions[strings.ToLower(filepath.Ext(path))] {
			result.FilesSkipped++
			return nil
		}

		n, err := idx.IndexFile(ctx, path, module, submodule)
		if err != nil {
			idx.logger.Warn("indexing failed", "path", rel, "error", err)
			result.FilesFailed++
			return nil
		}
		result.FilesAdded++
		result.ChunksAdded += n
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("walking %s: %w", dir, err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// splitChunks splits text into overlapping chunks, preferring paragraph
// boundaries. Whitespace-only chunks are dropped.
func splitChunks(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(text); {
		end := start + chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			// Prefer to break at a paragraph, then a line, then a space.
			window := text[start:end]
			if cut := strings.LastIndex(window, "\n\n"); cut > chunkSize/2 {
				end = start + cut
			} else if cut := strings.LastIndex(window, "\n"); cut > chunkSize/2 {
				end = start + cut
			} else if cut := strings.LastIndex(window, " "); cut > chunkSize/2 {
				end = start + cut
			}
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(text) {
			break
		}
		start = end - chunkOverlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}

// chunkBatches yields the inputs in batches of at most size.
func chunkBatches(inputs []string, size int) func(yield func([]string) bool) {
	return func(yield func([]string) bool) {
		for start := 0; start < len(inputs); start += size {
			end := start + size
			if end > len(inputs) {
				end = len(inputs)
			}
			if !yield(inputs[start:end]) {
				return
			}
		}
	}
}
