package rag

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// ReplaceSource implements DocumentStore: inside one transaction the previous
// chunks of the source are removed and the new ones inserted, so readers
// never observe a half-indexed document.
func (s *PostgresSearcher) ReplaceSource(ctx context.Context, source string, chunks []Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM rag_documents WHERE source = $1`, source); err != nil {
		return fmt.Errorf("deleting previous chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO rag_documents (content, page, section, source, module, submodule, embedding)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)`,
			c.Content, c.Page, c.Section, c.Source, c.Module, c.Submodule,
			pgvector.NewVector(c.Embedding),
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}
