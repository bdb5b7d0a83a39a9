package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Searcher is the vector-search capability the engine consumes. Search uses
// the primary rag_search procedure; FallbackSearch uses the legacy
// match_documents procedure with equivalent semantics (no scope filtering).
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int, minSim float64, module, submodule string) ([]DocRow, error)
	FallbackSearch(ctx context.Context, embedding []float32, topK int, minSim float64) ([]DocRow, error)
}

// Procedures is the catalog/schema/entity capability backing the intent
// short-circuits.
type Procedures interface {
	// CatalogText returns the module catalog text, "" when none exists.
	CatalogText(ctx context.Context) (string, error)

	// Schema introspects columns, optionally restricted to one table.
	Schema(ctx context.Context, table string, schemas []string) ([]SchemaRow, error)

	// EntityLookup returns matching rows as raw JSON objects.
	EntityLookup(ctx context.Context, entity, key string) ([]json.RawMessage, error)

	// Counts returns the number of entities in the given state.
	Counts(ctx context.Context, entity, state string) (int64, error)
}

// PostgresSearcher implements Searcher and Procedures over the stored
// procedures installed by the migrations.
type PostgresSearcher struct {
	pool *pgxpool.Pool
}

// NewPostgresSearcher creates a searcher backed by the given pool.
func NewPostgresSearcher(pool *pgxpool.Pool) *PostgresSearcher {
	return &PostgresSearcher{pool: pool}
}

// Search calls rag_search. Empty module/submodule disable scope filtering.
func (s *PostgresSearcher) Search(ctx context.Context, embedding []float32, topK int, minSim float64, module, submodule string) ([]DocRow, error) {
	var moduleArg, submoduleArg *string
	if module != "" {
		moduleArg = &module
	}
	if submodule != "" {
		submoduleArg = &submodule
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, content, page, section, source, sim FROM rag_search($1, $2, $3, $4, $5)`,
		pgvector.NewVector(embedding), topK, minSim, moduleArg, submoduleArg)
	if err != nil {
		return nil, fmt.Errorf("rag_search: %w", err)
	}
	return scanDocRows(rows)
}

// FallbackSearch calls match_documents, normalizing its similarity column
// into DocRow.Sim.
func (s *PostgresSearcher) FallbackSearch(ctx context.Context, embedding []float32, topK int, minSim float64) ([]DocRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content, page, section, source, similarity FROM match_documents($1, $2, $3)`,
		pgvector.NewVector(embedding), topK, minSim)
	if err != nil {
		return nil, fmt.Errorf("match_documents: %w", err)
	}
	return scanDocRows(rows)
}

func scanDocRows(rows pgx.Rows) ([]DocRow, error) {
	defer rows.Close()

	var out []DocRow
	for rows.Next() {
		var (
			d       DocRow
			page    *int32
			section *string
		)
		if err := rows.Scan(&d.ID, &d.Content, &page, &section, &d.Source, &d.Sim); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		d.Page = page
		if section != nil {
			d.Section = *section
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	return out, nil
}

// catalogTitle is the fixed title the catalog document is stored under.
const catalogTitle = "Modules & Submodules"

// CatalogText fetches the catalog document: fixed title first, then the
// first available row, then the fn_get_catalog_text procedure.
func (s *PostgresSearcher) CatalogText(ctx context.Context) (string, error) {
	var body string
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM ai_catalog WHERE title = $1 ORDER BY id LIMIT 1`, catalogTitle).Scan(&body)
	if err == nil {
		return body, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("catalog by title: %w", err)
	}

	err = s.pool.QueryRow(ctx, `SELECT body FROM ai_catalog ORDER BY id LIMIT 1`).Scan(&body)
	if err == nil {
		return body, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("catalog first row: %w", err)
	}

	var text *string
	if err := s.pool.QueryRow(ctx, `SELECT fn_get_catalog_text()`).Scan(&text); err != nil {
		return "", fmt.Errorf("fn_get_catalog_text: %w", err)
	}
	if text == nil {
		return "", nil
	}
	return *text, nil
}

// Schema calls fn_ai_schema. An empty schemas list defaults to public.
func (s *PostgresSearcher) Schema(ctx context.Context, table string, schemas []string) ([]SchemaRow, error) {
	if len(schemas) == 0 {
		schemas = []string{"public"}
	}
	var tableArg *string
	if table != "" {
		tableArg = &table
	}

	rows, err := s.pool.Query(ctx, `SELECT table_schema, table_name, column_name, data_type FROM fn_ai_schema($1, $2)`, tableArg, schemas)
	if err != nil {
		return nil, fmt.Errorf("fn_ai_schema: %w", err)
	}
	defer rows.Close()

	var out []SchemaRow
	for rows.Next() {
		var r SchemaRow
		if err := rows.Scan(&r.Schema, &r.Table, &r.Column, &r.DataType); err != nil {
			return nil, fmt.Errorf("scanning schema row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading schema rows: %w", err)
	}
	return out, nil
}

// EntityLookup calls fn_ai_entity_lookup.
func (s *PostgresSearcher) EntityLookup(ctx context.Context, entity, key string) ([]json.RawMessage, error) {
	rows, err := s.pool.Query(ctx, `SELECT row_data FROM fn_ai_entity_lookup($1, $2)`, entity, key)
	if err != nil {
		return nil, fmt.Errorf("fn_ai_entity_lookup: %w", err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning entity row: %w", err)
		}
		out = append(out, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading entity rows: %w", err)
	}
	return out, nil
}

// Counts calls fn_ai_counts.
func (s *PostgresSearcher) Counts(ctx context.Context, entity, state string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT fn_ai_counts($1, $2)`, entity, state).Scan(&n); err != nil {
		return 0, fmt.Errorf("fn_ai_counts: %w", err)
	}
	return n, nil
}
