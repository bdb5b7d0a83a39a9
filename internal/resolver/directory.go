package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDirectory implements Directory against the operational database.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory creates a Directory backed by the given pool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// assetColumnQueries whitelists the columns AssetIDByColumn may touch.
// The id column is compared as text so callers can pass the scanned string
// without a uuid cast failing on malformed input.
var assetColumnQueries = map[string]string{
	ColumnID:        `SELECT id::text FROM asset WHERE id::text = $1 LIMIT 1`,
	ColumnAssetCode: `SELECT id::text FROM asset WHERE asset_code = $1 LIMIT 1`,
	ColumnSerialNo:  `SELECT id::text FROM asset WHERE serial_no = $1 LIMIT 1`,
}

// AssetIDByColumn looks up an asset id by exact match on a whitelisted column.
func (d *PostgresDirectory) AssetIDByColumn(ctx context.Context, column, value string) (string, error) {
	query, ok := assetColumnQueries[column]
	if !ok {
		return "", fmt.Errorf("unsupported asset column %q", column)
	}
	return d.scanID(ctx, query, value)
}

// AssetIDByToken looks up an asset id by qr_token or public_token.
func (d *PostgresDirectory) AssetIDByToken(ctx context.Context, token string) (string, error) {
	const query = `SELECT id::text FROM asset WHERE qr_token::text = $1 OR public_token::text = $1 LIMIT 1`
	return d.scanID(ctx, query, token)
}

// PartIDByCode looks up a part id by part_code, optionally case-insensitive.
func (d *PostgresDirectory) PartIDByCode(ctx context.Context, code string, fold bool) (string, error) {
	query := `SELECT id::text FROM part_master WHERE part_code = $1 LIMIT 1`
	if fold {
		query = `SELECT id::text FROM part_master WHERE lower(part_code) = lower($1) LIMIT 1`
	}
	return d.scanID(ctx, query, code)
}

// WorkOrderIDByCode resolves a human-readable work-order code via the
// pm_resolve_wo_hr procedure. Returns "" when the code is unknown.
func (d *PostgresDirectory) WorkOrderIDByCode(ctx context.Context, code string) (string, error) {
	var id *string
	err := d.pool.QueryRow(ctx, `SELECT pm_resolve_wo_hr($1)::text`, code).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("resolving work order code %q: %w", code, err)
	}
	if id == nil {
		return "", nil
	}
	return *id, nil
}

// scanID runs a single-value id query, mapping no-rows to ("", nil).
func (d *PostgresDirectory) scanID(ctx context.Context, query, arg string) (string, error) {
	var id string
	err := d.pool.QueryRow(ctx, query, arg).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("directory lookup: %w", err)
	}
	return id, nil
}
