package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresLedger persists issuance records to PostgreSQL.
// The issuance_records table is created by cmd/migrate.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres creates a PostgresLedger backed by the given connection pool.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLedger {
	return &PostgresLedger{pool: pool, logger: logger}
}

// Has implements Ledger.
func (l *PostgresLedger) Has(ctx context.Context, hash string) (bool, error) {
	var exists bool
	if err := l.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM issuance_records WHERE hash = $1)`, hash,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check issuance record: %w", err)
	}
	return exists, nil
}

// Get implements Ledger.
func (l *PostgresLedger) Get(ctx context.Context, hash string) (*Record, error) {
	rec := &Record{}
	err := l.pool.QueryRow(ctx,
		`SELECT id, hash, key_digest, issued_at FROM issuance_records WHERE hash = $1`, hash,
	).Scan(&rec.ID, &rec.Hash, &rec.KeyDigest, &rec.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get issuance record: %w", err)
	}
	rec.IssuedAt = rec.IssuedAt.UTC()
	return rec, nil
}

// Put implements Ledger. The unique constraint on hash makes the insert
// atomic across every instance sharing the database.
func (l *PostgresLedger) Put(ctx context.Context, rec *Record) (bool, error) {
	tag, err := l.pool.Exec(ctx,
		`INSERT INTO issuance_records (id, hash, key_digest, issued_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (hash) DO NOTHING`,
		rec.ID, rec.Hash, rec.KeyDigest, rec.IssuedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert issuance record: %w", err)
	}
	won := tag.RowsAffected() == 1
	l.logger.Debug("issuance record insert",
		zap.String("hash", rec.Hash),
		zap.Bool("inserted", won),
	)
	return won, nil
}

// List implements Ledger.
func (l *PostgresLedger) List(ctx context.Context) ([]*Record, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, hash, key_digest, issued_at FROM issuance_records ORDER BY issued_at ASC, hash ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list issuance records: %w", err)
	}
	defer rows.Close()

	out := []*Record{}
	for rows.Next() {
		rec := &Record{}
		if err := rows.Scan(&rec.ID, &rec.Hash, &rec.KeyDigest, &rec.IssuedAt); err != nil {
			return nil, fmt.Errorf("scan issuance record: %w", err)
		}
		rec.IssuedAt = rec.IssuedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issuance records: %w", err)
	}
	return out, nil
}
