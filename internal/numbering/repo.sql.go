package numbering

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists naming counters.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an existing transaction for counter access.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("numbering repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// NextCounter atomically increments and returns the counter for a prefix.
// The upsert keeps the sequence collision-free under concurrent submits.
func (r *txRepository) NextCounter(ctx context.Context, prefix string) (int64, error) {
	var current int64
	err := r.tx.QueryRow(ctx, `INSERT INTO naming_counters (prefix, current) VALUES ($1, 1)
ON CONFLICT (prefix) DO UPDATE SET current = naming_counters.current + 1
RETURNING current`, prefix).Scan(&current)
	if err != nil {
		return 0, err
	}
	return current, nil
}
