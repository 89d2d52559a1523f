package vouchers

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keystone-erp/keystone-erp/internal/gl"
	"github.com/keystone-erp/keystone-erp/internal/numbering"
	"github.com/keystone-erp/keystone-erp/internal/payments"
	"github.com/keystone-erp/keystone-erp/internal/platform/db"
	"github.com/keystone-erp/keystone-erp/internal/stock"
)

// TxBundle carries every per-module transactional repository bound to one
// database transaction.
type TxBundle struct {
	Documents DocumentsTxRepository
	Numbering numbering.TxRepository
	GL        gl.TxRepository
	Stock     stock.TxRepository
	Payments  payments.TxRepository
}

// UnitOfWork runs fn with a TxBundle whose writes commit or roll back as one.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(context.Context, TxBundle) error) error
}

type pgUnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork builds the postgres-backed unit of work.
func NewUnitOfWork(pool *pgxpool.Pool) UnitOfWork {
	return &pgUnitOfWork{pool: pool}
}

func (u *pgUnitOfWork) Run(ctx context.Context, fn func(context.Context, TxBundle) error) error {
	return db.WithTx(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(ctx, TxBundle{
			Documents: NewDocumentsTxRepository(tx),
			Numbering: numbering.NewTxRepository(tx),
			GL:        gl.NewTxRepository(tx),
			Stock:     stock.NewTxRepository(tx),
			Payments:  payments.NewTxRepository(tx),
		})
	})
}
