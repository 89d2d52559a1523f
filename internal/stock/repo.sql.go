package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists stock ledger entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockBalance(ctx context.Context, itemCode, warehouse string) (Balance, error)
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	UpdateBalance(ctx context.Context, itemCode, warehouse string, qty, stockValue float64) error
	GetVoucherEntriesForUpdate(ctx context.Context, voucherType, voucherNo string) ([]Entry, error)
	CountCancelledEntries(ctx context.Context, voucherType, voucherNo string) (int64, error)
	MarkEntriesCancelled(ctx context.Context, ids []int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an existing transaction for stock access.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
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

// LockBalance upserts the partition's balance row and takes its row lock,
// serializing concurrent writers on the (item, warehouse) chain.
func (r *txRepository) LockBalance(ctx context.Context, itemCode, warehouse string) (Balance, error) {
	b := Balance{ItemCode: itemCode, Warehouse: warehouse}
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_balances (item_code, warehouse, qty, stock_value, updated_at)
VALUES ($1, $2, 0, 0, NOW())
ON CONFLICT (item_code, warehouse) DO UPDATE SET item_code = EXCLUDED.item_code
RETURNING qty, stock_value, updated_at`, itemCode, warehouse).
		Scan(&b.Qty, &b.StockValue, &b.UpdatedAt)
	if err != nil {
		return Balance{}, err
	}
	return b, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO stock_ledger_entries
(item_code, warehouse, posting_date, voucher_type, voucher_no, actual_qty, qty_after_transaction, valuation_rate, stock_value, stock_value_difference, is_cancelled)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING id, created_at`,
		e.ItemCode, e.Warehouse, e.PostingDate, e.VoucherType, e.VoucherNo,
		toNumeric(e.ActualQty), toNumeric(e.QtyAfter), toNumeric(e.Rate),
		toNumeric(e.StockValue), toNumeric(e.ValueDiff), e.IsCancelled)
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) UpdateBalance(ctx context.Context, itemCode, warehouse string, qty, stockValue float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_balances SET qty=$3, stock_value=$4, updated_at=NOW()
WHERE item_code=$1 AND warehouse=$2`, itemCode, warehouse, toNumeric(qty), toNumeric(stockValue))
	return err
}

func (r *txRepository) GetVoucherEntriesForUpdate(ctx context.Context, voucherType, voucherNo string) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, item_code, warehouse, posting_date, voucher_type, voucher_no,
actual_qty, qty_after_transaction, valuation_rate, stock_value, stock_value_difference, is_cancelled, created_at
FROM stock_ledger_entries
WHERE voucher_type=$1 AND voucher_no=$2 AND is_cancelled=FALSE
ORDER BY id ASC
FOR UPDATE`, voucherType, voucherNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *txRepository) CountCancelledEntries(ctx context.Context, voucherType, voucherNo string) (int64, error) {
	var count int64
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM stock_ledger_entries
WHERE voucher_type=$1 AND voucher_no=$2 AND is_cancelled=TRUE`, voucherType, voucherNo).Scan(&count)
	return count, err
}

func (r *txRepository) MarkEntriesCancelled(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	cmd, err := r.tx.Exec(ctx, `UPDATE stock_ledger_entries SET is_cancelled=TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() != int64(len(ids)) {
		return ErrVoucherNotFound
	}
	return nil
}

// ListBalances lists partition heads, optionally filtered.
func (r *Repository) ListBalances(ctx context.Context, filter LedgerFilter) ([]Balance, error) {
	rows, err := r.pool.Query(ctx, `SELECT item_code, warehouse, qty, stock_value, updated_at
FROM stock_balances
WHERE ($1::text IS NULL OR item_code=$1) AND ($2::text IS NULL OR warehouse=$2)
ORDER BY item_code, warehouse`, nullStr(filter.ItemCode), nullStr(filter.Warehouse))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var balances []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.ItemCode, &b.Warehouse, &b.Qty, &b.StockValue, &b.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// ListLedger lists chain entries oldest first, optionally filtered and
// windowed.
func (r *Repository) ListLedger(ctx context.Context, filter LedgerFilter) ([]Entry, error) {
	query := `SELECT id, item_code, warehouse, posting_date, voucher_type, voucher_no,
actual_qty, qty_after_transaction, valuation_rate, stock_value, stock_value_difference, is_cancelled, created_at
FROM stock_ledger_entries
WHERE ($1::text IS NULL OR item_code=$1) AND ($2::text IS NULL OR warehouse=$2)
ORDER BY id ASC`
	args := []any{nullStr(filter.ItemCode), nullStr(filter.Warehouse)}
	if filter.PerPage > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query += ` LIMIT $3 OFFSET $4`
		args = append(args, filter.PerPage, (page-1)*filter.PerPage)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// CountLedger counts chain entries matching the filter.
func (r *Repository) CountLedger(ctx context.Context, filter LedgerFilter) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_ledger_entries
WHERE ($1::text IS NULL OR item_code=$1) AND ($2::text IS NULL OR warehouse=$2)`,
		nullStr(filter.ItemCode), nullStr(filter.Warehouse)).Scan(&count)
	return count, err
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ItemCode, &e.Warehouse, &e.PostingDate, &e.VoucherType, &e.VoucherNo,
			&e.ActualQty, &e.QtyAfter, &e.Rate, &e.StockValue, &e.ValueDiff, &e.IsCancelled, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
