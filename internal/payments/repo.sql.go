package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists payment ledger entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	GetVoucherEntriesForUpdate(ctx context.Context, voucherType, voucherNo string, companyID *int64) ([]Entry, error)
	CountCancelledEntries(ctx context.Context, voucherType, voucherNo string, companyID *int64) (int64, error)
	MarkEntriesCancelled(ctx context.Context, ids []int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an existing transaction for payment ledger access.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("payments repository not initialised")
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

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO payment_ledger_entries
(account_type, party, posting_date, voucher_type, voucher_no, against_voucher_no, amount, reference_no, company_id, is_cancelled)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id, created_at`,
		e.AccountType, e.Party, e.PostingDate, e.VoucherType, e.VoucherNo, e.AgainstVoucherNo,
		toNumeric(e.Amount), nullStr(e.ReferenceNo), e.CompanyID, e.IsCancelled)
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) GetVoucherEntriesForUpdate(ctx context.Context, voucherType, voucherNo string, companyID *int64) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, account_type, party, posting_date, voucher_type, voucher_no, against_voucher_no,
amount, COALESCE(reference_no,''), company_id, is_cancelled, created_at
FROM payment_ledger_entries
WHERE voucher_type=$1 AND voucher_no=$2 AND is_cancelled=FALSE AND ($3::bigint IS NULL OR company_id=$3)
ORDER BY id ASC
FOR UPDATE`, voucherType, voucherNo, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *txRepository) CountCancelledEntries(ctx context.Context, voucherType, voucherNo string, companyID *int64) (int64, error) {
	var count int64
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM payment_ledger_entries
WHERE voucher_type=$1 AND voucher_no=$2 AND is_cancelled=TRUE AND ($3::bigint IS NULL OR company_id=$3)`,
		voucherType, voucherNo, companyID).Scan(&count)
	return count, err
}

func (r *txRepository) MarkEntriesCancelled(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	cmd, err := r.tx.Exec(ctx, `UPDATE payment_ledger_entries SET is_cancelled=TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() != int64(len(ids)) {
		return ErrVoucherNotFound
	}
	return nil
}

// Outstanding sums non-cancelled entries for one party/voucher pair.
func (r *Repository) Outstanding(ctx context.Context, party, againstVoucherNo string, companyID *int64) (float64, error) {
	var sum float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount),0) FROM payment_ledger_entries
WHERE party=$1 AND against_voucher_no=$2 AND is_cancelled=FALSE AND ($3::bigint IS NULL OR company_id=$3)`,
		party, againstVoucherNo, companyID).Scan(&sum)
	return sum, err
}

// PartyOutstanding aggregates across all vouchers for a party.
func (r *Repository) PartyOutstanding(ctx context.Context, party string, accountType *AccountType, companyID *int64) (float64, error) {
	var sum float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount),0) FROM payment_ledger_entries
WHERE party=$1 AND is_cancelled=FALSE
  AND ($2::text IS NULL OR account_type=$2)
  AND ($3::bigint IS NULL OR company_id=$3)`,
		party, accountType, companyID).Scan(&sum)
	return sum, err
}

// ListOpenEntries returns non-cancelled entries for aging computation.
func (r *Repository) ListOpenEntries(ctx context.Context, companyID *int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, account_type, party, posting_date, voucher_type, voucher_no, against_voucher_no,
amount, COALESCE(reference_no,''), company_id, is_cancelled, created_at
FROM payment_ledger_entries
WHERE is_cancelled=FALSE AND ($1::bigint IS NULL OR company_id=$1)
ORDER BY posting_date ASC, id ASC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AccountType, &e.Party, &e.PostingDate, &e.VoucherType, &e.VoucherNo,
			&e.AgainstVoucherNo, &e.Amount, &e.ReferenceNo, &e.CompanyID, &e.IsCancelled, &e.CreatedAt); err != nil {
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
