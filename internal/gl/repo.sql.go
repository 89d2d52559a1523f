package gl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists general ledger entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetAccountByName(ctx context.Context, name string) (Account, error)
	InsertEntries(ctx context.Context, entries []Entry) ([]Entry, error)
	GetVoucherEntriesForUpdate(ctx context.Context, voucherType, voucherNo string, companyID *int64) ([]Entry, error)
	CountCancelledEntries(ctx context.Context, voucherType, voucherNo string, companyID *int64) (int64, error)
	MarkEntriesCancelled(ctx context.Context, ids []int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an existing transaction for ledger access.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("gl repository not initialised")
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

func (r *txRepository) GetAccountByName(ctx context.Context, name string) (Account, error) {
	var a Account
	err := r.tx.QueryRow(ctx, `SELECT id, name, parent_id, root_type, is_group, company_id, created_at, updated_at
FROM accounts WHERE name=$1`, name).
		Scan(&a.ID, &a.Name, &a.ParentID, &a.RootType, &a.IsGroup, &a.CompanyID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) InsertEntries(ctx context.Context, entries []Entry) ([]Entry, error) {
	inserted := make([]Entry, 0, len(entries))
	for _, e := range entries {
		row := r.tx.QueryRow(ctx, `INSERT INTO gl_entries
(posting_date, account_id, party_type, party, against, voucher_type, voucher_no, against_voucher_type, against_voucher_no, debit, credit, company_id, is_cancelled)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id, created_at`,
			e.PostingDate, e.AccountID, nullStr(e.PartyType), nullStr(e.Party), nullStr(e.Against),
			e.VoucherType, e.VoucherNo, nullStr(e.AgainstVoucherType), nullStr(e.AgainstVoucherNo),
			toNumeric(e.Debit), toNumeric(e.Credit), e.CompanyID, e.IsCancelled)
		if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
			return nil, err
		}
		inserted = append(inserted, e)
	}
	return inserted, nil
}

func (r *txRepository) GetVoucherEntriesForUpdate(ctx context.Context, voucherType, voucherNo string, companyID *int64) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, posting_date, account_id, COALESCE(party_type,''), COALESCE(party,''), COALESCE(against,''),
voucher_type, voucher_no, COALESCE(against_voucher_type,''), COALESCE(against_voucher_no,''), debit, credit, company_id, is_cancelled, created_at
FROM gl_entries
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
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM gl_entries
WHERE voucher_type=$1 AND voucher_no=$2 AND is_cancelled=TRUE AND ($3::bigint IS NULL OR company_id=$3)`,
		voucherType, voucherNo, companyID).Scan(&count)
	return count, err
}

func (r *txRepository) MarkEntriesCancelled(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	cmd, err := r.tx.Exec(ctx, `UPDATE gl_entries SET is_cancelled=TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() != int64(len(ids)) {
		return ErrVoucherNotFound
	}
	return nil
}

// AccountBalance aggregates non-cancelled entries for one account.
func (r *Repository) AccountBalance(ctx context.Context, q BalanceQuery) (Balance, error) {
	var b Balance
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(debit),0), COALESCE(SUM(credit),0)
FROM gl_entries
WHERE account_id=$1 AND is_cancelled=FALSE
  AND ($2::date IS NULL OR posting_date >= $2)
  AND ($3::date IS NULL OR posting_date <= $3)
  AND ($4::bigint IS NULL OR company_id=$4)`,
		q.AccountID, q.FromDate, q.ToDate, q.CompanyID).Scan(&b.Debit, &b.Credit)
	if err != nil {
		return Balance{}, err
	}
	b.Balance = b.Debit - b.Credit
	return b, nil
}

// ListAccounts retrieves the chart of accounts ordered by name.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, parent_id, root_type, is_group, company_id, created_at, updated_at
FROM accounts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.ParentID, &a.RootType, &a.IsGroup, &a.CompanyID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetRoleAccount resolves the configured account for a semantic role.
func (r *Repository) GetRoleAccount(ctx context.Context, companyID *int64, role AccountRole) (Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `SELECT a.id, a.name, a.parent_id, a.root_type, a.is_group, a.company_id, a.created_at, a.updated_at
FROM account_roles r
JOIN accounts a ON a.id = r.account_id
WHERE r.role=$1 AND ($2::bigint IS NULL OR r.company_id=$2)
ORDER BY r.company_id NULLS LAST LIMIT 1`, string(role), companyID).
		Scan(&a.ID, &a.Name, &a.ParentID, &a.RootType, &a.IsGroup, &a.CompanyID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: %s", ErrRoleNotMapped, role)
		}
		return Account{}, err
	}
	return a, nil
}

// AccountTotals aggregates debit/credit per account for report builders.
func (r *Repository) AccountTotals(ctx context.Context, from, to *time.Time, companyID *int64) ([]AccountTotal, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.name, a.root_type, COALESCE(SUM(e.debit),0), COALESCE(SUM(e.credit),0)
FROM accounts a
LEFT JOIN gl_entries e ON e.account_id = a.id AND e.is_cancelled=FALSE
  AND ($1::date IS NULL OR e.posting_date >= $1)
  AND ($2::date IS NULL OR e.posting_date <= $2)
  AND ($3::bigint IS NULL OR e.company_id=$3)
WHERE a.is_group=FALSE
GROUP BY a.id, a.name, a.root_type
ORDER BY a.name`, from, to, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var totals []AccountTotal
	for rows.Next() {
		var t AccountTotal
		if err := rows.Scan(&t.AccountID, &t.Name, &t.RootType, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.PostingDate, &e.AccountID, &e.PartyType, &e.Party, &e.Against,
			&e.VoucherType, &e.VoucherNo, &e.AgainstVoucherType, &e.AgainstVoucherNo,
			&e.Debit, &e.Credit, &e.CompanyID, &e.IsCancelled, &e.CreatedAt); err != nil {
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
