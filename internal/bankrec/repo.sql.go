package bankrec

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists reconciliation entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error)
	InsertReconciliation(ctx context.Context, link Reconciliation) (Reconciliation, error)
	MarkReconciled(ctx context.Context, transactionID int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an existing transaction for reconciliation access.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("bankrec repository not initialised")
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

const transactionColumns = `id, bank_account_id, txn_date, amount, COALESCE(reference_no,''), COALESCE(description,''), is_reconciled, created_at`

func (r *txRepository) GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+transactionColumns+`
FROM bank_transactions WHERE id=$1 FOR UPDATE`, id)
	return scanTransaction(row)
}

func (r *txRepository) InsertReconciliation(ctx context.Context, link Reconciliation) (Reconciliation, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO bank_reconciliations
(transaction_id, voucher_type, voucher_id, voucher_no, matched_amount, reference)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id, created_at`,
		link.TransactionID, link.VoucherType, link.VoucherID, link.VoucherNo, toNumeric(link.MatchedAmount), link.Reference)
	if err := row.Scan(&link.ID, &link.CreatedAt); err != nil {
		return Reconciliation{}, err
	}
	return link, nil
}

func (r *txRepository) MarkReconciled(ctx context.Context, transactionID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE bank_transactions SET is_reconciled=TRUE WHERE id=$1 AND is_reconciled=FALSE`, transactionID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyReconciled
	}
	return nil
}

// GetTransaction loads one statement transaction.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transactionColumns+`
FROM bank_transactions WHERE id=$1`, id)
	return scanTransaction(row)
}

// ListOpenVouchers aggregates non-cancelled payment allocations of the given
// polarity into candidate vouchers. Receive matches receivable allocations,
// Pay matches payable ones.
func (r *Repository) ListOpenVouchers(ctx context.Context, polarity Polarity) ([]Voucher, error) {
	accountType := "Receivable"
	if polarity == PolarityPay {
		accountType = "Payable"
	}
	rows, err := r.pool.Query(ctx, `SELECT voucher_type, MIN(id), voucher_no, party,
SUM(amount), MIN(posting_date), COALESCE(MIN(reference_no),'')
FROM payment_ledger_entries
WHERE is_cancelled=FALSE AND account_type=$1 AND amount < 0
GROUP BY voucher_type, voucher_no, party
ORDER BY MIN(posting_date) DESC`, accountType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var vouchers []Voucher
	for rows.Next() {
		var v Voucher
		if err := rows.Scan(&v.VoucherType, &v.VoucherID, &v.VoucherNo, &v.Party,
			&v.Amount, &v.PostingDate, &v.ReferenceNo); err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

// ListBankJournalLines aggregates non-cancelled journal entry lines posted
// to the statement's bank account. Receive keeps vouchers that debit the
// account, Pay those that credit it. Journal lines carry no reference, so
// they can score on amount and date only.
func (r *Repository) ListBankJournalLines(ctx context.Context, bankAccountID int64, polarity Polarity) ([]Voucher, error) {
	side := `> 0`
	if polarity == PolarityPay {
		side = `< 0`
	}
	rows, err := r.pool.Query(ctx, `SELECT voucher_type, MIN(id), voucher_no, COALESCE(MIN(party),''),
SUM(debit - credit), MIN(posting_date)
FROM gl_entries
WHERE is_cancelled=FALSE AND voucher_type='Journal Entry' AND account_id=$1
GROUP BY voucher_type, voucher_no
HAVING SUM(debit - credit) `+side+`
ORDER BY MIN(posting_date) DESC`, bankAccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var vouchers []Voucher
	for rows.Next() {
		var v Voucher
		if err := rows.Scan(&v.VoucherType, &v.VoucherID, &v.VoucherNo, &v.Party,
			&v.Amount, &v.PostingDate); err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

// ListUnreconciled lists transactions without a confirmed match.
func (r *Repository) ListUnreconciled(ctx context.Context, bankAccountID *int64) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+`
FROM bank_transactions
WHERE is_reconciled=FALSE AND ($1::bigint IS NULL OR bank_account_id=$1)
ORDER BY txn_date ASC, id ASC`, bankAccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txns []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.BankAccountID, &t.Date, &t.Amount, &t.ReferenceNo,
			&t.Description, &t.IsReconciled, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.BankAccountID, &t.Date, &t.Amount, &t.ReferenceNo,
		&t.Description, &t.IsReconciled, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return t, nil
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
