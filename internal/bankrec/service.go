package bankrec

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/keystone-erp/keystone-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	ListOpenVouchers(ctx context.Context, polarity Polarity) ([]Voucher, error)
	ListBankJournalLines(ctx context.Context, bankAccountID int64, polarity Polarity) ([]Voucher, error)
	ListUnreconciled(ctx context.Context, bankAccountID *int64) ([]Transaction, error)
}

// AuditPort records reconciliation events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts confirmed matches.
type MetricsPort interface {
	CountMatch()
}

// Service coordinates candidate matching and match confirmation.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
	now     func() time.Time
}

// NewService constructs the reconciliation service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches the match counter.
func (s *Service) WithMetrics(metrics MetricsPort) {
	s.metrics = metrics
}

// MatchCandidates ranks open vouchers against one statement transaction:
// payment allocations of the matching polarity plus submitted journal lines
// on the statement's bank account. A reconciled transaction yields an empty
// list.
func (s *Service) MatchCandidates(ctx context.Context, transactionID int64) ([]Candidate, error) {
	txn, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.IsReconciled {
		return []Candidate{}, nil
	}
	vouchers, err := s.repo.ListOpenVouchers(ctx, txn.Polarity())
	if err != nil {
		return nil, err
	}
	journals, err := s.repo.ListBankJournalLines(ctx, txn.BankAccountID, txn.Polarity())
	if err != nil {
		return nil, err
	}
	return RankCandidates(txn, append(vouchers, journals...)), nil
}

// ConfirmInput identifies the voucher chosen for a transaction.
type ConfirmInput struct {
	TransactionID int64
	VoucherType   string
	VoucherID     int64
	VoucherNo     string
	MatchedAmount float64
}

// ConfirmMatch links a transaction to a voucher and sets the reconciled
// latch. The lock-check-link-flip sequence runs in one transaction so two
// concurrent confirmations cannot both succeed.
func (s *Service) ConfirmMatch(ctx context.Context, input ConfirmInput) (Reconciliation, error) {
	var link Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		txn, err := tx.GetTransactionForUpdate(ctx, input.TransactionID)
		if err != nil {
			return err
		}
		if txn.IsReconciled {
			return ErrAlreadyReconciled
		}
		link, err = tx.InsertReconciliation(ctx, Reconciliation{
			TransactionID: input.TransactionID,
			VoucherType:   input.VoucherType,
			VoucherID:     input.VoucherID,
			VoucherNo:     input.VoucherNo,
			MatchedAmount: input.MatchedAmount,
			Reference:     uuid.NewString(),
		})
		if err != nil {
			return err
		}
		return tx.MarkReconciled(ctx, input.TransactionID)
	})
	if err != nil {
		return Reconciliation{}, err
	}
	if s.metrics != nil {
		s.metrics.CountMatch()
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "bankrec.confirm",
			Entity:   "bank_transaction",
			EntityID: input.VoucherNo,
			Meta: map[string]any{
				"transaction_id": input.TransactionID,
				"voucher_type":   input.VoucherType,
				"amount":         input.MatchedAmount,
			},
			At: s.now(),
		})
	}
	return link, nil
}

// Unreconciled lists statement transactions still awaiting a match.
func (s *Service) Unreconciled(ctx context.Context, bankAccountID *int64) ([]Transaction, error) {
	return s.repo.ListUnreconciled(ctx, bankAccountID)
}
