package payments

import (
	"context"
	"time"

	"github.com/keystone-erp/keystone-erp/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour plus the
// read-side aggregations.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Outstanding(ctx context.Context, party, againstVoucherNo string, companyID *int64) (float64, error)
	PartyOutstanding(ctx context.Context, party string, accountType *AccountType, companyID *int64) (float64, error)
	ListOpenEntries(ctx context.Context, companyID *int64) ([]Entry, error)
}

// AuditPort records payment ledger events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates outstanding ledger postings and cancellations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the payment ledger service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RecordEntry appends one signed entry.
func (s *Service) RecordEntry(ctx context.Context, input RecordInput) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.RecordEntryIn(ctx, tx, input)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	s.recordAudit(ctx, "payments.record", input.VoucherType, input.VoucherNo, map[string]any{
		"party":  input.Party,
		"amount": input.Amount,
	})
	return entry, nil
}

// RecordEntryIn records inside an existing transaction.
func (s *Service) RecordEntryIn(ctx context.Context, tx TxRepository, input RecordInput) (Entry, error) {
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}
	against := input.AgainstVoucherNo
	if against == "" {
		against = input.VoucherNo
	}
	entry := Entry{
		AccountType:      input.AccountType,
		Party:            input.Party,
		PostingDate:      input.PostingDate,
		VoucherType:      input.VoucherType,
		VoucherNo:        input.VoucherNo,
		AgainstVoucherNo: against,
		Amount:           input.Amount,
		ReferenceNo:      input.ReferenceNo,
		CompanyID:        input.CompanyID,
	}
	return tx.InsertEntry(ctx, entry)
}

// CancelEntries reverses a voucher by emitting negated sibling rows and
// flipping the originals, all in one transaction. Cancelling twice fails with
// ErrAlreadyCancelled.
func (s *Service) CancelEntries(ctx context.Context, voucherType, voucherNo string, companyID *int64) ([]Entry, error) {
	var reversed []Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		reversed, err = s.CancelEntriesIn(ctx, tx, voucherType, voucherNo, companyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "payments.cancel", voucherType, voucherNo, map[string]any{
		"rows": len(reversed),
	})
	return reversed, nil
}

// CancelEntriesIn cancels inside an existing transaction.
func (s *Service) CancelEntriesIn(ctx context.Context, tx TxRepository, voucherType, voucherNo string, companyID *int64) ([]Entry, error) {
	originals, err := tx.GetVoucherEntriesForUpdate(ctx, voucherType, voucherNo, companyID)
	if err != nil {
		return nil, err
	}
	if len(originals) == 0 {
		cancelled, err := tx.CountCancelledEntries(ctx, voucherType, voucherNo, companyID)
		if err != nil {
			return nil, err
		}
		if cancelled > 0 {
			return nil, ErrAlreadyCancelled
		}
		return nil, ErrVoucherNotFound
	}
	reversed := make([]Entry, 0, len(originals))
	ids := make([]int64, 0, len(originals))
	for _, orig := range originals {
		ids = append(ids, orig.ID)
		entry := Entry{
			AccountType:      orig.AccountType,
			Party:            orig.Party,
			PostingDate:      orig.PostingDate,
			VoucherType:      orig.VoucherType,
			VoucherNo:        orig.VoucherNo + "-CANCEL",
			AgainstVoucherNo: orig.AgainstVoucherNo,
			Amount:           -orig.Amount,
			ReferenceNo:      orig.ReferenceNo,
			CompanyID:        orig.CompanyID,
			IsCancelled:      true,
		}
		inserted, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return nil, err
		}
		reversed = append(reversed, inserted)
	}
	if err := tx.MarkEntriesCancelled(ctx, ids); err != nil {
		return nil, err
	}
	return reversed, nil
}

// Outstanding sums non-cancelled entries for one party and voucher. It
// converges to zero once allocations equal the original amount.
func (s *Service) Outstanding(ctx context.Context, party, againstVoucherNo string, companyID *int64) (float64, error) {
	return s.repo.Outstanding(ctx, party, againstVoucherNo, companyID)
}

// PartyOutstanding aggregates across all vouchers for a party.
func (s *Service) PartyOutstanding(ctx context.Context, party string, accountType *AccountType, companyID *int64) (float64, error) {
	return s.repo.PartyOutstanding(ctx, party, accountType, companyID)
}

// AgingReport groups open positions by (party, voucher) with day buckets.
func (s *Service) AgingReport(ctx context.Context, companyID *int64) (AgingReport, error) {
	entries, err := s.repo.ListOpenEntries(ctx, companyID)
	if err != nil {
		return AgingReport{}, err
	}
	return BuildAgingReport(entries, s.now()), nil
}

func (s *Service) recordAudit(ctx context.Context, action, voucherType, voucherNo string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["voucher_type"] = voucherType
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "payment_ledger_entry",
		EntityID: voucherNo,
		Meta:     meta,
		At:       s.now(),
	})
}
