package gl

import (
	"context"
	"fmt"
	"time"

	"github.com/keystone-erp/keystone-erp/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour plus the
// read-side aggregations that run outside a posting transaction.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	AccountBalance(ctx context.Context, q BalanceQuery) (Balance, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	GetRoleAccount(ctx context.Context, companyID *int64, role AccountRole) (Account, error)
	AccountTotals(ctx context.Context, from, to *time.Time, companyID *int64) ([]AccountTotal, error)
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AccountTotal carries aggregated debit/credit per account for reports.
type AccountTotal struct {
	AccountID int64
	Name      string
	RootType  RootType
	Debit     float64
	Credit    float64
}

// Service coordinates posting and reversing general ledger entries.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache *AccountCache
	now   func() time.Time
}

// NewService constructs the posting engine.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithCache attaches the redis-backed chart-of-accounts cache.
func (s *Service) WithCache(cache *AccountCache) {
	s.cache = cache
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostEntries validates and persists a balanced set of movements as ledger
// rows, all sharing the voucher identity, atomically.
func (s *Service) PostEntries(ctx context.Context, input PostingInput) ([]Entry, error) {
	var entries []Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = s.PostEntriesIn(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, 0, "gl.post", input.VoucherType, input.VoucherNo, map[string]any{
		"movements": len(input.Movements),
	})
	return entries, nil
}

// PostEntriesIn posts inside an existing transaction. The voucher coordinator
// uses it to keep document, GL, stock and payment writes in one atomic unit.
func (s *Service) PostEntriesIn(ctx context.Context, tx TxRepository, input PostingInput) ([]Entry, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(input.Movements))
	for _, mv := range input.Movements {
		account, err := tx.GetAccountByName(ctx, mv.Account)
		if err != nil {
			return nil, err
		}
		if account.IsGroup {
			return nil, fmt.Errorf("%w: %s", ErrGroupAccount, mv.Account)
		}
		entries = append(entries, Entry{
			PostingDate: input.PostingDate,
			AccountID:   account.ID,
			PartyType:   mv.PartyType,
			Party:       mv.Party,
			Against:     mv.Against,
			VoucherType: input.VoucherType,
			VoucherNo:   input.VoucherNo,
			Debit:       mv.Debit,
			Credit:      mv.Credit,
			CompanyID:   input.CompanyID,
		})
	}
	inserted, err := tx.InsertEntries(ctx, entries)
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// ReverseEntries cancels a voucher by emitting swapped-side sibling rows and
// flipping the originals, all in one transaction. Reversing a voucher twice
// fails with ErrAlreadyCancelled.
func (s *Service) ReverseEntries(ctx context.Context, voucherType, voucherNo string, companyID *int64) ([]Entry, error) {
	var reversed []Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		reversed, err = s.ReverseEntriesIn(ctx, tx, voucherType, voucherNo, companyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, 0, "gl.reverse", voucherType, voucherNo, map[string]any{
		"rows": len(reversed),
	})
	return reversed, nil
}

// ReverseEntriesIn reverses inside an existing transaction.
func (s *Service) ReverseEntriesIn(ctx context.Context, tx TxRepository, voucherType, voucherNo string, companyID *int64) ([]Entry, error) {
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
	reversals := make([]Entry, 0, len(originals))
	ids := make([]int64, 0, len(originals))
	for _, orig := range originals {
		ids = append(ids, orig.ID)
		reversals = append(reversals, Entry{
			PostingDate:        orig.PostingDate,
			AccountID:          orig.AccountID,
			PartyType:          orig.PartyType,
			Party:              orig.Party,
			Against:            orig.Against,
			VoucherType:        orig.VoucherType,
			VoucherNo:          orig.VoucherNo + "-CANCEL",
			AgainstVoucherType: orig.VoucherType,
			AgainstVoucherNo:   orig.VoucherNo,
			Debit:              orig.Credit,
			Credit:             orig.Debit,
			CompanyID:          orig.CompanyID,
			IsCancelled:        true,
		})
	}
	inserted, err := tx.InsertEntries(ctx, reversals)
	if err != nil {
		return nil, err
	}
	if err := tx.MarkEntriesCancelled(ctx, ids); err != nil {
		return nil, err
	}
	return inserted, nil
}

// AccountBalance aggregates non-cancelled entries for an account.
// Balance is debit minus credit; no data yields zeroed totals.
func (s *Service) AccountBalance(ctx context.Context, q BalanceQuery) (Balance, error) {
	return s.repo.AccountBalance(ctx, q)
}

// ListAccounts returns the chart of accounts, served from cache when warm.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	if accounts, ok := s.cache.GetAccounts(ctx); ok {
		return accounts, nil
	}
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetAccounts(ctx, accounts)
	return accounts, nil
}

// RoleAccount resolves the configured account for a semantic role, e.g. the
// default receivable account of a company.
func (s *Service) RoleAccount(ctx context.Context, companyID *int64, role AccountRole) (Account, error) {
	return s.repo.GetRoleAccount(ctx, companyID, role)
}

// AccountTotals returns aggregated movement per account for the report
// builders.
func (s *Service) AccountTotals(ctx context.Context, from, to *time.Time, companyID *int64) ([]AccountTotal, error) {
	return s.repo.AccountTotals(ctx, from, to, companyID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, voucherType, voucherNo string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["voucher_type"] = voucherType
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "gl_entry",
		EntityID: voucherNo,
		Meta:     meta,
		At:       s.now(),
	})
}
