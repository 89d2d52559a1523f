package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/keystone-erp/keystone-erp/internal/shared"
)

// qtyTolerance absorbs float drift when checking a balance against zero.
const qtyTolerance = 0.0001

// RepositoryPort abstracts transactional repository behaviour plus read-side
// listings.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListBalances(ctx context.Context, filter LedgerFilter) ([]Balance, error)
	ListLedger(ctx context.Context, filter LedgerFilter) ([]Entry, error)
	CountLedger(ctx context.Context, filter LedgerFilter) (int, error)
}

// AuditPort records stock events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock ledger postings and cancellations.
type Service struct {
	repo          RepositoryPort
	audit         AuditPort
	allowNegative bool
	now           func() time.Time
}

// NewService constructs the stock ledger service. Negative partition
// balances are allowed until WithAllowNegativeStock(false) forbids them.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, allowNegative: true, now: time.Now}
}

// WithAllowNegativeStock toggles whether issues may drive a partition
// balance below zero. Cancellation reversals are exempt so a cancelled
// receipt can always be unwound.
func (s *Service) WithAllowNegativeStock(allow bool) {
	s.allowNegative = allow
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post applies a movement request. Receipt appends one positive entry, Issue
// one negative entry, Transfer an issue-then-receipt pair that commits or
// rolls back as a unit.
func (s *Service) Post(ctx context.Context, input MovementInput) ([]Entry, error) {
	var entries []Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = s.PostIn(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "stock.post", input.VoucherType, input.VoucherNo, map[string]any{
		"purpose": string(input.Purpose),
		"item":    input.ItemCode,
		"qty":     input.Qty,
	})
	return entries, nil
}

// PostIn posts inside an existing transaction.
func (s *Service) PostIn(ctx context.Context, tx TxRepository, input MovementInput) ([]Entry, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	switch input.Purpose {
	case PurposeReceipt:
		entry, err := s.appendEntry(ctx, tx, input, input.Warehouse, input.Qty)
		if err != nil {
			return nil, err
		}
		return []Entry{entry}, nil
	case PurposeIssue:
		entry, err := s.appendEntry(ctx, tx, input, input.Warehouse, -input.Qty)
		if err != nil {
			return nil, err
		}
		return []Entry{entry}, nil
	default:
		out, err := s.appendEntry(ctx, tx, input, input.FromWarehouse, -input.Qty)
		if err != nil {
			return nil, err
		}
		in, err := s.appendEntry(ctx, tx, input, input.ToWarehouse, input.Qty)
		if err != nil {
			return nil, err
		}
		return []Entry{out, in}, nil
	}
}

// appendEntry extends one partition chain. The balance upsert takes the row
// lock that serializes concurrent writers on the partition.
func (s *Service) appendEntry(ctx context.Context, tx TxRepository, input MovementInput, warehouse string, actualQty float64) (Entry, error) {
	balance, err := tx.LockBalance(ctx, input.ItemCode, warehouse)
	if err != nil {
		return Entry{}, err
	}
	qtyAfter := balance.Qty + actualQty
	if !s.allowNegative && qtyAfter < -qtyTolerance {
		return Entry{}, fmt.Errorf("%w: %s at %s would reach %.4f",
			ErrNegativeStock, input.ItemCode, warehouse, qtyAfter)
	}
	entry := Entry{
		ItemCode:    input.ItemCode,
		Warehouse:   warehouse,
		PostingDate: input.PostingDate,
		VoucherType: input.VoucherType,
		VoucherNo:   input.VoucherNo,
		ActualQty:   actualQty,
		QtyAfter:    qtyAfter,
		Rate:        input.Rate,
		StockValue:  qtyAfter * input.Rate,
		ValueDiff:   actualQty * input.Rate,
	}
	inserted, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	if err := tx.UpdateBalance(ctx, input.ItemCode, warehouse, qtyAfter, inserted.StockValue); err != nil {
		return Entry{}, err
	}
	return inserted, nil
}

// CancelEntries reverses a voucher by appending live negating entries that
// continue each partition chain, then flips the originals as cancellation
// markers. Cancelling a voucher twice fails with ErrAlreadyCancelled.
func (s *Service) CancelEntries(ctx context.Context, voucherType, voucherNo string) ([]Entry, error) {
	var reversed []Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		reversed, err = s.CancelEntriesIn(ctx, tx, voucherType, voucherNo)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "stock.cancel", voucherType, voucherNo, map[string]any{
		"rows": len(reversed),
	})
	return reversed, nil
}

// CancelEntriesIn cancels inside an existing transaction.
func (s *Service) CancelEntriesIn(ctx context.Context, tx TxRepository, voucherType, voucherNo string) ([]Entry, error) {
	originals, err := tx.GetVoucherEntriesForUpdate(ctx, voucherType, voucherNo)
	if err != nil {
		return nil, err
	}
	if len(originals) == 0 {
		cancelled, err := tx.CountCancelledEntries(ctx, voucherType, voucherNo)
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
		balance, err := tx.LockBalance(ctx, orig.ItemCode, orig.Warehouse)
		if err != nil {
			return nil, err
		}
		qtyAfter := balance.Qty - orig.ActualQty
		entry := Entry{
			ItemCode:    orig.ItemCode,
			Warehouse:   orig.Warehouse,
			PostingDate: orig.PostingDate,
			VoucherType: orig.VoucherType,
			VoucherNo:   orig.VoucherNo + "-CANCEL",
			ActualQty:   -orig.ActualQty,
			QtyAfter:    qtyAfter,
			Rate:        orig.Rate,
			StockValue:  qtyAfter * orig.Rate,
			ValueDiff:   -orig.ActualQty * orig.Rate,
		}
		inserted, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return nil, err
		}
		if err := tx.UpdateBalance(ctx, orig.ItemCode, orig.Warehouse, qtyAfter, inserted.StockValue); err != nil {
			return nil, err
		}
		reversed = append(reversed, inserted)
	}
	if err := tx.MarkEntriesCancelled(ctx, ids); err != nil {
		return nil, err
	}
	return reversed, nil
}

// Balances lists current quantity and value per partition.
func (s *Service) Balances(ctx context.Context, filter LedgerFilter) ([]Balance, error) {
	return s.repo.ListBalances(ctx, filter)
}

// Ledger lists chain entries, oldest first.
func (s *Service) Ledger(ctx context.Context, filter LedgerFilter) ([]Entry, error) {
	return s.repo.ListLedger(ctx, filter)
}

// LedgerPage lists one window of the ledger with pagination metadata.
func (s *Service) LedgerPage(ctx context.Context, filter LedgerFilter) ([]Entry, shared.Pagination, error) {
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	total, err := s.repo.CountLedger(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	entries, err := s.repo.ListLedger(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, shared.NewPagination(filter.Page, filter.PerPage, total), nil
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
		Entity:   "stock_ledger_entry",
		EntityID: voucherNo,
		Meta:     meta,
		At:       s.now(),
	})
}
