package stock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type partitionKey struct {
	item      string
	warehouse string
}

type memoryRepo struct {
	entries  []Entry
	balances map[partitionKey]Balance
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{balances: map[partitionKey]Balance{}, nextID: 1}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	entrySnap := make([]Entry, len(m.entries))
	copy(entrySnap, m.entries)
	balanceSnap := make(map[partitionKey]Balance, len(m.balances))
	for k, v := range m.balances {
		balanceSnap[k] = v
	}
	snapID := m.nextID
	if err := fn(ctx, m); err != nil {
		m.entries = entrySnap
		m.balances = balanceSnap
		m.nextID = snapID
		return err
	}
	return nil
}

func (m *memoryRepo) LockBalance(_ context.Context, itemCode, warehouse string) (Balance, error) {
	key := partitionKey{itemCode, warehouse}
	if b, ok := m.balances[key]; ok {
		return b, nil
	}
	b := Balance{ItemCode: itemCode, Warehouse: warehouse}
	m.balances[key] = b
	return b, nil
}

func (m *memoryRepo) InsertEntry(_ context.Context, e Entry) (Entry, error) {
	e.ID = m.nextID
	m.nextID++
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memoryRepo) UpdateBalance(_ context.Context, itemCode, warehouse string, qty, stockValue float64) error {
	key := partitionKey{itemCode, warehouse}
	b := m.balances[key]
	b.ItemCode = itemCode
	b.Warehouse = warehouse
	b.Qty = qty
	b.StockValue = stockValue
	m.balances[key] = b
	return nil
}

func (m *memoryRepo) GetVoucherEntriesForUpdate(_ context.Context, voucherType, voucherNo string) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if e.VoucherType == voucherType && e.VoucherNo == voucherNo && !e.IsCancelled {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryRepo) CountCancelledEntries(_ context.Context, voucherType, voucherNo string) (int64, error) {
	var count int64
	for _, e := range m.entries {
		if e.VoucherType == voucherType && e.VoucherNo == voucherNo && e.IsCancelled {
			count++
		}
	}
	return count, nil
}

func (m *memoryRepo) MarkEntriesCancelled(_ context.Context, ids []int64) error {
	for _, id := range ids {
		for i := range m.entries {
			if m.entries[i].ID == id {
				m.entries[i].IsCancelled = true
			}
		}
	}
	return nil
}

func (m *memoryRepo) ListBalances(_ context.Context, filter LedgerFilter) ([]Balance, error) {
	var out []Balance
	for _, b := range m.balances {
		if filter.ItemCode != "" && b.ItemCode != filter.ItemCode {
			continue
		}
		if filter.Warehouse != "" && b.Warehouse != filter.Warehouse {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *memoryRepo) ListLedger(_ context.Context, filter LedgerFilter) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if filter.ItemCode != "" && e.ItemCode != filter.ItemCode {
			continue
		}
		if filter.Warehouse != "" && e.Warehouse != filter.Warehouse {
			continue
		}
		out = append(out, e)
	}
	if filter.PerPage > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * filter.PerPage
		if start >= len(out) {
			return nil, nil
		}
		end := start + filter.PerPage
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, nil
}

func (m *memoryRepo) CountLedger(_ context.Context, filter LedgerFilter) (int, error) {
	count := 0
	for _, e := range m.entries {
		if filter.ItemCode != "" && e.ItemCode != filter.ItemCode {
			continue
		}
		if filter.Warehouse != "" && e.Warehouse != filter.Warehouse {
			continue
		}
		count++
	}
	return count, nil
}

func movement(purpose Purpose, voucherNo string, qty, rate float64) MovementInput {
	return MovementInput{
		Purpose:     purpose,
		ItemCode:    "ITEM-A",
		Qty:         qty,
		Rate:        rate,
		Warehouse:   "Main",
		VoucherType: "Stock Entry",
		VoucherNo:   voucherNo,
		PostingDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestReceiptThenIssueChain(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	entries, err := svc.Post(ctx, movement(PurposeReceipt, "STE-2025-00001", 10, 5))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.InDelta(t, 10, entries[0].QtyAfter, 0.001)
	require.InDelta(t, 50, entries[0].StockValue, 0.001)
	require.InDelta(t, 50, entries[0].ValueDiff, 0.001)

	entries, err = svc.Post(ctx, movement(PurposeIssue, "STE-2025-00002", 4, 5))
	require.NoError(t, err)
	require.InDelta(t, -4, entries[0].ActualQty, 0.001)
	require.InDelta(t, 6, entries[0].QtyAfter, 0.001)
	require.InDelta(t, 30, entries[0].StockValue, 0.001)
	require.InDelta(t, -20, entries[0].ValueDiff, 0.001)

	balances, err := svc.Balances(ctx, LedgerFilter{ItemCode: "ITEM-A"})
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.InDelta(t, 6, balances[0].Qty, 0.001)
	require.InDelta(t, 30, balances[0].StockValue, 0.001)
}

func TestTransferPostsBothLegs(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Post(ctx, movement(PurposeReceipt, "STE-2025-00003", 8, 10))
	require.NoError(t, err)

	input := movement(PurposeTransfer, "STE-2025-00004", 3, 10)
	input.Warehouse = ""
	input.FromWarehouse = "Main"
	input.ToWarehouse = "Branch"
	entries, err := svc.Post(ctx, input)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "Main", entries[0].Warehouse)
	require.InDelta(t, 5, entries[0].QtyAfter, 0.001)
	require.Equal(t, "Branch", entries[1].Warehouse)
	require.InDelta(t, 3, entries[1].QtyAfter, 0.001)
}

func TestTransferSameWarehouseRejected(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	input := movement(PurposeTransfer, "STE-2025-00005", 3, 10)
	input.Warehouse = ""
	input.FromWarehouse = "Main"
	input.ToWarehouse = "Main"
	_, err := svc.Post(context.Background(), input)
	require.Error(t, err)
}

func TestNegativeBalanceAllowed(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	entries, err := svc.Post(context.Background(), movement(PurposeIssue, "STE-2025-00006", 2, 7))
	require.NoError(t, err)
	require.InDelta(t, -2, entries[0].QtyAfter, 0.001)
}

func TestNegativeBalanceForbiddenWhenConfigured(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	svc.WithAllowNegativeStock(false)
	ctx := context.Background()

	_, err := svc.Post(ctx, movement(PurposeIssue, "STE-2025-00007", 2, 7))
	require.ErrorIs(t, err, ErrNegativeStock)

	_, err = svc.Post(ctx, movement(PurposeReceipt, "STE-2025-00008", 5, 7))
	require.NoError(t, err)

	_, err = svc.Post(ctx, movement(PurposeIssue, "STE-2025-00009", 6, 7))
	require.ErrorIs(t, err, ErrNegativeStock)

	// The rejected issue must leave the balance untouched.
	balances, err := svc.Balances(ctx, LedgerFilter{ItemCode: "ITEM-A"})
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.InDelta(t, 5, balances[0].Qty, 0.001)

	// Cancelling the receipt is exempt from the floor check.
	_, err = svc.Post(ctx, movement(PurposeIssue, "STE-2025-00010", 5, 7))
	require.NoError(t, err)
	reversed, err := svc.CancelEntries(ctx, "Stock Entry", "STE-2025-00008")
	require.NoError(t, err)
	require.InDelta(t, -5, reversed[0].QtyAfter, 0.001)
}

func TestCancelContinuesChainAndFlagsOriginals(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Post(ctx, movement(PurposeReceipt, "STE-2025-00007", 10, 5))
	require.NoError(t, err)

	reversed, err := svc.CancelEntries(ctx, "Stock Entry", "STE-2025-00007")
	require.NoError(t, err)
	require.Len(t, reversed, 1)
	require.False(t, reversed[0].IsCancelled)
	require.Equal(t, "STE-2025-00007-CANCEL", reversed[0].VoucherNo)
	require.InDelta(t, -10, reversed[0].ActualQty, 0.001)
	require.InDelta(t, 0, reversed[0].QtyAfter, 0.001)

	ledger, err := svc.Ledger(ctx, LedgerFilter{ItemCode: "ITEM-A", Warehouse: "Main"})
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	require.True(t, ledger[0].IsCancelled)

	balances, err := svc.Balances(ctx, LedgerFilter{ItemCode: "ITEM-A"})
	require.NoError(t, err)
	require.InDelta(t, 0, balances[0].Qty, 0.001)
}

func TestDoubleCancelReturnsAlreadyCancelled(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Post(ctx, movement(PurposeReceipt, "STE-2025-00008", 5, 2))
	require.NoError(t, err)
	_, err = svc.CancelEntries(ctx, "Stock Entry", "STE-2025-00008")
	require.NoError(t, err)

	_, err = svc.CancelEntries(ctx, "Stock Entry", "STE-2025-00008")
	require.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestCancelUnknownVoucher(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	_, err := svc.CancelEntries(context.Background(), "Stock Entry", "STE-2025-09999")
	require.ErrorIs(t, err, ErrVoucherNotFound)
}

func TestChainLinkInvariant(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	moves := []MovementInput{
		movement(PurposeReceipt, "STE-2025-00010", 10, 5),
		movement(PurposeIssue, "STE-2025-00011", 3, 5),
		movement(PurposeReceipt, "STE-2025-00012", 7, 6),
		movement(PurposeIssue, "STE-2025-00013", 9, 6),
	}
	for _, mv := range moves {
		_, err := svc.Post(ctx, mv)
		require.NoError(t, err)
	}

	ledger, err := svc.Ledger(ctx, LedgerFilter{ItemCode: "ITEM-A", Warehouse: "Main"})
	require.NoError(t, err)
	require.Len(t, ledger, 4)
	prev := 0.0
	for _, e := range ledger {
		require.InDelta(t, prev+e.ActualQty, e.QtyAfter, 0.001)
		prev = e.QtyAfter
	}
	require.InDelta(t, 5, prev, 0.001)
}

func TestInvalidMovementRejected(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	bad := movement(PurposeReceipt, "STE-2025-00014", 0, 5)
	_, err := svc.Post(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	bad = movement(PurposeReceipt, "STE-2025-00015", 1, -5)
	_, err = svc.Post(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidRate)
}

func TestLedgerPageWindowsEntries(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := svc.Post(ctx, movement(PurposeReceipt, fmt.Sprintf("STE-2025-%05d", 20+i), 1, 2))
		require.NoError(t, err)
	}

	entries, page, err := svc.LedgerPage(ctx, LedgerFilter{ItemCode: "ITEM-A", Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 5, page.Total)
	require.Equal(t, 3, page.TotalPages)
	require.Equal(t, 2, page.Page)
}
