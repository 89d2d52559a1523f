package payments

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	entries []Entry
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make([]Entry, len(m.entries))
	copy(snapshot, m.entries)
	snapID := m.nextID
	if err := fn(ctx, m); err != nil {
		m.entries = snapshot
		m.nextID = snapID
		return err
	}
	return nil
}

func (m *memoryRepo) InsertEntry(_ context.Context, e Entry) (Entry, error) {
	e.ID = m.nextID
	m.nextID++
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memoryRepo) GetVoucherEntriesForUpdate(_ context.Context, voucherType, voucherNo string, _ *int64) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if e.VoucherType == voucherType && e.VoucherNo == voucherNo && !e.IsCancelled {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryRepo) CountCancelledEntries(_ context.Context, voucherType, voucherNo string, _ *int64) (int64, error) {
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

func (m *memoryRepo) Outstanding(_ context.Context, party, againstVoucherNo string, _ *int64) (float64, error) {
	var sum float64
	for _, e := range m.entries {
		if e.Party == party && e.AgainstVoucherNo == againstVoucherNo && !e.IsCancelled {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (m *memoryRepo) PartyOutstanding(_ context.Context, party string, accountType *AccountType, _ *int64) (float64, error) {
	var sum float64
	for _, e := range m.entries {
		if e.Party != party || e.IsCancelled {
			continue
		}
		if accountType != nil && e.AccountType != *accountType {
			continue
		}
		sum += e.Amount
	}
	return sum, nil
}

func (m *memoryRepo) ListOpenEntries(_ context.Context, _ *int64) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if !e.IsCancelled {
			out = append(out, e)
		}
	}
	return out, nil
}

func invoiceInput(voucherNo string, amount float64, date time.Time) RecordInput {
	return RecordInput{
		AccountType: TypeReceivable,
		Party:       "ACME Corp",
		PostingDate: date,
		VoucherType: "Sales Invoice",
		VoucherNo:   voucherNo,
		Amount:      amount,
	}
}

func TestAllocationReducesOutstanding(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	entry, err := svc.RecordEntry(ctx, invoiceInput("SINV-2025-00001", 1000, date))
	require.NoError(t, err)
	require.Equal(t, "SINV-2025-00001", entry.AgainstVoucherNo)

	_, err = svc.RecordEntry(ctx, RecordInput{
		AccountType:      TypeReceivable,
		Party:            "ACME Corp",
		PostingDate:      date.AddDate(0, 0, 10),
		VoucherType:      "Payment Entry",
		VoucherNo:        "PE-2025-00001",
		AgainstVoucherNo: "SINV-2025-00001",
		Amount:           -400,
	})
	require.NoError(t, err)

	outstanding, err := svc.Outstanding(ctx, "ACME Corp", "SINV-2025-00001", nil)
	require.NoError(t, err)
	require.InDelta(t, 600, outstanding, 0.001)
}

func TestFullAllocationConvergesToZero(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.RecordEntry(ctx, invoiceInput("SINV-2025-00002", 750, date))
	require.NoError(t, err)
	for i, amount := range []float64{-300, -450} {
		_, err = svc.RecordEntry(ctx, RecordInput{
			AccountType:      TypeReceivable,
			Party:            "ACME Corp",
			PostingDate:      date.AddDate(0, 0, i+1),
			VoucherType:      "Payment Entry",
			VoucherNo:        "PE-2025-0000" + string(rune('2'+i)),
			AgainstVoucherNo: "SINV-2025-00002",
			Amount:           amount,
		})
		require.NoError(t, err)
	}

	outstanding, err := svc.Outstanding(ctx, "ACME Corp", "SINV-2025-00002", nil)
	require.NoError(t, err)
	require.LessOrEqual(t, math.Abs(outstanding), OutstandingTolerance)
}

func TestCancelRestoresOutstanding(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.RecordEntry(ctx, invoiceInput("SINV-2025-00003", 500, date))
	require.NoError(t, err)

	reversed, err := svc.CancelEntries(ctx, "Sales Invoice", "SINV-2025-00003", nil)
	require.NoError(t, err)
	require.Len(t, reversed, 1)
	require.True(t, reversed[0].IsCancelled)
	require.InDelta(t, -500, reversed[0].Amount, 0.001)
	require.Equal(t, "SINV-2025-00003-CANCEL", reversed[0].VoucherNo)

	outstanding, err := svc.Outstanding(ctx, "ACME Corp", "SINV-2025-00003", nil)
	require.NoError(t, err)
	require.InDelta(t, 0, outstanding, 0.001)
}

func TestDoubleCancelReturnsAlreadyCancelled(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.RecordEntry(ctx, invoiceInput("SINV-2025-00004", 120, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = svc.CancelEntries(ctx, "Sales Invoice", "SINV-2025-00004", nil)
	require.NoError(t, err)

	_, err = svc.CancelEntries(ctx, "Sales Invoice", "SINV-2025-00004", nil)
	require.ErrorIs(t, err, ErrAlreadyCancelled)
	require.Len(t, repo.entries, 2)
}

func TestCancelUnknownVoucher(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	_, err := svc.CancelEntries(context.Background(), "Sales Invoice", "SINV-2025-09999", nil)
	require.ErrorIs(t, err, ErrVoucherNotFound)
}

func TestZeroAmountRejected(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	input := invoiceInput("SINV-2025-00005", 0, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	_, err := svc.RecordEntry(context.Background(), input)
	require.ErrorIs(t, err, ErrZeroAmount)
}

func TestPartyOutstandingFiltersAccountType(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.RecordEntry(ctx, invoiceInput("SINV-2025-00006", 300, date))
	require.NoError(t, err)
	_, err = svc.RecordEntry(ctx, RecordInput{
		AccountType: TypePayable,
		Party:       "ACME Corp",
		PostingDate: date,
		VoucherType: "Purchase Invoice",
		VoucherNo:   "PINV-2025-00001",
		Amount:      200,
	})
	require.NoError(t, err)

	receivable := TypeReceivable
	sum, err := svc.PartyOutstanding(ctx, "ACME Corp", &receivable, nil)
	require.NoError(t, err)
	require.InDelta(t, 300, sum, 0.001)

	sum, err = svc.PartyOutstanding(ctx, "ACME Corp", nil, nil)
	require.NoError(t, err)
	require.InDelta(t, 500, sum, 0.001)
}

func TestAgingReportBucketsAndSkipsSettled(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	asOf := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return asOf })
	ctx := context.Background()

	_, err := svc.RecordEntry(ctx, invoiceInput("SINV-2025-00007", 100, asOf.AddDate(0, 0, -10)))
	require.NoError(t, err)
	_, err = svc.RecordEntry(ctx, invoiceInput("SINV-2025-00008", 200, asOf.AddDate(0, 0, -45)))
	require.NoError(t, err)
	_, err = svc.RecordEntry(ctx, invoiceInput("SINV-2025-00009", 300, asOf.AddDate(0, 0, -100)))
	require.NoError(t, err)
	// Settled position must not appear.
	_, err = svc.RecordEntry(ctx, invoiceInput("SINV-2025-00010", 400, asOf.AddDate(0, 0, -5)))
	require.NoError(t, err)
	_, err = svc.RecordEntry(ctx, RecordInput{
		AccountType:      TypeReceivable,
		Party:            "ACME Corp",
		PostingDate:      asOf,
		VoucherType:      "Payment Entry",
		VoucherNo:        "PE-2025-00010",
		AgainstVoucherNo: "SINV-2025-00010",
		Amount:           -400,
	})
	require.NoError(t, err)

	report, err := svc.AgingReport(ctx, nil)
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)
	require.Equal(t, "SINV-2025-00009", report.Rows[0].AgainstVoucherNo)
	require.Equal(t, "90+", report.Rows[0].Bucket)
	require.InDelta(t, 100, report.Buckets["0-30"], 0.001)
	require.InDelta(t, 200, report.Buckets["31-60"], 0.001)
	require.InDelta(t, 300, report.Buckets["90+"], 0.001)
	require.InDelta(t, 600, report.Total, 0.001)
}
