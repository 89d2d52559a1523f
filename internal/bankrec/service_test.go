package bankrec

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	transactions map[int64]*Transaction
	vouchers     []Voucher
	journals     map[int64][]Voucher
	links        []Reconciliation
	nextID       int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{transactions: map[int64]*Transaction{}, journals: map[int64][]Voucher{}, nextID: 1}
}

func (m *memoryRepo) addTransaction(t Transaction) int64 {
	t.ID = m.nextID
	m.nextID++
	m.transactions[t.ID] = &t
	return t.ID
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) GetTransaction(_ context.Context, id int64) (Transaction, error) {
	if t, ok := m.transactions[id]; ok {
		return *t, nil
	}
	return Transaction{}, ErrTransactionNotFound
}

func (m *memoryRepo) GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error) {
	return m.GetTransaction(ctx, id)
}

func (m *memoryRepo) ListOpenVouchers(_ context.Context, _ Polarity) ([]Voucher, error) {
	return m.vouchers, nil
}

func (m *memoryRepo) ListBankJournalLines(_ context.Context, bankAccountID int64, polarity Polarity) ([]Voucher, error) {
	var out []Voucher
	for _, v := range m.journals[bankAccountID] {
		if polarity == PolarityReceive && v.Amount > 0 {
			out = append(out, v)
		}
		if polarity == PolarityPay && v.Amount < 0 {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListUnreconciled(_ context.Context, _ *int64) ([]Transaction, error) {
	var out []Transaction
	for _, t := range m.transactions {
		if !t.IsReconciled {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memoryRepo) InsertReconciliation(_ context.Context, link Reconciliation) (Reconciliation, error) {
	link.ID = m.nextID
	m.nextID++
	link.CreatedAt = time.Now()
	m.links = append(m.links, link)
	return link, nil
}

func (m *memoryRepo) MarkReconciled(_ context.Context, transactionID int64) error {
	t, ok := m.transactions[transactionID]
	if !ok {
		return ErrTransactionNotFound
	}
	if t.IsReconciled {
		return ErrAlreadyReconciled
	}
	t.IsReconciled = true
	return nil
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestScoringWeights(t *testing.T) {
	txn := Transaction{Amount: 500, Date: day(10), ReferenceNo: "UTR-77"}

	full := Voucher{Amount: -500, PostingDate: day(10), ReferenceNo: "UTR-77"}
	require.Equal(t, 100, ScoreVoucher(txn, full))

	amountOnly := Voucher{Amount: -500, PostingDate: day(3)}
	require.Equal(t, 50, ScoreVoucher(txn, amountOnly))

	amountAndDate := Voucher{Amount: -500, PostingDate: day(10)}
	require.Equal(t, 70, ScoreVoucher(txn, amountAndDate))

	nothing := Voucher{Amount: -123, PostingDate: day(3), ReferenceNo: "OTHER"}
	require.Equal(t, 0, ScoreVoucher(txn, nothing))
}

func TestMissingReferenceDoesNotScore(t *testing.T) {
	txn := Transaction{Amount: 500, Date: day(10)}
	v := Voucher{Amount: -500, PostingDate: day(10)}
	// Scenario: both references absent scores 70, not 100.
	require.Equal(t, 70, ScoreVoucher(txn, v))
}

func TestRankCandidatesOrdersAndTruncates(t *testing.T) {
	txn := Transaction{Amount: 500, Date: day(10), ReferenceNo: "UTR-77"}
	vouchers := []Voucher{
		{VoucherNo: "PE-1", Amount: -500, PostingDate: day(3)},
		{VoucherNo: "PE-2", Amount: -500, PostingDate: day(10), ReferenceNo: "UTR-77"},
		{VoucherNo: "PE-3", Amount: -999, PostingDate: day(2), ReferenceNo: "NOPE"},
	}
	for i := 0; i < 12; i++ {
		vouchers = append(vouchers, Voucher{
			VoucherNo:   fmt.Sprintf("PE-D%d", i),
			Amount:      -500,
			PostingDate: day(1),
		})
	}

	candidates := RankCandidates(txn, vouchers)
	require.Len(t, candidates, MaxCandidates)
	require.Equal(t, "PE-2", candidates[0].Voucher.VoucherNo)
	require.Equal(t, 100, candidates[0].Score)
	for _, c := range candidates {
		require.Positive(t, c.Score)
		require.NotEqual(t, "PE-3", c.Voucher.VoucherNo)
	}
}

func TestWithdrawalImpliesPayPolarity(t *testing.T) {
	require.Equal(t, PolarityPay, Transaction{Amount: -350}.Polarity())
	require.Equal(t, PolarityReceive, Transaction{Amount: 350}.Polarity())
}

type countingMetrics struct{ matches int }

func (c *countingMetrics) CountMatch() { c.matches++ }

func TestConfirmMatchSetsLatch(t *testing.T) {
	repo := newMemoryRepo()
	id := repo.addTransaction(Transaction{Amount: 500, Date: day(10)})
	repo.vouchers = []Voucher{{VoucherNo: "PE-9", VoucherID: 9, Amount: -500, PostingDate: day(10)}}
	svc := NewService(repo, nil)
	counters := &countingMetrics{}
	svc.WithMetrics(counters)
	ctx := context.Background()

	candidates, err := svc.MatchCandidates(ctx, id)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, 70, candidates[0].Score)

	link, err := svc.ConfirmMatch(ctx, ConfirmInput{
		TransactionID: id,
		VoucherType:   "Payment Entry",
		VoucherID:     9,
		VoucherNo:     "PE-9",
		MatchedAmount: 500,
	})
	require.NoError(t, err)
	require.Equal(t, id, link.TransactionID)
	require.NotEmpty(t, link.Reference)
	require.True(t, repo.transactions[id].IsReconciled)
	require.Equal(t, 1, counters.matches)

	// Reconciled transactions yield no further candidates.
	candidates, err = svc.MatchCandidates(ctx, id)
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestJournalLinesOnBankAccountRank(t *testing.T) {
	repo := newMemoryRepo()
	id := repo.addTransaction(Transaction{BankAccountID: 7, Amount: 1200, Date: day(15)})
	repo.vouchers = []Voucher{{VoucherNo: "PE-3", VoucherID: 3, Amount: -1200, PostingDate: day(2)}}
	repo.journals[7] = []Voucher{
		{VoucherType: "Journal Entry", VoucherNo: "JENT-2025-00004", VoucherID: 4, Amount: 1200, PostingDate: day(15)},
		{VoucherType: "Journal Entry", VoucherNo: "JENT-2025-00005", VoucherID: 5, Amount: -1200, PostingDate: day(15)},
	}
	svc := NewService(repo, nil)

	candidates, err := svc.MatchCandidates(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	// Amount plus date beats amount alone; the credit-side journal line is
	// filtered by polarity before scoring.
	require.Equal(t, "JENT-2025-00004", candidates[0].Voucher.VoucherNo)
	require.Equal(t, 70, candidates[0].Score)
	require.Equal(t, "PE-3", candidates[1].Voucher.VoucherNo)
	require.Equal(t, 50, candidates[1].Score)
}

func TestDoubleConfirmFails(t *testing.T) {
	repo := newMemoryRepo()
	id := repo.addTransaction(Transaction{Amount: 200, Date: day(5)})
	svc := NewService(repo, nil)
	ctx := context.Background()

	input := ConfirmInput{TransactionID: id, VoucherType: "Payment Entry", VoucherID: 1, VoucherNo: "PE-1", MatchedAmount: 200}
	_, err := svc.ConfirmMatch(ctx, input)
	require.NoError(t, err)

	_, err = svc.ConfirmMatch(ctx, input)
	require.ErrorIs(t, err, ErrAlreadyReconciled)
	require.Len(t, repo.links, 1)
}

func TestConfirmUnknownTransaction(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	_, err := svc.ConfirmMatch(context.Background(), ConfirmInput{TransactionID: 404})
	require.ErrorIs(t, err, ErrTransactionNotFound)
}
