package numbering

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	counters map[string]int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{counters: make(map[string]int64)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) NextCounter(ctx context.Context, prefix string) (int64, error) {
	r.counters[prefix]++
	return r.counters[prefix], nil
}

func TestExpandTokens(t *testing.T) {
	date := time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "SINV-2024-", Expand("SINV-.YYYY.-", date))
	require.Equal(t, "STE-2024-02-09-", Expand("STE-.YYYY.-.MM.-.DD.-", date))
}

func TestPatternFallback(t *testing.T) {
	reg := NewRegistry(DefaultConfig())
	require.Equal(t, "SINV-.YYYY.-", reg.Pattern("Sales Invoice"))
	require.Equal(t, "CREDIT-NOTE-.YYYY.-", reg.Pattern("Credit Note"))
}

func TestNextNumberMonotonic(t *testing.T) {
	svc := NewService(NewRegistry(DefaultConfig()), newMemoryRepo())
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	first, err := svc.NextNumber(context.Background(), "Sales Invoice", date)
	require.NoError(t, err)
	require.Equal(t, "SINV-2025-00001", first)

	second, err := svc.NextNumber(context.Background(), "Sales Invoice", date)
	require.NoError(t, err)
	require.Equal(t, "SINV-2025-00002", second)
}

func TestNextNumberScopedPerFiscalYear(t *testing.T) {
	svc := NewService(NewRegistry(DefaultConfig()), newMemoryRepo())

	y1, err := svc.NextNumber(context.Background(), "Journal Entry", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	y2, err := svc.NextNumber(context.Background(), "Journal Entry", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Equal(t, "JENT-2024-00001", y1)
	require.Equal(t, "JENT-2025-00001", y2)
}

func TestNextNumberRequiresDoctype(t *testing.T) {
	svc := NewService(NewRegistry(nil), newMemoryRepo())
	_, err := svc.NextNumber(context.Background(), "", time.Now())
	require.Error(t, err)
}
