package budget

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleBudget() Budget {
	return Budget{
		ID:        1,
		Name:      "Rent 2025",
		AccountID: 7,
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Amount:    12000,
	}
}

func TestCompareUnderBudget(t *testing.T) {
	v := Compare(sampleBudget(), 9000, time.Time{})
	require.InDelta(t, 9000, v.Actual, 0.001)
	require.InDelta(t, 3000, v.Variance, 0.001)
	require.InDelta(t, 25, v.VariancePct, 0.001)
}

func TestCompareOverBudget(t *testing.T) {
	v := Compare(sampleBudget(), 13500, time.Time{})
	require.InDelta(t, -1500, v.Variance, 0.001)
	require.InDelta(t, -12.5, v.VariancePct, 0.001)
}

func TestCompareTakesAbsoluteActual(t *testing.T) {
	// Net credit on an expense account still counts by magnitude.
	v := Compare(sampleBudget(), -400, time.Time{})
	require.InDelta(t, 400, v.Actual, 0.001)
}

func TestCompareZeroAmountYieldsZeroPct(t *testing.T) {
	b := sampleBudget()
	b.Amount = 0
	v := Compare(b, 100, time.Time{})
	require.Zero(t, v.VariancePct)
	require.InDelta(t, -100, v.Variance, 0.001)
}

func TestEffectiveEndClampsToPeriod(t *testing.T) {
	b := sampleBudget()
	mid := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	require.Equal(t, mid, EffectiveEnd(b, mid))
	require.Equal(t, b.EndDate, EffectiveEnd(b, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, b.EndDate, EffectiveEnd(b, time.Time{}))
}

type memoryRepo struct {
	budgets map[int64]Budget
	net     map[int64]float64
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{budgets: map[int64]Budget{}, net: map[int64]float64{}, nextID: 1}
}

func (m *memoryRepo) Create(_ context.Context, input CreateInput) (Budget, error) {
	b := Budget{
		ID:        m.nextID,
		Name:      input.Name,
		AccountID: input.AccountID,
		CompanyID: input.CompanyID,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		Amount:    input.Amount,
	}
	m.nextID++
	for _, d := range input.Distributions {
		b.Distributions = append(b.Distributions, Distribution{
			ID:         m.nextID,
			BudgetID:   b.ID,
			Month:      d.Month,
			Allocation: d.Allocation,
		})
		m.nextID++
	}
	m.budgets[b.ID] = b
	return b, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Budget, error) {
	if b, ok := m.budgets[id]; ok {
		return b, nil
	}
	return Budget{}, ErrBudgetNotFound
}

func (m *memoryRepo) List(_ context.Context, _ *int64) ([]Budget, error) {
	var out []Budget
	for _, b := range m.budgets {
		out = append(out, b)
	}
	return out, nil
}

func (m *memoryRepo) NetDebit(_ context.Context, accountID int64, _, _ time.Time, _ *int64) (float64, error) {
	return m.net[accountID], nil
}

func TestVarianceForReadsLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	b, err := svc.Create(ctx, CreateInput{
		Name:      "Travel 2025",
		AccountID: 9,
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Amount:    5000,
	})
	require.NoError(t, err)
	repo.net[9] = 1250

	v, err := svc.VarianceFor(ctx, b.ID, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.InDelta(t, 1250, v.Actual, 0.001)
	require.InDelta(t, 3750, v.Variance, 0.001)
	require.InDelta(t, 75, v.VariancePct, 0.001)
}

func TestCreateRejectsInvertedRange(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.Create(context.Background(), CreateInput{
		Name:      "Bad",
		AccountID: 1,
		StartDate: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Amount:    100,
	})
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestVarianceForUnknownBudget(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.VarianceFor(context.Background(), 404, time.Time{})
	require.ErrorIs(t, err, ErrBudgetNotFound)
}

func quarterlyCreate(allocations ...float64) CreateInput {
	input := CreateInput{
		Name:      "Marketing 2025",
		AccountID: 5,
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Amount:    1200,
	}
	for i, a := range allocations {
		input.Distributions = append(input.Distributions, DistributionInput{Month: i + 1, Allocation: a})
	}
	return input
}

func TestCreateStoresDistributions(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	b, err := svc.Create(context.Background(), quarterlyCreate(300, 300, 600))
	require.NoError(t, err)
	require.Len(t, b.Distributions, 3)
	require.Equal(t, 3, b.Distributions[2].Month)
	require.InDelta(t, 600, b.Distributions[2].Allocation, 0.001)

	stored, err := repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, stored.Distributions, 3)
}

func TestCreateRejectsAllocationMismatch(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.Create(context.Background(), quarterlyCreate(300, 300, 500))
	require.ErrorIs(t, err, ErrDistributionMismatch)
}

func TestCreateRejectsBadDistributionMonth(t *testing.T) {
	svc := NewService(newMemoryRepo())

	input := quarterlyCreate(600, 600)
	input.Distributions[1].Month = 13
	_, err := svc.Create(context.Background(), input)
	require.Error(t, err)

	input = quarterlyCreate(600, 600)
	input.Distributions[1].Month = 1
	_, err = svc.Create(context.Background(), input)
	require.Error(t, err)
}
