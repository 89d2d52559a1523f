package budget

import (
	"math"
	"time"
)

// Variance is one budget-versus-actual comparison line.
type Variance struct {
	BudgetID    int64
	Name        string
	AccountID   int64
	Amount      float64
	Actual      float64
	Variance    float64
	VariancePct float64
	AsOf        time.Time
}

// EffectiveEnd clamps the comparison window to the budget period.
func EffectiveEnd(b Budget, asOf time.Time) time.Time {
	if asOf.IsZero() || asOf.After(b.EndDate) {
		return b.EndDate
	}
	return asOf
}

// Compare derives variance figures from the actual expense observed for the
// budget window. Expenses are debit-natured, so the actual is the absolute
// net debit.
func Compare(b Budget, actual float64, asOf time.Time) Variance {
	actual = round2(math.Abs(actual))
	variance := round2(b.Amount - actual)
	pct := 0.0
	if b.Amount != 0 {
		pct = round2(variance / b.Amount * 100)
	}
	return Variance{
		BudgetID:    b.ID,
		Name:        b.Name,
		AccountID:   b.AccountID,
		Amount:      b.Amount,
		Actual:      actual,
		Variance:    variance,
		VariancePct: pct,
		AsOf:        EffectiveEnd(b, asOf),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
