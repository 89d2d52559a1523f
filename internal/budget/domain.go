// Package budget compares spending targets against general ledger activity.
// Pure read-side: nothing here mutates the ledger.
package budget

import (
	"errors"
	"math"
	"time"
)

// Budget is a target amount for one expense account over a date range,
// optionally split into monthly allocations.
type Budget struct {
	ID            int64
	Name          string
	AccountID     int64
	CompanyID     *int64
	StartDate     time.Time
	EndDate       time.Time
	Amount        float64
	Distributions []Distribution
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Distribution is one month's slice of a budget amount.
type Distribution struct {
	ID         int64
	BudgetID   int64
	Month      int
	Allocation float64
}

// DistributionInput describes one monthly allocation on create.
type DistributionInput struct {
	Month      int
	Allocation float64
}

// CreateInput describes a budget to register. When Distributions is
// non-empty the allocations must sum to Amount.
type CreateInput struct {
	Name          string
	AccountID     int64
	CompanyID     *int64
	StartDate     time.Time
	EndDate       time.Time
	Amount        float64
	Distributions []DistributionInput
}

var (
	// ErrBudgetNotFound indicates an unknown budget reference.
	ErrBudgetNotFound = errors.New("budget: budget not found")
	// ErrInvalidRange indicates an inverted or empty date range.
	ErrInvalidRange = errors.New("budget: start date must not be after end date")
	// ErrDistributionMismatch indicates monthly allocations that do not add
	// up to the budget amount.
	ErrDistributionMismatch = errors.New("budget: monthly allocations must sum to the budget amount")
)

// Validate checks the create request shape.
func (in CreateInput) Validate() error {
	if in.Name == "" {
		return errors.New("budget: name required")
	}
	if in.AccountID == 0 {
		return errors.New("budget: account required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || in.StartDate.After(in.EndDate) {
		return ErrInvalidRange
	}
	if in.Amount < 0 {
		return errors.New("budget: amount must not be negative")
	}
	if len(in.Distributions) > 0 {
		var total float64
		seen := map[int]bool{}
		for _, d := range in.Distributions {
			if d.Month < 1 || d.Month > 12 {
				return errors.New("budget: distribution month must be between 1 and 12")
			}
			if seen[d.Month] {
				return errors.New("budget: duplicate distribution month")
			}
			seen[d.Month] = true
			total += d.Allocation
		}
		if math.Abs(total-in.Amount) > 0.01 {
			return ErrDistributionMismatch
		}
	}
	return nil
}
