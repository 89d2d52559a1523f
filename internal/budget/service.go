package budget

import (
	"context"
	"time"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateInput) (Budget, error)
	Get(ctx context.Context, id int64) (Budget, error)
	List(ctx context.Context, companyID *int64) ([]Budget, error)
	NetDebit(ctx context.Context, accountID int64, from, to time.Time, companyID *int64) (float64, error)
}

// Service computes budget-versus-actual comparisons.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService constructs the budget service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create registers a budget.
func (s *Service) Create(ctx context.Context, input CreateInput) (Budget, error) {
	if err := input.Validate(); err != nil {
		return Budget{}, err
	}
	return s.repo.Create(ctx, input)
}

// List returns registered budgets.
func (s *Service) List(ctx context.Context, companyID *int64) ([]Budget, error) {
	return s.repo.List(ctx, companyID)
}

// ActualExpense sums net debit for the budget's account within its window,
// clamped to asOf, excluding cancelled entries, as an absolute value.
func (s *Service) ActualExpense(ctx context.Context, budgetID int64, asOf time.Time) (float64, error) {
	b, err := s.repo.Get(ctx, budgetID)
	if err != nil {
		return 0, err
	}
	net, err := s.repo.NetDebit(ctx, b.AccountID, b.StartDate, EffectiveEnd(b, asOf), b.CompanyID)
	if err != nil {
		return 0, err
	}
	return Compare(b, net, asOf).Actual, nil
}

// VarianceFor compares one budget against actual spend.
func (s *Service) VarianceFor(ctx context.Context, budgetID int64, asOf time.Time) (Variance, error) {
	b, err := s.repo.Get(ctx, budgetID)
	if err != nil {
		return Variance{}, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	net, err := s.repo.NetDebit(ctx, b.AccountID, b.StartDate, EffectiveEnd(b, asOf), b.CompanyID)
	if err != nil {
		return Variance{}, err
	}
	return Compare(b, net, asOf), nil
}

// Overview compares every registered budget against actual spend.
func (s *Service) Overview(ctx context.Context, companyID *int64, asOf time.Time) ([]Variance, error) {
	budgets, err := s.repo.List(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	out := make([]Variance, 0, len(budgets))
	for _, b := range budgets {
		net, err := s.repo.NetDebit(ctx, b.AccountID, b.StartDate, EffectiveEnd(b, asOf), b.CompanyID)
		if err != nil {
			return nil, err
		}
		out = append(out, Compare(b, net, asOf))
	}
	return out, nil
}
