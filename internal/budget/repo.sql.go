package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists budgets and reads ledger aggregates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const budgetColumns = `id, name, account_id, company_id, start_date, end_date, amount, created_at, updated_at`

// Create inserts one budget row plus its monthly distributions as a unit.
func (r *Repository) Create(ctx context.Context, input CreateInput) (Budget, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return Budget{}, err
	}
	defer tx.Rollback(ctx)
	row := tx.QueryRow(ctx, `INSERT INTO budgets (name, account_id, company_id, start_date, end_date, amount)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING `+budgetColumns,
		input.Name, input.AccountID, input.CompanyID, input.StartDate, input.EndDate, toNumeric(input.Amount))
	b, err := scanBudget(row)
	if err != nil {
		return Budget{}, err
	}
	for _, d := range input.Distributions {
		var dist Distribution
		err := tx.QueryRow(ctx, `INSERT INTO budget_distributions (budget_id, month, allocation)
VALUES ($1,$2,$3)
RETURNING id`, b.ID, d.Month, toNumeric(d.Allocation)).Scan(&dist.ID)
		if err != nil {
			return Budget{}, err
		}
		dist.BudgetID = b.ID
		dist.Month = d.Month
		dist.Allocation = d.Allocation
		b.Distributions = append(b.Distributions, dist)
	}
	if err := tx.Commit(ctx); err != nil {
		return Budget{}, err
	}
	return b, nil
}

// Get loads one budget with its distributions.
func (r *Repository) Get(ctx context.Context, id int64) (Budget, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id=$1`, id)
	b, err := scanBudget(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, ErrBudgetNotFound
		}
		return Budget{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, budget_id, month, allocation
FROM budget_distributions WHERE budget_id=$1 ORDER BY month`, id)
	if err != nil {
		return Budget{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var d Distribution
		if err := rows.Scan(&d.ID, &d.BudgetID, &d.Month, &d.Allocation); err != nil {
			return Budget{}, err
		}
		b.Distributions = append(b.Distributions, d)
	}
	return b, rows.Err()
}

// List returns budgets ordered by start date.
func (r *Repository) List(ctx context.Context, companyID *int64) ([]Budget, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+budgetColumns+` FROM budgets
WHERE ($1::bigint IS NULL OR company_id=$1)
ORDER BY start_date, name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var budgets []Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// NetDebit sums debit minus credit for an account over a closed date range,
// excluding cancelled entries.
func (r *Repository) NetDebit(ctx context.Context, accountID int64, from, to time.Time, companyID *int64) (float64, error) {
	var net float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(debit - credit),0) FROM gl_entries
WHERE account_id=$1 AND is_cancelled=FALSE
  AND posting_date >= $2 AND posting_date <= $3
  AND ($4::bigint IS NULL OR company_id=$4)`,
		accountID, from, to, companyID).Scan(&net)
	return net, err
}

func scanBudget(row pgx.Row) (Budget, error) {
	var b Budget
	err := row.Scan(&b.ID, &b.Name, &b.AccountID, &b.CompanyID, &b.StartDate, &b.EndDate,
		&b.Amount, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Budget{}, err
	}
	return b, nil
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
