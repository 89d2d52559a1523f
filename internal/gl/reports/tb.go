// Package reports builds read-side financial statements from aggregated
// general ledger rows. Builders are pure; missing data yields zeroed totals.
package reports

import "sort"

// AccountRow carries aggregated movement for one ledger account.
type AccountRow struct {
	AccountID int64
	Name      string
	RootType  string
	Debit     float64
	Credit    float64
}

// Balance computes debit minus credit.
func (r AccountRow) Balance() float64 {
	return r.Debit - r.Credit
}

// TrialBalanceRow is one account line in the trial balance. Balance carries
// the raw figure, BalanceDisplay its separator-formatted rendering.
type TrialBalanceRow struct {
	AccountID      int64
	Name           string
	RootType       string
	Debit          float64
	Credit         float64
	Balance        float64
	BalanceDisplay string
}

// TrialBalance groups debit/credit sums per account with grand totals.
type TrialBalance struct {
	Rows               []TrialBalanceRow
	TotalDebit         float64
	TotalCredit        float64
	TotalDebitDisplay  string
	TotalCreditDisplay string
}

// BuildTrialBalance converts account totals into the trial balance.
func BuildTrialBalance(rows []AccountRow) TrialBalance {
	result := TrialBalance{}
	for _, row := range rows {
		result.Rows = append(result.Rows, TrialBalanceRow{
			AccountID:      row.AccountID,
			Name:           row.Name,
			RootType:       row.RootType,
			Debit:          row.Debit,
			Credit:         row.Credit,
			Balance:        row.Balance(),
			BalanceDisplay: FormatAmount(row.Balance()),
		})
		result.TotalDebit += row.Debit
		result.TotalCredit += row.Credit
	}
	result.TotalDebitDisplay = FormatAmount(result.TotalDebit)
	result.TotalCreditDisplay = FormatAmount(result.TotalCredit)
	sort.Slice(result.Rows, func(i, j int) bool {
		return result.Rows[i].Name < result.Rows[j].Name
	})
	return result
}
