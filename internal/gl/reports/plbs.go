package reports

import "sort"

// StatementLine is one account line inside a grouped statement section.
type StatementLine struct {
	AccountID     int64
	Name          string
	Amount        float64
	AmountDisplay string
}

// ProfitAndLoss groups Income and Expense activity.
type ProfitAndLoss struct {
	Income           []StatementLine
	Expense          []StatementLine
	TotalIncome      float64
	TotalExpense     float64
	NetProfit        float64
	NetProfitDisplay string
}

// BuildProfitAndLoss groups account totals by Income/Expense root types.
// Income balances are credit-natured, expenses debit-natured.
func BuildProfitAndLoss(rows []AccountRow) ProfitAndLoss {
	result := ProfitAndLoss{}
	for _, row := range rows {
		switch row.RootType {
		case "Income":
			amount := row.Credit - row.Debit
			result.Income = append(result.Income, statementLine(row, amount))
			result.TotalIncome += amount
		case "Expense":
			amount := row.Debit - row.Credit
			result.Expense = append(result.Expense, statementLine(row, amount))
			result.TotalExpense += amount
		}
	}
	sortLines(result.Income)
	sortLines(result.Expense)
	result.NetProfit = result.TotalIncome - result.TotalExpense
	result.NetProfitDisplay = FormatAmount(result.NetProfit)
	return result
}

// BalanceSheet groups Asset/Liability/Equity balances, non-zero rows only.
type BalanceSheet struct {
	Assets                  []StatementLine
	Liabilities             []StatementLine
	Equity                  []StatementLine
	TotalAssets             float64
	TotalLiabilities        float64
	TotalEquity             float64
	TotalAssetsDisplay      string
	TotalLiabilitiesDisplay string
	TotalEquityDisplay      string
}

// BuildBalanceSheet groups account totals by balance-sheet root types.
func BuildBalanceSheet(rows []AccountRow) BalanceSheet {
	result := BalanceSheet{}
	for _, row := range rows {
		switch row.RootType {
		case "Asset":
			amount := row.Balance()
			if amount == 0 {
				continue
			}
			result.Assets = append(result.Assets, statementLine(row, amount))
			result.TotalAssets += amount
		case "Liability":
			amount := row.Credit - row.Debit
			if amount == 0 {
				continue
			}
			result.Liabilities = append(result.Liabilities, statementLine(row, amount))
			result.TotalLiabilities += amount
		case "Equity":
			amount := row.Credit - row.Debit
			if amount == 0 {
				continue
			}
			result.Equity = append(result.Equity, statementLine(row, amount))
			result.TotalEquity += amount
		}
	}
	result.TotalAssetsDisplay = FormatAmount(result.TotalAssets)
	result.TotalLiabilitiesDisplay = FormatAmount(result.TotalLiabilities)
	result.TotalEquityDisplay = FormatAmount(result.TotalEquity)
	sortLines(result.Assets)
	sortLines(result.Liabilities)
	sortLines(result.Equity)
	return result
}

func statementLine(row AccountRow, amount float64) StatementLine {
	return StatementLine{
		AccountID:     row.AccountID,
		Name:          row.Name,
		Amount:        amount,
		AmountDisplay: FormatAmount(amount),
	}
}

func sortLines(lines []StatementLine) {
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].Name < lines[j].Name
	})
}
