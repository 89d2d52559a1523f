package reports

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleRows() []AccountRow {
	return []AccountRow{
		{AccountID: 1, Name: "Cash", RootType: "Asset", Debit: 500, Credit: 100},
		{AccountID: 2, Name: "Debtors", RootType: "Asset", Debit: 0, Credit: 0},
		{AccountID: 3, Name: "Creditors", RootType: "Liability", Debit: 50, Credit: 250},
		{AccountID: 4, Name: "Capital", RootType: "Equity", Debit: 0, Credit: 300},
		{AccountID: 5, Name: "Sales", RootType: "Income", Debit: 0, Credit: 400},
		{AccountID: 6, Name: "Rent", RootType: "Expense", Debit: 100, Credit: 0},
	}
}

func TestBuildTrialBalanceTotals(t *testing.T) {
	tb := BuildTrialBalance(sampleRows())
	require.Len(t, tb.Rows, 6)
	require.InDelta(t, 650, tb.TotalDebit, 0.001)
	require.InDelta(t, 1050, tb.TotalCredit, 0.001)
	require.Equal(t, "650.00", tb.TotalDebitDisplay)
	require.Equal(t, "1,050.00", tb.TotalCreditDisplay)
}

func TestBuildProfitAndLoss(t *testing.T) {
	pl := BuildProfitAndLoss(sampleRows())
	require.Len(t, pl.Income, 1)
	require.Len(t, pl.Expense, 1)
	require.InDelta(t, 400, pl.TotalIncome, 0.001)
	require.InDelta(t, 100, pl.TotalExpense, 0.001)
	require.InDelta(t, 300, pl.NetProfit, 0.001)
	require.Equal(t, "400.00", pl.Income[0].AmountDisplay)
	require.Equal(t, "300.00", pl.NetProfitDisplay)
}

func TestBuildBalanceSheetSkipsZeroBalances(t *testing.T) {
	bs := BuildBalanceSheet(sampleRows())
	require.Len(t, bs.Assets, 1)
	require.Equal(t, "Cash", bs.Assets[0].Name)
	require.InDelta(t, 400, bs.TotalAssets, 0.001)
	require.InDelta(t, 200, bs.TotalLiabilities, 0.001)
	require.InDelta(t, 300, bs.TotalEquity, 0.001)
	require.Equal(t, "400.00", bs.TotalAssetsDisplay)
}

func TestBuildersReturnEmptyAggregatesOnNoData(t *testing.T) {
	require.Zero(t, BuildTrialBalance(nil).TotalDebit)
	require.Zero(t, BuildProfitAndLoss(nil).NetProfit)
	require.Empty(t, BuildBalanceSheet(nil).Assets)
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "1,234,567.50", FormatAmount(1234567.5))
}
