// Package gl implements the double-entry general ledger posting engine.
package gl

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// BalanceTolerance is the cent tolerance applied to debit/credit totals.
const BalanceTolerance = 0.01

// RootType classifies chart-of-accounts nodes.
type RootType string

const (
	RootTypeAsset     RootType = "Asset"
	RootTypeLiability RootType = "Liability"
	RootTypeEquity    RootType = "Equity"
	RootTypeIncome    RootType = "Income"
	RootTypeExpense   RootType = "Expense"
)

// AccountRole names the semantic roles resolved instead of hardcoded IDs.
type AccountRole string

const (
	RoleCash       AccountRole = "CASH"
	RoleBank       AccountRole = "BANK"
	RoleReceivable AccountRole = "RECEIVABLE"
	RolePayable    AccountRole = "PAYABLE"
	RoleStock      AccountRole = "STOCK"
)

// Account models a chart-of-accounts node. Group nodes cannot hold postings.
type Account struct {
	ID        int64
	Name      string
	ParentID  *int64
	RootType  RootType
	IsGroup   bool
	CompanyID *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry is one debit-or-credit line tied to a voucher. Rows are append-only;
// the only update ever applied is the IsCancelled flip during reversal.
type Entry struct {
	ID                 int64
	PostingDate        time.Time
	AccountID          int64
	PartyType          string
	Party              string
	Against            string
	VoucherType        string
	VoucherNo          string
	AgainstVoucherType string
	AgainstVoucherNo   string
	Debit              float64
	Credit             float64
	CompanyID          *int64
	IsCancelled        bool
	CreatedAt          time.Time
}

// Movement describes one account movement inside a posting request.
type Movement struct {
	Account   string
	Debit     float64
	Credit    float64
	PartyType string
	Party     string
	Against   string
}

// PostingInput groups the movements for one voucher.
type PostingInput struct {
	VoucherType string
	VoucherNo   string
	PostingDate time.Time
	CompanyID   *int64
	Movements   []Movement
}

// Balance aggregates debit/credit totals for an account.
type Balance struct {
	Debit   float64
	Credit  float64
	Balance float64
}

// BalanceQuery filters account balance aggregation.
type BalanceQuery struct {
	AccountID int64
	FromDate  *time.Time
	ToDate    *time.Time
	CompanyID *int64
}

var (
	// ErrUnbalancedEntry indicates debit and credit totals differ.
	ErrUnbalancedEntry = errors.New("gl: debit and credit totals must balance")
	// ErrAccountNotFound indicates an unknown account reference.
	ErrAccountNotFound = errors.New("gl: account not found")
	// ErrGroupAccount indicates a posting against a group node.
	ErrGroupAccount = errors.New("gl: group accounts cannot hold postings")
	// ErrVoucherNotFound indicates no ledger rows exist for the voucher.
	ErrVoucherNotFound = errors.New("gl: voucher not found")
	// ErrAlreadyCancelled indicates the voucher was reversed before.
	ErrAlreadyCancelled = errors.New("gl: voucher already cancelled")
	// ErrRoleNotMapped indicates a missing account role mapping.
	ErrRoleNotMapped = errors.New("gl: account role not mapped")
)

// Validate checks the posting request shape and the balance invariant.
func (in PostingInput) Validate() error {
	if in.VoucherType == "" || in.VoucherNo == "" {
		return errors.New("gl: voucher type and number required")
	}
	if in.PostingDate.IsZero() {
		return errors.New("gl: posting date required")
	}
	if len(in.Movements) == 0 {
		return errors.New("gl: at least one movement required")
	}
	var debit, credit float64
	for idx, mv := range in.Movements {
		if mv.Account == "" {
			return fmt.Errorf("gl: movement %d missing account", idx)
		}
		if mv.Debit < 0 || mv.Credit < 0 {
			return fmt.Errorf("gl: movement %d negative amount", idx)
		}
		if mv.Debit > 0 && mv.Credit > 0 {
			return fmt.Errorf("gl: movement %d cannot be both debit and credit", idx)
		}
		debit += mv.Debit
		credit += mv.Credit
	}
	if math.Abs(debit-credit) > BalanceTolerance {
		return ErrUnbalancedEntry
	}
	return nil
}
