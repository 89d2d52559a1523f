// Package payments implements the signed outstanding ledger for receivables
// and payables. New obligations increase the outstanding magnitude, payment
// allocations post negative entries against the originating voucher, and the
// per-voucher sum converges to zero as allocations complete.
package payments

import (
	"errors"
	"math"
	"time"
)

// OutstandingTolerance is the cent tolerance under which a voucher counts as
// settled.
const OutstandingTolerance = 0.01

// AccountType distinguishes the two outstanding directions.
type AccountType string

const (
	TypeReceivable AccountType = "Receivable"
	TypePayable    AccountType = "Payable"
)

// Entry is one signed row of the payment ledger. Append-only; cancellation
// emits negated siblings, never edits.
type Entry struct {
	ID               int64
	AccountType      AccountType
	Party            string
	PostingDate      time.Time
	VoucherType      string
	VoucherNo        string
	AgainstVoucherNo string
	Amount           float64
	ReferenceNo      string
	CompanyID        *int64
	IsCancelled      bool
	CreatedAt        time.Time
}

// RecordInput describes one entry to append. When AgainstVoucherNo is empty
// the entry stands against its own voucher, which is how new invoices open an
// outstanding position.
type RecordInput struct {
	AccountType      AccountType
	Party            string
	PostingDate      time.Time
	VoucherType      string
	VoucherNo        string
	AgainstVoucherNo string
	Amount           float64
	ReferenceNo      string
	CompanyID        *int64
}

var (
	// ErrZeroAmount indicates an entry without monetary effect.
	ErrZeroAmount = errors.New("payments: amount must not be zero")
	// ErrVoucherNotFound indicates no ledger rows exist for the voucher.
	ErrVoucherNotFound = errors.New("payments: voucher not found")
	// ErrAlreadyCancelled indicates the voucher was cancelled before.
	ErrAlreadyCancelled = errors.New("payments: voucher already cancelled")
)

// Validate checks the record request shape.
func (in RecordInput) Validate() error {
	if in.AccountType != TypeReceivable && in.AccountType != TypePayable {
		return errors.New("payments: account type must be Receivable or Payable")
	}
	if in.Party == "" {
		return errors.New("payments: party required")
	}
	if in.VoucherType == "" || in.VoucherNo == "" {
		return errors.New("payments: voucher type and number required")
	}
	if in.PostingDate.IsZero() {
		return errors.New("payments: posting date required")
	}
	if math.Abs(in.Amount) < 1e-9 {
		return ErrZeroAmount
	}
	return nil
}
