// Package bankrec matches imported bank statement transactions against open
// vouchers and records confirmed reconciliation links. The is_reconciled flag
// on a statement transaction is a one-way latch.
package bankrec

import (
	"errors"
	"time"
)

// AmountTolerance is the cent tolerance for amount equality scoring.
const AmountTolerance = 0.01

// MaxCandidates caps the ranked candidate list.
const MaxCandidates = 10

// Polarity is the voucher direction implied by a statement amount.
type Polarity string

const (
	PolarityReceive Polarity = "Receive"
	PolarityPay     Polarity = "Pay"
)

// Transaction is one imported bank statement line. Positive amounts are
// deposits, negative amounts withdrawals.
type Transaction struct {
	ID            int64
	BankAccountID int64
	Date          time.Time
	Amount        float64
	ReferenceNo   string
	Description   string
	IsReconciled  bool
	CreatedAt     time.Time
}

// Polarity derives the expected voucher direction from the amount sign.
func (t Transaction) Polarity() Polarity {
	if t.Amount > 0 {
		return PolarityReceive
	}
	return PolarityPay
}

// Voucher is one open candidate voucher for matching.
type Voucher struct {
	VoucherType string
	VoucherID   int64
	VoucherNo   string
	Party       string
	Amount      float64
	PostingDate time.Time
	ReferenceNo string
}

// Candidate is a scored voucher.
type Candidate struct {
	Voucher Voucher
	Score   int
}

// Reconciliation is a confirmed transaction-to-voucher link. Reference is an
// opaque identifier quoted in audit trails and statement exports.
type Reconciliation struct {
	ID            int64
	TransactionID int64
	VoucherType   string
	VoucherID     int64
	VoucherNo     string
	MatchedAmount float64
	Reference     string
	CreatedAt     time.Time
}

var (
	// ErrTransactionNotFound indicates an unknown statement transaction.
	ErrTransactionNotFound = errors.New("bankrec: transaction not found")
	// ErrAlreadyReconciled indicates the transaction latch is already set.
	ErrAlreadyReconciled = errors.New("bankrec: transaction already reconciled")
)
