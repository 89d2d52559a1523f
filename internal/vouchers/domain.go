// Package vouchers coordinates business-document submission and cancellation
// across the document lifecycle, numbering and the three posting ledgers, in
// one transaction per business action.
package vouchers

import (
	"errors"
	"time"

	"github.com/keystone-erp/keystone-erp/internal/gl"
	"github.com/keystone-erp/keystone-erp/internal/lifecycle"
	"github.com/keystone-erp/keystone-erp/internal/payments"
	"github.com/keystone-erp/keystone-erp/internal/stock"
)

// Document is the lifecycle header of one business voucher. Ledger effects
// reference it by (Doctype, Name).
type Document struct {
	ID          int64
	Doctype     string
	Name        string
	CompanyID   *int64
	PostingDate time.Time
	Status      string
	Docstatus   lifecycle.DocStatus
	SubmittedBy *int64
	SubmittedAt *time.Time
	CancelledBy *int64
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DocStatus implements lifecycle.Submittable.
func (d *Document) DocStatus() lifecycle.DocStatus { return d.Docstatus }

// SetDocStatus implements lifecycle.Submittable.
func (d *Document) SetDocStatus(status lifecycle.DocStatus) { d.Docstatus = status }

// SetStatusLabel implements lifecycle.Submittable.
func (d *Document) SetStatusLabel(label string) { d.Status = label }

// SetSubmitted implements lifecycle.Submittable.
func (d *Document) SetSubmitted(actorID int64, at time.Time) {
	d.SubmittedBy = &actorID
	d.SubmittedAt = &at
}

// SetCancelled implements lifecycle.Submittable.
func (d *Document) SetCancelled(actorID int64, at time.Time) {
	d.CancelledBy = &actorID
	d.CancelledAt = &at
}

// StockMovement is one stock effect of a voucher. Voucher identity is filled
// in by the coordinator once a number is drawn.
type StockMovement struct {
	Purpose       stock.Purpose
	ItemCode      string
	Qty           float64
	Rate          float64
	Warehouse     string
	FromWarehouse string
	ToWarehouse   string
}

// PaymentEffect is one outstanding-ledger effect of a voucher.
type PaymentEffect struct {
	AccountType      payments.AccountType
	Party            string
	Amount           float64
	AgainstVoucherNo string
	ReferenceNo      string
}

// SubmitInput describes one business action: the document header plus every
// ledger effect it implies. All effects commit or roll back together.
type SubmitInput struct {
	Doctype        string
	PostingDate    time.Time
	CompanyID      *int64
	ActorID        int64
	Movements      []gl.Movement
	StockMovements []StockMovement
	PaymentEffects []PaymentEffect
}

var (
	// ErrDocumentNotFound indicates an unknown document reference.
	ErrDocumentNotFound = errors.New("vouchers: document not found")
)

// Validate checks the submit request shape.
func (in SubmitInput) Validate() error {
	if in.Doctype == "" {
		return errors.New("vouchers: doctype required")
	}
	if in.PostingDate.IsZero() {
		return errors.New("vouchers: posting date required")
	}
	if len(in.Movements) == 0 && len(in.StockMovements) == 0 && len(in.PaymentEffects) == 0 {
		return errors.New("vouchers: at least one ledger effect required")
	}
	return nil
}
