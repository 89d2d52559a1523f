package vouchers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/keystone-erp/keystone-erp/internal/gl"
	"github.com/keystone-erp/keystone-erp/internal/lifecycle"
	"github.com/keystone-erp/keystone-erp/internal/numbering"
	"github.com/keystone-erp/keystone-erp/internal/payments"
	"github.com/keystone-erp/keystone-erp/internal/shared"
	"github.com/keystone-erp/keystone-erp/internal/stock"
)

// ReaderPort abstracts document reads outside a coordinated transaction.
type ReaderPort interface {
	Get(ctx context.Context, doctype, name string) (Document, error)
	List(ctx context.Context, doctype string, status *lifecycle.DocStatus) ([]Document, error)
}

// AuditPort records coordinated actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts posting outcomes per ledger.
type MetricsPort interface {
	CountPosting(ledger string)
	CountReversal(ledger string)
	CountRejection(reason string)
}

// Coordinator drives one business action end to end: draw a number, move the
// document through its lifecycle and post every ledger effect, all inside a
// single transaction.
type Coordinator struct {
	uow       UnitOfWork
	reader    ReaderPort
	machine   *lifecycle.Machine
	numbering *numbering.Service
	gl        *gl.Service
	stock     *stock.Service
	payments  *payments.Service
	audit     AuditPort
	metrics   MetricsPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewCoordinator wires the coordinator.
func NewCoordinator(
	uow UnitOfWork,
	reader ReaderPort,
	machine *lifecycle.Machine,
	numberingSvc *numbering.Service,
	glSvc *gl.Service,
	stockSvc *stock.Service,
	paymentsSvc *payments.Service,
	audit AuditPort,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		uow:       uow,
		reader:    reader,
		machine:   machine,
		numbering: numberingSvc,
		gl:        glSvc,
		stock:     stockSvc,
		payments:  paymentsSvc,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock for testing.
func (c *Coordinator) WithNow(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// WithMetrics attaches posting counters.
func (c *Coordinator) WithMetrics(metrics MetricsPort) {
	c.metrics = metrics
}

// Submit numbers the document, submits it and posts its ledger effects.
// Any failure rolls back the whole action, including the drawn number's
// counter increment.
func (c *Coordinator) Submit(ctx context.Context, input SubmitInput) (Document, error) {
	if err := input.Validate(); err != nil {
		return Document{}, err
	}
	var doc Document
	err := c.uow.Run(ctx, func(ctx context.Context, tx TxBundle) error {
		name, err := c.numbering.NextNumberIn(ctx, tx.Numbering, input.Doctype, input.PostingDate)
		if err != nil {
			return err
		}
		doc = Document{
			Doctype:     input.Doctype,
			Name:        name,
			CompanyID:   input.CompanyID,
			PostingDate: input.PostingDate,
			Status:      lifecycle.StatusDraft.Label(),
		}
		if err := c.machine.Submit(&doc, input.ActorID); err != nil {
			return err
		}
		if err := tx.Documents.Insert(ctx, &doc); err != nil {
			return err
		}
		if len(input.Movements) > 0 {
			_, err := c.gl.PostEntriesIn(ctx, tx.GL, gl.PostingInput{
				VoucherType: input.Doctype,
				VoucherNo:   name,
				PostingDate: input.PostingDate,
				CompanyID:   input.CompanyID,
				Movements:   input.Movements,
			})
			if err != nil {
				return err
			}
		}
		for _, mv := range input.StockMovements {
			_, err := c.stock.PostIn(ctx, tx.Stock, stock.MovementInput{
				Purpose:       mv.Purpose,
				ItemCode:      mv.ItemCode,
				Qty:           mv.Qty,
				Rate:          mv.Rate,
				Warehouse:     mv.Warehouse,
				FromWarehouse: mv.FromWarehouse,
				ToWarehouse:   mv.ToWarehouse,
				VoucherType:   input.Doctype,
				VoucherNo:     name,
				PostingDate:   input.PostingDate,
			})
			if err != nil {
				return err
			}
		}
		for _, pe := range input.PaymentEffects {
			_, err := c.payments.RecordEntryIn(ctx, tx.Payments, payments.RecordInput{
				AccountType:      pe.AccountType,
				Party:            pe.Party,
				PostingDate:      input.PostingDate,
				VoucherType:      input.Doctype,
				VoucherNo:        name,
				AgainstVoucherNo: pe.AgainstVoucherNo,
				Amount:           pe.Amount,
				ReferenceNo:      pe.ReferenceNo,
				CompanyID:        input.CompanyID,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if c.metrics != nil && errors.Is(err, gl.ErrUnbalancedEntry) {
			c.metrics.CountRejection("unbalanced")
		}
		return Document{}, err
	}
	if c.metrics != nil {
		if len(input.Movements) > 0 {
			c.metrics.CountPosting("gl")
		}
		if len(input.StockMovements) > 0 {
			c.metrics.CountPosting("stock")
		}
		if len(input.PaymentEffects) > 0 {
			c.metrics.CountPosting("payments")
		}
	}
	c.recordAudit(ctx, input.ActorID, "vouchers.submit", doc)
	return doc, nil
}

// Cancel moves the document to Cancelled and reverses every ledger its
// submission touched. Components the voucher never reached are skipped.
// The document gate makes a second cancel fail before any ledger is read.
func (c *Coordinator) Cancel(ctx context.Context, doctype, name string, actorID int64) (Document, error) {
	var doc Document
	var reversedLedgers []string
	err := c.uow.Run(ctx, func(ctx context.Context, tx TxBundle) error {
		var err error
		doc, err = tx.Documents.GetForUpdate(ctx, doctype, name)
		if err != nil {
			return err
		}
		if err := c.machine.Cancel(&doc, actorID); err != nil {
			return err
		}
		if err := tx.Documents.UpdateLifecycle(ctx, doc); err != nil {
			return err
		}
		reversedLedgers = reversedLedgers[:0]
		if rows, err := c.gl.ReverseEntriesIn(ctx, tx.GL, doctype, name, doc.CompanyID); err != nil {
			if !errors.Is(err, gl.ErrVoucherNotFound) {
				return err
			}
		} else if len(rows) > 0 {
			reversedLedgers = append(reversedLedgers, "gl")
		}
		if rows, err := c.stock.CancelEntriesIn(ctx, tx.Stock, doctype, name); err != nil {
			if !errors.Is(err, stock.ErrVoucherNotFound) {
				return err
			}
		} else if len(rows) > 0 {
			reversedLedgers = append(reversedLedgers, "stock")
		}
		if rows, err := c.payments.CancelEntriesIn(ctx, tx.Payments, doctype, name, doc.CompanyID); err != nil {
			if !errors.Is(err, payments.ErrVoucherNotFound) {
				return err
			}
		} else if len(rows) > 0 {
			reversedLedgers = append(reversedLedgers, "payments")
		}
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	if c.metrics != nil {
		for _, ledger := range reversedLedgers {
			c.metrics.CountReversal(ledger)
		}
	}
	c.recordAudit(ctx, actorID, "vouchers.cancel", doc)
	return doc, nil
}

// Get loads one document header.
func (c *Coordinator) Get(ctx context.Context, doctype, name string) (Document, error) {
	return c.reader.Get(ctx, doctype, name)
}

// List returns document headers, optionally filtered by status.
func (c *Coordinator) List(ctx context.Context, doctype string, status *lifecycle.DocStatus) ([]Document, error) {
	return c.reader.List(ctx, doctype, status)
}

func (c *Coordinator) recordAudit(ctx context.Context, actorID int64, action string, doc Document) {
	if c.audit == nil {
		return
	}
	_ = c.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   doc.Doctype,
		EntityID: doc.Name,
		Meta: map[string]any{
			"docstatus": int(doc.Docstatus),
		},
		At: c.now(),
	})
}
