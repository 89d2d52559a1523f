// Package stock implements the per (item, warehouse) valuation ledger. Each
// partition is an append-only chain: every entry carries the running quantity
// after the movement, and concurrent writers are serialized on the partition's
// balance row.
package stock

import (
	"errors"
	"fmt"
	"time"
)

// Purpose classifies a stock movement request.
type Purpose string

const (
	PurposeReceipt  Purpose = "Receipt"
	PurposeIssue    Purpose = "Issue"
	PurposeTransfer Purpose = "Transfer"
)

// Entry is one link in a partition chain. Rows are append-only; cancellation
// appends negating entries and flips the originals as markers.
type Entry struct {
	ID          int64
	ItemCode    string
	Warehouse   string
	PostingDate time.Time
	VoucherType string
	VoucherNo   string
	ActualQty   float64
	QtyAfter    float64
	Rate        float64
	StockValue  float64
	ValueDiff   float64
	IsCancelled bool
	CreatedAt   time.Time
}

// Balance is the current head of one partition chain.
type Balance struct {
	ItemCode   string
	Warehouse  string
	Qty        float64
	StockValue float64
	UpdatedAt  time.Time
}

// MovementInput is a stock movement request from a business document.
// Receipt and Issue use Warehouse; Transfer uses FromWarehouse/ToWarehouse.
type MovementInput struct {
	Purpose       Purpose
	ItemCode      string
	Qty           float64
	Rate          float64
	Warehouse     string
	FromWarehouse string
	ToWarehouse   string
	VoucherType   string
	VoucherNo     string
	PostingDate   time.Time
}

// LedgerFilter narrows ledger listings to one partition. Page and PerPage
// window the result when PerPage is positive.
type LedgerFilter struct {
	ItemCode  string
	Warehouse string
	Page      int
	PerPage   int
}

var (
	// ErrInvalidQuantity indicates a zero or negative movement quantity.
	ErrInvalidQuantity = errors.New("stock: quantity must be positive")
	// ErrInvalidRate indicates a negative valuation rate.
	ErrInvalidRate = errors.New("stock: valuation rate must not be negative")
	// ErrVoucherNotFound indicates no ledger rows exist for the voucher.
	ErrVoucherNotFound = errors.New("stock: voucher not found")
	// ErrAlreadyCancelled indicates the voucher was cancelled before.
	ErrAlreadyCancelled = errors.New("stock: voucher already cancelled")
	// ErrNegativeStock indicates a movement would drive a partition below
	// zero while negative balances are disallowed.
	ErrNegativeStock = errors.New("stock: insufficient stock")
)

// Validate checks the movement request shape.
func (in MovementInput) Validate() error {
	if in.ItemCode == "" {
		return errors.New("stock: item code required")
	}
	if in.VoucherType == "" || in.VoucherNo == "" {
		return errors.New("stock: voucher type and number required")
	}
	if in.PostingDate.IsZero() {
		return errors.New("stock: posting date required")
	}
	if in.Qty <= 0 {
		return ErrInvalidQuantity
	}
	if in.Rate < 0 {
		return ErrInvalidRate
	}
	switch in.Purpose {
	case PurposeReceipt, PurposeIssue:
		if in.Warehouse == "" {
			return errors.New("stock: warehouse required")
		}
	case PurposeTransfer:
		if in.FromWarehouse == "" || in.ToWarehouse == "" {
			return errors.New("stock: source and destination warehouse required")
		}
		if in.FromWarehouse == in.ToWarehouse {
			return errors.New("stock: source and destination warehouse must differ")
		}
	default:
		return fmt.Errorf("stock: unknown purpose %q", in.Purpose)
	}
	return nil
}
