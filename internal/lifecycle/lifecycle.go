// Package lifecycle implements the shared Draft/Submitted/Cancelled state
// machine used by every ledger-backed document.
package lifecycle

import (
	"errors"
	"time"
)

// DocStatus enumerates document lifecycle states.
type DocStatus int

const (
	// StatusDraft is the initial editable state.
	StatusDraft DocStatus = 0
	// StatusSubmitted marks the document as posted to the ledgers.
	StatusSubmitted DocStatus = 1
	// StatusCancelled marks the document as reversed.
	StatusCancelled DocStatus = 2
)

// Label returns the display label for the status.
func (s DocStatus) Label() string {
	switch s {
	case StatusSubmitted:
		return "Submitted"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Draft"
	}
}

// ErrInvalidTransition indicates the requested state change is not allowed.
var ErrInvalidTransition = errors.New("lifecycle: invalid document transition")

// Submittable is implemented by every document that participates in the
// submit/cancel workflow. Transitions only touch these fields; ledger writes
// belong to the posting engines.
type Submittable interface {
	DocStatus() DocStatus
	SetDocStatus(status DocStatus)
	SetStatusLabel(label string)
	SetSubmitted(actorID int64, at time.Time)
	SetCancelled(actorID int64, at time.Time)
}

// Machine applies lifecycle transitions with a controllable clock.
type Machine struct {
	now func() time.Time
}

// NewMachine constructs a Machine.
func NewMachine() *Machine {
	return &Machine{now: time.Now}
}

// WithNow overrides the clock for testing.
func (m *Machine) WithNow(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Submit moves a draft document to Submitted and stamps the actor.
// Submitted and cancelled documents cannot be submitted again.
func (m *Machine) Submit(doc Submittable, actorID int64) error {
	if doc.DocStatus() != StatusDraft {
		return ErrInvalidTransition
	}
	doc.SetDocStatus(StatusSubmitted)
	doc.SetStatusLabel(StatusSubmitted.Label())
	doc.SetSubmitted(actorID, m.now().UTC())
	return nil
}

// Cancel moves a submitted document to Cancelled and stamps the actor.
// Drafts must be deleted instead, and a cancelled document stays cancelled.
func (m *Machine) Cancel(doc Submittable, actorID int64) error {
	if doc.DocStatus() != StatusSubmitted {
		return ErrInvalidTransition
	}
	doc.SetDocStatus(StatusCancelled)
	doc.SetStatusLabel(StatusCancelled.Label())
	doc.SetCancelled(actorID, m.now().UTC())
	return nil
}

// CanEdit reports whether the document is still editable.
func CanEdit(doc Submittable) bool {
	return doc.DocStatus() == StatusDraft
}

// CanSubmit reports whether the document may be submitted.
func CanSubmit(doc Submittable) bool {
	return doc.DocStatus() == StatusDraft
}

// CanCancel reports whether the document may be cancelled.
func CanCancel(doc Submittable) bool {
	return doc.DocStatus() == StatusSubmitted
}
