package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testDoc struct {
	status      DocStatus
	label       string
	submittedBy int64
	submittedAt time.Time
	cancelledBy int64
	cancelledAt time.Time
}

func (d *testDoc) DocStatus() DocStatus            { return d.status }
func (d *testDoc) SetDocStatus(status DocStatus)   { d.status = status }
func (d *testDoc) SetStatusLabel(label string)     { d.label = label }
func (d *testDoc) SetSubmitted(id int64, at time.Time) {
	d.submittedBy = id
	d.submittedAt = at
}
func (d *testDoc) SetCancelled(id int64, at time.Time) {
	d.cancelledBy = id
	d.cancelledAt = at
}

func TestSubmitStampsActor(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewMachine()
	m.WithNow(func() time.Time { return fixed })

	doc := &testDoc{}
	require.NoError(t, m.Submit(doc, 7))
	require.Equal(t, StatusSubmitted, doc.status)
	require.Equal(t, "Submitted", doc.label)
	require.EqualValues(t, 7, doc.submittedBy)
	require.Equal(t, fixed, doc.submittedAt)
}

func TestSubmitRejectsNonDraft(t *testing.T) {
	m := NewMachine()
	require.ErrorIs(t, m.Submit(&testDoc{status: StatusSubmitted}, 1), ErrInvalidTransition)
	require.ErrorIs(t, m.Submit(&testDoc{status: StatusCancelled}, 1), ErrInvalidTransition)
}

func TestCancelOnlyFromSubmitted(t *testing.T) {
	m := NewMachine()

	doc := &testDoc{status: StatusSubmitted}
	require.NoError(t, m.Cancel(doc, 3))
	require.Equal(t, StatusCancelled, doc.status)
	require.EqualValues(t, 3, doc.cancelledBy)

	require.ErrorIs(t, m.Cancel(doc, 3), ErrInvalidTransition)
	require.ErrorIs(t, m.Cancel(&testDoc{}, 3), ErrInvalidTransition)
}

func TestPredicates(t *testing.T) {
	draft := &testDoc{}
	submitted := &testDoc{status: StatusSubmitted}
	cancelled := &testDoc{status: StatusCancelled}

	require.True(t, CanEdit(draft))
	require.True(t, CanSubmit(draft))
	require.False(t, CanCancel(draft))

	require.False(t, CanEdit(submitted))
	require.True(t, CanCancel(submitted))

	require.False(t, CanEdit(cancelled))
	require.False(t, CanSubmit(cancelled))
	require.False(t, CanCancel(cancelled))
}
