// Package trigger defines the record kept for every reset attempt.
package trigger

import (
	"time"

	"github.com/google/uuid"
)

// Outcome describes how a reset attempt ended.
type Outcome string

const (
	// OutcomeResetOK means the reset command exited 0.
	OutcomeResetOK Outcome = "reset_ok"
	// OutcomeResetFailed means the reset command failed to start or exited
	// non-zero.
	OutcomeResetFailed Outcome = "reset_failed"
)

// Trigger is one detected failure and the reset attempt it produced.
type Trigger struct {
	ID        string
	OrderID   string
	Timestamp time.Time
	Line      string
	Outcome   Outcome
	DiagFile  string
	Notified  bool
}

// New creates a Trigger with a generated UUID.
func New(orderID string, ts time.Time, line string) *Trigger {
	return &Trigger{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Timestamp: ts,
		Line:      line,
	}
}

// Label returns a human-readable outcome label.
func (o Outcome) Label() string {
	switch o {
	case OutcomeResetOK:
		return "reset ok"
	case OutcomeResetFailed:
		return "reset failed"
	default:
		return string(o)
	}
}
