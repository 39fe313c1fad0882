// Package preorder holds the PreOrder entity and its state machine.
package preorder

import (
	"time"

	"github.com/questline/storefront/internal/app/domain/money"
)

// Status is the lifecycle state of a pre-order.
type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// PreOrder represents a paid reservation for an unreleased item. At most one
// CONFIRMED pre-order may exist per (user, item) pair; the store enforces
// that atomically.
type PreOrder struct {
	ID                  string
	ItemID              string
	UserID              string
	PaidAmount          money.Money
	BonusContent        string
	PaymentTxID         string
	PreOrderedAt        time.Time
	EstimatedDeliveryAt time.Time
	Status              Status
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next. The only legal moves are out of CONFIRMED.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusConfirmed {
		return false
	}
	return next == StatusCancelled || next == StatusCompleted
}

// Cancellable reports whether the cancel window is still open: the pre-order
// is CONFIRMED and the estimated delivery has not been reached. The window
// rule prevents cancelling at or after delivery even while nominally
// CONFIRMED.
func (p PreOrder) Cancellable(now time.Time) bool {
	return p.Status == StatusConfirmed && p.EstimatedDeliveryAt.After(now)
}
