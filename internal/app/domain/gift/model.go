// Package gift holds the Gift entity and its state machine.
package gift

import (
	"time"

	"github.com/questline/storefront/internal/app/domain/money"
)

// Status is the lifecycle state of a gift.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusClaimed   Status = "CLAIMED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// MaxMessageLen bounds the personal message attached to a gift.
const MaxMessageLen = 500

// ClaimWindow is how long a pending gift stays claimable after it is sent.
const ClaimWindow = 30 * 24 * time.Hour

// Gift represents a purchased item offered by one user to another. Records
// are never deleted; they only move to a terminal status.
type Gift struct {
	ID                   string
	ItemID               string
	SenderID             string
	RecipientID          string
	Message              string
	Amount               money.Money
	PaymentTxID          string
	SentAt               time.Time
	ClaimedAt            *time.Time
	ExpiresAt            time.Time
	EntitlementGrantedAt *time.Time
	Status               Status
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusClaimed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next. The only legal moves are out of PENDING.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusPending {
		return false
	}
	switch next {
	case StatusClaimed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Expired reports whether the claim window has elapsed at the given time.
// This is independent of the stored status; claim checks it lazily.
func (g Gift) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}
