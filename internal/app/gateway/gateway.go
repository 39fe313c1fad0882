// Package gateway defines the external collaborators consumed by the
// workflows. Implementations live behind these narrow contracts; the core
// never depends on how catalog, identity, entitlement, payment or
// notification services are actually hosted.
package gateway

import (
	"context"

	"github.com/questline/storefront/internal/app/domain/catalog"
	"github.com/questline/storefront/internal/app/domain/money"
)

// Catalog resolves store items.
type Catalog interface {
	// GetItem returns the item or a not-found error. Transient failures are
	// reported as dependency errors, never as not-found.
	GetItem(ctx context.Context, itemID string) (catalog.Item, error)
}

// Identity answers user existence and connection queries.
type Identity interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	AreConnected(ctx context.Context, userID, otherID string) (bool, error)
}

// Entitlement records and queries item ownership.
type Entitlement interface {
	UserOwns(ctx context.Context, userID, itemID string) (bool, error)
	// Grant records ownership of an item, referencing the payment transaction
	// that funded it.
	Grant(ctx context.Context, userID, itemID, sourceTxID string) error
}

// CaptureStatus is the definitive outcome of a payment capture.
type CaptureStatus string

const (
	CaptureSuccess CaptureStatus = "SUCCESS"
	CaptureFailed  CaptureStatus = "FAILED"
)

// CaptureRequest describes a charge against a user's payment instrument.
type CaptureRequest struct {
	UserID      string
	ItemID      string
	Amount      money.Money
	Description string
}

// CaptureResult is the gateway's answer to a capture request.
type CaptureResult struct {
	Status        CaptureStatus
	TransactionID string
	ErrorMessage  string
}

// PaymentState reports the current state of a past transaction.
type PaymentState struct {
	Status string
	Amount money.Money
}

// Payment captures and refunds charges. Capture must complete, success or
// definitive failure, before any entity is persisted; timeouts count as
// failure. Retries belong to the gateway, not to the workflows.
type Payment interface {
	Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
	Refund(ctx context.Context, transactionID string) error
	Status(ctx context.Context, transactionID string) (PaymentState, error)
}

// Notification is a pre-formatted user-facing message.
type Notification struct {
	UserID string
	Title  string
	Body   string
}

// Notifier delivers notifications best-effort. Callers catch and log
// failures; delivery never affects the surrounding transaction.
type Notifier interface {
	Send(ctx context.Context, note Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, note Notification) error

func (f NotifierFunc) Send(ctx context.Context, note Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, note)
}
