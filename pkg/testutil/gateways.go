// Package testutil provides in-memory gateway fakes for service tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/questline/storefront/internal/app/apperr"
	"github.com/questline/storefront/internal/app/domain/catalog"
	"github.com/questline/storefront/internal/app/gateway"
)

// MockCatalog serves items from a map.
type MockCatalog struct {
	mu    sync.Mutex
	items map[string]catalog.Item
	Err   error
}

// NewMockCatalog constructs an empty catalog.
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{items: make(map[string]catalog.Item)}
}

// Put registers an item.
func (m *MockCatalog) Put(item catalog.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
}

// GetItem implements gateway.Catalog.
func (m *MockCatalog) GetItem(ctx context.Context, itemID string) (catalog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return catalog.Item{}, m.Err
	}
	item, ok := m.items[itemID]
	if !ok {
		return catalog.Item{}, apperr.NotFoundf("item %s not found", itemID)
	}
	return item, nil
}

// MockIdentity tracks known users and connections between them.
type MockIdentity struct {
	mu          sync.Mutex
	users       map[string]bool
	connections map[string]bool
	Err         error
}

// NewMockIdentity constructs an identity fake with the given known users.
func NewMockIdentity(users ...string) *MockIdentity {
	m := &MockIdentity{users: make(map[string]bool), connections: make(map[string]bool)}
	for _, u := range users {
		m.users[u] = true
	}
	return m
}

// Connect records a bidirectional connection between two users.
func (m *MockIdentity) Connect(a, b string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[pairKey(a, b)] = true
}

// UserExists implements gateway.Identity.
func (m *MockIdentity) UserExists(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	return m.users[userID], nil
}

// AreConnected implements gateway.Identity.
func (m *MockIdentity) AreConnected(ctx context.Context, userID, otherID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	return m.connections[pairKey(userID, otherID)], nil
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// GrantRecord is one recorded entitlement grant.
type GrantRecord struct {
	UserID     string
	ItemID     string
	SourceTxID string
}

// MockEntitlement tracks ownership and records grants.
type MockEntitlement struct {
	mu       sync.Mutex
	owned    map[string]bool
	grants   []GrantRecord
	OwnsErr  error
	GrantErr error
}

// NewMockEntitlement constructs an entitlement fake with no ownership.
func NewMockEntitlement() *MockEntitlement {
	return &MockEntitlement{owned: make(map[string]bool)}
}

// SetOwned marks a user as owning an item.
func (m *MockEntitlement) SetOwned(userID, itemID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owned[userID+"|"+itemID] = true
}

// UserOwns implements gateway.Entitlement.
func (m *MockEntitlement) UserOwns(ctx context.Context, userID, itemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OwnsErr != nil {
		return false, m.OwnsErr
	}
	return m.owned[userID+"|"+itemID], nil
}

// Grant implements gateway.Entitlement.
func (m *MockEntitlement) Grant(ctx context.Context, userID, itemID, sourceTxID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GrantErr != nil {
		return m.GrantErr
	}
	m.owned[userID+"|"+itemID] = true
	m.grants = append(m.grants, GrantRecord{UserID: userID, ItemID: itemID, SourceTxID: sourceTxID})
	return nil
}

// Grants returns a copy of all recorded grants.
func (m *MockEntitlement) Grants() []GrantRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]GrantRecord, len(m.grants))
	copy(out, m.grants)
	return out
}

// MockPayment returns a scripted capture result and records requests.
type MockPayment struct {
	mu       sync.Mutex
	captures []gateway.CaptureRequest
	refunds  []string
	Result   gateway.CaptureResult
	Err      error
	txSeq    int
}

// NewMockPayment constructs a payment fake whose captures succeed.
func NewMockPayment() *MockPayment {
	return &MockPayment{Result: gateway.CaptureResult{Status: gateway.CaptureSuccess}}
}

// DeclinedCapture builds a failed capture result with the given reason.
func DeclinedCapture(reason string) gateway.CaptureResult {
	return gateway.CaptureResult{Status: gateway.CaptureFailed, ErrorMessage: reason}
}

// Capture implements gateway.Payment.
func (m *MockPayment) Capture(ctx context.Context, req gateway.CaptureRequest) (gateway.CaptureResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return gateway.CaptureResult{}, m.Err
	}
	m.captures = append(m.captures, req)
	result := m.Result
	if result.Status == gateway.CaptureSuccess && result.TransactionID == "" {
		m.txSeq++
		result.TransactionID = fmt.Sprintf("tx-%d", m.txSeq)
	}
	return result, nil
}

// Refund implements gateway.Payment.
func (m *MockPayment) Refund(ctx context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.refunds = append(m.refunds, transactionID)
	return nil
}

// Status implements gateway.Payment.
func (m *MockPayment) Status(ctx context.Context, transactionID string) (gateway.PaymentState, error) {
	return gateway.PaymentState{Status: string(gateway.CaptureSuccess)}, m.Err
}

// Captures returns a copy of all recorded capture requests.
func (m *MockPayment) Captures() []gateway.CaptureRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]gateway.CaptureRequest, len(m.captures))
	copy(out, m.captures)
	return out
}

// Refunds returns the transaction ids refunded so far.
func (m *MockPayment) Refunds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.refunds))
	copy(out, m.refunds)
	return out
}

// MockNotifier records delivered notifications.
type MockNotifier struct {
	mu   sync.Mutex
	sent []gateway.Notification
	Err  error
}

// NewMockNotifier constructs an empty notifier fake.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Send implements gateway.Notifier.
func (m *MockNotifier) Send(ctx context.Context, n gateway.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, n)
	return nil
}

// Sent returns a copy of all delivered notifications.
func (m *MockNotifier) Sent() []gateway.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]gateway.Notification, len(m.sent))
	copy(out, m.sent)
	return out
}
