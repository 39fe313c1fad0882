// Package storage defines the persistence contracts for the workflow
// entities. Transition methods carry the optimistic concurrency contract:
// the expected current status is re-checked atomically at write time, so two
// racing transitions on the same entity cannot both succeed.
package storage

import (
	"context"
	"time"

	"github.com/questline/storefront/internal/app/domain/gift"
	"github.com/questline/storefront/internal/app/domain/preorder"
)

// GiftStore persists gift records.
type GiftStore interface {
	CreateGift(ctx context.Context, g gift.Gift) (gift.Gift, error)
	GetGift(ctx context.Context, id string) (gift.Gift, error)
	ListGiftsBySender(ctx context.Context, senderID string) ([]gift.Gift, error)
	ListGiftsByRecipient(ctx context.Context, recipientID string) ([]gift.Gift, error)

	// ListPendingGifts returns every gift still in PENDING, for the
	// expiration sweep.
	ListPendingGifts(ctx context.Context) ([]gift.Gift, error)

	// ListClaimedUngranted returns CLAIMED gifts whose entitlement grant has
	// not been recorded, so a crashed claim can be re-driven.
	ListClaimedUngranted(ctx context.Context) ([]gift.Gift, error)

	// TransitionGift moves a gift from one status to another, applying
	// mutate to the record before the write. It fails with a conflict error
	// when the current status is not the expected one.
	TransitionGift(ctx context.Context, id string, from, to gift.Status, mutate func(*gift.Gift)) (gift.Gift, error)

	// MarkEntitlementGranted records that the entitlement grant for a
	// claimed gift succeeded. Idempotent.
	MarkEntitlementGranted(ctx context.Context, id string, at time.Time) error
}

// PreOrderStore persists pre-order records.
type PreOrderStore interface {
	// CreatePreOrder inserts a new record. It fails with a conflict error if
	// a CONFIRMED pre-order already exists for the same (user, item) pair;
	// the check is atomic with the insert.
	CreatePreOrder(ctx context.Context, p preorder.PreOrder) (preorder.PreOrder, error)
	GetPreOrder(ctx context.Context, id string) (preorder.PreOrder, error)
	ListPreOrdersByUser(ctx context.Context, userID string) ([]preorder.PreOrder, error)

	// ListConfirmedPreOrders returns every CONFIRMED pre-order, for the
	// completion sweep.
	ListConfirmedPreOrders(ctx context.Context) ([]preorder.PreOrder, error)

	// TransitionPreOrder moves a pre-order between statuses with the same
	// conditional semantics as TransitionGift.
	TransitionPreOrder(ctx context.Context, id string, from, to preorder.Status, mutate func(*preorder.PreOrder)) (preorder.PreOrder, error)
}
