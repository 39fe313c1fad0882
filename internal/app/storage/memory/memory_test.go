package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/questline/storefront/internal/app/apperr"
	"github.com/questline/storefront/internal/app/domain/gift"
	"github.com/questline/storefront/internal/app/domain/money"
	"github.com/questline/storefront/internal/app/domain/preorder"
)

func pendingGift(t *testing.T, store *Store) gift.Gift {
	t.Helper()
	now := time.Now().UTC()
	g, err := store.CreateGift(context.Background(), gift.Gift{
		ItemID:      "game-1",
		SenderID:    "alice",
		RecipientID: "bob",
		Amount:      money.MustParse("29.99", "USD"),
		SentAt:      now,
		ExpiresAt:   now.Add(gift.ClaimWindow),
		Status:      gift.StatusPending,
	})
	if err != nil {
		t.Fatalf("create gift: %v", err)
	}
	return g
}

func TestTransitionGiftGuardsStatus(t *testing.T) {
	store := New()
	g := pendingGift(t, store)

	claimed, err := store.TransitionGift(context.Background(), g.ID, gift.StatusPending, gift.StatusClaimed, func(g *gift.Gift) {
		now := time.Now().UTC()
		g.ClaimedAt = &now
	})
	if err != nil {
		t.Fatalf("claim transition: %v", err)
	}
	if claimed.Status != gift.StatusClaimed || claimed.ClaimedAt == nil {
		t.Fatalf("unexpected claimed gift: %#v", claimed)
	}

	_, err = store.TransitionGift(context.Background(), g.ID, gift.StatusPending, gift.StatusCancelled, nil)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict transitioning a claimed gift, got %v", err)
	}

	_, err = store.TransitionGift(context.Background(), "missing", gift.StatusPending, gift.StatusClaimed, nil)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found for missing gift, got %v", err)
	}
}

func TestTransitionGiftConcurrentClaimers(t *testing.T) {
	store := New()
	g := pendingGift(t, store)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.TransitionGift(context.Background(), g.ID, gift.StatusPending, gift.StatusClaimed, nil)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !apperr.IsKind(err, apperr.KindConflict) {
			t.Fatalf("loser must observe a conflict, got %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning transition, got %d", winners)
	}
}

func TestMarkEntitlementGrantedIdempotent(t *testing.T) {
	store := New()
	g := pendingGift(t, store)
	if _, err := store.TransitionGift(context.Background(), g.ID, gift.StatusPending, gift.StatusClaimed, nil); err != nil {
		t.Fatalf("claim: %v", err)
	}

	ungranted, err := store.ListClaimedUngranted(context.Background())
	if err != nil || len(ungranted) != 1 {
		t.Fatalf("expected one claimed-ungranted gift: %v %d", err, len(ungranted))
	}

	first := time.Now().UTC()
	if err := store.MarkEntitlementGranted(context.Background(), g.ID, first); err != nil {
		t.Fatalf("mark granted: %v", err)
	}
	if err := store.MarkEntitlementGranted(context.Background(), g.ID, first.Add(time.Hour)); err != nil {
		t.Fatalf("second mark granted: %v", err)
	}

	stored, err := store.GetGift(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("get gift: %v", err)
	}
	if stored.EntitlementGrantedAt == nil || !stored.EntitlementGrantedAt.Equal(first) {
		t.Fatalf("grant timestamp must keep the first value: %#v", stored.EntitlementGrantedAt)
	}

	ungranted, err = store.ListClaimedUngranted(context.Background())
	if err != nil || len(ungranted) != 0 {
		t.Fatalf("expected no claimed-ungranted gifts after marking: %v %d", err, len(ungranted))
	}
}

func TestCreatePreOrderEnforcesOneActivePerPair(t *testing.T) {
	store := New()
	base := preorder.PreOrder{
		ItemID:              "game-2",
		UserID:              "carol",
		PaidAmount:          money.MustParse("10.00", "USD"),
		PreOrderedAt:        time.Now().UTC(),
		EstimatedDeliveryAt: time.Now().UTC().Add(72 * time.Hour),
		Status:              preorder.StatusConfirmed,
	}

	first, err := store.CreatePreOrder(context.Background(), base)
	if err != nil {
		t.Fatalf("create pre-order: %v", err)
	}

	if _, err := store.CreatePreOrder(context.Background(), base); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for duplicate active pre-order, got %v", err)
	}

	other := base
	other.ItemID = "game-3"
	if _, err := store.CreatePreOrder(context.Background(), other); err != nil {
		t.Fatalf("different item must be allowed: %v", err)
	}

	if _, err := store.TransitionPreOrder(context.Background(), first.ID, preorder.StatusConfirmed, preorder.StatusCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The pair frees up once the previous pre-order leaves CONFIRMED.
	if _, err := store.CreatePreOrder(context.Background(), base); err != nil {
		t.Fatalf("create after cancel must be allowed: %v", err)
	}
}

func TestTransitionPreOrderGuardsStatus(t *testing.T) {
	store := New()
	p, err := store.CreatePreOrder(context.Background(), preorder.PreOrder{
		ItemID:              "game-2",
		UserID:              "carol",
		PaidAmount:          money.MustParse("10.00", "USD"),
		EstimatedDeliveryAt: time.Now().UTC().Add(time.Hour),
		Status:              preorder.StatusConfirmed,
	})
	if err != nil {
		t.Fatalf("create pre-order: %v", err)
	}

	if _, err := store.TransitionPreOrder(context.Background(), p.ID, preorder.StatusConfirmed, preorder.StatusCompleted, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = store.TransitionPreOrder(context.Background(), p.ID, preorder.StatusConfirmed, preorder.StatusCancelled, nil)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict transitioning a completed pre-order, got %v", err)
	}
}
