package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/questline/storefront/internal/app/apperr"
	"github.com/questline/storefront/internal/app/domain/gift"
	"github.com/questline/storefront/internal/app/domain/preorder"
	"github.com/questline/storefront/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development. Status guards are evaluated under the write lock, giving the
// same exactly-one-winner semantics as the conditional updates in the
// Postgres store.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	gifts        map[string]gift.Gift
	preOrders    map[string]preorder.PreOrder
	activeByPair map[string]string // userID+"\x00"+itemID -> preOrderID while CONFIRMED
}

var _ storage.GiftStore = (*Store)(nil)
var _ storage.PreOrderStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		gifts:        make(map[string]gift.Gift),
		preOrders:    make(map[string]preorder.PreOrder),
		activeByPair: make(map[string]string),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func pairKey(userID, itemID string) string {
	return userID + "\x00" + itemID
}

// GiftStore implementation ----------------------------------------------------

func (s *Store) CreateGift(_ context.Context, g gift.Gift) (gift.Gift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = s.nextIDLocked()
	} else if _, exists := s.gifts[g.ID]; exists {
		return gift.Gift{}, apperr.Conflictf("gift %s already exists", g.ID)
	}

	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	s.gifts[g.ID] = g
	return g, nil
}

func (s *Store) GetGift(_ context.Context, id string) (gift.Gift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.gifts[id]
	if !ok {
		return gift.Gift{}, apperr.NotFoundf("gift %s not found", id)
	}
	return g, nil
}

func (s *Store) ListGiftsBySender(_ context.Context, senderID string) ([]gift.Gift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]gift.Gift, 0)
	for _, g := range s.gifts {
		if g.SenderID == senderID {
			result = append(result, g)
		}
	}
	return result, nil
}

func (s *Store) ListGiftsByRecipient(_ context.Context, recipientID string) ([]gift.Gift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]gift.Gift, 0)
	for _, g := range s.gifts {
		if g.RecipientID == recipientID {
			result = append(result, g)
		}
	}
	return result, nil
}

func (s *Store) ListPendingGifts(_ context.Context) ([]gift.Gift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]gift.Gift, 0)
	for _, g := range s.gifts {
		if g.Status == gift.StatusPending {
			result = append(result, g)
		}
	}
	return result, nil
}

func (s *Store) ListClaimedUngranted(_ context.Context) ([]gift.Gift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]gift.Gift, 0)
	for _, g := range s.gifts {
		if g.Status == gift.StatusClaimed && g.EntitlementGrantedAt == nil {
			result = append(result, g)
		}
	}
	return result, nil
}

func (s *Store) TransitionGift(_ context.Context, id string, from, to gift.Status, mutate func(*gift.Gift)) (gift.Gift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gifts[id]
	if !ok {
		return gift.Gift{}, apperr.NotFoundf("gift %s not found", id)
	}
	if g.Status != from {
		return gift.Gift{}, apperr.Conflictf("gift %s is %s, expected %s", id, g.Status, from)
	}
	if !from.CanTransitionTo(to) {
		return gift.Gift{}, apperr.Conflictf("gift transition %s -> %s is not allowed", from, to)
	}

	if mutate != nil {
		mutate(&g)
	}
	g.Status = to
	g.UpdatedAt = time.Now().UTC()

	s.gifts[id] = g
	return g, nil
}

func (s *Store) MarkEntitlementGranted(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gifts[id]
	if !ok {
		return apperr.NotFoundf("gift %s not found", id)
	}
	if g.EntitlementGrantedAt != nil {
		return nil
	}
	at = at.UTC()
	g.EntitlementGrantedAt = &at
	g.UpdatedAt = time.Now().UTC()
	s.gifts[id] = g
	return nil
}

// PreOrderStore implementation -------------------------------------------------

func (s *Store) CreatePreOrder(_ context.Context, p preorder.PreOrder) (preorder.PreOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.preOrders[p.ID]; exists {
		return preorder.PreOrder{}, apperr.Conflictf("pre-order %s already exists", p.ID)
	}

	key := pairKey(p.UserID, p.ItemID)
	if p.Status == preorder.StatusConfirmed {
		if existing, exists := s.activeByPair[key]; exists {
			return preorder.PreOrder{}, apperr.Conflictf("user %s already has active pre-order %s for item %s", p.UserID, existing, p.ItemID)
		}
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.preOrders[p.ID] = p
	if p.Status == preorder.StatusConfirmed {
		s.activeByPair[key] = p.ID
	}
	return p, nil
}

func (s *Store) GetPreOrder(_ context.Context, id string) (preorder.PreOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.preOrders[id]
	if !ok {
		return preorder.PreOrder{}, apperr.NotFoundf("pre-order %s not found", id)
	}
	return p, nil
}

func (s *Store) ListPreOrdersByUser(_ context.Context, userID string) ([]preorder.PreOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]preorder.PreOrder, 0)
	for _, p := range s.preOrders {
		if p.UserID == userID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *Store) ListConfirmedPreOrders(_ context.Context) ([]preorder.PreOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]preorder.PreOrder, 0)
	for _, p := range s.preOrders {
		if p.Status == preorder.StatusConfirmed {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *Store) TransitionPreOrder(_ context.Context, id string, from, to preorder.Status, mutate func(*preorder.PreOrder)) (preorder.PreOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.preOrders[id]
	if !ok {
		return preorder.PreOrder{}, apperr.NotFoundf("pre-order %s not found", id)
	}
	if p.Status != from {
		return preorder.PreOrder{}, apperr.Conflictf("pre-order %s is %s, expected %s", id, p.Status, from)
	}
	if !from.CanTransitionTo(to) {
		return preorder.PreOrder{}, apperr.Conflictf("pre-order transition %s -> %s is not allowed", from, to)
	}

	if mutate != nil {
		mutate(&p)
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()

	s.preOrders[id] = p
	if from == preorder.StatusConfirmed {
		delete(s.activeByPair, pairKey(p.UserID, p.ItemID))
	}
	return p, nil
}
