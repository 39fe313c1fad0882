package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/questline/storefront/internal/app/apperr"
	"github.com/questline/storefront/internal/app/domain/gift"
	"github.com/questline/storefront/internal/app/domain/money"
	"github.com/questline/storefront/internal/app/domain/preorder"
	"github.com/questline/storefront/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL. Status
// transitions are conditional updates (`WHERE status = $expected`), and the
// one-active-pre-order invariant is a partial unique index, so both hold
// under concurrent writers.
type Store struct {
	db *sql.DB
}

var _ storage.GiftStore = (*Store)(nil)
var _ storage.PreOrderStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// --- GiftStore --------------------------------------------------------------

const giftColumns = `id, item_id, sender_id, recipient_id, message, amount, currency,
	payment_tx_id, sent_at, claimed_at, expires_at, entitlement_granted_at,
	status, created_at, updated_at`

func (s *Store) CreateGift(ctx context.Context, g gift.Gift) (gift.Gift, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gifts (id, item_id, sender_id, recipient_id, message, amount, currency,
			payment_tx_id, sent_at, claimed_at, expires_at, entitlement_granted_at,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, g.ID, g.ItemID, g.SenderID, g.RecipientID, g.Message,
		g.Amount.Amount.StringFixed(2), g.Amount.Currency,
		g.PaymentTxID, g.SentAt, g.ClaimedAt, g.ExpiresAt, g.EntitlementGrantedAt,
		g.Status, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return gift.Gift{}, apperr.Conflictf("gift %s already exists", g.ID)
		}
		return gift.Gift{}, err
	}
	return g, nil
}

func (s *Store) GetGift(ctx context.Context, id string) (gift.Gift, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+giftColumns+` FROM gifts WHERE id = $1`, id)
	g, err := scanGift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return gift.Gift{}, apperr.NotFoundf("gift %s not found", id)
	}
	return g, err
}

func (s *Store) ListGiftsBySender(ctx context.Context, senderID string) ([]gift.Gift, error) {
	return s.listGifts(ctx, `SELECT `+giftColumns+` FROM gifts WHERE sender_id = $1 ORDER BY created_at`, senderID)
}

func (s *Store) ListGiftsByRecipient(ctx context.Context, recipientID string) ([]gift.Gift, error) {
	return s.listGifts(ctx, `SELECT `+giftColumns+` FROM gifts WHERE recipient_id = $1 ORDER BY created_at`, recipientID)
}

func (s *Store) ListPendingGifts(ctx context.Context) ([]gift.Gift, error) {
	return s.listGifts(ctx, `SELECT `+giftColumns+` FROM gifts WHERE status = $1 ORDER BY created_at`, gift.StatusPending)
}

func (s *Store) ListClaimedUngranted(ctx context.Context) ([]gift.Gift, error) {
	return s.listGifts(ctx, `SELECT `+giftColumns+` FROM gifts WHERE status = $1 AND entitlement_granted_at IS NULL ORDER BY created_at`, gift.StatusClaimed)
}

func (s *Store) listGifts(ctx context.Context, query string, args ...interface{}) ([]gift.Gift, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]gift.Gift, 0)
	for rows.Next() {
		g, err := scanGift(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (s *Store) TransitionGift(ctx context.Context, id string, from, to gift.Status, mutate func(*gift.Gift)) (gift.Gift, error) {
	if !from.CanTransitionTo(to) {
		return gift.Gift{}, apperr.Conflictf("gift transition %s -> %s is not allowed", from, to)
	}

	g, err := s.GetGift(ctx, id)
	if err != nil {
		return gift.Gift{}, err
	}
	if g.Status != from {
		return gift.Gift{}, apperr.Conflictf("gift %s is %s, expected %s", id, g.Status, from)
	}

	if mutate != nil {
		mutate(&g)
	}
	g.Status = to
	g.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE gifts
		SET status = $1, claimed_at = $2, entitlement_granted_at = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`, g.Status, g.ClaimedAt, g.EntitlementGrantedAt, g.UpdatedAt, id, from)
	if err != nil {
		return gift.Gift{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return gift.Gift{}, err
	}
	if affected == 0 {
		// A concurrent writer got there first.
		current, getErr := s.GetGift(ctx, id)
		if getErr != nil {
			return gift.Gift{}, getErr
		}
		return gift.Gift{}, apperr.Conflictf("gift %s is %s, expected %s", id, current.Status, from)
	}
	return g, nil
}

func (s *Store) MarkEntitlementGranted(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE gifts
		SET entitlement_granted_at = $1, updated_at = $2
		WHERE id = $3 AND entitlement_granted_at IS NULL
	`, at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		// Already granted, or the gift does not exist.
		if _, err := s.GetGift(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGift(row rowScanner) (gift.Gift, error) {
	var (
		g         gift.Gift
		amount    string
		currency  string
		claimedAt sql.NullTime
		grantedAt sql.NullTime
	)
	err := row.Scan(&g.ID, &g.ItemID, &g.SenderID, &g.RecipientID, &g.Message,
		&amount, &currency, &g.PaymentTxID, &g.SentAt, &claimedAt, &g.ExpiresAt,
		&grantedAt, &g.Status, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return gift.Gift{}, err
	}
	g.Amount, err = money.Parse(amount, currency)
	if err != nil {
		return gift.Gift{}, err
	}
	if claimedAt.Valid {
		t := claimedAt.Time.UTC()
		g.ClaimedAt = &t
	}
	if grantedAt.Valid {
		t := grantedAt.Time.UTC()
		g.EntitlementGrantedAt = &t
	}
	return g, nil
}

// --- PreOrderStore ----------------------------------------------------------

const preOrderColumns = `id, item_id, user_id, paid_amount, currency, bonus_content,
	payment_tx_id, pre_ordered_at, estimated_delivery_at, status, created_at, updated_at`

func (s *Store) CreatePreOrder(ctx context.Context, p preorder.PreOrder) (preorder.PreOrder, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pre_orders (id, item_id, user_id, paid_amount, currency, bonus_content,
			payment_tx_id, pre_ordered_at, estimated_delivery_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.ID, p.ItemID, p.UserID, p.PaidAmount.Amount.StringFixed(2), p.PaidAmount.Currency,
		p.BonusContent, p.PaymentTxID, p.PreOrderedAt, p.EstimatedDeliveryAt,
		p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return preorder.PreOrder{}, apperr.Conflictf("user %s already has an active pre-order for item %s", p.UserID, p.ItemID)
		}
		return preorder.PreOrder{}, err
	}
	return p, nil
}

func (s *Store) GetPreOrder(ctx context.Context, id string) (preorder.PreOrder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+preOrderColumns+` FROM pre_orders WHERE id = $1`, id)
	p, err := scanPreOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return preorder.PreOrder{}, apperr.NotFoundf("pre-order %s not found", id)
	}
	return p, err
}

func (s *Store) ListPreOrdersByUser(ctx context.Context, userID string) ([]preorder.PreOrder, error) {
	return s.listPreOrders(ctx, `SELECT `+preOrderColumns+` FROM pre_orders WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (s *Store) ListConfirmedPreOrders(ctx context.Context) ([]preorder.PreOrder, error) {
	return s.listPreOrders(ctx, `SELECT `+preOrderColumns+` FROM pre_orders WHERE status = $1 ORDER BY created_at`, preorder.StatusConfirmed)
}

func (s *Store) listPreOrders(ctx context.Context, query string, args ...interface{}) ([]preorder.PreOrder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]preorder.PreOrder, 0)
	for rows.Next() {
		p, err := scanPreOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) TransitionPreOrder(ctx context.Context, id string, from, to preorder.Status, mutate func(*preorder.PreOrder)) (preorder.PreOrder, error) {
	if !from.CanTransitionTo(to) {
		return preorder.PreOrder{}, apperr.Conflictf("pre-order transition %s -> %s is not allowed", from, to)
	}

	p, err := s.GetPreOrder(ctx, id)
	if err != nil {
		return preorder.PreOrder{}, err
	}
	if p.Status != from {
		return preorder.PreOrder{}, apperr.Conflictf("pre-order %s is %s, expected %s", id, p.Status, from)
	}

	if mutate != nil {
		mutate(&p)
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE pre_orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, p.Status, p.UpdatedAt, id, from)
	if err != nil {
		return preorder.PreOrder{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return preorder.PreOrder{}, err
	}
	if affected == 0 {
		current, getErr := s.GetPreOrder(ctx, id)
		if getErr != nil {
			return preorder.PreOrder{}, getErr
		}
		return preorder.PreOrder{}, apperr.Conflictf("pre-order %s is %s, expected %s", id, current.Status, from)
	}
	return p, nil
}

func scanPreOrder(row rowScanner) (preorder.PreOrder, error) {
	var (
		p        preorder.PreOrder
		amount   string
		currency string
	)
	err := row.Scan(&p.ID, &p.ItemID, &p.UserID, &amount, &currency, &p.BonusContent,
		&p.PaymentTxID, &p.PreOrderedAt, &p.EstimatedDeliveryAt, &p.Status,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return preorder.PreOrder{}, err
	}
	p.PaidAmount, err = money.Parse(amount, currency)
	if err != nil {
		return preorder.PreOrder{}, err
	}
	return p, nil
}
