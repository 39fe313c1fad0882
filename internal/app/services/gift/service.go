// Package gift implements the gift workflow: send, claim, cancel and the
// expiration sweep. Payment capture is the only blocking external side
// effect on the critical path; notifications are dispatched best-effort
// after the state change is durable.
package gift

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/questline/storefront/internal/app/apperr"
	"github.com/questline/storefront/internal/app/domain/gift"
	"github.com/questline/storefront/internal/app/domain/money"
	"github.com/questline/storefront/internal/app/gateway"
	"github.com/questline/storefront/internal/app/metrics"
	"github.com/questline/storefront/internal/app/storage"
	"github.com/questline/storefront/pkg/logger"
)

// Service manages the gift lifecycle.
type Service struct {
	store       storage.GiftStore
	catalog     gateway.Catalog
	identity    gateway.Identity
	entitlement gateway.Entitlement
	payment     gateway.Payment
	notifier    gateway.Notifier
	log         *logger.Logger

	notifyTimeout time.Duration
}

// New constructs a gift service.
func New(store storage.GiftStore, catalog gateway.Catalog, identity gateway.Identity,
	entitlement gateway.Entitlement, payment gateway.Payment, notifier gateway.Notifier,
	log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("gift")
	}
	return &Service{
		store:         store,
		catalog:       catalog,
		identity:      identity,
		entitlement:   entitlement,
		payment:       payment,
		notifier:      notifier,
		log:           log,
		notifyTimeout: 3 * time.Second,
	}
}

// Send validates the request, captures payment and persists a PENDING gift.
// If capture does not report success the operation fails and nothing is
// persisted. A failed recipient notification never reverses the gift.
func (s *Service) Send(ctx context.Context, itemID, senderID, recipientID, message, amount, currency string) (gift.Gift, error) {
	itemID = strings.TrimSpace(itemID)
	senderID = strings.TrimSpace(senderID)
	recipientID = strings.TrimSpace(recipientID)

	if itemID == "" {
		return gift.Gift{}, apperr.Validationf("item_id is required")
	}
	if senderID == "" || recipientID == "" {
		return gift.Gift{}, apperr.Validationf("sender_id and recipient_id are required")
	}
	if senderID == recipientID {
		return gift.Gift{}, apperr.Validationf("sender and recipient must differ")
	}
	if len(message) > gift.MaxMessageLen {
		return gift.Gift{}, apperr.Validationf("message exceeds %d characters", gift.MaxMessageLen)
	}
	price, err := money.Parse(amount, currency)
	if err != nil {
		return gift.Gift{}, err
	}
	if !price.Positive() {
		return gift.Gift{}, apperr.Validationf("amount must be positive")
	}

	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		return gift.Gift{}, err
	}

	if err := s.requireUser(ctx, senderID, "sender"); err != nil {
		return gift.Gift{}, err
	}
	if err := s.requireUser(ctx, recipientID, "recipient"); err != nil {
		return gift.Gift{}, err
	}

	owns, err := s.entitlement.UserOwns(ctx, recipientID, itemID)
	if err != nil {
		return gift.Gift{}, depErr(err, "ownership lookup for recipient %s", recipientID)
	}
	if owns {
		return gift.Gift{}, apperr.Conflictf("recipient %s already owns item %s", recipientID, itemID)
	}

	// Gifting between non-friends is allowed; the lookup is advisory only.
	if connected, err := s.identity.AreConnected(ctx, senderID, recipientID); err != nil {
		s.log.WithError(err).
			WithField("sender_id", senderID).
			WithField("recipient_id", recipientID).
			Warn("connection lookup failed")
	} else if !connected {
		s.log.WithField("sender_id", senderID).
			WithField("recipient_id", recipientID).
			Warn("gift sent between unconnected users")
	}

	result, err := s.payment.Capture(ctx, gateway.CaptureRequest{
		UserID:      senderID,
		ItemID:      itemID,
		Amount:      price,
		Description: fmt.Sprintf("Gift: %s for %s", item.Title, recipientID),
	})
	if err != nil {
		metrics.RecordCapture("error")
		return gift.Gift{}, payErr(err, "payment capture for sender %s", senderID)
	}
	if result.Status != gateway.CaptureSuccess {
		metrics.RecordCapture("failed")
		return gift.Gift{}, apperr.Paymentf("payment capture failed: %s", result.ErrorMessage)
	}
	metrics.RecordCapture("success")

	now := time.Now().UTC()
	g := gift.Gift{
		ItemID:      itemID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Message:     message,
		Amount:      price,
		PaymentTxID: result.TransactionID,
		SentAt:      now,
		ExpiresAt:   now.Add(gift.ClaimWindow),
		Status:      gift.StatusPending,
	}
	g, err = s.store.CreateGift(ctx, g)
	if err != nil {
		return gift.Gift{}, err
	}
	metrics.RecordGiftTransition(string(gift.StatusPending))

	s.log.WithField("gift_id", g.ID).
		WithField("item_id", itemID).
		WithField("sender_id", senderID).
		WithField("recipient_id", recipientID).
		Info("gift sent")

	s.notify(recipientID, "You received a gift",
		fmt.Sprintf("%s sent you %s. Claim it within 30 days.", senderID, item.Title))
	return g, nil
}

// Claim transitions a pending gift to CLAIMED for its recipient and grants
// the entitlement. Expiry is checked lazily here, independent of the sweep.
func (s *Service) Claim(ctx context.Context, giftID, recipientID string) (gift.Gift, error) {
	giftID = strings.TrimSpace(giftID)
	recipientID = strings.TrimSpace(recipientID)
	if giftID == "" || recipientID == "" {
		return gift.Gift{}, apperr.Validationf("gift_id and recipient_id are required")
	}

	g, err := s.store.GetGift(ctx, giftID)
	if err != nil {
		return gift.Gift{}, err
	}
	if g.RecipientID != recipientID {
		return gift.Gift{}, apperr.Authorizationf("gift %s does not belong to %s", giftID, recipientID)
	}
	if g.Status != gift.StatusPending {
		return gift.Gift{}, apperr.Conflictf("gift %s is %s and cannot be claimed", giftID, g.Status)
	}
	now := time.Now().UTC()
	if g.Expired(now) {
		return gift.Gift{}, apperr.Conflictf("gift %s expired on %s", giftID, g.ExpiresAt.Format(time.RFC3339))
	}

	// Racing against other acquisition paths: ownership can appear between
	// send and claim.
	owns, err := s.entitlement.UserOwns(ctx, recipientID, g.ItemID)
	if err != nil {
		return gift.Gift{}, depErr(err, "ownership lookup for recipient %s", recipientID)
	}
	if owns {
		return gift.Gift{}, apperr.Conflictf("recipient %s already owns item %s", recipientID, g.ItemID)
	}

	claimed, err := s.store.TransitionGift(ctx, giftID, gift.StatusPending, gift.StatusClaimed, func(g *gift.Gift) {
		g.ClaimedAt = &now
	})
	if err != nil {
		return gift.Gift{}, err
	}
	metrics.RecordGiftTransition(string(gift.StatusClaimed))

	// The transition is durable before the grant, so a failure here leaves a
	// CLAIMED-but-ungranted record that the sweep re-drives.
	if err := s.entitlement.Grant(ctx, recipientID, claimed.ItemID, claimed.PaymentTxID); err != nil {
		s.log.WithError(err).
			WithField("gift_id", claimed.ID).
			WithField("recipient_id", recipientID).
			Warn("entitlement grant failed; grant will be re-driven")
	} else if err := s.store.MarkEntitlementGranted(ctx, claimed.ID, now); err != nil {
		s.log.WithError(err).
			WithField("gift_id", claimed.ID).
			Warn("record entitlement grant failed")
	} else {
		claimed.EntitlementGrantedAt = &now
	}

	s.log.WithField("gift_id", claimed.ID).
		WithField("recipient_id", recipientID).
		Info("gift claimed")

	s.notify(claimed.SenderID, "Your gift was claimed",
		fmt.Sprintf("%s claimed the gift you sent.", recipientID))
	return claimed, nil
}

// Cancel transitions a pending, unexpired gift to CANCELLED for its sender.
// Refunds are a separate operational action and are not triggered here.
func (s *Service) Cancel(ctx context.Context, giftID, senderID string) error {
	giftID = strings.TrimSpace(giftID)
	senderID = strings.TrimSpace(senderID)
	if giftID == "" || senderID == "" {
		return apperr.Validationf("gift_id and sender_id are required")
	}

	g, err := s.store.GetGift(ctx, giftID)
	if err != nil {
		return err
	}
	if g.SenderID != senderID {
		return apperr.Authorizationf("gift %s was not sent by %s", giftID, senderID)
	}
	if g.Status != gift.StatusPending {
		return apperr.Conflictf("gift %s is %s and cannot be cancelled", giftID, g.Status)
	}
	if g.Expired(time.Now().UTC()) {
		return apperr.Conflictf("gift %s has expired and cannot be cancelled", giftID)
	}

	if _, err := s.store.TransitionGift(ctx, giftID, gift.StatusPending, gift.StatusCancelled, nil); err != nil {
		return err
	}
	metrics.RecordGiftTransition(string(gift.StatusCancelled))

	s.log.WithField("gift_id", giftID).
		WithField("sender_id", senderID).
		Info("gift cancelled")
	return nil
}

// Expire transitions a pending gift whose claim window has elapsed to
// EXPIRED. It is idempotent: any other current status, including one set by
// a concurrent writer, is a no-op.
func (s *Service) Expire(ctx context.Context, g gift.Gift) error {
	if g.Status != gift.StatusPending {
		return nil
	}
	if !g.Expired(time.Now().UTC()) {
		return nil
	}

	_, err := s.store.TransitionGift(ctx, g.ID, gift.StatusPending, gift.StatusExpired, nil)
	if err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			return nil
		}
		return err
	}
	metrics.RecordGiftTransition(string(gift.StatusExpired))

	s.log.WithField("gift_id", g.ID).Info("gift expired")
	return nil
}

// RedriveGrant retries the entitlement grant for a claimed gift whose grant
// was never recorded, using the original payment transaction id.
func (s *Service) RedriveGrant(ctx context.Context, g gift.Gift) error {
	if g.Status != gift.StatusClaimed || g.EntitlementGrantedAt != nil {
		return nil
	}

	if err := s.entitlement.Grant(ctx, g.RecipientID, g.ItemID, g.PaymentTxID); err != nil {
		return depErr(err, "re-drive grant for gift %s", g.ID)
	}
	if err := s.store.MarkEntitlementGranted(ctx, g.ID, time.Now().UTC()); err != nil {
		return err
	}

	s.log.WithField("gift_id", g.ID).
		WithField("recipient_id", g.RecipientID).
		Info("entitlement grant re-driven")
	return nil
}

// Get retrieves a single gift by identifier.
func (s *Service) Get(ctx context.Context, giftID string) (gift.Gift, error) {
	return s.store.GetGift(ctx, giftID)
}

// ListBySender returns gifts sent by a user.
func (s *Service) ListBySender(ctx context.Context, senderID string) ([]gift.Gift, error) {
	return s.store.ListGiftsBySender(ctx, senderID)
}

// ListByRecipient returns gifts addressed to a user.
func (s *Service) ListByRecipient(ctx context.Context, recipientID string) ([]gift.Gift, error) {
	return s.store.ListGiftsByRecipient(ctx, recipientID)
}

func (s *Service) requireUser(ctx context.Context, userID, role string) error {
	exists, err := s.identity.UserExists(ctx, userID)
	if err != nil {
		return depErr(err, "identity lookup for %s %s", role, userID)
	}
	if !exists {
		return apperr.NotFoundf("%s %s not found", role, userID)
	}
	return nil
}

// notify dispatches a best-effort notification after the surrounding state
// change has committed. Failures are counted and logged, never propagated.
func (s *Service) notify(userID, title, body string) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.Send(ctx, gateway.Notification{UserID: userID, Title: title, Body: body}); err != nil {
			metrics.RecordNotificationFailure()
			s.log.WithError(err).
				WithField("user_id", userID).
				Warn("notification delivery failed")
		}
	}()
}

func depErr(err error, format string, args ...interface{}) error {
	if apperr.KindOf(err) != "" {
		return err
	}
	return apperr.Wrap(apperr.KindDependency, err, format, args...)
}

func payErr(err error, format string, args ...interface{}) error {
	if apperr.IsKind(err, apperr.KindPayment) {
		return err
	}
	return apperr.Wrap(apperr.KindPayment, err, format, args...)
}
