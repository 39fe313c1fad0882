// Package preorder implements the pre-order workflow: create, cancel and the
// completion sweep that fulfils pre-orders once their item is released.
package preorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/questline/storefront/internal/app/apperr"
	"github.com/questline/storefront/internal/app/domain/money"
	"github.com/questline/storefront/internal/app/domain/preorder"
	"github.com/questline/storefront/internal/app/gateway"
	"github.com/questline/storefront/internal/app/metrics"
	"github.com/questline/storefront/internal/app/storage"
	"github.com/questline/storefront/pkg/logger"
)

// Service manages the pre-order lifecycle.
type Service struct {
	store       storage.PreOrderStore
	catalog     gateway.Catalog
	identity    gateway.Identity
	entitlement gateway.Entitlement
	payment     gateway.Payment
	notifier    gateway.Notifier
	log         *logger.Logger

	notifyTimeout time.Duration
}

// New constructs a pre-order service.
func New(store storage.PreOrderStore, catalog gateway.Catalog, identity gateway.Identity,
	entitlement gateway.Entitlement, payment gateway.Payment, notifier gateway.Notifier,
	log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("preorder")
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

// CreateRequest carries the inputs for Create.
type CreateRequest struct {
	ItemID       string
	UserID       string
	Amount       string
	Currency     string
	BonusContent string
}

// Create validates the request, captures payment and persists a CONFIRMED
// pre-order. The store rejects a second active pre-order for the same
// (user, item) pair atomically; the ownership and duplicate checks here only
// produce cleaner errors before money moves.
func (s *Service) Create(ctx context.Context, req CreateRequest) (preorder.PreOrder, error) {
	req.ItemID = strings.TrimSpace(req.ItemID)
	req.UserID = strings.TrimSpace(req.UserID)

	if req.ItemID == "" {
		return preorder.PreOrder{}, apperr.Validationf("item_id is required")
	}
	if req.UserID == "" {
		return preorder.PreOrder{}, apperr.Validationf("user_id is required")
	}
	price, err := money.Parse(req.Amount, req.Currency)
	if err != nil {
		return preorder.PreOrder{}, err
	}
	if !price.Positive() {
		return preorder.PreOrder{}, apperr.Validationf("amount must be positive")
	}

	item, err := s.catalog.GetItem(ctx, req.ItemID)
	if err != nil {
		return preorder.PreOrder{}, err
	}
	now := time.Now().UTC()
	if !item.PreOrderable(now) {
		return preorder.PreOrder{}, apperr.Conflictf("item %s is not open for pre-order", req.ItemID)
	}

	exists, err := s.identity.UserExists(ctx, req.UserID)
	if err != nil {
		return preorder.PreOrder{}, depErr(err, "identity lookup for user %s", req.UserID)
	}
	if !exists {
		return preorder.PreOrder{}, apperr.NotFoundf("user %s not found", req.UserID)
	}

	owns, err := s.entitlement.UserOwns(ctx, req.UserID, req.ItemID)
	if err != nil {
		return preorder.PreOrder{}, depErr(err, "ownership lookup for user %s", req.UserID)
	}
	if owns {
		return preorder.PreOrder{}, apperr.Conflictf("user %s already owns item %s", req.UserID, req.ItemID)
	}

	// Pre-check the duplicate so a repeat request fails before capture. The
	// insert below still enforces uniqueness atomically.
	existing, err := s.store.ListPreOrdersByUser(ctx, req.UserID)
	if err != nil {
		return preorder.PreOrder{}, err
	}
	for _, p := range existing {
		if p.ItemID == req.ItemID && p.Status == preorder.StatusConfirmed {
			return preorder.PreOrder{}, apperr.Conflictf("user %s already has an active pre-order for item %s", req.UserID, req.ItemID)
		}
	}

	result, err := s.payment.Capture(ctx, gateway.CaptureRequest{
		UserID:      req.UserID,
		ItemID:      req.ItemID,
		Amount:      price,
		Description: fmt.Sprintf("Pre-order: %s", item.Title),
	})
	if err != nil {
		metrics.RecordCapture("error")
		return preorder.PreOrder{}, payErr(err, "payment capture for user %s", req.UserID)
	}
	if result.Status != gateway.CaptureSuccess {
		metrics.RecordCapture("failed")
		return preorder.PreOrder{}, apperr.Paymentf("payment capture failed: %s", result.ErrorMessage)
	}
	metrics.RecordCapture("success")

	p := preorder.PreOrder{
		ItemID:              req.ItemID,
		UserID:              req.UserID,
		PaidAmount:          price,
		BonusContent:        req.BonusContent,
		PaymentTxID:         result.TransactionID,
		PreOrderedAt:        now,
		EstimatedDeliveryAt: item.ReleaseAt,
		Status:              preorder.StatusConfirmed,
	}
	p, err = s.store.CreatePreOrder(ctx, p)
	if err != nil {
		return preorder.PreOrder{}, err
	}
	metrics.RecordPreOrderTransition(string(preorder.StatusConfirmed))

	s.log.WithField("pre_order_id", p.ID).
		WithField("item_id", req.ItemID).
		WithField("user_id", req.UserID).
		Info("pre-order confirmed")

	s.notify(req.UserID, "Pre-order confirmed",
		fmt.Sprintf("Your pre-order for %s is confirmed. Expected delivery %s.",
			item.Title, item.ReleaseAt.Format("2006-01-02")))
	return p, nil
}

// Cancel transitions a pre-order to CANCELLED for its owner while the cancel
// window is open. At or after the estimated delivery the window is closed
// even if the pre-order is still CONFIRMED.
func (s *Service) Cancel(ctx context.Context, preOrderID, userID string) error {
	preOrderID = strings.TrimSpace(preOrderID)
	userID = strings.TrimSpace(userID)
	if preOrderID == "" || userID == "" {
		return apperr.Validationf("pre_order_id and user_id are required")
	}

	p, err := s.store.GetPreOrder(ctx, preOrderID)
	if err != nil {
		return err
	}
	if p.UserID != userID {
		return apperr.Authorizationf("pre-order %s does not belong to %s", preOrderID, userID)
	}
	if p.Status != preorder.StatusConfirmed {
		return apperr.Conflictf("pre-order %s is %s and cannot be cancelled", preOrderID, p.Status)
	}
	if !p.Cancellable(time.Now().UTC()) {
		return apperr.Conflictf("pre-order %s can no longer be cancelled: delivery window reached", preOrderID)
	}

	if _, err := s.store.TransitionPreOrder(ctx, preOrderID, preorder.StatusConfirmed, preorder.StatusCancelled, nil); err != nil {
		return err
	}
	metrics.RecordPreOrderTransition(string(preorder.StatusCancelled))

	s.log.WithField("pre_order_id", preOrderID).
		WithField("user_id", userID).
		Info("pre-order cancelled")
	return nil
}

// Complete transitions a confirmed pre-order to COMPLETED once its item has
// actually been released. The release date is re-read from the catalog so a
// moved date is honoured over the stored estimate.
func (s *Service) Complete(ctx context.Context, preOrderID string) error {
	preOrderID = strings.TrimSpace(preOrderID)
	if preOrderID == "" {
		return apperr.Validationf("pre_order_id is required")
	}

	p, err := s.store.GetPreOrder(ctx, preOrderID)
	if err != nil {
		return err
	}
	if p.Status != preorder.StatusConfirmed {
		return apperr.Conflictf("pre-order %s is %s and cannot be completed", preOrderID, p.Status)
	}

	item, err := s.catalog.GetItem(ctx, p.ItemID)
	if err != nil {
		return err
	}
	if !item.Released(time.Now().UTC()) {
		return apperr.Conflictf("item %s is not released yet", p.ItemID)
	}

	if _, err := s.store.TransitionPreOrder(ctx, preOrderID, preorder.StatusConfirmed, preorder.StatusCompleted, nil); err != nil {
		return err
	}
	metrics.RecordPreOrderTransition(string(preorder.StatusCompleted))

	s.log.WithField("pre_order_id", preOrderID).
		WithField("item_id", p.ItemID).
		Info("pre-order completed")

	s.notify(p.UserID, "Your pre-order is here",
		fmt.Sprintf("%s has been released and is now available to you.", item.Title))
	return nil
}

// Get retrieves a single pre-order by identifier.
func (s *Service) Get(ctx context.Context, preOrderID string) (preorder.PreOrder, error) {
	return s.store.GetPreOrder(ctx, preOrderID)
}

// ListByUser returns a user's pre-orders.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]preorder.PreOrder, error) {
	return s.store.ListPreOrdersByUser(ctx, userID)
}

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
