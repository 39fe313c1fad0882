package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/questline/storefront/internal/app/apperr"
	"github.com/questline/storefront/internal/app/domain/catalog"
	"github.com/questline/storefront/internal/app/domain/money"
	"github.com/questline/storefront/pkg/logger"
)

// HTTPCatalog resolves items from a catalog service over HTTP.
type HTTPCatalog struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

// NewHTTPCatalog constructs a catalog gateway for the given endpoint.
func NewHTTPCatalog(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPCatalog, error) {
	parsed, client, err := prepare(client, endpoint)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDefault("catalog-gateway")
	}
	return &HTTPCatalog{client: client, endpoint: parsed, apiKey: strings.TrimSpace(apiKey), log: log}, nil
}

func (c *HTTPCatalog) GetItem(ctx context.Context, itemID string) (catalog.Item, error) {
	var payload struct {
		ID               string    `json:"id"`
		Title            string    `json:"title"`
		Price            string    `json:"price"`
		Currency         string    `json:"currency"`
		ReleaseAt        time.Time `json:"release_at"`
		PreOrderEligible bool      `json:"pre_order_eligible"`
	}

	status, err := getJSON(ctx, c.client, c.endpoint, "/items/"+url.PathEscape(itemID), nil, c.apiKey, &payload)
	if err != nil {
		return catalog.Item{}, apperr.Wrap(apperr.KindDependency, err, "catalog lookup for item %s", itemID)
	}
	if status == http.StatusNotFound {
		return catalog.Item{}, apperr.NotFoundf("item %s not found", itemID)
	}
	if status != http.StatusOK {
		return catalog.Item{}, apperr.Dependencyf("catalog returned status %d for item %s", status, itemID)
	}

	price, err := money.Parse(payload.Price, payload.Currency)
	if err != nil {
		return catalog.Item{}, apperr.Wrap(apperr.KindDependency, err, "catalog price for item %s", itemID)
	}
	return catalog.Item{
		ID:               payload.ID,
		Title:            payload.Title,
		Price:            price,
		ReleaseAt:        payload.ReleaseAt,
		PreOrderEligible: payload.PreOrderEligible,
	}, nil
}

// HTTPIdentity answers user queries from an identity service over HTTP.
type HTTPIdentity struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

// NewHTTPIdentity constructs an identity gateway for the given endpoint.
func NewHTTPIdentity(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPIdentity, error) {
	parsed, client, err := prepare(client, endpoint)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDefault("identity-gateway")
	}
	return &HTTPIdentity{client: client, endpoint: parsed, apiKey: strings.TrimSpace(apiKey), log: log}, nil
}

func (i *HTTPIdentity) UserExists(ctx context.Context, userID string) (bool, error) {
	status, err := getJSON(ctx, i.client, i.endpoint, "/users/"+url.PathEscape(userID), nil, i.apiKey, nil)
	if err != nil {
		return false, apperr.Wrap(apperr.KindDependency, err, "identity lookup for user %s", userID)
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, apperr.Dependencyf("identity returned status %d for user %s", status, userID)
}

func (i *HTTPIdentity) AreConnected(ctx context.Context, userID, otherID string) (bool, error) {
	var payload struct {
		Connected bool `json:"connected"`
	}
	query := url.Values{"user": {userID}, "other": {otherID}}
	status, err := getJSON(ctx, i.client, i.endpoint, "/connections", query, i.apiKey, &payload)
	if err != nil {
		return false, apperr.Wrap(apperr.KindDependency, err, "connection lookup for %s and %s", userID, otherID)
	}
	if status != http.StatusOK {
		return false, apperr.Dependencyf("identity returned status %d for connection lookup", status)
	}
	return payload.Connected, nil
}

// HTTPEntitlement queries and records ownership over HTTP.
type HTTPEntitlement struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

// NewHTTPEntitlement constructs an entitlement gateway for the given endpoint.
func NewHTTPEntitlement(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPEntitlement, error) {
	parsed, client, err := prepare(client, endpoint)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDefault("entitlement-gateway")
	}
	return &HTTPEntitlement{client: client, endpoint: parsed, apiKey: strings.TrimSpace(apiKey), log: log}, nil
}

func (e *HTTPEntitlement) UserOwns(ctx context.Context, userID, itemID string) (bool, error) {
	var payload struct {
		Owns bool `json:"owns"`
	}
	query := url.Values{"user": {userID}, "item": {itemID}}
	status, err := getJSON(ctx, e.client, e.endpoint, "/entitlements", query, e.apiKey, &payload)
	if err != nil {
		return false, apperr.Wrap(apperr.KindDependency, err, "ownership lookup for user %s item %s", userID, itemID)
	}
	if status != http.StatusOK {
		return false, apperr.Dependencyf("entitlement returned status %d for ownership lookup", status)
	}
	return payload.Owns, nil
}

func (e *HTTPEntitlement) Grant(ctx context.Context, userID, itemID, sourceTxID string) error {
	body := map[string]string{
		"user_id":               userID,
		"item_id":               itemID,
		"source_transaction_id": sourceTxID,
	}
	status, err := postJSON(ctx, e.client, e.endpoint, "/entitlements", e.apiKey, body, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, err, "grant item %s to user %s", itemID, userID)
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusNoContent {
		return apperr.Dependencyf("entitlement returned status %d for grant", status)
	}
	return nil
}

// HTTPPayment captures and refunds charges over HTTP. Transport errors and
// timeouts on capture are reported as payment failures, never as success.
type HTTPPayment struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

// NewHTTPPayment constructs a payment gateway for the given endpoint.
func NewHTTPPayment(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPPayment, error) {
	parsed, client, err := prepare(client, endpoint)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDefault("payment-gateway")
	}
	return &HTTPPayment{client: client, endpoint: parsed, apiKey: strings.TrimSpace(apiKey), log: log}, nil
}

func (p *HTTPPayment) Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	body := map[string]string{
		"user_id":     req.UserID,
		"item_id":     req.ItemID,
		"amount":      req.Amount.Amount.StringFixed(2),
		"currency":    req.Amount.Currency,
		"description": req.Description,
	}
	var payload struct {
		Status        string `json:"status"`
		TransactionID string `json:"transaction_id"`
		ErrorMessage  string `json:"error_message"`
	}
	status, err := postJSON(ctx, p.client, p.endpoint, "/captures", p.apiKey, body, &payload)
	if err != nil {
		return CaptureResult{}, apperr.Wrap(apperr.KindPayment, err, "capture %s for user %s", req.Amount, req.UserID)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return CaptureResult{}, apperr.Paymentf("payment gateway returned status %d for capture", status)
	}

	result := CaptureResult{
		Status:        CaptureStatus(strings.ToUpper(strings.TrimSpace(payload.Status))),
		TransactionID: payload.TransactionID,
		ErrorMessage:  payload.ErrorMessage,
	}
	if result.Status != CaptureSuccess {
		result.Status = CaptureFailed
	}
	return result, nil
}

func (p *HTTPPayment) Refund(ctx context.Context, transactionID string) error {
	body := map[string]string{"transaction_id": transactionID}
	status, err := postJSON(ctx, p.client, p.endpoint, "/refunds", p.apiKey, body, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, err, "refund transaction %s", transactionID)
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusNoContent {
		return apperr.Dependencyf("payment gateway returned status %d for refund", status)
	}
	return nil
}

func (p *HTTPPayment) Status(ctx context.Context, transactionID string) (PaymentState, error) {
	var payload struct {
		Status   string `json:"status"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	status, err := getJSON(ctx, p.client, p.endpoint, "/transactions/"+url.PathEscape(transactionID), nil, p.apiKey, &payload)
	if err != nil {
		return PaymentState{}, apperr.Wrap(apperr.KindDependency, err, "transaction status %s", transactionID)
	}
	if status == http.StatusNotFound {
		return PaymentState{}, apperr.NotFoundf("transaction %s not found", transactionID)
	}
	if status != http.StatusOK {
		return PaymentState{}, apperr.Dependencyf("payment gateway returned status %d for transaction status", status)
	}

	amount, err := money.Parse(payload.Amount, payload.Currency)
	if err != nil {
		return PaymentState{}, apperr.Wrap(apperr.KindDependency, err, "transaction %s amount", transactionID)
	}
	return PaymentState{Status: payload.Status, Amount: amount}, nil
}

// HTTPNotifier delivers notifications over HTTP.
type HTTPNotifier struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

// NewHTTPNotifier constructs a notifier for the given endpoint.
func NewHTTPNotifier(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPNotifier, error) {
	parsed, client, err := prepare(client, endpoint)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDefault("notification-gateway")
	}
	return &HTTPNotifier{client: client, endpoint: parsed, apiKey: strings.TrimSpace(apiKey), log: log}, nil
}

func (n *HTTPNotifier) Send(ctx context.Context, note Notification) error {
	body := map[string]string{
		"user_id": note.UserID,
		"title":   note.Title,
		"body":    note.Body,
	}
	status, err := postJSON(ctx, n.client, n.endpoint, "/notifications", n.apiKey, body, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, err, "notify user %s", note.UserID)
	}
	if status != http.StatusOK && status != http.StatusAccepted && status != http.StatusNoContent {
		return apperr.Dependencyf("notification service returned status %d", status)
	}
	return nil
}

// Helpers ---------------------------------------------------------------------

func prepare(client *http.Client, endpoint string) (*url.URL, *http.Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, nil, fmt.Errorf("gateway endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("parse gateway endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return parsed, client, nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint *url.URL, path string, query url.Values, apiKey string, dst interface{}) (int, error) {
	requestURL := *endpoint
	requestURL.Path = strings.TrimSuffix(requestURL.Path, "/") + path
	if query != nil {
		requestURL.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if dst != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func postJSON(ctx context.Context, client *http.Client, endpoint *url.URL, path, apiKey string, body, dst interface{}) (int, error) {
	requestURL := *endpoint
	requestURL.Path = strings.TrimSuffix(requestURL.Path, "/") + path

	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL.String(), bytes.NewReader(encoded))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if dst != nil && (resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated) {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
