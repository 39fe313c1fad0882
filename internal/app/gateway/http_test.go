package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/questline/storefront/internal/app/apperr"
	"github.com/questline/storefront/internal/app/domain/money"
)

func TestHTTPCatalogGetItem(t *testing.T) {
	release := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/game-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer key-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 "game-1",
			"title":              "Starfall",
			"price":              "59.99",
			"currency":           "USD",
			"release_at":         release,
			"pre_order_eligible": true,
		})
	}))
	defer server.Close()

	gw, err := NewHTTPCatalog(server.Client(), server.URL, "key-123", nil)
	if err != nil {
		t.Fatalf("new catalog gateway: %v", err)
	}

	item, err := gw.GetItem(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Title != "Starfall" || !item.PreOrderEligible {
		t.Fatalf("unexpected item: %#v", item)
	}
	if item.Price.String() != "59.99 USD" {
		t.Fatalf("unexpected price: %s", item.Price)
	}
	if !item.ReleaseAt.Equal(release) {
		t.Fatalf("unexpected release date: %s", item.ReleaseAt)
	}

	if _, err := gw.GetItem(context.Background(), "missing"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found for missing item, got %v", err)
	}
}

func TestHTTPCatalogOutageIsDependencyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	gw, err := NewHTTPCatalog(server.Client(), server.URL, "", nil)
	if err != nil {
		t.Fatalf("new catalog gateway: %v", err)
	}

	_, err = gw.GetItem(context.Background(), "game-1")
	if !apperr.IsKind(err, apperr.KindDependency) {
		t.Fatalf("a 500 must surface as dependency, not not-found: %v", err)
	}
}

func TestHTTPIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/alice":
			w.WriteHeader(http.StatusOK)
		case "/users/ghost":
			w.WriteHeader(http.StatusNotFound)
		case "/connections":
			connected := r.URL.Query().Get("user") == "alice" && r.URL.Query().Get("other") == "bob"
			_ = json.NewEncoder(w).Encode(map[string]bool{"connected": connected})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	gw, err := NewHTTPIdentity(server.Client(), server.URL, "", nil)
	if err != nil {
		t.Fatalf("new identity gateway: %v", err)
	}

	exists, err := gw.UserExists(context.Background(), "alice")
	if err != nil || !exists {
		t.Fatalf("expected alice to exist: %v %v", exists, err)
	}
	exists, err = gw.UserExists(context.Background(), "ghost")
	if err != nil || exists {
		t.Fatalf("expected ghost to be absent without error: %v %v", exists, err)
	}

	connected, err := gw.AreConnected(context.Background(), "alice", "bob")
	if err != nil || !connected {
		t.Fatalf("expected alice and bob connected: %v %v", connected, err)
	}
	connected, err = gw.AreConnected(context.Background(), "alice", "carol")
	if err != nil || connected {
		t.Fatalf("expected alice and carol not connected: %v %v", connected, err)
	}
}

func TestHTTPPaymentCapture(t *testing.T) {
	var captured map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/captures" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		if captured["user_id"] == "broke" {
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":        "FAILED",
				"error_message": "insufficient funds",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":         "SUCCESS",
			"transaction_id": "tx-99",
		})
	}))
	defer server.Close()

	gw, err := NewHTTPPayment(server.Client(), server.URL, "", nil)
	if err != nil {
		t.Fatalf("new payment gateway: %v", err)
	}

	result, err := gw.Capture(context.Background(), CaptureRequest{
		UserID:      "alice",
		ItemID:      "game-1",
		Amount:      money.MustParse("29.99", "USD"),
		Description: "gift of game-1",
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if result.Status != CaptureSuccess || result.TransactionID != "tx-99" {
		t.Fatalf("unexpected capture result: %#v", result)
	}
	if captured["amount"] != "29.99" || captured["currency"] != "USD" {
		t.Fatalf("unexpected capture payload: %#v", captured)
	}

	result, err = gw.Capture(context.Background(), CaptureRequest{
		UserID: "broke",
		ItemID: "game-1",
		Amount: money.MustParse("29.99", "USD"),
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if result.Status != CaptureFailed || result.ErrorMessage != "insufficient funds" {
		t.Fatalf("unexpected declined result: %#v", result)
	}
}

func TestHTTPPaymentCaptureTimeoutIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := &http.Client{Timeout: 20 * time.Millisecond}
	gw, err := NewHTTPPayment(client, server.URL, "", nil)
	if err != nil {
		t.Fatalf("new payment gateway: %v", err)
	}

	_, err = gw.Capture(context.Background(), CaptureRequest{
		UserID: "alice",
		ItemID: "game-1",
		Amount: money.MustParse("29.99", "USD"),
	})
	if !apperr.IsKind(err, apperr.KindPayment) {
		t.Fatalf("capture timeout must be a payment failure, got %v", err)
	}
}

func TestHTTPNotifier(t *testing.T) {
	var got Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		got = Notification{UserID: payload["user_id"], Title: payload["title"], Body: payload["body"]}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	gw, err := NewHTTPNotifier(server.Client(), server.URL, "", nil)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	if err := gw.Send(context.Background(), Notification{UserID: "bob", Title: "Gift", Body: "You received a gift"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.UserID != "bob" || got.Title != "Gift" {
		t.Fatalf("unexpected delivery: %#v", got)
	}
}
