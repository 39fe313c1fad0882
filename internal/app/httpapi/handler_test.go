package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	app "github.com/questline/storefront/internal/app"
	"github.com/questline/storefront/internal/app/domain/catalog"
	"github.com/questline/storefront/internal/app/domain/money"
	"github.com/questline/storefront/pkg/testutil"
)

type env struct {
	handler     http.Handler
	catalog     *testutil.MockCatalog
	entitlement *testutil.MockEntitlement
	payment     *testutil.MockPayment
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		catalog:     testutil.NewMockCatalog(),
		entitlement: testutil.NewMockEntitlement(),
		payment:     testutil.NewMockPayment(),
	}
	e.catalog.Put(catalog.Item{
		ID:               "item-1",
		Title:            "Starfall",
		Price:            money.MustParse("29.99", "USD"),
		ReleaseAt:        time.Now().UTC().Add(14 * 24 * time.Hour),
		PreOrderEligible: true,
	})

	application, err := app.New(app.Stores{}, app.Gateways{
		Catalog:     e.catalog,
		Identity:    testutil.NewMockIdentity("alice", "bob"),
		Entitlement: e.entitlement,
		Payment:     e.payment,
		Notifier:    testutil.NewMockNotifier(),
	}, app.Options{}, nil)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	e.handler = NewHandler(application)
	return e
}

func (e *env) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *env) sendGift(t *testing.T) map[string]interface{} {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/gifts", map[string]string{
		"item_id":      "item-1",
		"sender_id":    "alice",
		"recipient_id": "bob",
		"message":      "enjoy!",
		"amount":       "29.99",
		"currency":     "USD",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /gifts = %d: %s", rec.Code, rec.Body.String())
	}
	var g map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &g); err != nil {
		t.Fatalf("decode gift: %v", err)
	}
	return g
}

func TestGiftEndpoints(t *testing.T) {
	e := newEnv(t)
	g := e.sendGift(t)
	giftID, _ := g["ID"].(string)
	if giftID == "" {
		t.Fatalf("gift response missing id: %v", g)
	}

	rec := e.do(t, http.MethodGet, "/gifts/"+giftID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /gifts/{id} = %d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/gifts?sender=alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /gifts?sender = %d", rec.Code)
	}
	var list []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("sender list = %s (err %v)", rec.Body.String(), err)
	}

	rec = e.do(t, http.MethodPost, "/gifts/"+giftID+"/claim", map[string]string{"recipient_id": "bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("claim = %d: %s", rec.Code, rec.Body.String())
	}

	// Already claimed.
	rec = e.do(t, http.MethodPost, "/gifts/"+giftID+"/claim", map[string]string{"recipient_id": "bob"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second claim = %d, want 409", rec.Code)
	}
}

func TestGiftErrorMapping(t *testing.T) {
	e := newEnv(t)

	cases := []struct {
		name string
		body map[string]string
		prep func()
		want int
	}{
		{
			name: "validation",
			body: map[string]string{"item_id": "item-1", "sender_id": "alice", "recipient_id": "alice", "amount": "29.99", "currency": "USD"},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown item",
			body: map[string]string{"item_id": "nope", "sender_id": "alice", "recipient_id": "bob", "amount": "29.99", "currency": "USD"},
			want: http.StatusNotFound,
		},
		{
			name: "recipient owns",
			body: map[string]string{"item_id": "item-1", "sender_id": "alice", "recipient_id": "bob", "amount": "29.99", "currency": "USD"},
			prep: func() { e.entitlement.SetOwned("bob", "item-1") },
			want: http.StatusConflict,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.prep != nil {
				tc.prep()
			}
			rec := e.do(t, http.MethodPost, "/gifts", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestGiftCaptureDeclined(t *testing.T) {
	e := newEnv(t)
	e.payment.Result = testutil.DeclinedCapture("insufficient funds")

	rec := e.do(t, http.MethodPost, "/gifts", map[string]string{
		"item_id": "item-1", "sender_id": "alice", "recipient_id": "bob",
		"amount": "29.99", "currency": "USD",
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402: %s", rec.Code, rec.Body.String())
	}
}

func TestGiftCancelAuthorization(t *testing.T) {
	e := newEnv(t)
	g := e.sendGift(t)
	giftID := g["ID"].(string)

	rec := e.do(t, http.MethodPost, "/gifts/"+giftID+"/cancel", map[string]string{"sender_id": "bob"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cancel by stranger = %d, want 403", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/gifts/"+giftID+"/cancel", map[string]string{"sender_id": "alice"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel = %d, want 204: %s", rec.Code, rec.Body.String())
	}
}

func TestPreOrderEndpoints(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/preorders", map[string]string{
		"item_id": "item-1", "user_id": "alice", "amount": "29.99", "currency": "USD",
		"bonus_content": "artbook",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /preorders = %d: %s", rec.Code, rec.Body.String())
	}
	var p map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode pre-order: %v", err)
	}
	preOrderID := p["ID"].(string)

	// One active pre-order per user and item.
	rec = e.do(t, http.MethodPost, "/preorders", map[string]string{
		"item_id": "item-1", "user_id": "alice", "amount": "29.99", "currency": "USD",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate pre-order = %d, want 409", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/preorders?user=alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /preorders?user = %d", rec.Code)
	}

	// Item is unreleased, so completion conflicts.
	rec = e.do(t, http.MethodPost, "/preorders/"+preOrderID+"/complete", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("early complete = %d, want 409", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/preorders/"+preOrderID+"/cancel", map[string]string{"user_id": "alice"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel = %d, want 204: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/preorders/"+preOrderID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /preorders/{id} = %d", rec.Code)
	}
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/gifts/unknown-id", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET unknown gift = %d, want 404", rec.Code)
	}

	rec = e.do(t, http.MethodDelete, "/gifts", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /gifts = %d, want 405", rec.Code)
	}
}
