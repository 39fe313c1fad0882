// Package httpapi exposes the gift and pre-order workflows over REST.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	app "github.com/questline/storefront/internal/app"
	"github.com/questline/storefront/internal/app/apperr"
	"github.com/questline/storefront/internal/app/metrics"
	preordersvc "github.com/questline/storefront/internal/app/services/preorder"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the core REST API, wrapped with the
// metrics middleware.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/gifts", h.gifts)
	mux.HandleFunc("/gifts/", h.giftResources)
	mux.HandleFunc("/preorders", h.preOrders)
	mux.HandleFunc("/preorders/", h.preOrderResources)
	mux.HandleFunc("/healthz", h.healthz)
	mux.Handle("/metrics", metrics.Handler())
	return withMetrics(mux)
}

func (h *handler) gifts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			ItemID      string `json:"item_id"`
			SenderID    string `json:"sender_id"`
			RecipientID string `json:"recipient_id"`
			Message     string `json:"message"`
			Amount      string `json:"amount"`
			Currency    string `json:"currency"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		g, err := h.app.Gifts.Send(r.Context(), payload.ItemID, payload.SenderID,
			payload.RecipientID, payload.Message, payload.Amount, payload.Currency)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, g)

	case http.MethodGet:
		sender := strings.TrimSpace(r.URL.Query().Get("sender"))
		recipient := strings.TrimSpace(r.URL.Query().Get("recipient"))
		switch {
		case sender != "":
			gifts, err := h.app.Gifts.ListBySender(r.Context(), sender)
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, gifts)
		case recipient != "":
			gifts, err := h.app.Gifts.ListByRecipient(r.Context(), recipient)
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, gifts)
		default:
			writeError(w, http.StatusBadRequest, apperr.Validationf("sender or recipient query parameter is required"))
		}

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) giftResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/gifts"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	giftID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g, err := h.app.Gifts.Get(r.Context(), giftID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, g)
		return
	}

	if len(parts) != 2 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "claim":
		var payload struct {
			RecipientID string `json:"recipient_id"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		g, err := h.app.Gifts.Claim(r.Context(), giftID, payload.RecipientID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, g)

	case "cancel":
		var payload struct {
			SenderID string `json:"sender_id"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := h.app.Gifts.Cancel(r.Context(), giftID, payload.SenderID); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) preOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			ItemID       string `json:"item_id"`
			UserID       string `json:"user_id"`
			Amount       string `json:"amount"`
			Currency     string `json:"currency"`
			BonusContent string `json:"bonus_content"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		p, err := h.app.PreOrders.Create(r.Context(), preordersvc.CreateRequest{
			ItemID:       payload.ItemID,
			UserID:       payload.UserID,
			Amount:       payload.Amount,
			Currency:     payload.Currency,
			BonusContent: payload.BonusContent,
		})
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, p)

	case http.MethodGet:
		userID := strings.TrimSpace(r.URL.Query().Get("user"))
		if userID == "" {
			writeError(w, http.StatusBadRequest, apperr.Validationf("user query parameter is required"))
			return
		}
		orders, err := h.app.PreOrders.ListByUser(r.Context(), userID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, orders)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) preOrderResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/preorders"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	preOrderID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p, err := h.app.PreOrders.Get(r.Context(), preOrderID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}

	if len(parts) != 2 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "cancel":
		var payload struct {
			UserID string `json:"user_id"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := h.app.PreOrders.Cancel(r.Context(), preOrderID, payload.UserID); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "complete":
		if err := h.app.PreOrders.Complete(r.Context(), preOrderID); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindPayment:
		return http.StatusPaymentRequired
	case apperr.KindDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
