package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voicelane/backend/internal/users"
)

// UserResolver maps the path's telegram id to a user record.
type UserResolver interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*users.User, error)
}

type CreatePaymentRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Amount     string `json:"amount"`
	Method     string `json:"method"`
}

type ConfirmPaymentRequest struct {
	Status string `json:"status"`
}

type PaymentResponse struct {
	ID                string  `json:"id"`
	Amount            string  `json:"amount"`
	Method            string  `json:"method"`
	Status            string  `json:"status"`
	ExternalPaymentID *string `json:"external_payment_id,omitempty"`
	PaymentURL        *string `json:"payment_url,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

type Handler struct {
	svc   Service
	users UserResolver
	log   *slog.Logger
}

func NewHandler(svc Service, userResolver UserResolver, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, users: userResolver, log: log}
}

// Create registers a payment and initiates it with the provider.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.Sign() <= 0 {
		http.Error(w, `{"error":"invalid amount"}`, http.StatusBadRequest)
		return
	}
	if req.TelegramID <= 0 {
		http.Error(w, `{"error":"telegram_id is required"}`, http.StatusBadRequest)
		return
	}

	payment, err := h.svc.Create(r.Context(), req.TelegramID, amount, Method(req.Method))
	if err != nil {
		switch {
		case errors.Is(err, errUnknownMethod):
			http.Error(w, `{"error":"unknown payment method"}`, http.StatusBadRequest)
		case errors.Is(err, ErrProvider):
			h.log.Warn("payment provider unavailable", "telegram_id", req.TelegramID, "method", req.Method, "error", err)
			http.Error(w, `{"error":"payment provider unavailable, try again later"}`, http.StatusBadGateway)
		default:
			h.log.Error("create payment", "telegram_id", req.TelegramID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

// Confirm applies a provider confirmation: the confirmPayment entry point.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid payment id"}`, http.StatusBadRequest)
		return
	}
	var req ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	status := Status(req.Status)
	switch status {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusPending:
	default:
		http.Error(w, `{"error":"unknown payment status"}`, http.StatusBadRequest)
		return
	}

	payment, err := h.svc.Confirm(r.Context(), id, status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"payment not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("confirm payment", "payment_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// Get returns one payment by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid payment id"}`, http.StatusBadRequest)
		return
	}
	payment, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"payment not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("get payment", "payment_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// ListForUser returns the user's recent payments, newest first.
func (h *Handler) ListForUser(w http.ResponseWriter, r *http.Request) {
	telegramID, err := strconv.ParseInt(r.PathValue("telegram_id"), 10, 64)
	if err != nil || telegramID <= 0 {
		http.Error(w, `{"error":"invalid telegram id"}`, http.StatusBadRequest)
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	user, err := h.users.GetByTelegramID(r.Context(), telegramID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("resolve user", "telegram_id", telegramID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	list, err := h.svc.ListForUser(r.Context(), user.ID, limit)
	if err != nil {
		h.log.Error("list payments", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	out := make([]PaymentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func toPaymentResponse(p *Payment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID.String(),
		Amount:            p.Amount.StringFixed(2),
		Method:            string(p.Method),
		Status:            string(p.Status),
		ExternalPaymentID: p.ExternalPaymentID,
		PaymentURL:        p.PaymentURL,
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
