package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/voicelane/backend/internal/users"
)

// UserResolver maps the path's telegram id to a user record.
type UserResolver interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*users.User, error)
}

type BalanceResponse struct {
	TelegramID int64                 `json:"telegram_id"`
	Balance    string                `json:"balance"`
	History    []TransactionResponse `json:"history"`
	Statistics StatisticsResponse    `json:"statistics"`
}

type TransactionResponse struct {
	Amount        string  `json:"amount"`
	Type          string  `json:"type"`
	Description   string  `json:"description"`
	PaymentMethod *string `json:"payment_method,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

type StatisticsResponse struct {
	TotalCredited string `json:"total_credited"`
	TotalDebited  string `json:"total_debited"`
	CreditCount   int64  `json:"credit_count"`
	DebitCount    int64  `json:"debit_count"`
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

// GetBalance returns the balance, recent history and log aggregates.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	telegramID, err := strconv.ParseInt(r.PathValue("telegram_id"), 10, 64)
	if err != nil || telegramID <= 0 {
		http.Error(w, `{"error":"invalid telegram id"}`, http.StatusBadRequest)
		return
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

	history, err := h.svc.History(r.Context(), user.ID, 10)
	if err != nil {
		h.log.Error("balance history", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	stats, err := h.svc.Statistics(r.Context(), user.ID)
	if err != nil {
		h.log.Error("balance statistics", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	resp := BalanceResponse{
		TelegramID: telegramID,
		Balance:    stats.CurrentBalance.StringFixed(2),
		History:    make([]TransactionResponse, 0, len(history)),
		Statistics: StatisticsResponse{
			TotalCredited: stats.TotalCredited.StringFixed(2),
			TotalDebited:  stats.TotalDebited.StringFixed(2),
			CreditCount:   stats.CreditCount,
			DebitCount:    stats.DebitCount,
		},
	}
	for _, t := range history {
		resp.History = append(resp.History, TransactionResponse{
			Amount:        t.Amount.StringFixed(2),
			Type:          string(t.Type),
			Description:   t.Description,
			PaymentMethod: t.PaymentMethod,
			CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
