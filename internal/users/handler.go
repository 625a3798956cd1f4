package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// Store is the repository surface the handler needs.
type Store interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	store Store
	log   *slog.Logger
}

func NewHandler(store Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: store, log: log}
}

// Deactivate soft-disables the user; subsequent submits are rejected.
// The record and its balance history stay intact.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	telegramID, err := strconv.ParseInt(r.PathValue("telegram_id"), 10, 64)
	if err != nil || telegramID <= 0 {
		http.Error(w, `{"error":"invalid telegram id"}`, http.StatusBadRequest)
		return
	}
	user, err := h.store.GetByTelegramID(r.Context(), telegramID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("resolve user", "telegram_id", telegramID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if err := h.store.Deactivate(r.Context(), user.ID); err != nil {
		h.log.Error("deactivate user", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
