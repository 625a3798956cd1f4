package requests

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/voicelane/backend/internal/catalog"
	"github.com/voicelane/backend/internal/ledger"
	"github.com/voicelane/backend/internal/users"
)

// Request/response structs use snake_case JSON for the bot frontend.

type SubmitRequest struct {
	TelegramID  int64      `json:"telegram_id"`
	Username    *string    `json:"username,omitempty"`
	FirstName   *string    `json:"first_name,omitempty"`
	LastName    *string    `json:"last_name,omitempty"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory"`
	Voice       VoicePayload `json:"voice"`
}

type VoicePayload struct {
	FileID       string  `json:"file_id"`
	FileUniqueID *string `json:"file_unique_id,omitempty"`
	Duration     int     `json:"duration"`
	FileSize     *int64  `json:"file_size,omitempty"`
}

type RequestResponse struct {
	ID            string  `json:"id"`
	Category      string  `json:"category"`
	Subcategory   string  `json:"subcategory"`
	Status        string  `json:"status"`
	Cost          string  `json:"cost"`
	IsFree        bool    `json:"is_free"`
	ProcessedText *string `json:"processed_text,omitempty"`
	ResponseText  *string `json:"response_text,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

type deniedResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int64  `json:"retry_after_seconds"`
}

type Handler struct {
	svc   Service
	users UserStore
	log   *slog.Logger
}

func NewHandler(svc Service, userStore UserStore, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, users: userStore, log: log}
}

// Submit accepts a service request: the submitRequest entry point.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.TelegramID <= 0 || req.Voice.FileID == "" || req.Voice.Duration <= 0 {
		http.Error(w, `{"error":"telegram_id, voice.file_id and voice.duration are required"}`, http.StatusBadRequest)
		return
	}

	created, err := h.svc.Submit(r.Context(), SubmitInput{
		TelegramID: req.TelegramID,
		Profile: users.Profile{
			Username:  req.Username,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		},
		Category:    catalog.Category(req.Category),
		Subcategory: catalog.Subcategory(req.Subcategory),
		Voice: VoiceInput{
			FileID:       req.Voice.FileID,
			FileUniqueID: req.Voice.FileUniqueID,
			Duration:     req.Voice.Duration,
			FileSize:     req.Voice.FileSize,
		},
	})
	if err != nil {
		var denied *DeniedError
		switch {
		case errors.As(err, &denied):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(deniedResponse{
				Error:             "insufficient balance and free usage on cooldown",
				RetryAfterSeconds: int64(denied.Wait.Seconds()),
			})
		case errors.Is(err, ErrInvalidCategory):
			http.Error(w, `{"error":"unknown category or subcategory"}`, http.StatusBadRequest)
		case errors.Is(err, ErrUserDeactivated):
			http.Error(w, `{"error":"user is deactivated"}`, http.StatusForbidden)
		case errors.Is(err, ledger.ErrInsufficientFunds):
			http.Error(w, `{"error":"insufficient funds"}`, http.StatusPaymentRequired)
		default:
			h.log.Error("submit request", "telegram_id", req.TelegramID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(created))
}

// Get returns one request by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid request id"}`, http.StatusBadRequest)
		return
	}
	req, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"request not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("get request", "request_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(req))
}

// ListForUser returns the user's recent requests, newest first.
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

	user, err := h.users.GetOrCreate(r.Context(), telegramID, users.Profile{})
	if err != nil {
		h.log.Error("resolve user", "telegram_id", telegramID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	list, err := h.svc.ListForUser(r.Context(), user.ID, limit)
	if err != nil {
		h.log.Error("list requests", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	out := make([]RequestResponse, 0, len(list))
	for _, req := range list {
		out = append(out, toResponse(req))
	}
	writeJSON(w, http.StatusOK, out)
}

func toResponse(r *Request) RequestResponse {
	return RequestResponse{
		ID:            r.ID.String(),
		Category:      string(r.Category),
		Subcategory:   string(r.Subcategory),
		Status:        string(r.Status),
		Cost:          r.Cost.StringFixed(2),
		IsFree:        r.IsFree,
		ProcessedText: r.ProcessedText,
		ResponseText:  r.ResponseText,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
