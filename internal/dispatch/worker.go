// Package dispatch runs the asynchronous fulfillment pipeline: a River
// worker consumes queued requests, invokes the processing function, and
// finalizes request state, balance compensation, and user notification.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/shopspring/decimal"

	"github.com/voicelane/backend/internal/processing"
	"github.com/voicelane/backend/internal/requests"
	"github.com/voicelane/backend/internal/users"
)

// ProcessRequestArgs is the queue payload: one job per service request.
type ProcessRequestArgs struct {
	RequestID uuid.UUID `json:"request_id"`
}

func (ProcessRequestArgs) Kind() string { return "process_request" }

// RequestStore is the request-store surface the worker needs.
type RequestStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetByID(ctx context.Context, id uuid.UUID) (*requests.Request, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, processedText, responseText string) (bool, error)
	MarkFailedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, responseText string) (bool, error)
}

// Ledger is the credit half of the ledger, for refunds.
type Ledger interface {
	CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string, paymentMethod *string) error
}

// UserStore resolves users for notification and commits the free-usage cooldown.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
	MarkFreeUsage(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Notifier delivers result text to the user via the chat transport.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// ProcessRequestWorker consumes process_request jobs. Deliveries are
// at-least-once; every finalize step is guarded so redeliveries of
// already-terminal requests are absorbed without side effects.
type ProcessRequestWorker struct {
	river.WorkerDefaults[ProcessRequestArgs]
	store     RequestStore
	ledger    Ledger
	users     UserStore
	processor processing.Processor
	notifier  Notifier
	timeout   time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func NewProcessRequestWorker(store RequestStore, ledgerSvc Ledger, userStore UserStore, processor processing.Processor, notifier Notifier, timeout time.Duration, log *slog.Logger) *ProcessRequestWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessRequestWorker{
		store:     store,
		ledger:    ledgerSvc,
		users:     userStore,
		processor: processor,
		notifier:  notifier,
		timeout:   timeout,
		log:       log,
		now:       time.Now,
	}
}

func (w *ProcessRequestWorker) Work(ctx context.Context, job *river.Job[ProcessRequestArgs]) error {
	id := job.Args.RequestID

	req, err := w.store.GetByID(ctx, id)
	if errors.Is(err, requests.ErrNotFound) {
		return river.JobCancel(fmt.Errorf("request %s not found", id))
	}
	if err != nil {
		return err
	}
	if req.Status.Terminal() {
		// Redelivery after a crash between finalize-commit and ack.
		return nil
	}

	if err := w.store.MarkProcessing(ctx, id); err != nil {
		if errors.Is(err, requests.ErrInvalidTransition) {
			return nil
		}
		return err
	}

	pctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	result, perr := w.processor.Process(pctx, req.Category, req.Subcategory, processing.VoiceRef{
		FileID:       req.VoiceFileID,
		FileUniqueID: deref(req.VoiceFileUniqueID),
		Duration:     req.VoiceDuration,
		FileSize:     derefInt64(req.VoiceFileSize),
	})
	if perr != nil {
		if errors.Is(perr, processing.ErrPermanent) || job.Attempt >= job.MaxAttempts {
			return w.fail(ctx, req, perr)
		}
		// Transient: let the queue redeliver.
		return fmt.Errorf("process request %s: %w", id, perr)
	}

	applied, err := w.store.MarkCompleted(ctx, id, result.ProcessedText, result.ResponseText)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	if req.IsFree {
		// Sole place the cooldown is persisted: a failed free attempt
		// never burns the allowance. Losing this write after the
		// completion commit grants an extra free use, never charges one.
		if err := w.users.MarkFreeUsage(ctx, req.UserID, w.now()); err != nil {
			w.log.Error("mark free usage failed", "request_id", id, "user_id", req.UserID, "error", err)
		}
	}

	w.notifyUser(ctx, req.UserID, result.ResponseText)
	return nil
}

// fail transitions the request to FAILED and, for paid requests, commits
// the compensating refund in the same transaction. The status guard makes
// the refund exactly-once across redeliveries.
func (w *ProcessRequestWorker) fail(ctx context.Context, req *requests.Request, cause error) error {
	tx, err := w.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	applied, err := w.store.MarkFailedTx(ctx, tx, req.ID, fmt.Sprintf("processing failed: %v", cause))
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	if !req.IsFree {
		desc := fmt.Sprintf("refund: request %s failed", req.ID)
		if err := w.ledger.CreditTx(ctx, tx, req.UserID, req.Cost, desc, nil); err != nil {
			return fmt.Errorf("refund request %s: %w", req.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	w.log.Warn("request failed", "request_id", req.ID, "is_free", req.IsFree, "error", cause)
	text := "Sorry, we could not process your voice message. Please try again later."
	if !req.IsFree {
		text += " The charge has been refunded to your balance."
	}
	w.notifyUser(ctx, req.UserID, text)
	return nil
}

// notifyUser is best effort: the finalize commit already landed, so a
// delivery error must not push the job back into the queue.
func (w *ProcessRequestWorker) notifyUser(ctx context.Context, userID uuid.UUID, text string) {
	user, err := w.users.GetByID(ctx, userID)
	if err != nil {
		w.log.Error("resolve user for notification", "user_id", userID, "error", err)
		return
	}
	if err := w.notifier.Notify(ctx, user.TelegramID, text); err != nil {
		w.log.Error("notify user", "user_id", userID, "telegram_id", user.TelegramID, "error", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt64(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
