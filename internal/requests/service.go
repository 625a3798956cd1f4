package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/voicelane/backend/internal/catalog"
	"github.com/voicelane/backend/internal/eligibility"
	"github.com/voicelane/backend/internal/ledger"
	"github.com/voicelane/backend/internal/users"
)

// Store is the minimal request-store interface the service needs.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, p CreateParams) (*Request, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Request, error)
	ListPending(ctx context.Context, limit int) ([]*Request, error)
}

// Ledger is the debit half of the ledger the submit path needs.
type Ledger interface {
	DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string) error
}

// UserStore resolves and creates users on first contact.
type UserStore interface {
	GetOrCreate(ctx context.Context, telegramID int64, p users.Profile) (*users.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// EnqueueTxFunc enqueues the processing job for a request within the
// given transaction. Provided by main as a closure over river.Client.InsertTx,
// so the job becomes visible only if the request and debit commit.
type EnqueueTxFunc func(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) error

// SubmitInput is the inbound submitRequest payload.
type SubmitInput struct {
	TelegramID  int64
	Profile     users.Profile
	Category    catalog.Category
	Subcategory catalog.Subcategory
	Voice       VoiceInput
}

// VoiceInput is the opaque reference to the voice payload.
type VoiceInput struct {
	FileID       string
	FileUniqueID *string
	Duration     int
	FileSize     *int64
}

type Service interface {
	// Submit runs the full acceptance path: eligibility, request
	// creation, debit for paid requests, and transactional enqueue.
	// Returns *DeniedError when the user must wait for the free slot.
	Submit(ctx context.Context, in SubmitInput) (*Request, error)
	Get(ctx context.Context, id uuid.UUID) (*Request, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Request, error)
	// RequeuePending re-enqueues PENDING requests older than minAge.
	// Safe to run repeatedly: the worker absorbs duplicate deliveries.
	RequeuePending(ctx context.Context, minAge time.Duration, limit int) (int, error)
}

type service struct {
	store   Store
	ledger  Ledger
	users   UserStore
	engine  eligibility.Engine
	enqueue EnqueueTxFunc
	now     func() time.Time
}

func NewService(store Store, ledgerSvc Ledger, userStore UserStore, engine eligibility.Engine, enqueue EnqueueTxFunc) *service {
	return &service{
		store:   store,
		ledger:  ledgerSvc,
		users:   userStore,
		engine:  engine,
		enqueue: enqueue,
		now:     time.Now,
	}
}

var _ Service = (*service)(nil)

func (s *service) Submit(ctx context.Context, in SubmitInput) (*Request, error) {
	if !catalog.Valid(in.Category, in.Subcategory) {
		return nil, ErrInvalidCategory
	}

	user, err := s.users.GetOrCreate(ctx, in.TelegramID, in.Profile)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserDeactivated
	}

	cost := catalog.Price(in.Category, in.Subcategory)

	// A debit can lose the conditional update to a concurrent spend on
	// the same balance; re-evaluate with fresh state and fall back to
	// the free slot or a deny instead of surfacing the failure.
	for attempt := 0; attempt < 2; attempt++ {
		decision := s.engine.Evaluate(user.Balance, user.LastFreeUsage, cost, s.now())
		if decision.Outcome == eligibility.OutcomeDeny {
			return nil, &DeniedError{Wait: decision.Wait}
		}

		req, err := s.submitOnce(ctx, user, in, cost, decision.Outcome == eligibility.OutcomeFree)
		if err == nil {
			return req, nil
		}
		if !errors.Is(err, ledger.ErrInsufficientFunds) {
			return nil, err
		}

		user, err = s.users.GetByID(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("reload user after debit race: %w", err)
		}
	}

	decision := s.engine.Evaluate(user.Balance, user.LastFreeUsage, cost, s.now())
	if decision.Outcome == eligibility.OutcomeDeny {
		return nil, &DeniedError{Wait: decision.Wait}
	}
	return nil, fmt.Errorf("submit request: %w", ledger.ErrInsufficientFunds)
}

// submitOnce creates the request, debits for paid submissions, and
// enqueues processing, all in one transaction. Nothing is externally
// visible until the commit lands.
func (s *service) submitOnce(ctx context.Context, user *users.User, in SubmitInput, cost decimal.Decimal, isFree bool) (*Request, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	reqCost := cost
	if isFree {
		reqCost = decimal.Zero
	}
	req, err := s.store.CreateTx(ctx, tx, CreateParams{
		UserID:            user.ID,
		Category:          in.Category,
		Subcategory:       in.Subcategory,
		VoiceFileID:       in.Voice.FileID,
		VoiceFileUniqueID: in.Voice.FileUniqueID,
		VoiceDuration:     in.Voice.Duration,
		VoiceFileSize:     in.Voice.FileSize,
		Cost:              reqCost,
		IsFree:            isFree,
	})
	if err != nil {
		return nil, err
	}

	if !isFree {
		desc := fmt.Sprintf("voice processing %s/%s", in.Category, in.Subcategory)
		if err := s.ledger.DebitTx(ctx, tx, user.ID, cost, desc); err != nil {
			return nil, err
		}
	}

	if err := s.enqueue(ctx, tx, req.ID); err != nil {
		return nil, fmt.Errorf("enqueue processing: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.store.GetByID(ctx, id)
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Request, error) {
	return s.store.ListForUser(ctx, userID, limit)
}

func (s *service) RequeuePending(ctx context.Context, minAge time.Duration, limit int) (int, error) {
	pending, err := s.store.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-minAge)
	requeued := 0
	for _, req := range pending {
		if req.CreatedAt.After(cutoff) {
			continue
		}
		tx, err := s.store.Begin(ctx)
		if err != nil {
			return requeued, err
		}
		if err := s.enqueue(ctx, tx, req.ID); err != nil {
			tx.Rollback(ctx)
			return requeued, err
		}
		if err := tx.Commit(ctx); err != nil {
			return requeued, err
		}
		requeued++
	}
	return requeued, nil
}
