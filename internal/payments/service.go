package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/voicelane/backend/internal/users"
)

// Provider is the external payment-provider boundary.
type Provider interface {
	// Initiate registers the payment externally and returns the
	// provider's handle plus the URL the user pays at.
	Initiate(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal) (externalID, paymentURL string, err error)
	// CheckStatus polls the provider for the payment's current status.
	CheckStatus(ctx context.Context, externalID string) (Status, error)
}

// Store is the payment-repository surface the service needs.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, method Method) (*Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	SetExternal(ctx context.Context, id uuid.UUID, externalID, paymentURL string) error
	FinishTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status Status) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Payment, error)
}

// Ledger is the credit half of the ledger for successful payments.
type Ledger interface {
	CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string, paymentMethod *string) error
}

// UserStore resolves users by external chat id.
type UserStore interface {
	GetOrCreate(ctx context.Context, telegramID int64, p users.Profile) (*users.User, error)
}

type Service interface {
	// Create records a PENDING payment and initiates it with the provider.
	Create(ctx context.Context, telegramID int64, amount decimal.Decimal, method Method) (*Payment, error)
	// Confirm applies a provider status. A SUCCESS produces exactly one
	// CREDIT transaction per payment regardless of how many times the
	// same confirmation arrives (idempotency key: payment id).
	Confirm(ctx context.Context, paymentID uuid.UUID, status Status) (*Payment, error)
	Get(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Payment, error)
}

var errUnknownMethod = errors.New("unknown payment method")

type service struct {
	store     Store
	ledger    Ledger
	users     UserStore
	providers map[Method]Provider
}

func NewService(store Store, ledgerSvc Ledger, userStore UserStore, providers map[Method]Provider) *service {
	return &service{store: store, ledger: ledgerSvc, users: userStore, providers: providers}
}

var _ Service = (*service)(nil)

func (s *service) Create(ctx context.Context, telegramID int64, amount decimal.Decimal, method Method) (*Payment, error) {
	if !ValidMethod(method) {
		return nil, errUnknownMethod
	}
	if amount.Sign() <= 0 {
		return nil, errors.New("payment amount must be positive")
	}
	provider, ok := s.providers[method]
	if !ok {
		return nil, fmt.Errorf("%w: no provider for %s", ErrProvider, method)
	}

	user, err := s.users.GetOrCreate(ctx, telegramID, users.Profile{})
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	payment, err := s.store.Create(ctx, user.ID, amount, method)
	if err != nil {
		return nil, err
	}

	externalID, paymentURL, err := provider.Initiate(ctx, payment.ID, amount)
	if err != nil {
		// The payment stays PENDING with no external handle; it cannot
		// confirm, so close it out rather than leave it ambiguous.
		if _, ferr := s.finish(ctx, payment, StatusFailed); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return nil, fmt.Errorf("%w: initiate %s: %v", ErrProvider, method, err)
	}
	if err := s.store.SetExternal(ctx, payment.ID, externalID, paymentURL); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, payment.ID)
}

func (s *service) Confirm(ctx context.Context, paymentID uuid.UUID, status Status) (*Payment, error) {
	if !status.Terminal() {
		// Provider still pending; nothing to apply.
		return s.store.GetByID(ctx, paymentID)
	}
	payment, err := s.store.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, payment, status)
}

// finish moves the payment to a terminal status and, on SUCCESS, credits
// the user's balance in the same transaction. The PENDING guard in
// FinishTx makes both effects exactly-once.
func (s *service) finish(ctx context.Context, payment *Payment, status Status) (*Payment, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	applied, err := s.store.FinishTx(ctx, tx, payment.ID, status)
	if err != nil {
		return nil, err
	}
	if !applied {
		return s.store.GetByID(ctx, payment.ID)
	}
	if status == StatusSuccess {
		method := string(payment.Method)
		desc := fmt.Sprintf("balance top-up, payment %s", payment.ID)
		if err := s.ledger.CreditTx(ctx, tx, payment.UserID, payment.Amount, desc, &method); err != nil {
			return nil, fmt.Errorf("credit payment %s: %w", payment.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, payment.ID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.store.GetByID(ctx, id)
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Payment, error) {
	return s.store.ListForUser(ctx, userID, limit)
}
