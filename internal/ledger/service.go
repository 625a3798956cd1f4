package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Service interface {
	// DebitTx atomically checks and decrements the balance inside the
	// caller's transaction. Returns ErrInsufficientFunds without side
	// effects when the balance does not cover amount.
	DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string) error
	// CreditTx increments the balance inside the caller's transaction.
	CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string, paymentMethod *string) error
	// Credit increments the balance in its own transaction.
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, paymentMethod *string) error
	// Refund compensates a failed paid request. It is a Credit with a
	// refund description, never a direct balance write, so every delta
	// keeps a matching transaction row.
	Refund(ctx context.Context, userID, requestID uuid.UUID, amount decimal.Decimal) error
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*Transaction, error)
	Statistics(ctx context.Context, userID uuid.UUID) (*Statistics, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string) error {
	return s.repo.DebitTx(ctx, tx, userID, amount, description)
}

func (s *service) CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string, paymentMethod *string) error {
	return s.repo.CreditTx(ctx, tx, userID, amount, description, paymentMethod)
}

func (s *service) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, paymentMethod *string) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.repo.CreditTx(ctx, tx, userID, amount, description, paymentMethod); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *service) Refund(ctx context.Context, userID, requestID uuid.UUID, amount decimal.Decimal) error {
	return s.Credit(ctx, userID, amount, fmt.Sprintf("refund: request %s failed", requestID), nil)
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.Balance(ctx, userID)
}

func (s *service) History(ctx context.Context, userID uuid.UUID, limit int) ([]*Transaction, error) {
	return s.repo.History(ctx, userID, limit)
}

func (s *service) Statistics(ctx context.Context, userID uuid.UUID) (*Statistics, error) {
	return s.repo.Statistics(ctx, userID)
}

// ErrInsufficientFunds is returned when a debit would drive the balance negative.
var ErrInsufficientFunds = errInsufficientFunds
