package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var errInsufficientFunds = errors.New("insufficient funds")

// TransactionType is the direction of a balance transaction.
type TransactionType string

const (
	TypeCredit TransactionType = "credit"
	TypeDebit  TransactionType = "debit"
)

// Transaction is one immutable row of the balance log. Rows are appended
// only, never updated or deleted; their sum reconstructs the balance.
type Transaction struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Amount        decimal.Decimal // signed: positive credit, negative debit
	Type          TransactionType
	Description   string
	PaymentMethod *string
	CreatedAt     time.Time
}

// Statistics aggregates a user's transaction log.
type Statistics struct {
	CurrentBalance decimal.Decimal
	TotalCredited  decimal.Decimal
	TotalDebited   decimal.Decimal
	CreditCount    int64
	DebitCount     int64
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// DebitTx runs inside the caller's transaction. It:
// a) decrements balance via a conditional UPDATE (balance >= amount),
//    serializing concurrent debits at the storage layer
// b) appends a DEBIT transaction of -amount
// Zero affected rows means insufficient funds; nothing is written.
func (r *Repository) DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string) error {
	result, err := tx.Exec(ctx, `
		UPDATE users
		SET balance = balance - $1, updated_at = now()
		WHERE id = $2 AND balance >= $1
	`, amount, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errInsufficientFunds
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO balance_transactions (user_id, amount, transaction_type, description)
		VALUES ($1, $2, 'debit', $3)
	`, userID, amount.Neg(), description)
	return err
}

// CreditTx unconditionally increments the balance and appends a CREDIT
// transaction, inside the caller's transaction. Fails only when the user
// does not exist.
func (r *Repository) CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string, paymentMethod *string) error {
	result, err := tx.Exec(ctx, `
		UPDATE users SET balance = balance + $1, updated_at = now() WHERE id = $2
	`, amount, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO balance_transactions (user_id, amount, transaction_type, description, payment_method)
		VALUES ($1, $2, 'credit', $3, $4)
	`, userID, amount, description, paymentMethod)
	return err
}

// Balance returns the materialized balance. The transaction log stays
// authoritative; see Statistics for the reconstructed view.
func (r *Repository) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// History returns the most recent transactions, newest first.
func (r *Repository) History(ctx context.Context, userID uuid.UUID, limit int) ([]*Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, amount, transaction_type, description, payment_method, created_at
		FROM balance_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Description, &t.PaymentMethod, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// Statistics aggregates the transaction log for one user.
func (r *Repository) Statistics(ctx context.Context, userID uuid.UUID) (*Statistics, error) {
	var s Statistics
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE transaction_type = 'credit'), 0),
			COALESCE(-SUM(amount) FILTER (WHERE transaction_type = 'debit'), 0),
			COUNT(*) FILTER (WHERE transaction_type = 'credit'),
			COUNT(*) FILTER (WHERE transaction_type = 'debit')
		FROM balance_transactions
		WHERE user_id = $1
	`, userID).Scan(&s.TotalCredited, &s.TotalDebited, &s.CreditCount, &s.DebitCount)
	if err != nil {
		return nil, err
	}
	balance, err := r.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.CurrentBalance = balance
	return &s, nil
}
