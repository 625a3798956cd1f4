package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const paymentColumns = `id, user_id, amount, method, status, external_payment_id, payment_url, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.Method, &p.Status,
		&p.ExternalPaymentID, &p.PaymentURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, method Method) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO payments (user_id, amount, method, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING `+paymentColumns+`
	`, userID, amount, method)
	return scanPayment(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

// SetExternal records the provider's payment handle after Initiate.
func (r *Repository) SetExternal(ctx context.Context, id uuid.UUID, externalID, paymentURL string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET external_payment_id = $2, payment_url = $3, updated_at = now() WHERE id = $1
	`, id, externalID, paymentURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FinishTx moves a PENDING payment to a terminal status inside the
// caller's transaction. Returns false when the payment already left
// PENDING: the guard is what makes crediting exactly-once per payment.
func (r *Repository) FinishTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status Status) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE payments SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListStalePending returns PENDING payments older than cutoff, oldest
// first, for the reconciliation sweep.
func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ListForUser returns the user's payments, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
