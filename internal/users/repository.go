// Package users stores user records. Users are created on first contact
// and never deleted; deactivation is a soft flag.
package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no user matches the lookup key.
var ErrNotFound = errors.New("user not found")

type User struct {
	ID            uuid.UUID
	TelegramID    int64
	Username      *string
	FirstName     *string
	LastName      *string
	Balance       decimal.Decimal
	IsActive      bool
	LastFreeUsage *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, telegram_id, username, first_name, last_name, balance, is_active, last_free_usage, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName,
		&u.Balance, &u.IsActive, &u.LastFreeUsage, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
}

// Profile carries the optional identity fields the chat transport knows
// about the user at first contact.
type Profile struct {
	Username  *string
	FirstName *string
	LastName  *string
}

// GetOrCreate returns the user for telegramID, inserting a fresh record
// with zero balance on first contact. A concurrent-insert race is
// resolved by re-reading on unique violation.
func (r *Repository) GetOrCreate(ctx context.Context, telegramID int64, p Profile) (*User, error) {
	u, err := r.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (telegram_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns+`
	`, telegramID, p.Username, p.FirstName, p.LastName)
	u, err = scanUser(row)
	if err == nil {
		return u, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return r.GetByTelegramID(ctx, telegramID)
	}
	return nil, err
}

// MarkFreeUsage commits the free-allowance cooldown reset. Called by the
// processing worker on successful completion of a free request only.
func (r *Repository) MarkFreeUsage(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET last_free_usage = $1, updated_at = now() WHERE id = $2
	`, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-disables the user. Records are never deleted.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET is_active = false, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
