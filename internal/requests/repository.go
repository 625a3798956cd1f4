package requests

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/voicelane/backend/internal/catalog"
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

// CreateParams describes a request at submission time.
type CreateParams struct {
	UserID            uuid.UUID
	Category          catalog.Category
	Subcategory       catalog.Subcategory
	VoiceFileID       string
	VoiceFileUniqueID *string
	VoiceDuration     int
	VoiceFileSize     *int64
	Cost              decimal.Decimal
	IsFree            bool
}

const requestColumns = `id, user_id, category, subcategory, voice_file_id, voice_file_unique_id,
		voice_duration, voice_file_size, processed_text, response_text, status, cost, is_free,
		processing_started_at, processing_completed_at, created_at, updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var q Request
	err := row.Scan(&q.ID, &q.UserID, &q.Category, &q.Subcategory, &q.VoiceFileID, &q.VoiceFileUniqueID,
		&q.VoiceDuration, &q.VoiceFileSize, &q.ProcessedText, &q.ResponseText, &q.Status, &q.Cost, &q.IsFree,
		&q.ProcessingStartedAt, &q.ProcessingCompletedAt, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

// CreateTx inserts a PENDING request inside the caller's transaction.
// The cost/is_free invariant is enforced here so no caller can create a
// paid request with zero cost or a free one with a price.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, p CreateParams) (*Request, error) {
	if p.IsFree != p.Cost.IsZero() || (!p.IsFree && p.Cost.Sign() <= 0) {
		return nil, errors.New("request cost does not match is_free flag")
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO service_requests
			(user_id, category, subcategory, voice_file_id, voice_file_unique_id,
			 voice_duration, voice_file_size, status, cost, is_free)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, $9)
		RETURNING `+requestColumns+`
	`, p.UserID, p.Category, p.Subcategory, p.VoiceFileID, p.VoiceFileUniqueID,
		p.VoiceDuration, p.VoiceFileSize, p.Cost, p.IsFree)
	return scanRequest(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = $1`, id))
}

// MarkProcessing moves the request into PROCESSING. The guard allows
// PENDING and, for queue redelivery after a crash mid-processing,
// re-entry from PROCESSING; processing_started_at is set only once.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE service_requests
		SET status = 'processing',
			processing_started_at = COALESCE(processing_started_at, now()),
			updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'processing')
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkCompleted finalizes a PROCESSING request as COMPLETED. Returns
// false when the guard lost (already terminal), which redelivered queue
// items use as the idempotency signal.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, processedText, responseText string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE service_requests
		SET status = 'completed', processed_text = $2, response_text = $3,
			processing_completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, id, processedText, responseText)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailedTx finalizes a PROCESSING request as FAILED inside the
// caller's transaction, recording the error summary as the response
// text. Runs in a tx so the worker can commit the compensating refund
// atomically with the transition. Same guard semantics as MarkCompleted.
func (r *Repository) MarkFailedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, responseText string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE service_requests
		SET status = 'failed', response_text = $2,
			processing_completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, id, responseText)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListForUser returns the user's requests, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Request, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+` FROM service_requests
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// ListPending returns PENDING requests oldest first, for the recovery sweep.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]*Request, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+` FROM service_requests
		WHERE status = 'pending' ORDER BY created_at ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]*Request, error) {
	defer rows.Close()
	var list []*Request
	for rows.Next() {
		q, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}
