package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"github.com/noah-isme/campus-rewards-api/internal/models"
)

const paymentColumns = `id, idempotency_key, purpose, student_id, subject_id, actor_id, amount, source, destination, memo,
	status, transaction_ref, failure_reason, attempts, created_at, updated_at, settled_at`

// PaymentRepository records every transfer before it leaves the process.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Begin inserts a PENDING attempt, or re-arms a FAILED one under the same key.
// It returns sql.ErrNoRows when an attempt with the key exists in any other status.
func (r *PaymentRepository) Begin(ctx context.Context, attempt *models.PaymentAttempt) error {
	now := time.Now().UTC()
	if attempt.ID == "" {
		attempt.ID = ulid.Make().String()
	}
	attempt.Status = models.PaymentStatusPending
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	attempt.Attempts = 1

	const query = `INSERT INTO payment_attempts (` + paymentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL, NULL, 1, $12, $12, NULL)
ON CONFLICT (idempotency_key) DO UPDATE SET
	status = EXCLUDED.status,
	actor_id = EXCLUDED.actor_id,
	amount = EXCLUDED.amount,
	source = EXCLUDED.source,
	destination = EXCLUDED.destination,
	memo = EXCLUDED.memo,
	failure_reason = NULL,
	settled_at = NULL,
	attempts = payment_attempts.attempts + 1,
	updated_at = EXCLUDED.updated_at
WHERE payment_attempts.status = 'FAILED'
RETURNING ` + paymentColumns
	return r.db.GetContext(ctx, attempt, query,
		attempt.ID, attempt.IdempotencyKey, attempt.Purpose, attempt.StudentID, attempt.SubjectID,
		attempt.ActorID, attempt.Amount, attempt.Source, attempt.Destination, attempt.Memo,
		attempt.Status, now,
	)
}

// FindByKey returns sql.ErrNoRows when no transfer was ever attempted for key.
func (r *PaymentRepository) FindByKey(ctx context.Context, key string) (*models.PaymentAttempt, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payment_attempts WHERE idempotency_key = $1`
	var attempt models.PaymentAttempt
	if err := r.db.GetContext(ctx, &attempt, query, key); err != nil {
		return nil, err
	}
	return &attempt, nil
}

// MarkSucceeded records the transaction reference returned by the gateway.
func (r *PaymentRepository) MarkSucceeded(ctx context.Context, id, transactionRef string) error {
	return r.setStatus(ctx, id, models.PaymentStatusSucceeded, &transactionRef, nil)
}

// MarkFailed records a definitive gateway rejection.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id, reason string) error {
	return r.setStatus(ctx, id, models.PaymentStatusFailed, nil, &reason)
}

// MarkUnknown flags an attempt whose outcome must be reconciled later.
func (r *PaymentRepository) MarkUnknown(ctx context.Context, id, reason string) error {
	return r.setStatus(ctx, id, models.PaymentStatusUnknown, nil, &reason)
}

func (r *PaymentRepository) setStatus(ctx context.Context, id string, status models.PaymentStatus, ref, reason *string) error {
	const query = `UPDATE payment_attempts
SET status = $2, transaction_ref = COALESCE($3, transaction_ref), failure_reason = $4, updated_at = $5
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, ref, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update payment %s: %w", status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment rows: %w", err)
	}
	if affected == 0 {
		return ErrStateChanged
	}
	return nil
}

// MarkSettled records that the local effects of the attempt have been applied.
func (r *PaymentRepository) MarkSettled(ctx context.Context, id string) error {
	const query = `UPDATE payment_attempts SET settled_at = $2 WHERE id = $1 AND settled_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("settle payment: %w", err)
	}
	return nil
}

// ListUnsettled returns attempts that still need reconciliation. PENDING rows are
// only included once they have been idle since staleBefore.
func (r *PaymentRepository) ListUnsettled(ctx context.Context, staleBefore time.Time, limit int) ([]models.PaymentAttempt, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT ` + paymentColumns + ` FROM payment_attempts
WHERE settled_at IS NULL
	AND (status IN ('UNKNOWN', 'SUCCEEDED', 'FAILED') OR (status = 'PENDING' AND updated_at < $1))
ORDER BY updated_at ASC
LIMIT $2`
	var attempts []models.PaymentAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, staleBefore, limit); err != nil {
		return nil, fmt.Errorf("list unsettled payments: %w", err)
	}
	return attempts, nil
}
