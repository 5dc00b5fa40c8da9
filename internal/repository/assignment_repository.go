package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-rewards-api/internal/models"
	"github.com/noah-isme/campus-rewards-api/pkg/database"
)

const assignmentColumns = `student_id, task_id, faculty_id, reward_value, slot_number, is_submitted, is_rejected, proof_ref, rejection_reason, accepted_at, updated_at`

const completedColumns = `id, student_id, task_id, faculty_id, reward_value, slot_number, proof_ref, rejection_reason, approval_reason, transaction_ref, accepted_at, approved_at`

// AssignmentRepository owns the working assignment table and its archival counterpart.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Accept consumes a task slot and creates the assignment in one transaction.
// It returns ErrSlotsExhausted, ErrDuplicate or ErrAlreadyCompleted when the pair cannot be bound.
func (r *AssignmentRepository) Accept(ctx context.Context, assignment *models.Assignment) (models.SlotClaim, error) {
	var claim models.SlotClaim
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		claim, err = decrementTaskSlot(ctx, tx, assignment.TaskID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		assignment.SlotNumber = claim.Ordinal()
		assignment.IsSubmitted = false
		assignment.IsRejected = false
		assignment.AcceptedAt = now
		assignment.UpdatedAt = now

		const insert = `INSERT INTO assignments (` + assignmentColumns + `)
SELECT $1::text, $2::text, $3::text, $4::numeric, $5::int, false, false, NULL, NULL, $6::timestamptz, $6::timestamptz
WHERE NOT EXISTS (SELECT 1 FROM completed_assignments WHERE student_id = $1 AND task_id = $2)`
		res, err := tx.ExecContext(ctx, insert,
			assignment.StudentID, assignment.TaskID, assignment.FacultyID, assignment.RewardValue, assignment.SlotNumber, now)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert assignment: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert assignment rows: %w", err)
		}
		if affected == 0 {
			return ErrAlreadyCompleted
		}
		return nil
	})
	if err != nil {
		return models.SlotClaim{}, err
	}
	return claim, nil
}

// Find returns sql.ErrNoRows when the pair has no working assignment.
func (r *AssignmentRepository) Find(ctx context.Context, studentID, taskID string) (*models.Assignment, error) {
	const query = `SELECT ` + assignmentColumns + ` FROM assignments WHERE student_id = $1 AND task_id = $2`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, studentID, taskID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindCompleted returns sql.ErrNoRows when the pair has not been archived.
func (r *AssignmentRepository) FindCompleted(ctx context.Context, studentID, taskID string) (*models.CompletedAssignment, error) {
	const query = `SELECT ` + completedColumns + ` FROM completed_assignments WHERE student_id = $1 AND task_id = $2`
	var completed models.CompletedAssignment
	if err := r.db.GetContext(ctx, &completed, query, studentID, taskID); err != nil {
		return nil, err
	}
	return &completed, nil
}

// MarkSubmitted attaches proofRef to an ACCEPTED assignment.
func (r *AssignmentRepository) MarkSubmitted(ctx context.Context, studentID, taskID, proofRef string) error {
	const query = `UPDATE assignments SET is_submitted = true, proof_ref = $3, updated_at = $4
WHERE student_id = $1 AND task_id = $2 AND is_submitted = false AND is_rejected = false`
	return r.guardedExec(ctx, "submit proof", query, studentID, taskID, proofRef, time.Now().UTC())
}

// Resubmit swaps the proof of a REJECTED assignment and returns the replaced reference.
func (r *AssignmentRepository) Resubmit(ctx context.Context, studentID, taskID, proofRef string) (*string, error) {
	var previous *string
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var current models.Assignment
		const lock = `SELECT ` + assignmentColumns + ` FROM assignments WHERE student_id = $1 AND task_id = $2 FOR UPDATE`
		if err := tx.GetContext(ctx, &current, lock, studentID, taskID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrStateChanged
			}
			return fmt.Errorf("lock assignment: %w", err)
		}
		if !current.IsRejected {
			return ErrStateChanged
		}
		previous = current.ProofRef

		const update = `UPDATE assignments SET is_submitted = true, is_rejected = false, proof_ref = $3, updated_at = $4
WHERE student_id = $1 AND task_id = $2`
		if _, err := tx.ExecContext(ctx, update, studentID, taskID, proofRef, time.Now().UTC()); err != nil {
			return fmt.Errorf("resubmit proof: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// Reject flags a SUBMITTED assignment owned by facultyID. The task slot stays consumed.
func (r *AssignmentRepository) Reject(ctx context.Context, facultyID, studentID, taskID, reason string) error {
	const query = `UPDATE assignments SET is_rejected = true, is_submitted = false, rejection_reason = $4, updated_at = $5
WHERE student_id = $1 AND task_id = $2 AND faculty_id = $3 AND is_submitted = true AND is_rejected = false`
	return r.guardedExec(ctx, "reject assignment", query, studentID, taskID, facultyID, reason, time.Now().UTC())
}

// Archive writes the completed record and removes the working one atomically.
func (r *AssignmentRepository) Archive(ctx context.Context, completed *models.CompletedAssignment) error {
	if completed.ID == "" {
		completed.ID = uuid.NewString()
	}
	if completed.ApprovedAt.IsZero() {
		completed.ApprovedAt = time.Now().UTC()
	}
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const insert = `INSERT INTO completed_assignments (` + completedColumns + `)
VALUES (:id, :student_id, :task_id, :faculty_id, :reward_value, :slot_number, :proof_ref, :rejection_reason, :approval_reason, :transaction_ref, :accepted_at, :approved_at)`
		if _, err := tx.NamedExecContext(ctx, insert, completed); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrAlreadyCompleted
			}
			return fmt.Errorf("insert completed assignment: %w", err)
		}

		const remove = `DELETE FROM assignments WHERE student_id = $1 AND task_id = $2 AND is_submitted = true AND is_rejected = false`
		res, err := tx.ExecContext(ctx, remove, completed.StudentID, completed.TaskID)
		if err != nil {
			return fmt.Errorf("delete assignment: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete assignment rows: %w", err)
		}
		if affected == 0 {
			return ErrStateChanged
		}
		return nil
	})
}

func (r *AssignmentRepository) guardedExec(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return ErrStateChanged
	}
	return nil
}
