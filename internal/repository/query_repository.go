package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-rewards-api/internal/models"
)

const assignmentDetailSelect = `
SELECT
	a.student_id, a.task_id, a.faculty_id, a.reward_value, a.slot_number,
	a.is_submitted, a.is_rejected, a.proof_ref, a.rejection_reason, a.accepted_at, a.updated_at,
	t.name AS task_name,
	t.description AS task_description,
	t.category AS task_category,
	s.full_name AS student_name,
	s.branch AS student_branch
FROM assignments a
JOIN tasks t ON t.id = a.task_id
JOIN students s ON s.id = a.student_id`

const completedDetailSelect = `
SELECT
	ca.id, ca.student_id, ca.task_id, ca.faculty_id, ca.reward_value, ca.slot_number,
	ca.proof_ref, ca.rejection_reason, ca.approval_reason, ca.transaction_ref, ca.accepted_at, ca.approved_at,
	t.name AS task_name,
	t.category AS task_category,
	s.full_name AS student_name,
	s.branch AS student_branch
FROM completed_assignments ca
JOIN tasks t ON t.id = ca.task_id
JOIN students s ON s.id = ca.student_id`

// AssignmentQueryRepository serves read-side projections joining assignments with tasks and students.
type AssignmentQueryRepository struct {
	db *sqlx.DB
}

// NewAssignmentQueryRepository constructs the repository.
func NewAssignmentQueryRepository(db *sqlx.DB) *AssignmentQueryRepository {
	return &AssignmentQueryRepository{db: db}
}

// ListByStudent returns the student's working assignments in state.
func (r *AssignmentQueryRepository) ListByStudent(ctx context.Context, studentID string, state models.AssignmentState) ([]models.AssignmentDetail, error) {
	query := assignmentDetailSelect + `
WHERE a.student_id = $1 AND ` + stateCondition(state) + `
ORDER BY a.updated_at DESC`
	var items []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &items, query, studentID); err != nil {
		return nil, fmt.Errorf("list student assignments: %w", err)
	}
	return items, nil
}

// ListPendingForFaculty returns submissions awaiting review on tasks owned by facultyID.
func (r *AssignmentQueryRepository) ListPendingForFaculty(ctx context.Context, facultyID string) ([]models.AssignmentDetail, error) {
	return r.listForFaculty(ctx, facultyID, models.AssignmentStateSubmitted)
}

// ListRejectedForFaculty returns assignments the faculty member rejected and that await resubmission.
func (r *AssignmentQueryRepository) ListRejectedForFaculty(ctx context.Context, facultyID string) ([]models.AssignmentDetail, error) {
	return r.listForFaculty(ctx, facultyID, models.AssignmentStateRejected)
}

// ListCompleted returns archived assignments matching filter.
func (r *AssignmentQueryRepository) ListCompleted(ctx context.Context, filter models.CompletedFilter) ([]models.CompletedDetail, error) {
	clauses := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	if filter.FacultyID != "" {
		args = append(args, filter.FacultyID)
		clauses = append(clauses, fmt.Sprintf("ca.faculty_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		clauses = append(clauses, fmt.Sprintf("ca.student_id = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return nil, fmt.Errorf("list completed assignments: owner filter required")
	}

	query := completedDetailSelect + `
WHERE ` + strings.Join(clauses, " AND ") + `
ORDER BY ca.approved_at DESC`
	var items []models.CompletedDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list completed assignments: %w", err)
	}
	return items, nil
}

func (r *AssignmentQueryRepository) listForFaculty(ctx context.Context, facultyID string, state models.AssignmentState) ([]models.AssignmentDetail, error) {
	query := assignmentDetailSelect + `
WHERE a.faculty_id = $1 AND ` + stateCondition(state) + `
ORDER BY a.updated_at ASC`
	var items []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &items, query, facultyID); err != nil {
		return nil, fmt.Errorf("list faculty assignments: %w", err)
	}
	return items, nil
}

func stateCondition(state models.AssignmentState) string {
	switch state {
	case models.AssignmentStateSubmitted:
		return "a.is_submitted = true AND a.is_rejected = false"
	case models.AssignmentStateRejected:
		return "a.is_rejected = true"
	default:
		return "a.is_submitted = false AND a.is_rejected = false"
	}
}
