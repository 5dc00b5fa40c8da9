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
)

const taskColumns = `id, name, description, branches, hours, category, difficulty, faculty_id, slot, slots_left, created_at`

// TaskRepository persists tasks and their slot counters.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new task with every slot available.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	task.SlotsLeft = task.Slot
	const query = `INSERT INTO tasks (` + taskColumns + `)
VALUES (:id, :name, :description, :branches, :hours, :category, :difficulty, :faculty_id, :slot, :slots_left, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// FindByID returns sql.ErrNoRows when the task does not exist.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListEligible returns tasks open to branch that the student has neither accepted nor completed.
func (r *TaskRepository) ListEligible(ctx context.Context, branch, studentID string) ([]models.Task, error) {
	const query = `SELECT ` + taskColumns + `
FROM tasks t
WHERE $1 = ANY(t.branches)
  AND NOT EXISTS (SELECT 1 FROM assignments a WHERE a.task_id = t.id AND a.student_id = $2)
  AND NOT EXISTS (SELECT 1 FROM completed_assignments ca WHERE ca.task_id = t.id AND ca.student_id = $2)
ORDER BY t.created_at DESC`
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, branch, studentID); err != nil {
		return nil, fmt.Errorf("list eligible tasks: %w", err)
	}
	return tasks, nil
}

// ListByFaculty returns the tasks a faculty member owns.
func (r *TaskRepository) ListByFaculty(ctx context.Context, facultyID string) ([]models.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE faculty_id = $1 ORDER BY created_at DESC`
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, facultyID); err != nil {
		return nil, fmt.Errorf("list faculty tasks: %w", err)
	}
	return tasks, nil
}

// decrementTaskSlot is a single conditional UPDATE so concurrent callers cannot push slots_left below zero.
func decrementTaskSlot(ctx context.Context, q sqlx.QueryerContext, taskID string) (models.SlotClaim, error) {
	const query = `UPDATE tasks SET slots_left = slots_left - 1
WHERE id = $1 AND slots_left >= 1
RETURNING slot, slots_left`
	var claim models.SlotClaim
	if err := sqlx.GetContext(ctx, q, &claim, query, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SlotClaim{}, ErrSlotsExhausted
		}
		return models.SlotClaim{}, fmt.Errorf("decrement task slot: %w", err)
	}
	return claim, nil
}
