package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-rewards-api/internal/dto"
	"github.com/noah-isme/campus-rewards-api/internal/models"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
)

type taskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id string) (*models.Task, error)
	ListEligible(ctx context.Context, branch, studentID string) ([]models.Task, error)
	ListByFaculty(ctx context.Context, facultyID string) ([]models.Task, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// TaskService manages the task catalog.
type TaskService struct {
	repo       taskRepository
	students   studentReader
	calculator *RewardCalculator
	audit      auditLogger
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTaskService constructs a TaskService.
func NewTaskService(repo taskRepository, students studentReader, calculator *RewardCalculator, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if validate == nil {
		validate = dto.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{repo: repo, students: students, calculator: calculator, audit: audit, validator: validate, logger: logger}
}

// Create offers a new task owned by the calling faculty member.
func (s *TaskService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateTaskRequest) (*models.Task, error) {
	if err := requireRole(actor, models.RoleFaculty); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid task payload")
	}

	branches := make(pq.StringArray, 0, len(req.Branches))
	for _, branch := range req.Branches {
		branches = append(branches, strings.TrimSpace(branch))
	}
	task := &models.Task{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Branches:    branches,
		Hours:       decimal.NewFromFloat(req.Hours),
		Category:    strings.TrimSpace(req.Category),
		Difficulty:  decimal.NewFromFloat(req.Difficulty),
		FacultyID:   actor.UserID,
		Slot:        req.Slot,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}

	recordAudit(ctx, s.audit, s.logger, auditEntry{
		Actor:      actor,
		Action:     models.AuditActionTaskCreate,
		Resource:   "task",
		ResourceID: task.ID,
		New:        map[string]interface{}{"name": task.Name, "slot": task.Slot, "branches": []string(task.Branches)},
		Source:     "task-service",
	})
	return task, nil
}

// ListEligible returns tasks open to the calling student with a freshly computed reward.
func (s *TaskService) ListEligible(ctx context.Context, actor *models.JWTClaims) ([]models.TaskView, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	branch, err := s.studentBranch(ctx, actor)
	if err != nil {
		return nil, err
	}
	base, err := s.calculator.Multiplier(ctx)
	if err != nil {
		return nil, err
	}

	tasks, err := s.repo.ListEligible(ctx, branch, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list eligible tasks")
	}
	views := make([]models.TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, models.TaskView{
			ID:          task.ID,
			Name:        task.Name,
			Description: task.Description,
			Category:    task.Category,
			Branches:    []string(task.Branches),
			FacultyID:   task.FacultyID,
			Slot:        task.Slot,
			SlotsLeft:   task.SlotsLeft,
			Reward:      s.calculator.ComputeWith(base, task.Hours, task.Difficulty),
		})
	}
	return views, nil
}

// ListMine returns the tasks owned by the calling faculty member.
func (s *TaskService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Task, error) {
	if err := requireRole(actor, models.RoleFaculty); err != nil {
		return nil, err
	}
	tasks, err := s.repo.ListByFaculty(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	return tasks, nil
}

func (s *TaskService) studentBranch(ctx context.Context, actor *models.JWTClaims) (string, error) {
	if branch := strings.TrimSpace(actor.Branch); branch != "" {
		return branch, nil
	}
	student, err := s.students.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return student.Branch, nil
}
