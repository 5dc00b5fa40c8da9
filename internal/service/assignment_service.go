package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-rewards-api/internal/dto"
	"github.com/noah-isme/campus-rewards-api/internal/models"
	"github.com/noah-isme/campus-rewards-api/internal/repository"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
)

type assignmentRepository interface {
	Accept(ctx context.Context, assignment *models.Assignment) (models.SlotClaim, error)
	Find(ctx context.Context, studentID, taskID string) (*models.Assignment, error)
	FindCompleted(ctx context.Context, studentID, taskID string) (*models.CompletedAssignment, error)
	MarkSubmitted(ctx context.Context, studentID, taskID, proofRef string) error
	Resubmit(ctx context.Context, studentID, taskID, proofRef string) (*string, error)
}

type taskFinder interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
}

type proofStore interface {
	Store(ctx context.Context, studentID, taskID string, upload *ProofUpload) (string, error)
	Remove(ctx context.Context, ref string)
}

// AssignmentService drives the student side of the assignment lifecycle.
type AssignmentService struct {
	repo       assignmentRepository
	tasks      taskFinder
	calculator *RewardCalculator
	proofs     proofStore
	audit      auditLogger
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(repo assignmentRepository, tasks taskFinder, calculator *RewardCalculator, proofs proofStore, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = dto.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		repo:       repo,
		tasks:      tasks,
		calculator: calculator,
		proofs:     proofs,
		audit:      audit,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// Accept binds the calling student to a task, freezing the reward and consuming one slot.
func (s *AssignmentService) Accept(ctx context.Context, actor *models.JWTClaims, req dto.AcceptTaskRequest) (*models.Assignment, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid accept payload")
	}
	studentID := actor.UserID

	task, err := s.tasks.FindByID(ctx, req.TaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTaskNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	if _, err := s.repo.FindCompleted(ctx, studentID, task.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyCompleted, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check completion")
	}
	if _, err := s.repo.Find(ctx, studentID, task.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyAccepted, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}

	reward, err := s.calculator.Compute(ctx, task.Hours, task.Difficulty)
	if err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		StudentID:   studentID,
		TaskID:      task.ID,
		FacultyID:   task.FacultyID,
		RewardValue: reward,
	}
	claim, err := s.repo.Accept(ctx, assignment)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotsExhausted):
			return nil, appErrors.Clone(appErrors.ErrNoSlotsAvailable, "task has no slots left")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrAlreadyAccepted, "")
		case errors.Is(err, repository.ErrAlreadyCompleted):
			return nil, appErrors.Clone(appErrors.ErrAlreadyCompleted, "")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept task")
		}
	}

	s.metrics.RecordTransition("accept")
	s.logger.Info("task accepted",
		zap.String("student_id", studentID),
		zap.String("task_id", task.ID),
		zap.Int("slot_number", assignment.SlotNumber),
		zap.Int("slots_left", claim.SlotsLeft),
		zap.String("reward", reward.String()),
	)
	return assignment, nil
}

// SubmitProof attaches the first proof to an ACCEPTED assignment.
func (s *AssignmentService) SubmitProof(ctx context.Context, actor *models.JWTClaims, taskID string, upload *ProofUpload) (*models.Assignment, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	assignment, err := s.findLive(ctx, actor.UserID, taskID)
	if err != nil {
		return nil, err
	}
	if assignment.IsSubmitted {
		return nil, appErrors.Clone(appErrors.ErrAlreadySubmitted, "")
	}
	if assignment.IsRejected {
		return nil, appErrors.Clone(appErrors.ErrResubmissionRequired, "")
	}

	ref, err := s.proofs.Store(ctx, actor.UserID, taskID, upload)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkSubmitted(ctx, actor.UserID, taskID, ref); err != nil {
		s.proofs.Remove(ctx, ref)
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, appErrors.Clone(appErrors.ErrAlreadySubmitted, "assignment changed state, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit proof")
	}

	assignment.IsSubmitted = true
	assignment.ProofRef = &ref
	s.metrics.RecordTransition("submit")
	return assignment, nil
}

// ResubmitProof replaces the proof of a REJECTED assignment and returns it to review.
// The replaced reference is kept in the audit trail.
func (s *AssignmentService) ResubmitProof(ctx context.Context, actor *models.JWTClaims, taskID string, upload *ProofUpload) (*models.Assignment, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	assignment, err := s.findLive(ctx, actor.UserID, taskID)
	if err != nil {
		return nil, err
	}
	if !assignment.IsRejected {
		return nil, appErrors.Clone(appErrors.ErrNotRejected, "")
	}

	ref, err := s.proofs.Store(ctx, actor.UserID, taskID, upload)
	if err != nil {
		return nil, err
	}
	previous, err := s.repo.Resubmit(ctx, actor.UserID, taskID, ref)
	if err != nil {
		s.proofs.Remove(ctx, ref)
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, appErrors.Clone(appErrors.ErrNotRejected, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resubmit proof")
	}

	recordAudit(ctx, s.audit, s.logger, auditEntry{
		Actor:      actor,
		Action:     models.AuditActionTaskResubmit,
		Resource:   "assignment",
		ResourceID: models.TaskPaymentKey(actor.UserID, taskID),
		Old:        map[string]string{"proof_ref": derefString(previous), "rejection_reason": derefString(assignment.RejectionReason)},
		New:        map[string]string{"proof_ref": ref},
		Source:     "assignment-service",
	})

	assignment.IsSubmitted = true
	assignment.IsRejected = false
	assignment.ProofRef = &ref
	s.metrics.RecordTransition("resubmit")
	return assignment, nil
}

func (s *AssignmentService) findLive(ctx context.Context, studentID, taskID string) (*models.Assignment, error) {
	assignment, err := s.repo.Find(ctx, studentID, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotAccepted, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}
