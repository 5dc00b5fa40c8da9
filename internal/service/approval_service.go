package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-rewards-api/internal/dto"
	"github.com/noah-isme/campus-rewards-api/internal/models"
	"github.com/noah-isme/campus-rewards-api/internal/repository"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
)

type approvalRepository interface {
	Find(ctx context.Context, studentID, taskID string) (*models.Assignment, error)
	FindCompleted(ctx context.Context, studentID, taskID string) (*models.CompletedAssignment, error)
	Reject(ctx context.Context, facultyID, studentID, taskID, reason string) error
	Archive(ctx context.Context, completed *models.CompletedAssignment) error
}

type payoutExecutor interface {
	Lookup(ctx context.Context, key string) (*models.PaymentAttempt, error)
	Execute(ctx context.Context, req PayoutRequest) (*models.PaymentAttempt, error)
	Settle(ctx context.Context, attempt *models.PaymentAttempt)
}

// ApprovalService is the faculty review step. Approval is the only transition that moves money.
type ApprovalService struct {
	repo            approvalRepository
	students        studentReader
	payouts         payoutExecutor
	locker          PairLocker
	audit           auditLogger
	metrics         *MetricsService
	validator       *validator.Validate
	logger          *zap.Logger
	treasuryAddress string
}

// NewApprovalService constructs an ApprovalService. Task rewards are paid from treasuryAddress.
func NewApprovalService(repo approvalRepository, students studentReader, payouts payoutExecutor, locker PairLocker, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, treasuryAddress string) *ApprovalService {
	if validate == nil {
		validate = dto.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewKeyedLocker()
	}
	return &ApprovalService{
		repo:            repo,
		students:        students,
		payouts:         payouts,
		locker:          locker,
		audit:           audit,
		metrics:         metrics,
		validator:       validate,
		logger:          logger,
		treasuryAddress: treasuryAddress,
	}
}

// Reject returns a SUBMITTED assignment to the student with a reason. The slot stays consumed.
func (s *ApprovalService) Reject(ctx context.Context, actor *models.JWTClaims, req dto.ReviewRequest) (*models.Assignment, error) {
	reason, err := s.checkReview(actor, req)
	if err != nil {
		return nil, err
	}
	key := models.TaskPaymentKey(req.StudentID, req.TaskID)
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, lockFailure(err)
	}
	defer unlock()

	assignment, err := s.ownedAssignment(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	if assignment.State() != models.AssignmentStateSubmitted {
		return nil, appErrors.Clone(appErrors.ErrNotSubmitted, "")
	}
	attempt, err := s.payouts.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if attempt != nil && attempt.Status != models.PaymentStatusFailed {
		return nil, appErrors.Clone(appErrors.ErrPaymentStatusUnknown, "a payment for this assignment is awaiting reconciliation")
	}

	if err := s.repo.Reject(ctx, actor.UserID, req.StudentID, req.TaskID, reason); err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, appErrors.Clone(appErrors.ErrNotSubmitted, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject assignment")
	}

	recordAudit(ctx, s.audit, s.logger, auditEntry{
		Actor:      actor,
		Action:     models.AuditActionTaskReject,
		Resource:   "assignment",
		ResourceID: key,
		Old:        map[string]string{"proof_ref": derefString(assignment.ProofRef)},
		New:        map[string]string{"reason": reason},
		Source:     "approval-service",
	})
	s.metrics.RecordTransition("reject")

	assignment.IsSubmitted = false
	assignment.IsRejected = true
	assignment.RejectionReason = &reason
	return assignment, nil
}

// Approve pays the frozen reward to the student and archives the assignment. A payment
// failure leaves the assignment untouched. Concurrent duplicates for one pair are serialized
// and the second observes ALREADY_COMPLETED.
func (s *ApprovalService) Approve(ctx context.Context, actor *models.JWTClaims, req dto.ReviewRequest) (*models.CompletedAssignment, error) {
	reason, err := s.checkReview(actor, req)
	if err != nil {
		return nil, err
	}
	key := models.TaskPaymentKey(req.StudentID, req.TaskID)
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, lockFailure(err)
	}
	defer unlock()

	if _, err := s.repo.FindCompleted(ctx, req.StudentID, req.TaskID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyCompleted, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check completion")
	}
	assignment, err := s.ownedAssignment(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	if assignment.State() != models.AssignmentStateSubmitted {
		return nil, appErrors.Clone(appErrors.ErrNotSubmitted, "")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if strings.TrimSpace(student.PayoutAddress) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student has no payout address")
	}

	attempt, err := s.payouts.Execute(ctx, PayoutRequest{
		Key:         key,
		Purpose:     models.PaymentPurposeTask,
		StudentID:   req.StudentID,
		SubjectID:   req.TaskID,
		ActorID:     actor.UserID,
		Amount:      assignment.RewardValue,
		Source:      s.treasuryAddress,
		Destination: student.PayoutAddress,
		Memo:        reason,
	})
	if err != nil {
		return nil, err
	}

	completed := completedFrom(assignment, reason, derefString(attempt.TransactionRef))
	if err := s.repo.Archive(context.WithoutCancel(ctx), completed); err != nil {
		if errors.Is(err, repository.ErrAlreadyCompleted) {
			s.payouts.Settle(ctx, attempt)
			return nil, appErrors.Clone(appErrors.ErrAlreadyCompleted, "")
		}
		s.logger.Error("payment issued but archival failed, left for reconciliation",
			zap.String("key", key),
			zap.String("transaction_ref", completed.TransactionRef),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "payment recorded, archival pending reconciliation")
	}
	s.payouts.Settle(ctx, attempt)

	recordAudit(ctx, s.audit, s.logger, auditEntry{
		Actor:      actor,
		Action:     models.AuditActionTaskApprove,
		Resource:   "assignment",
		ResourceID: key,
		New: map[string]string{
			"reason":          reason,
			"reward":          completed.RewardValue.String(),
			"transaction_ref": completed.TransactionRef,
		},
		Source: "approval-service",
	})
	s.metrics.RecordTransition("approve")
	return completed, nil
}

// SettleTaskPayment applies a reconciled task payment. A succeeded transfer archives the
// assignment with the approval reason stored on the attempt.
func (s *ApprovalService) SettleTaskPayment(ctx context.Context, attempt models.PaymentAttempt) error {
	if attempt.Status != models.PaymentStatusSucceeded {
		return nil
	}
	unlock, err := s.locker.Lock(ctx, attempt.IdempotencyKey)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.repo.FindCompleted(ctx, attempt.StudentID, attempt.SubjectID); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	assignment, err := s.repo.Find(ctx, attempt.StudentID, attempt.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("paid assignment no longer exists", zap.String("key", attempt.IdempotencyKey))
			return nil
		}
		return err
	}

	completed := completedFrom(assignment, attempt.Memo, derefString(attempt.TransactionRef))
	if err := s.repo.Archive(ctx, completed); err != nil && !errors.Is(err, repository.ErrAlreadyCompleted) {
		return err
	}
	recordAudit(ctx, s.audit, s.logger, auditEntry{
		Action:     models.AuditActionPaymentSettle,
		Resource:   "assignment",
		ResourceID: attempt.IdempotencyKey,
		New:        map[string]string{"transaction_ref": completed.TransactionRef, "reason": attempt.Memo},
		Source:     "reconciler",
	})
	s.metrics.RecordTransition("approve")
	return nil
}

func (s *ApprovalService) checkReview(actor *models.JWTClaims, req dto.ReviewRequest) (string, error) {
	if err := requireRole(actor, models.RoleFaculty); err != nil {
		return "", err
	}
	if err := s.validator.Struct(req); err != nil {
		return "", validationError(err, "invalid review payload")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return "", appErrors.Clone(appErrors.ErrReasonRequired, "")
	}
	return reason, nil
}

func (s *ApprovalService) ownedAssignment(ctx context.Context, actor *models.JWTClaims, req dto.ReviewRequest) (*models.Assignment, error) {
	assignment, err := s.repo.Find(ctx, req.StudentID, req.TaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAssignmentNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.FacultyID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrAssignmentNotFound, "")
	}
	return assignment, nil
}

func completedFrom(assignment *models.Assignment, reason, transactionRef string) *models.CompletedAssignment {
	return &models.CompletedAssignment{
		StudentID:       assignment.StudentID,
		TaskID:          assignment.TaskID,
		FacultyID:       assignment.FacultyID,
		RewardValue:     assignment.RewardValue,
		SlotNumber:      assignment.SlotNumber,
		ProofRef:        assignment.ProofRef,
		RejectionReason: assignment.RejectionReason,
		ApprovalReason:  reason,
		TransactionRef:  transactionRef,
		AcceptedAt:      assignment.AcceptedAt,
		ApprovedAt:      time.Now().UTC(),
	}
}
