package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-rewards-api/internal/dto"
	"github.com/noah-isme/campus-rewards-api/internal/models"
	"github.com/noah-isme/campus-rewards-api/internal/repository"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
)

type rewardRepository interface {
	Create(ctx context.Context, reward *models.Reward) error
	FindByID(ctx context.Context, id string) (*models.Reward, error)
	List(ctx context.Context) ([]models.Reward, error)
	Reserve(ctx context.Context, claim *models.RewardClaim) (models.SlotClaim, error)
	FindClaim(ctx context.Context, studentID, rewardID string) (*models.RewardClaim, error)
	ConfirmClaim(ctx context.Context, claimID, transactionRef string) error
	ReleaseClaim(ctx context.Context, claimID string) error
	ListClaimsByStudent(ctx context.Context, studentID string) ([]models.RewardClaimDetail, error)
}

// RedemptionService manages the reward catalog and student claims.
type RedemptionService struct {
	repo         rewardRepository
	students     studentReader
	payouts      payoutExecutor
	locker       PairLocker
	audit        auditLogger
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	adminAddress string
}

// NewRedemptionService constructs a RedemptionService. Claims are paid to adminAddress.
func NewRedemptionService(repo rewardRepository, students studentReader, payouts payoutExecutor, locker PairLocker, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, adminAddress string) *RedemptionService {
	if validate == nil {
		validate = dto.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewKeyedLocker()
	}
	return &RedemptionService{
		repo:         repo,
		students:     students,
		payouts:      payouts,
		locker:       locker,
		audit:        audit,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		adminAddress: adminAddress,
	}
}

// CreateReward adds an item to the catalog. Admin only.
func (s *RedemptionService) CreateReward(ctx context.Context, actor *models.JWTClaims, req dto.CreateRewardRequest) (*models.Reward, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid reward payload")
	}
	reward := &models.Reward{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Cost:        decimal.NewFromFloat(req.Cost),
		Slot:        req.Slot,
		CreatedBy:   actor.UserID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, reward); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reward")
	}
	recordAudit(ctx, s.audit, s.logger, auditEntry{
		Actor:      actor,
		Action:     models.AuditActionRewardCreate,
		Resource:   "reward",
		ResourceID: reward.ID,
		New:        map[string]interface{}{"name": reward.Name, "cost": reward.Cost.String(), "slot": reward.Slot},
		Source:     "redemption-service",
	})
	return reward, nil
}

// List returns the catalog to any authenticated caller.
func (s *RedemptionService) List(ctx context.Context, actor *models.JWTClaims) ([]models.Reward, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleFaculty, models.RoleStudent); err != nil {
		return nil, err
	}
	rewards, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rewards")
	}
	return rewards, nil
}

// ListClaims returns the calling student's claims.
func (s *RedemptionService) ListClaims(ctx context.Context, actor *models.JWTClaims) ([]models.RewardClaimDetail, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	claims, err := s.repo.ListClaimsByStudent(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reward claims")
	}
	return claims, nil
}

// Claim reserves a slot, pays the reward cost from the student to the admin address and
// confirms the claim. Any payout error other than an unknown outcome releases the slot; an
// unknown outcome keeps the reservation until reconciled.
func (s *RedemptionService) Claim(ctx context.Context, actor *models.JWTClaims, rewardID string, req dto.ClaimRewardRequest) (*models.RewardClaim, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid claim payload")
	}
	studentID := actor.UserID
	key := models.RewardPaymentKey(studentID, rewardID)
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, lockFailure(err)
	}
	defer unlock()

	reward, err := s.repo.FindByID(ctx, rewardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrRewardNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reward")
	}
	if _, err := s.repo.FindClaim(ctx, studentID, rewardID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyClaimed, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check claim")
	}
	if reward.SlotsLeft < 1 {
		return nil, appErrors.Clone(appErrors.ErrNoSlotsAvailable, "reward has no slots left")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if strings.TrimSpace(student.PayoutAddress) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student has no payout address")
	}

	claim := &models.RewardClaim{StudentID: studentID, RewardID: reward.ID, Cost: reward.Cost}
	if _, err := s.repo.Reserve(ctx, claim); err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotsExhausted):
			return nil, appErrors.Clone(appErrors.ErrNoSlotsAvailable, "reward has no slots left")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrAlreadyClaimed, "")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve reward")
		}
	}

	attempt, err := s.payouts.Execute(ctx, PayoutRequest{
		Key:           key,
		Purpose:       models.PaymentPurposeReward,
		StudentID:     studentID,
		SubjectID:     reward.ID,
		ActorID:       studentID,
		Amount:        reward.Cost,
		Source:        student.PayoutAddress,
		Destination:   s.adminAddress,
		Authorization: req.Authorization,
		Memo:          "reward " + reward.Name,
	})
	if err != nil {
		// Only an unknown outcome may have moved money; every other failure leaves nothing to reconcile.
		if !errors.Is(err, appErrors.ErrPaymentStatusUnknown) {
			if releaseErr := s.repo.ReleaseClaim(context.WithoutCancel(ctx), claim.ID); releaseErr != nil {
				s.logger.Error("failed to release reward reservation", zap.String("key", key), zap.Error(releaseErr))
			} else if attempt != nil && attempt.Status == models.PaymentStatusFailed {
				s.payouts.Settle(ctx, attempt)
			}
		}
		return nil, err
	}

	ref := derefString(attempt.TransactionRef)
	if err := s.repo.ConfirmClaim(context.WithoutCancel(ctx), claim.ID, ref); err != nil {
		s.logger.Error("payment issued but claim confirmation failed, left for reconciliation",
			zap.String("key", key), zap.String("transaction_ref", ref), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "payment recorded, claim pending reconciliation")
	}
	s.payouts.Settle(ctx, attempt)

	claim.Status = models.ClaimStatusClaimed
	claim.TransactionRef = &ref
	recordAudit(ctx, s.audit, s.logger, auditEntry{
		Actor:      actor,
		Action:     models.AuditActionRewardClaim,
		Resource:   "reward",
		ResourceID: reward.ID,
		New:        map[string]interface{}{"slot_number": claim.SlotNumber, "cost": claim.Cost.String(), "transaction_ref": ref},
		Source:     "redemption-service",
	})
	s.metrics.RecordTransition("claim")
	return claim, nil
}

// SettleRewardPayment confirms or releases the reservation behind a reconciled payment.
func (s *RedemptionService) SettleRewardPayment(ctx context.Context, attempt models.PaymentAttempt) error {
	unlock, err := s.locker.Lock(ctx, attempt.IdempotencyKey)
	if err != nil {
		return err
	}
	defer unlock()

	claim, err := s.repo.FindClaim(ctx, attempt.StudentID, attempt.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if claim.Status != models.ClaimStatusPending {
		return nil
	}

	switch attempt.Status {
	case models.PaymentStatusSucceeded:
		ref := derefString(attempt.TransactionRef)
		if err := s.repo.ConfirmClaim(ctx, claim.ID, ref); err != nil && !errors.Is(err, repository.ErrStateChanged) {
			return err
		}
		recordAudit(ctx, s.audit, s.logger, auditEntry{
			Action:     models.AuditActionPaymentSettle,
			Resource:   "reward",
			ResourceID: attempt.IdempotencyKey,
			New:        map[string]string{"transaction_ref": ref, "outcome": "claimed"},
			Source:     "reconciler",
		})
		s.metrics.RecordTransition("claim")
	case models.PaymentStatusFailed:
		if err := s.repo.ReleaseClaim(ctx, claim.ID); err != nil && !errors.Is(err, repository.ErrStateChanged) {
			return err
		}
		recordAudit(ctx, s.audit, s.logger, auditEntry{
			Action:     models.AuditActionPaymentSettle,
			Resource:   "reward",
			ResourceID: attempt.IdempotencyKey,
			New:        map[string]string{"outcome": "released"},
			Source:     "reconciler",
		})
	}
	return nil
}
