package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-rewards-api/internal/dto"
	"github.com/noah-isme/campus-rewards-api/internal/models"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
)

const policyCacheKey = "policy:base_multiplier"

type policyRepository interface {
	Get(ctx context.Context, key string) (*models.Configuration, error)
	Upsert(ctx context.Context, cfg *models.Configuration) error
	InsertIfAbsent(ctx context.Context, cfg *models.Configuration) (bool, error)
}

// PolicyService owns the reward base multiplier singleton.
type PolicyService struct {
	repo      policyRepository
	audit     auditLogger
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	ttl       time.Duration
}

// NewPolicyService constructs a PolicyService.
func NewPolicyService(repo policyRepository, audit auditLogger, cache *CacheService, validate *validator.Validate, logger *zap.Logger, ttl time.Duration) *PolicyService {
	if validate == nil {
		validate = dto.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger, ttl: ttl}
}

// Current returns the policy, failing with POLICY_UNAVAILABLE when it was never initialised.
func (s *PolicyService) Current(ctx context.Context) (*models.RewardPolicy, error) {
	return readThrough(ctx, s.cache, policyCacheKey, s.ttl, s.load)
}

func (s *PolicyService) load(ctx context.Context) (*models.RewardPolicy, error) {
	cfg, err := s.repo.Get(ctx, models.PolicyKeyBaseMultiplier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPolicyUnavailable, "reward base multiplier has not been set")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reward policy")
	}
	value, err := decimal.NewFromString(cfg.Value)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPolicyUnavailable.Code, appErrors.ErrPolicyUnavailable.Status, "stored base multiplier is not a number")
	}
	return &models.RewardPolicy{BaseMultiplier: value, UpdatedBy: cfg.UpdatedBy, UpdatedAt: cfg.UpdatedAt}, nil
}

// BaseMultiplier satisfies the calculator's policy source.
func (s *PolicyService) BaseMultiplier(ctx context.Context) (decimal.Decimal, error) {
	policy, err := s.Current(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return policy.BaseMultiplier, nil
}

// Update sets the base multiplier. Admin only.
func (s *PolicyService) Update(ctx context.Context, actor *models.JWTClaims, req dto.UpdatePolicyRequest) (*models.RewardPolicy, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid policy payload")
	}

	var previous string
	if existing, err := s.repo.Get(ctx, models.PolicyKeyBaseMultiplier); err == nil {
		previous = existing.Value
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reward policy")
	}

	value := decimal.NewFromFloat(*req.BaseMultiplier)
	cfg := &models.Configuration{
		Key:       models.PolicyKeyBaseMultiplier,
		Value:     value.String(),
		Type:      models.ConfigurationTypeDecimal,
		UpdatedBy: userIDPtr(actor),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update reward policy")
	}
	policy := &models.RewardPolicy{BaseMultiplier: value, UpdatedBy: cfg.UpdatedBy, UpdatedAt: cfg.UpdatedAt}
	if err := s.cache.Invalidate(ctx, policyCacheKey); err != nil {
		policy.Warnings = append(policy.Warnings,
			fmt.Sprintf("cached policy was not invalidated; other instances may use the previous multiplier for up to %s", s.ttl))
	}

	recordAudit(ctx, s.audit, s.logger, auditEntry{
		Actor:      actor,
		Action:     models.AuditActionPolicyUpdate,
		Resource:   "policy",
		ResourceID: models.PolicyKeyBaseMultiplier,
		Old:        map[string]string{"base_multiplier": previous},
		New:        map[string]string{"base_multiplier": cfg.Value},
		Source:     "policy-service",
	})
	return policy, nil
}

// EnsureInitialized seeds the multiplier when it is absent and seed is set, then verifies the policy is readable.
func (s *PolicyService) EnsureInitialized(ctx context.Context, seed string) (*models.RewardPolicy, error) {
	if seed != "" {
		value, err := decimal.NewFromString(seed)
		if err != nil || value.IsNegative() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "reward policy seed must be a non-negative number")
		}
		inserted, err := s.repo.InsertIfAbsent(ctx, &models.Configuration{
			Key:       models.PolicyKeyBaseMultiplier,
			Value:     value.String(),
			Type:      models.ConfigurationTypeDecimal,
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed reward policy")
		}
		if inserted {
			s.logger.Info("reward policy seeded", zap.String("base_multiplier", value.String()))
			recordAudit(ctx, s.audit, s.logger, auditEntry{
				Action:     models.AuditActionPolicySeed,
				Resource:   "policy",
				ResourceID: models.PolicyKeyBaseMultiplier,
				New:        map[string]string{"base_multiplier": value.String()},
				Source:     "startup",
			})
		}
	}
	return s.Current(ctx)
}
