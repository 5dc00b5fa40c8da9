package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-rewards-api/internal/models"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
	"github.com/noah-isme/campus-rewards-api/pkg/payment"
)

type paymentAttemptRepository interface {
	Begin(ctx context.Context, attempt *models.PaymentAttempt) error
	FindByKey(ctx context.Context, key string) (*models.PaymentAttempt, error)
	MarkSucceeded(ctx context.Context, id, transactionRef string) error
	MarkFailed(ctx context.Context, id, reason string) error
	MarkUnknown(ctx context.Context, id, reason string) error
	MarkSettled(ctx context.Context, id string) error
}

type transferGateway interface {
	Transfer(ctx context.Context, req payment.TransferRequest) (string, error)
}

// PayoutRequest describes one money movement keyed for idempotency.
type PayoutRequest struct {
	Key           string
	Purpose       models.PaymentPurpose
	StudentID     string
	SubjectID     string
	ActorID       string
	Amount        decimal.Decimal
	Source        string
	Destination   string
	Authorization string
	Memo          string
}

// PayoutService records every transfer before issuing it so a key is paid at most once.
type PayoutService struct {
	repo    paymentAttemptRepository
	gateway transferGateway
	metrics *MetricsService
	logger  *zap.Logger
	timeout time.Duration
}

// NewPayoutService constructs a PayoutService.
func NewPayoutService(repo paymentAttemptRepository, gateway transferGateway, metrics *MetricsService, logger *zap.Logger, timeout time.Duration) *PayoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PayoutService{repo: repo, gateway: gateway, metrics: metrics, logger: logger, timeout: timeout}
}

// Lookup returns the attempt recorded for key, or nil when none exists.
func (s *PayoutService) Lookup(ctx context.Context, key string) (*models.PaymentAttempt, error) {
	attempt, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment attempt")
	}
	return attempt, nil
}

// Execute pays req at most once per key. A previously succeeded attempt is returned without a new
// transfer. A pending or unknown attempt blocks with PAYMENT_STATUS_UNKNOWN until reconciled.
// Failure returns PAYMENT_FAILED and the attempt may be retried.
func (s *PayoutService) Execute(ctx context.Context, req PayoutRequest) (*models.PaymentAttempt, error) {
	existing, err := s.Lookup(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case models.PaymentStatusSucceeded:
			s.logger.Info("reusing settled transfer", zap.String("key", req.Key), zap.String("transaction_ref", derefString(existing.TransactionRef)))
			return existing, nil
		case models.PaymentStatusPending, models.PaymentStatusUnknown:
			return existing, appErrors.Clone(appErrors.ErrPaymentStatusUnknown, "a previous payment for this record is awaiting reconciliation")
		}
	}

	attempt := &models.PaymentAttempt{
		IdempotencyKey: req.Key,
		Purpose:        req.Purpose,
		StudentID:      req.StudentID,
		SubjectID:      req.SubjectID,
		ActorID:        req.ActorID,
		Amount:         req.Amount,
		Source:         req.Source,
		Destination:    req.Destination,
		Memo:           req.Memo,
	}
	if err := s.repo.Begin(ctx, attempt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrOperationInProgress, "payment for this record was started concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment attempt")
	}

	// The outcome must be recorded even if the caller goes away mid-transfer.
	bg := context.WithoutCancel(ctx)
	callCtx, cancel := context.WithTimeout(bg, s.timeout)
	defer cancel()

	start := time.Now()
	ref, err := s.gateway.Transfer(callCtx, payment.TransferRequest{
		Amount:         req.Amount,
		Source:         req.Source,
		Destination:    req.Destination,
		Authorization:  req.Authorization,
		Memo:           req.Memo,
		IdempotencyKey: req.Key,
	})
	elapsed := time.Since(start)
	fields := []zap.Field{
		zap.String("key", req.Key),
		zap.String("attempt_id", attempt.ID),
		zap.String("purpose", string(req.Purpose)),
		zap.Duration("elapsed", elapsed),
	}

	switch {
	case err == nil:
		attempt.Status = models.PaymentStatusSucceeded
		attempt.TransactionRef = &ref
		s.metrics.RecordPayment(req.Purpose, attempt.Status, elapsed)
		if markErr := s.repo.MarkSucceeded(bg, attempt.ID, ref); markErr != nil {
			s.logger.Error("transfer succeeded but could not be recorded", append(fields, zap.String("transaction_ref", ref), zap.Error(markErr))...)
		}
		return attempt, nil

	case errors.Is(err, payment.ErrTransferFailed):
		reason := err.Error()
		attempt.Status = models.PaymentStatusFailed
		attempt.FailureReason = &reason
		s.metrics.RecordPayment(req.Purpose, attempt.Status, elapsed)
		if markErr := s.repo.MarkFailed(bg, attempt.ID, reason); markErr != nil {
			s.logger.Error("failed to record rejected transfer", append(fields, zap.Error(markErr))...)
		}
		s.logger.Warn("transfer rejected", append(fields, zap.Error(err))...)
		return attempt, appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status, appErrors.ErrPaymentFailed.Message)

	default:
		reason := err.Error()
		attempt.Status = models.PaymentStatusUnknown
		attempt.FailureReason = &reason
		s.metrics.RecordPayment(req.Purpose, attempt.Status, elapsed)
		if markErr := s.repo.MarkUnknown(bg, attempt.ID, reason); markErr != nil {
			s.logger.Error("failed to record unknown transfer", append(fields, zap.Error(markErr))...)
		}
		s.logger.Error("transfer outcome unknown, awaiting reconciliation", append(fields, zap.Error(err))...)
		return attempt, appErrors.Wrap(err, appErrors.ErrPaymentStatusUnknown.Code, appErrors.ErrPaymentStatusUnknown.Status, appErrors.ErrPaymentStatusUnknown.Message)
	}
}

// Settle marks the local effects of attempt as applied.
func (s *PayoutService) Settle(ctx context.Context, attempt *models.PaymentAttempt) {
	if attempt == nil || attempt.ID == "" {
		return
	}
	if err := s.repo.MarkSettled(context.WithoutCancel(ctx), attempt.ID); err != nil {
		s.logger.Warn("failed to mark payment settled", zap.String("attempt_id", attempt.ID), zap.Error(err))
	}
}
