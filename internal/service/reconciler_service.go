package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-rewards-api/internal/models"
	"github.com/noah-isme/campus-rewards-api/pkg/jobs"
	"github.com/noah-isme/campus-rewards-api/pkg/payment"
)

// ReconcileJobType is the queue job that triggers one reconciliation pass.
const ReconcileJobType = "payments.reconcile"

type reconcileRepository interface {
	ListUnsettled(ctx context.Context, staleBefore time.Time, limit int) ([]models.PaymentAttempt, error)
	MarkSucceeded(ctx context.Context, id, transactionRef string) error
	MarkFailed(ctx context.Context, id, reason string) error
	MarkSettled(ctx context.Context, id string) error
}

type transferStatusChecker interface {
	Status(ctx context.Context, idempotencyKey string) (payment.TransferResult, error)
}

// PaymentSettler applies the local effects of a payment whose outcome is now known.
type PaymentSettler func(ctx context.Context, attempt models.PaymentAttempt) error

// ReconcilerConfig tunes a reconciliation pass.
type ReconcilerConfig struct {
	Workers    int
	BatchSize  int
	StaleAfter time.Duration
}

// ReconcileReport summarises one pass.
type ReconcileReport struct {
	Checked int `json:"checked"`
	Settled int `json:"settled"`
	Pending int `json:"pending"`
	Errors  int `json:"errors"`
}

// ReconcilerService resolves payments left PENDING or UNKNOWN and finishes their local effects.
type ReconcilerService struct {
	repo     reconcileRepository
	gateway  transferStatusChecker
	settlers map[models.PaymentPurpose]PaymentSettler
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      ReconcilerConfig
	now      func() time.Time
}

// NewReconcilerService constructs a reconciler.
func NewReconcilerService(repo reconcileRepository, gateway transferStatusChecker, metrics *MetricsService, logger *zap.Logger, cfg ReconcilerConfig) *ReconcilerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = time.Minute
	}
	return &ReconcilerService{
		repo:     repo,
		gateway:  gateway,
		settlers: map[models.PaymentPurpose]PaymentSettler{},
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Register binds a settler to a payment purpose.
func (s *ReconcilerService) Register(purpose models.PaymentPurpose, settler PaymentSettler) {
	s.settlers[purpose] = settler
}

// Handle adapts RunOnce to the job queue.
func (s *ReconcilerService) Handle(ctx context.Context, job jobs.Job) error {
	report, err := s.RunOnce(ctx)
	if report.Checked > 0 {
		s.logger.Info("payment reconciliation pass",
			zap.String("job_id", job.ID),
			zap.Int("checked", report.Checked),
			zap.Int("settled", report.Settled),
			zap.Int("pending", report.Pending),
			zap.Int("errors", report.Errors),
		)
	}
	return err
}

// RunOnce reconciles one batch of unsettled attempts concurrently.
func (s *ReconcilerService) RunOnce(ctx context.Context) (ReconcileReport, error) {
	attempts, err := s.repo.ListUnsettled(ctx, s.now().UTC().Add(-s.cfg.StaleAfter), s.cfg.BatchSize)
	if err != nil {
		return ReconcileReport{}, err
	}

	var (
		mu     sync.Mutex
		report = ReconcileReport{Checked: len(attempts)}
	)
	p := pool.New().WithMaxGoroutines(s.cfg.Workers).WithContext(ctx)
	for _, attempt := range attempts {
		attempt := attempt
		p.Go(func(ctx context.Context) error {
			outcome, err := s.reconcile(ctx, attempt)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors++
				s.metrics.RecordReconciliation("error")
				s.logger.Warn("payment reconciliation failed", zap.String("key", attempt.IdempotencyKey), zap.Error(err))
				return nil
			}
			s.metrics.RecordReconciliation(outcome)
			if outcome == "settled" {
				report.Settled++
			} else {
				report.Pending++
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *ReconcilerService) reconcile(ctx context.Context, attempt models.PaymentAttempt) (string, error) {
	if attempt.Outstanding() {
		result, err := s.gateway.Status(ctx, attempt.IdempotencyKey)
		switch {
		case errors.Is(err, payment.ErrTransferFailed):
			reason := err.Error()
			if err := s.repo.MarkFailed(ctx, attempt.ID, reason); err != nil {
				return "", err
			}
			attempt.Status = models.PaymentStatusFailed
			attempt.FailureReason = &reason
		case err != nil:
			return "pending", nil
		default:
			switch strings.ToUpper(result.Status) {
			case payment.StatusSucceeded:
				if result.TransactionRef == "" {
					return "pending", nil
				}
				if err := s.repo.MarkSucceeded(ctx, attempt.ID, result.TransactionRef); err != nil {
					return "", err
				}
				ref := result.TransactionRef
				attempt.Status = models.PaymentStatusSucceeded
				attempt.TransactionRef = &ref
			case payment.StatusFailed:
				reason := result.Reason
				if err := s.repo.MarkFailed(ctx, attempt.ID, reason); err != nil {
					return "", err
				}
				attempt.Status = models.PaymentStatusFailed
				attempt.FailureReason = &reason
			default:
				return "pending", nil
			}
		}
	}

	settler, ok := s.settlers[attempt.Purpose]
	if !ok {
		s.logger.Warn("no settler registered for payment purpose", zap.String("purpose", string(attempt.Purpose)))
		return "pending", nil
	}
	if err := settler(ctx, attempt); err != nil {
		return "", err
	}
	if err := s.repo.MarkSettled(ctx, attempt.ID); err != nil {
		return "", err
	}
	s.logger.Info("payment settled",
		zap.String("key", attempt.IdempotencyKey),
		zap.String("status", string(attempt.Status)),
		zap.String("transaction_ref", derefString(attempt.TransactionRef)),
	)
	return "settled", nil
}
