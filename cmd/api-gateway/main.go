package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-rewards-api/api/swagger"
	"github.com/noah-isme/campus-rewards-api/internal/dto"
	"github.com/noah-isme/campus-rewards-api/internal/handler"
	internalmiddleware "github.com/noah-isme/campus-rewards-api/internal/middleware"
	"github.com/noah-isme/campus-rewards-api/internal/models"
	"github.com/noah-isme/campus-rewards-api/internal/repository"
	"github.com/noah-isme/campus-rewards-api/internal/service"
	"github.com/noah-isme/campus-rewards-api/pkg/cache"
	"github.com/noah-isme/campus-rewards-api/pkg/config"
	"github.com/noah-isme/campus-rewards-api/pkg/database"
	"github.com/noah-isme/campus-rewards-api/pkg/export"
	"github.com/noah-isme/campus-rewards-api/pkg/jobs"
	"github.com/noah-isme/campus-rewards-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-rewards-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-rewards-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-rewards-api/pkg/payment"
	"github.com/noah-isme/campus-rewards-api/pkg/storage"
)

// @title Campus Rewards API
// @version 1.0.0
// @description Task, approval and reward redemption portal for students, faculty and admins.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and distributed locks disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	taskRepo := repository.NewTaskRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	queryRepo := repository.NewAssignmentQueryRepository(db)
	rewardRepo := repository.NewRewardRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	configRepo := repository.NewConfigurationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	metrics := service.NewMetricsService()
	validate := dto.NewValidator()

	checks := map[string]handler.ReadinessCheck{"database": db.PingContext}
	cacheService := service.NewCacheService(nil, metrics, cfg.Rewards.PolicyCacheTTL, logr)
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient)
		cacheService = service.NewCacheService(cacheRepo, metrics, cfg.Rewards.PolicyCacheTTL, logr)
		checks["redis"] = cacheRepo.Ping
	}

	policyService := service.NewPolicyService(configRepo, auditRepo, cacheService, validate, logr, cfg.Rewards.PolicyCacheTTL)
	if _, err := policyService.EnsureInitialized(ctx, cfg.Rewards.PolicySeed); err != nil {
		logr.Fatal("reward policy unavailable", zap.Error(err))
	}
	calculator := service.NewRewardCalculator(policyService, cfg.Rewards.Attendance)

	proofStore, err := storage.New(ctx, cfg.Proofs)
	if err != nil {
		logr.Fatal("failed to init proof storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Proofs.SignedURLSecret, cfg.Proofs.SignedURLTTL)
	proofService := service.NewProofService(proofStore, signer, assignmentRepo, logr, service.ProofServiceConfig{
		MaxFileSize:  cfg.Proofs.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Proofs.AllowedMIMEs,
		APIPrefix:    cfg.APIPrefix,
	})

	gateway := payment.NewHTTPGateway(payment.Config{
		BaseURL: cfg.Payment.BaseURL,
		APIKey:  cfg.Payment.APIKey,
		Timeout: cfg.Payment.Timeout,
	}, nil)
	payoutService := service.NewPayoutService(paymentRepo, gateway, metrics, logr, cfg.Payment.Timeout)

	var locker service.PairLocker = service.NewKeyedLocker()
	if redisClient != nil {
		locker = service.NewRedisLocker(repository.NewLockRepository(redisClient), cfg.Locks.TTL, logr)
	}

	taskService := service.NewTaskService(taskRepo, studentRepo, calculator, auditRepo, validate, logr)
	assignmentService := service.NewAssignmentService(assignmentRepo, taskRepo, calculator, proofService, auditRepo, metrics, validate, logr)
	approvalService := service.NewApprovalService(assignmentRepo, studentRepo, payoutService, locker, auditRepo, metrics, validate, logr, cfg.Payment.TreasuryAddress)
	redemptionService := service.NewRedemptionService(rewardRepo, studentRepo, payoutService, locker, auditRepo, metrics, validate, logr, cfg.Payment.AdminAddress)
	queryService := service.NewAssignmentQueryService(queryRepo, export.NewRenderer(), logr)

	reconciler := service.NewReconcilerService(paymentRepo, gateway, metrics, logr, service.ReconcilerConfig{
		Workers:    cfg.Reconciler.Workers,
		StaleAfter: 2 * cfg.Payment.Timeout,
	})
	reconciler.Register(models.PaymentPurposeTask, approvalService.SettleTaskPayment)
	reconciler.Register(models.PaymentPurposeReward, redemptionService.SettleRewardPayment)

	if cfg.Reconciler.Enabled {
		queue := jobs.NewQueue("payments", reconciler.Handle, jobs.QueueConfig{
			Workers:    1,
			MaxRetries: cfg.Reconciler.Retries,
			RetryDelay: 30 * time.Second,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		queue.Every(cfg.Reconciler.Interval, service.ReconcileJobType, nil)
	}

	authService := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})

	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Tasks:       handler.NewTaskHandler(taskService),
		Assignments: handler.NewAssignmentHandler(assignmentService, queryService),
		Approvals:   handler.NewApprovalHandler(approvalService, queryService, proofService),
		Completed:   handler.NewCompletedHandler(queryService),
		Rewards:     handler.NewRewardHandler(redemptionService),
		Policy:      handler.NewPolicyHandler(policyService),
		Proofs:      handler.NewProofHandler(proofService),
	}, internalmiddleware.JWT(authService))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
