package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/supervisi-api/internal/handler"
	"github.com/noah-isme/supervisi-api/internal/repository"
	"github.com/noah-isme/supervisi-api/internal/service"
	"github.com/noah-isme/supervisi-api/pkg/cache"
	"github.com/noah-isme/supervisi-api/pkg/config"
	"github.com/noah-isme/supervisi-api/pkg/database"
	"github.com/noah-isme/supervisi-api/pkg/export"
	"github.com/noah-isme/supervisi-api/pkg/jobs"
	"github.com/noah-isme/supervisi-api/pkg/logger"
	"github.com/noah-isme/supervisi-api/pkg/storage"
)

// @title Supervisi Guru API
// @version 1.0.0
// @description Teacher supervision: sessions, per-aspect assessments, visit schedules and monthly reports.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const (
	shutdownTimeout = 10 * time.Second
	exportBuffer    = 64
	exportBackoff   = 2 * time.Second
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and rate limiting disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	deps, queue, err := buildDeps(ctx, cfg, db, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, deps, logr),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	if queue != nil {
		queue.Stop()
	}
	logr.Info("server stopped")
}

// buildDeps assembles repositories, services and handlers. The returned queue is nil
// when exports are disabled; otherwise it is already running.
func buildDeps(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (routerDeps, *jobs.Queue, error) {
	validate := service.NewValidator()
	metrics := service.NewMetricsService()
	loc := cfg.Location()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	users := repository.NewUserRepository(db)
	teachers := repository.NewTeacherRepository(db)
	supervisors := repository.NewSupervisorRepository(db)
	supervisions := repository.NewSupervisionRepository(db)
	assessments := repository.NewAssessmentRepository(db)
	schedules := repository.NewScheduleRepository(db)
	reports := repository.NewReportRepository(db)

	authSvc := service.NewAuthService(users, validate, cacheSvc, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(users, validate, cacheSvc, logr)
	teacherSvc := service.NewTeacherService(teachers, users, validate, logr)
	supervisorSvc := service.NewSupervisorService(supervisors, users, teachers, validate, logr)
	supervisionSvc := service.NewSupervisionService(supervisions, supervisors, teachers, assessments, cacheSvc, validate, loc.String(), logr)
	assessmentSvc := service.NewAssessmentService(assessments, supervisions, teachers, validate, logr)
	scheduleSvc := service.NewScheduleService(schedules, supervisors, teachers, export.NewICSExporter("-//Supervisi Guru//Jadwal//ID"), validate, logr)
	reportSvc := service.NewReportService(reports, supervisors, teachers, assessments, cacheSvc, metrics, validate, loc, logr)

	deps := routerDeps{
		Tokens:       authSvc,
		Audit:        users,
		Metrics:      metrics,
		RateCounter:  rateCounter(redisClient),
		Auth:         handler.NewAuthHandler(authSvc),
		Users:        handler.NewUserHandler(userSvc),
		Teachers:     handler.NewTeacherHandler(teacherSvc),
		Supervisors:  handler.NewSupervisorHandler(supervisorSvc),
		Supervisions: handler.NewSupervisionHandler(supervisionSvc),
		Assessments:  handler.NewAssessmentHandler(assessmentSvc),
		Schedules:    handler.NewScheduleHandler(scheduleSvc),
		System:       handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient)),
	}

	if !cfg.Exports.Enabled {
		deps.Reports = handler.NewReportHandler(reportSvc, nil, logr)
		return deps, nil, nil
	}

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return routerDeps{}, nil, fmt.Errorf("init export storage: %w", err)
	}
	exportsRepo := repository.NewReportExportRepository(db)
	exporter := service.NewExportService(
		store,
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
		loc,
		logr,
	)

	worker := service.NewReportExportWorker(exportsRepo, reports, exporter, metrics, logr)
	queue := jobs.New("report-exports", worker.Handle, jobs.Config{
		Workers:    cfg.Exports.WorkerConcurrency,
		BufferSize: exportBuffer,
		MaxRetries: cfg.Exports.WorkerRetries,
		Backoff:    exportBackoff,
		Logger:     logr,
		OnFailure:  worker.OnFailure,
	})
	queue.Start(ctx)

	exportSvc := service.NewReportExportService(exportsRepo, reports, queue, exporter, validate, logr, service.ReportExportConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	exportSvc.RecoverPending(ctx)
	exportSvc.StartCleanup(ctx)

	deps.Reports = handler.NewReportHandler(reportSvc, exportSvc, logr)
	deps.ExportsEnabled = true
	return deps, queue, nil
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	return checks
}
