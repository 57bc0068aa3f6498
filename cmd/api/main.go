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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ministry-learning-api/api/swagger"
	"github.com/noah-isme/ministry-learning-api/internal/handler"
	"github.com/noah-isme/ministry-learning-api/internal/middleware"
	"github.com/noah-isme/ministry-learning-api/internal/repository"
	"github.com/noah-isme/ministry-learning-api/internal/service"
	"github.com/noah-isme/ministry-learning-api/pkg/cache"
	"github.com/noah-isme/ministry-learning-api/pkg/config"
	"github.com/noah-isme/ministry-learning-api/pkg/database"
	"github.com/noah-isme/ministry-learning-api/pkg/export"
	"github.com/noah-isme/ministry-learning-api/pkg/jobs"
	"github.com/noah-isme/ministry-learning-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ministry-learning-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ministry-learning-api/pkg/middleware/requestid"
	"github.com/noah-isme/ministry-learning-api/pkg/storage"
)

// @title Ministry Learning API
// @version 1.0.0
// @description Enrollment, lesson progress, quizzes, streaks and certificates
// @BasePath /
// @schemes http https
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Migrations.AutoApply {
		if err := database.Migrate(db, cfg.Migrations.Path); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		logr.Info("migrations applied", zap.String("path", cfg.Migrations.Path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	location, err := time.LoadLocation(cfg.Streaks.Timezone)
	if err != nil {
		logr.Fatal("invalid STREAK_TIMEZONE", zap.String("timezone", cfg.Streaks.Timezone), zap.Error(err))
	}

	artifacts, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare certificate storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metricsSvc, cfg.Cache.OutlineTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	authSvc := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Audience: cfg.JWT.Audience})

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	progressRepo := repository.NewLessonProgressRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	statsRepo := repository.NewUserStatsRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	userRepo := repository.NewUserRepository(db)

	streakSvc := service.NewStreakService(db, statsRepo, location, metricsSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(db, enrollmentRepo, courseRepo, export.NewCSVExporter(), validate, metricsSvc, logr)
	quizSvc := service.NewQuizService(db, quizRepo, enrollmentRepo, cfg.Quiz.PassThreshold, validate, metricsSvc, logr)
	certificateSvc := service.NewCertificateService(
		certificateRepo, enrollmentRepo, courseRepo, userRepo,
		export.NewCertificatePDF(), artifacts, signer,
		service.CertificateConfig{DownloadBaseURL: cfg.Certificates.DownloadBaseURL},
		metricsSvc, logr,
	)

	progressDeps := service.ProgressDeps{
		Tx:           db,
		Enrollments:  enrollmentRepo,
		Progress:     progressRepo,
		Courses:      courseRepo,
		Certificates: certificateSvc,
		Streaks:      streakSvc,
		Quizzes:      quizSvc,
		Cache:        cacheSvc,
		Validator:    validate,
		Metrics:      metricsSvc,
		Logger:       logr,
	}
	if cfg.Certificates.RetryEnabled {
		retryQueue := jobs.NewQueue(service.CertificateRetryJob, certificateSvc.HandleRetryJob, jobs.QueueConfig{
			Workers:    cfg.Certificates.RetryWorkers,
			MaxRetries: cfg.Certificates.RetryAttempts,
			RetryDelay: cfg.Certificates.RetryDelay,
			Logger:     logr,
		})
		retryQueue.Start(ctx)
		defer retryQueue.Stop()
		progressDeps.Retries = retryQueue
	}
	progressSvc := service.NewProgressService(progressDeps, service.ProgressConfig{OutlineTTL: cfg.Cache.OutlineTTL})

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Enrollments:  handler.NewEnrollmentHandler(enrollmentSvc),
		Progress:     handler.NewProgressHandler(progressSvc),
		Certificates: handler.NewCertificateHandler(certificateSvc),
		Activity:     handler.NewActivityHandler(streakSvc),
		Metrics:      metricsHandler,
	}, authSvc, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}
