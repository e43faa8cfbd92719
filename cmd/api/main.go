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
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/kru-apps/gradebook-api/api/swagger"
	"github.com/kru-apps/gradebook-api/internal/handler"
	"github.com/kru-apps/gradebook-api/internal/middleware"
	"github.com/kru-apps/gradebook-api/internal/repository"
	"github.com/kru-apps/gradebook-api/internal/service"
	"github.com/kru-apps/gradebook-api/pkg/cache"
	"github.com/kru-apps/gradebook-api/pkg/config"
	"github.com/kru-apps/gradebook-api/pkg/database"
	"github.com/kru-apps/gradebook-api/pkg/jobs"
	"github.com/kru-apps/gradebook-api/pkg/logger"
	corsmiddleware "github.com/kru-apps/gradebook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/kru-apps/gradebook-api/pkg/middleware/requestid"
	"github.com/kru-apps/gradebook-api/pkg/storage"
)

// @title Gradebook API
// @version 0.1.0
// @description Course gradebook with budgeted scoring and SGS exports
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, summary cache disabled", "error", err)
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	examRepo := repository.NewExamRepository(db)
	examScoreRepo := repository.NewExamScoreRepository(db)
	exportSettingsRepo := repository.NewExportSettingsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, tokenRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "gradebook-api",
	})
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, enrollmentRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, enrollmentRepo, assignmentRepo, submissionRepo, cacheRepo, metricsSvc, validate, logr)
	gradingSvc := service.NewGradingService(
		submissionRepo, examScoreRepo, courseSvc, assignmentRepo, examRepo,
		cacheRepo, cfg.Cache.SummaryTTL, metricsSvc, validate, logr,
	)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, submissionRepo, courseSvc, gradingSvc, metricsSvc, validate, logr)
	examSvc := service.NewExamService(examRepo, examScoreRepo, courseSvc, gradingSvc, validate, logr)
	analyticsSvc := service.NewAnalyticsService(gradingSvc, cacheRepo, cfg.Cache.SummaryTTL, logr)
	exportSvc := service.NewExportService(
		exportSettingsRepo, gradingSvc, examRepo, store, signer,
		metricsSvc, validate, logr,
		jobs.Options{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			RetryDelay: 5 * time.Second,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportSvc.Start(ctx)
	defer exportSvc.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Students:   handler.NewStudentHandler(studentSvc),
		Classrooms: handler.NewClassroomHandler(classroomSvc),
		Courses:    handler.NewCourseHandler(courseSvc),
		Assignment: handler.NewAssignmentHandler(assignmentSvc),
		Exams:      handler.NewExamHandler(examSvc),
		Grading:    handler.NewGradingHandler(gradingSvc),
		Analytics:  handler.NewAnalyticsHandler(analyticsSvc),
		Exports:    handler.NewExportHandler(exportSvc, courseSvc),
	}, authSvc)

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
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}
