package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/nashmi-edu/referral-api/api/swagger"
	"github.com/nashmi-edu/referral-api/internal/handler"
	"github.com/nashmi-edu/referral-api/internal/middleware"
	"github.com/nashmi-edu/referral-api/internal/models"
	"github.com/nashmi-edu/referral-api/internal/notify"
	"github.com/nashmi-edu/referral-api/internal/repository"
	"github.com/nashmi-edu/referral-api/internal/service"
	"github.com/nashmi-edu/referral-api/pkg/cache"
	"github.com/nashmi-edu/referral-api/pkg/config"
	"github.com/nashmi-edu/referral-api/pkg/database"
	"github.com/nashmi-edu/referral-api/pkg/export"
	"github.com/nashmi-edu/referral-api/pkg/logger"
	corsmiddleware "github.com/nashmi-edu/referral-api/pkg/middleware/cors"
	reqidmiddleware "github.com/nashmi-edu/referral-api/pkg/middleware/requestid"
	"github.com/nashmi-edu/referral-api/pkg/storage"
)

// @title Referral API
// @version 1.0.0
// @description Referral and escalation workflow engine for school administration
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, procedure cache disabled", zap.Error(err))
		redisClient = nil
	}

	documents, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Fatal("failed to init document storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	var dispatcher notify.Dispatcher
	if cfg.Notifications.Enabled {
		dispatcher = notify.NewWebhookDispatcher(cfg.Notifications)
	} else {
		dispatcher = notify.NewConsoleDispatcher(logr)
	}

	referralRepo := repository.NewReferralRepository(db)
	workflowLogRepo := repository.NewWorkflowLogRepository(db)
	violationRepo := repository.NewViolationRepository(db)
	procedureRepo := repository.NewProcedureRepository(db)
	absenceRepo := repository.NewAbsenceCaseRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metricsService := service.NewMetricsService()
	procedureService := service.NewProcedureService(procedureRepo, cacheRepo, cfg.Procedures.CacheTTL, metricsService, validate, logr)
	referralService := service.NewReferralService(referralRepo, workflowLogRepo, violationRepo, procedureService,
		dispatcher, export.NewPDFExporter(), documents, signer, metricsService, validate, logr)
	absenceService := service.NewAbsenceService(absenceRepo, dispatcher, metricsService, validate, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Escalation.SweepEnabled {
		sweep := service.NewSweepService(attendanceRepo, absenceService, cfg.Escalation, metricsService, logr)
		go sweep.Run(rootCtx)
	}

	referralHandler := handler.NewReferralHandler(referralService)
	absenceHandler := handler.NewAbsenceHandler(absenceService)
	procedureHandler := handler.NewProcedureHandler(procedureService)
	documentHandler := handler.NewDocumentHandler(signer, documents)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Signed token downloads carry their own authorization.
	api.GET("/documents/:token", documentHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(cfg.JWT))
	{
		referrals := authed.Group("/referrals")
		referrals.POST("", referralHandler.Create)
		referrals.GET("", referralHandler.List)
		referrals.GET("/:id", referralHandler.Get)
		referrals.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleVicePrincipal), referralHandler.Delete)
		referrals.GET("/:id/log", referralHandler.Log)
		referrals.GET("/:id/log/export", referralHandler.ExportLog)
		referrals.POST("/:id/receive", referralHandler.Receive)
		referrals.POST("/:id/assign", referralHandler.Assign)
		referrals.POST("/:id/transfer", referralHandler.Transfer)
		referrals.POST("/:id/complete", referralHandler.Complete)
		referrals.POST("/:id/close", referralHandler.Close)
		referrals.POST("/:id/cancel", referralHandler.Cancel)
		referrals.POST("/:id/notes", referralHandler.AddNote)
		referrals.POST("/:id/violation", referralHandler.RecordViolation)
		referrals.POST("/:id/notify", referralHandler.NotifyParent)
		referrals.POST("/:id/document", referralHandler.GenerateDocument)

		authed.GET("/students/:id/violations", referralHandler.StudentViolations)

		absences := authed.Group("/absences")
		absences.POST("", absenceHandler.Open)
		absences.GET("", absenceHandler.List)
		absences.GET("/:id", absenceHandler.Get)
		absences.POST("/:id/actions/:key/done", absenceHandler.MarkActionDone)
		absences.POST("/:id/reevaluate", absenceHandler.Reevaluate)

		procedures := authed.Group("/procedures")
		procedures.GET("/:degree", procedureHandler.Ladder)
		procedures.PUT("", middleware.RequireRoles(models.RoleAdmin), procedureHandler.Upsert)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Warn("failed to close redis", zap.Error(err))
	}
}
