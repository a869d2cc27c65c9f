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

	_ "github.com/clipflow/clipflow-api/api/swagger"
	"github.com/clipflow/clipflow-api/internal/handler"
	"github.com/clipflow/clipflow-api/internal/identify"
	"github.com/clipflow/clipflow-api/internal/llm"
	internalmiddleware "github.com/clipflow/clipflow-api/internal/middleware"
	"github.com/clipflow/clipflow-api/internal/models"
	"github.com/clipflow/clipflow-api/internal/repository"
	"github.com/clipflow/clipflow-api/internal/service"
	"github.com/clipflow/clipflow-api/internal/transcription"
	"github.com/clipflow/clipflow-api/pkg/cache"
	"github.com/clipflow/clipflow-api/pkg/config"
	"github.com/clipflow/clipflow-api/pkg/database"
	"github.com/clipflow/clipflow-api/pkg/jobs"
	"github.com/clipflow/clipflow-api/pkg/logger"
	corsmiddleware "github.com/clipflow/clipflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/clipflow/clipflow-api/pkg/middleware/requestid"
	"github.com/clipflow/clipflow-api/pkg/storage"
)

// @title ClipFlow API
// @version 1.0.0
// @description Video management and student identification for coaching teams
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()

	// Redis is optional: without it dashboards are computed on every request.
	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		repo := repository.NewCacheRepository(redisClient, logr)
		defer repo.Close() //nolint:errcheck
		cacheRepo = repo
	}

	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Dashboard.CacheTTL, logr, cacheRepo != nil)

	userRepo := repository.NewUserRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	videoRepo := repository.NewVideoRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "clipflow-api",
	})
	userService := service.NewUserService(userRepo, validate, logr)
	teamService := service.NewTeamService(teamRepo, cacheService, validate, logr)
	studentService := service.NewStudentService(studentRepo, cacheService, validate, logr)
	rosterService := service.NewRosterService(studentService, logr)

	llmClient := llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	engine := identify.NewEngine(llmClient, identify.PoliciesFromConfig(cfg.Identify), logr)
	identificationService := service.NewIdentificationService(videoRepo, studentRepo, engine, userRepo, cacheService, metricsService, logr)

	identifyQueue := jobs.NewQueue("identify", func(ctx context.Context, job jobs.Job) error {
		videoID, ok := job.Payload.(string)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		_, err := identificationService.IdentifyVideo(ctx, videoID, false)
		return err
	}, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.BufferSize,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})

	transcriptionClient := transcription.NewClient(transcription.Config{
		Enabled: cfg.Transcription.Enabled,
		BaseURL: cfg.Transcription.BaseURL,
		APIKey:  cfg.Transcription.APIKey,
	})
	transcriptionService := service.NewTranscriptionService(videoRepo, studentRepo, transcriptionClient, identifyQueue, logr)

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init media storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	videoService := service.NewVideoService(videoRepo, store, signer, transcriptionService, cfg.Uploads, validate, logr)

	dashboardService := service.NewDashboardService(studentRepo, videoRepo, cacheService, cfg.Dashboard.CacheTTL, logr)
	reportService := service.NewReportService(videoRepo, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	identifyQueue.Start(rootCtx)
	defer identifyQueue.Stop()
	go transcriptionService.Run(rootCtx, cfg.Transcription.PollInterval)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	teamHandler := handler.NewTeamHandler(teamService)
	studentHandler := handler.NewStudentHandler(studentService, rosterService)
	videoHandler := handler.NewVideoHandler(videoService, transcriptionService)
	identificationHandler := handler.NewIdentificationHandler(identificationService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	reportHandler := handler.NewReportHandler(reportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsService))
	r.Use(internalmiddleware.WithResponseMeta())
	r.MaxMultipartMemory = 32 << 20

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)

	authed := api.Group("")
	authed.Use(internalmiddleware.JWT(authService))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	users := authed.Group("/users")
	users.GET("", internalmiddleware.RequireRoles(models.RoleAdmin), userHandler.List)
	users.GET("/:id", internalmiddleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
	users.POST("", internalmiddleware.RequireRoles(models.RoleAdmin), userHandler.Create)
	users.PUT("/:id", internalmiddleware.RequireRoles(models.RoleAdmin), userHandler.Update)
	users.DELETE("/:id", internalmiddleware.RequireRoles(models.RoleAdmin), userHandler.Delete)

	coachOrAdmin := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleCoach)

	teams := authed.Group("/teams")
	teams.GET("", teamHandler.List)
	teams.GET("/:id", teamHandler.Get)
	teams.POST("", coachOrAdmin, teamHandler.Create)
	teams.PUT("/:id", coachOrAdmin, teamHandler.Update)
	teams.DELETE("/:id", internalmiddleware.RequireRoles(models.RoleAdmin), teamHandler.Delete)
	teams.GET("/:id/roster", studentHandler.Roster)
	teams.POST("/:id/roster/import", coachOrAdmin, studentHandler.Import)
	teams.GET("/:id/roster/export", coachOrAdmin, studentHandler.Export)
	teams.GET("/:id/reports/attribution", coachOrAdmin, reportHandler.TeamAttribution)

	students := authed.Group("/students")
	students.GET("", studentHandler.List)
	students.GET("/:id", studentHandler.Get)
	students.POST("", coachOrAdmin, studentHandler.Create)
	students.PUT("/:id", coachOrAdmin, studentHandler.Update)
	students.DELETE("/:id", coachOrAdmin, studentHandler.Delete)

	videos := authed.Group("/videos")
	videos.GET("", videoHandler.List)
	videos.GET("/stream", videoHandler.Stream)
	videos.GET("/:id", videoHandler.Get)
	videos.POST("", coachOrAdmin, internalmiddleware.Audit(userRepo, models.AuditActionVideoUpload, "videos"), videoHandler.Upload)
	videos.PUT("/:id", coachOrAdmin, videoHandler.Update)
	videos.DELETE("/:id", coachOrAdmin, videoHandler.Delete)
	videos.GET("/:id/stream-url", videoHandler.StreamURL)
	videos.POST("/:id/transcript", coachOrAdmin, videoHandler.TranscriptWebhook)
	videos.POST("/:id/identify", coachOrAdmin, identificationHandler.Identify)
	videos.POST("/:id/assign", coachOrAdmin, identificationHandler.Assign)
	videos.DELETE("/:id/assign", coachOrAdmin, identificationHandler.Unassign)

	dashboards := authed.Group("/dashboards")
	dashboards.GET("/coach/:id", coachOrAdmin, dashboardHandler.Coach)
	dashboards.GET("/student", internalmiddleware.RequireRoles(models.RoleStudent), dashboardHandler.Student)
	dashboards.GET("/parent", internalmiddleware.RequireRoles(models.RoleParent), dashboardHandler.Parent)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
