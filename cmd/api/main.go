package main

import (
	"context"
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

	_ "github.com/crou-platform/crou-housing-api/api/swagger"
	"github.com/crou-platform/crou-housing-api/internal/handler"
	"github.com/crou-platform/crou-housing-api/internal/messaging"
	"github.com/crou-platform/crou-housing-api/internal/middleware"
	"github.com/crou-platform/crou-housing-api/internal/models"
	"github.com/crou-platform/crou-housing-api/internal/repository"
	"github.com/crou-platform/crou-housing-api/internal/service"
	"github.com/crou-platform/crou-housing-api/pkg/cache"
	"github.com/crou-platform/crou-housing-api/pkg/config"
	"github.com/crou-platform/crou-housing-api/pkg/database"
	"github.com/crou-platform/crou-housing-api/pkg/logger"
	corsmiddleware "github.com/crou-platform/crou-housing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/crou-platform/crou-housing-api/pkg/middleware/requestid"
)

// @title CROU Housing API
// @version 1.0.0
// @description Multi-tenant student housing: eligibility scoring and batch room assignment
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, statistics caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Repositories.
	studentRepo := repository.NewStudentRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	requestRepo := repository.NewHousingRequestRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	occupancyRepo := repository.NewOccupancyRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Housing.StatsCacheTTL, logr, cfg.Housing.StatsCacheEnabled && redisClient != nil)

	var publisher *messaging.Publisher
	if cfg.Events.Enabled {
		publisher, err = messaging.NewPublisher(cfg.Events.AMQPURL, cfg.Events.QueueName, logr)
		if err != nil {
			logr.Sugar().Warnw("event publisher unavailable, assignment events disabled", "error", err)
			publisher = nil
		} else {
			defer publisher.Close() //nolint:errcheck
		}
	}

	// Services.
	eligibilitySvc := service.NewEligibilityService(studentRepo, occupancyRepo, requestRepo, logr)
	assignmentCfg := service.AssignmentConfig{StatsCacheTTL: cfg.Housing.StatsCacheTTL}
	var assignmentSvc *service.AssignmentService
	if publisher != nil {
		assignmentSvc = service.NewAssignmentService(batchRepo, requestRepo, roomRepo, studentRepo, db, cacheSvc, publisher, metricsSvc, logr, assignmentCfg)
	} else {
		assignmentSvc = service.NewAssignmentService(batchRepo, requestRepo, roomRepo, studentRepo, db, cacheSvc, nil, metricsSvc, logr, assignmentCfg)
	}
	batchSvc := service.NewBatchService(batchRepo, requestRepo, studentRepo, roomRepo, assignmentSvc, validate, logr, service.BatchQueueConfig{
		Workers:    cfg.Housing.QueueWorkers,
		BufferSize: cfg.Housing.QueueBufferSize,
	})
	requestSvc := service.NewRequestService(requestRepo, batchRepo, studentRepo, eligibilitySvc, validate, logr)
	roomSvc := service.NewRoomService(roomRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, occupancyRepo, validate, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "crou-housing-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	batchSvc.StartQueue(ctx)
	defer batchSvc.StopQueue()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	batchHandler := handler.NewBatchHandler(batchSvc, assignmentSvc, eligibilitySvc)
	requestHandler := handler.NewRequestHandler(requestSvc, assignmentSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metricsz", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	manage := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdminCrou, models.RoleGestionnaire)

	batches := protected.Group("/batches")
	batches.GET("", batchHandler.List)
	batches.GET("/:id", batchHandler.Get)
	batches.POST("", manage, batchHandler.Create)
	batches.POST("/:id/close", manage, middleware.Audit(userRepo, models.AuditActionBatchClose, "batch"), batchHandler.Close)
	batches.POST("/:id/process", manage, middleware.Audit(userRepo, models.AuditActionBatchProcess, "batch"), batchHandler.Process)
	batches.POST("/:id/process-async", manage, middleware.Audit(userRepo, models.AuditActionBatchProcess, "batch"), batchHandler.ProcessAsync)
	batches.GET("/:id/statistics", batchHandler.Statistics)
	batches.GET("/:id/eligibility-stats", batchHandler.EligibilityStats)
	batches.GET("/:id/results/export", batchHandler.Export)
	batches.POST("/:id/requests", requestHandler.Submit)

	requests := protected.Group("/requests")
	requests.GET("", requestHandler.List)
	requests.GET("/:id", requestHandler.Get)
	requests.GET("/:id/eligibility", requestHandler.Validate)
	requests.POST("/:id/review", manage, middleware.Audit(userRepo, models.AuditActionRequestReview, "housing_request"), requestHandler.Review)
	requests.POST("/:id/cancel-assignment", manage, middleware.Audit(userRepo, models.AuditActionAssignmentCancel, "housing_request"), requestHandler.CancelAssignment)

	rooms := protected.Group("/rooms")
	rooms.GET("", roomHandler.List)
	rooms.GET("/:id", roomHandler.Get)
	rooms.POST("", manage, roomHandler.Create)
	rooms.PUT("/:id", manage, roomHandler.Update)

	students := protected.Group("/students")
	students.GET("", studentHandler.List)
	students.GET("/:id", studentHandler.Get)
	students.GET("/:id/housing-history", studentHandler.HousingHistory)
	students.POST("", manage, studentHandler.Create)
	students.PUT("/:id", manage, studentHandler.Update)
	students.DELETE("/:id", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdminCrou), studentHandler.Deactivate)

	admin := protected.Group("/admin")
	admin.GET("/metrics", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdminCrou), metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
