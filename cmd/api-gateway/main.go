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
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-adp-scheduler/api/swagger"
	"github.com/noah-isme/sma-adp-scheduler/internal/collaborator"
	"github.com/noah-isme/sma-adp-scheduler/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-adp-scheduler/internal/middleware"
	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	"github.com/noah-isme/sma-adp-scheduler/internal/repository"
	"github.com/noah-isme/sma-adp-scheduler/internal/scheduler"
	"github.com/noah-isme/sma-adp-scheduler/internal/service"
	"github.com/noah-isme/sma-adp-scheduler/internal/timegrid"
	"github.com/noah-isme/sma-adp-scheduler/pkg/cache"
	"github.com/noah-isme/sma-adp-scheduler/pkg/config"
	"github.com/noah-isme/sma-adp-scheduler/pkg/database"
	"github.com/noah-isme/sma-adp-scheduler/pkg/jobs"
	"github.com/noah-isme/sma-adp-scheduler/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-adp-scheduler/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-adp-scheduler/pkg/middleware/requestid"
)

// @title SMA ADP Scheduler API
// @version 1.0.0
// @description Weekly class schedules and the interactive calendar built on them
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, directory cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	scheduleRepo := repository.NewScheduleRepository(db)
	classRepo := repository.NewClassRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "scheduler", logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.DirectoryTTL, logr, cacheRepo.Enabled())
	directorySvc := service.NewDirectoryService(service.DirectoryRepositories{
		Classes:     classRepo,
		Classrooms:  classroomRepo,
		Teachers:    repository.NewTeacherRepository(db),
		Enrollments: repository.NewEnrollmentRepository(db),
		Guardians:   repository.NewGuardianRepository(db),
	}, cacheSvc, metrics, cfg.Cache.DirectoryTTL, logr)

	invalidations := jobs.NewQueue("cache-invalidation", directorySvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Cache.InvalidateWorkers,
		MaxRetries: cfg.Cache.InvalidateRetries,
		Logger:     logr,
	})
	invalidations.Start(ctx)
	defer invalidations.Stop()
	directorySvc.UseQueue(invalidations)

	scheduleSvc := service.NewScheduleService(scheduleRepo, classRepo, classroomRepo, validate, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	var collab scheduler.Collaborator = collaborator.NewLocal(scheduleSvc, directorySvc)
	if cfg.Scheduler.CollaboratorURL != "" {
		collab = collaborator.NewHTTPClient(cfg.Scheduler.CollaboratorURL, cfg.Scheduler.CollaboratorTimeout, logr)
		logr.Info("calendar sessions use remote collaborator", zap.String("url", cfg.Scheduler.CollaboratorURL))
	}

	grid := timegrid.New(cfg.Scheduler.GridStartHour, cfg.Scheduler.GridEndHour, float64(cfg.Scheduler.RowHeightPx))
	sessions := scheduler.NewRegistry(collab, scheduler.SessionConfig{
		Grid:            grid,
		DefaultDuration: time.Duration(cfg.Scheduler.DefaultDurationMinutes) * time.Minute,
		Logger:          logr,
		Recorder:        metrics,
	}, cfg.Scheduler.SessionTTL)

	checks := map[string]handler.Pinger{"postgres": handler.PingFunc(db.PingContext)}
	if cacheRepo.Enabled() {
		checks["redis"] = cacheRepo
	}

	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	directoryHandler := handler.NewDirectoryHandler(directorySvc)
	calendarHandler := handler.NewCalendarHandler(sessions, metrics, logr)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, internalmiddleware.JWT(authSvc))
	registerRoutes(api, scheduleHandler, directoryHandler, calendarHandler, metricsHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// registerRoutes mounts every authenticated route on api.
func registerRoutes(api *gin.RouterGroup, schedules *handler.ScheduleHandler, directory *handler.DirectoryHandler, calendar *handler.CalendarHandler, metrics *handler.MetricsHandler) {
	handler.RegisterScheduleRoutes(api, schedules)
	handler.RegisterDirectoryRoutes(api, directory)
	handler.RegisterCalendarRoutes(api.Group("/calendar"), calendar)
	api.GET("/metrics/summary", internalmiddleware.RequireRoles(models.RoleAdmin), metrics.Summary)
}
