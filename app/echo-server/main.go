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

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trieu/leo-activation/app/echo-server/router"
	"github.com/trieu/leo-activation/business/affinity"
	psqlRepo "github.com/trieu/leo-activation/internal/repository/postgres"
	redisRepo "github.com/trieu/leo-activation/internal/repository/redis"
	"github.com/trieu/leo-activation/internal/rest"
	"github.com/trieu/leo-activation/pkg/config"
	"github.com/trieu/leo-activation/pkg/database"
	redisdb "github.com/trieu/leo-activation/pkg/database/redis"
	"github.com/trieu/leo-activation/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting LEO Activation", "version", cfg.App.Version)

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate schema", "error", err)
	}

	logger.Info("Database connected successfully")

	redisClient, err := redisdb.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", "error", err)
	}
	defer func() {
		_ = redisdb.CloseRedisClient(redisClient)
	}()

	// Init repo
	tenantRepo := psqlRepo.NewTenantRepository(db)
	profileRepo := psqlRepo.NewProfileRepository(db)
	eventRepo := psqlRepo.NewEventRepository(db)
	affinityRepo := psqlRepo.NewAffinityRepository(db)
	identityCache := redisRepo.NewIdentityCache(redisClient)
	runLock := redisRepo.NewRunLock(redisClient)

	if err := eventRepo.EnsureDefaultWeights(context.Background()); err != nil {
		logger.Fatal("Failed to seed event weights", "error", err)
	}

	// Init service
	engineCfg := affinity.Config{
		HalfLifeDays: cfg.Scoring.HalfLifeDays,
		KFactor:      cfg.Scoring.KFactor,
		GCThreshold:  cfg.Scoring.GCThreshold,
	}
	affinityService := affinity.NewService(
		tenantRepo,
		profileRepo,
		eventRepo,
		affinityRepo,
		identityCache,
		runLock,
		engineCfg,
	)

	// Init handler
	recommendationHandler := rest.NewRecommendationHandler(affinityService, cfg.Scoring.DefaultTenant)
	eventHandler := rest.NewEventHandler(affinityService, cfg.Scoring.DefaultTenant)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(rest.RequestTrace())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Setup routes
	api := e.Group("/api/v1")
	router.SetRecommendationRoutes(api, recommendationHandler)
	router.SetEventRoutes(api, eventHandler)

	// Optional scheduler: owns the window checkpoint and drives GC plus the
	// batch job on a fixed interval. The engine itself only ever sees
	// explicit windows.
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	if cfg.Scheduler.Enabled {
		go runScheduler(schedulerCtx, affinityService, cfg)
	}

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}

// runScheduler runs the retention sweep and the batch scoring job every
// interval, scoring the most recent fully elapsed window. A failed GC pass is
// logged and retried next tick; it never blocks scoring.
func runScheduler(ctx context.Context, svc *affinity.Service, cfg *config.Config) {
	ticker := time.NewTicker(cfg.Scheduler.Interval)
	defer ticker.Stop()

	logger.Info("Scheduler started", "interval", cfg.Scheduler.Interval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			if _, err := svc.RunGarbageCollection(ctx); err != nil {
				logger.Error("scheduled GC failed", "error", err)
			}

			windowEnd := time.Now().UTC().Truncate(cfg.Scheduler.Interval)
			windowStart := windowEnd.Add(-cfg.Scheduler.Interval)

			touched, err := svc.RunBatchUpdate(ctx, cfg.Scoring.DefaultTenant, cfg.Scoring.DefaultSegment, windowStart, windowEnd)
			if err != nil {
				logger.Error("scheduled batch update failed",
					"window_start", windowStart,
					"window_end", windowEnd,
					"error", err,
				)
				continue
			}

			logger.Info("scheduled batch update complete", "rows", touched)
		}
	}
}
