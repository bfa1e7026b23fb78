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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-roster-sync/api/swagger"
	"github.com/noah-isme/sma-roster-sync/internal/handler"
	"github.com/noah-isme/sma-roster-sync/internal/middleware"
	"github.com/noah-isme/sma-roster-sync/internal/registrar"
	"github.com/noah-isme/sma-roster-sync/internal/repository"
	"github.com/noah-isme/sma-roster-sync/internal/service"
	"github.com/noah-isme/sma-roster-sync/pkg/cache"
	"github.com/noah-isme/sma-roster-sync/pkg/config"
	"github.com/noah-isme/sma-roster-sync/pkg/database"
	"github.com/noah-isme/sma-roster-sync/pkg/jobs"
	"github.com/noah-isme/sma-roster-sync/pkg/lock"
	"github.com/noah-isme/sma-roster-sync/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-roster-sync/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-roster-sync/pkg/middleware/requestid"
)

// @title SMA Roster Sync
// @version 0.1.0
// @description Course enrolment reconciliation against the university registrar
// @BasePath /
// @schemes http

// instanceLocker adapts the Redis locker to the sync engine interface.
type instanceLocker struct {
	locker *lock.Locker
}

func (l instanceLocker) Acquire(ctx context.Context, key string) (service.LockHandle, bool, error) {
	lk, ok, err := l.locker.Acquire(ctx, key)
	if lk == nil {
		return nil, ok, err
	}
	return lk, ok, err
}

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	instanceRepo := repository.NewInstanceRepository(db)
	enrolmentRepo := repository.NewEnrolmentRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	identityRepo := repository.NewIdentityRepository(db)

	registrarClient := registrar.NewClient(cfg.Registrar, logr)
	locker := instanceLocker{locker: lock.NewLocker(redisClient, cfg.Sync.LockTTL)}

	metricsSvc := service.NewMetricsService()
	tokenSvc := service.NewTokenService(cfg.JWT)
	syncSvc := service.NewSyncService(
		instanceRepo, enrolmentRepo, roleRepo, identityRepo,
		registrarClient, locker,
		cfg.Registrar, cfg.Sync,
		logr, metricsSvc,
	)
	instanceSvc := service.NewInstanceService(instanceRepo, enrolmentRepo, roleRepo, logr)
	reportSvc := service.NewReportService(instanceRepo, logr, nil, nil)

	scheduler := jobs.NewScheduler("roster-sync", func(ctx context.Context) error {
		_, err := syncSvc.SyncAll(ctx, "")
		return err
	}, jobs.SchedulerConfig{Interval: cfg.Sync.Interval, Logger: logr})
	scheduler.Start(ctx)
	defer scheduler.Stop()

	instanceHandler := handler.NewInstanceHandler(instanceSvc, syncSvc, reportSvc)
	registrarHandler := handler.NewRegistrarHandler(registrarClient, identityRepo, cfg.Registrar, cfg.Sync)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc))
	{
		api.GET("/instances", instanceHandler.List)
		api.POST("/instances", instanceHandler.Create)
		api.GET("/instances/report", instanceHandler.Report)
		api.GET("/instances/:id", instanceHandler.Get)
		api.DELETE("/instances/:id", instanceHandler.Delete)
		api.PUT("/instances/:id/status", instanceHandler.SetStatus)
		api.POST("/instances/:id/sync", instanceHandler.SyncOne)
		api.POST("/sync", instanceHandler.SyncAll)
		api.POST("/purge", instanceHandler.Purge)

		api.GET("/registrar/sections", registrarHandler.Sections)
		api.GET("/registrar/sections/:id/roster", registrarHandler.Roster)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
