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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/aprendices-roster/api/swagger"
	"github.com/noah-isme/aprendices-roster/internal/handler"
	"github.com/noah-isme/aprendices-roster/internal/repository"
	"github.com/noah-isme/aprendices-roster/internal/service"
	"github.com/noah-isme/aprendices-roster/pkg/cache"
	"github.com/noah-isme/aprendices-roster/pkg/config"
	"github.com/noah-isme/aprendices-roster/pkg/database"
	"github.com/noah-isme/aprendices-roster/pkg/debounce"
	"github.com/noah-isme/aprendices-roster/pkg/jobs"
	"github.com/noah-isme/aprendices-roster/pkg/logger"
	"github.com/noah-isme/aprendices-roster/pkg/storage"
)

const (
	jobSweepViewers   = "viewers.sweep"
	jobCleanupExports = "exports.cleanup"
)

// @title Aprendices Roster API
// @version 1.0.0
// @description Roster viewer for SENA enrollees grouped by ficha
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	var redisClient *redis.Client
	if cfg.Storage.Session == config.StoreRedis || cfg.Roster.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis, logr)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close() //nolint:errcheck
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var durable service.KVStore = repository.NewMemoryStore(0)
	if cfg.Storage.Durable == config.StorePostgres {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		if err := database.Migrate(db); err != nil {
			logr.Fatal("failed to migrate postgres", zap.Error(err))
		}
		durable = repository.NewPostgresStore(db)
		checks["postgres"] = db.PingContext
	}

	var sweepers []storeSweeper
	var session service.KVStore
	if cfg.Storage.Session == config.StoreRedis {
		session = repository.NewRedisStore(redisClient, "roster:session", cfg.Storage.SessionTTL)
	} else {
		memory := repository.NewMemoryStore(cfg.Storage.SessionTTL)
		sweepers = append(sweepers, memory)
		session = memory
	}

	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, ""),
		metrics,
		cfg.Roster.CacheTTL,
		logr,
		cfg.Roster.CacheEnabled && redisClient != nil,
	)
	roster := service.NewRosterService(
		repository.NewRosterRepository(cfg.Roster.URL, nil, cfg.Roster.FetchTimeout, logr),
		cacheSvc,
		cfg.Roster.CacheTTL,
		metrics,
		logr,
	)

	auth, err := service.NewAuthService(validator.New(), logr, service.AuthConfig{
		SharedPassword:     cfg.Auth.SharedPassword,
		SharedPasswordHash: cfg.Auth.SharedPasswordHash,
		TokenSecret:        cfg.Auth.ClientTokenSecret,
		ClientTokenTTL:     cfg.Auth.ClientCookieTTL,
	})
	if err != nil {
		logr.Fatal("failed to init auth", zap.Error(err))
	}

	viewers := service.NewViewerService(service.ViewerDeps{
		Roster:    roster,
		Auth:      auth,
		Durable:   durable,
		Session:   session,
		Metrics:   metrics,
		Scheduler: debounce.RealScheduler{},
		Logger:    logr,
	}, service.ViewerConfig{
		SearchDebounce:     cfg.Viewer.SearchDebounce,
		SearchMinChars:     cfg.Viewer.SearchMinChars,
		SearchHistoryLimit: cfg.Viewer.SearchHistoryLimit,
		IdleTTL:            cfg.Viewer.IdleTTL,
	})

	handlers := handler.Handlers{
		Page:    handler.NewPageHandler(viewers, cfg.Exports.Enabled, logr),
		Viewer:  handler.NewViewerHandler(viewers, cfg.Viewer.SearchDebounce),
		Metrics: handler.NewMetricsHandler(metrics, checks),
	}

	var exports *service.ExportService
	if cfg.Exports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exports = service.NewExportService(files, signer, service.ExportConfig{}, logr, nil, nil)
		handlers.Export = handler.NewExportHandler(viewers, exports)
	}

	router, err := handler.NewRouter(handler.RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		SecureCookies:  cfg.Env == config.EnvProduction,
	}, logr, metrics, auth, handlers)
	if err != nil {
		logr.Fatal("failed to build router", zap.Error(err))
	}
	if cfg.Env != config.EnvProduction {
		router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	maintenance := startMaintenance(ctx, logr, viewers, sweepers, exports, cfg)
	defer maintenance.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
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

// storeSweeper is an in-process store whose expired scopes must be dropped
// explicitly.
type storeSweeper interface {
	Sweep() int
}

// startMaintenance runs the idle viewer and session store sweep and, when
// exports are enabled, the removal of expired files.
func startMaintenance(ctx context.Context, logr *zap.Logger, viewers *service.ViewerService, sweepers []storeSweeper, exports *service.ExportService, cfg *config.Config) *jobs.Queue {
	mux := jobs.NewMux()
	mux.Handle(jobSweepViewers, func(context.Context, jobs.Job) error {
		viewers.Sweep()
		for _, store := range sweepers {
			if removed := store.Sweep(); removed > 0 {
				logr.Debug("expired storage scopes removed", zap.Int("scopes", removed))
			}
		}
		return nil
	})
	if exports != nil {
		mux.Handle(jobCleanupExports, func(ctx context.Context, _ jobs.Job) error {
			_, err := exports.Cleanup(ctx)
			return err
		})
	}

	queue := jobs.NewQueue("maintenance", mux.Dispatch, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 4,
		MaxRetries: 1,
		RetryDelay: 30 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)

	sweepEvery := cfg.Viewer.IdleTTL / 4
	if sweepEvery < time.Minute {
		sweepEvery = time.Minute
	}
	queue.Every(ctx, sweepEvery, jobSweepViewers)
	if exports != nil {
		queue.Every(ctx, cfg.Exports.CleanupInterval, jobCleanupExports)
	}
	return queue
}
