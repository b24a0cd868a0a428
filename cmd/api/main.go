package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kursadbilgin/item-processor/internal/config"
	"github.com/kursadbilgin/item-processor/internal/handler"
	"github.com/kursadbilgin/item-processor/internal/infra/postgresql"
	"github.com/kursadbilgin/item-processor/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/item-processor/internal/infra/redis"
	"github.com/kursadbilgin/item-processor/internal/observability"
	"github.com/kursadbilgin/item-processor/internal/ratelimit"
	"github.com/kursadbilgin/item-processor/internal/repository"
	"github.com/kursadbilgin/item-processor/internal/service"
	"github.com/kursadbilgin/item-processor/internal/tracker"
	"github.com/kursadbilgin/item-processor/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.PoolOptions{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	metrics := observability.NewMetrics()

	statusMirror, err := infraredis.NewStatusMirror(rdb, "", cfg.StatusTTL())
	if err != nil {
		logger.Fatal("status mirror initialization failed", zap.Error(err))
	}
	statusTracker := tracker.New()
	statusTracker.SetMirror(statusMirror, func(op string, err error) {
		metrics.IncStatusMirrorFailure()
		logger.Warn("status mirror write failed", zap.String("op", op), zap.Error(err))
	})

	var limiter ratelimit.RateLimiter
	if cfg.ProcessRatePerSec > 0 {
		limiter, err = infraredis.NewRedisRateLimiter(rdb, cfg.ProcessRatePerSec)
		if err != nil {
			logger.Fatal("rate limiter initialization failed", zap.Error(err))
		}
	}

	itemRepo := repository.NewGormItemRepo(db)

	itemService, err := service.NewItemService(itemRepo, logger)
	if err != nil {
		logger.Fatal("item service initialization failed", zap.Error(err))
	}

	processingService, err := service.NewProcessingService(itemRepo, statusTracker, limiter, service.ProcessingOptions{
		Concurrency: cfg.ProcessConcurrency,
		Delay:       cfg.ProcessDelay(),
		TaskTimeout: cfg.ProcessTaskTimeout(),
	}, logger)
	if err != nil {
		logger.Fatal("processing service initialization failed", zap.Error(err))
	}
	processingService.SetMetrics(metrics)

	server := transport.NewHTTPServer(transport.ServerConfig{
		Name: "item-processor",
		Port: cfg.APIPort,
	}, metrics, logger)

	handler.RegisterHealthRoutes(server.Router(), handler.PostgresCheck(sqlDB), handler.RedisCheck(rdb))
	if err := handler.RegisterItemRoutes(server.Router(), itemService, processingService); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})

	if interval := cfg.ProcessInterval(); interval > 0 {
		scheduler, err := service.NewProcessScheduler(processingService, interval, logger)
		if err != nil {
			logger.Fatal("process scheduler initialization failed", zap.Error(err))
		}
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
	}

	logger.Info("item-processor api started",
		zap.Int("port", cfg.APIPort),
		zap.Int("processConcurrency", cfg.ProcessConcurrency),
	)

	if err := g.Wait(); err != nil {
		logger.Error("item-processor stopped with error", zap.Error(err))
		return
	}
	logger.Info("item-processor stopped")
}
