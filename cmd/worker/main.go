// Package main runs the background job worker (orphan media cleanup).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/activity-hub/backend/config"
	"github.com/activity-hub/backend/internal/media"
	"github.com/activity-hub/backend/internal/worker"
	"github.com/activity-hub/backend/pkg/database"
	"github.com/activity-hub/backend/pkg/queue"
	"github.com/activity-hub/backend/pkg/redis"
	"github.com/activity-hub/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger,
		database.PoolOptions{MaxConns: int32(cfg.Database.MaxConns)})
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	objects, err := storage.Open(ctx, cfg.Media.Backend, cfg.Media.Dir, storage.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Bucket:          cfg.AWS.MediaBucket,
		Endpoint:        cfg.AWS.Endpoint,
	}, logger)
	if err != nil {
		logger.Fatal("media storage", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewProcessor(jobQueue, logger)
	mediaRepo := media.NewRepository(pool)
	processor.Handle(queue.JobTypeMediaCleanup, media.NewCleaner(mediaRepo, objects, logger).Process)

	sweeper := media.NewSweeper(mediaRepo, jobQueue, cfg.Media.OrphanGrace, cfg.Media.SweepInterval, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	go sweeper.Run(workerCtx)
	logger.Info("worker started", zap.Duration("media_sweep_interval", cfg.Media.SweepInterval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	<-done
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
