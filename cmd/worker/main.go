// Package main runs the outbound delivery worker standalone (reminders,
// event re-renders, ticket transcript uploads).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kubap159863/DcBot/config"
	"github.com/kubap159863/DcBot/internal/chat"
	"github.com/kubap159863/DcBot/internal/events"
	"github.com/kubap159863/DcBot/internal/worker"
	"github.com/kubap159863/DcBot/pkg/database"
	"github.com/kubap159863/DcBot/pkg/queue"
	"github.com/kubap159863/DcBot/pkg/redis"
	"github.com/kubap159863/DcBot/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var archive worker.Archiver
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:            cfg.AWS.Region,
			AccessKeyID:       cfg.AWS.AccessKeyID,
			SecretAccessKey:   cfg.AWS.SecretAccessKey,
			TranscriptsBucket: cfg.AWS.TranscriptsBucket,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		archive = s3Client
	}

	gateway := chat.NewGateway(cfg.Chat.GatewayURL, cfg.Chat.GatewayToken, cfg.Chat.Timeout, logger)
	eventRepo := events.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	notifier := worker.NewNotifier(jobQueue, gateway, eventRepo, archive, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go notifier.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
