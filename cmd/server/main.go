// Package main runs the event and ticket orchestration server with
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kubap159863/DcBot/config"
	"github.com/kubap159863/DcBot/internal/auth"
	"github.com/kubap159863/DcBot/internal/chat"
	"github.com/kubap159863/DcBot/internal/clock"
	"github.com/kubap159863/DcBot/internal/events"
	"github.com/kubap159863/DcBot/internal/middleware"
	"github.com/kubap159863/DcBot/internal/reminders"
	"github.com/kubap159863/DcBot/internal/tickets"
	"github.com/kubap159863/DcBot/internal/worker"
	"github.com/kubap159863/DcBot/pkg/database"
	"github.com/kubap159863/DcBot/pkg/queue"
	"github.com/kubap159863/DcBot/pkg/redis"
	"github.com/kubap159863/DcBot/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:            cfg.AWS.Region,
			AccessKeyID:       cfg.AWS.AccessKeyID,
			SecretAccessKey:   cfg.AWS.SecretAccessKey,
			TranscriptsBucket: cfg.AWS.TranscriptsBucket,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("transcript archival disabled", zap.Error(err))
		}
	}

	gateway := chat.NewGateway(cfg.Chat.GatewayURL, cfg.Chat.GatewayToken, cfg.Chat.Timeout, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	scheduler := reminders.New(eventRepo, jobQueue, clock.NewSystem(),
		cfg.Events.ReminderWindow, cfg.Events.ReconcileInterval, logger)
	eventService := events.NewService(eventRepo, scheduler, jobQueue, gateway, logger)
	eventHandler := events.NewHandler(eventService)

	// Tickets
	ticketRepo := tickets.NewRepository(pool)
	ticketManager := tickets.NewManager(ticketRepo, gateway, jobQueue,
		cfg.Tickets.Category, cfg.Tickets.AdminRole, cfg.Tickets.GraceDelay, s3Client != nil, logger)
	ticketHandler := tickets.NewHandler(ticketManager)
	if err := ticketManager.Resume(ctx); err != nil {
		logger.Warn("closing sessions not resumed", zap.Error(err))
	}

	// Admin auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler, err := auth.NewHandler(jwtService, cfg.JWT, logger)
	if err != nil {
		logger.Fatal("auth", zap.Error(err))
	}

	// Background loops
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go scheduler.Run(bgCtx)

	notifier := worker.NewNotifier(jobQueue, gateway, eventRepo, archiver(s3Client), logger)
	go notifier.Run(bgCtx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "alive"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/auth/login", authHandler.Login)

		ev := api.Group("/events")
		{
			ev.POST("", eventHandler.Create)
			ev.GET("/:messageID", eventHandler.Get)
			ev.GET("/:messageID/participants", eventHandler.Participants)
			ev.POST("/:messageID/join", eventHandler.Join)
			ev.POST("/:messageID/leave", eventHandler.Leave)
			ev.POST("/:messageID/close", eventHandler.Close)
			ev.DELETE("/:messageID", eventHandler.Delete)
		}

		tk := api.Group("/tickets")
		{
			tk.POST("", ticketHandler.Open)
			tk.POST("/:id/claim", ticketHandler.Claim)
			tk.POST("/:id/close", ticketHandler.Close)
		}

		admin := api.Group("/admin", middleware.JWT(jwtService))
		{
			admin.GET("/events/:messageID", eventHandler.Get)
			admin.GET("/events/:messageID/participants", eventHandler.Participants)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	bgCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// archiver avoids a typed-nil interface when S3 is disabled.
func archiver(s3Client *storage.S3) worker.Archiver {
	if s3Client == nil {
		return nil
	}
	return s3Client
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
