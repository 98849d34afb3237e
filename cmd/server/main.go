// Package main runs the activity booking HTTP server with WebSocket seat updates and graceful shutdown.
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

	"github.com/activity-hub/backend/config"
	"github.com/activity-hub/backend/internal/activities"
	"github.com/activity-hub/backend/internal/auth"
	"github.com/activity-hub/backend/internal/categories"
	"github.com/activity-hub/backend/internal/events"
	"github.com/activity-hub/backend/internal/media"
	"github.com/activity-hub/backend/internal/middleware"
	"github.com/activity-hub/backend/internal/models"
	"github.com/activity-hub/backend/internal/realtime"
	"github.com/activity-hub/backend/internal/worker"
	"github.com/activity-hub/backend/pkg/database"
	"github.com/activity-hub/backend/pkg/queue"
	"github.com/activity-hub/backend/pkg/redis"
	"github.com/activity-hub/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

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

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	userRepo := auth.NewRepository(pool)
	authenticator := auth.NewAuthenticator(jwtService, userRepo)
	authHandler := auth.NewHandler(userRepo, jwtService, cfg.AdminEmails, logger)
	if err := auth.EnsureAdmins(ctx, userRepo, cfg.AdminEmails, cfg.AdminPassword, logger); err != nil {
		logger.Fatal("provision admins", zap.Error(err))
	}

	// Categories and media
	categoryRepo := categories.NewRepository(pool)
	categoryHandler := categories.NewHandler(categoryRepo, logger)
	mediaRepo := media.NewRepository(pool)

	// Activities
	activityService := activities.NewService(activities.NewRepository(pool), activities.SystemClock, logger)
	activityService.SetMediaReleaser(media.NewReleaser(jobQueue))
	activityHandler := activities.NewHandler(activityService, categoryRepo, mediaRepo, cfg.Location, logger)
	mediaHandler := media.NewHandler(mediaRepo, objects, activityService, logger)

	// Live seat counts, fanned out across instances through Redis
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	defer hub.Close()
	activityService.AddSeatListener(hub)
	wsHandler := realtime.NewHandler(hub, authenticator, activityService, cfg.Server.CORSAllowedOrigins, logger)

	// Broker events
	publisher, err := events.Open(ctx, cfg.Events.Broker, cfg.Events.AMQPURL, cfg.Events.KafkaBrokers, cfg.Events.Topic, logger)
	if err != nil {
		logger.Fatal("events broker", zap.Error(err))
	}
	if publisher != nil {
		defer publisher.Close()
		activityService.AddSeatListener(publisher)
		logger.Info("publishing seat events", zap.String("broker", cfg.Events.Broker))
	}

	joinLimit := middleware.RateLimit(
		redis.NewFixedWindow(rdb.Client, cfg.RateLimit.JoinPerMinute, time.Minute), "join", logger)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	router.GET("/health", func(c *gin.Context) { response.OK(c, "ok", gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws/activities/:id", wsHandler.ServeWs)

	api := router.Group("")
	api.Use(middleware.Auth(authenticator))
	{
		api.POST("/auth/api-token", authHandler.RotateAPIToken)

		api.GET("/activities", activityHandler.Search)
		api.POST("/activities", adminOnly, activityHandler.Create)
		api.GET("/activities/:id", activityHandler.Get)
		api.PUT("/activities/:id", adminOnly, activityHandler.Update)
		api.DELETE("/activities/:id", adminOnly, activityHandler.Delete)
		api.GET("/activities/:id/joinable", activityHandler.Joinable)
		api.POST("/activities/:id/join", joinLimit, activityHandler.Join)
		api.DELETE("/activities/:id/join", activityHandler.Leave)
		api.GET("/activities/:id/media", mediaHandler.ServeActivityMedia)

		api.GET("/users/activities", activityHandler.ListMine)
		api.POST("/users/activities/:id", joinLimit, activityHandler.Join)
		api.DELETE("/users/activities/:id", activityHandler.Leave)

		api.GET("/categories", categoryHandler.List)
		api.POST("/categories", adminOnly, categoryHandler.Create)
		api.GET("/categories/:id", categoryHandler.Get)
		api.PUT("/categories/:id", adminOnly, categoryHandler.Update)
		api.DELETE("/categories/:id", adminOnly, categoryHandler.Delete)

		api.POST("/media", adminOnly, mediaHandler.Upload)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (orphan media cleanup)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Server.InProcessWorker {
		processor := worker.NewProcessor(jobQueue, logger)
		processor.Handle(queue.JobTypeMediaCleanup, media.NewCleaner(mediaRepo, objects, logger).Process)
		go processor.Run(workerCtx)
		go media.NewSweeper(mediaRepo, jobQueue, cfg.Media.OrphanGrace, cfg.Media.SweepInterval, logger).Run(workerCtx)
		logger.Info("in-process worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
