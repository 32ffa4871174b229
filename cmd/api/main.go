package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	mqcontracts "accessdesk/contracts/mq"
	"accessdesk/internal/config"
	"accessdesk/internal/handler"
	"accessdesk/internal/httpserver"
	"accessdesk/internal/repository"
	"accessdesk/internal/service/attachment"
	"accessdesk/internal/service/inbox"
	"accessdesk/internal/service/request"
	"accessdesk/internal/service/user"
	"accessdesk/internal/storage"
	"accessdesk/pkg/db"
	"accessdesk/pkg/logger"
	"accessdesk/pkg/mq"
	"accessdesk/pkg/otel"
	"accessdesk/pkg/outbox"
	"accessdesk/pkg/redis"
	"accessdesk/pkg/token"
	"accessdesk/pkg/util"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// api 进程：HTTP 接口 + outbox 投递，通知由 cmd/worker 消费
func main() {
	cfg := config.Load()
	logger := logger.NewLogger(cfg.Env)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := otel.Init(cfg.Otel, logger)
	if err != nil {
		logger.Fatal("OpenTelemetry init failed", zap.Error(err))
	}
	defer shutdownOtel()

	// DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	if err := db.Migrate(ctx, dbConn, logger); err != nil {
		logger.Fatal("DB migration failed", zap.Error(err))
	}

	// Redis（可选，用于 email-action 限流）
	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, rate limiting disabled", zap.Error(err))
		} else {
			defer rdb.Close()
		}
	}

	// RabbitMQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Repositories
	requestRepo := repository.NewRequestRepository(dbConn, logger)
	messageRepo := repository.NewMessageRepository(dbConn, logger)
	userRepo := repository.NewUserRepository(dbConn)
	outboxRepo := outbox.NewRepository(dbConn)

	// Outbox：lifecycle 事件先落库，再由 dispatcher 投递
	events := outbox.NewWriter(outboxRepo, mqcontracts.AggregateAccessRequest)
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, logger).
		WithInterval(time.Second).
		WithMaxRetries(5).
		WithBatchSize(100)
	go dispatcher.Start(ctx)
	replayService := outbox.NewReplayService(outboxRepo, publisher, logger)

	codec, err := token.NewCodec(token.Mode(cfg.ActionToken.Mode), cfg.ActionToken.Secret)
	if err != nil {
		logger.Fatal("action token codec", zap.Error(err))
	}
	blobs, err := storage.NewLocalStore(cfg.Storage)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	// Services
	userService := user.NewService(userRepo, cfg.JWT.Secret, cfg.JWTTTL(), logger)
	requestService := request.NewService(requestRepo, events, codec, userService, request.Config{TokenMaxAge: cfg.TokenMaxAge()}, logger)
	attachmentService := attachment.NewService(requestRepo, blobs, events, cfg.Storage.MaxBytes, logger)
	inboxService := inbox.NewService(messageRepo, logger)

	limiter := util.NewWindowCounter(rdb, time.Minute)

	router := httpserver.NewRouter(httpserver.Handlers{
		Requests: handler.NewRequestHandler(requestService, limiter, cfg.RateLimit.EmailActionPerMinute, logger),
		Admin:    handler.NewAdminHandler(requestService, userService, replayService, logger),
		HR:       handler.NewHRHandler(requestService, logger),
		Messages: handler.NewMessageHandler(inboxService),
		Images:   handler.NewImageHandler(attachmentService, logger),
		Auth:     handler.NewAuthHandler(userService),
	}, httpserver.Options{
		JWTSecret:   cfg.JWT.Secret,
		UploadsDir:  blobs.Dir(),
		UploadsPath: "/uploads",
		ServiceName: "accessdesk-api",
		DB:          dbConn,
		Publisher:   publisher,
		Accounts:    userService,
	}, logger)

	srv := router.Server(cfg.Server.Port)
	go func() {
		logger.Info("API server listening", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server start failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
