package main

import (
	"context"
	"os/signal"
	"syscall"

	mqcontracts "accessdesk/contracts/mq"
	"accessdesk/internal/config"
	"accessdesk/internal/mail"
	"accessdesk/internal/mqhandler"
	"accessdesk/internal/repository"
	"accessdesk/internal/service/notify"
	"accessdesk/pkg/db"
	"accessdesk/pkg/logger"
	"accessdesk/pkg/mq"
	"accessdesk/pkg/otel"
	"accessdesk/pkg/redis"
	"accessdesk/pkg/token"
	"accessdesk/pkg/util"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// worker 进程：消费 lifecycle 事件，发送邮件并写入站内消息
func main() {
	cfg := config.Load()
	logger := logger.NewLogger(cfg.Env)
	defer logger.Sync()

	logger.Info("Starting notification worker...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := otel.Init(cfg.Otel, logger)
	if err != nil {
		logger.Fatal("OpenTelemetry init failed", zap.Error(err))
	}
	defer shutdownOtel()

	// Redis（可选，用于重复投递去重）
	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, dedup disabled", zap.Error(err))
		} else {
			defer rdb.Close()
		}
	}
	deduper := util.NewDeduper(rdb, cfg.DedupTTL(), logger)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	logger.Info("DB ready")

	requestRepo := repository.NewRequestRepository(dbConn, logger)
	messageRepo := repository.NewMessageRepository(dbConn, logger)
	userRepo := repository.NewUserRepository(dbConn)

	mailer, err := mail.NewSender(cfg.SMTP, logger)
	if err != nil {
		logger.Fatal("mail sender init failed", zap.Error(err))
	}
	codec, err := token.NewCodec(token.Mode(cfg.ActionToken.Mode), cfg.ActionToken.Secret)
	if err != nil {
		logger.Fatal("action token codec", zap.Error(err))
	}

	dispatcher := notify.NewDispatcher(mailer, userRepo, messageRepo, codec, notify.Config{
		FrontendURL: cfg.FrontendURL,
		SendTimeout: cfg.SendTimeout(),
	}, logger)

	decidedHandler := mqhandler.NewRequestDecidedHandler(requestRepo, dispatcher, deduper, logger)
	attachmentHandler := mqhandler.NewAttachmentCompletedHandler(requestRepo, dispatcher, deduper, logger)

	consumers := []struct {
		queue      string
		routingKey string
		handle     mq.MessageHandler
	}{
		{"request.decided.notify.q", mqcontracts.RoutingRequestDecided, decidedHandler.Handle},
		{"request.attachment_completed.notify.q", mqcontracts.RoutingAttachmentCompleted, attachmentHandler.Handle},
	}

	for _, spec := range consumers {
		logger.Info("Init consumer", zap.String("queue", spec.queue))
		consumer, err := mq.NewConsumer(cfg.MQ.URL, spec.queue, spec.routingKey, logger)
		if err != nil {
			logger.Fatal("consumer init failed", zap.String("queue", spec.queue), zap.Error(err))
		}
		consumer.SetHandler(spec.handle)

		go func(queue string) {
			if err := consumer.StartConsuming(); err != nil {
				logger.Fatal("consumer crashed", zap.String("queue", queue), zap.Error(err))
			}
		}(spec.queue)
		defer consumer.Close()
	}

	logger.Info("Worker running")
	<-ctx.Done()
	logger.Info("Worker shutting down")
}
