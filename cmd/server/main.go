package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqcontracts "accessdesk/contracts/mq"
	"accessdesk/internal/config"
	"accessdesk/internal/handler"
	"accessdesk/internal/httpserver"
	"accessdesk/internal/mail"
	"accessdesk/internal/mqhandler"
	"accessdesk/internal/repository"
	"accessdesk/internal/repository/memory"
	"accessdesk/internal/service/attachment"
	"accessdesk/internal/service/inbox"
	"accessdesk/internal/service/notify"
	"accessdesk/internal/service/request"
	"accessdesk/internal/service/user"
	"accessdesk/internal/storage"
	"accessdesk/internal/worker"
	"accessdesk/pkg/db"
	"accessdesk/pkg/logger"
	"accessdesk/pkg/otel"
	"accessdesk/pkg/redis"
	"accessdesk/pkg/token"
	"accessdesk/pkg/util"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type stores struct {
	requests repository.RequestStore
	messages repository.MessageStore
	users    repository.UserStore
	pool     *pgxpool.Pool
}

// openStores 配置了 db.host 时使用 Postgres，否则使用内存存储（本地开发）
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if !cfg.HasDB() {
		logger.Warn("No database configured, using in-memory stores")
		return &stores{
			requests: memory.NewRequestStore(),
			messages: memory.NewMessageStore(),
			users:    memory.NewUserStore(),
		}, nil
	}

	pool, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return &stores{
		requests: repository.NewRequestRepository(pool, logger),
		messages: repository.NewMessageRepository(pool, logger),
		users:    repository.NewUserRepository(pool),
		pool:     pool,
	}, nil
}

// seedAdminFromEnv 内存模式下没有 cmd/seed，可用环境变量创建首个管理员
func seedAdminFromEnv(ctx context.Context, users *user.Service, logger *zap.Logger) {
	username, password := os.Getenv("ADMIN_USERNAME"), os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return
	}
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = username + "@localhost.local"
	}
	if _, err := users.CreateAdmin(ctx, user.CreateInput{Username: username, Email: email, Password: password}); err != nil {
		logger.Warn("Admin seed skipped", zap.Error(err))
	}
}

// server 进程：单进程模式，通知在进程内 worker pool 中执行
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

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store initialization failed", zap.Error(err))
	}
	if st.pool != nil {
		defer st.pool.Close()
	}

	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, rate limiting and dedup disabled", zap.Error(err))
		} else {
			defer rdb.Close()
		}
	}

	mailer, err := mail.NewSender(cfg.SMTP, logger)
	if err != nil {
		logger.Fatal("mail sender init failed", zap.Error(err))
	}
	codec, err := token.NewCodec(token.Mode(cfg.ActionToken.Mode), cfg.ActionToken.Secret)
	if err != nil {
		logger.Fatal("action token codec", zap.Error(err))
	}
	blobs, err := storage.NewLocalStore(cfg.Storage)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	// In-process worker pool 代替 RabbitMQ
	pool := worker.NewPool(cfg.Notify.Workers, cfg.Notify.QueueSize, logger)
	dispatcher := notify.NewDispatcher(mailer, st.users, st.messages, codec, notify.Config{
		FrontendURL: cfg.FrontendURL,
		SendTimeout: cfg.SendTimeout(),
	}, logger)
	deduper := util.NewDeduper(rdb, cfg.DedupTTL(), logger)
	pool.Register(mqcontracts.RoutingRequestDecided,
		mqhandler.NewRequestDecidedHandler(st.requests, dispatcher, deduper, logger).Handle)
	pool.Register(mqcontracts.RoutingAttachmentCompleted,
		mqhandler.NewAttachmentCompletedHandler(st.requests, dispatcher, deduper, logger).Handle)
	pool.Start()

	userService := user.NewService(st.users, cfg.JWT.Secret, cfg.JWTTTL(), logger)
	requestService := request.NewService(st.requests, pool, codec, userService, request.Config{TokenMaxAge: cfg.TokenMaxAge()}, logger)
	attachmentService := attachment.NewService(st.requests, blobs, pool, cfg.Storage.MaxBytes, logger)
	inboxService := inbox.NewService(st.messages, logger)
	seedAdminFromEnv(ctx, userService, logger)

	opts := httpserver.Options{
		JWTSecret:   cfg.JWT.Secret,
		UploadsDir:  blobs.Dir(),
		UploadsPath: "/uploads",
		ServiceName: "accessdesk",
		Accounts:    userService,
	}
	if st.pool != nil {
		opts.DB = st.pool
	}

	limiter := util.NewWindowCounter(rdb, time.Minute)
	router := httpserver.NewRouter(httpserver.Handlers{
		Requests: handler.NewRequestHandler(requestService, limiter, cfg.RateLimit.EmailActionPerMinute, logger),
		Admin:    handler.NewAdminHandler(requestService, userService, nil, logger),
		HR:       handler.NewHRHandler(requestService, logger),
		Messages: handler.NewMessageHandler(inboxService),
		Images:   handler.NewImageHandler(attachmentService, logger),
		Auth:     handler.NewAuthHandler(userService),
	}, opts, logger)

	srv := router.Server(cfg.Server.Port)
	go func() {
		logger.Info("Server listening",
			zap.String("addr", cfg.Server.Port),
			zap.Int("notify_workers", cfg.Notify.Workers),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server start failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	// 等待已入队的通知发送完
	pool.Stop()
}
