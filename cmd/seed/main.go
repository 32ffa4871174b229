package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"accessdesk/internal/apperr"
	"accessdesk/internal/config"
	"accessdesk/internal/repository"
	"accessdesk/internal/service/user"
	"accessdesk/pkg/db"
	"accessdesk/pkg/logger"

	"go.uber.org/zap"
)

// seed 创建首个管理员账号（已存在则跳过）
func main() {
	username := flag.String("username", os.Getenv("ADMIN_USERNAME"), "admin username")
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "admin email")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password (prefer ADMIN_PASSWORD)")
	flag.Parse()

	cfg := config.Load()
	logger := logger.NewLogger(cfg.Env)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	if err := db.Migrate(ctx, dbConn, logger); err != nil {
		logger.Fatal("DB migration failed", zap.Error(err))
	}

	users := user.NewService(repository.NewUserRepository(dbConn), cfg.JWT.Secret, cfg.JWTTTL(), logger)
	u, err := users.CreateAdmin(ctx, user.CreateInput{Username: *username, Email: *email, Password: *password})
	switch {
	case errors.Is(err, apperr.ErrConflict):
		logger.Info("Admin already exists, nothing to do", zap.String("username", *username))
	case err != nil:
		logger.Fatal("Admin seed failed", zap.Error(err))
	default:
		logger.Info("Admin created", zap.String("user_id", u.ID), zap.String("username", u.Username))
	}
}
