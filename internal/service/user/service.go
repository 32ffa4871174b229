package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"accessdesk/internal/apperr"
	"accessdesk/internal/model"
	"accessdesk/internal/repository"
	"accessdesk/internal/util"
	"accessdesk/pkg/rbac"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minPasswordLen = 8

type Service struct {
	users     repository.UserStore
	jwtSecret string
	ttl       time.Duration
	logger    *zap.Logger
}

func NewService(users repository.UserStore, jwtSecret string, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		users:     users,
		jwtSecret: jwtSecret,
		ttl:       ttl,
		logger:    logger,
	}
}

type LoginResult struct {
	Token string
	User  *model.User
}

// Login checks staff credentials (username or email) and returns a session JWT.
func (s *Service) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperr.Validation("Login and password are required", "login", "password")
	}

	u, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("invalid login or password: %w", apperr.ErrUnauthorized)
		}
		return nil, err
	}

	if !util.CheckPassword(password, u.PasswordHash) {
		return nil, fmt.Errorf("invalid login or password: %w", apperr.ErrUnauthorized)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("account disabled: %w", apperr.ErrForbidden)
	}

	token, err := util.GenerateJWT(u.ID, u.Username, u.Email, u.Role, s.jwtSecret, s.ttl)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Staff login", zap.String("user_id", u.ID), zap.String("role", u.Role))
	return &LoginResult{Token: token, User: u}, nil
}

// Authorize confirms that a session's user still exists, is active and still
// holds role. Deactivation takes effect before the session JWT expires.
func (s *Service) Authorize(ctx context.Context, userID, role string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("account %s no longer exists: %w", userID, apperr.ErrUnauthorized)
		}
		return err
	}
	if !u.IsActive {
		return fmt.Errorf("account disabled: %w", apperr.ErrForbidden)
	}
	if u.Role != role {
		return fmt.Errorf("account role is %s, session says %s: %w", u.Role, role, apperr.ErrForbidden)
	}
	return nil
}

// IsActiveStaff reports whether email belongs to an active account with role.
func (s *Service) IsActiveStaff(ctx context.Context, email, role string) (bool, error) {
	u, err := s.users.FindByLogin(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsActive && u.Role == role && strings.EqualFold(u.Email, email), nil
}

type CreateInput struct {
	Username string
	Email    string
	Password string
}

// CreateHRUser registers a new hr account. Only admins reach this.
func (s *Service) CreateHRUser(ctx context.Context, in CreateInput) (*model.User, error) {
	return s.create(ctx, in, rbac.RoleHR)
}

// CreateAdmin is used by the seed command.
func (s *Service) CreateAdmin(ctx context.Context, in CreateInput) (*model.User, error) {
	return s.create(ctx, in, rbac.RoleAdmin)
}

func (s *Service) create(ctx context.Context, in CreateInput, role string) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	var missing []string
	if in.Username == "" {
		missing = append(missing, "username")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("Missing required fields", missing...)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, apperr.Validation("Invalid email address", "email")
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperr.Validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLen), "password")
	}

	hash, err := util.HashPassword(in.Password)
	if errors.Is(err, util.ErrPasswordTooLong) {
		return nil, apperr.Validation("Password must be at most 72 bytes", "password")
	}
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("Staff user created",
		zap.String("user_id", u.ID),
		zap.String("username", u.Username),
		zap.String("role", role),
	)
	return u, nil
}

// ListUsers returns staff accounts, optionally restricted to one role.
func (s *Service) ListUsers(ctx context.Context, role string) ([]*model.User, error) {
	if role != "" && !rbac.IsValidRole(role) {
		return nil, apperr.Validation("Invalid role", "role")
	}
	return s.users.List(ctx, role)
}

// ActiveStaff lists enabled accounts of one role; the notification fan-out uses it.
func (s *Service) ActiveStaff(ctx context.Context, role string) ([]*model.User, error) {
	return s.users.ListActiveByRole(ctx, role)
}

// SetActive enables or disables an account. Admins cannot disable themselves.
func (s *Service) SetActive(ctx context.Context, actor model.Actor, id string, active bool) error {
	if id == actor.ID && !active {
		return apperr.Validation("You cannot deactivate your own account", "id")
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.logger.Info("Staff user active flag changed",
		zap.String("user_id", id),
		zap.Bool("active", active),
		zap.String("by", actor.ID),
	)
	return nil
}

func (s *Service) DeleteUser(ctx context.Context, actor model.Actor, id string) error {
	if id == actor.ID {
		return apperr.Validation("You cannot delete your own account", "id")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Staff user deleted", zap.String("user_id", id), zap.String("by", actor.ID))
	return nil
}
