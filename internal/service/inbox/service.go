// Package inbox serves the in-app message list for admin and hr staff,
// with per-role read tracking.
package inbox

import (
	"context"
	"fmt"
	"time"

	"accessdesk/internal/apperr"
	"accessdesk/internal/model"
	"accessdesk/internal/repository"

	"go.uber.org/zap"
)

type Service struct {
	messages repository.MessageStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(messages repository.MessageStore, logger *zap.Logger) *Service {
	return &Service{messages: messages, logger: logger, now: time.Now}
}

// MessageView is a message as seen by one role. ReadByMe is that role's read state;
// IsRead on the message is the audience-wide flag.
type MessageView struct {
	*model.Message
	ReadByMe bool
}

type Page struct {
	Items       []MessageView
	Total       int
	UnreadCount int
	Page        int
	Limit       int
}

// List returns messages visible to role, newest first. UnreadCount covers the
// whole visible set, not only the returned page.
func (s *Service) List(ctx context.Context, role string, filter model.MessageFilter, page model.Page) (*Page, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperr.Validation("Invalid message type", "type")
	}
	page = page.Normalize()

	items, total, err := s.messages.List(ctx, role, filter, page)
	if err != nil {
		return nil, err
	}
	unread, err := s.messages.CountUnread(ctx, role)
	if err != nil {
		return nil, err
	}

	out := &Page{
		Items:       make([]MessageView, 0, len(items)),
		Total:       total,
		UnreadCount: unread,
		Page:        page.Page,
		Limit:       page.Limit,
	}
	for _, m := range items {
		out.Items = append(out.Items, MessageView{Message: m, ReadByMe: m.ReadByRole(role)})
	}
	return out, nil
}

func (s *Service) UnreadCount(ctx context.Context, role string) (int, error) {
	return s.messages.CountUnread(ctx, role)
}

// MarkRead records a read receipt for actorID. The store appends it atomically,
// so concurrent admin and hr receipts on a "both" message are both kept.
func (s *Service) MarkRead(ctx context.Context, messageID, actorID, role string) (*model.Message, error) {
	if _, err := s.visible(ctx, messageID, role); err != nil {
		return nil, err
	}
	return s.messages.AddReceipt(ctx, messageID, model.ReadReceipt{
		UserID: actorID,
		Role:   role,
		ReadAt: s.now().UTC(),
	})
}

// MarkAllRead marks every message still unread for role and returns how many were processed.
func (s *Service) MarkAllRead(ctx context.Context, role, actorID string) (int, error) {
	count, err := s.messages.MarkAllRead(ctx, role, model.ReadReceipt{
		UserID: actorID,
		Role:   role,
		ReadAt: s.now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("mark messages read for %s: %w", role, err)
	}
	s.logger.Info("Messages marked read",
		zap.String("role", role),
		zap.String("actor_id", actorID),
		zap.Int("count", count),
	)
	return count, nil
}

func (s *Service) Delete(ctx context.Context, messageID, role string) error {
	if _, err := s.visible(ctx, messageID, role); err != nil {
		return err
	}
	return s.messages.Delete(ctx, messageID)
}

func (s *Service) visible(ctx context.Context, messageID, role string) (*model.Message, error) {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !m.VisibleTo(role) {
		return nil, fmt.Errorf("message %s is not addressed to %s: %w", messageID, role, apperr.ErrForbidden)
	}
	return m, nil
}
