package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"accessdesk/internal/apperr"
	"accessdesk/internal/model"
)

type MessageStore struct {
	mu   sync.RWMutex
	data map[string]*model.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{data: make(map[string]*model.Message)}
}

func (s *MessageStore) Create(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[m.ID]; ok {
		return fmt.Errorf("message %s: %w", m.ID, apperr.ErrConflict)
	}
	s.data[m.ID] = cloneMessage(m)
	return nil
}

func (s *MessageStore) GetByID(_ context.Context, id string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return cloneMessage(m), nil
}

func (s *MessageStore) List(_ context.Context, role string, filter model.MessageFilter, page model.Page) ([]*model.Message, int, error) {
	page = page.Normalize()

	s.mu.RLock()
	var matched []*model.Message
	for _, m := range s.data {
		if !m.VisibleTo(role) {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if filter.IsRead != nil && m.ReadByRole(role) != *filter.IsRead {
			continue
		}
		matched = append(matched, cloneMessage(m))
	}
	s.mu.RUnlock()

	sortNewestFirst(matched)

	total := len(matched)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *MessageStore) CountUnread(_ context.Context, role string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.data {
		if m.VisibleTo(role) && !m.ReadByRole(role) {
			n++
		}
	}
	return n, nil
}

func (s *MessageStore) AddReceipt(_ context.Context, id string, r model.ReadReceipt) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, apperr.ErrNotFound)
	}
	m.AddReceipt(r.UserID, r.Role, r.ReadAt)
	return cloneMessage(m), nil
}

func (s *MessageStore) MarkAllRead(_ context.Context, role string, r model.ReadReceipt) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.data {
		if !m.VisibleTo(role) || m.ReadByRole(role) {
			continue
		}
		m.AddReceipt(r.UserID, role, r.ReadAt)
		n++
	}
	return n, nil
}

func (s *MessageStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return fmt.Errorf("message %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.data, id)
	return nil
}

// All returns every stored message, newest first.
func (s *MessageStore) All() []*model.Message {
	s.mu.RLock()
	out := make([]*model.Message, 0, len(s.data))
	for _, m := range s.data {
		out = append(out, cloneMessage(m))
	}
	s.mu.RUnlock()
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(ms []*model.Message) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].ID > ms[j].ID
		}
		return ms[i].CreatedAt.After(ms[j].CreatedAt)
	})
}

func cloneMessage(m *model.Message) *model.Message {
	c := *m
	c.ReadBy = append([]model.ReadReceipt(nil), m.ReadBy...)
	return &c
}
