package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"accessdesk/internal/apperr"
	"accessdesk/internal/model"
)

type UserStore struct {
	mu   sync.RWMutex
	data map[string]*model.User
}

func NewUserStore(users ...*model.User) *UserStore {
	s := &UserStore{data: make(map[string]*model.User)}
	for _, u := range users {
		c := *u
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		s.data[u.ID] = &c
	}
	return s
}

func (s *UserStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.data {
		if existing.Username == u.Username || strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("username or email already exists: %w", apperr.ErrConflict)
		}
	}
	u.CreatedAt = time.Now().UTC()
	c := *u
	s.data[u.ID] = &c
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.data[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *UserStore) FindByLogin(_ context.Context, login string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.data {
		if u.Username == login || strings.EqualFold(u.Email, login) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *UserStore) List(_ context.Context, role string) ([]*model.User, error) {
	return s.filter(func(u *model.User) bool { return role == "" || u.Role == role }), nil
}

func (s *UserStore) ListActiveByRole(_ context.Context, role string) ([]*model.User, error) {
	return s.filter(func(u *model.User) bool { return u.Role == role && u.IsActive }), nil
}

func (s *UserStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	u.IsActive = active
	return nil
}

func (s *UserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.data, id)
	return nil
}

func (s *UserStore) filter(keep func(*model.User) bool) []*model.User {
	s.mu.RLock()
	out := []*model.User{}
	for _, u := range s.data {
		if keep(u) {
			c := *u
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Username < out[j].Username
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
