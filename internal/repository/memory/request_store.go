// Package memory implements the repository interfaces in process memory.
// It backs tests and the single-process server when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"accessdesk/internal/apperr"
	"accessdesk/internal/model"
)

type RequestStore struct {
	mu       sync.RWMutex
	data     map[string]*model.AccessRequest
	numbers  map[int64]string
	notified map[string]bool
	sequence int64
}

func NewRequestStore() *RequestStore {
	return &RequestStore{
		data:     make(map[string]*model.AccessRequest),
		numbers:  make(map[int64]string),
		notified: make(map[string]bool),
	}
}

func (s *RequestStore) Create(_ context.Context, r *model.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[r.ID]; ok {
		return fmt.Errorf("request %s: %w", r.ID, apperr.ErrConflict)
	}
	for {
		s.sequence++
		if _, taken := s.numbers[s.sequence]; !taken {
			break
		}
	}
	n := s.sequence
	now := time.Now().UTC()
	r.RequestNumber = &n
	r.CreatedAt, r.UpdatedAt = now, now

	s.data[r.ID] = cloneRequest(r)
	s.numbers[n] = r.ID
	return nil
}

func (s *RequestStore) GetByID(_ context.Context, id string) (*model.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return cloneRequest(r), nil
}

func (s *RequestStore) FindByEmailAndID(_ context.Context, email, id string) (*model.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[id]
	if !ok {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			r, ok = s.data[s.numbers[n]]
		}
	}
	if !ok || !strings.EqualFold(r.Email, email) {
		return nil, apperr.ErrNotFound
	}
	return cloneRequest(r), nil
}

func (s *RequestStore) ListByEmail(ctx context.Context, email string, page model.Page) ([]*model.AccessRequest, int, error) {
	return s.List(ctx, model.RequestFilter{Email: email}, page)
}

func (s *RequestStore) List(_ context.Context, filter model.RequestFilter, page model.Page) ([]*model.AccessRequest, int, error) {
	page = page.Normalize()

	s.mu.RLock()
	var matched []*model.AccessRequest
	for _, r := range s.data {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Purpose != "" && r.Purpose != filter.Purpose {
			continue
		}
		if filter.Email != "" && !strings.EqualFold(r.Email, filter.Email) {
			continue
		}
		matched = append(matched, cloneRequest(r))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return *matched[i].RequestNumber > *matched[j].RequestNumber
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

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

func (s *RequestStore) DecidePending(_ context.Context, id string, d model.Decision) (*model.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.data[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if r.Status != model.StatusPending {
		return nil, fmt.Errorf("request %s is not pending: %w", id, apperr.ErrConflict)
	}

	at := d.ApprovedAt
	r.Status = d.Status
	r.ApprovedBy = d.ApprovedBy
	r.ApprovedAt = &at
	r.RejectionReason = d.RejectionReason
	r.UpdatedAt = time.Now().UTC()
	return cloneRequest(r), nil
}

func (s *RequestStore) AssignRequestNumber(_ context.Context, id string, number int64) (*model.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.data[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if owner, taken := s.numbers[number]; taken && owner != id {
		return nil, fmt.Errorf("request number %d already in use: %w", number, apperr.ErrConflict)
	}
	if r.RequestNumber != nil {
		delete(s.numbers, *r.RequestNumber)
	}
	n := number
	r.RequestNumber = &n
	r.UpdatedAt = time.Now().UTC()
	s.numbers[n] = id
	return cloneRequest(r), nil
}

func (s *RequestStore) AppendImage(_ context.Context, id, url string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.data[id]
	if !ok {
		return 0, fmt.Errorf("request %s: %w", id, apperr.ErrNotFound)
	}
	r.Images = append(r.Images, url)
	r.UpdatedAt = time.Now().UTC()
	return len(r.Images), nil
}

func (s *RequestStore) ClaimStaffNotification(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok || s.notified[id] {
		return false, nil
	}
	s.notified[id] = true
	return true, nil
}

func (s *RequestStore) RemoveImage(_ context.Context, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.data {
		for i, img := range r.Images {
			if img == url {
				r.Images = append(r.Images[:i:i], r.Images[i+1:]...)
				r.UpdatedAt = time.Now().UTC()
				return id, nil
			}
		}
	}
	return "", apperr.ErrNotFound
}

func cloneRequest(r *model.AccessRequest) *model.AccessRequest {
	c := *r
	c.Images = append([]string(nil), r.Images...)
	if r.RequestNumber != nil {
		n := *r.RequestNumber
		c.RequestNumber = &n
	}
	if r.ApprovedAt != nil {
		t := *r.ApprovedAt
		c.ApprovedAt = &t
	}
	return &c
}
