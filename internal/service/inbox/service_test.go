package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"accessdesk/internal/apperr"
	"accessdesk/internal/model"
	"accessdesk/internal/repository/memory"

	"go.uber.org/zap"
)

func seed(t *testing.T) (*Service, *memory.MessageStore) {
	t.Helper()
	store := memory.NewMessageStore()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	msgs := []*model.Message{
		{ID: "m1", Recipient: model.RecipientBoth, Type: model.MessageApproval, CreatedAt: base},
		{ID: "m2", Recipient: model.RecipientHR, Type: model.MessageInfo, CreatedAt: base.Add(time.Minute)},
		{ID: "m3", Recipient: model.RecipientAdmin, Type: model.MessageWarning, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "m4", Recipient: model.RecipientBoth, Type: model.MessageRejection, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, m := range msgs {
		if err := store.Create(context.Background(), m); err != nil {
			t.Fatal(err)
		}
	}
	return NewService(store, zap.NewNop()), store
}

func TestListScopesByRoleNewestFirst(t *testing.T) {
	svc, _ := seed(t)
	page, err := svc.List(context.Background(), model.RoleHR, model.MessageFilter{}, model.Page{})
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, m := range page.Items {
		ids = append(ids, m.ID)
	}
	if len(ids) != 3 || ids[0] != "m4" || ids[2] != "m1" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if page.UnreadCount != 3 {
		t.Fatalf("unread=%d, want 3", page.UnreadCount)
	}
}

func TestMarkReadDualRoleRule(t *testing.T) {
	svc, store := seed(t)
	ctx := context.Background()

	m, err := svc.MarkRead(ctx, "m1", "h1", model.RoleHR)
	if err != nil {
		t.Fatal(err)
	}
	if m.IsRead {
		t.Fatal("'both' message must stay unread until admin reads it too")
	}
	if n, _ := svc.UnreadCount(ctx, model.RoleHR); n != 2 {
		t.Fatalf("hr unread=%d, want 2", n)
	}

	if _, err := svc.MarkRead(ctx, "m1", "a1", model.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	stored, _ := store.GetByID(ctx, "m1")
	if !stored.IsRead || len(stored.ReadBy) != 2 {
		t.Fatalf("expected read with two receipts, got %+v", stored)
	}
}

func TestMarkReadScopeErrors(t *testing.T) {
	svc, _ := seed(t)
	ctx := context.Background()
	if _, err := svc.MarkRead(ctx, "m3", "h1", model.RoleHR); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.MarkRead(ctx, "nope", "h1", model.RoleHR); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, "m2", model.RoleAdmin); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected ErrForbidden on delete, got %v", err)
	}
}

func TestMarkAllReadAndFilter(t *testing.T) {
	svc, _ := seed(t)
	ctx := context.Background()

	_, _ = svc.MarkRead(ctx, "m3", "a1", model.RoleAdmin)
	n, err := svc.MarkAllRead(ctx, model.RoleAdmin, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("marked %d, want 2 (m1, m4)", n)
	}

	unread := false
	page, _ := svc.List(ctx, model.RoleAdmin, model.MessageFilter{IsRead: &unread}, model.Page{})
	if len(page.Items) != 0 || page.UnreadCount != 0 {
		t.Fatalf("expected nothing unread for admin, got %+v", page)
	}

	page, _ = svc.List(ctx, model.RoleHR, model.MessageFilter{Type: model.MessageInfo}, model.Page{})
	if len(page.Items) != 1 || page.Items[0].ID != "m2" {
		t.Fatalf("type filter returned %+v", page.Items)
	}
}

func TestDelete(t *testing.T) {
	svc, store := seed(t)
	if err := svc.Delete(context.Background(), "m2", model.RoleHR); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetByID(context.Background(), "m2"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatal("message should be gone")
	}
}

// gatedStore holds every GetByID until n callers have loaded the message, so
// the receipts that follow are written against the same starting state.
type gatedStore struct {
	*memory.MessageStore
	arrived sync.WaitGroup
}

func (g *gatedStore) GetByID(ctx context.Context, id string) (*model.Message, error) {
	m, err := g.MessageStore.GetByID(ctx, id)
	g.arrived.Done()
	g.arrived.Wait()
	return m, err
}

func TestMarkReadConcurrentRolesKeepBothReceipts(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{MessageStore: memory.NewMessageStore()}
	if err := store.Create(ctx, &model.Message{ID: "m1", Recipient: model.RecipientBoth, Type: model.MessageApproval}); err != nil {
		t.Fatal(err)
	}
	store.arrived.Add(2)
	svc := NewService(store, zap.NewNop())

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, actor := range []struct{ id, role string }{{"admin-1", model.RoleAdmin}, {"hr-1", model.RoleHR}} {
		wg.Add(1)
		go func(id, role string) {
			defer wg.Done()
			if _, err := svc.MarkRead(ctx, "m1", id, role); err != nil {
				errs <- err
			}
		}(actor.id, actor.role)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	stored, _ := store.MessageStore.GetByID(ctx, "m1")
	if len(stored.ReadBy) != 2 || !stored.IsRead {
		t.Fatalf("receipts=%d isRead=%v, want 2 and true", len(stored.ReadBy), stored.IsRead)
	}
}

func TestMarkAllReadConcurrentRoles(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMessageStore()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		m := &model.Message{
			ID:        fmt.Sprintf("m%02d", i),
			Recipient: model.RecipientBoth,
			Type:      model.MessageInfo,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Create(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	svc := NewService(store, zap.NewNop())

	var wg sync.WaitGroup
	for _, role := range []string{model.RoleAdmin, model.RoleHR} {
		wg.Add(1)
		go func(role string) {
			defer wg.Done()
			if _, err := svc.MarkAllRead(ctx, role, role+"-1"); err != nil {
				t.Error(err)
			}
		}(role)
	}
	wg.Wait()

	for _, m := range store.All() {
		if !m.IsRead || len(m.ReadBy) != 2 {
			t.Fatalf("%s: isRead=%v receipts=%d", m.ID, m.IsRead, len(m.ReadBy))
		}
	}
}

func TestListPagesAfterFiltering(t *testing.T) {
	svc, _ := seed(t)
	ctx := context.Background()
	if _, err := svc.MarkRead(ctx, "m4", "h1", model.RoleHR); err != nil {
		t.Fatal(err)
	}

	unread := false
	page, err := svc.List(ctx, model.RoleHR, model.MessageFilter{IsRead: &unread}, model.Page{Page: 2, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || len(page.Items) != 1 || page.Items[0].ID != "m1" {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.UnreadCount != 2 {
		t.Fatalf("unread=%d, want 2", page.UnreadCount)
	}
}
