package attachment

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	mqcontracts "accessdesk/contracts/mq"
	"accessdesk/internal/apperr"
	"accessdesk/internal/model"
	"accessdesk/internal/repository/memory"
	"accessdesk/internal/storage"
	"accessdesk/pkg/config"

	"go.uber.org/zap"
)

type recordingSink struct {
	mu   sync.Mutex
	keys []string
}

func (s *recordingSink) Emit(_ context.Context, routingKey, _ string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, routingKey)
	return nil
}

// minimal PNG signature followed by padding
func pngBytes(size int) []byte {
	b := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, size)...)
	return b
}

func setup(t *testing.T, maxBytes int64) (*Service, *recordingSink, string) {
	t.Helper()
	requests := memory.NewRequestStore()
	req := &model.AccessRequest{
		ID: "r1", Email: "a@b.c", Purpose: model.PurposeVisitor,
		Details: model.VisitorDetails{VisitorDescription: "x"}, Status: model.StatusPending,
	}
	if err := requests.Create(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	blobs, err := storage.NewLocalStore(config.StorageConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	return NewService(requests, blobs, sink, maxBytes, zap.NewNop()), sink, req.ID
}

func TestUploadEmitsOnlyOnFirstImage(t *testing.T) {
	svc, sink, id := setup(t, 0)
	ctx := context.Background()

	first, err := svc.Upload(ctx, id, bytes.NewReader(pngBytes(64)))
	if err != nil {
		t.Fatal(err)
	}
	if first.Count != 1 || first.URL != "/uploads/"+first.Filename {
		t.Fatalf("unexpected result %+v", first)
	}
	if _, err := svc.Upload(ctx, id, bytes.NewReader(pngBytes(64))); err != nil {
		t.Fatal(err)
	}

	if len(sink.keys) != 1 || sink.keys[0] != mqcontracts.RoutingAttachmentCompleted {
		t.Fatalf("expected a single attachment_completed event, got %v", sink.keys)
	}
	images, _ := svc.List(ctx, id)
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %v", images)
	}

	if err := svc.Delete(ctx, first.Filename); err != nil {
		t.Fatal(err)
	}
	images, _ = svc.List(ctx, id)
	if len(images) != 1 {
		t.Fatalf("expected 1 image after delete, got %v", images)
	}
}

func TestReuploadAfterDeletingOnlyImageDoesNotRenotify(t *testing.T) {
	svc, sink, id := setup(t, 0)
	ctx := context.Background()

	first, err := svc.Upload(ctx, id, bytes.NewReader(pngBytes(64)))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, first.Filename); err != nil {
		t.Fatal(err)
	}
	again, err := svc.Upload(ctx, id, bytes.NewReader(pngBytes(64)))
	if err != nil {
		t.Fatal(err)
	}
	if again.Count != 1 {
		t.Fatalf("expected count 1 after re-upload, got %d", again.Count)
	}
	if len(sink.keys) != 1 {
		t.Fatalf("attachment_completed emitted %d times, want 1", len(sink.keys))
	}
}

func TestUploadValidation(t *testing.T) {
	svc, _, id := setup(t, 128)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, id, bytes.NewReader([]byte("plain text, not an image"))); err == nil {
		t.Fatal("expected unsupported type error")
	}
	if _, err := svc.Upload(ctx, id, bytes.NewReader(pngBytes(1024))); err == nil {
		t.Fatal("expected size limit error")
	}
	if _, err := svc.Upload(ctx, "ghost", bytes.NewReader(pngBytes(8))); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Upload(ctx, id, bytes.NewReader(nil)); err == nil {
		t.Fatal("expected empty file error")
	}
}
