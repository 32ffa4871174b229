package trace

import (
	"context"
	"testing"
)

func TestDetachKeepsTraceIDAndDropsCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(WithContext(context.Background(), "abc"))
	detached := Detach(parent)
	cancel()

	if detached.Err() != nil {
		t.Fatalf("detached context should not be cancelled, got %v", detached.Err())
	}
	if got := FromContext(detached); got != "abc" {
		t.Fatalf("expected trace id abc, got %q", got)
	}
}

func TestGenerateTraceIDLength(t *testing.T) {
	if id := GenerateTraceID(); len(id) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(id))
	}
}
