package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"accessdesk/pkg/trace"

	"go.uber.org/zap"
)

func TestPoolRunsJobsDetachedFromCaller(t *testing.T) {
	p := NewPool(2, 8, zap.NewNop())
	var (
		calls   atomic.Int32
		sawErr  atomic.Bool
		traceID atomic.Value
	)
	p.Register("request.decided", func(ctx context.Context, data json.RawMessage) error {
		if ctx.Err() != nil {
			sawErr.Store(true)
		}
		traceID.Store(trace.FromContext(ctx))
		var v map[string]string
		if err := json.Unmarshal(data, &v); err != nil || v["id"] != "r1" {
			t.Errorf("unexpected payload %s", data)
		}
		calls.Add(1)
		return nil
	})
	p.Start()
	defer p.Stop()

	ctx, cancel := context.WithCancel(trace.WithContext(context.Background(), "abc123"))
	if err := p.Emit(ctx, "request.decided", "r1", map[string]string{"id": "r1"}); err != nil {
		t.Fatal(err)
	}
	cancel()
	p.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
	if sawErr.Load() {
		t.Fatal("job context should not inherit caller cancellation")
	}
	if traceID.Load() != "abc123" {
		t.Fatalf("trace id not propagated: %v", traceID.Load())
	}
}

func TestPoolSurvivesFailingAndPanickingHandlers(t *testing.T) {
	p := NewPool(1, 8, zap.NewNop())
	var ok atomic.Int32
	p.Register("boom", func(context.Context, json.RawMessage) error { panic("kaboom") })
	p.Register("fail", func(context.Context, json.RawMessage) error { return errors.New("smtp down") })
	p.Register("ok", func(context.Context, json.RawMessage) error { ok.Add(1); return nil })
	p.Start()
	defer p.Stop()

	for _, key := range []string{"boom", "fail", "ok", "unknown"} {
		if err := p.Emit(context.Background(), key, "", struct{}{}); err != nil {
			t.Fatal(err)
		}
	}

	done := make(chan struct{})
	go func() { p.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not drain")
	}
	if ok.Load() != 1 {
		t.Fatalf("handler after failures should still run, got %d", ok.Load())
	}
}

func TestPoolQueueFullAndStopped(t *testing.T) {
	p := NewPool(1, 1, zap.NewNop())
	// not started: the single slot fills up
	if err := p.Emit(context.Background(), "k", "", 1); err != nil {
		t.Fatal(err)
	}
	if err := p.Emit(context.Background(), "k", "", 2); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	p.Start()
	p.Stop()
	if err := p.Emit(context.Background(), "k", "", 3); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}
