package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"accessdesk/pkg/circuitbreaker"
	"accessdesk/pkg/config"

	"go.uber.org/zap"
)

type failingSender struct{ calls int }

func (f *failingSender) Send(context.Context, Message) error {
	f.calls++
	return errors.New("421 service not available")
}

func TestBreakerSenderFailsFastWhenOpen(t *testing.T) {
	next := &failingSender{}
	s := NewBreakerSender(next, circuitbreaker.Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
	}, zap.NewNop())

	for i := 0; i < 2; i++ {
		_ = s.Send(context.Background(), Message{To: "a@b.c"})
	}
	err := s.Send(context.Background(), Message{To: "a@b.c"})
	if !errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if next.calls != 2 {
		t.Fatalf("expected 2 calls to the transport, got %d", next.calls)
	}
}

func TestRenderDecisionSubmitter(t *testing.T) {
	html, err := Render(TemplateDecisionSubmitter, map[string]any{
		"Status":      "rejected",
		"StatusTitle": "Rejected",
		"Reason":      "No slots <today>",
		"Request": map[string]any{
			"FullName": "Jane Doe",
			"Images":   []string{"https://cdn.example.com/a.jpg"},
		},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(html, "No slots &lt;today&gt;") {
		t.Fatal("expected escaped rejection reason")
	}
	if !strings.Contains(html, "https://cdn.example.com/a.jpg") {
		t.Fatal("expected image url in body")
	}
}

func TestBuildMIMEHeaders(t *testing.T) {
	raw := string(buildMIME("desk@example.com", Message{To: "a@b.c", Subject: "Hello", HTML: "<p>x</p>"}))
	for _, want := range []string{"From: desk@example.com\r\n", "To: a@b.c\r\n", "Content-Type: text/html", "\r\n\r\n<p>x</p>"} {
		if !strings.Contains(raw, want) {
			t.Fatalf("missing %q in %q", want, raw)
		}
	}
}

func TestNewSenderDrivers(t *testing.T) {
	if _, err := NewSender(configFor("log", ""), zap.NewNop()); err != nil {
		t.Fatalf("log driver: %v", err)
	}
	if _, err := NewSender(configFor("smtp", ""), zap.NewNop()); err == nil {
		t.Fatal("smtp driver without host should fail")
	}
	if _, err := NewSender(configFor("pigeon", ""), zap.NewNop()); err == nil {
		t.Fatal("unknown driver should fail")
	}
}

func configFor(driver, host string) config.SMTPConfig {
	return config.SMTPConfig{Driver: driver, Host: host, Port: 587}
}
