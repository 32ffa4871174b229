package notify

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"accessdesk/internal/mail"
	"accessdesk/internal/model"
	"accessdesk/internal/repository/memory"
	"accessdesk/pkg/token"

	"go.uber.org/zap"
)

// recordingMailer captures every send; addresses in failFor return an error.
type recordingMailer struct {
	mu      sync.Mutex
	sent    []mail.Message
	failFor map[string]bool
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	if m.failFor[msg.To] {
		return errors.New("550 mailbox unavailable")
	}
	return nil
}

func (m *recordingMailer) recipients() map[string]mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]mail.Message{}
	for _, msg := range m.sent {
		out[msg.To] = msg
	}
	return out
}

func staff() *memory.UserStore {
	return memory.NewUserStore(
		&model.User{ID: "a1", Username: "alice", Email: "alice@corp.test", Role: model.RoleAdmin, IsActive: true},
		&model.User{ID: "a2", Username: "adam", Email: "adam@corp.test", Role: model.RoleAdmin, IsActive: true},
		&model.User{ID: "a3", Username: "gone", Email: "gone@corp.test", Role: model.RoleAdmin, IsActive: false},
		&model.User{ID: "h1", Username: "hana", Email: "hana@corp.test", Role: model.RoleHR, IsActive: true},
	)
}

func sampleRequest() *model.AccessRequest {
	n := int64(7)
	return &model.AccessRequest{
		ID:            "req-1",
		RequestNumber: &n,
		FullName:      "Jane Visitor",
		Email:         "jane@example.com",
		PhoneNumber:   "555-0100",
		Purpose:       model.PurposeVisitor,
		WhomToMeet:    "hana",
		Details:       model.VisitorDetails{VisitorDescription: "meeting"},
		Status:        model.StatusPending,
		Images:        []string{"/uploads/a.jpg"},
	}
}

func newTestDispatcher(t *testing.T, mailer mail.Sender, users StaffDirectory) (*Dispatcher, *memory.MessageStore, *token.Codec) {
	t.Helper()
	codec, err := token.NewCodec(token.ModeStructural, "")
	if err != nil {
		t.Fatal(err)
	}
	msgs := memory.NewMessageStore()
	d := NewDispatcher(mailer, users, msgs, codec, Config{FrontendURL: "https://desk.example.com/"}, zap.NewNop())
	return d, msgs, codec
}

func TestNotifyNewRequestContinuesAfterFailure(t *testing.T) {
	mailer := &recordingMailer{failFor: map[string]bool{"alice@corp.test": true}}
	d, _, codec := newTestDispatcher(t, mailer, staff())

	report := d.NotifyNewRequest(context.Background(), sampleRequest())

	if report.Attempted != 3 || report.Failed != 1 {
		t.Fatalf("report=%+v, want 3 attempted / 1 failed", report)
	}
	got := mailer.recipients()
	for _, addr := range []string{"alice@corp.test", "adam@corp.test", "hana@corp.test"} {
		if _, ok := got[addr]; !ok {
			t.Fatalf("no delivery attempt for %s", addr)
		}
	}
	if _, ok := got["gone@corp.test"]; ok {
		t.Fatal("inactive staff must not be notified")
	}

	// hana's links carry her own identity and role
	html := got["hana@corp.test"].HTML
	i := strings.Index(html, "/email-action?token=")
	if i < 0 {
		t.Fatal("missing action link")
	}
	raw := html[i+len("/email-action?token="):]
	raw = raw[:strings.IndexByte(raw, '"')]
	tok, err := url.QueryUnescape(raw)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := codec.Decode(tok)
	if err != nil {
		t.Fatalf("decode link token: %v", err)
	}
	if claims.Email != "hana@corp.test" || claims.Role != model.RoleHR || claims.RequestID != "req-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !strings.HasPrefix(html[strings.Index(html, "https://"):], "https://desk.example.com/email-action") {
		t.Fatal("action link should use the frontend url without a double slash")
	}
}

func TestNotifyDecisionFansOutToOtherRole(t *testing.T) {
	mailer := &recordingMailer{}
	d, _, _ := newTestDispatcher(t, mailer, staff())

	req := sampleRequest()
	req.Status = model.StatusRejected
	req.RejectionReason = "No host available"
	actor := model.Actor{ID: "h1", Name: "hana", Email: "hana@corp.test", Role: model.RoleHR}

	report := d.NotifyDecision(context.Background(), req, actor)

	// submitter + actor + two active admins
	if report.Attempted != 4 || report.Failed != 0 {
		t.Fatalf("report=%+v", report)
	}
	got := mailer.recipients()
	if !strings.Contains(got["jane@example.com"].HTML, "No host available") {
		t.Fatal("submitter email should include the rejection reason")
	}
	if _, ok := got["hana@corp.test"]; !ok {
		t.Fatal("actor confirmation missing")
	}
}

func TestRecordDecisionMessagePriority(t *testing.T) {
	d, msgs, _ := newTestDispatcher(t, &recordingMailer{}, staff())
	actor := model.Actor{Name: "alice", Role: model.RoleAdmin}

	approved := sampleRequest()
	approved.Status = model.StatusApproved
	m, err := d.RecordDecisionMessage(context.Background(), approved, actor, "")
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != model.MessageApproval || m.Priority != model.PriorityHigh || m.Recipient != model.RecipientBoth {
		t.Fatalf("unexpected approval message %+v", m)
	}

	rejected := sampleRequest()
	rejected.Status = model.StatusRejected
	m, err = d.RecordDecisionMessage(context.Background(), rejected, actor, "late")
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != model.MessageRejection || m.Priority != model.PriorityMedium || !strings.Contains(m.Body, "late") {
		t.Fatalf("unexpected rejection message %+v", m)
	}

	if len(msgs.All()) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(msgs.All()))
	}
}

func TestLabelFor(t *testing.T) {
	if got := labelFor("interviewerPhone"); got != "Interviewer Phone" {
		t.Fatalf("labelFor = %q", got)
	}
}
