package request

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	mqcontracts "accessdesk/contracts/mq"
	"accessdesk/internal/apperr"
	"accessdesk/internal/model"
	"accessdesk/internal/repository/memory"
	"accessdesk/pkg/token"

	"go.uber.org/zap"
)

type emitted struct {
	routingKey  string
	aggregateID string
	payload     any
}

type fakeSink struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (f *fakeSink) Emit(_ context.Context, routingKey, aggregateID string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{routingKey, aggregateID, payload})
	return f.err
}

type fixture struct {
	svc   *Service
	store *memory.RequestStore
	sink  *fakeSink
	codec *token.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec, err := token.NewCodec(token.ModeStructural, "")
	if err != nil {
		t.Fatal(err)
	}
	store := memory.NewRequestStore()
	sink := &fakeSink{}
	svc := NewService(store, sink, codec, nil, Config{TokenMaxAge: 72 * time.Hour}, zap.NewNop())
	return &fixture{svc: svc, store: store, sink: sink, codec: codec}
}

func visitorInput() SubmitInput {
	return SubmitInput{
		FullName:        "Jane Visitor",
		Email:           "jane@example.com",
		PhoneNumber:     "555-0100",
		PurposeOfAccess: "visitor",
		WhomToMeet:      "Hana",
		Fields:          map[string]string{"visitorDescription": "meeting"},
	}
}

var hrActor = model.Actor{ID: "h1", Name: "hana", Email: "hana@corp.test", Role: model.RoleHR}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	f := newFixture(t)
	req, err := f.svc.Submit(context.Background(), visitorInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if req.Status != model.StatusPending || req.RequestNumber == nil || *req.RequestNumber != 1 {
		t.Fatalf("unexpected request %+v", req)
	}
	if d, ok := req.Details.(model.VisitorDetails); !ok || d.VisitorDescription != "meeting" {
		t.Fatalf("unexpected details %#v", req.Details)
	}
	if len(f.sink.events) != 0 {
		t.Fatal("submit must not emit events")
	}
}

func TestSubmitReportsEveryMissingField(t *testing.T) {
	f := newFixture(t)
	in := SubmitInput{PurposeOfAccess: "interview", Fields: map[string]string{"interviewPosition": "SRE", "interviewType": "remote"}}

	_, err := f.svc.Submit(context.Background(), in)
	ve, ok := apperr.IsValidation(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := []string{"fullName", "email", "phoneNumber", "whomToMeet", "interviewerName", "interviewerPhone"}
	if !reflect.DeepEqual(ve.Fields, want) {
		t.Fatalf("fields=%v, want %v", ve.Fields, want)
	}
}

func TestSubmitRejectsUnknownPurpose(t *testing.T) {
	f := newFixture(t)
	in := visitorInput()
	in.PurposeOfAccess = "sightseeing"
	if _, err := f.svc.Submit(context.Background(), in); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSubmitReportsMissingBaseFieldsBeforeUnknownPurpose(t *testing.T) {
	f := newFixture(t)
	in := SubmitInput{FullName: "Jane", PurposeOfAccess: "sightseeing"}

	_, err := f.svc.Submit(context.Background(), in)
	ve, ok := apperr.IsValidation(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := []string{"email", "phoneNumber", "whomToMeet"}
	if !reflect.DeepEqual(ve.Fields, want) {
		t.Fatalf("fields=%v, want %v", ve.Fields, want)
	}

	in = visitorInput()
	in.PurposeOfAccess = "sightseeing"
	_, err = f.svc.Submit(context.Background(), in)
	if ve, ok := apperr.IsValidation(err); !ok || !reflect.DeepEqual(ve.Fields, []string{"purposeOfAccess"}) {
		t.Fatalf("expected purposeOfAccess error, got %v", err)
	}
}

func TestSubmitRejectsMalformedEmail(t *testing.T) {
	f := newFixture(t)
	for _, email := range []string{"jane@", "@example.com", "jane doe@example.com", "Jane <jane@example.com>"} {
		in := visitorInput()
		in.Email = email
		_, err := f.svc.Submit(context.Background(), in)
		if ve, ok := apperr.IsValidation(err); !ok || !reflect.DeepEqual(ve.Fields, []string{"email"}) {
			t.Fatalf("email %q: expected email validation error, got %v", email, err)
		}
	}
}

func TestDecideRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	req, _ := f.svc.Submit(context.Background(), visitorInput())

	_, err := f.svc.Decide(context.Background(), req.ID, hrActor, model.StatusRejected, "  ")
	ve, ok := apperr.IsValidation(err)
	if !ok || ve.Fields[0] != "rejectionReason" {
		t.Fatalf("expected rejectionReason validation error, got %v", err)
	}

	got, err := f.svc.Decide(context.Background(), req.ID, hrActor, model.StatusRejected, "No host available")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if got.Status != model.StatusRejected || got.RejectionReason != "No host available" || got.ApprovedBy != "hana" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestDecideEmitsEventAndBlocksSecondDecision(t *testing.T) {
	f := newFixture(t)
	req, _ := f.svc.Submit(context.Background(), visitorInput())

	if _, err := f.svc.Decide(context.Background(), req.ID, hrActor, model.StatusApproved, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if len(f.sink.events) != 1 || f.sink.events[0].routingKey != mqcontracts.RoutingRequestDecided {
		t.Fatalf("unexpected events %+v", f.sink.events)
	}
	p := f.sink.events[0].payload.(mqcontracts.RequestDecidedPayload)
	if p.RequestID != req.ID || p.Status != "approved" || p.ActorRole != model.RoleHR || p.Channel != ChannelDashboard {
		t.Fatalf("unexpected payload %+v", p)
	}

	_, err := f.svc.Decide(context.Background(), req.ID, hrActor, model.StatusRejected, "changed my mind")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(f.sink.events) != 1 {
		t.Fatal("a rejected transition must not emit events")
	}
}

func TestDecideValidation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Decide(context.Background(), "nope", hrActor, model.StatusApproved, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, status := range []model.RequestStatus{"", "pending", "archived"} {
		if _, err := f.svc.Decide(context.Background(), "x", hrActor, status, ""); err == nil {
			t.Fatalf("status %q should be rejected", status)
		}
	}
}

func TestDecideSurvivesEmitFailure(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("outbox unavailable")
	req, _ := f.svc.Submit(context.Background(), visitorInput())

	if _, err := f.svc.Decide(context.Background(), req.ID, hrActor, model.StatusApproved, ""); err != nil {
		t.Fatalf("emit failure must not fail the decision: %v", err)
	}
}

func TestDecideViaToken(t *testing.T) {
	f := newFixture(t)
	req, _ := f.svc.Submit(context.Background(), visitorInput())

	tok, _ := f.codec.Encode(req.ID, token.ActionReject, model.RoleAdmin, "alice@corp.test")
	res, err := f.svc.DecideViaToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("DecideViaToken: %v", err)
	}
	if res.Approved() || res.Request.RejectionReason != DefaultRejectionReason || res.Request.ApprovedBy != "alice@corp.test" {
		t.Fatalf("unexpected result %+v", res.Request)
	}

	// replaying a still-fresh token reports already processed
	if _, err := f.svc.DecideViaToken(context.Background(), tok); !errors.Is(err, apperr.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestDecideViaTokenErrors(t *testing.T) {
	f := newFixture(t)
	req, _ := f.svc.Submit(context.Background(), visitorInput())

	if _, err := f.svc.DecideViaToken(context.Background(), "%%%"); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	tok, _ := f.codec.Encode(req.ID, token.ActionApprove, model.RoleHR, "hana@corp.test")
	f.svc.now = func() time.Time { return time.Now().Add(73 * time.Hour) }
	if _, err := f.svc.DecideViaToken(context.Background(), tok); !errors.Is(err, apperr.ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}

	f.svc.now = time.Now
	missing, _ := f.codec.Encode("does-not-exist", token.ActionApprove, model.RoleHR, "hana@corp.test")
	if _, err := f.svc.DecideViaToken(context.Background(), missing); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	bogusRole, _ := f.codec.Encode(req.ID, token.ActionApprove, "janitor", "x@corp.test")
	if _, err := f.svc.DecideViaToken(context.Background(), bogusRole); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for unknown role, got %v", err)
	}
}

// staffSet lists "role:email" pairs that count as active staff.
type staffSet map[string]bool

func (s staffSet) IsActiveStaff(_ context.Context, email, role string) (bool, error) {
	return s[role+":"+email], nil
}

func TestDecideViaTokenRequiresActiveRecipient(t *testing.T) {
	f := newFixture(t)
	f.svc.staff = staffSet{model.RoleHR + ":hana@corp.test": true}
	ctx := context.Background()
	req, _ := f.svc.Submit(ctx, visitorInput())

	revoked, _ := f.codec.Encode(req.ID, token.ActionApprove, model.RoleHR, "gone@corp.test")
	if _, err := f.svc.DecideViaToken(ctx, revoked); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for inactive recipient, got %v", err)
	}
	if got, _ := f.store.GetByID(ctx, req.ID); got.Status != model.StatusPending {
		t.Fatalf("request must stay pending, got %s", got.Status)
	}

	ok, _ := f.codec.Encode(req.ID, token.ActionApprove, model.RoleHR, "hana@corp.test")
	res, err := f.svc.DecideViaToken(ctx, ok)
	if err != nil || !res.Approved() {
		t.Fatalf("active recipient: res=%+v err=%v", res, err)
	}
}

func TestBulkDecide(t *testing.T) {
	f := newFixture(t)
	a, _ := f.svc.Submit(context.Background(), visitorInput())
	b, _ := f.svc.Submit(context.Background(), visitorInput())
	_, _ = f.svc.Decide(context.Background(), b.ID, hrActor, model.StatusApproved, "")

	results, err := f.svc.BulkDecide(context.Background(), []string{a.ID, b.ID, "ghost", a.ID}, hrActor, model.StatusApproved, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []BulkResult{
		{ID: a.ID, Outcome: OutcomeUpdated},
		{ID: b.ID, Outcome: OutcomeConflict},
		{ID: "ghost", Outcome: OutcomeNotFound},
	}
	if !reflect.DeepEqual(results, want) {
		t.Fatalf("results=%+v, want %+v", results, want)
	}

	if _, err := f.svc.BulkDecide(context.Background(), nil, hrActor, model.StatusApproved, ""); err == nil {
		t.Fatal("empty id list should fail validation")
	}
}

func TestConcurrentDecideOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	req, _ := f.svc.Submit(context.Background(), visitorInput())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Decide(context.Background(), req.ID, hrActor, model.StatusApproved, ""); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("expected exactly one successful decision, got %d", successes)
	}
}

func TestGetStatusByRequestNumber(t *testing.T) {
	f := newFixture(t)
	req, _ := f.svc.Submit(context.Background(), visitorInput())

	got, err := f.svc.GetStatus(context.Background(), "JANE@example.com", "1")
	if err != nil || got.ID != req.ID {
		t.Fatalf("GetStatus: %v %+v", err, got)
	}
	if _, err := f.svc.GetStatus(context.Background(), "other@example.com", req.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong email, got %v", err)
	}
}
