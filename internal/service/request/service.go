// Package request implements the access request lifecycle: submission,
// the pending -> approved/rejected state machine, and one-click decisions
// from emailed action tokens.
package request

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	mqcontracts "accessdesk/contracts/mq"
	"accessdesk/internal/apperr"
	"accessdesk/internal/model"
	"accessdesk/internal/repository"
	"accessdesk/pkg/logger"
	"accessdesk/pkg/metrics"
	"accessdesk/pkg/otel"
	"accessdesk/pkg/rbac"
	"accessdesk/pkg/token"
	"accessdesk/pkg/trace"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const DefaultRejectionReason = "No specific reason provided"

// Decision channels, used as a metrics label and in event payloads.
const (
	ChannelDashboard = "dashboard"
	ChannelEmail     = "email"
	ChannelBulk      = "bulk"
)

// EventSink receives lifecycle events after the store update has been applied.
// Implementations: outbox.Writer (queue mode) and worker.Pool (inline mode).
type EventSink interface {
	Emit(ctx context.Context, routingKey, aggregateID string, payload any) error
}

type TokenDecoder interface {
	Decode(tok string) (token.Claims, error)
}

// StaffChecker is satisfied by *user.Service.
type StaffChecker interface {
	IsActiveStaff(ctx context.Context, email, role string) (bool, error)
}

type Config struct {
	// TokenMaxAge is the freshness window for action tokens; zero disables the check.
	TokenMaxAge time.Duration
}

type Service struct {
	store  repository.RequestStore
	events EventSink
	tokens TokenDecoder
	staff  StaffChecker
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires the lifecycle. staff may be nil, in which case emailed
// tokens are honoured without checking that their recipient is still active.
func NewService(store repository.RequestStore, events EventSink, tokens TokenDecoder, staff StaffChecker, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		events: events,
		tokens: tokens,
		staff:  staff,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

type SubmitInput struct {
	FullName        string
	Email           string
	PhoneNumber     string
	PurposeOfAccess string
	WhomToMeet      string
	// Fields holds the purpose-conditioned values keyed by their form name.
	Fields map[string]string
}

// Submit validates and stores a new pending request.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*model.AccessRequest, error) {
	base := []struct{ name, value string }{
		{"fullName", in.FullName},
		{"email", in.Email},
		{"phoneNumber", in.PhoneNumber},
		{"purposeOfAccess", in.PurposeOfAccess},
		{"whomToMeet", in.WhomToMeet},
	}
	var missing []string
	for _, f := range base {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}

	purpose := model.Purpose(strings.ToLower(strings.TrimSpace(in.PurposeOfAccess)))
	var details model.PurposeDetails
	if purpose != "" && purpose.Valid() {
		var purposeMissing []string
		details, purposeMissing, _ = model.ParsePurposeDetails(purpose, in.Fields)
		missing = append(missing, purposeMissing...)
	}
	// missing base fields are reported before an unknown purpose
	if len(missing) > 0 {
		return nil, apperr.Validation("Missing required fields", missing...)
	}
	if !purpose.Valid() {
		return nil, apperr.Validation("Invalid purposeOfAccess", "purposeOfAccess")
	}

	email := strings.TrimSpace(in.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperr.Validation("Invalid email address", "email")
	}

	now := s.now()
	req := &model.AccessRequest{
		ID:            uuid.NewString(),
		FullName:      strings.TrimSpace(in.FullName),
		Email:         email,
		PhoneNumber:   strings.TrimSpace(in.PhoneNumber),
		Purpose:       purpose,
		WhomToMeet:    strings.TrimSpace(in.WhomToMeet),
		Details:       details,
		Status:        model.StatusPending,
		Images:        []string{},
		SubmittedDate: now.Format("2006-01-02"),
		SubmittedTime: now.Format("15:04:05"),
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	metrics.IncrementRequestSubmitted(string(purpose))
	logger.WithTrace(ctx, s.logger).Info("Access request submitted",
		zap.String("request_id", req.ID),
		zap.String("purpose", string(purpose)),
	)
	return req, nil
}

// Decide applies a dashboard decision by an authenticated actor.
func (s *Service) Decide(ctx context.Context, id string, actor model.Actor, status model.RequestStatus, reason string) (*model.AccessRequest, error) {
	if err := validateDecision(status, reason); err != nil {
		return nil, err
	}
	return s.decide(ctx, id, actor, status, reason, ChannelDashboard)
}

func validateDecision(status model.RequestStatus, reason string) error {
	if status == "" {
		return apperr.Validation("Status is required", "status")
	}
	if status != model.StatusApproved && status != model.StatusRejected {
		return apperr.Validation("Invalid status value, must be 'approved' or 'rejected'", "status")
	}
	if status == model.StatusRejected && strings.TrimSpace(reason) == "" {
		return apperr.Validation("Rejection reason is required when rejecting a request", "rejectionReason")
	}
	return nil
}

func (s *Service) decide(ctx context.Context, id string, actor model.Actor, status model.RequestStatus, reason, channel string) (_ *model.AccessRequest, err error) {
	ctx, span := otel.StartSpan(ctx, "request.decide",
		attribute.String("request.id", id),
		attribute.String("request.status", string(status)),
		attribute.String("decision.channel", channel),
	)
	defer func() { otel.EndSpan(span, err) }()

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, status) {
		return nil, fmt.Errorf("request %s is already %s: %w", id, current.Status, apperr.ErrConflict)
	}

	d := model.Decision{
		Status:     status,
		ApprovedBy: actor.Name,
		ApprovedAt: s.now().UTC(),
	}
	if status == model.StatusRejected {
		d.RejectionReason = strings.TrimSpace(reason)
	}

	updated, err := s.store.DecidePending(ctx, id, d)
	if err != nil {
		return nil, err
	}
	metrics.IncrementDecision(string(status), channel)

	log := logger.WithTrace(ctx, s.logger)
	log.Info("Access request decided",
		zap.String("request_id", id),
		zap.String("status", string(status)),
		zap.String("actor", actor.Name),
		zap.String("actor_role", actor.Role),
		zap.String("channel", channel),
	)

	// 通知异步执行，失败不影响本次响应
	payload := mqcontracts.RequestDecidedPayload{
		RequestID:       updated.ID,
		Status:          string(updated.Status),
		RejectionReason: updated.RejectionReason,
		ActorID:         actor.ID,
		ActorName:       actor.Name,
		ActorEmail:      actor.Email,
		ActorRole:       actor.Role,
		Channel:         channel,
		DecidedAt:       d.ApprovedAt,
		TraceID:         trace.FromContext(ctx),
	}
	if err := s.events.Emit(ctx, mqcontracts.RoutingRequestDecided, updated.ID, payload); err != nil {
		log.Error("Failed to emit request.decided", zap.String("request_id", id), zap.Error(err))
	}

	return updated, nil
}

type DecisionResult struct {
	Request *model.AccessRequest
	Status  model.RequestStatus
}

func (r *DecisionResult) Approved() bool { return r.Status == model.StatusApproved }

// DecideViaToken applies a one-click decision from an emailed link. The token's
// embedded identity stands in for the actor.
func (s *Service) DecideViaToken(ctx context.Context, tok string) (*DecisionResult, error) {
	claims, err := s.tokens.Decode(tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidToken, err)
	}
	if !rbac.IsValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidToken, claims.Role)
	}
	if claims.Expired(s.now(), s.cfg.TokenMaxAge) {
		return nil, apperr.ErrExpiredToken
	}
	if s.staff != nil {
		active, err := s.staff.IsActiveStaff(ctx, claims.Email, claims.Role)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, fmt.Errorf("%w: %s is no longer active %s staff", apperr.ErrInvalidToken, claims.Email, claims.Role)
		}
	}

	current, err := s.store.GetByID(ctx, claims.RequestID)
	if err != nil {
		return nil, err
	}
	if current.Status != model.StatusPending {
		return nil, fmt.Errorf("request %s is %s: %w", current.ID, current.Status, apperr.ErrAlreadyProcessed)
	}

	status := model.StatusApproved
	reason := ""
	if claims.Action == token.ActionReject {
		status = model.StatusRejected
		reason = DefaultRejectionReason
	}

	actor := model.Actor{Name: claims.Email, Email: claims.Email, Role: claims.Role}
	updated, err := s.decide(ctx, claims.RequestID, actor, status, reason, ChannelEmail)
	if errors.Is(err, apperr.ErrConflict) {
		// 并发下另一个请求先处理了
		return nil, fmt.Errorf("request %s: %w", claims.RequestID, apperr.ErrAlreadyProcessed)
	}
	if err != nil {
		return nil, err
	}
	return &DecisionResult{Request: updated, Status: status}, nil
}

const (
	OutcomeUpdated  = "updated"
	OutcomeConflict = "conflict"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

type BulkResult struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// BulkDecide applies the same decision to each id independently.
func (s *Service) BulkDecide(ctx context.Context, ids []string, actor model.Actor, status model.RequestStatus, reason string) ([]BulkResult, error) {
	if len(ids) == 0 {
		return nil, apperr.Validation("requestIds is required", "requestIds")
	}
	if err := validateDecision(status, reason); err != nil {
		return nil, err
	}

	results := make([]BulkResult, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		_, err := s.decide(ctx, id, actor, status, reason, ChannelBulk)
		r := BulkResult{ID: id, Outcome: OutcomeUpdated}
		switch {
		case err == nil:
		case errors.Is(err, apperr.ErrConflict):
			r.Outcome = OutcomeConflict
		case errors.Is(err, apperr.ErrNotFound):
			r.Outcome = OutcomeNotFound
		default:
			r.Outcome = OutcomeError
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.AccessRequest, error) {
	return s.store.GetByID(ctx, id)
}

// GetStatus looks a request up for its submitter by email plus id or request number.
func (s *Service) GetStatus(ctx context.Context, email, id string) (*model.AccessRequest, error) {
	var missing []string
	if strings.TrimSpace(email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(id) == "" {
		missing = append(missing, "id")
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("Missing required fields", missing...)
	}
	return s.store.FindByEmailAndID(ctx, strings.TrimSpace(email), strings.TrimSpace(id))
}

func (s *Service) ListByEmail(ctx context.Context, email string, page model.Page) ([]*model.AccessRequest, int, error) {
	if strings.TrimSpace(email) == "" {
		return nil, 0, apperr.Validation("Missing required fields", "email")
	}
	return s.store.ListByEmail(ctx, email, page)
}

func (s *Service) List(ctx context.Context, filter model.RequestFilter, page model.Page) ([]*model.AccessRequest, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperr.Validation("Invalid status filter", "status")
	}
	if filter.Purpose != "" && !filter.Purpose.Valid() {
		return nil, 0, apperr.Validation("Invalid purpose filter", "purpose")
	}
	return s.store.List(ctx, filter, page)
}

// AssignRequestNumber backfills the human-readable number on legacy rows.
func (s *Service) AssignRequestNumber(ctx context.Context, id string, number int64) (*model.AccessRequest, error) {
	if number <= 0 {
		return nil, apperr.Validation("requestId must be a positive integer", "requestId")
	}
	return s.store.AssignRequestNumber(ctx, id, number)
}
