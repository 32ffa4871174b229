package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	mqcontracts "accessdesk/contracts/mq"
	"accessdesk/internal/model"
	"accessdesk/internal/repository"
	"accessdesk/internal/service/notify"
	"accessdesk/pkg/logger"
	"accessdesk/pkg/otel"

	"go.uber.org/zap"
)

// Deduper guards against MQ redelivery re-sending the same notifications.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, id string) bool
}

type Notifier interface {
	NotifyNewRequest(ctx context.Context, req *model.AccessRequest) notify.Report
	NotifyDecision(ctx context.Context, req *model.AccessRequest, actor model.Actor) notify.Report
	RecordDecisionMessage(ctx context.Context, req *model.AccessRequest, actor model.Actor, reason string) (*model.Message, error)
	RecordUploadMessage(ctx context.Context, req *model.AccessRequest) (*model.Message, error)
}

type RequestDecidedHandler struct {
	requests repository.RequestStore
	notifier Notifier
	deduper  Deduper
	logger   *zap.Logger
}

func NewRequestDecidedHandler(requests repository.RequestStore, notifier Notifier, deduper Deduper, logger *zap.Logger) *RequestDecidedHandler {
	return &RequestDecidedHandler{requests: requests, notifier: notifier, deduper: deduper, logger: logger}
}

// Handle records the decision message and sends the decision emails.
// Delivery failures are absorbed by the notifier; only undecodable payloads
// and missing requests return an error (the consumer dead-letters those).
func (h *RequestDecidedHandler) Handle(ctx context.Context, raw json.RawMessage) (err error) {
	var p mqcontracts.RequestDecidedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal RequestDecidedPayload", zap.Error(err))
		return err
	}

	ctx, span := otel.JobSpan(ctx, mqcontracts.RoutingRequestDecided)
	defer func() { otel.EndSpan(span, err) }()

	log := logger.WithTrace(ctx, h.logger).With(zap.String("request_id", p.RequestID))
	log.Info("Handling request.decided event",
		zap.String("status", p.Status),
		zap.String("actor", p.ActorName),
		zap.String("channel", p.Channel),
	)

	if !h.deduper.AcquireOnce(ctx, "request_decided", p.RequestID) {
		return nil
	}

	req, err := h.requests.GetByID(ctx, p.RequestID)
	if err != nil {
		return fmt.Errorf("load request %s: %w", p.RequestID, err)
	}

	actor := model.Actor{ID: p.ActorID, Name: p.ActorName, Email: p.ActorEmail, Role: p.ActorRole}

	if _, err := h.notifier.RecordDecisionMessage(ctx, req, actor, p.RejectionReason); err != nil {
		log.Error("Failed to record decision message", zap.Error(err))
	}
	h.notifier.NotifyDecision(ctx, req, actor)
	return nil
}
