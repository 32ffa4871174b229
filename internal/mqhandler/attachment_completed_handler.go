package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	mqcontracts "accessdesk/contracts/mq"
	"accessdesk/internal/repository"
	"accessdesk/pkg/logger"
	"accessdesk/pkg/otel"

	"go.uber.org/zap"
)

// AttachmentCompletedHandler 首张图片上传后：写 info 消息并通知所有在职员工
type AttachmentCompletedHandler struct {
	requests repository.RequestStore
	notifier Notifier
	deduper  Deduper
	logger   *zap.Logger
}

func NewAttachmentCompletedHandler(requests repository.RequestStore, notifier Notifier, deduper Deduper, logger *zap.Logger) *AttachmentCompletedHandler {
	return &AttachmentCompletedHandler{requests: requests, notifier: notifier, deduper: deduper, logger: logger}
}

func (h *AttachmentCompletedHandler) Handle(ctx context.Context, raw json.RawMessage) (err error) {
	var p mqcontracts.AttachmentCompletedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal AttachmentCompletedPayload", zap.Error(err))
		return err
	}

	ctx, span := otel.JobSpan(ctx, mqcontracts.RoutingAttachmentCompleted)
	defer func() { otel.EndSpan(span, err) }()

	log := logger.WithTrace(ctx, h.logger).With(zap.String("request_id", p.RequestID))
	log.Info("Handling request.attachment_completed event", zap.String("image_url", p.ImageURL))

	if !h.deduper.AcquireOnce(ctx, "attachment_completed", p.RequestID) {
		return nil
	}

	req, err := h.requests.GetByID(ctx, p.RequestID)
	if err != nil {
		return fmt.Errorf("load request %s: %w", p.RequestID, err)
	}

	if _, err := h.notifier.RecordUploadMessage(ctx, req); err != nil {
		log.Error("Failed to record upload message", zap.Error(err))
	}
	h.notifier.NotifyNewRequest(ctx, req)
	return nil
}
