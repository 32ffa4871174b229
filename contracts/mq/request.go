package mq

import "time"

// Routing keys published on the "events" exchange.
const (
	RoutingRequestDecided      = "request.decided"
	RoutingAttachmentCompleted = "request.attachment_completed"
	AggregateAccessRequest     = "access_request"
)

// RequestDecidedPayload 审批完成事件的 payload
type RequestDecidedPayload struct {
	RequestID       string    `json:"request_id"`
	Status          string    `json:"status"` // approved / rejected
	RejectionReason string    `json:"rejection_reason,omitempty"`
	ActorID         string    `json:"actor_id,omitempty"`
	ActorName       string    `json:"actor_name"`
	ActorEmail      string    `json:"actor_email,omitempty"`
	ActorRole       string    `json:"actor_role"`
	Channel         string    `json:"channel"` // dashboard / email / bulk
	DecidedAt       time.Time `json:"decided_at"`
	TraceID         string    `json:"trace_id,omitempty"`
}

// AttachmentCompletedPayload 第一张图片上传后触发
type AttachmentCompletedPayload struct {
	RequestID  string    `json:"request_id"`
	ImageURL   string    `json:"image_url"`
	UploadedAt time.Time `json:"uploaded_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}
