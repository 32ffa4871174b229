// Package attachment associates uploaded images with access requests.
package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mqcontracts "accessdesk/contracts/mq"
	"accessdesk/internal/apperr"
	"accessdesk/internal/repository"
	"accessdesk/internal/storage"
	"accessdesk/pkg/logger"
	"accessdesk/pkg/trace"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxBytes = 5 << 20

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type EventSink interface {
	Emit(ctx context.Context, routingKey, aggregateID string, payload any) error
}

type Service struct {
	requests repository.RequestStore
	blobs    storage.BlobStore
	events   EventSink
	maxBytes int64
	logger   *zap.Logger
}

func NewService(requests repository.RequestStore, blobs storage.BlobStore, events EventSink, maxBytes int64, logger *zap.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Service{requests: requests, blobs: blobs, events: events, maxBytes: maxBytes, logger: logger}
}

type UploadResult struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Count    int    `json:"count"`
}

// Upload stores one image and appends its URL to the request. The first image
// of a request emits request.attachment_completed, which drives the staff alert.
func (s *Service) Upload(ctx context.Context, requestID string, r io.Reader) (*UploadResult, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, apperr.Validation("Missing required fields", "requestId")
	}
	if _, err := s.requests.GetByID(ctx, requestID); err != nil {
		return nil, err
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return nil, apperr.Validation("Image file is empty", "image")
		}
		return nil, err
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("Unsupported image type %s", contentType), "image")
	}

	name := uuid.NewString() + ext
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.maxBytes+1)
	url, written, err := s.blobs.Put(ctx, name, body)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	if written > s.maxBytes {
		_ = s.blobs.Delete(ctx, name)
		return nil, apperr.Validation(fmt.Sprintf("Image exceeds %d bytes", s.maxBytes), "image")
	}

	count, err := s.requests.AppendImage(ctx, requestID, url)
	if err != nil {
		_ = s.blobs.Delete(ctx, name)
		return nil, err
	}

	log := logger.WithTrace(ctx, s.logger)
	log.Info("Image attached",
		zap.String("request_id", requestID),
		zap.String("filename", name),
		zap.Int("count", count),
	)

	if count == 1 {
		s.announce(ctx, log, requestID, url)
	}

	return &UploadResult{URL: url, Filename: name, Count: count}, nil
}

// announce emits request.attachment_completed once per request. Re-uploading
// after the only image was deleted leaves the count at 1 again, so the stored
// flag decides.
func (s *Service) announce(ctx context.Context, log *zap.Logger, requestID, url string) {
	first, err := s.requests.ClaimStaffNotification(ctx, requestID)
	if err != nil {
		log.Error("Failed to flag staff notification", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	if !first {
		log.Info("Staff already notified, skipping event", zap.String("request_id", requestID))
		return
	}

	payload := mqcontracts.AttachmentCompletedPayload{
		RequestID:  requestID,
		ImageURL:   url,
		UploadedAt: time.Now().UTC(),
		TraceID:    trace.FromContext(ctx),
	}
	if err := s.events.Emit(ctx, mqcontracts.RoutingAttachmentCompleted, requestID, payload); err != nil {
		log.Error("Failed to emit request.attachment_completed", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *Service) List(ctx context.Context, requestID string) ([]string, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return req.Images, nil
}

// Delete removes the image from its request and from the blob store.
func (s *Service) Delete(ctx context.Context, filename string) error {
	requestID, err := s.requests.RemoveImage(ctx, s.blobs.URL(filename))
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if err := s.blobs.Delete(ctx, filename); err != nil {
		return err
	}
	s.logger.Info("Image deleted", zap.String("filename", filename), zap.String("request_id", requestID))
	return nil
}
