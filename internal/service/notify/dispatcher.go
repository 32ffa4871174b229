// Package notify composes staff and submitter emails and records in-app
// messages. Every send is best effort: failures are logged and counted,
// never returned to the caller and never retried.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"accessdesk/internal/apperr"
	"accessdesk/internal/mail"
	"accessdesk/internal/model"
	"accessdesk/internal/repository"
	"accessdesk/pkg/logger"
	"accessdesk/pkg/metrics"
	"accessdesk/pkg/rbac"
	"accessdesk/pkg/token"
	"accessdesk/pkg/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	KindNewRequest   = "new_request"
	KindDecision     = "decision"
	KindConfirmation = "confirmation"
	KindStaffNotice  = "staff_notice"
)

type StaffDirectory interface {
	ListActiveByRole(ctx context.Context, role string) ([]*model.User, error)
}

type TokenEncoder interface {
	Encode(requestID string, action token.Action, role, email string) (string, error)
}

type Config struct {
	// FrontendURL is the base used for one-click action links.
	FrontendURL string
	SendTimeout time.Duration
}

// Report summarises one fan-out.
type Report struct {
	Attempted int
	Failed    int
}

func (r *Report) add(o Report) {
	r.Attempted += o.Attempted
	r.Failed += o.Failed
}

type Dispatcher struct {
	mailer   mail.Sender
	staff    StaffDirectory
	messages repository.MessageStore
	tokens   TokenEncoder
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewDispatcher(
	mailer mail.Sender,
	staff StaffDirectory,
	messages repository.MessageStore,
	tokens TokenEncoder,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &Dispatcher{
		mailer:   mailer,
		staff:    staff,
		messages: messages,
		tokens:   tokens,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

type outgoing struct {
	kind string
	msg  mail.Message
}

// NotifyNewRequest alerts every active admin and hr user. Each email carries
// approve/reject links whose tokens are scoped to that recipient.
func (d *Dispatcher) NotifyNewRequest(ctx context.Context, req *model.AccessRequest) Report {
	log := logger.WithTrace(ctx, d.logger).With(zap.String("request_id", req.ID))
	view := newRequestView(req)

	var batch []outgoing
	for _, role := range []string{model.RoleAdmin, model.RoleHR} {
		users, err := d.staff.ListActiveByRole(ctx, role)
		if err != nil {
			log.Error("Failed to load staff for fan-out", zap.String("role", role), zap.Error(err))
			continue
		}

		for _, u := range users {
			approveURL, rejectURL, err := d.actionLinks(req.ID, role, u.Email)
			if err != nil {
				log.Error("Failed to encode action token", zap.String("recipient", u.Email), zap.Error(err))
				continue
			}
			html, err := mail.Render(mail.TemplateNewRequest, map[string]any{
				"RecipientName": displayName(u),
				"RecipientRole": role,
				"Request":       view,
				"ApproveURL":    approveURL,
				"RejectURL":     rejectURL,
			})
			if err != nil {
				log.Error("Failed to render new request email", zap.Error(err))
				continue
			}
			batch = append(batch, outgoing{kind: KindNewRequest, msg: mail.Message{
				To:      u.Email,
				Subject: fmt.Sprintf("New Access Request: %s (%s)", req.FullName, req.Purpose),
				HTML:    html,
			}})
		}
	}

	report := d.sendAll(ctx, log, batch)
	log.Info("New request fan-out finished",
		zap.Int("attempted", report.Attempted),
		zap.Int("failed", report.Failed),
	)
	return report
}

// NotifyDecision emails the submitter, confirms to the acting staff member
// and informs every active user of the other role.
func (d *Dispatcher) NotifyDecision(ctx context.Context, req *model.AccessRequest, actor model.Actor) Report {
	log := logger.WithTrace(ctx, d.logger).With(
		zap.String("request_id", req.ID),
		zap.String("status", string(req.Status)),
	)
	view := newRequestView(req)
	data := map[string]any{
		"Request":     view,
		"Status":      string(req.Status),
		"StatusTitle": statusTitle(req.Status),
		"Reason":      req.RejectionReason,
		"ActorName":   actor.Name,
		"ActorRole":   actor.Role,
	}

	var batch []outgoing
	if html, err := mail.Render(mail.TemplateDecisionSubmitter, data); err != nil {
		log.Error("Failed to render decision email", zap.Error(err))
	} else {
		batch = append(batch, outgoing{kind: KindDecision, msg: mail.Message{
			To:      req.Email,
			Subject: fmt.Sprintf("Your Access Request has been %s", statusTitle(req.Status)),
			HTML:    html,
		}})
	}

	if actor.Email != "" {
		if html, err := mail.Render(mail.TemplateDecisionActor, data); err != nil {
			log.Error("Failed to render confirmation email", zap.Error(err))
		} else {
			batch = append(batch, outgoing{kind: KindConfirmation, msg: mail.Message{
				To:      actor.Email,
				Subject: fmt.Sprintf("You %s the access request from %s", req.Status, req.FullName),
				HTML:    html,
			}})
		}
	}

	if other := rbac.ComplementaryRole(actor.Role); other != "" {
		users, err := d.staff.ListActiveByRole(ctx, other)
		if err != nil {
			log.Error("Failed to load staff for decision notice", zap.String("role", other), zap.Error(err))
		}
		for _, u := range users {
			if strings.EqualFold(u.Email, actor.Email) {
				continue
			}
			staffData := map[string]any{"RecipientName": displayName(u)}
			for k, v := range data {
				staffData[k] = v
			}
			html, err := mail.Render(mail.TemplateDecisionStaff, staffData)
			if err != nil {
				log.Error("Failed to render staff notice", zap.Error(err))
				continue
			}
			batch = append(batch, outgoing{kind: KindStaffNotice, msg: mail.Message{
				To:      u.Email,
				Subject: fmt.Sprintf("Access Request %s by %s", statusTitle(req.Status), actor.Name),
				HTML:    html,
			}})
		}
	}

	report := d.sendAll(ctx, log, batch)
	log.Info("Decision notifications finished",
		zap.Int("attempted", report.Attempted),
		zap.Int("failed", report.Failed),
	)
	return report
}

// RecordDecisionMessage persists the in-app message for a decision, addressed to both roles.
func (d *Dispatcher) RecordDecisionMessage(ctx context.Context, req *model.AccessRequest, actor model.Actor, reason string) (*model.Message, error) {
	m := &model.Message{
		ID:               uuid.NewString(),
		Recipient:        model.RecipientBoth,
		RelatedUser:      req.FullName,
		RelatedRequestID: req.ID,
		ActionBy:         actor.Name,
		ActionByRole:     actor.Role,
		CreatedAt:        d.now().UTC(),
	}

	switch req.Status {
	case model.StatusApproved:
		m.Type = model.MessageApproval
		m.Priority = model.PriorityHigh
		m.Title = "Request Approved"
		m.Body = fmt.Sprintf("%s approved the access request from %s (%s).", actor.Name, req.FullName, req.Purpose)
	case model.StatusRejected:
		m.Type = model.MessageRejection
		m.Priority = model.PriorityMedium
		m.Title = "Request Rejected"
		m.Body = fmt.Sprintf("%s rejected the access request from %s (%s). Reason: %s", actor.Name, req.FullName, req.Purpose, reason)
	default:
		return nil, fmt.Errorf("no decision message for status %q", req.Status)
	}

	if err := d.messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("record decision message: %w", err)
	}
	return m, nil
}

// RecordUploadMessage persists the info message raised when a request gets its first image.
func (d *Dispatcher) RecordUploadMessage(ctx context.Context, req *model.AccessRequest) (*model.Message, error) {
	m := &model.Message{
		ID:               uuid.NewString(),
		Recipient:        model.RecipientBoth,
		Type:             model.MessageInfo,
		Priority:         model.PriorityMedium,
		Title:            "New Access Request",
		Body:             fmt.Sprintf("%s submitted an access request (%s) to meet %s.", req.FullName, req.Purpose, req.WhomToMeet),
		RelatedUser:      req.FullName,
		RelatedRequestID: req.ID,
		CreatedAt:        d.now().UTC(),
	}
	if err := d.messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("record upload message: %w", err)
	}
	return m, nil
}

// sendAll 并发发送，每封邮件独立超时，失败只记录
func (d *Dispatcher) sendAll(ctx context.Context, log *zap.Logger, batch []outgoing) Report {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report = Report{Attempted: len(batch)}
	)
	for _, o := range batch {
		wg.Add(1)
		go func(o outgoing) {
			defer wg.Done()
			if err := d.sendOne(ctx, o); err != nil {
				errType, _ := util.ClassifyError(err)
				log.Error("Notification delivery failed",
					zap.String("error_type", errType),
					zap.Error(err),
				)
				mu.Lock()
				report.Failed++
				mu.Unlock()
			}
		}(o)
	}
	wg.Wait()
	return report
}

func (d *Dispatcher) sendOne(ctx context.Context, o outgoing) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	if err := d.mailer.Send(sendCtx, o.msg); err != nil {
		metrics.IncrementNotification(o.kind, "failed")
		return &apperr.DeliveryError{Recipient: o.msg.To, Kind: o.kind, Err: err}
	}
	metrics.IncrementNotification(o.kind, "sent")
	return nil
}

func (d *Dispatcher) actionLinks(requestID, role, email string) (string, string, error) {
	approve, err := d.tokens.Encode(requestID, token.ActionApprove, role, email)
	if err != nil {
		return "", "", err
	}
	reject, err := d.tokens.Encode(requestID, token.ActionReject, role, email)
	if err != nil {
		return "", "", err
	}
	return d.actionURL(approve), d.actionURL(reject), nil
}

func (d *Dispatcher) actionURL(tok string) string {
	return d.cfg.FrontendURL + "/email-action?token=" + url.QueryEscape(tok)
}
