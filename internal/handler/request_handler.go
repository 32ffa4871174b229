package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"accessdesk/internal/apperr"
	"accessdesk/internal/model"
	"accessdesk/internal/service/request"
	"accessdesk/pkg/logger"
	"accessdesk/pkg/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimiter guards the public email-action endpoint. *util.WindowCounter satisfies it.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64) bool
}

type RequestHandler struct {
	requests    *request.Service
	limiter     RateLimiter
	actionLimit int64
	logger      *zap.Logger
}

func NewRequestHandler(requests *request.Service, limiter RateLimiter, actionLimit int64, logger *zap.Logger) *RequestHandler {
	if actionLimit <= 0 {
		actionLimit = 30
	}
	return &RequestHandler{
		requests:    requests,
		limiter:     limiter,
		actionLimit: actionLimit,
		logger:      logger,
	}
}

// Submit handles POST /requests
func (h *RequestHandler) Submit(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	in := request.SubmitInput{
		FullName:        stringField(body, "fullName"),
		Email:           stringField(body, "email"),
		PhoneNumber:     stringField(body, "phoneNumber"),
		PurposeOfAccess: stringField(body, "purposeOfAccess"),
		WhomToMeet:      stringField(body, "whomToMeet"),
		Fields:          make(map[string]string),
	}
	for _, name := range model.AllPurposeFields() {
		if v := stringField(body, name); v != "" {
			in.Fields[name] = v
		}
	}

	req, err := h.requests.Submit(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Access request submitted successfully",
		"requestId": req.RequestNumber,
		"data": gin.H{
			"id":            req.ID,
			"fullName":      req.FullName,
			"email":         req.Email,
			"status":        req.Status,
			"submittedDate": req.SubmittedDate,
			"submittedTime": req.SubmittedTime,
		},
	})
}

// Status handles GET /requests/status?email=&id=
func (h *RequestHandler) Status(c *gin.Context) {
	req, err := h.requests.GetStatus(c.Request.Context(), c.Query("email"), c.Query("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": statusJSON(req)})
}

// ListByEmail handles GET /requests/user/:email
func (h *RequestHandler) ListByEmail(c *gin.Context) {
	page := pageFrom(c)
	list, total, err := h.requests.ListByEmail(c.Request.Context(), c.Param("email"), page)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       requestsJSON(list),
		"pagination": pagination(page, total),
	})
}

// EmailAction handles GET /requests/email-action?token=
// Staff reach it from the approve/reject links in the new-request email.
func (h *RequestHandler) EmailAction(c *gin.Context) {
	ctx := c.Request.Context()
	if h.limiter != nil && !h.limiter.Allow(ctx, util.FormatRateKey("email-action", c.ClientIP()), h.actionLimit) {
		renderActionPage(c, http.StatusTooManyRequests, actionPage{
			Title:   "Too Many Requests",
			Message: "Too many attempts from this address. Please wait a minute and try again.",
		})
		return
	}

	tok := strings.TrimSpace(c.Query("token"))
	if tok == "" {
		renderActionPage(c, http.StatusBadRequest, failurePage(apperr.ErrInvalidToken))
		return
	}

	res, err := h.requests.DecideViaToken(ctx, tok)
	if err != nil {
		logger.WithTrace(ctx, h.logger).Warn("Email action rejected", zap.Error(err))
		page := failurePage(err)
		status := http.StatusBadRequest
		if page.internal {
			status = http.StatusInternalServerError
		}
		renderActionPage(c, status, page)
		return
	}

	page := actionPage{
		Success:   true,
		Title:     "Request Approved",
		Message:   fmt.Sprintf("The access request from %s has been approved.", res.Request.FullName),
		Requester: res.Request.FullName,
		Purpose:   string(res.Request.Purpose),
	}
	if !res.Approved() {
		page.Title = "Request Rejected"
		page.Message = fmt.Sprintf("The access request from %s has been rejected.", res.Request.FullName)
	}
	renderActionPage(c, http.StatusOK, page)
}

func stringField(body map[string]any, key string) string {
	switch v := body[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
