package handler

import (
	"context"
	"net/http"
	"strconv"

	"accessdesk/internal/service/request"
	"accessdesk/internal/service/user"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OutboxReplayer re-publishes outbox events; nil when notifications run inline.
type OutboxReplayer interface {
	ReplayEvent(ctx context.Context, eventID int64) error
	ReplayFailedEvents(ctx context.Context, limit int) (int, error)
}

type AdminHandler struct {
	decisions     decisionEndpoint
	users         *user.Service
	replayService OutboxReplayer
	logger        *zap.Logger
}

func NewAdminHandler(requests *request.Service, users *user.Service, replayService OutboxReplayer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		decisions:     decisionEndpoint{requests: requests, logger: logger},
		users:         users,
		replayService: replayService,
		logger:        logger,
	}
}

// ListRequests handles GET /admin/requests?status=&purpose=&email=&page=&limit=
func (h *AdminHandler) ListRequests(c *gin.Context) { h.decisions.list(c) }

// GetRequest handles GET /admin/requests/:id
func (h *AdminHandler) GetRequest(c *gin.Context) { h.decisions.get(c) }

// UpdateRequest handles PATCH /admin/requests/:id
// body: {status, rejectionReason} or {requestId} for legacy number backfill
func (h *AdminHandler) UpdateRequest(c *gin.Context) { h.decisions.decide(c, true) }

// ListUsers handles GET /admin/users?role=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context(), c.Query("role"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, userJSON(u))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// CreateUser handles POST /admin/users (creates an hr account)
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	u, err := h.users.CreateHRUser(c.Request.Context(), user.CreateInput{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "HR user created successfully", "data": userJSON(u)})
}

// SetUserActive handles PATCH /admin/users/:id/active
func (h *AdminHandler) SetUserActive(c *gin.Context) {
	var body struct {
		IsActive *bool `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.IsActive == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "isActive is required", "required": []string{"isActive"}})
		return
	}

	if err := h.users.SetActive(c.Request.Context(), actorFrom(c), c.Param("id"), *body.IsActive); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated", "isActive": *body.IsActive})
}

// DeleteUser handles DELETE /admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.users.DeleteUser(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// ReplayOutboxEvent 重放指定的 Outbox 事件
// POST /admin/outbox/replay?id=xxx
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	if h.replayService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "outbox replay is only available in queue mode"})
		return
	}

	idStr := c.Query("id")
	if idStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing id parameter", "required": []string{"id"}})
		return
	}

	eventID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id parameter"})
		return
	}

	if err := h.replayService.ReplayEvent(c.Request.Context(), eventID); err != nil {
		h.logger.Error("Failed to replay event",
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "failed to replay event",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "replayed",
		"event_id": eventID,
	})
}

// ReplayFailedEvents 重放所有失败的事件
// POST /admin/outbox/replay-failed?limit=100
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	if h.replayService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "outbox replay is only available in queue mode"})
		return
	}

	limitStr := c.DefaultQuery("limit", "100")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 100
	}

	successCount, err := h.replayService.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to replay failed events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "failed to replay failed events",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "completed",
		"success_count": successCount,
		"limit":         limit,
	})
}
