package handler

import (
	"net/http"
	"strconv"

	"accessdesk/internal/apperr"
	"accessdesk/internal/model"
	"accessdesk/internal/service/inbox"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	inbox *inbox.Service
}

func NewMessageHandler(inbox *inbox.Service) *MessageHandler {
	return &MessageHandler{inbox: inbox}
}

// List handles GET /messages?type=&isRead=&page=&limit=
func (h *MessageHandler) List(c *gin.Context) {
	filter := model.MessageFilter{Type: model.MessageType(c.Query("type"))}
	if raw := c.Query("isRead"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			abortWithError(c, apperr.Validation("isRead must be true or false", "isRead"))
			return
		}
		filter.IsRead = &v
	}

	page := pageFrom(c)
	res, err := h.inbox.List(c.Request.Context(), c.GetString(CtxRole), filter, page)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        messageViewsJSON(res.Items),
		"unreadCount": res.UnreadCount,
		"pagination":  pagination(model.Page{Page: res.Page, Limit: res.Limit}, res.Total),
	})
}

// UnreadCount handles GET /messages/unread-count
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	n, err := h.inbox.UnreadCount(c.Request.Context(), c.GetString(CtxRole))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": n})
}

// MarkRead handles PATCH /messages/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	role := c.GetString(CtxRole)
	m, err := h.inbox.MarkRead(c.Request.Context(), c.Param("id"), c.GetString(CtxUserID), role)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message marked as read", "data": messageJSON(m, m.ReadByRole(role))})
}

// MarkAllRead handles PATCH /messages/mark-all-read
func (h *MessageHandler) MarkAllRead(c *gin.Context) {
	n, err := h.inbox.MarkAllRead(c.Request.Context(), c.GetString(CtxRole), c.GetString(CtxUserID))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All messages marked as read", "count": n})
}

// Delete handles DELETE /messages/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	if err := h.inbox.Delete(c.Request.Context(), c.Param("id"), c.GetString(CtxRole)); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted"})
}
