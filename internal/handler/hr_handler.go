package handler

import (
	"accessdesk/internal/service/request"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HRHandler struct {
	decisions decisionEndpoint
}

func NewHRHandler(requests *request.Service, logger *zap.Logger) *HRHandler {
	return &HRHandler{decisions: decisionEndpoint{requests: requests, logger: logger}}
}

// ListRequests handles GET /hr/requests
func (h *HRHandler) ListRequests(c *gin.Context) { h.decisions.list(c) }

// GetRequest handles GET /hr/requests/:id
func (h *HRHandler) GetRequest(c *gin.Context) { h.decisions.get(c) }

// DecideRequest handles PATCH /hr/requests/:id
func (h *HRHandler) DecideRequest(c *gin.Context) { h.decisions.decide(c, false) }

// BulkDecide handles PATCH /hr/requests/bulk
func (h *HRHandler) BulkDecide(c *gin.Context) { h.decisions.bulk(c) }
