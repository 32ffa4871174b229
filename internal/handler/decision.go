package handler

import (
	"net/http"

	"accessdesk/internal/apperr"
	"accessdesk/internal/model"
	"accessdesk/internal/service/request"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type decisionBody struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejectionReason"`
	// RequestID switches the PATCH into legacy number backfill mode.
	RequestID *int64 `json:"requestId"`
}

type bulkDecisionBody struct {
	RequestIDs      []string `json:"requestIds"`
	Status          string   `json:"status"`
	RejectionReason string   `json:"rejectionReason"`
}

// decisionEndpoint is shared by the admin and hr PATCH routes.
type decisionEndpoint struct {
	requests *request.Service
	logger   *zap.Logger
}

func (d decisionEndpoint) decide(c *gin.Context, allowBackfill bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		abortWithError(c, apperr.Validation("Invalid request id format", "id"))
		return
	}

	var body decisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	if body.RequestID != nil && body.Status == "" {
		if !allowBackfill {
			abortWithError(c, apperr.Validation("Status is required", "status"))
			return
		}
		updated, err := d.requests.AssignRequestNumber(ctx, id, *body.RequestID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Request number assigned", "data": requestJSON(updated)})
		return
	}

	updated, err := d.requests.Decide(ctx, id, actorFrom(c), model.RequestStatus(body.Status), body.RejectionReason)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Request " + string(updated.Status) + " successfully",
		"notifications": "in_progress",
		"data":          requestJSON(updated),
	})
}

func (d decisionEndpoint) bulk(c *gin.Context) {
	var body bulkDecisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	results, err := d.requests.BulkDecide(c.Request.Context(), body.RequestIDs, actorFrom(c), model.RequestStatus(body.Status), body.RejectionReason)
	if err != nil {
		abortWithError(c, err)
		return
	}

	updated := 0
	for _, r := range results {
		if r.Outcome == request.OutcomeUpdated {
			updated++
		}
	}
	d.logger.Info("Bulk decision applied",
		zap.String("status", body.Status),
		zap.Int("requested", len(body.RequestIDs)),
		zap.Int("updated", updated),
		zap.String("actor_id", c.GetString(CtxUserID)),
	)
	c.JSON(http.StatusOK, gin.H{
		"message":       "Bulk update completed",
		"updatedCount":  updated,
		"results":       results,
		"notifications": "in_progress",
	})
}

func (d decisionEndpoint) list(c *gin.Context) {
	page := pageFrom(c)
	filter := model.RequestFilter{
		Status:  model.RequestStatus(c.Query("status")),
		Purpose: model.Purpose(c.Query("purpose")),
		Email:   c.Query("email"),
	}
	list, total, err := d.requests.List(c.Request.Context(), filter, page)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       requestsJSON(list),
		"pagination": pagination(page, total),
	})
}

func (d decisionEndpoint) get(c *gin.Context) {
	req, err := d.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": requestJSON(req)})
}
