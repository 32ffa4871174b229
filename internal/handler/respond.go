package handler

import (
	"errors"
	"net/http"
	"strconv"

	"accessdesk/internal/apperr"
	"accessdesk/internal/model"

	"github.com/gin-gonic/gin"
)

// gin context keys set by the auth middleware
const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxUsername = "username"
	CtxEmail    = "email"
)

// abortWithError maps service errors to HTTP status codes.
func abortWithError(c *gin.Context, err error) {
	if ve, ok := apperr.IsValidation(err); ok {
		body := gin.H{"message": ve.Message}
		if len(ve.Fields) > 0 {
			body["required"] = ve.Fields
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, body)
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, apperr.ErrForbidden):
		status, message = http.StatusForbidden, "Access denied"
	case errors.Is(err, apperr.ErrNotFound):
		status, message = http.StatusNotFound, "Not found"
	case errors.Is(err, apperr.ErrAlreadyProcessed):
		status, message = http.StatusConflict, "Request has already been processed"
	case errors.Is(err, apperr.ErrConflict):
		status, message = http.StatusConflict, "Conflict"
	}
	if status != http.StatusInternalServerError {
		message = message + ": " + err.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

// actorFrom builds the acting staff identity from the JWT claims.
func actorFrom(c *gin.Context) model.Actor {
	return model.Actor{
		ID:    c.GetString(CtxUserID),
		Name:  c.GetString(CtxUsername),
		Email: c.GetString(CtxEmail),
		Role:  c.GetString(CtxRole),
	}
}

func pageFrom(c *gin.Context) model.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return model.Page{Page: page, Limit: limit}.Normalize()
}

func pagination(p model.Page, total int) gin.H {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return gin.H{
		"page":  p.Page,
		"limit": p.Limit,
		"total": total,
		"pages": pages,
	}
}
