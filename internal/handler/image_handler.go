package handler

import (
	"net/http"
	"strings"

	"accessdesk/internal/apperr"
	"accessdesk/internal/service/attachment"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ImageHandler struct {
	attachments *attachment.Service
	logger      *zap.Logger
}

func NewImageHandler(attachments *attachment.Service, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{attachments: attachments, logger: logger}
}

// Upload handles POST /images/upload (multipart: requestId, image)
func (h *ImageHandler) Upload(c *gin.Context) {
	requestID := strings.TrimSpace(c.PostForm("requestId"))
	fh, err := c.FormFile("image")

	var missing []string
	if requestID == "" {
		missing = append(missing, "requestId")
	}
	if err != nil {
		missing = append(missing, "image")
	}
	if len(missing) > 0 {
		abortWithError(c, apperr.Validation("Missing required fields", missing...))
		return
	}

	f, err := fh.Open()
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer f.Close()

	res, err := h.attachments.Upload(c.Request.Context(), requestID, f)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Image uploaded successfully",
		"imageUrl": res.URL,
		"filename": res.Filename,
		"count":    res.Count,
	})
}

// ListByRequest handles GET /images/request/:id
func (h *ImageHandler) ListByRequest(c *gin.Context) {
	images, err := h.attachments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images, "count": len(images)})
}

// Delete handles DELETE /images/:filename
func (h *ImageHandler) Delete(c *gin.Context) {
	if err := h.attachments.Delete(c.Request.Context(), c.Param("filename")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Image deleted"})
}
