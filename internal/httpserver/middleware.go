package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"accessdesk/internal/apperr"
	"accessdesk/internal/handler"
	"accessdesk/internal/util"
	"accessdesk/pkg/metrics"
	"accessdesk/pkg/rbac"
	"accessdesk/pkg/trace"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TraceMiddleware 透传或生成 X-Trace-ID
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(trace.HeaderName)
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName, traceID)
		c.Next()
	}
}

// MetricsMiddleware records request latency by route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// 请求日志中间件
func LoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
		)
	}
}

// AccountChecker is satisfied by *user.Service.
type AccountChecker interface {
	Authorize(ctx context.Context, userID, role string) error
}

// AuthMiddleware validates the session JWT. With accounts set, the user behind
// the token must still exist, be active and hold the token's role.
func AuthMiddleware(jwtSecret string, accounts AccountChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
			return
		}

		claims, err := util.ParseJWT(token, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}
		if !rbac.IsValidRole(claims.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "unknown role"})
			return
		}

		if accounts != nil {
			if err := accounts.Authorize(c.Request.Context(), claims.UserID, claims.Role); err != nil {
				switch {
				case errors.Is(err, apperr.ErrUnauthorized):
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "account not found"})
				case errors.Is(err, apperr.ErrForbidden):
					c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "account disabled"})
				default:
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
				}
				return
			}
		}

		// store identity in context so handlers can use it
		c.Set(handler.CtxUserID, claims.UserID)
		c.Set(handler.CtxRole, claims.Role)
		c.Set(handler.CtxUsername, claims.Username)
		c.Set(handler.CtxEmail, claims.Email)

		c.Next()
	}
}
