package httpserver

import (
	"net/http"

	"accessdesk/internal/handler"
	"accessdesk/pkg/rbac"

	"github.com/gin-gonic/gin"
)

// RequirePermission 中间件：要求用户具有指定权限
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(handler.CtxUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "user not authenticated"})
			return
		}

		if err := rbac.CheckPermission(userID, c.GetString(handler.CtxRole), permission); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": err.Error()})
			return
		}

		c.Next()
	}
}

// RequireRole restricts a route group to exactly one role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(handler.CtxRole) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Access denied. " + role + " role required."})
			return
		}
		c.Next()
	}
}
