package httpserver

import (
	"context"
	"net/http"
	"time"

	"accessdesk/internal/handler"
	"accessdesk/pkg/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker is satisfied by *mq.Publisher.
type ConnChecker interface {
	IsConnected() bool
}

type Handlers struct {
	Requests *handler.RequestHandler
	Admin    *handler.AdminHandler
	HR       *handler.HRHandler
	Messages *handler.MessageHandler
	Images   *handler.ImageHandler
	Auth     *handler.AuthHandler
}

type Options struct {
	JWTSecret   string
	UploadsDir  string
	UploadsPath string
	ServiceName string
	// DB and Publisher are optional readiness dependencies.
	DB        Pinger
	Publisher ConnChecker
	// Accounts re-checks the user behind every session JWT.
	Accounts AccountChecker
}

type Router struct {
	Engine      *gin.Engine
	serviceName string
}

func NewRouter(h Handlers, opts Options, logger *zap.Logger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), MetricsMiddleware(), LoggingMiddleware(logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if opts.DB != nil {
			if err := opts.DB.Ping(ctx); err != nil {
				c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
				return
			}
		}

		if opts.Publisher != nil && !opts.Publisher.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if opts.UploadsDir != "" {
		path := opts.UploadsPath
		if path == "" {
			path = "/uploads"
		}
		r.Static(path, opts.UploadsDir)
	}

	// Public
	r.POST("/auth/login", h.Auth.Login)
	r.POST("/requests", h.Requests.Submit)
	r.GET("/requests/status", h.Requests.Status)
	r.GET("/requests/user/:email", h.Requests.ListByEmail)
	r.GET("/requests/email-action", h.Requests.EmailAction)

	// Submitters attach photos before they ever log in.
	r.POST("/images/upload", h.Images.Upload)
	r.GET("/images/request/:id", h.Images.ListByRequest)

	auth := r.Group("/")
	auth.Use(AuthMiddleware(opts.JWTSecret, opts.Accounts))
	{
		auth.DELETE("/images/:filename", RequirePermission(rbac.PermissionDecideRequest), h.Images.Delete)

		messages := auth.Group("/messages", RequirePermission(rbac.PermissionReadMessage))
		messages.GET("", h.Messages.List)
		messages.GET("/unread-count", h.Messages.UnreadCount)
		messages.PATCH("/mark-all-read", RequirePermission(rbac.PermissionManageMessage), h.Messages.MarkAllRead)
		messages.PATCH("/:id/read", RequirePermission(rbac.PermissionManageMessage), h.Messages.MarkRead)
		messages.DELETE("/:id", RequirePermission(rbac.PermissionManageMessage), h.Messages.Delete)

		hr := auth.Group("/hr")
		hr.GET("/requests", RequirePermission(rbac.PermissionReadRequest), h.HR.ListRequests)
		hr.GET("/requests/:id", RequirePermission(rbac.PermissionReadRequest), h.HR.GetRequest)
		hr.PATCH("/requests/bulk", RequirePermission(rbac.PermissionDecideRequest), h.HR.BulkDecide)
		hr.PATCH("/requests/:id", RequirePermission(rbac.PermissionDecideRequest), h.HR.DecideRequest)

		admin := auth.Group("/admin", RequireRole(rbac.RoleAdmin))
		admin.GET("/requests", RequirePermission(rbac.PermissionReadRequest), h.Admin.ListRequests)
		admin.GET("/requests/:id", RequirePermission(rbac.PermissionReadRequest), h.Admin.GetRequest)
		admin.PATCH("/requests/:id", RequirePermission(rbac.PermissionDecideRequest), h.Admin.UpdateRequest)

		admin.GET("/users", RequirePermission(rbac.PermissionManageUsers), h.Admin.ListUsers)
		admin.POST("/users", RequirePermission(rbac.PermissionManageUsers), h.Admin.CreateUser)
		admin.PATCH("/users/:id/active", RequirePermission(rbac.PermissionManageUsers), h.Admin.SetUserActive)
		admin.DELETE("/users/:id", RequirePermission(rbac.PermissionManageUsers), h.Admin.DeleteUser)

		admin.POST("/outbox/replay", RequirePermission(rbac.PermissionReplayOutbox), h.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", RequirePermission(rbac.PermissionReplayOutbox), h.Admin.ReplayFailedEvents)
	}

	name := opts.ServiceName
	if name == "" {
		name = "accessdesk-api"
	}
	return &Router{Engine: r, serviceName: name}
}

// Handler wraps the engine with otelhttp so every request gets a server span.
func (r *Router) Handler() http.Handler {
	return otelhttp.NewHandler(r.Engine, r.serviceName)
}

// Server builds an http.Server for graceful shutdown in main.
func (r *Router) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
