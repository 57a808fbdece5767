package http

import (
	"time"

	"github.com/zanphear/planview/internal/http/handlers"
	"github.com/zanphear/planview/internal/http/middleware"
	"github.com/zanphear/planview/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the router needs.
type Deps struct {
	Handler *handlers.Handler
	Health  *handlers.HealthHandler
	Hub     *ws.Hub
	Tokens  middleware.TokenParser
	Limiter *middleware.RateLimiter

	AllowedOrigin   string
	WSSendBuffer    int
	RateLimit       int
	RateLimitWindow time.Duration
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", d.Health.Health)
	r.GET("/healthz", d.Health.Liveness)
	r.GET("/readyz", d.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws/:workspace_id", ws.HandleWS(d.Hub, d.Tokens, ws.HandlerOptions{
		AllowedOrigin: d.AllowedOrigin,
		SendBuffer:    d.WSSendBuffer,
	}))

	v1 := r.Group("/api/v1")
	v1.Use(d.Limiter.ByIP(d.RateLimit, d.RateLimitWindow))

	wsGroup := v1.Group("/workspaces/:workspace_id")
	wsGroup.Use(middleware.JWT(d.Tokens))
	registerWorkspaceRoutes(wsGroup, d.Handler, d.Limiter.ByUser(d.RateLimit, d.RateLimitWindow))
}

func registerWorkspaceRoutes(api *gin.RouterGroup, h *handlers.Handler, writeRL gin.HandlerFunc) {
	// Tasks
	api.GET("/tasks", h.ListTasks)
	api.POST("/tasks", writeRL, h.CreateTask)
	api.PUT("/tasks", writeRL, h.BulkUpdateTasks)
	api.GET("/tasks/:task_id", h.GetTask)
	api.PUT("/tasks/:task_id", writeRL, h.UpdateTask)
	api.DELETE("/tasks/:task_id", writeRL, h.DeleteTask)
	api.POST("/tasks/:task_id/duplicate", writeRL, h.DuplicateTask)

	// Notifications
	api.GET("/notifications", h.ListNotifications)
	api.GET("/notifications/unread-count", h.UnreadCount)
	api.POST("/notifications/mark-read", h.MarkRead)

	api.GET("/activity", h.ListActivity)
}
