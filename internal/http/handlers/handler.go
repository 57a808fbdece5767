package handlers

import (
	"errors"
	"net/http"

	"github.com/zanphear/planview/internal/domain"
	"github.com/zanphear/planview/internal/http/middleware"
	"github.com/zanphear/planview/internal/logger"
	"github.com/zanphear/planview/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	Tasks         *service.TaskService
	Notifications *service.NotificationService
	Activity      *service.ActivityService
}

func NewHandler(tasks *service.TaskService, notifications *service.NotificationService, activity *service.ActivityService) *Handler {
	return &Handler{Tasks: tasks, Notifications: notifications, Activity: activity}
}

// caller returns the authenticated user and workspace, writing 401 when
// the JWT middleware did not run.
func caller(c *gin.Context) (userID, workspaceID uuid.UUID, ok bool) {
	userID, ok = middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return uuid.Nil, uuid.Nil, false
	}
	workspaceID, ok = middleware.WorkspaceID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "workspace not found"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, workspaceID, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
