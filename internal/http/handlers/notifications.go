package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (h *Handler) ListNotifications(c *gin.Context) {
	userID, workspaceID, ok := caller(c)
	if !ok {
		return
	}
	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.Query("limit"))

	items, err := h.Notifications.List(c.Request.Context(), userID, workspaceID, unreadOnly, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	userID, workspaceID, ok := caller(c)
	if !ok {
		return
	}

	n, err := h.Notifications.UnreadCount(c.Request.Context(), userID, workspaceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// MarkRead only touches notifications owned by the caller.
func (h *Handler) MarkRead(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}

	var req struct {
		NotificationIDs []uuid.UUID `json:"notification_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	n, err := h.Notifications.MarkRead(c.Request.Context(), userID, req.NotificationIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
