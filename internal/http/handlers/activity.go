package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListActivity returns the workspace activity feed, newest first.
func (h *Handler) ListActivity(c *gin.Context) {
	_, workspaceID, ok := caller(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	items, err := h.Activity.List(c.Request.Context(), workspaceID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": items})
}
