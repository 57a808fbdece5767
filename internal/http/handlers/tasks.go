package handlers

import (
	"net/http"
	"strconv"

	"github.com/zanphear/planview/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateTask handles POST /tasks.
func (h *Handler) CreateTask(c *gin.Context) {
	userID, workspaceID, ok := caller(c)
	if !ok {
		return
	}

	var req domain.TaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	task, err := h.Tasks.CreateTask(c.Request.Context(), workspaceID, userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// ListTasks handles GET /tasks with optional filters.
func (h *Handler) ListTasks(c *gin.Context) {
	_, workspaceID, ok := caller(c)
	if !ok {
		return
	}

	f, err := taskFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	tasks, err := h.Tasks.ListTasks(c.Request.Context(), workspaceID, f, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *Handler) GetTask(c *gin.Context) {
	_, workspaceID, ok := caller(c)
	if !ok {
		return
	}
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}

	task, err := h.Tasks.GetTask(c.Request.Context(), workspaceID, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// UpdateTask handles PUT /tasks/:task_id. Absent fields are left alone,
// explicit nulls clear nullable fields.
func (h *Handler) UpdateTask(c *gin.Context) {
	userID, workspaceID, ok := caller(c)
	if !ok {
		return
	}
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}

	var patch domain.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	task, err := h.Tasks.UpdateTask(c.Request.Context(), workspaceID, userID, taskID, &patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) DeleteTask(c *gin.Context) {
	userID, workspaceID, ok := caller(c)
	if !ok {
		return
	}
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}

	if err := h.Tasks.DeleteTask(c.Request.Context(), workspaceID, userID, taskID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DuplicateTask(c *gin.Context) {
	userID, workspaceID, ok := caller(c)
	if !ok {
		return
	}
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}

	task, err := h.Tasks.DuplicateTask(c.Request.Context(), workspaceID, userID, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// BulkUpdateTasks handles PUT /tasks with {"task_ids": [...], ...patch}.
func (h *Handler) BulkUpdateTasks(c *gin.Context) {
	userID, workspaceID, ok := caller(c)
	if !ok {
		return
	}

	var patch domain.BulkTaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tasks, err := h.Tasks.BulkUpdateTasks(c.Request.Context(), workspaceID, userID, &patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func taskFilter(c *gin.Context) (domain.TaskFilter, error) {
	var f domain.TaskFilter
	ids := []struct {
		key string
		dst **uuid.UUID
	}{
		{"project_id", &f.ProjectID},
		{"segment_id", &f.SegmentID},
		{"assignee_id", &f.AssigneeID},
		{"tag_id", &f.TagID},
	}
	for _, p := range ids {
		raw := c.Query(p.key)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, &queryError{p.key}
		}
		*p.dst = &id
	}

	dates := []struct {
		key string
		dst **domain.Date
	}{
		{"since", &f.Since},
		{"until", &f.Until},
	}
	for _, p := range dates {
		raw := c.Query(p.key)
		if raw == "" {
			continue
		}
		d, err := domain.ParseDate(raw)
		if err != nil {
			return f, &queryError{p.key}
		}
		*p.dst = &d
	}

	if raw := c.Query("backlog"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return f, &queryError{"backlog"}
		}
		f.Backlog = &b
	}
	f.Status = c.Query("status")
	return f, nil
}

type queryError struct{ param string }

func (e *queryError) Error() string { return "invalid query parameter " + e.param }
