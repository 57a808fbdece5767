package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification is addressed to one user inside one workspace. IsRead only
// ever moves from false to true.
type Notification struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	WorkspaceID uuid.UUID  `json:"workspace_id"`
	EventType   string     `json:"event_type"`
	Title       string     `json:"title"`
	Body        *string    `json:"body"`
	Link        *string    `json:"link"`
	IsRead      bool       `json:"is_read"`
	ActorID     *uuid.UUID `json:"actor_id"`
	TaskID      *uuid.UUID `json:"task_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Notification event types
const (
	NotificationTaskAssigned = "task.assigned"
	NotificationTaskDue      = "task.due"
)
