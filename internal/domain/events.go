package domain

import "github.com/google/uuid"

// Realtime event names
const (
	EventTaskCreated     = "task.created"
	EventTaskUpdated     = "task.updated"
	EventTaskDeleted     = "task.deleted"
	EventNotificationNew = "notification.new"
)

type TaskEventPayload struct {
	Task    *Task     `json:"task"`
	ActorID uuid.UUID `json:"actor_id"`
}

type TaskDeletedPayload struct {
	TaskID  uuid.UUID `json:"task_id"`
	ActorID uuid.UUID `json:"actor_id"`
}

type NotificationNewPayload struct {
	UserID         uuid.UUID `json:"user_id"`
	NotificationID uuid.UUID `json:"notification_id"`
	Title          string    `json:"title"`
	EventType      string    `json:"event_type"`
}
