package domain

import (
	"time"

	"github.com/google/uuid"
)

// Activity is an append-only audit entry describing one mutation.
type Activity struct {
	ID          uuid.UUID      `json:"id"`
	WorkspaceID uuid.UUID      `json:"workspace_id"`
	ActorID     uuid.UUID      `json:"actor_id"`
	Action      string         `json:"action"`
	EntityType  string         `json:"entity_type"`
	EntityID    *uuid.UUID     `json:"entity_id"`
	EntityName  *string        `json:"entity_name"`
	Details     map[string]any `json:"details"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Activity actions
const (
	ActivityCreated = "created"
	ActivityUpdated = "updated"
	ActivityDeleted = "deleted"
)

// Activity entity types
const (
	EntityTask = "task"
)
