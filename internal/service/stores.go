package service

import (
	"context"
	"time"

	"github.com/zanphear/planview/internal/domain"
	"github.com/zanphear/planview/internal/repository"
	"github.com/zanphear/planview/internal/ws"

	"github.com/google/uuid"
)

// TaskStore is the persistence contract of the task pipeline. It is
// implemented by repository.TaskRepository.
type TaskStore interface {
	Create(ctx context.Context, t *domain.Task, links repository.TaskLinks) error
	Update(ctx context.Context, t *domain.Task, links repository.TaskLinks) error
	BulkUpdate(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID, mutate func(*domain.Task) error, links repository.TaskLinks) ([]uuid.UUID, error)
	Delete(ctx context.Context, workspaceID, id uuid.UUID) error
	Get(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Task, error)
	List(ctx context.Context, workspaceID uuid.UUID, f domain.TaskFilter, limit, offset int) ([]*domain.Task, error)
	DueOn(ctx context.Context, day domain.Date, doneStatuses []string) ([]*domain.Task, error)
}

type UserStore interface {
	GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*domain.User, error)
}

type ActivityStore interface {
	Create(ctx context.Context, a *domain.Activity) error
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*domain.Activity, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error
	MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, userID, workspaceID uuid.UUID) (int, error)
	List(ctx context.Context, userID, workspaceID uuid.UUID, unreadOnly bool, limit int) ([]*domain.Notification, error)
	ExistsSince(ctx context.Context, userID, taskID uuid.UUID, eventType string, since time.Time) (bool, error)
}

// Broadcaster fans an envelope out to a workspace. *ws.Hub implements it.
type Broadcaster interface {
	Broadcast(workspaceID uuid.UUID, env ws.Envelope) int
}

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
