package service

import (
	"context"
	"fmt"
	"time"

	"github.com/zanphear/planview/internal/domain"
	"github.com/zanphear/planview/internal/logger"
	"github.com/zanphear/planview/internal/ws"

	"github.com/google/uuid"
)

type NotifyParams struct {
	RecipientID uuid.UUID
	WorkspaceID uuid.UUID
	EventType   string
	Title       string
	Body        *string
	Link        *string
	ActorID     *uuid.UUID
	TaskID      *uuid.UUID
}

// NotificationService persists notifications and pushes notification.new
// to the recipient's workspace.
type NotificationService struct {
	repo NotificationStore
	hub  Broadcaster
}

func NewNotificationService(repo NotificationStore, hub Broadcaster) *NotificationService {
	return &NotificationService{repo: repo, hub: hub}
}

func (s *NotificationService) Notify(ctx context.Context, p NotifyParams) (*domain.Notification, error) {
	n := &domain.Notification{
		UserID:      p.RecipientID,
		WorkspaceID: p.WorkspaceID,
		EventType:   p.EventType,
		Title:       p.Title,
		Body:        p.Body,
		Link:        p.Link,
		ActorID:     p.ActorID,
		TaskID:      p.TaskID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	NotificationsSent.WithLabelValues(n.EventType).Inc()

	delivered := s.hub.Broadcast(n.WorkspaceID, ws.Envelope{
		Type: domain.EventNotificationNew,
		Data: domain.NotificationNewPayload{
			UserID:         n.UserID,
			NotificationID: n.ID,
			Title:          n.Title,
			EventType:      n.EventType,
		},
	})
	if delivered == 0 {
		logger.Debug("notification.new reached no live subscriber", "notification_id", n.ID, "workspace_id", n.WorkspaceID)
	}
	return n, nil
}

// NotifyTaskAssigned tells recipient that actor assigned them to t. A nil
// actor is rendered as "Someone".
func (s *NotificationService) NotifyTaskAssigned(ctx context.Context, actorID uuid.UUID, actor *domain.User, recipient uuid.UUID, t *domain.Task) error {
	name := "Someone"
	if actor != nil && actor.Name != "" {
		name = actor.Name
	}
	taskID := t.ID
	_, err := s.Notify(ctx, NotifyParams{
		RecipientID: recipient,
		WorkspaceID: t.WorkspaceID,
		EventType:   domain.NotificationTaskAssigned,
		Title:       fmt.Sprintf("%s assigned you to \"%s\"", name, t.Name),
		ActorID:     &actorID,
		TaskID:      &taskID,
	})
	return err
}

// MarkRead flips only rows owned by recipient and returns how many changed.
func (s *NotificationService) MarkRead(ctx context.Context, recipient uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.repo.MarkRead(ctx, recipient, ids)
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipient, workspaceID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, recipient, workspaceID)
}

func (s *NotificationService) List(ctx context.Context, recipient, workspaceID uuid.UUID, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	return s.repo.List(ctx, recipient, workspaceID, unreadOnly, clampLimit(limit))
}

// SentSince reports whether recipient already got eventType about taskID
// at or after since.
func (s *NotificationService) SentSince(ctx context.Context, recipient, taskID uuid.UUID, eventType string, since time.Time) (bool, error) {
	return s.repo.ExistsSince(ctx, recipient, taskID, eventType, since)
}
