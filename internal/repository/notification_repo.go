package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/zanphear/planview/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, workspace_id, event_type, title, body, link, actor_id, task_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING is_read, created_at
	`, n.ID, n.UserID, n.WorkspaceID, n.EventType, n.Title, n.Body, n.Link, n.ActorID, n.TaskID,
	).Scan(&n.IsRead, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// MarkRead flips is_read on the recipient's own unread rows. Ids owned by
// anyone else are ignored.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications SET is_read = true
		WHERE user_id = $1 AND id = ANY($2::text[]::uuid[]) AND NOT is_read
	`, userID, uuidStrings(ids))
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID, workspaceID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND workspace_id = $2 AND NOT is_read
	`, userID, workspaceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) List(ctx context.Context, userID, workspaceID uuid.UUID, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, workspace_id, event_type, title, body, link, is_read, actor_id, task_id, created_at
		FROM notifications
		WHERE user_id = $1 AND workspace_id = $2 AND (NOT $3 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $4
	`, userID, workspaceID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	res := []*domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.WorkspaceID, &n.EventType, &n.Title, &n.Body, &n.Link, &n.IsRead, &n.ActorID, &n.TaskID, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &n)
	}
	return res, rows.Err()
}

// ExistsSince reports whether the user already has a notification of
// eventType about taskID created at or after since.
func (r *NotificationRepository) ExistsSince(ctx context.Context, userID, taskID uuid.UUID, eventType string, since time.Time) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1 AND task_id = $2 AND event_type = $3 AND created_at >= $4
		)
	`, userID, taskID, eventType, since).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("notification exists: %w", err)
	}
	return ok, nil
}
