package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zanphear/planview/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityRepository handles activity log database operations
type ActivityRepository struct {
	db *pgxpool.Pool
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create appends an activity entry
func (r *ActivityRepository) Create(ctx context.Context, a *domain.Activity) error {
	var detailsJSON []byte
	if a.Details != nil {
		var err error
		if detailsJSON, err = json.Marshal(a.Details); err != nil {
			detailsJSON = []byte("{}")
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO activities (id, workspace_id, actor_id, action, entity_type, entity_id, entity_name, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, a.ID, a.WorkspaceID, a.ActorID, a.Action, a.EntityType, a.EntityID, a.EntityName, detailsJSON).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// ListByWorkspace returns a workspace's activity, newest first
func (r *ActivityRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*domain.Activity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, workspace_id, actor_id, action, entity_type, entity_id, entity_name, details, created_at
		FROM activities
		WHERE workspace_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, workspaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

func scanActivities(rows pgx.Rows) ([]*domain.Activity, error) {
	logs := []*domain.Activity{}
	for rows.Next() {
		var a domain.Activity
		var detailsJSON []byte
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.ActorID, &a.Action, &a.EntityType, &a.EntityID, &a.EntityName, &detailsJSON, &a.CreatedAt); err != nil {
			return nil, err
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &a.Details); err != nil {
				a.Details = map[string]any{}
			}
		}
		logs = append(logs, &a)
	}
	return logs, rows.Err()
}
