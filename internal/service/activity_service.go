package service

import (
	"context"

	"github.com/zanphear/planview/internal/domain"

	"github.com/google/uuid"
)

// ActivityService records the workspace audit trail
type ActivityService struct {
	repo ActivityStore
}

func NewActivityService(repo ActivityStore) *ActivityService {
	return &ActivityService{repo: repo}
}

// Append stores one entry and reports failure to the caller. The task
// pipeline logs and counts that failure; it never undoes the write.
func (s *ActivityService) Append(ctx context.Context, a *domain.Activity) error {
	return s.repo.Create(ctx, a)
}

// List returns the workspace's activity, newest first.
func (s *ActivityService) List(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*domain.Activity, error) {
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByWorkspace(ctx, workspaceID, clampLimit(limit), offset)
}
