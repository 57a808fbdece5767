package repository

import (
	"context"
	"fmt"

	"github.com/zanphear/planview/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID returns the user only if it belongs to workspaceID.
func (r *UserRepository) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, workspace_id, name, email, initials, colour, avatar_url, role, created_at
		 FROM users
		 WHERE id = $1 AND workspace_id = $2`,
		id, workspaceID,
	).Scan(&u.ID, &u.WorkspaceID, &u.Name, &u.Email, &u.Initials, &u.Colour, &u.AvatarURL, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, notFound("get user", err)
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Colour == "" {
		u.Colour = "#6366f1"
	}
	if u.Role == "" {
		u.Role = "member"
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, workspace_id, name, email, initials, colour, avatar_url, role)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		u.ID, u.WorkspaceID, u.Name, u.Email, u.Initials, u.Colour, u.AvatarURL, u.Role,
	).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreateWorkspace inserts a workspace and returns its id.
func (r *UserRepository) CreateWorkspace(ctx context.Context, name, slug string) (uuid.UUID, error) {
	id := uuid.New()
	if _, err := r.db.Exec(ctx,
		`INSERT INTO workspaces (id, name, slug) VALUES ($1, $2, $3)`,
		id, name, slug,
	); err != nil {
		return uuid.Nil, fmt.Errorf("create workspace: %w", err)
	}
	return id, nil
}
