package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/zanphear/planview/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// notFound maps pgx.ErrNoRows onto domain.ErrNotFound and wraps anything
// else with the operation name.
func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// uuidStrings renders ids for a `$n::text[]::uuid[]` parameter.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func dateParam(d *domain.Date) any {
	if d == nil {
		return nil
	}
	return d.Time
}

func dateFromPG(d pgtype.Date) *domain.Date {
	if !d.Valid {
		return nil
	}
	v := domain.DateOf(d.Time)
	return &v
}
