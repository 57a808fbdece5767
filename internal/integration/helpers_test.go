package integration

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/zanphear/planview/internal/domain"
	"github.com/zanphear/planview/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func connect(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	applyMigrations(t, db)
	return db
}

func applyMigrations(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(migDir, name))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := db.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", name, err)
		}
	}
}

type fixture struct {
	ws    uuid.UUID
	owner *domain.User
	alice *domain.User
	tag   uuid.UUID
}

// seed creates a fresh workspace with two users and a tag. The workspace
// and everything in it is deleted when the test ends.
func seed(t *testing.T, db *pgxpool.Pool) fixture {
	t.Helper()
	ctx := context.Background()
	users := repository.NewUserRepository(db)

	wsID, err := users.CreateWorkspace(ctx, "it", "it-"+uuid.NewString())
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(), `DELETE FROM workspaces WHERE id = $1`, wsID)
	})

	f := fixture{ws: wsID}
	for _, dst := range []**domain.User{&f.owner, &f.alice} {
		u := &domain.User{WorkspaceID: wsID, Name: "user-" + uuid.NewString()[:6]}
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		*dst = u
	}
	if err := db.QueryRow(ctx, `INSERT INTO tags (workspace_id, name) VALUES ($1, 'ops') RETURNING id`, wsID).Scan(&f.tag); err != nil {
		t.Fatalf("create tag: %v", err)
	}
	return f
}

func date(s string) *domain.Date {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func str(s string) *string { return &s }
