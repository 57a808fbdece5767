package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/zanphear/planview/internal/db"
	"github.com/zanphear/planview/internal/domain"
	"github.com/zanphear/planview/internal/repository"
	"github.com/zanphear/planview/internal/service"

	"github.com/google/uuid"
)

func main() {
	wsName := flag.String("workspace", "Test workspace", "workspace name")
	name := flag.String("name", "Tester", "user name")
	flag.Parse()

	// expects DATABASE_URL and JWT_SECRET env vars
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	repo := repository.NewUserRepository(pool)
	ctx := context.Background()

	slug := strings.ToLower(strings.ReplaceAll(*wsName, " ", "-")) + "-" + uuid.NewString()[:8]
	wsID, err := repo.CreateWorkspace(ctx, *wsName, slug)
	if err != nil {
		log.Fatalf("create workspace failed: %v", err)
	}

	u := &domain.User{WorkspaceID: wsID, Name: *name}
	if err := repo.Create(ctx, u); err != nil {
		log.Fatalf("create user failed: %v", err)
	}

	// verify read
	u2, err := repo.GetByID(ctx, wsID, u.ID)
	if err != nil {
		log.Fatalf("get user failed: %v", err)
	}
	log.Printf("user created id=%s name=%s workspace=%s created_at=%v\n", u2.ID, u2.Name, wsID, u2.CreatedAt)

	token, err := service.NewTokens(secret, 24*time.Hour).Generate(u2.ID, wsID)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}
	fmt.Printf("WORKSPACE_ID=%s\nTOKEN=%s\n", wsID, token)
}
