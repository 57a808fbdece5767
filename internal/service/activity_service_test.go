package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/zanphear/planview/internal/domain"
	"github.com/zanphear/planview/internal/service"
	"github.com/zanphear/planview/internal/testutil"

	"github.com/google/uuid"
)

func TestActivityAppendReportsStoreFailure(t *testing.T) {
	store := &testutil.ActivityLog{Err: errors.New("disk full")}
	svc := service.NewActivityService(store)

	err := svc.Append(context.Background(), &domain.Activity{
		WorkspaceID: uuid.New(),
		ActorID:     uuid.New(),
		Action:      domain.ActivityCreated,
		EntityType:  domain.EntityTask,
	})
	if err == nil {
		t.Fatal("expected the store error")
	}
	if len(store.Entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(store.Entries))
	}
}

func TestActivityListNewestFirst(t *testing.T) {
	svc := service.NewActivityService(&testutil.ActivityLog{})
	ws, other := uuid.New(), uuid.New()
	ctx := context.Background()

	for _, action := range []string{domain.ActivityCreated, domain.ActivityUpdated, domain.ActivityDeleted} {
		if err := svc.Append(ctx, &domain.Activity{WorkspaceID: ws, Action: action, EntityType: domain.EntityTask}); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.Append(ctx, &domain.Activity{WorkspaceID: other, Action: domain.ActivityCreated, EntityType: domain.EntityTask}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.List(ctx, ws, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{domain.ActivityDeleted, domain.ActivityUpdated, domain.ActivityCreated}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, a := range got {
		if a.Action != want[i] {
			t.Errorf("entry %d action = %q, want %q", i, a.Action, want[i])
		}
	}

	page, err := svc.List(ctx, ws, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].Action != domain.ActivityUpdated {
		t.Fatalf("page = %+v, want the updated entry", page)
	}
}
