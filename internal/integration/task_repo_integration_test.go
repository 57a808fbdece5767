package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zanphear/planview/internal/domain"
	"github.com/zanphear/planview/internal/repository"

	"github.com/google/uuid"
)

func TestTaskRepository_CreateHydrateUpdate(t *testing.T) {
	db := connect(t)
	f := seed(t, db)
	other := seed(t, db)
	repo := repository.NewTaskRepository(db)
	ctx := context.Background()

	task := &domain.Task{
		WorkspaceID:      f.ws,
		Name:             "Deploy",
		Status:           "todo",
		DateFrom:         date("2026-10-20"),
		DateTo:           date("2026-10-22"),
		StartTime:        str("09:00"),
		TimeEstimateMode: domain.EstimateModeTotal,
		IsRecurring:      true,
		RecurrenceRule:   str("FREQ=WEEKLY;BYDAY=MO"),
	}
	links := repository.TaskLinks{
		// other.alice lives in another workspace and must be dropped
		AssigneeIDs: []uuid.UUID{f.alice.ID, other.alice.ID},
		TagIDs:      []uuid.UUID{f.tag},
		Checklists:  []domain.ChecklistItem{{Title: "backup", SortOrder: 0}},
	}
	if err := repo.Create(ctx, task, links); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(ctx, f.ws, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Assignees) != 1 || got.Assignees[0].ID != f.alice.ID {
		t.Fatalf("assignees = %+v", got.Assignees)
	}
	if len(got.Tags) != 1 || len(got.Checklists) != 1 || got.Checklists[0].Title != "backup" {
		t.Fatalf("tags/checklists not hydrated: %+v %+v", got.Tags, got.Checklists)
	}
	if got.DateFrom.String() != "2026-10-20" || got.StartTime == nil || *got.StartTime != "09:00" {
		t.Fatalf("dates/times round trip: %v %v", got.DateFrom, got.StartTime)
	}

	if _, err := repo.Get(ctx, other.ws, task.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-workspace get: %v", err)
	}

	got.Status = "done"
	got.StartTime = nil
	if err := repo.Update(ctx, got, repository.TaskLinks{AssigneeIDs: []uuid.UUID{}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	after, _ := repo.Get(ctx, f.ws, task.ID)
	if after.Status != "done" || after.StartTime != nil || len(after.Assignees) != 0 || len(after.Tags) != 1 {
		t.Fatalf("update not applied: %+v", after)
	}
}

func TestTaskRepository_ParentAndDeleteCascade(t *testing.T) {
	db := connect(t)
	f := seed(t, db)
	repo := repository.NewTaskRepository(db)
	ctx := context.Background()

	parent := &domain.Task{WorkspaceID: f.ws, Name: "parent", Status: "todo", TimeEstimateMode: domain.EstimateModeTotal}
	if err := repo.Create(ctx, parent, repository.TaskLinks{}); err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child := &domain.Task{WorkspaceID: f.ws, Name: "child", Status: "todo", TimeEstimateMode: domain.EstimateModeTotal, ParentID: &parent.ID}
	if err := repo.Create(ctx, child, repository.TaskLinks{}); err != nil {
		t.Fatalf("create child: %v", err)
	}

	got, _ := repo.Get(ctx, f.ws, parent.ID)
	if len(got.Subtasks) != 1 || got.Subtasks[0].ID != child.ID {
		t.Fatalf("subtasks = %+v", got.Subtasks)
	}

	missing := uuid.New()
	orphan := &domain.Task{WorkspaceID: f.ws, Name: "orphan", Status: "todo", TimeEstimateMode: domain.EstimateModeTotal, ParentID: &missing}
	if err := repo.Create(ctx, orphan, repository.TaskLinks{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown parent: %v", err)
	}

	if err := repo.Delete(ctx, f.ws, parent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, f.ws, child.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("child survived parent delete: %v", err)
	}
	if err := repo.Delete(ctx, f.ws, parent.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestTaskRepository_BulkListDue(t *testing.T) {
	db := connect(t)
	f := seed(t, db)
	other := seed(t, db)
	repo := repository.NewTaskRepository(db)
	ctx := context.Background()

	mk := func(ws uuid.UUID, name, due string) *domain.Task {
		t.Helper()
		task := &domain.Task{WorkspaceID: ws, Name: name, Status: "todo", DateFrom: date(due), DateTo: date(due), TimeEstimateMode: domain.EstimateModeTotal}
		if err := repo.Create(ctx, task, repository.TaskLinks{AssigneeIDs: []uuid.UUID{}}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		return task
	}
	a := mk(f.ws, "a", "2031-03-01")
	b := mk(f.ws, "b", "2031-03-02")
	foreign := mk(other.ws, "foreign", "2031-03-01")

	ids, err := repo.BulkUpdate(ctx, f.ws, []uuid.UUID{a.ID, b.ID, foreign.ID}, func(t *domain.Task) error {
		t.Status = "done"
		return nil
	}, repository.TaskLinks{TagIDs: []uuid.UUID{f.tag}})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("bulk touched %d tasks; want 2", len(ids))
	}
	if g, _ := repo.Get(ctx, other.ws, foreign.ID); g.Status != "todo" {
		t.Fatalf("bulk crossed workspaces")
	}

	boom := errors.New("boom")
	if _, err := repo.BulkUpdate(ctx, f.ws, []uuid.UUID{a.ID, b.ID}, func(t *domain.Task) error {
		if t.ID == b.ID {
			return boom
		}
		t.Name = "renamed"
		return nil
	}, repository.TaskLinks{}); !errors.Is(err, boom) {
		t.Fatalf("bulk error: %v", err)
	}
	if g, _ := repo.Get(ctx, f.ws, a.ID); g.Name != "a" {
		t.Fatalf("failed batch was partially committed")
	}

	tagged, err := repo.List(ctx, f.ws, domain.TaskFilter{TagID: &f.tag, Status: "done"}, 10, 0)
	if err != nil || len(tagged) != 2 {
		t.Fatalf("list by tag: %d %v", len(tagged), err)
	}
	until := date("2031-03-01")
	early, _ := repo.List(ctx, f.ws, domain.TaskFilter{Until: until}, 10, 0)
	if len(early) != 1 || early[0].ID != a.ID {
		t.Fatalf("list until: %+v", early)
	}

	due, err := repo.DueOn(ctx, *date("2031-03-01"), []string{"done"})
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	for _, d := range due {
		if d.ID == a.ID {
			t.Fatalf("done task reported as due")
		}
	}
	found := false
	for _, d := range due {
		found = found || d.ID == foreign.ID
	}
	if !found {
		t.Fatalf("open task not reported as due")
	}
}

func TestNotificationAndActivityRepositories(t *testing.T) {
	db := connect(t)
	f := seed(t, db)
	ctx := context.Background()
	notifications := repository.NewNotificationRepository(db)
	activity := repository.NewActivityRepository(db)

	task := &domain.Task{WorkspaceID: f.ws, Name: "Deploy", Status: "todo", TimeEstimateMode: domain.EstimateModeTotal}
	if err := repository.NewTaskRepository(db).Create(ctx, task, repository.TaskLinks{}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	taskID := task.ID
	n := &domain.Notification{UserID: f.alice.ID, WorkspaceID: f.ws, EventType: domain.NotificationTaskDue, Title: "due", TaskID: &taskID}
	if err := notifications.Create(ctx, n); err != nil {
		t.Fatalf("create notification: %v", err)
	}

	if changed, _ := notifications.MarkRead(ctx, f.owner.ID, []uuid.UUID{n.ID}); changed != 0 {
		t.Fatalf("non-owner marked %d rows", changed)
	}
	if c, _ := notifications.UnreadCount(ctx, f.alice.ID, f.ws); c != 1 {
		t.Fatalf("unread = %d", c)
	}
	exists, err := notifications.ExistsSince(ctx, f.alice.ID, taskID, domain.NotificationTaskDue, time.Now().Add(-time.Hour))
	if err != nil || !exists {
		t.Fatalf("ExistsSince = %v, %v", exists, err)
	}
	if changed, _ := notifications.MarkRead(ctx, f.alice.ID, []uuid.UUID{n.ID}); changed != 1 {
		t.Fatalf("owner marked %d rows", changed)
	}

	name := "Deploy"
	a := &domain.Activity{
		WorkspaceID: f.ws,
		ActorID:     f.owner.ID,
		Action:      domain.ActivityUpdated,
		EntityType:  domain.EntityTask,
		EntityID:    &taskID,
		EntityName:  &name,
		Details:     map[string]any{"fields": []string{"status"}},
	}
	if err := activity.Create(ctx, a); err != nil {
		t.Fatalf("create activity: %v", err)
	}
	list, err := activity.ListByWorkspace(ctx, f.ws, 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("list activity: %d %v", len(list), err)
	}
	if fields, _ := list[0].Details["fields"].([]any); len(fields) != 1 || fields[0] != "status" {
		t.Fatalf("details = %v", list[0].Details)
	}
}
