package repository

import (
	"context"
	"fmt"

	"github.com/zanphear/planview/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskLinks carries relationship sets written alongside a task row.
// A nil AssigneeIDs or TagIDs leaves that membership untouched.
type TaskLinks struct {
	AssigneeIDs []uuid.UUID
	TagIDs      []uuid.UUID
	Checklists  []domain.ChecklistItem
}

type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `t.id, t.workspace_id, t.name, t.description, t.colour, t.status, t.status_emoji,
	t.date_from, t.date_to, to_char(t.start_time, 'HH24:MI'), to_char(t.end_time, 'HH24:MI'),
	t.time_estimate_minutes, t.time_estimate_mode, t.is_recurring, t.recurrence_rule, t.sort_order,
	t.project_id, t.segment_id, t.parent_id, t.created_at, t.updated_at`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	var from, to pgtype.Date
	if err := row.Scan(
		&t.ID, &t.WorkspaceID, &t.Name, &t.Description, &t.Colour, &t.Status, &t.StatusEmoji,
		&from, &to, &t.StartTime, &t.EndTime,
		&t.TimeEstimateMinutes, &t.TimeEstimateMode, &t.IsRecurring, &t.RecurrenceRule, &t.SortOrder,
		&t.ProjectID, &t.SegmentID, &t.ParentID, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.DateFrom = dateFromPG(from)
	t.DateTo = dateFromPG(to)
	return &t, nil
}

func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()
	res := []*domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// Create inserts the task with its assignees, tags and checklist items in
// one transaction. t.ID is generated when zero.
func (r *TaskRepository) Create(ctx context.Context, t *domain.Task, links TaskLinks) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := checkRefs(ctx, tx, t); err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO tasks (id, workspace_id, name, description, colour, status, status_emoji,
			date_from, date_to, start_time, end_time, time_estimate_minutes, time_estimate_mode,
			is_recurring, recurrence_rule, sort_order, project_id, segment_id, parent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::text::time, $11::text::time, $12, $13,
			$14, $15, $16, $17, $18, $19)
		RETURNING created_at, updated_at
	`, t.ID, t.WorkspaceID, t.Name, t.Description, t.Colour, t.Status, t.StatusEmoji,
		dateParam(t.DateFrom), dateParam(t.DateTo), t.StartTime, t.EndTime, t.TimeEstimateMinutes, t.TimeEstimateMode,
		t.IsRecurring, t.RecurrenceRule, t.SortOrder, t.ProjectID, t.SegmentID, t.ParentID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	if err := writeLinks(ctx, tx, t, links); err != nil {
		return err
	}
	for _, item := range links.Checklists {
		if _, err := tx.Exec(ctx, `
			INSERT INTO checklists (id, task_id, title, is_completed, sort_order)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New(), t.ID, item.Title, item.IsCompleted, item.SortOrder); err != nil {
			return fmt.Errorf("insert checklist: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Update writes every scalar column of t and replaces the supplied link
// sets, all in one transaction.
func (r *TaskRepository) Update(ctx context.Context, t *domain.Task, links TaskLinks) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updateRow(ctx, tx, t); err != nil {
		return err
	}
	if err := writeLinks(ctx, tx, t, links); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// BulkUpdate locks every listed task of the workspace, passes each to
// mutate and writes the result, all in one transaction. Ids outside the
// workspace are skipped. An error from mutate aborts the whole batch.
func (r *TaskRepository) BulkUpdate(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID, mutate func(*domain.Task) error, links TaskLinks) ([]uuid.UUID, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.workspace_id = $1 AND t.id = ANY($2::text[]::uuid[])
		ORDER BY t.sort_order, t.created_at
		FOR UPDATE
	`, workspaceID, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}

	updated := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		if err := mutate(t); err != nil {
			return nil, err
		}
		if err := updateRow(ctx, tx, t); err != nil {
			return nil, err
		}
		if err := writeLinks(ctx, tx, t, links); err != nil {
			return nil, err
		}
		updated = append(updated, t.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

// Delete removes the task; checklists, comments, attachments and subtasks
// go with it through ON DELETE CASCADE.
func (r *TaskRepository) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get returns the fully hydrated task.
func (r *TaskRepository) Get(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.id = $1 AND t.workspace_id = $2
	`, id, workspaceID))
	if err != nil {
		return nil, notFound("get task", err)
	}
	if err := hydrate(ctx, r.db, []*domain.Task{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns hydrated tasks of the workspace matching f.
func (r *TaskRepository) List(ctx context.Context, workspaceID uuid.UUID, f domain.TaskFilter, limit, offset int) ([]*domain.Task, error) {
	args := []any{workspaceID}
	where := "t.workspace_id = $1"
	add := func(clause string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(" AND "+clause, len(args))
	}

	if f.ProjectID != nil {
		add("t.project_id = $%d", *f.ProjectID)
	}
	if f.SegmentID != nil {
		add("t.segment_id = $%d", *f.SegmentID)
	}
	if f.Status != "" {
		add("t.status = $%d", f.Status)
	}
	if f.AssigneeID != nil {
		add("EXISTS (SELECT 1 FROM task_assignees ta WHERE ta.task_id = t.id AND ta.user_id = $%d)", *f.AssigneeID)
	}
	if f.TagID != nil {
		add("EXISTS (SELECT 1 FROM task_tags tt WHERE tt.task_id = t.id AND tt.tag_id = $%d)", *f.TagID)
	}
	if f.Since != nil {
		add("COALESCE(t.date_to, t.date_from) >= $%d", f.Since.Time)
	}
	if f.Until != nil {
		add("t.date_from <= $%d", f.Until.Time)
	}
	if f.Backlog != nil {
		if *f.Backlog {
			where += " AND t.date_from IS NULL"
		} else {
			where += " AND t.date_from IS NOT NULL"
		}
	}

	args = append(args, limit, offset)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM tasks t
		WHERE %s
		ORDER BY t.date_from NULLS LAST, t.sort_order, t.created_at
		LIMIT $%d OFFSET $%d
	`, taskColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	if err := hydrate(ctx, r.db, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// DueOn returns hydrated tasks across all workspaces whose date_to is day
// and whose status is not one of doneStatuses.
func (r *TaskRepository) DueOn(ctx context.Context, day domain.Date, doneStatuses []string) ([]*domain.Task, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.date_to = $1 AND NOT (t.status = ANY($2::text[]))
		ORDER BY t.workspace_id, t.sort_order
	`, day.Time, doneStatuses)
	if err != nil {
		return nil, fmt.Errorf("due tasks: %w", err)
	}
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	if err := hydrate(ctx, r.db, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func updateRow(ctx context.Context, q querier, t *domain.Task) error {
	if err := checkRefs(ctx, q, t); err != nil {
		return err
	}
	err := q.QueryRow(ctx, `
		UPDATE tasks SET
			name = $3, description = $4, colour = $5, status = $6, status_emoji = $7,
			date_from = $8, date_to = $9, start_time = $10::text::time, end_time = $11::text::time,
			time_estimate_minutes = $12, time_estimate_mode = $13, is_recurring = $14,
			recurrence_rule = $15, sort_order = $16, project_id = $17, segment_id = $18,
			parent_id = $19, updated_at = now()
		WHERE id = $1 AND workspace_id = $2
		RETURNING updated_at
	`, t.ID, t.WorkspaceID, t.Name, t.Description, t.Colour, t.Status, t.StatusEmoji,
		dateParam(t.DateFrom), dateParam(t.DateTo), t.StartTime, t.EndTime,
		t.TimeEstimateMinutes, t.TimeEstimateMode, t.IsRecurring,
		t.RecurrenceRule, t.SortOrder, t.ProjectID, t.SegmentID, t.ParentID,
	).Scan(&t.UpdatedAt)
	if err != nil {
		return notFound("update task", err)
	}
	return nil
}

// checkRefs rejects project, segment and parent ids that do not belong to
// the task's workspace.
func checkRefs(ctx context.Context, q querier, t *domain.Task) error {
	refs := []struct {
		table string
		id    *uuid.UUID
	}{
		{"projects", t.ProjectID},
		{"segments", t.SegmentID},
		{"tasks", t.ParentID},
	}
	for _, ref := range refs {
		if ref.id == nil {
			continue
		}
		if ref.table == "tasks" && *ref.id == t.ID {
			return fmt.Errorf("%w: task cannot be its own parent", domain.ErrValidation)
		}
		var ok bool
		err := q.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+ref.table+` WHERE id = $1 AND workspace_id = $2)`,
			*ref.id, t.WorkspaceID,
		).Scan(&ok)
		if err != nil {
			return fmt.Errorf("check %s: %w", ref.table, err)
		}
		if !ok {
			return domain.ErrNotFound
		}
	}
	return nil
}

// writeLinks replaces assignee and tag sets. Ids of users or tags outside
// the task's workspace are dropped.
func writeLinks(ctx context.Context, q querier, t *domain.Task, links TaskLinks) error {
	if links.AssigneeIDs != nil {
		if _, err := q.Exec(ctx, `DELETE FROM task_assignees WHERE task_id = $1`, t.ID); err != nil {
			return fmt.Errorf("clear assignees: %w", err)
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO task_assignees (task_id, user_id)
			SELECT $1, u.id FROM users u
			WHERE u.workspace_id = $2 AND u.id = ANY($3::text[]::uuid[])
			ON CONFLICT DO NOTHING
		`, t.ID, t.WorkspaceID, uuidStrings(links.AssigneeIDs)); err != nil {
			return fmt.Errorf("insert assignees: %w", err)
		}
	}
	if links.TagIDs != nil {
		if _, err := q.Exec(ctx, `DELETE FROM task_tags WHERE task_id = $1`, t.ID); err != nil {
			return fmt.Errorf("clear tags: %w", err)
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO task_tags (task_id, tag_id)
			SELECT $1, g.id FROM tags g
			WHERE g.workspace_id = $2 AND g.id = ANY($3::text[]::uuid[])
			ON CONFLICT DO NOTHING
		`, t.ID, t.WorkspaceID, uuidStrings(links.TagIDs)); err != nil {
			return fmt.Errorf("insert tags: %w", err)
		}
	}
	return nil
}

// hydrate loads assignees, tags, checklist items, subtasks and the project
// brief for every task in one query per relationship.
func hydrate(ctx context.Context, q querier, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*domain.Task, len(tasks))
	ids := make([]uuid.UUID, 0, len(tasks))
	projectIDs := []uuid.UUID{}
	for _, t := range tasks {
		t.Assignees = []domain.User{}
		t.Tags = []domain.TagBrief{}
		t.Checklists = []domain.ChecklistItem{}
		t.Subtasks = []domain.SubtaskBrief{}
		t.Project = nil
		byID[t.ID] = t
		ids = append(ids, t.ID)
		if t.ProjectID != nil {
			projectIDs = append(projectIDs, *t.ProjectID)
		}
	}
	idParam := uuidStrings(ids)

	rows, err := q.Query(ctx, `
		SELECT ta.task_id, u.id, u.workspace_id, u.name, u.email, u.initials, u.colour, u.avatar_url, u.role, u.created_at
		FROM task_assignees ta
		JOIN users u ON u.id = ta.user_id
		WHERE ta.task_id = ANY($1::text[]::uuid[])
		ORDER BY u.name, u.id
	`, idParam)
	if err != nil {
		return fmt.Errorf("hydrate assignees: %w", err)
	}
	for rows.Next() {
		var taskID uuid.UUID
		var u domain.User
		if err := rows.Scan(&taskID, &u.ID, &u.WorkspaceID, &u.Name, &u.Email, &u.Initials, &u.Colour, &u.AvatarURL, &u.Role, &u.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan assignee: %w", err)
		}
		byID[taskID].Assignees = append(byID[taskID].Assignees, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("hydrate assignees: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT tt.task_id, g.id, g.name, g.colour
		FROM task_tags tt
		JOIN tags g ON g.id = tt.tag_id
		WHERE tt.task_id = ANY($1::text[]::uuid[])
		ORDER BY g.name, g.id
	`, idParam)
	if err != nil {
		return fmt.Errorf("hydrate tags: %w", err)
	}
	for rows.Next() {
		var taskID uuid.UUID
		var tag domain.TagBrief
		if err := rows.Scan(&taskID, &tag.ID, &tag.Name, &tag.Colour); err != nil {
			rows.Close()
			return fmt.Errorf("scan tag: %w", err)
		}
		byID[taskID].Tags = append(byID[taskID].Tags, tag)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("hydrate tags: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT id, task_id, title, is_completed, sort_order, created_at
		FROM checklists
		WHERE task_id = ANY($1::text[]::uuid[])
		ORDER BY sort_order, created_at
	`, idParam)
	if err != nil {
		return fmt.Errorf("hydrate checklists: %w", err)
	}
	for rows.Next() {
		var c domain.ChecklistItem
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Title, &c.IsCompleted, &c.SortOrder, &c.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan checklist: %w", err)
		}
		byID[c.TaskID].Checklists = append(byID[c.TaskID].Checklists, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("hydrate checklists: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT parent_id, id, name, status, sort_order
		FROM tasks
		WHERE parent_id = ANY($1::text[]::uuid[])
		ORDER BY sort_order, created_at
	`, idParam)
	if err != nil {
		return fmt.Errorf("hydrate subtasks: %w", err)
	}
	for rows.Next() {
		var parentID uuid.UUID
		var s domain.SubtaskBrief
		if err := rows.Scan(&parentID, &s.ID, &s.Name, &s.Status, &s.SortOrder); err != nil {
			rows.Close()
			return fmt.Errorf("scan subtask: %w", err)
		}
		byID[parentID].Subtasks = append(byID[parentID].Subtasks, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("hydrate subtasks: %w", err)
	}

	if len(projectIDs) == 0 {
		return nil
	}
	rows, err = q.Query(ctx, `
		SELECT id, name, colour FROM projects WHERE id = ANY($1::text[]::uuid[])
	`, uuidStrings(projectIDs))
	if err != nil {
		return fmt.Errorf("hydrate projects: %w", err)
	}
	projects := map[uuid.UUID]domain.ProjectBrief{}
	for rows.Next() {
		var p domain.ProjectBrief
		if err := rows.Scan(&p.ID, &p.Name, &p.Colour); err != nil {
			rows.Close()
			return fmt.Errorf("scan project: %w", err)
		}
		projects[p.ID] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("hydrate projects: %w", err)
	}
	for _, t := range tasks {
		if t.ProjectID == nil {
			continue
		}
		if p, ok := projects[*t.ProjectID]; ok {
			t.Project = &p
		}
	}
	return nil
}
