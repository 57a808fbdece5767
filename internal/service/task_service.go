package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/zanphear/planview/internal/domain"
	"github.com/zanphear/planview/internal/logger"
	"github.com/zanphear/planview/internal/recurrence"
	"github.com/zanphear/planview/internal/repository"

	"github.com/google/uuid"
)

const (
	DefaultInitialStatus = "todo"
	DefaultHorizonDays   = 365
)

// TaskService is the only entry point that mutates tasks. Every mutation
// runs through an ordered pipeline, see task_pipeline.go.
type TaskService struct {
	tasks         TaskStore
	users         UserStore
	activity      *ActivityService
	notifications *NotificationService
	hub           Broadcaster

	now           func() time.Time
	log           *slog.Logger
	initialStatus string
	doneStatuses  map[string]bool
	horizonDays   int
}

type Option func(*TaskService)

// WithClock overrides the clock used for "today".
func WithClock(clock func() time.Time) Option {
	return func(s *TaskService) {
		if clock != nil {
			s.now = clock
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *TaskService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithStatuses sets the status new occurrences start in and the statuses
// that count as completed.
func WithStatuses(initial string, done []string) Option {
	return func(s *TaskService) {
		if initial != "" {
			s.initialStatus = initial
		}
		if len(done) > 0 {
			s.doneStatuses = make(map[string]bool, len(done))
			for _, st := range done {
				s.doneStatuses[st] = true
			}
		}
	}
}

// WithHorizon bounds how far ahead the next occurrence is searched.
func WithHorizon(days int) Option {
	return func(s *TaskService) {
		if days > 0 {
			s.horizonDays = days
		}
	}
}

func NewTaskService(tasks TaskStore, users UserStore, activity *ActivityService, notifications *NotificationService, hub Broadcaster, opts ...Option) *TaskService {
	s := &TaskService{
		tasks:         tasks,
		users:         users,
		activity:      activity,
		notifications: notifications,
		hub:           hub,
		now:           time.Now,
		log:           logger.With("component", "tasks"),
		initialStatus: DefaultInitialStatus,
		doneStatuses:  map[string]bool{"done": true},
		horizonDays:   DefaultHorizonDays,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *TaskService) today() domain.Date {
	return domain.DateOf(s.now())
}

// IsDone reports whether status counts as completed.
func (s *TaskService) IsDone(status string) bool {
	return s.doneStatuses[status]
}

// DoneStatuses returns the configured completed statuses.
func (s *TaskService) DoneStatuses() []string {
	out := make([]string, 0, len(s.doneStatuses))
	for st := range s.doneStatuses {
		out = append(out, st)
	}
	return out
}

func (s *TaskService) GetTask(ctx context.Context, workspaceID, taskID uuid.UUID) (*domain.Task, error) {
	return s.tasks.Get(ctx, workspaceID, taskID)
}

func (s *TaskService) ListTasks(ctx context.Context, workspaceID uuid.UUID, f domain.TaskFilter, limit, offset int) ([]*domain.Task, error) {
	if offset < 0 {
		offset = 0
	}
	return s.tasks.List(ctx, workspaceID, f, clampLimit(limit), offset)
}

// CreateTask runs persist, hydrate, activity, broadcast and notify.
func (s *TaskService) CreateTask(ctx context.Context, workspaceID, actorID uuid.UUID, in domain.TaskInput) (*domain.Task, error) {
	t := &domain.Task{
		WorkspaceID:         workspaceID,
		Name:                in.Name,
		Description:         in.Description,
		Colour:              in.Colour,
		Status:              in.Status,
		StatusEmoji:         in.StatusEmoji,
		DateFrom:            in.DateFrom,
		DateTo:              in.DateTo,
		StartTime:           in.StartTime,
		EndTime:             in.EndTime,
		TimeEstimateMinutes: in.TimeEstimateMinutes,
		TimeEstimateMode:    in.TimeEstimateMode,
		IsRecurring:         in.IsRecurring,
		RecurrenceRule:      in.RecurrenceRule,
		SortOrder:           in.SortOrder,
		ProjectID:           in.ProjectID,
		SegmentID:           in.SegmentID,
		ParentID:            in.ParentID,
	}
	if t.Status == "" {
		t.Status = s.initialStatus
	}
	if err := s.prepare(t); err != nil {
		return nil, err
	}

	m := &mutation{
		op:          opCreate,
		workspaceID: workspaceID,
		actorID:     actorID,
		task:        t,
		links:       repository.TaskLinks{AssigneeIDs: in.AssigneeIDs, TagIDs: in.TagIDs},
	}
	if err := s.run(ctx, m, s.createPipeline()); err != nil {
		return nil, err
	}
	return m.task, nil
}

// UpdateTask applies patch and runs the full pipeline, including
// materializing the next occurrence of a completed recurring task.
func (s *TaskService) UpdateTask(ctx context.Context, workspaceID, actorID, taskID uuid.UUID, patch *domain.TaskPatch) (*domain.Task, error) {
	prior, err := s.tasks.Get(ctx, workspaceID, taskID)
	if err != nil {
		return nil, err
	}

	t := prior.Clone()
	changed := patch.Apply(t)
	if err := s.prepare(t); err != nil {
		return nil, err
	}
	// prepare drops the rule of a task that stops recurring
	if !slices.Contains(changed, "recurrence_rule") && !equalRule(prior.RecurrenceRule, t.RecurrenceRule) {
		changed = append(changed, "recurrence_rule")
	}

	m := &mutation{
		op:          opUpdate,
		workspaceID: workspaceID,
		actorID:     actorID,
		task:        t,
		prior:       prior,
		changed:     changed,
		links:       repository.TaskLinks{AssigneeIDs: patch.AssigneeIDs, TagIDs: patch.TagIDs},
	}
	if err := s.run(ctx, m, s.updatePipeline()); err != nil {
		return nil, err
	}
	return m.task, nil
}

// DeleteTask removes the task, records the deletion and broadcasts it.
func (s *TaskService) DeleteTask(ctx context.Context, workspaceID, actorID, taskID uuid.UUID) error {
	m := &mutation{
		op:          opDelete,
		workspaceID: workspaceID,
		actorID:     actorID,
		task:        &domain.Task{ID: taskID, WorkspaceID: workspaceID},
	}
	return s.run(ctx, m, s.deletePipeline())
}

// DuplicateTask creates a non-recurring copy with the same assignees, tags
// and checklist items. Copied assignees are not notified.
func (s *TaskService) DuplicateTask(ctx context.Context, workspaceID, actorID, taskID uuid.UUID) (*domain.Task, error) {
	src, err := s.tasks.Get(ctx, workspaceID, taskID)
	if err != nil {
		return nil, err
	}

	dup := src.Clone()
	dup.ID = uuid.Nil
	dup.Name = src.Name + " (copy)"
	dup.IsRecurring = false
	dup.RecurrenceRule = nil
	dup.Project, dup.Assignees, dup.Tags, dup.Checklists, dup.Subtasks = nil, nil, nil, nil, nil

	checklists := make([]domain.ChecklistItem, len(src.Checklists))
	copy(checklists, src.Checklists)

	m := &mutation{
		op:          opDuplicate,
		workspaceID: workspaceID,
		actorID:     actorID,
		task:        dup,
		source:      src,
		links: repository.TaskLinks{
			AssigneeIDs: src.AssigneeIDs(),
			TagIDs:      src.TagIDs(),
			Checklists:  checklists,
		},
	}
	if err := s.run(ctx, m, s.duplicatePipeline()); err != nil {
		return nil, err
	}
	return m.task, nil
}

// BulkUpdateTasks applies one patch to every listed task of the workspace
// in a single transaction, then hydrates and broadcasts each task. Bulk
// writes record no activity, send no notifications and never materialize
// recurrences.
func (s *TaskService) BulkUpdateTasks(ctx context.Context, workspaceID, actorID uuid.UUID, patch *domain.BulkTaskPatch) ([]*domain.Task, error) {
	if len(patch.TaskIDs) == 0 {
		return nil, fmt.Errorf("%w: task_ids is required", domain.ErrValidation)
	}

	mutate := func(t *domain.Task) error {
		patch.TaskPatch.Apply(t)
		return s.prepare(t)
	}
	ids, err := s.tasks.BulkUpdate(ctx, workspaceID, patch.TaskIDs, mutate, repository.TaskLinks{
		AssigneeIDs: patch.AssigneeIDs,
		TagIDs:      patch.TagIDs,
	})
	if err != nil {
		return nil, err
	}
	TaskMutations.WithLabelValues(string(opBulk)).Add(float64(len(ids)))

	ctx = context.WithoutCancel(ctx)
	out := make([]*domain.Task, 0, len(ids))
	for _, id := range ids {
		m := &mutation{
			op:          opBulk,
			workspaceID: workspaceID,
			actorID:     actorID,
			task:        &domain.Task{ID: id, WorkspaceID: workspaceID},
			committed:   true,
		}
		_ = s.run(ctx, m, s.bulkFanoutPipeline())
		if m.hydrated {
			out = append(out, m.task)
		}
	}
	return out, nil
}

// prepare normalizes t and rejects invalid writes.
func (s *TaskService) prepare(t *domain.Task) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if t.TimeEstimateMode == "" {
		t.TimeEstimateMode = domain.EstimateModeTotal
	}
	if t.TimeEstimateMode != domain.EstimateModeTotal && t.TimeEstimateMode != domain.EstimateModePerDay {
		return fmt.Errorf("%w: time_estimate_mode must be %q or %q", domain.ErrValidation, domain.EstimateModeTotal, domain.EstimateModePerDay)
	}
	if t.TimeEstimateMinutes != nil && *t.TimeEstimateMinutes < 0 {
		return fmt.Errorf("%w: time_estimate_minutes must not be negative", domain.ErrValidation)
	}
	if t.DateFrom != nil && t.DateTo != nil && t.DateTo.Before(t.DateFrom.Time) {
		return fmt.Errorf("%w: date_to is before date_from", domain.ErrValidation)
	}
	for _, v := range []*string{t.StartTime, t.EndTime} {
		if v == nil {
			continue
		}
		if _, err := time.Parse("15:04", *v); err != nil {
			return fmt.Errorf("%w: time %q is not HH:MM", domain.ErrValidation, *v)
		}
	}

	if t.RecurrenceRule != nil && strings.TrimSpace(*t.RecurrenceRule) == "" {
		t.RecurrenceRule = nil
	}
	if !t.IsRecurring {
		t.RecurrenceRule = nil
		return nil
	}
	if t.RecurrenceRule == nil {
		return fmt.Errorf("%w: a recurring task needs a recurrence_rule", domain.ErrValidation)
	}
	if _, err := recurrence.Parse(*t.RecurrenceRule); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return nil
}

func equalRule(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
