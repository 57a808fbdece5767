package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/zanphear/planview/internal/domain"
	"github.com/zanphear/planview/internal/recurrence"
	"github.com/zanphear/planview/internal/repository"
	"github.com/zanphear/planview/internal/ws"

	"github.com/google/uuid"
)

type op string

const (
	opCreate    op = "create"
	opUpdate    op = "update"
	opDelete    op = "delete"
	opDuplicate op = "duplicate"
	opBulk      op = "bulk"
	opRecur     op = "recur"
)

// Step names, in pipeline order.
const (
	StepPersist   = "persist"
	StepHydrate   = "hydrate"
	StepActivity  = "activity"
	StepBroadcast = "broadcast"
	StepNotify    = "notify"
	StepRecur     = "recur"
)

// mutation is the state threaded through one pipeline run.
type mutation struct {
	op          op
	workspaceID uuid.UUID
	actorID     uuid.UUID

	task    *domain.Task // row being written; replaced by the hydrated read
	prior   *domain.Task // hydrated state before an update
	source  *domain.Task // original of a duplicate
	changed []string
	links   repository.TaskLinks

	committed bool
	hydrated  bool
}

type step struct {
	name string
	// fatal steps abort the run and return their error; they must all come
	// before the first best-effort step.
	fatal bool
	// gate marks a best-effort step whose failure skips the rest of the run.
	gate bool
	run  func(ctx context.Context, m *mutation) error
}

// run executes steps in order. Once the write is committed the context is
// detached from the caller so a cancelled request cannot cut the side
// effects short, and later failures are logged and counted only.
func (s *TaskService) run(ctx context.Context, m *mutation, steps []step) error {
	if m.committed {
		ctx = context.WithoutCancel(ctx)
	}
	for _, st := range steps {
		err := st.run(ctx, m)
		if st.fatal {
			if err != nil {
				return err
			}
			m.committed = true
			TaskMutations.WithLabelValues(string(m.op)).Inc()
			ctx = context.WithoutCancel(ctx)
			continue
		}
		if err == nil {
			continue
		}
		StepFailures.WithLabelValues(string(m.op), st.name).Inc()
		s.log.Warn("task pipeline step failed",
			"op", m.op, "step", st.name, "task_id", m.task.ID, "workspace_id", m.workspaceID, "error", err)
		if st.gate {
			return nil
		}
	}
	return nil
}

func (s *TaskService) createPipeline() []step {
	return []step{
		{name: StepPersist, fatal: true, run: s.persistCreate},
		{name: StepHydrate, gate: true, run: s.hydrate},
		{name: StepActivity, run: s.recordActivity},
		{name: StepBroadcast, run: s.broadcastSaved},
		{name: StepNotify, run: s.notifyAssignees},
	}
}

func (s *TaskService) updatePipeline() []step {
	return []step{
		{name: StepPersist, fatal: true, run: s.persistUpdate},
		{name: StepHydrate, gate: true, run: s.hydrate},
		{name: StepActivity, run: s.recordActivity},
		{name: StepBroadcast, run: s.broadcastSaved},
		{name: StepNotify, run: s.notifyAssignees},
		{name: StepRecur, run: s.materializeNext},
	}
}

func (s *TaskService) deletePipeline() []step {
	return []step{
		{name: StepPersist, fatal: true, run: s.persistDelete},
		{name: StepActivity, run: s.recordActivity},
		{name: StepBroadcast, run: s.broadcastDeleted},
	}
}

// duplicatePipeline and recurPipeline stop before notify so neither a copy
// nor a generated occurrence pings anybody.
func (s *TaskService) duplicatePipeline() []step {
	return s.createPipeline()[:4]
}

func (s *TaskService) recurPipeline() []step {
	return s.createPipeline()[:4]
}

func (s *TaskService) bulkFanoutPipeline() []step {
	return []step{
		{name: StepHydrate, gate: true, run: s.hydrate},
		{name: StepBroadcast, run: s.broadcastSaved},
	}
}

func (s *TaskService) persistCreate(ctx context.Context, m *mutation) error {
	if err := s.tasks.Create(ctx, m.task, m.links); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *TaskService) persistUpdate(ctx context.Context, m *mutation) error {
	if err := s.tasks.Update(ctx, m.task, m.links); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// persistDelete reads the row first so the activity entry can name it.
func (s *TaskService) persistDelete(ctx context.Context, m *mutation) error {
	existing, err := s.tasks.Get(ctx, m.workspaceID, m.task.ID)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, m.workspaceID, m.task.ID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	m.task = existing
	return nil
}

func (s *TaskService) hydrate(ctx context.Context, m *mutation) error {
	t, err := s.tasks.Get(ctx, m.workspaceID, m.task.ID)
	if err != nil {
		return err
	}
	m.task = t
	m.hydrated = true
	return nil
}

func (s *TaskService) recordActivity(ctx context.Context, m *mutation) error {
	taskID := m.task.ID
	name := m.task.Name
	a := &domain.Activity{
		WorkspaceID: m.workspaceID,
		ActorID:     m.actorID,
		EntityType:  domain.EntityTask,
		EntityID:    &taskID,
		EntityName:  &name,
	}

	switch m.op {
	case opCreate:
		a.Action = domain.ActivityCreated
	case opRecur:
		a.Action = domain.ActivityCreated
		a.Details = map[string]any{"recurred_from": m.source.ID}
	case opDuplicate:
		a.Action = domain.ActivityCreated
		a.Details = map[string]any{"duplicated_from": m.source.ID}
	case opDelete:
		a.Action = domain.ActivityDeleted
	case opUpdate:
		a.Action = domain.ActivityUpdated
		fields := append([]string{}, m.changed...)
		if !sameIDs(m.prior.AssigneeIDs(), m.task.AssigneeIDs()) {
			fields = append(fields, "assignees")
		}
		if !sameIDs(m.prior.TagIDs(), m.task.TagIDs()) {
			fields = append(fields, "tags")
		}
		a.Details = map[string]any{"fields": fields}
	default:
		return fmt.Errorf("no activity for op %q", m.op)
	}
	return s.activity.Append(ctx, a)
}

func (s *TaskService) broadcastSaved(_ context.Context, m *mutation) error {
	eventType := domain.EventTaskUpdated
	if m.op != opUpdate && m.op != opBulk {
		eventType = domain.EventTaskCreated
	}
	s.hub.Broadcast(m.workspaceID, ws.Envelope{
		Type: eventType,
		Data: domain.TaskEventPayload{Task: m.task, ActorID: m.actorID},
	})
	return nil
}

func (s *TaskService) broadcastDeleted(_ context.Context, m *mutation) error {
	s.hub.Broadcast(m.workspaceID, ws.Envelope{
		Type: domain.EventTaskDeleted,
		Data: domain.TaskDeletedPayload{TaskID: m.task.ID, ActorID: m.actorID},
	})
	return nil
}

// notifyAssignees notifies users present after the write but not before
// it. The actor is never notified about their own assignment.
func (s *TaskService) notifyAssignees(ctx context.Context, m *mutation) error {
	before := map[uuid.UUID]bool{}
	if m.prior != nil {
		for _, id := range m.prior.AssigneeIDs() {
			before[id] = true
		}
	}
	var added []uuid.UUID
	for _, id := range m.task.AssigneeIDs() {
		if !before[id] && id != m.actorID {
			added = append(added, id)
		}
	}
	if len(added) == 0 {
		return nil
	}

	// a missing actor falls back to "Someone" in the title
	actor, _ := s.users.GetByID(ctx, m.workspaceID, m.actorID)
	var errs []error
	for _, id := range added {
		if err := s.notifications.NotifyTaskAssigned(ctx, m.actorID, actor, id, m.task); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// materializeNext creates the following occurrence when a recurring task
// has just moved into a done status. The new task goes through the recur
// pipeline, which never reaches this step again.
func (s *TaskService) materializeNext(ctx context.Context, m *mutation) error {
	t := m.task
	if !s.IsDone(t.Status) || !t.IsRecurring || t.RecurrenceRule == nil {
		return nil
	}
	if !slices.Contains(m.changed, "status") {
		return nil
	}

	today := s.today()
	anchor := today
	if t.DateFrom != nil {
		anchor = *t.DateFrom
	}
	tomorrow := today.AddDays(1)
	occ, ok, err := recurrence.Next(*t.RecurrenceRule, anchor.Time, tomorrow.Time, s.horizonDays, t.DurationDays())
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("recurring task has no further occurrence", "task_id", t.ID)
		return nil
	}

	from, to := domain.DateOf(occ.Start), domain.DateOf(occ.End)
	next := &domain.Task{
		WorkspaceID:         t.WorkspaceID,
		Name:                t.Name,
		Description:         t.Description,
		Colour:              t.Colour,
		Status:              s.initialStatus,
		DateFrom:            &from,
		DateTo:              &to,
		StartTime:           t.StartTime,
		EndTime:             t.EndTime,
		TimeEstimateMinutes: t.TimeEstimateMinutes,
		TimeEstimateMode:    t.TimeEstimateMode,
		IsRecurring:         t.IsRecurring,
		RecurrenceRule:      t.RecurrenceRule,
		ProjectID:           t.ProjectID,
		SegmentID:           t.SegmentID,
	}
	child := &mutation{
		op:          opRecur,
		workspaceID: m.workspaceID,
		actorID:     m.actorID,
		task:        next,
		source:      t,
		links:       repository.TaskLinks{AssigneeIDs: t.AssigneeIDs(), TagIDs: t.TagIDs()},
	}
	return s.run(ctx, child, s.recurPipeline())
}

func sameIDs(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uuid.UUID]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}
