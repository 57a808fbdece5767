// Package testutil provides in-memory fakes of the persistence and realtime
// collaborators of the task pipeline.
package testutil

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/zanphear/planview/internal/domain"
	"github.com/zanphear/planview/internal/repository"

	"github.com/google/uuid"
)

type tagRow struct {
	workspaceID uuid.UUID
	tag         domain.TagBrief
}

// Store is an in-memory task and user store. Link ids are resolved against
// the task's workspace exactly like the SQL repository does.
type Store struct {
	mu         sync.Mutex
	tasks      map[uuid.UUID]*domain.Task
	assignees  map[uuid.UUID][]uuid.UUID
	tags       map[uuid.UUID][]uuid.UUID
	checklists map[uuid.UUID][]domain.ChecklistItem
	users      map[uuid.UUID]domain.User
	tagRows    map[uuid.UUID]tagRow

	// Error injection
	CreateErr error
	UpdateErr error
	DeleteErr error
	// GetHook runs before every Get; a non-nil error is returned from Get.
	GetHook func(id uuid.UUID) error

	Creates int
	Updates int
}

func NewStore() *Store {
	return &Store{
		tasks:      make(map[uuid.UUID]*domain.Task),
		assignees:  make(map[uuid.UUID][]uuid.UUID),
		tags:       make(map[uuid.UUID][]uuid.UUID),
		checklists: make(map[uuid.UUID][]domain.ChecklistItem),
		users:      make(map[uuid.UUID]domain.User),
		tagRows:    make(map[uuid.UUID]tagRow),
	}
}

// AddUser registers a user in workspaceID and returns its id.
func (s *Store) AddUser(workspaceID uuid.UUID, name string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := domain.User{ID: uuid.New(), WorkspaceID: workspaceID, Name: name, Colour: "#6366f1", Role: "member"}
	s.users[u.ID] = u
	return u.ID
}

// AddTag registers a tag in workspaceID and returns its id.
func (s *Store) AddTag(workspaceID uuid.UUID, name string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	tag := domain.TagBrief{ID: uuid.New(), Name: name, Colour: "#94a3b8"}
	s.tagRows[tag.ID] = tagRow{workspaceID: workspaceID, tag: tag}
	return tag.ID
}

// Tasks returns unhydrated copies of every task in the workspace, ordered by
// creation.
func (s *Store) Tasks(workspaceID uuid.UUID) []*domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Task
	for _, t := range s.tasks {
		if t.WorkspaceID == workspaceID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) GetByID(_ context.Context, workspaceID, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.WorkspaceID != workspaceID {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *Store) Create(_ context.Context, t *domain.Task, links repository.TaskLinks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if t.ParentID != nil {
		if p, ok := s.tasks[*t.ParentID]; !ok || p.WorkspaceID != t.WorkspaceID {
			return domain.ErrNotFound
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	// strictly increasing timestamps keep Tasks ordered
	now := time.Now().Add(time.Duration(s.Creates) * time.Microsecond)
	t.CreatedAt, t.UpdatedAt = now, now
	s.tasks[t.ID] = bare(t)
	s.writeLinks(t, links)
	items := make([]domain.ChecklistItem, 0, len(links.Checklists))
	for _, c := range links.Checklists {
		c.ID = uuid.New()
		c.TaskID = t.ID
		items = append(items, c)
	}
	s.checklists[t.ID] = items
	s.Creates++
	return nil
}

func (s *Store) Update(_ context.Context, t *domain.Task, links repository.TaskLinks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	if err := s.updateLocked(t, links); err != nil {
		return err
	}
	s.Updates++
	return nil
}

func (s *Store) updateLocked(t *domain.Task, links repository.TaskLinks) error {
	existing, ok := s.tasks[t.ID]
	if !ok || existing.WorkspaceID != t.WorkspaceID {
		return domain.ErrNotFound
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now()
	s.tasks[t.ID] = bare(t)
	s.writeLinks(t, links)
	return nil
}

func (s *Store) BulkUpdate(_ context.Context, workspaceID uuid.UUID, ids []uuid.UUID, mutate func(*domain.Task) error, links repository.TaskLinks) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return nil, s.UpdateErr
	}

	var staged []*domain.Task
	for _, id := range ids {
		t, ok := s.tasks[id]
		if !ok || t.WorkspaceID != workspaceID {
			continue
		}
		c := t.Clone()
		if err := mutate(c); err != nil {
			return nil, err
		}
		staged = append(staged, c)
	}
	updated := make([]uuid.UUID, 0, len(staged))
	for _, t := range staged {
		if err := s.updateLocked(t, links); err != nil {
			return nil, err
		}
		updated = append(updated, t.ID)
	}
	s.Updates += len(updated)
	return updated, nil
}

func (s *Store) Delete(_ context.Context, workspaceID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	t, ok := s.tasks[id]
	if !ok || t.WorkspaceID != workspaceID {
		return domain.ErrNotFound
	}
	s.deleteLocked(id)
	return nil
}

func (s *Store) deleteLocked(id uuid.UUID) {
	delete(s.tasks, id)
	delete(s.assignees, id)
	delete(s.tags, id)
	delete(s.checklists, id)
	for childID, child := range s.tasks {
		if child.ParentID != nil && *child.ParentID == id {
			s.deleteLocked(childID)
		}
	}
}

func (s *Store) Get(_ context.Context, workspaceID, id uuid.UUID) (*domain.Task, error) {
	if s.GetHook != nil {
		if err := s.GetHook(id); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.WorkspaceID != workspaceID {
		return nil, domain.ErrNotFound
	}
	return s.hydrated(t), nil
}

func (s *Store) List(_ context.Context, workspaceID uuid.UUID, f domain.TaskFilter, limit, offset int) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Task
	for _, t := range s.tasks {
		if t.WorkspaceID != workspaceID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.ProjectID != nil && (t.ProjectID == nil || *t.ProjectID != *f.ProjectID) {
			continue
		}
		if f.AssigneeID != nil && !slices.Contains(s.assignees[t.ID], *f.AssigneeID) {
			continue
		}
		if f.SegmentID != nil && (t.SegmentID == nil || *t.SegmentID != *f.SegmentID) {
			continue
		}
		if f.TagID != nil && !slices.Contains(s.tags[t.ID], *f.TagID) {
			continue
		}
		if f.Backlog != nil && *f.Backlog != (t.DateFrom == nil) {
			continue
		}
		if f.Since != nil {
			end := t.DateTo
			if end == nil {
				end = t.DateFrom
			}
			if end == nil || end.Before(f.Since.Time) {
				continue
			}
		}
		if f.Until != nil && (t.DateFrom == nil || t.DateFrom.After(f.Until.Time)) {
			continue
		}
		out = append(out, s.hydrated(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset >= len(out) {
		return []*domain.Task{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DueOn(_ context.Context, day domain.Date, doneStatuses []string) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Task
	for _, t := range s.tasks {
		if t.DateTo == nil || !t.DateTo.Equal(day.Time) || slices.Contains(doneStatuses, t.Status) {
			continue
		}
		out = append(out, s.hydrated(t))
	}
	return out, nil
}

func (s *Store) writeLinks(t *domain.Task, links repository.TaskLinks) {
	if links.AssigneeIDs != nil {
		var ids []uuid.UUID
		for _, id := range links.AssigneeIDs {
			if u, ok := s.users[id]; ok && u.WorkspaceID == t.WorkspaceID && !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		s.assignees[t.ID] = ids
	}
	if links.TagIDs != nil {
		var ids []uuid.UUID
		for _, id := range links.TagIDs {
			if row, ok := s.tagRows[id]; ok && row.workspaceID == t.WorkspaceID && !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		s.tags[t.ID] = ids
	}
}

func (s *Store) hydrated(t *domain.Task) *domain.Task {
	out := t.Clone()
	out.Assignees = []domain.User{}
	for _, id := range s.assignees[t.ID] {
		out.Assignees = append(out.Assignees, s.users[id])
	}
	out.Tags = []domain.TagBrief{}
	for _, id := range s.tags[t.ID] {
		out.Tags = append(out.Tags, s.tagRows[id].tag)
	}
	out.Checklists = append([]domain.ChecklistItem{}, s.checklists[t.ID]...)
	out.Subtasks = []domain.SubtaskBrief{}
	for _, child := range s.tasks {
		if child.ParentID != nil && *child.ParentID == t.ID {
			out.Subtasks = append(out.Subtasks, domain.SubtaskBrief{ID: child.ID, Name: child.Name, Status: child.Status, SortOrder: child.SortOrder})
		}
	}
	return out
}

// bare copies the row without its relationships.
func bare(t *domain.Task) *domain.Task {
	c := t.Clone()
	c.Project, c.Assignees, c.Tags, c.Checklists, c.Subtasks = nil, nil, nil, nil, nil
	return c
}
