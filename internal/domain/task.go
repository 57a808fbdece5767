package domain

import (
	"time"

	"github.com/google/uuid"
)

// Time estimate modes
const (
	EstimateModeTotal  = "total"
	EstimateModePerDay = "per_day"
)

// Task is a unit of planned work inside a workspace. The relationship
// slices are only populated on hydrated reads.
type Task struct {
	ID                  uuid.UUID  `json:"id"`
	WorkspaceID         uuid.UUID  `json:"workspace_id"`
	Name                string     `json:"name"`
	Description         *string    `json:"description"`
	Colour              *string    `json:"colour"`
	Status              string     `json:"status"`
	StatusEmoji         *string    `json:"status_emoji"`
	DateFrom            *Date      `json:"date_from"`
	DateTo              *Date      `json:"date_to"`
	StartTime           *string    `json:"start_time"`
	EndTime             *string    `json:"end_time"`
	TimeEstimateMinutes *int       `json:"time_estimate_minutes"`
	TimeEstimateMode    string     `json:"time_estimate_mode"`
	IsRecurring         bool       `json:"is_recurring"`
	RecurrenceRule      *string    `json:"recurrence_rule"`
	SortOrder           int        `json:"sort_order"`
	ProjectID           *uuid.UUID `json:"project_id"`
	SegmentID           *uuid.UUID `json:"segment_id"`
	ParentID            *uuid.UUID `json:"parent_id"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	Project    *ProjectBrief   `json:"project"`
	Assignees  []User          `json:"assignees"`
	Tags       []TagBrief      `json:"tags"`
	Checklists []ChecklistItem `json:"checklists"`
	Subtasks   []SubtaskBrief  `json:"subtasks"`
}

type ProjectBrief struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Colour string    `json:"colour"`
}

type TagBrief struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Colour string    `json:"colour"`
}

type ChecklistItem struct {
	ID          uuid.UUID `json:"id"`
	TaskID      uuid.UUID `json:"task_id"`
	Title       string    `json:"title"`
	IsCompleted bool      `json:"is_completed"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
}

type SubtaskBrief struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	SortOrder int       `json:"sort_order"`
}

// AssigneeIDs returns the ids of the hydrated assignees.
func (t *Task) AssigneeIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(t.Assignees))
	for _, u := range t.Assignees {
		ids = append(ids, u.ID)
	}
	return ids
}

// TagIDs returns the ids of the hydrated tags.
func (t *Task) TagIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(t.Tags))
	for _, tag := range t.Tags {
		ids = append(ids, tag.ID)
	}
	return ids
}

// DurationDays is the inclusive span between DateFrom and DateTo minus one,
// so a single-day task has a duration of zero.
func (t *Task) DurationDays() int {
	if t.DateFrom == nil || t.DateTo == nil {
		return 0
	}
	d := t.DateFrom.DaysUntil(*t.DateTo)
	if d < 0 {
		return 0
	}
	return d
}

// Clone returns a deep copy, relationships included.
func (t *Task) Clone() *Task {
	c := *t
	c.Description = clonePtr(t.Description)
	c.Colour = clonePtr(t.Colour)
	c.StatusEmoji = clonePtr(t.StatusEmoji)
	c.DateFrom = clonePtr(t.DateFrom)
	c.DateTo = clonePtr(t.DateTo)
	c.StartTime = clonePtr(t.StartTime)
	c.EndTime = clonePtr(t.EndTime)
	c.TimeEstimateMinutes = clonePtr(t.TimeEstimateMinutes)
	c.RecurrenceRule = clonePtr(t.RecurrenceRule)
	c.ProjectID = clonePtr(t.ProjectID)
	c.SegmentID = clonePtr(t.SegmentID)
	c.ParentID = clonePtr(t.ParentID)
	c.Project = clonePtr(t.Project)
	c.Assignees = append([]User(nil), t.Assignees...)
	c.Tags = append([]TagBrief(nil), t.Tags...)
	c.Checklists = append([]ChecklistItem(nil), t.Checklists...)
	c.Subtasks = append([]SubtaskBrief(nil), t.Subtasks...)
	return &c
}

// TaskFilter narrows task listings. Zero values are ignored.
type TaskFilter struct {
	ProjectID  *uuid.UUID
	SegmentID  *uuid.UUID
	AssigneeID *uuid.UUID
	TagID      *uuid.UUID
	Status     string
	Since      *Date
	Until      *Date
	Backlog    *bool // true: undated only, false: dated only
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
