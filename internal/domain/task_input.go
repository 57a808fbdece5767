package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Optional distinguishes an absent JSON field from an explicit null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func Some[T any](v T) Optional[T] { return Optional[T]{Set: true, Value: &v} }

func Null[T any]() Optional[T] { return Optional[T]{Set: true} }

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// TaskInput carries the fields accepted when creating a task.
type TaskInput struct {
	Name                string      `json:"name"`
	Description         *string     `json:"description"`
	Colour              *string     `json:"colour"`
	Status              string      `json:"status"`
	StatusEmoji         *string     `json:"status_emoji"`
	DateFrom            *Date       `json:"date_from"`
	DateTo              *Date       `json:"date_to"`
	StartTime           *string     `json:"start_time"`
	EndTime             *string     `json:"end_time"`
	TimeEstimateMinutes *int        `json:"time_estimate_minutes"`
	TimeEstimateMode    string      `json:"time_estimate_mode"`
	ProjectID           *uuid.UUID  `json:"project_id"`
	SegmentID           *uuid.UUID  `json:"segment_id"`
	ParentID            *uuid.UUID  `json:"parent_id"`
	IsRecurring         bool        `json:"is_recurring"`
	RecurrenceRule      *string     `json:"recurrence_rule"`
	SortOrder           int         `json:"sort_order"`
	AssigneeIDs         []uuid.UUID `json:"assignee_ids"`
	TagIDs              []uuid.UUID `json:"tag_ids"`
}

// TaskPatch is a partial update. Nil pointers and unset Optionals leave a
// field untouched; a nil AssigneeIDs or TagIDs leaves that membership
// untouched, while a non-nil slice replaces it entirely.
type TaskPatch struct {
	Name                *string              `json:"name"`
	Description         Optional[string]     `json:"description"`
	Colour              Optional[string]     `json:"colour"`
	Status              *string              `json:"status"`
	StatusEmoji         Optional[string]     `json:"status_emoji"`
	DateFrom            Optional[Date]       `json:"date_from"`
	DateTo              Optional[Date]       `json:"date_to"`
	StartTime           Optional[string]     `json:"start_time"`
	EndTime             Optional[string]     `json:"end_time"`
	TimeEstimateMinutes Optional[int]        `json:"time_estimate_minutes"`
	TimeEstimateMode    *string              `json:"time_estimate_mode"`
	ProjectID           Optional[uuid.UUID]  `json:"project_id"`
	SegmentID           Optional[uuid.UUID]  `json:"segment_id"`
	ParentID            Optional[uuid.UUID]  `json:"parent_id"`
	SortOrder           *int                 `json:"sort_order"`
	IsRecurring         *bool                `json:"is_recurring"`
	RecurrenceRule      Optional[string]     `json:"recurrence_rule"`
	AssigneeIDs         []uuid.UUID          `json:"assignee_ids"`
	TagIDs              []uuid.UUID          `json:"tag_ids"`
}

// BulkTaskPatch applies one patch to several tasks.
type BulkTaskPatch struct {
	TaskIDs []uuid.UUID `json:"task_ids"`
	TaskPatch
}

// Apply writes the patch's scalar fields onto t and returns the JSON names
// of the fields whose value actually changed.
func (p *TaskPatch) Apply(t *Task) []string {
	var changed []string
	track := func(name string, differs bool) {
		if differs {
			changed = append(changed, name)
		}
	}

	if p.Name != nil {
		track("name", t.Name != *p.Name)
		t.Name = *p.Name
	}
	if p.Description.Set {
		track("description", !equalPtr(t.Description, p.Description.Value))
		t.Description = p.Description.Value
	}
	if p.Colour.Set {
		track("colour", !equalPtr(t.Colour, p.Colour.Value))
		t.Colour = p.Colour.Value
	}
	if p.Status != nil {
		track("status", t.Status != *p.Status)
		t.Status = *p.Status
	}
	if p.StatusEmoji.Set {
		track("status_emoji", !equalPtr(t.StatusEmoji, p.StatusEmoji.Value))
		t.StatusEmoji = p.StatusEmoji.Value
	}
	if p.DateFrom.Set {
		track("date_from", !equalDate(t.DateFrom, p.DateFrom.Value))
		t.DateFrom = p.DateFrom.Value
	}
	if p.DateTo.Set {
		track("date_to", !equalDate(t.DateTo, p.DateTo.Value))
		t.DateTo = p.DateTo.Value
	}
	if p.StartTime.Set {
		track("start_time", !equalPtr(t.StartTime, p.StartTime.Value))
		t.StartTime = p.StartTime.Value
	}
	if p.EndTime.Set {
		track("end_time", !equalPtr(t.EndTime, p.EndTime.Value))
		t.EndTime = p.EndTime.Value
	}
	if p.TimeEstimateMinutes.Set {
		track("time_estimate_minutes", !equalPtr(t.TimeEstimateMinutes, p.TimeEstimateMinutes.Value))
		t.TimeEstimateMinutes = p.TimeEstimateMinutes.Value
	}
	if p.TimeEstimateMode != nil {
		track("time_estimate_mode", t.TimeEstimateMode != *p.TimeEstimateMode)
		t.TimeEstimateMode = *p.TimeEstimateMode
	}
	if p.ProjectID.Set {
		track("project_id", !equalPtr(t.ProjectID, p.ProjectID.Value))
		t.ProjectID = p.ProjectID.Value
	}
	if p.SegmentID.Set {
		track("segment_id", !equalPtr(t.SegmentID, p.SegmentID.Value))
		t.SegmentID = p.SegmentID.Value
	}
	if p.ParentID.Set {
		track("parent_id", !equalPtr(t.ParentID, p.ParentID.Value))
		t.ParentID = p.ParentID.Value
	}
	if p.SortOrder != nil {
		track("sort_order", t.SortOrder != *p.SortOrder)
		t.SortOrder = *p.SortOrder
	}
	if p.IsRecurring != nil {
		track("is_recurring", t.IsRecurring != *p.IsRecurring)
		t.IsRecurring = *p.IsRecurring
	}
	if p.RecurrenceRule.Set {
		track("recurrence_rule", !equalPtr(t.RecurrenceRule, p.RecurrenceRule.Value))
		t.RecurrenceRule = p.RecurrenceRule.Value
	}
	return changed
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalDate(a, b *Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(b.Time)
}
