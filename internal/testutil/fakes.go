package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/zanphear/planview/internal/domain"
	"github.com/zanphear/planview/internal/ws"

	"github.com/google/uuid"
)

// ActivityLog is an in-memory ActivityStore.
type ActivityLog struct {
	mu      sync.Mutex
	Entries []domain.Activity
	Err     error
}

func (l *ActivityLog) Create(_ context.Context, a *domain.Activity) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	l.Entries = append(l.Entries, *a)
	return nil
}

func (l *ActivityLog) ListByWorkspace(_ context.Context, workspaceID uuid.UUID, limit, offset int) ([]*domain.Activity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.Activity
	for i := len(l.Entries) - 1; i >= 0; i-- {
		if l.Entries[i].WorkspaceID == workspaceID {
			a := l.Entries[i]
			out = append(out, &a)
		}
	}
	if offset >= len(out) {
		return []*domain.Activity{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Actions returns the recorded actions in order.
func (l *ActivityLog) Actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.Entries))
	for _, a := range l.Entries {
		out = append(out, a.Action)
	}
	return out
}

// Inbox is an in-memory NotificationStore.
type Inbox struct {
	mu    sync.Mutex
	Items []*domain.Notification
	Err   error
	// Now stamps CreatedAt; time.Now when nil.
	Now func() time.Time
}

func (b *Inbox) Create(_ context.Context, n *domain.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	if b.Now != nil {
		n.CreatedAt = b.Now()
	}
	c := *n
	b.Items = append(b.Items, &c)
	return nil
}

func (b *Inbox) MarkRead(_ context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for _, item := range b.Items {
		if item.UserID == userID && want[item.ID] && !item.IsRead {
			item.IsRead = true
			n++
		}
	}
	return n, nil
}

func (b *Inbox) UnreadCount(_ context.Context, userID, workspaceID uuid.UUID) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, item := range b.Items {
		if item.UserID == userID && item.WorkspaceID == workspaceID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (b *Inbox) List(_ context.Context, userID, workspaceID uuid.UUID, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []*domain.Notification{}
	for i := len(b.Items) - 1; i >= 0 && len(out) < limit; i-- {
		item := b.Items[i]
		if item.UserID != userID || item.WorkspaceID != workspaceID || (unreadOnly && item.IsRead) {
			continue
		}
		c := *item
		out = append(out, &c)
	}
	return out, nil
}

func (b *Inbox) ExistsSince(_ context.Context, userID, taskID uuid.UUID, eventType string, since time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range b.Items {
		if item.UserID == userID && item.TaskID != nil && *item.TaskID == taskID &&
			item.EventType == eventType && !item.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// ByType returns the stored notifications of eventType.
func (b *Inbox) ByType(eventType string) []domain.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Notification
	for _, item := range b.Items {
		if item.EventType == eventType {
			out = append(out, *item)
		}
	}
	return out
}

// Frame is one broadcast captured by Recorder.
type Frame struct {
	WorkspaceID uuid.UUID
	Type        string
	Data        json.RawMessage
}

// Recorder is a Broadcaster that keeps every envelope, round-tripped
// through JSON like a real subscriber would see it.
type Recorder struct {
	mu     sync.Mutex
	Frames []Frame
}

func (r *Recorder) Broadcast(workspaceID uuid.UUID, env ws.Envelope) int {
	data, _ := json.Marshal(env.Data)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Frames = append(r.Frames, Frame{WorkspaceID: workspaceID, Type: env.Type, Data: data})
	return 1
}

// Types returns the broadcast event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Frames))
	for _, f := range r.Frames {
		out = append(out, f.Type)
	}
	return out
}

// Count returns how many frames of eventType were broadcast.
func (r *Recorder) Count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.Frames {
		if f.Type == eventType {
			n++
		}
	}
	return n
}
