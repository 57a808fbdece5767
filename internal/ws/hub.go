package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zanphear/planview/internal/logger"

	"github.com/google/uuid"
)

var ErrHubClosed = errors.New("hub closed")

const (
	relayQueueSize    = 1024
	relayPublishLimit = 2 * time.Second
)

// Subscriber is one live realtime connection.
type Subscriber interface {
	// Deliver queues msg without blocking. It reports false when the
	// subscriber is closed or its buffer is full.
	Deliver(msg []byte) bool
	Close()
}

// Publisher forwards frames to other app instances.
type Publisher interface {
	Publish(ctx context.Context, workspaceID uuid.UUID, msg []byte) error
}

// Hub is the registry of subscribers per workspace.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[Subscriber]struct{}
	relay  Publisher
	outbox chan relayItem
	done   chan struct{}
	closed bool
}

type relayItem struct {
	workspaceID uuid.UUID
	msg         []byte
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[Subscriber]struct{})}
}

// SetRelay enables cross-instance fan-out. Frames are queued and published
// from a background goroutine, so a slow relay never holds up Broadcast.
// Call once, before serving traffic.
func (h *Hub) SetRelay(p Publisher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.relay != nil || p == nil {
		return
	}
	h.relay = p
	h.outbox = make(chan relayItem, relayQueueSize)
	h.done = make(chan struct{})
	go h.pumpRelay(p, h.outbox, h.done)
}

func (h *Hub) pumpRelay(p Publisher, outbox <-chan relayItem, done chan<- struct{}) {
	defer close(done)
	for item := range outbox {
		ctx, cancel := context.WithTimeout(context.Background(), relayPublishLimit)
		err := p.Publish(ctx, item.workspaceID, item.msg)
		cancel()
		if err != nil {
			logger.Warn("ws relay publish failed", "workspace_id", item.workspaceID, "error", err)
		}
	}
}

func (h *Hub) Register(workspaceID uuid.UUID, s Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	set, ok := h.subs[workspaceID]
	if !ok {
		set = make(map[Subscriber]struct{})
		h.subs[workspaceID] = set
	}
	if _, dup := set[s]; !dup {
		set[s] = struct{}{}
		Subscribers.Inc()
	}
	return nil
}

// Unregister removes s; it does not close it.
func (h *Hub) Unregister(workspaceID uuid.UUID, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(workspaceID, s)
}

func (h *Hub) removeLocked(workspaceID uuid.UUID, s Subscriber) bool {
	set, ok := h.subs[workspaceID]
	if !ok {
		return false
	}
	if _, ok := set[s]; !ok {
		return false
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, workspaceID)
	}
	Subscribers.Dec()
	return true
}

// Count returns the number of live subscribers of a workspace.
func (h *Hub) Count(workspaceID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[workspaceID])
}

// Broadcast delivers env to every local subscriber of the workspace and, when
// a relay is configured, to the other instances. It returns the number of
// local subscribers that accepted the frame.
func (h *Hub) Broadcast(workspaceID uuid.UUID, env Envelope) int {
	msg, err := encode(env)
	if err != nil {
		logger.Error("ws broadcast: marshal failed", "type", env.Type, "error", err)
		return 0
	}
	n := h.deliver(workspaceID, env.Type, msg)
	h.enqueueRelay(workspaceID, msg)
	return n
}

// enqueueRelay hands msg to the relay pump, dropping it when the queue is
// full.
func (h *Hub) enqueueRelay(workspaceID uuid.UUID, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.outbox == nil || h.closed {
		return
	}
	select {
	case h.outbox <- relayItem{workspaceID: workspaceID, msg: msg}:
	default:
		Dropped.WithLabelValues("relay_full").Inc()
		logger.Warn("ws relay queue full, frame dropped", "workspace_id", workspaceID)
	}
}

// BroadcastRaw delivers an already encoded frame to local subscribers only.
func (h *Hub) BroadcastRaw(workspaceID uuid.UUID, msg []byte) int {
	return h.deliver(workspaceID, "relay", msg)
}

func (h *Hub) deliver(workspaceID uuid.UUID, msgType string, msg []byte) int {
	h.mu.RLock()
	snapshot := make([]Subscriber, 0, len(h.subs[workspaceID]))
	for s := range h.subs[workspaceID] {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	delivered := 0
	var failed []Subscriber
	for _, s := range snapshot {
		if s.Deliver(msg) {
			delivered++
			continue
		}
		failed = append(failed, s)
	}
	Delivered.WithLabelValues(msgType).Add(float64(delivered))

	if len(failed) > 0 {
		h.mu.Lock()
		for _, s := range failed {
			if h.removeLocked(workspaceID, s) {
				Dropped.WithLabelValues("send_failed").Inc()
			}
		}
		h.mu.Unlock()
		for _, s := range failed {
			s.Close()
		}
		logger.Debug("ws broadcast dropped subscribers", "workspace_id", workspaceID, "dropped", len(failed))
	}
	return delivered
}

// Close closes every subscriber, stops the relay pump and rejects further
// registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.outbox != nil && !h.closed {
		close(h.outbox)
	}
	var all []Subscriber
	for ws, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
		delete(h.subs, ws)
	}
	h.closed = true
	h.mu.Unlock()

	Subscribers.Sub(float64(len(all)))
	for _, s := range all {
		s.Close()
	}
}
