package ws

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/zanphear/planview/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const relayPrefix = "planview:ws:"

type relayFrame struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// Relay fans frames out across app instances through redis pub/sub.
type Relay struct {
	rdb        *redis.Client
	hub        *Hub
	instanceID string
}

func NewRelay(rdb *redis.Client, hub *Hub) *Relay {
	return &Relay{rdb: rdb, hub: hub, instanceID: uuid.NewString()}
}

// Publish implements Publisher.
func (r *Relay) Publish(ctx context.Context, workspaceID uuid.UUID, msg []byte) error {
	b, err := json.Marshal(relayFrame{Origin: r.instanceID, Payload: msg})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, relayPrefix+workspaceID.String(), b).Err(); err != nil {
		return err
	}
	RelayMessages.WithLabelValues("out").Inc()
	return nil
}

// Run re-broadcasts frames published by other instances until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	sub := r.rdb.PSubscribe(ctx, relayPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			r.handle(m)
		}
	}
}

func (r *Relay) handle(m *redis.Message) {
	workspaceID, err := uuid.Parse(strings.TrimPrefix(m.Channel, relayPrefix))
	if err != nil {
		return
	}
	var f relayFrame
	if err := json.Unmarshal([]byte(m.Payload), &f); err != nil {
		logger.Warn("ws relay: bad frame", "channel", m.Channel, "error", err)
		return
	}
	if f.Origin == r.instanceID {
		return
	}
	RelayMessages.WithLabelValues("in").Inc()
	r.hub.BroadcastRaw(workspaceID, f.Payload)
}
