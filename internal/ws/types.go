package ws

import "encoding/json"

const (
	// server - client
	MsgReady = "ready"
	MsgError = "error"
)

// Envelope is the frame written to every subscriber.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type ReadyPayload struct {
	WorkspaceID string `json:"workspace_id"`
	UserID      string `json:"user_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}
