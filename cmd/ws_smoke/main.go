package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// ws_smoke subscribes to a workspace, creates a task over REST and waits
// for the matching task.created frame.
func main() {
	token := os.Getenv("TOKEN")
	workspaceID := os.Getenv("WORKSPACE_ID")
	if token == "" || workspaceID == "" {
		log.Fatal("TOKEN and WORKSPACE_ID must be set (see cmd/create_test_user)")
	}
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	wsURL := fmt.Sprintf("ws://127.0.0.1:%s/ws/%s?token=%s", port, workspaceID, token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	type envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	readUntil := func(want string, timeout time.Duration) *envelope {
		deadline := time.Now().Add(timeout)
		for time.Now().Before(deadline) {
			_ = conn.SetReadDeadline(deadline)
			_, msg, err := conn.ReadMessage()
			if err != nil {
				log.Printf("read error: %v", err)
				return nil
			}
			var env envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			log.Printf("<- %s %s", env.Type, env.Data)
			if env.Type == want {
				return &env
			}
		}
		return nil
	}

	if readUntil("ready", 2*time.Second) == nil {
		log.Fatal("no ready frame")
	}

	body, _ := json.Marshal(map[string]any{"name": "smoke " + time.Now().Format(time.RFC3339)})
	url := fmt.Sprintf("http://127.0.0.1:%s/api/v1/workspaces/%s/tasks", port, workspaceID)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("create task: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		log.Fatalf("create task: status %d", res.StatusCode)
	}

	if readUntil("task.created", 3*time.Second) == nil {
		log.Fatal("no task.created frame")
	}
	log.Println("smoke ok")
}
