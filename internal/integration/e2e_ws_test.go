package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zanphear/planview/internal/domain"
	httpserver "github.com/zanphear/planview/internal/http"
	"github.com/zanphear/planview/internal/http/handlers"
	"github.com/zanphear/planview/internal/http/middleware"
	"github.com/zanphear/planview/internal/repository"
	"github.com/zanphear/planview/internal/service"
	"github.com/zanphear/planview/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// startReader runs a single reader goroutine per connection to avoid
// concurrent ReadMessage calls.
func startReader(conn *websocket.Conn) chan frame {
	out := make(chan frame, 32)
	go func() {
		defer close(out)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f frame
			if json.Unmarshal(msg, &f) == nil {
				out <- f
			}
		}
	}()
	return out
}

func waitFor(ch chan frame, want string, tmo time.Duration) (frame, bool) {
	deadline := time.After(tmo)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return frame{}, false
			}
			if f.Type == want {
				return f, true
			}
		case <-deadline:
			return frame{}, false
		}
	}
}

func TestE2E_TaskEventsReachWorkspaceSubscribers(t *testing.T) {
	db := connect(t)
	f := seed(t, db)
	other := seed(t, db)

	hub := ws.NewHub()
	defer hub.Close()
	taskRepo := repository.NewTaskRepository(db)
	activity := service.NewActivityService(repository.NewActivityRepository(db))
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), hub)
	tasks := service.NewTaskService(taskRepo, repository.NewUserRepository(db), activity, notifications, hub)
	tokens := service.NewTokens("test-secret", time.Hour)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	httpserver.RegisterRoutes(r, httpserver.Deps{
		Handler:         handlers.NewHandler(tasks, notifications, activity),
		Health:          handlers.NewHealthHandler("test", map[string]handlers.Check{"database": db.Ping}),
		Hub:             hub,
		Tokens:          tokens,
		Limiter:         middleware.NewRateLimiter(nil),
		RateLimit:       1000,
		RateLimitWindow: time.Minute,
	})
	ts := httptest.NewServer(r)
	defer ts.Close()

	dial := func(user, workspace uuid.UUID) chan frame {
		t.Helper()
		tok, _ := tokens.Generate(user, workspace)
		url := strings.Replace(ts.URL, "http", "ws", 1) + "/ws/" + workspace.String() + "?token=" + tok
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		t.Cleanup(func() { conn.Close() })
		ch := startReader(conn)
		if _, ok := waitFor(ch, ws.MsgReady, 2*time.Second); !ok {
			t.Fatalf("no ready frame")
		}
		return ch
	}
	ownerCh := dial(f.owner.ID, f.ws)
	aliceCh := dial(f.alice.ID, f.ws)
	otherCh := dial(other.owner.ID, other.ws)

	ownerTok, _ := tokens.Generate(f.owner.ID, f.ws)
	call := func(method, path string, body any) *http.Response {
		t.Helper()
		b, _ := json.Marshal(body)
		req, _ := http.NewRequest(method, ts.URL+"/api/v1/workspaces/"+f.ws.String()+path, bytes.NewReader(b))
		req.Header.Set("Authorization", "Bearer "+ownerTok)
		req.Header.Set("Content-Type", "application/json")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		return res
	}

	res := call(http.MethodPost, "/tasks", map[string]any{
		"name":            "Standup",
		"date_from":       "2026-10-17",
		"date_to":         "2026-10-17",
		"is_recurring":    true,
		"recurrence_rule": "FREQ=DAILY",
		"assignee_ids":    []uuid.UUID{f.alice.ID},
	})
	var created domain.Task
	_ = json.NewDecoder(res.Body).Decode(&created)
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", res.StatusCode)
	}

	for name, ch := range map[string]chan frame{"owner": ownerCh, "alice": aliceCh} {
		if _, ok := waitFor(ch, domain.EventTaskCreated, 3*time.Second); !ok {
			t.Fatalf("%s did not receive task.created", name)
		}
	}
	note, ok := waitFor(aliceCh, domain.EventNotificationNew, 3*time.Second)
	if !ok {
		t.Fatalf("alice did not receive notification.new")
	}
	var payload domain.NotificationNewPayload
	_ = json.Unmarshal(note.Data, &payload)
	if payload.UserID != f.alice.ID || payload.EventType != domain.NotificationTaskAssigned {
		t.Fatalf("unexpected notification payload %+v", payload)
	}

	res = call(http.MethodPut, "/tasks/"+created.ID.String(), map[string]any{"status": "done"})
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status %d", res.StatusCode)
	}
	if _, ok := waitFor(ownerCh, domain.EventTaskUpdated, 3*time.Second); !ok {
		t.Fatalf("owner did not receive task.updated")
	}
	next, ok := waitFor(ownerCh, domain.EventTaskCreated, 3*time.Second)
	if !ok {
		t.Fatalf("next occurrence was not broadcast")
	}
	var nextPayload domain.TaskEventPayload
	_ = json.Unmarshal(next.Data, &nextPayload)
	if nextPayload.Task == nil || nextPayload.Task.Status != "todo" || nextPayload.Task.ID == created.ID {
		t.Fatalf("unexpected next occurrence %+v", nextPayload.Task)
	}

	select {
	case f, ok := <-otherCh:
		if ok {
			t.Fatalf("other workspace received %s", f.Type)
		}
	case <-time.After(200 * time.Millisecond):
	}
}
