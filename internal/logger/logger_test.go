package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestInitWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", true)
	defer Init("info", false)

	Info("hidden")
	Warn("shown", "task_id", "t1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["msg"] != "shown" || rec["task_id"] != "t1" || rec["level"] != "WARN" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "info", false)
	defer Init("info", false)

	if WithContext(context.Background()) != Get() {
		t.Fatal("empty context should yield the default logger")
	}
	ctx := NewContext(context.Background(), With("request_id", "r-1"))
	WithContext(ctx).Info("hello")
	if !strings.Contains(buf.String(), "request_id=r-1") {
		t.Fatalf("request attrs missing: %q", buf.String())
	}
}
