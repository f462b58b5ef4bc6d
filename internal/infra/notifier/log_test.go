package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLogNotifier_Send(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	n := NewLogNotifier(logger)
	ctx := WithRequestID(context.Background(), "req-1")

	// Act
	err := n.Send(ctx, "42", "<b>hello</b>")

	// Assert
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not json: %v", err)
	}
	if entry["destination"] != "42" || entry["message"] != "<b>hello</b>" || entry["request_id"] != "req-1" {
		t.Errorf("unexpected log entry %v", entry)
	}
	if n.Name() != "log" {
		t.Errorf("Name() = %q, want log", n.Name())
	}
}

func TestNewLogNotifier_DefaultLogger(t *testing.T) {
	if NewLogNotifier(nil).logger == nil {
		t.Fatal("expected default logger")
	}
}
