package edrlog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func newTestLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	h := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: level})
	return NewWithHandler(h)
}

func TestLoggerModule(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, slog.LevelDebug)
	child := l.Module("evm")

	child.Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v (raw: %s)", err, buf.String())
	}
	if entry["module"] != "evm" {
		t.Fatalf("module = %v, want %q", entry["module"], "evm")
	}
	if entry["msg"] != "hello" {
		t.Fatalf("msg = %v, want %q", entry["msg"], "hello")
	}
}

func TestLoggerModuleChain(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, slog.LevelDebug)
	child := l.Module("mempool").With("sender", "0xabc")

	child.Info("added")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v (raw: %s)", err, buf.String())
	}
	if entry["module"] != "mempool" {
		t.Fatalf("module = %v, want %q", entry["module"], "mempool")
	}
	if entry["sender"] != "0xabc" {
		t.Fatalf("sender = %v, want %q", entry["sender"], "0xabc")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, slog.LevelWarn)

	l.Info("should be filtered")
	if buf.Len() != 0 {
		t.Fatalf("expected Info below Warn threshold to be filtered, got %q", buf.String())
	}

	l.Warn("should appear")
	if buf.Len() == 0 {
		t.Fatal("expected Warn at or above threshold to be written")
	}
}
