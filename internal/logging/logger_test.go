package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func resetState() {
	mu.Lock()
	loggers = make(map[string]*slog.Logger)
	levelVars = make(map[string]*slog.LevelVar)
	initialized = false
	history = nil
	onEntry = nil
	mu.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"relay": "debug",
			"api":   "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"relay", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			h := GetLogger(tt.module).Handler()
			if got := h.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := h.Enabled(context.Background(), slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := h.Enabled(context.Background(), slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	resetState()
	logger := GetLogger("early")

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"early": "error"},
	})

	// The pre-existing logger must pick up the override.
	h := GetLogger("early").Handler()
	if h.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn still enabled after error override")
	}
	_ = logger
}

func TestHistoryCapturesEntries(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info", Format: "text"})

	logger := GetLogger("relay")
	logger.Info("Stream started", "stream_id", "cam-1", "fps", 25)
	logger.Debug("Invisible at info level")

	entries := History().Tail(0)
	if len(entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Module != "relay" || e.Message != "Stream started" || e.Level != "info" {
		t.Fatalf("entry = %+v", e)
	}
	if e.Attributes["stream_id"] != "cam-1" {
		t.Fatalf("attributes = %v", e.Attributes)
	}
}

func TestEntryCallback(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info", Format: "text"})

	got := make(chan Entry, 1)
	SetEntryCallback(func(e Entry) { got <- e })
	GetLogger("relay").Warn("Queue full", "dropped", 3)

	select {
	case e := <-got:
		if e.Level != "warn" || e.Message != "Queue full" {
			t.Fatalf("entry = %+v", e)
		}
	default:
		t.Fatal("callback not invoked")
	}
}

func TestRingBufferWraps(t *testing.T) {
	b := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		b.Write(Entry{Message: string(rune('a' + i)), Timestamp: time.Now()})
	}
	if b.Count() != 3 {
		t.Fatalf("count = %d, want 3", b.Count())
	}
	entries := b.Tail(0)
	if len(entries) != 3 {
		t.Fatalf("tail length = %d, want 3", len(entries))
	}
	// Oldest two entries were overwritten.
	want := []string{"c", "d", "e"}
	for i, e := range entries {
		if e.Message != want[i] {
			t.Fatalf("entry %d = %q, want %q", i, e.Message, want[i])
		}
	}
	if got := b.Tail(2); len(got) != 2 || got[0].Message != "d" {
		t.Fatalf("tail(2) = %v", got)
	}
}
