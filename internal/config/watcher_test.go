package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatcherNotifiesOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.toml")
	if err := os.WriteFile(path, []byte("version = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	loads := make(chan string, 4)
	w := NewWatcher(path, func(p string) (string, error) {
		data, err := os.ReadFile(p)
		return string(data), err
	}, discardLogger(), WithDebounce[string](20*time.Millisecond))

	w.OnReload(func(s string) { loads <- s })
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("version = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-loads:
		if got != "version = 2\n" {
			t.Fatalf("handler got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler not notified")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.toml")
	if err := os.WriteFile(path, []byte("v = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var loads atomic.Int32
	w := NewWatcher(path, func(p string) (string, error) {
		loads.Add(1)
		return "", nil
	}, discardLogger(), WithDebounce[string](80*time.Millisecond))
	w.OnReload(func(string) {})
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	// A burst of writes inside the settle window loads once.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("v = 1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)
	if got := loads.Load(); got != 1 {
		t.Fatalf("loaded %d times, want 1", got)
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.toml")
	if err := os.WriteFile(path, []byte("v = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	errs := make(chan error, 1)
	w := NewWatcher(path, func(p string) (string, error) {
		return "", errors.New("bad config")
	}, discardLogger(),
		WithDebounce[string](20*time.Millisecond),
		WithErrorHandler[string](func(err error) { errs <- err }))
	notified := false
	w.OnReload(func(string) { notified = true })
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("v = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not invoked")
	}
	if notified {
		t.Fatal("handlers notified despite load failure")
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.toml")
	if err := os.WriteFile(path, []byte("v = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w := NewWatcher(path, func(p string) (string, error) { return "", nil }, discardLogger(),
		WithDebounce[string](20*time.Millisecond))
	unsub := w.OnReload(func(string) { calls.Add(1) })
	unsub()

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("v = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("unsubscribed handler called %d times", got)
	}
}
