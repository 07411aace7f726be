package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smazurov/streamrelay/internal/relay"
)

func tempStore(t *testing.T) Store {
	t.Helper()
	return NewTOML(filepath.Join(t.TempDir(), "streams.toml"))
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.toml")
	s := NewTOML(path)

	spec := relay.StreamSpec{
		ID:        "cam-1",
		Role:      relay.RolePull,
		InputURL:  "rtsp://camera.local/main",
		AutoStart: true,
	}
	if err := s.AddStream(spec); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddForward(relay.ForwardSpec{ID: "fwd-1", PullID: "cam-1", PushID: "out-1", ZeroCopy: true}); err != nil {
		t.Fatalf("add forward: %v", err)
	}

	reopened := NewTOML(path)
	if err := reopened.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := reopened.GetStream("cam-1")
	if !ok {
		t.Fatal("stream not persisted")
	}
	if got.InputURL != spec.InputURL || !got.AutoStart {
		t.Fatalf("stream = %+v", got)
	}
	forwards := reopened.AllForwards()
	if len(forwards) != 1 || !forwards["fwd-1"].ZeroCopy {
		t.Fatalf("forwards = %v", forwards)
	}
}

func TestStoreMissingFile(t *testing.T) {
	s := tempStore(t)
	if err := s.Load(); err != nil {
		t.Fatalf("load of missing file: %v", err)
	}
	if got := len(s.AllStreams()); got != 0 {
		t.Fatalf("streams = %d, want 0", got)
	}
}

func TestStoreUpdateAndRemove(t *testing.T) {
	s := tempStore(t)
	if err := s.AddStream(relay.StreamSpec{ID: "cam-1", Role: relay.RolePull, InputURL: "rtsp://a"}); err != nil {
		t.Fatal(err)
	}

	updated := relay.StreamSpec{Role: relay.RolePull, InputURL: "rtsp://b", LowLatency: true}
	if err := s.UpdateStream("cam-1", updated); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetStream("cam-1")
	if got.ID != "cam-1" || got.InputURL != "rtsp://b" || !got.LowLatency {
		t.Fatalf("stream = %+v", got)
	}

	if err := s.RemoveStream("cam-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.GetStream("cam-1"); ok {
		t.Fatal("stream still present after remove")
	}
}

func TestStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "streams.toml")
	s := NewTOML(path)
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not written: %v", err)
	}
}

func TestLoadFileSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.toml")
	s := NewTOML(path)
	if err := s.AddStream(relay.StreamSpec{ID: "cam-1", Role: relay.RolePull, InputURL: "rtsp://a"}); err != nil {
		t.Fatal(err)
	}

	file, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if len(file.Streams) != 1 {
		t.Fatalf("streams = %v", file.Streams)
	}
	if file.Forwards == nil {
		t.Fatal("forwards map not initialized")
	}
}
