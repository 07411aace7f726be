// Package store persists stream and forward task definitions to a TOML
// file so they survive restarts.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/streamrelay/internal/relay"
)

// File is the on-disk shape of the definitions file.
type File struct {
	Version  int                          `toml:"version" json:"version"`
	Streams  map[string]relay.StreamSpec  `toml:"streams" json:"streams"`
	Forwards map[string]relay.ForwardSpec `toml:"forwards,omitempty" json:"forwards,omitempty"`
}

// Store reads and writes stream definitions.
type Store interface {
	Load() error
	Save() error
	AddStream(spec relay.StreamSpec) error
	UpdateStream(id string, spec relay.StreamSpec) error
	RemoveStream(id string) error
	GetStream(id string) (relay.StreamSpec, bool)
	AllStreams() map[string]relay.StreamSpec
	AddForward(spec relay.ForwardSpec) error
	RemoveForward(id string) error
	AllForwards() map[string]relay.ForwardSpec
	Path() string
}

type tomlStore struct {
	mu   sync.Mutex
	path string
	file File
}

// NewTOML creates a store backed by the given path. An empty path uses
// streams.toml in the working directory.
func NewTOML(path string) Store {
	if path == "" {
		path = "streams.toml"
	}
	return &tomlStore{
		path: path,
		file: File{
			Version:  1,
			Streams:  make(map[string]relay.StreamSpec),
			Forwards: make(map[string]relay.ForwardSpec),
		},
	}
}

// Path returns the backing file path.
func (s *tomlStore) Path() string { return s.path }

// Load reads the definitions file. A missing file leaves the store empty.
func (s *tomlStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read stream definitions: %w", err)
	}
	var file File
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse stream definitions: %w", err)
	}

	if file.Streams == nil {
		file.Streams = make(map[string]relay.StreamSpec)
	}
	if file.Forwards == nil {
		file.Forwards = make(map[string]relay.ForwardSpec)
	}
	if file.Version == 0 {
		file.Version = 1
	}
	s.file = file
	return nil
}

// Save writes the definitions file, creating the directory if needed.
func (s *tomlStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *tomlStore) save() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := toml.Marshal(s.file)
	if err != nil {
		return fmt.Errorf("marshal stream definitions: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write stream definitions: %w", err)
	}
	return nil
}

func (s *tomlStore) AddStream(spec relay.StreamSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file.Streams[spec.ID] = spec
	return s.save()
}

func (s *tomlStore) UpdateStream(id string, spec relay.StreamSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	spec.ID = id
	s.file.Streams[id] = spec
	return s.save()
}

func (s *tomlStore) RemoveStream(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.file.Streams, id)
	return s.save()
}

func (s *tomlStore) GetStream(id string) (relay.StreamSpec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spec, ok := s.file.Streams[id]
	return spec, ok
}

func (s *tomlStore) AllStreams() map[string]relay.StreamSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]relay.StreamSpec, len(s.file.Streams))
	for id, spec := range s.file.Streams {
		out[id] = spec
	}
	return out
}

func (s *tomlStore) AddForward(spec relay.ForwardSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file.Forwards[spec.ID] = spec
	return s.save()
}

func (s *tomlStore) RemoveForward(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.file.Forwards, id)
	return s.save()
}

func (s *tomlStore) AllForwards() map[string]relay.ForwardSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]relay.ForwardSpec, len(s.file.Forwards))
	for id, spec := range s.file.Forwards {
		out[id] = spec
	}
	return out
}

// LoadFile reads a definitions file without keeping a store around.
// Used by the config watcher to hand fresh snapshots to reload handlers.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read stream definitions: %w", err)
	}
	var file File
	if err := toml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("parse stream definitions: %w", err)
	}
	if file.Streams == nil {
		file.Streams = make(map[string]relay.StreamSpec)
	}
	if file.Forwards == nil {
		file.Forwards = make(map[string]relay.ForwardSpec)
	}
	return file, nil
}
