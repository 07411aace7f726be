package logging

import (
	"sync"
	"time"
)

// Entry is one captured log line.
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// EntryCallback receives every entry as it is written.
type EntryCallback func(entry Entry)

// RingBuffer keeps the most recent log entries for the history endpoint.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
}

// NewRingBuffer creates a buffer holding at most size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{entries: make([]Entry, size)}
}

// Write appends an entry, evicting the oldest one when full.
func (b *RingBuffer) Write(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.head] = entry
	b.head = (b.head + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
}

// Tail returns up to n entries in chronological order, newest last.
// n <= 0 returns everything.
func (b *RingBuffer) Tail(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.count == 0 {
		return nil
	}

	all := make([]Entry, 0, b.count)
	start := 0
	if b.count == len(b.entries) {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		all = append(all, b.entries[(start+i)%len(b.entries)])
	}

	if n > 0 && n < len(all) {
		all = all[len(all)-n:]
	}
	return all
}

// Count returns the number of stored entries.
func (b *RingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}
