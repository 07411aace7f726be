// Package events provides the in-process event bus for stream lifecycle
// and metrics notifications. Subscribers are decoupled from the producing
// worker: delivery into channels is non-blocking, so a slow consumer can
// never stall a stream's worker thread.
package events

// Event type constants for kelindar/event.
const (
	TypeStreamStateChanged uint32 = iota + 1
	TypeStreamMetrics
	TypeForwardProgress
	TypeConfigReloaded
	TypePoolResized
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StreamStateChangedEvent is published on every pipeline state transition.
type StreamStateChangedEvent struct {
	StreamID  string `json:"stream_id" example:"stream-1" doc:"Stream identifier"`
	OldState  string `json:"old_state" example:"connecting" doc:"State before the transition"`
	NewState  string `json:"new_state" example:"connected" doc:"State after the transition"`
	Message   string `json:"message,omitempty" doc:"Human-readable detail, e.g. the error text"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for StreamStateChangedEvent.
func (e StreamStateChangedEvent) Type() uint32 { return TypeStreamStateChanged }

// StreamMetricsEvent carries a periodic per-stream measurement snapshot.
type StreamMetricsEvent struct {
	StreamID   string  `json:"stream_id" example:"stream-1" doc:"Stream identifier"`
	FPS        float64 `json:"fps" example:"25" doc:"Measured frames per second"`
	QueueLen   int     `json:"queue_len" doc:"Frames currently queued"`
	Dropped    uint64  `json:"dropped" doc:"Frames discarded by the full-queue policy"`
	Reconnects int     `json:"reconnects" doc:"Reconnect attempts since the last successful connect"`
	Timestamp  string  `json:"timestamp" doc:"Snapshot timestamp"`
}

// Type returns the event type identifier for StreamMetricsEvent.
func (e StreamMetricsEvent) Type() uint32 { return TypeStreamMetrics }

// ForwardProgressEvent reports forwarded-frame progress for a forward task.
type ForwardProgressEvent struct {
	TaskID    string `json:"task_id" example:"task-1" doc:"Forward task identifier"`
	Frames    uint64 `json:"frames" doc:"Total frames forwarded"`
	ZeroCopy  bool   `json:"zero_copy" doc:"Whether frames are moved instead of copied"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for ForwardProgressEvent.
func (e ForwardProgressEvent) Type() uint32 { return TypeForwardProgress }

// ConfigReloadedEvent is published after the stream definitions file is
// reloaded from disk.
type ConfigReloadedEvent struct {
	Streams   int    `json:"streams" doc:"Number of stream definitions loaded"`
	Forwards  int    `json:"forwards" doc:"Number of forward task definitions loaded"`
	Timestamp string `json:"timestamp" doc:"Reload timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }

// PoolResizedEvent is published when the worker pool changes size.
type PoolResizedEvent struct {
	From      int    `json:"from" doc:"Previous worker count"`
	To        int    `json:"to" doc:"New worker count"`
	Timestamp string `json:"timestamp" doc:"Resize timestamp"`
}

// Type returns the event type identifier for PoolResizedEvent.
func (e PoolResizedEvent) Type() uint32 { return TypePoolResized }

// LogEntryEvent carries one log line to the live log feed.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"relay" doc:"Originating module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
