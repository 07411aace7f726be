package relay

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/smazurov/streamrelay/internal/events"
	"github.com/smazurov/streamrelay/internal/metrics"
)

// forwardWaitTimeout bounds the per-tick wait for a frame so a forward
// task never starves other scheduled work.
const forwardWaitTimeout = 30 * time.Millisecond

// ForwardTask hands decoded frames from one pull pipeline to one push
// pipeline, either by moving the handle (zero-copy) or through an
// explicit clone. It holds non-owning references to both pipelines.
type ForwardTask struct {
	id       string
	name     string
	pull     *Pipeline
	push     *Pipeline
	zeroCopy bool

	running atomic.Bool
	frames  atomic.Uint64

	logger *slog.Logger
	bus    *events.Bus
}

// NewForwardTask binds a pull and a push pipeline.
func NewForwardTask(id, name string, pull, push *Pipeline, zeroCopy bool, logger *slog.Logger, bus *events.Bus) *ForwardTask {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForwardTask{
		id:       id,
		name:     name,
		pull:     pull,
		push:     push,
		zeroCopy: zeroCopy,
		logger:   logger.With("task_id", id),
		bus:      bus,
	}
}

// ID returns the task id.
func (t *ForwardTask) ID() string { return t.id }

// Name returns the task name.
func (t *ForwardTask) Name() string { return t.name }

// Running reports whether the task accepts ticks.
func (t *ForwardTask) Running() bool { return t.running.Load() }

// Frames returns the number of frames forwarded so far.
func (t *ForwardTask) Frames() uint64 { return t.frames.Load() }

// ZeroCopy reports whether frames are moved instead of cloned.
func (t *ForwardTask) ZeroCopy() bool { return t.zeroCopy }

// Start marks the task runnable. The supervisor is responsible for
// starting the underlying pipelines and scheduling Execute ticks.
func (t *ForwardTask) Start() {
	if t.running.CompareAndSwap(false, true) {
		t.logger.Info("Forward task started", "zero_copy", t.zeroCopy)
	}
}

// Stop marks the task stopped; in-flight ticks finish naturally.
func (t *ForwardTask) Stop() {
	if t.running.CompareAndSwap(true, false) {
		t.logger.Info("Forward task stopped", "frames", t.frames.Load())
	}
}

// Execute moves at most one frame per scheduling tick. A tick where
// either side is not connected is a no-op, not an error.
func (t *ForwardTask) Execute() {
	if !t.running.Load() {
		return
	}
	if t.pull.State() != StateConnected || t.push.State() != StateConnected {
		return
	}

	frame := t.pull.PopFrame(forwardWaitTimeout)
	if frame == nil {
		return
	}

	if t.zeroCopy {
		if !t.push.PushFrame(frame) {
			return
		}
	} else {
		clone := frame.Clone()
		ok := t.push.PushFrame(clone)
		frame.Release()
		if !ok {
			return
		}
	}

	n := t.frames.Add(1)
	metrics.IncForwardedFrames(t.id)

	// Progress events are throttled to one per 100 frames.
	if t.bus != nil && n%100 == 0 {
		t.bus.Publish(events.ForwardProgressEvent{
			TaskID:    t.id,
			Frames:    n,
			ZeroCopy:  t.zeroCopy,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Status returns an observable snapshot of the task.
func (t *ForwardTask) Status() ForwardStatus {
	return ForwardStatus{
		ID:        t.id,
		Name:      t.name,
		Running:   t.running.Load(),
		Frames:    t.frames.Load(),
		ZeroCopy:  t.zeroCopy,
		PullID:    t.pull.ID(),
		PushID:    t.push.ID(),
		PullState: t.pull.State(),
		PushState: t.push.State(),
	}
}

// ForwardStatus is the per-task entry of a status report.
type ForwardStatus struct {
	ID        string      `json:"task_id"`
	Name      string      `json:"name,omitempty"`
	Running   bool        `json:"running"`
	Frames    uint64      `json:"frames"`
	ZeroCopy  bool        `json:"zero_copy"`
	PullID    string      `json:"pull_id"`
	PushID    string      `json:"push_id"`
	PullState StreamState `json:"pull_state"`
	PushState StreamState `json:"push_state"`
}
