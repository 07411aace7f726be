package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/streamrelay/internal/events"
	"github.com/smazurov/streamrelay/internal/metrics"
)

// forwardPopTimeout bounds how long a forward-fed push cycle waits for a
// frame before yielding its worker.
const forwardPopTimeout = 10 * time.Millisecond

// StatusCallback is invoked synchronously on every state transition, from
// whichever worker is processing the stream. It must not block.
type StatusCallback func(id string, state StreamState, message string)

// FrameCallback is invoked synchronously for every decoded frame, before
// the frame is queued. The callback must not retain the frame.
type FrameCallback func(id string, frame *Frame)

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithBus sets the event bus state transitions and metrics are published to.
func WithBus(bus *events.Bus) PipelineOption {
	return func(p *Pipeline) { p.bus = bus }
}

// WithStatusCallback registers a synchronous status callback.
func WithStatusCallback(cb StatusCallback) PipelineOption {
	return func(p *Pipeline) { p.onStatus = cb }
}

// WithFrameCallback registers a synchronous frame callback.
func WithFrameCallback(cb FrameCallback) PipelineOption {
	return func(p *Pipeline) { p.onFrame = cb }
}

// Pipeline drives one stream: open input/output, run per-cycle work, track
// the state machine and reconnect on failure. One pipeline owns exactly
// one frame channel and its media collaborators.
//
// State is stored atomically and readable without the lock; compound
// fields (spec, error text, collaborators, fps window) are guarded by mu.
type Pipeline struct {
	id    string
	media Media

	state      atomic.Value // StreamState
	running    atomic.Bool
	lastActive atomic.Int64 // unix nanos of last successful activity
	fpsBits    atomic.Uint64

	mu         sync.Mutex
	spec       StreamSpec
	frames     *FrameChannel
	source     Source
	sink       Sink
	decoder    Decoder
	encoder    Encoder
	errMsg     string
	reconnects int
	ptsOffset  int64
	ptsKnown   bool
	frameCount int
	fpsSince   time.Time
	stop       chan struct{}
	stopped    bool

	logger   *slog.Logger
	bus      *events.Bus
	onStatus StatusCallback
	onFrame  FrameCallback
}

// NewPipeline creates a pipeline for the given spec. The spec's defaults
// are applied; the pipeline starts in the init state.
func NewPipeline(spec StreamSpec, media Media, opts ...PipelineOption) *Pipeline {
	spec.ApplyDefaults()

	p := &Pipeline{
		id:    spec.ID,
		media: media,
		spec:  spec,
		stop:  make(chan struct{}),
	}
	p.state.Store(StateInit)
	p.frames = NewFrameChannel(spec.MaxQueueSize, spec.LowLatency)
	p.lastActive.Store(time.Now().UnixNano())

	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("stream_id", p.id)

	return p
}

// ID returns the stream id.
func (p *Pipeline) ID() string { return p.id }

// Role returns the pipeline role.
func (p *Pipeline) Role() Role {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spec.Role
}

// Spec returns a copy of the current spec.
func (p *Pipeline) Spec() StreamSpec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spec
}

// State returns the current lifecycle state.
func (p *Pipeline) State() StreamState {
	return p.state.Load().(StreamState)
}

// FPS returns the most recent frames-per-second estimate.
func (p *Pipeline) FPS() float64 {
	return math.Float64frombits(p.fpsBits.Load())
}

// LastActive returns the time of the last successful read/write.
func (p *Pipeline) LastActive() time.Time {
	return time.Unix(0, p.lastActive.Load())
}

// IsTimeout reports whether the pipeline has shown no activity for longer
// than threshold. Used by the supervisor's monitor to catch connections
// that are open but silent.
func (p *Pipeline) IsTimeout(threshold time.Duration) bool {
	return time.Since(p.LastActive()) > threshold
}

// UpdateSpec replaces the stream configuration. Only legal while the
// stream is not actively running.
func (p *Pipeline) UpdateSpec(spec StreamSpec) error {
	switch p.State() {
	case StateInit, StateDisconnected, StateError, StateStopped:
	default:
		return ErrStreamRunning
	}

	spec.ID = p.id
	spec.ApplyDefaults()
	if err := spec.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	p.spec = spec
	p.mu.Unlock()

	p.logger.Info("Stream spec updated")
	return nil
}

// Start opens the role-appropriate input and output and moves the
// pipeline to connected. Calling Start on an already running pipeline is
// a no-op returning success.
func (p *Pipeline) Start() error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}

	p.mu.Lock()
	p.stop = make(chan struct{})
	p.stopped = false
	p.reconnects = 0
	p.frames = NewFrameChannel(p.spec.MaxQueueSize, p.spec.LowLatency)
	p.mu.Unlock()

	if err := p.open(); err != nil {
		p.running.Store(false)
		return err
	}
	return nil
}

// open creates the collaborators and opens input/output for the current
// role. On success the pipeline is connected and the reconnect counter
// resets.
func (p *Pipeline) open() error {
	if p.State() != StateReconnecting {
		p.setState(StateConnecting, "")
	}

	p.mu.Lock()
	spec := p.spec
	p.mu.Unlock()

	var (
		source  Source
		decoder Decoder
		sink    Sink
		encoder Encoder
	)

	fail := func(err error) error {
		if source != nil {
			source.Close()
		}
		if sink != nil {
			sink.Close()
		}
		if decoder != nil {
			decoder.Cleanup()
		}
		if encoder != nil {
			encoder.Cleanup()
		}
		if p.State() == StateReconnecting {
			// Reopen failure stays in reconnecting; record the cause only.
			p.mu.Lock()
			p.errMsg = err.Error()
			p.mu.Unlock()
			p.logger.Warn("Reopen failed", "error", err)
		} else {
			p.setState(StateError, err.Error())
		}
		return err
	}

	if spec.InputURL != "" {
		if p.media.OpenSource == nil || p.media.NewDecoder == nil {
			return fail(fmt.Errorf("stream %s: no source media configured", p.id))
		}
		var err error
		if source, err = p.media.OpenSource(spec); err != nil {
			return fail(fmt.Errorf("open input: %w", err))
		}
		if err = source.Open(spec); err != nil {
			return fail(fmt.Errorf("open input: %w", err))
		}
		if decoder, err = p.media.NewDecoder(spec); err != nil {
			return fail(fmt.Errorf("create decoder: %w", err))
		}
		if err = decoder.Init(spec.VideoParams(), spec.HWAccel); err != nil {
			return fail(fmt.Errorf("init decoder: %w", err))
		}
	}

	if spec.Role == RolePush {
		if p.media.OpenSink == nil || p.media.NewEncoder == nil {
			return fail(fmt.Errorf("stream %s: no sink media configured", p.id))
		}
		var err error
		if encoder, err = p.media.NewEncoder(spec); err != nil {
			return fail(fmt.Errorf("create encoder: %w", err))
		}
		if err = encoder.Init(spec.VideoParams(), spec.HWAccel); err != nil {
			return fail(fmt.Errorf("init encoder: %w", err))
		}
		if sink, err = p.media.OpenSink(spec); err != nil {
			return fail(fmt.Errorf("open output: %w", err))
		}
		if err = sink.Open(spec); err != nil {
			return fail(fmt.Errorf("open output: %w", err))
		}
	}

	p.mu.Lock()
	p.source = source
	p.decoder = decoder
	p.sink = sink
	p.encoder = encoder
	p.reconnects = 0
	p.ptsKnown = false
	p.frameCount = 0
	p.fpsSince = time.Time{}
	p.mu.Unlock()

	p.touch()
	p.setState(StateConnected, "")
	return nil
}

// Stop terminates the pipeline, wakes any blocked frame consumer and
// releases all resources. Idempotent; the state afterwards is stopped.
func (p *Pipeline) Stop() {
	wasRunning := p.running.Swap(false)
	if !wasRunning && p.State() == StateStopped {
		return
	}

	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stop)
	}
	frames := p.frames
	p.mu.Unlock()

	frames.Close()
	p.flushEncoder()
	p.teardown()
	frames.Clear()

	p.setState(StateStopped, "")
}

// ProcessPull performs one pull cycle: one demux read, decode, enqueue.
// A nil return means keep cycling; an error means the cycle failed and
// the caller should drive reconnection.
func (p *Pipeline) ProcessPull() error {
	if !p.running.Load() || p.State() != StateConnected {
		return ErrNotConnected
	}

	p.mu.Lock()
	source := p.source
	decoder := p.decoder
	p.mu.Unlock()
	if source == nil || decoder == nil {
		return ErrNotConnected
	}

	pkt, err := source.Read()
	if err != nil {
		if errors.Is(err, ErrEndOfStream) {
			p.setState(StateDisconnected, "stream ended")
			return err
		}
		p.setState(StateDisconnected, fmt.Sprintf("read failed: %v", err))
		return err
	}
	p.touch()

	frame, err := decoder.Decode(pkt)
	if err != nil {
		p.setState(StateDisconnected, fmt.Sprintf("decode failed: %v", err))
		return err
	}
	if frame == nil {
		return nil
	}

	p.frameTick()
	if p.onFrame != nil {
		p.onFrame(p.id, frame)
	}
	p.PushFrame(frame)
	return nil
}

// ProcessPush performs one push cycle. With an input URL configured the
// cycle is read→decode→re-base→encode→write; otherwise the frame comes
// from the pipeline's channel, fed by a forward task.
func (p *Pipeline) ProcessPush() error {
	if !p.running.Load() || p.State() != StateConnected {
		return ErrNotConnected
	}

	p.mu.Lock()
	source := p.source
	decoder := p.decoder
	frames := p.frames
	p.mu.Unlock()

	var frame *Frame
	if source != nil {
		pkt, err := source.Read()
		if err != nil {
			if errors.Is(err, ErrEndOfStream) {
				p.setState(StateDisconnected, "stream ended")
				return err
			}
			p.setState(StateDisconnected, fmt.Sprintf("read failed: %v", err))
			return err
		}
		p.touch()

		if frame, err = decoder.Decode(pkt); err != nil {
			p.setState(StateDisconnected, fmt.Sprintf("decode failed: %v", err))
			return err
		}
		if frame == nil {
			return nil
		}
	} else {
		if frame = frames.Pop(forwardPopTimeout); frame == nil {
			return nil
		}
	}

	return p.encodeAndWrite(frame)
}

// encodeAndWrite re-bases the frame timestamp, encodes and writes it.
// The frame is always released before returning.
func (p *Pipeline) encodeAndWrite(frame *Frame) error {
	defer frame.Release()

	p.mu.Lock()
	if !p.ptsKnown {
		p.ptsOffset = frame.PTS
		p.ptsKnown = true
	}
	frame.PTS -= p.ptsOffset
	encoder := p.encoder
	sink := p.sink
	p.mu.Unlock()

	if encoder == nil || sink == nil {
		return ErrNotConnected
	}

	pkt, err := encoder.Encode(frame)
	if err != nil {
		p.setState(StateDisconnected, fmt.Sprintf("encode failed: %v", err))
		return err
	}
	if pkt == nil {
		return nil
	}

	pkt.StreamIndex = 0
	if err := sink.Write(pkt); err != nil {
		p.setState(StateDisconnected, fmt.Sprintf("write failed: %v", err))
		return err
	}

	p.touch()
	p.frameTick()
	return nil
}

// HandleReconnect tears down and reopens the stream until it connects,
// the reconnect budget is spent, or the pipeline is stopped. A nil return
// means the pipeline is connected again.
func (p *Pipeline) HandleReconnect() error {
	for {
		if !p.running.Load() {
			return ErrStreamStopped
		}

		p.mu.Lock()
		if p.spec.DisableReconnect {
			p.mu.Unlock()
			p.running.Store(false)
			p.setState(StateStopped, "reconnect disabled")
			return ErrReconnectExhausted
		}
		p.reconnects++
		attempt := p.reconnects
		budget := p.spec.MaxReconnects
		delay := p.spec.ReconnectDelay()
		stop := p.stop
		p.mu.Unlock()

		if attempt > budget {
			p.running.Store(false)
			p.setState(StateStopped, "max reconnect attempts reached")
			return ErrReconnectExhausted
		}

		metrics.IncStreamReconnects(p.id)
		p.setState(StateReconnecting, fmt.Sprintf("attempt %d/%d", attempt, budget))
		p.teardown()

		select {
		case <-stop:
			return ErrStreamStopped
		case <-time.After(delay):
		}

		if err := p.open(); err == nil {
			return nil
		}
		// open() recorded the failure; spend another attempt.
	}
}

// PushFrame transfers a frame into the pipeline's channel, applying the
// backpressure policy. Used by the pull cycle and by forward tasks.
func (p *Pipeline) PushFrame(frame *Frame) bool {
	p.mu.Lock()
	frames := p.frames
	p.mu.Unlock()
	return frames.Push(frame)
}

// PopFrame removes the oldest queued frame, waiting up to timeout.
func (p *Pipeline) PopFrame(timeout time.Duration) *Frame {
	p.mu.Lock()
	frames := p.frames
	p.mu.Unlock()
	return frames.Pop(timeout)
}

// QueueLen returns the current frame channel depth.
func (p *Pipeline) QueueLen() int {
	p.mu.Lock()
	frames := p.frames
	p.mu.Unlock()
	return frames.Len()
}

// Status returns an observable snapshot of the pipeline.
func (p *Pipeline) Status() StreamStatus {
	p.mu.Lock()
	spec := p.spec
	errMsg := p.errMsg
	reconnects := p.reconnects
	frames := p.frames
	p.mu.Unlock()

	return StreamStatus{
		ID:           p.id,
		Name:         spec.Name,
		Role:         spec.Role,
		State:        p.State(),
		FPS:          p.FPS(),
		LastActiveMs: time.Since(p.LastActive()).Milliseconds(),
		Reconnects:   reconnects,
		QueueLen:     frames.Len(),
		Dropped:      frames.Dropped(),
		Error:        errMsg,
	}
}

// setState performs an observable state transition: log, error text,
// event publication, status callback.
func (p *Pipeline) setState(state StreamState, message string) {
	old := p.State()
	if old == state && message == "" {
		return
	}
	p.state.Store(state)

	p.mu.Lock()
	switch state {
	case StateError, StateDisconnected, StateStopped:
		if message != "" {
			p.errMsg = message
		}
	case StateConnected:
		p.errMsg = ""
	}
	p.mu.Unlock()

	p.logger.Info("Stream state changed",
		"from", string(old), "to", string(state), "message", message)

	if p.bus != nil {
		p.bus.Publish(events.StreamStateChangedEvent{
			StreamID:  p.id,
			OldState:  string(old),
			NewState:  string(state),
			Message:   message,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
	if p.onStatus != nil {
		p.onStatus(p.id, state, message)
	}
}

// touch stamps the last-activity time.
func (p *Pipeline) touch() {
	p.lastActive.Store(time.Now().UnixNano())
}

// frameTick feeds the FPS estimator: count frames, and once a full second
// has elapsed recompute the rate and reset the window.
func (p *Pipeline) frameTick() {
	now := time.Now()

	p.mu.Lock()
	p.frameCount++
	if p.fpsSince.IsZero() {
		p.fpsSince = now
		p.mu.Unlock()
		return
	}
	elapsed := now.Sub(p.fpsSince)
	if elapsed < time.Second {
		p.mu.Unlock()
		return
	}
	fps := float64(p.frameCount) / elapsed.Seconds()
	p.frameCount = 0
	p.fpsSince = now
	queueLen := p.frames.Len()
	dropped := p.frames.Dropped()
	reconnects := p.reconnects
	p.mu.Unlock()

	p.fpsBits.Store(math.Float64bits(fps))
	metrics.SetStreamFPS(p.id, fps)
	metrics.SetStreamQueueLen(p.id, queueLen)
	metrics.SetStreamDropped(p.id, dropped)

	if p.bus != nil {
		p.bus.Publish(events.StreamMetricsEvent{
			StreamID:   p.id,
			FPS:        fps,
			QueueLen:   queueLen,
			Dropped:    dropped,
			Reconnects: reconnects,
			Timestamp:  now.UTC().Format(time.RFC3339),
		})
	}
}

// flushEncoder drains any packets buffered in the encoder to the sink.
// Best effort during shutdown; errors are logged, not propagated.
func (p *Pipeline) flushEncoder() {
	p.mu.Lock()
	encoder := p.encoder
	sink := p.sink
	p.mu.Unlock()
	if encoder == nil || sink == nil {
		return
	}

	for {
		pkt, err := encoder.Flush()
		if err != nil || pkt == nil {
			return
		}
		if err := sink.Write(pkt); err != nil {
			p.logger.Debug("Flush write failed", "error", err)
			return
		}
	}
}

// teardown closes collaborators. The frame channel is left to the caller.
func (p *Pipeline) teardown() {
	p.mu.Lock()
	source := p.source
	sink := p.sink
	decoder := p.decoder
	encoder := p.encoder
	p.source = nil
	p.sink = nil
	p.decoder = nil
	p.encoder = nil
	p.mu.Unlock()

	if source != nil {
		source.Close()
	}
	if decoder != nil {
		decoder.Cleanup()
	}
	if encoder != nil {
		encoder.Cleanup()
	}
	if sink != nil {
		sink.Close()
	}
}

// Cycle runs the role-appropriate per-cycle function.
func (p *Pipeline) Cycle() error {
	if p.Role() == RolePull {
		return p.ProcessPull()
	}
	return p.ProcessPush()
}

// StreamStatus is the per-stream entry of a status report.
type StreamStatus struct {
	ID           string      `json:"stream_id"`
	Name         string      `json:"name,omitempty"`
	Role         Role        `json:"role"`
	State        StreamState `json:"state"`
	FPS          float64     `json:"fps"`
	LastActiveMs int64       `json:"last_active_ms"`
	Reconnects   int         `json:"reconnects"`
	QueueLen     int         `json:"queue_len"`
	Dropped      uint64      `json:"dropped_frames"`
	Error        string      `json:"error,omitempty"`
}
