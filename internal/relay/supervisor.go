package relay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/streamrelay/internal/events"
	"github.com/smazurov/streamrelay/internal/metrics"
	"github.com/smazurov/streamrelay/internal/taskpool"
)

const (
	// monitorInterval is how often the health monitor sweeps streams.
	monitorInterval = 5 * time.Second
	// staleThreshold is the inactivity window after which a connected
	// stream is considered stalled and gets restarted.
	staleThreshold = 30 * time.Second
	// cycleSleep paces a stream's run loop between successful cycles.
	cycleSleep = 200 * time.Microsecond
	// tickSleep paces a forward task's tick loop.
	tickSleep = time.Millisecond
)

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithSupervisorLogger sets the logger.
func WithSupervisorLogger(logger *slog.Logger) SupervisorOption {
	return func(s *Supervisor) { s.logger = logger }
}

// WithSupervisorBus sets the event bus passed down to pipelines and tasks.
func WithSupervisorBus(bus *events.Bus) SupervisorOption {
	return func(s *Supervisor) { s.bus = bus }
}

// WithMedia sets the media capability used to open sources and sinks.
func WithMedia(media Media) SupervisorOption {
	return func(s *Supervisor) { s.media = media }
}

// Supervisor owns the stream registry, the forward task registry and the
// shared worker pool, and runs the background health monitor.
type Supervisor struct {
	pool   *taskpool.Pool
	media  Media
	logger *slog.Logger
	bus    *events.Bus

	mu       sync.Mutex
	streams  map[string]*Pipeline
	tasks    map[string]*taskpool.Task
	starting map[string]bool
	forwards map[string]*ForwardTask
	fwTasks  map[string]*taskpool.Task
	nextID   int

	monitorStop chan struct{}
	monitorDone chan struct{}

	started time.Time
}

// NewSupervisor creates a supervisor backed by a worker pool of the given
// size. Size zero or below picks a size based on the host CPU count.
func NewSupervisor(poolSize int, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		streams:  make(map[string]*Pipeline),
		tasks:    make(map[string]*taskpool.Task),
		starting: make(map[string]bool),
		forwards: make(map[string]*ForwardTask),
		fwTasks:  make(map[string]*taskpool.Task),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.pool = taskpool.New(poolSize, s.logger)
	metrics.SetPoolStats(s.pool.QueueDepth(), s.pool.ActiveCount())
	return s
}

// Pool exposes the shared worker pool.
func (s *Supervisor) Pool() *taskpool.Pool { return s.pool }

func (s *Supervisor) allocID() string {
	s.nextID++
	return fmt.Sprintf("stream-%d", s.nextID)
}

// AddPullStream registers a pull stream. An empty spec ID gets an
// auto-assigned one. Returns the effective stream id.
func (s *Supervisor) AddPullStream(spec StreamSpec) (string, error) {
	spec.Role = RolePull
	return s.addStream(spec)
}

// AddPushStream registers a push stream.
func (s *Supervisor) AddPushStream(spec StreamSpec) (string, error) {
	spec.Role = RolePush
	return s.addStream(spec)
}

func (s *Supervisor) addStream(spec StreamSpec) (string, error) {
	spec.ApplyDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()
	if spec.ID == "" {
		spec.ID = s.allocID()
	}
	if err := spec.Validate(); err != nil {
		return "", err
	}
	if _, ok := s.streams[spec.ID]; ok {
		return "", ErrStreamExists
	}

	p := NewPipeline(spec, s.media,
		WithLogger(s.logger),
		WithBus(s.bus),
	)
	s.streams[spec.ID] = p
	s.logger.Info("Stream registered", "stream_id", spec.ID, "role", spec.Role)
	return spec.ID, nil
}

// StartStream starts the pipeline and schedules its run loop on the pool
// at high priority. Starting an already running stream is an error.
func (s *Supervisor) StartStream(id string) error {
	s.mu.Lock()
	p, ok := s.streams[id]
	if !ok {
		s.mu.Unlock()
		return ErrStreamNotFound
	}
	if t, ok := s.tasks[id]; ok && t.Running() {
		s.mu.Unlock()
		return ErrStreamRunning
	}
	// Claim the id so a concurrent StartStream cannot pass the check
	// before this one stores its task.
	if s.starting[id] {
		s.mu.Unlock()
		return ErrStreamRunning
	}
	s.starting[id] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.starting, id)
		s.mu.Unlock()
	}()

	// Open outside the registry lock: connecting can block.
	if err := p.Start(); err != nil {
		return err
	}

	task, err := s.pool.Submit(taskpool.PriorityHigh, func() error {
		return s.runLoop(p)
	})
	if err != nil {
		p.Stop()
		return err
	}

	s.mu.Lock()
	s.tasks[id] = task
	s.mu.Unlock()
	s.publishPoolStats()
	return nil
}

// runLoop drives one stream until it stops or its reconnect budget is
// spent. It runs on a pool worker.
func (s *Supervisor) runLoop(p *Pipeline) error {
	for {
		if err := p.Cycle(); err != nil {
			if p.State() == StateStopped {
				return nil
			}
			if rerr := p.HandleReconnect(); rerr != nil {
				if rerr == ErrStreamStopped {
					return nil
				}
				return rerr
			}
			continue
		}
		time.Sleep(cycleSleep)
	}
}

// StopStream stops the pipeline and waits for its run loop to drain.
func (s *Supervisor) StopStream(id string) error {
	s.mu.Lock()
	p, ok := s.streams[id]
	task := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return ErrStreamNotFound
	}

	p.Stop()
	if task != nil {
		task.Wait()
	}
	s.publishPoolStats()
	return nil
}

// RemoveStream stops and deregisters a stream and drops its metric series.
func (s *Supervisor) RemoveStream(id string) error {
	if err := s.StopStream(id); err != nil {
		return err
	}

	s.mu.Lock()
	// Refuse removal while a forward task still references the stream.
	for _, ft := range s.forwards {
		if ft.pull.ID() == id || ft.push.ID() == id {
			s.mu.Unlock()
			return fmt.Errorf("stream %q is used by forward task %q", id, ft.ID())
		}
	}
	delete(s.streams, id)
	delete(s.tasks, id)
	s.mu.Unlock()

	metrics.RemoveStream(id)
	s.logger.Info("Stream removed", "stream_id", id)
	return nil
}

// UpdateSpec replaces a stream's configuration. The stream must not be
// actively connected; the pipeline enforces which states allow it.
func (s *Supervisor) UpdateSpec(id string, spec StreamSpec) error {
	s.mu.Lock()
	p, ok := s.streams[id]
	s.mu.Unlock()
	if !ok {
		return ErrStreamNotFound
	}
	spec.ID = id
	return p.UpdateSpec(spec)
}

// StreamStatus returns the status snapshot for one stream.
func (s *Supervisor) StreamStatus(id string) (StreamStatus, error) {
	s.mu.Lock()
	p, ok := s.streams[id]
	s.mu.Unlock()
	if !ok {
		return StreamStatus{}, ErrStreamNotFound
	}
	return p.Status(), nil
}

// Streams returns status snapshots for all registered streams.
func (s *Supervisor) Streams() []StreamStatus {
	s.mu.Lock()
	out := make([]StreamStatus, 0, len(s.streams))
	for _, p := range s.streams {
		out = append(out, p.Status())
	}
	s.mu.Unlock()
	return out
}

// AddForwardTask registers a forward task between two existing streams.
// The pull side must be a pull stream and the push side a push stream.
func (s *Supervisor) AddForwardTask(spec ForwardSpec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if spec.ID == "" {
		s.nextID++
		spec.ID = fmt.Sprintf("task-%d", s.nextID)
	}
	if _, ok := s.forwards[spec.ID]; ok {
		return "", ErrStreamExists
	}
	pull, ok := s.streams[spec.PullID]
	if !ok || pull.Role() != RolePull {
		return "", fmt.Errorf("forward task %q: pull stream %q: %w", spec.ID, spec.PullID, ErrStreamNotFound)
	}
	push, ok := s.streams[spec.PushID]
	if !ok || push.Role() != RolePush {
		return "", fmt.Errorf("forward task %q: push stream %q: %w", spec.ID, spec.PushID, ErrStreamNotFound)
	}

	s.forwards[spec.ID] = NewForwardTask(spec.ID, spec.Name, pull, push, spec.ZeroCopy, s.logger, s.bus)
	s.logger.Info("Forward task registered", "task_id", spec.ID, "pull", spec.PullID, "push", spec.PushID)
	return spec.ID, nil
}

// StartTask starts a forward task's tick loop at normal priority.
func (s *Supervisor) StartTask(id string) error {
	s.mu.Lock()
	ft, ok := s.forwards[id]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	if t, ok := s.fwTasks[id]; ok && t.Running() {
		s.mu.Unlock()
		return ErrStreamRunning
	}
	s.mu.Unlock()

	ft.Start()
	task, err := s.pool.Submit(taskpool.PriorityNormal, func() error {
		for ft.Running() {
			ft.Execute()
			time.Sleep(tickSleep)
		}
		return nil
	})
	if err != nil {
		ft.Stop()
		return err
	}

	s.mu.Lock()
	s.fwTasks[id] = task
	s.mu.Unlock()
	s.publishPoolStats()
	return nil
}

// StopTask stops a forward task and waits for its tick loop to drain.
func (s *Supervisor) StopTask(id string) error {
	s.mu.Lock()
	ft, ok := s.forwards[id]
	task := s.fwTasks[id]
	s.mu.Unlock()
	if !ok {
		return ErrTaskNotFound
	}

	ft.Stop()
	if task != nil {
		task.Wait()
	}
	return nil
}

// RemoveTask stops and deregisters a forward task.
func (s *Supervisor) RemoveTask(id string) error {
	if err := s.StopTask(id); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.forwards, id)
	delete(s.fwTasks, id)
	s.mu.Unlock()

	metrics.RemoveForwardTask(id)
	s.logger.Info("Forward task removed", "task_id", id)
	return nil
}

// TaskStatus returns the status snapshot for one forward task.
func (s *Supervisor) TaskStatus(id string) (ForwardStatus, error) {
	s.mu.Lock()
	ft, ok := s.forwards[id]
	s.mu.Unlock()
	if !ok {
		return ForwardStatus{}, ErrTaskNotFound
	}
	return ft.Status(), nil
}

// Tasks returns status snapshots for all forward tasks.
func (s *Supervisor) Tasks() []ForwardStatus {
	s.mu.Lock()
	out := make([]ForwardStatus, 0, len(s.forwards))
	for _, ft := range s.forwards {
		out = append(out, ft.Status())
	}
	s.mu.Unlock()
	return out
}

// ResizePool changes the worker pool size at runtime.
func (s *Supervisor) ResizePool(n int) {
	old := s.pool.Size()
	s.pool.Resize(n)
	s.publishPoolStats()
	if s.bus != nil {
		s.bus.Publish(events.PoolResizedEvent{
			From:      old,
			To:        s.pool.Size(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (s *Supervisor) publishPoolStats() {
	metrics.SetPoolStats(s.pool.QueueDepth(), s.pool.ActiveCount())
}

// StartMonitoring launches the background health monitor. Calling it
// again while running is a no-op.
func (s *Supervisor) StartMonitoring() {
	s.monitor(monitorInterval, staleThreshold)
}

func (s *Supervisor) monitor(interval, threshold time.Duration) {
	s.mu.Lock()
	if s.monitorStop != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.monitorStop = stop
	s.monitorDone = done
	s.mu.Unlock()

	s.logger.Info("Health monitor started", "interval", interval, "threshold", threshold)
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.sweep(threshold)
			}
		}
	}()
}

// sweep restarts streams that are nominally connected but have not moved
// a frame within the threshold.
func (s *Supervisor) sweep(threshold time.Duration) {
	s.mu.Lock()
	stale := make([]*Pipeline, 0)
	for _, p := range s.streams {
		if p.State() == StateConnected && p.IsTimeout(threshold) {
			stale = append(stale, p)
		}
	}
	s.mu.Unlock()

	for _, p := range stale {
		s.restart(p)
	}
	s.publishPoolStats()
}

// restart tears a stalled stream down and schedules a fresh start on the
// pool, waiting out the old run loop first so only one loop ever drives
// a pipeline.
func (s *Supervisor) restart(p *Pipeline) {
	id := p.ID()
	s.logger.Warn("Stream stalled, restarting", "stream_id", id)

	s.mu.Lock()
	old := s.tasks[id]
	s.mu.Unlock()

	p.Stop()

	task, err := s.pool.Submit(taskpool.PriorityHigh, func() error {
		if old != nil {
			old.Wait()
		}
		if err := p.Start(); err != nil {
			return err
		}
		return s.runLoop(p)
	})
	if err != nil {
		s.logger.Error("Failed to schedule stream restart", "stream_id", id, "error", err)
		return
	}

	s.mu.Lock()
	s.tasks[id] = task
	s.mu.Unlock()
}

// StopMonitoring stops the health monitor and waits for it to exit.
func (s *Supervisor) StopMonitoring() {
	s.mu.Lock()
	stop := s.monitorStop
	done := s.monitorDone
	s.monitorStop = nil
	s.monitorDone = nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.logger.Info("Health monitor stopped")
}

// StopAll stops the monitor, every forward task and every stream, then
// waits for the pool to drain. The supervisor can be started again
// afterwards; Shutdown closes the pool for good.
func (s *Supervisor) StopAll() {
	s.StopMonitoring()

	s.mu.Lock()
	forwards := make([]*ForwardTask, 0, len(s.forwards))
	for _, ft := range s.forwards {
		forwards = append(forwards, ft)
	}
	streams := make([]*Pipeline, 0, len(s.streams))
	for _, p := range s.streams {
		streams = append(streams, p)
	}
	s.mu.Unlock()

	for _, ft := range forwards {
		ft.Stop()
	}
	for _, p := range streams {
		p.Stop()
	}

	s.pool.WaitIdle()
	s.publishPoolStats()
	s.logger.Info("All streams stopped")
}

// Shutdown stops everything and closes the worker pool.
func (s *Supervisor) Shutdown() {
	s.StopAll()
	s.pool.Shutdown(true)
}
