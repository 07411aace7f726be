package taskpool

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("taskpool: pool closed")

// Priority orders queued work. Higher tiers run first; within a tier
// tasks run in submission order.
type Priority int

// Priority tiers.
const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// String returns the lowercase tier name.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// Task is the deferred result of a submitted unit of work.
// It is completed exactly once, when the work function returns or panics.
type Task struct {
	done chan struct{}
	err  error
}

// Done returns a channel closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Running reports whether the task has not yet completed.
// A task that is still queued also counts as running.
func (t *Task) Running() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the task completes and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Err returns the task error, or nil if the task has not completed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// item is a queued unit of work. seq preserves submission order among
// equal-priority items.
type item struct {
	priority Priority
	seq      uint64
	fn       func() error
	task     *Task
}

// taskHeap orders items by (priority desc, seq asc).
type taskHeap []*item

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*item)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Pool is a fixed-size set of workers executing submitted work ordered by
// priority tier. A failing or panicking task never takes down its worker.
type Pool struct {
	mu      sync.Mutex
	nonIdle *sync.Cond // queue non-empty or closed
	idle    *sync.Cond // queue empty and no active workers

	queue  taskHeap
	seq    uint64
	size   int
	active int
	closed bool
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New creates a pool with the given number of workers.
// A size below one defaults to runtime.NumCPU().
func New(size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		size:   size,
		logger: logger,
	}
	p.nonIdle = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)
	p.startWorkers(size)

	logger.Debug("Task pool started", "workers", size)
	return p
}

// startWorkers launches n worker goroutines.
func (p *Pool) startWorkers(n int) {
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for !p.closed && len(p.queue) == 0 {
			p.nonIdle.Wait()
		}
		if p.closed && len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}

		it := heap.Pop(&p.queue).(*item)
		p.active++
		p.mu.Unlock()

		err := p.run(it.fn)
		it.task.err = err
		close(it.task.done)
		if err != nil {
			p.logger.Error("Task failed", "error", err)
		}

		p.mu.Lock()
		p.active--
		if len(p.queue) == 0 && p.active == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

// run executes fn, converting a panic into an error so the worker survives.
func (p *Pool) run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return fn()
}

// Submit queues fn at the given priority and returns its Task handle.
func (p *Pool) Submit(priority Priority, fn func() error) (*Task, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	t := &Task{done: make(chan struct{})}
	p.seq++
	heap.Push(&p.queue, &item{
		priority: priority,
		seq:      p.seq,
		fn:       fn,
		task:     t,
	})
	p.mu.Unlock()

	p.nonIdle.Signal()
	return t, nil
}

// Size returns the current worker count.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// QueueDepth returns the number of queued, not yet executing tasks.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// ActiveCount returns the number of workers currently executing a task.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// WaitIdle blocks until the queue is empty and no worker is executing.
func (p *Pool) WaitIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) > 0 || p.active > 0 {
		p.idle.Wait()
	}
}

// Resize changes the worker count. Growing only adds workers. Shrinking
// drains in-flight work, stops all workers and restarts with the new
// count; callers must not assume task identity survives a shrink.
func (p *Pool) Resize(n int) {
	if n < 1 {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	current := p.size
	if n > current {
		p.size = n
		p.startWorkers(n - current)
		p.mu.Unlock()
		p.logger.Info("Task pool resized", "from", current, "to", n)
		return
	}
	if n == current {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.Shutdown(true)

	p.mu.Lock()
	p.closed = false
	p.size = n
	p.startWorkers(n)
	p.mu.Unlock()

	p.logger.Info("Task pool resized", "from", current, "to", n)
}

// Shutdown stops the pool. With drain set it first waits for queued and
// in-flight work to finish; otherwise queued work still runs but no new
// submissions are accepted. Workers are joined before returning.
func (p *Pool) Shutdown(drain bool) {
	if drain {
		p.WaitIdle()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.nonIdle.Broadcast()
	p.wg.Wait()

	p.logger.Debug("Task pool stopped")
}
