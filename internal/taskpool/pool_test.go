package taskpool

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func poolTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitTask waits for task completion, failing the test on timeout.
func waitTask(t *testing.T, task *Task, timeout time.Duration) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(timeout):
		t.Fatal("timeout waiting for task")
	}
}

func TestSubmitRunsTask(t *testing.T) {
	p := New(2, poolTestLogger())
	defer p.Shutdown(false)

	ran := make(chan struct{})
	task, err := p.Submit(PriorityNormal, func() error {
		close(ran)
		return nil
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	waitTask(t, task, time.Second)
	select {
	case <-ran:
	default:
		t.Error("task did not run")
	}
	if task.Err() != nil {
		t.Errorf("unexpected task error: %v", task.Err())
	}
}

func TestPriorityOrdering(t *testing.T) {
	p := New(1, poolTestLogger())
	defer p.Shutdown(false)

	// Block the single worker so submissions below queue up.
	release := make(chan struct{})
	gate, err := p.Submit(PriorityHigh, func() error {
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	var mu sync.Mutex
	var order []string
	record := func(name string) func() error {
		return func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	var last *Task
	for _, s := range []struct {
		name string
		pri  Priority
	}{
		{"low", PriorityLow},
		{"high1", PriorityHigh},
		{"normal", PriorityNormal},
		{"high2", PriorityHigh},
	} {
		last, err = p.Submit(s.pri, record(s.name))
		if err != nil {
			t.Fatalf("Submit %s failed: %v", s.name, err)
		}
	}

	close(release)
	waitTask(t, gate, time.Second)
	p.WaitIdle()
	_ = last

	want := []string{"high1", "high2", "normal", "low"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("expected %d executions, got %v", len(want), order)
	}
	for i, name := range want {
		if order[i] != name {
			t.Errorf("position %d: expected %s, got %s (full order %v)", i, name, order[i], order)
		}
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	p := New(1, poolTestLogger())
	p.Shutdown(false)

	_, err := p.Submit(PriorityNormal, func() error { return nil })
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	p := New(1, poolTestLogger())
	defer p.Shutdown(false)

	bad, err := p.Submit(PriorityNormal, func() error {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitTask(t, bad, time.Second)
	if bad.Err() == nil {
		t.Error("expected error from panicking task")
	}

	// The same worker must still serve subsequent tasks.
	ok, err := p.Submit(PriorityNormal, func() error { return nil })
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitTask(t, ok, time.Second)
	if ok.Err() != nil {
		t.Errorf("unexpected error: %v", ok.Err())
	}
}

func TestTaskError(t *testing.T) {
	p := New(1, poolTestLogger())
	defer p.Shutdown(false)

	wantErr := errors.New("read failed")
	task, err := p.Submit(PriorityNormal, func() error { return wantErr })
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if waitErr := task.Wait(); !errors.Is(waitErr, wantErr) {
		t.Errorf("expected %v, got %v", wantErr, waitErr)
	}
	if task.Running() {
		t.Error("completed task still reports running")
	}
}

func TestWaitIdle(t *testing.T) {
	p := New(2, poolTestLogger())
	defer p.Shutdown(false)

	var done int
	var mu sync.Mutex
	for i := 0; i < 8; i++ {
		_, err := p.Submit(PriorityLow, func() error {
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			done++
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	p.WaitIdle()

	mu.Lock()
	defer mu.Unlock()
	if done != 8 {
		t.Errorf("expected 8 completed tasks after WaitIdle, got %d", done)
	}
	if p.QueueDepth() != 0 {
		t.Errorf("expected empty queue, got depth %d", p.QueueDepth())
	}
}

func TestResizeGrow(t *testing.T) {
	p := New(1, poolTestLogger())
	defer p.Shutdown(false)

	p.Resize(4)
	if p.Size() != 4 {
		t.Errorf("expected size 4, got %d", p.Size())
	}

	// All four workers must be usable concurrently.
	var wg sync.WaitGroup
	block := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		_, err := p.Submit(PriorityNormal, func() error {
			wg.Done()
			<-block
			return nil
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(time.Second):
		t.Fatal("not all workers picked up tasks after grow")
	}
	close(block)
}

func TestResizeShrink(t *testing.T) {
	p := New(4, poolTestLogger())
	defer p.Shutdown(false)

	p.Resize(1)
	if p.Size() != 1 {
		t.Errorf("expected size 1, got %d", p.Size())
	}

	// Pool must still accept and run work after the restart.
	task, err := p.Submit(PriorityHigh, func() error { return nil })
	if err != nil {
		t.Fatalf("Submit after shrink failed: %v", err)
	}
	waitTask(t, task, time.Second)
}
