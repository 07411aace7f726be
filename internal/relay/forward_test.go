package relay

import (
	"testing"
	"time"
)

func forwardPair(t *testing.T) (*Pipeline, *Pipeline, *fakeSink) {
	t.Helper()
	src := &fakeSource{}
	pull := NewPipeline(pullSpec("cam-1"), pullMedia(func(StreamSpec) (Source, error) { return src, nil }),
		WithLogger(testLogger()))
	sink := &fakeSink{}
	push := NewPipeline(pushSpec("out-1"), pushMedia(func(StreamSpec) (Sink, error) { return sink, nil }),
		WithLogger(testLogger()))

	if err := pull.Start(); err != nil {
		t.Fatalf("start pull: %v", err)
	}
	if err := push.Start(); err != nil {
		t.Fatalf("start push: %v", err)
	}
	t.Cleanup(func() {
		pull.Stop()
		push.Stop()
	})
	return pull, push, sink
}

func TestForwardZeroCopyMovesHandle(t *testing.T) {
	pull, push, _ := forwardPair(t)
	task := NewForwardTask("task-1", "", pull, push, true, testLogger(), nil)
	task.Start()

	frame := NewFrame([]byte{1, 2, 3}, 100)
	pull.PushFrame(frame)
	task.Execute()

	if got := task.Frames(); got != 1 {
		t.Fatalf("frames = %d, want 1", got)
	}
	got := push.PopFrame(time.Second)
	if got != frame {
		t.Fatal("zero-copy forward did not move the original handle")
	}
	if got.Released() {
		t.Fatal("moved frame was released in transit")
	}
	got.Release()
}

func TestForwardCloneReleasesOriginal(t *testing.T) {
	pull, push, _ := forwardPair(t)
	task := NewForwardTask("task-1", "", pull, push, false, testLogger(), nil)
	task.Start()

	frame := NewFrame([]byte{1, 2, 3}, 100)
	pull.PushFrame(frame)
	task.Execute()

	if !frame.Released() {
		t.Fatal("original frame not released after clone")
	}
	got := push.PopFrame(time.Second)
	if got == nil || got == frame {
		t.Fatal("push side did not receive an independent copy")
	}
	if len(got.Data) != 3 || got.PTS != 100 {
		t.Fatalf("copy lost contents: %v", got)
	}
	got.Release()
}

func TestForwardSkipsWhenNotConnected(t *testing.T) {
	pull, push, _ := forwardPair(t)
	task := NewForwardTask("task-1", "", pull, push, true, testLogger(), nil)
	task.Start()

	pull.PushFrame(NewFrame([]byte{1}, 0))
	push.Stop()
	task.Execute()

	if got := task.Frames(); got != 0 {
		t.Fatalf("frames = %d, want 0 while push side is stopped", got)
	}
	// The pending frame stays queued on the pull side.
	if got := pull.QueueLen(); got != 1 {
		t.Fatalf("pull queue len = %d, want 1", got)
	}
}

func TestForwardStoppedTaskIsInert(t *testing.T) {
	pull, push, _ := forwardPair(t)
	task := NewForwardTask("task-1", "", pull, push, true, testLogger(), nil)

	pull.PushFrame(NewFrame([]byte{1}, 0))
	task.Execute()
	if got := task.Frames(); got != 0 {
		t.Fatalf("frames = %d before Start, want 0", got)
	}

	task.Start()
	task.Execute()
	task.Stop()

	pull.PushFrame(NewFrame([]byte{2}, 1))
	task.Execute()
	if got := task.Frames(); got != 1 {
		t.Fatalf("frames = %d after Stop, want 1", got)
	}

	st := task.Status()
	if st.Running || st.PullID != "cam-1" || st.PushID != "out-1" {
		t.Fatalf("status = %+v", st)
	}
}
