package relay

import (
	"testing"
	"time"
)

func TestFrameChannelFIFO(t *testing.T) {
	ch := NewFrameChannel(4, false)
	for i := int64(0); i < 3; i++ {
		if !ch.Push(NewFrame([]byte{byte(i)}, i)) {
			t.Fatalf("push %d rejected", i)
		}
	}
	if got := ch.Len(); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}
	for i := int64(0); i < 3; i++ {
		f := ch.Pop(time.Second)
		if f == nil {
			t.Fatalf("pop %d returned nil", i)
		}
		if f.PTS != i {
			t.Fatalf("pop %d: pts = %d, want %d", i, f.PTS, i)
		}
		f.Release()
	}
}

func TestFrameChannelStandardPolicy(t *testing.T) {
	ch := NewFrameChannel(3, false)
	frames := make([]*Frame, 4)
	for i := range frames {
		frames[i] = NewFrame([]byte{byte(i)}, int64(i))
		ch.Push(frames[i])
	}

	// Oldest frame is evicted and released; the rest keep their order.
	if !frames[0].Released() {
		t.Fatal("evicted frame was not released")
	}
	if got := ch.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
	for want := int64(1); want <= 3; want++ {
		f := ch.Pop(time.Second)
		if f == nil || f.PTS != want {
			t.Fatalf("pop: got %v, want pts %d", f, want)
		}
	}
}

func TestFrameChannelLowLatencyPolicy(t *testing.T) {
	ch := NewFrameChannel(3, true)
	old := make([]*Frame, 3)
	for i := range old {
		old[i] = NewFrame([]byte{byte(i)}, int64(i))
		ch.Push(old[i])
	}
	newest := NewFrame([]byte{9}, 9)
	ch.Push(newest)

	// The whole backlog goes; only the newest frame remains.
	if got := ch.Len(); got != 1 {
		t.Fatalf("len = %d, want 1", got)
	}
	if got := ch.Dropped(); got != 3 {
		t.Fatalf("dropped = %d, want 3", got)
	}
	for _, f := range old {
		if !f.Released() {
			t.Fatal("backlog frame was not released")
		}
	}
	if f := ch.Pop(time.Second); f == nil || f.PTS != 9 {
		t.Fatalf("pop: got %v, want the newest frame", f)
	}
}

func TestFrameChannelPopTimeout(t *testing.T) {
	ch := NewFrameChannel(1, false)
	start := time.Now()
	if f := ch.Pop(30 * time.Millisecond); f != nil {
		t.Fatalf("pop on empty channel returned %v", f)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("pop returned after %v, before the timeout", elapsed)
	}
}

func TestFrameChannelCloseUnblocksPop(t *testing.T) {
	ch := NewFrameChannel(1, false)
	done := make(chan *Frame, 1)
	go func() { done <- ch.Pop(5 * time.Second) }()

	time.Sleep(10 * time.Millisecond)
	ch.Close()

	select {
	case f := <-done:
		if f != nil {
			t.Fatalf("pop after close returned %v, want nil", f)
		}
	case <-time.After(time.Second):
		t.Fatal("pop still blocked after close")
	}
}

func TestFrameChannelPushAfterClose(t *testing.T) {
	ch := NewFrameChannel(1, false)
	ch.Close()
	f := NewFrame([]byte{1}, 0)
	if ch.Push(f) {
		t.Fatal("push accepted after close")
	}
	if !f.Released() {
		t.Fatal("rejected frame was not released")
	}
}

func TestFrameReleaseIdempotent(t *testing.T) {
	f := NewFrame([]byte{1, 2, 3}, 0)
	f.Release()
	f.Release()
	if f.Data != nil {
		t.Fatal("data not freed")
	}
	if !f.Released() {
		t.Fatal("frame not marked released")
	}
}

func TestFrameCloneIndependent(t *testing.T) {
	f := NewFrame([]byte{1, 2, 3}, 42)
	c := f.Clone()
	f.Release()
	if c.Released() {
		t.Fatal("clone shares released state")
	}
	if len(c.Data) != 3 || c.PTS != 42 {
		t.Fatalf("clone lost contents: %v", c)
	}
}
