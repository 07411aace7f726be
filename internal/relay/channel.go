package relay

import (
	"sync"
	"time"
)

// FrameChannel is a bounded FIFO of frame handles owned by one pipeline.
// A full queue applies one of two policies: low-latency discards the entire
// backlog so the consumer always sees the most recent frame; standard
// discards only the oldest element, a sliding window.
type FrameChannel struct {
	mu         sync.Mutex
	frames     []*Frame
	capacity   int
	lowLatency bool
	closed     bool
	dropped    uint64

	signal chan struct{} // buffered, wakes a blocked Pop
	done   chan struct{} // closed by Close, unblocks all waiters
}

// NewFrameChannel creates a channel bounded at capacity frames.
func NewFrameChannel(capacity int, lowLatency bool) *FrameChannel {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameChannel{
		frames:     make([]*Frame, 0, capacity),
		capacity:   capacity,
		lowLatency: lowLatency,
		signal:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Push transfers frame ownership into the queue, applying the full-queue
// policy first. Returns false after Close; the frame is released in that
// case so ownership never leaks.
func (c *FrameChannel) Push(frame *Frame) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		frame.Release()
		return false
	}

	if len(c.frames) >= c.capacity {
		if c.lowLatency {
			for _, f := range c.frames {
				f.Release()
			}
			c.dropped += uint64(len(c.frames))
			c.frames = c.frames[:0]
		} else {
			c.frames[0].Release()
			c.dropped++
			c.frames = c.frames[1:]
		}
	}

	c.frames = append(c.frames, frame)
	c.mu.Unlock()

	select {
	case c.signal <- struct{}{}:
	default:
	}
	return true
}

// Pop removes and returns the head frame, blocking up to timeout for one
// to arrive. Returns nil on timeout or once the channel is closed, so a
// stopping pipeline never leaves a consumer deadlocked.
func (c *FrameChannel) Pop(timeout time.Duration) *Frame {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil
		}
		if len(c.frames) > 0 {
			frame := c.frames[0]
			c.frames = c.frames[1:]
			c.mu.Unlock()
			return frame
		}
		c.mu.Unlock()

		select {
		case <-c.signal:
		case <-c.done:
		case <-timer.C:
			return nil
		}
	}
}

// Len returns the number of queued frames.
func (c *FrameChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// Dropped returns the number of frames discarded by the full-queue policy.
func (c *FrameChannel) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Clear releases every queued frame. Used on pipeline teardown.
func (c *FrameChannel) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.frames {
		f.Release()
	}
	c.frames = c.frames[:0]
}

// Close unblocks all waiters and rejects further pushes. Pop returns nil
// from this point; queued frames are freed by Clear on teardown.
func (c *FrameChannel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
}
