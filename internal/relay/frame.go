package relay

import "sync/atomic"

// Frame is a move-only handle to one decoded video frame. Ownership
// transfers into a FrameChannel on push and out on pop; whoever holds the
// handle last must call Release. Zero-copy forwarding moves the handle,
// copy forwarding goes through Clone.
type Frame struct {
	Data     []byte
	PTS      int64
	Width    int
	Height   int
	Keyframe bool

	released atomic.Bool
}

// NewFrame wraps data in a frame handle. The frame takes ownership of the
// slice; callers must not retain it.
func NewFrame(data []byte, pts int64) *Frame {
	return &Frame{Data: data, PTS: pts}
}

// Clone returns an independent copy with its own backing buffer, so the
// pull and push sides never share mutable storage.
func (f *Frame) Clone() *Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return &Frame{
		Data:     data,
		PTS:      f.PTS,
		Width:    f.Width,
		Height:   f.Height,
		Keyframe: f.Keyframe,
	}
}

// Release frees the backing buffer. Safe to call more than once; only the
// first call has effect.
func (f *Frame) Release() {
	if f.released.CompareAndSwap(false, true) {
		f.Data = nil
	}
}

// Released reports whether the handle has been released.
func (f *Frame) Released() bool {
	return f.released.Load()
}
