package relay

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// fakeSource produces packets from a hook or a fixed sequence. Close
// unblocks any Read waiting on the block channel.
type fakeSource struct {
	read   func() (*Packet, error)
	block  chan struct{}
	closed atomic.Bool

	mu    sync.Mutex
	reads int
}

func (s *fakeSource) Open(StreamSpec) error { return nil }

func (s *fakeSource) Read() (*Packet, error) {
	s.mu.Lock()
	s.reads++
	n := s.reads
	s.mu.Unlock()

	if s.block != nil {
		select {
		case <-s.block:
		case <-waitClosed(&s.closed):
			return nil, errors.New("source closed")
		}
	}
	if s.closed.Load() {
		return nil, errors.New("source closed")
	}
	if s.read != nil {
		return s.read()
	}
	return &Packet{Data: []byte{byte(n)}, PTS: int64(n) * 40, Keyframe: n == 1}, nil
}

func (s *fakeSource) Close() { s.closed.Store(true) }

func (s *fakeSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// waitClosed adapts an atomic flag to a pollable channel so a blocking
// Read can notice Close without a real network timeout.
func waitClosed(flag *atomic.Bool) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		for !flag.Load() {
			time.Sleep(time.Millisecond)
		}
		close(ch)
	}()
	return ch
}

type fakeSink struct {
	writeErr error

	mu      sync.Mutex
	packets []*Packet
}

func (s *fakeSink) Open(StreamSpec) error { return nil }

func (s *fakeSink) Write(pkt *Packet) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.mu.Lock()
	s.packets = append(s.packets, pkt)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) Close() {}

func (s *fakeSink) written() []*Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Packet, len(s.packets))
	copy(out, s.packets)
	return out
}

type fakeDecoder struct {
	decodeErr error
	cleaned   atomic.Bool
}

func (d *fakeDecoder) Init(VideoParams, string) error { return nil }

func (d *fakeDecoder) Decode(pkt *Packet) (*Frame, error) {
	if d.decodeErr != nil {
		return nil, d.decodeErr
	}
	f := NewFrame(append([]byte(nil), pkt.Data...), pkt.PTS)
	f.Keyframe = pkt.Keyframe
	return f, nil
}

func (d *fakeDecoder) Flush() (*Frame, error) { return nil, nil }
func (d *fakeDecoder) Cleanup()               { d.cleaned.Store(true) }

type fakeEncoder struct {
	encodeErr error
}

func (e *fakeEncoder) Init(VideoParams, string) error { return nil }

func (e *fakeEncoder) Encode(frame *Frame) (*Packet, error) {
	if e.encodeErr != nil {
		return nil, e.encodeErr
	}
	return &Packet{Data: append([]byte(nil), frame.Data...), PTS: frame.PTS, Keyframe: frame.Keyframe}, nil
}

func (e *fakeEncoder) Flush() (*Packet, error) { return nil, nil }
func (e *fakeEncoder) Cleanup()                {}

// pullMedia wires a pull pipeline to the given source factory.
func pullMedia(openSource func(StreamSpec) (Source, error)) Media {
	return Media{
		OpenSource: openSource,
		NewDecoder: func(StreamSpec) (Decoder, error) { return &fakeDecoder{}, nil },
	}
}

// pushMedia wires a forward-fed push pipeline to the given sink factory.
func pushMedia(openSink func(StreamSpec) (Sink, error)) Media {
	return Media{
		OpenSink:   openSink,
		NewEncoder: func(StreamSpec) (Encoder, error) { return &fakeEncoder{}, nil },
	}
}

func pullSpec(id string) StreamSpec {
	return StreamSpec{
		ID:               id,
		Role:             RolePull,
		InputURL:         "rtsp://camera.local/" + id,
		ReconnectDelayMs: 1,
	}
}

func pushSpec(id string) StreamSpec {
	return StreamSpec{
		ID:               id,
		Role:             RolePush,
		OutputURL:        "rtmp://origin.local/" + id,
		ReconnectDelayMs: 1,
	}
}
