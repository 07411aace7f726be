// Package media provides the built-in media collaborators wired into the
// relay binary. Real demuxers and codec backends plug in through
// relay.Media; the loopback implementation here generates a synthetic
// stream on pull and writes raw packet data on push, which is enough to
// run the relay end to end without any external media infrastructure.
package media

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/smazurov/streamrelay/internal/relay"
)

// Loopback returns a Media implementation backed by a synthetic packet
// generator and a file/discard sink. Each factory produces a fresh
// session, matching the per-connect contract of relay.Media.
func Loopback(logger *slog.Logger) relay.Media {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return relay.Media{
		OpenSource: func(spec relay.StreamSpec) (relay.Source, error) {
			return newSyntheticSource(logger), nil
		},
		OpenSink: func(spec relay.StreamSpec) (relay.Sink, error) {
			return newFileSink(logger), nil
		},
		NewDecoder: func(spec relay.StreamSpec) (relay.Decoder, error) {
			return &passthroughDecoder{}, nil
		},
		NewEncoder: func(spec relay.StreamSpec) (relay.Encoder, error) {
			return &passthroughEncoder{}, nil
		},
	}
}

// syntheticSource produces one packet per frame interval with monotonic
// PTS in milliseconds. The payload carries the frame counter so sinks
// produce deterministic, inspectable output.
type syntheticSource struct {
	logger   *slog.Logger
	interval time.Duration
	gop      int
	frame    int64
	closed   chan struct{}
	done     atomic.Bool
}

func newSyntheticSource(logger *slog.Logger) *syntheticSource {
	return &syntheticSource{logger: logger, closed: make(chan struct{})}
}

func (s *syntheticSource) Open(spec relay.StreamSpec) error {
	fps := spec.FPS
	if fps <= 0 {
		fps = 25
	}
	s.interval = time.Second / time.Duration(fps)
	s.gop = spec.GOP
	if s.gop <= 0 {
		s.gop = fps * 2
	}
	s.logger.Debug("synthetic source opened", "input", spec.InputURL, "fps", fps)
	return nil
}

func (s *syntheticSource) Read() (*relay.Packet, error) {
	select {
	case <-s.closed:
		return nil, fmt.Errorf("media: source closed")
	case <-time.After(s.interval):
	}

	n := s.frame
	s.frame++

	data := make([]byte, 16)
	binary.BigEndian.PutUint64(data[:8], uint64(n))
	pts := n * s.interval.Milliseconds()
	binary.BigEndian.PutUint64(data[8:], uint64(pts))

	return &relay.Packet{
		Data:     data,
		PTS:      pts,
		Keyframe: n%int64(s.gop) == 0,
	}, nil
}

func (s *syntheticSource) Close() {
	if s.done.CompareAndSwap(false, true) {
		close(s.closed)
	}
}

// fileSink writes packet payloads to a local file when the output URL
// points at one, and discards them (counting bytes) otherwise.
type fileSink struct {
	logger  *slog.Logger
	w       io.WriteCloser
	written atomic.Uint64
}

func newFileSink(logger *slog.Logger) *fileSink {
	return &fileSink{logger: logger}
}

func (s *fileSink) Open(spec relay.StreamSpec) error {
	path := localPath(spec.OutputURL)
	if path == "" {
		s.logger.Debug("sink discarding output", "output", spec.OutputURL)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("media: open sink %s: %w", path, err)
	}
	s.w = f
	s.logger.Debug("sink writing to file", "path", path)
	return nil
}

func (s *fileSink) Write(pkt *relay.Packet) error {
	s.written.Add(uint64(len(pkt.Data)))
	if s.w == nil {
		return nil
	}
	if _, err := s.w.Write(pkt.Data); err != nil {
		return fmt.Errorf("media: sink write: %w", err)
	}
	return nil
}

func (s *fileSink) Close() {
	if s.w != nil {
		_ = s.w.Close()
		s.w = nil
	}
}

// localPath maps an output URL to a filesystem path, or "" when the URL
// names a network destination.
func localPath(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "file":
		if u.Path != "" {
			return u.Path
		}
		return u.Opaque
	case "":
		if !strings.Contains(raw, "://") {
			return raw
		}
	}
	return ""
}

// passthroughDecoder copies packet payloads into frames unchanged.
type passthroughDecoder struct {
	params relay.VideoParams
}

func (d *passthroughDecoder) Init(params relay.VideoParams, _ string) error {
	d.params = params
	return nil
}

func (d *passthroughDecoder) Decode(pkt *relay.Packet) (*relay.Frame, error) {
	frame := relay.NewFrame(append([]byte(nil), pkt.Data...), pkt.PTS)
	frame.Width = d.params.Width
	frame.Height = d.params.Height
	frame.Keyframe = pkt.Keyframe
	return frame, nil
}

func (d *passthroughDecoder) Flush() (*relay.Frame, error) { return nil, nil }

func (d *passthroughDecoder) Cleanup() {}

// passthroughEncoder copies frame payloads into packets unchanged.
type passthroughEncoder struct{}

func (e *passthroughEncoder) Init(_ relay.VideoParams, _ string) error { return nil }

func (e *passthroughEncoder) Encode(frame *relay.Frame) (*relay.Packet, error) {
	return &relay.Packet{
		Data:     append([]byte(nil), frame.Data...),
		PTS:      frame.PTS,
		Keyframe: frame.Keyframe,
	}, nil
}

func (e *passthroughEncoder) Flush() (*relay.Packet, error) { return nil, nil }

func (e *passthroughEncoder) Cleanup() {}
