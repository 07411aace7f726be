package relay

import "errors"

// ErrEndOfStream is returned by Source.Read when the input ends normally.
// End of stream is a disconnect, not a processing error.
var ErrEndOfStream = errors.New("relay: end of stream")

// Packet is one encoded unit read from a container or written to one.
type Packet struct {
	Data        []byte
	PTS         int64
	Keyframe    bool
	StreamIndex int
}

// VideoParams are the codec parameters handed to collaborators.
type VideoParams struct {
	Width   int
	Height  int
	Bitrate int
	FPS     int
	GOP     int
	Codec   string
}

// Source demuxes packets from a network or file input. Open may block for
// the configured network timeout; Read blocks until a packet arrives, the
// source fails, or the stream ends (ErrEndOfStream).
type Source interface {
	Open(spec StreamSpec) error
	Read() (*Packet, error)
	Close()
}

// Sink muxes packets to a network or file output.
type Sink interface {
	Open(spec StreamSpec) error
	Write(pkt *Packet) error
	Close()
}

// Decoder turns packets into frames. Implementations must transfer
// hardware-resident frames to host memory before returning them, and must
// fall back to a software path when the hwaccel hint is unsupported.
// A nil frame with nil error means the decoder needs more input.
type Decoder interface {
	Init(params VideoParams, hwAccel string) error
	Decode(pkt *Packet) (*Frame, error)
	Flush() (*Frame, error)
	Cleanup()
}

// Encoder turns frames into packets, with the same hwaccel fallback
// contract as Decoder.
type Encoder interface {
	Init(params VideoParams, hwAccel string) error
	Encode(frame *Frame) (*Packet, error)
	Flush() (*Packet, error)
	Cleanup()
}

// Media supplies the role-specific collaborators a pipeline needs. Pull
// pipelines use OpenSource and NewDecoder; push pipelines additionally use
// OpenSink and NewEncoder. Each factory is invoked on every (re)connect so
// implementations get a fresh session per attempt.
type Media struct {
	OpenSource func(spec StreamSpec) (Source, error)
	OpenSink   func(spec StreamSpec) (Sink, error)
	NewDecoder func(spec StreamSpec) (Decoder, error)
	NewEncoder func(spec StreamSpec) (Encoder, error)
}
