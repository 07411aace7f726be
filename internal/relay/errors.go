package relay

import "errors"

// Sentinel errors returned by pipelines and the supervisor.
var (
	// ErrNotConnected is returned by a process cycle invoked while the
	// pipeline is not in the connected state.
	ErrNotConnected = errors.New("relay: pipeline not connected")

	// ErrStreamStopped is returned when an operation is interrupted by
	// Stop.
	ErrStreamStopped = errors.New("relay: stream stopped")

	// ErrReconnectExhausted is returned once the reconnect budget is
	// spent; the pipeline is then terminally stopped.
	ErrReconnectExhausted = errors.New("relay: reconnect attempts exhausted")

	// ErrStreamNotFound is returned for operations on an unknown stream id.
	ErrStreamNotFound = errors.New("relay: stream not found")

	// ErrStreamExists is returned when registering a stream under an id
	// that is already taken.
	ErrStreamExists = errors.New("relay: stream already exists")

	// ErrStreamRunning is returned when an operation requires the stream
	// to be idle, e.g. starting a stream whose run loop is still live or
	// replacing the spec of an active stream.
	ErrStreamRunning = errors.New("relay: stream is running")

	// ErrTaskNotFound is returned for operations on an unknown forward
	// task id.
	ErrTaskNotFound = errors.New("relay: forward task not found")
)
