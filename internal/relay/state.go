package relay

// StreamState represents the lifecycle state of a pipeline.
// The pipeline is the only writer; transitions are the only mutations.
type StreamState string

// Pipeline states.
const (
	StateInit         StreamState = "init"         // Registered, never started
	StateConnecting   StreamState = "connecting"   // Opening input/output
	StateConnected    StreamState = "connected"    // Actively processing
	StateDisconnected StreamState = "disconnected" // Read/write failed or stream ended
	StateReconnecting StreamState = "reconnecting" // Retrying within the reconnect budget
	StateError        StreamState = "error"        // Unrecoverable open/config failure
	StateStopped      StreamState = "stopped"      // Terminal
)

// Role distinguishes pull (source→decode) from push (encode→sink) pipelines.
type Role string

// Pipeline roles.
const (
	RolePull Role = "pull"
	RolePush Role = "push"
)
