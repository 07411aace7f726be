package relay

import (
	"fmt"
	"net/url"
	"time"
)

// Hardware acceleration hints, passed through to the decode/encode
// collaborators. Unknown values are the collaborator's problem; it must
// fall back to software and report success.
const (
	HWAccelNone         = "none"
	HWAccelCUDA         = "cuda"
	HWAccelQSV          = "qsv"
	HWAccelVAAPI        = "vaapi"
	HWAccelVideoToolbox = "videotoolbox"
)

// StreamSpec is the immutable-per-run descriptor of one stream. It may be
// replaced wholesale through Supervisor.UpdateSpec while the stream is not
// actively running.
type StreamSpec struct {
	ID   string `toml:"id,omitempty" json:"id,omitempty"`
	Name string `toml:"name,omitempty" json:"name,omitempty"`
	Role Role   `toml:"role" json:"role,omitempty"`

	InputURL     string `toml:"input_url" json:"input_url,omitempty"`
	OutputURL    string `toml:"output_url,omitempty" json:"output_url,omitempty"`
	OutputFormat string `toml:"output_format,omitempty" json:"output_format,omitempty"`
	AutoStart    bool   `toml:"auto_start,omitempty" json:"auto_start,omitempty"`

	Width   int    `toml:"width,omitempty" json:"width,omitempty"`
	Height  int    `toml:"height,omitempty" json:"height,omitempty"`
	Bitrate int    `toml:"bitrate,omitempty" json:"bitrate,omitempty"`
	FPS     int    `toml:"fps,omitempty" json:"fps,omitempty"`
	GOP     int    `toml:"gop,omitempty" json:"gop,omitempty"`
	Codec   string `toml:"codec,omitempty" json:"codec,omitempty"`
	HWAccel string `toml:"hwaccel,omitempty" json:"hwaccel,omitempty"`

	TimeoutSec       int    `toml:"timeout_sec,omitempty" json:"timeout_sec,omitempty"`
	Transport        string `toml:"transport,omitempty" json:"transport,omitempty"`
	MaxReconnects    int    `toml:"max_reconnects,omitempty" json:"max_reconnects,omitempty"`
	ReconnectDelayMs int    `toml:"reconnect_delay_ms,omitempty" json:"reconnect_delay_ms,omitempty"`
	DisableReconnect bool   `toml:"disable_reconnect,omitempty" json:"disable_reconnect,omitempty"`

	LowLatency   bool `toml:"low_latency,omitempty" json:"low_latency,omitempty"`
	MaxQueueSize int  `toml:"max_queue_size,omitempty" json:"max_queue_size,omitempty"`

	Extra map[string]string `toml:"extra,omitempty" json:"extra,omitempty"`
}

// ApplyDefaults fills zero-valued fields with the standard defaults.
func (s *StreamSpec) ApplyDefaults() {
	if s.Width == 0 {
		s.Width = 1920
	}
	if s.Height == 0 {
		s.Height = 1080
	}
	if s.Bitrate == 0 {
		s.Bitrate = 4_000_000
	}
	if s.FPS == 0 {
		s.FPS = 25
	}
	if s.GOP == 0 {
		s.GOP = 50
	}
	if s.Codec == "" {
		s.Codec = "h264"
	}
	if s.HWAccel == "" {
		s.HWAccel = HWAccelNone
	}
	if s.TimeoutSec == 0 {
		s.TimeoutSec = 10
	}
	if s.MaxReconnects == 0 {
		s.MaxReconnects = 5
	}
	if s.ReconnectDelayMs == 0 {
		s.ReconnectDelayMs = 2000
	}
	if s.MaxQueueSize == 0 {
		if s.LowLatency {
			s.MaxQueueSize = 5
		} else {
			s.MaxQueueSize = 30
		}
	}
}

// Validate checks the spec for fields the pipeline cannot work without.
func (s *StreamSpec) Validate() error {
	switch s.Role {
	case RolePull, RolePush:
	default:
		return fmt.Errorf("stream %q: invalid role %q", s.ID, s.Role)
	}

	if s.Role == RolePull && s.InputURL == "" {
		return fmt.Errorf("stream %q: pull stream requires input_url", s.ID)
	}
	if s.Role == RolePush && s.OutputURL == "" {
		return fmt.Errorf("stream %q: push stream requires output_url", s.ID)
	}
	if s.InputURL != "" {
		if _, err := url.Parse(s.InputURL); err != nil {
			return fmt.Errorf("stream %q: invalid input_url: %w", s.ID, err)
		}
	}
	if s.OutputURL != "" {
		if _, err := url.Parse(s.OutputURL); err != nil {
			return fmt.Errorf("stream %q: invalid output_url: %w", s.ID, err)
		}
	}
	if s.MaxReconnects < 0 {
		return fmt.Errorf("stream %q: max_reconnects must not be negative", s.ID)
	}
	if s.MaxQueueSize < 0 {
		return fmt.Errorf("stream %q: max_queue_size must not be negative", s.ID)
	}
	return nil
}

// VideoParams extracts the collaborator-facing codec parameters.
func (s *StreamSpec) VideoParams() VideoParams {
	return VideoParams{
		Width:   s.Width,
		Height:  s.Height,
		Bitrate: s.Bitrate,
		FPS:     s.FPS,
		GOP:     s.GOP,
		Codec:   s.Codec,
	}
}

// ReconnectDelay returns the configured delay between reconnect attempts.
func (s *StreamSpec) ReconnectDelay() time.Duration {
	return time.Duration(s.ReconnectDelayMs) * time.Millisecond
}

// ForwardSpec describes a forward task binding one pull stream to one
// push stream.
type ForwardSpec struct {
	ID        string `toml:"id,omitempty" json:"id,omitempty"`
	Name      string `toml:"name,omitempty" json:"name,omitempty"`
	PullID    string `toml:"pull_id" json:"pull_id"`
	PushID    string `toml:"push_id" json:"push_id"`
	ZeroCopy  bool   `toml:"zero_copy,omitempty" json:"zero_copy,omitempty"`
	AutoStart bool   `toml:"auto_start,omitempty" json:"auto_start,omitempty"`
}
