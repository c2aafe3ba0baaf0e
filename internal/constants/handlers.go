package constants

import "time"

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100

	// EventName is the SSE event name carrying attendance updates
	EventName = "faceRegCheck_update"
)

// Handler constants
const (
	// MaxEnrollBodyBytes caps the size of a member enrollment request body
	MaxEnrollBodyBytes = 64 << 10

	// StreamFrameInterval is the minimum gap between two MJPEG parts
	StreamFrameInterval = 50 * time.Millisecond

	// SSEKeepAlive is the interval between SSE keep-alive comments
	SSEKeepAlive = 30 * time.Second
)
