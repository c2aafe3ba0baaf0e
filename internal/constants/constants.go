// Package constants provides shared constants used across the codebase.
package constants

// Matching constants
const (
	// DefaultTolerance is the maximum embedding distance accepted as a gallery match.
	// Lower values = stricter matching
	DefaultTolerance = 0.4

	// DefaultScale is the linear downscale factor applied before detection
	DefaultScale = 0.25
)

// Frame constants
const (
	// FrameWidth and FrameHeight are the dimensions every camera frame is normalised to
	FrameWidth  = 640
	FrameHeight = 480

	// JPEGQuality is used when encoding annotated frames for streaming
	JPEGQuality = 80
)

// Labels drawn on frames and returned in match results
const (
	UnknownName       = "Unknown"
	UnknownConfidence = "Unknown"
	TooManyFacesText  = "Too many people detected"
)

// TimestampLayout is the DD-MM-YYYY HH:MM:SS layout of stored attendance times.
const TimestampLayout = "02-01-2006 15:04:05"
