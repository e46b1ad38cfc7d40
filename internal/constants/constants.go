// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) of an image sent for embedding
	MaxImageSize = 1920

	// ExtractorHealthTimeout bounds each backend health check when the extractor is constructed
	ExtractorHealthTimeout = 10 * time.Second

	// ServiceQueueSize is the number of requests the post service buffers before callers block
	ServiceQueueSize = 64
)
