package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (100MB)
	MaxUploadSize = 100 << 20
)

// Job constants
const (
	// JobRetention is how many finished jobs the job manager keeps for polling
	JobRetention = 200
)
