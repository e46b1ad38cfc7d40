package facematch

import "errors"

var (
	// ErrNoFaceDetected is returned when none of the supplied images yields an embedding.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrExtractorUnavailable is returned when neither embedding backend answered at startup.
	ErrExtractorUnavailable = errors.New("face extractor unavailable")

	// ErrUndecodableImage marks input bytes that are not a supported image.
	ErrUndecodableImage = errors.New("image could not be decoded")
)
