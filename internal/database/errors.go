package database

import "errors"

var (
	// ErrNotFound is returned when a post id is not present in the store.
	ErrNotFound = errors.New("post not found")

	// ErrDuplicatePostID is returned when adding a post whose id already exists.
	ErrDuplicatePostID = errors.New("duplicate post id")

	// ErrCorruptRecord marks a stored post whose embedding cannot be used.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrIndexUnavailable wraps every similarity index failure.
	ErrIndexUnavailable = errors.New("similarity index unavailable")
)
