package database

import (
	"context"
)

// PostReader provides read-only access to the record store
type PostReader interface {
	// LoadAll returns every stored post in insertion order
	LoadAll(ctx context.Context) ([]Post, error)
}

// PostWriter replaces the stored collection as a whole
type PostWriter interface {
	// SaveAll overwrites the store with posts; it either fully succeeds or leaves the previous contents
	SaveAll(ctx context.Context, posts []Post) error
}

// PostRepository is the authoritative record store
type PostRepository interface {
	PostReader
	PostWriter
	Close() error
}

// SimilarityIndex is an approximate nearest-neighbour store over cosine space.
// It only shortlists candidates; similarity values are always recomputed exactly.
type SimilarityIndex interface {
	// Add inserts or replaces the vector for a post
	Add(ctx context.Context, postID int64, embedding []float32, meta IndexMetadata) error
	// Delete removes a post; deleting an unknown post is not an error
	Delete(ctx context.Context, postID int64) error
	// Query returns up to k candidates ordered by the index's own distance
	Query(ctx context.Context, embedding []float32, k int) ([]Candidate, error)
	// Count returns the number of indexed posts
	Count(ctx context.Context) (int, error)
	// Rebuild drops all entries and re-adds every post
	Rebuild(ctx context.Context, posts []Post) error
	// IDs returns the indexed post ids
	IDs(ctx context.Context) ([]int64, error)
	// Vector returns the stored vector for a post, or false if absent
	Vector(ctx context.Context, postID int64) ([]float32, bool, error)
}
