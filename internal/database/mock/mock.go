// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
)

// MockRepository is an in-memory database.PostRepository
type MockRepository struct {
	mu    sync.RWMutex
	posts []database.Post
	saves int

	// Error injection
	LoadError error
	SaveError error
}

// NewMockRepository creates a repository preloaded with posts
func NewMockRepository(posts ...database.Post) *MockRepository {
	return &MockRepository{posts: database.ClonePosts(posts)}
}

// LoadAll returns a copy of the stored posts
func (m *MockRepository) LoadAll(ctx context.Context) ([]database.Post, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return database.ClonePosts(m.posts), nil
}

// SaveAll replaces the stored posts
func (m *MockRepository) SaveAll(ctx context.Context, posts []database.Post) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = database.ClonePosts(posts)
	m.saves++
	return nil
}

// Close is a no-op
func (m *MockRepository) Close() error {
	return nil
}

// Posts returns the current contents without going through LoadAll
func (m *MockRepository) Posts() []database.Post {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return database.ClonePosts(m.posts)
}

// SaveCount returns how many successful SaveAll calls were made
func (m *MockRepository) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// MockIndex is an exact brute-force database.SimilarityIndex
type MockIndex struct {
	mu      sync.RWMutex
	vectors map[int64][]float32
	meta    map[int64]database.IndexMetadata
	queries int

	// Error injection
	AddError     error
	DeleteError  error
	QueryError   error
	CountError   error
	RebuildError error
}

// NewMockIndex creates an empty mock index
func NewMockIndex() *MockIndex {
	return &MockIndex{
		vectors: make(map[int64][]float32),
		meta:    make(map[int64]database.IndexMetadata),
	}
}

// Add stores a vector
func (m *MockIndex) Add(ctx context.Context, postID int64, embedding []float32, meta database.IndexMetadata) error {
	if m.AddError != nil {
		return m.AddError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[postID] = append([]float32(nil), embedding...)
	m.meta[postID] = meta
	return nil
}

// Delete removes a vector
func (m *MockIndex) Delete(ctx context.Context, postID int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, postID)
	delete(m.meta, postID)
	return nil
}

// Query returns the k closest vectors by cosine distance
func (m *MockIndex) Query(ctx context.Context, embedding []float32, k int) ([]database.Candidate, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++

	out := make([]database.Candidate, 0, len(m.vectors))
	for id, vec := range m.vectors {
		out = append(out, database.Candidate{PostID: id, Distance: database.CosineDistance(embedding, vec)})
	}
	slices.SortFunc(out, func(a, b database.Candidate) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.PostID, b.PostID)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Count returns the number of stored vectors
func (m *MockIndex) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors), nil
}

// Rebuild replaces all vectors with those of posts
func (m *MockIndex) Rebuild(ctx context.Context, posts []database.Post) error {
	if m.RebuildError != nil {
		return m.RebuildError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = make(map[int64][]float32, len(posts))
	m.meta = make(map[int64]database.IndexMetadata, len(posts))
	for _, p := range posts {
		if len(p.Embedding) == 0 {
			continue
		}
		m.vectors[p.PostID] = append([]float32(nil), p.Embedding...)
		m.meta[p.PostID] = database.IndexMetadata{PostID: p.PostID, NumImages: len(p.Images)}
	}
	return nil
}

// IDs returns stored ids in ascending order
func (m *MockIndex) IDs(ctx context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.vectors))
	for id := range m.vectors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Vector returns the stored vector for a post
func (m *MockIndex) Vector(ctx context.Context, postID int64) ([]float32, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vectors[postID]
	return v, ok, nil
}

// Metadata returns the metadata stored with a post
func (m *MockIndex) Metadata(postID int64) (database.IndexMetadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.meta[postID]
	return meta, ok
}

// QueryCount returns how many successful queries were served
func (m *MockIndex) QueryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queries
}

var (
	_ database.PostRepository  = (*MockRepository)(nil)
	_ database.SimilarityIndex = (*MockIndex)(nil)
)
