package database

import (
	"cmp"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

const hnswPostMetadataVersion = 1

// File names inside the index directory.
const (
	hnswGraphFile = "posts.graph"
	hnswMetaFile  = "posts.graph.meta"
	hnswPostsFile = "posts.graph.posts"
)

// HNSWPostIndexMetadata stores metadata for validating a persisted index.
type HNSWPostIndexMetadata struct {
	PostCount int       `json:"post_count"`
	Dim       int       `json:"dim"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"`
}

// IndexedPost is the per-post record kept next to the graph.
type IndexedPost struct {
	Key       string
	Embedding []float32
	Meta      IndexMetadata
}

// HNSWPostIndex is an in-process SimilarityIndex backed by an HNSW graph keyed by "post_<id>".
type HNSWPostIndex struct {
	graph *hnsw.Graph[string]
	posts map[string]*IndexedPost
	nodes map[string]struct{} // keys present in the graph, including deleted ones
	dim   int
	mu    sync.RWMutex
	dir   string // Directory to save/load index (empty = in-memory only)
}

// NewHNSWPostIndex creates an empty index persisted under dir.
func NewHNSWPostIndex(dir string) *HNSWPostIndex {
	return &HNSWPostIndex{
		posts: make(map[string]*IndexedPost),
		nodes: make(map[string]struct{}),
		dir:   dir,
	}
}

func newPostGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// buildLocked recreates the graph from the posts map, dropping deleted nodes.
func (h *HNSWPostIndex) buildLocked() {
	h.nodes = make(map[string]struct{}, len(h.posts))
	if len(h.posts) == 0 {
		h.graph = nil
		h.dim = 0
		return
	}

	keys := make([]string, 0, len(h.posts))
	for k := range h.posts {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	g := newPostGraph()
	for _, k := range keys {
		g.Add(hnsw.MakeNode(k, h.posts[k].Embedding))
		h.nodes[k] = struct{}{}
	}
	h.graph = g
}

// Add inserts or replaces a post vector.
func (h *HNSWPostIndex) Add(_ context.Context, postID int64, embedding []float32, meta IndexMetadata) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding for post %d", ErrIndexUnavailable, postID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dim != 0 && len(embedding) != h.dim {
		return fmt.Errorf("%w: embedding dimension %d, index expects %d", ErrIndexUnavailable, len(embedding), h.dim)
	}

	key := IndexKey(postID)
	h.posts[key] = &IndexedPost{
		Key:       key,
		Embedding: append([]float32(nil), embedding...),
		Meta:      meta,
	}
	h.dim = len(embedding)

	if _, exists := h.nodes[key]; exists {
		// HNSW nodes cannot be replaced in place.
		h.buildLocked()
		return nil
	}
	if h.graph == nil {
		h.graph = newPostGraph()
	}
	h.graph.Add(hnsw.MakeNode(key, h.posts[key].Embedding))
	h.nodes[key] = struct{}{}
	return nil
}

// Delete removes a post from the index (marks as deleted).
func (h *HNSWPostIndex) Delete(_ context.Context, postID int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.posts, IndexKey(postID))
	// The graph node stays until the next rebuild or save; Query filters it out.
	if len(h.posts) == 0 {
		h.graph = nil
		h.nodes = make(map[string]struct{})
		h.dim = 0
	}
	return nil
}

// Query finds the k nearest live posts to the embedding.
func (h *HNSWPostIndex) Query(_ context.Context, embedding []float32, k int) ([]Candidate, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil || len(h.posts) == 0 {
		return nil, nil
	}
	if len(embedding) != h.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index expects %d", ErrIndexUnavailable, len(embedding), h.dim)
	}

	// Ask for extra neighbours to make up for deleted nodes.
	searchK := min(k+len(h.nodes)-len(h.posts), len(h.nodes))
	neighbors := h.graph.Search(embedding, searchK)

	out := make([]Candidate, 0, len(neighbors))
	for _, n := range neighbors {
		p, ok := h.posts[n.Key]
		if !ok {
			continue
		}
		out = append(out, Candidate{
			PostID:   p.Meta.PostID,
			Distance: CosineDistance(embedding, p.Embedding),
		})
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Count returns the number of indexed posts.
func (h *HNSWPostIndex) Count(context.Context) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.posts), nil
}

// Rebuild replaces the whole index with posts. Posts without a usable embedding are skipped.
func (h *HNSWPostIndex) Rebuild(_ context.Context, posts []Post) error {
	dim := CorpusDimension(posts)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.posts = make(map[string]*IndexedPost, len(posts))
	for _, p := range posts {
		if CheckEmbedding(p.Embedding, dim) != nil {
			continue
		}
		key := IndexKey(p.PostID)
		h.posts[key] = &IndexedPost{
			Key:       key,
			Embedding: append([]float32(nil), p.Embedding...),
			Meta:      IndexMetadata{PostID: p.PostID, NumImages: len(p.Images)},
		}
	}
	h.dim = dim
	h.buildLocked()
	return nil
}

// IDs returns indexed post ids in ascending order.
func (h *HNSWPostIndex) IDs(context.Context) ([]int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]int64, 0, len(h.posts))
	for _, p := range h.posts {
		ids = append(ids, p.Meta.PostID)
	}
	slices.Sort(ids)
	return ids, nil
}

// Vector returns the stored vector for a post.
func (h *HNSWPostIndex) Vector(_ context.Context, postID int64) ([]float32, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.posts[IndexKey(postID)]
	if !ok {
		return nil, false, nil
	}
	return p.Embedding, true, nil
}

// Dir returns the persistence directory.
func (h *HNSWPostIndex) Dir() string {
	return h.dir
}

// Save persists the graph, metadata and post vectors to the index directory.
func (h *HNSWPostIndex) Save() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dir == "" {
		return nil // No path set
	}

	graphPath := filepath.Join(h.dir, hnswGraphFile)
	metaPath := filepath.Join(h.dir, hnswMetaFile)
	postsPath := filepath.Join(h.dir, hnswPostsFile)

	if len(h.posts) == 0 {
		// Remove existing files if index is empty
		os.Remove(graphPath)
		os.Remove(metaPath)
		os.Remove(postsPath)
		return nil
	}

	if len(h.nodes) != len(h.posts) {
		h.buildLocked()
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	f, err := os.Create(graphPath)
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	f.Close()

	metaData, err := json.Marshal(HNSWPostIndexMetadata{
		PostCount: len(h.posts),
		Dim:       h.dim,
		BuildTime: time.Now(),
		Version:   hnswPostMetadataVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaData, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	postsFile, err := os.Create(postsPath)
	if err != nil {
		return fmt.Errorf("failed to create posts file: %w", err)
	}
	defer postsFile.Close()

	posts := make([]IndexedPost, 0, len(h.posts))
	for _, p := range h.posts {
		posts = append(posts, *p)
	}
	if err := gob.NewEncoder(postsFile).Encode(posts); err != nil {
		return fmt.Errorf("failed to encode posts: %w", err)
	}
	return nil
}

// LoadHNSWPostMetadata loads just the metadata file for staleness checking.
func LoadHNSWPostMetadata(dir string) (*HNSWPostIndexMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, hnswMetaFile))
	if err != nil {
		return nil, err
	}
	var meta HNSWPostIndexMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Load restores a previously saved index. A missing index returns an error wrapping os.ErrNotExist.
func (h *HNSWPostIndex) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dir == "" {
		return fmt.Errorf("index directory not set: %w", os.ErrNotExist)
	}
	graphPath := filepath.Join(h.dir, hnswGraphFile)
	if _, err := os.Stat(graphPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("index file not found: %s: %w", graphPath, err)
	}

	meta, err := LoadHNSWPostMetadata(h.dir)
	if err != nil {
		return fmt.Errorf("failed to load index metadata: %w", err)
	}
	if meta.Version != hnswPostMetadataVersion {
		return fmt.Errorf("unsupported index version %d", meta.Version)
	}

	saved, err := hnsw.LoadSavedGraph[string](graphPath)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	postsFile, err := os.Open(filepath.Join(h.dir, hnswPostsFile))
	if err != nil {
		return fmt.Errorf("failed to open posts file: %w", err)
	}
	defer postsFile.Close()

	var posts []IndexedPost
	if err := gob.NewDecoder(postsFile).Decode(&posts); err != nil {
		return fmt.Errorf("failed to decode posts: %w", err)
	}

	h.posts = make(map[string]*IndexedPost, len(posts))
	for i := range posts {
		h.posts[posts[i].Key] = &posts[i]
	}
	h.dim = meta.Dim
	h.graph = saved.Graph
	h.graph.EfSearch = HNSWEfSearch
	h.nodes = make(map[string]struct{}, len(h.posts))
	for k := range h.posts {
		h.nodes[k] = struct{}{}
	}
	return nil
}

var (
	_ SimilarityIndex = (*HNSWPostIndex)(nil)
	_ IndexPersister  = (*HNSWPostIndex)(nil)
)
