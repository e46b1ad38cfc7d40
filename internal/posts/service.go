// Package posts owns the record store, the similarity index and the blob
// store. Every mutation runs on a single goroutine in arrival order, and every
// call returns a Future.
package posts

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/config"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/constants"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/facematch"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/storage"
)

var (
	// ErrInvalidInput is returned for a non-positive post id or a bad image count.
	ErrInvalidInput = errors.New("invalid input")

	// ErrServiceClosed is returned for requests made after Close.
	ErrServiceClosed = errors.New("post service closed")

	// ErrNoIndex is returned by index operations when no index is configured.
	ErrNoIndex = errors.New("no similarity index configured")
)

// Deps are the collaborators of a Service. Index may be nil.
type Deps struct {
	Repo      database.PostRepository
	Index     database.SimilarityIndex
	Blobs     *storage.BlobStore
	Extractor facematch.Embedder
	Matching  config.MatchingConfig
}

// Service is the single writer for all posts.
type Service struct {
	repo      database.PostRepository
	index     database.SimilarityIndex
	blobs     *storage.BlobStore
	extractor facematch.Embedder
	matching  config.MatchingConfig

	// owned by the actor goroutine
	posts []database.Post

	requests chan func()
	quit     chan struct{}
	done     chan struct{}
	mu       sync.RWMutex
	closed   bool

	// background context for work that outlives the caller's wait
	ctx    context.Context
	cancel context.CancelFunc
}

// New loads every post from the repository and starts the actor.
func New(ctx context.Context, deps Deps) (*Service, error) {
	if deps.Repo == nil || deps.Blobs == nil || deps.Extractor == nil {
		return nil, errors.New("posts: repository, blob store and extractor are required")
	}

	loaded, err := deps.Repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading posts: %w", err)
	}

	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Service{
		repo:      deps.Repo,
		index:     deps.Index,
		blobs:     deps.Blobs,
		extractor: deps.Extractor,
		matching:  deps.Matching,
		posts:     loaded,
		requests:  make(chan func(), constants.ServiceQueueSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       bg,
		cancel:    cancel,
	}
	go s.run()

	log.Printf("Post service started with %d posts", len(loaded))
	return s, nil
}

func (s *Service) run() {
	defer close(s.done)
	for {
		select {
		case req := <-s.requests:
			req()
		case <-s.quit:
			// Finish whatever was queued before Close.
			for {
				select {
				case req := <-s.requests:
					req()
				default:
					return
				}
			}
		}
	}
}

// Close drains queued requests and stops the actor. It does not close the
// repository or the index.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.quit)
	<-s.done
	s.cancel()
}

// Matching returns the thresholds the service was built with.
func (s *Service) Matching() config.MatchingConfig {
	return s.matching
}

// HasIndex reports whether a similarity index is configured.
func (s *Service) HasIndex() bool {
	return s.index != nil
}

func (s *Service) matchOptions() facematch.MatchOptions {
	return facematch.MatchOptions{
		Threshold:  s.matching.SimilarityThreshold,
		CandidateK: s.matching.CandidateK,
	}
}

// extractorAvailable surfaces ErrExtractorUnavailable before any work starts.
func (s *Service) extractorAvailable() error {
	if a, ok := s.extractor.(interface{ Available() error }); ok {
		return a.Available()
	}
	return nil
}

func (s *Service) validateImages(images []ImageInput) error {
	if len(images) == 0 || len(images) > s.matching.MaxImages {
		return fmt.Errorf("%w: expected 1-%d images, got %d", ErrInvalidInput, s.matching.MaxImages, len(images))
	}
	return nil
}

// Get returns one post.
func (s *Service) Get(postID int64) *Future[database.Post] {
	return submit(s, func() (database.Post, error) {
		p := database.FindPost(s.posts, postID)
		if p == nil {
			return database.Post{}, fmt.Errorf("post %d: %w", postID, database.ErrNotFound)
		}
		return database.ClonePosts([]database.Post{*p})[0], nil
	})
}

// List returns every post, newest id first.
func (s *Service) List() *Future[[]database.Post] {
	return submit(s, func() ([]database.Post, error) {
		out := database.ClonePosts(s.posts)
		slices.SortStableFunc(out, func(a, b database.Post) int {
			return cmp.Compare(b.PostID, a.PostID)
		})
		return out, nil
	})
}

// Snapshot returns every post in store order.
func (s *Service) Snapshot() *Future[[]database.Post] {
	return submit(s, func() ([]database.Post, error) {
		return database.ClonePosts(s.posts), nil
	})
}

// Recompute rewrites every post's matches and saves the store.
func (s *Service) Recompute(progress facematch.ProgressFunc) *Future[facematch.RecomputeStats] {
	return submit(s, func() (facematch.RecomputeStats, error) {
		working := database.ClonePosts(s.posts)
		stats := facematch.Recompute(s.ctx, working, s.index, s.matchOptions(), progress)
		if err := s.repo.SaveAll(s.ctx, working); err != nil {
			return stats, fmt.Errorf("saving posts: %w", err)
		}
		s.posts = working
		log.Printf("Recomputed matches for %d posts (%s mode, %d matches)", stats.Posts, stats.Mode, stats.Matches)
		return stats, nil
	})
}

// indexAdd logs index failures; they never abort a store write.
func (s *Service) indexAdd(p database.Post) {
	if s.index == nil {
		return
	}
	meta := database.IndexMetadata{PostID: p.PostID, NumImages: len(p.Images)}
	if err := s.index.Add(s.ctx, p.PostID, p.Embedding, meta); err != nil {
		log.Printf("Warning: index add for post %d failed: %v", p.PostID, err)
	}
}

func (s *Service) indexDelete(postID int64) {
	if s.index == nil {
		return
	}
	if err := s.index.Delete(s.ctx, postID); err != nil {
		log.Printf("Warning: index delete for post %d failed: %v", postID, err)
	}
}
