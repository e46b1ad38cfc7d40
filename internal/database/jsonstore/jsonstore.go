// Package jsonstore keeps the record store as a single pretty-printed JSON document.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
)

// Store is a PostRepository over one JSON file. Every save overwrites the whole file.
type Store struct {
	path string
	mu   sync.Mutex
}

// lenientPost decodes a record whose embedding may be malformed.
type lenientPost struct {
	PostID    int64            `json:"post_id"`
	Images    []string         `json:"images"`
	Embedding json.RawMessage  `json:"embedding"`
	Matches   []database.Match `json:"matches"`
}

// New creates a store backed by path. The file is created on first save.
func New(path string) *Store {
	return &Store{path: path}
}

// Open satisfies database.RepositoryOpener.
func Open(_ context.Context, path string) (database.PostRepository, error) {
	if path == "" {
		return nil, errors.New("json store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return New(path), nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// LoadAll reads every post. A missing file is an empty store.
// Records with an undecodable embedding are kept with an empty embedding so
// the engines treat them as corrupt instead of failing the whole load.
func (s *Store) LoadAll(_ context.Context) ([]database.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []database.Post{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read posts file: %w", err)
	}
	if len(data) == 0 {
		return []database.Post{}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse posts file: %v", database.ErrCorruptRecord, err)
	}

	posts := make([]database.Post, 0, len(raw))
	for i, r := range raw {
		var p database.Post
		if err := json.Unmarshal(r, &p); err == nil {
			posts = append(posts, p)
			continue
		}

		var lp lenientPost
		if err := json.Unmarshal(r, &lp); err != nil {
			log.Printf("Warning: skipping unreadable record #%d in %s: %v", i, s.path, err)
			continue
		}
		log.Printf("Warning: post %d has a corrupt embedding", lp.PostID)
		posts = append(posts, database.Post{
			PostID:  lp.PostID,
			Images:  lp.Images,
			Matches: lp.Matches,
		})
	}
	return posts, nil
}

// SaveAll writes posts to a temporary file and renames it over the store.
func (s *Store) SaveAll(_ context.Context, posts []database.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]database.Post, len(posts))
	for i, p := range posts {
		if p.Images == nil {
			p.Images = []string{}
		}
		if p.Embedding == nil {
			p.Embedding = []float32{}
		}
		if p.Matches == nil {
			p.Matches = []database.Match{}
		}
		out[i] = p
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal posts: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write posts: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace posts file: %w", err)
	}
	return nil
}

// Close is a no-op; the file is not held open between calls.
func (s *Store) Close() error {
	return nil
}

var _ database.PostRepository = (*Store)(nil)
