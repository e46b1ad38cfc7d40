// Package sqlite is an embedded record store built on the pure-Go SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS posts (
	post_id INTEGER PRIMARY KEY,
	seq INTEGER NOT NULL,
	images TEXT NOT NULL DEFAULT '[]',
	embedding BLOB,
	matches TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_posts_seq ON posts(seq);
`

// Store is a PostRepository in a single SQLite file.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// New opens (and creates if needed) the database at dbPath.
func New(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create posts table: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Open satisfies database.RepositoryOpener.
func Open(ctx context.Context, dbPath string) (database.PostRepository, error) {
	return New(ctx, dbPath)
}

// LoadAll returns all posts in insertion order.
func (s *Store) LoadAll(ctx context.Context) ([]database.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT post_id, images, embedding, matches FROM posts ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []database.Post{}
	for rows.Next() {
		var (
			p       database.Post
			images  string
			blob    []byte
			matches string
		)
		if err := rows.Scan(&p.PostID, &images, &blob, &matches); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
			log.Printf("Warning: post %d has unreadable images: %v", p.PostID, err)
		}
		if err := json.Unmarshal([]byte(matches), &p.Matches); err != nil {
			log.Printf("Warning: post %d has unreadable matches: %v", p.PostID, err)
		}
		emb, err := DecodeEmbedding(blob)
		if err != nil {
			log.Printf("Warning: post %d has a corrupt embedding: %v", p.PostID, err)
		}
		p.Embedding = emb
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// SaveAll replaces the table contents in one transaction.
func (s *Store) SaveAll(ctx context.Context, posts []database.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM posts"); err != nil {
		return fmt.Errorf("clear posts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO posts (post_id, seq, images, embedding, matches) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range posts {
		images, err := json.Marshal(nonNilStrings(p.Images))
		if err != nil {
			return fmt.Errorf("marshal images for post %d: %w", p.PostID, err)
		}
		matches, err := json.Marshal(nonNilMatches(p.Matches))
		if err != nil {
			return fmt.Errorf("marshal matches for post %d: %w", p.PostID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.PostID, i, string(images), EncodeEmbedding(p.Embedding), string(matches)); err != nil {
			return fmt.Errorf("insert post %d: %w", p.PostID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit posts: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// EncodeEmbedding packs a vector as little-endian float32 values.
func EncodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeEmbedding reverses EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMatches(m []database.Match) []database.Match {
	if m == nil {
		return []database.Match{}
	}
	return m
}

var _ database.PostRepository = (*Store)(nil)
