package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
	"github.com/pgvector/pgvector-go"
)

// PostRepository stores posts in the posts table.
type PostRepository struct {
	pool *Pool
}

// NewPostRepository creates a repository over pool.
func NewPostRepository(pool *Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

// LoadAll returns all posts in insertion order.
func (r *PostRepository) LoadAll(ctx context.Context) ([]database.Post, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT post_id, images, embedding, matches
		FROM posts
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []database.Post{}
	for rows.Next() {
		var (
			p       database.Post
			images  []byte
			vec     *pgvector.Vector
			matches []byte
		)
		if err := rows.Scan(&p.PostID, &images, &vec, &matches); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		if err := json.Unmarshal(images, &p.Images); err != nil {
			log.Printf("Warning: post %d has unreadable images: %v", p.PostID, err)
		}
		if err := json.Unmarshal(matches, &p.Matches); err != nil {
			log.Printf("Warning: post %d has unreadable matches: %v", p.PostID, err)
		}
		if vec != nil {
			p.Embedding = vec.Slice()
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// SaveAll replaces the table contents in one transaction.
func (r *PostRepository) SaveAll(ctx context.Context, posts []database.Post) error {
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM posts"); err != nil {
		return fmt.Errorf("clear posts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (post_id, seq, images, embedding, matches)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range posts {
		images, err := json.Marshal(orEmpty(p.Images))
		if err != nil {
			return fmt.Errorf("marshal images for post %d: %w", p.PostID, err)
		}
		matches, err := json.Marshal(orEmpty(p.Matches))
		if err != nil {
			return fmt.Errorf("marshal matches for post %d: %w", p.PostID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.PostID, i, images, nullableVector(p.Embedding), matches); err != nil {
			return fmt.Errorf("insert post %d: %w", p.PostID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit posts: %w", err)
	}
	return nil
}

// Close releases the pool.
func (r *PostRepository) Close() error {
	return r.pool.Close()
}

// nullableVector stores empty embeddings as NULL; pgvector rejects zero dimensions.
func nullableVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var _ database.PostRepository = (*PostRepository)(nil)
