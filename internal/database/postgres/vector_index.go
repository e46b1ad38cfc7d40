package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
	"github.com/pgvector/pgvector-go"
)

// VectorIndex is a SimilarityIndex over the post_index table using pgvector's cosine operator.
type VectorIndex struct {
	pool *Pool
}

// NewVectorIndex creates an index over pool.
func NewVectorIndex(pool *Pool) *VectorIndex {
	return &VectorIndex{pool: pool}
}

// Add inserts or replaces a post vector.
func (x *VectorIndex) Add(ctx context.Context, postID int64, embedding []float32, meta database.IndexMetadata) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding for post %d", database.ErrIndexUnavailable, postID)
	}
	_, err := x.pool.db.ExecContext(ctx, `
		INSERT INTO post_index (post_key, post_id, num_images, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (post_key) DO UPDATE
		SET num_images = EXCLUDED.num_images, embedding = EXCLUDED.embedding
	`, database.IndexKey(postID), postID, meta.NumImages, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("%w: upsert post %d: %v", database.ErrIndexUnavailable, postID, err)
	}
	return nil
}

// Delete removes a post vector.
func (x *VectorIndex) Delete(ctx context.Context, postID int64) error {
	if _, err := x.pool.db.ExecContext(ctx, "DELETE FROM post_index WHERE post_key = $1", database.IndexKey(postID)); err != nil {
		return fmt.Errorf("%w: delete post %d: %v", database.ErrIndexUnavailable, postID, err)
	}
	return nil
}

// Query returns the k nearest vectors of the same dimension.
func (x *VectorIndex) Query(ctx context.Context, embedding []float32, k int) ([]database.Candidate, error) {
	tx, err := x.pool.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %v", database.ErrIndexUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, fmt.Errorf("%w: set ef_search: %v", database.ErrIndexUnavailable, err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT post_key, embedding <=> $1::vector AS distance
		FROM post_index
		WHERE vector_dims(embedding) = vector_dims($1::vector)
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("%w: query similar posts: %v", database.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var out []database.Candidate
	for rows.Next() {
		var (
			key  string
			dist float64
		)
		if err := rows.Scan(&key, &dist); err != nil {
			return nil, fmt.Errorf("%w: scan candidate: %v", database.ErrIndexUnavailable, err)
		}
		id, err := database.ParseIndexKey(key)
		if err != nil {
			continue
		}
		out = append(out, database.Candidate{PostID: id, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate candidates: %v", database.ErrIndexUnavailable, err)
	}
	return out, nil
}

// Count returns the number of indexed posts.
func (x *VectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM post_index").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", database.ErrIndexUnavailable, err)
	}
	return n, nil
}

// Rebuild replaces the table contents with posts in one transaction.
func (x *VectorIndex) Rebuild(ctx context.Context, posts []database.Post) error {
	dim := database.CorpusDimension(posts)

	tx, err := x.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", database.ErrIndexUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM post_index"); err != nil {
		return fmt.Errorf("%w: clear index: %v", database.ErrIndexUnavailable, err)
	}
	for _, p := range posts {
		if database.CheckEmbedding(p.Embedding, dim) != nil {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO post_index (post_key, post_id, num_images, embedding) VALUES ($1, $2, $3, $4)",
			database.IndexKey(p.PostID), p.PostID, len(p.Images), pgvector.NewVector(p.Embedding),
		); err != nil {
			return fmt.Errorf("%w: insert post %d: %v", database.ErrIndexUnavailable, p.PostID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit rebuild: %v", database.ErrIndexUnavailable, err)
	}
	return nil
}

// IDs returns indexed post ids in ascending order.
func (x *VectorIndex) IDs(ctx context.Context) ([]int64, error) {
	rows, err := x.pool.db.QueryContext(ctx, "SELECT post_id FROM post_index ORDER BY post_id")
	if err != nil {
		return nil, fmt.Errorf("%w: query ids: %v", database.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan id: %v", database.ErrIndexUnavailable, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate ids: %v", database.ErrIndexUnavailable, err)
	}
	return ids, nil
}

// Vector returns the stored vector for a post.
func (x *VectorIndex) Vector(ctx context.Context, postID int64) ([]float32, bool, error) {
	var vec pgvector.Vector
	err := x.pool.db.QueryRowContext(ctx, "SELECT embedding FROM post_index WHERE post_key = $1", database.IndexKey(postID)).Scan(&vec)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get post %d: %v", database.ErrIndexUnavailable, postID, err)
	}
	return vec.Slice(), true, nil
}

var _ database.SimilarityIndex = (*VectorIndex)(nil)
