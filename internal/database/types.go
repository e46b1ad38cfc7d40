package database

import (
	"fmt"
	"strconv"
	"strings"
)

// Post is one missing-person record. Matches is derived from the embeddings of
// all posts and is rewritten by every recompute.
type Post struct {
	PostID    int64     `json:"post_id"`
	Images    []string  `json:"images"`
	Embedding []float32 `json:"embedding"`
	Matches   []Match   `json:"matches"`
}

// Match is a cached similarity between a post and another post.
type Match struct {
	PostID     int64   `json:"post_id"`
	Similarity float64 `json:"similarity"`
}

// IndexMetadata is stored alongside each vector in a similarity index.
type IndexMetadata struct {
	PostID    int64 `json:"post_id"`
	NumImages int   `json:"num_images"`
}

// Candidate is a shortlisted post returned by a similarity index.
// Distance is the index's own metric and is never used for ranking.
type Candidate struct {
	PostID   int64
	Distance float64
}

// IndexKey formats the external key used for a post in similarity indexes.
func IndexKey(postID int64) string {
	return "post_" + strconv.FormatInt(postID, 10)
}

// ParseIndexKey reverses IndexKey.
func ParseIndexKey(key string) (int64, error) {
	raw, ok := strings.CutPrefix(key, "post_")
	if !ok {
		return 0, fmt.Errorf("invalid index key %q", key)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid index key %q: %w", key, err)
	}
	return id, nil
}

// FindPost returns the post with the given id, or nil.
func FindPost(posts []Post, postID int64) *Post {
	for i := range posts {
		if posts[i].PostID == postID {
			return &posts[i]
		}
	}
	return nil
}

// ClonePosts deep-copies posts so callers can mutate the result freely.
func ClonePosts(posts []Post) []Post {
	out := make([]Post, len(posts))
	for i, p := range posts {
		out[i] = Post{
			PostID:    p.PostID,
			Images:    append([]string(nil), p.Images...),
			Embedding: append([]float32(nil), p.Embedding...),
			Matches:   append([]Match(nil), p.Matches...),
		}
	}
	return out
}
