package facematch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
)

// MatchOptions are the knobs shared by recompute and search.
type MatchOptions struct {
	Threshold  float64
	CandidateK int
}

// RecomputeMode is the retrieval strategy a recompute pass used.
type RecomputeMode string

const (
	ModeIndex      RecomputeMode = "index"
	ModeExhaustive RecomputeMode = "exhaustive"
)

// RecomputeStats summarizes a recompute pass.
type RecomputeStats struct {
	Mode           RecomputeMode `json:"mode"`
	Posts          int           `json:"posts"`
	Matches        int           `json:"matches"`
	Corrupt        int           `json:"corrupt"`
	IndexFallbacks int           `json:"index_fallbacks"`
}

// ProgressFunc is called after each post is processed.
type ProgressFunc func(done, total int)

// Recompute rewrites the Matches of every post in place. The index, when it
// holds at least one entry, only shortlists candidates; every stored value is
// an exact cosine rounded to 4 decimals and compared unrounded to the threshold.
func Recompute(ctx context.Context, posts []database.Post, index database.SimilarityIndex, opts MatchOptions, progress ProgressFunc) RecomputeStats {
	stats := RecomputeStats{Mode: ModeExhaustive, Posts: len(posts)}

	if index != nil {
		n, err := index.Count(ctx)
		switch {
		case err != nil:
			log.Printf("Warning: index count failed, using exhaustive scan: %v", err)
		case n >= 1:
			stats.Mode = ModeIndex
		}
	}

	dim := database.CorpusDimension(posts)
	valid := make([]bool, len(posts))
	position := make(map[int64]int, len(posts))
	for i := range posts {
		position[posts[i].PostID] = i
		if err := database.CheckEmbedding(posts[i].Embedding, dim); err != nil {
			log.Printf("Warning: post %d skipped: %v", posts[i].PostID, err)
			stats.Corrupt++
			continue
		}
		valid[i] = true
	}

	for i := range posts {
		var found []scoredMatch
		if valid[i] {
			if stats.Mode == ModeIndex {
				var err error
				found, err = indexMatches(ctx, posts, valid, position, i, index, opts)
				if err != nil {
					log.Printf("Warning: post %d falling back to exhaustive scan: %v", posts[i].PostID, err)
					stats.IndexFallbacks++
					found = exhaustiveMatches(posts, valid, i, opts.Threshold)
				}
			} else {
				found = exhaustiveMatches(posts, valid, i, opts.Threshold)
			}
		}
		posts[i].Matches = finalizeMatches(found)
		stats.Matches += len(posts[i].Matches)

		if progress != nil {
			progress(i+1, len(posts))
		}
	}

	return stats
}

type scoredMatch struct {
	pos        int
	postID     int64
	similarity float64
}

func exhaustiveMatches(posts []database.Post, valid []bool, i int, threshold float64) []scoredMatch {
	var out []scoredMatch
	for j := range posts {
		if j == i || !valid[j] || posts[j].PostID == posts[i].PostID {
			continue
		}
		sim := database.CosineSimilarity(posts[i].Embedding, posts[j].Embedding)
		if sim >= threshold {
			out = append(out, scoredMatch{pos: j, postID: posts[j].PostID, similarity: sim})
		}
	}
	return out
}

func indexMatches(ctx context.Context, posts []database.Post, valid []bool, position map[int64]int, i int, index database.SimilarityIndex, opts MatchOptions) ([]scoredMatch, error) {
	candidates, err := index.Query(ctx, posts[i].Embedding, opts.CandidateK)
	if err != nil {
		if !errors.Is(err, database.ErrIndexUnavailable) {
			err = fmt.Errorf("%w: %v", database.ErrIndexUnavailable, err)
		}
		return nil, err
	}

	seen := make(map[int64]bool, len(candidates))
	var out []scoredMatch
	for _, c := range candidates {
		if c.PostID == posts[i].PostID || seen[c.PostID] {
			continue
		}
		seen[c.PostID] = true
		j, ok := position[c.PostID]
		if !ok || !valid[j] {
			continue
		}
		sim := database.CosineSimilarity(posts[i].Embedding, posts[j].Embedding)
		if sim >= opts.Threshold {
			out = append(out, scoredMatch{pos: j, postID: c.PostID, similarity: sim})
		}
	}
	return out, nil
}

// finalizeMatches orders by similarity descending, ties by corpus position,
// so both retrieval strategies produce the same list.
func finalizeMatches(found []scoredMatch) []database.Match {
	slices.SortStableFunc(found, func(a, b scoredMatch) int {
		if c := cmp.Compare(b.similarity, a.similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})
	out := make([]database.Match, len(found))
	for k, m := range found {
		out[k] = database.Match{PostID: m.postID, Similarity: database.RoundSimilarity(m.similarity)}
	}
	return out
}
