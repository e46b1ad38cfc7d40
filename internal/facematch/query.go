package facematch

import (
	"cmp"
	"context"
	"log"
	"slices"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
)

// Result is one post returned by Search.
type Result struct {
	Post           database.Post
	Similarity     float64
	BestImageIndex int // 1-based position of the probe image that scored highest
}

// Search scores every probe against the corpus and keeps, per post, the best
// similarity over all probes. Candidates come from the index when it is
// populated and from the whole corpus otherwise, or when a query fails.
func Search(ctx context.Context, probes []Probe, posts []database.Post, index database.SimilarityIndex, opts MatchOptions) ([]Result, error) {
	if len(probes) == 0 {
		return nil, ErrNoFaceDetected
	}

	useIndex := false
	if index != nil {
		n, err := index.Count(ctx)
		if err != nil {
			log.Printf("Warning: index count failed, using linear search: %v", err)
		}
		useIndex = err == nil && n > 0
	}

	dim := database.CorpusDimension(posts)
	position := make(map[int64]int, len(posts))
	for i := range posts {
		position[posts[i].PostID] = i
	}

	type best struct {
		pos   int
		sim   float64
		image int
	}
	bestByPost := make(map[int64]*best)
	var order []int64

	for _, probe := range probes {
		candidates := allPositions(len(posts))
		if useIndex {
			if shortlist, err := indexPositions(ctx, index, probe.Embedding, opts.CandidateK, position); err != nil {
				log.Printf("Warning: index query failed for image %d, using linear search: %v", probe.ImageIndex+1, err)
			} else {
				candidates = shortlist
			}
		}

		for _, j := range candidates {
			p := &posts[j]
			if err := database.CheckEmbedding(p.Embedding, dim); err != nil {
				log.Printf("Warning: post %d skipped: %v", p.PostID, err)
				continue
			}
			sim := database.CosineSimilarity(probe.Embedding, p.Embedding)
			b, ok := bestByPost[p.PostID]
			if !ok {
				bestByPost[p.PostID] = &best{pos: j, sim: sim, image: probe.ImageIndex + 1}
				order = append(order, p.PostID)
				continue
			}
			if sim > b.sim {
				b.sim = sim
				b.image = probe.ImageIndex + 1
			}
		}
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		b := bestByPost[id]
		if b.sim < opts.Threshold {
			continue
		}
		results = append(results, Result{
			Post:           posts[b.pos],
			Similarity:     b.sim,
			BestImageIndex: b.image,
		})
	}
	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	return results, nil
}

func allPositions(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// indexPositions maps an index shortlist to corpus positions, dropping ids the
// corpus no longer holds.
func indexPositions(ctx context.Context, index database.SimilarityIndex, emb []float32, k int, position map[int64]int) ([]int, error) {
	candidates, err := index.Query(ctx, emb, k)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(candidates))
	seen := make(map[int64]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.PostID] {
			continue
		}
		seen[c.PostID] = true
		j, ok := position[c.PostID]
		if !ok {
			log.Printf("Warning: index returned unknown post %d", c.PostID)
			continue
		}
		out = append(out, j)
	}
	return out, nil
}
