// Package facematch turns face embeddings into post matches: representative
// selection, full match recomputation and multi-image search.
package facematch

import (
	"cmp"
	"fmt"
	"log"
	"slices"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
)

// SelectionMethod records how a representative embedding was chosen.
type SelectionMethod string

const (
	SelectSingle SelectionMethod = "single" // only one image had a face
	SelectBest   SelectionMethod = "best"   // the candidate closest to the corpus
	SelectMean   SelectionMethod = "mean"   // element-wise mean of all candidates
)

// Selection describes the outcome of SelectRepresentative.
type Selection struct {
	Method SelectionMethod `json:"method"`
	Index  int             `json:"index"` // candidate position for single/best, -1 for mean
	Score  float64         `json:"score"` // best corpus similarity for best/mean, 0 otherwise
}

// SelectRepresentative picks one embedding for a new post. With several
// candidates, the one with the highest similarity to any stored post is used
// verbatim if that similarity reaches threshold; otherwise (or when the corpus
// is empty) the candidates are averaged. Corrupt corpus entries are ignored.
func SelectRepresentative(candidates [][]float32, corpus []database.Post, threshold float64) ([]float32, Selection, error) {
	switch len(candidates) {
	case 0:
		return nil, Selection{}, ErrNoFaceDetected
	case 1:
		return candidates[0], Selection{Method: SelectSingle}, nil
	}

	usable := usableEmbeddings(corpus)
	if len(usable) == 0 {
		mean, err := database.MeanEmbedding(candidates)
		if err != nil {
			return nil, Selection{}, fmt.Errorf("averaging candidates: %w", err)
		}
		log.Printf("No stored posts, using mean of %d embeddings", len(candidates))
		return mean, Selection{Method: SelectMean, Index: -1}, nil
	}

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{index: i, score: maxSimilarity(c, usable)}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	best := ranked[0]
	if best.score >= threshold {
		log.Printf("Selected image %d with similarity %.4f", best.index+1, best.score)
		return candidates[best.index], Selection{Method: SelectBest, Index: best.index, Score: best.score}, nil
	}

	mean, err := database.MeanEmbedding(candidates)
	if err != nil {
		return nil, Selection{}, fmt.Errorf("averaging candidates: %w", err)
	}
	log.Printf("All images below %.2f (best %.4f), using mean", threshold, best.score)
	return mean, Selection{Method: SelectMean, Index: -1, Score: best.score}, nil
}

// maxSimilarity is the highest cosine between emb and any vector, floored at 0.
func maxSimilarity(emb []float32, vectors [][]float32) float64 {
	var best float64
	for _, v := range vectors {
		if sim := database.CosineSimilarity(emb, v); sim > best {
			best = sim
		}
	}
	return best
}

func usableEmbeddings(posts []database.Post) [][]float32 {
	dim := database.CorpusDimension(posts)
	out := make([][]float32, 0, len(posts))
	for _, p := range posts {
		if database.CheckEmbedding(p.Embedding, dim) == nil {
			out = append(out, p.Embedding)
		}
	}
	return out
}
