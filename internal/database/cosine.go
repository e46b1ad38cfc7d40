package database

import (
	"fmt"
	"math"
)

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
// Cosine distance = 1 - cosine similarity
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}
	return 1 - CosineSimilarity(a, b)
}

// CosineSimilarity returns the cosine of the angle between a and b.
// It is 0 when either vector is all zeros or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}

// RoundSimilarity rounds to the 4 decimal places kept in stored matches.
func RoundSimilarity(s float64) float64 {
	return math.Round(s*10000) / 10000
}

// MeanEmbedding returns the element-wise arithmetic mean of the vectors.
// All vectors must share the same dimension.
func MeanEmbedding(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("mean of zero vectors")
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("dimension mismatch: %d != %d", len(v), dim)
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	mean := make([]float32, dim)
	n := float64(len(vectors))
	for i := range sum {
		mean[i] = float32(sum[i] / n)
	}
	return mean, nil
}

// CheckEmbedding validates a stored embedding against the expected dimension.
// A dim of 0 accepts any non-empty length.
func CheckEmbedding(emb []float32, dim int) error {
	if len(emb) == 0 {
		return fmt.Errorf("%w: empty embedding", ErrCorruptRecord)
	}
	if dim > 0 && len(emb) != dim {
		return fmt.Errorf("%w: dimension %d, expected %d", ErrCorruptRecord, len(emb), dim)
	}
	for _, x := range emb {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("%w: non-finite value", ErrCorruptRecord)
		}
	}
	return nil
}

// CorpusDimension returns the most common embedding length across posts.
// Ties resolve to the larger dimension.
func CorpusDimension(posts []Post) int {
	counts := make(map[int]int)
	for _, p := range posts {
		if n := len(p.Embedding); n > 0 {
			counts[n]++
		}
	}
	best, bestCount := 0, 0
	for dim, c := range counts {
		if c > bestCount || (c == bestCount && dim > best) {
			best, bestCount = dim, c
		}
	}
	return best
}
