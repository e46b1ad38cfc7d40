package database

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0.99, 0.14, 0},
		{0, 1, 0},
		{0.3, -0.7, 0.2},
		{0, 0, 0},
	}
	for i, a := range vectors {
		for j, b := range vectors {
			if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
				t.Errorf("sim(%d,%d) != sim(%d,%d)", i, j, j, i)
			}
		}
	}
}

func TestCosineDistance(t *testing.T) {
	if d := CosineDistance([]float32{1, 0}, []float32{1, 0}); math.Abs(d) > 1e-9 {
		t.Errorf("expected distance 0 for identical vectors, got %v", d)
	}
	if d := CosineDistance([]float32{1}, []float32{1, 2}); d != 2.0 {
		t.Errorf("expected maximum distance for invalid input, got %v", d)
	}
}

func TestRoundSimilarity(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.99005, 0.9901},
		{0.123449, 0.1234},
		{1, 1},
		{0.2, 0.2},
	}
	for _, tc := range tests {
		if got := RoundSimilarity(tc.in); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("RoundSimilarity(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestMeanEmbedding(t *testing.T) {
	mean, err := MeanEmbedding([][]float32{{1, 0, 2}, {3, 2, 0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float32{2, 1, 1}
	for i := range want {
		if mean[i] != want[i] {
			t.Errorf("mean[%d] = %v, want %v", i, mean[i], want[i])
		}
	}

	if _, err := MeanEmbedding([][]float32{{1, 2}, {1}}); err == nil {
		t.Error("expected error for dimension mismatch")
	}
	if _, err := MeanEmbedding(nil); err == nil {
		t.Error("expected error for no vectors")
	}
}

func TestCheckEmbedding(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name    string
		emb     []float32
		dim     int
		wantErr bool
	}{
		{"valid", []float32{1, 2, 3}, 3, false},
		{"any dim", []float32{1, 2}, 0, false},
		{"empty", nil, 3, true},
		{"wrong dim", []float32{1, 2}, 3, true},
		{"nan", []float32{1, nan, 3}, 3, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckEmbedding(tc.emb, tc.dim)
			if (err != nil) != tc.wantErr {
				t.Fatalf("CheckEmbedding() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrCorruptRecord) {
				t.Errorf("expected ErrCorruptRecord, got %v", err)
			}
		})
	}
}

func TestCorpusDimension(t *testing.T) {
	posts := []Post{
		{PostID: 1, Embedding: []float32{1, 2, 3}},
		{PostID: 2, Embedding: []float32{1, 2, 3}},
		{PostID: 3, Embedding: []float32{1, 2}},
		{PostID: 4},
	}
	if got := CorpusDimension(posts); got != 3 {
		t.Errorf("CorpusDimension() = %d, want 3", got)
	}
	if got := CorpusDimension(nil); got != 0 {
		t.Errorf("CorpusDimension(nil) = %d, want 0", got)
	}
}
