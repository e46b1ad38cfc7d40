//go:build integration

package qdrant

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) *Index {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "qdrant/qdrant:v1.16.2",
		ExposedPorts: []string{"6333/tcp", "6334/tcp"},
		WaitingFor: wait.ForListeningPort("6334/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6334")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	idx, err := New(ctx, fmt.Sprintf("http://%s:%s", host, port.Port()), "posts_test")
	if err != nil {
		t.Fatalf("Failed to connect to Qdrant: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndex_Integration(t *testing.T) {
	idx := setupTestContainer(t)
	ctx := context.Background()

	if n, err := idx.Count(ctx); err != nil || n != 0 {
		t.Fatalf("Count on missing collection = %d, %v; want 0, nil", n, err)
	}

	vectors := map[int64][]float32{
		1: {1, 0, 0},
		2: {0, 1, 0},
		3: {0.8, 0.6, 0},
	}
	for id, v := range vectors {
		if err := idx.Add(ctx, id, v, database.IndexMetadata{PostID: id, NumImages: 1}); err != nil {
			t.Fatalf("Add(%d) failed: %v", id, err)
		}
	}

	n, err := idx.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 points, got %d", n)
	}

	candidates, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(candidates) != 2 || candidates[0].PostID != 1 || candidates[1].PostID != 3 {
		t.Errorf("unexpected candidates: %+v", candidates)
	}

	if err := idx.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := idx.Delete(ctx, 99); err != nil {
		t.Errorf("deleting an unknown post should not fail: %v", err)
	}

	ids, err := idx.IDs(ctx)
	if err != nil {
		t.Fatalf("IDs failed: %v", err)
	}
	if !slices.Equal(ids, []int64{1, 3}) {
		t.Errorf("expected ids [1 3], got %v", ids)
	}

	got, ok, err := idx.Vector(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Vector(1) = %v, %v", ok, err)
	}
	if sim := database.CosineSimilarity(got, vectors[1]); sim < 0.9999 {
		t.Errorf("stored vector drifted, similarity %f", sim)
	}
}

func TestIndex_RebuildIntegration(t *testing.T) {
	idx := setupTestContainer(t)
	ctx := context.Background()

	if err := idx.Add(ctx, 7, []float32{0, 0, 1}, database.IndexMetadata{PostID: 7}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	posts := []database.Post{
		{PostID: 1, Images: []string{"1/a.jpg"}, Embedding: []float32{1, 0}},
		{PostID: 2, Images: []string{"2/a.jpg"}, Embedding: nil},
		{PostID: 3, Images: []string{"3/a.jpg"}, Embedding: []float32{0, 1}},
	}
	if err := idx.Rebuild(ctx, posts); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	ids, err := idx.IDs(ctx)
	if err != nil {
		t.Fatalf("IDs failed: %v", err)
	}
	if !slices.Equal(ids, []int64{1, 3}) {
		t.Errorf("expected rebuilt ids [1 3], got %v", ids)
	}
}
