package jsonstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
)

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "posts.json"))
	posts, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("expected empty store, got %d posts", len(posts))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "posts.json")
	s := New(path)

	in := []database.Post{
		{PostID: 1, Images: []string{"1/a.jpg"}, Embedding: []float32{1, 0, 0}, Matches: []database.Match{{PostID: 2, Similarity: 0.9901}}},
		{PostID: 2, Embedding: []float32{0.99, 0.14, 0}},
	}
	if err := s.SaveAll(ctx, in); err != nil {
		t.Fatalf("SaveAll() error: %v", err)
	}

	out, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(out))
	}
	if out[0].PostID != 1 || out[0].Matches[0].PostID != 2 || out[0].Matches[0].Similarity != 0.9901 {
		t.Errorf("unexpected first post: %+v", out[0])
	}
	if out[1].Images == nil || out[1].Matches == nil {
		t.Errorf("expected empty slices, not nil: %+v", out[1])
	}
}

func TestSaveFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	s := New(path)
	if err := s.SaveAll(context.Background(), []database.Post{{PostID: 7, Embedding: []float32{0.5}}}); err != nil {
		t.Fatalf("SaveAll() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	text := string(data)
	for _, want := range []string{"\n  {\n    \"post_id\": 7,", "\"images\": []", "\"matches\": []"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, text)
		}
	}
}

func TestLoadCorruptEmbedding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	doc := `[
  {"post_id": 1, "images": [], "embedding": [1, 0], "matches": []},
  {"post_id": 2, "images": ["2/x.jpg"], "embedding": "garbage", "matches": []}
]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	posts, err := New(path).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected both records to load, got %d", len(posts))
	}
	if len(posts[1].Embedding) != 0 || posts[1].Images[0] != "2/x.jpg" {
		t.Errorf("unexpected corrupt record: %+v", posts[1])
	}
}

func TestLoadUnparsableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := New(path).LoadAll(context.Background())
	if !errors.Is(err, database.ErrCorruptRecord) {
		t.Errorf("expected ErrCorruptRecord, got %v", err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "posts.json"))
	for i := range 3 {
		if err := s.SaveAll(context.Background(), []database.Post{{PostID: int64(i + 1)}}); err != nil {
			t.Fatalf("SaveAll() error: %v", err)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only posts.json in dir, found %d entries", len(entries))
	}
}
