package storage

import (
	"context"
	"regexp"
	"testing"
)

func TestImageKey(t *testing.T) {
	tests := []struct {
		name     string
		srcName  string
		expected string
	}{
		{"lower-cases extension", "Photo.JPG", "42/abc.jpg"},
		{"keeps png", "/tmp/x/face.png", "42/abc.png"},
		{"windows path", `C:\Users\op\face.JPeG`, "42/abc.jpeg"},
		{"no extension", "upload", "42/abc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ImageKey(42, "abc", tc.srcName); got != tc.expected {
				t.Errorf("ImageKey() = %q; want %q", got, tc.expected)
			}
		})
	}
}

func TestBlobStore_SaveOpenDelete(t *testing.T) {
	blobs := NewBlobStore(newTestLocal(t))
	ctx := context.Background()

	key, err := blobs.SaveImage(ctx, 9, "Face.PNG", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("SaveImage() error: %v", err)
	}
	if !regexp.MustCompile(`^9/[0-9a-f-]{36}\.png$`).MatchString(key) {
		t.Errorf("unexpected key %q", key)
	}

	r, err := blobs.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	r.Close()

	if err := blobs.DeletePost(ctx, 9); err != nil {
		t.Fatalf("DeletePost() error: %v", err)
	}
	if _, err := blobs.Open(ctx, key); err == nil {
		t.Error("expected image to be gone after DeletePost")
	}
}

func TestBlobStore_UniqueKeys(t *testing.T) {
	blobs := NewBlobStore(newTestLocal(t))
	ctx := context.Background()

	a, err := blobs.SaveImage(ctx, 1, "a.jpg", []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := blobs.SaveImage(ctx, 1, "a.jpg", []byte("b"))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("expected distinct keys, got %q twice", a)
	}
}

func TestBlobStore_UploadErrorCleansUp(t *testing.T) {
	mock := newMockS3()
	mock.putErr = &apiError{code: "AccessDenied", msg: "denied"}
	blobs := NewBlobStore(NewS3(mock, "posts", ""))

	if _, err := blobs.SaveImage(context.Background(), 1, "a.jpg", []byte("a")); err == nil {
		t.Fatal("expected error")
	}
	if keys := mock.keys(); len(keys) != 0 {
		t.Errorf("expected no stored objects, got %v", keys)
	}
}
