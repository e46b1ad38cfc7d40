package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// BlobStore stores post images under <post_id>/<uuid><ext>.
type BlobStore struct {
	files FileStore
}

// NewBlobStore wraps a FileStore.
func NewBlobStore(files FileStore) *BlobStore {
	return &BlobStore{files: files}
}

// SaveImage writes data under a fresh key for the post and returns the key.
// The extension of srcName is kept, lower-cased.
func (b *BlobStore) SaveImage(ctx context.Context, postID int64, srcName string, data []byte) (string, error) {
	key := ImageKey(postID, uuid.NewString(), srcName)

	w, err := b.files.Write(ctx, key)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", key, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		_ = b.files.Delete(ctx, key)
		return "", fmt.Errorf("writing %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		_ = b.files.Delete(ctx, key)
		return "", fmt.Errorf("closing %s: %w", key, err)
	}
	return key, nil
}

// DeletePost removes every image stored for the post.
func (b *BlobStore) DeletePost(ctx context.Context, postID int64) error {
	return b.files.DeleteDir(ctx, strconv.FormatInt(postID, 10))
}

// Open returns a reader for a stored image.
func (b *BlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return b.files.Read(ctx, key)
}

// ImageKey builds the storage key for one image of a post.
func ImageKey(postID int64, name, srcName string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(srcName, "\\", "/")))
	return strconv.FormatInt(postID, 10) + "/" + name + ext
}
