package handlers

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/storage"
)

// ImagesHandler serves stored post images
type ImagesHandler struct {
	blobs *storage.BlobStore
}

// NewImagesHandler creates a new images handler
func NewImagesHandler(blobs *storage.BlobStore) *ImagesHandler {
	return &ImagesHandler{blobs: blobs}
}

// Serve streams the image stored under the wildcard key
func (h *ImagesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := path.Clean("/" + chi.URLParam(r, "*"))
	key = strings.TrimPrefix(key, "/")
	if key == "" || key == "." {
		respondError(w, http.StatusBadRequest, "missing image key")
		return
	}

	rc, err := h.blobs.Open(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			respondError(w, http.StatusNotFound, "image not found")
		case errors.Is(err, fs.ErrPermission):
			respondError(w, http.StatusBadRequest, "invalid image key")
		default:
			log.Printf("Failed to open image %s: %v", sanitizeForLog(key), err)
			respondError(w, http.StatusInternalServerError, "failed to open image")
		}
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("Failed to stream image %s: %v", sanitizeForLog(key), err)
	}
}
