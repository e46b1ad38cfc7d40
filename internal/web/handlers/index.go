package handlers

import (
	"net/http"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/posts"
)

// IndexHandler handles similarity index maintenance endpoints
type IndexHandler struct {
	service *posts.Service
	backend string
}

// NewIndexHandler creates a new index handler. backend names the configured
// index implementation.
func NewIndexHandler(svc *posts.Service, backend string) *IndexHandler {
	return &IndexHandler{service: svc, backend: backend}
}

// Status returns the backend name and the number of indexed posts
func (h *IndexHandler) Status(w http.ResponseWriter, r *http.Request) {
	if !h.service.HasIndex() {
		respondJSON(w, http.StatusOK, map[string]any{"backend": "none", "count": 0})
		return
	}

	count, err := h.service.IndexCount().Wait(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"backend": h.backend, "count": count})
}

// IDs lists the index keys
func (h *IndexHandler) IDs(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.IndexIDs().Wait(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"count": len(ids), "ids": ids})
}

// Rebuild drops the index and re-adds every stored post
func (h *IndexHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.RebuildIndex().Wait(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"rebuilt": true, "count": count})
}

// Verify compares index vectors with stored embeddings
func (h *IndexHandler) Verify(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.VerifyIndex().Wait(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"consistent": report.Consistent(),
		"report":     report,
	})
}
