package handlers

import (
	"log"
	"net/http"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/facematch"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/posts"
)

// SearchHandler handles face search
type SearchHandler struct {
	service *posts.Service
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(svc *posts.Service) *SearchHandler {
	return &SearchHandler{service: svc}
}

// SearchResultView is one ranked post.
type SearchResultView struct {
	PostID         int64          `json:"post_id"`
	Similarity     float64        `json:"similarity"`
	BestImageIndex int            `json:"best_image_index"`
	Band           facematch.Band `json:"band"`
	Images         []string       `json:"images"`
	ImageURLs      []string       `json:"image_urls"`
}

// Search ranks stored posts against the uploaded probe images
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	images, err := parseImageUpload(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.service.Search(r.Context(), images)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	matching := h.service.Matching()
	views := make([]SearchResultView, len(results))
	for i, res := range results {
		post := newPostView(res.Post, matching, false)
		views[i] = SearchResultView{
			PostID:         res.Post.PostID,
			Similarity:     res.Similarity,
			BestImageIndex: res.BestImageIndex,
			Band:           facematch.Classify(res.Similarity, matching.OutlierHigh, matching.OutlierLow),
			Images:         post.Images,
			ImageURLs:      post.ImageURLs,
		}
	}

	log.Printf("Search with %d images returned %d results", len(images), len(views))
	respondJSON(w, http.StatusOK, map[string]any{
		"threshold": matching.SimilarityThreshold,
		"count":     len(views),
		"results":   views,
	})
}
