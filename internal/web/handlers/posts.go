package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/config"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/facematch"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/posts"
)

// MatchView is a stored match with its display band.
type MatchView struct {
	PostID     int64          `json:"post_id"`
	Similarity float64        `json:"similarity"`
	Band       facematch.Band `json:"band"`
}

// PostView is the JSON form of a post.
type PostView struct {
	PostID    int64       `json:"post_id"`
	Images    []string    `json:"images"`
	ImageURLs []string    `json:"image_urls"`
	Embedding []float32   `json:"embedding,omitempty"`
	Matches   []MatchView `json:"matches"`
}

// AddResultView is the JSON form of a completed add.
type AddResultView struct {
	Post      PostView                 `json:"post"`
	Selection facematch.Selection      `json:"selection"`
	Dropped   int                      `json:"dropped_images"`
	Recompute facematch.RecomputeStats `json:"recompute"`
}

// imageURL is the API path that serves a stored image.
func imageURL(key string) string {
	return "/api/v1/images/" + strings.TrimPrefix(key, "/")
}

func newPostView(p database.Post, m config.MatchingConfig, withEmbedding bool) PostView {
	v := PostView{
		PostID:    p.PostID,
		Images:    p.Images,
		ImageURLs: make([]string, len(p.Images)),
		Matches:   make([]MatchView, len(p.Matches)),
	}
	if v.Images == nil {
		v.Images = []string{}
	}
	for i, key := range p.Images {
		v.ImageURLs[i] = imageURL(key)
	}
	for i, match := range p.Matches {
		v.Matches[i] = MatchView{
			PostID:     match.PostID,
			Similarity: match.Similarity,
			Band:       facematch.Classify(match.Similarity, m.OutlierHigh, m.OutlierLow),
		}
	}
	if withEmbedding {
		v.Embedding = p.Embedding
	}
	return v
}

// PostsHandler handles post endpoints
type PostsHandler struct {
	service    *posts.Service
	jobManager *JobManager
}

// NewPostsHandler creates a new posts handler
func NewPostsHandler(svc *posts.Service, jm *JobManager) *PostsHandler {
	return &PostsHandler{
		service:    svc,
		jobManager: jm,
	}
}

// List returns every post, newest id first
func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.List().Wait(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	matching := h.service.Matching()
	views := make([]PostView, len(all))
	for i, p := range all {
		views[i] = newPostView(p, matching, false)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(views),
		"posts": views,
	})
}

// Get returns one post including its embedding
func (h *PostsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := postIDParam(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	p, err := h.service.Get(id).Wait(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newPostView(p, h.service.Matching(), true))
}

// Create accepts a multipart post (post_id plus images) and runs the add as a job
func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	images, err := parseImageUpload(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rawID := r.FormValue("post_id")
	postID, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "post_id must be an integer")
		return
	}

	req := posts.AddRequest{PostID: postID, Images: images}
	if err := h.service.CheckAdd(req); err != nil {
		respondServiceError(w, err)
		return
	}

	job := h.jobManager.CreateJob(uuid.New().String(), postID)
	req.Progress = job.setStage
	future := h.service.Add(req)
	go h.runAddJob(job, future)

	log.Printf("Add job %s started for post %d with %d images", job.ID, postID, len(images))
	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":  job.ID,
		"post_id": postID,
		"status":  string(JobStatusPending),
	})
}

// runAddJob waits for the add to finish and records the outcome on the job
func (h *PostsHandler) runAddJob(job *AddJob, future *posts.Future[*posts.AddResult]) {
	res, err := future.Wait(context.Background())
	if err != nil {
		log.Printf("Add job %s for post %d failed: %v", job.ID, job.PostID, err)
		job.fail(err.Error(), statusForError(err))
		return
	}

	job.complete(&AddResultView{
		Post:      newPostView(res.Post, h.service.Matching(), false),
		Selection: res.Selection,
		Dropped:   res.Dropped,
		Recompute: res.Recompute,
	})
}

// JobStatus returns the state of an add job
func (h *PostsHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	respondJSON(w, http.StatusOK, job.View())
}

// JobEvents streams add job events via SSE
func (h *PostsHandler) JobEvents(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*AddJob).View()
		},
	)
}

// Delete removes a post, recomputes every match and removes its images
func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := postIDParam(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	stats, err := h.service.Delete(id).Wait(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"deleted":   id,
		"recompute": stats,
	})
}

// Recompute rebuilds every post's matches
func (h *PostsHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Recompute(nil).Wait(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
