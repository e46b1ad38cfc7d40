package posts

import (
	"errors"
	"fmt"
	"log"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/facematch"
)

// ImageInput is one uploaded image.
type ImageInput struct {
	Name string // original file name, used for the stored extension
	Data []byte
}

// AddRequest describes a new post.
type AddRequest struct {
	PostID int64
	Images []ImageInput
	// Progress, if set, receives human-readable status lines.
	Progress func(message string)
}

// AddResult is the outcome of a successful add.
type AddResult struct {
	Post      database.Post            `json:"post"`
	Selection facematch.Selection      `json:"selection"`
	Dropped   int                      `json:"dropped_images"`
	Recompute facematch.RecomputeStats `json:"recompute"`
}

func (r *AddRequest) report(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("Post %d: %s", r.PostID, msg)
	if r.Progress != nil {
		r.Progress(msg)
	}
}

// Add creates a post. Face extraction runs off the actor; the commit (blob
// copy, append, index add, full recompute, save) runs on it. Nothing is
// mutated unless at least one face is found and the id is new.
func (s *Service) Add(req AddRequest) *Future[*AddResult] {
	if err := s.CheckAdd(req); err != nil {
		return resolvedFuture[*AddResult](nil, err)
	}

	result := newFuture[*AddResult]()
	go func() {
		res, err := s.add(&req)
		result.resolve(res, err)
	}()
	return result
}

// CheckAdd runs the checks Add makes before any work starts: a positive post
// id, 1 to MaxImages images and an available extractor.
func (s *Service) CheckAdd(req AddRequest) error {
	if req.PostID <= 0 {
		return fmt.Errorf("%w: post id must be positive, got %d", ErrInvalidInput, req.PostID)
	}
	if err := s.validateImages(req.Images); err != nil {
		return err
	}
	return s.extractorAvailable()
}

func (s *Service) add(req *AddRequest) (*AddResult, error) {
	exists, err := submit(s, func() (bool, error) {
		return database.FindPost(s.posts, req.PostID) != nil, nil
	}).Wait(s.ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("post %d: %w", req.PostID, database.ErrDuplicatePostID)
	}

	req.report("extracting faces from %d images", len(req.Images))
	data := make([][]byte, len(req.Images))
	for i, img := range req.Images {
		data[i] = img.Data
	}
	extraction, err := facematch.ExtractProbes(s.ctx, s.extractor, data)
	if err != nil {
		if errors.Is(err, facematch.ErrNoFaceDetected) {
			req.report("no face detected")
		}
		return nil, err
	}
	req.report("%d of %d images have a face", len(extraction.Probes), len(req.Images))

	return submit(s, func() (*AddResult, error) {
		return s.commitAdd(req, extraction)
	}).Wait(s.ctx)
}

func (s *Service) commitAdd(req *AddRequest, extraction *facematch.Extraction) (*AddResult, error) {
	// Another add for the same id may have committed while we were extracting.
	if database.FindPost(s.posts, req.PostID) != nil {
		return nil, fmt.Errorf("post %d: %w", req.PostID, database.ErrDuplicatePostID)
	}

	embedding, selection, err := facematch.SelectRepresentative(extraction.Embeddings(), s.posts, s.matching.SimilarityThreshold)
	if err != nil {
		return nil, err
	}
	req.report("representative embedding: %s", selection.Method)

	post := database.Post{PostID: req.PostID, Images: []string{}, Embedding: embedding}
	dropped := 0
	for i, img := range req.Images {
		if !extraction.Decodable(i) {
			dropped++
			continue
		}
		key, err := s.blobs.SaveImage(s.ctx, req.PostID, img.Name, img.Data)
		if err != nil {
			log.Printf("Warning: post %d: image %d not stored: %v", req.PostID, i+1, err)
			dropped++
			continue
		}
		post.Images = append(post.Images, key)
	}

	working := append(database.ClonePosts(s.posts), post)
	s.indexAdd(post)

	req.report("recomputing matches for %d posts", len(working))
	stats := facematch.Recompute(s.ctx, working, s.index, s.matchOptions(), nil)

	if err := s.repo.SaveAll(s.ctx, working); err != nil {
		s.indexDelete(post.PostID)
		if derr := s.blobs.DeletePost(s.ctx, post.PostID); derr != nil {
			log.Printf("Warning: post %d: removing images after failed save: %v", post.PostID, derr)
		}
		return nil, fmt.Errorf("saving posts: %w", err)
	}
	s.posts = working

	saved := database.ClonePosts(working[len(working)-1:])[0]
	req.report("saved with %d matches", len(saved.Matches))
	return &AddResult{Post: saved, Selection: selection, Dropped: dropped, Recompute: stats}, nil
}
