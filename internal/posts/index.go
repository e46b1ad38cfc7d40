package posts

import (
	"fmt"
	"log"
	"slices"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
)

// IndexCount returns the number of indexed posts.
func (s *Service) IndexCount() *Future[int] {
	return submit(s, func() (int, error) {
		if s.index == nil {
			return 0, ErrNoIndex
		}
		return s.index.Count(s.ctx)
	})
}

// IndexIDs returns the index keys ("post_<id>") in ascending id order.
func (s *Service) IndexIDs() *Future[[]string] {
	return submit(s, func() ([]string, error) {
		if s.index == nil {
			return nil, ErrNoIndex
		}
		ids, err := s.index.IDs(s.ctx)
		if err != nil {
			return nil, err
		}
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = database.IndexKey(id)
		}
		return keys, nil
	})
}

// RebuildIndex drops the index and re-adds every stored post.
func (s *Service) RebuildIndex() *Future[int] {
	return submit(s, func() (int, error) {
		return s.rebuildIndex()
	})
}

func (s *Service) rebuildIndex() (int, error) {
	if s.index == nil {
		return 0, ErrNoIndex
	}
	if err := s.index.Rebuild(s.ctx, s.posts); err != nil {
		return 0, fmt.Errorf("rebuilding index: %w", err)
	}
	if p, ok := s.index.(database.IndexPersister); ok {
		if err := p.Save(); err != nil {
			log.Printf("Warning: saving index after rebuild: %v", err)
		}
	}
	n, err := s.index.Count(s.ctx)
	if err != nil {
		return 0, err
	}
	log.Printf("Index rebuilt with %d posts", n)
	return n, nil
}

// EnsureIndex rebuilds the index when it is empty but the store is not.
// It reports whether a rebuild happened.
func (s *Service) EnsureIndex() *Future[bool] {
	return submit(s, func() (bool, error) {
		if s.index == nil || len(s.posts) == 0 {
			return false, nil
		}
		n, err := s.index.Count(s.ctx)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, nil
		}
		log.Printf("Index is empty, rebuilding from %d stored posts", len(s.posts))
		if _, err := s.rebuildIndex(); err != nil {
			return false, err
		}
		return true, nil
	})
}

// VerifiedPost compares one stored embedding with its index vector.
type VerifiedPost struct {
	PostID     int64   `json:"post_id"`
	Similarity float64 `json:"similarity"`
	OK         bool    `json:"ok"`
}

// VerifyReport is the outcome of VerifyIndex.
type VerifyReport struct {
	Threshold        float64        `json:"threshold"`
	Posts            []VerifiedPost `json:"posts"`
	Mismatched       int            `json:"mismatched"`
	MissingFromIndex []int64        `json:"missing_from_index"`
	MissingFromStore []int64        `json:"missing_from_store"`
}

// Consistent reports whether both stores agree.
func (r *VerifyReport) Consistent() bool {
	return r.Mismatched == 0 && len(r.MissingFromIndex) == 0 && len(r.MissingFromStore) == 0
}

// VerifyIndex checks every index vector against the stored embedding.
func (s *Service) VerifyIndex() *Future[*VerifyReport] {
	return submit(s, func() (*VerifyReport, error) {
		if s.index == nil {
			return nil, ErrNoIndex
		}
		report := &VerifyReport{
			Threshold:        s.matching.VerifyThreshold,
			Posts:            []VerifiedPost{},
			MissingFromIndex: []int64{},
			MissingFromStore: []int64{},
		}

		ids, err := s.index.IDs(s.ctx)
		if err != nil {
			return nil, err
		}
		indexed := make(map[int64]bool, len(ids))
		for _, id := range ids {
			indexed[id] = true
		}

		stored := make(map[int64]bool, len(s.posts))
		for _, p := range s.posts {
			stored[p.PostID] = true
			if !indexed[p.PostID] {
				report.MissingFromIndex = append(report.MissingFromIndex, p.PostID)
				continue
			}
			vec, ok, err := s.index.Vector(s.ctx, p.PostID)
			if err != nil {
				return nil, err
			}
			if !ok {
				report.MissingFromIndex = append(report.MissingFromIndex, p.PostID)
				continue
			}
			sim := database.CosineSimilarity(p.Embedding, vec)
			v := VerifiedPost{PostID: p.PostID, Similarity: database.RoundSimilarity(sim), OK: sim >= report.Threshold}
			if !v.OK {
				report.Mismatched++
				log.Printf("Warning: post %d index vector differs from stored embedding (similarity %.4f)", p.PostID, sim)
			}
			report.Posts = append(report.Posts, v)
		}
		for _, id := range ids {
			if !stored[id] {
				report.MissingFromStore = append(report.MissingFromStore, id)
			}
		}
		slices.Sort(report.MissingFromIndex)
		return report, nil
	})
}
