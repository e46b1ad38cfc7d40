package posts

import (
	"fmt"
	"log"
	"slices"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/facematch"
)

// Delete removes a post from the index, the blob store and the record store,
// then recomputes every remaining post's matches.
func (s *Service) Delete(postID int64) *Future[facematch.RecomputeStats] {
	return submit(s, func() (facematch.RecomputeStats, error) {
		existing := database.FindPost(s.posts, postID)
		if existing == nil {
			return facematch.RecomputeStats{}, fmt.Errorf("post %d: %w", postID, database.ErrNotFound)
		}
		removed := *existing

		working := slices.DeleteFunc(database.ClonePosts(s.posts), func(p database.Post) bool {
			return p.PostID == postID
		})

		s.indexDelete(postID)
		stats := facematch.Recompute(s.ctx, working, s.index, s.matchOptions(), nil)

		if err := s.repo.SaveAll(s.ctx, working); err != nil {
			s.indexAdd(removed)
			return stats, fmt.Errorf("saving posts: %w", err)
		}
		s.posts = working

		// Images go last so a failed save leaves the post intact.
		if err := s.blobs.DeletePost(s.ctx, postID); err != nil {
			log.Printf("Warning: post %d: removing images: %v", postID, err)
		}
		log.Printf("Deleted post %d, %d posts remain", postID, len(working))
		return stats, nil
	})
}
