package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	postsHandler := handlers.NewPostsHandler(s.service, s.jobManager)
	searchHandler := handlers.NewSearchHandler(s.service)
	indexHandler := handlers.NewIndexHandler(s.service, s.config.Index.Backend)
	imagesHandler := handlers.NewImagesHandler(s.blobs)
	configHandler := handlers.NewConfigHandler(s.config, s.extractor)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", configHandler.Get)

		// Posts
		r.Get("/posts", postsHandler.List)
		r.Post("/posts", postsHandler.Create)
		r.Get("/posts/{id}", postsHandler.Get)
		r.Delete("/posts/{id}", postsHandler.Delete)

		// Add jobs
		r.Get("/jobs/{jobId}", postsHandler.JobStatus)
		r.Get("/jobs/{jobId}/events", postsHandler.JobEvents)

		// Matching
		r.Post("/search", searchHandler.Search)
		r.Post("/recompute", postsHandler.Recompute)

		// Similarity index
		r.Get("/index", indexHandler.Status)
		r.Get("/index/ids", indexHandler.IDs)
		r.Post("/index/rebuild", indexHandler.Rebuild)
		r.Post("/index/verify", indexHandler.Verify)

		// Stored images
		r.Get("/images/*", imagesHandler.Serve)
	})
}
