package posts

import (
	"context"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/facematch"
)

// Search extracts one probe per image and ranks matching posts. Extraction
// and scoring run on the caller's goroutine against a snapshot.
func (s *Service) Search(ctx context.Context, images []ImageInput) ([]facematch.Result, error) {
	if err := s.validateImages(images); err != nil {
		return nil, err
	}
	if err := s.extractorAvailable(); err != nil {
		return nil, err
	}

	data := make([][]byte, len(images))
	for i, img := range images {
		data[i] = img.Data
	}
	extraction, err := facematch.ExtractProbes(ctx, s.extractor, data)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.Snapshot().Wait(ctx)
	if err != nil {
		return nil, err
	}
	return facematch.Search(ctx, extraction.Probes, snapshot, s.index, s.matchOptions())
}
