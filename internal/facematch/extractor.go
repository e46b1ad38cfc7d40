package facematch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/constants"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/fingerprint"
)

// Backend is a face embedding server.
type Backend interface {
	ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*fingerprint.FaceResponse, error)
	Health(ctx context.Context) error
}

// Embedder maps one image to one face embedding.
type Embedder interface {
	Extract(ctx context.Context, image []byte) ([]float32, error)
}

// Extractor is an Embedder bound to the backend chosen at construction.
type Extractor struct {
	backend      Backend
	choice       string
	maxImageSize int
}

// NewExtractor health-checks primary, then secondary, and keeps the first that
// answers. The choice is made once; an Extractor with no backend fails every
// call with ErrExtractorUnavailable.
func NewExtractor(ctx context.Context, primary, secondary Backend) *Extractor {
	e := &Extractor{choice: "none", maxImageSize: constants.MaxImageSize}

	for _, c := range []struct {
		name    string
		backend Backend
	}{{"primary", primary}, {"secondary", secondary}} {
		if c.backend == nil {
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, constants.ExtractorHealthTimeout)
		err := c.backend.Health(checkCtx)
		cancel()
		if err != nil {
			log.Printf("Warning: %s embedding backend unavailable: %v", c.name, err)
			continue
		}
		e.backend = c.backend
		e.choice = c.name
		break
	}

	log.Printf("Face extractor: using %s backend", e.choice)
	return e
}

// Backend reports which backend was selected: "primary", "secondary" or "none".
func (e *Extractor) Backend() string {
	return e.choice
}

// Available returns ErrExtractorUnavailable when no backend was selected.
func (e *Extractor) Available() error {
	if e.backend == nil {
		return ErrExtractorUnavailable
	}
	return nil
}

// Extract returns the embedding of the first detected face.
func (e *Extractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	if e.backend == nil {
		return nil, ErrExtractorUnavailable
	}

	prepared, err := fingerprint.PrepareImage(image, e.maxImageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}

	resp, err := e.backend.ComputeFaceEmbeddings(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("face embedding failed: %w", err)
	}
	if len(resp.Faces) == 0 || len(resp.Faces[0].Embedding) == 0 {
		return nil, ErrNoFaceDetected
	}
	return resp.Faces[0].Embedding, nil
}

// Probe is one extracted embedding together with the 0-based position of its
// source image in the request.
type Probe struct {
	ImageIndex int
	Embedding  []float32
}

// Extraction is the outcome of running an Embedder over a batch of images.
type Extraction struct {
	Probes  []Probe
	Skipped map[int]error // image position -> reason
}

// Embeddings returns the probe embeddings in image order.
func (x *Extraction) Embeddings() [][]float32 {
	out := make([][]float32, len(x.Probes))
	for i, p := range x.Probes {
		out[i] = p.Embedding
	}
	return out
}

// Decodable reports whether image i was a readable image, face or not.
func (x *Extraction) Decodable(i int) bool {
	return !errors.Is(x.Skipped[i], ErrUndecodableImage)
}

// ExtractProbes extracts one embedding per image. Per-image failures are
// logged and skipped. ErrExtractorUnavailable and context errors abort the
// batch; an empty result is ErrNoFaceDetected.
func ExtractProbes(ctx context.Context, e Embedder, images [][]byte) (*Extraction, error) {
	x := &Extraction{Skipped: make(map[int]error)}

	for i, img := range images {
		start := time.Now()
		emb, err := e.Extract(ctx, img)
		if err != nil {
			if errors.Is(err, ErrExtractorUnavailable) {
				return nil, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Printf("Image %d/%d skipped: %v", i+1, len(images), err)
			x.Skipped[i] = err
			continue
		}
		x.Probes = append(x.Probes, Probe{ImageIndex: i, Embedding: emb})
		log.Printf("Extracted embedding %d/%d in %s", i+1, len(images), time.Since(start).Round(time.Millisecond))
	}

	if len(x.Probes) == 0 {
		return x, ErrNoFaceDetected
	}
	return x, nil
}
