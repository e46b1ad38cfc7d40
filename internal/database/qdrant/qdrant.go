// Package qdrant is a SimilarityIndex backed by a Qdrant collection.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
	"github.com/qdrant/go-client/qdrant"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "face_embeddings"

// ErrConnectionFailed is returned when the Qdrant server cannot be reached.
var ErrConnectionFailed = errors.New("qdrant connection failed")

// Index stores one point per post. Point ids are the post ids; the payload
// carries the "post_<id>" key and the index metadata.
type Index struct {
	client     *qdrant.Client
	collection string
	mu         sync.Mutex
	ready      bool
}

// New connects to the Qdrant gRPC endpoint described by rawURL.
// An HTTP port of 6333 is mapped to the gRPC port 6334.
func New(ctx context.Context, rawURL, collection string) (*Index, error) {
	host, port, err := parseEndpoint(rawURL)
	if err != nil {
		return nil, err
	}
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   host,
		Port:                   port,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return &Index{client: client, collection: collection}, nil
}

func parseEndpoint(rawURL string) (string, int, error) {
	if rawURL == "" {
		rawURL = "http://localhost:6334"
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant url %q: %w", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := 6334
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid qdrant port %q: %w", p, err)
		}
		if n != 6333 {
			port = n
		}
	}
	return host, port, nil
}

// Close closes the gRPC connection.
func (x *Index) Close() error {
	return x.client.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: qdrant %s: %v", database.ErrIndexUnavailable, op, err)
}

// ensureCollection creates the collection with the given vector size if missing.
func (x *Index) ensureCollection(ctx context.Context, dim int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.ready {
		return nil
	}

	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return unavailable("collection exists", err)
	}
	if !exists {
		err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: x.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return unavailable("create collection", err)
		}
	}
	x.ready = true
	return nil
}

// exists reports whether the collection has been created.
func (x *Index) exists(ctx context.Context) (bool, error) {
	x.mu.Lock()
	ready := x.ready
	x.mu.Unlock()
	if ready {
		return true, nil
	}
	ok, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return false, unavailable("collection exists", err)
	}
	return ok, nil
}

func pointID(postID int64) (*qdrant.PointId, error) {
	if postID <= 0 {
		return nil, fmt.Errorf("%w: post id %d cannot be a qdrant point id", database.ErrIndexUnavailable, postID)
	}
	return qdrant.NewIDNum(uint64(postID)), nil
}

func newPoint(postID int64, embedding []float32, meta database.IndexMetadata) (*qdrant.PointStruct, error) {
	id, err := pointID(postID)
	if err != nil {
		return nil, err
	}
	return &qdrant.PointStruct{
		Id:      id,
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(map[string]any{
			"key":        database.IndexKey(postID),
			"post_id":    postID,
			"num_images": int64(meta.NumImages),
		}),
	}, nil
}

// Add upserts the point for a post.
func (x *Index) Add(ctx context.Context, postID int64, embedding []float32, meta database.IndexMetadata) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding for post %d", database.ErrIndexUnavailable, postID)
	}
	point, err := newPoint(postID, embedding, meta)
	if err != nil {
		return err
	}
	if err := x.ensureCollection(ctx, len(embedding)); err != nil {
		return err
	}
	_, err = x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

// Delete removes the point for a post.
func (x *Index) Delete(ctx context.Context, postID int64) error {
	ok, err := x.exists(ctx)
	if err != nil || !ok {
		return err
	}
	id, err := pointID(postID)
	if err != nil {
		return err
	}
	_, err = x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: x.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(id),
	})
	if err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// Query returns up to k nearest posts. Distance is 1 - Qdrant's cosine score.
func (x *Index) Query(ctx context.Context, embedding []float32, k int) ([]database.Candidate, error) {
	ok, err := x.exists(ctx)
	if err != nil || !ok {
		return nil, err
	}
	points, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return nil, unavailable("query", err)
	}

	out := make([]database.Candidate, 0, len(points))
	for _, p := range points {
		out = append(out, database.Candidate{
			PostID:   int64(p.GetId().GetNum()),
			Distance: 1 - float64(p.GetScore()),
		})
	}
	return out, nil
}

// Count returns the exact number of points.
func (x *Index) Count(ctx context.Context) (int, error) {
	ok, err := x.exists(ctx)
	if err != nil || !ok {
		return 0, err
	}
	n, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: x.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, unavailable("count", err)
	}
	return int(n), nil
}

// Rebuild drops the collection and re-creates it from posts.
func (x *Index) Rebuild(ctx context.Context, posts []database.Post) error {
	ok, err := x.exists(ctx)
	if err != nil {
		return err
	}
	if ok {
		if err := x.client.DeleteCollection(ctx, x.collection); err != nil {
			return unavailable("delete collection", err)
		}
	}
	x.mu.Lock()
	x.ready = false
	x.mu.Unlock()

	dim := database.CorpusDimension(posts)
	if dim == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(posts))
	for _, p := range posts {
		if database.CheckEmbedding(p.Embedding, dim) != nil {
			continue
		}
		point, err := newPoint(p.PostID, p.Embedding, database.IndexMetadata{PostID: p.PostID, NumImages: len(p.Images)})
		if err != nil {
			return err
		}
		points = append(points, point)
	}

	if err := x.ensureCollection(ctx, dim); err != nil {
		return err
	}
	for batch := range slices.Chunk(points, 256) {
		if _, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: x.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         batch,
		}); err != nil {
			return unavailable("upsert", err)
		}
	}
	return nil
}

// IDs returns all point ids in ascending order.
func (x *Index) IDs(ctx context.Context) ([]int64, error) {
	n, err := x.Count(ctx)
	if err != nil || n == 0 {
		return nil, err
	}
	points, err := x.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: x.collection,
		Limit:          qdrant.PtrOf(uint32(n)),
		WithPayload:    qdrant.NewWithPayload(false),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, unavailable("scroll", err)
	}
	ids := make([]int64, 0, len(points))
	for _, p := range points {
		ids = append(ids, int64(p.GetId().GetNum()))
	}
	slices.Sort(ids)
	return ids, nil
}

// Vector returns the stored vector for a post.
func (x *Index) Vector(ctx context.Context, postID int64) ([]float32, bool, error) {
	ok, err := x.exists(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	id, err := pointID(postID)
	if err != nil {
		return nil, false, err
	}
	points, err := x.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: x.collection,
		Ids:            []*qdrant.PointId{id},
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, false, unavailable("get", err)
	}
	if len(points) == 0 {
		return nil, false, nil
	}
	return points[0].GetVectors().GetVector().GetData(), true, nil
}

var _ database.SimilarityIndex = (*Index)(nil)
