package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/config"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database/mock"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/facematch"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/posts"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/storage"
)

// fakeExtractor maps the first byte of an image to an embedding.
// 'x' is undecodable, anything unknown has no face.
type fakeExtractor struct {
	unavailable bool
}

var testFaces = map[byte][]float32{
	'a': {1, 0, 0},
	'b': {0.99, 0.14, 0},
	'c': {0, 1, 0},
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	if f.unavailable {
		return nil, facematch.ErrExtractorUnavailable
	}
	if image[0] == 'x' {
		return nil, facematch.ErrUndecodableImage
	}
	if emb, ok := testFaces[image[0]]; ok {
		return slices.Clone(emb), nil
	}
	return nil, facematch.ErrNoFaceDetected
}

func (f *fakeExtractor) Available() error {
	if f.unavailable {
		return facematch.ErrExtractorUnavailable
	}
	return nil
}

// testEnv bundles a post service backed by mocks and a temp blob dir
type testEnv struct {
	svc   *posts.Service
	repo  *mock.MockRepository
	index *mock.MockIndex
	blobs *storage.BlobStore
}

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Matching: config.DefaultMatching(),
		Store:    config.StoreConfig{Backend: "json"},
		Index:    config.IndexConfig{Backend: "hnsw"},
		Blob:     config.BlobConfig{Backend: "local"},
	}
}

// newTestEnv starts a post service. A nil index runs without one.
func newTestEnv(t *testing.T, extractor *fakeExtractor, index *mock.MockIndex) *testEnv {
	t.Helper()
	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	env := &testEnv{
		repo:  mock.NewMockRepository(),
		index: index,
		blobs: storage.NewBlobStore(local),
	}
	deps := posts.Deps{
		Repo:      env.repo,
		Blobs:     env.blobs,
		Extractor: extractor,
		Matching:  config.DefaultMatching(),
	}
	if index != nil {
		deps.Index = index
	}
	env.svc, err = posts.New(context.Background(), deps)
	if err != nil {
		t.Fatalf("posts.New() error: %v", err)
	}
	t.Cleanup(env.svc.Close)
	return env
}

// addPost stores a post through the service, bypassing HTTP
func (e *testEnv) addPost(t *testing.T, id int64, tags ...string) database.Post {
	t.Helper()
	images := make([]posts.ImageInput, len(tags))
	for i, tag := range tags {
		images[i] = posts.ImageInput{Name: fmt.Sprintf("img%d.jpg", i), Data: []byte(tag)}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := e.svc.Add(posts.AddRequest{PostID: id, Images: images}).Wait(ctx)
	if err != nil {
		t.Fatalf("adding post %d: %v", id, err)
	}
	return res.Post
}

// multipartRequest builds a multipart POST with form fields and one file per image tag
func multipartRequest(t *testing.T, path string, fields map[string]string, tags ...string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatal(err)
		}
	}
	for i, tag := range tags {
		part, err := writer.CreateFormFile(imagesField, fmt.Sprintf("photo%d.JPG", i))
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(tag))
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// waitForJob polls until the job reaches a terminal state
func waitForJob(t *testing.T, jm *JobManager, id string) AddJobView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job := jm.GetJob(id)
		if job == nil {
			t.Fatalf("job %s not found", id)
		}
		if job.finished() {
			return job.View()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return AddJobView{}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
