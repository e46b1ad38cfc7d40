package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/config"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database/mock"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/facematch"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/posts"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/storage"
)

type noFaceExtractor struct{}

func (noFaceExtractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	return nil, facematch.ErrNoFaceDetected
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	blobs := storage.NewBlobStore(local)
	svc, err := posts.New(context.Background(), posts.Deps{
		Repo:      mock.NewMockRepository(),
		Index:     mock.NewMockIndex(),
		Blobs:     blobs,
		Extractor: noFaceExtractor{},
		Matching:  config.DefaultMatching(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Close)

	cfg := &config.Config{
		Matching: config.DefaultMatching(),
		Index:    config.IndexConfig{Backend: "hnsw"},
		Web:      config.WebConfig{Host: "127.0.0.1", Port: 8085},
	}
	return NewServer(cfg, svc, blobs, "primary")
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{"GET", "/api/v1/health", http.StatusOK},
		{"GET", "/api/v1/config", http.StatusOK},
		{"GET", "/api/v1/posts", http.StatusOK},
		{"GET", "/api/v1/posts/1", http.StatusNotFound},
		{"DELETE", "/api/v1/posts/1", http.StatusNotFound},
		{"GET", "/api/v1/jobs/unknown", http.StatusNotFound},
		{"POST", "/api/v1/recompute", http.StatusOK},
		{"GET", "/api/v1/index", http.StatusOK},
		{"GET", "/api/v1/index/ids", http.StatusOK},
		{"POST", "/api/v1/index/rebuild", http.StatusOK},
		{"POST", "/api/v1/index/verify", http.StatusOK},
		{"GET", "/api/v1/images/1/none.jpg", http.StatusNotFound},
		{"GET", "/api/v1/unknown", http.StatusNotFound},
		{"PUT", "/api/v1/posts", http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			srv.Router().ServeHTTP(recorder, httptest.NewRequest(tc.method, tc.path, nil))
			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d\nBody: %s", tc.wantStatus, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestServer_SecurityAndCORSHeaders(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, req)

	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Error("expected localhost origin to be allowed")
	}
	if recorder.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}
