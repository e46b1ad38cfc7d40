package fingerprint

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte("GIF89a\x00\x00"), "image/gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBP"), "image/webp"},
		{"too short", []byte{0xFF, 0xD8}, "application/octet-stream"},
		{"unknown", []byte("plaintext"), "application/octet-stream"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectMIMEType(tc.data); got != tc.expected {
				t.Errorf("detectMIMEType() = %q; want %q", got, tc.expected)
			}
		})
	}
}

func TestComputeFaceEmbeddings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/embed/face" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("expected part content type image/jpeg, got %q", ct)
		}
		data, _ := io.ReadAll(file)
		if len(data) != 8 {
			t.Errorf("expected 8 bytes, got %d", len(data))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(FaceResponse{
			FacesCount: 1,
			Faces: []FaceDetection{
				{FaceIndex: 0, Dim: 3, Embedding: []float32{0.1, 0.2, 0.3}, BBox: []float64{1, 2, 3, 4}, DetScore: 0.98},
			},
			Model: "buffalo_l",
		})
	}))
	defer server.Close()

	client := NewEmbeddingClient(server.URL+"/", time.Second)
	resp, err := client.ComputeFaceEmbeddings(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3, 4})
	if err != nil {
		t.Fatalf("ComputeFaceEmbeddings() error: %v", err)
	}
	if resp.FacesCount != 1 || len(resp.Faces) != 1 {
		t.Fatalf("expected one face, got %+v", resp)
	}
	if len(resp.Faces[0].Embedding) != 3 || resp.Faces[0].Embedding[2] != 0.3 {
		t.Errorf("unexpected embedding %v", resp.Faces[0].Embedding)
	}
	if resp.Model != "buffalo_l" {
		t.Errorf("expected model buffalo_l, got %q", resp.Model)
	}
}

func TestComputeFaceEmbeddings_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewEmbeddingClient(server.URL, time.Second)
	_, err := client.ComputeFaceEmbeddings(context.Background(), []byte("whatever"))
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestComputeFaceEmbeddings_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewEmbeddingClient(server.URL, time.Second)
	if _, err := client.ComputeFaceEmbeddings(context.Background(), []byte("whatever")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"healthy", http.StatusOK, false},
		{"unavailable", http.StatusServiceUnavailable, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			err := NewEmbeddingClient(server.URL, time.Second).Health(context.Background())
			if (err != nil) != tc.wantErr {
				t.Errorf("Health() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestHealth_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	if err := NewEmbeddingClient(url, time.Second).Health(context.Background()); err == nil {
		t.Fatal("expected error for closed server")
	}
}

func TestNewEmbeddingClient_DefaultURL(t *testing.T) {
	c := NewEmbeddingClient("", 0)
	if c.BaseURL() != defaultEmbeddingURL {
		t.Errorf("expected default URL, got %q", c.BaseURL())
	}
}
