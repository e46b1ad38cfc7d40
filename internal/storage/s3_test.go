package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// apiError implements smithy.APIError for test assertions.
type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                 { return e.msg }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var (
	errNoSuchKey = &apiError{code: "NoSuchKey", msg: "no such key"}
	errNotFound  = &apiError{code: "NotFound", msg: "not found"}
)

// mockS3 is a thread-safe in-memory S3 backend for testing.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte

	// Error injection
	putErr  error
	listErr error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte)}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, errNotFound
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func (m *mockS3) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func TestS3WriteAndRead(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "posts", "/findme/")

	writeFile(t, store, "3/a.jpg", "hello s3")

	if got := readFile(t, store, "3/a.jpg"); got != "hello s3" {
		t.Fatalf("got %q, want %q", got, "hello s3")
	}
	if keys := mock.keys(); !slices.Equal(keys, []string{"findme/3/a.jpg"}) {
		t.Errorf("expected prefixed key, got %v", keys)
	}
}

func TestS3ReadNotExist(t *testing.T) {
	store := NewS3(newMockS3(), "posts", "")

	_, err := store.Read(context.Background(), "missing")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestS3WriteUploadError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("access denied")
	store := NewS3(mock, "posts", "")

	w, err := store.Write(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte("data"))
	if err := w.Close(); err == nil {
		t.Fatal("expected upload error from Close")
	}
}

func TestS3Exists(t *testing.T) {
	store := NewS3(newMockS3(), "posts", "")
	ctx := context.Background()

	if ok, err := store.Exists(ctx, "a"); err != nil || ok {
		t.Fatalf("Exists() = %v, %v; want false", ok, err)
	}
	writeFile(t, store, "a", "x")
	if ok, err := store.Exists(ctx, "a"); err != nil || !ok {
		t.Fatalf("Exists() = %v, %v; want true", ok, err)
	}
}

func TestS3DeleteDir(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "posts", "p")

	writeFile(t, store, "1/a.jpg", "a")
	writeFile(t, store, "1/b.jpg", "b")
	writeFile(t, store, "10/c.jpg", "c")

	if err := store.DeleteDir(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
	if keys := mock.keys(); !slices.Equal(keys, []string{"p/10/c.jpg"}) {
		t.Errorf("expected only post 10 to remain, got %v", keys)
	}
}

func TestS3DeleteDirListError(t *testing.T) {
	mock := newMockS3()
	mock.listErr = errors.New("throttled")
	store := NewS3(mock, "posts", "")

	if err := store.DeleteDir(context.Background(), "1"); err == nil {
		t.Fatal("expected list error")
	}
}

func TestIsS3NotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"no such key", errNoSuchKey, true},
		{"not found", errNotFound, true},
		{"access denied", &apiError{code: "AccessDenied", msg: "denied"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isS3NotFound(tc.err); got != tc.expected {
				t.Errorf("isS3NotFound() = %v; want %v", got, tc.expected)
			}
		})
	}
}

func TestNewS3Client(t *testing.T) {
	c := NewS3Client(S3Options{Region: "eu-central-1", Endpoint: "http://minio:9000", AccessKey: "k", SecretKey: "s"})

	opts := c.Options()
	if opts.Region != "eu-central-1" {
		t.Errorf("expected region eu-central-1, got %q", opts.Region)
	}
	if !opts.UsePathStyle || aws.ToString(opts.BaseEndpoint) != "http://minio:9000" {
		t.Errorf("expected path-style custom endpoint, got %+v", opts.BaseEndpoint)
	}
	creds, err := opts.Credentials.Retrieve(context.Background())
	if err != nil || creds.AccessKeyID != "k" {
		t.Errorf("unexpected credentials %+v, %v", creds, err)
	}
}
