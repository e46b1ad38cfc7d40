package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Matching  MatchingConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Index     IndexConfig
	Blob      BlobConfig
	Embedding EmbeddingConfig
	Web       WebConfig
}

// MatchingConfig holds the similarity thresholds shared by add, recompute and search.
type MatchingConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"` // defaults to 0.20
	MaxImages           int     `yaml:"max_images" json:"max_images"`                     // defaults to 5
	CandidateK          int     `yaml:"candidate_k" json:"candidate_k"`                   // defaults to 100
	OutlierHigh         float64 `yaml:"outlier_high" json:"outlier_high"`                 // defaults to 0.85
	OutlierLow          float64 `yaml:"outlier_low" json:"outlier_low"`                   // defaults to 0.25
	VerifyThreshold     float64 `yaml:"verify_threshold" json:"verify_threshold"`         // defaults to 0.99
}

type StoreConfig struct {
	Backend    string // json, sqlite or postgres (default json)
	JSONPath   string // defaults to data/posts.json
	SQLitePath string // defaults to data/posts.db
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type IndexConfig struct {
	Backend          string // hnsw, qdrant, pgvector or none (default hnsw)
	HNSWPath         string // directory for the persisted graph (optional, in-memory when empty)
	QdrantURL        string // defaults to http://localhost:6334
	QdrantCollection string // defaults to face_embeddings
}

type BlobConfig struct {
	Backend   string // local or s3 (default local)
	Dir       string // defaults to data/posts
	Bucket    string
	Prefix    string
	Endpoint  string // custom S3 endpoint (MinIO etc.)
	Region    string // defaults to us-east-1
	AccessKey string
	SecretKey string
}

type EmbeddingConfig struct {
	URL          string        // primary server, defaults to http://localhost:8000
	SecondaryURL string        // fallback server (optional)
	Timeout      time.Duration // defaults to 60s
}

type WebConfig struct {
	Host           string   // defaults to 0.0.0.0
	Port           int      // defaults to 8085
	AllowedOrigins []string // CORS origins, empty allows none
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat is envInt for values in [0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DefaultMatching returns the embedded matching defaults.
func DefaultMatching() MatchingConfig {
	var defaults struct {
		Matching MatchingConfig `yaml:"matching"`
	}
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return defaults.Matching
}

func Load() *Config {
	m := DefaultMatching()

	return &Config{
		Matching: MatchingConfig{
			SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", m.SimilarityThreshold),
			MaxImages:           envInt("MAX_IMAGES", m.MaxImages),
			CandidateK:          envInt("CANDIDATE_K", m.CandidateK),
			OutlierHigh:         envFloat("OUTLIER_HIGH", m.OutlierHigh),
			OutlierLow:          envFloat("OUTLIER_LOW", m.OutlierLow),
			VerifyThreshold:     envFloat("VERIFY_THRESHOLD", m.VerifyThreshold),
		},
		Store: StoreConfig{
			Backend:    envString("STORE_BACKEND", "json"),
			JSONPath:   envString("STORE_JSON_PATH", "data/posts.json"),
			SQLitePath: envString("STORE_SQLITE_PATH", "data/posts.db"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Index: IndexConfig{
			Backend:          envString("INDEX_BACKEND", "hnsw"),
			HNSWPath:         os.Getenv("HNSW_INDEX_PATH"),
			QdrantURL:        envString("QDRANT_URL", "http://localhost:6334"),
			QdrantCollection: envString("QDRANT_COLLECTION", "face_embeddings"),
		},
		Blob: BlobConfig{
			Backend:   envString("BLOB_BACKEND", "local"),
			Dir:       envString("BLOB_DIR", "data/posts"),
			Bucket:    os.Getenv("S3_BUCKET"),
			Prefix:    os.Getenv("S3_PREFIX"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Region:    envString("S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		Embedding: EmbeddingConfig{
			URL:          envString("EMBEDDING_URL", "http://localhost:8000"),
			SecondaryURL: os.Getenv("EMBEDDING_SECONDARY_URL"),
			Timeout:      time.Duration(envInt("EMBEDDING_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8085),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}
