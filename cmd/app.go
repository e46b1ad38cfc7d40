package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/config"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database/jsonstore"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database/postgres"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database/qdrant"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database/sqlite"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/facematch"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/fingerprint"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/posts"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/storage"
)

// app holds the wired components shared by every command.
type app struct {
	cfg       *config.Config
	pool      *postgres.Pool
	repo      database.PostRepository
	index     database.SimilarityIndex
	blobs     *storage.BlobStore
	extractor *facematch.Extractor
	service   *posts.Service
	closers   []func() error
}

// appOptions controls which optional components a command needs.
type appOptions struct {
	// extract health-checks the embedding servers; commands that never
	// extract faces skip the check and run with an unavailable extractor.
	extract bool
	// quiet suppresses startup messages (JSON output).
	quiet bool
}

// openApp connects the record store, similarity index, blob store and
// extractor, then starts the post service.
func openApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}
	a.registerStoreBackends()

	if err := a.openStore(ctx, opts.quiet); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openIndex(ctx, opts.quiet); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openBlobs(); err != nil {
		a.Close()
		return nil, err
	}
	a.openExtractor(ctx, opts.extract)

	svc, err := posts.New(ctx, posts.Deps{
		Repo:      a.repo,
		Index:     a.index,
		Blobs:     a.blobs,
		Extractor: a.extractor,
		Matching:  cfg.Matching,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service = svc

	rebuilt, err := svc.EnsureIndex().Wait(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: index check failed: %v\n", err)
	} else if rebuilt && !opts.quiet {
		fmt.Println("Similarity index was empty and has been rebuilt from the store")
	}
	return a, nil
}

// registerStoreBackends makes every record store available by name.
func (a *app) registerStoreBackends() {
	database.RegisterRepositoryBackend("json", jsonstore.Open)
	database.RegisterRepositoryBackend("sqlite", sqlite.Open)
	database.RegisterRepositoryBackend("postgres", func(ctx context.Context, url string) (database.PostRepository, error) {
		pool, err := a.postgresPool(ctx, url)
		if err != nil {
			return nil, err
		}
		return postgres.NewPostRepository(pool), nil
	})
}

// postgresPool opens the shared pool on first use.
func (a *app) postgresPool(ctx context.Context, url string) (*postgres.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	dbCfg := a.cfg.Database
	if url != "" {
		dbCfg.URL = url
	}
	if dbCfg.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	pool, err := postgres.Initialize(ctx, &dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	a.pool = pool
	return pool, nil
}

func (a *app) openStore(ctx context.Context, quiet bool) error {
	var location string
	switch a.cfg.Store.Backend {
	case "json":
		location = a.cfg.Store.JSONPath
	case "sqlite":
		location = a.cfg.Store.SQLitePath
	case "postgres":
		location = a.cfg.Database.URL
	}

	repo, err := database.OpenRepository(ctx, a.cfg.Store.Backend, location)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", a.cfg.Store.Backend, err)
	}
	a.repo = repo
	a.closers = append(a.closers, repo.Close)
	if !quiet {
		fmt.Printf("Using %s record store\n", a.cfg.Store.Backend)
	}
	return nil
}

func (a *app) openIndex(ctx context.Context, quiet bool) error {
	switch a.cfg.Index.Backend {
	case "hnsw":
		idx := database.NewHNSWPostIndex(a.cfg.Index.HNSWPath)
		if a.cfg.Index.HNSWPath != "" {
			if err := idx.Load(); err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					fmt.Fprintf(os.Stderr, "Warning: failed to load HNSW index: %v\n", err)
				}
			} else if !quiet {
				n, _ := idx.Count(ctx)
				fmt.Printf("Loaded HNSW index with %d posts from %s\n", n, a.cfg.Index.HNSWPath)
			}
		}
		database.RegisterIndexPersister(idx)
		a.index = idx
	case "qdrant":
		idx, err := qdrant.New(ctx, a.cfg.Index.QdrantURL, a.cfg.Index.QdrantCollection)
		if err != nil {
			return fmt.Errorf("connecting to Qdrant: %w", err)
		}
		a.closers = append(a.closers, idx.Close)
		a.index = idx
	case "pgvector":
		pool, err := a.postgresPool(ctx, a.cfg.Database.URL)
		if err != nil {
			return err
		}
		if a.cfg.Store.Backend != "postgres" {
			a.closers = append(a.closers, pool.Close)
		}
		a.index = postgres.NewVectorIndex(pool)
	case "none", "":
		a.index = nil
	default:
		return fmt.Errorf("unknown index backend %q", a.cfg.Index.Backend)
	}
	if !quiet {
		fmt.Printf("Using %s similarity index\n", a.indexBackend())
	}
	return nil
}

func (a *app) openBlobs() error {
	switch a.cfg.Blob.Backend {
	case "local", "":
		local, err := storage.NewLocal(a.cfg.Blob.Dir)
		if err != nil {
			return fmt.Errorf("opening blob directory: %w", err)
		}
		a.blobs = storage.NewBlobStore(local)
	case "s3":
		if a.cfg.Blob.Bucket == "" {
			return errors.New("S3_BUCKET environment variable is required for the s3 blob backend")
		}
		client := storage.NewS3Client(storage.S3Options{
			Region:    a.cfg.Blob.Region,
			Endpoint:  a.cfg.Blob.Endpoint,
			AccessKey: a.cfg.Blob.AccessKey,
			SecretKey: a.cfg.Blob.SecretKey,
		})
		a.blobs = storage.NewBlobStore(storage.NewS3(client, a.cfg.Blob.Bucket, a.cfg.Blob.Prefix))
	default:
		return fmt.Errorf("unknown blob backend %q", a.cfg.Blob.Backend)
	}
	return nil
}

func (a *app) openExtractor(ctx context.Context, extract bool) {
	if !extract {
		a.extractor = facematch.NewExtractor(ctx, nil, nil)
		return
	}

	var primary, secondary facematch.Backend
	if a.cfg.Embedding.URL != "" {
		primary = fingerprint.NewEmbeddingClient(a.cfg.Embedding.URL, a.cfg.Embedding.Timeout)
	}
	if a.cfg.Embedding.SecondaryURL != "" {
		secondary = fingerprint.NewEmbeddingClient(a.cfg.Embedding.SecondaryURL, a.cfg.Embedding.Timeout)
	}
	a.extractor = facematch.NewExtractor(ctx, primary, secondary)
}

func (a *app) indexBackend() string {
	if a.index == nil {
		return "none"
	}
	return a.cfg.Index.Backend
}

// saveIndex persists a disk-backed index.
func (a *app) saveIndex() {
	persister := database.GetIndexPersister()
	if persister == nil || a.cfg.Index.Backend != "hnsw" || a.cfg.Index.HNSWPath == "" {
		return
	}
	if err := persister.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save HNSW index: %v\n", err)
		return
	}
	fmt.Println("HNSW index saved to disk")
}

// Close stops the service and releases every backend, in reverse order.
func (a *app) Close() {
	if a.service != nil {
		a.service.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
}
