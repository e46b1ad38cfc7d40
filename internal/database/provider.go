package database

import (
	"context"
	"fmt"
	"sync"
)

// IndexPersister is implemented by indexes that keep state on local disk
type IndexPersister interface {
	// Save persists the index (no-op when no path is configured)
	Save() error
}

// RepositoryOpener opens a record store backend from a location string
// (file path or connection URL).
type RepositoryOpener func(ctx context.Context, location string) (PostRepository, error)

var (
	repoOpeners  = make(map[string]RepositoryOpener)
	openersMu    sync.RWMutex
	indexPersist IndexPersister // Singleton saved on shutdown
)

// RegisterRepositoryBackend registers a record store constructor under a backend name.
// cmd wires the backends in; database itself imports none of them.
func RegisterRepositoryBackend(name string, opener RepositoryOpener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	repoOpeners[name] = opener
}

// OpenRepository opens the record store registered under name.
func OpenRepository(ctx context.Context, name, location string) (PostRepository, error) {
	openersMu.RLock()
	opener, ok := repoOpeners[name]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q", name)
	}
	return opener(ctx, location)
}

// RegisterIndexPersister registers the index that must be saved on shutdown.
func RegisterIndexPersister(p IndexPersister) {
	openersMu.Lock()
	defer openersMu.Unlock()
	indexPersist = p
}

// GetIndexPersister returns the registered persister, or nil if not registered.
func GetIndexPersister() IndexPersister {
	openersMu.RLock()
	defer openersMu.RUnlock()
	return indexPersist
}
