package drawserver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/storage/postgres"
)

// ErrSnapshotNotFound is returned when a named snapshot does not exist in
// the backing store.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists named snapshot documents grouped by kind. The
// server treats the document as opaque JSON produced by the engine and
// inventory exporters.
type SnapshotStore interface {
	// Save stores data under (name, kind), replacing any previous document.
	Save(ctx context.Context, name, kind string, data []byte) error
	// Load returns the document stored under (name, kind).
	Load(ctx context.Context, name, kind string) ([]byte, error)
	// List returns the names stored under kind in ascending order.
	List(ctx context.Context, kind string) ([]string, error)
	// Delete removes the document stored under (name, kind).
	Delete(ctx context.Context, name, kind string) error
}

// MemoryStore keeps snapshots in process memory. It backs the server when
// the database is disabled.
type MemoryStore struct {
	mu     sync.RWMutex
	byKind map[string]map[string][]byte
}

// NewMemoryStore returns an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKind: make(map[string]map[string][]byte)}
}

// Save stores a copy of data under (name, kind).
func (s *MemoryStore) Save(_ context.Context, name, kind string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	names, ok := s.byKind[kind]
	if !ok {
		names = make(map[string][]byte)
		s.byKind[kind] = names
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	names[name] = buf
	return nil
}

// Load returns a copy of the document stored under (name, kind).
func (s *MemoryStore) Load(_ context.Context, name, kind string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.byKind[kind][name]
	if !ok {
		return nil, fmt.Errorf("drawserver: MemoryStore.Load: %s %q: %w", kind, name, ErrSnapshotNotFound)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// List returns the snapshot names stored under kind, sorted ascending.
func (s *MemoryStore) List(_ context.Context, kind string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.byKind[kind]))
	for name := range s.byKind[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the document stored under (name, kind).
func (s *MemoryStore) Delete(_ context.Context, name, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKind[kind][name]; !ok {
		return fmt.Errorf("drawserver: MemoryStore.Delete: %s %q: %w", kind, name, ErrSnapshotNotFound)
	}
	delete(s.byKind[kind], name)
	return nil
}

// RepositoryStore adapts the Postgres snapshot repository to the
// SnapshotStore interface, translating its sentinel errors.
type RepositoryStore struct {
	repo *postgres.SnapshotRepository
}

// NewRepositoryStore wraps a Postgres snapshot repository.
func NewRepositoryStore(repo *postgres.SnapshotRepository) *RepositoryStore {
	return &RepositoryStore{repo: repo}
}

// Save upserts the document through the repository.
func (s *RepositoryStore) Save(ctx context.Context, name, kind string, data []byte) error {
	if _, err := s.repo.Save(ctx, name, kind, data); err != nil {
		return err
	}
	return nil
}

// Load fetches the document through the repository.
func (s *RepositoryStore) Load(ctx context.Context, name, kind string) ([]byte, error) {
	snap, err := s.repo.Get(ctx, name, kind)
	if err != nil {
		if errors.Is(err, postgres.ErrSnapshotNotFound) {
			return nil, fmt.Errorf("drawserver: RepositoryStore.Load: %s %q: %w", kind, name, ErrSnapshotNotFound)
		}
		return nil, err
	}
	return snap.Data, nil
}

// List returns the stored names under kind. The repository already orders
// rows by name.
func (s *RepositoryStore) List(ctx context.Context, kind string) ([]string, error) {
	snaps, err := s.repo.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		names = append(names, snap.Name)
	}
	return names, nil
}

// Delete removes the document through the repository.
func (s *RepositoryStore) Delete(ctx context.Context, name, kind string) error {
	if err := s.repo.Delete(ctx, name, kind); err != nil {
		if errors.Is(err, postgres.ErrSnapshotNotFound) {
			return fmt.Errorf("drawserver: RepositoryStore.Delete: %s %q: %w", kind, name, ErrSnapshotNotFound)
		}
		return err
	}
	return nil
}
