package pipeline

import (
	"context"
	"sync"
	"time"
)

// RunStore persists run snapshots across pauses. Implementations must be
// safe for concurrent use by independent runs; the orchestrator serializes
// access per run itself.
type RunStore interface {
	// Put stores or replaces a snapshot.
	Put(ctx context.Context, snap Snapshot) error

	// Get returns a snapshot by run ID, or ErrRunNotFound.
	Get(ctx context.Context, runID string) (Snapshot, error)

	// List returns all stored run IDs.
	List(ctx context.Context) ([]string, error)
}

// InMemoryRunStore keeps snapshots in process memory. Suitable for a single
// daemon; runs do not survive a restart.
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]Snapshot
}

// NewInMemoryRunStore builds an empty store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{runs: make(map[string]Snapshot)}
}

// Put stores a deep-enough copy: slices are duplicated so later mutation
// of the caller's snapshot cannot leak in.
func (s *InMemoryRunStore) Put(_ context.Context, snap Snapshot) error {
	snap.Events = append([]TraceEvent(nil), snap.Events...)
	snap.Hints = append([]string(nil), snap.Hints...)
	attempts := make(map[Stage]int, len(snap.Attempts))
	for k, v := range snap.Attempts {
		attempts[k] = v
	}
	snap.Attempts = attempts
	snap.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[snap.RunID] = snap
	return nil
}

// Get returns the stored snapshot.
func (s *InMemoryRunStore) Get(_ context.Context, runID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.runs[runID]
	if !ok {
		return Snapshot{}, ErrRunNotFound
	}
	return snap, nil
}

// List returns all run IDs in unspecified order.
func (s *InMemoryRunStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	return ids, nil
}
