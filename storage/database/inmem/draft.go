package inmemdb

import (
	"context"
	"sync"

	"github.com/jobify/jobify/core/wizard"
)

type snapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]wizard.Snapshot
}

var _ wizard.SnapshotStore = (*snapshotStore)(nil) // interface compliance check

func NewSnapshotStore() wizard.SnapshotStore {
	return &snapshotStore{snapshots: make(map[string]wizard.Snapshot)}
}

func (s *snapshotStore) LoadSnapshot(_ context.Context, key string) (wizard.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if snap, ok := s.snapshots[key]; ok {
		return snap, nil
	}
	return wizard.Snapshot{}, wizard.ErrNoSnapshot
}

func (s *snapshotStore) SaveSnapshot(_ context.Context, key string, snap wizard.Snapshot) error {
	s.mu.Lock()
	s.snapshots[key] = snap
	s.mu.Unlock()
	return nil
}

func (s *snapshotStore) DeleteSnapshot(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.snapshots, key)
	s.mu.Unlock()
	return nil
}
