package wizard

import (
	"context"

	"github.com/pkg/errors"
)

var ErrNoSnapshot = errors.New("no saved draft")

// SnapshotStore persists Wizard snapshots between requests, keyed by owner.
type SnapshotStore interface {
	// LoadSnapshot returns ErrNoSnapshot when nothing is saved under key.
	LoadSnapshot(ctx context.Context, key string) (Snapshot, error)
	SaveSnapshot(ctx context.Context, key string, s Snapshot) error
	DeleteSnapshot(ctx context.Context, key string) error
}
