package store

import (
	"context"
)

// SnapshotStore defines the interface for durable graph snapshot backends.
// A backend stores the serialized graph under its revision; writing the same
// revision twice must be a no-op so the persister can retry safely.
type SnapshotStore interface {
	// Persist writes one serialized snapshot. Implementations return a
	// common.PersistenceError on backend failure.
	Persist(ctx context.Context, revision uint64, data []byte) error

	// LoadLatest returns the newest stored snapshot. A backend with no
	// snapshot yet returns a common.NotFoundError.
	LoadLatest(ctx context.Context) ([]byte, uint64, error)

	// Close releases backend resources.
	Close() error
}
