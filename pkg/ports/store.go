package ports

import (
	"context"

	"github.com/aretw0/detent/pkg/domain"
)

// SnapshotStore persists read-only snapshots of mounted sheets.
// The engine writes after each committed transition; failures are logged, never fatal.
type SnapshotStore interface {
	// Save persists the snapshot under its ID, replacing any previous one.
	Save(ctx context.Context, snap *domain.Snapshot) error

	// Load retrieves a snapshot.
	// Returns domain.ErrNotFound if the sheet has no snapshot.
	Load(ctx context.Context, sheetID string) (*domain.Snapshot, error)

	// Delete removes the snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, sheetID string) error

	// List returns the IDs of stored snapshots.
	List(ctx context.Context) ([]string, error)
}
