package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/detent/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	sheetID := "contract-sheet-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap := &domain.Snapshot{
			ID:        sheetID,
			Name:      "settings",
			State:     domain.Presented(1),
			Detents:   domain.ResolvedDetents{400, 800},
			Parent:    "root-sheet",
			Children:  []string{"child-a"},
			Live:      true,
			UpdatedAt: time.Now().UTC().Truncate(time.Second),
		}

		err := store.Save(ctx, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sheetID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.Name, loaded.Name)
		assert.Equal(t, snap.State, loaded.State)
		assert.Equal(t, snap.Detents, loaded.Detents)
		assert.Equal(t, snap.Parent, loaded.Parent)
		assert.Equal(t, snap.Children, loaded.Children)
		assert.True(t, loaded.Live)
		assert.True(t, snap.UpdatedAt.Equal(loaded.UpdatedAt))
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		err := store.Save(ctx, &domain.Snapshot{ID: sheetID, State: domain.Dismissed(), Detents: domain.ResolvedDetents{400}})
		require.NoError(t, err)

		loaded, err := store.Load(ctx, sheetID)
		require.NoError(t, err)
		assert.True(t, loaded.State.Is(domain.StateDismissed))
		assert.False(t, loaded.Live)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sheetID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, &domain.Snapshot{ID: sheetID, State: domain.Idle()})
		require.NoError(t, err)

		err = store.Delete(ctx, sheetID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sheetID)
		assert.ErrorIs(t, err, domain.ErrNotFound, "Load after Delete should return ErrNotFound")

		assert.NoError(t, store.Delete(ctx, sheetID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sheetID + "-1"
		id2 := sheetID + "-2"
		_ = store.Save(ctx, &domain.Snapshot{ID: id1, State: domain.Idle()})
		_ = store.Save(ctx, &domain.Snapshot{ID: id2, State: domain.Idle()})

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
