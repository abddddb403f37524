package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/detent/pkg/adapters/memory"
	"github.com/aretw0/detent/pkg/domain"
	"github.com/aretw0/detent/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, memory.NewStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	snap := &domain.Snapshot{ID: "s1", Detents: domain.ResolvedDetents{400, 800}, Children: []string{"c1"}}
	require.NoError(t, store.Save(ctx, snap))

	snap.Detents[0] = 1
	snap.Children[0] = "mutated"

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.ResolvedDetents{400, 800}, loaded.Detents)
	assert.Equal(t, []string{"c1"}, loaded.Children)

	loaded.Detents[1] = 2
	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 800.0, again.Detents[1])
}
