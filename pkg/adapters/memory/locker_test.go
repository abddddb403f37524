package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/detent/pkg/adapters/memory"
	"github.com/aretw0/detent/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_ExclusiveAndCollected(t *testing.T) {
	locker := memory.NewLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "sheet:a", time.Second)
	require.NoError(t, err)

	// Other keys are independent.
	other, err := locker.Lock(ctx, "sheet:b", time.Second)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(short, "sheet:a", time.Second)
	assert.ErrorIs(t, err, domain.ErrLockAcquire)

	acquired := make(chan struct{})
	go func() {
		next, err := locker.Lock(ctx, "sheet:a", time.Second)
		if err == nil {
			_ = next(ctx)
		}
		close(acquired)
	}()

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx), "unlocking twice is harmless")

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
	assert.Zero(t, locker.Held())
}
