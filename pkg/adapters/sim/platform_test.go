package sim_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/detent"
	"github.com/aretw0/detent/pkg/adapters/sim"
	"github.com/aretw0/detent/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(opts ...sim.Option) (*detent.Engine, *sim.Platform) {
	platform := sim.New(opts...)
	eng := detent.New(detent.WithPlatform(platform))
	platform.Bind(eng)
	return eng, platform
}

func TestPlatform_AnimatesAndSettles(t *testing.T) {
	eng, platform := newEngine(sim.WithDuration(40*time.Millisecond), sim.WithFrames(4))
	ctx := context.Background()

	cfg := domain.NewSheetConfig(800)
	cfg.Detents = []domain.DetentSpec{domain.Percent(50), domain.Named(domain.SizeLarge)}
	sheet, err := eng.Mount(cfg)
	require.NoError(t, err)

	samples, cancel, err := sheet.Subscribe()
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, sheet.Present(ctx, 0, true))
	platform.Wait()

	var got []domain.PositionSample
	for done := false; !done; {
		select {
		case s := <-samples:
			got = append(got, s)
			done = s.Settled
		case <-time.After(time.Second):
			t.Fatal("no settled sample")
		}
	}
	require.GreaterOrEqual(t, len(got), 2, "frames precede the settled sample")
	assert.Equal(t, 400.0, got[len(got)-1].Position)
	for _, s := range got[:len(got)-1] {
		assert.False(t, s.Settled)
		assert.GreaterOrEqual(t, s.Position, 400.0)
	}

	snap, err := sheet.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, domain.Presented(0), snap.State)
}

func TestPlatform_FailNext(t *testing.T) {
	eng, platform := newEngine(sim.WithDuration(0))
	ctx := context.Background()

	sheet, err := eng.Mount(domain.NewSheetConfig(800))
	require.NoError(t, err)

	platform.FailNext("no window")
	err = sheet.Present(ctx, 0, true)
	assert.ErrorIs(t, err, domain.ErrPlatform)
	assert.ErrorContains(t, err, "no window")

	snap, err := sheet.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, domain.Idle(), snap.State, "failed present rolls back")

	require.NoError(t, sheet.Present(ctx, 0, true))
}

func TestPlatform_WithFailures(t *testing.T) {
	eng, _ := newEngine(
		sim.WithDuration(10*time.Millisecond),
		sim.WithFailures(func(cmd domain.Command) error {
			if cmd.Kind == domain.CommandResize {
				return errors.New("resize blocked")
			}
			return nil
		}),
	)
	ctx := context.Background()

	sheet, err := eng.Mount(domain.NewSheetConfig(800))
	require.NoError(t, err)
	require.NoError(t, sheet.Present(ctx, 0, true))

	err = sheet.Resize(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrPlatform)

	snap, err := sheet.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, domain.Presented(0), snap.State)
}

func TestPlatform_Unbound(t *testing.T) {
	p := sim.New()
	err := p.Dispatch(context.Background(), domain.Command{SheetID: "x"})
	assert.ErrorIs(t, err, sim.ErrUnbound)
}
