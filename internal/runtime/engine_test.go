package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/detent/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresent_IndexOutOfRangeLeavesStateUnchanged(t *testing.T) {
	p := newManualPlatform()
	e := NewEngine(WithPlatform(p))
	id := mount(t, e, nil, "sheet")
	ctx := context.Background()

	err := e.Present(ctx, id, 2, true)
	require.ErrorIs(t, err, domain.ErrIndexOutOfRange)

	var opErr *domain.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "present", opErr.Op)
	assert.Equal(t, id, opErr.SheetID)

	assert.Equal(t, domain.Idle(), state(t, e, id))
	assert.Empty(t, e.Live())
	p.assertIdle(t)
}

func TestPresentThenResize_CompleteInCallOrder(t *testing.T) {
	p := newManualPlatform()
	rec := newRecorder()
	e := NewEngine(WithPlatform(p), WithLifecycleHooks(rec.hooks()))
	id := mount(t, e, rec, "a")
	ctx := context.Background()

	presentDone := async(func() error { return e.Present(ctx, id, 0, true) })
	cmd := p.next(t)
	require.Equal(t, domain.CommandPresent, cmd.Kind)

	resizeDone := async(func() error { return e.Resize(ctx, id, 1) })
	n, _ := e.node(id)
	require.Eventually(t, func() bool { return queued(n) == 1 }, waitTimeout, 5*time.Millisecond)

	// The resize waits for the present to settle.
	p.assertIdle(t)
	require.NoError(t, e.Deliver(ctx, cmd.Settled()))
	require.NoError(t, await(t, presentDone))

	cmd = p.next(t)
	assert.Equal(t, domain.CommandResize, cmd.Kind)
	assert.Equal(t, 1, cmd.Index)
	assert.Equal(t, 400.0, cmd.FromHeight)
	assert.Equal(t, 800.0, cmd.Height)
	require.NoError(t, e.Deliver(ctx, cmd.Settled()))
	require.NoError(t, await(t, resizeDone))

	assert.Equal(t, domain.Presented(1), state(t, e, id))
	assert.Equal(t, []string{"a:did_present", "a:detent_change"}, rec.trace(domain.EventDidPresent, domain.EventDetentChange))
}

func TestPresent_FromPresentedRunsAsDetentChange(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(WithLifecycleHooks(rec.hooks()))
	id := mount(t, e, rec, "a")
	ctx := context.Background()

	require.NoError(t, e.Present(ctx, id, 0, true))
	require.NoError(t, e.Present(ctx, id, 0, true), "same index is a no-op")
	require.NoError(t, e.Present(ctx, id, 1, true))

	assert.Equal(t, domain.Presented(1), state(t, e, id))
	assert.Equal(t,
		[]string{"a:will_present", "a:did_present", "a:will_detent_change", "a:detent_change"},
		rec.trace(domain.EventWillPresent, domain.EventDidPresent, domain.EventWillDetentChange, domain.EventDetentChange),
	)
}

func TestResize_Rules(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(WithLifecycleHooks(rec.hooks()))
	id := mount(t, e, rec, "a")
	ctx := context.Background()

	err := e.Resize(ctx, id, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.Idle(), state(t, e, id))

	require.NoError(t, e.Present(ctx, id, 0, true))

	err = e.Resize(ctx, id, 5)
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
	assert.Equal(t, domain.Presented(0), state(t, e, id))

	require.NoError(t, e.Resize(ctx, id, 0))
	assert.Zero(t, rec.count(id, domain.EventWillDetentChange), "resizing to the current index does not transition")
}

func TestDismiss_CascadesLIFO(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(WithLifecycleHooks(rec.hooks()))
	ctx := context.Background()

	parent := mount(t, e, rec, "parent")
	child1 := mount(t, e, rec, "child1")
	child2 := mount(t, e, rec, "child2")
	for _, id := range []string{parent, child1, child2} {
		require.NoError(t, e.Present(ctx, id, 0, true))
	}

	snap, err := e.Snapshot(child1)
	require.NoError(t, err)
	assert.Equal(t, parent, snap.Parent)
	assert.Equal(t, []string{child2}, snap.Children)

	require.NoError(t, e.Dismiss(ctx, parent, true))

	assert.Equal(t, []string{
		"child2:will_dismiss", "child2:did_dismiss",
		"child1:will_dismiss", "child1:did_dismiss",
		"parent:will_dismiss", "parent:did_dismiss",
	}, rec.trace(domain.EventWillDismiss, domain.EventDidDismiss))

	for _, id := range []string{parent, child1, child2} {
		assert.Equal(t, domain.Dismissed(), state(t, e, id))
	}
	assert.Empty(t, e.Live())
}

func TestPresent_FocusEvents(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(WithLifecycleHooks(rec.hooks()))
	ctx := context.Background()

	parent := mount(t, e, rec, "parent")
	child := mount(t, e, rec, "child")

	require.NoError(t, e.Present(ctx, parent, 0, true))
	require.NoError(t, e.Present(ctx, child, 1, true))
	assert.Equal(t, []string{
		"parent:will_present", "parent:did_present",
		"parent:will_blur", "child:will_present", "child:did_present", "parent:did_blur",
	}, rec.trace(domain.EventWillPresent, domain.EventDidPresent, domain.EventWillBlur, domain.EventDidBlur))

	require.NoError(t, e.Dismiss(ctx, child, true))
	assert.Equal(t, []string{
		"parent:will_focus", "child:will_dismiss", "child:did_dismiss", "parent:did_focus",
	}, rec.trace(domain.EventWillFocus, domain.EventDidFocus, domain.EventWillDismiss, domain.EventDidDismiss))
}

func TestDismissChildren_LeavesNodePresented(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	parent := mount(t, e, nil, "parent")
	child1 := mount(t, e, nil, "child1")
	child2 := mount(t, e, nil, "child2")
	for _, id := range []string{parent, child1, child2} {
		require.NoError(t, e.Present(ctx, id, 0, true))
	}

	require.NoError(t, e.DismissChildren(ctx, parent, true))

	assert.Equal(t, domain.Presented(0), state(t, e, parent))
	assert.Equal(t, domain.Dismissed(), state(t, e, child1))
	assert.Equal(t, domain.Dismissed(), state(t, e, child2))
	assert.Equal(t, []string{parent}, e.Live())
}

func TestDismissChildren_FailureStopsCascade(t *testing.T) {
	p := newManualPlatform()
	e := NewEngine(WithPlatform(p))
	ctx := context.Background()

	a := mount(t, e, nil, "a")
	b := mount(t, e, nil, "b")
	c := mount(t, e, nil, "c")
	for _, id := range []string{a, b, c} {
		done := async(func() error { return e.Present(ctx, id, 0, true) })
		require.NoError(t, e.Deliver(ctx, p.next(t).Settled()))
		require.NoError(t, await(t, done))
	}

	done := async(func() error { return e.DismissChildren(ctx, a, true) })
	cmd := p.next(t)
	require.Equal(t, c, cmd.SheetID, "most recent descendant goes first")
	require.NoError(t, e.Deliver(ctx, cmd.Failed("boom")))

	err := await(t, done)
	require.ErrorIs(t, err, domain.ErrPlatform)
	assert.Contains(t, err.Error(), "boom")
	p.assertIdle(t)

	for _, id := range []string{a, b, c} {
		assert.Equal(t, domain.Presented(0), state(t, e, id))
	}
	assert.ElementsMatch(t, []string{a, b, c}, e.Live())
}

func TestPresent_FailureRestoresParentFocus(t *testing.T) {
	p := newManualPlatform()
	rec := newRecorder()
	e := NewEngine(WithPlatform(p), WithLifecycleHooks(rec.hooks()))
	ctx := context.Background()

	parent := mount(t, e, rec, "parent")
	child := mount(t, e, rec, "child")
	done := async(func() error { return e.Present(ctx, parent, 0, true) })
	require.NoError(t, e.Deliver(ctx, p.next(t).Settled()))
	require.NoError(t, await(t, done))

	done = async(func() error { return e.Present(ctx, child, 0, true) })
	require.NoError(t, e.Deliver(ctx, p.next(t).Failed("no window")))
	require.ErrorIs(t, await(t, done), domain.ErrPlatform)

	assert.Equal(t, []string{"parent:will_blur", "parent:will_focus", "parent:did_focus"},
		rec.trace(domain.EventWillBlur, domain.EventDidBlur, domain.EventWillFocus, domain.EventDidFocus))
	assert.Equal(t, domain.Idle(), state(t, e, child))
	assert.Equal(t, parent, e.Topmost())
}

func TestDismiss_FailureRestoresParentBlur(t *testing.T) {
	p := newManualPlatform()
	rec := newRecorder()
	e := NewEngine(WithPlatform(p), WithLifecycleHooks(rec.hooks()))
	ctx := context.Background()

	parent := mount(t, e, rec, "parent")
	child := mount(t, e, rec, "child")
	for _, id := range []string{parent, child} {
		done := async(func() error { return e.Present(ctx, id, 0, true) })
		require.NoError(t, e.Deliver(ctx, p.next(t).Settled()))
		require.NoError(t, await(t, done))
	}

	done := async(func() error { return e.Dismiss(ctx, child, true) })
	require.NoError(t, e.Deliver(ctx, p.next(t).Failed("stuck")))
	require.ErrorIs(t, await(t, done), domain.ErrPlatform)

	assert.Equal(t, []string{
		"parent:will_blur", "parent:did_blur",
		"parent:will_focus", "parent:will_blur", "parent:did_blur",
	}, rec.trace(domain.EventWillBlur, domain.EventDidBlur, domain.EventWillFocus, domain.EventDidFocus))
	assert.Equal(t, domain.Presented(0), state(t, e, child))
}

func TestDismissAll_IndependentRoots(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(WithLifecycleHooks(rec.hooks()))
	ctx := context.Background()

	names := []string{"a", "b", "c", "d", "e"}
	ids := make(map[string]string, len(names))
	for _, name := range names {
		ids[name] = mount(t, e, rec, name)
		require.NoError(t, e.Present(ctx, ids[name], 0, true))
	}

	// a <- b <- c <- d <- e; removing b and d leaves a, c and e as roots.
	require.NoError(t, e.Unmount(ids["b"]))
	require.NoError(t, e.Unmount(ids["d"]))
	require.Len(t, e.Live(), 3)

	require.NoError(t, e.DismissAll(ctx, true))

	assert.Empty(t, e.Live())
	for _, name := range []string{"a", "c", "e"} {
		assert.Equal(t, domain.Dismissed(), state(t, e, ids[name]))
	}
	assert.Equal(t, []string{"e:did_dismiss", "c:did_dismiss", "a:did_dismiss"}, rec.trace(domain.EventDidDismiss))
}

func TestDismiss_TwiceWhileInFlight(t *testing.T) {
	p := newManualPlatform()
	rec := newRecorder()
	e := NewEngine(WithPlatform(p), WithLifecycleHooks(rec.hooks()))
	id := mount(t, e, rec, "a")
	ctx := context.Background()

	done := async(func() error { return e.Present(ctx, id, 0, true) })
	require.NoError(t, e.Deliver(ctx, p.next(t).Settled()))
	require.NoError(t, await(t, done))

	first := async(func() error { return e.Dismiss(ctx, id, true) })
	cmd := p.next(t)
	require.Equal(t, domain.CommandDismiss, cmd.Kind)

	second := async(func() error { return e.Dismiss(ctx, id, true) })
	n, _ := e.node(id)
	require.Eventually(t, func() bool { return queued(n) == 1 }, waitTimeout, 5*time.Millisecond)

	require.NoError(t, e.Deliver(ctx, cmd.Settled()))
	require.NoError(t, await(t, first))
	require.NoError(t, await(t, second))

	assert.Equal(t, 1, rec.count(id, domain.EventDidDismiss))
	p.assertIdle(t)
}

func TestDismiss_IdleIsNoop(t *testing.T) {
	p := newManualPlatform()
	e := NewEngine(WithPlatform(p))
	id := mount(t, e, nil, "a")

	require.NoError(t, e.Dismiss(context.Background(), id, true))
	assert.Equal(t, domain.Idle(), state(t, e, id))
	p.assertIdle(t)
}

func TestUnmount_RejectsPendingWithTornDown(t *testing.T) {
	p := newManualPlatform()
	e := NewEngine(WithPlatform(p))
	id := mount(t, e, nil, "a")
	ctx := context.Background()

	presentDone := async(func() error { return e.Present(ctx, id, 0, true) })
	cmd := p.next(t)

	resizeDone := async(func() error { return e.Resize(ctx, id, 1) })
	n, _ := e.node(id)
	require.Eventually(t, func() bool { return queued(n) == 1 }, waitTimeout, 5*time.Millisecond)

	require.NoError(t, e.Unmount(id))

	assert.ErrorIs(t, await(t, presentDone), domain.ErrTornDown)
	assert.ErrorIs(t, await(t, resizeDone), domain.ErrTornDown)
	assert.Empty(t, e.Live())

	_, err := e.Snapshot(id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, e.Deliver(ctx, cmd.Settled()), domain.ErrNotFound)
	assert.ErrorIs(t, e.Present(ctx, id, 0, true), domain.ErrNotFound)
}

func TestUnmount_ReRootsChildren(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	parent := mount(t, e, nil, "parent")
	child := mount(t, e, nil, "child")
	require.NoError(t, e.Present(ctx, parent, 0, true))
	require.NoError(t, e.Present(ctx, child, 0, true))

	require.NoError(t, e.Unmount(parent))

	snap, err := e.Snapshot(child)
	require.NoError(t, err)
	assert.Empty(t, snap.Parent)
	assert.Equal(t, domain.Presented(0), snap.State)
	assert.Equal(t, []string{child}, e.Live())
}

func TestDismiss_CascadeFailureStopsAndSurfaces(t *testing.T) {
	p := newManualPlatform()
	e := NewEngine(WithPlatform(p))
	ctx := context.Background()

	parent := mount(t, e, nil, "parent")
	child := mount(t, e, nil, "child")
	for _, id := range []string{parent, child} {
		done := async(func() error { return e.Present(ctx, id, 0, true) })
		require.NoError(t, e.Deliver(ctx, p.next(t).Settled()))
		require.NoError(t, await(t, done))
	}

	done := async(func() error { return e.Dismiss(ctx, parent, true) })
	cmd := p.next(t)
	require.Equal(t, child, cmd.SheetID)
	require.NoError(t, e.Deliver(ctx, cmd.Failed("animation interrupted")))

	err := await(t, done)
	require.ErrorIs(t, err, domain.ErrPlatform)
	var opErr *domain.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, child, opErr.SheetID)
	assert.Contains(t, err.Error(), "animation interrupted")

	assert.Equal(t, domain.Presented(0), state(t, e, parent))
	assert.Equal(t, domain.Presented(0), state(t, e, child))
	p.assertIdle(t)

	// A retry goes through.
	done = async(func() error { return e.Dismiss(ctx, parent, true) })
	require.NoError(t, e.Deliver(ctx, p.next(t).Settled()))
	require.NoError(t, e.Deliver(ctx, p.next(t).Settled()))
	require.NoError(t, await(t, done))
	assert.Empty(t, e.Live())
}

func TestPresent_PlatformFailureRollsBack(t *testing.T) {
	p := newManualPlatform()
	var failures []*domain.OperationError
	e := NewEngine(WithPlatform(p), WithLifecycleHooks(domain.LifecycleHooks{
		OnFailure: func(_ context.Context, err *domain.OperationError) { failures = append(failures, err) },
	}))
	id := mount(t, e, nil, "a")
	ctx := context.Background()

	done := async(func() error { return e.Present(ctx, id, 1, true) })
	require.NoError(t, e.Deliver(ctx, p.next(t).Failed("")))

	assert.ErrorIs(t, await(t, done), domain.ErrPlatform)
	assert.Equal(t, domain.Idle(), state(t, e, id))
	assert.Empty(t, e.Live())
	assert.Empty(t, e.Topmost())
	require.Len(t, failures, 1)
	assert.Equal(t, "present", failures[0].Op)
}

func TestPresent_DispatchError(t *testing.T) {
	p := newManualPlatform()
	p.err = errors.New("bridge down")
	e := NewEngine(WithPlatform(p))
	id := mount(t, e, nil, "a")

	err := e.Present(context.Background(), id, 0, true)
	assert.ErrorIs(t, err, domain.ErrPlatform)
	assert.Contains(t, err.Error(), "bridge down")
	assert.Equal(t, domain.Idle(), state(t, e, id))
}

func TestDeliver_IgnoresUncorrelatedSettle(t *testing.T) {
	p := newManualPlatform()
	e := NewEngine(WithPlatform(p))
	id := mount(t, e, nil, "a")
	ctx := context.Background()

	done := async(func() error { return e.Present(ctx, id, 0, true) })
	cmd := p.next(t)

	stray := cmd.Settled()
	stray.CorrelationID = "someone-else"
	require.NoError(t, e.Deliver(ctx, stray))

	wrongKind := cmd.Settled()
	wrongKind.Type = domain.EventDidDismiss
	require.NoError(t, e.Deliver(ctx, wrongKind))

	select {
	case err := <-done:
		t.Fatalf("present completed by an unrelated event: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, e.Deliver(ctx, cmd.Settled()))
	require.NoError(t, await(t, done))
}

func TestPresent_CallerCancelAbandonsWaitOnly(t *testing.T) {
	p := newManualPlatform()
	e := NewEngine(WithPlatform(p))
	id := mount(t, e, nil, "a")

	ctx, cancel := context.WithCancel(context.Background())
	done := async(func() error { return e.Present(ctx, id, 0, true) })
	cmd := p.next(t)
	cancel()
	assert.ErrorIs(t, await(t, done), context.Canceled)

	require.NoError(t, e.Deliver(context.Background(), cmd.Settled()))
	require.Eventually(t, func() bool {
		return state(t, e, id) == domain.Presented(0)
	}, waitTimeout, 5*time.Millisecond)
}

func TestMount_InitialIndexPresents(t *testing.T) {
	e := NewEngine()
	cfg := twoDetents("initial")
	initial := 1
	cfg.InitialIndex = &initial

	id, err := e.Mount(cfg)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return state(t, e, id) == domain.Presented(1)
	}, waitTimeout, 5*time.Millisecond)
}

func TestMount_NamesAndErrors(t *testing.T) {
	e := NewEngine()

	id := mount(t, e, nil, "settings")
	_, err := e.Mount(twoDetents("settings"))
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	got, err := e.Lookup("settings")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = e.Lookup("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, e.Unmount(id))
	_, err = e.Lookup("settings")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	mount(t, e, nil, "settings")

	cfg := domain.NewSheetConfig(800)
	cfg.Detents = nil
	_, err = e.Mount(cfg)
	assert.ErrorIs(t, err, domain.ErrEmptyDetentList)

	assert.ErrorIs(t, e.Unmount("nope"), domain.ErrNotFound)
	assert.ErrorIs(t, e.Present(context.Background(), "nope", 0, true), domain.ErrNotFound)
}

func TestList_MountOrder(t *testing.T) {
	e := NewEngine()
	a := mount(t, e, nil, "a")
	b := mount(t, e, nil, "b")

	list := e.List()
	require.Len(t, list, 2)
	assert.Equal(t, a, list[0].ID)
	assert.Equal(t, b, list[1].ID)
	assert.Equal(t, domain.ResolvedDetents{400, 800}, list[0].Detents)
}
