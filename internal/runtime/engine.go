// Package runtime implements the sheet lifecycle state machine and the
// stack coordinator behind the detent Engine.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/detent/internal/logging"
	"github.com/aretw0/detent/internal/resolver"
	"github.com/aretw0/detent/internal/telemetry"
	"github.com/aretw0/detent/pkg/domain"
	"github.com/aretw0/detent/pkg/ports"
	"github.com/google/uuid"
)

const lockTTL = 5 * time.Second

// Engine owns every mounted sheet, the live registry and the stack tables.
type Engine struct {
	platform  ports.Platform
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	store     ports.SnapshotStore
	locker    ports.DistributedLocker
	telemetry *telemetry.Hub
	hubOpts   []telemetry.Option
	stack     *stack

	mu    sync.RWMutex
	nodes map[string]*node    // mounted surfaces
	live  map[string]struct{} // registry: presented or mid-transition
	seq   uint64

	names atomic.Pointer[map[string]string]
}

// EngineOption configures the runtime Engine.
type EngineOption func(*Engine)

// WithPlatform sets the native driver that executes commands.
func WithPlatform(p ports.Platform) EngineOption {
	return func(e *Engine) {
		e.platform = p
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSnapshotStore mirrors every committed transition into store.
func WithSnapshotStore(store ports.SnapshotStore) EngineOption {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker guards snapshot writes when several engines share one store.
func WithLocker(locker ports.DistributedLocker) EngineOption {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithTelemetryOptions tunes the position telemetry hub.
func WithTelemetryOptions(opts ...telemetry.Option) EngineOption {
	return func(e *Engine) {
		e.hubOpts = append(e.hubOpts, opts...)
	}
}

// NewEngine creates an Engine. Without a platform, commands settle immediately.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger: logging.NewNop(),
		stack:  newStack(),
		nodes:  make(map[string]*node),
		live:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.platform == nil {
		e.platform = instantPlatform(e)
	}
	e.telemetry = telemetry.NewHub(append([]telemetry.Option{telemetry.WithLogger(e.logger)}, e.hubOpts...)...)
	e.names.Store(&map[string]string{})
	return e
}

func instantPlatform(e *Engine) ports.Platform {
	return ports.PlatformFunc(func(_ context.Context, cmd domain.Command) error {
		go func() {
			_ = e.Deliver(context.Background(), cmd.Settled())
		}()
		return nil
	})
}

// Mount creates the node for a surface. It resolves detents eagerly and,
// when the config carries an initial index, starts presenting without waiting.
func (e *Engine) Mount(cfg domain.SheetConfig) (string, error) {
	res, err := resolver.Resolve(cfg.Detents, resolver.Bounds{MaxHeight: cfg.MaxHeight, MediumHeight: cfg.MediumHeight}, resolver.Measurements{})
	if err != nil {
		return "", err
	}
	if len(res.Detents) > resolver.MaxNativeDetents {
		e.logger.Warn("more detents than native sheets support", "sheet", cfg.Name, "count", len(res.Detents), "max", resolver.MaxNativeDetents)
	}

	id := uuid.NewString()

	e.mu.Lock()
	if cfg.Name != "" {
		if _, dup := (*e.names.Load())[cfg.Name]; dup {
			e.mu.Unlock()
			return "", &domain.ConfigurationError{Err: domain.ErrDuplicateName, Detail: cfg.Name}
		}
	}
	e.seq++
	n := newNode(e, id, e.seq, cfg, res.Detents)
	e.nodes[id] = n
	e.publishNamesLocked()
	e.mu.Unlock()

	e.telemetry.Open(id)
	n.mirror()
	n.logger.Info("sheet mounted", "detents", res.Detents, "provisional", res.Provisional)
	n.emit(domain.EventMount, nil)

	if index, ok := cfg.PresentOnMount(); ok {
		n.submit(newOperation(opPresent, index, cfg.InitialAnimated))
	}
	return id, nil
}

// Unmount tears the node down. In-flight and queued commands fail with
// ErrTornDown and its children become roots.
func (e *Engine) Unmount(id string) error {
	e.mu.Lock()
	n, ok := e.nodes[id]
	if !ok {
		e.mu.Unlock()
		return &domain.OperationError{Op: "unmount", SheetID: id, Err: domain.ErrNotFound}
	}
	delete(e.nodes, id)
	delete(e.live, id)
	e.publishNamesLocked()
	e.mu.Unlock()

	n.teardown()
	e.stack.detach(id)
	e.telemetry.Close(id)
	if e.store != nil {
		if err := e.store.Delete(context.Background(), id); err != nil {
			n.logger.Warn("failed to delete snapshot", "error", err)
		}
	}
	n.logger.Info("sheet unmounted")
	return nil
}

// Present shows the sheet at index, or moves an already presented sheet there.
func (e *Engine) Present(ctx context.Context, id string, index int, animated bool) error {
	return e.exec(ctx, id, newOperation(opPresent, index, animated))
}

// Dismiss hides the sheet after dismissing everything stacked on it.
func (e *Engine) Dismiss(ctx context.Context, id string, animated bool) error {
	return e.exec(ctx, id, newOperation(opDismiss, 0, animated))
}

// Resize moves a presented sheet to another detent.
func (e *Engine) Resize(ctx context.Context, id string, index int) error {
	return e.exec(ctx, id, newOperation(opResize, index, true))
}

// DismissChildren dismisses every sheet stacked on id, leaving id presented.
func (e *Engine) DismissChildren(ctx context.Context, id string, animated bool) error {
	return e.exec(ctx, id, newOperation(opDismissChildren, 0, animated))
}

// exec queues op and waits for it. Cancelling ctx abandons the wait only.
func (e *Engine) exec(ctx context.Context, id string, op *operation) error {
	n, ok := e.node(id)
	if !ok {
		return &domain.OperationError{Op: string(op.kind), SheetID: id, Err: domain.ErrNotFound}
	}
	n.submit(op)

	select {
	case err := <-op.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver feeds a platform-originated event into the engine.
func (e *Engine) Deliver(ctx context.Context, ev domain.Event) error {
	n, ok := e.node(ev.SheetID)
	if !ok {
		return &domain.OperationError{Op: "deliver", SheetID: ev.SheetID, Err: domain.ErrNotFound}
	}

	switch ev.Type {
	case domain.EventDidPresent, domain.EventDidDismiss, domain.EventDetentChange, domain.EventFailed:
		if !n.settle(ev) {
			n.logger.Debug("ignoring uncorrelated event", "type", ev.Type, "correlation_id", ev.CorrelationID)
		}
	case domain.EventDragBegin:
		n.beginDrag(ev)
	case domain.EventDragChange:
		n.moveDrag(ev)
	case domain.EventDragEnd:
		n.endDrag(ev)
	case domain.EventPositionChange:
		n.position(ev)
	case domain.EventLayout:
		if ev.Layout == nil {
			return &domain.OperationError{Op: string(opLayout), SheetID: n.id, Err: fmt.Errorf("%w: layout event without payload", domain.ErrInvalidTransition)}
		}
		if err := n.deliverLayout(*ev.Layout); err != nil {
			return domain.NewOperationError(string(opLayout), n.id, err)
		}
	case domain.EventMount, domain.EventWillPresent, domain.EventWillDismiss, domain.EventWillDetentChange,
		domain.EventWillFocus, domain.EventDidFocus, domain.EventWillBlur, domain.EventDidBlur:
		n.logger.Debug("platform notification", "type", ev.Type)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}

// Subscribe returns the telemetry stream of a mounted sheet.
func (e *Engine) Subscribe(id string) (<-chan domain.PositionSample, func(), error) {
	ch, cancel, err := e.telemetry.Subscribe(id)
	if err != nil {
		return nil, nil, &domain.OperationError{Op: "subscribe", SheetID: id, Err: err}
	}
	return ch, cancel, nil
}

// Lookup resolves a sheet name to its ID from an atomic snapshot.
func (e *Engine) Lookup(name string) (string, error) {
	id, ok := (*e.names.Load())[name]
	if !ok {
		return "", &domain.OperationError{Op: "lookup", SheetID: name, Err: domain.ErrNotFound}
	}
	return id, nil
}

// Snapshot returns the current view of a mounted sheet.
func (e *Engine) Snapshot(id string) (*domain.Snapshot, error) {
	n, ok := e.node(id)
	if !ok {
		return nil, &domain.OperationError{Op: "snapshot", SheetID: id, Err: domain.ErrNotFound}
	}
	return n.snapshot(), nil
}

// List returns snapshots of every mounted sheet in mount order.
func (e *Engine) List() []*domain.Snapshot {
	e.mu.RLock()
	nodes := make([]*node, 0, len(e.nodes))
	for _, n := range e.nodes {
		nodes = append(nodes, n)
	}
	e.mu.RUnlock()

	slices.SortFunc(nodes, func(a, b *node) int { return int(a.seq) - int(b.seq) })
	out := make([]*domain.Snapshot, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.snapshot())
	}
	return out
}

// Live returns the IDs in the live registry.
func (e *Engine) Live() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, 0, len(e.live))
	for id := range e.live {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Topmost returns the most recently presented live sheet, or "".
func (e *Engine) Topmost() string {
	return e.stack.topmost()
}

func (e *Engine) node(id string) (*node, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.nodes[id]
	return n, ok
}

func (e *Engine) publishNamesLocked() {
	names := make(map[string]string, len(e.nodes))
	for id, n := range e.nodes {
		if n.name != "" {
			names[n.name] = id
		}
	}
	e.names.Store(&names)
}

// stateChanged maintains the live registry and fans the change out.
func (e *Engine) stateChanged(n *node, from, to domain.SheetState, op opKind) {
	if from == to {
		return
	}

	e.mu.Lock()
	if e.nodes[n.id] != n {
		e.mu.Unlock()
		return
	}
	if to.Live() {
		e.live[n.id] = struct{}{}
	} else {
		delete(e.live, n.id)
	}
	e.mu.Unlock()

	n.logger.Debug("state change", "op", op, "from", from, "to", to)
	if e.hooks.OnStateChange != nil {
		e.hooks.OnStateChange(n.ctx, &domain.StateChange{
			SheetID: n.id,
			Name:    n.name,
			From:    from,
			To:      to,
			Op:      string(op),
		})
	}
	n.mirror()
}

func (e *Engine) emit(n *node, ev *domain.Event) {
	if n.isTorn() {
		return
	}
	n.logger.Debug("event", "type", ev.Type)
	if e.hooks.OnEvent != nil {
		e.hooks.OnEvent(n.ctx, ev)
	}
}

// mirror writes the node's snapshot to the store, best-effort.
func (n *node) mirror() {
	store := n.eng.store
	if store == nil {
		return
	}
	ctx := context.Background()

	if locker := n.eng.locker; locker != nil {
		unlock, err := locker.Lock(ctx, "sheet:"+n.id, lockTTL)
		if err != nil {
			n.logger.Warn("failed to lock snapshot", "error", err)
			return
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				n.logger.Warn("failed to unlock snapshot", "error", err)
			}
		}()
	}

	if err := store.Save(ctx, n.snapshot()); err != nil {
		n.logger.Warn("failed to save snapshot", "error", err)
	}
}
