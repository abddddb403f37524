package detent

import (
	"context"
	"io"
	"log/slog"

	"github.com/aretw0/detent/internal/metrics"
	"github.com/aretw0/detent/internal/runtime"
	"github.com/aretw0/detent/internal/telemetry"
	"github.com/aretw0/detent/pkg/domain"
	"github.com/aretw0/detent/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine is the high-level entry point for the detent library.
// It wraps the internal runtime and hands out Sheet handles.
type Engine struct {
	runtime  *runtime.Engine
	platform ports.Platform
	store    ports.SnapshotStore
	locker   ports.DistributedLocker
	registry prometheus.Registerer
	metrics  *metrics.Collector
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	hubOpts  []telemetry.Option
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithPlatform injects the native driver. Without one, every command settles immediately.
func WithPlatform(p ports.Platform) Option {
	return func(e *Engine) {
		e.platform = p
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSnapshotStore mirrors sheet snapshots into store after every transition.
func WithSnapshotStore(store ports.SnapshotStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serializes snapshot writes across engines sharing a store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithMetrics registers Prometheus collectors for the engine on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithTelemetryBuffers sizes the per-sheet ingress and per-subscriber buffers.
func WithTelemetryBuffers(ingress, subscriber int) Option {
	return func(e *Engine) {
		e.hubOpts = append(e.hubOpts, telemetry.WithBufferSizes(ingress, subscriber))
	}
}

// New initializes a new detent Engine.
func New(opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	hooks := eng.hooks
	if eng.registry != nil {
		eng.metrics = metrics.New(eng.registry, func() int { return len(eng.runtime.Live()) })
		hooks = hooks.Merge(eng.metrics.Hooks())
		eng.hubOpts = append(eng.hubOpts, telemetry.WithDropHandler(eng.metrics.OnDrop))
	}

	eng.runtime = runtime.NewEngine(
		runtime.WithPlatform(eng.platform),
		runtime.WithLifecycleHooks(hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithSnapshotStore(eng.store),
		runtime.WithLocker(eng.locker),
		runtime.WithTelemetryOptions(eng.hubOpts...),
	)
	return eng
}

// Mount registers a sheet surface and returns its handle.
func (e *Engine) Mount(cfg domain.SheetConfig) (*Sheet, error) {
	id, err := e.runtime.Mount(cfg)
	if err != nil {
		return nil, err
	}
	return &Sheet{id: id, name: cfg.Name, engine: e}, nil
}

// Unmount tears a sheet down, rejecting its pending commands with domain.ErrTornDown.
func (e *Engine) Unmount(id string) error {
	return e.runtime.Unmount(id)
}

// Sheet returns the handle for a mounted sheet.
func (e *Engine) Sheet(id string) (*Sheet, error) {
	snap, err := e.runtime.Snapshot(id)
	if err != nil {
		return nil, err
	}
	return &Sheet{id: id, name: snap.Name, engine: e}, nil
}

// Lookup resolves a sheet by name.
func (e *Engine) Lookup(name string) (*Sheet, error) {
	id, err := e.runtime.Lookup(name)
	if err != nil {
		return nil, err
	}
	return &Sheet{id: id, name: name, engine: e}, nil
}

// DismissAll dismisses every presented sheet, most recent stack first.
func (e *Engine) DismissAll(ctx context.Context, animated bool) error {
	return e.runtime.DismissAll(ctx, animated)
}

// Deliver feeds a platform event (settle, failure, drag, position, layout) into the engine.
func (e *Engine) Deliver(ctx context.Context, ev domain.Event) error {
	return e.runtime.Deliver(ctx, ev)
}

// List returns snapshots of every mounted sheet in mount order.
func (e *Engine) List() []*domain.Snapshot {
	return e.runtime.List()
}

// Live returns the IDs of presented or transitioning sheets.
func (e *Engine) Live() []string {
	return e.runtime.Live()
}

// Topmost returns the most recently presented live sheet, or "".
func (e *Engine) Topmost() string {
	return e.runtime.Topmost()
}

// Sheet is the command handle for one mounted sheet.
// Every command blocks until the matching terminal event or a failure.
// Cancelling ctx abandons the wait; the command itself still runs.
type Sheet struct {
	id     string
	name   string
	engine *Engine
}

func (s *Sheet) ID() string   { return s.id }
func (s *Sheet) Name() string { return s.name }

// Present shows the sheet at the given detent index.
func (s *Sheet) Present(ctx context.Context, index int, animated bool) error {
	return s.engine.runtime.Present(ctx, s.id, index, animated)
}

// Dismiss hides the sheet and everything stacked on it.
func (s *Sheet) Dismiss(ctx context.Context, animated bool) error {
	return s.engine.runtime.Dismiss(ctx, s.id, animated)
}

// Resize moves a presented sheet to another detent.
func (s *Sheet) Resize(ctx context.Context, index int) error {
	return s.engine.runtime.Resize(ctx, s.id, index)
}

// DismissChildren dismisses every sheet stacked on this one.
func (s *Sheet) DismissChildren(ctx context.Context, animated bool) error {
	return s.engine.runtime.DismissChildren(ctx, s.id, animated)
}

// Snapshot returns the sheet's current state.
func (s *Sheet) Snapshot() (*domain.Snapshot, error) {
	return s.engine.runtime.Snapshot(s.id)
}

// Subscribe streams position samples. Call cancel to stop receiving.
func (s *Sheet) Subscribe() (<-chan domain.PositionSample, func(), error) {
	return s.engine.runtime.Subscribe(s.id)
}
