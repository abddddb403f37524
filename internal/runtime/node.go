package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/detent/internal/resolver"
	"github.com/aretw0/detent/pkg/domain"
)

type opKind string

const (
	opPresent         opKind = "present"
	opDismiss         opKind = "dismiss"
	opResize          opKind = "resize"
	opDismissChildren opKind = "dismiss_children"
	opDrag            opKind = "drag"
	opLayout          opKind = "layout"
)

// operation is one queued unit of work on a node.
type operation struct {
	kind     opKind
	index    int
	animated bool
	drag     *dragSession
	layout   *domain.Layout
	done     chan error
}

func newOperation(kind opKind, index int, animated bool) *operation {
	return &operation{
		kind:     kind,
		index:    index,
		animated: animated,
		done:     make(chan error, 1),
	}
}

func (op *operation) finish(err error) {
	select {
	case op.done <- err:
	default:
	}
}

// pending is the completion slot for the one in-flight platform command.
type pending struct {
	id   string
	want domain.EventType
	ch   chan domain.Event
}

// node is the runtime side of a mounted sheet.
//
// Operations are appended to queue and executed one at a time by a drain
// goroutine started on demand. busy is true from the first submit until the
// queue is empty, and also for the whole length of a drag gesture.
type node struct {
	id     string
	name   string
	seq    uint64
	cfg    domain.SheetConfig
	eng    *Engine
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    domain.SheetState
	detents  domain.ResolvedDetents
	bounds   resolver.Bounds
	measured resolver.Measurements
	queue    []*operation
	busy     bool
	torn     bool
	pending  *pending
	drag     *dragSession
	updated  time.Time
}

func newNode(eng *Engine, id string, seq uint64, cfg domain.SheetConfig, detents domain.ResolvedDetents) *node {
	ctx, cancel := context.WithCancel(context.Background())
	logger := eng.logger.With("sheet_id", id)
	if cfg.Name != "" {
		logger = logger.With("sheet", cfg.Name)
	}
	return &node{
		id:      id,
		name:    cfg.Name,
		seq:     seq,
		cfg:     cfg,
		eng:     eng,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		state:   domain.Idle(),
		detents: detents,
		bounds:  resolver.Bounds{MaxHeight: cfg.MaxHeight, MediumHeight: cfg.MediumHeight},
		updated: time.Now(),
	}
}

// submit enqueues op and makes sure a drain goroutine is running.
func (n *node) submit(op *operation) *operation {
	n.mu.Lock()
	if n.torn {
		n.mu.Unlock()
		op.finish(n.fail(op, domain.ErrTornDown))
		return op
	}
	n.queue = append(n.queue, op)
	start := !n.busy
	n.busy = true
	n.mu.Unlock()

	if start {
		go n.drain()
	}
	return op
}

func (n *node) drain() {
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.busy = false
			n.mu.Unlock()
			return
		}
		op := n.queue[0]
		n.queue[0] = nil
		n.queue = n.queue[1:]
		torn := n.torn
		n.mu.Unlock()

		if torn {
			op.finish(n.fail(op, domain.ErrTornDown))
			continue
		}
		op.finish(n.fail(op, n.run(op)))
	}
}

func (n *node) run(op *operation) error {
	switch op.kind {
	case opPresent:
		return n.present(op.index, op.animated)
	case opDismiss:
		return n.dismiss(op.animated)
	case opResize:
		return n.resize(op.index)
	case opDismissChildren:
		return n.eng.dismissChildren(n, op.animated)
	case opDrag:
		return n.runDrag(op.drag)
	case opLayout:
		return n.applyLayout(*op.layout)
	}
	return nil
}

// fail wraps err for the caller and reports it through the failure hook.
func (n *node) fail(op *operation, err error) error {
	if err == nil {
		return nil
	}
	wrapped := domain.NewOperationError(string(op.kind), n.id, err)
	n.logger.Warn("operation failed", "op", op.kind, "error", err)
	if opErr, ok := wrapped.(*domain.OperationError); ok && n.eng.hooks.OnFailure != nil {
		n.eng.hooks.OnFailure(n.ctx, opErr)
	}
	return wrapped
}

// teardown rejects queued work and aborts the in-flight wait.
func (n *node) teardown() {
	n.mu.Lock()
	if n.torn {
		n.mu.Unlock()
		return
	}
	n.torn = true
	queued := n.queue
	n.queue = nil
	n.drag = nil
	n.mu.Unlock()

	n.cancel()
	for _, op := range queued {
		op.finish(n.fail(op, domain.ErrTornDown))
	}
}

func (n *node) current() (domain.SheetState, domain.ResolvedDetents) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state, n.detents
}

func (n *node) isTorn() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.torn
}

// setState commits a new state and notifies the engine.
func (n *node) setState(to domain.SheetState, op opKind) {
	n.mu.Lock()
	from := n.state
	n.state = to
	n.updated = time.Now()
	n.mu.Unlock()

	n.eng.stateChanged(n, from, to, op)
}

func (n *node) height(index int) float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.detents.At(index)
}

func (n *node) info(index int) *domain.DetentInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	info := resolver.Info(n.detents, index, n.bounds.MaxHeight)
	return &info
}

func (n *node) emit(typ domain.EventType, info *domain.DetentInfo) {
	n.eng.emit(n, &domain.Event{
		Type:      typ,
		SheetID:   n.id,
		Timestamp: time.Now(),
		Info:      info,
	})
}

// publishSettled sends the final sample of a transition at the given height.
func (n *node) publishSettled(height float64) {
	n.mu.Lock()
	sample := resolver.Sample(n.detents, height, n.bounds.MaxHeight, true)
	n.mu.Unlock()
	n.eng.telemetry.Publish(n.id, sample)
}

func (n *node) snapshot() *domain.Snapshot {
	n.mu.Lock()
	snap := &domain.Snapshot{
		ID:        n.id,
		Name:      n.name,
		State:     n.state,
		Detents:   n.detents.Clone(),
		Live:      n.state.Live(),
		UpdatedAt: n.updated,
	}
	n.mu.Unlock()

	snap.Parent = n.eng.stack.parentOf(n.id)
	snap.Children = n.eng.stack.childrenOf(n.id)
	return snap
}
