package runtime

import (
	"github.com/aretw0/detent/internal/resolver"
	"github.com/aretw0/detent/pkg/domain"
)

// dragSession lives from drag_begin until the drag operation consumes the release.
type dragSession struct {
	from    int
	release chan float64 // top offset at release
}

// beginDrag accepts a gesture only on an idle, presented, draggable sheet.
// The drag then occupies the queue like any other operation.
func (n *node) beginDrag(ev domain.Event) bool {
	n.mu.Lock()
	if n.torn || n.busy || !n.state.Is(domain.StatePresented) || !n.cfg.Draggable {
		st, busy := n.state, n.busy
		n.mu.Unlock()
		n.logger.Debug("ignoring drag_begin", "state", st, "busy", busy)
		return false
	}

	from := n.state
	sess := &dragSession{from: from.Index, release: make(chan float64, 1)}
	op := newOperation(opDrag, from.Index, true)
	op.drag = sess

	n.drag = sess
	n.busy = true
	n.queue = append(n.queue, op)
	n.state = domain.Dragging(from.Index, 0)
	n.mu.Unlock()

	n.eng.stateChanged(n, from, domain.Dragging(from.Index, 0), opDrag)
	n.emit(domain.EventDragBegin, n.info(from.Index))
	go n.drain()
	return true
}

// moveDrag updates the live offset and publishes a telemetry sample.
func (n *node) moveDrag(ev domain.Event) {
	pos, realtime, ok := eventPosition(ev)

	n.mu.Lock()
	if n.drag == nil || !ok {
		n.mu.Unlock()
		return
	}
	height := resolver.HeightFor(pos, n.bounds.MaxHeight)
	n.state.LiveOffset = n.detents.At(n.drag.from) - height
	sample := resolver.Sample(n.detents, height, n.bounds.MaxHeight, false)
	sample.Realtime = realtime
	info := domain.DetentInfo{Index: sample.NearestIndex, Position: pos, Detent: sample.Detent}
	n.mu.Unlock()

	n.eng.telemetry.Publish(n.id, sample)
	n.emit(domain.EventDragChange, &info)
}

func (n *node) endDrag(ev domain.Event) {
	pos, _, ok := eventPosition(ev)

	n.mu.Lock()
	sess := n.drag
	if sess == nil {
		n.mu.Unlock()
		return
	}
	if !ok {
		// No position on release: use the last reported offset.
		pos = resolver.PositionFor(n.detents.At(sess.from)-n.state.LiveOffset, n.bounds.MaxHeight)
	}
	info := resolver.Info(n.detents, resolver.Nearest(n.detents, resolver.HeightFor(pos, n.bounds.MaxHeight)), n.bounds.MaxHeight)
	info.Position = pos
	n.mu.Unlock()

	select {
	case sess.release <- pos:
	default:
	}
	n.emit(domain.EventDragEnd, &info)
}

// runDrag waits for the release and settles the gesture.
func (n *node) runDrag(sess *dragSession) error {
	var pos float64
	select {
	case pos = <-sess.release:
	case <-n.ctx.Done():
		return domain.ErrTornDown
	}

	n.mu.Lock()
	n.drag = nil
	detents := n.detents
	height := resolver.HeightFor(pos, n.bounds.MaxHeight)
	n.mu.Unlock()

	if n.cfg.Dismissible && height < detents.Lowest()-n.cfg.Threshold() {
		return n.dismissFrom(domain.Presented(sess.from), true)
	}

	target := resolver.Nearest(detents, height)
	if height < detents.Lowest() {
		target = 0
	}
	return n.snap(sess.from, target, height)
}

// snap animates from the release height to target. Detent change events
// are only emitted when the index actually changes.
func (n *node) snap(from, target int, height float64) error {
	n.setState(domain.Resizing(from, target), opDrag)
	changed := from != target
	if changed {
		n.emit(domain.EventWillDetentChange, n.info(target))
	}

	if err := n.command(domain.CommandResize, target, height, true, domain.EventDetentChange); err != nil {
		n.setState(domain.Presented(from), opDrag)
		return err
	}

	if changed {
		n.emit(domain.EventDetentChange, n.info(target))
	}
	n.setState(domain.Presented(target), opDrag)
	n.publishSettled(n.height(target))
	return nil
}

// eventPosition extracts a top offset from a drag or position event.
func eventPosition(ev domain.Event) (float64, bool, bool) {
	if ev.Sample != nil {
		return ev.Sample.Position, ev.Sample.Realtime, true
	}
	if ev.Info != nil {
		return ev.Info.Position, false, true
	}
	return 0, false, false
}
