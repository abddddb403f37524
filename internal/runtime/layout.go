package runtime

import (
	"slices"
	"time"

	"github.com/aretw0/detent/internal/resolver"
	"github.com/aretw0/detent/pkg/domain"
)

// resolveLocked re-resolves detents with l merged into the node's current
// bounds and measurements, without committing anything. n.mu must be held.
func (n *node) resolveLocked(l domain.Layout) (resolver.Bounds, resolver.Measurements, resolver.Resolution, error) {
	bounds, measured := n.bounds, n.measured
	if l.MaxHeight != nil {
		bounds.MaxHeight = *l.MaxHeight
	}
	if l.MediumHeight != nil {
		bounds.MediumHeight = *l.MediumHeight
	}
	if l.ContentHeight != nil {
		v := *l.ContentHeight
		measured.ContentHeight = &v
	}
	if l.FooterHeight != nil {
		v := *l.FooterHeight
		measured.FooterHeight = &v
	}

	res, err := resolver.Resolve(n.cfg.Detents, bounds, measured)
	return bounds, measured, res, err
}

// deliverLayout applies a layout event. Plain re-resolutions apply at once
// and keep the current index. Renormalizing ones change the state, so they
// are validated here and queued behind any in-flight operation.
func (n *node) deliverLayout(l domain.Layout) error {
	if !l.Renormalize {
		return n.applyLayout(l)
	}

	n.mu.Lock()
	_, _, _, err := n.resolveLocked(l)
	n.mu.Unlock()
	if err != nil {
		n.logger.Warn("layout rejected", "error", err)
		return err
	}

	op := newOperation(opLayout, 0, false)
	op.layout = &l
	n.submit(op)
	return nil
}

// applyLayout commits a re-resolution. With l.Renormalize a presented sheet
// moves to the index nearest its previous height, so that case only runs
// from the node's queue.
func (n *node) applyLayout(l domain.Layout) error {
	n.mu.Lock()
	bounds, measured, res, err := n.resolveLocked(l)
	if err != nil {
		n.mu.Unlock()
		n.logger.Warn("layout rejected", "error", err)
		return err
	}

	n.bounds, n.measured = bounds, measured
	prev := n.detents
	if slices.Equal(prev, res.Detents) {
		n.mu.Unlock()
		return nil
	}
	n.detents = res.Detents

	from := n.state
	to := from
	if l.Renormalize && from.Is(domain.StatePresented) {
		to = domain.Presented(resolver.Nearest(res.Detents, prev.At(from.Index)))
		n.state = to
	}
	n.updated = time.Now()
	n.mu.Unlock()

	n.logger.Info("detents changed", "from", prev, "to", res.Detents, "provisional", res.Provisional)
	if from != to {
		n.eng.stateChanged(n, from, to, opLayout)
	} else {
		n.mirror()
	}

	layout := l
	n.eng.emit(n, &domain.Event{
		Type:      domain.EventDetentsChanged,
		SheetID:   n.id,
		Timestamp: time.Now(),
		Layout:    &layout,
		Detents:   res.Detents.Clone(),
	})
	return nil
}

// position forwards a platform position report to telemetry while the
// sheet is in motion. Reports at rest are dropped.
func (n *node) position(ev domain.Event) {
	pos, realtime, ok := eventPosition(ev)
	if !ok {
		return
	}

	n.mu.Lock()
	if !n.state.InMotion() {
		n.mu.Unlock()
		return
	}
	sample := resolver.Sample(n.detents, resolver.HeightFor(pos, n.bounds.MaxHeight), n.bounds.MaxHeight, false)
	n.mu.Unlock()

	sample.Realtime = realtime
	n.eng.telemetry.Publish(n.id, sample)
}
