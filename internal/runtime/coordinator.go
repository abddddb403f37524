package runtime

import (
	"context"
	"time"

	"github.com/aretw0/detent/pkg/domain"
)

// cascade dismisses every descendant of n, then marks n as closing.
// Children presented while the cascade runs are picked up by the next round.
func (e *Engine) cascade(n *node, animated bool) error {
	for {
		kids := e.stack.beginClosing(n.id)
		if len(kids) == 0 {
			return nil
		}
		if err := e.dismissEach(n.ctx, kids, animated); err != nil {
			return err
		}
	}
}

// dismissChildren leaves n presented. The first failure stops the cascade.
func (e *Engine) dismissChildren(n *node, animated bool) error {
	return e.dismissEach(n.ctx, e.stack.descendants(n.id), animated)
}

// dismissEach awaits each dismissal in turn.
func (e *Engine) dismissEach(ctx context.Context, ids []string, animated bool) error {
	for _, id := range ids {
		child, ok := e.node(id)
		if !ok {
			continue
		}
		op := child.submit(newOperation(opDismiss, 0, animated))
		select {
		case err := <-op.done:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return domain.ErrTornDown
		}
	}
	return nil
}

// DismissAll dismisses every root subtree, most recently presented root first.
// It stops at the first failure.
func (e *Engine) DismissAll(ctx context.Context, animated bool) error {
	for _, id := range e.stack.roots() {
		n, ok := e.node(id)
		if !ok {
			continue
		}
		op := n.submit(newOperation(opDismiss, 0, animated))
		select {
		case err := <-op.done:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// emitFocus reports a focus transition on a sheet another one was stacked on.
func (e *Engine) emitFocus(id string, typ domain.EventType) {
	n, ok := e.node(id)
	if !ok {
		return
	}
	e.emit(n, &domain.Event{
		Type:      typ,
		SheetID:   id,
		Timestamp: time.Now(),
	})
}
