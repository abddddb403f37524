package runtime

import (
	"fmt"

	"github.com/aretw0/detent/pkg/domain"
	"github.com/google/uuid"
)

// present runs on the drain goroutine.
// Presenting an already presented sheet at another index is a detent change.
func (n *node) present(index int, animated bool) error {
	st, detents := n.current()
	if !detents.Valid(index) {
		return fmt.Errorf("%w: %d not in [0, %d)", domain.ErrIndexOutOfRange, index, detents.Len())
	}

	switch st.Kind {
	case domain.StatePresented:
		if st.Index == index {
			return nil
		}
		return n.changeDetent(st.Index, index, animated, opPresent)
	case domain.StateIdle, domain.StateDismissed:
	default:
		return fmt.Errorf("%w: present from %s", domain.ErrInvalidTransition, st)
	}

	parent, err := n.eng.stack.attach(n.id)
	if err != nil {
		return err
	}
	if parent != "" {
		n.eng.emitFocus(parent, domain.EventWillBlur)
	}

	n.setState(domain.Presenting(index), opPresent)
	n.emit(domain.EventWillPresent, n.info(index))

	if err := n.command(domain.CommandPresent, index, 0, animated, domain.EventDidPresent); err != nil {
		n.eng.stack.detach(n.id)
		n.setState(st, opPresent)
		if parent != "" {
			n.eng.emitFocus(parent, domain.EventWillFocus)
			n.eng.emitFocus(parent, domain.EventDidFocus)
		}
		return err
	}

	n.emit(domain.EventDidPresent, n.info(index))
	n.setState(domain.Presented(index), opPresent)
	n.publishSettled(n.height(index))

	if parent != "" {
		n.eng.emitFocus(parent, domain.EventDidBlur)
	}
	return nil
}

// dismiss cascades to descendants first. Idle and Dismissed sheets succeed without a transition.
func (n *node) dismiss(animated bool) error {
	st, _ := n.current()
	if !st.Live() {
		return nil
	}
	return n.dismissFrom(st, animated)
}

// dismissFrom dismisses a live sheet and restores st if the platform refuses.
func (n *node) dismissFrom(st domain.SheetState, animated bool) error {
	if err := n.eng.cascade(n, animated); err != nil {
		n.setState(st, opDismiss)
		return err
	}

	parent := n.eng.stack.parentOf(n.id)
	if parent != "" {
		n.eng.emitFocus(parent, domain.EventWillFocus)
	}

	n.setState(domain.Dismissing(st.Index), opDismiss)
	n.emit(domain.EventWillDismiss, n.info(st.Index))

	if err := n.command(domain.CommandDismiss, st.Index, n.height(st.Index), animated, domain.EventDidDismiss); err != nil {
		n.eng.stack.reopen(n.id)
		n.setState(st, opDismiss)
		if parent != "" {
			n.eng.emitFocus(parent, domain.EventWillBlur)
			n.eng.emitFocus(parent, domain.EventDidBlur)
		}
		return err
	}

	n.emit(domain.EventDidDismiss, nil)
	n.setState(domain.Dismissed(), opDismiss)
	n.publishSettled(0)
	n.eng.stack.detach(n.id)

	if parent != "" {
		n.eng.emitFocus(parent, domain.EventDidFocus)
	}
	return nil
}

func (n *node) resize(index int) error {
	st, detents := n.current()
	if !detents.Valid(index) {
		return fmt.Errorf("%w: %d not in [0, %d)", domain.ErrIndexOutOfRange, index, detents.Len())
	}
	if !st.Is(domain.StatePresented) {
		return fmt.Errorf("%w: resize from %s", domain.ErrInvalidTransition, st)
	}
	if st.Index == index {
		return nil
	}
	return n.changeDetent(st.Index, index, true, opResize)
}

func (n *node) changeDetent(from, target int, animated bool, op opKind) error {
	n.setState(domain.Resizing(from, target), op)
	n.emit(domain.EventWillDetentChange, n.info(target))

	if err := n.command(domain.CommandResize, target, n.height(from), animated, domain.EventDetentChange); err != nil {
		n.setState(domain.Presented(from), op)
		return err
	}

	n.emit(domain.EventDetentChange, n.info(target))
	n.setState(domain.Presented(target), op)
	n.publishSettled(n.height(target))
	return nil
}

// command dispatches to the platform and blocks until the correlated
// settle or failure arrives, or the node is torn down.
func (n *node) command(kind domain.CommandKind, index int, fromHeight float64, animated bool, want domain.EventType) error {
	p := &pending{
		id:   uuid.NewString(),
		want: want,
		ch:   make(chan domain.Event, 1),
	}

	n.mu.Lock()
	n.pending = p
	cmd := domain.Command{
		CorrelationID: p.id,
		SheetID:       n.id,
		Kind:          kind,
		Index:         index,
		Height:        n.detents.At(index),
		FromHeight:    fromHeight,
		MaxHeight:     n.bounds.MaxHeight,
		Animated:      animated,
	}
	n.mu.Unlock()
	defer n.clearPending(p)

	if kind == domain.CommandDismiss {
		cmd.Height = 0
	}

	n.logger.Debug("dispatching command", "op", kind, "index", index, "correlation_id", p.id)
	if err := n.eng.platform.Dispatch(n.ctx, cmd); err != nil {
		if n.ctx.Err() != nil {
			return domain.ErrTornDown
		}
		return fmt.Errorf("%w: %v", domain.ErrPlatform, err)
	}

	select {
	case ev := <-p.ch:
		if ev.Type == domain.EventFailed {
			reason := ev.Error
			if reason == "" {
				reason = "transition failed"
			}
			return fmt.Errorf("%w: %s", domain.ErrPlatform, reason)
		}
		return nil
	case <-n.ctx.Done():
		return domain.ErrTornDown
	}
}

func (n *node) clearPending(p *pending) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending == p {
		n.pending = nil
	}
}

// settle completes the in-flight command if ev carries its correlation id.
func (n *node) settle(ev domain.Event) bool {
	n.mu.Lock()
	p := n.pending
	if p == nil || ev.CorrelationID != p.id || (ev.Type != p.want && ev.Type != domain.EventFailed) {
		n.mu.Unlock()
		return false
	}
	n.pending = nil
	n.mu.Unlock()

	p.ch <- ev
	return true
}
