package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventMount            EventType = "mount"
	EventWillPresent      EventType = "will_present"
	EventDidPresent       EventType = "did_present"
	EventWillDismiss      EventType = "will_dismiss"
	EventDidDismiss       EventType = "did_dismiss"
	EventWillDetentChange EventType = "will_detent_change"
	EventDetentChange     EventType = "detent_change"
	EventDragBegin        EventType = "drag_begin"
	EventDragChange       EventType = "drag_change"
	EventDragEnd          EventType = "drag_end"
	EventPositionChange   EventType = "position_change"
	EventWillFocus        EventType = "will_focus"
	EventDidFocus         EventType = "did_focus"
	EventWillBlur         EventType = "will_blur"
	EventDidBlur          EventType = "did_blur"
	EventLayout           EventType = "layout"
	EventDetentsChanged   EventType = "detents_changed"
	EventFailed           EventType = "failed"
)

// Event is the single tagged union carrying every lifecycle notification,
// both platform-originated (inbound) and engine-emitted (outbound).
// Only the payload fields relevant to Type are populated.
type Event struct {
	Type      EventType `json:"type"`
	SheetID   string    `json:"sheet_id"`
	Timestamp time.Time `json:"timestamp"`

	// CorrelationID ties a platform settle/failure report to the command
	// that started the transition.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Info accompanies present, detent change and drag events.
	Info *DetentInfo `json:"info,omitempty"`

	// Sample accompanies position_change.
	Sample *PositionSample `json:"sample,omitempty"`

	// Layout accompanies layout events and detents_changed.
	Layout *Layout `json:"layout,omitempty"`

	// Detents accompanies detents_changed.
	Detents ResolvedDetents `json:"detents,omitempty"`

	// Error accompanies failed.
	Error string `json:"error,omitempty"`
}

// Layout carries externally measured sizes. Nil fields are "unchanged".
type Layout struct {
	ContentHeight *float64 `json:"content_height,omitempty"`
	FooterHeight  *float64 `json:"footer_height,omitempty"`
	MaxHeight     *float64 `json:"max_height,omitempty"`
	MediumHeight  *float64 `json:"medium_height,omitempty"`

	// Renormalize asks the engine to move the node to the index whose new
	// height is nearest its previous one, instead of keeping the index.
	Renormalize bool `json:"renormalize,omitempty"`
}

// StateChange describes a committed transition.
type StateChange struct {
	SheetID string     `json:"sheet_id"`
	Name    string     `json:"name,omitempty"`
	From    SheetState `json:"from"`
	To      SheetState `json:"to"`
	Op      string     `json:"op,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run synchronously on the node's owner goroutine; they must not block.
type LifecycleHooks struct {
	OnEvent       func(context.Context, *Event)
	OnStateChange func(context.Context, *StateChange)
	OnFailure     func(context.Context, *OperationError)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnEvent: func(ctx context.Context, e *Event) {
			if h.OnEvent != nil {
				h.OnEvent(ctx, e)
			}
			if other.OnEvent != nil {
				other.OnEvent(ctx, e)
			}
		},
		OnStateChange: func(ctx context.Context, c *StateChange) {
			if h.OnStateChange != nil {
				h.OnStateChange(ctx, c)
			}
			if other.OnStateChange != nil {
				other.OnStateChange(ctx, c)
			}
		},
		OnFailure: func(ctx context.Context, e *OperationError) {
			if h.OnFailure != nil {
				h.OnFailure(ctx, e)
			}
			if other.OnFailure != nil {
				other.OnFailure(ctx, e)
			}
		},
	}
}
