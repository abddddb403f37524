package domain

import "fmt"

// StateKind is the discriminator of SheetState.
type StateKind string

const (
	StateIdle       StateKind = "idle"       // Mounted, never presented
	StatePresenting StateKind = "presenting" // Will-present emitted, awaiting settle
	StatePresented  StateKind = "presented"  // Resting at a detent
	StateDragging   StateKind = "dragging"   // User gesture in progress
	StateResizing   StateKind = "resizing"   // Moving between detents
	StateDismissing StateKind = "dismissing" // Will-dismiss emitted, awaiting settle
	StateDismissed  StateKind = "dismissed"  // Terminal for this presentation
)

// SheetState is the tagged lifecycle state of a sheet.
//
//   - Presenting: Target
//   - Presented:  Index
//   - Dragging:   From, LiveOffset (downward translation from the From detent)
//   - Resizing:   From, Target
type SheetState struct {
	Kind       StateKind `json:"kind"`
	Index      int       `json:"index"`
	From       int       `json:"from"`
	Target     int       `json:"target"`
	LiveOffset float64   `json:"live_offset,omitempty"`
}

func Idle() SheetState { return SheetState{Kind: StateIdle, Index: -1, From: -1, Target: -1} }

func Presenting(target int) SheetState {
	return SheetState{Kind: StatePresenting, Index: -1, From: -1, Target: target}
}

func Presented(index int) SheetState {
	return SheetState{Kind: StatePresented, Index: index, From: index, Target: index}
}

func Dragging(from int, liveOffset float64) SheetState {
	return SheetState{Kind: StateDragging, Index: from, From: from, Target: -1, LiveOffset: liveOffset}
}

func Resizing(from, target int) SheetState {
	return SheetState{Kind: StateResizing, Index: from, From: from, Target: target}
}

func Dismissing(from int) SheetState {
	return SheetState{Kind: StateDismissing, Index: from, From: from, Target: -1}
}

func Dismissed() SheetState {
	return SheetState{Kind: StateDismissed, Index: -1, From: -1, Target: -1}
}

// Is reports whether the state has the given kind.
func (s SheetState) Is(kind StateKind) bool { return s.Kind == kind }

// Live reports whether the node belongs in the live registry.
func (s SheetState) Live() bool {
	return s.Kind != StateIdle && s.Kind != StateDismissed && s.Kind != ""
}

// InMotion reports whether position telemetry is accepted in this state.
func (s SheetState) InMotion() bool {
	switch s.Kind {
	case StatePresenting, StateDragging, StateResizing, StateDismissing:
		return true
	}
	return false
}

func (s SheetState) String() string {
	switch s.Kind {
	case StatePresenting:
		return fmt.Sprintf("presenting(%d)", s.Target)
	case StatePresented:
		return fmt.Sprintf("presented(%d)", s.Index)
	case StateDragging:
		return fmt.Sprintf("dragging(%d, %.1f)", s.From, s.LiveOffset)
	case StateResizing:
		return fmt.Sprintf("resizing(%d->%d)", s.From, s.Target)
	case "":
		return string(StateIdle)
	default:
		return string(s.Kind)
	}
}
