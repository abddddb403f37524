package domain

import "time"

// DefaultDismissThreshold is how far (in points) a release must fall below the
// lowest detent before an interactive dismissal is triggered.
const DefaultDismissThreshold = 48.0

// SheetConfig is what the surrounding component hands to the engine on mount.
type SheetConfig struct {
	Name            string       `json:"name,omitempty" yaml:"name" mapstructure:"name"`
	Detents         []DetentSpec `json:"detents" yaml:"detents" mapstructure:"detents"`
	MaxHeight       float64      `json:"max_height" yaml:"max_height" mapstructure:"max_height"`
	MediumHeight    float64      `json:"medium_height,omitempty" yaml:"medium_height" mapstructure:"medium_height"`
	InitialIndex    *int         `json:"initial_index,omitempty" yaml:"initial_index" mapstructure:"initial_index"`
	InitialAnimated bool         `json:"initial_animated" yaml:"initial_animated" mapstructure:"initial_animated"`
	Dismissible     bool         `json:"dismissible" yaml:"dismissible" mapstructure:"dismissible"`
	Draggable       bool         `json:"draggable" yaml:"draggable" mapstructure:"draggable"`

	// DismissThreshold falls back to DefaultDismissThreshold when zero.
	DismissThreshold float64 `json:"dismiss_threshold,omitempty" yaml:"dismiss_threshold" mapstructure:"dismiss_threshold"`
}

// NewSheetConfig returns the conventional defaults:
// medium and large detents, no initial presentation, dismissible and draggable.
func NewSheetConfig(maxHeight float64) SheetConfig {
	return SheetConfig{
		Detents:         []DetentSpec{Named(SizeMedium), Named(SizeLarge)},
		MaxHeight:       maxHeight,
		InitialAnimated: true,
		Dismissible:     true,
		Draggable:       true,
	}
}

// PresentOnMount returns the index to present at mount, if any.
func (c SheetConfig) PresentOnMount() (int, bool) {
	if c.InitialIndex == nil || *c.InitialIndex < 0 {
		return 0, false
	}
	return *c.InitialIndex, true
}

// Threshold returns the effective dismiss threshold.
func (c SheetConfig) Threshold() float64 {
	if c.DismissThreshold > 0 {
		return c.DismissThreshold
	}
	return DefaultDismissThreshold
}

// PositionSample is an ephemeral, best-effort position report.
// It is never persisted and never part of lifecycle invariants.
type PositionSample struct {
	NearestIndex int     `json:"nearest_index"`
	Index        float64 `json:"index"` // Continuous index, negative below the lowest detent
	Position     float64 `json:"position"`
	Detent       float64 `json:"detent"`
	Settled      bool    `json:"settled"`
	Realtime     bool    `json:"realtime"`
}

// CommandKind is the native operation requested from the platform.
type CommandKind string

const (
	CommandPresent CommandKind = "present"
	CommandDismiss CommandKind = "dismiss"
	CommandResize  CommandKind = "resize"
)

// Command is sent to the platform driver to start a native transition.
// The platform must answer with an Event carrying the same CorrelationID:
// did_present, did_dismiss or detent_change on success, failed otherwise.
type Command struct {
	CorrelationID string      `json:"correlation_id"`
	SheetID       string      `json:"sheet_id"`
	Kind          CommandKind `json:"kind"`
	Index         int         `json:"index"`
	Height        float64     `json:"height"`
	FromHeight    float64     `json:"from_height"`
	MaxHeight     float64     `json:"max_height"`
	Animated      bool        `json:"animated"`
}

// Snapshot is a read-only view of a sheet, used for inspection and persistence.
type Snapshot struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	State     SheetState      `json:"state"`
	Detents   ResolvedDetents `json:"detents"`
	Parent    string          `json:"parent,omitempty"`
	Children  []string        `json:"children,omitempty"`
	Live      bool            `json:"live"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Settled builds the platform event that completes the command successfully.
func (c Command) Settled() Event {
	typ := EventDetentChange
	switch c.Kind {
	case CommandPresent:
		typ = EventDidPresent
	case CommandDismiss:
		typ = EventDidDismiss
	}
	return Event{
		Type:          typ,
		SheetID:       c.SheetID,
		Timestamp:     time.Now(),
		CorrelationID: c.CorrelationID,
		Info: &DetentInfo{
			Index:    c.Index,
			Position: c.MaxHeight - c.Height,
			Detent:   c.Height,
		},
	}
}

// Failed builds the platform event that rejects the command.
func (c Command) Failed(reason string) Event {
	return Event{
		Type:          EventFailed,
		SheetID:       c.SheetID,
		Timestamp:     time.Now(),
		CorrelationID: c.CorrelationID,
		Error:         reason,
	}
}
