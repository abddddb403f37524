package domain

import "slices"

// SnapshotDiff represents the changes between two snapshots of the same sheet.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// ID is always present to identify the target.
	ID string `json:"id"`

	State    *SheetState     `json:"state,omitempty"`
	Detents  ResolvedDetents `json:"detents,omitempty"`
	Parent   *string         `json:"parent,omitempty"`
	Children []string        `json:"children,omitempty"`
	Live     *bool           `json:"live,omitempty"`
}

// Diff calculates the difference between old and next.
// If old is nil, it returns a diff representing the entire snapshot (initial load).
// It returns nil when nothing changed.
func Diff(old, next *Snapshot) *SnapshotDiff {
	if next == nil {
		return nil
	}

	diff := &SnapshotDiff{ID: next.ID}
	changed := false

	if old == nil || old.State != next.State {
		st := next.State
		diff.State = &st
		changed = true
	}
	if old == nil || !slices.Equal(old.Detents, next.Detents) {
		diff.Detents = next.Detents.Clone()
		changed = true
	}
	if old == nil || old.Parent != next.Parent {
		p := next.Parent
		diff.Parent = &p
		changed = true
	}
	if old == nil || !slices.Equal(old.Children, next.Children) {
		diff.Children = slices.Clone(next.Children)
		if diff.Children == nil {
			diff.Children = []string{}
		}
		changed = true
	}
	if old == nil || old.Live != next.Live {
		l := next.Live
		diff.Live = &l
		changed = true
	}

	if !changed {
		return nil
	}
	return diff
}
