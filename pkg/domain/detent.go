package domain

import (
	"fmt"
	"strconv"
)

// DetentKind discriminates the DetentSpec variant.
type DetentKind string

const (
	DetentFixed   DetentKind = "fixed"   // Absolute height in points
	DetentPercent DetentKind = "percent" // Percentage (0-100) of the max height
	DetentNamed   DetentKind = "named"   // Platform-conventional size (small, medium, large)
	DetentAuto    DetentKind = "auto"    // Measured content plus footer
)

// Named detent sizes.
const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

// DetentSpec is the declarative description of a resting size.
// Only the fields relevant to Kind are meaningful.
type DetentSpec struct {
	Kind  DetentKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	Value float64    `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
	Name  string     `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
}

// Fixed returns a detent of an absolute height.
func Fixed(points float64) DetentSpec {
	return DetentSpec{Kind: DetentFixed, Value: points}
}

// Percent returns a detent relative to the max height.
func Percent(p float64) DetentSpec {
	return DetentSpec{Kind: DetentPercent, Value: p}
}

// Named returns a platform-named detent.
func Named(name string) DetentSpec {
	return DetentSpec{Kind: DetentNamed, Name: name}
}

// Auto returns a content-measured detent.
func Auto() DetentSpec {
	return DetentSpec{Kind: DetentAuto}
}

// String renders the spec in the same notation accepted by config files.
func (d DetentSpec) String() string {
	switch d.Kind {
	case DetentFixed:
		return strconv.FormatFloat(d.Value, 'f', -1, 64)
	case DetentPercent:
		return strconv.FormatFloat(d.Value, 'f', -1, 64) + "%"
	case DetentNamed:
		return d.Name
	case DetentAuto:
		return "auto"
	default:
		return fmt.Sprintf("invalid(%s)", d.Kind)
	}
}

// ResolvedDetents is the ordered list of concrete sizes.
// The index is the addressing unit used by every command.
type ResolvedDetents []float64

// Len returns the number of detents.
func (r ResolvedDetents) Len() int { return len(r) }

// Valid reports whether index addresses an existing detent.
func (r ResolvedDetents) Valid(index int) bool {
	return index >= 0 && index < len(r)
}

// At returns the height for index, or 0 when out of range.
func (r ResolvedDetents) At(index int) float64 {
	if !r.Valid(index) {
		return 0
	}
	return r[index]
}

// Lowest returns the smallest (first) detent.
func (r ResolvedDetents) Lowest() float64 {
	return r.At(0)
}

// Clone returns an independent copy.
func (r ResolvedDetents) Clone() ResolvedDetents {
	if r == nil {
		return nil
	}
	out := make(ResolvedDetents, len(r))
	copy(out, r)
	return out
}

// DetentInfo is the payload attached to detent-related events.
// Position is the sheet's top offset measured from the top of the bounds.
type DetentInfo struct {
	Index    int     `json:"index"`
	Position float64 `json:"position"`
	Detent   float64 `json:"detent"`
}
