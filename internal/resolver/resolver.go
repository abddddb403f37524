// Package resolver turns declarative detent specs into concrete, ordered sizes.
package resolver

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aretw0/detent/pkg/domain"
)

// MaxNativeDetents is the number of detents native sheets support
// (collapsed, half-expanded, expanded). More are resolved but may not snap.
const MaxNativeDetents = 3

// Bounds describes the space the sheet may occupy.
type Bounds struct {
	MaxHeight float64
	// MediumHeight is the platform's conventional half height, if it reports one.
	MediumHeight float64
}

// Measurements carries sizes measured by the layout system.
// Nil means "not measured yet".
type Measurements struct {
	ContentHeight *float64
	FooterHeight  *float64
}

// Resolution is the outcome of a successful Resolve.
type Resolution struct {
	Detents domain.ResolvedDetents
	// Provisional is set when an Auto detent resolved to MaxHeight because
	// content has not been measured yet. A re-resolution is expected.
	Provisional bool
}

// Resolve applies the detent rules to every spec, preserving order.
// It rejects (never sorts) a result whose values decrease.
func Resolve(specs []domain.DetentSpec, bounds Bounds, measured Measurements) (Resolution, error) {
	if len(specs) == 0 {
		return Resolution{}, &domain.ConfigurationError{Err: domain.ErrEmptyDetentList}
	}

	if !finite(bounds.MaxHeight) || !finite(bounds.MediumHeight) {
		return Resolution{}, &domain.ConfigurationError{
			Err:    domain.ErrInvalidDetent,
			Detail: fmt.Sprintf("bounds must be finite (max %v, medium %v)", bounds.MaxHeight, bounds.MediumHeight),
		}
	}
	if !finitePtr(measured.ContentHeight) || !finitePtr(measured.FooterHeight) {
		return Resolution{}, &domain.ConfigurationError{
			Err:    domain.ErrInvalidDetent,
			Detail: "measured heights must be finite",
		}
	}

	maxHeight := math.Max(bounds.MaxHeight, 0)
	out := make(domain.ResolvedDetents, len(specs))
	provisional := false

	for i, spec := range specs {
		if !finite(spec.Value) {
			return Resolution{}, &domain.ConfigurationError{
				Err:    domain.ErrInvalidDetent,
				Detail: fmt.Sprintf("index %d has non-finite value %v", i, spec.Value),
			}
		}
		switch spec.Kind {
		case domain.DetentFixed:
			out[i] = clamp(spec.Value, 0, maxHeight)
		case domain.DetentPercent:
			out[i] = clamp(spec.Value/100*maxHeight, 0, maxHeight)
		case domain.DetentNamed:
			v, err := named(spec.Name, maxHeight, bounds.MediumHeight)
			if err != nil {
				return Resolution{}, err
			}
			out[i] = v
		case domain.DetentAuto:
			if measured.ContentHeight == nil {
				out[i] = maxHeight
				provisional = true
				continue
			}
			total := *measured.ContentHeight
			if measured.FooterHeight != nil {
				total += *measured.FooterHeight
			}
			out[i] = clamp(total, 0, maxHeight)
		default:
			return Resolution{}, &domain.ConfigurationError{
				Err:    domain.ErrInvalidDetent,
				Detail: fmt.Sprintf("index %d has unknown kind %q", i, spec.Kind),
			}
		}
	}

	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			return Resolution{}, &domain.ConfigurationError{
				Err:    domain.ErrInvalidDetentOrder,
				Detail: fmt.Sprintf("detent %d (%s = %.1f) is below detent %d (%s = %.1f)", i, specs[i], out[i], i-1, specs[i-1], out[i-1]),
			}
		}
	}

	return Resolution{Detents: out, Provisional: provisional}, nil
}

func named(name string, maxHeight, mediumHeight float64) (float64, error) {
	switch strings.ToLower(name) {
	case domain.SizeSmall:
		return 0.25 * maxHeight, nil
	case domain.SizeMedium:
		if mediumHeight > 0 {
			return clamp(mediumHeight, 0, maxHeight), nil
		}
		return 0.5 * maxHeight, nil
	case domain.SizeLarge:
		return maxHeight, nil
	}
	return 0, &domain.ConfigurationError{
		Err:    domain.ErrInvalidDetent,
		Detail: fmt.Sprintf("unknown named size %q", name),
	}
}

// Parse reads a detent from a loosely typed config value:
// numbers are fixed heights, "NN%" is a percentage, "auto" and the
// named sizes are recognized, and numeric strings are fixed heights.
func Parse(v any) (domain.DetentSpec, error) {
	spec, err := parse(v)
	if err != nil {
		return domain.DetentSpec{}, err
	}
	if !finite(spec.Value) {
		return domain.DetentSpec{}, &domain.ConfigurationError{
			Err:    domain.ErrInvalidDetent,
			Detail: fmt.Sprintf("%v is not a finite height", v),
		}
	}
	return spec, nil
}

func parse(v any) (domain.DetentSpec, error) {
	switch t := v.(type) {
	case domain.DetentSpec:
		return t, nil
	case int:
		return domain.Fixed(float64(t)), nil
	case int64:
		return domain.Fixed(float64(t)), nil
	case float32:
		return domain.Fixed(float64(t)), nil
	case float64:
		return domain.Fixed(t), nil
	case string:
		return parseString(t)
	}
	return domain.DetentSpec{}, &domain.ConfigurationError{
		Err:    domain.ErrInvalidDetent,
		Detail: fmt.Sprintf("unsupported value %v (%T)", v, v),
	}
}

func parseString(raw string) (domain.DetentSpec, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "auto":
		return domain.Auto(), nil
	case domain.SizeSmall, domain.SizeMedium, domain.SizeLarge:
		return domain.Named(s), nil
	}

	if pct, ok := strings.CutSuffix(s, "%"); ok {
		p, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil || !(p >= 0 && p <= 100) {
			return domain.DetentSpec{}, &domain.ConfigurationError{
				Err:    domain.ErrInvalidDetent,
				Detail: fmt.Sprintf("percentage %q must be between 0%% and 100%%", raw),
			}
		}
		return domain.Percent(p), nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.DetentSpec{}, &domain.ConfigurationError{
			Err:    domain.ErrInvalidDetent,
			Detail: fmt.Sprintf("cannot parse %q", raw),
		}
	}
	return domain.Fixed(f), nil
}

// ParseAll parses a list of loosely typed detent values.
func ParseAll(values []any) ([]domain.DetentSpec, error) {
	out := make([]domain.DetentSpec, 0, len(values))
	for i, v := range values {
		spec, err := Parse(v)
		if err != nil {
			return nil, fmt.Errorf("detent %d: %w", i, err)
		}
		out = append(out, spec)
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finitePtr(v *float64) bool {
	return v == nil || finite(*v)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
