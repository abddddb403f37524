package resolver

import (
	"math"

	"github.com/aretw0/detent/pkg/domain"
)

// PositionFor converts a visible sheet height into a top offset.
func PositionFor(height, maxHeight float64) float64 {
	return maxHeight - height
}

// HeightFor converts a top offset back into a visible sheet height.
func HeightFor(position, maxHeight float64) float64 {
	return maxHeight - position
}

// Nearest returns the index of the detent closest to height.
// Ties resolve to the lower index. Returns -1 for an empty list.
func Nearest(detents domain.ResolvedDetents, height float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, d := range detents {
		if dist := math.Abs(d - height); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// Interpolate returns a continuous index for height: 0.5 is halfway between
// detents 0 and 1, and values in [-1, 0) mean the sheet is below the lowest
// detent on its way to dismissal.
func Interpolate(detents domain.ResolvedDetents, height float64) float64 {
	n := len(detents)
	if n == 0 {
		return -1
	}

	lowest := detents[0]
	if height < lowest {
		if lowest <= 0 {
			return 0
		}
		return -clamp((lowest-height)/lowest, 0, 1)
	}
	if height >= detents[n-1] {
		return float64(n - 1)
	}

	for i := 0; i < n-1; i++ {
		lo, hi := detents[i], detents[i+1]
		if height >= lo && height <= hi {
			if hi == lo {
				return float64(i)
			}
			return float64(i) + (height-lo)/(hi-lo)
		}
	}
	return float64(n - 1)
}

// Info builds the DetentInfo for a detent index.
func Info(detents domain.ResolvedDetents, index int, maxHeight float64) domain.DetentInfo {
	h := detents.At(index)
	return domain.DetentInfo{
		Index:    index,
		Position: PositionFor(h, maxHeight),
		Detent:   h,
	}
}

// Sample builds a position sample for a sheet at the given visible height.
func Sample(detents domain.ResolvedDetents, height, maxHeight float64, settled bool) domain.PositionSample {
	nearest := Nearest(detents, height)
	return domain.PositionSample{
		NearestIndex: nearest,
		Index:        Interpolate(detents, height),
		Position:     PositionFor(height, maxHeight),
		Detent:       detents.At(nearest),
		Settled:      settled,
	}
}
