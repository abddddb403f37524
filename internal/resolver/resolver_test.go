package resolver_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/aretw0/detent/internal/resolver"
	"github.com/aretw0/detent/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestResolve_Rules(t *testing.T) {
	tests := []struct {
		name     string
		specs    []domain.DetentSpec
		bounds   resolver.Bounds
		measured resolver.Measurements
		want     domain.ResolvedDetents
	}{
		{
			name:     "Auto uses content plus footer",
			specs:    []domain.DetentSpec{domain.Auto()},
			bounds:   resolver.Bounds{MaxHeight: 800},
			measured: resolver.Measurements{ContentHeight: ptr(300), FooterHeight: ptr(50)},
			want:     domain.ResolvedDetents{350},
		},
		{
			name:   "Percent and large",
			specs:  []domain.DetentSpec{domain.Percent(50), domain.Named(domain.SizeLarge)},
			bounds: resolver.Bounds{MaxHeight: 800},
			want:   domain.ResolvedDetents{400, 800},
		},
		{
			name:   "Fixed is capped by max height",
			specs:  []domain.DetentSpec{domain.Fixed(200), domain.Fixed(1200)},
			bounds: resolver.Bounds{MaxHeight: 800},
			want:   domain.ResolvedDetents{200, 800},
		},
		{
			name:   "Medium prefers the platform half height",
			specs:  []domain.DetentSpec{domain.Named(domain.SizeMedium)},
			bounds: resolver.Bounds{MaxHeight: 800, MediumHeight: 380},
			want:   domain.ResolvedDetents{380},
		},
		{
			name:   "Medium falls back to half",
			specs:  []domain.DetentSpec{domain.Named(domain.SizeSmall), domain.Named(domain.SizeMedium)},
			bounds: resolver.Bounds{MaxHeight: 800},
			want:   domain.ResolvedDetents{200, 400},
		},
		{
			name:     "Auto content taller than bounds is clamped",
			specs:    []domain.DetentSpec{domain.Auto()},
			bounds:   resolver.Bounds{MaxHeight: 600},
			measured: resolver.Measurements{ContentHeight: ptr(900)},
			want:     domain.ResolvedDetents{600},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := resolver.Resolve(tt.specs, tt.bounds, tt.measured)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Detents)
			assert.False(t, res.Provisional)
		})
	}
}

func TestResolve_AutoWithoutMeasurementIsProvisional(t *testing.T) {
	res, err := resolver.Resolve([]domain.DetentSpec{domain.Auto()}, resolver.Bounds{MaxHeight: 700}, resolver.Measurements{})
	require.NoError(t, err)
	assert.True(t, res.Provisional)
	assert.Equal(t, domain.ResolvedDetents{700}, res.Detents)
}

func TestResolve_Errors(t *testing.T) {
	_, err := resolver.Resolve(nil, resolver.Bounds{MaxHeight: 800}, resolver.Measurements{})
	assert.ErrorIs(t, err, domain.ErrEmptyDetentList)

	var cfgErr *domain.ConfigurationError
	_, err = resolver.Resolve(
		[]domain.DetentSpec{domain.Named(domain.SizeLarge), domain.Percent(25)},
		resolver.Bounds{MaxHeight: 800}, resolver.Measurements{},
	)
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, domain.ErrInvalidDetentOrder)

	_, err = resolver.Resolve([]domain.DetentSpec{domain.Named("huge")}, resolver.Bounds{MaxHeight: 800}, resolver.Measurements{})
	assert.ErrorIs(t, err, domain.ErrInvalidDetent)

	nan := math.NaN()
	for name, tc := range map[string]struct {
		specs    []domain.DetentSpec
		bounds   resolver.Bounds
		measured resolver.Measurements
	}{
		"NaN fixed":         {specs: []domain.DetentSpec{domain.Fixed(nan), domain.Named(domain.SizeLarge)}, bounds: resolver.Bounds{MaxHeight: 800}},
		"NaN percent":       {specs: []domain.DetentSpec{domain.Percent(nan)}, bounds: resolver.Bounds{MaxHeight: 800}},
		"Inf fixed":         {specs: []domain.DetentSpec{domain.Fixed(math.Inf(1))}, bounds: resolver.Bounds{MaxHeight: 800}},
		"NaN max height":    {specs: []domain.DetentSpec{domain.Fixed(100)}, bounds: resolver.Bounds{MaxHeight: nan}},
		"Inf max height":    {specs: []domain.DetentSpec{domain.Named(domain.SizeLarge)}, bounds: resolver.Bounds{MaxHeight: math.Inf(1)}},
		"NaN content":       {specs: []domain.DetentSpec{domain.Auto()}, bounds: resolver.Bounds{MaxHeight: 800}, measured: resolver.Measurements{ContentHeight: &nan}},
		"NaN medium height": {specs: []domain.DetentSpec{domain.Named(domain.SizeMedium)}, bounds: resolver.Bounds{MaxHeight: 800, MediumHeight: nan}},
	} {
		res, err := resolver.Resolve(tc.specs, tc.bounds, tc.measured)
		assert.ErrorIs(t, err, domain.ErrInvalidDetent, name)
		assert.Empty(t, res.Detents, name)
	}
}

// Any non-empty list whose declared values are monotonic resolves to the
// same length, within bounds, non-decreasing.
func TestResolve_MonotonicProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		maxHeight := 100 + rng.Float64()*900
		n := 1 + rng.Intn(5)
		specs := make([]domain.DetentSpec, 0, n)
		pct := 0.0
		for i := 0; i < n; i++ {
			pct += rng.Float64() * (100 - pct) / 2
			if rng.Intn(2) == 0 {
				specs = append(specs, domain.Percent(pct))
			} else {
				specs = append(specs, domain.Fixed(pct/100*maxHeight))
			}
		}

		res, err := resolver.Resolve(specs, resolver.Bounds{MaxHeight: maxHeight}, resolver.Measurements{})
		require.NoError(t, err, "round %d specs %v", round, specs)
		require.Len(t, res.Detents, n)
		for i, v := range res.Detents {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, maxHeight)
			if i > 0 {
				assert.GreaterOrEqual(t, v, res.Detents[i-1])
			}
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   any
		want domain.DetentSpec
	}{
		{"auto", domain.Auto()},
		{"Medium", domain.Named(domain.SizeMedium)},
		{"60%", domain.Percent(60)},
		{320, domain.Fixed(320)},
		{412.5, domain.Fixed(412.5)},
		{"250", domain.Fixed(250)},
	}
	for _, tt := range tests {
		got, err := resolver.Parse(tt.in)
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []any{"150%", "tall", true, "nan", "NaN%", "inf", "-Inf", math.NaN(), math.Inf(-1), float32(math.NaN())} {
		_, err := resolver.Parse(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidDetent, "input %v", bad)
	}
}

func TestNearestAndInterpolate(t *testing.T) {
	detents := domain.ResolvedDetents{200, 400, 800}

	assert.Equal(t, 0, resolver.Nearest(detents, 100))
	assert.Equal(t, 1, resolver.Nearest(detents, 450))
	assert.Equal(t, 2, resolver.Nearest(detents, 700))
	assert.Equal(t, 0, resolver.Nearest(detents, 300), "ties resolve to the lower index")

	assert.InDelta(t, 0.5, resolver.Interpolate(detents, 300), 1e-9)
	assert.InDelta(t, 1.25, resolver.Interpolate(detents, 500), 1e-9)
	assert.InDelta(t, -0.5, resolver.Interpolate(detents, 100), 1e-9)
	assert.InDelta(t, 2, resolver.Interpolate(detents, 900), 1e-9)

	s := resolver.Sample(detents, 450, 800, true)
	assert.Equal(t, 1, s.NearestIndex)
	assert.Equal(t, 350.0, s.Position)
	assert.Equal(t, 400.0, s.Detent)
	assert.True(t, s.Settled)
}
