package colormap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeEmpty(t *testing.T) {
	r := Compute(nil)
	assert.Empty(t, r.Colors)
	assert.Equal(t, 0.0, r.LowClip)
	assert.Equal(t, 1.0, r.HighClip)
}

func TestComputeDegenerateRange(t *testing.T) {
	r := Compute([]float64{5, 5, 5})
	require.Len(t, r.Colors, 3)
	assert.Equal(t, 5.0, r.LowClip)
	assert.Equal(t, 6.0, r.HighClip)
	assert.Equal(t, Ramp(0), r.Colors[0])
}

func TestComputeMissingValues(t *testing.T) {
	r := Compute([]float64{math.NaN(), 1, math.Inf(1), 2})
	require.Len(t, r.Colors, 4)
	assert.Equal(t, Missing, r.Colors[0])
	assert.Equal(t, Missing, r.Colors[2])
	assert.Equal(t, Opacity, r.Colors[1].A)
	assert.NotEqual(t, r.Colors[1], r.Colors[3])

	all := Compute([]float64{math.NaN(), math.NaN()})
	assert.Equal(t, []Color{Missing, Missing}, all.Colors)
}

func TestComputeClipsOutliers(t *testing.T) {
	values := make([]float64, 101)
	for i := range values {
		values[i] = float64(i)
	}
	values[100] = 1e9

	r := Compute(values)
	assert.InDelta(t, 2.0, r.LowClip, 1e-9)
	assert.Equal(t, Ramp(1), r.Colors[100], "outlier clipped to top of ramp")
	assert.Equal(t, Ramp(0), r.Colors[0], "below p2 clipped to bottom")
}

func TestComputeOrderIndependent(t *testing.T) {
	a := Compute([]float64{3, 1, 4, 1, 5, 9, 2, 6})
	b := Compute([]float64{9, 6, 5, 4, 3, 2, 1, 1})
	assert.Equal(t, a.LowClip, b.LowClip)
	assert.Equal(t, a.HighClip, b.HighClip)
	assert.Equal(t, a.Colors[5], b.Colors[0], "value 9 gets the same color")
	assert.Equal(t, a, Compute([]float64{3, 1, 4, 1, 5, 9, 2, 6}))
}

func TestRampStops(t *testing.T) {
	assert.Equal(t, Color{R: 68, G: 1, B: 84, A: Opacity}, Ramp(0))
	assert.Equal(t, Color{R: 33, G: 145, B: 140, A: Opacity}, Ramp(0.5))
	assert.Equal(t, Color{R: 253, G: 231, B: 37, A: Opacity}, Ramp(1))
	assert.Equal(t, "rgba(253, 231, 37, 0.70)", Ramp(1).CSS())
}
