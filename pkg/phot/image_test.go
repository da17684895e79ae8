package phot_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tasoc/tessphot/pkg/phot"
)

func TestImage(t *testing.T) {
	t.Parallel()

	img := phot.NewImage(3, 4)
	img.Set(1, 2, 7.5)
	assert.Equal(t, 7.5, img.At(1, 2))
	assert.Equal(t, 0.0, img.At(0, 0))

	assert.True(t, img.In(0, 0))
	assert.True(t, img.In(2, 3))
	assert.False(t, img.In(3, 0))
	assert.False(t, img.In(0, -1))

	clone := img.Clone()
	clone.Set(1, 2, 0)
	assert.Equal(t, 7.5, img.At(1, 2))
}

func TestMoveMedianCentral(t *testing.T) {
	t.Parallel()
	nan := math.NaN()

	got := phot.MoveMedianCentral([]float64{4, 2, 2, 0, 0, nan, 0, 2, 2, 4}, 3)
	assert.Equal(t, []float64{3, 2, 2, 0, 0, 0, 1, 2, 2, 3}, got)

	// A window of NaNs only yields NaN:
	got = phot.MoveMedianCentral([]float64{nan, nan, nan, 1}, 3)
	assert.True(t, math.IsNaN(got[0]))
	assert.Equal(t, 1.0, got[2])
}

func TestMagToFlux(t *testing.T) {
	t.Parallel()

	// The zero point by definition:
	assert.InDelta(t, 1.0, phot.MagToFlux(28.24), 1e-12)

	// Five magnitudes is a factor of 100:
	assert.InEpsilon(t, 100*phot.MagToFlux(15), phot.MagToFlux(10), 1e-9)
}
