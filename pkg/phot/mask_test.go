package phot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tasoc/tessphot/pkg/phot"
)

func TestFourPixelMask(t *testing.T) {
	t.Parallel()
	testcases := map[string]struct {
		row, col float64
		expected [][2]int
	}{
		"low-low":   {2.3, 3.2, [][2]int{{1, 2}, {1, 3}, {2, 2}, {2, 3}}},
		"low-high":  {2.3, 3.7, [][2]int{{1, 3}, {1, 4}, {2, 3}, {2, 4}}},
		"half-half": {2.5, 3.5, [][2]int{{2, 3}, {2, 4}, {3, 3}, {3, 4}}},
		"centered":  {5.0, 5.0, [][2]int{{4, 4}, {4, 5}, {5, 4}, {5, 5}}},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, phot.FourPixelMask(tc.row, tc.col))
		})
	}
}

func TestNinePixelMask(t *testing.T) {
	t.Parallel()

	mask := phot.NinePixelMask(5.0, 5.0)
	assert.Equal(t, [][2]int{
		{4, 4}, {4, 5}, {4, 6},
		{5, 4}, {5, 5}, {5, 6},
		{6, 4}, {6, 5}, {6, 6},
	}, mask)

	// Rounds to the nearest pixel:
	assert.Equal(t, phot.NinePixelMask(4.0, 2.0), phot.NinePixelMask(3.6, 2.2))

	// Indices below zero are dropped on the image edge:
	mask = phot.NinePixelMask(0.2, 0.4)
	assert.Equal(t, [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, mask)
}
