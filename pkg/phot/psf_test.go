package phot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tasoc/tessphot/pkg/phot"
)

func TestPSFFluxConservation(t *testing.T) {
	t.Parallel()

	psf := phot.NewPSF(1, 1)
	img := psf.Integrate([]phot.PSFStar{{Row: 8, Col: 8, Flux: 1000}}, 17, 17, 10)

	total := 0.0
	for _, v := range img.Pix {
		total += v
	}
	assert.InDelta(t, 1000, total, 0.1)

	// Symmetric around the star:
	assert.InDelta(t, img.At(8, 7), img.At(8, 9), 1e-12)
	assert.InDelta(t, img.At(7, 8), img.At(9, 8), 1e-12)

	// The central pixel is the brightest:
	for i, v := range img.Pix {
		if i != 8*17+8 {
			assert.Less(t, v, img.At(8, 8))
		}
	}
}

func TestPSFIntegrateInto(t *testing.T) {
	t.Parallel()

	psf := phot.NewPSF(2, 1)
	img := psf.Integrate([]phot.PSFStar{{Row: 3, Col: 3, Flux: 100}}, 9, 9, 5)
	before := img.At(3, 3)

	psf.IntegrateInto(&img, []phot.PSFStar{{Row: 3, Col: 3, Flux: 100}}, 5)
	assert.InDelta(t, 2*before, img.At(3, 3), 1e-9)
}

func TestPSFWidthVariesByCamera(t *testing.T) {
	t.Parallel()

	assert.Less(t, phot.NewPSF(1, 1).Sigma, phot.NewPSF(4, 1).Sigma)
}
