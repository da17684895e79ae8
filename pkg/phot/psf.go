package phot

import (
	"math"
)

// PSF is the pixel response model of one camera/CCD: a symmetric Gaussian
// integrated over pixel boundaries. The width varies slightly between
// cameras to reflect the measured optics.
type PSF struct {
	Camera int
	CCD    int
	Sigma  float64 // pixels
}

// NewPSF returns the PSF model for a camera/CCD.
func NewPSF(camera, ccd int) *PSF {
	// Base width of ~1.1px, growing towards the outer cameras.
	return &PSF{
		Camera: camera,
		CCD:    ccd,
		Sigma:  1.1 + 0.05*float64(camera-1),
	}
}

// PSFStar is one star to render: position in (zero-based) stamp pixel
// coordinates and total flux.
type PSFStar struct {
	Row, Col float64
	Flux     float64
}

// Integrate renders the given stars onto an image of the given shape. Each
// pixel receives the PSF integrated over its boundaries, so total flux is
// conserved for stars away from the edges. Pixels further than cutoffRadius
// from a star are skipped.
func (p *PSF) Integrate(stars []PSFStar, rows, cols int, cutoffRadius float64) Image {
	img := NewImage(rows, cols)
	p.IntegrateInto(&img, stars, cutoffRadius)
	return img
}

// IntegrateInto adds the stars onto an existing image.
func (p *PSF) IntegrateInto(img *Image, stars []PSFStar, cutoffRadius float64) {
	s := p.Sigma * math.Sqrt2
	for _, star := range stars {
		rLo := max(0, int(math.Floor(star.Row-cutoffRadius)))
		rHi := min(img.Rows-1, int(math.Ceil(star.Row+cutoffRadius)))
		cLo := max(0, int(math.Floor(star.Col-cutoffRadius)))
		cHi := min(img.Cols-1, int(math.Ceil(star.Col+cutoffRadius)))

		for r := rLo; r <= rHi; r++ {
			fr := 0.5 * (math.Erf((float64(r)+0.5-star.Row)/s) - math.Erf((float64(r)-0.5-star.Row)/s))
			for c := cLo; c <= cHi; c++ {
				fc := 0.5 * (math.Erf((float64(c)+0.5-star.Col)/s) - math.Erf((float64(c)-0.5-star.Col)/s))
				img.Pix[r*img.Cols+c] += star.Flux * fr * fc
			}
		}
	}
}
