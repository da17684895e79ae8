// Package phot performs the actual photometry: cutting a stamp around a
// target, modelling the point spread function, and extracting a lightcurve
// with either aperture or linear-PSF photometry.
package phot

import (
	"math"
	"sort"
)

// Image is a dense row-major pixel grid.
type Image struct {
	Rows, Cols int
	Pix        []float64
}

// NewImage returns a zeroed image of the given shape.
func NewImage(rows, cols int) Image {
	return Image{Rows: rows, Cols: cols, Pix: make([]float64, rows*cols)}
}

func (im Image) At(row, col int) float64 { return im.Pix[row*im.Cols+col] }

func (im *Image) Set(row, col int, v float64) { im.Pix[row*im.Cols+col] = v }

// In reports whether (row, col) is inside the image.
func (im Image) In(row, col int) bool {
	return row >= 0 && col >= 0 && row < im.Rows && col < im.Cols
}

// Clone returns a deep copy.
func (im Image) Clone() Image {
	out := Image{Rows: im.Rows, Cols: im.Cols, Pix: make([]float64, len(im.Pix))}
	copy(out.Pix, im.Pix)
	return out
}

// median returns the median of the non-NaN values, or NaN when there are
// none.
func median(values []float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	n := len(clean)
	if n%2 == 1 {
		return clean[n/2]
	}
	return 0.5 * (clean[n/2-1] + clean[n/2])
}

// MoveMedianCentral is a centered moving median with the window truncated
// at the edges. NaNs are excluded from each window, so isolated bad values
// are filled from their neighbours.
func MoveMedianCentral(x []float64, width int) []float64 {
	half := width / 2
	out := make([]float64, len(x))
	for i := range x {
		lo := max(0, i-half)
		hi := min(len(x), i+half+1)
		out[i] = median(x[lo:hi])
	}
	return out
}

// MagToFlux converts a TESS magnitude to electrons per second, using the
// instrument zero point.
func MagToFlux(tmag float64) float64 {
	return math.Pow(10, (28.24-tmag)/2.5)
}
