package phot

import (
	"context"
	"math"

	"github.com/datawire/dlib/dlog"
	"gonum.org/v1/gonum/stat"

	"github.com/tasoc/tessphot/pkg/todo"
)

// Aperture performs aperture photometry: a connected pixel mask grown from
// the target position on the mean image, background from the unmasked
// pixels, flux and centroid summed inside the mask per frame.
func (t *Target) Aperture(ctx context.Context, lc *Lightcurve) (todo.Status, string) {
	mean := t.meanImage()

	row, col := t.Position()
	mask := growMask(mean, row, col)
	if len(mask) == 0 {
		// The target did not stand out of the noise; fall back to a
		// fixed block around its position.
		dlog.Debugf(ctx, "phot: aperture fell back to nine-pixel mask for tic %d", t.StarID)
		mask = clipMask(NinePixelMask(row, col), t.Rows, t.Cols)
	}
	inMask := make(map[[2]int]bool, len(mask))
	for _, idx := range mask {
		inMask[idx] = true
	}

	for k, img := range t.Images {
		// Per-frame background from the pixels outside the mask:
		var outside []float64
		for r := 0; r < img.Rows; r++ {
			for c := 0; c < img.Cols; c++ {
				if !inMask[[2]int{r, c}] && !math.IsNaN(img.At(r, c)) {
					outside = append(outside, img.At(r, c))
				}
			}
		}
		bkg := median(outside)
		if math.IsNaN(bkg) {
			bkg = 0
		}

		flux := 0.0
		cRow, cCol := 0.0, 0.0
		bad := false
		for _, idx := range mask {
			v := img.At(idx[0], idx[1]) - bkg
			if math.IsNaN(v) {
				bad = true
				break
			}
			flux += v
			cRow += v * float64(idx[0])
			cCol += v * float64(idx[1])
		}
		if bad || flux <= 0 {
			lc.Quality[k] = 1
			continue
		}
		lc.Flux[k] = flux
		lc.CentroidRow[k] = cRow / flux
		lc.CentroidCol[k] = cCol / flux
	}

	if lc.allNaN() {
		return todo.StatusError, "all target flux values are NaN"
	}
	return todo.StatusOK, ""
}

// meanImage averages the frames pixel by pixel, ignoring NaNs.
func (t *Target) meanImage() Image {
	mean := NewImage(t.Rows, t.Cols)
	count := make([]int, len(mean.Pix))
	for _, img := range t.Images {
		for i, v := range img.Pix {
			if !math.IsNaN(v) {
				mean.Pix[i] += v
				count[i]++
			}
		}
	}
	for i := range mean.Pix {
		if count[i] > 0 {
			mean.Pix[i] /= float64(count[i])
		} else {
			mean.Pix[i] = math.NaN()
		}
	}
	return mean
}

// growMask flood-fills the 4-connected pixels above the detection threshold,
// starting from the pixel nearest the target. Returns nil when the starting
// pixel itself is below the threshold.
func growMask(img Image, row, col float64) [][2]int {
	var clean []float64
	for _, v := range img.Pix {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	bkg := median(clean)
	threshold := bkg + 3*stat.StdDev(clean, nil)

	start := [2]int{int(math.Round(row)), int(math.Round(col))}
	if !img.In(start[0], start[1]) || math.IsNaN(img.At(start[0], start[1])) ||
		img.At(start[0], start[1]) < threshold {
		return nil
	}

	seen := map[[2]int]bool{start: true}
	queue := [][2]int{start}
	var mask [][2]int
	for len(queue) > 0 {
		px := queue[0]
		queue = queue[1:]
		mask = append(mask, px)

		for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nb := [2]int{px[0] + d[0], px[1] + d[1]}
			if seen[nb] || !img.In(nb[0], nb[1]) {
				continue
			}
			seen[nb] = true
			if v := img.At(nb[0], nb[1]); !math.IsNaN(v) && v >= threshold {
				queue = append(queue, nb)
			}
		}
	}
	return mask
}

func clipMask(mask [][2]int, rows, cols int) [][2]int {
	out := mask[:0]
	for _, idx := range mask {
		if idx[0] >= 0 && idx[1] >= 0 && idx[0] < rows && idx[1] < cols {
			out = append(out, idx)
		}
	}
	return out
}
