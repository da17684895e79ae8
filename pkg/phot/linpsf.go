package phot

import (
	"context"
	"fmt"
	"math"

	"github.com/datawire/dlib/dlog"
	"gonum.org/v1/gonum/mat"

	"github.com/tasoc/tessphot/pkg/todo"
)

// Tunables of the linear PSF fit.
const (
	// linpsfMaxDist is how far from the target, in pixels, stars are
	// still included in the fit.
	linpsfMaxDist = 5.0

	// linpsfMagRange excludes stars more than this much fainter than the
	// target from the fit.
	linpsfMagRange = 5.0

	// linpsfCutoff is the render radius of each star's PSF column.
	linpsfCutoff = 20.0

	// contaminationLimit downgrades the result to a warning.
	contaminationLimit = 0.1
)

// LinPSF performs linear PSF photometry: the fluxes of all stars near the
// target are fitted simultaneously per frame with fixed centroids, by
// linear least squares. The target flux is topped up with residual aperture
// photometry over the four-pixel mask at its position, and the mean fitted
// fluxes give a contamination estimate.
func (t *Target) LinPSF(ctx context.Context, lc *Lightcurve) (todo.Status, string, *float64) {
	// Select the stars to fit: close to the target and not much fainter.
	targetStar := t.Catalog[t.TargetIndex]
	var fit []int
	targetIdx := -1
	for i, s := range t.Catalog {
		dist := math.Hypot(s.Row-targetStar.Row, s.Col-targetStar.Col)
		if dist >= linpsfMaxDist || s.Tmag-targetStar.Tmag >= linpsfMagRange {
			continue
		}
		if i == t.TargetIndex {
			targetIdx = len(fit)
		}
		fit = append(fit, i)
	}
	if targetIdx < 0 {
		return todo.StatusError, "target star not in fit set", nil
	}
	nstars := len(fit)
	npx := t.Rows * t.Cols
	dlog.Debugf(ctx, "phot: linpsf fitting %d stars on %d pixels for tic %d", nstars, npx, t.StarID)

	fluxSum := make([]float64, nstars)
	var lastA *mat.Dense

	for k, img := range t.Images {
		cat := t.CatalogAtTime(t.Times[k])

		// One design-matrix column per fitted star: its unit-flux PSF
		// rendered over the stamp.
		A := mat.NewDense(npx, nstars, nil)
		var targetRow, targetCol float64
		for j, ci := range fit {
			s := cat[ci]
			if j == targetIdx {
				targetRow, targetCol = s.Row, s.Col
			}
			col := t.PSF.Integrate([]PSFStar{{Row: s.Row, Col: s.Col, Flux: 1}},
				t.Rows, t.Cols, linpsfCutoff)
			for i := 0; i < npx; i++ {
				A.Set(i, j, col.Pix[i])
			}
		}

		// NaN pixels carry no information; zeroing them in both the
		// image and the model drops them from the fit.
		b := mat.NewVecDense(npx, nil)
		for i, v := range img.Pix {
			if math.IsNaN(v) {
				for j := 0; j < nstars; j++ {
					A.Set(i, j, 0)
				}
				continue
			}
			b.SetVec(i, v)
		}

		var x mat.Dense
		if err := x.Solve(A, b); err != nil {
			dlog.Warnf(ctx, "phot: linpsf solve failed on cadence %d: %v", k, err)
			lc.Quality[k] = 1
			continue
		}

		flux := x.At(targetIdx, 0)

		// Residual aperture photometry over the four pixels under the
		// target recovers flux the PSF model missed.
		residual := img.Clone()
		for i := range residual.Pix {
			model := 0.0
			for j := 0; j < nstars; j++ {
				model += A.At(i, j) * x.At(j, 0)
			}
			residual.Pix[i] -= model
		}
		flux += maskSum(residual, clipMask(FourPixelMask(targetRow, targetCol), t.Rows, t.Cols))

		lc.Flux[k] = flux
		lc.CentroidRow[k] = targetRow
		lc.CentroidCol[k] = targetCol
		lc.Quality[k] = 0
		for j := 0; j < nstars; j++ {
			fluxSum[j] += x.At(j, 0)
		}
		lastA = A
	}

	if lc.allNaN() {
		return todo.StatusError, "all target flux values are NaN", nil
	}

	// Contamination: how much of the other stars' light lands in the
	// target's PSF, relative to the target's own flux.
	good := 0
	for _, f := range lc.Flux {
		if !math.IsNaN(f) {
			good++
		}
	}
	fluxMean := make([]float64, nstars)
	for j := range fluxSum {
		fluxMean[j] = fluxSum[j] / float64(good)
	}

	contamination := 0.0
	if lastA != nil && fluxMean[targetIdx] != 0 {
		for i := 0; i < npx; i++ {
			others := 0.0
			for j := 0; j < nstars; j++ {
				if j != targetIdx {
					others += lastA.At(i, j) * fluxMean[j]
				}
			}
			contamination += others * lastA.At(i, targetIdx)
		}
		contamination /= fluxMean[targetIdx]
	}
	dlog.Infof(ctx, "phot: contamination %f for tic %d", contamination, t.StarID)

	if contamination > contaminationLimit {
		return todo.StatusWarning, fmt.Sprintf("high contamination (%.3f)", contamination), &contamination
	}
	return todo.StatusOK, "", &contamination
}
