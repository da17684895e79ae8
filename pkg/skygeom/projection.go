package skygeom

import (
	"fmt"
	"math"
)

// Projection is a gnomonic (tangent-plane) projection between sky
// coordinates and CCD pixel coordinates. It is the bookkeeping equivalent of
// a FITS TAN WCS: a reference point on the sky, the pixel it maps to, and a
// linear transform (degrees per pixel) around it.
//
// Pixel coordinates are zero-based with pixel centers at integers, matching
// how stamps index their images.
type Projection struct {
	// Reference point on the sky, degrees.
	RefRA  float64 `json:"ref_ra"`
	RefDec float64 `json:"ref_dec"`

	// Pixel the reference point maps to (column, row).
	RefCol float64 `json:"ref_col"`
	RefRow float64 `json:"ref_row"`

	// CD matrix, degrees per pixel:
	//   xi  = CD[0][0]*(col-RefCol) + CD[0][1]*(row-RefRow)
	//   eta = CD[1][0]*(col-RefCol) + CD[1][1]*(row-RefRow)
	CD [2][2]float64 `json:"cd"`
}

// NewProjection returns a projection with north up and the given plate scale
// in degrees per pixel.
func NewProjection(refRA, refDec, refCol, refRow, scale float64) Projection {
	return Projection{
		RefRA:  refRA,
		RefDec: refDec,
		RefCol: refCol,
		RefRow: refRow,
		CD:     [2][2]float64{{scale, 0}, {0, scale}},
	}
}

// SkyToPixel maps (ra, dec) in degrees to (col, row) pixel coordinates.
// ok is false when the position is on the far hemisphere, where the tangent
// plane has no meaningful image.
func (p Projection) SkyToPixel(ra, dec float64) (col, row float64, ok bool) {
	ra0, dec0 := deg2rad(p.RefRA), deg2rad(p.RefDec)
	ra, dec = deg2rad(ra), deg2rad(dec)

	cosc := math.Sin(dec0)*math.Sin(dec) + math.Cos(dec0)*math.Cos(dec)*math.Cos(ra-ra0)
	if cosc <= 1e-9 {
		return 0, 0, false
	}

	xi := math.Cos(dec) * math.Sin(ra-ra0) / cosc
	eta := (math.Cos(dec0)*math.Sin(dec) - math.Sin(dec0)*math.Cos(dec)*math.Cos(ra-ra0)) / cosc
	xiDeg, etaDeg := rad2deg(xi), rad2deg(eta)

	det := p.CD[0][0]*p.CD[1][1] - p.CD[0][1]*p.CD[1][0]
	if det == 0 {
		return 0, 0, false
	}
	col = p.RefCol + (p.CD[1][1]*xiDeg-p.CD[0][1]*etaDeg)/det
	row = p.RefRow + (-p.CD[1][0]*xiDeg+p.CD[0][0]*etaDeg)/det
	return col, row, true
}

// PixelToSky maps (col, row) pixel coordinates to (ra, dec) in degrees.
func (p Projection) PixelToSky(col, row float64) (ra, dec float64) {
	xiDeg := p.CD[0][0]*(col-p.RefCol) + p.CD[0][1]*(row-p.RefRow)
	etaDeg := p.CD[1][0]*(col-p.RefCol) + p.CD[1][1]*(row-p.RefRow)
	xi, eta := deg2rad(xiDeg), deg2rad(etaDeg)

	ra0, dec0 := deg2rad(p.RefRA), deg2rad(p.RefDec)
	rho := math.Sqrt(xi*xi + eta*eta)
	if rho == 0 {
		return p.RefRA, p.RefDec
	}
	c := math.Atan(rho)

	dec = math.Asin(math.Cos(c)*math.Sin(dec0) + eta*math.Sin(c)*math.Cos(dec0)/rho)
	ra = ra0 + math.Atan2(xi*math.Sin(c), rho*math.Cos(dec0)*math.Cos(c)-eta*math.Sin(dec0)*math.Sin(c))

	ra = rad2deg(ra)
	if ra < 0 {
		ra += 360
	} else if ra >= 360 {
		ra -= 360
	}
	return ra, rad2deg(dec)
}

// Shift returns a copy of the projection with the reference pixel moved by
// the given amounts, for cutting a stamp out of a full CCD frame.
func (p Projection) Shift(dCol, dRow float64) Projection {
	out := p
	out.RefCol -= dCol
	out.RefRow -= dRow
	return out
}

// Footprint returns the sky polygon covered by an image of the given shape
// under this projection, one corner per image corner.
func (p Projection) Footprint(rows, cols int) [][2]float64 {
	corners := [][2]float64{
		{-0.5, -0.5},
		{float64(cols) - 0.5, -0.5},
		{float64(cols) - 0.5, float64(rows) - 0.5},
		{-0.5, float64(rows) - 0.5},
	}
	out := make([][2]float64, len(corners))
	for i, c := range corners {
		ra, dec := p.PixelToSky(c[0], c[1])
		out[i] = [2]float64{ra, dec}
	}
	return out
}

func (p Projection) String() string {
	return fmt.Sprintf("TAN(ref=(%.4f,%.4f)deg@(%.1f,%.1f)px scale=%.2g)",
		p.RefRA, p.RefDec, p.RefCol, p.RefRow, p.CD[0][0])
}
