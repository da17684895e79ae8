// Package skygeom deals with positions on the celestial sphere: great-circle
// distances, coordinate conversions, and proper-motion projection.
package skygeom

import (
	"math"
)

// J2000 is the Julian Date of the J2000.0 reference epoch.
const J2000 = 2451545.0

// DaysPerYear is the length of a Julian year in days.
const DaysPerYear = 365.25

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// SphereDistance returns the great-circle distance in degrees between two
// points given in degrees, using the haversine formula for numerical
// stability at small separations.
func SphereDistance(ra1, dec1, ra2, dec2 float64) float64 {
	ra1, dec1 = deg2rad(ra1), deg2rad(dec1)
	ra2, dec2 = deg2rad(ra2), deg2rad(dec2)

	sd := math.Sin((dec2 - dec1) / 2)
	sr := math.Sin((ra2 - ra1) / 2)
	h := sd*sd + math.Cos(dec1)*math.Cos(dec2)*sr*sr
	return rad2deg(2 * math.Asin(math.Sqrt(math.Min(1, h))))
}

// RaDecToCartesian converts a position in degrees to a unit vector.
func RaDecToCartesian(ra, dec float64) [3]float64 {
	ra, dec = deg2rad(ra), deg2rad(dec)
	return [3]float64{
		math.Cos(dec) * math.Cos(ra),
		math.Cos(dec) * math.Sin(ra),
		math.Sin(dec),
	}
}

// CartesianToRaDec converts a direction vector (not necessarily normalized)
// back to (ra, dec) in degrees, with ra in [0, 360).
func CartesianToRaDec(xyz [3]float64) (ra, dec float64) {
	norm := math.Sqrt(xyz[0]*xyz[0] + xyz[1]*xyz[1] + xyz[2]*xyz[2])
	ra = rad2deg(math.Atan2(xyz[1], xyz[0]))
	if ra < 0 {
		ra += 360
	}
	dec = rad2deg(math.Asin(xyz[2] / norm))
	return ra, dec
}

// AddProperMotion projects a J2000 position (degrees) forward to the given
// Julian Date. Proper motions are in milliarcseconds per year; pmRA is
// assumed to include the cos(dec) factor, as catalog proper motions do.
func AddProperMotion(ra, dec, pmRA, pmDec, jd float64) (float64, float64) {
	years := (jd - J2000) / DaysPerYear

	// mas/yr -> degrees over the interval:
	dDec := pmDec * years / 3600e3
	cosDec := math.Cos(deg2rad(dec))
	dRA := 0.0
	if cosDec > 1e-12 {
		dRA = pmRA * years / 3600e3 / cosDec
	}
	return ra + dRA, dec + dDec
}

// BufferFootprint expands a sky polygon (ra, dec corners in degrees) outward
// from its centre by the given buffer in degrees. The expansion is done on
// unit vectors, which cheats a little on the spherical geometry, but for a
// buffer of a fraction of a degree the error is negligible.
func BufferFootprint(corners [][2]float64, buffer float64) [][2]float64 {
	if buffer <= 0 || len(corners) == 0 {
		return corners
	}

	xyz := make([][3]float64, len(corners))
	var origin [3]float64
	for i, c := range corners {
		xyz[i] = RaDecToCartesian(c[0], c[1])
		for k := 0; k < 3; k++ {
			origin[k] += xyz[i][k]
		}
	}
	normalize(&origin)

	out := make([][2]float64, len(corners))
	for i := range xyz {
		var vec [3]float64
		for k := 0; k < 3; k++ {
			vec[k] = xyz[i][k] - origin[k]
		}
		normalize(&vec)
		for k := 0; k < 3; k++ {
			xyz[i][k] += vec[k] * deg2rad(buffer)
			xyz[i][k] = math.Max(-1, math.Min(1, xyz[i][k]))
		}
		normalize(&xyz[i])
		out[i][0], out[i][1] = CartesianToRaDec(xyz[i])
	}
	return out
}

func normalize(v *[3]float64) {
	norm := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if norm == 0 {
		return
	}
	v[0] /= norm
	v[1] /= norm
	v[2] /= norm
}
