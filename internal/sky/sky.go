// Public domain.

// Package sky, spherical astronomy helpers shared by the dc2cat tools.
//
// Angles are float64 radians unless a name says otherwise.  Unit vectors
// are represented with coord.Cart.
package sky

import (
	"math"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/meeus/v3/angle"
	"github.com/soniakeys/unit"
)

const twoPi = 2 * math.Pi

// Deg2Rad converts degrees to radians.
func Deg2Rad(x float64) float64 {
	return unit.AngleFromDeg(x).Rad()
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(x float64) float64 {
	return unit.Angle(x).Deg()
}

// Arcsec2Rad converts arc seconds to radians.
func Arcsec2Rad(x float64) float64 {
	return unit.AngleFromSec(x).Rad()
}

// Rad2Arcsec converts radians to arc seconds.
func Rad2Arcsec(x float64) float64 {
	return unit.Angle(x).Sec()
}

// Cartesian returns the unit vector for ra, dec.
func Cartesian(ra, dec float64) coord.Cart {
	sr, cr := math.Sincos(ra)
	sd, cd := math.Sincos(dec)
	return coord.Cart{X: cd * cr, Y: cd * sr, Z: sd}
}

// Spherical returns ra in [0, 2π) and dec of vector v.  v need not be
// normalized.
func Spherical(v coord.Cart) (ra, dec float64) {
	ra = math.Atan2(v.Y, v.X)
	if ra < 0 {
		ra += twoPi
	}
	dec = math.Atan2(v.Z, math.Hypot(v.X, v.Y))
	return
}

// Separation returns the angular separation of two points, using the
// haversine form that stays accurate for small separations.
func Separation(ra1, dec1, ra2, dec2 float64) float64 {
	return angle.SepHav(unit.Angle(ra1), unit.Angle(dec1),
		unit.Angle(ra2), unit.Angle(dec2)).Rad()
}

// VecSep returns the angle between two unit vectors.
//
// The atan2 form keeps precision for nearly parallel vectors where acos
// of the dot product would not.
func VecSep(a, b coord.Cart) float64 {
	var c coord.Cart
	c.Cross(&a, &b)
	return math.Atan2(math.Sqrt(c.Square()), a.Dot(&b))
}

// Normalize returns v scaled to unit length.  The zero vector is returned
// unchanged.
func Normalize(v coord.Cart) coord.Cart {
	n := math.Sqrt(v.Square())
	if n == 0 {
		return v
	}
	return coord.Cart{X: v.X / n, Y: v.Y / n, Z: v.Z / n}
}

// Add returns a + b.
func Add(a, b coord.Cart) coord.Cart {
	return coord.Cart{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z}
}

// Scale returns f·v.
func Scale(f float64, v coord.Cart) coord.Cart {
	return coord.Cart{X: f * v.X, Y: f * v.Y, Z: f * v.Z}
}
