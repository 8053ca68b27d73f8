// Public domain.

package sedfit

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/soniakeys/dc2cat/internal/gcr"
)

// speed of light, km/s
const cKms = 299792.458

// LuminosityDistance returns the luminosity distance in Mpc to redshift z
// in a flat ΛCDM cosmology.
func LuminosityDistance(c gcr.Cosmology, z float64) float64 {
	e := func(z float64) float64 {
		zp := 1 + z
		return 1 / math.Sqrt(c.Om0*zp*zp*zp+1-c.Om0)
	}
	dc := cKms / c.H0 * quad.Fixed(e, 0, z, 32, nil, 0)
	return (1 + z) * dc
}

// DistanceModulus returns 5 log10(dL / 10 pc), NaN for z <= 0.
func DistanceModulus(c gcr.Cosmology, z float64) float64 {
	if z <= 0 {
		return math.NaN()
	}
	return 5 * math.Log10(LuminosityDistance(c, z)*1e5)
}
