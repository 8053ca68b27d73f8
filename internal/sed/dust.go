// Public domain.

package sed

import (
	"fmt"
	"math"
)

// SetupCCMab returns the a(x) and b(x) coefficients of the Cardelli,
// Clayton & Mathis (1989) extinction law at wavelengths in nm.  Outside
// 0.3 <= x <= 11 µm⁻¹ both are zero.
func SetupCCMab(wavelen []float64) (a, b []float64) {
	a = make([]float64, len(wavelen))
	b = make([]float64, len(wavelen))
	for i, w := range wavelen {
		a[i], b[i] = ccm(1000 / w)
	}
	return
}

func ccm(x float64) (a, b float64) {
	switch {
	case x < 0.3 || x > 11:
		return 0, 0
	case x <= 1.1:
		p := math.Pow(x, 1.61)
		return 0.574 * p, -0.527 * p
	case x <= 3.3:
		y := x - 1.82
		a = poly(y, 1, 0.17699, -0.50447, -0.02427, 0.72085, 0.01979, -0.77530, 0.32999)
		b = poly(y, 0, 1.41338, 2.28305, 1.07233, -5.38434, -0.62251, 5.30260, -2.09002)
		return
	case x <= 8:
		var fa, fb float64
		if x > 5.9 {
			y := x - 5.9
			fa = -0.04473*y*y - 0.009779*y*y*y
			fb = 0.2130*y*y + 0.1207*y*y*y
		}
		a = 1.752 - 0.316*x - 0.104/((x-4.67)*(x-4.67)+0.341) + fa
		b = -3.090 + 1.825*x + 1.206/((x-4.62)*(x-4.62)+0.263) + fb
		return
	}
	y := x - 8
	return poly(y, -1.073, -0.628, 0.137, -0.070), poly(y, 13.670, 4.257, -0.420, 0.374)
}

// poly evaluates c[0] + c[1]x + c[2]x² + ...
func poly(x float64, c ...float64) float64 {
	s := 0.
	for i := len(c) - 1; i >= 0; i-- {
		s = s*x + c[i]
	}
	return s
}

// AddDust attenuates s by A_λ = (a + b/rv) av, with a and b from
// SetupCCMab at the spectrum wavelengths.
func (s *Spectrum) AddDust(a, b []float64, av, rv float64) error {
	if len(a) != len(s.Wavelen) || len(b) != len(s.Wavelen) {
		return fmt.Errorf("dust coefficients: %d, %d for %d wavelengths",
			len(a), len(b), len(s.Wavelen))
	}
	for i := range s.Flambda {
		s.Flambda[i] *= math.Pow(10, -0.4*(a[i]+b[i]/rv)*av)
	}
	return nil
}
