// Public domain.

package sed

import (
	"fmt"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"
)

// Bandpass is a sampled system response.
type Bandpass struct {
	Wavelen []float64
	Sb      []float64

	norm float64 // ∫ sb/λ dλ
}

// NewBandpass returns a bandpass over wavelen with response sb.
func NewBandpass(wavelen, sb []float64) (*Bandpass, error) {
	if len(wavelen) != len(sb) || len(wavelen) < 2 {
		return nil, fmt.Errorf("bandpass: %d wavelengths, %d responses", len(wavelen), len(sb))
	}
	for i := 1; i < len(wavelen); i++ {
		if wavelen[i] <= wavelen[i-1] {
			return nil, fmt.Errorf("bandpass: wavelengths not increasing at %g", wavelen[i])
		}
	}
	bp := &Bandpass{Wavelen: wavelen, Sb: sb}
	bp.norm = bp.weights()
	return bp, nil
}

// ReadBandpass reads a two column text file of wavelength and response.
func ReadBandpass(path string) (*Bandpass, error) {
	w, sb, err := readColumns(path)
	if err != nil {
		return nil, err
	}
	bp, err := NewBandpass(w, sb)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bp, nil
}

// ImsimWavelen is the wavelength of the imsim normalization bandpass.
const ImsimWavelen = 500.

// ImsimBandpass returns the delta function bandpass at ImsimWavelen that
// defines magNorm.
func ImsimBandpass() *Bandpass {
	bp := &Bandpass{
		Wavelen: []float64{ImsimWavelen - .1, ImsimWavelen, ImsimWavelen + .1},
		Sb:      []float64{0, 1, 0},
	}
	bp.norm = bp.weights()
	return bp
}

// Tophat returns a bandpass of unit response from min to min+width nm.
func Tophat(min, width float64) *Bandpass {
	const n = 200
	step := width / n
	w := make([]float64, n+3)
	sb := make([]float64, n+3)
	w[0] = min - step/100
	for i := 0; i <= n; i++ {
		w[i+1] = min + float64(i)*step
		sb[i+1] = 1
	}
	w[n+2] = min + width + step/100
	bp := &Bandpass{Wavelen: w, Sb: sb}
	bp.norm = bp.weights()
	return bp
}

// LSSTBands names the LSST filters in wavelength order.
const LSSTBands = "ugrizy"

// Dict holds bandpasses by band name.
type Dict map[string]*Bandpass

// LoadLSSTBandpasses reads total_<b>.dat and hardware_<b>.dat for each LSST
// band from dir.
func LoadLSSTBandpasses(dir string) (total, hardware Dict, err error) {
	total, hardware = Dict{}, Dict{}
	for _, b := range LSSTBands {
		name := string(b)
		if total[name], err = ReadBandpass(filepath.Join(dir, "total_"+name+".dat")); err != nil {
			return nil, nil, err
		}
		if hardware[name], err = ReadBandpass(filepath.Join(dir, "hardware_"+name+".dat")); err != nil {
			return nil, nil, err
		}
	}
	return
}

func (bp *Bandpass) weights() float64 {
	if bp.norm != 0 {
		return bp.norm
	}
	f := make([]float64, len(bp.Wavelen))
	for i, w := range bp.Wavelen {
		f[i] = bp.Sb[i] / w
	}
	return integrate.Trapezoidal(bp.Wavelen, f)
}

// CalcFlux returns the AB flux in Jansky of s through bp,
// ∫ fnu sb/λ dλ / ∫ sb/λ dλ.  The spectrum is zero outside its samples.
func (s *Spectrum) CalcFlux(bp *Bandpass) float64 {
	var pl interp.PiecewiseLinear
	if err := pl.Fit(s.Wavelen, s.Fnu()); err != nil {
		return math.NaN()
	}
	lo, hi := s.Wavelen[0], s.Wavelen[len(s.Wavelen)-1]
	f := make([]float64, len(bp.Wavelen))
	for i, w := range bp.Wavelen {
		if w >= lo && w <= hi {
			f[i] = pl.Predict(w) * bp.Sb[i] / w
		}
	}
	return integrate.Trapezoidal(bp.Wavelen, f) / bp.weights()
}

// CalcMag returns the AB magnitude of s through bp.
func (s *Spectrum) CalcMag(bp *Bandpass) float64 {
	return MagFromFlux(s.CalcFlux(bp))
}

// MagFromFlux converts a flux in Jansky to an AB magnitude.
func MagFromFlux(f float64) float64 { return -2.5*math.Log10(f) + 8.9 }

// FluxFromMag converts an AB magnitude to a flux in Jansky.
func FluxFromMag(m float64) float64 { return math.Pow(10, -0.4*(m-8.9)) }

// ImsimFluxNorm returns the factor scaling s to magnitude magNorm in the
// imsim bandpass.
func ImsimFluxNorm(s *Spectrum, magNorm float64) float64 {
	return fluxNorm(s.CalcMag(imsimBandpass), magNorm)
}

func fluxNorm(imsimMag, magNorm float64) float64 {
	return math.Pow(10, -0.4*(magNorm-imsimMag))
}

var imsimBandpass = ImsimBandpass()
