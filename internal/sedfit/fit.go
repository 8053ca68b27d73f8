// Public domain.

package sedfit

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/soniakeys/dc2cat/internal/gcr"
	"github.com/soniakeys/dc2cat/internal/sed"
)

// Result is the fit of one galaxy component.
type Result struct {
	SED    string
	Av, Rv float64
	// MagNorm per LSST band, ugrizy.
	MagNorm [6]float64
	// LSSTFlux is the model flux in Jansky at MagNorm.
	LSSTFlux [6]float64
}

// Fitter matches tophat magnitudes against a grid.  It is safe for
// concurrent use.
type Fitter struct {
	Grid      *Grid
	Cosmology gcr.Cosmology
	// NelderMead function evaluations refining Av and Rv, 0 for none.
	Evaluations int

	lib     *sed.Cache
	lsst    [6]*sed.Bandpass
	tophats []*sed.Bandpass
	tree    *kdtree.Tree

	avMax, rvMin, rvMax float64

	mu        sync.Mutex
	templates map[int]*template
}

// template is a library SED normalized to imsim magnitude 0.
type template struct {
	norm *sed.Spectrum
	a, b []float64
}

// NewFitter returns a fitter over grid g with templates from lib and LSST
// bandpasses lsst.
func NewFitter(g *Grid, lib *sed.Cache, lsst sed.Dict, c gcr.Cosmology) (*Fitter, error) {
	f := &Fitter{
		Grid:        g,
		Cosmology:   c,
		Evaluations: 40,
		lib:         lib,
		tree:        newTree(g),
		templates:   map[int]*template{},
		avMax:       floats.Max(g.Av),
		rvMin:       floats.Min(g.Rv),
		rvMax:       floats.Max(g.Rv),
	}
	for i := range f.lsst {
		b := string(sed.LSSTBands[i])
		if f.lsst[i] = lsst[b]; f.lsst[i] == nil {
			return nil, fmt.Errorf("no LSST %s bandpass", b)
		}
	}
	for i := range g.WavMin {
		f.tophats = append(f.tophats, sed.Tophat(g.WavMin[i], g.WavWidth[i]))
	}
	return f, nil
}

func (f *Fitter) template(i int) (*template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.templates[i]; ok {
		return t, nil
	}
	rest, err := f.lib.Rest(f.Grid.Templates[i])
	if err != nil {
		return nil, err
	}
	t := &template{norm: rest.Copy()}
	t.norm.MultiplyFluxNorm(sed.ImsimFluxNorm(rest, 0))
	t.a, t.b = sed.SetupCCMab(t.norm.Wavelen)
	f.templates[i] = t
	return t, nil
}

func (t *template) dusted(av, rv float64) (*sed.Spectrum, error) {
	s := t.norm.Copy()
	return s, s.AddDust(t.a, t.b, av, rv)
}

// offset returns the mean of mags - model and the χ² about it.
func offset(mags, model []float64) (off, chi2 float64) {
	for i, m := range mags {
		off += m - model[i]
	}
	off /= float64(len(mags))
	for i, m := range mags {
		d := m - model[i] - off
		chi2 += d * d
	}
	return
}

func nanResult() Result {
	r := Result{Av: math.NaN(), Rv: math.NaN()}
	for i := range r.MagNorm {
		r.MagNorm[i] = math.NaN()
		r.LSSTFlux[i] = math.NaN()
	}
	return r
}

// Fit fits galaxies given tophat magnitudes mags[filter][galaxy],
// redshifts and LSST magnitudes lsstMags[band][galaxy] of the component.
// Galaxies without finite tophat magnitudes get a result of NaNs and no
// SED.
func (f *Fitter) Fit(mags [][]float64, redshift []float64, lsstMags [][]float64) ([]Result, error) {
	if len(mags) != len(f.tophats) {
		return nil, fmt.Errorf("%d magnitudes for %d tophats", len(mags), len(f.tophats))
	}
	if len(lsstMags) != len(f.lsst) {
		return nil, fmt.Errorf("%d LSST magnitudes for %d bands", len(lsstMags), len(f.lsst))
	}
	res := make([]Result, len(redshift))
	m := make([]float64, len(mags))
	var l [6]float64
	for i, z := range redshift {
		for j := range mags {
			m[j] = mags[j][i]
		}
		for b := range l {
			l[b] = lsstMags[b][i]
		}
		r, err := f.fitOne(m, z, l)
		if err != nil {
			return nil, err
		}
		res[i] = r
	}
	return res, nil
}

func (f *Fitter) fitOne(mags []float64, z float64, lsstMags [6]float64) (Result, error) {
	if !finite(mags) {
		return nanResult(), nil
	}
	e := f.Grid.Entries[nearest(f.tree, mags)]
	t, err := f.template(e.Template)
	if err != nil {
		return Result{}, err
	}
	av, rv := e.Av, e.Rv
	if f.Evaluations > 0 {
		av, rv = f.refine(t, mags, av, rv)
	}
	s, err := t.dusted(av, rv)
	if err != nil {
		return Result{}, err
	}
	magNorm, _ := offset(mags, restMags(s, f.tophats))

	r := Result{SED: f.Grid.Templates[e.Template], Av: av, Rv: rv}
	s.MultiplyFluxNorm(math.Pow(10, -0.4*magNorm))
	s.RedshiftSED(z, true)
	dm := math.NaN()
	for b, bp := range f.lsst {
		flux := s.CalcFlux(bp)
		if l := lsstMags[b]; !math.IsNaN(l) && !math.IsInf(l, 0) {
			r.MagNorm[b] = magNorm + l - sed.MagFromFlux(flux)
			r.LSSTFlux[b] = sed.FluxFromMag(l)
			continue
		}
		if math.IsNaN(dm) {
			dm = DistanceModulus(f.Cosmology, z)
		}
		r.MagNorm[b] = magNorm + dm
		r.LSSTFlux[b] = flux * math.Pow(10, -0.4*dm)
	}
	return r, nil
}

// refine minimizes the χ² of mags against template t over Av and Rv,
// within the range of the grid.
func (f *Fitter) refine(t *template, mags []float64, av0, rv0 float64) (av, rv float64) {
	var evalErr error
	chi2 := func(x []float64) float64 {
		if x[0] < 0 || x[0] > f.avMax || x[1] < f.rvMin || x[1] > f.rvMax {
			return math.MaxFloat64
		}
		s, err := t.dusted(x[0], x[1])
		if err != nil {
			evalErr = err
			return math.MaxFloat64
		}
		_, c := offset(mags, restMags(s, f.tophats))
		return c
	}
	x0 := []float64{av0, rv0}
	start := chi2(x0)
	res, err := optimize.Minimize(optimize.Problem{Func: chi2}, x0,
		&optimize.Settings{FuncEvaluations: f.Evaluations},
		&optimize.NelderMead{SimplexSize: .05})
	if err != nil || evalErr != nil || res == nil || !(res.F < start) {
		return av0, rv0
	}
	return res.X[0], res.X[1]
}
