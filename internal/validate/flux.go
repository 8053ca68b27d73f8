// Public domain.

package validate

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/soniakeys/dc2cat/internal/gcr"
	"github.com/soniakeys/dc2cat/internal/instcat"
	"github.com/soniakeys/dc2cat/internal/sed"
	"github.com/soniakeys/dc2cat/internal/sky"
)

// Flux validation defaults.
const (
	DefaultRows      = 10000
	DefaultTolerance = 0.01 // mag
	fluxSeed         = 9999
	// Rv used for objects without rest frame dust, where Av is 0.
	noDustRv = 3.1
)

// Components of a galaxy in the instance catalogs, in join order.
var Components = []string{"disk", "bulge", "knots"}

// Fluxes compares the summed component fluxes of sampled instance catalog
// galaxies with the truth magnitudes in the visit's filter.
type Fluxes struct {
	Truth     gcr.Catalog
	Dir       string // visit directory
	ObsHistID int64
	// Hardware bandpasses by band.
	Bandpasses sed.Dict
	SEDs       *sed.Cache
	Rows       int
	Tolerance  float64
	Workers    int
	Log        *zap.Logger
}

// FluxReport is the outcome of a flux validation.
type FluxReport struct {
	Band    string
	Rows    int
	MaxDMag float64
	// DMag per sampled galaxy, sorted by galaxy id.
	DMag []float64
}

type joined struct {
	id   int64
	comp [3]*instcat.Object
}

// Run validates the sampled fluxes.  It fails when the largest |Δmag|
// exceeds Tolerance.
func (f *Fluxes) Run(ctx context.Context) (*FluxReport, error) {
	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}
	c, err := instcat.Open(filepath.Join(f.Dir, fmt.Sprintf("phosim_cat_%d.txt", f.ObsHistID)))
	if err != nil {
		return nil, err
	}
	band, err := c.Header.Filter()
	if err != nil {
		return nil, err
	}
	bp := f.Bandpasses[band]
	if bp == nil {
		return nil, fmt.Errorf("no %s bandpass", band)
	}
	gals, err := f.join()
	if err != nil {
		return nil, err
	}
	gals = f.sample(gals)
	log.Debug("sampled", zap.Int("galaxies", len(gals)), zap.String("band", band))
	if len(gals) == 0 {
		return nil, failed("no galaxies in %s", f.Dir)
	}
	mag, err := f.truthMags(gals, band)
	if err != nil {
		return nil, err
	}

	r := &FluxReport{Band: band, Rows: len(gals), DMag: make([]float64, len(gals))}
	g, gctx := errgroup.WithContext(ctx)
	w := f.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(w)
	for i := range gals {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := f.catalogMag(&gals[i], bp)
			if err != nil {
				return err
			}
			r.DMag[i] = math.Abs(m - mag[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, d := range r.DMag {
		if d > r.MaxDMag || math.IsNaN(d) {
			r.MaxDMag = d
			log.Debug("max dmag", zap.Int64("galaxy_id", gals[i].id),
				zap.Float64("dmag", d), zap.Float64("truth", mag[i]))
		}
	}
	tol := f.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	if !(r.MaxDMag <= tol) {
		return r, failed("max |Δmag| %g exceeds %g", r.MaxDMag, tol)
	}
	return r, nil
}

// join reads the component catalogs, joined on galaxy id, sorted by id.
func (f *Fluxes) join() ([]joined, error) {
	byID := map[int64]*joined{}
	for k, comp := range Components {
		name := fmt.Sprintf("%s_gal_cat_%d.txt.gz", comp, f.ObsHistID)
		if comp == "knots" {
			name = fmt.Sprintf("knots_cat_%d.txt.gz", f.ObsHistID)
		}
		err := instcat.ReadObjects(filepath.Join(f.Dir, name), func(o *instcat.Object) error {
			j := byID[o.GalaxyID()]
			if j == nil {
				j = &joined{id: o.GalaxyID()}
				byID[j.id] = j
			}
			j.comp[k] = o
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	gals := make([]joined, 0, len(byID))
	for _, j := range byID {
		gals = append(gals, *j)
	}
	sort.Slice(gals, func(a, b int) bool { return gals[a].id < gals[b].id })
	return gals, nil
}

// sample returns Rows random galaxies, sorted by id.
func (f *Fluxes) sample(gals []joined) []joined {
	n := f.Rows
	if n <= 0 {
		n = DefaultRows
	}
	if n >= len(gals) {
		return gals
	}
	perm := sky.NewRand(fluxSeed).Perm(len(gals))[:n]
	sort.Ints(perm)
	s := make([]joined, n)
	for i, p := range perm {
		s[i] = gals[p]
	}
	return s
}

// position returns the position of the first component present, radians.
func (j *joined) position() (ra, dec float64) {
	for _, o := range j.comp {
		if o != nil {
			return sky.Deg2Rad(o.RA), sky.Deg2Rad(o.Dec)
		}
	}
	return math.NaN(), math.NaN()
}

// truthMags returns the truth magnitudes of gals in band.
func (f *Fluxes) truthMags(gals []joined, band string) ([]float64, error) {
	ra := make([]float64, len(gals))
	dec := make([]float64, len(gals))
	for i := range gals {
		ra[i], dec[i] = gals[i].position()
	}
	sr := append([]float64{}, ra...)
	sd := append([]float64{}, dec...)
	sort.Float64s(sr)
	sort.Float64s(sd)
	ra0 := stat.Quantile(.5, stat.Empirical, sr, nil)
	dec0 := stat.Quantile(.5, stat.Empirical, sd, nil)
	var radius float64
	for i := range ra {
		radius = math.Max(radius, sky.Separation(ra0, dec0, ra[i], dec[i]))
	}
	native, err := healpixQuery(ra0, dec0, radius)
	if err != nil {
		return nil, err
	}
	magName := fmt.Sprintf("mag_true_%s_lsst", band)
	t, err := f.Truth.GetQuantities([]string{"galaxy_id", magName}, gcr.Query{}, native)
	if err != nil {
		return nil, err
	}
	id, err := int64s(t["galaxy_id"])
	if err != nil {
		return nil, err
	}
	m, err := gcr.AsFloat64s(t[magName])
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]float64, len(id))
	for i, g := range id {
		byID[g] = m[i]
	}
	mag := make([]float64, len(gals))
	for i := range gals {
		v, ok := byID[gals[i].id]
		if !ok {
			return nil, failed("galaxy %d not in truth", gals[i].id)
		}
		mag[i] = v
	}
	return mag, nil
}

// catalogMag returns the magnitude of the summed component fluxes.
func (f *Fluxes) catalogMag(j *joined, bp *sed.Bandpass) (float64, error) {
	var flux float64
	for _, o := range j.comp {
		if o == nil || math.IsNaN(o.MagNorm) {
			continue
		}
		av, rv := o.RestDust.Av, o.RestDust.Rv
		if o.RestDust.None() {
			av, rv = 0, noDustRv
		}
		s, err := f.SEDs.Get(o.SED, o.MagNorm, o.Redshift, av, rv)
		if err != nil {
			return 0, err
		}
		flux += s.CalcFlux(bp)
	}
	return sed.MagFromFlux(flux), nil
}

// Histogram writes a histogram of Δmag to an image file, the format
// given by the extension of path.
func (r *FluxReport) Histogram(path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("instance catalog - truth, %s band, %d galaxies", r.Band, r.Rows)
	p.X.Label.Text = "|Δmag|"
	p.Y.Label.Text = "galaxies"
	v := make(plotter.Values, 0, len(r.DMag))
	for _, d := range r.DMag {
		if !math.IsNaN(d) && !math.IsInf(d, 0) {
			v = append(v, d)
		}
	}
	h, err := plotter.NewHist(v, 50)
	if err != nil {
		return err
	}
	p.Add(h)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
