// Public domain.

package sedfit

import (
	"context"
	"fmt"
	"io"
	"math"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soniakeys/dc2cat/internal/gcr"
	"github.com/soniakeys/dc2cat/internal/htm"
	"github.com/soniakeys/dc2cat/internal/sed"
)

// DefaultSlices is the number of slices a component is fitted in.
const DefaultSlices = 20

// Job fits the disks and bulges of one healpixel of a catalog.
type Job struct {
	Catalog gcr.Catalog
	Fitter  *Fitter
	Healpix int
	// Limit, if positive, fits only the first Limit galaxies.
	Limit   int
	Slices  int
	Workers int
	Log     *zap.Logger
}

// Output holds the fits of a healpixel, one element per galaxy.
type Output struct {
	GalaxyID []int64
	HTMID6   []int64
	Redshift []float64
	Disk     []Result
	Bulge    []Result
	// Cosmo holds the catalog true magnitudes, ugrizy.
	Cosmo [6][]float64
}

type component struct {
	id   []int64
	z    []float64
	fits []Result
}

// Run fits both components concurrently, then adjusts magNorms so the sum
// of disk and bulge model fluxes reproduces the true magnitudes.
func (j *Job) Run(ctx context.Context) (*Output, error) {
	if j.Log == nil {
		j.Log = zap.NewNop()
	}
	filters, err := FilterNamesFromCatalog(j.Catalog)
	if err != nil {
		return nil, err
	}
	for _, c := range Components {
		if err := j.Fitter.Grid.Matches(filters[c]); err != nil {
			return nil, fmt.Errorf("%s: %w", c, err)
		}
	}
	native := gcr.Eq(gcr.HealpixFilter, float64(j.Healpix))

	var disk, bulge *component
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		disk, err = j.component(gctx, "disk", filters["disk"], native)
		return
	})
	g.Go(func() (err error) {
		bulge, err = j.component(gctx, "bulge", filters["bulge"], native)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := sameInt64(disk.id, bulge.id, "disk and bulge galaxy_id"); err != nil {
		return nil, err
	}
	if err := sameFloat64(disk.z, bulge.z, "disk and bulge redshift"); err != nil {
		return nil, err
	}

	q := []string{"galaxy_id", "ra_true", "dec_true"}
	for i := range sed.LSSTBands {
		q = append(q, trueMag(i))
	}
	control, err := j.Catalog.GetQuantities(q, gcr.Query{}, native)
	if err != nil {
		return nil, err
	}
	control = j.limit(control)
	id, err := int64s(control["galaxy_id"])
	if err != nil {
		return nil, err
	}
	if err := sameInt64(id, disk.id, "truth and fit galaxy_id"); err != nil {
		return nil, err
	}
	out := &Output{GalaxyID: id, Redshift: disk.z, Disk: disk.fits, Bulge: bulge.fits}
	for b := range out.Cosmo {
		if out.Cosmo[b], err = gcr.AsFloat64s(control[trueMag(b)]); err != nil {
			return nil, err
		}
		for i, m := range out.Cosmo[b] {
			d, u := &out.Disk[i], &out.Bulge[i]
			dmag := -2.5 * math.Log10(sed.FluxFromMag(m)/(finiteFlux(d.LSSTFlux[b])+finiteFlux(u.LSSTFlux[b])))
			d.MagNorm[b] += dmag
			u.MagNorm[b] += dmag
		}
	}
	ra, err := gcr.AsFloat64s(control["ra_true"])
	if err != nil {
		return nil, err
	}
	dec, err := gcr.AsFloat64s(control["dec_true"])
	if err != nil {
		return nil, err
	}
	out.HTMID6 = make([]int64, len(ra))
	for i := range ra {
		if out.HTMID6[i], err = htm.FindHtmid(ra[i], dec[i], 6); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// finiteFlux counts a component without a fit as no flux.
func finiteFlux(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func trueMag(b int) string { return fmt.Sprintf("mag_true_%c_lsst", sed.LSSTBands[b]) }

func (j *Job) limit(t gcr.Table) gcr.Table {
	n := t.Len()
	if j.Limit <= 0 || j.Limit >= n {
		return t
	}
	idx := make([]int, j.Limit)
	for i := range idx {
		idx[i] = i
	}
	return t.Take(idx)
}

func int64s(c gcr.Column) ([]int64, error) {
	switch c := c.(type) {
	case gcr.Int64s:
		return c, nil
	case gcr.Float64s:
		id := make([]int64, len(c))
		for i, v := range c {
			id[i] = int64(v)
		}
		return id, nil
	}
	return nil, fmt.Errorf("galaxy_id is %v", c.Kind())
}

func sameInt64(a, b []int64, what string) error {
	if len(a) != len(b) {
		return fmt.Errorf("%s: %d != %d rows", what, len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return fmt.Errorf("%s differ at row %d: %d, %d", what, i, a[i], b[i])
		}
	}
	return nil
}

func sameFloat64(a, b []float64, what string) error {
	if len(a) != len(b) {
		return fmt.Errorf("%s: %d != %d rows", what, len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return fmt.Errorf("%s differ at row %d: %g, %g", what, i, a[i], b[i])
		}
	}
	return nil
}

// component reads and fits one component.
func (j *Job) component(ctx context.Context, name string, f *Filters, native gcr.Query) (*component, error) {
	q := append(append(append([]string{}, f.Names...), f.LSST...), "redshift_true", "galaxy_id")
	t, err := j.Catalog.GetQuantities(q, gcr.Query{}, native)
	if err != nil {
		return nil, err
	}
	t = j.limit(t)
	c := &component{}
	if c.id, err = int64s(t["galaxy_id"]); err != nil {
		return nil, err
	}
	if c.z, err = gcr.AsFloat64s(t["redshift_true"]); err != nil {
		return nil, err
	}
	mags, err := luminosityMags(t, f.Names)
	if err != nil {
		return nil, err
	}
	lsst, err := luminosityMags(t, f.LSST)
	if err != nil {
		return nil, err
	}
	j.Log.Info("fitting", zap.String("component", name), zap.Int("healpix", j.Healpix),
		zap.Int("galaxies", len(c.z)))
	c.fits, err = j.fitSlices(ctx, name, mags, c.z, lsst)
	return c, err
}

// luminosityMags returns -2.5 log10 of the named luminosities.
func luminosityMags(t gcr.Table, names []string) ([][]float64, error) {
	m := make([][]float64, len(names))
	for i, n := range names {
		l, err := gcr.AsFloat64s(t[n])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n, err)
		}
		m[i] = make([]float64, len(l))
		for k, v := range l {
			m[i][k] = -2.5 * math.Log10(v)
		}
	}
	return m, nil
}

type fitSlice struct {
	lo, hi int
	rch    chan sliceResult
}

type sliceResult struct {
	fits []Result
	err  error
}

// fitSlices fits galaxies in slices on up to Workers goroutines, keeping
// results in slice order.
func (j *Job) fitSlices(ctx context.Context, name string, mags [][]float64, z []float64, lsst [][]float64) ([]Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	n := len(z)
	slices := j.Slices
	if slices <= 0 {
		slices = DefaultSlices
	}
	d := (n + slices - 1) / slices
	if d == 0 {
		return nil, nil
	}
	maxWorkers := j.Workers
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}

	// prCh holds result channels in submission order.
	prCh := make(chan chan sliceResult, maxWorkers*2)
	sliceCh := make(chan *fitSlice)

	// dispatcher
	go func() {
		defer close(prCh)
		defer close(sliceCh)
		for lo := 0; lo < n; lo += d {
			s := &fitSlice{lo, min(lo+d, n), make(chan sliceResult, 1)}
			select {
			case sliceCh <- s:
			case <-ctx.Done():
				return
			}
			select {
			case prCh <- s.rch:
			case <-ctx.Done():
				return
			}
		}
	}()

	// workers are started as slices call for them
	go func() {
		for w := 0; w < maxWorkers; w++ {
			s, ok := <-sliceCh
			if !ok {
				return
			}
			go j.fitWorker(s, sliceCh, mags, z, lsst)
		}
	}()

	start := time.Now()
	fits := make([]Result, 0, n)
	for rch := range prCh {
		select {
		case r := <-rch:
			if r.err != nil {
				return nil, r.err
			}
			fits = append(fits, r.fits...)
			elapsed := time.Since(start).Hours()
			j.Log.Debug("slice", zap.String("component", name),
				zap.Int("done", len(fits)), zap.Int("of", n),
				zap.Float64("elapsed_hours", elapsed),
				zap.Float64("predicted_hours", elapsed*float64(n)/float64(len(fits))))
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fits, nil
}

func (j *Job) fitWorker(s *fitSlice, sliceCh chan *fitSlice, mags [][]float64, z []float64, lsst [][]float64) {
	for ok := true; ok; s, ok = <-sliceCh {
		m := make([][]float64, len(mags))
		for i := range mags {
			m[i] = mags[i][s.lo:s.hi]
		}
		l := make([][]float64, len(lsst))
		for i := range lsst {
			l[i] = lsst[i][s.lo:s.hi]
		}
		fits, err := j.Fitter.Fit(m, z[s.lo:s.hi], l)
		s.rch <- sliceResult{fits, err} // buffered
	}
}

// Table returns the output as catalog columns, magnitude arrays split by
// band.
func (o *Output) Table() (gcr.Table, []string) {
	n := len(o.GalaxyID)
	t := gcr.Table{
		"galaxy_id": gcr.Int64s(o.GalaxyID),
		"htmid_6":   gcr.Int64s(o.HTMID6),
		"redshift":  gcr.Float64s(o.Redshift),
	}
	order := []string{"galaxy_id", "htmid_6", "redshift", "disk_sed", "bulge_sed"}
	comp := func(c string, fits []Result) {
		names := make(gcr.Strings, n)
		av := make(gcr.Float64s, n)
		rv := make(gcr.Float64s, n)
		for i, f := range fits {
			names[i], av[i], rv[i] = f.SED, f.Av, f.Rv
		}
		t[c+"_sed"], t[c+"_av"], t[c+"_rv"] = names, av, rv
		for b := range sed.LSSTBands {
			mn := make(gcr.Float64s, n)
			for i, f := range fits {
				mn[i] = f.MagNorm[b]
			}
			t[fmt.Sprintf("%s_magnorm_%c", c, sed.LSSTBands[b])] = mn
		}
	}
	comp("disk", o.Disk)
	comp("bulge", o.Bulge)
	for _, c := range []string{"bulge", "disk"} {
		for b := range sed.LSSTBands {
			order = append(order, fmt.Sprintf("%s_magnorm_%c", c, sed.LSSTBands[b]))
		}
	}
	order = append(order, "disk_av", "disk_rv", "bulge_av", "bulge_rv")
	for b := range sed.LSSTBands {
		name := fmt.Sprintf("cosmo_%c", sed.LSSTBands[b])
		t[name] = gcr.Float64s(o.Cosmo[b])
		order = append(order, name)
	}
	return t, order
}

// WriteFITS writes the output as a FITS binary table named sed_fit.
func (o *Output) WriteFITS(w io.Writer) error {
	t, order := o.Table()
	return gcr.WriteFITS(w, "sed_fit", t, order)
}
