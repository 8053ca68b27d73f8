// Public domain.

package sedfit

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soniakeys/dc2cat/internal/sed"
)

// GridFile is the default file name of a template grid.
const GridFile = "sedgrid.gob"

const gridVersion = "sedgrid 1"

// Grid holds the rest frame magnitudes in a set of tophats of every
// library template attenuated by every sampled Av and Rv.  Templates are
// normalized to imsim magnitude 0 before dust.
type Grid struct {
	WavMin, WavWidth []float64
	Templates        []string
	Av, Rv           []float64
	Entries          []Entry
}

// Entry is one template with dust.
type Entry struct {
	Template int
	Av, Rv   float64
	Mags     []float64
}

// DefaultAv and DefaultRv are the dust samples of a grid.
var (
	DefaultAv = []float64{0, .1, .2, .3, .5, .7, 1, 1.5, 2, 3}
	DefaultRv = []float64{2, 2.5, 3.1, 3.6, 4.1, 5}
)

// LibraryTemplates lists the galaxy SEDs of a library directory, relative
// to dir.
func LibraryTemplates(dir string) ([]string, error) {
	m, err := filepath.Glob(filepath.Join(dir, "galaxySED", "*.spec*"))
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("no galaxy SEDs in %s", dir)
	}
	for i, p := range m {
		r, err := filepath.Rel(dir, p)
		if err != nil {
			return nil, err
		}
		m[i] = filepath.ToSlash(r)
	}
	sort.Strings(m)
	return m, nil
}

// restMags returns the tophat magnitudes of s.
func restMags(s *sed.Spectrum, tophats []*sed.Bandpass) []float64 {
	m := make([]float64, len(tophats))
	for i, bp := range tophats {
		m[i] = s.CalcMag(bp)
	}
	return m
}

// BuildGrid computes the grid of templates in the tophats of f, one
// template per goroutine up to workers at a time.
func BuildGrid(ctx context.Context, lib *sed.Cache, templates []string, f *Filters, avs, rvs []float64, workers int, log *zap.Logger) (*Grid, error) {
	if log == nil {
		log = zap.NewNop()
	}
	tophats := f.Tophats()
	per := make([][]Entry, len(templates))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for ti, name := range templates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rest, err := lib.Rest(name)
			if err != nil {
				return err
			}
			norm := rest.Copy()
			norm.MultiplyFluxNorm(sed.ImsimFluxNorm(rest, 0))
			a, b := sed.SetupCCMab(norm.Wavelen)
			for _, av := range avs {
				for _, rv := range rvs {
					s := norm.Copy()
					if err := s.AddDust(a, b, av, rv); err != nil {
						return err
					}
					m := restMags(s, tophats)
					if !finite(m) {
						continue
					}
					per[ti] = append(per[ti], Entry{ti, av, rv, m})
				}
			}
			log.Debug("template", zap.String("sed", name), zap.Int("entries", len(per[ti])))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	grid := &Grid{
		WavMin:    append([]float64(nil), f.WavMin...),
		WavWidth:  append([]float64(nil), f.WavWidth...),
		Templates: templates,
		Av:        avs,
		Rv:        rvs,
	}
	for _, e := range per {
		grid.Entries = append(grid.Entries, e...)
	}
	if len(grid.Entries) == 0 {
		return nil, fmt.Errorf("no template has finite magnitudes in all tophats")
	}
	return grid, nil
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Matches returns an error if the grid tophats are not those of f.
func (g *Grid) Matches(f *Filters) error {
	if len(g.WavMin) != len(f.WavMin) {
		return fmt.Errorf("grid has %d tophats, catalog %d", len(g.WavMin), len(f.WavMin))
	}
	for i := range g.WavMin {
		if math.Abs(g.WavMin[i]-f.WavMin[i]) > 1e-6 || math.Abs(g.WavWidth[i]-f.WavWidth[i]) > 1e-6 {
			return fmt.Errorf("grid tophat %d is %g+%g nm, catalog %s",
				i, g.WavMin[i], g.WavWidth[i], f.Names[i])
		}
	}
	return nil
}

// WriteFile writes the grid with its build time.
func (g *Grid) WriteFile(fn string) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	enc := gob.NewEncoder(f)
	if err = enc.Encode(gridVersion); err == nil {
		if err = enc.Encode(time.Now()); err == nil {
			err = enc.Encode(g)
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadGrid reads a grid file written by WriteFile.
func ReadGrid(fn string) (g *Grid, built time.Time, err error) {
	var f *os.File
	f, err = os.Open(fn)
	if err != nil {
		return
	}
	defer f.Close()
	dec := gob.NewDecoder(f)
	var v string
	if err = dec.Decode(&v); err != nil {
		return
	}
	if v != gridVersion {
		err = fmt.Errorf("%s: %q is not a %s file", fn, v, gridVersion)
		return
	}
	if err = dec.Decode(&built); err != nil {
		return
	}
	g = &Grid{}
	if err = dec.Decode(g); err != nil {
		g = nil
	}
	return
}
