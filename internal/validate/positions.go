// Public domain.

package validate

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/soniakeys/coord"
	"go.uber.org/zap"

	"github.com/soniakeys/dc2cat/internal/gcr"
	"github.com/soniakeys/dc2cat/internal/instcat"
	"github.com/soniakeys/dc2cat/internal/sky"
)

// Position validation constants.
const (
	DefaultFOV   = 2.1 // degrees
	MaxGalaxyID  = 15e9
	MaxMagR      = 29
	DotTolerance = 1e-6
	positionSeed = 77123
	// instance catalog magNorm of galaxies the truth catalog may lack
	faintMagNorm = 50
)

// Positions validates the galaxy membership and positions of one visit's
// instance catalogs.
type Positions struct {
	Truth     gcr.Catalog
	Dir       string // visit directory
	ObsHistID int64
	// Boresight, degrees.
	RA, Dec float64
	FOV     float64 // radius, degrees
	// Sprinkled galaxies have no knots and no disk in the catalogs.
	Sprinkled map[int64]bool
	Log       *zap.Logger
}

// ComponentReport summarizes the validation of one component file.
type ComponentReport struct {
	Component string
	Truth     int // truth galaxies with the component
	Catalog   int // catalog galaxies
	Trimmed   int // faint catalog galaxies absent from truth
	MaxDelta  float64
}

type truth struct {
	id        []int64
	xyz       []coord.Cart
	mass      map[string][]float64
	sedByComp map[string][][]float64
}

type galaxy struct {
	id      int64
	xyz     coord.Cart
	magNorm float64
}

// Run validates the knots, bulge and disk catalogs.
func (p *Positions) Run() ([]ComponentReport, error) {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	fov := p.FOV
	if fov <= 0 {
		fov = DefaultFOV
	}
	if err := p.checkKnots(); err != nil {
		return nil, err
	}
	tr, err := p.readTruth(fov)
	if err != nil {
		return nil, err
	}
	log.Debug("truth", zap.Int("galaxies", len(tr.id)))
	var reps []ComponentReport
	for _, comp := range []string{"bulge", "disk"} {
		fn := filepath.Join(p.Dir, fmt.Sprintf("%s_gal_cat_%d.txt.gz", comp, p.ObsHistID))
		r, err := p.component(tr, comp, fn)
		if err != nil {
			return reps, fmt.Errorf("%s: %w", fn, err)
		}
		log.Info("positions valid", zap.String("file", fn),
			zap.Int("galaxies", r.Catalog), zap.Int("trimmed", r.Trimmed),
			zap.Float64("max_delta", r.MaxDelta))
		reps = append(reps, r)
	}
	return reps, nil
}

func (p *Positions) checkKnots() error {
	fn := filepath.Join(p.Dir, fmt.Sprintf("knots_cat_%d.txt.gz", p.ObsHistID))
	if _, err := os.Stat(fn); err != nil {
		return err
	}
	n := 0
	err := instcat.ReadObjects(fn, func(o *instcat.Object) error {
		n++
		if p.Sprinkled[o.GalaxyID()] {
			return failed("knots of sprinkled galaxy %d", o.GalaxyID())
		}
		return nil
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return failed("%s: no knots", fn)
	}
	return nil
}

func sedQuantity(name, comp string) bool {
	return strings.HasPrefix(name, "sed") && strings.HasSuffix(name, comp)
}

// readTruth reads truth galaxies within fov of the boresight, sorted by id.
func (p *Positions) readTruth(fov float64) (*truth, error) {
	ra, dec, r := sky.Deg2Rad(p.RA), sky.Deg2Rad(p.Dec), sky.Deg2Rad(fov)
	native, err := healpixQuery(ra, dec, r)
	if err != nil {
		return nil, err
	}
	q := []string{"galaxy_id", "ra", "dec", "stellar_mass_bulge", "stellar_mass_disk"}
	var seds []string
	for _, n := range p.Truth.ListAllQuantities(true) {
		if sedQuantity(n, "bulge") || sedQuantity(n, "disk") {
			seds = append(seds, n)
		}
	}
	sort.Strings(seds)
	q = append(q, seds...)
	filter, _ := gcr.Cmp("mag_r_lsst", "<=", MaxMagR)
	t, err := p.Truth.GetQuantities(q, filter, native)
	if err != nil {
		return nil, err
	}
	id, err := int64s(t["galaxy_id"])
	if err != nil {
		return nil, err
	}
	tra, err := gcr.AsFloat64s(t["ra"])
	if err != nil {
		return nil, err
	}
	tdec, err := gcr.AsFloat64s(t["dec"])
	if err != nil {
		return nil, err
	}
	bore := sky.Cartesian(ra, dec)
	cosFOV := math.Cos(r)
	var idx []int
	xyz := make([]coord.Cart, len(id))
	for i := range id {
		xyz[i] = sky.Cartesian(sky.Deg2Rad(tra[i]), sky.Deg2Rad(tdec[i]))
		if dot(xyz[i], bore) >= cosFOV {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return id[idx[a]] < id[idx[b]] })

	tr := &truth{mass: map[string][]float64{}, sedByComp: map[string][][]float64{}}
	for _, i := range idx {
		tr.id = append(tr.id, id[i])
		tr.xyz = append(tr.xyz, xyz[i])
	}
	take := func(name string) ([]float64, error) {
		c, err := gcr.AsFloat64s(t[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		v := make([]float64, len(idx))
		for k, i := range idx {
			v[k] = c[i]
		}
		return v, nil
	}
	for _, comp := range []string{"bulge", "disk"} {
		if tr.mass[comp], err = take("stellar_mass_" + comp); err != nil {
			return nil, err
		}
		for _, n := range seds {
			if !sedQuantity(n, comp) {
				continue
			}
			v, err := take(n)
			if err != nil {
				return nil, err
			}
			tr.sedByComp[comp] = append(tr.sedByComp[comp], v)
		}
	}
	return tr, nil
}

func dot(a, b coord.Cart) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

// expected returns the truth galaxies the component catalog must hold.
func (p *Positions) expected(tr *truth, comp string) []galaxy {
	var g []galaxy
	for i, id := range tr.id {
		if !(tr.mass[comp][i] > 0) {
			continue
		}
		ok := true
		for _, s := range tr.sedByComp[comp] {
			if !(s[i] > 0) {
				ok = false
				break
			}
		}
		// the sprinkler replaces disks
		if !ok || comp == "disk" && p.Sprinkled[id] {
			continue
		}
		g = append(g, galaxy{id: id, xyz: tr.xyz[i]})
	}
	return g
}

func (p *Positions) component(tr *truth, comp, fn string) (ComponentReport, error) {
	r := ComponentReport{Component: comp}
	var cat []galaxy
	err := instcat.ReadObjects(fn, func(o *instcat.Object) error {
		cat = append(cat, galaxy{
			id:      o.GalaxyID(),
			xyz:     sky.Cartesian(sky.Deg2Rad(o.RA), sky.Deg2Rad(o.Dec)),
			magNorm: o.MagNorm,
		})
		return nil
	})
	if err != nil {
		return r, err
	}
	r.Catalog = len(cat)
	for _, g := range cat {
		if g.id > MaxGalaxyID {
			return r, failed("galaxy id %d above %g", g.id, float64(MaxGalaxyID))
		}
	}
	sort.SliceStable(cat, func(a, b int) bool { return cat[a].id < cat[b].id })

	want := p.expected(tr, comp)
	r.Truth = len(want)
	inCat := map[int64]bool{}
	for _, g := range cat {
		inCat[g.id] = true
	}
	inTruth := map[int64]bool{}
	missing := 0
	for _, g := range want {
		inTruth[g.id] = true
		if !inCat[g.id] {
			missing++
		}
	}
	if missing > 0 {
		return r, failed("%d truth galaxies not in catalog", missing)
	}
	var extra []galaxy
	kept := cat[:0:0]
	for _, g := range cat {
		if inTruth[g.id] {
			kept = append(kept, g)
		} else {
			extra = append(extra, g)
		}
	}
	if len(extra) > 0 {
		minMag := math.Inf(1)
		for _, g := range extra {
			minMag = math.Min(minMag, g.magNorm)
		}
		if minMag < faintMagNorm {
			return r, failed("%d catalog galaxies not in truth, brightest magNorm %g, first %d",
				len(extra), minMag, extra[0].id)
		}
		r.Trimmed = len(extra)
		cat = kept
	}
	if len(cat) != len(want) {
		return r, failed("%d catalog rows for %d truth galaxies", len(cat), len(want))
	}
	r.MaxDelta, err = dotDelta(want, cat)
	return r, err
}

// dotDelta compares the dot products of each set with three random
// reference members of itself.
func dotDelta(want, cat []galaxy) (float64, error) {
	rng := sky.NewRand(positionSeed)
	refs := rng.Perm(len(cat))
	if len(refs) > 3 {
		refs = refs[:3]
	}
	var max float64
	for _, k := range refs {
		lo, hi := math.Inf(1), 0.
		for i := range cat {
			d := math.Abs(dot(want[i].xyz, want[k].xyz) - dot(cat[i].xyz, cat[k].xyz))
			lo = math.Min(lo, d)
			hi = math.Max(hi, d)
		}
		if hi > DotTolerance {
			return hi, failed("dot products off, min %e max %e", lo, hi)
		}
		max = math.Max(max, hi)
	}
	return max, nil
}
