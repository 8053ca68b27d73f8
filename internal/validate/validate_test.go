// Public domain.

package validate_test

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/dc2cat/internal/gcr"
	"github.com/soniakeys/dc2cat/internal/healpix"
	"github.com/soniakeys/dc2cat/internal/sed"
	"github.com/soniakeys/dc2cat/internal/sky"
	"github.com/soniakeys/dc2cat/internal/validate"
)

const obsHistID = 42

func ExampleVisitDir() {
	fmt.Println(validate.VisitDir("instcats", 479028))
	// Output:
	// instcats/00479028
}

type gal struct {
	id          int64
	ra, dec     float64
	bulge, disk float64 // stellar mass
	magR        float64
}

var gals = []gal{
	{1, 10.0, -30.0, 1, 1, 20},
	{2, 10.8, -30.5, 1, 1, 21},
	{3, 9.3, -29.4, 0, 1, 22},
	{4, 10.4, -29.2, 1, 1, 23},
	{5, 9.6, -30.9, 1, 1, 24},
	{6, 10.9, -29.6, 1, 1, 25},
	{7, 10.0, -34.0, 1, 1, 20}, // outside the field
	{8, 10.1, -30.1, 1, 1, 30}, // too faint
}

// truth returns a catalog with one healpixel chunk per galaxy.
func truth(mags map[int64]float64) gcr.Catalog {
	var m gcr.Memory
	for _, g := range gals {
		pix := healpix.Vec2Pix(validate.HealpixNside, sky.Cartesian(sky.Deg2Rad(g.ra), sky.Deg2Rad(g.dec)))
		m = append(m, gcr.MemoryChunk{
			Filter: map[string]float64{gcr.HealpixFilter: float64(pix)},
			Data: gcr.Table{
				"galaxy_id":          gcr.Int64s{g.id},
				"ra":                 gcr.Float64s{g.ra},
				"dec":                gcr.Float64s{g.dec},
				"stellar_mass_bulge": gcr.Float64s{g.bulge},
				"stellar_mass_disk":  gcr.Float64s{g.disk},
				"sed_1000_100_bulge": gcr.Float64s{g.bulge},
				"sed_1000_100_disk":  gcr.Float64s{1},
				"mag_r_lsst":         gcr.Float64s{g.magR},
				"mag_true_r_lsst":    gcr.Float64s{mags[g.id]},
			},
		})
	}
	return gcr.NewReader("truth", gcr.Info{}, m)
}

func object(gid int64, typeID int, ra, dec, magNorm float64, src string) string {
	return fmt.Sprintf("object %d %.10f %.10f %g flat.spec 0.2 0 0 0 0 0 %s none none",
		gid<<10+int64(typeID), ra, dec, magNorm, src)
}

func writeGz(t *testing.T, fn string, lines []string) {
	f, err := os.Create(fn)
	require.NoError(t, err)
	z := gzip.NewWriter(f)
	for _, l := range lines {
		fmt.Fprintln(z, l)
	}
	require.NoError(t, z.Close())
	require.NoError(t, f.Close())
}

type visit struct {
	bulge, disk, knots []string
}

// goodVisit returns catalogs agreeing with truth.  Galaxy 4 is sprinkled.
func goodVisit() *visit {
	v := &visit{}
	for _, g := range gals[:6] {
		if g.bulge > 0 {
			v.bulge = append(v.bulge, object(g.id, 97, g.ra, g.dec, 20, "point"))
		}
		if g.id != 4 {
			v.disk = append(v.disk, object(g.id, 107, g.ra, g.dec, 20, "point"))
		}
	}
	v.knots = []string{
		object(1, 127, 10, -30, 22, "point"),
		object(2, 127, 10.8, -30.5, 22, "point"),
	}
	return v
}

func (v *visit) write(t *testing.T) string {
	dir := validate.VisitDir(t.TempDir(), obsHistID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeGz(t, filepath.Join(dir, fmt.Sprintf("bulge_gal_cat_%d.txt.gz", obsHistID)), v.bulge)
	writeGz(t, filepath.Join(dir, fmt.Sprintf("disk_gal_cat_%d.txt.gz", obsHistID)), v.disk)
	writeGz(t, filepath.Join(dir, fmt.Sprintf("knots_cat_%d.txt.gz", obsHistID)), v.knots)
	require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("phosim_cat_%d.txt", obsHistID)),
		[]byte("rightascension 10\ndeclination -30\nfilter 2\n"), 0o644))
	return dir
}

func sprinkled(t *testing.T) map[int64]bool {
	dir := t.TempDir()
	fs := validate.SprinkledFiles(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(fs[0]), 0o755))
	require.NoError(t, os.WriteFile(fs[0], []byte("galtileid,ra,dec\n4,10.4,-29.2\n"), 0o644))
	require.NoError(t, os.WriteFile(fs[1], []byte("galtileid,ra\n"), 0o644))
	s, err := validate.ReadSprinkled(fs...)
	require.NoError(t, err)
	return s
}

func positions(t *testing.T, v *visit) *validate.Positions {
	return &validate.Positions{
		Truth:     truth(nil),
		Dir:       v.write(t),
		ObsHistID: obsHistID,
		RA:        10,
		Dec:       -30,
		Sprinkled: sprinkled(t),
	}
}

func TestReadSprinkled(t *testing.T) {
	assert.Equal(t, map[int64]bool{4: true}, sprinkled(t))
	_, err := validate.ReadSprinkled(filepath.Join(t.TempDir(), "none.csv"))
	assert.Error(t, err)
}

func TestPositions(t *testing.T) {
	v := goodVisit()
	// faint extras are trimmed
	v.bulge = append(v.bulge, object(99, 97, 10.2, -30.2, 60, "point"))
	reps, err := positions(t, v).Run()
	require.NoError(t, err)
	require.Len(t, reps, 2)
	assert.Equal(t, validate.ComponentReport{Component: "bulge", Truth: 5, Catalog: 6, Trimmed: 1,
		MaxDelta: reps[0].MaxDelta}, reps[0])
	assert.Equal(t, 5, reps[1].Truth)
	assert.Less(t, reps[1].MaxDelta, 1e-9)
}

func TestPositionsFail(t *testing.T) {
	for name, mod := range map[string]func(*visit){
		"bright extra": func(v *visit) {
			v.bulge = append(v.bulge, object(99, 97, 10.2, -30.2, 25, "point"))
		},
		"missing": func(v *visit) { v.disk = v.disk[1:] },
		"sprinkled knots": func(v *visit) {
			v.knots = append(v.knots, object(4, 127, 10.4, -29.2, 22, "point"))
		},
		"no knots": func(v *visit) { v.knots = nil },
		"moved": func(v *visit) {
			v.disk[3] = object(5, 107, 9.6, -30.8, 20, "point")
		},
		"id range": func(v *visit) {
			v.disk = append(v.disk, object(16e9, 107, 10, -30, 60, "point"))
		},
	} {
		v := goodVisit()
		mod(v)
		_, err := positions(t, v).Run()
		assert.True(t, errors.Is(err, validate.ErrFailed), "%s: %v", name, err)
	}
}

// flatSED writes a spectrum flat in fnu.
func flatSED(t *testing.T) *sed.Cache {
	dir := t.TempDir()
	var b strings.Builder
	for w := 100.; w <= 2000; w += 2 {
		fmt.Fprintf(&b, "%g %.12e\n", w, 1/(w*w*1e-9/299792458.*1e23))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flat.spec"), []byte(b.String()), 0o644))
	return sed.NewCache(dir)
}

func fluxes(t *testing.T, offset float64) *validate.Fluxes {
	v := goodVisit()
	c := flatSED(t)
	bp := sed.Dict{"r": sed.Tophat(550, 150)}
	flux := func(magNorm float64) float64 {
		s, err := c.Get("flat.spec", magNorm, .2, 0, 3.1)
		require.NoError(t, err)
		return s.CalcFlux(bp["r"])
	}
	f20, f22 := flux(20), flux(22)
	mags := map[int64]float64{}
	for _, g := range gals[:6] {
		var f float64
		if g.bulge > 0 {
			f += f20
		}
		if g.id != 4 {
			f += f20
		}
		if g.id <= 2 {
			f += f22
		}
		mags[g.id] = sed.MagFromFlux(f) + offset
	}
	return &validate.Fluxes{
		Truth:      truth(mags),
		Dir:        v.write(t),
		ObsHistID:  obsHistID,
		Bandpasses: bp,
		SEDs:       c,
		Rows:       4,
		Workers:    2,
	}
}

func TestFluxes(t *testing.T) {
	f := fluxes(t, 0)
	r, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r", r.Band)
	assert.Equal(t, 4, r.Rows)
	require.Len(t, r.DMag, 4)
	assert.Less(t, r.MaxDMag, 1e-9)

	f.Rows = 0
	r, err = f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, r.Rows)
}

func TestFluxesFail(t *testing.T) {
	r, err := fluxes(t, .1).Run(context.Background())
	require.True(t, errors.Is(err, validate.ErrFailed))
	assert.InDelta(t, .1, r.MaxDMag, 1e-9)
}

func TestHistogram(t *testing.T) {
	r := &validate.FluxReport{Band: "r", Rows: 4, DMag: []float64{.01, .02, .05, math.NaN()}}
	fn := filepath.Join(t.TempDir(), "dmag.png")
	require.NoError(t, r.Histogram(fn))
	fi, err := os.Stat(fn)
	require.NoError(t, err)
	assert.Positive(t, fi.Size())
}
