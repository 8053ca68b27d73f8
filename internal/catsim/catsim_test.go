// Public domain.

package catsim_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/dc2cat/internal/catsim"
	"github.com/soniakeys/dc2cat/internal/gcr"
	"github.com/soniakeys/dc2cat/internal/healpix"
	"github.com/soniakeys/dc2cat/internal/sky"
	"github.com/soniakeys/dc2cat/internal/snedb"
)

func ExampleObservationMetaData_Radius() {
	obs := catsim.NewObservationMetaData(55.064, -29.783, catsim.Box, 1, 2.1)
	r, _ := obs.Radius()
	fmt.Printf("%.1f\n", sky.Rad2Deg(r))
	_, ok := (*catsim.ObservationMetaData)(nil).Radius()
	fmt.Println(ok)
	// Output:
	// 2.1
	// false
}

const sedName = "sed_4000_500_disk/SEDs/diskLuminositiesStellar:SED_4000_500:rest"

// galaxies returns a healpix chunked memory source of n galaxies spread
// over a 4 degree square around ra0, dec0 (degrees).
func galaxies(n int, ra0, dec0 float64) gcr.Memory {
	rnd := sky.NewRand(42)
	byPix := map[int]gcr.Table{}
	var pixels []int
	for i := 0; i < n; i++ {
		ra := ra0 + 4*(rnd.Float64()-.5)
		dec := dec0 + 4*(rnd.Float64()-.5)
		p := healpix.Vec2Pix(catsim.QueryNside,
			sky.Cartesian(sky.Deg2Rad(ra), sky.Deg2Rad(dec)))
		t, ok := byPix[p]
		if !ok {
			t = gcr.Table{}
			byPix[p] = t
			pixels = append(pixels, p)
		}
		add := func(name string, v float64) {
			c, _ := t[name].(gcr.Float64s)
			t[name] = append(c, v)
		}
		ids, _ := t["galaxy_id"].(gcr.Int64s)
		t["galaxy_id"] = append(ids, int64(i))
		add("ra_true", ra)
		add("dec_true", dec)
		add("redshift_true", .1+float64(i)/float64(n))
		add("shear_1", .01)
		add("shear_2", .02)
		add("shear_2_phosim", -.02)
		add("convergence", .03)
		add("position_angle_true", 90)
		add("size_disk_true", 3600)
		add("size_minor_disk_true", 1800)
		add("size_bulge_true", 360)
		add("size_minor_bulge_true", 180)
		add("sersic_disk", 1)
		add("sersic_bulge", 4)
		add(sedName, 100)
	}
	sort.Ints(pixels)
	m := make(gcr.Memory, len(pixels))
	for i, p := range pixels {
		m[i] = gcr.MemoryChunk{
			Filter: map[string]float64{gcr.HealpixFilter: float64(p)},
			Data:   byPix[p],
		}
	}
	return m
}

func knotsFor(g gcr.Memory) gcr.Memory {
	k := make(gcr.Memory, len(g))
	for i, ch := range g {
		ids := ch.Data["galaxy_id"].(gcr.Int64s)
		nk := make(gcr.Int64s, len(ids))
		ratio := make(gcr.Float64s, len(ids))
		for j, id := range ids {
			nk[j] = 5
			if id%2 == 1 {
				ratio[j] = .25
			}
		}
		k[i] = gcr.MemoryChunk{Data: gcr.Table{"n_knots": nk, "knots_flux_ratio": ratio}}
	}
	return k
}

func newCache(t *testing.T, ra0, dec0 float64) (*catsim.Cache, *int) {
	t.Helper()
	loads := 0
	return catsim.NewCacheFunc(func(name string, _ map[string]interface{}) (gcr.Catalog, error) {
		loads++
		g := galaxies(500, ra0, dec0)
		switch name {
		case "cosmoDC2":
			return gcr.NewReader(name, gcr.Info{SubclassName: "memory"}, g), nil
		case "protoDC2":
			// not healpix chunked
			for i := range g {
				g[i].Filter = nil
			}
			return gcr.NewReader(name, gcr.Info{SubclassName: "memory"}, g), nil
		case "cosmoDC2_knots":
			info := gcr.Info{
				SubclassName: gcr.CompositeSubclass,
				Catalogs: []gcr.MemberInfo{
					{CatalogName: "cosmoDC2"}, {CatalogName: "knots"},
				},
			}
			return gcr.NewReader(name, info, gcr.Composite{g, knotsFor(g)}), nil
		}
		return nil, os.ErrNotExist
	}), &loads
}

func TestNewObject(t *testing.T) {
	cache, loads := newCache(t, 55, -30)
	bulge, err := catsim.New(cache, "cosmoDC2", catsim.Bulge, nil)
	require.NoError(t, err)
	disk, err := catsim.New(cache, "cosmoDC2", catsim.Disk, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, *loads, "bulge and disk share one catalog")
	assert.Equal(t, 1, cache.Len())
	assert.Same(t, bulge.Catalog, disk.Catalog)
	assert.Equal(t, "cosmoDC2_standard", bulge.CatalogID)

	assert.Equal(t, "majorAxis::bulge", bulge.ColumnMap["majorAxis"])
	assert.Equal(t, "sindex::disk", disk.ColumnMap["sindex"])
	assert.Equal(t, "magNorm_dc2", disk.ColumnMap["magNorm_dc2"])
	assert.Equal(t, "raJ2000", disk.ColumnMap["raJ2000"])
	assert.Contains(t, disk.Columns, catsim.ColumnPair{Name: "minorAxis", Quantity: "minorAxis::disk"})
	assert.Equal(t, 77, bulge.ObjectTypeID)
	assert.Equal(t, 87, disk.ObjectTypeID)
	assert.Equal(t, "galaxy_id", disk.IDColKey)

	_, err = catsim.New(cache, "nosuch", catsim.Bulge, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)

	v := catsim.Bulge
	v.Postfix = ""
	v.CacheSuffix = "_nopostfix"
	_, err = catsim.New(cache, "cosmoDC2", v, nil)
	assert.ErrorContains(t, err, "postfix")

	v = catsim.Disk
	v.ObjectTypeID = 0
	_, err = catsim.New(cache, "cosmoDC2", v, nil)
	assert.Error(t, err)
}

func TestQueryColumns(t *testing.T) {
	cache, _ := newCache(t, 55, -30)
	disk, err := catsim.New(cache, "cosmoDC2", catsim.Disk, nil)
	require.NoError(t, err)
	obs := catsim.NewObservationMetaData(55, -30, catsim.Circle, 1.2)
	radius, _ := obs.Radius()
	cols := []string{"galaxy_id", "raJ2000", "decJ2000", "majorAxis", "sindex",
		"positionAngle", "gamma2", "redshift", "magNorm_dc2", "is_sprinkled",
		"sedFilename_dc2"}

	// every galaxy of the whole catalog inside the disc
	all, err := disk.QueryColumns([]string{"galaxy_id", "raJ2000", "decJ2000"}, 0, nil).Next()
	require.NoError(t, err)
	require.Equal(t, 500, all.Len())
	want := map[int64]bool{}
	ra, dec := all["raJ2000"].(gcr.Float64s), all["decJ2000"].(gcr.Float64s)
	for i, id := range all["galaxy_id"].(gcr.Int64s) {
		if sky.Separation(ra[i], dec[i], obs.PointingRA, obs.PointingDec) < radius {
			want[id] = true
		}
	}
	require.NotEmpty(t, want)

	it := disk.QueryColumns(cols, 10, obs)
	got := map[int64]bool{}
	var first gcr.Table
	for {
		ch, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if first == nil {
			first = ch
		}
		assert.LessOrEqual(t, ch.Len(), 10)
		for _, c := range cols {
			assert.Equal(t, ch.Len(), ch[c].Len(), c)
		}
		for _, id := range ch["galaxy_id"].(gcr.Int64s) {
			got[id] = true
		}
		assert.InDelta(t, sky.Deg2Rad(1), ch["majorAxis"].(gcr.Float64s)[0], 1e-15)
		assert.Equal(t, 1., ch["sindex"].(gcr.Float64s)[0])
		assert.InDelta(t, math.Pi/2, ch["positionAngle"].(gcr.Float64s)[0], 1e-15)
		assert.Equal(t, -.02, ch["gamma2"].(gcr.Float64s)[0])
		assert.True(t, math.IsNaN(ch["magNorm_dc2"].(gcr.Float64s)[0]))
		assert.Equal(t, int64(0), ch["is_sprinkled"].(gcr.Int64s)[0])
		assert.Equal(t, "", ch["sedFilename_dc2"].(gcr.Strings)[0])
	}
	assert.Equal(t, want, got)

	// exhausted iterators start over
	again, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, first["galaxy_id"], again["galaxy_id"])
}

func TestQueryMissingDefault(t *testing.T) {
	cache, _ := newCache(t, 55, -30)
	knots, err := catsim.New(cache, "cosmoDC2", catsim.Knots, nil)
	require.NoError(t, err)
	_, err = knots.QueryColumns([]string{"galaxy_id", "sindex"}, 0, nil).Next()
	assert.ErrorIs(t, err, gcr.ErrNoQuantity)
	_, err = knots.QueryColumns([]string{"nonesuch"}, 0, nil).Next()
	assert.Error(t, err)
}

func TestKnots(t *testing.T) {
	cache, _ := newCache(t, 55, -30)
	knots, err := catsim.New(cache, "cosmoDC2_knots", catsim.Knots, nil)
	require.NoError(t, err)
	disk, err := catsim.New(cache, "cosmoDC2_knots", catsim.Disk, nil)
	require.NoError(t, err)
	assert.Contains(t, knots.PostfixColumns, sedName)
	assert.Equal(t, sedName+"::knots", knots.ColumnMap[sedName])

	cols := []string{"galaxy_id", "sindex", "majorAxis", sedName}
	kc, err := knots.QueryColumns(cols, 0, nil).Next()
	require.NoError(t, err)
	dc, err := disk.QueryColumns(cols, 0, nil).Next()
	require.NoError(t, err)
	assert.Equal(t, int64(5), kc["sindex"].(gcr.Int64s)[0])
	assert.Equal(t, kc["majorAxis"], dc["majorAxis"])
	ks := kc[sedName].(gcr.Float64s)
	ds := dc[sedName].(gcr.Float64s)
	for i, id := range kc["galaxy_id"].(gcr.Int64s) {
		if id%2 == 1 {
			assert.Equal(t, 25., ks[i])
			assert.Equal(t, 75., ds[i])
			continue
		}
		// no knots flux, but a sliver is kept
		assert.InDelta(t, 100*math.Pow(2, -23), ks[i], 1e-18)
		assert.Equal(t, 100., ds[i])
	}
}

func TestProtoDC2Rotation(t *testing.T) {
	cache, _ := newCache(t, 0, 0)
	v := catsim.ProtoDC2Disk(55.064, -29.783)
	disk, err := catsim.New(cache, "protoDC2", v, nil)
	require.NoError(t, err)
	assert.Equal(t, "protoDC2_rotated", disk.CatalogID)
	assert.Equal(t, 107, disk.ObjectTypeID)
	assert.Equal(t, 97, catsim.ProtoDC2Bulge(0, 0).ObjectTypeID)

	obs := catsim.NewObservationMetaData(55.064, -29.783, catsim.Circle, 1)
	ch, err := disk.QueryColumns([]string{"raJ2000", "decJ2000", "positionAngle", "gamma2"}, 0, obs).Next()
	require.NoError(t, err)
	require.NotZero(t, ch.Len())
	ra, dec := ch["raJ2000"].(gcr.Float64s), ch["decJ2000"].(gcr.Float64s)
	for i := range ra {
		assert.Less(t, sky.Separation(ra[i], dec[i], obs.PointingRA, obs.PointingDec), sky.Deg2Rad(1))
	}
	assert.Equal(t, 90., ch["positionAngle"].(gcr.Float64s)[0])
	assert.Equal(t, .02, ch["gamma2"].(gcr.Float64s)[0])
}

func TestSNObject(t *testing.T) {
	in := t.TempDir()
	csv := "h\n1,0.1,24,snA,60000,1e-6,0.3,0.5,55,-30\n2,0.1,24,snB,60000,1e-6,0.3,0.5,80,10\n"
	require.NoError(t, os.WriteFile(filepath.Join(in, "sn.csv"), []byte(csv), 0o644))
	path := filepath.Join(t.TempDir(), "sne.db")
	ctx := context.Background()
	require.NoError(t, snedb.Create(ctx, path, in, nil))
	db, err := snedb.Open(path)
	require.NoError(t, err)
	defer db.Close()

	sn := catsim.NewSNObject(db)
	obs := catsim.NewObservationMetaData(55, -30, catsim.Circle, 1)
	ch, err := sn.QueryColumns(ctx, nil, 0, obs).Next()
	require.NoError(t, err)
	require.Equal(t, 1, ch.Len())
	assert.Equal(t, gcr.Strings{"snA"}, ch["id"])
	assert.InDelta(t, sky.Deg2Rad(55), ch["raJ2000"].(gcr.Float64s)[0], 1e-15)
	assert.Equal(t, gcr.Int64s{-1}, ch["runobjid"])
	assert.Equal(t, ch["redshift"], ch["Tredshift"])

	ch, err = sn.QueryColumns(ctx, []string{"id"}, 1, nil).Next()
	require.NoError(t, err)
	assert.Equal(t, 1, ch.Len())
}
