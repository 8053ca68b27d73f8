// Public domain.

package sed_test

import (
	"compress/gzip"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/dc2cat/internal/sed"
)

func ExampleFluxFromMag() {
	fmt.Printf("%.4f\n", sed.FluxFromMag(8.9))
	fmt.Printf("%.2f\n", sed.MagFromFlux(1e-3))
	// Output:
	// 1.0000
	// 16.40
}

// flat returns a spectrum of constant fnu Jansky from 200 to 1200 nm.
func flat(fnu float64) *sed.Spectrum {
	s := &sed.Spectrum{Name: "flat"}
	for w := 200.; w <= 1200; w += 1 {
		s.Wavelen = append(s.Wavelen, w)
		s.Flambda = append(s.Flambda, fnu/(w*w*1e-9/299792458.*1e23))
	}
	return s
}

func TestCCM(t *testing.T) {
	a, b := sed.SetupCCMab([]float64{1000 / 1.1, 550, 1000 / 3.3, 50, 10000})
	assert.InDelta(t, 0.669, a[0], 1e-3)
	assert.InDelta(t, 1, a[1], 1e-3)
	assert.InDelta(t, 0, b[1], 1e-2)
	assert.InDelta(t, 3.534, b[2], 1e-3)
	// x = 20 and x = 0.1 are outside the law
	assert.Zero(t, a[3])
	assert.Zero(t, b[4])

	// continuity at range boundaries
	for _, x := range []float64{1.1, 3.3, 8} {
		a, b := sed.SetupCCMab([]float64{1000 / (x - 1e-9), 1000 / (x + 1e-9)})
		assert.InDelta(t, a[0], a[1], .01, "a at x=%g", x)
		assert.InDelta(t, b[0], b[1], .01, "b at x=%g", x)
	}
}

func TestFlatMag(t *testing.T) {
	s := flat(3631)
	want := sed.MagFromFlux(3631)
	assert.InDelta(t, want, s.CalcMag(sed.Tophat(400, 100)), 1e-9)
	assert.InDelta(t, want, s.CalcMag(sed.ImsimBandpass()), 1e-9)
	// no overlap with the spectrum
	assert.Zero(t, s.CalcFlux(sed.Tophat(2000, 100)))
}

func TestRedshift(t *testing.T) {
	s := flat(1)
	m0 := s.CalcMag(sed.Tophat(500, 50))
	s.RedshiftSED(.5, true)
	m1 := s.CalcMag(sed.Tophat(500, 50))
	assert.InDelta(t, -2.5*math.Log10(1.5), m1-m0, 1e-9)
}

func TestImsimFluxNorm(t *testing.T) {
	s := flat(1)
	s.MultiplyFluxNorm(sed.ImsimFluxNorm(s, 22.5))
	assert.InDelta(t, 22.5, s.CalcMag(sed.ImsimBandpass()), 1e-9)
}

func TestAddDust(t *testing.T) {
	s := flat(1)
	a, b := sed.SetupCCMab(s.Wavelen)
	c := s.Copy()
	require.NoError(t, c.AddDust(a, b, 0, 3.1))
	assert.Equal(t, s.Flambda, c.Flambda)

	bp := sed.Tophat(545, 10)
	require.NoError(t, c.AddDust(a, b, 1, 3.1))
	// A_V = 1 is about one magnitude at 550 nm
	assert.InDelta(t, 1, c.CalcMag(bp)-s.CalcMag(bp), .01)
	// bluer light is more extinguished
	u := sed.Tophat(350, 10)
	assert.Greater(t, c.CalcMag(u)-s.CalcMag(u), 1.)

	assert.Error(t, c.AddDust(a[1:], b, 1, 3.1))
}

func writeSED(t *testing.T, path string, s *sed.Spectrum) {
	var b strings.Builder
	b.WriteString("# wavelen flambda\n\n")
	for i, w := range s.Wavelen {
		fmt.Fprintf(&b, "%g %.10e\n", w, s.Flambda[i])
	}
	if !strings.HasSuffix(path, ".gz") {
		require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
		return
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	z := gzip.NewWriter(f)
	_, err = z.Write([]byte(b.String()))
	require.NoError(t, err)
	require.NoError(t, z.Close())
	require.NoError(t, f.Close())
}

func TestReadFlambda(t *testing.T) {
	dir := t.TempDir()
	writeSED(t, filepath.Join(dir, "a.spec"), flat(1))
	writeSED(t, filepath.Join(dir, "b.spec.gz"), flat(2))

	a, err := sed.ReadFlambda(filepath.Join(dir, "a.spec"))
	require.NoError(t, err)
	assert.Len(t, a.Wavelen, 1001)
	assert.InDelta(t, 1, a.Fnu()[500], 1e-9)

	// falls back to the compressed file
	b, err := sed.ReadFlambda(filepath.Join(dir, "b.spec"))
	require.NoError(t, err)
	assert.InDelta(t, 2, b.Fnu()[0], 1e-9)

	_, err = sed.ReadFlambda(filepath.Join(dir, "c.spec"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad"), []byte("1 x\n"), 0o644))
	_, err = sed.ReadFlambda(filepath.Join(dir, "bad"))
	assert.Error(t, err)
}

func TestLoadLSSTBandpasses(t *testing.T) {
	dir := t.TempDir()
	for i, b := range sed.LSSTBands {
		lo := 300 + 100*float64(i)
		for _, kind := range []string{"total", "hardware"} {
			txt := fmt.Sprintf("# %s\n%g 0\n%g 1\n%g 1\n%g 0\n", kind, lo, lo+1, lo+99, lo+100)
			require.NoError(t, os.WriteFile(filepath.Join(dir, kind+"_"+string(b)+".dat"), []byte(txt), 0o644))
		}
	}
	total, hw, err := sed.LoadLSSTBandpasses(dir)
	require.NoError(t, err)
	assert.Len(t, total, 6)
	assert.Len(t, hw, 6)
	assert.Equal(t, 700., total["z"].Wavelen[0])

	s := flat(3631)
	assert.InDelta(t, sed.MagFromFlux(3631), s.CalcMag(total["r"]), 1e-9)

	require.NoError(t, os.Remove(filepath.Join(dir, "hardware_y.dat")))
	_, _, err = sed.LoadLSSTBandpasses(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCache(t *testing.T) {
	dir := t.TempDir()
	writeSED(t, filepath.Join(dir, "flat.spec"), flat(1))
	c := sed.NewCache(dir)

	s, err := c.Get("flat.spec", 20, 0, 0, 3.1)
	require.NoError(t, err)
	assert.InDelta(t, 20, s.CalcMag(sed.ImsimBandpass()), 1e-9)

	s.MultiplyFluxNorm(0)
	s2, err := c.Get("flat.spec", 20, 0, 0, 3.1)
	require.NoError(t, err)
	assert.InDelta(t, 20, s2.CalcMag(sed.ImsimBandpass()), 1e-9)
	assert.Equal(t, 1, c.Len())

	// magNorm applies before dust
	d, err := c.Get("flat.spec", 20, 0, 1, 3.1)
	require.NoError(t, err)
	assert.Greater(t, d.CalcMag(sed.ImsimBandpass()), 20.5)
	assert.Equal(t, 2, c.Len())

	z, err := c.Get("flat.spec", 20, 1, 0, 3.1)
	require.NoError(t, err)
	assert.Equal(t, 400., z.Wavelen[0])
	assert.Equal(t, 2400., z.Wavelen[len(z.Wavelen)-1])

	_, err = c.Get("missing.spec", 20, 0, 0, 3.1)
	assert.Error(t, err)
}

func TestCacheBound(t *testing.T) {
	dir := t.TempDir()
	writeSED(t, filepath.Join(dir, "flat.spec"), flat(1))
	c := sed.NewCache(dir)
	for i := 0; i < 64; i++ {
		for j := 0; j < 64; j++ {
			_, err := c.Get("flat.spec", 20, 0, float64(i)*.01, 2+float64(j)*.01)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 4096, c.Len())
	// a full cache starts over
	_, err := c.Get("flat.spec", 20, 0, 1, 3.1)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}
