// Public domain.

package healpix_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/dc2cat/internal/healpix"
	"github.com/soniakeys/dc2cat/internal/sky"
)

func ExampleNpix() {
	fmt.Println(healpix.Npix(8), healpix.Npix(32))
	// Output:
	// 768 12288
}

func TestPixelCentresRoundTrip(t *testing.T) {
	for _, nside := range []int{1, 2, 4, 8, 32} {
		for p := 0; p < healpix.Npix(nside); p++ {
			theta, phi := healpix.Pix2Ang(nside, p)
			if got := healpix.Ang2Pix(nside, theta, phi); got != p {
				t.Fatalf("nside %d: pixel %d centre maps to %d", nside, p, got)
			}
		}
	}
}

func TestPix2VecUnit(t *testing.T) {
	for p := 0; p < healpix.Npix(4); p++ {
		v := healpix.Pix2Vec(4, p)
		assert.InDelta(t, 1, math.Sqrt(v.Square()), 1e-12)
		assert.Equal(t, p, healpix.Vec2Pix(4, v))
	}
}

func TestRingOrder(t *testing.T) {
	// RING pixels are numbered north to south.
	z0, _ := healpix.Pix2ZPhi(8, 0)
	zn, _ := healpix.Pix2ZPhi(8, healpix.Npix(8)-1)
	assert.Greater(t, z0, .9)
	assert.Less(t, zn, -.9)
}

func TestQueryDiscInclusive(t *testing.T) {
	rnd := sky.NewRand(1)
	ra, dec := sky.Deg2Rad(55.064), sky.Deg2Rad(-29.783)
	centre := sky.Cartesian(ra, dec)
	radius := sky.Deg2Rad(2.1)
	for _, nside := range []int{8, 32} {
		incl, err := healpix.QueryDisc(nside, centre, radius, true)
		require.NoError(t, err)
		excl, err := healpix.QueryDisc(nside, centre, radius, false)
		require.NoError(t, err)
		in := map[int]bool{}
		for _, p := range incl {
			in[p] = true
		}
		for _, p := range excl {
			assert.True(t, in[p], "pixel %d missing from inclusive query", p)
		}
		// random points inside the disc all land in returned pixels.
		for i := 0; i < 2000; i++ {
			r := radius * math.Sqrt(rnd.Float64())
			pa := 2 * math.Pi * rnd.Float64()
			pdec := dec + r*math.Sin(pa)
			pra := ra + r*math.Cos(pa)/math.Cos(pdec)
			if sky.Separation(pra, pdec, ra, dec) >= radius {
				continue
			}
			p := healpix.Vec2Pix(nside, sky.Cartesian(pra, pdec))
			if !in[p] {
				t.Fatalf("nside %d: point in disc falls in pixel %d not returned", nside, p)
			}
		}
	}
}

func TestQueryDiscWholeSky(t *testing.T) {
	pix, err := healpix.QueryDisc(2, sky.Cartesian(0, 0), 4, false)
	require.NoError(t, err)
	assert.Len(t, pix, healpix.Npix(2))
}

func TestQueryDiscBadNside(t *testing.T) {
	_, err := healpix.QueryDisc(3, sky.Cartesian(0, 0), .1, true)
	assert.ErrorIs(t, err, healpix.ErrNside)
}
