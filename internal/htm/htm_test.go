// Public domain.

package htm_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/dc2cat/internal/htm"
	"github.com/soniakeys/dc2cat/internal/sky"
)

func ExampleFindHtmid() {
	id, _ := htm.FindHtmid(45, 45, 0)
	fmt.Println(id)
	id, _ = htm.FindHtmid(45, 45, 6)
	fmt.Println(htm.Level(id))
	// Output:
	// 15
	// 6
}

func TestRoots(t *testing.T) {
	for _, c := range []struct {
		ra, dec float64
		id      int64
	}{
		{45, 45, 15},
		{135, 45, 14},
		{225, 45, 13},
		{315, 45, 12},
		{45, -45, 8},
		{135, -45, 9},
		{225, -45, 10},
		{315, -45, 11},
	} {
		id, err := htm.FindHtmid(c.ra, c.dec, 0)
		require.NoError(t, err)
		assert.Equal(t, c.id, id, "ra %g dec %g", c.ra, c.dec)
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, 0, htm.Level(8))
	assert.Equal(t, 0, htm.Level(15))
	assert.Equal(t, 1, htm.Level(32))
	assert.Equal(t, -1, htm.Level(16))
	assert.Equal(t, -1, htm.Level(3))
	_, err := htm.FindHtmid(0, 0, htm.MaxLevel+1)
	assert.Error(t, err)
}

func TestFindContains(t *testing.T) {
	rnd := sky.NewRand(7)
	for i := 0; i < 500; i++ {
		ra := 360 * rnd.Float64()
		dec := sky.Rad2Deg(math.Asin(2*rnd.Float64() - 1))
		id, err := htm.FindHtmid(ra, dec, 10)
		require.NoError(t, err)
		require.Equal(t, 10, htm.Level(id))
		tx, err := htm.TrixelByID(id)
		require.NoError(t, err)
		p := sky.Cartesian(sky.Deg2Rad(ra), sky.Deg2Rad(dec))
		assert.True(t, tx.Contains(p), "trixel %d does not contain %g %g", id, ra, dec)
		// parent of a level 10 id is the level 9 id
		id9, _ := htm.FindHtmid(ra, dec, 9)
		assert.Equal(t, id9, id>>2)
	}
}

func TestCoverDisc(t *testing.T) {
	ra, dec := 53.0, -28.0
	radius := sky.Deg2Rad(.5)
	rs, err := htm.CoverDisc(ra, dec, radius, 6)
	require.NoError(t, err)
	require.NotEmpty(t, rs)
	for i := 1; i < len(rs); i++ {
		assert.Greater(t, rs[i].Lo, rs[i-1].Hi+1, "ranges not merged")
	}
	covered := func(id int64) bool {
		for _, r := range rs {
			if id >= r.Lo && id <= r.Hi {
				return true
			}
		}
		return false
	}
	rnd := sky.NewRand(11)
	r0, d0 := sky.Deg2Rad(ra), sky.Deg2Rad(dec)
	for i := 0; i < 1000; i++ {
		r := radius * math.Sqrt(rnd.Float64())
		pa := 2 * math.Pi * rnd.Float64()
		pd := d0 + r*math.Sin(pa)
		pr := r0 + r*math.Cos(pa)/math.Cos(pd)
		if sky.Separation(pr, pd, r0, d0) >= radius {
			continue
		}
		id, err := htm.FindHtmid(sky.Rad2Deg(pr), sky.Rad2Deg(pd), 6)
		require.NoError(t, err)
		require.True(t, covered(id), "id %d not covered", id)
	}
}
