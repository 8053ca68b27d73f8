// Public domain.

// Package htm implements the Hierarchical Triangular Mesh used to index
// catalog rows on the sky.
//
// The sphere is split into eight root trixels, S0-S3 with ids 8-11 and
// N0-N3 with ids 12-15.  Each level splits every trixel into four children,
// child k of trixel id having id<<2|k, so a level-L id has 2L+4 bits.
package htm

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/soniakeys/coord"

	"github.com/soniakeys/dc2cat/internal/sky"
)

// MaxLevel is the deepest supported level.  Ids then still fit in int64.
const MaxLevel = 25

// Trixel is a spherical triangle with counterclockwise corners.
type Trixel struct {
	ID      int64
	Corners [3]coord.Cart
}

var (
	v0 = coord.Cart{Z: 1}
	v1 = coord.Cart{X: 1}
	v2 = coord.Cart{Y: 1}
	v3 = coord.Cart{X: -1}
	v4 = coord.Cart{Y: -1}
	v5 = coord.Cart{Z: -1}
)

// Roots returns the eight level-0 trixels.
func Roots() []Trixel {
	return []Trixel{
		{8, [3]coord.Cart{v1, v5, v2}},  // S0
		{9, [3]coord.Cart{v2, v5, v3}},  // S1
		{10, [3]coord.Cart{v3, v5, v4}}, // S2
		{11, [3]coord.Cart{v4, v5, v1}}, // S3
		{12, [3]coord.Cart{v1, v0, v4}}, // N0
		{13, [3]coord.Cart{v4, v0, v3}}, // N1
		{14, [3]coord.Cart{v3, v0, v2}}, // N2
		{15, [3]coord.Cart{v2, v0, v1}}, // N3
	}
}

// Children returns the four sub-trixels of t.
func (t Trixel) Children() [4]Trixel {
	c := t.Corners
	w0 := sky.Normalize(sky.Add(c[1], c[2]))
	w1 := sky.Normalize(sky.Add(c[0], c[2]))
	w2 := sky.Normalize(sky.Add(c[0], c[1]))
	id := t.ID << 2
	return [4]Trixel{
		{id, [3]coord.Cart{c[0], w2, w1}},
		{id | 1, [3]coord.Cart{c[1], w0, w2}},
		{id | 2, [3]coord.Cart{c[2], w1, w0}},
		{id | 3, [3]coord.Cart{w0, w1, w2}},
	}
}

// margin returns the smallest of the three edge tests for p.  p is inside
// t when the result is not negative.
func (t Trixel) margin(p coord.Cart) float64 {
	m := math.Inf(1)
	for i := 0; i < 3; i++ {
		var n coord.Cart
		n.Cross(&t.Corners[i], &t.Corners[(i+1)%3])
		if d := n.Dot(&p); d < m {
			m = d
		}
	}
	return m
}

// Contains reports whether p lies in t, edges included.
func (t Trixel) Contains(p coord.Cart) bool {
	return t.margin(p) >= -1e-15
}

// BoundingCircle returns the centre and angular radius of a circle that
// encloses t.
func (t Trixel) BoundingCircle() (centre coord.Cart, radius float64) {
	c := t.Corners
	centre = sky.Normalize(sky.Add(sky.Add(c[0], c[1]), c[2]))
	for _, v := range c {
		if r := sky.VecSep(centre, v); r > radius {
			radius = r
		}
	}
	return
}

// Level returns the level of trixel id, or -1 for an invalid id.
func Level(id int64) int {
	if id < 8 {
		return -1
	}
	n := bits.Len64(uint64(id))
	if n%2 != 0 {
		return -1
	}
	return (n - 4) / 2
}

func checkLevel(level int) error {
	if level < 0 || level > MaxLevel {
		return fmt.Errorf("htm: level %d out of range [0,%d]", level, MaxLevel)
	}
	return nil
}

// FindHtmid returns the id of the level trixel containing ra, dec,
// given in degrees.
func FindHtmid(ra, dec float64, level int) (int64, error) {
	if err := checkLevel(level); err != nil {
		return 0, err
	}
	return findVec(sky.Cartesian(sky.Deg2Rad(ra), sky.Deg2Rad(dec)), level), nil
}

// findVec descends from the roots.  On a shared edge the first trixel
// passing the test wins; when rounding leaves p outside every candidate
// the one it is least outside of is taken.
func findVec(p coord.Cart, level int) int64 {
	t := best(Roots(), p)
	for l := 0; l < level; l++ {
		ch := t.Children()
		t = best(ch[:], p)
	}
	return t.ID
}

func best(ts []Trixel, p coord.Cart) Trixel {
	bx := 0
	bm := math.Inf(-1)
	for i, t := range ts {
		m := t.margin(p)
		if m >= 0 {
			return t
		}
		if m > bm {
			bx, bm = i, m
		}
	}
	return ts[bx]
}

// TrixelByID returns the trixel with the given id.
func TrixelByID(id int64) (Trixel, error) {
	level := Level(id)
	if level < 0 {
		return Trixel{}, fmt.Errorf("htm: invalid id %d", id)
	}
	t := Roots()[id>>(2*level)-8]
	for l := level - 1; l >= 0; l-- {
		t = t.Children()[(id>>(2*l))&3]
	}
	return t, nil
}

// Range is an inclusive range of trixel ids.
type Range struct {
	Lo, Hi int64
}

// CoverDisc returns ranges of the level ids of all trixels that may
// intersect the disc of radius (radians) around ra, dec (degrees).
//
// Trixels are tested by bounding circle, so the cover can include a few
// trixels just outside the disc.  Ranges are sorted and merged.
func CoverDisc(ra, dec, radius float64, level int) ([]Range, error) {
	if err := checkLevel(level); err != nil {
		return nil, err
	}
	p := sky.Cartesian(sky.Deg2Rad(ra), sky.Deg2Rad(dec))
	var rs []Range
	var descend func(t Trixel, l int)
	descend = func(t Trixel, l int) {
		c, r := t.BoundingCircle()
		if sky.VecSep(c, p) > r+radius {
			return
		}
		if l == level {
			rs = appendID(rs, t.ID)
			return
		}
		for _, ch := range t.Children() {
			descend(ch, l+1)
		}
	}
	for _, t := range Roots() {
		descend(t, 0)
	}
	return rs, nil
}

// appendID relies on descend visiting ids in increasing order.
func appendID(rs []Range, id int64) []Range {
	if n := len(rs); n > 0 && rs[n-1].Hi+1 == id {
		rs[n-1].Hi = id
		return rs
	}
	return append(rs, Range{id, id})
}
