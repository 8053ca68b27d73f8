// Public domain.

package sedfit

import "gonum.org/v1/gonum/spatial/kdtree"

// shape is a magnitude vector with its mean removed, so Euclidean
// distance is the χ² of a fit with a free normalization.
type shape struct {
	m     []float64
	entry int
}

func newShape(mags []float64, entry int) shape {
	mean := 0.
	for _, m := range mags {
		mean += m
	}
	mean /= float64(len(mags))
	s := shape{m: make([]float64, len(mags)), entry: entry}
	for i, m := range mags {
		s.m[i] = m - mean
	}
	return s
}

func (s shape) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return s.m[d] - c.(shape).m[d]
}

func (s shape) Dims() int { return len(s.m) }

func (s shape) Distance(c kdtree.Comparable) float64 {
	o := c.(shape)
	var sum float64
	for i, x := range s.m {
		d := x - o.m[i]
		sum += d * d
	}
	return sum
}

type shapes []shape

func (p shapes) Index(i int) kdtree.Comparable         { return p[i] }
func (p shapes) Len() int                              { return len(p) }
func (p shapes) Slice(start, end int) kdtree.Interface { return p[start:end] }
func (p shapes) Pivot(d kdtree.Dim) int                { return plane{p, d}.Pivot() }

// plane sorts shapes along one dimension.
type plane struct {
	shapes
	kdtree.Dim
}

func (p plane) Less(i, j int) bool { return p.shapes[i].m[p.Dim] < p.shapes[j].m[p.Dim] }
func (p plane) Swap(i, j int)      { p.shapes[i], p.shapes[j] = p.shapes[j], p.shapes[i] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{p.shapes[start:end], p.Dim}
}

// newTree indexes the grid entries by shape.
func newTree(g *Grid) *kdtree.Tree {
	p := make(shapes, len(g.Entries))
	for i, e := range g.Entries {
		p[i] = newShape(e.Mags, i)
	}
	return kdtree.New(p, false)
}

// nearest returns the index of the grid entry closest in shape to mags.
func nearest(t *kdtree.Tree, mags []float64) int {
	c, _ := t.Nearest(newShape(mags, -1))
	return c.(shape).entry
}
