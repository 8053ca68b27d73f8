// Public domain.

package catsim

import (
	"errors"
	"fmt"
	"io"

	"github.com/soniakeys/dc2cat/internal/gcr"
	"github.com/soniakeys/dc2cat/internal/healpix"
	"github.com/soniakeys/dc2cat/internal/sky"
)

// QueryNside is the healpix resolution of native catalog chunks.
const QueryNside = 8

// ChunkIterator returns query results a chunk at a time.
//
// The first call to Next selects and loads every row of the query;
// further calls slice off chunks.  When the rows are exhausted Next
// returns io.EOF and forgets the loaded rows, so the following call
// starts over.
type ChunkIterator struct {
	colnames  []string
	chunkSize int
	columnMap map[string]string
	has       func(quantity string) bool
	defaults  map[string]Default
	finalPass func(gcr.Table) (gcr.Table, error)
	// load returns the named quantities of the selected rows.
	load func(qnames []string) (gcr.Table, error)

	size    int
	indices []int
	loaded  gcr.Table
}

var errState = errors.New("catsim: chunk iterator has loaded quantities but no indices")

// Next returns the next chunk keyed by generator column name, or io.EOF.
func (it *ChunkIterator) Next() (gcr.Table, error) {
	if it.indices == nil {
		if it.loaded != nil {
			return nil, errState
		}
		if err := it.init(); err != nil {
			return nil, err
		}
	}
	this := it.indices
	if it.size < len(this) {
		this = this[:it.size]
	}
	if len(this) == 0 {
		it.indices = nil
		it.loaded = nil
		return nil, io.EOF
	}
	it.indices = it.indices[len(this):]

	chunk := make(gcr.Table, len(it.colnames))
	for _, name := range it.colnames {
		q := it.columnMap[name]
		if it.has(q) {
			chunk[name] = it.loaded[q].Take(this)
			continue
		}
		d, ok := it.defaults[name]
		if !ok {
			return nil, fmt.Errorf("catsim: column %s: %w and no default value",
				name, gcr.ErrNoQuantity)
		}
		chunk[name] = d.column(len(this))
	}
	if it.finalPass != nil {
		return it.finalPass(chunk)
	}
	return chunk, nil
}

func (it *ChunkIterator) init() error {
	var qnames []string
	seen := map[string]bool{}
	for _, name := range it.colnames {
		q, ok := it.columnMap[name]
		if !ok {
			return fmt.Errorf("catsim: unknown column %s", name)
		}
		if it.has(q) && !seen[q] {
			seen[q] = true
			qnames = append(qnames, q)
		}
	}
	t, err := it.load(qnames)
	if err != nil {
		return err
	}
	it.loaded = t
	n := t.Len()
	it.indices = make([]int, n)
	for i := range it.indices {
		it.indices[i] = i
	}
	it.size = it.chunkSize
	if it.size <= 0 {
		it.size = n
	}
	return nil
}

// load reads qnames for the catalog rows inside obs.
//
// With a bound, the rows are those closer than the bound radius to the
// pointing.  Catalogs chunked by healpixel read only the pixels the disc
// may touch.
func (o *Object) load(obs *ObservationMetaData, qnames []string) (gcr.Table, error) {
	radius, bounded := obs.Radius()
	var native gcr.Query
	if bounded && o.hasNativeFilter(gcr.HealpixFilter) {
		v := sky.Cartesian(obs.PointingRA, obs.PointingDec)
		pix, err := healpix.QueryDisc(QueryNside, v, radius, true)
		if err != nil {
			return nil, err
		}
		if len(pix) > 0 {
			qs := make([]gcr.Query, len(pix))
			for i, p := range pix {
				qs[i] = gcr.Eq(gcr.HealpixFilter, float64(p))
			}
			native = gcr.Or(qs...)
		}
	}
	if len(qnames) == 0 {
		// still need the row count
		qnames = []string{"raJ2000"}
	}
	t, err := o.Catalog.GetQuantities(qnames, gcr.Query{}, native)
	if err != nil || !bounded {
		return t, err
	}
	pos, err := o.Catalog.GetQuantities([]string{"raJ2000", "decJ2000"}, gcr.Query{}, native)
	if err != nil {
		return nil, err
	}
	ra, err := gcr.AsFloat64s(pos["raJ2000"])
	if err != nil {
		return nil, err
	}
	dec, err := gcr.AsFloat64s(pos["decJ2000"])
	if err != nil {
		return nil, err
	}
	var idx []int
	for i := range ra {
		if sky.Separation(ra[i], dec[i], obs.PointingRA, obs.PointingDec) < radius {
			idx = append(idx, i)
		}
	}
	return t.Take(idx), nil
}

func (o *Object) hasNativeFilter(name string) bool {
	for _, q := range o.Catalog.NativeFilterQuantities() {
		if q == name {
			return true
		}
	}
	return false
}
