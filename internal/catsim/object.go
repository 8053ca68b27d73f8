// Public domain.

// Package catsim adapts gcr catalogs to the column and query model of the
// instance catalog generator.
//
// An Object maps generator column names onto catalog quantities, adds
// default values for columns the catalog lacks, and resolves component
// columns such as majorAxis to their bulge, disk or knots quantities by a
// postfix.  QueryColumns returns a ChunkIterator over the rows in a
// pointing.
package catsim

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/soniakeys/dc2cat/internal/gcr"
)

// Default is the value of a column the catalog does not have.
type Default struct {
	Value interface{}
	Kind  gcr.Kind
}

// column returns n copies of d.
func (d Default) column(n int) gcr.Column {
	switch d.Kind {
	case gcr.Int:
		c := make(gcr.Int64s, n)
		v := toInt(d.Value)
		for i := range c {
			c[i] = v
		}
		return c
	case gcr.String:
		c := make(gcr.Strings, n)
		s, _ := d.Value.(string)
		for i := range c {
			c[i] = s
		}
		return c
	}
	c := make(gcr.Float64s, n)
	v := toFloat(d.Value)
	for i := range c {
		c[i] = v
	}
	return c
}

func toInt(v interface{}) int64 {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func toFloat(v interface{}) float64 {
	switch v := v.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	}
	return math.NaN()
}

// DefaultValues returns the defaults of galaxy objects.
func DefaultValues() map[string]Default {
	return map[string]Default{
		"is_sprinkled":    {0, gcr.Int},
		"internalRv_dc2":  {math.NaN(), gcr.Float},
		"internalAv_dc2":  {math.NaN(), gcr.Float},
		"sedFilename_dc2": {"", gcr.String},
		"magNorm_dc2":     {math.NaN(), gcr.Float},
		"varParamStr":     {"", gcr.String},
	}
}

// Variant distinguishes the kinds of Object over one catalog.
type Variant struct {
	Name         string
	ObjectTypeID int
	IDColKey     string
	// Postfix selects the component of ColumnsNeedPostfix.
	Postfix            string
	ColumnsNeedPostfix []string
	// CacheSuffix keys the catalog cache together with the catalog name,
	// so variants with different transforms load separate instances.
	CacheSuffix string
	// Transform adds the quantities the generator expects and returns
	// any further columns needing the postfix.
	Transform func(gcr.Catalog) ([]string, error)
	// FinalPass, if not nil, is applied to every chunk.
	FinalPass func(gcr.Table) (gcr.Table, error)
	Defaults  map[string]Default
}

// Epoch of catalog coordinates.
const Epoch = 2000.0

var galaxyPostfixColumns = []string{"majorAxis", "minorAxis", "sindex"}

func galaxy(name string, typeID int, postfix string) Variant {
	return Variant{
		Name:               name,
		ObjectTypeID:       typeID,
		IDColKey:           "galaxy_id",
		Postfix:            postfix,
		ColumnsNeedPostfix: galaxyPostfixColumns,
		CacheSuffix:        "_standard",
		Transform:          TransformStandard,
		Defaults:           DefaultValues(),
	}
}

// Galaxy component variants.
var (
	Bulge = galaxy("bulge", 77, "::bulge")
	Disk  = galaxy("disk", 87, "::disk")
	Knots = galaxy("knots", 95, "::knots")
)

// ProtoDC2Bulge returns the bulge variant of a protoDC2 catalog rotated
// from (0, 0) to the field centre fieldRA, fieldDec in degrees.
func ProtoDC2Bulge(fieldRA, fieldDec float64) Variant {
	v := galaxy("bulge_protoDC2", 97, "::bulge")
	v.CacheSuffix = "_rotated"
	v.Transform = newFieldRotator(fieldRA, fieldDec).transform
	return v
}

// ProtoDC2Disk is ProtoDC2Bulge for disks.
func ProtoDC2Disk(fieldRA, fieldDec float64) Variant {
	v := galaxy("disk_protoDC2", 107, "::disk")
	v.CacheSuffix = "_rotated"
	v.Transform = newFieldRotator(fieldRA, fieldDec).transform
	return v
}

// Star is the variant of star catalogs, used for reference catalogs.
var Star = Variant{
	Name:         "star",
	ObjectTypeID: 4,
	IDColKey:     "id",
	CacheSuffix:  "_stars",
	Transform:    TransformStar,
	Defaults: map[string]Default{
		"isresolved":     {0, gcr.Int},
		"isvariable":     {0, gcr.Int},
		"radialVelocity": {0., gcr.Float},
	},
}

type cacheEntry struct {
	cat        gcr.Catalog
	addPostfix []string
}

// LoadFunc loads a catalog by name with a config overwrite.
type LoadFunc func(name string, overwrite map[string]interface{}) (gcr.Catalog, error)

// Cache memoizes transformed catalogs by catalog name and variant cache
// suffix, so bulge and disk objects of one catalog share one instance.
// Entries live as long as the cache.
type Cache struct {
	load    LoadFunc
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewCache returns a cache loading catalogs from reg.
func NewCache(reg *gcr.Registry) *Cache {
	return NewCacheFunc(func(name string, ow map[string]interface{}) (gcr.Catalog, error) {
		return reg.LoadCatalog(name, ow)
	})
}

// NewCacheFunc returns a cache loading catalogs with load.
func NewCacheFunc(load LoadFunc) *Cache {
	return &Cache{load: load, entries: map[string]*cacheEntry{}}
}

func (c *Cache) get(name string, v Variant, overwrite map[string]interface{}) (*cacheEntry, error) {
	key := name + v.CacheSuffix
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e, nil
	}
	cat, err := c.load(name, overwrite)
	if err != nil {
		return nil, err
	}
	e := &cacheEntry{cat: cat}
	if v.Transform != nil {
		if e.addPostfix, err = v.Transform(cat); err != nil {
			return nil, fmt.Errorf("transform %s: %w", key, err)
		}
	}
	c.entries[key] = e
	return e, nil
}

// Len returns the number of cached catalogs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ColumnPair maps a generator column to a catalog quantity.
type ColumnPair struct {
	Name, Quantity string
}

// Object is a generator view of a catalog.
type Object struct {
	Variant
	Catalog   gcr.Catalog
	CatalogID string
	// ColumnMap maps generator column names to catalog quantities.
	ColumnMap map[string]string
	Columns   []ColumnPair
	// PostfixColumns are the columns resolved through Postfix.
	PostfixColumns []string
}

var errPostfix = errors.New("must specify a postfix when columns need one")

// New returns an Object over catalog name.
func New(cache *Cache, name string, v Variant, overwrite map[string]interface{}) (*Object, error) {
	if v.ObjectTypeID == 0 {
		return nil, fmt.Errorf("%s: variant %s has no object type id", name, v.Name)
	}
	if v.IDColKey == "" {
		return nil, fmt.Errorf("%s: variant %s has no id column", name, v.Name)
	}
	e, err := cache.get(name, v, overwrite)
	if err != nil {
		return nil, err
	}
	o := &Object{
		Variant:   v,
		Catalog:   e.cat,
		CatalogID: name + v.CacheSuffix,
		ColumnMap: map[string]string{},
	}
	o.PostfixColumns = append(append([]string{}, v.ColumnsNeedPostfix...), e.addPostfix...)
	for _, q := range e.cat.ListAllQuantities(true) {
		o.ColumnMap[q] = q
		o.Columns = append(o.Columns, ColumnPair{q, q})
	}
	if len(o.PostfixColumns) > 0 {
		if v.Postfix == "" {
			return nil, fmt.Errorf("%s: %w", o.CatalogID, errPostfix)
		}
		for _, c := range o.PostfixColumns {
			o.ColumnMap[c] = c + v.Postfix
			o.Columns = append(o.Columns, ColumnPair{c, c + v.Postfix})
		}
	}
	for c := range v.Defaults {
		o.ColumnMap[c] = c
	}
	return o, nil
}

// ColumnNames returns the sorted generator column names.
func (o *Object) ColumnNames() []string {
	names := make([]string, 0, len(o.ColumnMap))
	for n := range o.ColumnMap {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// QueryColumns returns an iterator over colnames of the rows inside obs.
// A nil colnames selects every mapped column; a chunkSize of 0 returns
// all rows in one chunk; a nil obs selects the whole catalog.
func (o *Object) QueryColumns(colnames []string, chunkSize int, obs *ObservationMetaData) *ChunkIterator {
	if colnames == nil {
		colnames = o.ColumnNames()
	}
	return &ChunkIterator{
		colnames:  colnames,
		chunkSize: chunkSize,
		columnMap: o.ColumnMap,
		has:       o.Catalog.HasQuantity,
		defaults:  o.Defaults,
		finalPass: o.FinalPass,
		load: func(qnames []string) (gcr.Table, error) {
			return o.load(obs, qnames)
		},
	}
}
