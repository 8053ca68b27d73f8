// Public domain.

// Package refcat writes astrometric and photometric reference catalogs
// with smeared positions and magnitudes.
package refcat

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/soniakeys/coord"
	"go.uber.org/zap"
	xrand "golang.org/x/exp/rand"

	"github.com/soniakeys/dc2cat/internal/catsim"
	"github.com/soniakeys/dc2cat/internal/gcr"
	"github.com/soniakeys/dc2cat/internal/sky"
)

// Defaults of the DC2 reference catalog.
const (
	DefaultRA        = 55.064
	DefaultDec       = -29.783
	DefaultFOV       = 2.5
	FileName         = "dc2_reference_catalog.txt"
	DefaultChunkSize = 10000
)

// Uncertainties assigned to every star.
const (
	PhotSigma  = 0.01 // mag
	AstroSigma = 0.01 // degrees
	// astrometric RNG seed offset from the object type id
	astroSeedOffset = 288
)

const bands = "ugrizy"

// Columns returns the output column names in order.
func Columns() []string {
	c := []string{"uniqueId", "raJ2000", "decJ2000", "sigma_raJ2000", "sigma_decJ2000",
		"raJ2000_smeared", "decJ2000_smeared"}
	for _, b := range bands {
		c = append(c, fmt.Sprintf("lsst_%c", b), fmt.Sprintf("sigma_lsst_%c", b))
	}
	for _, b := range bands {
		c = append(c, fmt.Sprintf("lsst_%c_smeared", b))
	}
	return append(c, "isresolved", "isvariable",
		"properMotionRa", "properMotionDec", "parallax", "radialVelocity")
}

// query lists the generator columns read from the star catalog.
func query(idCol string) []string {
	q := []string{idCol, "raJ2000", "decJ2000"}
	for _, b := range bands {
		q = append(q, fmt.Sprintf("lsst_%c", b))
	}
	return append(q, "isresolved", "isvariable",
		"properMotionRa", "properMotionDec", "parallax", "radialVelocity")
}

// UniqueID returns the generator unique id of catalog id for an object
// type.
func UniqueID(id int64, objectTypeID int) int64 {
	return id<<10 + int64(objectTypeID)
}

// Writer writes a reference catalog of one star object.
type Writer struct {
	Object    *catsim.Object
	ChunkSize int
	Log       *zap.Logger

	phot, astro *xrand.Rand
}

// NewWriter returns a writer of stars o.  The smearing generators are
// seeded from the object type id, so output is repeatable.
func NewWriter(o *catsim.Object) *Writer {
	t := uint64(o.ObjectTypeID)
	return &Writer{
		Object:    o,
		ChunkSize: DefaultChunkSize,
		phot:      sky.NewRand(t),
		astro:     sky.NewRand(t + astroSeedOffset),
	}
}

// Write writes the header and the stars inside obs to w, returning the
// number of stars written.
func (rw *Writer) Write(w io.Writer, obs *catsim.ObservationMetaData) (n int, err error) {
	log := rw.Log
	if log == nil {
		log = zap.NewNop()
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s\n", strings.Join(Columns(), ", "))
	it := rw.Object.QueryColumns(query(rw.Object.IDColKey), rw.ChunkSize, obs)
	for {
		t, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		c, err := rw.chunk(t)
		if err != nil {
			return n, err
		}
		if err := c.write(bw); err != nil {
			return n, err
		}
		n += len(c.id)
		log.Debug("chunk", zap.Int("stars", len(c.id)), zap.Int("total", n))
	}
	return n, bw.Flush()
}

type chunk struct {
	id                    []int64
	ra, dec               []float64 // radians
	raSmeared, decSmeared []float64
	mag, magSmeared       [6][]float64
	resolved, variable    []int64
	pmRA, pmDec, plx, rv  []float64
}

func ints(c gcr.Column, name string) ([]int64, error) {
	switch c := c.(type) {
	case gcr.Int64s:
		return c, nil
	case gcr.Float64s:
		v := make([]int64, len(c))
		for i, x := range c {
			v[i] = int64(x)
		}
		return v, nil
	}
	return nil, fmt.Errorf("refcat: column %s not numeric", name)
}

func floats(c gcr.Column, name string) ([]float64, error) {
	v, err := gcr.AsFloat64s(c)
	if err != nil {
		return nil, fmt.Errorf("refcat: column %s: %w", name, err)
	}
	return v, nil
}

// chunk converts a generator chunk and smears it.
func (rw *Writer) chunk(t gcr.Table) (*chunk, error) {
	c := &chunk{}
	ids, err := ints(t[rw.Object.IDColKey], rw.Object.IDColKey)
	if err != nil {
		return nil, err
	}
	c.id = make([]int64, len(ids))
	for i, id := range ids {
		c.id[i] = UniqueID(id, rw.Object.ObjectTypeID)
	}
	fl := []struct {
		name string
		p    *[]float64
	}{
		{"raJ2000", &c.ra}, {"decJ2000", &c.dec},
		{"properMotionRa", &c.pmRA}, {"properMotionDec", &c.pmDec},
		{"parallax", &c.plx}, {"radialVelocity", &c.rv},
	}
	for _, f := range fl {
		if *f.p, err = floats(t[f.name], f.name); err != nil {
			return nil, err
		}
	}
	for b := range bands {
		name := fmt.Sprintf("lsst_%c", bands[b])
		if c.mag[b], err = floats(t[name], name); err != nil {
			return nil, err
		}
	}
	if c.resolved, err = ints(t["isresolved"], "isresolved"); err != nil {
		return nil, err
	}
	if c.variable, err = ints(t["isvariable"], "isvariable"); err != nil {
		return nil, err
	}
	rw.smearPhotometry(c)
	rw.smearAstrometry(c)
	return c, nil
}

// smearPhotometry draws normal deviates band by band.
func (rw *Writer) smearPhotometry(c *chunk) {
	for b := range c.mag {
		c.magSmeared[b] = make([]float64, len(c.mag[b]))
		for i, m := range c.mag[b] {
			c.magSmeared[b][i] = m + rw.phot.NormFloat64()*PhotSigma
		}
	}
}

// smearAstrometry draws the offset angles of the chunk, then a random
// direction per star.
func (rw *Writer) smearAstrometry(c *chunk) {
	n := len(c.ra)
	sigma := sky.Deg2Rad(AstroSigma)
	delta := make([]float64, n)
	for i := range delta {
		delta[i] = rw.astro.NormFloat64() * sigma
	}
	c.raSmeared = make([]float64, n)
	c.decSmeared = make([]float64, n)
	for i := range delta {
		rv := coord.Cart{X: rw.astro.NormFloat64(), Y: rw.astro.NormFloat64(), Z: rw.astro.NormFloat64()}
		v := sky.Smear(sky.Cartesian(c.ra[i], c.dec[i]), delta[i], rv)
		c.raSmeared[i], c.decSmeared[i] = sky.Spherical(v)
	}
}

func f8(b []byte, x float64) []byte   { return strconv.AppendFloat(b, x, 'f', 8, 64) }
func g8(b []byte, x float64) []byte   { return strconv.AppendFloat(b, x, 'g', 8, 64) }
func sep(b []byte) []byte             { return append(b, ", "...) }
func deg8(b []byte, x float64) []byte { return f8(b, sky.Rad2Deg(x)) }

// write writes rows: angles in degrees, proper motion and parallax in
// arcsec.
func (c *chunk) write(w *bufio.Writer) error {
	var b []byte
	for i := range c.id {
		b = strconv.AppendInt(b[:0], c.id[i], 10)
		b = deg8(sep(b), c.ra[i])
		b = deg8(sep(b), c.dec[i])
		b = f8(sep(b), AstroSigma)
		b = f8(sep(b), AstroSigma)
		b = deg8(sep(b), c.raSmeared[i])
		b = deg8(sep(b), c.decSmeared[i])
		for k := range c.mag {
			b = f8(sep(b), c.mag[k][i])
			b = f8(sep(b), PhotSigma)
		}
		for k := range c.magSmeared {
			b = f8(sep(b), c.magSmeared[k][i])
		}
		b = strconv.AppendInt(sep(b), c.resolved[i], 10)
		b = strconv.AppendInt(sep(b), c.variable[i], 10)
		b = g8(sep(b), sky.Rad2Arcsec(c.pmRA[i]))
		b = g8(sep(b), sky.Rad2Arcsec(c.pmDec[i]))
		b = g8(sep(b), sky.Rad2Arcsec(c.plx[i]))
		b = f8(sep(b), c.rv[i])
		b = append(b, '\n')
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}
