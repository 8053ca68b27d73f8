// Public domain.

// Package instcat reads and trims PhoSim instance catalogs.
//
// An instance catalog is a text file of header commands, object lines,
// and includeobj lines naming further files of object lines, usually
// gzipped, relative to the catalog's directory.
package instcat

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrFormat is returned for malformed catalog lines.
var ErrFormat = errors.New("instcat: bad line")

// Bands indexed by the filter command value.
const Bands = "ugrizy"

// Header holds the command lines of a catalog.
type Header struct {
	Commands []string
	values   map[string]string
}

// Value returns the argument of command key.
func (h *Header) Value(key string) (string, bool) {
	v, ok := h.values[key]
	return v, ok
}

// Float returns the numeric argument of command key.
func (h *Header) Float(key string) (float64, error) {
	v, ok := h.values[key]
	if !ok {
		return 0, fmt.Errorf("instcat: no %s command", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("instcat: %s %q: %w", key, v, err)
	}
	return f, nil
}

// Filter returns the band name of the filter command.
func (h *Header) Filter() (string, error) {
	f, err := h.Float("filter")
	if err != nil {
		return "", err
	}
	i := int(f)
	if float64(i) != f || i < 0 || i >= len(Bands) {
		return "", fmt.Errorf("instcat: filter %g out of range", f)
	}
	return Bands[i : i+1], nil
}

// Dust is an extinction model of an object.
type Dust struct {
	Model  string // "none" or "CCM"
	Av, Rv float64
}

// None reports whether d applies no extinction.
func (d Dust) None() bool { return d.Model == "none" }

// Object is one object line.
type Object struct {
	UniqueID   int64
	RA, Dec    float64 // degrees
	MagNorm    float64
	SED        string
	Redshift   float64
	Gamma1     float64
	Gamma2     float64
	Kappa      float64
	DRA, DDec  float64
	SourceType string
	// Params of the source type: none for point, sigma for gauss, major,
	// minor, position angle and index for sersic2d and knots.
	Params   []float64
	RestDust Dust
	ObsDust  Dust
	Line     string
}

// Number of parameters by source type.
var sourceParams = map[string]int{
	"point":    0,
	"gauss":    1,
	"sersic2d": 4,
	"knots":    4,
}

// GalaxyID returns the galaxy id of a uniqueId.
func GalaxyID(uniqueID int64) int64 { return uniqueID >> 10 }

// TypeID returns the object type id of a uniqueId.
func TypeID(uniqueID int64) int { return int(uniqueID & 1023) }

// GalaxyID returns the galaxy id of o.
func (o *Object) GalaxyID() int64 { return GalaxyID(o.UniqueID) }

// ParseObject parses an object line.
func ParseObject(line string) (*Object, error) {
	f := strings.Fields(line)
	bad := func(why string) error {
		return fmt.Errorf("%w: %s: %q", ErrFormat, why, line)
	}
	if len(f) < 13 || f[0] != "object" {
		return nil, bad("not an object line")
	}
	o := &Object{Line: line, SED: f[5], SourceType: f[12]}
	var err error
	if o.UniqueID, err = strconv.ParseInt(f[1], 10, 64); err != nil {
		// ids written in float notation
		v, ferr := strconv.ParseFloat(f[1], 64)
		if ferr != nil {
			return nil, bad("id")
		}
		o.UniqueID = int64(v)
	}
	nums := []*float64{&o.RA, &o.Dec, &o.MagNorm}
	for i, p := range nums {
		if *p, err = strconv.ParseFloat(f[2+i], 64); err != nil {
			return nil, bad("position or magNorm")
		}
	}
	nums = []*float64{&o.Redshift, &o.Gamma1, &o.Gamma2, &o.Kappa, &o.DRA, &o.DDec}
	for i, p := range nums {
		if *p, err = strconv.ParseFloat(f[6+i], 64); err != nil {
			return nil, bad("redshift, lensing or offset")
		}
	}
	np, ok := sourceParams[o.SourceType]
	if !ok {
		return nil, bad("source type " + o.SourceType)
	}
	rest := f[13:]
	if len(rest) < np {
		return nil, bad("source parameters")
	}
	o.Params = make([]float64, np)
	for i := range o.Params {
		if o.Params[i], err = strconv.ParseFloat(rest[i], 64); err != nil {
			return nil, bad("source parameters")
		}
	}
	rest = rest[np:]
	if o.RestDust, rest, err = parseDust(rest); err != nil {
		return nil, bad("rest frame dust")
	}
	if o.ObsDust, rest, err = parseDust(rest); err != nil {
		return nil, bad("observed dust")
	}
	if len(rest) > 0 {
		return nil, bad("trailing fields")
	}
	return o, nil
}

func parseDust(f []string) (Dust, []string, error) {
	if len(f) == 0 {
		return Dust{}, nil, errors.New("missing")
	}
	switch f[0] {
	case "none":
		return Dust{Model: "none", Av: 0, Rv: math.NaN()}, f[1:], nil
	case "CCM":
		if len(f) < 3 {
			return Dust{}, nil, errors.New("short")
		}
		av, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return Dust{}, nil, err
		}
		rv, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return Dust{}, nil, err
		}
		return Dust{"CCM", av, rv}, f[3:], nil
	}
	return Dust{}, nil, fmt.Errorf("model %s", f[0])
}

// open opens path for reading, decompressing .gz files.
func open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	z, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return struct {
		io.Reader
		io.Closer
	}{z, f}, nil
}

func scanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	return s
}

// ReadObjects calls fn with each object line of a file of object lines.
// Blank lines are skipped.
func ReadObjects(path string, fn func(*Object) error) error {
	r, err := open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	s := scanner(r)
	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		o, err := ParseObject(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, n, err)
		}
		if err := fn(o); err != nil {
			return err
		}
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Catalog is an instance catalog file.
type Catalog struct {
	Path   string
	Header Header
	// Includes are the includeobj paths, resolved against the catalog
	// directory.
	Includes []string
	// Objects counts the object lines of the catalog file itself.
	Objects int
}

// Open reads the header and include commands of the catalog at path.
func Open(path string) (*Catalog, error) {
	r, err := open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	c := &Catalog{Path: path, Header: Header{values: map[string]string{}}}
	dir := filepath.Dir(path)
	s := scanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch key {
		case "object":
			c.Objects++
		case "includeobj":
			if !filepath.IsAbs(arg) {
				arg = filepath.Join(dir, arg)
			}
			c.Includes = append(c.Includes, arg)
		default:
			c.Header.Commands = append(c.Header.Commands, line)
			c.Header.values[key] = arg
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// EachObject calls fn with every object of the catalog file and its
// includes, in file order.
func (c *Catalog) EachObject(fn func(*Object) error) error {
	if c.Objects > 0 {
		r, err := open(c.Path)
		if err != nil {
			return err
		}
		s := scanner(r)
		for n := 1; s.Scan(); n++ {
			line := strings.TrimSpace(s.Text())
			if !strings.HasPrefix(line, "object ") {
				continue
			}
			o, err := ParseObject(line)
			if err == nil {
				err = fn(o)
			}
			if err != nil {
				r.Close()
				return fmt.Errorf("%s:%d: %w", c.Path, n, err)
			}
		}
		err = s.Err()
		r.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", c.Path, err)
		}
	}
	for _, inc := range c.Includes {
		if err := ReadObjects(inc, fn); err != nil {
			return err
		}
	}
	return nil
}
