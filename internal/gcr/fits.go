// Public domain.

package gcr

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"
)

// HealpixFilter is the native filter quantity of healpixel chunks.
const HealpixFilter = "healpix_pixel"

// FITSSubclass is the subclass name of FITS healpixel catalogs.
const FITSSubclass = "fits.HealpixFITSReader"

// FITSSource reads one FITS binary table per native chunk.
//
// Chunk files are the files of a directory whose names match a pattern.
// A capture group named healpix supplies the healpix_pixel native filter
// value.
type FITSSource struct {
	dir     string
	files   []string
	pixels  []float64
	natives []string
}

// NewFITSSource lists the chunk files of dir and reads the column names
// of the first.
func NewFITSSource(dir string, pattern *regexp.Regexp) (*FITSSource, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	s := &FITSSource{dir: dir}
	hp := pattern.SubexpIndex("healpix")
	for _, e := range ents {
		m := pattern.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		pix := -1.
		if hp >= 0 {
			if pix, err = strconv.ParseFloat(m[hp], 64); err != nil {
				return nil, fmt.Errorf("%s: healpix %q: %w", e.Name(), m[hp], err)
			}
		}
		s.files = append(s.files, e.Name())
		s.pixels = append(s.pixels, pix)
	}
	if len(s.files) == 0 {
		return nil, fmt.Errorf("no files in %s match %s", dir, pattern)
	}
	if hp < 0 {
		s.pixels = nil
	}
	s.natives, err = fitsColumns(filepath.Join(dir, s.files[0]))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FITSSource) NativeQuantities() []string { return s.natives }

func (s *FITSSource) NativeFilterQuantities() []string {
	if s.pixels == nil {
		return nil
	}
	return []string{HealpixFilter}
}

func (s *FITSSource) Chunks() ([]Chunk, error) {
	cs := make([]Chunk, len(s.files))
	for i, f := range s.files {
		c := fitsChunk{path: filepath.Join(s.dir, f)}
		if s.pixels != nil {
			c.filter = map[string]float64{HealpixFilter: s.pixels[i]}
		}
		cs[i] = c
	}
	return cs, nil
}

type fitsChunk struct {
	path   string
	filter map[string]float64
}

func (c fitsChunk) NativeFilterValues() map[string]float64 { return c.filter }

func (c fitsChunk) Read(names []string) (Table, error) {
	return ReadFITS(c.path, names)
}

func openTable(path string) (*os.File, *fitsio.File, *fitsio.Table, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	f, err := fitsio.Open(r)
	if err != nil {
		r.Close()
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(f.HDUs()) < 2 {
		f.Close()
		r.Close()
		return nil, nil, nil, fmt.Errorf("%s: no table extension", path)
	}
	tbl, ok := f.HDU(1).(*fitsio.Table)
	if !ok {
		f.Close()
		r.Close()
		return nil, nil, nil, fmt.Errorf("%s: HDU 1 is not a table", path)
	}
	return r, f, tbl, nil
}

func fitsColumns(path string) ([]string, error) {
	r, f, tbl, err := openTable(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	defer f.Close()
	var names []string
	for _, c := range tbl.Cols() {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names, nil
}

// ReadFITS reads the named columns of the first table extension of a
// FITS file.  A nil names reads every column.
func ReadFITS(path string, names []string) (Table, error) {
	r, f, tbl, err := openTable(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	defer f.Close()
	cols := tbl.Cols()
	ptrs := make([]reflect.Value, len(cols))
	args := make([]interface{}, len(cols))
	for i := range cols {
		ptrs[i] = reflect.New(cols[i].Type())
		args[i] = ptrs[i].Interface()
	}
	keep := map[string]int{}
	for i, c := range cols {
		keep[c.Name] = i
	}
	if names == nil {
		for _, c := range cols {
			names = append(names, c.Name)
		}
	}
	for _, n := range names {
		if _, ok := keep[n]; !ok {
			return nil, fmt.Errorf("%s: %w: native %s", path, ErrNoQuantity, n)
		}
	}
	nrows := tbl.NumRows()
	out := make(Table, len(names))
	for _, n := range names {
		switch kindOf(cols[keep[n]].Type()) {
		case Float:
			out[n] = make(Float64s, 0, nrows)
		case Int:
			out[n] = make(Int64s, 0, nrows)
		default:
			out[n] = make(Strings, 0, nrows)
		}
	}
	rows, err := tbl.Read(0, nrows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := rows.Scan(args...); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, n := range names {
			v := ptrs[keep[n]].Elem()
			switch c := out[n].(type) {
			case Float64s:
				out[n] = append(c, v.Float())
			case Int64s:
				out[n] = append(c, intValue(v))
			case Strings:
				out[n] = append(c, strings.TrimRight(fmt.Sprint(v.Interface()), " \x00"))
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func kindOf(t reflect.Type) Kind {
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		return Float
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Bool:
		return Int
	}
	return String
}

func intValue(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	case reflect.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	}
	return v.Int()
}

// WriteFITS writes t as a binary table extension named name, columns in
// the order given.
func WriteFITS(w io.Writer, name string, t Table, order []string) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()
	phdu, err := fitsio.NewPrimaryHDU(fitsio.NewHeader(nil, fitsio.IMAGE_HDU, 8, nil))
	if err != nil {
		return err
	}
	if err := f.Write(phdu); err != nil {
		return err
	}
	cols := make([]fitsio.Column, len(order))
	for i, n := range order {
		c, ok := t[n]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoQuantity, n)
		}
		cols[i].Name = n
		switch c := c.(type) {
		case Float64s:
			cols[i].Format = "D"
		case Int64s:
			cols[i].Format = "K"
		case Strings:
			width := 1
			for _, s := range c {
				if len(s) > width {
					width = len(s)
				}
			}
			cols[i].Format = strconv.Itoa(width) + "A"
		}
	}
	tbl, err := fitsio.NewTable(name, cols, fitsio.BINARY_TBL)
	if err != nil {
		return err
	}
	defer tbl.Close()
	var (
		fv   = make([]float64, len(order))
		iv   = make([]int64, len(order))
		sv   = make([]string, len(order))
		args = make([]interface{}, len(order))
	)
	for i, n := range order {
		switch t[n].(type) {
		case Float64s:
			args[i] = &fv[i]
		case Int64s:
			args[i] = &iv[i]
		case Strings:
			args[i] = &sv[i]
		}
	}
	for row, nrows := 0, t.Len(); row < nrows; row++ {
		for i, n := range order {
			switch c := t[n].(type) {
			case Float64s:
				fv[i] = c[row]
			case Int64s:
				iv[i] = c[row]
			case Strings:
				sv[i] = c[row]
			}
		}
		if err := tbl.Write(args...); err != nil {
			return err
		}
	}
	return f.Write(tbl)
}
