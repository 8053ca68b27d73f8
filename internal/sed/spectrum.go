// Public domain.

// Package sed handles spectral energy distributions and bandpasses.
//
// Wavelengths are in nm, flambda in erg/cm²/s/nm, and fluxes in Jansky on
// the AB system.
package sed

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Spectrum is a sampled SED.
type Spectrum struct {
	Name    string
	Wavelen []float64
	Flambda []float64
}

// ReadFlambda reads a two column text SED of wavelength and flambda.
// Files ending in .gz are decompressed.  If path does not exist but
// path.gz does, the compressed file is read.
func ReadFlambda(path string) (*Spectrum, error) {
	w, f, err := readColumns(path)
	if err != nil {
		return nil, err
	}
	return &Spectrum{Name: path, Wavelen: w, Flambda: f}, nil
}

func open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) && !strings.HasSuffix(path, ".gz") {
		if g, gerr := os.Open(path + ".gz"); gerr == nil {
			f, err, path = g, nil, path+".gz"
		}
	}
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

// readColumns reads the first two whitespace separated columns of a text
// file, skipping blank lines and lines starting with #.
func readColumns(path string) (x, y []float64, err error) {
	r, err := open(path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()
	s := bufio.NewScanner(r)
	line := 0
	for s.Scan() {
		line++
		t := strings.TrimSpace(s.Text())
		if t == "" || t[0] == '#' {
			continue
		}
		f := strings.Fields(t)
		if len(f) < 2 {
			return nil, nil, fmt.Errorf("%s:%d: expected two columns", path, line)
		}
		a, err := strconv.ParseFloat(f[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		b, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		x = append(x, a)
		y = append(y, b)
	}
	if err := s.Err(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(x) < 2 {
		return nil, nil, fmt.Errorf("%s: fewer than two samples", path)
	}
	return x, y, nil
}

// Copy returns a deep copy of s.
func (s *Spectrum) Copy() *Spectrum {
	return &Spectrum{
		Name:    s.Name,
		Wavelen: append([]float64(nil), s.Wavelen...),
		Flambda: append([]float64(nil), s.Flambda...),
	}
}

// MultiplyFluxNorm scales flambda by f.
func (s *Spectrum) MultiplyFluxNorm(f float64) {
	floats.Scale(f, s.Flambda)
}

// RedshiftSED stretches wavelengths by 1+z.  With dimming, flambda is
// divided by 1+z.
func (s *Spectrum) RedshiftSED(z float64, dimming bool) {
	floats.Scale(1+z, s.Wavelen)
	if dimming {
		floats.Scale(1/(1+z), s.Flambda)
	}
}

// Fnu returns flux density in Jansky at the spectrum wavelengths.
func (s *Spectrum) Fnu() []float64 {
	fnu := make([]float64, len(s.Flambda))
	for i, fl := range s.Flambda {
		w := s.Wavelen[i]
		// erg/cm²/s/nm * nm² / (m/s) * (m/nm) -> erg/cm²/s/Hz -> Jy
		fnu[i] = fl * w * w * nm2m / lightSpeed * ergs2Jansky
	}
	return fnu
}

const (
	lightSpeed  = 299792458. // m/s
	nm2m        = 1e-9
	ergs2Jansky = 1e23
)
