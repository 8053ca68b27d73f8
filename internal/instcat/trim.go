// Public domain.

package instcat

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultMargin is the default trimming margin in degrees, 20 arcsec.
const DefaultMargin = 20. / 3600

// TrimFileName returns the output file for a sensor.
func TrimFileName(outDir string, s Sensor) string {
	return filepath.Join(outDir, s.Detector()+"_instcat.txt")
}

// Trimmer writes per-sensor instance catalogs containing the header
// commands of a catalog and the objects landing on each sensor.
type Trimmer struct {
	Catalog *Catalog
	Sensors []Sensor
	// Margin around each sensor, degrees.
	Margin float64
	Log    *zap.Logger
}

// NewTrimmer opens the catalog at path.
func NewTrimmer(path string, sensors []Sensor) (*Trimmer, error) {
	c, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &Trimmer{Catalog: c, Sensors: sensors, Margin: DefaultMargin}, nil
}

// Projection returns the projection of the catalog pointing.
func (t *Trimmer) Projection() (*Projection, error) {
	h := &t.Catalog.Header
	ra, err := h.Float("rightascension")
	if err != nil {
		return nil, err
	}
	dec, err := h.Float("declination")
	if err != nil {
		return nil, err
	}
	rot, err := h.Float("rotskypos")
	if err != nil {
		return nil, err
	}
	return NewProjection(ra, dec, rot), nil
}

type trimOut struct {
	s    Sensor
	path string
	f    *os.File
	w    *bufio.Writer
	n    int
}

// Write writes a trimmed catalog per sensor into outDir, skipping sensors
// whose output already exists.  It returns the number of files written.
// Objects are read once for all sensors.
func (t *Trimmer) Write(outDir string) (written int, err error) {
	log := t.Log
	if log == nil {
		log = zap.NewNop()
	}
	p, err := t.Projection()
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, err
	}
	var outs []*trimOut
	defer func() {
		for _, o := range outs {
			if o.f != nil {
				o.f.Close()
			}
		}
	}()
	for _, s := range t.Sensors {
		fn := TrimFileName(outDir, s)
		switch _, err := os.Stat(fn); {
		case err == nil:
			log.Debug("exists", zap.String("file", fn))
			continue
		case !errors.Is(err, fs.ErrNotExist):
			return 0, err
		}
		f, err := os.Create(fn)
		if err != nil {
			return 0, err
		}
		o := &trimOut{s: s, path: fn, f: f, w: bufio.NewWriter(f)}
		outs = append(outs, o)
		for _, c := range t.Catalog.Header.Commands {
			fmt.Fprintln(o.w, strings.TrimSpace(c))
		}
	}
	if len(outs) == 0 {
		return 0, nil
	}
	err = t.Catalog.EachObject(func(obj *Object) error {
		x, y, ok := p.Project(obj.RA, obj.Dec)
		if !ok {
			return nil
		}
		for _, o := range outs {
			if o.s.Contains(x, y, t.Margin) {
				o.w.WriteString(strings.TrimSpace(obj.Line))
				o.w.WriteByte('\n')
				o.n++
			}
		}
		return nil
	})
	if err != nil {
		// partial files would be skipped by a rerun
		for _, o := range outs {
			o.f.Close()
			o.f = nil
			os.Remove(o.path)
		}
		return 0, err
	}
	for _, o := range outs {
		err = o.w.Flush()
		if cerr := o.f.Close(); err == nil {
			err = cerr
		}
		o.f = nil
		if err != nil {
			return written, fmt.Errorf("%s: %w", o.path, err)
		}
		written++
		log.Info("trimmed", zap.String("sensor", o.s.Name()),
			zap.String("file", o.path), zap.Int("objects", o.n))
	}
	return written, nil
}
