// Public domain.

// Package validate checks generated instance catalogs against the truth
// catalog they were generated from.
package validate

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/soniakeys/dc2cat/internal/gcr"
	"github.com/soniakeys/dc2cat/internal/healpix"
	"github.com/soniakeys/dc2cat/internal/sky"
)

// ErrFailed is wrapped by errors reporting a failed validation, as opposed
// to errors reading the inputs.
var ErrFailed = errors.New("validation failed")

func failed(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFailed, fmt.Sprintf(format, a...))
}

// HealpixNside is the resolution of truth catalog healpixels.
const HealpixNside = 32

// VisitDir returns the directory of visit obsHistID under catDir.
func VisitDir(catDir string, obsHistID int64) string {
	return filepath.Join(catDir, fmt.Sprintf("%08d", obsHistID))
}

// SprinkledFiles returns the AGN and SNe cache files under twinklesDir.
func SprinkledFiles(twinklesDir string) []string {
	var fs []string
	for _, k := range []string{"agn", "sne"} {
		fs = append(fs, filepath.Join(twinklesDir, "data",
			fmt.Sprintf("cosmoDC2_v1.1.4_%s_cache.csv", k)))
	}
	return fs
}

// ReadSprinkled returns the galaxy ids, the first CSV field, of sprinkler
// cache files.  Header lines start with "galtileid".
func ReadSprinkled(paths ...string) (map[int64]bool, error) {
	ids := map[int64]bool{}
	for _, p := range paths {
		if err := readSprinkled(p, ids); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func readSprinkled(path string, ids map[int64]bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "galtileid") {
			continue
		}
		first, _, _ := strings.Cut(line, ",")
		id, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, n, err)
		}
		ids[id] = true
	}
	return s.Err()
}

// healpixQuery returns the native filter selecting the truth healpixels
// touching a disc, center and radius in radians.
func healpixQuery(ra, dec, radius float64) (gcr.Query, error) {
	pix, err := healpix.QueryDisc(HealpixNside, sky.Cartesian(ra, dec), radius, true)
	if err != nil {
		return gcr.Query{}, err
	}
	qs := make([]gcr.Query, len(pix))
	for i, p := range pix {
		qs[i] = gcr.Eq(gcr.HealpixFilter, float64(p))
	}
	return gcr.Or(qs...), nil
}

func int64s(c gcr.Column) ([]int64, error) {
	switch c := c.(type) {
	case gcr.Int64s:
		return c, nil
	case gcr.Float64s:
		id := make([]int64, len(c))
		for i, v := range c {
			id[i] = int64(v)
		}
		return id, nil
	case nil:
		return nil, errors.New("missing galaxy_id")
	}
	return nil, fmt.Errorf("galaxy_id is %v", c.Kind())
}
