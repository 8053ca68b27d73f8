// Public domain.

// Package sedfit fits library SEDs with dust to the tophat magnitudes of
// catalog galaxy components.
package sedfit

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/soniakeys/dc2cat/internal/gcr"
	"github.com/soniakeys/dc2cat/internal/sed"
)

// Components fitted separately.
var Components = []string{"disk", "bulge"}

// Filters are the catalog quantities describing one component.
type Filters struct {
	// Names of tophat luminosity quantities in wavelength order.
	Names []string
	// Tophat edges in nm.
	WavMin, WavWidth []float64
	// LSST holds the observed LSST luminosity quantities in ugrizy order.
	LSST []string
}

var tophatRe = regexp.MustCompile(`^sed_(\d+)_(\d+)_(disk|bulge)$`)

// LSSTQuantity returns the observed LSST luminosity quantity of band b
// for a component.
func LSSTQuantity(component string, b byte) string {
	lum := component
	if component == "bulge" {
		lum = "spheroid"
	}
	return fmt.Sprintf("LSST_filters/%sLuminositiesStellar:LSST_%c:observed:dustAtlas", lum, b)
}

// FilterNamesFromCatalog finds the tophat quantities sed_<min>_<width>_<c>
// of each component, min and width in Å.
func FilterNamesFromCatalog(cat gcr.Catalog) (map[string]*Filters, error) {
	type tophat struct {
		name       string
		min, width float64
	}
	found := map[string][]tophat{}
	for _, q := range cat.ListAllQuantities(true) {
		m := tophatRe.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		lo, _ := strconv.Atoi(m[1])
		w, _ := strconv.Atoi(m[2])
		found[m[3]] = append(found[m[3]], tophat{q, float64(lo) / 10, float64(w) / 10})
	}
	out := map[string]*Filters{}
	for _, c := range Components {
		th := found[c]
		if len(th) < 2 {
			return nil, fmt.Errorf("%s: %d tophat quantities for %s", cat.Name(), len(th), c)
		}
		sort.Slice(th, func(i, j int) bool { return th[i].min < th[j].min })
		f := &Filters{}
		for _, t := range th {
			f.Names = append(f.Names, t.name)
			f.WavMin = append(f.WavMin, t.min)
			f.WavWidth = append(f.WavWidth, t.width)
		}
		for i := 0; i < len(sed.LSSTBands); i++ {
			q := LSSTQuantity(c, sed.LSSTBands[i])
			if !cat.HasQuantity(q) {
				return nil, fmt.Errorf("%s: %w: %s", cat.Name(), gcr.ErrNoQuantity, q)
			}
			f.LSST = append(f.LSST, q)
		}
		out[c] = f
	}
	return out, nil
}

// Tophats returns the bandpasses of f.
func (f *Filters) Tophats() []*sed.Bandpass {
	bp := make([]*sed.Bandpass, len(f.WavMin))
	for i := range bp {
		bp[i] = sed.Tophat(f.WavMin[i], f.WavWidth[i])
	}
	return bp
}
