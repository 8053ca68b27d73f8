// Public domain.

package catsim

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/soniakeys/dc2cat/internal/gcr"
	"github.com/soniakeys/dc2cat/internal/sky"
)

var (
	deg2rad    = gcr.MapFloat(sky.Deg2Rad)
	arcsec2rad = gcr.MapFloat(sky.Arcsec2Rad)
)

// adder adds quantities to a catalog, keeping the first error.
type adder struct {
	gc  gcr.Catalog
	err error
}

func (a *adder) alias(name, of string, overwrite bool) {
	if a.err != nil {
		return
	}
	m, err := a.gc.GetQuantityModifier(of)
	if err == nil {
		err = a.gc.AddQuantityModifier(name, m, overwrite)
	}
	a.err = err
}

func (a *adder) derive(name string, f gcr.DeriveFunc, deps ...string) {
	if a.err == nil {
		a.err = a.gc.AddDerivedQuantity(name, f, deps...)
	}
}

func (a *adder) modifyDerived(name string, f gcr.DeriveFunc, deps ...string) {
	if a.err == nil {
		a.err = a.gc.AddModifierOnDerivedQuantities(name, f, deps...)
	}
}

// TransformStandard adds the generator quantities of a cosmoDC2 style
// catalog.  Composite catalogs with a knots member also get the knots
// component, whose SED columns are returned as needing the postfix.
func TransformStandard(gc gcr.Catalog) ([]string, error) {
	a := &adder{gc: gc}
	a.derive("raJ2000", deg2rad, "ra_true")
	a.derive("decJ2000", deg2rad, "dec_true")

	a.alias("redshift", "redshift_true", true)
	a.alias("true_redshift", "redshift_true", false)
	a.alias("gamma1", "shear_1", false)
	a.alias("gamma2", "shear_2_phosim", false)
	a.alias("kappa", "convergence", false)

	a.derive("positionAngle", deg2rad, "position_angle_true")

	a.derive("majorAxis::disk", arcsec2rad, "size_disk_true")
	a.derive("minorAxis::disk", arcsec2rad, "size_minor_disk_true")
	a.derive("majorAxis::bulge", arcsec2rad, "size_bulge_true")
	a.derive("minorAxis::bulge", arcsec2rad, "size_minor_bulge_true")

	a.alias("sindex::disk", "sersic_disk", false)
	a.alias("sindex::bulge", "sersic_bulge", false)
	if a.err != nil {
		return nil, a.err
	}

	info := gc.Info()
	if info.SubclassName == gcr.CompositeSubclass && info.HasMember("knots") {
		return transformKnots(gc)
	}
	return nil, nil
}

// KnotsSEDTag marks the disk SED quantities split between disk and knots.
const KnotsSEDTag = "SEDs/diskLuminositiesStellar:SED"

// float32 machine epsilon, the floor of the disk and knots flux fractions.
const eps32 = 1.0 / (1 << 23)

func transformKnots(gc gcr.Catalog) ([]string, error) {
	a := &adder{gc: gc}
	// the number of knots takes the place of the sersic index
	a.derive("sindex::knots", gcr.Identity, "n_knots")
	a.derive("majorAxis::knots", arcsec2rad, "size_disk_true")
	a.derive("minorAxis::knots", arcsec2rad, "size_minor_disk_true")

	var add []string
	for _, name := range gc.ListAllNativeQuantities() {
		if !strings.Contains(name, KnotsSEDTag) {
			continue
		}
		a.derive(name+"::disk", gcr.MapFloat2(func(x, r float64) float64 {
			return x * math.Max(1-r, eps32)
		}), name, "knots_flux_ratio")
		a.derive(name+"::knots", gcr.MapFloat2(func(x, r float64) float64 {
			return x * math.Max(r, eps32)
		}), name, "knots_flux_ratio")
		add = append(add, name)
	}
	return add, a.err
}

// TransformStar adds the generator quantities of a star catalog with
// positions in degrees, proper motions and parallax in mas.
func TransformStar(gc gcr.Catalog) ([]string, error) {
	mas2rad := gcr.MapFloat(func(x float64) float64 { return sky.Arcsec2Rad(x / 1000) })
	a := &adder{gc: gc}
	a.derive("raJ2000", deg2rad, "ra")
	a.derive("decJ2000", deg2rad, "dec")
	for _, b := range "ugrizy" {
		a.alias(fmt.Sprintf("lsst_%c", b), fmt.Sprintf("mag_%c", b), false)
	}
	a.derive("properMotionRa", mas2rad, "pm_ra")
	a.derive("properMotionDec", mas2rad, "pm_dec")
	a.derive("parallax", mas2rad, "parallax_mas")
	if gc.HasQuantity("rv") {
		a.alias("radialVelocity", "rv", false)
	}
	return nil, a.err
}

// fieldRotator rotates catalogs centred on (0, 0) to a field centre.
type fieldRotator struct {
	rot *mat.Dense

	mu            sync.Mutex
	raIn, decIn   gcr.Float64s
	raOut, decOut gcr.Float64s
}

func newFieldRotator(fieldRA, fieldDec float64) *fieldRotator {
	origin := sky.Cartesian(0, 0)
	field := sky.Cartesian(sky.Deg2Rad(fieldRA), sky.Deg2Rad(fieldDec))
	return &fieldRotator{rot: sky.RotationFromVectors(origin, field)}
}

// rotate returns rotated RA and Dec in radians of positions in degrees.
// The result for the latest input is kept, since RA and Dec are asked
// for separately.
func (f *fieldRotator) rotate(raDeg, decDeg gcr.Column) (gcr.Float64s, gcr.Float64s, error) {
	ra, err := gcr.AsFloat64s(raDeg)
	if err != nil {
		return nil, nil, err
	}
	dec, err := gcr.AsFloat64s(decDeg)
	if err != nil {
		return nil, nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.raOut != nil && equal(ra, f.raIn) && equal(dec, f.decIn) {
		return f.raOut, f.decOut, nil
	}
	outRA := make(gcr.Float64s, len(ra))
	outDec := make(gcr.Float64s, len(ra))
	for i := range ra {
		v := sky.Rotate(f.rot, sky.Cartesian(sky.Deg2Rad(ra[i]), sky.Deg2Rad(dec[i])))
		outRA[i], outDec[i] = sky.Spherical(v)
	}
	f.raIn, f.decIn, f.raOut, f.decOut = ra, dec, outRA, outDec
	return outRA, outDec, nil
}

func equal(a, b gcr.Float64s) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (f *fieldRotator) transform(gc gcr.Catalog) ([]string, error) {
	a := &adder{gc: gc}
	a.modifyDerived("raJ2000", func(args ...gcr.Column) (gcr.Column, error) {
		ra, _, err := f.rotate(args[0], args[1])
		return ra, err
	}, "ra_true", "dec_true")
	a.modifyDerived("decJ2000", func(args ...gcr.Column) (gcr.Column, error) {
		_, dec, err := f.rotate(args[0], args[1])
		return dec, err
	}, "ra_true", "dec_true")

	a.alias("redshift", "redshift_true", true)
	a.alias("true_redshift", "redshift_true", false)
	a.alias("gamma1", "shear_1", false)
	a.alias("gamma2", "shear_2", false)
	a.alias("kappa", "convergence", false)

	a.alias("positionAngle", "position_angle_true", false)

	a.modifyDerived("majorAxis::disk", arcsec2rad, "size_disk_true")
	a.modifyDerived("minorAxis::disk", arcsec2rad, "size_minor_disk_true")
	a.modifyDerived("majorAxis::bulge", arcsec2rad, "size_bulge_true")
	a.modifyDerived("minorAxis::bulge", arcsec2rad, "size_minor_bulge_true")

	a.alias("sindex::disk", "sersic_disk", false)
	a.alias("sindex::bulge", "sersic_bulge", false)
	return nil, a.err
}
