// Public domain.

package catsim

import (
	"fmt"

	sexa "github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"

	"github.com/soniakeys/dc2cat/internal/sky"
)

// Bound types.
const (
	Circle = "circle"
	Box    = "box"
)

// ObservationMetaData describes a telescope pointing.  Angles are radians.
type ObservationMetaData struct {
	PointingRA  float64
	PointingDec float64
	BoundType   string
	// BoundLength is a radius, or a pair of half widths for a box.
	BoundLength []float64
	RotSkyPos   float64
	MJD         float64
	Bandpass    string
}

// NewObservationMetaData returns a pointing at ra, dec with the given
// bound, all arguments in degrees.
func NewObservationMetaData(ra, dec float64, boundType string, boundLength ...float64) *ObservationMetaData {
	o := &ObservationMetaData{
		PointingRA:  sky.Deg2Rad(ra),
		PointingDec: sky.Deg2Rad(dec),
		BoundType:   boundType,
	}
	for _, l := range boundLength {
		o.BoundLength = append(o.BoundLength, sky.Deg2Rad(l))
	}
	return o
}

// Radius returns the largest bound length.  ok is false for a nil
// ObservationMetaData or one without a bound.
func (o *ObservationMetaData) Radius() (r float64, ok bool) {
	if o == nil || len(o.BoundLength) == 0 {
		return 0, false
	}
	r = o.BoundLength[0]
	for _, l := range o.BoundLength[1:] {
		if l > r {
			r = l
		}
	}
	return r, true
}

func (o *ObservationMetaData) String() string {
	if o == nil {
		return "<all sky>"
	}
	s := fmt.Sprintf("%.2s %.1s",
		sexa.FmtRA(unit.RAFromRad(o.PointingRA)),
		sexa.FmtAngle(unit.Angle(o.PointingDec)))
	if r, ok := o.Radius(); ok {
		s += fmt.Sprintf(" %s %.4g°", o.BoundType, sky.Rad2Deg(r))
	}
	return s
}
