// Public domain.

package instcat

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/soniakeys/dc2cat/internal/sky"
)

// Focal plane geometry in degrees on the sky.  The science array is a 5×5
// grid of rafts without the corners, each raft 3×3 sensors.
const (
	SensorSize  = 0.2222
	SensorPitch = 0.2347
	RaftPitch   = 0.7056
)

// Sensor is one science sensor.  Raft and sensor indices increase along
// focal plane x then y.
type Sensor struct {
	RaftX, RaftY     int
	SensorX, SensorY int
}

// Name returns the camera name, "R:x,y S:i,j".
func (s Sensor) Name() string {
	return fmt.Sprintf("R:%d,%d S:%d,%d", s.RaftX, s.RaftY, s.SensorX, s.SensorY)
}

// Detector returns the detector name, "Rxy_Sij".
func (s Sensor) Detector() string {
	return fmt.Sprintf("R%d%d_S%d%d", s.RaftX, s.RaftY, s.SensorX, s.SensorY)
}

// Center returns the focal plane position of the sensor center.
func (s Sensor) Center() (x, y float64) {
	x = float64(s.RaftX-2)*RaftPitch + float64(s.SensorX-1)*SensorPitch
	y = float64(s.RaftY-2)*RaftPitch + float64(s.SensorY-1)*SensorPitch
	return
}

// Contains reports whether focal plane position x, y lies on the sensor
// or within margin of it, all in degrees.
func (s Sensor) Contains(x, y, margin float64) bool {
	cx, cy := s.Center()
	h := SensorSize/2 + margin
	return math.Abs(x-cx) <= h && math.Abs(y-cy) <= h
}

func corner(x, y int) bool {
	return (x == 0 || x == 4) && (y == 0 || y == 4)
}

// Sensors returns the 189 science sensors.
func Sensors() []Sensor {
	var ss []Sensor
	for ry := 0; ry < 5; ry++ {
		for rx := 0; rx < 5; rx++ {
			if corner(rx, ry) {
				continue
			}
			for sy := 0; sy < 3; sy++ {
				for sx := 0; sx < 3; sx++ {
					ss = append(ss, Sensor{rx, ry, sx, sy})
				}
			}
		}
	}
	return ss
}

// ParseSensor parses a camera name "R:x,y S:i,j" or a detector name
// "Rxy_Sij".  Only the digits matter.
func ParseSensor(name string) (Sensor, error) {
	var d []int
	for _, r := range name {
		if unicode.IsDigit(r) {
			d = append(d, int(r-'0'))
		}
	}
	if len(d) != 4 || !strings.HasPrefix(name, "R") {
		return Sensor{}, fmt.Errorf("instcat: sensor name %q", name)
	}
	s := Sensor{d[0], d[1], d[2], d[3]}
	if s.RaftX > 4 || s.RaftY > 4 || corner(s.RaftX, s.RaftY) ||
		s.SensorX > 2 || s.SensorY > 2 {
		return Sensor{}, fmt.Errorf("instcat: no science sensor %q", name)
	}
	return s, nil
}

// Projection maps sky positions to focal plane positions.
//
// Positions are projected gnomonically about the boresight, xi toward
// increasing RA and eta toward the north pole, then rotated by -rotSkyPos
// into focal plane x, y.
type Projection struct {
	ra0, sd0, cd0 float64
	sRot, cRot    float64
}

// NewProjection returns the projection for a boresight and sky rotation,
// all in degrees.
func NewProjection(ra, dec, rotSkyPos float64) *Projection {
	p := &Projection{ra0: sky.Deg2Rad(ra)}
	p.sd0, p.cd0 = math.Sincos(sky.Deg2Rad(dec))
	p.sRot, p.cRot = math.Sincos(sky.Deg2Rad(rotSkyPos))
	return p
}

// Project returns the focal plane position in degrees of ra, dec in
// degrees.  ok is false for positions at or beyond 90° from the boresight.
func (p *Projection) Project(ra, dec float64) (x, y float64, ok bool) {
	sd, cd := math.Sincos(sky.Deg2Rad(dec))
	sda, cda := math.Sincos(sky.Deg2Rad(ra) - p.ra0)
	c := p.sd0*sd + p.cd0*cd*cda
	if c <= 0 {
		return 0, 0, false
	}
	xi := cd * sda / c
	eta := (p.cd0*sd - p.sd0*cd*cda) / c
	x = sky.Rad2Deg(p.cRot*xi + p.sRot*eta)
	y = sky.Rad2Deg(-p.sRot*xi + p.cRot*eta)
	return x, y, true
}
