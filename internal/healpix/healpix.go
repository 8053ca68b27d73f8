// Public domain.

// Package healpix implements the HEALPix RING pixelization as far as the
// catalog tools need it: pixel centres and disc queries.
//
// Extragalactic catalogs are stored one file per healpixel, so a disc
// query picks the native chunks worth reading before any row is loaded.
package healpix

import (
	"errors"
	"math"

	"github.com/soniakeys/coord"

	"github.com/soniakeys/dc2cat/internal/sky"
)

const halfPi = math.Pi / 2

// ErrNside is returned for an nside that is not a positive power of two.
var ErrNside = errors.New("healpix: nside must be a positive power of 2")

func checkNside(nside int) error {
	if nside < 1 || nside&(nside-1) != 0 {
		return ErrNside
	}
	return nil
}

// Npix returns the number of pixels at resolution nside.
func Npix(nside int) int {
	return 12 * nside * nside
}

func isqrt(v int) int {
	r := int(math.Sqrt(float64(v) + .5))
	for r*r > v {
		r--
	}
	for (r+1)*(r+1) <= v {
		r++
	}
	return r
}

// Pix2ZPhi returns z = cos θ and φ of the centre of RING pixel pix.
func Pix2ZPhi(nside, pix int) (z, phi float64) {
	npix := Npix(nside)
	ncap := 2 * nside * (nside - 1)
	fact2 := 4 / float64(npix)
	switch {
	case pix < ncap: // north polar cap
		iring := (1 + isqrt(1+2*pix)) >> 1
		iphi := pix + 1 - 2*iring*(iring-1)
		z = 1 - float64(iring*iring)*fact2
		phi = (float64(iphi) - .5) * halfPi / float64(iring)
	case pix < npix-ncap: // equatorial belt
		fact1 := float64(2*nside) * fact2
		ip := pix - ncap
		tmp := ip / (4 * nside)
		iring := tmp + nside
		iphi := ip - tmp*4*nside + 1
		fodd := .5
		if (iring+nside)&1 != 0 {
			fodd = 1
		}
		z = float64(2*nside-iring) * fact1
		phi = (float64(iphi) - fodd) * math.Pi * .75 * fact1
	default: // south polar cap
		ip := npix - pix
		iring := (1 + isqrt(2*ip-1)) >> 1
		iphi := 4*iring + 1 - (ip - 2*iring*(iring-1))
		z = -1 + float64(iring*iring)*fact2
		phi = (float64(iphi) - .5) * halfPi / float64(iring)
	}
	return
}

// Pix2Ang returns colatitude θ and longitude φ of the centre of pixel pix.
func Pix2Ang(nside, pix int) (theta, phi float64) {
	z, phi := Pix2ZPhi(nside, pix)
	return math.Acos(z), phi
}

// Pix2Vec returns the unit vector to the centre of pixel pix.
func Pix2Vec(nside, pix int) coord.Cart {
	z, phi := Pix2ZPhi(nside, pix)
	st := math.Sqrt((1 - z) * (1 + z))
	s, c := math.Sincos(phi)
	return coord.Cart{X: st * c, Y: st * s, Z: z}
}

// Ang2Pix returns the RING pixel containing colatitude θ, longitude φ.
func Ang2Pix(nside int, theta, phi float64) int {
	return zPhi2Pix(nside, math.Cos(theta), phi)
}

// Vec2Pix returns the RING pixel containing the direction v.
func Vec2Pix(nside int, v coord.Cart) int {
	v = sky.Normalize(v)
	return zPhi2Pix(nside, v.Z, math.Atan2(v.Y, v.X))
}

func zPhi2Pix(nside int, z, phi float64) int {
	za := math.Abs(z)
	tt := math.Mod(phi, 2*math.Pi)
	if tt < 0 {
		tt += 2 * math.Pi
	}
	tt /= halfPi // in [0,4)
	ncap := 2 * nside * (nside - 1)
	nl4 := 4 * nside
	if za <= 2./3 {
		temp1 := float64(nside) * (.5 + tt)
		temp2 := float64(nside) * z * .75
		jp := int(temp1 - temp2) // ascending edge line index
		jm := int(temp1 + temp2) // descending edge line index
		ir := nside + 1 + jp - jm
		kshift := 1 - ir&1
		ip := (jp + jm - nside + kshift + 1) / 2
		ip = mod(ip, nl4)
		return ncap + (ir-1)*nl4 + ip
	}
	tp := tt - math.Floor(tt)
	tmp := float64(nside) * math.Sqrt(3*(1-za))
	jp := int(tp * tmp)
	jm := int((1 - tp) * tmp)
	ir := jp + jm + 1
	ip := int(tt * float64(ir))
	ip = mod(ip, 4*ir)
	if z > 0 {
		return 2*ir*(ir-1) + ip
	}
	return Npix(nside) - 2*ir*(ir+1) + ip
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}

// MaxPixRad returns the maximal angular distance between a pixel centre
// and any of its corners at resolution nside.
func MaxPixRad(nside int) float64 {
	n := float64(nside)
	va := zPhiVec(2./3, math.Pi/(4*n))
	t1 := 1 - 1/n
	t1 *= t1
	vb := zPhiVec(1-t1/3, 0)
	return sky.VecSep(va, vb)
}

func zPhiVec(z, phi float64) coord.Cart {
	st := math.Sqrt((1 - z) * (1 + z))
	s, c := math.Sincos(phi)
	return coord.Cart{X: st * c, Y: st * s, Z: z}
}

// QueryDisc returns the RING pixels within radius of direction v, in
// increasing order.
//
// Without inclusive, a pixel is returned when its centre is within the
// disc.  With inclusive, every pixel that may overlap the disc is returned;
// the result can hold a few pixels that do not, which is harmless for
// native chunk selection since rows are filtered exactly afterwards.
func QueryDisc(nside int, v coord.Cart, radius float64, inclusive bool) ([]int, error) {
	if err := checkNside(nside); err != nil {
		return nil, err
	}
	v = sky.Normalize(v)
	limit := radius
	if inclusive {
		limit += MaxPixRad(nside)
	}
	if limit >= math.Pi {
		all := make([]int, Npix(nside))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	cosLimit := math.Cos(limit)
	// ring z range that can intersect.  pixel centres outside
	// [zmin, zmax] are farther than limit from v.
	dec := math.Asin(math.Max(-1, math.Min(1, v.Z)))
	zmax := math.Sin(math.Min(halfPi, dec+limit))
	zmin := math.Sin(math.Max(-halfPi, dec-limit))
	var pix []int
	for p, n := 0, Npix(nside); p < n; p++ {
		z, phi := Pix2ZPhi(nside, p)
		if z > zmax+1e-12 || z < zmin-1e-12 {
			continue
		}
		c := zPhiVec(z, phi)
		if c.Dot(&v) >= cosLimit {
			pix = append(pix, p)
		}
	}
	return pix, nil
}
