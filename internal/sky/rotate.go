// Public domain.

package sky

import (
	"math"

	"github.com/soniakeys/coord"
	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// RotationFromVectors returns the 3x3 rotation matrix that takes unit
// vector a onto unit vector b, rotating about a × b.
//
// Vectors closer than 1e-7 in 1 - a·b give the identity.
func RotationFromVectors(a, b coord.Cart) *mat.Dense {
	r := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	cosT := a.Dot(&b)
	if math.Abs(1-cosT) < 1e-7 {
		return r
	}
	var k coord.Cart
	k.Cross(&a, &b)
	sinT := math.Sqrt(k.Square())
	if sinT == 0 {
		// antiparallel.  any axis perpendicular to a will do.
		k = perpendicular(a)
	} else {
		k = Scale(1/sinT, k)
	}
	// Rodrigues: R = I + sinθ K + (1-cosθ) K²
	kx := mat.NewDense(3, 3, []float64{
		0, -k.Z, k.Y,
		k.Z, 0, -k.X,
		-k.Y, k.X, 0,
	})
	var kk mat.Dense
	kk.Mul(kx, kx)
	kx.Scale(sinT, kx)
	kk.Scale(1-cosT, &kk)
	r.Add(r, kx)
	r.Add(r, &kk)
	return r
}

func perpendicular(a coord.Cart) coord.Cart {
	ref := coord.Cart{X: 1}
	if math.Abs(a.X) > .9 {
		ref = coord.Cart{Y: 1}
	}
	var p coord.Cart
	p.Cross(&a, &ref)
	return Normalize(p)
}

// Rotate applies rotation matrix m to v.
func Rotate(m mat.Matrix, v coord.Cart) coord.Cart {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return coord.Cart{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// NewRand returns a PCG generator with a fixed seed, so that smeared
// catalogs and validation samples are repeatable.
func NewRand(seed uint64) *xrand.Rand {
	r := xrand.New(&xrand.PCGSource{})
	r.Seed(seed)
	return r
}

// Smear moves unit vector v by angle delta in the direction of the
// component of random vector rv perpendicular to v.
func Smear(v coord.Cart, delta float64, rv coord.Cart) coord.Cart {
	d := v.Dot(&rv)
	rv = Normalize(coord.Cart{X: rv.X - d*v.X, Y: rv.Y - d*v.Y, Z: rv.Z - d*v.Z})
	s, c := math.Sincos(delta)
	return Normalize(Add(Scale(c, v), Scale(s, rv)))
}
