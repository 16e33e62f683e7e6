// Package orientation holds the quaternion and planar-direction helpers shared
// by the symmetry groups and the particle filter.
//
// Planar rotations are stored in the same quat.Number slot as volumetric ones:
// the first two components carry (cos θ, sin θ) and the remaining two are zero.
// Volumetric rotations are unit quaternions where q and -q denote the same
// orientation.
package orientation

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrZeroQuaternion is raised when a quaternion with no direction is normalized.
var ErrZeroQuaternion = errors.New("orientation: zero-length quaternion")

// MinNorm is the smallest norm accepted by Normalize.
const MinNorm = 1e-12

// Identity is the unit quaternion of the null rotation.
var Identity = quat.Number{Real: 1}

// Normalize scales q to unit length. A (near) zero quaternion carries no
// rotation and is a programmer error.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < MinNorm || math.IsNaN(n) || math.IsInf(n, 0) {
		panic(fmt.Errorf("%w: norm %g", ErrZeroQuaternion, n))
	}
	return quat.Scale(1/n, q)
}

// Dot returns the 4D inner product of a and b.
func Dot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// Canonical returns the member of {q, -q} with a non-negative real part.
func Canonical(q quat.Number) quat.Number {
	if q.Real < 0 {
		return quat.Scale(-1, q)
	}
	return q
}

// AlignSign returns the member of {q, -q} closest to ref.
func AlignSign(q, ref quat.Number) quat.Number {
	if Dot(q, ref) < 0 {
		return quat.Scale(-1, q)
	}
	return q
}

// Angle is the arc between two unit quaternions on S³ with antipodes
// identified, in [0, π/2]. It is half of the rotation angle separating the
// two orientations; orthogonal quaternions are a right angle apart.
func Angle(a, b quat.Number) float64 {
	return math.Acos(clampUnit(math.Abs(Dot(a, b))))
}

// PlanarAngleBetween is the arc between two planar directions, in [0, π].
func PlanarAngleBetween(a, b quat.Number) float64 {
	return math.Acos(clampUnit(a.Real*b.Real + a.Imag*b.Imag))
}

func clampUnit(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

// Planar encodes the in-plane angle theta (radians).
func Planar(theta float64) quat.Number {
	s, c := math.Sincos(theta)
	return quat.Number{Real: c, Imag: s}
}

// PlanarAngle decodes the in-plane angle of a planar rotation, in (-π, π].
func PlanarAngle(q quat.Number) float64 {
	return math.Atan2(q.Imag, q.Real)
}

// FromAxisAngle builds the unit quaternion rotating by angle about axis.
func FromAxisAngle(axis r3.Vec, angle float64) quat.Number {
	u := r3.Unit(axis)
	s, c := math.Sincos(angle / 2)
	return quat.Number{Real: c, Imag: s * u.X, Jmag: s * u.Y, Kmag: s * u.Z}
}

// FromTangent maps a small rotation vector (the imaginary part of a
// near-identity quaternion) back onto S³.
func FromTangent(v r3.Vec) quat.Number {
	return Normalize(quat.Number{Real: 1, Imag: v.X, Jmag: v.Y, Kmag: v.Z})
}

// Tangent returns the imaginary part of q.
func Tangent(q quat.Number) r3.Vec {
	return r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}

// Compose returns the rotation a applied after b.
func Compose(a, b quat.Number) quat.Number {
	return Normalize(quat.Mul(a, b))
}

// Relative returns q·conj(ref), the rotation taking ref to q.
func Relative(q, ref quat.Number) quat.Number {
	return quat.Mul(q, quat.Conj(ref))
}

// Uniform draws a quaternion uniformly distributed over S³.
func Uniform(rng *rand.Rand) quat.Number {
	for {
		q := quat.Number{
			Real: rng.NormFloat64(),
			Imag: rng.NormFloat64(),
			Jmag: rng.NormFloat64(),
			Kmag: rng.NormFloat64(),
		}
		if quat.Abs(q) > 1e-6 {
			return Normalize(q)
		}
	}
}

// UniformPlanar draws a planar direction uniformly distributed over S¹.
func UniformPlanar(rng *rand.Rand) quat.Number {
	return Planar(2 * math.Pi * rng.Float64())
}

// Matrix3 returns the 3×3 rotation matrix of a unit quaternion.
func Matrix3(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// Matrix2 returns the 2×2 rotation matrix of a planar direction.
func Matrix2(q quat.Number) *mat.Dense {
	c, s := q.Real, q.Imag
	return mat.NewDense(2, 2, []float64{
		c, -s,
		s, c,
	})
}
