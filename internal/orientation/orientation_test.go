package orientation

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	q := Normalize(quat.Number{Real: 3, Imag: 4})
	assert.InDelta(t, 1.0, quat.Abs(q), 1e-12)
	assert.InDelta(t, 0.6, q.Real, 1e-12)
	assert.InDelta(t, 0.8, q.Imag, 1e-12)

	assert.PanicsWithError(t, "orientation: zero-length quaternion: norm 0", func() {
		Normalize(quat.Number{})
	})
}

func TestAngle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b quat.Number
		want float64
	}{
		{"same", Identity, Identity, 0},
		{"antipodal", Identity, quat.Number{Real: -1}, 0},
		{"orthogonal", Identity, quat.Number{Imag: 1}, math.Pi / 2},
		{"quarter turn about z", Identity, FromAxisAngle(r3.Vec{Z: 1}, math.Pi/2), math.Pi / 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Angle(tt.a, tt.b), 1e-9)
		})
	}
}

func TestPlanarRoundTrip(t *testing.T) {
	t.Parallel()

	for _, theta := range []float64{0, 0.3, -1.2, math.Pi / 2, 3} {
		q := Planar(theta)
		assert.InDelta(t, theta, PlanarAngle(q), 1e-12)
		assert.InDelta(t, 1.0, quat.Abs(q), 1e-12)
	}
	assert.InDelta(t, math.Pi/2, PlanarAngleBetween(Planar(0), Planar(math.Pi/2)), 1e-12)
	assert.InDelta(t, math.Pi, PlanarAngleBetween(Planar(0), Planar(math.Pi)), 1e-9)
}

func TestUniformIsUnit(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		assert.InDelta(t, 1.0, quat.Abs(Uniform(rng)), 1e-12)
		assert.InDelta(t, 1.0, quat.Abs(UniformPlanar(rng)), 1e-12)
	}
}

func TestMatrix3IsOrthonormal(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 20; i++ {
		r := Matrix3(Uniform(rng))
		var rrt mat.Dense
		rrt.Mul(r, r.T())
		require.True(t, mat.EqualApprox(&rrt, eye(3), 1e-9))
		assert.InDelta(t, 1.0, mat.Det(r), 1e-9)
	}

	// A quarter turn about z maps x onto y.
	r := Matrix3(FromAxisAngle(r3.Vec{Z: 1}, math.Pi/2))
	assert.InDelta(t, 0.0, r.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, r.At(1, 0), 1e-12)
}

func TestMatrix2(t *testing.T) {
	t.Parallel()

	r := Matrix2(Planar(math.Pi / 2))
	assert.InDelta(t, 0.0, r.At(0, 0), 1e-12)
	assert.InDelta(t, -1.0, r.At(0, 1), 1e-12)
	assert.InDelta(t, 1.0, r.At(1, 0), 1e-12)
}

func TestCanonicalAndAlign(t *testing.T) {
	t.Parallel()

	q := quat.Number{Real: -0.5, Imag: 0.5, Jmag: 0.5, Kmag: 0.5}
	assert.Equal(t, quat.Number{Real: 0.5, Imag: -0.5, Jmag: -0.5, Kmag: -0.5}, Canonical(q))
	assert.Equal(t, q, AlignSign(q, quat.Number{Imag: 1}))
	assert.Equal(t, Canonical(q), AlignSign(q, Identity))
}

func TestTangentRoundTrip(t *testing.T) {
	t.Parallel()

	v := r3.Vec{X: 0.01, Y: -0.02, Z: 0.005}
	q := FromTangent(v)
	back := Tangent(q)
	assert.InDelta(t, v.X, back.X, 1e-5)
	assert.InDelta(t, v.Y, back.Y, 1e-5)
	assert.InDelta(t, v.Z, back.Z, 1e-5)

	a := FromAxisAngle(r3.Vec{X: 1}, 0.4)
	b := FromAxisAngle(r3.Vec{Y: 1}, 0.7)
	rel := Relative(Compose(a, b), b)
	assert.InDelta(t, 0.0, Angle(rel, a), 1e-9)
}

func eye(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}
