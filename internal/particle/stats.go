package particle

import (
	"math"

	"github.com/banshee-data/particle.refine/internal/orientation"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// minCompression keeps the logarithm in CalScore finite.
const minCompression = 1e-300

// Fit estimates the spread of an axis from its current weighted ensemble and
// stores it in Spread. The weights are used normalized but left untouched.
// The class axis has no spread to fit.
func (f *Filter) Fit(a Axis) {
	switch a {
	case AxisClass:
	case AxisRotation:
		if f.mode == Mode2D {
			f.fitPlanar()
		} else {
			f.fitVolumetric()
		}
	case AxisTranslation:
		f.fitTranslation()
	case AxisDefocus:
		f.fitDefocus()
	default:
		a.check()
	}
}

// fitPlanar is the von Mises fit on S¹.
func (f *Filter) fitPlanar() {
	w := f.rot.normalized()
	var c, s float64
	for i, q := range f.rot.values {
		c += w[i] * q.Real
		s += w[i] * q.Imag
	}
	r := math.Hypot(c, s)

	var kappa float64
	if r >= 1-1e-12 {
		kappa = f.cfg.MaxConcentration
	} else {
		kappa = r * (2 - r*r) / (1 - r*r)
	}
	kappa = f.clampConcentration(kappa)

	mean := orientation.Identity
	if r > 0 {
		mean = orientation.Planar(math.Atan2(s, c))
	}
	f.spread.Rotation = RotationSpread{
		K1: kappa, K2: kappa, K3: kappa,
		Axes: defaultAxes(),
		Mean: mean,
	}
}

// fitVolumetric takes the principal eigenvector of the weighted scatter
// matrix as the mean orientation, maps every sample into the tangent space at
// that mean, and fits a 3D Gaussian there.
func (f *Filter) fitVolumetric() {
	w := f.rot.normalized()

	scatter := mat.NewSymDense(4, nil)
	for i, q := range f.rot.values {
		v := [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag}
		for r := 0; r < 4; r++ {
			for c := r; c < 4; c++ {
				scatter.SetSym(r, c, scatter.At(r, c)+w[i]*v[r]*v[c])
			}
		}
	}
	var es mat.EigenSym
	if !es.Factorize(scatter, true) {
		// Leave the previous fit in place; the next round refits.
		return
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	mean := orientation.Canonical(orientation.Normalize(quat.Number{
		Real: vecs.At(0, 3), Imag: vecs.At(1, 3), Jmag: vecs.At(2, 3), Kmag: vecs.At(3, 3),
	}))

	cov := mat.NewSymDense(3, nil)
	for i, q := range f.rot.values {
		t := orientation.Tangent(orientation.Canonical(orientation.Relative(q, mean)))
		v := [3]float64{t.X, t.Y, t.Z}
		for r := 0; r < 3; r++ {
			for c := r; c < 3; c++ {
				cov.SetSym(r, c, cov.At(r, c)+w[i]*v[r]*v[c])
			}
		}
	}
	var tes mat.EigenSym
	if !tes.Factorize(cov, true) {
		return
	}
	variances := tes.Values(nil)
	var axes mat.Dense
	tes.VectorsTo(&axes)

	// Values are ascending, so the loosest direction comes last; K1 is the
	// smallest concentration.
	var rs RotationSpread
	rs.Mean = mean
	k := [3]*float64{&rs.K1, &rs.K2, &rs.K3}
	for i := 0; i < 3; i++ {
		col := 2 - i
		v := floor(variances[col], f.cfg.MinRotationVariance)
		*k[i] = f.clampConcentration(1 / v)
		rs.Axes[i] = r3.Vec{X: axes.At(0, col), Y: axes.At(1, col), Z: axes.At(2, col)}
	}
	f.spread.Rotation = rs
}

func (f *Filter) fitTranslation() {
	w := f.trans.normalized()
	xs := make([]float64, len(w))
	ys := make([]float64, len(w))
	for i, v := range f.trans.values {
		xs[i], ys[i] = v.X, v.Y
	}
	// PopMeanVariance divides by Σw; MeanVariance would divide by Σw−1, which
	// is zero for normalized weights.
	_, vx := stat.PopMeanVariance(xs, w)
	_, vy := stat.PopMeanVariance(ys, w)

	var rho float64
	if vx > 0 && vy > 0 {
		rho = stat.Correlation(xs, ys, w)
	}
	f.spread.Translation = TranslationSpread{
		S0:  floor(math.Sqrt(vx), f.cfg.MinTranslationSigma),
		S1:  floor(math.Sqrt(vy), f.cfg.MinTranslationSigma),
		Rho: f.clampRho(rho),
	}
}

func (f *Filter) fitDefocus() {
	w := f.def.normalized()
	_, v := stat.PopMeanVariance(f.def.values, w)
	f.spread.Defocus = floor(math.Sqrt(v), f.cfg.MinDefocusSigma)
}

// Compression maps the spread of an axis to a confidence signal that grows as
// the ensemble tightens:
//
//	class        largest per-label weight mass × nC (1 when uniform)
//	rotation     geometric mean of K1, K2, K3
//	translation  1 / (S0·S1·√(1−ρ²))
//	defocus      1 / S
//
// Rotation, translation and defocus read the last Fit.
func (f *Filter) Compression(a Axis) float64 {
	switch a {
	case AxisClass:
		mass := make([]float64, f.nC)
		w := f.class.normalized()
		for i, c := range f.class.values {
			mass[c] += w[i]
		}
		return floats.Max(mass) * float64(f.nC)
	case AxisRotation:
		r := f.spread.Rotation
		return math.Cbrt(r.K1 * r.K2 * r.K3)
	case AxisTranslation:
		t := f.spread.Translation
		return 1 / (t.S0 * t.S1 * math.Sqrt(1-t.Rho*t.Rho))
	case AxisDefocus:
		return 1 / f.spread.Defocus
	}
	a.check()
	return 0
}

// CalScore recomputes the observation score, the sum over axes of the log
// compression, and returns it.
func (f *Filter) CalScore() float64 {
	var s float64
	for _, a := range Axes {
		s += math.Log(math.Max(f.Compression(a), minCompression))
	}
	f.score = s
	return s
}

// Score returns the value of the last CalScore.
func (f *Filter) Score() float64 { return f.score }

func (f *Filter) clampConcentration(k float64) float64 {
	if !(k > 0) {
		return 0
	}
	return math.Min(k, f.cfg.MaxConcentration)
}

func (f *Filter) clampRho(r float64) float64 {
	if math.IsNaN(r) {
		return 0
	}
	return math.Max(f.cfg.RhoMin, math.Min(f.cfg.RhoMax, r))
}
