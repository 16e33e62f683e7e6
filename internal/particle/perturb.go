package particle

import (
	"math"
	"math/rand/v2"

	"github.com/banshee-data/particle.refine/internal/orientation"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxTangentSigma bounds the per-axis 3D perturbation; beyond it the offset
// is already close to uniform on S³.
const maxTangentSigma = 1.0

// Perturb adds noise drawn from the fitted spread of an axis to every sample,
// scaled by peakFactor:
//
//	rotation 2D   von Mises angle with concentration K1/pf²
//	rotation 3D   tangent offset with sigma pf/√Ki along each fitted axis,
//	              composed on the left
//	translation   bivariate Gaussian (pf·S0, pf·S1, ρ)
//	defocus       Gaussian pf·S
//
// Class labels are discrete and are never perturbed. A zero peak factor is a
// no-op; a negative one panics.
func (f *Filter) Perturb(a Axis, peakFactor float64) {
	if !(peakFactor >= 0) || math.IsInf(peakFactor, 0) {
		fail(ErrInvalidParameter, "peak factor %g", peakFactor)
	}
	a.check()
	if peakFactor == 0 {
		return
	}
	switch a {
	case AxisRotation:
		if f.mode == Mode2D {
			f.perturbPlanar(peakFactor)
		} else {
			f.perturbVolumetric(peakFactor)
		}
	case AxisTranslation:
		f.perturbTranslation(peakFactor)
	case AxisDefocus:
		s := peakFactor * f.spread.Defocus
		for i := range f.def.values {
			f.def.values[i] += s * f.rng.NormFloat64()
		}
	}
}

func (f *Filter) perturbPlanar(pf float64) {
	kappa := f.spread.Rotation.K1 / (pf * pf)
	for i, q := range f.rot.values {
		theta := orientation.PlanarAngle(q) + vonMises(f.rng, kappa)
		f.rot.values[i] = orientation.Planar(theta)
	}
}

func (f *Filter) perturbVolumetric(pf float64) {
	rs := f.spread.Rotation
	k := [3]float64{rs.K1, rs.K2, rs.K3}
	var sigma [3]float64
	for i := range sigma {
		sigma[i] = maxTangentSigma
		if k[i] > 0 {
			sigma[i] = math.Min(pf/math.Sqrt(k[i]), maxTangentSigma)
		}
	}
	for i, q := range f.rot.values {
		var v r3.Vec
		for j := range sigma {
			v = r3.Add(v, r3.Scale(sigma[j]*f.rng.NormFloat64(), rs.Axes[j]))
		}
		f.rot.values[i] = orientation.Compose(orientation.FromTangent(v), q)
	}
}

func (f *Filter) perturbTranslation(pf float64) {
	t := f.spread.Translation
	s0, s1 := pf*t.S0, pf*t.S1
	c := math.Sqrt(1 - t.Rho*t.Rho)
	for i, v := range f.trans.values {
		z1, z2 := f.rng.NormFloat64(), f.rng.NormFloat64()
		f.trans.values[i] = r2.Add(v, r2.Vec{X: s0 * z1, Y: s1 * (t.Rho*z1 + c*z2)})
	}
}

// vonMises draws an angle from the von Mises distribution centred on zero
// using the Best–Fisher rejection sampler. Very small concentrations draw
// uniformly; very large ones use the wrapped Gaussian limit.
func vonMises(rng *rand.Rand, kappa float64) float64 {
	switch {
	case kappa < 1e-8:
		return math.Pi * (2*rng.Float64() - 1)
	case kappa > 1e4:
		return rng.NormFloat64() / math.Sqrt(kappa)
	}
	tau := 1 + math.Sqrt(1+4*kappa*kappa)
	rho := (tau - math.Sqrt(2*tau)) / (2 * kappa)
	r := (1 + rho*rho) / (2 * rho)
	for {
		u1, u2, u3 := rng.Float64(), rng.Float64(), rng.Float64()
		z := math.Cos(math.Pi * u1)
		fz := (1 + r*z) / (r + z)
		c := kappa * (r - fz)
		if c*(2-c)-u2 > 0 || math.Log(c/u2)+1-c >= 0 {
			theta := math.Acos(math.Max(-1, math.Min(1, fz)))
			if u3 > 0.5 {
				return theta
			}
			return -theta
		}
	}
}

// PeakFactor returns the current perturbation scale of an axis.
func (f *Filter) PeakFactor(a Axis) float64 {
	a.check()
	return f.peak[a]
}

// SetPeakFactor cools the peak factor of an axis from its compression:
//
//	pf ← clamp(min(pf·Cooling, Max·(c₀/c)^(1/Base)), Min, Max)
//
// c₀ is the compression seen by the first call after ResetPeakFactor. The
// result never increases between resets.
func (f *Filter) SetPeakFactor(a Axis) float64 {
	a.check()
	c := math.Max(f.Compression(a), minCompression)
	if f.peakRef[a] == 0 {
		f.peakRef[a] = c
	}
	target := f.cfg.PeakFactorMax * math.Pow(f.peakRef[a]/c, 1/f.cfg.PeakFactorBase)
	pf := math.Min(f.peak[a]*f.cfg.PeakFactorCooling, target)
	pf = math.Max(f.cfg.PeakFactorMin, math.Min(f.cfg.PeakFactorMax, pf))
	f.peak[a] = pf
	return pf
}

// ResetPeakFactor restores every axis to PeakFactorMax and forgets the
// reference compression.
func (f *Filter) ResetPeakFactor() {
	for _, a := range Axes {
		f.peak[a] = f.cfg.PeakFactorMax
		f.peakRef[a] = 0
	}
}

// KeepHalfHeightPeak zeroes every weight below HalfHeightFraction of the
// largest weight and re-normalizes, keeping only the dominant mode.
func (f *Filter) KeepHalfHeightPeak(a Axis) {
	ws := f.axis(a).weights()
	top := ws.w[ws.maxIdx()]
	if !(top > 0) {
		fail(ErrNonPositiveWeight, "largest %s weight %g", a, top)
	}
	threshold := f.cfg.HalfHeightFraction * top
	for i, w := range ws.w {
		if w < threshold {
			ws.w[i] = 0
		}
	}
	ws.normalize()
}
