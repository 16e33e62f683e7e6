package particle

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
)

// Resample replaces an axis with n samples drawn from its weight distribution
// by systematic resampling: n evenly spaced positions along the cumulative
// weights, offset by one shared uniform jitter. The result has weight 1/n per
// sample and only contains values from the source set; aux weights travel with
// the chosen sample.
func (f *Filter) Resample(a Axis, n int) {
	if n < 1 {
		fail(ErrInvalidCount, "resample %s to %d samples", a, n)
	}
	e := f.axis(a)
	if e.Len() == 0 {
		fail(ErrEmptyEnsemble, "resample empty %s ensemble", a)
	}
	idx := systematic(e.weights().w, n, f.rng.Float64())
	e.pick(idx, true)
}

// systematic returns n source indices. jitter is in [0, 1). Zero-weight
// samples are never selected.
func systematic(w []float64, n int, jitter float64) []int {
	cdf := cumulative(w)
	last := lastPositive(w)
	step := cdf[len(cdf)-1] / float64(n)

	idx := make([]int, n)
	j := 0
	for k := range idx {
		pos := (float64(k) + jitter) * step
		for j < last && cdf[j] <= pos {
			j++
		}
		idx[k] = j
	}
	return idx
}

func cumulative(w []float64) []float64 {
	cdf := make([]float64, len(w))
	floats.CumSum(cdf, w)
	if total := cdf[len(cdf)-1]; !(total > 0) {
		fail(ErrNonPositiveWeight, "sum %g over %d samples", total, len(w))
	}
	return cdf
}

func lastPositive(w []float64) int {
	for i := len(w) - 1; i > 0; i-- {
		if w[i] > 0 {
			return i
		}
	}
	return 0
}

// drawIndex picks one index with probability proportional to its weight.
func (f *Filter) drawIndex(a Axis) int {
	w := f.axis(a).weights().w
	cdf := cumulative(w)
	u := f.rng.Float64() * cdf[len(cdf)-1]
	i := sort.Search(len(cdf), func(i int) bool { return cdf[i] > u })
	if last := lastPositive(w); i > last {
		i = last
	}
	return i
}

// DrawClass returns one class label drawn by weight without changing the
// ensemble.
func (f *Filter) DrawClass() int { return f.class.values[f.drawIndex(AxisClass)] }

// DrawRotation returns one rotation drawn by weight.
func (f *Filter) DrawRotation() quat.Number { return f.rot.values[f.drawIndex(AxisRotation)] }

// DrawTranslation returns one translation drawn by weight.
func (f *Filter) DrawTranslation() r2.Vec { return f.trans.values[f.drawIndex(AxisTranslation)] }

// DrawDefocus returns one defocus factor drawn by weight.
func (f *Filter) DrawDefocus() float64 { return f.def.values[f.drawIndex(AxisDefocus)] }

// Draw returns an independent weighted draw from every axis.
func (f *Filter) Draw() Estimate {
	return Estimate{
		Class:       f.DrawClass(),
		Rotation:    f.DrawRotation(),
		Translation: f.DrawTranslation(),
		Defocus:     f.DrawDefocus(),
	}
}
