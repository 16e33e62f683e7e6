package particle

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// WeightSet carries the primary and auxiliary weights of one axis. The
// primary weights are normalized by Normalize; the auxiliary weights are a
// free per-sample score owned by the caller.
type WeightSet struct {
	w []float64
	u []float64
}

func newWeightSet(n int) WeightSet {
	ws := WeightSet{w: make([]float64, n), u: make([]float64, n)}
	ws.balance()
	for i := range ws.u {
		ws.u[i] = 1
	}
	return ws
}

// Len returns the number of samples.
func (ws *WeightSet) Len() int { return len(ws.w) }

func (ws *WeightSet) check(i int) {
	if i < 0 || i >= len(ws.w) {
		fail(ErrOutOfRange, "index %d not in [0, %d)", i, len(ws.w))
	}
}

func checkWeight(w float64) {
	if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		fail(ErrNegativeWeight, "%g", w)
	}
}

// Weight returns the primary weight of sample i.
func (ws *WeightSet) Weight(i int) float64 {
	ws.check(i)
	return ws.w[i]
}

// SetWeight assigns the primary weight of sample i.
func (ws *WeightSet) SetWeight(i int, w float64) {
	ws.check(i)
	checkWeight(w)
	ws.w[i] = w
}

// MulWeight multiplies the primary weight of sample i by f.
func (ws *WeightSet) MulWeight(i int, f float64) {
	ws.check(i)
	checkWeight(f)
	ws.w[i] *= f
}

// Aux returns the auxiliary weight of sample i.
func (ws *WeightSet) Aux(i int) float64 {
	ws.check(i)
	return ws.u[i]
}

// SetAux assigns the auxiliary weight of sample i.
func (ws *WeightSet) SetAux(i int, u float64) {
	ws.check(i)
	ws.u[i] = u
}

// Weights returns a copy of the primary weights.
func (ws *WeightSet) Weights() []float64 {
	return append([]float64(nil), ws.w...)
}

// Auxes returns a copy of the auxiliary weights.
func (ws *WeightSet) Auxes() []float64 {
	return append([]float64(nil), ws.u...)
}

// SetWeights replaces every primary weight. len(w) must equal Len.
func (ws *WeightSet) SetWeights(w []float64) {
	if len(w) != len(ws.w) {
		fail(ErrOutOfRange, "got %d weights for %d samples", len(w), len(ws.w))
	}
	for _, v := range w {
		checkWeight(v)
	}
	copy(ws.w, w)
}

// SetAuxes replaces every auxiliary weight. len(u) must equal Len.
func (ws *WeightSet) SetAuxes(u []float64) {
	if len(u) != len(ws.u) {
		fail(ErrOutOfRange, "got %d aux weights for %d samples", len(u), len(ws.u))
	}
	copy(ws.u, u)
}

func (ws *WeightSet) sum() float64 {
	s := floats.Sum(ws.w)
	if !(s > 0) || math.IsInf(s, 0) {
		fail(ErrNonPositiveWeight, "sum %g over %d samples", s, len(ws.w))
	}
	return s
}

func (ws *WeightSet) normalize() {
	floats.Scale(1/ws.sum(), ws.w)
}

// normalized returns the weights scaled to sum 1 without touching the set.
func (ws *WeightSet) normalized() []float64 {
	out := ws.Weights()
	floats.Scale(1/ws.sum(), out)
	return out
}

func (ws *WeightSet) balance() {
	n := float64(len(ws.w))
	for i := range ws.w {
		ws.w[i] = 1 / n
	}
}

// maxIdx returns the first index of the largest weight.
func (ws *WeightSet) maxIdx() int {
	return floats.MaxIdx(ws.w)
}

// Ensemble is the weighted sample set of one axis. Values, weights and
// auxiliary weights always have the same length.
type Ensemble[T any] struct {
	WeightSet
	values []T
	canon  func(T) T
}

func newEnsemble[T any](values []T, canon func(T) T) *Ensemble[T] {
	if len(values) == 0 {
		fail(ErrEmptyEnsemble, "no values")
	}
	e := &Ensemble[T]{WeightSet: newWeightSet(len(values)), values: values, canon: canon}
	if canon != nil {
		for i, v := range e.values {
			e.values[i] = canon(v)
		}
	}
	return e
}

// Value returns sample i.
func (e *Ensemble[T]) Value(i int) T {
	e.check(i)
	return e.values[i]
}

// SetValue replaces sample i. Rotations are re-normalized and class labels
// are range checked on the way in.
func (e *Ensemble[T]) SetValue(i int, v T) {
	e.check(i)
	if e.canon != nil {
		v = e.canon(v)
	}
	e.values[i] = v
}

// Values returns a copy of every sample.
func (e *Ensemble[T]) Values() []T {
	return append([]T(nil), e.values...)
}

// pick rebuilds the ensemble from the given source indices. With uniform set
// the new weights are 1/len(idx); otherwise the source weights are carried.
func (e *Ensemble[T]) pick(idx []int, uniform bool) {
	values := make([]T, len(idx))
	w := make([]float64, len(idx))
	u := make([]float64, len(idx))
	for k, i := range idx {
		values[k] = e.values[i]
		w[k] = e.w[i]
		u[k] = e.u[i]
	}
	e.values, e.w, e.u = values, w, u
	if uniform {
		e.balance()
	}
}

func (e *Ensemble[T]) swap(i, j int) {
	e.values[i], e.values[j] = e.values[j], e.values[i]
	e.w[i], e.w[j] = e.w[j], e.w[i]
	e.u[i], e.u[j] = e.u[j], e.u[i]
}

func (e *Ensemble[T]) weights() *WeightSet { return &e.WeightSet }

func (e *Ensemble[T]) clone() *Ensemble[T] {
	return &Ensemble[T]{
		WeightSet: WeightSet{w: e.Weights(), u: e.Auxes()},
		values:    e.Values(),
		canon:     e.canon,
	}
}

// axisEnsemble is the type-erased view the Filter uses for operations that
// do not look at sample values.
type axisEnsemble interface {
	Len() int
	weights() *WeightSet
	pick(idx []int, uniform bool)
	swap(i, j int)
}
