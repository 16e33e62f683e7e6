package particle

import (
	"testing"

	"github.com/banshee-data/particle.refine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestNormalizeSumsToOne(t *testing.T) {
	t.Parallel()

	rng := testutil.NewRand(3)
	f := newTestFilter(t, Mode3D, Counts{C: 3, R: 50, T: 40, D: 7}, nil)
	for trial := 0; trial < 20; trial++ {
		for _, a := range Axes {
			ws := f.Weights(a)
			w := make([]float64, ws.Len())
			for i := range w {
				if rng.Float64() < 0.3 {
					continue
				}
				w[i] = rng.ExpFloat64() * 1e3
			}
			w[rng.IntN(len(w))] = 0.5
			ws.SetWeights(w)
			f.Normalize(a)
			testutil.AssertSumsTo(t, ws.Weights(), 1, 1e-12)
		}
	}
}

func TestNormalizeRejectsZeroSum(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode2D, Counts{C: 1, R: 4, T: 4, D: 4}, nil)
	f.Defoci().SetWeights(make([]float64, 4))
	requirePanicsIs(t, ErrNonPositiveWeight, func() { f.Normalize(AxisDefocus) })
}

func TestEnsembleIndexChecks(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode2D, Counts{C: 2, R: 4, T: 4, D: 4}, nil)
	tests := []struct {
		name string
		fn   func()
	}{
		{"value negative", func() { f.Rotations().Value(-1) }},
		{"value past end", func() { f.Translations().Value(4) }},
		{"set weight", func() { f.Defoci().SetWeight(9, 1) }},
		{"aux", func() { f.Class().Aux(2) }},
		{"set weights length", func() { f.Class().SetWeights([]float64{1}) }},
		{"class label", func() { f.Class().SetValue(0, 2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requirePanicsIs(t, ErrOutOfRange, tt.fn)
		})
	}
	requirePanicsIs(t, ErrNegativeWeight, func() { f.Defoci().SetWeight(0, -1) })
}

func TestRotationSetterNormalizes(t *testing.T) {
	t.Parallel()

	f3 := newTestFilter(t, Mode3D, Counts{C: 1, R: 2, T: 1, D: 1}, nil)
	f3.Rotations().SetValue(0, quat.Number{Real: 2, Jmag: 2})
	testutil.AssertUnit(t, f3.Rotations().Values(), 1e-12)

	f2 := newTestFilter(t, Mode2D, Counts{C: 1, R: 2, T: 1, D: 1}, nil)
	f2.Rotations().SetValue(1, quat.Number{Real: 3, Imag: 4, Kmag: 7})
	q := f2.Rotations().Value(1)
	assert.InDelta(t, 0.6, q.Real, 1e-12)
	assert.InDelta(t, 0.8, q.Imag, 1e-12)
	assert.Zero(t, q.Kmag)
}

func TestAuxWeightsAreIndependent(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode2D, Counts{C: 1, R: 3, T: 3, D: 1}, nil)
	tr := f.Translations()
	assert.Equal(t, []float64{1, 1, 1}, tr.Auxes())

	tr.SetAuxes([]float64{5, -2, 7})
	tr.SetWeights([]float64{1, 1, 2})
	f.Normalize(AxisTranslation)
	assert.Equal(t, []float64{5, -2, 7}, tr.Auxes())
	assert.InDelta(t, 0.5, tr.Weight(2), 1e-12)

	tr.MulWeight(0, 2)
	assert.InDelta(t, 0.5, tr.Weight(0), 1e-12)
}

func TestValuesReturnsCopy(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode2D, Counts{C: 1, R: 3, T: 3, D: 1}, nil)
	vs := f.Translations().Values()
	vs[0] = r2.Vec{X: 100}
	assert.NotEqual(t, r2.Vec{X: 100}, f.Translations().Value(0))

	w := f.Translations().Weights()
	w[0] = 42
	assert.NotEqual(t, 42.0, f.Translations().Weight(0))
}

func TestSortKeepsHeaviest(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode2D, Counts{C: 1, R: 5, T: 5, D: 5}, nil)
	d := f.Defoci()
	for i := 0; i < 5; i++ {
		d.SetValue(i, float64(i))
	}
	d.SetWeights([]float64{0.1, 0.4, 0.1, 0.3, 0.1})
	f.Sort(AxisDefocus, 3)

	require.Equal(t, 3, d.Len())
	// Stable order for the tie at 0.1 keeps index 0 first.
	assert.Equal(t, []float64{1, 3, 0}, d.Values())
	testutil.AssertSumsTo(t, d.Weights(), 1, 1e-12)
	assert.InDelta(t, 0.5, d.Weight(0), 1e-12)

	requirePanicsIs(t, ErrInvalidCount, func() { f.Sort(AxisDefocus, 0) })
	requirePanicsIs(t, ErrInvalidCount, func() { f.Sort(AxisDefocus, 4) })
}

func TestShuffleKeepsPairs(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode2D, Counts{C: 1, R: 4, T: 4, D: 8}, nil)
	d := f.Defoci()
	for i := 0; i < 8; i++ {
		d.SetValue(i, float64(i))
		d.SetWeight(i, float64(i+1))
		d.SetAux(i, float64(-i))
	}
	f.Shuffle(AxisDefocus)
	for i := 0; i < 8; i++ {
		v := d.Value(i)
		assert.Equal(t, v+1, d.Weight(i))
		assert.Equal(t, -v, d.Aux(i))
	}
}

func TestNeffAndBalance(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode2D, Counts{C: 1, R: 4, T: 4, D: 4}, nil)
	assert.InDelta(t, 4, f.Neff(AxisTranslation), 1e-12)

	f.Translations().SetWeights(oneHot(4, 2))
	assert.InDelta(t, 1, f.Neff(AxisTranslation), 1e-12)

	f.BalanceWeight(AxisTranslation)
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, f.Translations().Weights())
}
