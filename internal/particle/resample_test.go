package particle

import (
	"testing"

	"github.com/banshee-data/particle.refine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
)

func TestResampleContract(t *testing.T) {
	t.Parallel()

	for _, mode := range []Mode{Mode2D, Mode3D} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()
			rng := testutil.NewRand(11)
			f := newTestFilter(t, mode, Counts{C: 1, R: 60, T: 60, D: 1}, nil)
			r := f.Rotations()
			w := make([]float64, r.Len())
			for i := range w {
				w[i] = rng.Float64()
			}
			r.SetWeights(w)
			f.Normalize(AxisRotation)

			before := make(map[quat.Number]bool)
			for _, q := range r.Values() {
				before[q] = true
			}
			for _, n := range []int{1, 17, 60, 250} {
				g := f.Clone()
				g.Resample(AxisRotation, n)
				require.Equal(t, n, g.Count(AxisRotation))
				for i := 0; i < n; i++ {
					assert.Equal(t, 1/float64(n), g.Rotations().Weight(i))
					assert.True(t, before[g.Rotations().Value(i)], "value %d not from the source set", i)
				}
				testutil.AssertUnit(t, g.Rotations().Values(), 1e-12)
			}
		})
	}
}

func TestResampleFrequencyFollowsWeight(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode2D, Counts{C: 1, R: 1, T: 1, D: 4}, nil)
	d := f.Defoci()
	for i := 0; i < 4; i++ {
		d.SetValue(i, float64(i))
	}
	d.SetWeights([]float64{0.1, 0.2, 0, 0.7})
	f.Resample(AxisDefocus, 1000)

	counts := make(map[float64]int)
	for _, v := range d.Values() {
		counts[v]++
	}
	assert.Zero(t, counts[2], "zero-weight sample selected")
	assert.InDelta(t, 100, counts[0], 1.5)
	assert.InDelta(t, 200, counts[1], 1.5)
	assert.InDelta(t, 700, counts[3], 1.5)
}

func TestResampleCarriesAux(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode2D, Counts{C: 1, R: 1, T: 3, D: 1}, nil)
	tr := f.Translations()
	tr.SetAuxes([]float64{10, 20, 30})
	tr.SetWeights([]float64{0, 1, 0})
	f.Resample(AxisTranslation, 5)
	assert.Equal(t, []float64{20, 20, 20, 20, 20}, tr.Auxes())
}

func TestResampleRejectsZeroCount(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode2D, Counts{C: 1, R: 3, T: 3, D: 1}, nil)
	requirePanicsIs(t, ErrInvalidCount, func() { f.Resample(AxisRotation, 0) })
	requirePanicsIs(t, ErrInvalidCount, func() { f.Resample(AxisTranslation, -3) })
}

// All weight on one rotation and one translation sample: the
// resampled rotation ensemble must be that single value.
func TestEndToEndSingleWeightedSample(t *testing.T) {
	t.Parallel()

	for _, mode := range []Mode{Mode2D, Mode3D} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()
			f := newTestFilter(t, mode, Counts{C: 1, R: 100, T: 100, D: 1}, nil)
			require.Equal(t, 2.0, f.TransS())

			const ri, ti = 37, 81
			want := f.Rotations().Value(ri)
			f.Rotations().SetWeights(oneHot(100, ri))
			f.Translations().SetWeights(oneHot(100, ti))
			f.NormalizeAll()
			f.UpdateRank1All()
			assert.Equal(t, want, f.Rank1Rotation())
			assert.Equal(t, f.Translations().Value(ti), f.Rank1Translation())

			f.Resample(AxisRotation, 50)
			require.Equal(t, 50, f.Count(AxisRotation))
			for i, q := range f.Rotations().Values() {
				assert.Equal(t, want, q, "sample %d", i)
			}
		})
	}
}

func TestDrawIsNonMutating(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode3D, Counts{C: 3, R: 10, T: 10, D: 10}, nil)
	f.Class().SetWeights([]float64{0, 0, 1})
	f.Defoci().SetWeights(oneHot(10, 4))
	before := f.Snapshot()
	beforeDefoci := f.Defoci().Values()

	for i := 0; i < 50; i++ {
		e := f.Draw()
		assert.Equal(t, 2, e.Class)
		assert.Equal(t, beforeDefoci[4], e.Defocus)
	}
	assert.Equal(t, before, f.Snapshot())
	assert.Equal(t, beforeDefoci, f.Defoci().Values())
}

func TestDrawFrequency(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode2D, Counts{C: 2, R: 1, T: 1, D: 1}, nil)
	f.Class().SetWeights([]float64{1, 3})
	var ones int
	const n = 20000
	for i := 0; i < n; i++ {
		ones += f.DrawClass()
	}
	assert.InDelta(t, 0.75, float64(ones)/n, 0.02)
}
