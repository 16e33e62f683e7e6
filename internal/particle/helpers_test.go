package particle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/banshee-data/particle.refine/internal/testutil"
	"github.com/stretchr/testify/require"
)

func newTestFilter(t testing.TB, mode Mode, counts Counts, sym Symmetry) *Filter {
	t.Helper()
	return New(Options{
		Mode:     mode,
		Counts:   counts,
		TransS:   2,
		Symmetry: sym,
		Rand:     testutil.NewRand(testutil.DefaultSeed),
	})
}

// requirePanicsIs asserts fn panics with an error wrapping target.
func requirePanicsIs(t *testing.T, target error, fn func()) {
	t.Helper()
	var got interface{}
	func() {
		defer func() { got = recover() }()
		fn()
	}()
	require.NotNil(t, got, "expected a panic wrapping %v", target)
	err, ok := got.(error)
	require.True(t, ok, "panic value %v is not an error", got)
	require.True(t, errors.Is(err, target), "panic %q does not wrap %q", err, target)
}

func oneHot(n, i int) []float64 {
	w := make([]float64, n)
	w[i] = 1
	return w
}

func ExampleFilter_Refine() {
	f := New(Options{
		Mode:   Mode2D,
		Counts: Counts{C: 1, R: 10, T: 10, D: 1},
		TransS: 2,
		Rand:   testutil.NewRand(1),
	})
	f.Rotations().SetWeights(oneHot(10, 3))
	f.Refine(AxisRotation, 10)
	fmt.Println(f.Count(AxisRotation), f.Rank1Rotation() == f.Rank1Prev().Rotation)
	// Output: 10 false
}
