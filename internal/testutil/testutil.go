// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/num/quat"
)

// DefaultSeed is the seed used by tests that do not care which stream they get.
const DefaultSeed = 20240611

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewRand returns a deterministic PCG-backed source.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// AssertSumsTo fails the test if the values do not add up to want within tol.
func AssertSumsTo(t testing.TB, values []float64, want, tol float64) {
	t.Helper()
	if got := floats.Sum(values); math.Abs(got-want) > tol {
		t.Errorf("sum = %.17g, want %g ± %g", got, want, tol)
	}
}

// AssertUnit fails the test if any quaternion is not of unit norm within tol.
func AssertUnit(t testing.TB, qs []quat.Number, tol float64) {
	t.Helper()
	for i, q := range qs {
		if n := quat.Abs(q); math.Abs(n-1) > tol {
			t.Errorf("quaternion %d has norm %.17g", i, n)
			return
		}
	}
}

// TempFile returns a path inside a per-test temporary directory.
func TempFile(t testing.TB, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}
