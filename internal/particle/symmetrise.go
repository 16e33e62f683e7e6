package particle

import (
	"math"

	"github.com/banshee-data/particle.refine/internal/orientation"
	"gonum.org/v1/gonum/num/quat"
)

// symmetriseGain is the improvement in |<q, anchor>| an operator must bring
// before it replaces the current representative.
const symmetriseGain = 1e-12

// Symmetrise folds every rotation sample into the fundamental domain around
// anchor, or around the current rank-1 rotation when anchor is nil: each
// sample is replaced by the symmetry-equivalent orientation closest to the
// anchor and sign-aligned with it. Running it twice changes nothing.
//
// Only valid in Mode3D. Without a symmetry it is a no-op.
func (f *Filter) Symmetrise(anchor *quat.Number) {
	if f.mode != Mode3D {
		fail(ErrWrongMode, "symmetrise requires 3d rotations, have %s", f.mode)
	}
	if f.sym == nil {
		return
	}
	ref := f.top.Rotation
	if anchor != nil {
		ref = orientation.Normalize(*anchor)
	}
	for i, q := range f.rot.values {
		best, bestDot := q, math.Abs(orientation.Dot(q, ref))
		replaced := false
		for k := 1; k < f.sym.NumOps(); k++ {
			p := f.sym.Apply(k, q)
			if d := math.Abs(orientation.Dot(p, ref)); d > bestDot+symmetriseGain {
				best, bestDot, replaced = p, d, true
			}
		}
		if replaced {
			best = orientation.Normalize(best)
		}
		f.rot.values[i] = orientation.AlignSign(best, ref)
	}
}
