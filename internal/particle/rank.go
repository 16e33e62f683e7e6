package particle

import (
	"math"

	"github.com/banshee-data/particle.refine/internal/orientation"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
)

// UpdateRank1 moves the rank-1 value of an axis to the previous slot and
// takes the highest-weight sample as the new rank-1. Ties resolve to the
// lowest index.
func (f *Filter) UpdateRank1(a Axis) {
	i := f.axis(a).weights().maxIdx()
	switch a {
	case AxisClass:
		f.topPrev.Class = f.top.Class
		f.top.Class = f.class.values[i]
	case AxisRotation:
		f.topPrev.Rotation = f.top.Rotation
		f.top.Rotation = f.rot.values[i]
	case AxisTranslation:
		f.topPrev.Translation = f.top.Translation
		f.top.Translation = f.trans.values[i]
	case AxisDefocus:
		f.topPrev.Defocus = f.top.Defocus
		f.top.Defocus = f.def.values[i]
	}
}

// UpdateRank1All updates every axis.
func (f *Filter) UpdateRank1All() {
	for _, a := range Axes {
		f.UpdateRank1(a)
	}
}

// Diff measures how far the rank-1 value of an axis moved in the last
// UpdateRank1: 0 or 1 for class, the arc between the rotations (acos|<a,b>|
// in 3D, acos<a,b> in 2D), Euclidean distance for translation and absolute
// difference for defocus.
func (f *Filter) Diff(a Axis) float64 {
	switch a {
	case AxisClass:
		if f.top.Class == f.topPrev.Class {
			return 0
		}
		return 1
	case AxisRotation:
		if f.top.Rotation == f.topPrev.Rotation {
			return 0
		}
		if f.mode == Mode2D {
			return orientation.PlanarAngleBetween(f.top.Rotation, f.topPrev.Rotation)
		}
		return orientation.Angle(f.top.Rotation, f.topPrev.Rotation)
	case AxisTranslation:
		return r2.Norm(r2.Sub(f.top.Translation, f.topPrev.Translation))
	case AxisDefocus:
		return math.Abs(f.top.Defocus - f.topPrev.Defocus)
	}
	a.check()
	return 0
}

// Rank1 returns the current rank-1 value of every axis.
func (f *Filter) Rank1() Estimate { return f.top }

// Rank1Prev returns the rank-1 values before the last UpdateRank1 of each axis.
func (f *Filter) Rank1Prev() Estimate { return f.topPrev }

// Rank1Class returns the rank-1 class label.
func (f *Filter) Rank1Class() int { return f.top.Class }

// Rank1Rotation returns the rank-1 rotation.
func (f *Filter) Rank1Rotation() quat.Number { return f.top.Rotation }

// Rank1Translation returns the rank-1 translation.
func (f *Filter) Rank1Translation() r2.Vec { return f.top.Translation }

// Rank1Defocus returns the rank-1 defocus factor.
func (f *Filter) Rank1Defocus() float64 { return f.top.Defocus }

// Rank1RotationMatrix returns the rank-1 rotation as a 2×2 or 3×3 matrix.
func (f *Filter) Rank1RotationMatrix() *mat.Dense {
	if f.mode == Mode2D {
		return orientation.Matrix2(f.top.Rotation)
	}
	return orientation.Matrix3(f.top.Rotation)
}
