// Package particle implements the per-observation particle filter used during
// iterative structure refinement.
//
// A Filter keeps four independent weighted ensembles for one observation:
// class label, rotation (planar direction or unit quaternion), 2D translation
// and defocus factor. Each refinement round the caller assigns weights from an
// external likelihood pass, then runs, per axis:
//
//	Normalize → UpdateRank1 → Symmetrise (3D rotation) → Fit → SetPeakFactor
//	→ Resample → Perturb → ReCentre (translation)
//
// Refine performs that sequence for one axis.
//
// Responsibilities: ensemble storage, systematic resampling, directional
// statistics on S¹/S³, symmetry folding, perturbation with an annealed peak
// factor, translation re-centring and rank-1 tracking.
//
// A Filter is not safe for concurrent use. Parallelism comes from running one
// Filter per observation; only the Symmetry handle is shared, read-only.
//
// Precondition violations (bad index, zero weight sum, wrong mode) panic with
// an error wrapping one of the Err* sentinels. Numerical trouble such as a
// degenerate covariance is clamped instead.
package particle
