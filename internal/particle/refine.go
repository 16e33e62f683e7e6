package particle

// Refine runs one round of the filter on an axis whose weights the caller has
// just assigned:
//
//	normalize → rank-1 → symmetrise (3D rotation) → fit → peak factor →
//	resample(n) → perturb → re-centre (translation)
//
// It returns Diff(a) and refreshes Score.
func (f *Filter) Refine(a Axis, n int) float64 {
	f.Normalize(a)
	f.UpdateRank1(a)
	if a == AxisRotation && f.mode == Mode3D {
		f.Symmetrise(nil)
	}
	f.Fit(a)
	pf := f.SetPeakFactor(a)
	f.Resample(a, n)
	f.Perturb(a, pf)
	if a == AxisTranslation {
		f.ReCentre()
	}
	f.CalScore()
	return f.Diff(a)
}

// Snapshot is a value copy of the per-observation summary: the state that
// diagnostics record every round.
type Snapshot struct {
	Mode        Mode
	Counts      Counts
	Rank1       Estimate
	Rank1Prev   Estimate
	Diffs       [numAxes]float64 // indexed by Axis
	Spread      Spread
	PeakFactors [numAxes]float64 // indexed by Axis
	Score       float64
}

// Diff returns the recorded diff of one axis.
func (s Snapshot) Diff(a Axis) float64 {
	a.check()
	return s.Diffs[a]
}

// Snapshot captures the current summary.
func (f *Filter) Snapshot() Snapshot {
	s := Snapshot{
		Mode:        f.mode,
		Counts:      f.Counts(),
		Rank1:       f.top,
		Rank1Prev:   f.topPrev,
		Spread:      f.spread,
		PeakFactors: f.peak,
		Score:       f.score,
	}
	for _, a := range Axes {
		s.Diffs[a] = f.Diff(a)
	}
	return s
}
