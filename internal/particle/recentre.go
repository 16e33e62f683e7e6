package particle

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat/distuv"
)

// ReCentre resets to the origin every translation sample lying outside the
// (1 − TransQ) confidence ellipse centred on the origin. The ellipse has the
// fitted translation shape with each sigma floored at the prior TransS, so a
// tight fit around an off-centre offset does not throw its own samples away.
// The prior sigma is what bounds drift: a sample is only pulled back once it
// is implausible under the TransS Gaussian as well as under the fit.
func (f *Filter) ReCentre() {
	t := f.spread.Translation
	s0, s1 := math.Max(t.S0, f.transS), math.Max(t.S1, f.transS)
	limit := distuv.ChiSquared{K: 2}.Quantile(1 - f.cfg.TransQ)
	det := 1 - t.Rho*t.Rho
	for i, v := range f.trans.values {
		x, y := v.X/s0, v.Y/s1
		d2 := (x*x - 2*t.Rho*x*y + y*y) / det
		if d2 > limit || math.IsNaN(d2) {
			f.trans.values[i] = r2.Vec{}
		}
	}
}
