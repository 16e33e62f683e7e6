package particle

import (
	"math/rand/v2"
	"sort"

	"github.com/banshee-data/particle.refine/internal/orientation"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

// Symmetry is the read-only point-group description shared across filters.
// Operator 0 must be the identity.
type Symmetry interface {
	// NumOps returns the number of symmetry operators.
	NumOps() int
	// Apply returns the orientation equivalent to q under operator i.
	Apply(i int, q quat.Number) quat.Number
}

// Estimate is one value per axis: a rank-1 point estimate or a random draw.
type Estimate struct {
	Class       int
	Rotation    quat.Number
	Translation r2.Vec
	Defocus     float64
}

// RotationSpread holds the fitted rotation concentrations. In 2D all three
// equal the von Mises κ. In 3D K1 <= K2 <= K3 are the inverse tangent
// variances along Axes, the principal directions of the spread around Mean.
type RotationSpread struct {
	K1, K2, K3 float64
	Axes       [3]r3.Vec
	Mean       quat.Number
}

// TranslationSpread is an anisotropic 2D Gaussian.
type TranslationSpread struct {
	S0, S1 float64
	Rho    float64
}

// Spread bundles the fitted distribution parameters of all axes.
type Spread struct {
	Rotation    RotationSpread
	Translation TranslationSpread
	Defocus     float64
}

// Options configures New.
type Options struct {
	Mode     Mode
	Counts   Counts
	TransS   float64    // sigma of the translation prior
	Symmetry Symmetry   // optional; used in Mode3D only
	Rand     *rand.Rand // caller-seeded source, owned by this Filter afterwards
	Config   *Config    // nil selects DefaultConfig
}

// Filter is the particle filter of a single observation.
type Filter struct {
	mode   Mode
	cfg    Config
	transS float64
	sym    Symmetry
	rng    *rand.Rand
	nC     int

	class *Ensemble[int]
	rot   *Ensemble[quat.Number]
	trans *Ensemble[r2.Vec]
	def   *Ensemble[float64]

	spread Spread

	peak    [numAxes]float64
	peakRef [numAxes]float64

	top     Estimate
	topPrev Estimate

	score float64
}

// New builds a Filter and draws its ensembles from the uniform priors.
func New(opts Options) *Filter {
	if opts.Mode != Mode2D && opts.Mode != Mode3D {
		fail(ErrWrongMode, "unknown mode %d", int(opts.Mode))
	}
	if opts.Rand == nil {
		fail(ErrNilRand, "Options.Rand is required")
	}
	if !(opts.TransS > 0) {
		fail(ErrInvalidParameter, "translation sigma %g must be positive", opts.TransS)
	}
	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}

	f := &Filter{
		mode:   opts.Mode,
		cfg:    cfg,
		transS: opts.TransS,
		rng:    opts.Rand,
	}
	if opts.Mode == Mode3D {
		f.sym = opts.Symmetry
	}
	f.Reset(opts.Counts)
	return f
}

// Mode returns the rotation mode.
func (f *Filter) Mode() Mode { return f.mode }

// Config returns the tunables the Filter was built with.
func (f *Filter) Config() Config { return f.cfg }

// Symmetry returns the shared symmetry handle, nil when none was given.
func (f *Filter) Symmetry() Symmetry { return f.sym }

// TransS returns the translation prior sigma.
func (f *Filter) TransS() float64 { return f.transS }

// NumClasses returns nC, the number of class labels.
func (f *Filter) NumClasses() int { return f.nC }

// Count returns the current ensemble size of an axis.
func (f *Filter) Count(a Axis) int { return f.axis(a).Len() }

// Counts returns the current ensemble sizes.
func (f *Filter) Counts() Counts {
	return Counts{C: f.class.Len(), R: f.rot.Len(), T: f.trans.Len(), D: f.def.Len()}
}

// Class gives read/write access to the class ensemble.
func (f *Filter) Class() *Ensemble[int] { return f.class }

// Rotations gives read/write access to the rotation ensemble.
func (f *Filter) Rotations() *Ensemble[quat.Number] { return f.rot }

// Translations gives read/write access to the translation ensemble.
func (f *Filter) Translations() *Ensemble[r2.Vec] { return f.trans }

// Defoci gives read/write access to the defocus ensemble.
func (f *Filter) Defoci() *Ensemble[float64] { return f.def }

func (f *Filter) axis(a Axis) axisEnsemble {
	switch a {
	case AxisClass:
		return f.class
	case AxisRotation:
		return f.rot
	case AxisTranslation:
		return f.trans
	case AxisDefocus:
		return f.def
	}
	a.check()
	return nil
}

// Weights returns the weight view of an axis for callers that do not care
// about the sample type, e.g. a likelihood pass assigning weights by index.
func (f *Filter) Weights(a Axis) *WeightSet { return f.axis(a).weights() }

func (f *Filter) classCanon(c int) int {
	if c < 0 || c >= f.nC {
		fail(ErrOutOfRange, "class %d not in [0, %d)", c, f.nC)
	}
	return c
}

func (f *Filter) rotationCanon(q quat.Number) quat.Number {
	if f.mode == Mode2D {
		return orientation.Normalize(quat.Number{Real: q.Real, Imag: q.Imag})
	}
	return orientation.Normalize(q)
}

// Reset redraws every ensemble from the uniform priors: uniform class labels,
// rotations uniform over S¹ or S³ (folded into the symmetry's fundamental
// domain around the identity in 3D), an isotropic Gaussian of sigma TransS
// for translation and N(1, DefocusInitSigma) for defocus.
func (f *Filter) Reset(counts Counts) {
	counts.validate()
	f.nC = counts.C

	labels := make([]int, counts.C)
	for i := range labels {
		labels[i] = i
	}
	f.class = newEnsemble(labels, f.classCanon)

	rots := make([]quat.Number, counts.R)
	for i := range rots {
		if f.mode == Mode2D {
			rots[i] = orientation.UniformPlanar(f.rng)
		} else {
			rots[i] = orientation.Uniform(f.rng)
		}
	}
	f.rot = newEnsemble(rots, f.rotationCanon)

	gauss := distuv.Normal{Mu: 0, Sigma: f.transS, Src: f.rng}
	ts := make([]r2.Vec, counts.T)
	for i := range ts {
		ts[i] = r2.Vec{X: gauss.Rand(), Y: gauss.Rand()}
	}
	f.trans = newEnsemble(ts, nil)

	ds := make([]float64, counts.D)
	if f.cfg.DefocusInitSigma > 0 {
		dGauss := distuv.Normal{Mu: 1, Sigma: f.cfg.DefocusInitSigma, Src: f.rng}
		for i := range ds {
			ds[i] = dGauss.Rand()
		}
	} else {
		for i := range ds {
			ds[i] = 1
		}
	}
	f.def = newEnsemble(ds, nil)

	f.SetSpread(Spread{
		Translation: TranslationSpread{S0: f.transS, S1: f.transS},
		Defocus:     f.cfg.DefocusInitSigma,
	})
	f.top = Estimate{Class: 0, Rotation: orientation.Identity, Defocus: 1}
	f.topPrev = f.top
	f.ResetPeakFactor()

	if f.mode == Mode3D && f.sym != nil {
		anchor := orientation.Identity
		f.Symmetrise(&anchor)
	}
	f.Fit(AxisRotation)
	f.CalScore()
}

func defaultAxes() [3]r3.Vec {
	return [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
}

// Load seeds the ensembles around a point estimate. Every axis is filled with
// copies of the seed value and then spread by the perturbation noise model at
// peak factor 1. The class axis keeps all nC labels with the whole weight on
// seed.Class.
func (f *Filter) Load(counts Counts, seed Estimate, spread Spread) {
	counts.validate()
	if seed.Class < 0 || seed.Class >= counts.C {
		fail(ErrOutOfRange, "seed class %d not in [0, %d)", seed.Class, counts.C)
	}
	f.nC = counts.C

	labels := make([]int, counts.C)
	for i := range labels {
		labels[i] = i
	}
	f.class = newEnsemble(labels, f.classCanon)
	for i := range f.class.w {
		f.class.w[i] = 0
	}
	f.class.w[seed.Class] = 1

	q := f.rotationCanon(seed.Rotation)
	rots := make([]quat.Number, counts.R)
	for i := range rots {
		rots[i] = q
	}
	f.rot = newEnsemble(rots, f.rotationCanon)

	ts := make([]r2.Vec, counts.T)
	for i := range ts {
		ts[i] = seed.Translation
	}
	f.trans = newEnsemble(ts, nil)

	ds := make([]float64, counts.D)
	for i := range ds {
		ds[i] = seed.Defocus
	}
	f.def = newEnsemble(ds, nil)

	f.SetSpread(spread)
	f.spread.Rotation.Mean = q

	f.top = Estimate{Class: seed.Class, Rotation: q, Translation: seed.Translation, Defocus: seed.Defocus}
	f.topPrev = f.top
	f.ResetPeakFactor()

	f.Perturb(AxisRotation, 1)
	f.Perturb(AxisTranslation, 1)
	f.Perturb(AxisDefocus, 1)
	f.CalScore()
}

// Spread returns the current distribution parameters.
func (f *Filter) Spread() Spread { return f.spread }

// SetSpread replaces the distribution parameters, clamping them the same way
// Fit does. Zero rotation axes select the coordinate axes.
func (f *Filter) SetSpread(s Spread) {
	if s.Rotation.Axes == ([3]r3.Vec{}) {
		s.Rotation.Axes = defaultAxes()
	}
	if s.Rotation.Mean == (quat.Number{}) {
		s.Rotation.Mean = orientation.Identity
	}
	s.Rotation.K1 = f.clampConcentration(s.Rotation.K1)
	s.Rotation.K2 = f.clampConcentration(s.Rotation.K2)
	s.Rotation.K3 = f.clampConcentration(s.Rotation.K3)
	s.Translation.S0 = floor(s.Translation.S0, f.cfg.MinTranslationSigma)
	s.Translation.S1 = floor(s.Translation.S1, f.cfg.MinTranslationSigma)
	s.Translation.Rho = f.clampRho(s.Translation.Rho)
	s.Defocus = floor(s.Defocus, f.cfg.MinDefocusSigma)
	f.spread = s
}

// Normalize rescales the weights of an axis to sum 1. A non-positive sum is a
// programmer error: the caller must supply at least one informative weight.
func (f *Filter) Normalize(a Axis) {
	f.axis(a).weights().normalize()
}

// NormalizeAll normalizes every axis.
func (f *Filter) NormalizeAll() {
	for _, a := range Axes {
		f.Normalize(a)
	}
}

// Neff returns the effective sample size 1/Σw² of the normalized weights.
func (f *Filter) Neff(a Axis) float64 {
	w := f.axis(a).weights().normalized()
	return 1 / floats.Dot(w, w)
}

// Sort keeps the n highest-weight samples of an axis (stable for ties) and
// re-normalizes them.
func (f *Filter) Sort(a Axis, n int) {
	e := f.axis(a)
	if n < 1 || n > e.Len() {
		fail(ErrInvalidCount, "keep %d of %d %s samples", n, e.Len(), a)
	}
	w := e.weights().w
	idx := make([]int, len(w))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return w[idx[i]] > w[idx[j]] })
	e.pick(idx[:n], false)
	e.weights().normalize()
}

// Shuffle permutes the samples of an axis, keeping each value with its weights.
func (f *Filter) Shuffle(a Axis) {
	e := f.axis(a)
	f.rng.Shuffle(e.Len(), e.swap)
}

// BalanceWeight resets the weights of an axis to 1/n.
func (f *Filter) BalanceWeight(a Axis) {
	f.axis(a).weights().balance()
}

// Clone returns a deep copy of the Filter. The copy shares the Symmetry
// handle and owns a new random stream seeded with two draws from this
// Filter's stream, so cloning advances the source stream.
func (f *Filter) Clone() *Filter {
	c := *f
	c.rng = rand.New(rand.NewPCG(f.rng.Uint64(), f.rng.Uint64()))
	c.class = f.class.clone()
	c.class.canon = c.classCanon
	c.rot = f.rot.clone()
	c.rot.canon = c.rotationCanon
	c.trans = f.trans.clone()
	c.def = f.def.clone()
	return &c
}

func floor(v, min float64) float64 {
	if !(v >= min) {
		return min
	}
	return v
}
