package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/particle.refine/internal/diagplot"
	"github.com/banshee-data/particle.refine/internal/diagstore"
	"github.com/banshee-data/particle.refine/internal/fsutil"
	"github.com/banshee-data/particle.refine/internal/monitoring"
	"github.com/banshee-data/particle.refine/internal/orientation"
	"github.com/banshee-data/particle.refine/internal/particle"
	"github.com/banshee-data/particle.refine/internal/symmetry"
	"github.com/banshee-data/particle.refine/internal/timeutil"
)

// Result summarises a finished simulation.
type Result struct {
	RunID     string
	DBPath    string // empty when the database was temporary
	Summaries []diagstore.RoundSummary
	Final     []ObservationResult
	Outputs   []string // plots and dumps written
	Elapsed   time.Duration
}

// clock stamps the run and times it.
var clock timeutil.Clock = timeutil.RealClock{}

// ObservationResult compares the final rank-1 estimate of one observation
// with its ground truth.
type ObservationResult struct {
	Observation      int
	ClassCorrect     bool
	RotationError    float64 // radians, folded by the point group
	TranslationError float64
	DefocusError     float64
}

// Run builds one filter per observation, refines every axis for cfg.Rounds
// rounds and records a snapshot of each observation after every round.
func Run(ctx context.Context, cfg Config, tuning particle.Config) (*Result, error) {
	return run(ctx, cfg, tuning, fsutil.OS{})
}

// run writes the HTML chart and the dumps through out. PNG plots always go to
// the host filesystem.
func run(ctx context.Context, cfg Config, tuning particle.Config, out fsutil.FS) (*Result, error) {
	mode, err := particle.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if cfg.Observations <= 0 || cfg.Rounds <= 0 {
		return nil, fmt.Errorf("observations (%d) and rounds (%d) must be positive", cfg.Observations, cfg.Rounds)
	}
	var group *symmetry.Group
	if cfg.Symmetry != "" {
		if mode != particle.Mode3D {
			return nil, errors.New("-sym is only valid with -mode 3d")
		}
		if group, err = symmetry.Parse(cfg.Symmetry); err != nil {
			return nil, err
		}
	}

	start := clock.Now()
	res := &Result{DBPath: cfg.DBPath}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dir, err := os.MkdirTemp("", "pfsim-*")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)
		dbPath = filepath.Join(dir, "diag.db")
	}
	store, err := diagstore.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	store.SetClock(clock)

	res.RunID, err = store.CreateRun(diagstore.RunInfo{
		Mode:         mode,
		Symmetry:     cfg.Symmetry,
		Observations: cfg.Observations,
		Rounds:       cfg.Rounds,
		Seed:         cfg.Seed,
		Notes:        fmt.Sprintf("nc=%d nr=%d nt=%d nd=%d trans_s=%g", cfg.NC, cfg.NR, cfg.NT, cfg.ND, cfg.TransS),
	})
	if err != nil {
		return nil, err
	}
	monitoring.Logf("pfsim: run %s mode=%s sym=%q observations=%d rounds=%d", res.RunID, mode, cfg.Symmetry, cfg.Observations, cfg.Rounds)

	obs, err := newObservations(cfg, mode, group, tuning)
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	snaps := make([]particle.Snapshot, len(obs))
	for round := 0; round < cfg.Rounds; round++ {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, o := range obs {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				s, err := o.step()
				snaps[i] = s
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("round %d: %w", round, err)
		}

		// SQLite has a single writer; record after the round has joined.
		for i, s := range snaps {
			if err := store.RecordSnapshot(res.RunID, i, round, s); err != nil {
				return nil, err
			}
		}
		monitoring.Debugf("pfsim: round %d rotation diff %.4g score %.4g", round, meanOf(snaps, func(s particle.Snapshot) float64 {
			return s.Diff(particle.AxisRotation)
		}), meanOf(snaps, func(s particle.Snapshot) float64 { return s.Score }))
	}

	if res.Summaries, err = store.RoundSummaries(res.RunID); err != nil {
		return nil, err
	}
	for _, o := range obs {
		res.Final = append(res.Final, o.evaluate())
	}

	if cfg.PNGDir != "" {
		paths, err := diagplot.WriteConvergencePNG(cfg.PNGDir, res.Summaries)
		if err != nil {
			return nil, err
		}
		res.Outputs = append(res.Outputs, paths...)
	}
	if cfg.HTMLPath != "" {
		if err := writeHTML(out, cfg.HTMLPath, res); err != nil {
			return nil, err
		}
		res.Outputs = append(res.Outputs, cfg.HTMLPath)
	}
	if cfg.DumpDir != "" {
		paths, err := writeDumps(out, cfg.DumpDir, obs)
		if err != nil {
			return nil, err
		}
		res.Outputs = append(res.Outputs, paths...)
	}
	res.Elapsed = clock.Since(start)
	return res, nil
}

func meanOf(snaps []particle.Snapshot, f func(particle.Snapshot) float64) float64 {
	sum := 0.0
	for _, s := range snaps {
		sum += f(s)
	}
	return sum / float64(len(snaps))
}

func writeHTML(out fsutil.FS, path string, res *Result) error {
	if err := out.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := out.Create(path)
	if err != nil {
		return err
	}
	if err := diagplot.WriteConvergenceHTML(f, "pfsim run "+res.RunID, res.Summaries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeDumps(out fsutil.FS, dir string, obs []*observation) ([]string, error) {
	if err := out.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, o := range obs {
		path := filepath.Join(dir, fmt.Sprintf("obs_%04d.txt", o.id))
		f, err := out.Create(path)
		if err != nil {
			return nil, err
		}
		if err := o.f.WriteText(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("dump observation %d: %w", o.id, err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func printResults(w io.Writer, res *Result) {
	fmt.Fprintf(w, "Run %s (%s)\n", res.RunID, res.Elapsed.Round(time.Millisecond))
	if res.DBPath != "" {
		fmt.Fprintf(w, "Diagnostics: %s\n", res.DBPath)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "round\tclass Δ\trotation Δ\ttranslation Δ\tdefocus Δ\tscore")
	for _, s := range res.Summaries {
		fmt.Fprintf(tw, "%d\t%.3f\t%.4g\t%.4g\t%.4g\t%.4g\n", s.Round, s.ClassChangeRate,
			s.MeanRotationDiff, s.MeanTranslationDiff, s.MeanDefocusDiff, s.MeanScore)
	}
	tw.Flush()

	correct := 0
	var rot, trans, def float64
	for _, f := range res.Final {
		if f.ClassCorrect {
			correct++
		}
		rot += f.RotationError
		trans += f.TranslationError
		def += f.DefocusError
	}
	n := float64(len(res.Final))
	fmt.Fprintf(w, "Final: class %d/%d, mean rotation error %.4f rad, translation %.4f, defocus %.4f\n",
		correct, len(res.Final), rot/n, trans/n, def/n)
	for _, p := range res.Outputs {
		fmt.Fprintf(w, "Wrote %s\n", p)
	}
}

// Widths of the synthetic likelihood on each axis.
const (
	classPenalty     = 3.0
	rotationSigma    = 0.2
	translationSigma = 0.3
	defocusSigma     = 0.02
)

type observation struct {
	id    int
	f     *particle.Filter
	truth particle.Estimate
	group *symmetry.Group
}

func newObservations(cfg Config, mode particle.Mode, group *symmetry.Group, tuning particle.Config) (obs []*observation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()

	truthRng := rand.New(rand.NewPCG(cfg.Seed, 0))
	shift := distuv.Normal{Mu: 0, Sigma: cfg.TransS / 2, Src: truthRng}
	defocus := distuv.Normal{Mu: 1, Sigma: math.Max(tuning.DefocusInitSigma/2, tuning.MinDefocusSigma), Src: truthRng}
	counts := particle.Counts{C: cfg.NC, R: cfg.NR, T: cfg.NT, D: cfg.ND}

	for i := 0; i < cfg.Observations; i++ {
		truth := particle.Estimate{
			Class:       truthRng.IntN(max(cfg.NC, 1)),
			Translation: r2.Vec{X: shift.Rand(), Y: shift.Rand()},
			Defocus:     defocus.Rand(),
		}
		if mode == particle.Mode2D {
			truth.Rotation = orientation.UniformPlanar(truthRng)
		} else {
			truth.Rotation = orientation.Uniform(truthRng)
		}

		opts := particle.Options{
			Mode:   mode,
			Counts: counts,
			TransS: cfg.TransS,
			Rand:   rand.New(rand.NewPCG(cfg.Seed, uint64(i+1))),
			Config: &tuning,
		}
		if group != nil {
			opts.Symmetry = group
		}
		obs = append(obs, &observation{id: i, f: particle.New(opts), truth: truth, group: group})
	}
	return obs, nil
}

// recovered turns a precondition panic from the filter into an error.
func recovered(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

// step scores and refines every axis once.
func (o *observation) step() (s particle.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observation %d: %w", o.id, recovered(r))
		}
	}()
	for _, a := range particle.Axes {
		o.score(a)
		o.f.Refine(a, o.f.Count(a))
	}
	return o.f.Snapshot(), nil
}

// score assigns exp(logL - max logL) to every sample of axis a, so the best
// sample always has weight 1.
func (o *observation) score(a particle.Axis) {
	ws := o.f.Weights(a)
	logL := make([]float64, ws.Len())
	for i := range logL {
		logL[i] = o.logLikelihood(a, i)
	}
	top := math.Inf(-1)
	for _, l := range logL {
		top = math.Max(top, l)
	}
	for i, l := range logL {
		logL[i] = math.Exp(l - top)
	}
	ws.SetWeights(logL)
}

func (o *observation) logLikelihood(a particle.Axis, i int) float64 {
	switch a {
	case particle.AxisClass:
		if o.f.Class().Value(i) == o.truth.Class {
			return 0
		}
		return -classPenalty
	case particle.AxisRotation:
		return gaussLog(o.rotationError(o.f.Rotations().Value(i)), rotationSigma)
	case particle.AxisTranslation:
		return gaussLog(r2.Norm(r2.Sub(o.f.Translations().Value(i), o.truth.Translation)), translationSigma)
	default:
		return gaussLog(o.f.Defoci().Value(i)-o.truth.Defocus, defocusSigma)
	}
}

func gaussLog(d, sigma float64) float64 {
	return -d * d / (2 * sigma * sigma)
}

func (o *observation) rotationError(q quat.Number) float64 {
	if o.f.Mode() == particle.Mode2D {
		return orientation.PlanarAngleBetween(q, o.truth.Rotation)
	}
	best := orientation.Angle(q, o.truth.Rotation)
	if o.group != nil {
		for k := 1; k < o.group.NumOps(); k++ {
			best = math.Min(best, orientation.Angle(o.group.Apply(k, q), o.truth.Rotation))
		}
	}
	return best
}

func (o *observation) evaluate() ObservationResult {
	top := o.f.Rank1()
	return ObservationResult{
		Observation:      o.id,
		ClassCorrect:     top.Class == o.truth.Class,
		RotationError:    o.rotationError(top.Rotation),
		TranslationError: r2.Norm(r2.Sub(top.Translation, o.truth.Translation)),
		DefocusError:     math.Abs(top.Defocus - o.truth.Defocus),
	}
}
