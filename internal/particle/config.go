package particle

import "github.com/banshee-data/particle.refine/internal/config"

// Config holds the process-wide tunables of the perturbation schedule and the
// numerical floors. A Filter copies it at construction and never changes it.
type Config struct {
	PeakFactorMax     float64 // ceiling and reset value of the peak factor
	PeakFactorMin     float64 // floor of the peak factor
	PeakFactorCooling float64 // per-round geometric decay, in (0, 1]
	PeakFactorBase    float64 // root applied to the compression ratio

	RhoMax float64 // translation correlation clamp, strictly inside (-1, 1)
	RhoMin float64

	TransQ           float64 // re-centre tail probability
	DefocusInitSigma float64 // sigma of the uniform-reset defocus prior

	MinTranslationSigma float64
	MinDefocusSigma     float64
	MinRotationVariance float64 // floor of the 3D tangent variances
	MaxConcentration    float64 // cap of any rotation concentration

	HalfHeightFraction float64 // KeepHalfHeightPeak threshold relative to the max weight
}

// DefaultConfig returns the built-in defaults without reading any file.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		PeakFactorMax:       cfg.GetPeakFactorMax(),
		PeakFactorMin:       cfg.GetPeakFactorMin(),
		PeakFactorCooling:   cfg.GetPeakFactorCooling(),
		PeakFactorBase:      cfg.GetPeakFactorBase(),
		RhoMax:              cfg.GetRhoMax(),
		RhoMin:              cfg.GetRhoMin(),
		TransQ:              cfg.GetTransQ(),
		DefocusInitSigma:    cfg.GetDefocusInitSigma(),
		MinTranslationSigma: cfg.GetMinTranslationSigma(),
		MinDefocusSigma:     cfg.GetMinDefocusSigma(),
		MinRotationVariance: cfg.GetMinRotationVariance(),
		MaxConcentration:    cfg.GetMaxConcentration(),
		HalfHeightFraction:  cfg.GetHalfHeightFraction(),
	}
}
