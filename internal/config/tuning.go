package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default filter tunables.
const DefaultConfigPath = "config/filter.defaults.json"

// TuningConfig represents the process-wide particle filter tunables.
// Every field is optional: the Get* methods fall back to built-in defaults,
// so partial files are safe.
type TuningConfig struct {
	// Peak factor (perturbation scale) schedule
	PeakFactorMax     *float64 `json:"peak_factor_max,omitempty"`
	PeakFactorMin     *float64 `json:"peak_factor_min,omitempty"`
	PeakFactorCooling *float64 `json:"peak_factor_cooling,omitempty"`
	PeakFactorBase    *float64 `json:"peak_factor_base,omitempty"`

	// Translation correlation clamp
	RhoMax *float64 `json:"rho_max,omitempty"`
	RhoMin *float64 `json:"rho_min,omitempty"`

	// Re-centre threshold: samples outside the (1 - trans_q) confidence
	// ellipse are moved back to the origin.
	TransQ *float64 `json:"trans_q,omitempty"`

	// Defocus prior
	DefocusInitSigma *float64 `json:"defocus_init_sigma,omitempty"`

	// Numerical floors
	MinTranslationSigma *float64 `json:"min_translation_sigma,omitempty"`
	MinDefocusSigma     *float64 `json:"min_defocus_sigma,omitempty"`
	MinRotationVariance *float64 `json:"min_rotation_variance,omitempty"`
	MaxConcentration    *float64 `json:"max_concentration,omitempty"`

	// Mode isolation
	HalfHeightFraction *float64 `json:"half_height_fraction,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		PeakFactorMax:       ptrFloat64(e.GetPeakFactorMax()),
		PeakFactorMin:       ptrFloat64(e.GetPeakFactorMin()),
		PeakFactorCooling:   ptrFloat64(e.GetPeakFactorCooling()),
		PeakFactorBase:      ptrFloat64(e.GetPeakFactorBase()),
		RhoMax:              ptrFloat64(e.GetRhoMax()),
		RhoMin:              ptrFloat64(e.GetRhoMin()),
		TransQ:              ptrFloat64(e.GetTransQ()),
		DefocusInitSigma:    ptrFloat64(e.GetDefocusInitSigma()),
		MinTranslationSigma: ptrFloat64(e.GetMinTranslationSigma()),
		MinDefocusSigma:     ptrFloat64(e.GetMinDefocusSigma()),
		MinRotationVariance: ptrFloat64(e.GetMinRotationVariance()),
		MaxConcentration:    ptrFloat64(e.GetMaxConcentration()),
		HalfHeightFraction:  ptrFloat64(e.GetHalfHeightFraction()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,          // from cmd/pfsim
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // deeper packages
		"../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	pfMin, pfMax := c.GetPeakFactorMin(), c.GetPeakFactorMax()
	if pfMin <= 0 {
		return fmt.Errorf("peak_factor_min must be positive, got %g", pfMin)
	}
	if pfMax < pfMin {
		return fmt.Errorf("peak_factor_max (%g) must not be below peak_factor_min (%g)", pfMax, pfMin)
	}
	if v := c.GetPeakFactorCooling(); v <= 0 || v > 1 {
		return fmt.Errorf("peak_factor_cooling must be in (0, 1], got %g", v)
	}
	if v := c.GetPeakFactorBase(); v <= 0 {
		return fmt.Errorf("peak_factor_base must be positive, got %g", v)
	}

	rhoMin, rhoMax := c.GetRhoMin(), c.GetRhoMax()
	if rhoMin <= -1 || rhoMax >= 1 || rhoMin > rhoMax {
		return fmt.Errorf("rho bounds must satisfy -1 < rho_min <= rho_max < 1, got [%g, %g]", rhoMin, rhoMax)
	}

	if v := c.GetTransQ(); v <= 0 || v >= 1 {
		return fmt.Errorf("trans_q must be in (0, 1), got %g", v)
	}
	if v := c.GetDefocusInitSigma(); v < 0 {
		return fmt.Errorf("defocus_init_sigma must be non-negative, got %g", v)
	}

	floors := map[string]float64{
		"min_translation_sigma": c.GetMinTranslationSigma(),
		"min_defocus_sigma":     c.GetMinDefocusSigma(),
		"min_rotation_variance": c.GetMinRotationVariance(),
		"max_concentration":     c.GetMaxConcentration(),
	}
	for name, v := range floors {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %g", name, v)
		}
	}

	if v := c.GetHalfHeightFraction(); v <= 0 || v > 1 {
		return fmt.Errorf("half_height_fraction must be in (0, 1], got %g", v)
	}

	return nil
}

// GetPeakFactorMax returns the peak_factor_max value or the default.
func (c *TuningConfig) GetPeakFactorMax() float64 {
	if c.PeakFactorMax == nil {
		return 0.5
	}
	return *c.PeakFactorMax
}

// GetPeakFactorMin returns the peak_factor_min value or the default.
func (c *TuningConfig) GetPeakFactorMin() float64 {
	if c.PeakFactorMin == nil {
		return 1e-3
	}
	return *c.PeakFactorMin
}

// GetPeakFactorCooling returns the peak_factor_cooling value or the default.
func (c *TuningConfig) GetPeakFactorCooling() float64 {
	if c.PeakFactorCooling == nil {
		return 0.99
	}
	return *c.PeakFactorCooling
}

// GetPeakFactorBase returns the peak_factor_base value or the default.
func (c *TuningConfig) GetPeakFactorBase() float64 {
	if c.PeakFactorBase == nil {
		return 2
	}
	return *c.PeakFactorBase
}

// GetRhoMax returns the rho_max value or the default.
func (c *TuningConfig) GetRhoMax() float64 {
	if c.RhoMax == nil {
		return 0.9
	}
	return *c.RhoMax
}

// GetRhoMin returns the rho_min value or the default.
func (c *TuningConfig) GetRhoMin() float64 {
	if c.RhoMin == nil {
		return -0.9
	}
	return *c.RhoMin
}

// GetTransQ returns the trans_q value or the default.
func (c *TuningConfig) GetTransQ() float64 {
	if c.TransQ == nil {
		return 0.01
	}
	return *c.TransQ
}

// GetDefocusInitSigma returns the defocus_init_sigma value or the default.
func (c *TuningConfig) GetDefocusInitSigma() float64 {
	if c.DefocusInitSigma == nil {
		return 0.05
	}
	return *c.DefocusInitSigma
}

// GetMinTranslationSigma returns the min_translation_sigma value or the default.
func (c *TuningConfig) GetMinTranslationSigma() float64 {
	if c.MinTranslationSigma == nil {
		return 1e-3
	}
	return *c.MinTranslationSigma
}

// GetMinDefocusSigma returns the min_defocus_sigma value or the default.
func (c *TuningConfig) GetMinDefocusSigma() float64 {
	if c.MinDefocusSigma == nil {
		return 1e-4
	}
	return *c.MinDefocusSigma
}

// GetMinRotationVariance returns the min_rotation_variance value or the default.
func (c *TuningConfig) GetMinRotationVariance() float64 {
	if c.MinRotationVariance == nil {
		return 1e-8
	}
	return *c.MinRotationVariance
}

// GetMaxConcentration returns the max_concentration value or the default.
func (c *TuningConfig) GetMaxConcentration() float64 {
	if c.MaxConcentration == nil {
		return 1e8
	}
	return *c.MaxConcentration
}

// GetHalfHeightFraction returns the half_height_fraction value or the default.
func (c *TuningConfig) GetHalfHeightFraction() float64 {
	if c.HalfHeightFraction == nil {
		return 0.5
	}
	return *c.HalfHeightFraction
}
