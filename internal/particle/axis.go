package particle

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors carried by the panics raised on precondition violations.
var (
	ErrOutOfRange        = errors.New("particle: index out of range")
	ErrNonPositiveWeight = errors.New("particle: weight sum is not positive")
	ErrNegativeWeight    = errors.New("particle: negative or non-finite weight")
	ErrInvalidCount      = errors.New("particle: invalid sample count")
	ErrEmptyEnsemble     = errors.New("particle: empty ensemble")
	ErrWrongMode         = errors.New("particle: operation not valid in this mode")
	ErrNilRand           = errors.New("particle: nil random source")
	ErrInvalidParameter  = errors.New("particle: invalid parameter")
)

func fail(err error, format string, args ...interface{}) {
	panic(fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...)))
}

// Mode selects the rotation manifold. It is fixed when the Filter is built.
type Mode int

const (
	Mode2D Mode = 2 // planar rotations, reference is a 2D image
	Mode3D Mode = 3 // volumetric rotations, reference is a 3D volume
)

func (m Mode) String() string {
	switch m {
	case Mode2D:
		return "2d"
	case Mode3D:
		return "3d"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "2d" or "3d" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2d", "2":
		return Mode2D, nil
	case "3d", "3":
		return Mode3D, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want 2d or 3d)", s)
	}
}

// Axis names one of the four latent variables.
type Axis int

const (
	AxisClass Axis = iota
	AxisRotation
	AxisTranslation
	AxisDefocus
	numAxes
)

// Axes lists every axis in dump order.
var Axes = [numAxes]Axis{AxisClass, AxisRotation, AxisTranslation, AxisDefocus}

func (a Axis) String() string {
	switch a {
	case AxisClass:
		return "class"
	case AxisRotation:
		return "rotation"
	case AxisTranslation:
		return "translation"
	case AxisDefocus:
		return "defocus"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

func (a Axis) check() {
	if a < 0 || a >= numAxes {
		fail(ErrInvalidParameter, "unknown axis %d", int(a))
	}
}

// Counts holds the per-axis ensemble sizes. Every entry must be at least 1.
type Counts struct {
	C int // class labels
	R int // rotations
	T int // translations
	D int // defocus factors
}

// Of returns the count for one axis.
func (c Counts) Of(a Axis) int {
	switch a {
	case AxisClass:
		return c.C
	case AxisRotation:
		return c.R
	case AxisTranslation:
		return c.T
	case AxisDefocus:
		return c.D
	}
	a.check()
	return 0
}

func (c Counts) validate() {
	for _, a := range Axes {
		if n := c.Of(a); n < 1 {
			fail(ErrInvalidCount, "%s count %d < 1", a, n)
		}
	}
}
