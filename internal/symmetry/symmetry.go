// Package symmetry describes rotational point groups as sets of unit
// quaternions.
//
// A Group is built once (usually at start-up from a name such as "C4", "D7",
// "T", "O" or "I") and then shared read-only by every particle filter of a
// refinement. Nothing mutates a Group after Parse returns, so concurrent reads
// need no locking.
package symmetry

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/particle.refine/internal/orientation"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// MaxCyclicOrder bounds the n of Cn/Dn groups accepted by Parse.
const MaxCyclicOrder = 360

// sameRotationTolerance is how close |<a,b>| must be to 1 for two generated
// operators to be treated as one.
const sameRotationTolerance = 1e-6

// Group is a finite rotation group. Op(0) is always the identity.
type Group struct {
	name string
	ops  []quat.Number
}

// Parse builds the group named by a Schoenflies symbol: C<n>, D<n>, T, O or I.
// Names are case-insensitive.
func Parse(name string) (*Group, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return nil, fmt.Errorf("empty symmetry name")
	}

	zAxis := r3.Vec{Z: 1}
	threeFold := orientation.FromAxisAngle(r3.Vec{X: 1, Y: 1, Z: 1}, 2*math.Pi/3)

	var gens []quat.Number
	switch n[0] {
	case 'C', 'D':
		order, err := strconv.Atoi(n[1:])
		if err != nil {
			return nil, fmt.Errorf("invalid symmetry %q: %w", name, err)
		}
		if order < 1 || order > MaxCyclicOrder {
			return nil, fmt.Errorf("invalid symmetry %q: order must be in [1, %d]", name, MaxCyclicOrder)
		}
		gens = append(gens, orientation.FromAxisAngle(zAxis, 2*math.Pi/float64(order)))
		if n[0] == 'D' {
			gens = append(gens, orientation.FromAxisAngle(r3.Vec{X: 1}, math.Pi))
		}
	case 'T':
		if n != "T" {
			return nil, fmt.Errorf("invalid symmetry %q", name)
		}
		gens = []quat.Number{orientation.FromAxisAngle(zAxis, math.Pi), threeFold}
	case 'O':
		if n != "O" {
			return nil, fmt.Errorf("invalid symmetry %q", name)
		}
		gens = []quat.Number{orientation.FromAxisAngle(zAxis, math.Pi/2), threeFold}
	case 'I':
		if n != "I" {
			return nil, fmt.Errorf("invalid symmetry %q", name)
		}
		// 2-folds on the coordinate axes, 5-fold through the vertex (0, 1, φ).
		phi := (1 + math.Sqrt(5)) / 2
		gens = []quat.Number{
			orientation.FromAxisAngle(zAxis, math.Pi),
			threeFold,
			orientation.FromAxisAngle(r3.Vec{Y: 1, Z: phi}, 2*math.Pi/5),
		}
	default:
		return nil, fmt.Errorf("unsupported symmetry %q", name)
	}

	return &Group{name: n, ops: closure(gens)}, nil
}

// MustParse is Parse for names known to be valid. Panics on error.
func MustParse(name string) *Group {
	g, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return g
}

// closure generates every product of the generators. The identity is kept
// first; the rest follow in discovery order so the enumeration is stable.
func closure(gens []quat.Number) []quat.Number {
	ops := []quat.Number{orientation.Identity}
	for i := 0; i < len(ops); i++ {
		for _, g := range gens {
			p := orientation.Canonical(orientation.Compose(ops[i], g))
			if !contains(ops, p) {
				ops = append(ops, p)
			}
		}
	}
	return ops
}

func contains(ops []quat.Number, q quat.Number) bool {
	for _, o := range ops {
		if math.Abs(orientation.Dot(o, q)) > 1-sameRotationTolerance {
			return true
		}
	}
	return false
}

// Name returns the canonical symbol, e.g. "D7".
func (g *Group) Name() string { return g.name }

// Order returns the number of rotations in the group.
func (g *Group) Order() int { return len(g.ops) }

// NumOps is Order under the name the particle filter consumes.
func (g *Group) NumOps() int { return len(g.ops) }

// Op returns the i-th operator.
func (g *Group) Op(i int) quat.Number { return g.ops[i] }

// Apply returns the orientation equivalent to q under the i-th operator.
func (g *Group) Apply(i int, q quat.Number) quat.Number {
	return quat.Mul(q, g.ops[i])
}

// String implements fmt.Stringer.
func (g *Group) String() string {
	return fmt.Sprintf("%s(order=%d)", g.name, len(g.ops))
}
