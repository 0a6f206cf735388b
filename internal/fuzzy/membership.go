// v0
// internal/fuzzy/membership.go
package fuzzy

import (
	"errors"
	"fmt"
	"math"
)

// Kind identifies the shape of a membership curve.
type Kind string

const (
	// Triangular curves take three breakpoints (a, b, c).
	Triangular Kind = "triangular"
	// Trapezoidal curves take four breakpoints (a, b, c, d).
	Trapezoidal Kind = "trapezoidal"
)

// ErrInvalidCurve is returned when a curve definition has the wrong arity,
// non-finite breakpoints, or breakpoints out of order.
var ErrInvalidCurve = errors.New("invalid membership curve")

// Curve is a named piecewise-linear membership function.
type Curve struct {
	Label  string
	Kind   Kind
	Params []float64
}

// NewCurve validates the breakpoints and returns a curve ready for
// evaluation.
func NewCurve(label string, kind Kind, params ...float64) (Curve, error) {
	want := 0
	switch kind {
	case Triangular:
		want = 3
	case Trapezoidal:
		want = 4
	default:
		return Curve{}, fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidCurve, label, kind)
	}
	if len(params) != want {
		return Curve{}, fmt.Errorf("%w: %s: %s curve needs %d breakpoints, got %d", ErrInvalidCurve, label, kind, want, len(params))
	}
	for i, p := range params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return Curve{}, fmt.Errorf("%w: %s: breakpoint %d is not finite", ErrInvalidCurve, label, i)
		}
		if i > 0 && p < params[i-1] {
			return Curve{}, fmt.Errorf("%w: %s: breakpoints must be non-decreasing", ErrInvalidCurve, label)
		}
	}
	cp := make([]float64, len(params))
	copy(cp, params)
	return Curve{Label: label, Kind: kind, Params: cp}, nil
}

func mustCurve(label string, kind Kind, params ...float64) Curve {
	c, err := NewCurve(label, kind, params...)
	if err != nil {
		panic(err)
	}
	return c
}

// Eval returns the membership degree of x. Curves built without NewCurve
// and carrying the wrong number of breakpoints evaluate to 0.
func (c Curve) Eval(x float64) float64 {
	switch {
	case c.Kind == Triangular && len(c.Params) == 3:
		return Tri(x, c.Params[0], c.Params[1], c.Params[2])
	case c.Kind == Trapezoidal && len(c.Params) == 4:
		return Trap(x, c.Params[0], c.Params[1], c.Params[2], c.Params[3])
	default:
		return 0
	}
}

// Sample evaluates the curve at every point of the domain.
func (c Curve) Sample(d Domain) []float64 {
	out := make([]float64, d.Len())
	for i := range out {
		out[i] = c.Eval(d.At(i))
	}
	return out
}

// Tri evaluates the triangular membership function (a, b, c).
//
// The outer breakpoints are always outside the support, so x == a and
// x == c yield 0 even when a ramp has zero width. A zero-width ramp turns
// that edge into a step.
func Tri(x, a, b, c float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x <= a || x >= c:
		return 0
	case x == b:
		return 1
	case x < b:
		return (x - a) / (b - a)
	default:
		return (c - x) / (c - b)
	}
}

// Trap evaluates the trapezoidal membership function (a, b, c, d). The
// closed plateau [b, c] is 1, including shoulders where a == b or c == d.
// Outside the plateau, x <= a and x >= d are 0.
func Trap(x, a, b, c, d float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= b && x <= c:
		return 1
	case x <= a || x >= d:
		return 0
	case x < b:
		return (x - a) / (b - a)
	default:
		return (d - x) / (d - c)
	}
}
