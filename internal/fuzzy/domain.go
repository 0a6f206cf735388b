// v0
// internal/fuzzy/domain.go
package fuzzy

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDomain reports an empty or non-increasing sample domain.
var ErrInvalidDomain = errors.New("invalid sample domain")

// arangeSlack absorbs the floating point error of (stop-start)/step so that
// arange(-12, 12.1, 0.1) ends at 12 instead of 12.1.
const arangeSlack = 1e-9

// Domain is an immutable, strictly increasing sequence of sample points.
type Domain struct {
	values []float64
}

// Arange builds a fixed-step domain from start (inclusive) to stop
// (exclusive).
func Arange(start, stop, step float64) (Domain, error) {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return Domain{}, fmt.Errorf("%w: step must be positive", ErrInvalidDomain)
	}
	if math.IsNaN(start) || math.IsNaN(stop) || math.IsInf(start, 0) || math.IsInf(stop, 0) {
		return Domain{}, fmt.Errorf("%w: bounds must be finite", ErrInvalidDomain)
	}
	n := int(math.Ceil((stop-start)/step - arangeSlack))
	if n <= 0 {
		return Domain{}, fmt.Errorf("%w: empty range [%g, %g)", ErrInvalidDomain, start, stop)
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = roundSample(start + float64(i)*step)
	}
	return Domain{values: values}, nil
}

// NewDomain wraps explicit sample points. The values are copied.
func NewDomain(values []float64) (Domain, error) {
	if len(values) == 0 {
		return Domain{}, fmt.Errorf("%w: no samples", ErrInvalidDomain)
	}
	for i := 1; i < len(values); i++ {
		if !(values[i] > values[i-1]) {
			return Domain{}, fmt.Errorf("%w: sample %d is not greater than sample %d", ErrInvalidDomain, i, i-1)
		}
	}
	cp := make([]float64, len(values))
	copy(cp, values)
	return Domain{values: cp}, nil
}

func mustArange(start, stop, step float64) Domain {
	d, err := Arange(start, stop, step)
	if err != nil {
		panic(err)
	}
	return d
}

func roundSample(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

// Len returns the number of samples.
func (d Domain) Len() int { return len(d.values) }

// At returns the sample at index i.
func (d Domain) At(i int) float64 { return d.values[i] }

// Min returns the first sample, or 0 for an empty domain.
func (d Domain) Min() float64 {
	if len(d.values) == 0 {
		return 0
	}
	return d.values[0]
}

// Max returns the last sample, or 0 for an empty domain.
func (d Domain) Max() float64 {
	if len(d.values) == 0 {
		return 0
	}
	return d.values[len(d.values)-1]
}

// Values returns a copy of the samples.
func (d Domain) Values() []float64 {
	cp := make([]float64, len(d.values))
	copy(cp, d.values)
	return cp
}
