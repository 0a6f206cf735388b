// v0
// internal/fuzzy/locator.go
package fuzzy

import (
	"math"
	"strconv"
	"strings"
)

// OperatingPoint is a live measurement projected onto a variable's curve
// set. It is derived on every redraw and never stored.
type OperatingPoint struct {
	Value  float64 `json:"value"`
	Index  int     `json:"index"`
	Sample float64 `json:"sample"`
	Peak   float64 `json:"peak"`
	Label  string  `json:"label,omitempty"`
}

// NearestIndex returns the index of the sample closest to x. On an exact
// tie the lower index wins. It returns -1 for an empty domain or a NaN x.
func NearestIndex(d Domain, x float64) int {
	if d.Len() == 0 || math.IsNaN(x) {
		return -1
	}
	best := 0
	bestDist := math.Abs(d.At(0) - x)
	for i := 1; i < d.Len(); i++ {
		dist := math.Abs(d.At(i) - x)
		if dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}

// PeakAt returns the highest membership any curve reaches at sample i and
// the label of the first curve reaching it.
func PeakAt(d Domain, curves []Curve, i int) (float64, string) {
	if i < 0 || i >= d.Len() {
		return 0, ""
	}
	x := d.At(i)
	peak := 0.0
	label := ""
	for _, c := range curves {
		if mu := c.Eval(x); mu > peak {
			peak = mu
			label = c.Label
		}
	}
	return peak, label
}

// Locate projects value onto the variable. ok is false when there is no
// operating point to draw.
func Locate(v Variable, value float64) (OperatingPoint, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return OperatingPoint{}, false
	}
	idx := NearestIndex(v.Domain, value)
	if idx < 0 {
		return OperatingPoint{}, false
	}
	peak, label := PeakAt(v.Domain, v.Curves, idx)
	return OperatingPoint{
		Value:  value,
		Index:  idx,
		Sample: v.Domain.At(idx),
		Peak:   peak,
		Label:  label,
	}, true
}

// LocateRaw parses operator text before locating it.
func LocateRaw(v Variable, raw string) (OperatingPoint, bool) {
	value, ok := ParseValue(raw)
	if !ok {
		return OperatingPoint{}, false
	}
	return Locate(v, value)
}

// ParseValue parses a finite number from operator text. A decimal comma is
// accepted.
func ParseValue(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	trimmed = strings.Replace(trimmed, ",", ".", 1)
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
