// v0
// internal/render/membership.go
package render

import "nrgchamp/fuzzydash/internal/fuzzy"

// CurveView is one sampled membership curve.
type CurveView struct {
	Label  string     `json:"label"`
	Kind   fuzzy.Kind `json:"kind"`
	Params []float64  `json:"params"`
	Values []float64  `json:"values"`
}

// MembershipView is the data behind one membership chart.
type MembershipView struct {
	Variable string                `json:"variable"`
	Domain   []float64             `json:"domain"`
	Curves   []CurveView           `json:"curves"`
	Marker   *fuzzy.OperatingPoint `json:"marker"`
}

// Membership samples every curve of v over its domain. marker may be nil,
// in which case the chart is drawn without an operating point.
func Membership(v fuzzy.Variable, marker *fuzzy.OperatingPoint) MembershipView {
	curves := make([]CurveView, 0, len(v.Curves))
	for _, c := range v.Curves {
		params := make([]float64, len(c.Params))
		copy(params, c.Params)
		curves = append(curves, CurveView{
			Label:  c.Label,
			Kind:   c.Kind,
			Params: params,
			Values: c.Sample(v.Domain),
		})
	}
	var m *fuzzy.OperatingPoint
	if marker != nil {
		cp := *marker
		m = &cp
	}
	return MembershipView{
		Variable: v.Name,
		Domain:   v.Domain.Values(),
		Curves:   curves,
		Marker:   m,
	}
}
