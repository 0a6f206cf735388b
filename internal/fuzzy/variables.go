// v0
// internal/fuzzy/variables.go
package fuzzy

import "fmt"

// Names of the controller variables published on the result topic.
const (
	VarError  = "erro"
	VarDelta  = "delta_erro"
	VarOutput = "p_crac"
)

// Variable is a fuzzy variable: a sample domain and its curve set.
type Variable struct {
	Name   string
	Domain Domain
	Curves []Curve
}

// Curve returns the curve with the given label.
func (v Variable) Curve(label string) (Curve, bool) {
	for _, c := range v.Curves {
		if c.Label == label {
			return c, true
		}
	}
	return Curve{}, false
}

// Set is the ordered collection of variables drawn by the dashboard.
type Set struct {
	Variables []Variable
}

// Get looks a variable up by name.
func (s Set) Get(name string) (Variable, bool) {
	for _, v := range s.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// Names lists variable names in display order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s.Variables))
	for _, v := range s.Variables {
		out = append(out, v.Name)
	}
	return out
}

// With returns a copy of the set where v replaces the variable of the same
// name, or is appended when the name is new.
func (s Set) With(v Variable) Set {
	out := make([]Variable, 0, len(s.Variables)+1)
	replaced := false
	for _, existing := range s.Variables {
		if existing.Name == v.Name {
			out = append(out, v)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, v)
	}
	return Set{Variables: out}
}

// Validate checks that the controller variables used by the rule table are
// present and carry every term the rules reference.
func (s Set) Validate(rules []Rule) error {
	for _, r := range rules {
		for _, ref := range []struct{ variable, term string }{
			{VarError, r.Error},
			{VarDelta, r.Delta},
			{VarOutput, r.Output},
		} {
			v, ok := s.Get(ref.variable)
			if !ok {
				return fmt.Errorf("%w: variable %q missing", ErrInvalidCurve, ref.variable)
			}
			if _, ok := v.Curve(ref.term); !ok {
				return fmt.Errorf("%w: rule %d references unknown term %s.%s", ErrInvalidCurve, r.ID, ref.variable, ref.term)
			}
		}
	}
	return nil
}

// DefaultSet mirrors the universes and curves configured in the cooling
// controller.
func DefaultSet() Set {
	return Set{Variables: []Variable{
		{
			Name:   VarError,
			Domain: mustArange(-12, 12.1, 0.1),
			Curves: []Curve{
				mustCurve("MN", Trapezoidal, -12, -12, -6, -3.5),
				mustCurve("PN", Triangular, -6, -3.5, 0),
				mustCurve("ZE", Triangular, -3.5, 0, 3.5),
				mustCurve("PP", Triangular, 0, 3.5, 6),
				mustCurve("MP", Trapezoidal, 3.5, 6, 12, 12),
			},
		},
		{
			Name:   VarDelta,
			Domain: mustArange(-6, 6.01, 0.01),
			Curves: []Curve{
				mustCurve("MN", Trapezoidal, -6, -6, -2, -1),
				mustCurve("PN", Triangular, -2, -1, 0),
				mustCurve("ZE", Triangular, -1, 0, 1),
				mustCurve("PP", Triangular, 0, 1, 2),
				mustCurve("MP", Trapezoidal, 1, 2, 6, 6),
			},
		},
		{
			Name:   VarOutput,
			Domain: mustArange(0, 101, 1),
			Curves: []Curve{
				mustCurve("MB", Triangular, 0, 0, 25),
				mustCurve("B", Triangular, 0, 25, 50),
				mustCurve("M", Triangular, 25, 50, 75),
				mustCurve("A", Triangular, 50, 75, 100),
				mustCurve("MA", Triangular, 75, 100, 100),
			},
		},
	}}
}
