// v0
// internal/fuzzy/rules.go
package fuzzy

import "math"

// Rule is one entry of the controller's rule base: IF erro IS Error AND
// delta_erro IS Delta THEN p_crac IS Output.
type Rule struct {
	ID     int    `json:"id"`
	Error  string `json:"erro"`
	Delta  string `json:"delta"`
	Output string `json:"saida"`
}

// Activation is the firing strength of one rule for a pair of inputs.
type Activation struct {
	RuleID   int     `json:"ruleId"`
	Error    string  `json:"erro"`
	Delta    string  `json:"delta"`
	Output   string  `json:"saida"`
	Strength float64 `json:"activ"`
}

var ruleTerms = []string{"MN", "PN", "ZE", "PP", "MP"}

// ruleOutputs is indexed [error term][delta term].
var ruleOutputs = [5][5]string{
	{"MB", "MB", "MB", "B", "M"},
	{"MB", "B", "M", "M", "A"},
	{"MB", "B", "B", "A", "MA"},
	{"B", "M", "A", "MA", "MA"},
	{"M", "A", "MA", "MA", "MA"},
}

// DefaultRules returns the 25-rule table of the cooling controller,
// numbered from 1 in row-major order.
func DefaultRules() []Rule {
	rules := make([]Rule, 0, len(ruleTerms)*len(ruleTerms))
	for i, e := range ruleTerms {
		for j, d := range ruleTerms {
			rules = append(rules, Rule{
				ID:     len(rules) + 1,
				Error:  e,
				Delta:  d,
				Output: ruleOutputs[i][j],
			})
		}
	}
	return rules
}

// Activate computes min(mu_erro, mu_delta) for every rule. Rules whose
// terms are missing from the set fire with strength 0.
func Activate(set Set, rules []Rule, erro, delta float64) []Activation {
	ev, _ := set.Get(VarError)
	dv, _ := set.Get(VarDelta)
	out := make([]Activation, 0, len(rules))
	for _, r := range rules {
		strength := 0.0
		ec, eok := ev.Curve(r.Error)
		dc, dok := dv.Curve(r.Delta)
		if eok && dok {
			strength = math.Min(ec.Eval(erro), dc.Eval(delta))
		}
		out = append(out, Activation{
			RuleID:   r.ID,
			Error:    r.Error,
			Delta:    r.Delta,
			Output:   r.Output,
			Strength: strength,
		})
	}
	return out
}

// Strongest returns the activation with the highest strength; the first
// one wins ties. ok is false when nothing fires.
func Strongest(acts []Activation) (Activation, bool) {
	var best Activation
	found := false
	for _, a := range acts {
		if a.Strength <= 0 {
			continue
		}
		if !found || a.Strength > best.Strength {
			best = a
			found = true
		}
	}
	return best, found
}
