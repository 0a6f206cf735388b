// v0
// internal/fuzzy/curves_file.go
package fuzzy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type curvesDocument struct {
	Variables []variableDocument `yaml:"variables"`
}

type variableDocument struct {
	Name  string `yaml:"name"`
	Range struct {
		Start float64 `yaml:"start"`
		Stop  float64 `yaml:"stop"`
		Step  float64 `yaml:"step"`
	} `yaml:"range"`
	Curves []struct {
		Label  string    `yaml:"label"`
		Kind   string    `yaml:"kind"`
		Params []float64 `yaml:"params"`
	} `yaml:"curves"`
}

// LoadSet reads curve overrides from a YAML file and layers them on top of
// base. Variables not present in the file keep their base definition.
func LoadSet(path string, base Set) (Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Set{}, err
	}
	return ParseSet(raw, base)
}

// ParseSet decodes a YAML curves document and layers it on top of base.
func ParseSet(raw []byte, base Set) (Set, error) {
	var doc curvesDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Set{}, fmt.Errorf("decode curves: %w", err)
	}
	out := base
	for _, vd := range doc.Variables {
		if vd.Name == "" {
			return Set{}, fmt.Errorf("%w: variable without name", ErrInvalidCurve)
		}
		domain, err := Arange(vd.Range.Start, vd.Range.Stop, vd.Range.Step)
		if err != nil {
			return Set{}, fmt.Errorf("variable %s: %w", vd.Name, err)
		}
		if len(vd.Curves) == 0 {
			return Set{}, fmt.Errorf("%w: variable %s has no curves", ErrInvalidCurve, vd.Name)
		}
		curves := make([]Curve, 0, len(vd.Curves))
		for _, cd := range vd.Curves {
			c, err := NewCurve(cd.Label, Kind(cd.Kind), cd.Params...)
			if err != nil {
				return Set{}, fmt.Errorf("variable %s: %w", vd.Name, err)
			}
			curves = append(curves, c)
		}
		out = out.With(Variable{Name: vd.Name, Domain: domain, Curves: curves})
	}
	return out, nil
}
