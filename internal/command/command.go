// v0
// internal/command/command.go
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/fuzzy"
)

// Command identifiers understood by the controller.
const (
	CmdPointwise  = "controle_pontual"
	CmdSimulation = "simular_24h"
)

// ErrInvalidInput is returned when a manual input is missing, not a number
// or outside its allowed range.
var ErrInvalidInput = errors.New("invalid manual input")

// Range is an inclusive allowed interval.
type Range struct {
	Min float64
	Max float64
}

func (r Range) contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Limits bounds the operator inputs.
type Limits struct {
	Erro      Range
	DeltaErro Range
	Setpoint  Range
	TempExt   Range
	Carga     Range
}

// LimitsFromSet derives the error and error-rate limits from the variable
// universes and takes the remaining ranges as given.
func LimitsFromSet(set fuzzy.Set, setpoint, tempExt, carga Range) Limits {
	l := Limits{
		Erro:      Range{Min: -12, Max: 12},
		DeltaErro: Range{Min: -6, Max: 6},
		Setpoint:  setpoint,
		TempExt:   tempExt,
		Carga:     carga,
	}
	if v, ok := set.Get(fuzzy.VarError); ok {
		l.Erro = Range{Min: v.Domain.Min(), Max: v.Domain.Max()}
	}
	if v, ok := set.Get(fuzzy.VarDelta); ok {
		l.DeltaErro = Range{Min: v.Domain.Min(), Max: v.Domain.Max()}
	}
	return l
}

// Pointwise asks the controller for a single decision.
type Pointwise struct {
	Cmd       string  `json:"cmd"`
	Erro      float64 `json:"erro"`
	DeltaErro float64 `json:"delta_erro"`
}

// Simulation starts a 24-hour simulation run.
type Simulation struct {
	Cmd      string  `json:"cmd"`
	TempExt  float64 `json:"temp_ext"`
	Carga    float64 `json:"carga"`
	Setpoint float64 `json:"setpoint"`
}

// FieldError lists the offending inputs.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(e.Fields, ", "))
}

func (e *FieldError) Unwrap() error { return ErrInvalidInput }

type parser struct {
	bad []string
}

func (p *parser) field(name, raw string, r Range) float64 {
	v, ok := fuzzy.ParseValue(raw)
	if !ok || !r.contains(v) {
		p.bad = append(p.bad, name)
		return 0
	}
	return v
}

func (p *parser) err() error {
	if len(p.bad) == 0 {
		return nil
	}
	return &FieldError{Fields: p.bad}
}

// BuildPointwise reads erro and delta_erro from the manual inputs.
func BuildPointwise(in dashboard.ManualInput, limits Limits) (Pointwise, error) {
	var p parser
	cmd := Pointwise{
		Cmd:       CmdPointwise,
		Erro:      p.field("erro", in.Erro, limits.Erro),
		DeltaErro: p.field("delta_erro", in.DeltaErro, limits.DeltaErro),
	}
	if err := p.err(); err != nil {
		return Pointwise{}, err
	}
	return cmd, nil
}

// BuildSimulation reads temp_ext, carga and setpoint from the manual
// inputs.
func BuildSimulation(in dashboard.ManualInput, limits Limits) (Simulation, error) {
	var p parser
	cmd := Simulation{
		Cmd:      CmdSimulation,
		TempExt:  p.field("temp_ext", in.TempExt, limits.TempExt),
		Carga:    p.field("carga", in.Carga, limits.Carga),
		Setpoint: p.field("setpoint", in.Setpoint, limits.Setpoint),
	}
	if err := p.err(); err != nil {
		return Simulation{}, err
	}
	return cmd, nil
}

// Encode marshals a command envelope.
func Encode(cmd any) ([]byte, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	return payload, nil
}
