// v0
// internal/render/frame.go
package render

import (
	"fmt"
	"strconv"
	"time"

	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/fuzzy"
	"nrgchamp/fuzzydash/internal/series"
)

// Placeholder is shown for readouts that have no value yet.
const Placeholder = "--"

// Frame is everything a client needs to redraw the dashboard. It is built
// on the event loop and never mutated afterwards.
type Frame struct {
	Version     uint64                           `json:"version"`
	GeneratedAt time.Time                        `json:"generatedAt"`
	Connection  ConnectionView                   `json:"connection"`
	History     series.Snapshot                  `json:"history"`
	Readouts    ReadoutsView                     `json:"readouts"`
	Setpoint    float64                          `json:"setpoint"`
	Inputs      dashboard.ManualInput            `json:"inputs"`
	Markers     map[string]*fuzzy.OperatingPoint `json:"markers"`
	Alerts      []AlertView                      `json:"alerts"`
	Stats       *dashboard.Statistics            `json:"stats,omitempty"`
	Activations []dashboard.ActivationRow        `json:"activations"`
}

// ConnectionView is the status badge.
type ConnectionView struct {
	State  dashboard.ConnectionState `json:"state"`
	Label  string                    `json:"label"`
	Color  string                    `json:"color"`
	Detail string                    `json:"detail,omitempty"`
	Since  time.Time                 `json:"since"`
}

// ReadoutsView holds the formatted numeric readouts.
type ReadoutsView struct {
	Label      string `json:"label"`
	Temp       string `json:"temp"`
	CRAC       string `json:"crac"`
	Setpoint   string `json:"setpoint"`
	Error      string `json:"error"`
	DeltaError string `json:"deltaError"`
	Output     string `json:"output"`
	OutputTerm string `json:"outputTerm"`
	Message    string `json:"message"`
}

// AlertView is one line of the alert surface.
type AlertView struct {
	ID        string             `json:"id"`
	Timestamp string             `json:"timestamp"`
	Severity  dashboard.Severity `json:"severity"`
	Color     string             `json:"color"`
	Type      string             `json:"type"`
	Message   string             `json:"message"`
	Text      string             `json:"text"`
}

// Projector turns dashboard state into frames.
type Projector struct {
	Variables fuzzy.Set
}

// Project builds a frame from s. It only reads s.
func (p Projector) Project(s *dashboard.State, now time.Time) Frame {
	alerts := s.Alerts.Items()
	views := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		views = append(views, AlertLine(a))
	}
	activations := make([]dashboard.ActivationRow, len(s.Activations))
	copy(activations, s.Activations)

	var stats *dashboard.Statistics
	if s.Stats != nil {
		cp := *s.Stats
		cp.Variables = make(map[string]dashboard.Stat, len(s.Stats.Variables))
		for k, v := range s.Stats.Variables {
			cp.Variables[k] = v
		}
		stats = &cp
	}

	return Frame{
		Version:     s.Version,
		GeneratedAt: now,
		Connection:  ConnectionBadge(s.Connection),
		History:     s.Buffer.Snapshot(),
		Readouts:    FormatReadouts(s.Readouts),
		Setpoint:    s.Setpoint,
		Inputs:      s.Inputs,
		Markers:     p.Markers(s),
		Alerts:      views,
		Stats:       stats,
		Activations: activations,
	}
}

// Markers locates the operating point of every variable. The error and
// error-rate markers follow the manual inputs; the output marker follows
// the last pointwise result. Variables without a usable value map to nil.
func (p Projector) Markers(s *dashboard.State) map[string]*fuzzy.OperatingPoint {
	out := make(map[string]*fuzzy.OperatingPoint, len(p.Variables.Variables))
	for _, v := range p.Variables.Variables {
		var (
			op fuzzy.OperatingPoint
			ok bool
		)
		switch v.Name {
		case fuzzy.VarError:
			op, ok = fuzzy.LocateRaw(v, s.Inputs.Erro)
		case fuzzy.VarDelta:
			op, ok = fuzzy.LocateRaw(v, s.Inputs.DeltaErro)
		case fuzzy.VarOutput:
			if s.Readouts.Output != nil {
				op, ok = fuzzy.Locate(v, *s.Readouts.Output)
			}
		}
		if ok {
			point := op
			out[v.Name] = &point
		} else {
			out[v.Name] = nil
		}
	}
	return out
}

// ConnectionBadge maps the transport status to its label and colour.
func ConnectionBadge(c dashboard.Connection) ConnectionView {
	view := ConnectionView{State: c.State, Detail: c.Detail, Since: c.Since}
	switch c.State {
	case dashboard.Connected:
		view.Label, view.Color = "Connected", "green"
	case dashboard.Disconnected:
		view.Label, view.Color = "Disconnected", "red"
	case dashboard.Failed:
		view.Label, view.Color = "Connection error", "red"
	default:
		view.Label, view.Color = "Connecting...", "yellow"
	}
	return view
}

// AlertLine formats an alert as "[timestamp] type: message" and picks its
// colour from the severity.
func AlertLine(a dashboard.Alert) AlertView {
	color := "blue"
	if a.Severity == dashboard.SeverityCritical {
		color = "red"
	}
	typ := a.Type
	if typ == "" {
		typ = string(a.Severity)
	}
	return AlertView{
		ID:        a.ID,
		Timestamp: a.Timestamp,
		Severity:  a.Severity,
		Color:     color,
		Type:      a.Type,
		Message:   a.Message,
		Text:      fmt.Sprintf("[%s] %s: %s", a.Timestamp, typ, a.Message),
	}
}

// FormatReadouts renders the readouts with the placeholder for missing
// values.
func FormatReadouts(r dashboard.Readouts) ReadoutsView {
	return ReadoutsView{
		Label:      orPlaceholder(r.Label),
		Temp:       FormatValue(r.Temp, 1),
		CRAC:       FormatValue(r.CRAC, 0),
		Setpoint:   FormatValue(r.Setpoint, 1),
		Error:      FormatValue(r.Error, 2),
		DeltaError: FormatValue(r.DeltaError, 2),
		Output:     FormatValue(r.Output, 1),
		OutputTerm: orPlaceholder(r.OutputTerm),
		Message:    r.Message,
	}
}

// FormatValue formats v with the given precision, or returns the
// placeholder for nil.
func FormatValue(v *float64, precision int) string {
	if v == nil {
		return Placeholder
	}
	return strconv.FormatFloat(*v, 'f', precision, 64)
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}
