// v0
// internal/dashboard/state.go
package dashboard

import (
	"errors"
	"fmt"
	"time"

	"nrgchamp/fuzzydash/internal/fuzzy"
	"nrgchamp/fuzzydash/internal/series"
)

// Series held by the history buffer.
const (
	SeriesTemp     = "temp"
	SeriesSetpoint = "setpoint"
	SeriesCRAC     = "crac"
	SeriesError    = "error"
)

// HistorySeries lists the buffer columns in display order.
var HistorySeries = []string{SeriesTemp, SeriesSetpoint, SeriesCRAC, SeriesError}

// Options sizes the state containers.
type Options struct {
	// Capacity is the number of rows retained by the history buffer.
	Capacity int
	// MaxAlerts caps the alert list.
	MaxAlerts int
	// MaxActivations caps the rule-activation table.
	MaxActivations int
	// DefaultSetpoint seeds the setpoint used to compute the error readout
	// until a stream message or simulation command supplies one.
	DefaultSetpoint float64
}

// Readouts are the live numeric values shown next to the charts. A nil
// pointer means no value has been received yet.
type Readouts struct {
	Label      string   `json:"label,omitempty"`
	Temp       *float64 `json:"temp"`
	CRAC       *float64 `json:"crac"`
	Setpoint   *float64 `json:"setpoint"`
	Error      *float64 `json:"error"`
	DeltaError *float64 `json:"deltaError"`
	Output     *float64 `json:"output"`
	OutputTerm string   `json:"outputTerm,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// ManualInput holds the operator fields exactly as typed. Values are
// parsed when a command is sent or a marker is drawn.
type ManualInput struct {
	Erro      string `json:"erro"`
	DeltaErro string `json:"delta_erro"`
	Setpoint  string `json:"setpoint"`
	TempExt   string `json:"temp_ext"`
	Carga     string `json:"carga"`
}

// Stat is a min/avg/max triple.
type Stat struct {
	Min float64 `json:"min"`
	Avg float64 `json:"avg"`
	Max float64 `json:"max"`
}

// Statistics are the aggregates published by the controller when a
// simulation run completes.
type Statistics struct {
	Variables  map[string]Stat `json:"variables"`
	Message    string          `json:"message,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// ActivationRow records the rule table for one pointwise result.
type ActivationRow struct {
	At        time.Time          `json:"at"`
	Erro      float64            `json:"erro"`
	Delta     float64            `json:"delta"`
	Output    *float64           `json:"output"`
	Strongest *fuzzy.Activation  `json:"strongest,omitempty"`
	Rules     []fuzzy.Activation `json:"rules"`
}

// ConnectionState is the transport status shown to the operator.
type ConnectionState string

const (
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
	Disconnected ConnectionState = "disconnected"
	Failed       ConnectionState = "error"
)

// Connection describes the current transport status.
type Connection struct {
	State  ConnectionState `json:"state"`
	Detail string          `json:"detail,omitempty"`
	Since  time.Time       `json:"since"`
}

// State is the dashboard's mutable state. It is owned by the event loop;
// nothing else mutates it.
type State struct {
	Buffer      *series.Buffer
	Alerts      *AlertList
	Readouts    Readouts
	Setpoint    float64
	Inputs      ManualInput
	Stats       *Statistics
	Activations []ActivationRow
	Connection  Connection
	// Sequence counts accepted stream rows since the last reset. It labels
	// rows that arrive without a timestamp.
	Sequence uint64
	// Version increases on every applied mutation.
	Version uint64

	maxActivations  int
	defaultSetpoint float64
}

// New builds an empty state.
func New(opts Options) (*State, error) {
	if opts.MaxAlerts <= 0 {
		return nil, errors.New("max alerts must be positive")
	}
	if opts.MaxActivations <= 0 {
		return nil, errors.New("max activations must be positive")
	}
	buf, err := series.New(opts.Capacity, HistorySeries...)
	if err != nil {
		return nil, fmt.Errorf("history buffer: %w", err)
	}
	return &State{
		Buffer:          buf,
		Alerts:          NewAlertList(opts.MaxAlerts),
		Setpoint:        opts.DefaultSetpoint,
		Connection:      Connection{State: Connecting},
		maxActivations:  opts.MaxActivations,
		defaultSetpoint: opts.DefaultSetpoint,
	}, nil
}

// PushActivation prepends a row to the rule-activation table and drops
// the oldest rows beyond the cap.
func (s *State) PushActivation(row ActivationRow) {
	next := make([]ActivationRow, 0, min(len(s.Activations)+1, s.maxActivations))
	next = append(next, row)
	for _, existing := range s.Activations {
		if len(next) == s.maxActivations {
			break
		}
		next = append(next, existing)
	}
	s.Activations = next
}

// Reset clears history, alerts, statistics, activations and readouts.
// Manual inputs, the current setpoint and the connection status survive.
func (s *State) Reset() {
	s.Buffer.Clear()
	s.Alerts.Clear()
	s.Stats = nil
	s.Activations = nil
	s.Readouts = Readouts{}
	s.Sequence = 0
}

// RunCheckpoint holds what ClearRun discarded so a run that never started
// can be undone.
type RunCheckpoint struct {
	history  series.Snapshot
	sequence uint64
	setpoint float64
}

// ClearRun prepares the state for a new simulation run: the history is
// emptied and the setpoint switches to the run's setpoint. Statistics of
// the previous run stay until the new run overwrites them.
func (s *State) ClearRun(setpoint float64) RunCheckpoint {
	cp := RunCheckpoint{history: s.Buffer.Snapshot(), sequence: s.Sequence, setpoint: s.Setpoint}
	s.Buffer.Clear()
	s.Sequence = 0
	s.Setpoint = setpoint
	return cp
}

// RestoreRun puts back the history and setpoint dropped by ClearRun. It
// reports false and leaves the state alone when rows arrived since the
// checkpoint.
func (s *State) RestoreRun(cp RunCheckpoint) (bool, error) {
	if s.Buffer.Len() != 0 {
		return false, nil
	}
	for j, label := range cp.history.Labels {
		row := make(map[string]float64, len(cp.history.Series))
		for name, col := range cp.history.Series {
			row[name] = col[j]
		}
		if _, err := s.Buffer.Append(label, row); err != nil {
			s.Buffer.Clear()
			return false, fmt.Errorf("restore row %d: %w", j, err)
		}
	}
	s.Sequence = cp.sequence
	s.Setpoint = cp.setpoint
	return true, nil
}

// DefaultSetpoint returns the configured fallback setpoint.
func (s *State) DefaultSetpoint() float64 { return s.defaultSetpoint }

// Float returns a pointer to a copy of v, for readouts.
func Float(v float64) *float64 { return &v }
