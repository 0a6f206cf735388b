// v0
// internal/ingest/router.go
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/fuzzy"
)

// Message is one inbound transport delivery.
type Message struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Row is a stream tick resolved against the current state.
type Row struct {
	Label    string
	Temp     float64
	CRAC     float64
	Setpoint float64
	Error    float64
	// SetpointFromMessage is true when the tick carried its own setpoint.
	SetpointFromMessage bool
}

// Delta is the state change produced by one message. A zero Delta changes
// nothing.
type Delta struct {
	Channel    Channel
	Row        *Row
	Pointwise  *PointwiseResult
	Activation *dashboard.ActivationRow
	Stats      *dashboard.Statistics
	Alert      *dashboard.Alert
	Ack        *CommandAck
}

// Mutates reports whether applying d changes the dashboard state.
func (d Delta) Mutates() bool {
	return d.Row != nil || d.Pointwise != nil || d.Stats != nil || d.Alert != nil
}

// Outcome reports the side effects of Apply that callers may want to
// observe.
type Outcome struct {
	Evicted       bool
	AlertsDropped int
}

// Recorder receives routing counters. The metrics package implements it.
type Recorder interface {
	MessageAccepted(channel string)
	MessageDiscarded(channel, reason string)
	RowEvicted()
}

type nopRecorder struct{}

func (nopRecorder) MessageAccepted(string)           {}
func (nopRecorder) MessageDiscarded(string, string) {}
func (nopRecorder) RowEvicted()                      {}

// Router turns inbound messages into state changes.
type Router struct {
	variables fuzzy.Set
	rules     []fuzzy.Rule
	log       *slog.Logger
	rec       Recorder
}

// NewRouter builds a router. variables and rules feed the rule-activation
// table of pointwise results.
func NewRouter(variables fuzzy.Set, rules []fuzzy.Rule, logger *slog.Logger, rec Recorder) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Router{variables: variables, rules: rules, log: logger, rec: rec}
}

// Handle computes the delta for msg against s without mutating s.
// Unknown channels produce an empty delta and no error.
func (r *Router) Handle(s *dashboard.State, msg Message) (Delta, error) {
	ch := Classify(msg.Topic)
	ev, err := Decode(ch, msg.Payload)
	if err != nil {
		return Delta{Channel: ch}, err
	}
	d := Delta{Channel: ch}
	switch e := ev.(type) {
	case nil:
	case StreamEvent:
		setpoint := s.Setpoint
		if e.Setpoint != nil {
			setpoint = *e.Setpoint
		}
		label := e.Label
		if label == "" {
			label = strconv.FormatUint(s.Sequence+1, 10)
		}
		d.Row = &Row{
			Label:               label,
			Temp:                e.Temp,
			CRAC:                e.CRAC,
			Setpoint:            setpoint,
			Error:               e.Temp - setpoint,
			SetpointFromMessage: e.Setpoint != nil,
		}
	case PointwiseResult:
		res := e
		d.Pointwise = &res
		acts := fuzzy.Activate(r.variables, r.rules, e.Erro, e.DeltaErro)
		row := &dashboard.ActivationRow{
			At:     msg.ReceivedAt,
			Erro:   e.Erro,
			Delta:  e.DeltaErro,
			Output: e.Output,
			Rules:  acts,
		}
		if best, ok := fuzzy.Strongest(acts); ok {
			row.Strongest = &best
		}
		d.Activation = row
	case SimulationComplete:
		d.Stats = &dashboard.Statistics{
			Variables:  e.Stats,
			Message:    e.Message,
			ReceivedAt: msg.ReceivedAt,
		}
	case AlertEvent:
		ts := e.Timestamp
		if ts == "" {
			ts = msg.ReceivedAt.Format("15:04:05")
		}
		d.Alert = &dashboard.Alert{
			Timestamp:  ts,
			ReceivedAt: msg.ReceivedAt,
			Severity:   ClassifySeverity(e.Type),
			Type:       e.Type,
			Message:    e.Message,
		}
	case CommandAck:
		ack := e
		d.Ack = &ack
	}
	return d, nil
}

// Apply mutates s with d.
func Apply(s *dashboard.State, d Delta) (Outcome, error) {
	var out Outcome
	if !d.Mutates() {
		return out, nil
	}
	if d.Row != nil {
		evicted, err := s.Buffer.Append(d.Row.Label, map[string]float64{
			dashboard.SeriesTemp:     d.Row.Temp,
			dashboard.SeriesSetpoint: d.Row.Setpoint,
			dashboard.SeriesCRAC:     d.Row.CRAC,
			dashboard.SeriesError:    d.Row.Error,
		})
		if err != nil {
			return out, fmt.Errorf("append row: %w", err)
		}
		out.Evicted = evicted
		s.Sequence++
		if d.Row.SetpointFromMessage {
			s.Setpoint = d.Row.Setpoint
		}
		s.Readouts.Label = d.Row.Label
		s.Readouts.Temp = dashboard.Float(d.Row.Temp)
		s.Readouts.CRAC = dashboard.Float(d.Row.CRAC)
		s.Readouts.Setpoint = dashboard.Float(d.Row.Setpoint)
		s.Readouts.Error = dashboard.Float(d.Row.Error)
	}
	if d.Pointwise != nil {
		s.Readouts.Error = dashboard.Float(d.Pointwise.Erro)
		s.Readouts.DeltaError = dashboard.Float(d.Pointwise.DeltaErro)
		s.Readouts.Output = nil
		if d.Pointwise.Output != nil {
			s.Readouts.Output = dashboard.Float(*d.Pointwise.Output)
		}
		s.Readouts.OutputTerm = d.Pointwise.OutputTerm
		s.Readouts.Message = d.Pointwise.Message
	}
	if d.Activation != nil {
		s.PushActivation(*d.Activation)
	}
	if d.Stats != nil {
		stats := *d.Stats
		s.Stats = &stats
		if stats.Message != "" {
			s.Readouts.Message = stats.Message
		}
	}
	if d.Alert != nil {
		alert := *d.Alert
		if alert.ID == "" {
			alert.ID = uuid.NewString()
		}
		out.AlertsDropped = s.Alerts.Prepend(alert)
	}
	s.Version++
	return out, nil
}

// Route handles and applies msg. Malformed messages are logged and
// discarded; they never reach the state. The boolean reports whether the
// state was mutated and a redraw is due.
func (r *Router) Route(s *dashboard.State, msg Message) (Delta, bool) {
	d, err := r.Handle(s, msg)
	if err != nil {
		r.log.Warn("ingest_decode_error",
			slog.String("topic", msg.Topic),
			slog.String("channel", string(d.Channel)),
			slog.Any("err", err),
			slog.Int("payload_bytes", len(msg.Payload)),
		)
		r.rec.MessageDiscarded(string(d.Channel), discardReason(err))
		return Delta{Channel: d.Channel}, false
	}
	if d.Channel == ChannelUnknown {
		r.rec.MessageDiscarded(string(d.Channel), "unknown_channel")
		return d, false
	}
	if d.Ack != nil {
		r.log.Info("ingest_command_ack", slog.String("cmd", d.Ack.Cmd))
	}
	out, err := Apply(s, d)
	if err != nil {
		r.log.Warn("ingest_apply_error",
			slog.String("topic", msg.Topic),
			slog.Any("err", err),
		)
		r.rec.MessageDiscarded(string(d.Channel), "apply")
		return Delta{Channel: d.Channel}, false
	}
	r.rec.MessageAccepted(string(d.Channel))
	if out.Evicted {
		r.rec.RowEvicted()
	}
	if d.Alert != nil {
		level := slog.LevelInfo
		if d.Alert.Severity == dashboard.SeverityCritical {
			level = slog.LevelWarn
		}
		r.log.Log(context.Background(), level, "ingest_alert",
			slog.String("type", d.Alert.Type),
			slog.String("message", d.Alert.Message),
			slog.String("timestamp", d.Alert.Timestamp),
		)
	}
	if d.Stats != nil {
		r.log.Info("ingest_simulation_complete", slog.Int("variables", len(d.Stats.Variables)))
	}
	return d, d.Mutates()
}

// ClassifySeverity maps the controller's alert type to a severity.
func ClassifySeverity(tipo string) dashboard.Severity {
	switch strings.ToLower(strings.TrimSpace(tipo)) {
	case "critico", "crítico", "critical", "alerta":
		return dashboard.SeverityCritical
	default:
		return dashboard.SeverityInfo
	}
}

func discardReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrUnknownKind):
		return "unknown_kind"
	default:
		return "malformed"
	}
}
