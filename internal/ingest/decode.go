// v0
// internal/ingest/decode.go
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"nrgchamp/fuzzydash/internal/dashboard"
)

// Channel is the logical category of an inbound topic.
type Channel string

const (
	ChannelStream  Channel = "stream"
	ChannelResult  Channel = "result"
	ChannelAlert   Channel = "alert"
	ChannelAck     Channel = "command-ack"
	ChannelUnknown Channel = "unknown"
)

var (
	// ErrMalformed marks payloads that are not a JSON object or carry a
	// field of the wrong type.
	ErrMalformed = errors.New("malformed payload")
	// ErrMissingField marks payloads lacking a required field.
	ErrMissingField = errors.New("missing required field")
	// ErrUnknownKind marks result payloads whose kind is not recognised.
	ErrUnknownKind = errors.New("unknown result kind")
)

// Result kinds as published by the controller.
const (
	KindPointwise          = "pontual"
	KindSimulationComplete = "fim_simulacao"
)

// Classify maps a topic to its channel by substring.
func Classify(topic string) Channel {
	t := strings.ToLower(topic)
	switch {
	case strings.Contains(t, "stream"):
		return ChannelStream
	case strings.Contains(t, "result"):
		return ChannelResult
	case strings.Contains(t, "alert"):
		return ChannelAlert
	case strings.Contains(t, "ack"), strings.Contains(t, "cmd"):
		return ChannelAck
	default:
		return ChannelUnknown
	}
}

// Event is the decoded payload of one inbound message. Exactly one of the
// concrete types below is produced per channel.
type Event interface {
	Channel() Channel
}

// StreamEvent is one telemetry tick.
type StreamEvent struct {
	Label    string
	Temp     float64
	CRAC     float64
	Setpoint *float64
}

// PointwiseResult is the controller's answer to a manual command.
type PointwiseResult struct {
	Erro       float64
	DeltaErro  float64
	Output     *float64
	OutputTerm string
	Message    string
}

// SimulationComplete carries the aggregates of a finished run.
type SimulationComplete struct {
	Stats   map[string]dashboard.Stat
	Message string
}

// AlertEvent is one alert as published by the controller.
type AlertEvent struct {
	Type      string
	Message   string
	Timestamp string
}

// CommandAck echoes a command seen on the command topic.
type CommandAck struct {
	Cmd string
}

func (StreamEvent) Channel() Channel        { return ChannelStream }
func (PointwiseResult) Channel() Channel    { return ChannelResult }
func (SimulationComplete) Channel() Channel { return ChannelResult }
func (AlertEvent) Channel() Channel         { return ChannelAlert }
func (CommandAck) Channel() Channel         { return ChannelAck }

// Decode validates payload against the shape expected on channel. It
// returns a nil event for unknown channels.
func Decode(ch Channel, payload []byte) (Event, error) {
	if ch == ChannelUnknown {
		return nil, nil
	}
	fields, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}
	switch ch {
	case ChannelStream:
		return decodeStream(fields)
	case ChannelResult:
		return decodeResult(fields)
	case ChannelAlert:
		return decodeAlert(fields)
	case ChannelAck:
		cmd, _, err := stringField(fields, "cmd")
		if err != nil {
			return nil, err
		}
		return CommandAck{Cmd: cmd}, nil
	default:
		return nil, nil
	}
}

func decodeObject(payload []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformed)
	}
	return fields, nil
}

func decodeStream(fields map[string]json.RawMessage) (Event, error) {
	temp, err := requireNumber(fields, "temp", "temperatura")
	if err != nil {
		return nil, err
	}
	crac, err := requireNumber(fields, "crac", "potencia_crac")
	if err != nil {
		return nil, err
	}
	ev := StreamEvent{Temp: temp, CRAC: crac}
	if sp, ok, err := numberField(fields, "setpoint"); err != nil {
		return nil, err
	} else if ok {
		ev.Setpoint = &sp
	}
	label, _, err := labelField(fields, "t", "tempo", "timestamp")
	if err != nil {
		return nil, err
	}
	ev.Label = label
	return ev, nil
}

func decodeResult(fields map[string]json.RawMessage) (Event, error) {
	kind, ok, err := stringField(fields, "tipo", "kind")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: tipo", ErrMissingField)
	}
	msg, _, err := stringField(fields, "msg", "mensagem")
	if err != nil {
		return nil, err
	}

	switch normalizeKind(kind) {
	case KindPointwise:
		erro, err := requireNumber(fields, "erro")
		if err != nil {
			return nil, err
		}
		delta, err := requireNumber(fields, "delta_erro")
		if err != nil {
			return nil, err
		}
		res := PointwiseResult{Erro: erro, DeltaErro: delta, Message: msg}
		if out, ok, err := numberField(fields, "p_crac"); err != nil {
			return nil, err
		} else if ok {
			res.Output = &out
		}
		if err := decodeOutput(fields, &res); err != nil {
			return nil, err
		}
		return res, nil
	case KindSimulationComplete:
		stats, err := decodeStats(fields)
		if err != nil {
			return nil, err
		}
		return SimulationComplete{Stats: stats, Message: msg}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// decodeOutput reads saida, which is either the crisp output or the name
// of the output term. A number only fills Output when p_crac is absent.
func decodeOutput(fields map[string]json.RawMessage, res *PointwiseResult) error {
	raw, ok := fields["saida"]
	if !ok || isNull(raw) {
		return nil
	}
	var term string
	if err := json.Unmarshal(raw, &term); err == nil {
		res.OutputTerm = strings.TrimSpace(term)
		return nil
	}
	out, err := parseNumber(raw)
	if err != nil {
		return fmt.Errorf("%w: saida must be a term or a number: %v", ErrMalformed, err)
	}
	if res.Output == nil {
		res.Output = &out
	}
	return nil
}

func normalizeKind(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "pontual", "pointwise":
		return KindPointwise
	case "fim_simulacao", "simulation-complete", "simulation_complete":
		return KindSimulationComplete
	default:
		return kind
	}
}

// decodeStats keeps every variable with a complete min/avg/max triple and
// drops incomplete ones.
func decodeStats(fields map[string]json.RawMessage) (map[string]dashboard.Stat, error) {
	raw, ok := fields["stats"]
	if !ok || isNull(raw) {
		return nil, fmt.Errorf("%w: stats", ErrMissingField)
	}
	vars, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	out := make(map[string]dashboard.Stat, len(vars))
	for name, body := range vars {
		inner, err := decodeObject(body)
		if err != nil {
			continue
		}
		lo, okMin, errMin := numberField(inner, "min")
		mean, okAvg, errAvg := numberField(inner, "avg")
		hi, okMax, errMax := numberField(inner, "max")
		if errMin != nil || errAvg != nil || errMax != nil || !okMin || !okAvg || !okMax {
			continue
		}
		out[name] = dashboard.Stat{Min: lo, Avg: mean, Max: hi}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: stats has no complete variable", ErrMissingField)
	}
	return out, nil
}

func decodeAlert(fields map[string]json.RawMessage) (Event, error) {
	msg, ok, err := stringField(fields, "mensagem", "msg")
	if err != nil {
		return nil, err
	}
	if !ok || msg == "" {
		return nil, fmt.Errorf("%w: mensagem", ErrMissingField)
	}
	typ, _, err := stringField(fields, "tipo", "type")
	if err != nil {
		return nil, err
	}
	ts, _, err := labelField(fields, "timestamp")
	if err != nil {
		return nil, err
	}
	return AlertEvent{Type: typ, Message: msg, Timestamp: ts}, nil
}

func requireNumber(fields map[string]json.RawMessage, keys ...string) (float64, error) {
	v, ok, err := numberField(fields, keys...)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(keys, "|"))
	}
	return v, nil
}

// numberField reads the first present key as a finite number. JSON
// numbers and numeric strings are accepted; null counts as absent.
func numberField(fields map[string]json.RawMessage, keys ...string) (float64, bool, error) {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		v, err := parseNumber(raw)
		if err != nil {
			return 0, false, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
		}
		return v, true, nil
	}
	return 0, false, nil
}

func parseNumber(raw json.RawMessage) (float64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	var (
		f   float64
		err error
	)
	switch typed := v.(type) {
	case json.Number:
		f, err = typed.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(typed), 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("value is not finite")
	}
	return f, nil
}

func stringField(fields map[string]json.RawMessage, keys ...string) (string, bool, error) {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, fmt.Errorf("%w: %s must be a string", ErrMalformed, key)
		}
		return strings.TrimSpace(s), true, nil
	}
	return "", false, nil
}

// labelField reads a string or number used as a display label.
func labelField(fields map[string]json.RawMessage, keys ...string) (string, bool, error) {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s), true, nil
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return "", false, fmt.Errorf("%w: %s must be a string or number", ErrMalformed, key)
		}
		return n.String(), true, nil
	}
	return "", false, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
