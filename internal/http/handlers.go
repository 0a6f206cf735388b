// v0
// internal/http/handlers.go
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"nrgchamp/fuzzydash/internal/breaker"
	"nrgchamp/fuzzydash/internal/command"
	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/render"
	"nrgchamp/fuzzydash/internal/report"
	"nrgchamp/fuzzydash/internal/transport"
)

const maxBodyBytes = 16 << 10

type api struct {
	Deps
	log *slog.Logger
}

// inputPatch is a partial manual-input update. Absent fields keep their
// current value.
type inputPatch struct {
	Erro      *string `json:"erro"`
	DeltaErro *string `json:"delta_erro"`
	Setpoint  *string `json:"setpoint"`
	TempExt   *string `json:"temp_ext"`
	Carga     *string `json:"carga"`
}

func (p inputPatch) empty() bool {
	return p.Erro == nil && p.DeltaErro == nil && p.Setpoint == nil && p.TempExt == nil && p.Carga == nil
}

func (p inputPatch) apply(in *dashboard.ManualInput) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&in.Erro, p.Erro)
	set(&in.DeltaErro, p.DeltaErro)
	set(&in.Setpoint, p.Setpoint)
	set(&in.TempExt, p.TempExt)
	set(&in.Carga, p.Carga)
}

type inputsResponse struct {
	Inputs  dashboard.ManualInput `json:"inputs"`
	Markers any                   `json:"markers"`
}

type commandResponse struct {
	Status  string `json:"status"`
	Command any    `json:"command"`
}

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func (a *api) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Engine.Latest())
}

func (a *api) getInputs(w http.ResponseWriter, r *http.Request) {
	f := a.Engine.Latest()
	writeJSON(w, http.StatusOK, inputsResponse{Inputs: f.Inputs, Markers: f.Markers})
}

func (a *api) putInputs(w http.ResponseWriter, r *http.Request) {
	patch, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.updateInputs(r, patch); err != nil {
		a.engineError(w, err)
		return
	}
	f := a.Engine.Latest()
	writeJSON(w, http.StatusOK, inputsResponse{Inputs: f.Inputs, Markers: f.Markers})
}

func (a *api) updateInputs(r *http.Request, patch inputPatch) error {
	if patch.empty() {
		return nil
	}
	return a.Engine.Do(r.Context(), func(s *dashboard.State) (bool, error) {
		before := s.Inputs
		patch.apply(&s.Inputs)
		return s.Inputs != before, nil
	})
}

func (a *api) pointwise(w http.ResponseWriter, r *http.Request) {
	inputs, ok := a.commandInputs(w, r, command.CmdPointwise)
	if !ok {
		return
	}
	cmd, err := command.BuildPointwise(inputs, a.Limits)
	if err != nil {
		a.rejectInput(w, command.CmdPointwise, err)
		return
	}
	a.send(w, r, command.CmdPointwise, cmd)
}

func (a *api) simulate(w http.ResponseWriter, r *http.Request) {
	inputs, ok := a.commandInputs(w, r, command.CmdSimulation)
	if !ok {
		return
	}
	cmd, err := command.BuildSimulation(inputs, a.Limits)
	if err != nil {
		a.rejectInput(w, command.CmdSimulation, err)
		return
	}
	if a.Publisher == nil || !a.Publisher.Connected() {
		a.commandFailed(w, command.CmdSimulation, transport.ErrNotConnected)
		return
	}
	// The new run starts from an empty history.
	var cp dashboard.RunCheckpoint
	err = a.Engine.Do(r.Context(), func(s *dashboard.State) (bool, error) {
		cp = s.ClearRun(cmd.Setpoint)
		return true, nil
	})
	if err != nil {
		a.engineError(w, err)
		return
	}
	if a.send(w, r, command.CmdSimulation, cmd) {
		a.log.Info("simulation_run_cleared", slog.Float64("setpoint", cmd.Setpoint))
		return
	}
	var restored bool
	err = a.Engine.Do(context.WithoutCancel(r.Context()), func(s *dashboard.State) (bool, error) {
		ok, err := s.RestoreRun(cp)
		restored = ok
		return ok, err
	})
	if err != nil {
		a.log.Error("simulation_restore_failed", slog.Any("err", err))
		return
	}
	a.log.Info("simulation_history_restored", slog.Bool("restored", restored))
}

// commandInputs applies the optional body patch, enforces the rate limit
// and returns the inputs the command is built from.
func (a *api) commandInputs(w http.ResponseWriter, r *http.Request, name string) (dashboard.ManualInput, bool) {
	if !a.Limiter.Allow() {
		a.count(name, "rate_limited")
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "too many commands")
		return dashboard.ManualInput{}, false
	}
	patch, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return dashboard.ManualInput{}, false
	}
	if err := a.updateInputs(r, patch); err != nil {
		a.engineError(w, err)
		return dashboard.ManualInput{}, false
	}
	return a.Engine.Latest().Inputs, true
}

// send publishes cmd and writes the response. It reports whether the
// command reached the broker.
func (a *api) send(w http.ResponseWriter, r *http.Request, name string, cmd any) bool {
	payload, err := command.Encode(cmd)
	if err != nil {
		a.count(name, "error")
		writeError(w, http.StatusInternalServerError, "encode command")
		return false
	}
	if a.Publisher == nil {
		a.commandFailed(w, name, transport.ErrNotConnected)
		return false
	}
	if err := a.Publisher.Publish(r.Context(), payload); err != nil {
		a.commandFailed(w, name, err)
		return false
	}
	a.count(name, "sent")
	if a.Commands != nil {
		a.Commands.Offer("command", time.Now(), payload)
	}
	a.log.Info("command_sent", slog.String("cmd", name), slog.Int("bytes", len(payload)))
	writeJSON(w, http.StatusAccepted, commandResponse{Status: "sent", Command: cmd})
	return true
}

func (a *api) rejectInput(w http.ResponseWriter, name string, err error) {
	a.count(name, "invalid")
	a.log.Warn("command_rejected", slog.String("cmd", name), slog.Any("err", err))
	resp := errorResponse{Error: err.Error()}
	var fe *command.FieldError
	if errors.As(err, &fe) {
		resp.Fields = fe.Fields
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
}

func (a *api) commandFailed(w http.ResponseWriter, name string, err error) {
	status := http.StatusBadGateway
	outcome := "failed"
	switch {
	case errors.Is(err, transport.ErrNotConnected):
		status, outcome = http.StatusServiceUnavailable, "not_connected"
	case errors.Is(err, breaker.ErrOpen):
		status, outcome = http.StatusServiceUnavailable, "breaker_open"
	}
	a.count(name, outcome)
	a.log.Warn("command_publish_failed", slog.String("cmd", name), slog.Any("err", err))
	writeError(w, status, err.Error())
}

func (a *api) reset(w http.ResponseWriter, r *http.Request) {
	err := a.Engine.Do(r.Context(), func(s *dashboard.State) (bool, error) {
		s.Reset()
		return true, nil
	})
	if err != nil {
		a.engineError(w, err)
		return
	}
	a.log.Info("dashboard_reset")
	writeJSON(w, http.StatusOK, a.Engine.Latest())
}

func (a *api) membership(w http.ResponseWriter, r *http.Request) {
	view, ok := a.membershipView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *api) membershipChart(w http.ResponseWriter, r *http.Request) {
	view, ok := a.membershipView(w, r)
	if !ok {
		return
	}
	png, err := render.MembershipPNG(view, a.ChartWidth, a.ChartHeight)
	if err != nil {
		a.log.Error("chart_render_failed", slog.String("variable", view.Variable), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "render chart")
		return
	}
	writePNG(w, png)
}

func (a *api) membershipView(w http.ResponseWriter, r *http.Request) (render.MembershipView, bool) {
	name := mux.Vars(r)["variable"]
	v, ok := a.Variables.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown variable %q", name))
		return render.MembershipView{}, false
	}
	return render.Membership(v, a.Engine.Latest().Markers[name]), true
}

func (a *api) historyChart(w http.ResponseWriter, r *http.Request) {
	kind := render.ChartKind(r.URL.Query().Get("series"))
	if kind == "" {
		kind = render.ChartTemperature
	}
	if kind != render.ChartTemperature && kind != render.ChartPower {
		writeError(w, http.StatusBadRequest, "series must be temperature or power")
		return
	}
	png, err := render.HistoryPNG(a.Engine.Latest().History, kind, a.ChartWidth, a.ChartHeight)
	if err != nil {
		a.log.Error("chart_render_failed", slog.String("series", string(kind)), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "render chart")
		return
	}
	writePNG(w, png)
}

func (a *api) report(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	frame := a.Engine.Latest()
	in := report.Input{GeneratedAt: now, Frame: frame, Band: a.Band}
	in.Metrics, in.HasMetrics = dashboard.ComputeRunMetrics(frame.History, a.Band)
	if frame.History.Len() > 0 {
		chart, err := render.HistoryPNG(frame.History, render.ChartTemperature, a.ChartWidth, a.ChartHeight)
		if err != nil {
			a.log.Warn("report_chart_failed", slog.Any("err", err))
		} else {
			in.Chart = chart
		}
	}
	if a.LogTail != nil {
		in.LogLines = a.LogTail()
	}
	pdf, err := report.Build(in)
	if err != nil {
		a.log.Error("report_build_failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "build report")
		return
	}
	a.log.Info("report_exported",
		slog.Int("bytes", len(pdf)),
		slog.Bool("has_stats", frame.Stats != nil),
		slog.Int("rows", frame.History.Len()),
	)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="fuzzydash-report-%s.pdf"`, now.Format("20060102-150405")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (a *api) engineError(w http.ResponseWriter, err error) {
	a.log.Warn("engine_call_failed", slog.Any("err", err))
	writeError(w, http.StatusServiceUnavailable, "dashboard unavailable")
}

func (a *api) count(cmd, outcome string) {
	if a.Observer != nil {
		a.Observer.CommandSent(cmd, outcome)
	}
}

func decodePatch(r *http.Request) (inputPatch, error) {
	var patch inputPatch
	if r.Body == nil {
		return patch, nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		if errors.Is(err, io.EOF) {
			return inputPatch{}, nil
		}
		return inputPatch{}, fmt.Errorf("invalid body: %w", err)
	}
	return patch, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
