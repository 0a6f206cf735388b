// v0
// internal/report/report_test.go
package report

import (
	"bytes"
	"testing"
	"time"

	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/fuzzy"
	"nrgchamp/fuzzydash/internal/render"
)

func emptyFrame(t *testing.T) render.Frame {
	t.Helper()
	s, err := dashboard.New(dashboard.Options{Capacity: 10, MaxAlerts: 5, MaxActivations: 5, DefaultSetpoint: 22})
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	return render.Projector{Variables: fuzzy.DefaultSet()}.Project(s, time.Now())
}

func TestBuildWithoutStatistics(t *testing.T) {
	out, err := Build(Input{GeneratedAt: time.Now(), Frame: emptyFrame(t), Band: dashboard.Band{Low: 18, High: 26}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestBuildFullReport(t *testing.T) {
	s, err := dashboard.New(dashboard.Options{Capacity: 10, MaxAlerts: 5, MaxActivations: 5, DefaultSetpoint: 22})
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	for i, temp := range []float64{21, 22.5, 24, 27} {
		row := map[string]float64{
			dashboard.SeriesTemp:     temp,
			dashboard.SeriesSetpoint: 22,
			dashboard.SeriesCRAC:     40 + float64(i),
			dashboard.SeriesError:    temp - 22,
		}
		if _, err := s.Buffer.Append("t"+string(rune('0'+i)), row); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	s.Stats = &dashboard.Statistics{Variables: map[string]dashboard.Stat{
		"temp":  {Min: 21, Avg: 23.6, Max: 27},
		"crac":  {Min: 40, Avg: 41.5, Max: 43},
		"extra": {Min: 1, Avg: 2, Max: 3},
	}, Message: "Simulação concluída"}
	s.Alerts.Prepend(dashboard.Alert{Timestamp: "12:00", Severity: dashboard.SeverityCritical, Type: "alerta", Message: "ALERTA: Temp 27°C"})
	s.Inputs = dashboard.ManualInput{Setpoint: "22", TempExt: "25", Carga: "40"}
	frame := render.Projector{Variables: fuzzy.DefaultSet()}.Project(s, time.Now())

	chart, err := render.HistoryPNG(frame.History, render.ChartTemperature, 640, 320)
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	band := dashboard.Band{Low: 18, High: 26}
	metrics, ok := dashboard.ComputeRunMetrics(frame.History, band)
	if !ok {
		t.Fatalf("expected run metrics")
	}
	out, err := Build(Input{
		GeneratedAt: time.Now(),
		Frame:       frame,
		Metrics:     metrics,
		HasMetrics:  true,
		Band:        band,
		Chart:       chart,
		LogLines:    []string{`time=2024-05-01T12:00:00Z level=INFO msg=ingest_alert type=alerta`},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestStatRowsPlaceholders(t *testing.T) {
	rows := statRows(nil)
	if len(rows) != len(StatVariables) {
		t.Fatalf("expected %d rows, got %d", len(StatVariables), len(rows))
	}
	for _, row := range rows {
		for _, cell := range row[1:] {
			if cell != render.Placeholder {
				t.Fatalf("expected placeholder, got %q", cell)
			}
		}
	}
	rows = statRows(&dashboard.Statistics{Variables: map[string]dashboard.Stat{"temp": {Min: 1, Avg: 2, Max: 3}}})
	if rows[0][1] != "1.00" || rows[1][1] != render.Placeholder {
		t.Fatalf("unexpected rows %v", rows)
	}
}
