// v0
// internal/dashboard/state_test.go
package dashboard

import (
	"fmt"
	"math"
	"testing"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := New(Options{Capacity: 4, MaxAlerts: 3, MaxActivations: 2, DefaultSetpoint: 22})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestAlertListNewestFirstAndCapped(t *testing.T) {
	l := NewAlertList(3)
	dropped := 0
	for i := 0; i < 5; i++ {
		dropped += l.Prepend(Alert{Message: fmt.Sprintf("m%d", i)})
	}
	if dropped != 2 {
		t.Fatalf("expected 2 dropped alerts, got %d", dropped)
	}
	items := l.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(items))
	}
	for i, want := range []string{"m4", "m3", "m2"} {
		if items[i].Message != want {
			t.Fatalf("alert %d: expected %q, got %q", i, want, items[i].Message)
		}
	}
	if recent := l.Recent(2); len(recent) != 2 || recent[0].Message != "m4" {
		t.Fatalf("unexpected recent alerts: %+v", recent)
	}
	if recent := l.Recent(10); len(recent) != 3 {
		t.Fatalf("expected recent to clamp, got %d", len(recent))
	}
}

func TestPushActivationCapped(t *testing.T) {
	s := newTestState(t)
	for i := 0; i < 3; i++ {
		s.PushActivation(ActivationRow{Erro: float64(i)})
	}
	if len(s.Activations) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(s.Activations))
	}
	if s.Activations[0].Erro != 2 || s.Activations[1].Erro != 1 {
		t.Fatalf("unexpected order: %+v", s.Activations)
	}
}

func TestResetKeepsInputsAndConnection(t *testing.T) {
	s := newTestState(t)
	s.Inputs = ManualInput{Erro: "1.5"}
	s.Connection = Connection{State: Connected}
	if _, err := s.Buffer.Append("1", map[string]float64{SeriesTemp: 21, SeriesSetpoint: 22, SeriesCRAC: 40, SeriesError: -1}); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}
	s.Alerts.Prepend(Alert{Message: "x"})
	s.Stats = &Statistics{}
	s.Readouts.Temp = Float(21)
	s.Sequence = 1

	s.Reset()

	if s.Buffer.Len() != 0 || s.Alerts.Len() != 0 || s.Stats != nil || s.Readouts.Temp != nil || s.Sequence != 0 {
		t.Fatalf("reset left data behind: %+v", s)
	}
	if s.Inputs.Erro != "1.5" {
		t.Fatalf("reset must keep manual inputs")
	}
	if s.Connection.State != Connected {
		t.Fatalf("reset must keep connection status")
	}
}

func TestClearRunKeepsStatistics(t *testing.T) {
	s := newTestState(t)
	s.Stats = &Statistics{Message: "previous"}
	if _, err := s.Buffer.Append("1", map[string]float64{SeriesTemp: 21, SeriesSetpoint: 22, SeriesCRAC: 40, SeriesError: -1}); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}
	s.ClearRun(24)
	if s.Buffer.Len() != 0 {
		t.Fatalf("expected empty history")
	}
	if s.Setpoint != 24 {
		t.Fatalf("expected setpoint 24, got %v", s.Setpoint)
	}
	if s.Stats == nil || s.Stats.Message != "previous" {
		t.Fatalf("statistics must survive until overwritten")
	}
}

func TestRestoreRunUndoesClear(t *testing.T) {
	s := newTestState(t)
	for i, temp := range []float64{21, 22.5, 24} {
		row := map[string]float64{SeriesTemp: temp, SeriesSetpoint: 22, SeriesCRAC: 40, SeriesError: temp - 22}
		if _, err := s.Buffer.Append(fmt.Sprint(i), row); err != nil {
			t.Fatalf("unexpected append error: %v", err)
		}
	}
	s.Sequence = 3
	before := s.Buffer.Snapshot()

	cp := s.ClearRun(25)
	restored, err := s.RestoreRun(cp)
	if err != nil || !restored {
		t.Fatalf("expected restore, got %v %v", restored, err)
	}
	after := s.Buffer.Snapshot()
	if len(after.Labels) != 3 || after.Labels[2] != "2" || after.Series[SeriesTemp][1] != 22.5 {
		t.Fatalf("unexpected history after restore: %+v", after)
	}
	if after.Series[SeriesError][0] != before.Series[SeriesError][0] {
		t.Fatalf("error column changed on restore")
	}
	if s.Setpoint != 22 || s.Sequence != 3 {
		t.Fatalf("expected setpoint 22 and sequence 3, got %v %d", s.Setpoint, s.Sequence)
	}

	cp = s.ClearRun(25)
	if _, err := s.Buffer.Append("new", map[string]float64{SeriesTemp: 25, SeriesSetpoint: 25, SeriesCRAC: 50, SeriesError: 0}); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}
	restored, err = s.RestoreRun(cp)
	if err != nil || restored {
		t.Fatalf("rows from the new run must win, got %v %v", restored, err)
	}
	if s.Buffer.Len() != 1 || s.Setpoint != 25 {
		t.Fatalf("unexpected state after skipped restore: len=%d setpoint=%v", s.Buffer.Len(), s.Setpoint)
	}
}

func TestComputeRunMetrics(t *testing.T) {
	s := newTestState(t)
	rows := []struct{ temp, crac float64 }{{21, 40}, {23, 60}, {27, 80}}
	for i, r := range rows {
		row := map[string]float64{SeriesTemp: r.temp, SeriesSetpoint: 22, SeriesCRAC: r.crac, SeriesError: r.temp - 22}
		if _, err := s.Buffer.Append(fmt.Sprint(i), row); err != nil {
			t.Fatalf("unexpected append error: %v", err)
		}
	}
	m, ok := ComputeRunMetrics(s.Buffer.Snapshot(), Band{Low: 18, High: 26})
	if !ok {
		t.Fatalf("expected metrics")
	}
	if m.Samples != 3 {
		t.Fatalf("unexpected samples: %d", m.Samples)
	}
	wantRMSE := math.Sqrt((1 + 1 + 25) / 3.0)
	if math.Abs(m.RMSE-wantRMSE) > 1e-9 {
		t.Fatalf("unexpected rmse: %v", m.RMSE)
	}
	if math.Abs(m.InBandPct-200.0/3) > 1e-9 {
		t.Fatalf("unexpected in-band percentage: %v", m.InBandPct)
	}
	if m.MeanCRAC != 60 || m.PeakTemp != 27 {
		t.Fatalf("unexpected metrics: %+v", m)
	}

	s.Buffer.Clear()
	if _, ok := ComputeRunMetrics(s.Buffer.Snapshot(), Band{Low: 18, High: 26}); ok {
		t.Fatalf("expected no metrics for an empty history")
	}
}

func TestNewValidatesOptions(t *testing.T) {
	for _, opts := range []Options{
		{Capacity: 0, MaxAlerts: 1, MaxActivations: 1},
		{Capacity: 1, MaxAlerts: 0, MaxActivations: 1},
		{Capacity: 1, MaxAlerts: 1, MaxActivations: 0},
	} {
		if _, err := New(opts); err == nil {
			t.Fatalf("expected error for %+v", opts)
		}
	}
}
