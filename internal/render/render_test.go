// v0
// internal/render/render_test.go
package render

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/fuzzy"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func newState(t *testing.T) *dashboard.State {
	t.Helper()
	s, err := dashboard.New(dashboard.Options{Capacity: 10, MaxAlerts: 5, MaxActivations: 5, DefaultSetpoint: 22})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func appendRow(t *testing.T, s *dashboard.State, label string, temp, crac float64) {
	t.Helper()
	row := map[string]float64{
		dashboard.SeriesTemp:     temp,
		dashboard.SeriesSetpoint: s.Setpoint,
		dashboard.SeriesCRAC:     crac,
		dashboard.SeriesError:    temp - s.Setpoint,
	}
	if _, err := s.Buffer.Append(label, row); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}
}

func TestProjectPlaceholdersAndMarkers(t *testing.T) {
	s := newState(t)
	p := Projector{Variables: fuzzy.DefaultSet()}

	f := p.Project(s, time.Unix(0, 0))
	if f.Readouts.Temp != Placeholder || f.Readouts.CRAC != Placeholder || f.Readouts.Output != Placeholder {
		t.Fatalf("expected placeholders, got %+v", f.Readouts)
	}
	for name, m := range f.Markers {
		if m != nil {
			t.Fatalf("expected no marker for %s, got %+v", name, m)
		}
	}
	if f.Connection.Color != "yellow" {
		t.Fatalf("expected connecting badge, got %+v", f.Connection)
	}

	s.Inputs = dashboard.ManualInput{Erro: "2.5", DeltaErro: "abc"}
	s.Readouts.Output = dashboard.Float(62.4)
	s.Readouts.Temp = dashboard.Float(23.456)
	f = p.Project(s, time.Unix(0, 0))
	if f.Readouts.Temp != "23.5" {
		t.Fatalf("unexpected temp readout: %q", f.Readouts.Temp)
	}
	if m := f.Markers[fuzzy.VarError]; m == nil || m.Index != 145 {
		t.Fatalf("unexpected erro marker: %+v", m)
	}
	if m := f.Markers[fuzzy.VarDelta]; m != nil {
		t.Fatalf("invalid input must not produce a marker, got %+v", m)
	}
	if m := f.Markers[fuzzy.VarOutput]; m == nil || m.Sample != 62 {
		t.Fatalf("unexpected output marker: %+v", m)
	}
}

func TestProjectIsDetached(t *testing.T) {
	s := newState(t)
	appendRow(t, s, "1", 21, 40)
	s.Stats = &dashboard.Statistics{Variables: map[string]dashboard.Stat{"temp": {Min: 1, Avg: 2, Max: 3}}}
	f := Projector{Variables: fuzzy.DefaultSet()}.Project(s, time.Now())

	appendRow(t, s, "2", 22, 50)
	s.Stats.Variables["temp"] = dashboard.Stat{}
	if f.History.Len() != 1 {
		t.Fatalf("frame history changed after projection")
	}
	if f.Stats.Variables["temp"].Max != 3 {
		t.Fatalf("frame statistics changed after projection")
	}
}

func TestAlertLineAndBadges(t *testing.T) {
	crit := AlertLine(dashboard.Alert{Timestamp: "10:00", Type: "CRITICO", Message: "Temp 27", Severity: dashboard.SeverityCritical})
	if crit.Color != "red" || crit.Text != "[10:00] CRITICO: Temp 27" {
		t.Fatalf("unexpected critical alert view: %+v", crit)
	}
	info := AlertLine(dashboard.Alert{Timestamp: "10:01", Message: "ok", Severity: dashboard.SeverityInfo})
	if info.Color != "blue" || info.Text != "[10:01] info: ok" {
		t.Fatalf("unexpected info alert view: %+v", info)
	}

	cases := map[dashboard.ConnectionState]string{
		dashboard.Connecting:   "yellow",
		dashboard.Connected:    "green",
		dashboard.Disconnected: "red",
		dashboard.Failed:       "red",
	}
	for state, color := range cases {
		if got := ConnectionBadge(dashboard.Connection{State: state}).Color; got != color {
			t.Fatalf("state %s: expected %s, got %s", state, color, got)
		}
	}
}

func TestMembershipView(t *testing.T) {
	v, _ := fuzzy.DefaultSet().Get(fuzzy.VarOutput)
	op, _ := fuzzy.Locate(v, 50)
	view := Membership(v, &op)
	if len(view.Domain) != 101 || len(view.Curves) != 5 {
		t.Fatalf("unexpected view shape: domain=%d curves=%d", len(view.Domain), len(view.Curves))
	}
	for _, c := range view.Curves {
		if len(c.Values) != len(view.Domain) {
			t.Fatalf("curve %s has %d values", c.Label, len(c.Values))
		}
	}
	if view.Marker == nil || view.Marker.Peak != 1 || view.Marker.Label != "M" {
		t.Fatalf("unexpected marker: %+v", view.Marker)
	}
	if Membership(v, nil).Marker != nil {
		t.Fatalf("expected no marker")
	}
}

func TestChartsRenderPNG(t *testing.T) {
	s := newState(t)
	empty, err := HistoryPNG(s.Buffer.Snapshot(), ChartTemperature, 640, 320)
	if err != nil {
		t.Fatalf("empty history chart: %v", err)
	}
	if !bytes.HasPrefix(empty, pngMagic) {
		t.Fatalf("expected PNG output")
	}

	for i, temp := range []float64{21, 22.5, 27, 19} {
		appendRow(t, s, string(rune('a'+i)), temp, 20*float64(i))
	}
	for _, kind := range []ChartKind{ChartTemperature, ChartPower} {
		img, err := HistoryPNG(s.Buffer.Snapshot(), kind, 640, 320)
		if err != nil {
			t.Fatalf("%s chart: %v", kind, err)
		}
		if !bytes.HasPrefix(img, pngMagic) {
			t.Fatalf("%s chart is not a PNG", kind)
		}
	}
	if _, err := HistoryPNG(s.Buffer.Snapshot(), ChartKind("humidity"), 640, 320); err == nil {
		t.Fatalf("expected error for unknown chart")
	}
	if _, err := HistoryPNG(s.Buffer.Snapshot(), ChartPower, 0, 320); err == nil {
		t.Fatalf("expected error for invalid size")
	}

	v, _ := fuzzy.DefaultSet().Get(fuzzy.VarError)
	op, _ := fuzzy.Locate(v, -1.2)
	img, err := MembershipPNG(Membership(v, &op), 640, 320)
	if err != nil {
		t.Fatalf("membership chart: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Fatalf("membership chart is not a PNG")
	}
}

func TestHubBroadcast(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	counts := make(chan int, 8)
	registered := make(chan int, 1)
	var hub *Hub
	hub = NewHub(logger, HubOptions{
		Initial: func() Frame {
			// called with the hub lock held
			registered <- len(hub.clients)
			return Frame{Version: 1}
		},
		OnClients: func(n int) { counts <- n },
	})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case n := <-counts:
		if n != 1 {
			t.Fatalf("expected 1 client, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("client was not registered")
	}

	readFrame := func() Frame {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return f
	}

	if f := readFrame(); f.Version != 1 {
		t.Fatalf("expected initial frame, got version %d", f.Version)
	}
	if n := <-registered; n != 1 {
		t.Fatalf("client must be registered before the initial frame is taken, got %d", n)
	}
	hub.Broadcast(Frame{Version: 2})
	if f := readFrame(); f.Version != 2 {
		t.Fatalf("expected broadcast frame, got version %d", f.Version)
	}
	if hub.Clients() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.Clients())
	}
}
