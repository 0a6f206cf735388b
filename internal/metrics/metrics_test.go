// v0
// internal/metrics/metrics_test.go
package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestExposition(t *testing.T) {
	m := New()
	m.MessageAccepted("stream")
	m.MessageAccepted("stream")
	m.MessageDiscarded("alert", "malformed")
	m.RowEvicted()
	m.StateObserved(200, 7)
	m.TransportConnected(true)
	m.WebsocketClients(3)
	m.CommandSent("simular_24h", "sent")
	m.ArchiveRecord("written")
	m.ObserveHTTP("/api/state", 200, 15*time.Millisecond)

	body := scrape(t, m)
	for _, want := range []string{
		`fuzzydash_messages_accepted_total{channel="stream"} 2`,
		`fuzzydash_messages_discarded_total{channel="alert",reason="malformed"} 1`,
		`fuzzydash_history_evictions_total 1`,
		`fuzzydash_history_rows 200`,
		`fuzzydash_alerts_retained 7`,
		`fuzzydash_mqtt_connected 1`,
		`fuzzydash_websocket_clients 3`,
		`fuzzydash_commands_total{cmd="simular_24h",outcome="sent"} 1`,
		`fuzzydash_archive_records_total{outcome="written"} 1`,
		`fuzzydash_http_request_duration_seconds_count{route="/api/state",status="200"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in exposition:\n%s", want, body)
		}
	}

	m.TransportConnected(false)
	if body := scrape(t, m); !strings.Contains(body, "fuzzydash_mqtt_connected 0") {
		t.Fatalf("expected connected gauge to drop to 0")
	}
}
