// v0
// internal/transport/mqtt_test.go
package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/ingest"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeSink struct {
	msgs  []ingest.Message
	conns []dashboard.Connection
}

func (s *fakeSink) Deliver(_ context.Context, msg ingest.Message) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *fakeSink) SetConnection(_ context.Context, conn dashboard.Connection) error {
	s.conns = append(s.conns, conn)
	return nil
}

type fakeRecorder struct{ connected []bool }

func (r *fakeRecorder) TransportConnected(v bool) { r.connected = append(r.connected, v) }

func testConfig() Config {
	return Config{
		Brokers:        []string{"tcp://localhost:1883"},
		ClientPrefix:   "dash",
		Topics:         []string{"datacenter/fuzzy/stream", "datacenter/fuzzy/alert"},
		CommandTopic:   "datacenter/fuzzy/cmd",
		KeepAlive:      30 * time.Second,
		RetryInterval:  5 * time.Second,
		ConnectTimeout: 10 * time.Second,
		PublishTimeout: 2 * time.Second,
	}
}

func newTestClient() (*Client, *fakeSink, *fakeRecorder) {
	sink := &fakeSink{}
	rec := &fakeRecorder{}
	c := New(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), sink, rec, nil)
	return c, sink, rec
}

func TestOptions(t *testing.T) {
	c, _, _ := newTestClient()
	opts := c.Options()
	if len(opts.Servers) != 1 || opts.Servers[0].Host != "localhost:1883" {
		t.Fatalf("unexpected servers: %v", opts.Servers)
	}
	if !strings.HasPrefix(opts.ClientID, "dash-") {
		t.Fatalf("unexpected client id %q", opts.ClientID)
	}
	if !opts.AutoReconnect || !opts.ConnectRetry || !opts.Order {
		t.Fatalf("expected auto reconnect, connect retry and ordered delivery")
	}
	if opts.ConnectRetryInterval != 5*time.Second || opts.MaxReconnectInterval != 5*time.Second {
		t.Fatalf("unexpected retry intervals: %v %v", opts.ConnectRetryInterval, opts.MaxReconnectInterval)
	}
	if opts.KeepAlive != 30 {
		t.Fatalf("expected keepalive 30s, got %d", opts.KeepAlive)
	}
}

func TestHandleMessageForwardsCopy(t *testing.T) {
	c, sink, _ := newTestClient()
	payload := []byte(`{"t":"00:05","temp":22.5,"crac":40}`)
	c.handleMessage(nil, fakeMessage{topic: "datacenter/fuzzy/stream", payload: payload})
	payload[0] = 'x'

	if len(sink.msgs) != 1 {
		t.Fatalf("expected one delivery, got %d", len(sink.msgs))
	}
	got := sink.msgs[0]
	if got.Topic != "datacenter/fuzzy/stream" {
		t.Fatalf("unexpected topic %q", got.Topic)
	}
	if got.Payload[0] != '{' {
		t.Fatalf("payload must be copied from the broker buffer")
	}
	if got.ReceivedAt.IsZero() {
		t.Fatalf("expected receive timestamp")
	}
}

func TestConnectionCallbacksReportStatus(t *testing.T) {
	c, sink, rec := newTestClient()
	c.onReconnecting(nil, nil)
	c.onConnectionLost(nil, errors.New("EOF"))

	if len(sink.conns) != 2 {
		t.Fatalf("expected two status updates, got %d", len(sink.conns))
	}
	if sink.conns[0].State != dashboard.Connecting {
		t.Fatalf("expected connecting, got %s", sink.conns[0].State)
	}
	if sink.conns[1].State != dashboard.Disconnected || sink.conns[1].Detail != "EOF" {
		t.Fatalf("unexpected lost status: %+v", sink.conns[1])
	}
	for _, v := range rec.connected {
		if v {
			t.Fatalf("recorder must not report connected")
		}
	}
}

func TestPublishRequiresSession(t *testing.T) {
	c, _, _ := newTestClient()
	if err := c.Publish(context.Background(), []byte(`{}`)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
