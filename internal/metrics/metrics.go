// v0
// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fuzzydash"

// Metrics owns the dashboard's Prometheus collectors on a private
// registry.
type Metrics struct {
	registry *prometheus.Registry

	messages      *prometheus.CounterVec
	discarded     *prometheus.CounterVec
	evictions     prometheus.Counter
	bufferRows    prometheus.Gauge
	alerts        prometheus.Gauge
	wsClients     prometheus.Gauge
	connected     prometheus.Gauge
	commands      *prometheus.CounterVec
	archive       *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New registers every collector, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_accepted_total",
			Help:      "Inbound messages applied to the dashboard state, by channel.",
		}, []string{"channel"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_discarded_total",
			Help:      "Inbound messages dropped before reaching the state, by channel and reason.",
		}, []string{"channel", "reason"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_evictions_total",
			Help:      "Rows evicted from the history buffer by its capacity limit.",
		}),
		bufferRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_rows",
			Help:      "Rows currently held by the history buffer.",
		}),
		alerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_retained",
			Help:      "Alerts currently retained by the alert list.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the MQTT client is connected.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Operator commands by command and outcome.",
		}, []string{"cmd", "outcome"}),
		archive: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_records_total",
			Help:      "Archive records by outcome.",
		}, []string{"outcome"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messages, m.discarded, m.evictions, m.bufferRows, m.alerts,
		m.wsClients, m.connected, m.commands, m.archive, m.httpDurations,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// MessageAccepted counts a message applied to the state.
func (m *Metrics) MessageAccepted(channel string) {
	m.messages.WithLabelValues(channel).Inc()
}

// MessageDiscarded counts a dropped message.
func (m *Metrics) MessageDiscarded(channel, reason string) {
	m.discarded.WithLabelValues(channel, reason).Inc()
}

// RowEvicted counts a history eviction.
func (m *Metrics) RowEvicted() { m.evictions.Inc() }

// StateObserved records the size of the history and alert list.
func (m *Metrics) StateObserved(rows, alerts int) {
	m.bufferRows.Set(float64(rows))
	m.alerts.Set(float64(alerts))
}

// WebsocketClients records the number of connected clients.
func (m *Metrics) WebsocketClients(n int) { m.wsClients.Set(float64(n)) }

// TransportConnected records the MQTT connection state.
func (m *Metrics) TransportConnected(up bool) {
	if up {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

// CommandSent counts an operator command.
func (m *Metrics) CommandSent(cmd, outcome string) {
	m.commands.WithLabelValues(cmd, outcome).Inc()
}

// ArchiveRecord counts an archive record outcome.
func (m *Metrics) ArchiveRecord(outcome string) {
	m.archive.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(route string, status int, d time.Duration) {
	m.httpDurations.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}
