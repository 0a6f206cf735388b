// v1
// internal/http/router.go
package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"nrgchamp/fuzzydash/internal/command"
	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/fuzzy"
	"nrgchamp/fuzzydash/internal/render"
)

// Engine is the subset of the event loop used by the handlers.
type Engine interface {
	Latest() render.Frame
	Do(ctx context.Context, fn func(*dashboard.State) (bool, error)) error
}

// Publisher sends command envelopes to the controller.
type Publisher interface {
	Connected() bool
	Publish(ctx context.Context, payload []byte) error
}

// Observer receives request and command counters.
type Observer interface {
	ObserveHTTP(route string, status int, d time.Duration)
	CommandSent(cmd, outcome string)
}

// CommandLog mirrors sent commands, e.g. to the archive.
type CommandLog interface {
	Offer(kind string, at time.Time, payload []byte) bool
}

// Deps are the collaborators of the HTTP surface. Logger, Health, Engine
// and Variables are required.
type Deps struct {
	Logger      *slog.Logger
	Health      *HealthState
	Engine      Engine
	Publisher   Publisher
	Variables   fuzzy.Set
	Limits      command.Limits
	Limiter     *rate.Limiter
	Band        dashboard.Band
	Websocket   http.Handler
	Metrics     http.Handler
	Observer    Observer
	Commands    CommandLog
	LogTail     func() []string
	ChartWidth  int
	ChartHeight int
	CORSOrigins []string
}

// NewHandler builds the routed, wrapped HTTP handler.
func NewHandler(d Deps) http.Handler {
	if d.ChartWidth <= 0 {
		d.ChartWidth = 960
	}
	if d.ChartHeight <= 0 {
		d.ChartHeight = 420
	}
	if d.Limiter == nil {
		d.Limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return wrap(d.Logger, d.CORSOrigins, NewRouter(d))
}

// NewRouter wires every route.
func NewRouter(d Deps) *mux.Router {
	a := &api{Deps: d, log: d.Logger.With(slog.String("component", "http"))}
	r := mux.NewRouter()
	r.Use(accessLog(d.Logger, d.Observer))

	r.Handle("/health", healthLiveHandler()).Methods(http.MethodGet)
	r.Handle("/health/live", healthLiveHandler()).Methods(http.MethodGet)
	r.Handle("/health/ready", healthReadyHandler(d.Health)).Methods(http.MethodGet)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}
	if d.Websocket != nil {
		r.Handle("/ws", d.Websocket).Methods(http.MethodGet)
	}

	sub := r.PathPrefix("/api").Subrouter()
	sub.HandleFunc("/state", a.state).Methods(http.MethodGet)
	sub.HandleFunc("/inputs", a.getInputs).Methods(http.MethodGet)
	sub.HandleFunc("/inputs", a.putInputs).Methods(http.MethodPut)
	sub.HandleFunc("/commands/pointwise", a.pointwise).Methods(http.MethodPost)
	sub.HandleFunc("/commands/simulate", a.simulate).Methods(http.MethodPost)
	sub.HandleFunc("/reset", a.reset).Methods(http.MethodPost)
	sub.HandleFunc("/membership/{variable}", a.membership).Methods(http.MethodGet)
	sub.HandleFunc("/report.pdf", a.report).Methods(http.MethodGet)

	r.HandleFunc("/charts/history.png", a.historyChart).Methods(http.MethodGet)
	r.HandleFunc("/charts/membership/{variable:[A-Za-z0-9_]+}.png", a.membershipChart).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
