// v0
// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/ingest"
	"nrgchamp/fuzzydash/internal/render"
)

// ErrStopped is returned to callers once the loop has exited.
var ErrStopped = errors.New("engine stopped")

// FrameSink receives every new frame. Broadcast must not block.
type FrameSink interface {
	Broadcast(render.Frame)
}

// StateObserver is told the container sizes after each mutation.
type StateObserver interface {
	StateObserved(rows, alerts int)
}

// Archive receives accepted inbound payloads. Offer must not block.
type Archive interface {
	Offer(kind string, receivedAt time.Time, payload []byte) bool
}

// Options wires the engine's collaborators. Everything but Router is
// optional.
type Options struct {
	Router    *ingest.Router
	Projector render.Projector
	Sinks     []FrameSink
	Observer  StateObserver
	Archive   Archive
	QueueSize int
}

type event struct {
	msg   *ingest.Message
	conn  *dashboard.Connection
	fn    func(*dashboard.State) (bool, error)
	reply chan error
}

// Engine serialises every state change on one goroutine. Transport
// callbacks and HTTP handlers enqueue events; Run applies them in order
// and publishes a fresh frame after each mutation.
type Engine struct {
	state     *dashboard.State
	router    *ingest.Router
	projector render.Projector
	sinks     []FrameSink
	observer  StateObserver
	archive   Archive
	log       *slog.Logger
	now       func() time.Time

	events chan event
	done   chan struct{}
	latest atomic.Pointer[render.Frame]
}

// New builds an engine over s. s must not be touched by anything else
// afterwards.
func New(s *dashboard.State, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	e := &Engine{
		state:     s,
		router:    opts.Router,
		projector: opts.Projector,
		sinks:     opts.Sinks,
		observer:  opts.Observer,
		archive:   opts.Archive,
		log:       logger.With(slog.String("component", "engine")),
		now:       time.Now,
		events:    make(chan event, opts.QueueSize),
		done:      make(chan struct{}),
	}
	f := e.projector.Project(s, e.now())
	e.latest.Store(&f)
	return e
}

// AddSink registers a frame sink. It must be called before Run.
func (e *Engine) AddSink(s FrameSink) { e.sinks = append(e.sinks, s) }

// Latest returns the most recently published frame.
func (e *Engine) Latest() render.Frame { return *e.latest.Load() }

// Deliver enqueues an inbound message. It blocks while the queue is full.
func (e *Engine) Deliver(ctx context.Context, msg ingest.Message) error {
	return e.enqueue(ctx, event{msg: &msg})
}

// SetConnection enqueues a transport status change.
func (e *Engine) SetConnection(ctx context.Context, conn dashboard.Connection) error {
	return e.enqueue(ctx, event{conn: &conn})
}

// Do runs fn on the loop and waits for it. fn reports whether it mutated
// the state; a mutation is published even when fn also returns an error.
func (e *Engine) Do(ctx context.Context, fn func(*dashboard.State) (bool, error)) error {
	reply := make(chan error, 1)
	if err := e.enqueue(ctx, event{fn: fn, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
}

func (e *Engine) enqueue(ctx context.Context, ev event) error {
	select {
	case e.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
}

// Run processes events until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	e.log.Info("engine_started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine_stopped", slog.Uint64("version", e.state.Version))
			return nil
		case ev := <-e.events:
			e.handle(ev)
		}
	}
}

func (e *Engine) handle(ev event) {
	var (
		mutated bool
		err     error
	)
	switch {
	case ev.msg != nil:
		d, ok := e.router.Route(e.state, *ev.msg)
		mutated = ok
		if (ok || d.Ack != nil) && e.archive != nil {
			e.archive.Offer(string(d.Channel), ev.msg.ReceivedAt, ev.msg.Payload)
		}
	case ev.conn != nil:
		mutated = e.setConnection(*ev.conn)
	case ev.fn != nil:
		mutated, err = e.run(ev.fn)
		if mutated {
			e.state.Version++
		}
	}
	if mutated {
		e.publish()
	}
	// Callers of Do observe their own mutation through Latest.
	if ev.reply != nil {
		ev.reply <- err
	}
}

func (e *Engine) run(fn func(*dashboard.State) (bool, error)) (mutated bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("engine_action_panic", slog.Any("panic", r))
			err = errors.New("internal error")
		}
	}()
	return fn(e.state)
}

func (e *Engine) setConnection(conn dashboard.Connection) bool {
	cur := e.state.Connection
	if cur.State == conn.State && cur.Detail == conn.Detail {
		return false
	}
	e.state.Connection = conn
	e.state.Version++
	e.log.Info("connection_state_changed",
		slog.String("from", string(cur.State)),
		slog.String("to", string(conn.State)),
		slog.String("detail", conn.Detail),
	)
	return true
}

func (e *Engine) publish() {
	f := e.projector.Project(e.state, e.now())
	e.latest.Store(&f)
	for _, s := range e.sinks {
		s.Broadcast(f)
	}
	if e.observer != nil {
		e.observer.StateObserved(e.state.Buffer.Len(), e.state.Alerts.Len())
	}
}
