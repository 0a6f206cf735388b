// v1
// internal/breaker/breaker.go
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// ErrOpen is returned without running the operation while the breaker is
// open.
var ErrOpen = errors.New("circuit breaker is open; fast-fail")

// Config holds the breaker tunables.
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the
	// breaker.
	MaxFailures int
	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.MaxFailures < 1 {
		return errors.New("MaxFailures must be >= 1")
	}
	if c.ResetTimeout <= 0 {
		return errors.New("ResetTimeout must be > 0")
	}
	return nil
}

// Breaker guards an unreliable dependency. After MaxFailures consecutive
// failures it fails fast for ResetTimeout, then lets one call through
// (after the optional probe) to decide whether to close again.
type Breaker struct {
	name   string
	cfg    Config
	logger *slog.Logger
	probe  func(ctx context.Context) error
	now    func() time.Time

	mu          sync.Mutex
	state       State
	recentFails int
	openedAt    time.Time
}

// New builds a closed breaker. probe may be nil.
func New(name string, cfg Config, logger *slog.Logger, probe func(ctx context.Context) error) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger.With(slog.String("breaker", name)),
		probe:  probe,
		now:    time.Now,
		state:  Closed,
	}
	b.logger.Info("breaker_created",
		slog.Int("maxFailures", cfg.MaxFailures),
		slog.String("resetTimeout", cfg.ResetTimeout.String()),
	)
	return b
}

// Execute runs op unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	state := b.state
	openedAt := b.openedAt
	b.mu.Unlock()

	if state == Open || state == HalfOpen {
		if since := b.now().Sub(openedAt); since < b.cfg.ResetTimeout {
			b.logger.Warn("breaker_fast_fail", slog.String("since_open", since.String()))
			return ErrOpen
		}
		return b.tryProbeThenOp(ctx, op)
	}

	err := op(ctx)
	if err == nil {
		b.onSuccess()
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	b.onFailure(err)
	return err
}

func (b *Breaker) tryProbeThenOp(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	if b.state == HalfOpen {
		b.mu.Unlock()
		return ErrOpen
	}
	b.state = HalfOpen
	had := b.recentFails
	b.mu.Unlock()
	b.logger.Info("breaker_probe_start", slog.Int("previous_failures", had))

	if b.probe != nil {
		if err := b.probe(ctx); err != nil {
			b.logger.Warn("breaker_probe_failed", slog.Any("err", err))
			b.reopen(false)
			return ErrOpen
		}
	}

	if err := op(ctx); err != nil {
		b.logger.Warn("breaker_halfopen_op_failed", slog.Any("err", err))
		b.reopen(true)
		return err
	}

	b.mu.Lock()
	b.state = Closed
	b.recentFails = 0
	b.mu.Unlock()
	b.logger.Info("breaker_closed_after_probe")
	return nil
}

func (b *Breaker) reopen(countFailure bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Open
	b.openedAt = b.now()
	if countFailure {
		b.recentFails++
	}
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recentFails = 0
}

func (b *Breaker) onFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recentFails++
	b.logger.Warn("operation_failure", slog.Int("failures", b.recentFails), slog.Any("err", err))
	if b.recentFails >= b.cfg.MaxFailures && b.state == Closed {
		b.state = Open
		b.openedAt = b.now()
		b.logger.Error("breaker_opened", slog.Int("maxFailures", b.cfg.MaxFailures))
	}
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
