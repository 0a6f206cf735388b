// v0
// internal/archive/kafka.go
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"nrgchamp/fuzzydash/internal/breaker"
)

// Record is one archived telemetry or command event.
type Record struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Writer is the subset of *kafka.Writer used here.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Recorder counts archive outcomes.
type Recorder interface {
	ArchiveRecord(outcome string)
}

// NewWriter builds a synchronous writer keyed by record kind.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// Archiver forwards records to Kafka from a bounded queue. Offer never
// blocks; records are dropped when the queue is full.
type Archiver struct {
	w       Writer
	queue   chan Record
	log     *slog.Logger
	breaker *breaker.Breaker
	rec     Recorder
	timeout time.Duration
}

// New builds an archiver. br and rec may be nil.
func New(w Writer, queueSize int, writeTimeout time.Duration, logger *slog.Logger, br *breaker.Breaker, rec Recorder) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Archiver{
		w:       w,
		queue:   make(chan Record, queueSize),
		log:     logger.With(slog.String("component", "archive")),
		breaker: br,
		rec:     rec,
		timeout: writeTimeout,
	}
}

// Offer enqueues a record. payload must be valid JSON.
func (a *Archiver) Offer(kind string, receivedAt time.Time, payload []byte) bool {
	if !json.Valid(payload) {
		a.count("invalid")
		return false
	}
	r := Record{
		ID:         uuid.NewString(),
		Kind:       kind,
		ReceivedAt: receivedAt.UTC(),
		Payload:    append(json.RawMessage(nil), payload...),
	}
	select {
	case a.queue <- r:
		return true
	default:
		a.count("dropped")
		return false
	}
}

// Run drains the queue until ctx is cancelled, then closes the writer.
func (a *Archiver) Run(ctx context.Context) error {
	a.log.Info("archive_started")
	defer func() {
		if err := a.w.Close(); err != nil {
			a.log.Warn("archive_close_error", slog.Any("err", err))
		}
		a.log.Info("archive_stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-a.queue:
			if err := a.write(ctx, r); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.log.Warn("archive_write_failed",
					slog.String("kind", r.Kind),
					slog.String("id", r.ID),
					slog.Any("err", err),
				)
				a.count("failed")
				continue
			}
			a.count("written")
		}
	}
}

func (a *Archiver) write(ctx context.Context, r Record) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	msg := kafka.Message{Key: []byte(r.Kind), Value: value, Time: r.ReceivedAt}
	op := func(ctx context.Context) error {
		wctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.w.WriteMessages(wctx, msg)
	}
	if a.breaker == nil {
		return op(ctx)
	}
	err = a.breaker.Execute(ctx, op)
	if errors.Is(err, breaker.ErrOpen) {
		return fmt.Errorf("archive unavailable: %w", err)
	}
	return err
}

func (a *Archiver) count(outcome string) {
	if a.rec != nil {
		a.rec.ArchiveRecord(outcome)
	}
}
