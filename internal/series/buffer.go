// v0
// internal/series/buffer.go
package series

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownSeries is returned when a row names a series the buffer
	// was not created with.
	ErrUnknownSeries = errors.New("unknown series")
	// ErrMissingSeries is returned when a row omits one of the buffer's
	// series.
	ErrMissingSeries = errors.New("missing series value")
	// ErrInvalidValue is returned for NaN or infinite values.
	ErrInvalidValue = errors.New("series value is not finite")
)

// Buffer is a fixed-capacity history of rows. Each row carries one label
// and exactly one value per series, so every column always has the same
// length. Once the capacity is reached the oldest row is evicted.
//
// Buffer is not safe for concurrent use; it is owned by the event loop and
// readers work on snapshots.
type Buffer struct {
	capacity int
	names    []string
	index    map[string]int
	labels   []string
	cols     [][]float64
	head     int
	size     int
	evicted  uint64
}

// New creates an empty buffer with the given capacity and series names.
func New(capacity int, series ...string) (*Buffer, error) {
	if capacity <= 0 {
		return nil, errors.New("capacity must be positive")
	}
	if len(series) == 0 {
		return nil, errors.New("at least one series is required")
	}
	index := make(map[string]int, len(series))
	for i, name := range series {
		if name == "" {
			return nil, errors.New("series name cannot be empty")
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate series %q", name)
		}
		index[name] = i
	}
	cols := make([][]float64, len(series))
	for i := range cols {
		cols[i] = make([]float64, capacity)
	}
	names := make([]string, len(series))
	copy(names, series)
	return &Buffer{
		capacity: capacity,
		names:    names,
		index:    index,
		labels:   make([]string, capacity),
		cols:     cols,
	}, nil
}

// Append pushes one row. The row is validated in full before anything is
// written, so a rejected row leaves the buffer untouched. evicted reports
// whether the oldest row was dropped to make room.
func (b *Buffer) Append(label string, row map[string]float64) (evicted bool, err error) {
	for name, v := range row {
		if _, ok := b.index[name]; !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownSeries, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false, fmt.Errorf("%w: %s", ErrInvalidValue, name)
		}
	}
	for _, name := range b.names {
		if _, ok := row[name]; !ok {
			return false, fmt.Errorf("%w: %s", ErrMissingSeries, name)
		}
	}

	slot := (b.head + b.size) % b.capacity
	if b.size == b.capacity {
		slot = b.head
		b.head = (b.head + 1) % b.capacity
		b.evicted++
		evicted = true
	} else {
		b.size++
	}
	b.labels[slot] = label
	for i, name := range b.names {
		b.cols[i][slot] = row[name]
	}
	return evicted, nil
}

// Clear drops every row. Capacity and series are kept.
func (b *Buffer) Clear() {
	b.head = 0
	b.size = 0
	for i := range b.labels {
		b.labels[i] = ""
	}
}

// Len returns the number of rows currently held.
func (b *Buffer) Len() int { return b.size }

// Cap returns the configured capacity.
func (b *Buffer) Cap() int { return b.capacity }

// Evicted returns how many rows were dropped by the capacity limit since
// the buffer was created.
func (b *Buffer) Evicted() uint64 { return b.evicted }

// Names returns the series names in creation order.
func (b *Buffer) Names() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// Snapshot is a copy of the buffer contents, oldest row first.
type Snapshot struct {
	Capacity int                  `json:"capacity"`
	Labels   []string             `json:"labels"`
	Series   map[string][]float64 `json:"series"`
}

// Len returns the number of rows in the snapshot.
func (s Snapshot) Len() int { return len(s.Labels) }

// Column returns the values of one series, or nil when unknown.
func (s Snapshot) Column(name string) []float64 {
	return s.Series[name]
}

// Snapshot copies the current rows in insertion order.
func (b *Buffer) Snapshot() Snapshot {
	snap := Snapshot{
		Capacity: b.capacity,
		Labels:   make([]string, b.size),
		Series:   make(map[string][]float64, len(b.names)),
	}
	for i, name := range b.names {
		col := make([]float64, b.size)
		for j := 0; j < b.size; j++ {
			col[j] = b.cols[i][(b.head+j)%b.capacity]
		}
		snap.Series[name] = col
	}
	for j := 0; j < b.size; j++ {
		snap.Labels[j] = b.labels[(b.head+j)%b.capacity]
	}
	return snap
}
