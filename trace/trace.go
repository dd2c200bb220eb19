// Package trace records intercepted calls.
//
// A Tracer receives one Event per call that passes through a hook created
// with hook.WithTracer. Sinks keep events in memory, stream them as CBOR or
// store them in SQLite.
package trace

import (
	"slices"
	"sync"
	"time"
)

// Event describes one intercepted call.
type Event struct {
	HookID   string        `cbor:"1,keyasint" json:"hook_id"`
	Target   string        `cbor:"2,keyasint" json:"target"`
	Kind     string        `cbor:"3,keyasint" json:"kind"`
	Args     []string      `cbor:"4,keyasint,omitempty" json:"args,omitempty"`
	Start    time.Time     `cbor:"5,keyasint" json:"start"`
	Duration time.Duration `cbor:"6,keyasint" json:"duration"`
	Err      string        `cbor:"7,keyasint,omitempty" json:"err,omitempty"`
}

// Failed returns true if the replacement returned an error.
func (e Event) Failed() bool { return e.Err != "" }

// Tracer is a sink for events. Record is called from the goroutine making
// the intercepted call and must be safe for concurrent use.
type Tracer interface {
	Record(Event)
	Close() error
}

// ---------------------------------------------------------------------------
// Memory
// ---------------------------------------------------------------------------

// Memory keeps events in a slice. A positive limit caps the number of
// events kept; older events are dropped first.
type Memory struct {
	limit int

	mu     sync.Mutex
	events []Event
	total  uint64
}

// NewMemory creates an in-memory tracer.
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

// Record appends ev.
func (m *Memory) Record(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.events = append(m.events, ev)
	if m.limit > 0 && len(m.events) > m.limit {
		m.events = slices.Delete(m.events, 0, len(m.events)-m.limit)
	}
}

// Events returns a copy of the retained events, oldest first.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

// Total returns how many events were recorded, including dropped ones.
func (m *Memory) Total() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Reset drops all events.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	m.total = 0
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Discard drops every event.
var Discard Tracer = discard{}

type discard struct{}

func (discard) Record(Event) {}
func (discard) Close() error { return nil }
