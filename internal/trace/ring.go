package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the most recent events in memory so a failed run can
// show what it was lowering when it stopped.
type RingTracer struct {
	mu     sync.Mutex
	events []Event
	total  uint64 // events ever stored; total % len(events) is the next slot
	level  Level
}

// NewRingTracer keeps the last capacity events; capacity <= 0 means 4096.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{events: make([]Event, capacity), level: level}
}

func (t *RingTracer) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !t.level.ShouldEmit(ev.Scope) {
		return
	}
	t.mu.Lock()
	t.events[t.total%uint64(len(t.events))] = *ev
	t.total++
	t.mu.Unlock()
}

// Dropped returns how many events were overwritten.
func (t *RingTracer) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total - min(t.total, uint64(len(t.events)))
}

// Snapshot returns the kept events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := uint64(len(t.events))
	if t.total <= n {
		return append([]Event(nil), t.events[:t.total]...)
	}
	head := t.total % n
	out := make([]Event, 0, n)
	out = append(out, t.events[head:]...)
	return append(out, t.events[:head]...)
}

// Dump writes the kept events to w in format, as a complete document for
// FormatChrome.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	st := NewStreamTracer(w, LevelBlock, format)
	for _, ev := range t.Snapshot() {
		st.Emit(&ev)
	}
	st.mu.Lock()
	if format == FormatChrome {
		st.write([]byte("\n]}\n"))
	}
	st.mu.Unlock()
	return st.Flush()
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
