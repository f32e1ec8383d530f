package trace

import (
	"bufio"
	"io"
	"sync"
)

// StreamTracer writes events to a buffered writer as they arrive. A write
// failure stops the stream and is returned by Flush and Close; lowering
// itself never sees it.
type StreamTracer struct {
	mu     sync.Mutex
	dst    io.Writer
	w      *bufio.Writer
	level  Level
	format Format
	count  int
	err    error
}

// NewStreamTracer streams to w. Chrome output is wrapped in the
// {"traceEvents":[...]} document that Close terminates.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	t := &StreamTracer{dst: w, w: bufio.NewWriter(w), level: level, format: format}
	if format == FormatChrome {
		t.write([]byte("{\"traceEvents\":[\n"))
	}
	return t
}

func (t *StreamTracer) write(p []byte) {
	if t.err == nil {
		_, t.err = t.w.Write(p)
	}
}

func (t *StreamTracer) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !t.level.ShouldEmit(ev.Scope) {
		return
	}
	data := FormatEvent(ev, t.format)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.format == FormatChrome && t.count > 0 {
		t.write([]byte(",\n"))
	}
	t.count++
	t.write(data)
	// Heartbeats exist to show progress on a stuck run, so they must not
	// sit in the buffer.
	if ev.Kind == KindHeartbeat && t.err == nil {
		t.err = t.w.Flush()
	}
}

func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = t.w.Flush()
	}
	return t.err
}

// Close terminates a Chrome document, flushes and closes the destination
// if it is an io.Closer.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	if t.format == FormatChrome {
		t.write([]byte("\n]}\n"))
	}
	t.mu.Unlock()
	err := t.Flush()
	if c, ok := t.dst.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
