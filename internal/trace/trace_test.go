package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestChromeStreamIsOneDocument(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelBlock, FormatChrome)
	ctx := WithLane(WithTracer(context.Background(), tr), 2)
	s := Begin(tr, ScopeFunc, "fn:main", CurrentSpan(ctx))
	Record(WithSpan(ctx, s), MarkFuncLowered, "fn:main", "")
	s.WithExtra("blocks", "3").End("")
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("chrome output is not JSON: %v\n%s", err, buf.String())
	}
	var phases []string
	for _, ev := range doc.TraceEvents {
		phases = append(phases, ev["ph"].(string))
		if ev["tid"] != float64(2) {
			t.Fatalf("event on the wrong lane: %v", ev)
		}
	}
	if got := strings.Join(phases, ""); got != "BiE" {
		t.Fatalf("phases = %s", got)
	}
}

func TestLevelAdmitsScopesUpToItsOwn(t *testing.T) {
	tests := []struct {
		level Level
		admit []Scope
		deny  []Scope
	}{
		{LevelOff, nil, []Scope{ScopeRun}},
		{LevelError, nil, []Scope{ScopeRun}},
		{LevelStage, []Scope{ScopeRun, ScopeStage}, []Scope{ScopeFunc}},
		{LevelFunc, []Scope{ScopeStage, ScopeFunc}, []Scope{ScopeBlock}},
		{LevelBlock, []Scope{ScopeBlock}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			for _, s := range tt.admit {
				if !tt.level.ShouldEmit(s) {
					t.Errorf("%s is filtered out", s)
				}
			}
			for _, s := range tt.deny {
				if tt.level.ShouldEmit(s) {
					t.Errorf("%s is admitted", s)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"off", "error", "stage", "FUNC", "block"} {
		l, err := ParseLevel(name)
		if err != nil || l.String() != strings.ToLower(name) {
			t.Fatalf("ParseLevel(%q) = %v, %v", name, l, err)
		}
	}
	if _, err := ParseLevel("debug"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRingKeepsNewestEvents(t *testing.T) {
	ring := NewRingTracer(3, LevelBlock)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ring.Emit(&Event{Kind: KindMark, Scope: ScopeFunc, Name: name})
	}
	var names []string
	for _, ev := range ring.Snapshot() {
		names = append(names, ev.Name)
	}
	if got := strings.Join(names, ","); got != "c,d,e" {
		t.Fatalf("snapshot = %s", got)
	}
	if ring.Dropped() != 2 {
		t.Fatalf("dropped = %d", ring.Dropped())
	}
}

func TestRingDumpAsChromeIsValidJSON(t *testing.T) {
	ring := NewRingTracer(8, LevelFunc)
	Begin(ring, ScopeStage, "lower", SpanContext{}).End("")
	var buf bytes.Buffer
	if err := ring.Dump(&buf, FormatChrome); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !json.Valid(buf.Bytes()) {
		t.Fatalf("dump is not JSON:\n%s", buf.String())
	}
}

func TestRecordCountsWithoutATracer(t *testing.T) {
	c := &Counters{}
	ctx := WithCounters(context.Background(), c)
	Record(ctx, MarkFuncLowered, "fn:a", "")
	Record(ctx, MarkFuncLowered, "fn:b", "")
	Record(ctx, MarkCacheMiss, "unit", "")
	if c.Count(MarkFuncLowered) != 2 || c.Count(MarkCacheMiss) != 1 || c.Count(MarkFuncSkipped) != 0 {
		t.Fatalf("counters = %v", c.Snapshot())
	}
	if got := c.Snapshot(); got["lowered"] != "2" || got["cache-miss"] != "1" || len(got) != 2 {
		t.Fatalf("snapshot = %v", got)
	}
}

func TestRecordFollowsLevel(t *testing.T) {
	ring := NewRingTracer(8, LevelStage)
	ctx := WithTracer(context.Background(), ring)
	Record(ctx, MarkFuncSkipped, "fn:f", "not started")
	Record(ctx, MarkCacheHit, "unit", "")
	events := ring.Snapshot()
	if len(events) != 1 || events[0].Name != "cache-hit" {
		t.Fatalf("events = %v", events)
	}
}

func TestHeartbeatCarriesCounters(t *testing.T) {
	ring := NewRingTracer(16, LevelStage)
	c := &Counters{}
	Record(WithCounters(context.Background(), c), MarkFuncLowered, "fn:a", "")
	h := StartHeartbeat(ring, time.Millisecond, c)
	deadline := time.Now().Add(5 * time.Second)
	for len(ring.Snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()
	events := ring.Snapshot()
	if len(events) == 0 {
		t.Fatal("no heartbeat")
	}
	if ev := events[0]; ev.Kind != KindHeartbeat || ev.Extra["lowered"] != "1" {
		t.Fatalf("heartbeat = %+v", ev)
	}
	if StartHeartbeat(Nop, time.Millisecond, c) != nil {
		t.Fatal("heartbeat on a disabled tracer")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestStreamWriteErrorSurfacesOnFlush(t *testing.T) {
	tr := NewStreamTracer(failingWriter{}, LevelStage, FormatText)
	Begin(tr, ScopeStage, "lower", SpanContext{}).End("")
	if err := tr.Flush(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("flush = %v", err)
	}
}

func TestMultiFindsRing(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRingTracer(4, LevelStage)
	m := NewMultiTracer(LevelStage, NewStreamTracer(&buf, LevelStage, FormatNDJSON), ring)
	Begin(m, ScopeStage, "validate", SpanContext{}).End("")
	if m.Ring() != ring || len(ring.Snapshot()) != 2 {
		t.Fatalf("ring = %v", ring.Snapshot())
	}
	if err := m.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Fatalf("stream = %q", buf.String())
	}
}

func TestContextDefaultsToNop(t *testing.T) {
	if FromContext(context.Background()).Enabled() {
		t.Fatal("background context should carry the nop tracer")
	}
	if WithSpan(context.Background(), Begin(Nop, ScopeRun, "x", SpanContext{})) != context.Background() {
		t.Fatal("inert span changed the context")
	}
}

func TestTextLineShowsLaneAndScope(t *testing.T) {
	ev := &Event{Kind: KindMark, Scope: ScopeFunc, Lane: 3, Name: "skipped", Detail: "fn:f",
		Extra: map[string]string{"z": "1", "reason": "cancelled"}}
	out := string(FormatEvent(ev, FormatText))
	for _, want := range []string{" w3 ", "    * skipped (fn:f) {reason=cancelled, z=1}\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestFormatForPath(t *testing.T) {
	for path, want := range map[string]Format{"run.ndjson": FormatNDJSON, "run.json": FormatChrome, "run.log": FormatText, "-": FormatText} {
		if got := FormatForPath(path); got != want {
			t.Fatalf("FormatForPath(%q) = %v", path, got)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected error")
	}
}
