package trace

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"
)

// Mark names an instant lowering event.
type Mark uint8

const (
	MarkFuncLowered Mark = iota
	MarkFuncFailed
	// MarkFuncSkipped is a function cancelled before or while lowering.
	MarkFuncSkipped
	MarkCacheHit
	MarkCacheMiss
	numMarks
)

var markNames = [numMarks]string{
	MarkFuncLowered: "lowered",
	MarkFuncFailed:  "failed",
	MarkFuncSkipped: "skipped",
	MarkCacheHit:    "cache-hit",
	MarkCacheMiss:   "cache-miss",
}

func (m Mark) String() string {
	if m < numMarks {
		return markNames[m]
	}
	return "unknown"
}

func (m Mark) scope() Scope {
	if m == MarkCacheHit || m == MarkCacheMiss {
		return ScopeStage
	}
	return ScopeFunc
}

// Counters tallies marks for the whole run. The heartbeat reports them so
// a stalled run shows how far it got.
type Counters struct {
	n [numMarks]atomic.Uint64
}

// Count returns how many times m was recorded.
func (c *Counters) Count(m Mark) uint64 {
	if c == nil || m >= numMarks {
		return 0
	}
	return c.n[m].Load()
}

// Snapshot returns the non-zero counts keyed by mark name.
func (c *Counters) Snapshot() map[string]string {
	if c == nil {
		return nil
	}
	out := make(map[string]string)
	for m := range numMarks {
		if v := c.n[m].Load(); v > 0 {
			out[m.String()] = strconv.FormatUint(v, 10)
		}
	}
	return out
}

// Record counts m on the counters of ctx and emits it as an instant event
// named subject ("fn:main", a cache key) on the tracer of ctx.
func Record(ctx context.Context, m Mark, subject, detail string) {
	if c := CountersFrom(ctx); c != nil && m < numMarks {
		c.n[m].Add(1)
	}
	t := FromContext(ctx)
	if !t.Enabled() || !t.Level().ShouldEmit(m.scope()) {
		return
	}
	sc := CurrentSpan(ctx)
	t.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindMark,
		Scope:    m.scope(),
		ParentID: sc.SpanID,
		Lane:     sc.Lane,
		Name:     m.String(),
		Detail:   subject,
		Extra:    detailExtra(detail),
	})
}

func detailExtra(detail string) map[string]string {
	if detail == "" {
		return nil
	}
	return map[string]string{"reason": detail}
}
