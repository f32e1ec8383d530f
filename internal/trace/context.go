package trace

import "context"

type ctxKey struct{}

// FromContext returns the tracer installed on ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if t, ok := ctx.Value(ctxKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// WithTracer installs t on ctx.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, ctxKey{}, t)
}

// SpanContext is the enclosing span and the worker lane of the code
// running under a context. Spans begun under it inherit the lane.
type SpanContext struct {
	SpanID uint64
	Lane   uint64
}

type spanCtxKey struct{}

// CurrentSpan returns the span context carried by ctx.
func CurrentSpan(ctx context.Context) SpanContext {
	sc, _ := ctx.Value(spanCtxKey{}).(SpanContext)
	return sc
}

// WithSpanContext makes sc the enclosing span of ctx.
func WithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanCtxKey{}, sc)
}

// WithSpan makes s the enclosing span of ctx, keeping the lane. An inert
// span leaves ctx unchanged.
func WithSpan(ctx context.Context, s *Span) context.Context {
	id := s.ID()
	if id == 0 {
		return ctx
	}
	sc := CurrentSpan(ctx)
	sc.SpanID = id
	return WithSpanContext(ctx, sc)
}

// WithLane runs the code under ctx on worker lane.
func WithLane(ctx context.Context, lane uint64) context.Context {
	sc := CurrentSpan(ctx)
	sc.Lane = lane
	return WithSpanContext(ctx, sc)
}

type countersKey struct{}

// WithCounters attaches c so Mark can count lowering events.
func WithCounters(ctx context.Context, c *Counters) context.Context {
	return context.WithValue(ctx, countersKey{}, c)
}

// CountersFrom returns the counters attached to ctx, or nil.
func CountersFrom(ctx context.Context) *Counters {
	c, _ := ctx.Value(countersKey{}).(*Counters)
	return c
}
