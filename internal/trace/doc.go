// Package trace records what a lowering run is doing: session stages,
// functions as workers lower them, and blocks inside a function, plus
// instant marks for cache hits and misses and for functions that were
// lowered, failed or skipped.
//
// Spans nest by scope (run, stage, func, block) and carry the worker lane
// they ran on, so a Chrome trace shows one thread per worker:
//
//	lowir lower --trace=run.json --trace-mode=stream --trace-level=func unit.mpk
//
// The tracer and the enclosing span travel on the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeFunc, "fn:main", trace.CurrentSpan(ctx))
//	defer span.End("")
//	trace.Record(trace.WithSpan(ctx, span), trace.MarkFuncLowered, "fn:main", "")
//
// A ring tracer keeps the last events in memory and is dumped when the
// command fails; a heartbeat reports the run's Counters while it is alive.
package trace
