package driver

import (
	"context"
	"fmt"
	"path/filepath"

	"lowir/internal/diag"
	"lowir/internal/mir"
	"lowir/internal/observ"
	"lowir/internal/source"
	"lowir/internal/target"
	"lowir/internal/trace"
)

// Result is the outcome of Lower. It is returned even when lowering fails,
// so callers can print the diagnostics.
type Result struct {
	Unit   *mir.Module
	Target *target.Target
	Digest Digest
	// IR is the printed module. After a KeepGoing failure it still holds
	// every function that lowered, with the failed ones as declarations.
	IR string
	// Funcs lists the functions accepted by the backend, in unit order.
	Funcs   []string
	Cached  bool
	Bag     *diag.Bag
	Timings observ.Report
}

// Files returns the unit's file table, or nil when the unit never loaded.
func (r *Result) Files() *source.FileTable {
	if r == nil || r.Unit == nil {
		return nil
	}
	return r.Unit.Files
}

// Lower loads the unit at path, lowers it for the selected target and
// prints the LLVM module. With a Cache, a unit already lowered for the same
// target and options is returned without lowering. Only complete results
// are stored.
func Lower(ctx context.Context, path string, opts Options) (*Result, error) {
	s := newSession(opts)
	res := &Result{Bag: s.Bag}
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeRun, "lower:"+filepath.Base(path), trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)

	err := s.lower(ctx, path, res)
	res.Timings = s.Timer.Report()
	if opts.Timings {
		appendTimingDiagnostic(s.Bag, timingPayload{Unit: path, TotalMS: res.Timings.TotalMS, Phases: res.Timings.Phases})
	}
	s.Bag.Sort()
	if err != nil {
		span.End("failed")
		return res, err
	}
	span.WithExtra("cached", fmt.Sprint(res.Cached)).End("")
	return res, nil
}

func (s *Session) lower(ctx context.Context, path string, res *Result) error {
	var raw []byte
	err := s.phase(ctx, "load", func(context.Context) error {
		unit, data, err := LoadUnit(path)
		if err != nil {
			return err
		}
		res.Unit, raw = unit, data
		return nil
	})
	if err != nil {
		s.report(err, "")
		return err
	}

	err = s.phase(ctx, "target", func(context.Context) error {
		tgt, err := ResolveTarget(s.opts.Target, s.opts.TargetFile)
		res.Target = tgt
		return err
	})
	if err != nil {
		s.report(err, "")
		return err
	}

	if s.opts.Cache != nil {
		hit := false
		err = s.phase(ctx, "cache", func(ctx context.Context) error {
			key, err := UnitDigest(raw, res.Target, &s.opts)
			if err != nil {
				return err
			}
			res.Digest = key
			a, ok, err := s.opts.Cache.Get(key)
			if err != nil || !ok {
				trace.Record(ctx, trace.MarkCacheMiss, key.String(), "")
				return err
			}
			hit = true
			trace.Record(ctx, trace.MarkCacheHit, key.String(), "")
			res.IR, res.Funcs, res.Cached = a.IR, a.Funcs, true
			return nil
		})
		if err != nil {
			// A broken cache only costs a relowering.
			s.reportCache(err)
		}
		if hit {
			emit(s.opts.Progress, Event{Status: StatusCached})
			diag.ReportInfo(s.reporter, diag.ObsCacheHit, source.Span{},
				fmt.Sprintf("unit %s for %s served from cache", res.Unit.Name, res.Target.Triple)).Emit()
			return nil
		}
	}

	if err := s.prepare(ctx, res.Unit, res.Target); err != nil {
		return err
	}
	lowerErr := s.LowerAll(ctx)

	err = s.phase(ctx, "finish", func(context.Context) error {
		res.IR = s.Finish().String()
		res.Funcs = s.emitter.Lowered()
		return nil
	})
	if err != nil {
		return err
	}
	if lowerErr != nil {
		return lowerErr
	}

	if s.opts.Cache != nil && !res.Digest.IsZero() {
		err = s.phase(ctx, "store", func(context.Context) error {
			return s.opts.Cache.Put(res.Digest, &Artifact{
				Unit:   res.Unit.Name,
				Triple: res.Target.Triple,
				Funcs:  res.Funcs,
				IR:     res.IR,
			})
		})
		if err != nil {
			s.reportCache(err)
		}
	}
	return nil
}

func (s *Session) reportCache(err error) {
	diag.ReportWarning(s.reporter, diag.IOCacheFailure, source.Span{}, err.Error()).Emit()
}
