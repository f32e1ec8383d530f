package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"lowir/internal/diag"
	"lowir/internal/mir"
	"lowir/internal/source"
	"lowir/internal/trace"
)

// LowerFunc lowers one function and records a diagnostic when it fails.
// A function interrupted by ctx is reported as skipped, not failed, and
// the context error is returned.
func (s *Session) LowerFunc(ctx context.Context, f *mir.Func) error {
	if s.emitter == nil {
		return errors.New("session was not prepared")
	}
	emit(s.opts.Progress, Event{Func: f.Name, Status: StatusWorking})
	start := time.Now()
	err := s.emitter.LowerFunc(ctx, f)
	elapsed := time.Since(start)
	subject := "fn:" + f.Name
	if interrupted(ctx, err) {
		trace.Record(ctx, trace.MarkFuncSkipped, subject, "interrupted")
		emit(s.opts.Progress, Event{Func: f.Name, Status: StatusSkipped, Elapsed: elapsed})
		return err
	}
	if err != nil {
		s.report(err, f.Name)
		trace.Record(ctx, trace.MarkFuncFailed, subject, err.Error())
		emit(s.opts.Progress, Event{Func: f.Name, Status: StatusError, Err: err, Elapsed: elapsed})
		return err
	}
	trace.Record(ctx, trace.MarkFuncLowered, subject, "")
	emit(s.opts.Progress, Event{Func: f.Name, Status: StatusDone, Elapsed: elapsed})
	return nil
}

// LowerAll lowers every function of the unit on a bounded worker pool.
//
// Without KeepGoing the first failure cancels the remaining functions and
// is returned; functions cut short count as skipped, not failed. With KeepGoing every function is attempted
// and all failures are returned joined.
func (s *Session) LowerAll(ctx context.Context) error {
	if s.emitter == nil {
		return errors.New("session was not prepared")
	}
	return s.phase(ctx, "lower", func(ctx context.Context) error {
		return s.lowerFuncs(ctx, s.Unit.Funcs)
	})
}

func (s *Session) lowerFuncs(ctx context.Context, funcs []*mir.Func) error {
	if len(funcs) == 0 {
		return nil
	}
	for _, f := range funcs {
		emit(s.opts.Progress, Event{Func: f.Name, Status: StatusQueued})
	}

	jobs := s.opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Each slot is written only by the goroutine that owns index i.
	errs := make([]error, len(funcs))
	started := make([]bool, len(funcs))

	workers := min(jobs, len(funcs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	// At most workers goroutines run at once, so taking a lane never blocks.
	lanes := make(chan uint64, workers)
	for lane := range workers {
		lanes <- uint64(lane) + 1 //nolint:gosec // lane is non-negative
	}

	for i, f := range funcs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			started[i] = true
			lane := <-lanes
			defer func() { lanes <- lane }()
			errs[i] = s.LowerFunc(trace.WithLane(gctx, lane), f)
			if errs[i] != nil && !s.opts.KeepGoing {
				return errs[i]
			}
			return nil
		})
	}
	waitErr := g.Wait()

	skipped := 0
	for i, f := range funcs {
		switch {
		case !started[i]:
			skipped++
			trace.Record(ctx, trace.MarkFuncSkipped, "fn:"+f.Name, "not started")
			emit(s.opts.Progress, Event{Func: f.Name, Status: StatusSkipped})
		case interrupted(gctx, errs[i]):
			// Cut short by another function's failure or by the caller.
			skipped++
			errs[i] = nil
		}
	}
	if skipped > 0 {
		diag.ReportWarning(s.reporter, diag.LowCancelled, source.Span{},
			fmt.Sprintf("%d of %d functions were not lowered", skipped, len(funcs))).Emit()
	}

	if s.opts.KeepGoing {
		if err := errors.Join(errs...); err != nil {
			return err
		}
	}
	if waitErr == nil {
		return ctx.Err()
	}
	return waitErr
}

// interrupted reports whether err is ctx's own cancellation.
func interrupted(ctx context.Context, err error) bool {
	cerr := ctx.Err()
	return err != nil && cerr != nil && errors.Is(err, cerr)
}
