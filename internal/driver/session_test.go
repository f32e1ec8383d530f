package driver_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"lowir/internal/builtin"
	"lowir/internal/diag"
	"lowir/internal/driver"
	"lowir/internal/mir"
	"lowir/internal/target"
	"lowir/internal/trace"
	"lowir/internal/types"
)

type fixture struct {
	in  *types.Interner
	mod *mir.Module
}

func newFixture() *fixture {
	in := types.NewInterner()
	return &fixture{in: in, mod: &mir.Module{Name: "fixture", Types: in}}
}

// constFunc returns its argument-free constant.
func (fx *fixture) constFunc(name string, v int64) {
	bt := fx.in.Builtins()
	b := mir.NewFuncBuilder(fx.in, name, fx.in.RegisterFn(nil, bt.I32, types.ConvDefault, false))
	b.Block()
	b.Assign(mir.LocalPlace(b.Return()), mir.Use(mir.IntConst(bt.I32, v)))
	b.Ret()
	fx.mod.Funcs = append(fx.mod.Funcs, b.Func())
}

// asmFunc calls inline assembly, which lowering always rejects.
func (fx *fixture) asmFunc(name string) {
	b := mir.NewFuncBuilder(fx.in, name, fx.in.RegisterFn(nil, fx.in.Builtins().Unit, types.ConvDefault, false))
	entry, next := b.Block(), b.Block()
	b.SetBlock(entry)
	b.Terminate(mir.Terminator{Kind: mir.TermCall, Call: mir.CallTerm{
		Callee: mir.Callee{Kind: mir.CalleeBuiltin, Builtin: builtin.InlineAsm},
		Target: next,
	}})
	b.SetBlock(next)
	b.Ret()
	fx.mod.Funcs = append(fx.mod.Funcs, b.Func())
}

func (fx *fixture) write(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unit.mpk")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create unit: %v", err)
	}
	defer f.Close()
	if err := mir.EncodeModule(f, fx.mod); err != nil {
		t.Fatalf("encode unit: %v", err)
	}
	return path
}

type recorder struct {
	mu     sync.Mutex
	events []driver.Event
}

func (r *recorder) OnEvent(ev driver.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) statuses(fn string) []driver.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []driver.Status
	for _, ev := range r.events {
		if ev.Func == fn {
			out = append(out, ev.Status)
		}
	}
	return out
}

func codes(bag *diag.Bag) []diag.Code {
	var out []diag.Code
	for _, d := range bag.Items() {
		out = append(out, d.Code)
	}
	return out
}

func TestLowerPrintsEveryFunction(t *testing.T) {
	fx := newFixture()
	fx.constFunc("one", 1)
	fx.constFunc("two", 2)
	path := fx.write(t)

	var phases []string
	rec := &recorder{}
	res, err := driver.Lower(context.Background(), path, driver.Options{
		Jobs:     2,
		Progress: rec,
		Observer: func(ev driver.PhaseEvent) {
			if ev.Status == driver.PhaseEnd {
				phases = append(phases, ev.Name)
			}
		},
	})
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	for _, want := range []string{"define i32 @one()", "define i32 @two()", "ret i32 2"} {
		if !strings.Contains(res.IR, want) {
			t.Fatalf("module misses %q:\n%s", want, res.IR)
		}
	}
	if !slices.Equal(res.Funcs, []string{"one", "two"}) {
		t.Fatalf("lowered funcs = %v", res.Funcs)
	}
	if want := []string{"load", "target", "validate", "declare", "lower", "finish"}; !slices.Equal(phases, want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	if got := rec.statuses("one"); !slices.Equal(got, []driver.Status{driver.StatusQueued, driver.StatusWorking, driver.StatusDone}) {
		t.Fatalf("events for one = %v", got)
	}
	if res.Bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", codes(res.Bag))
	}
}

func TestLowerServesRepeatsFromCache(t *testing.T) {
	fx := newFixture()
	fx.constFunc("answer", 42)
	path := fx.write(t)

	disk, err := driver.OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	opts := driver.Options{Cache: driver.NewMemoryCache(4, disk)}
	first, err := driver.Lower(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("first lower: %v", err)
	}
	if first.Cached {
		t.Fatal("first lowering cannot be cached")
	}

	// A fresh memory tier must find the artifact on disk.
	opts.Cache = driver.NewMemoryCache(4, disk)
	second, err := driver.Lower(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("second lower: %v", err)
	}
	if !second.Cached || second.IR != first.IR || second.Digest != first.Digest {
		t.Fatalf("second lowering was not served from cache (cached=%v)", second.Cached)
	}
	if !slices.Contains(codes(second.Bag), diag.ObsCacheHit) {
		t.Fatalf("cache hit not reported: %v", codes(second.Bag))
	}

	// Another target is another key.
	opts.Target = "aarch64-linux-gnu"
	third, err := driver.Lower(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("third lower: %v", err)
	}
	if third.Cached {
		t.Fatal("lowering for another target was served from cache")
	}
}

func TestKeepGoingReportsEveryFailure(t *testing.T) {
	fx := newFixture()
	fx.asmFunc("bad1")
	fx.constFunc("ok", 1)
	fx.asmFunc("bad2")
	path := fx.write(t)

	res, err := driver.Lower(context.Background(), path, driver.Options{KeepGoing: true, Jobs: 3})
	if err == nil {
		t.Fatal("expected an error")
	}
	var failed []string
	for _, d := range res.Bag.Items() {
		if d.Code == diag.IntUnsupported {
			failed = append(failed, d.Func)
		}
	}
	slices.Sort(failed)
	if !slices.Equal(failed, []string{"bad1", "bad2"}) {
		t.Fatalf("failures reported for %v", failed)
	}
	if !strings.Contains(res.IR, "define i32 @ok()") || !strings.Contains(res.IR, "declare void @bad1()") {
		t.Fatalf("partial module is wrong:\n%s", res.IR)
	}
	if !slices.Equal(res.Funcs, []string{"ok"}) {
		t.Fatalf("lowered funcs = %v", res.Funcs)
	}
}

func TestFirstFailureCancelsRemainingFunctions(t *testing.T) {
	fx := newFixture()
	fx.asmFunc("bad")
	fx.constFunc("later1", 1)
	fx.constFunc("later2", 2)
	path := fx.write(t)

	rec := &recorder{}
	res, err := driver.Lower(context.Background(), path, driver.Options{Jobs: 1, Progress: rec})
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := rec.statuses("later1"); got[len(got)-1] != driver.StatusSkipped {
		t.Fatalf("later1 events = %v", got)
	}
	cs := codes(res.Bag)
	if !slices.Contains(cs, diag.IntUnsupported) || !slices.Contains(cs, diag.LowCancelled) {
		t.Fatalf("diagnostics = %v", cs)
	}
}

func TestInterruptedFunctionIsSkippedNotFailed(t *testing.T) {
	fx := newFixture()
	fx.constFunc("slow", 1)
	tgt, ok := target.Preset("x86_64-linux-gnu")
	if !ok {
		t.Fatal("missing preset")
	}
	rec := &recorder{}
	s, err := driver.NewSession(context.Background(), fx.mod, &tgt, driver.Options{Progress: rec})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.LowerFunc(ctx, fx.mod.Funcs[0]); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := rec.statuses("slow"); got[len(got)-1] != driver.StatusSkipped {
		t.Fatalf("slow events = %v", got)
	}
	if s.Bag.HasErrors() || s.Bag.Len() != 0 {
		t.Fatalf("diagnostics = %v", codes(s.Bag))
	}
}

func TestCancelledLoweringCountsEveryFunctionAsSkipped(t *testing.T) {
	fx := newFixture()
	fx.constFunc("a", 1)
	fx.constFunc("b", 2)
	tgt, _ := target.Preset("x86_64-linux-gnu")
	rec := &recorder{}
	s, err := driver.NewSession(context.Background(), fx.mod, &tgt, driver.Options{KeepGoing: true, Progress: rec})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.LowerAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if s.Bag.HasErrors() {
		t.Fatalf("cancellation reported as an error: %v", codes(s.Bag))
	}
	if !slices.Equal(codes(s.Bag), []diag.Code{diag.LowCancelled}) {
		t.Fatalf("diagnostics = %v", codes(s.Bag))
	}
	for _, fn := range []string{"a", "b"} {
		if got := rec.statuses(fn); got[len(got)-1] != driver.StatusSkipped {
			t.Fatalf("%s events = %v", fn, got)
		}
	}
}

func TestLoweringIsTracedPerWorker(t *testing.T) {
	fx := newFixture()
	fx.constFunc("a", 1)
	fx.constFunc("b", 2)
	fx.asmFunc("bad")
	path := fx.write(t)

	ring := trace.NewRingTracer(256, trace.LevelFunc)
	counters := &trace.Counters{}
	ctx := trace.WithCounters(trace.WithTracer(context.Background(), ring), counters)
	if _, err := driver.Lower(ctx, path, driver.Options{Jobs: 2, KeepGoing: true}); err == nil {
		t.Fatal("expected an error")
	}
	if counters.Count(trace.MarkFuncLowered) != 2 || counters.Count(trace.MarkFuncFailed) != 1 {
		t.Fatalf("counters = %v", counters.Snapshot())
	}
	funcs := 0
	for _, ev := range ring.Snapshot() {
		if ev.Scope != trace.ScopeFunc || ev.Kind != trace.KindSpanBegin {
			continue
		}
		funcs++
		if ev.Lane < 1 || ev.Lane > 2 {
			t.Fatalf("%s ran on lane %d", ev.Name, ev.Lane)
		}
	}
	if funcs != 3 {
		t.Fatalf("traced %d functions", funcs)
	}
}

func TestEntryShimConflictIsDiagnosed(t *testing.T) {
	fx := newFixture()
	fx.constFunc("main", 0)
	fx.mod.Entry = "main"
	path := fx.write(t)

	res, err := driver.Lower(context.Background(), path, driver.Options{EntryShim: true})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !slices.Contains(codes(res.Bag), diag.MirEntryConflict) {
		t.Fatalf("diagnostics = %v", codes(res.Bag))
	}
}

func TestMissingUnitIsDiagnosed(t *testing.T) {
	res, err := driver.Lower(context.Background(), filepath.Join(t.TempDir(), "nope.mpk"), driver.Options{Timings: true})
	if !errors.Is(err, driver.ErrLoadUnit) {
		t.Fatalf("got %v, want ErrLoadUnit", err)
	}
	cs := codes(res.Bag)
	if !slices.Contains(cs, diag.IOLoadUnit) || !slices.Contains(cs, diag.ObsTimings) {
		t.Fatalf("diagnostics = %v", cs)
	}
}

func TestResolveTarget(t *testing.T) {
	tgt, err := driver.ResolveTarget("", "")
	if err != nil || tgt.Triple == "" {
		t.Fatalf("default target: %v", err)
	}
	if _, err := driver.ResolveTarget("pdp11", ""); !errors.Is(err, driver.ErrUnknownTarget) {
		t.Fatalf("got %v, want ErrUnknownTarget", err)
	} else if d := driver.Diagnose(err); d.Code != diag.TgtUnknown {
		t.Fatalf("diagnosed as %s", d.Code.ID())
	}
	if _, err := driver.ResolveTarget("x86_64-linux-gnu", "t.toml"); !errors.Is(err, driver.ErrTargetConflict) {
		t.Fatalf("got %v, want ErrTargetConflict", err)
	}
	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("[target]\nptr_size = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := driver.ResolveTarget("", bad); !errors.Is(err, driver.ErrInvalidTarget) {
		t.Fatalf("got %v, want ErrInvalidTarget", err)
	}
}
