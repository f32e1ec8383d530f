package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/llir/llvm/ir"

	"lowir/internal/backend/llvm"
	"lowir/internal/diag"
	"lowir/internal/mir"
	"lowir/internal/observ"
	"lowir/internal/target"
	"lowir/internal/trace"
)

var (
	// ErrLoadUnit wraps failures to read or decode a unit file.
	ErrLoadUnit = errors.New("cannot load unit")
	// ErrInvalidUnit wraps MIR validation failures.
	ErrInvalidUnit = errors.New("invalid unit")
	// ErrUnknownTarget is returned for a preset name that does not exist.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrInvalidTarget wraps target descriptor decoding and validation
	// failures.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrTargetConflict is returned when both a preset and a file are given.
	ErrTargetConflict = errors.New("--target and --target-file are mutually exclusive")
)

// Options configures a lowering session.
type Options struct {
	// Target names a built-in preset; TargetFile names a TOML descriptor.
	// At most one may be set. Neither selects target.DefaultPreset.
	Target     string
	TargetFile string

	// Jobs bounds the number of functions lowered at once; 0 uses GOMAXPROCS.
	Jobs int
	// KeepGoing lowers every function even after one fails.
	KeepGoing bool
	// EntryShim adds a C main that calls the unit's entry function.
	EntryShim bool
	// MaxDiagnostics caps the session's diagnostic bag; 0 means 100.
	MaxDiagnostics int
	// Timings appends the phase report to the bag as an info diagnostic.
	Timings bool

	Cache    Cache
	Progress ProgressSink
	Observer PhaseObserver
	// Backend receives finished functions; nil selects a ModuleBackend.
	Backend llvm.Backend
}

// Session lowers one unit for one target. Functions may be lowered
// concurrently once the session is prepared.
type Session struct {
	Unit   *mir.Module
	Target *target.Target
	Bag    *diag.Bag
	Timer  *observ.Timer

	opts     Options
	reporter diag.Reporter
	emitter  *llvm.Emitter
}

func newSession(opts Options) *Session {
	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = 100
	}
	bag := diag.NewBag(opts.MaxDiagnostics)
	return &Session{
		Bag:      bag,
		Timer:    observ.NewTimer(),
		opts:     opts,
		reporter: diag.BagReporter{Bag: bag},
	}
}

// NewSession validates unit and declares all of its symbols for tgt.
// Failures are recorded in the returned session's bag as well as returned;
// the session is nil only when unit or tgt is nil.
func NewSession(ctx context.Context, unit *mir.Module, tgt *target.Target, opts Options) (*Session, error) {
	if unit == nil || tgt == nil {
		return nil, errors.New("session needs a unit and a target")
	}
	s := newSession(opts)
	return s, s.prepare(ctx, unit, tgt)
}

func (s *Session) prepare(ctx context.Context, unit *mir.Module, tgt *target.Target) error {
	s.Unit = unit
	s.Target = tgt
	err := s.phase(ctx, "validate", func(context.Context) error {
		err := mir.Validate(unit)
		if err == nil {
			return nil
		}
		for _, e := range splitJoined(err) {
			s.report(fmt.Errorf("%w: %w", ErrInvalidUnit, e), "")
		}
		return fmt.Errorf("%w: %w", ErrInvalidUnit, err)
	})
	if err != nil {
		return err
	}
	return s.phase(ctx, "declare", func(context.Context) error {
		e, err := llvm.NewEmitter(unit, tgt, nil, nil, llvm.Options{
			EntryShim: s.opts.EntryShim,
			Backend:   s.opts.Backend,
		})
		if err != nil {
			for _, e := range splitJoined(err) {
				s.report(e, "")
			}
			return err
		}
		s.emitter = e
		return nil
	})
}

// Emitter returns the session's emitter, or nil if preparation failed.
func (s *Session) Emitter() *llvm.Emitter { return s.emitter }

// Finish assembles the module from every function lowered so far.
func (s *Session) Finish() *ir.Module {
	if s.emitter == nil {
		return nil
	}
	return s.emitter.Finish()
}

func (s *Session) beginPass(ctx context.Context, name string) (*trace.Span, context.Context) {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeStage, name, trace.CurrentSpan(ctx))
	return span, trace.WithSpan(ctx, span)
}

// LoadUnit reads and decodes a msgpack unit file. The raw bytes are returned
// for cache keying.
func LoadUnit(path string) (*mir.Module, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w %s: %w", ErrLoadUnit, path, err)
	}
	unit, err := mir.DecodeModule(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w %s: %w", ErrLoadUnit, path, err)
	}
	return unit, data, nil
}

// ResolveTarget selects a preset by name or loads a descriptor file.
func ResolveTarget(name, file string) (*target.Target, error) {
	switch {
	case name != "" && file != "":
		return nil, ErrTargetConflict
	case file != "":
		tgt, err := target.LoadFile(file)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
		}
		return &tgt, nil
	}
	if name == "" {
		name = target.DefaultPreset
	}
	tgt, ok := target.Preset(name)
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownTarget, name, target.PresetNames())
	}
	return &tgt, nil
}
