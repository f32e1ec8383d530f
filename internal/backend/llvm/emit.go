package llvm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"golang.org/x/text/unicode/norm"

	"lowir/internal/abi"
	"lowir/internal/layout"
	"lowir/internal/mir"
	"lowir/internal/target"
	"lowir/internal/trace"
	"lowir/internal/types"
)

// Options tunes module-level output.
type Options struct {
	// EntryShim adds a C `main(argc, argv)` that calls the unit's entry.
	EntryShim bool
	// Backend receives every finished function. Nil selects a ModuleBackend.
	Backend Backend
}

// Emitter lowers the functions of one MIR unit into a single LLVM module.
//
// Every symbol is declared by NewEmitter, so LowerFunc may run for different
// functions on different goroutines. Shared declarations created on demand
// (intrinsics, runtime helpers, byte constants) are guarded by mu.
type Emitter struct {
	mod     *mir.Module
	types   *types.Interner
	target  *target.Target
	layouts *layout.Engine
	abis    *abi.Classifier
	backend Backend
	opts    Options

	funcs   map[string]*ir.Func
	fnAbis  map[string]*abi.FnAbi
	order   []*ir.Func
	statics []*ir.Global
	shim    *ir.Func

	mu         sync.Mutex
	lowered    map[string]bool
	intrinsics map[string]*ir.Func
	helpers    map[string]*ir.Func
	consts     map[string]*ir.Global
}

// NewEmitter declares every function, declaration and static of mod.
func NewEmitter(mod *mir.Module, tgt *target.Target, le *layout.Engine, cls *abi.Classifier, opts Options) (*Emitter, error) {
	if mod == nil || tgt == nil {
		return nil, errors.New("emitter needs a module and a target")
	}
	if le == nil {
		le = layout.New(tgt, mod.Types)
	}
	if cls == nil {
		cls = abi.New(le)
	}
	e := &Emitter{
		mod:        mod,
		types:      mod.Types,
		target:     tgt,
		layouts:    le,
		abis:       cls,
		backend:    opts.Backend,
		opts:       opts,
		funcs:      make(map[string]*ir.Func, len(mod.Funcs)+len(mod.Decls)),
		fnAbis:     make(map[string]*abi.FnAbi, len(mod.Funcs)+len(mod.Decls)),
		lowered:    make(map[string]bool, len(mod.Funcs)),
		intrinsics: make(map[string]*ir.Func),
		helpers:    make(map[string]*ir.Func),
		consts:     make(map[string]*ir.Global),
	}
	if e.backend == nil {
		e.backend = NewModuleBackend()
	}
	if err := e.prepareFunctions(); err != nil {
		return nil, err
	}
	if err := e.prepareStatics(); err != nil {
		return nil, err
	}
	if opts.EntryShim && mod.Entry != "" {
		if err := e.emitEntryShim(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Layouts returns the layout engine the emitter resolves types with.
func (e *Emitter) Layouts() *layout.Engine { return e.layouts }

// ABI returns the classifier the emitter uses for signatures.
func (e *Emitter) ABI() *abi.Classifier { return e.abis }

func symbol(name string) string {
	return norm.NFC.String(name)
}

func callingConv(cv *target.Convention) enum.CallingConv {
	if cv == nil {
		return enum.CallingConvNone
	}
	switch cv.LLVM {
	case "fastcc":
		return enum.CallingConvFast
	case "coldcc":
		return enum.CallingConvCold
	case "x86_64_sysvcc":
		return enum.CallingConvX86_64SysV
	case "win64cc":
		return enum.CallingConvWin64
	default:
		return enum.CallingConvNone
	}
}

func (e *Emitter) prepareFunctions() error {
	var errs []error
	declare := func(name string, sig types.TypeID, internal bool) *ir.Func {
		if _, dup := e.funcs[name]; dup {
			errs = append(errs, fmt.Errorf("duplicate symbol %s", name))
			return nil
		}
		fa, err := e.abis.FnAbi(sig)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return nil
		}
		ft := fnType(fa)
		params := make([]*ir.Param, 0, len(ft.Params))
		idx := 0
		if fa.HasSret() {
			params = append(params, ir.NewParam("sret", ft.Params[0]))
			idx = 1
		}
		for i := idx; i < len(ft.Params); i++ {
			params = append(params, ir.NewParam("p"+strconv.Itoa(i-idx), ft.Params[i]))
		}
		fn := ir.NewFunc(symbol(name), ft.RetType, params...)
		fn.Sig.Variadic = fa.Variadic
		fn.CallingConv = callingConv(fa.Conv)
		if internal {
			fn.Linkage = enum.LinkageInternal
		}
		e.funcs[name] = fn
		e.fnAbis[name] = fa
		e.order = append(e.order, fn)
		return fn
	}
	for _, f := range e.mod.Funcs {
		if f == nil {
			continue
		}
		declare(f.Name, f.Sig, f.Internal)
	}
	for _, d := range e.mod.Decls {
		declare(d.Name, d.Sig, false)
	}
	return errors.Join(errs...)
}

// LowerFunc lowers one MIR function into its pre-declared LLVM function and
// hands it to the backend. On failure the function is left as a declaration.
func (e *Emitter) LowerFunc(ctx context.Context, f *mir.Func) error {
	if f == nil {
		return nil
	}
	fn, ok := e.funcs[f.Name]
	if !ok {
		return &LowerError{Func: f.Name, Block: mir.NoBlockID, Span: f.Span, Err: errors.New("function was not declared")}
	}
	e.mu.Lock()
	dup := e.lowered[f.Name]
	e.lowered[f.Name] = true
	e.mu.Unlock()
	if dup {
		return &LowerError{Func: f.Name, Block: mir.NoBlockID, Span: f.Span, Err: errors.New("function lowered twice")}
	}

	span := trace.Begin(trace.FromContext(ctx), trace.ScopeFunc, "fn:"+f.Name, trace.CurrentSpan(ctx))
	fe := newFuncEmitter(e, f, fn, e.fnAbis[f.Name])
	if err := fe.lower(trace.WithSpan(ctx, span)); err != nil {
		fn.Blocks = nil
		fn.Linkage = enum.LinkageNone
		span.End("failed")
		return err
	}
	if err := e.backend.DefineFunction(fn); err != nil {
		fn.Blocks = nil
		fn.Linkage = enum.LinkageNone
		span.End("rejected")
		return &LowerError{Func: f.Name, Block: mir.NoBlockID, Span: f.Span, Err: err}
	}
	span.WithExtra("blocks", strconv.Itoa(len(fn.Blocks))).End("")
	return nil
}

// Lowered lists the functions whose bodies were emitted, in unit order.
func (e *Emitter) Lowered() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.mod.Funcs))
	for _, f := range e.mod.Funcs {
		if fn := e.funcs[f.Name]; fn != nil && e.lowered[f.Name] && len(fn.Blocks) > 0 {
			out = append(out, f.Name)
		}
	}
	return out
}

// Finish assembles the module: user functions and declarations in unit
// order, then runtime helpers and intrinsics sorted by name.
func (e *Emitter) Finish() *ir.Module {
	m := ir.NewModule()
	m.TargetTriple = e.target.Triple
	m.DataLayout = e.target.DataLayout

	e.mu.Lock()
	defer e.mu.Unlock()

	m.Globals = append(m.Globals, e.statics...)
	m.Globals = append(m.Globals, sortedValues(e.consts)...)

	m.Funcs = append(m.Funcs, e.order...)
	if e.shim != nil {
		m.Funcs = append(m.Funcs, e.shim)
	}
	m.Funcs = append(m.Funcs, sortedValues(e.helpers)...)
	m.Funcs = append(m.Funcs, sortedValues(e.intrinsics)...)
	return m
}

func sortedValues[T any](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// EmitModule lowers every function of mod in order and returns the module.
// All function failures are reported together.
func EmitModule(ctx context.Context, mod *mir.Module, tgt *target.Target, opts Options) (*ir.Module, error) {
	e, err := NewEmitter(mod, tgt, nil, nil, opts)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, f := range mod.Funcs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.LowerFunc(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return e.Finish(), errors.Join(errs...)
}

// intrinsic returns the shared declaration of an LLVM intrinsic.
func (e *Emitter) intrinsic(name string, ret lltypes.Type, params ...lltypes.Type) *ir.Func {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn, ok := e.intrinsics[name]; ok {
		return fn
	}
	ps := make([]*ir.Param, len(params))
	for i, t := range params {
		ps[i] = ir.NewParam("", t)
	}
	fn := ir.NewFunc(name, ret, ps...)
	e.intrinsics[name] = fn
	return fn
}

// helper returns the runtime helper name, building its body on first use.
func (e *Emitter) helper(name string, build func(e *Emitter, name string) *ir.Func) *ir.Func {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn, ok := e.helpers[name]; ok {
		return fn
	}
	fn := build(e, name)
	fn.Linkage = enum.LinkageInternal
	e.helpers[name] = fn
	return fn
}

// bytesGlobal returns a private read-only global holding b. Globals are
// named by content so parallel lowering yields the same module.
func (e *Emitter) bytesGlobal(b []byte) *ir.Global {
	sum := sha256.Sum256(b)
	name := "bytes." + hex.EncodeToString(sum[:8])
	e.mu.Lock()
	defer e.mu.Unlock()
	if g, ok := e.consts[name]; ok {
		return g
	}
	g := ir.NewGlobalDef(name, constant.NewCharArray(append([]byte(nil), b...)))
	g.Immutable = true
	g.Linkage = enum.LinkagePrivate
	e.consts[name] = g
	return g
}

// zeroGlobal returns a read-only zeroed object of size bytes.
func (e *Emitter) zeroGlobal(size int) *ir.Global {
	name := "zeroed." + strconv.Itoa(size)
	e.mu.Lock()
	defer e.mu.Unlock()
	if g, ok := e.consts[name]; ok {
		return g
	}
	arr := lltypes.NewArray(uint64(size), lltypes.I8) //nolint:gosec // size > 0
	g := ir.NewGlobalDef(name, constant.NewZeroInitializer(arr))
	g.Align = zeroAlign
	g.Immutable = true
	g.Linkage = enum.LinkagePrivate
	e.consts[name] = g
	return g
}

func (e *Emitter) usize() *lltypes.IntType {
	return intType(e.target.PtrSize)
}

func (e *Emitter) layoutOf(t types.TypeID) (*layout.Layout, error) {
	return e.layouts.LayoutOf(t)
}
