package llvm

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"lowir/internal/builtin"
	"lowir/internal/mir"
	"lowir/internal/target"
	"lowir/internal/types"
)

type unit struct {
	in  *types.Interner
	mod *mir.Module
}

func newUnit() *unit {
	in := types.NewInterner()
	return &unit{in: in, mod: &mir.Module{Name: "test", Types: in}}
}

func (u *unit) fn(name string, result types.TypeID, params ...types.TypeID) *mir.FuncBuilder {
	sig := u.in.RegisterFn(params, result, types.ConvDefault, false)
	return mir.NewFuncBuilder(u.in, name, sig)
}

func (u *unit) add(b *mir.FuncBuilder) { u.mod.Funcs = append(u.mod.Funcs, b.Func()) }

func (u *unit) emit(t *testing.T, preset string, opts Options) (string, error) {
	t.Helper()
	tgt, ok := target.Preset(preset)
	if !ok {
		t.Fatalf("missing preset %s", preset)
	}
	m, err := EmitModule(context.Background(), u.mod, &tgt, opts)
	if m == nil {
		return "", err
	}
	return m.String(), err
}

func (u *unit) mustEmit(t *testing.T, preset string) string {
	t.Helper()
	out, err := u.emit(t, preset, Options{})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	return out
}

func callBuiltin(k builtin.Kind, dst *mir.Place, target mir.BlockID, args ...mir.Operand) mir.Terminator {
	call := mir.CallTerm{
		Callee: mir.Callee{Kind: mir.CalleeBuiltin, Builtin: k},
		Args:   args,
		Target: target,
	}
	if dst != nil {
		call.HasDst, call.Dst = true, *dst
	}
	return mir.Terminator{Kind: mir.TermCall, Call: call}
}

func TestCheckedAddUsesOverflowIntrinsic(t *testing.T) {
	u := newUnit()
	bt := u.in.Builtins()
	pair := u.in.RegisterTuple([]types.TypeID{bt.I32, bt.Bool})
	b := u.fn("add", pair, bt.I32, bt.I32)
	b.Block()
	b.Assign(mir.LocalPlace(b.Return()), mir.CheckedBinary(mir.BinAdd, mir.Copy(mir.LocalPlace(b.Param(0))), mir.Copy(mir.LocalPlace(b.Param(1)))))
	b.Ret()
	u.add(b)

	out := u.mustEmit(t, "x86_64-linux-gnu")
	if !strings.Contains(out, "@llvm.sadd.with.overflow.i32") {
		t.Fatalf("checked add does not use the overflow intrinsic:\n%s", out)
	}
}

func TestWideCheckedMulIsExpandedWhereTheTargetRequiresIt(t *testing.T) {
	u := newUnit()
	bt := u.in.Builtins()
	pair := u.in.RegisterTuple([]types.TypeID{bt.U128, bt.Bool})
	b := u.fn("mul", pair, bt.U128, bt.U128)
	b.Block()
	b.Assign(mir.LocalPlace(b.Return()), mir.CheckedBinary(mir.BinMul, mir.Copy(mir.LocalPlace(b.Param(0))), mir.Copy(mir.LocalPlace(b.Param(1)))))
	b.Ret()
	u.add(b)

	out := u.mustEmit(t, "i686-linux-gnu")
	if strings.Contains(out, "umul.with.overflow.i128") {
		t.Fatalf("i128 overflow intrinsic used on a target without it:\n%s", out)
	}
	if !strings.Contains(out, "udiv i128") {
		t.Fatalf("manual overflow check missing:\n%s", out)
	}
}

func TestBlocksKeepMIROrder(t *testing.T) {
	u := newUnit()
	b := u.fn("order", u.in.Builtins().Unit)
	b0, b1, b2 := b.Block(), b.Block(), b.Block()
	b.SetBlock(b0)
	b.Goto(b2)
	b.SetBlock(b2)
	b.Goto(b1)
	b.SetBlock(b1)
	b.Ret()
	u.add(b)

	out := u.mustEmit(t, "x86_64-linux-gnu")
	i0, i1, i2 := strings.Index(out, "bb0:"), strings.Index(out, "bb1:"), strings.Index(out, "bb2:")
	if i0 < 0 || i1 < 0 || i2 < 0 || !(i0 < i1 && i1 < i2) {
		t.Fatalf("blocks out of order:\n%s", out)
	}
}

func switchFunc(u *unit, cases int) {
	bt := u.in.Builtins()
	b := u.fn("sw", bt.I32, bt.I32)
	entry := b.Block()
	sw := mir.SwitchIntTerm{Value: mir.Copy(mir.LocalPlace(b.Param(0)))}
	for i := 0; i <= cases; i++ {
		blk := b.Block()
		b.Assign(mir.LocalPlace(b.Return()), mir.Use(mir.IntConst(bt.I32, int64(i))))
		b.Ret()
		if i < cases {
			sw.Cases = append(sw.Cases, mir.SwitchCase{Value: uint64(i), Target: blk}) //nolint:gosec // small
		} else {
			sw.Otherwise = blk
		}
	}
	b.SetBlock(entry)
	b.Terminate(mir.Terminator{Kind: mir.TermSwitchInt, SwitchInt: sw})
	u.add(b)
}

func TestDenseSwitchUsesJumpTable(t *testing.T) {
	u := newUnit()
	switchFunc(u, 4)
	out := u.mustEmit(t, "x86_64-linux-gnu")
	if !strings.Contains(out, "switch i32") {
		t.Fatalf("four dense cases should lower to a switch:\n%s", out)
	}
}

func TestSparseSwitchUsesCompareCascade(t *testing.T) {
	u := newUnit()
	switchFunc(u, 2)
	out := u.mustEmit(t, "x86_64-linux-gnu")
	if strings.Contains(out, "switch i32") {
		t.Fatalf("two cases should not lower to a switch:\n%s", out)
	}
	if strings.Count(out, "icmp eq i32") != 2 {
		t.Fatalf("expected one compare per case:\n%s", out)
	}
}

func switchOver(u *unit, ty types.TypeID, values ...mir.SwitchCase) {
	b := u.fn("sw", u.in.Builtins().I32, ty)
	entry := b.Block()
	sw := mir.SwitchIntTerm{Value: mir.Copy(mir.LocalPlace(b.Param(0)))}
	for i := range values {
		values[i].Target = b.Block()
		b.Assign(mir.LocalPlace(b.Return()), mir.Use(mir.IntConst(u.in.Builtins().I32, int64(i))))
		b.Ret()
	}
	sw.Cases = values
	sw.Otherwise = b.Block()
	b.Assign(mir.LocalPlace(b.Return()), mir.Use(mir.IntConst(u.in.Builtins().I32, -1)))
	b.Ret()
	b.SetBlock(entry)
	b.Terminate(mir.Terminator{Kind: mir.TermSwitchInt, SwitchInt: sw})
	u.add(b)
}

func TestSwitchSpanningAllValuesIsNotDense(t *testing.T) {
	u := newUnit()
	switchOver(u, u.in.Builtins().U64,
		mir.SwitchCase{Value: 0}, mir.SwitchCase{Value: 1},
		mir.SwitchCase{Value: 2}, mir.SwitchCase{Value: math.MaxUint64})
	out := u.mustEmit(t, "x86_64-linux-gnu")
	if strings.Contains(out, "switch i64") {
		t.Fatalf("cases spread over the whole range lowered to a jump table:\n%s", out)
	}
	if strings.Count(out, "icmp eq i64") != 4 {
		t.Fatalf("expected one compare per case:\n%s", out)
	}
}

func TestSignedSwitchAcrossZeroIsDense(t *testing.T) {
	u := newUnit()
	switchOver(u, u.in.Builtins().I64,
		mir.SwitchCase{Value: math.MaxUint64}, mir.SwitchCase{Value: 0},
		mir.SwitchCase{Value: 1}, mir.SwitchCase{Value: math.MaxUint64 - 1})
	out := u.mustEmit(t, "x86_64-linux-gnu")
	if !strings.Contains(out, "switch i64") {
		t.Fatalf("-2..1 should lower to a switch:\n%s", out)
	}
}

func TestWideSwitchKeepsHighBits(t *testing.T) {
	u := newUnit()
	switchOver(u, u.in.Builtins().U128,
		mir.SwitchCase{Value: 0, Hi: 1}, mir.SwitchCase{Value: 1, Hi: 1},
		mir.SwitchCase{Value: 2, Hi: 1}, mir.SwitchCase{Value: 3, Hi: 1})
	out := u.mustEmit(t, "x86_64-linux-gnu")
	if !strings.Contains(out, "switch i128") {
		t.Fatalf("dense 128-bit cases should lower to a switch:\n%s", out)
	}
	// 2^64 + 3
	if !strings.Contains(out, "i128 18446744073709551619") {
		t.Fatalf("case value lost its high bits:\n%s", out)
	}
}

func TestJumpTableSpread(t *testing.T) {
	keys := func(values ...uint64) []switchCase {
		out := make([]switchCase, len(values))
		for i, v := range values {
			out[i] = newSwitchCase(mir.SwitchCase{Value: v}, 64, false)
		}
		return out
	}
	tests := []struct {
		name   string
		cases  []switchCase
		expect bool
	}{
		{"dense", keys(0, 1, 2, 3), true},
		{"at the limit", keys(0, 1, 2, 11), true},
		{"past the limit", keys(0, 1, 2, 12), false},
		{"full range", keys(0, 1, 2, math.MaxUint64), false},
		{"too few", keys(0, 1, 2), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := useJumpTable(tt.cases, 4, 3); got != tt.expect {
				t.Fatalf("useJumpTable = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestLoopCounterBecomesPhi(t *testing.T) {
	u := newUnit()
	bt := u.in.Builtins()
	b := u.fn("count", bt.I32)
	x := b.Local(bt.I32, "x", mir.LocalFlagMut)
	c := b.Local(bt.Bool, "c", 0)
	entry, loop, exit := b.Block(), b.Block(), b.Block()

	b.SetBlock(entry)
	b.Assign(mir.LocalPlace(x), mir.Use(mir.IntConst(bt.I32, 0)))
	b.Goto(loop)

	b.SetBlock(loop)
	b.Assign(mir.LocalPlace(x), mir.Binary(mir.BinAdd, mir.Copy(mir.LocalPlace(x)), mir.IntConst(bt.I32, 1)))
	b.Assign(mir.LocalPlace(c), mir.Binary(mir.BinLt, mir.Copy(mir.LocalPlace(x)), mir.IntConst(bt.I32, 10)))
	b.Terminate(mir.Terminator{Kind: mir.TermIf, If: mir.IfTerm{Cond: mir.Copy(mir.LocalPlace(c)), Then: loop, Else: exit}})

	b.SetBlock(exit)
	b.Assign(mir.LocalPlace(b.Return()), mir.Use(mir.Copy(mir.LocalPlace(x))))
	b.Ret()
	u.add(b)

	out := u.mustEmit(t, "x86_64-linux-gnu")
	if !strings.Contains(out, "phi i32") {
		t.Fatalf("loop-carried local has no phi:\n%s", out)
	}
	if strings.Contains(out, "alloca i32") {
		t.Fatalf("register local was given a stack slot:\n%s", out)
	}
}

func TestLargeReturnGoesThroughSret(t *testing.T) {
	u := newUnit()
	bt := u.in.Builtins()
	fields := make([]types.Field, 20)
	for i := range fields {
		fields[i] = types.Field{Type: bt.I32}
	}
	big := u.in.NewStruct("Big", fields...)
	b := u.fn("big", big)
	b.Block()
	b.Assign(mir.LocalPlace(b.Return()), mir.Use(mir.ZeroConst(big)))
	b.Ret()
	u.add(b)

	out := u.mustEmit(t, "x86_64-linux-gnu")
	if !strings.Contains(out, "define void @big(i8* %sret)") {
		t.Fatalf("large return is not passed through a hidden pointer:\n%s", out)
	}
	if !strings.Contains(out, "ret void") {
		t.Fatalf("sret function must return void:\n%s", out)
	}
}

func TestSplitArgumentIsPassedAsParts(t *testing.T) {
	u := newUnit()
	bt := u.in.Builtins()
	m := u.in.NewStruct("M", types.Field{Type: bt.I32}, types.Field{Type: bt.I32}, types.Field{Type: bt.F64})
	u.mod.Decls = append(u.mod.Decls, mir.Decl{Name: "callee", Sig: u.in.RegisterFn([]types.TypeID{m}, bt.Unit, types.ConvDefault, false)})

	b := u.fn("caller", bt.Unit)
	entry, next := b.Block(), b.Block()
	b.SetBlock(entry)
	b.Terminate(mir.Terminator{Kind: mir.TermCall, Call: mir.CallTerm{
		Callee: mir.Callee{Kind: mir.CalleeDirect, Name: "callee"},
		Args:   []mir.Operand{mir.ZeroConst(m)},
		Target: next,
	}})
	b.SetBlock(next)
	b.Ret()
	u.add(b)

	out := u.mustEmit(t, "x86_64-linux-gnu")
	if !strings.Contains(out, "declare void @callee(i64 %p0, double %p1)") {
		t.Fatalf("callee declaration does not split {i32, i32, f64}:\n%s", out)
	}
	if !strings.Contains(out, "call void @callee(i64 ") {
		t.Fatalf("call does not pass the integer part first:\n%s", out)
	}
}

func TestEntryShimCallsEntry(t *testing.T) {
	u := newUnit()
	bt := u.in.Builtins()
	b := u.fn("start", bt.I32)
	b.Block()
	b.Assign(mir.LocalPlace(b.Return()), mir.Use(mir.IntConst(bt.I32, 3)))
	b.Ret()
	u.add(b)
	u.mod.Entry = "start"

	out, err := u.emit(t, "x86_64-linux-gnu", Options{EntryShim: true})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !strings.Contains(out, "define i32 @main(i32 %argc, i8** %argv)") {
		t.Fatalf("missing C main:\n%s", out)
	}
	if !strings.Contains(out, "call i32 @start()") {
		t.Fatalf("main does not call the entry:\n%s", out)
	}
}

func TestEntryShimRejectsExistingMain(t *testing.T) {
	u := newUnit()
	b := u.fn("main", u.in.Builtins().Unit)
	b.Block()
	b.Ret()
	u.add(b)
	u.mod.Entry = "main"

	if _, err := u.emit(t, "x86_64-linux-gnu", Options{EntryShim: true}); err == nil {
		t.Fatalf("expected a duplicate main to be rejected")
	}
}

func TestEveryBuiltinHasALoweringRule(t *testing.T) {
	for k := builtin.Kind(0); k < builtin.NumKinds; k++ {
		if intrinsicRules[k] == nil {
			t.Errorf("%s has no lowering rule", k)
		}
	}
}

func TestAssemblerBuiltinsAreRejected(t *testing.T) {
	for _, k := range []builtin.Kind{builtin.InlineAsm, builtin.GlobalAsm, builtin.VaArg} {
		u := newUnit()
		b := u.fn("asm", u.in.Builtins().Unit)
		entry, next := b.Block(), b.Block()
		b.SetBlock(entry)
		b.Terminate(callBuiltin(k, nil, next))
		b.SetBlock(next)
		b.Ret()
		u.add(b)

		_, err := u.emit(t, "x86_64-linux-gnu", Options{})
		var ie *IntrinsicError
		if !errors.As(err, &ie) || ie.Kind != IntrinsicUnsupported || ie.Builtin != k {
			t.Fatalf("%s: got %v, want an unsupported-builtin error", k, err)
		}
		var le *LowerError
		if !errors.As(err, &le) || le.Func != "asm" || le.Block != entry {
			t.Fatalf("%s: error does not name the failing block: %v", k, err)
		}
	}
}

func atomicLoadFunc(u *unit, elem types.TypeID) {
	ptr := u.in.Intern(types.MakePointer(elem, false))
	b := u.fn("load", elem, ptr)
	entry, next := b.Block(), b.Block()
	b.SetBlock(entry)
	dst := mir.LocalPlace(b.Return())
	term := callBuiltin(builtin.AtomicLoad, &dst, next, mir.Copy(mir.LocalPlace(b.Param(0))))
	term.Call.Callee.Ordering = builtin.SeqCst
	b.Terminate(term)
	b.SetBlock(next)
	b.Ret()
	u.add(b)
}

func TestAtomicLoad(t *testing.T) {
	u := newUnit()
	atomicLoadFunc(u, u.in.Builtins().U64)
	out := u.mustEmit(t, "x86_64-linux-gnu")
	if !strings.Contains(out, "load atomic i64") || !strings.Contains(out, "seq_cst") {
		t.Fatalf("missing atomic load:\n%s", out)
	}
}

func TestAtomicWiderThanTargetIsRejected(t *testing.T) {
	u := newUnit()
	atomicLoadFunc(u, u.in.Builtins().U128)
	_, err := u.emit(t, "x86_64-windows-msvc", Options{})
	var ie *IntrinsicError
	if !errors.As(err, &ie) || ie.Kind != IntrinsicAtomicUnsupported {
		t.Fatalf("got %v, want an unsupported-atomic error", err)
	}
}

func simdAddFunc(u *unit) {
	bt := u.in.Builtins()
	vec := u.in.Intern(types.MakeVector(bt.I32, 8))
	b := u.fn("vadd", vec, vec, vec)
	entry, next := b.Block(), b.Block()
	b.SetBlock(entry)
	dst := mir.LocalPlace(b.Return())
	b.Terminate(callBuiltin(builtin.SimdAdd, &dst, next,
		mir.Copy(mir.LocalPlace(b.Param(0))), mir.Copy(mir.LocalPlace(b.Param(1)))))
	b.SetBlock(next)
	b.Ret()
	u.add(b)
}

func TestSimdUsesNativeVectorsWhenAvailable(t *testing.T) {
	u := newUnit()
	simdAddFunc(u)
	out := u.mustEmit(t, "x86_64-linux-gnu")
	if !strings.Contains(out, "add <8 x i32>") {
		t.Fatalf("32-byte vectors are native on this target:\n%s", out)
	}
}

func TestSimdExpandsLanesOtherwise(t *testing.T) {
	u := newUnit()
	simdAddFunc(u)
	out := u.mustEmit(t, "x86_64-windows-msvc")
	if strings.Contains(out, "add <8 x i32>") {
		t.Fatalf("32-byte vector add must be expanded:\n%s", out)
	}
	if strings.Count(out, "insertelement") != 8 {
		t.Fatalf("expected one insert per lane:\n%s", out)
	}
}

func TestStaticRelocationPointsAtFunction(t *testing.T) {
	u := newUnit()
	bt := u.in.Builtins()
	b := u.fn("target_fn", bt.Unit)
	b.Block()
	b.Ret()
	u.add(b)
	fnPtr := u.in.RegisterFn(nil, bt.Unit, types.ConvDefault, false)
	u.mod.Statics = append(u.mod.Statics, mir.Static{
		Name:   "table",
		Type:   fnPtr,
		Init:   make([]byte, 8),
		Relocs: []mir.Reloc{{Offset: 0, Sym: "target_fn"}},
	})

	out := u.mustEmit(t, "x86_64-linux-gnu")
	if !strings.Contains(out, "@table") || !strings.Contains(out, "@target_fn to i8*") {
		t.Fatalf("static does not hold the function address:\n%s", out)
	}
}

func TestEntryShimErrorsWrapSentinel(t *testing.T) {
	tests := []struct {
		name    string
		result  func(bt types.Builtins) types.TypeID
		params  func(bt types.Builtins) []types.TypeID
		message string
	}{
		{
			name:    "float parameter",
			result:  func(bt types.Builtins) types.TypeID { return bt.I32 },
			params:  func(bt types.Builtins) []types.TypeID { return []types.TypeID{bt.F64} },
			message: "start must take no parameters or (argc, argv)",
		},
		{
			name:    "float result",
			result:  func(bt types.Builtins) types.TypeID { return bt.F64 },
			message: "start must return nothing or an integer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUnit()
			bt := u.in.Builtins()
			var params []types.TypeID
			if tt.params != nil {
				params = tt.params(bt)
			}
			b := u.fn("start", tt.result(bt), params...)
			b.Block()
			b.Assign(mir.LocalPlace(b.Return()), mir.Use(mir.ZeroConst(tt.result(bt))))
			b.Ret()
			u.add(b)
			u.mod.Entry = "start"

			_, err := u.emit(t, "x86_64-linux-gnu", Options{EntryShim: true})
			if !errors.Is(err, ErrEntryShim) {
				t.Fatalf("err = %v, want ErrEntryShim", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Fatalf("err = %v, want %q", err, tt.message)
			}
		})
	}
}

func TestRuntimeCountCopiesUseByteLoopHelpers(t *testing.T) {
	u := newUnit()
	copyFunc(u, "copy_n", builtin.CopyNonOverlapping)
	copyFunc(u, "move_n", builtin.Copy)
	out := u.mustEmit(t, "x86_64-linux-gnu")
	for _, want := range []string{
		"define internal void @__lowir_memcpy(",
		"define internal void @__lowir_memmove(",
		"call void @__lowir_memcpy(",
		"call void @__lowir_memmove(",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "@llvm.memcpy") {
		t.Errorf("runtime count lowered to the memcpy intrinsic:\n%s", out)
	}
}

func TestFloatToIntSaturates(t *testing.T) {
	u := newUnit()
	bt := u.in.Builtins()
	b := u.fn("trunc", bt.I32, bt.F64)
	b.Block()
	b.Assign(mir.LocalPlace(b.Return()), castTo(mir.CastFloatToInt, mir.Copy(mir.LocalPlace(b.Param(0))), bt.I32))
	b.Ret()
	u.add(b)

	out := u.mustEmit(t, "x86_64-linux-gnu")
	if !strings.Contains(out, "@llvm.fptosi.sat.i32.f64") {
		t.Fatalf("float to int cast does not saturate:\n%s", out)
	}
	if strings.Contains(out, "fptosi double") {
		t.Fatalf("plain fptosi is undefined out of range:\n%s", out)
	}
}

func TestOptionalReferenceParamIsAPointer(t *testing.T) {
	u := newUnit()
	bt := u.in.Builtins()
	refI32 := u.in.Intern(types.MakeReference(bt.I32, false))
	opt := u.in.NewEnum("OptRef",
		types.VariantInfo{Name: "None"},
		types.VariantInfo{Name: "Some", Fields: []types.Field{{Type: refI32}}},
	)
	b := u.fn("take", bt.Unit, opt)
	b.Block()
	b.Ret()
	u.add(b)

	out := u.mustEmit(t, "x86_64-linux-gnu")
	if !strings.Contains(out, "@take(i8* %p0)") {
		t.Fatalf("optional reference is not passed as a bare pointer:\n%s", out)
	}
}

func TestTaggedSetDiscriminantStoresTag(t *testing.T) {
	u := newUnit()
	bt := u.in.Builtins()
	minus3 := int64(-3)
	tagged := u.in.NewEnum("Tagged",
		types.VariantInfo{Name: "A", Fields: []types.Field{{Type: bt.I32}}, Discr: &minus3},
		types.VariantInfo{Name: "B", Fields: []types.Field{{Type: bt.I64}}},
	)
	b := u.fn("mark", bt.Unit)
	b.Block()
	e := mir.LocalPlace(b.Local(tagged, "e", mir.LocalFlagMut))
	setDiscriminant(b, e, 0)
	b.Ret()
	u.add(b)

	out := u.mustEmit(t, "x86_64-linux-gnu")
	if !strings.Contains(out, "store i8 -3") {
		t.Fatalf("explicit discriminant not stored as the tag:\n%s", out)
	}
}
