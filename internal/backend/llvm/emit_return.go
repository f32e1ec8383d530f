package llvm

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/abi"
	"lowir/internal/layout"
)

func (fe *funcEmitter) emitReturn() error {
	ret := fe.fa.Ret
	switch ret.Mode {
	case abi.PassIgnore, abi.PassIndirect:
		fe.cur.NewRet(nil)
		return nil
	}
	if fe.f.ReturnLocal < 0 || int(fe.f.ReturnLocal) >= len(fe.locals) {
		return fmt.Errorf("function returns a value but has no return local")
	}
	cv, err := fe.readPlace(fe.localPlace(fe.f.ReturnLocal))
	if err != nil {
		return err
	}
	vals := fe.toABI(ret, cv)
	if ret.Mode == abi.PassSplit {
		var agg value.Value = constant.NewUndef(retType(ret))
		for i, v := range vals {
			agg = fe.cur.NewInsertValue(agg, v, uint64(i)) //nolint:gosec // part index
		}
		fe.cur.NewRet(agg)
		return nil
	}
	fe.cur.NewRet(vals[0])
	return nil
}

// toABI converts a value to the LLVM arguments of its classification.
// Indirect arguments are copied so the callee owns its storage.
func (fe *funcEmitter) toABI(a abi.ArgAbi, cv cvalue) []value.Value {
	l := a.Layout
	switch a.Mode {
	case abi.PassIgnore:
		return nil
	case abi.PassIndirect:
		tmp := fe.temp(l)
		fe.storeValue(tmp, l.Align, cv, l)
		return []value.Value{tmp}
	case abi.PassSplit:
		addr, align := fe.spillAligned(cv, l)
		out := make([]value.Value, len(a.Parts))
		for i, p := range a.Parts {
			out[i] = fe.load(partType(p), fe.byteOffset(addr, p.Offset), offsetAlign(align, p.Offset))
		}
		return out
	}
	if a.Cast > 0 {
		addr, align := fe.spillAligned(cv, l)
		return []value.Value{fe.load(intType(a.Cast), addr, align)}
	}
	return []value.Value{fe.imm(cv)}
}

// spillAligned returns cv in memory together with the alignment known
// at its address.
func (fe *funcEmitter) spillAligned(cv cvalue, l *layout.Layout) (value.Value, int) {
	if cv.kind == cvalRef {
		return cv.addr, max(cv.align, 1)
	}
	cv.layout = l
	return fe.spill(cv), max(l.Align, 1)
}

// fromABI rebuilds a value from the LLVM values its classification uses.
func (fe *funcEmitter) fromABI(a abi.ArgAbi, incoming []value.Value) cvalue {
	l := a.Layout
	switch a.Mode {
	case abi.PassIgnore:
		return fe.zeroValue(l)
	case abi.PassIndirect:
		return byRef(incoming[0], l, l.Align)
	case abi.PassSplit:
		tmp := fe.temp(l)
		for i, p := range a.Parts {
			fe.store(incoming[i], fe.byteOffset(tmp, p.Offset), offsetAlign(l.Align, p.Offset))
		}
		return fe.loadValue(tmp, l, l.Align)
	}
	if a.Cast > 0 {
		tmp := fe.temp(l)
		fe.store(incoming[0], tmp, l.Align)
		return fe.loadValue(tmp, l, l.Align)
	}
	return byVal(incoming[0], l)
}

// emitEntryShim defines `i32 main(i32 argc, i8** argv)` calling the unit's
// entry function. The entry may take no parameters or (argc, argv) and
// return nothing or an integer exit code.
func (e *Emitter) emitEntryShim() error {
	if _, dup := e.funcs["main"]; dup {
		return fmt.Errorf("%w: symbol main is already defined", ErrEntryShim)
	}
	for _, st := range e.mod.Statics {
		if st.Name == "main" {
			return fmt.Errorf("%w: symbol main is already defined", ErrEntryShim)
		}
	}
	entry, ok := e.funcs[e.mod.Entry]
	if !ok {
		return fmt.Errorf("%w: entry function %s is not defined", ErrEntryShim, e.mod.Entry)
	}
	fa := e.fnAbis[e.mod.Entry]
	if fa.HasSret() {
		return fmt.Errorf("%w: %s returns through memory", ErrEntryShim, e.mod.Entry)
	}

	argc := ir.NewParam("argc", lltypes.I32)
	argv := ir.NewParam("argv", lltypes.NewPointer(ptrType))
	shim := ir.NewFunc("main", lltypes.I32, argc, argv)
	b := shim.NewBlock("entry")

	var args []value.Value
	for i, a := range fa.Args {
		if a.Mode == abi.PassIgnore {
			continue
		}
		if a.Mode != abi.PassDirect || a.Cast > 0 || a.Layout.Abi.Kind != layout.AbiScalar {
			return fmt.Errorf("%w: parameter %d of %s is not a scalar", ErrEntryShim, i, e.mod.Entry)
		}
		s := a.Layout.Abi.A
		switch {
		case len(args) == 0 && s.Prim.Kind == layout.PrimInt && !isBool(s):
			args = append(args, resizeIn(b, argc, intType(s.Prim.Size), true))
		case len(args) == 1 && s.Prim.Kind == layout.PrimPointer:
			args = append(args, b.NewBitCast(argv, ptrType))
		default:
			return fmt.Errorf("%w: %s must take no parameters or (argc, argv)", ErrEntryShim, e.mod.Entry)
		}
	}
	call := b.NewCall(entry, args...)
	call.CallingConv = entry.CallingConv

	switch ret := fa.Ret; {
	case ret.Mode == abi.PassIgnore:
		b.NewRet(constant.NewInt(lltypes.I32, 0))
	case ret.Mode == abi.PassDirect && ret.Cast == 0 && ret.Layout.Abi.Kind == layout.AbiScalar &&
		ret.Layout.Abi.A.Prim.Kind == layout.PrimInt:
		s := ret.Layout.Abi.A
		b.NewRet(resizeIn(b, call, lltypes.I32, s.Prim.Signed && !isBool(s)))
	default:
		return fmt.Errorf("%w: %s must return nothing or an integer", ErrEntryShim, e.mod.Entry)
	}
	e.shim = shim
	return nil
}

// resizeIn is intResize for code built outside a function emitter.
func resizeIn(b *ir.Block, v value.Value, t *lltypes.IntType, signed bool) value.Value {
	from, ok := v.Type().(*lltypes.IntType)
	if !ok || from.BitSize == t.BitSize {
		return v
	}
	if from.BitSize > t.BitSize {
		return b.NewTrunc(v, t)
	}
	if signed && from.BitSize > 1 {
		return b.NewSExt(v, t)
	}
	return b.NewZExt(v, t)
}
