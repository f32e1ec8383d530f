package llvm

import (
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"

	"lowir/internal/layout"
	"lowir/internal/mir"
)

// layoutQueryRule answers size_of and align_of from the type argument's
// layout as a constant.
func layoutQueryRule(query func(l *layout.Layout) int) intrinsicRule {
	return func(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
		if err := bc.want(0); err != nil {
			return cvalue{}, err
		}
		l, err := fe.typeArg(bc)
		if err != nil {
			return cvalue{}, err
		}
		if bc.out == nil {
			return cvalue{}, nil
		}
		if bc.out.Abi.Kind != layout.AbiScalar || bc.out.Abi.A.Prim.Kind != layout.PrimInt {
			return cvalue{}, badCall(bc.kind, "result is not an integer")
		}
		n := uint64(query(l)) //nolint:gosec // sizes are non-negative
		return byVal(intConst(intType(bc.out.Abi.A.Prim.Size), n, 0), bc.out), nil
	}
}

func lowerTransmute(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(1); err != nil {
		return cvalue{}, err
	}
	if bc.args[0].layout == nil {
		return cvalue{}, badCall(bc.kind, "transmute of unsized value")
	}
	if bc.out == nil {
		return cvalue{}, nil
	}
	v, err := fe.transmute(bc.args[0], bc.out)
	if err != nil {
		return cvalue{}, badCall(bc.kind, "%v", err)
	}
	return v, nil
}

// boolArg returns argument 0 as an i1.
func (fe *funcEmitter) boolArg(bc *builtinCall) (cvalue, error) {
	if err := bc.want(1); err != nil {
		return cvalue{}, err
	}
	cv := bc.args[0]
	if cv.layout == nil || cv.layout.Abi.Kind != layout.AbiScalar || !isBool(cv.layout.Abi.A) {
		return cvalue{}, badCall(bc.kind, "argument is not a bool")
	}
	return cv, nil
}

func lowerAssume(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	cv, err := fe.boolArg(bc)
	if err != nil {
		return cvalue{}, err
	}
	fn := fe.emitter.intrinsic("llvm.assume", lltypes.Void, lltypes.I1)
	fe.cur.NewCall(fn, fe.imm(cv))
	return cvalue{}, nil
}

// expectRule passes a condition through llvm.expect with the expected
// outcome.
func expectRule(expected bool) intrinsicRule {
	return func(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
		cv, err := fe.boolArg(bc)
		if err != nil {
			return cvalue{}, err
		}
		fn := fe.emitter.intrinsic("llvm.expect.i1", lltypes.I1, lltypes.I1, lltypes.I1)
		return byVal(fe.cur.NewCall(fn, fe.imm(cv), constant.NewBool(expected)), cv.layout), nil
	}
}

// lowerBlackBox hides a value from the optimizer. Register values make a
// volatile round trip through a stack slot; memory values are copied and
// their address makes the round trip.
func lowerBlackBox(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(1); err != nil {
		return cvalue{}, err
	}
	cv := bc.args[0]
	l := cv.layout
	if l == nil {
		return cvalue{}, badCall(bc.kind, "black_box of unsized value")
	}
	if l.IsZST() {
		return cv, nil
	}
	switch l.Abi.Kind {
	case layout.AbiScalar, layout.AbiVector:
		v := fe.imm(cv)
		if l.Abi.Kind == layout.AbiScalar {
			v = fe.toMem(v, l.Abi.A)
		}
		slot := fe.temp(l)
		st := fe.store(v, slot, l.Align)
		st.Volatile = true
		ld := fe.load(memType(l), slot, l.Align)
		ld.Volatile = true
		if l.Abi.Kind == layout.AbiScalar && isBool(l.Abi.A) {
			return byVal(fe.cur.NewTrunc(ld, lltypes.I1), l), nil
		}
		return byVal(ld, l), nil
	}
	slot := fe.temp(l)
	fe.storeValue(slot, l.Align, cv, l)
	ptrSize := fe.emitter.target.PtrSize
	holder := fe.allocaBytes(ptrSize, ptrSize, ptrType)
	st := fe.store(slot, holder, ptrSize)
	st.Volatile = true
	ld := fe.load(ptrType, holder, ptrSize)
	ld.Volatile = true
	return fe.loadValue(ld, l, l.Align), nil
}

func lowerAbort(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(0); err != nil {
		return cvalue{}, err
	}
	fe.cur.NewCall(fe.emitter.trapFunc())
	return cvalue{}, nil
}

// lowerUnreachable emits nothing when the call diverges; a call that still
// names a continuation traps before branching to it.
func lowerUnreachable(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(0); err != nil {
		return cvalue{}, err
	}
	if bc.term.Target != mir.NoBlockID {
		fe.cur.NewCall(fe.emitter.trapFunc())
	}
	return cvalue{}, nil
}

func lowerPtrOffset(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(2); err != nil {
		return cvalue{}, err
	}
	ptr, err := fe.ptrArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	count, _, err := fe.intArg(bc, 1)
	if err != nil {
		return cvalue{}, err
	}
	v, err := fe.ptrOffset(&bc.term.Args[0], ptr, count, bc.args[1].layout)
	if err != nil {
		return cvalue{}, err
	}
	return byVal(v, bc.args[0].layout), nil
}

// lowerPtrOffsetFrom returns the distance between two pointers in
// elements. The byte distance must be a multiple of the element size.
func lowerPtrOffsetFrom(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(2); err != nil {
		return cvalue{}, err
	}
	_, el, err := fe.elemType(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	if el.Size == 0 {
		return cvalue{}, badCall(bc.kind, "distance between zero-sized elements")
	}
	a, err := fe.ptrArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	b, err := fe.ptrArg(bc, 1)
	if err != nil {
		return cvalue{}, err
	}
	usize := fe.emitter.usize()
	diff := fe.cur.NewSub(fe.cur.NewPtrToInt(a, usize), fe.cur.NewPtrToInt(b, usize))
	if el.Size == 1 {
		return fe.fitResult(bc, diff, true), nil
	}
	q := fe.cur.NewSDiv(diff, fe.usizeConst(int64(el.Size)))
	q.Exact = true
	return fe.fitResult(bc, q, true), nil
}

// lowerDiscriminantValue reads the discriminant of the enum behind a
// pointer.
func lowerDiscriminantValue(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(1); err != nil {
		return cvalue{}, err
	}
	t, el, err := fe.elemType(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	ptr, err := fe.ptrArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	if bc.out == nil {
		return cvalue{}, nil
	}
	cp := cplace{kind: cplaceAddr, addr: ptr, ty: t, layout: el, variant: -1, align: el.Align}
	return fe.discriminant(cp, bc.out)
}
