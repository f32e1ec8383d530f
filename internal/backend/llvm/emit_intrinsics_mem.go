package llvm

import (
	"fmt"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/builtin"
	"lowir/internal/layout"
)

// copyRule copies count elements from the first pointer to the second.
func copyRule(overlapping bool) intrinsicRule {
	return func(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
		if err := bc.want(3); err != nil {
			return cvalue{}, err
		}
		_, el, err := fe.elemType(bc, 0)
		if err != nil {
			return cvalue{}, err
		}
		src, err := fe.ptrArg(bc, 0)
		if err != nil {
			return cvalue{}, err
		}
		dst, err := fe.ptrArg(bc, 1)
		if err != nil {
			return cvalue{}, err
		}
		count, _, err := fe.intArg(bc, 2)
		if err != nil {
			return cvalue{}, err
		}
		fe.copyBytes(dst, src, fe.intResize(count, fe.emitter.usize(), false), el.Size, el.Align, overlapping)
		return cvalue{}, nil
	}
}

// lowerWriteBytes sets count elements at dst to a repeated byte.
func lowerWriteBytes(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(3); err != nil {
		return cvalue{}, err
	}
	_, el, err := fe.elemType(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	dst, err := fe.ptrArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	b, _, err := fe.intArg(bc, 1)
	if err != nil {
		return cvalue{}, err
	}
	count, _, err := fe.intArg(bc, 2)
	if err != nil {
		return cvalue{}, err
	}
	if el.Size == 0 {
		return cvalue{}, nil
	}
	b = fe.intResize(b, lltypes.I8, false)
	n := fe.intResize(count, fe.emitter.usize(), false)
	if c, ok := n.(*constant.Int); ok && c.X.IsInt64() {
		fe.fillMem(dst, b, int(c.X.Int64())*el.Size, el.Align)
		return cvalue{}, nil
	}
	if el.Size != 1 {
		n = fe.cur.NewMul(n, fe.usizeConst(int64(el.Size)))
	}
	if fe.emitter.target.Memory.Intrinsics {
		fe.memIntrinsic("memset", dst, b, n)
	} else {
		fe.callHelper(helperMemset, dst, b, n)
	}
	return cvalue{}, nil
}

// lowerCompareBytes compares n bytes and returns their ordering as a
// negative, zero or positive integer.
func lowerCompareBytes(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(3); err != nil {
		return cvalue{}, err
	}
	a, err := fe.ptrArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	b, err := fe.ptrArg(bc, 1)
	if err != nil {
		return cvalue{}, err
	}
	n, _, err := fe.intArg(bc, 2)
	if err != nil {
		return cvalue{}, err
	}
	v := fe.callHelper(helperMemcmp, a, b, fe.intResize(n, fe.emitter.usize(), false))
	return fe.fitResult(bc, v, true), nil
}

// registerElem checks that volatile and atomic accesses touch a value that
// fits one load or store.
func registerElem(bc *builtinCall, el *layout.Layout) error {
	switch el.Abi.Kind {
	case layout.AbiScalar, layout.AbiVector:
		return nil
	}
	if el.IsZST() {
		return nil
	}
	return badCall(bc.kind, "access of %s value", el.Abi.Kind)
}

func lowerVolatileLoad(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(1); err != nil {
		return cvalue{}, err
	}
	_, el, err := fe.elemType(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	if err := registerElem(bc, el); err != nil {
		return cvalue{}, err
	}
	ptr, err := fe.ptrArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	if el.IsZST() {
		return fe.zeroValue(el), nil
	}
	ld := fe.load(memType(el), ptr, el.Align)
	ld.Volatile = true
	if el.Abi.Kind == layout.AbiScalar && isBool(el.Abi.A) {
		return byVal(fe.cur.NewTrunc(ld, lltypes.I1), el), nil
	}
	return byVal(ld, el), nil
}

func lowerVolatileStore(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(2); err != nil {
		return cvalue{}, err
	}
	_, el, err := fe.elemType(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	if err := registerElem(bc, el); err != nil {
		return cvalue{}, err
	}
	ptr, err := fe.ptrArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	if el.IsZST() {
		return cvalue{}, nil
	}
	v := fe.imm(bc.args[1])
	if el.Abi.Kind == layout.AbiScalar {
		v = fe.toMem(v, el.Abi.A)
	}
	st := fe.store(v, ptr, el.Align)
	st.Volatile = true
	return cvalue{}, nil
}

var llvmOrderings = map[builtin.Ordering]enum.AtomicOrdering{
	builtin.Unordered: enum.AtomicOrderingUnordered,
	builtin.Monotonic: enum.AtomicOrderingMonotonic,
	builtin.Acquire:   enum.AtomicOrderingAcquire,
	builtin.Release:   enum.AtomicOrderingRelease,
	builtin.AcqRel:    enum.AtomicOrderingAcqRel,
	builtin.SeqCst:    enum.AtomicOrderingSeqCst,
}

// atomicAccess is the resolved operand of an atomic builtin. Pointer
// elements are accessed as integers of the same width.
type atomicAccess struct {
	ptr   value.Value
	el    *layout.Layout
	it    *lltypes.IntType
	isPtr bool
}

// atomicOperand resolves the pointer argument of an atomic builtin and
// checks that the target can access its element with every ordering in ords.
func (fe *funcEmitter) atomicOperand(bc *builtinCall, ords ...builtin.Ordering) (atomicAccess, error) {
	_, el, err := fe.elemType(bc, 0)
	if err != nil {
		return atomicAccess{}, err
	}
	if el.Abi.Kind != layout.AbiScalar || el.Abi.A.Prim.IsFloat() || isBool(el.Abi.A) {
		return atomicAccess{}, badCall(bc.kind, "atomic access of non-integer value")
	}
	for _, o := range ords {
		if err := fe.checkAtomic(bc, o, el.Size); err != nil {
			return atomicAccess{}, err
		}
	}
	ptr, err := fe.ptrArg(bc, 0)
	if err != nil {
		return atomicAccess{}, err
	}
	return atomicAccess{
		ptr:   ptr,
		el:    el,
		it:    intType(el.Size),
		isPtr: el.Abi.A.Prim.Kind == layout.PrimPointer,
	}, nil
}

// checkAtomic fails with IntrinsicAtomicUnsupported when the target lacks
// the ordering at the width.
func (fe *funcEmitter) checkAtomic(bc *builtinCall, o builtin.Ordering, width int) error {
	if _, ok := llvmOrderings[o]; !ok {
		return badCall(bc.kind, "missing memory ordering")
	}
	if !fe.emitter.target.SupportsAtomic(o.String(), width) {
		return &IntrinsicError{
			Kind:    IntrinsicAtomicUnsupported,
			Builtin: bc.kind,
			Detail:  fmt.Sprintf("%s at %d bytes", o, width),
		}
	}
	return nil
}

func (fe *funcEmitter) toAtomic(acc atomicAccess, v value.Value) value.Value {
	if acc.isPtr {
		return fe.cur.NewPtrToInt(v, acc.it)
	}
	return v
}

func (fe *funcEmitter) fromAtomic(acc atomicAccess, v value.Value) value.Value {
	if acc.isPtr {
		return fe.cur.NewIntToPtr(v, ptrType)
	}
	return v
}

func lowerAtomicLoad(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(1); err != nil {
		return cvalue{}, err
	}
	o := bc.term.Callee.Ordering
	if o == builtin.Release || o == builtin.AcqRel {
		return cvalue{}, badCall(bc.kind, "load cannot have %s ordering", o)
	}
	acc, err := fe.atomicOperand(bc, o)
	if err != nil {
		return cvalue{}, err
	}
	ld := fe.load(acc.it, acc.ptr, acc.el.Size)
	ld.Atomic = true
	ld.Ordering = llvmOrderings[o]
	return byVal(fe.fromAtomic(acc, ld), acc.el), nil
}

func lowerAtomicStore(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(2); err != nil {
		return cvalue{}, err
	}
	o := bc.term.Callee.Ordering
	if o == builtin.Acquire || o == builtin.AcqRel {
		return cvalue{}, badCall(bc.kind, "store cannot have %s ordering", o)
	}
	acc, err := fe.atomicOperand(bc, o)
	if err != nil {
		return cvalue{}, err
	}
	st := fe.store(fe.toAtomic(acc, fe.imm(bc.args[1])), acc.ptr, acc.el.Size)
	st.Atomic = true
	st.Ordering = llvmOrderings[o]
	return cvalue{}, nil
}

// atomicRMWRule performs op atomically and yields the previous value.
func atomicRMWRule(op enum.AtomicOp) intrinsicRule {
	return func(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
		if err := bc.want(2); err != nil {
			return cvalue{}, err
		}
		o := bc.term.Callee.Ordering
		if o == builtin.Unordered {
			return cvalue{}, badCall(bc.kind, "read-modify-write cannot be unordered")
		}
		acc, err := fe.atomicOperand(bc, o)
		if err != nil {
			return cvalue{}, err
		}
		if acc.isPtr && op != enum.AtomicOpXChg {
			return cvalue{}, badCall(bc.kind, "arithmetic on an atomic pointer")
		}
		x := fe.toAtomic(acc, fe.imm(bc.args[1]))
		old := fe.cur.NewAtomicRMW(op, fe.typedPtr(acc.ptr, acc.it), x, llvmOrderings[o])
		return byVal(fe.fromAtomic(acc, old), acc.el), nil
	}
}

// failureOrdering derives the ordering of a failed compare-exchange from
// the success ordering when none is given.
func failureOrdering(success, fail builtin.Ordering) builtin.Ordering {
	if fail != builtin.OrderingNone {
		return fail
	}
	switch success {
	case builtin.AcqRel:
		return builtin.Acquire
	case builtin.Release:
		return builtin.Monotonic
	default:
		return success
	}
}

// lowerAtomicCxchg yields (previous value, whether the exchange happened).
func lowerAtomicCxchg(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(3); err != nil {
		return cvalue{}, err
	}
	succ := bc.term.Callee.Ordering
	fail := failureOrdering(succ, bc.term.Callee.FailOrdering)
	if succ == builtin.Unordered || fail == builtin.Unordered || fail == builtin.Release || fail == builtin.AcqRel {
		return cvalue{}, badCall(bc.kind, "invalid orderings %s/%s", succ, fail)
	}
	acc, err := fe.atomicOperand(bc, succ, fail)
	if err != nil {
		return cvalue{}, err
	}
	cmp := fe.toAtomic(acc, fe.imm(bc.args[1]))
	repl := fe.toAtomic(acc, fe.imm(bc.args[2]))
	inst := fe.cur.NewCmpXchg(fe.typedPtr(acc.ptr, acc.it), cmp, repl, llvmOrderings[succ], llvmOrderings[fail])
	old := fe.fromAtomic(acc, fe.cur.NewExtractValue(inst, 0))
	ok := fe.cur.NewExtractValue(inst, 1)
	if bc.out == nil {
		return cvalue{}, nil
	}
	return fe.resultPair(old, ok, acc.el, bc.out), nil
}

func lowerAtomicFence(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(0); err != nil {
		return cvalue{}, err
	}
	o := bc.term.Callee.Ordering
	switch o {
	case builtin.Acquire, builtin.Release, builtin.AcqRel, builtin.SeqCst:
	default:
		return cvalue{}, badCall(bc.kind, "fence cannot have %q ordering", o)
	}
	if err := fe.checkAtomic(bc, o, 1); err != nil {
		return cvalue{}, err
	}
	fe.cur.NewFence(llvmOrderings[o])
	return cvalue{}, nil
}
