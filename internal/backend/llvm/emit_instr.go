package llvm

import (
	"fmt"

	"fortio.org/safecast"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/layout"
	"lowir/internal/mir"
	"lowir/internal/types"
)

func (fe *funcEmitter) emitInstr(ins *mir.Instr) error {
	switch ins.Kind {
	case mir.InstrAssign:
		return fe.assign(&ins.Assign)
	case mir.InstrSetDiscriminant:
		cp, err := fe.place(ins.SetDiscriminant.Place)
		if err != nil {
			return err
		}
		return fe.setDiscriminant(cp, ins.SetDiscriminant.Variant)
	case mir.InstrStorageLive, mir.InstrStorageDead:
		fe.storage(ins.Storage, ins.Kind == mir.InstrStorageLive)
		return nil
	case mir.InstrCopyNonOverlapping:
		c := &ins.CopyNonOverlapping
		return fe.copyElems(&c.Src, &c.Dst, &c.Count, false)
	case mir.InstrNop:
		return nil
	default:
		return fmt.Errorf("unknown instruction kind %d", ins.Kind)
	}
}

func (fe *funcEmitter) assign(a *mir.AssignInstr) error {
	dst, err := fe.place(a.Dst)
	if err != nil {
		return err
	}
	if dst.layout == nil {
		return fmt.Errorf("assignment to unsized place")
	}
	rv := &a.Src
	if dst.kind == cplaceAddr {
		switch rv.Kind {
		case mir.RValueAggregate:
			return fe.aggregate(dst, &rv.Aggregate)
		case mir.RValueRepeat:
			return fe.repeat(dst, &rv.Repeat)
		case mir.RValueUse:
			if isZeroConst(&rv.Use) && dst.layout.Abi.Kind == layout.AbiAggregate {
				fe.fillMem(dst.addr, constant.NewInt(lltypes.I8, 0), dst.layout.Size, dst.align)
				return nil
			}
		}
	}
	cv, err := fe.rvalue(rv, dst.layout)
	if err != nil {
		return err
	}
	return fe.writePlace(dst, cv)
}

func isZeroConst(op *mir.Operand) bool {
	if op.Kind != mir.OperandConst {
		return false
	}
	c := &op.Const
	return c.Kind == mir.ConstZero || (c.Kind == mir.ConstInt && c.Bits == 0 && c.Hi == 0)
}

// rvalue evaluates rv; l is the layout of the destination.
func (fe *funcEmitter) rvalue(rv *mir.RValue, l *layout.Layout) (cvalue, error) {
	switch rv.Kind {
	case mir.RValueUse:
		return fe.operand(&rv.Use)
	case mir.RValueRef, mir.RValueAddrOf:
		cp, err := fe.place(rv.Ref.Place)
		if err != nil {
			return cvalue{}, err
		}
		return fe.addrOf(cp, l)
	case mir.RValueBinary:
		return fe.binary(&rv.Binary, l)
	case mir.RValueCheckedBinary:
		return fe.checkedBinary(&rv.Binary, l)
	case mir.RValueUnary:
		return fe.unary(&rv.Unary, l)
	case mir.RValueCast:
		return fe.cast(&rv.Cast, l)
	case mir.RValueAggregate:
		tmp := fe.tempPlace(l, rv.Aggregate.Type)
		if err := fe.aggregate(tmp, &rv.Aggregate); err != nil {
			return cvalue{}, err
		}
		return fe.loadValue(tmp.addr, l, tmp.align), nil
	case mir.RValueRepeat:
		tmp := fe.tempPlace(l, types.NoTypeID)
		if err := fe.repeat(tmp, &rv.Repeat); err != nil {
			return cvalue{}, err
		}
		return fe.loadValue(tmp.addr, l, tmp.align), nil
	case mir.RValueDiscriminant:
		cp, err := fe.place(rv.Place)
		if err != nil {
			return cvalue{}, err
		}
		return fe.discriminant(cp, l)
	case mir.RValueLen:
		cp, err := fe.place(rv.Place)
		if err != nil {
			return cvalue{}, err
		}
		n, err := fe.seqLen(cp)
		if err != nil {
			return cvalue{}, err
		}
		return byVal(fe.intResize(n, intType(l.Size), false), l), nil
	case mir.RValueSizeOf, mir.RValueAlignOf:
		tl, err := fe.emitter.layoutOf(rv.Type)
		if err != nil {
			return cvalue{}, err
		}
		n := tl.Size
		if rv.Kind == mir.RValueAlignOf {
			n = tl.Align
		}
		return byVal(constant.NewInt(intType(l.Size), int64(n)), l), nil
	default:
		return cvalue{}, fmt.Errorf("unknown rvalue kind %d", rv.Kind)
	}
}

// tempPlace is a fresh stack place of layout l.
func (fe *funcEmitter) tempPlace(l *layout.Layout, ty types.TypeID) cplace {
	return cplace{kind: cplaceAddr, addr: fe.temp(l), ty: ty, layout: l, variant: -1, align: max(l.Align, 1)}
}

// aggregate writes the fields of agg into dst, then its discriminant. When
// a field is read from memory it may alias dst, so the value is built in a
// temporary first.
func (fe *funcEmitter) aggregate(dst cplace, agg *mir.AggregateOp) error {
	fields := make([]cvalue, len(agg.Fields))
	aliased := false
	for i := range agg.Fields {
		cv, err := fe.operand(&agg.Fields[i])
		if err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
		if cv.layout == nil {
			return fmt.Errorf("field %d is unsized", i)
		}
		if cv.kind == cvalRef && agg.Fields[i].Kind != mir.OperandConst && !cv.layout.IsZST() {
			aliased = true
		}
		fields[i] = cv
	}
	out := dst
	if aliased {
		out = fe.tempPlace(dst.layout, dst.ty)
	}
	base := out
	if agg.Kind == mir.AggEnum {
		if dst.layout.ForVariant(agg.Variant) == nil {
			return fmt.Errorf("aggregate of missing variant %d", agg.Variant)
		}
		base.variant = agg.Variant
	}
	fl := base.fieldsLayout()
	if agg.Kind != mir.AggArray && len(fields) > fl.Fields.Len() && fl.Fields.Kind == layout.FieldsArbitrary {
		return fmt.Errorf("aggregate has %d fields, layout has %d", len(fields), fl.Fields.Len())
	}
	for i, cv := range fields {
		off := fl.Fields.Offset(i)
		fe.storeValue(fe.byteOffset(out.addr, off), offsetAlign(out.align, off), cv, cv.layout)
	}
	if agg.Kind == mir.AggEnum {
		if err := fe.setDiscriminant(out, agg.Variant); err != nil {
			return err
		}
	}
	if aliased {
		fe.copyMem(dst.addr, out.addr, dst.layout.Size, dst.align)
	}
	return nil
}

// repeat fills dst with Count copies of a value. Byte-sized and zero
// values become a memset; small arrays are unrolled; anything else loops.
func (fe *funcEmitter) repeat(dst cplace, rep *mir.RepeatOp) error {
	cv, err := fe.operand(&rep.Value)
	if err != nil {
		return err
	}
	el := cv.layout
	if el == nil {
		return fmt.Errorf("repeat of unsized value")
	}
	n, err := safecast.Conv[int](rep.Count)
	if err != nil {
		return fmt.Errorf("repeat count %d: %w", rep.Count, err)
	}
	if n == 0 || el.IsZST() {
		return nil
	}
	stride := el.Size
	if dst.layout.Fields.Kind == layout.FieldsArray {
		stride = dst.layout.Fields.Stride
	}
	total := n * stride
	if isZeroConst(&rep.Value) {
		fe.fillMem(dst.addr, constant.NewInt(lltypes.I8, 0), total, dst.align)
		return nil
	}
	if el.Size == 1 && stride == 1 && cv.kind == cvalVal && el.Abi.Kind == layout.AbiScalar && !el.Abi.A.Prim.IsFloat() {
		fe.fillMem(dst.addr, fe.toMem(cv.a, el.Abi.A), total, dst.align)
		return nil
	}
	elAlign := offsetAlign(dst.align, stride)
	if total <= fe.emitter.target.Memory.InlineMax {
		for i := range n {
			fe.storeValue(fe.byteOffset(dst.addr, i*stride), offsetAlign(dst.align, i*stride), cv, el)
		}
		return nil
	}

	usize := fe.emitter.usize()
	entry := fe.cur
	head := fe.newBlock("repeat.head")
	body := fe.newBlock("repeat.body")
	exit := fe.newBlock("repeat.exit")
	entry.NewBr(head)

	fe.cur = head
	i := head.NewPhi(ir.NewIncoming(constant.NewInt(usize, 0), entry))
	head.NewCondBr(head.NewICmp(enum.IPredEQ, i, constant.NewInt(usize, int64(n))), exit, body)

	fe.cur = body
	off := body.NewMul(i, constant.NewInt(usize, int64(stride)))
	fe.storeValue(body.NewGetElementPtr(lltypes.I8, dst.addr, off), elAlign, cv, el)
	next := fe.cur.NewAdd(i, constant.NewInt(usize, 1))
	fe.cur.NewBr(head)
	i.Incs = append(i.Incs, ir.NewIncoming(next, fe.cur))

	fe.cur = exit
	return nil
}

// storage marks the live range of stack locals. Parameters and the return
// slot are live for the whole call and never get markers.
func (fe *funcEmitter) storage(id mir.LocalID, live bool) {
	if id < 0 || int(id) >= len(fe.locals) || id == fe.f.ReturnLocal {
		return
	}
	slot := &fe.locals[id]
	if slot.kind != localStack || slot.layout.Size == 0 {
		return
	}
	for _, p := range fe.f.Params {
		if p == id {
			return
		}
	}
	fe.lifetime(live, slot.addr, slot.layout.Size)
}

// copyElems copies count values of the pointee type of src to dst.
func (fe *funcEmitter) copyElems(srcOp, dstOp, countOp *mir.Operand, overlapping bool) error {
	srcTy, err := mir.TypeOfOperand(fe.emitter.mod, fe.f, *srcOp)
	if err != nil {
		return err
	}
	elem, ok := fe.emitter.types.Pointee(srcTy)
	if !ok {
		return fmt.Errorf("copy source type#%d is not a pointer", srcTy)
	}
	el, err := fe.emitter.layoutOf(elem)
	if err != nil {
		return err
	}
	src, _, err := fe.operandImm(srcOp)
	if err != nil {
		return err
	}
	dst, _, err := fe.operandImm(dstOp)
	if err != nil {
		return err
	}
	count, _, err := fe.operandImm(countOp)
	if err != nil {
		return err
	}
	fe.copyBytes(dst, src, fe.intResize(count, fe.emitter.usize(), false), el.Size, el.Align, overlapping)
	return nil
}

// copyBytes copies count elements of elemSize bytes.
func (fe *funcEmitter) copyBytes(dst, src, count value.Value, elemSize, align int, overlapping bool) {
	if elemSize == 0 {
		return
	}
	if c, ok := count.(*constant.Int); ok && c.X.IsInt64() {
		n := int(c.X.Int64()) * elemSize
		switch {
		case n <= 0:
		case !overlapping:
			fe.copyMem(dst, src, n, align)
		case fe.emitter.target.Memory.Intrinsics:
			fe.memIntrinsic("memmove", dst, src, fe.usizeConst(int64(n)))
		default:
			fe.callHelper(helperMemmove, dst, src, fe.usizeConst(int64(n)))
		}
		return
	}
	n := count
	if elemSize != 1 {
		n = fe.cur.NewMul(count, fe.usizeConst(int64(elemSize)))
	}
	fe.copyDynamic(dst, src, n, overlapping)
}
