package llvm

import (
	"fmt"

	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/layout"
	"lowir/internal/mir"
	"lowir/internal/types"
)

type cvalueKind uint8

const (
	// cvalRef is a value in memory at addr; meta is the length of an
	// unsized value.
	cvalRef cvalueKind = iota
	// cvalVal is one register value.
	cvalVal
	// cvalPair is the two scalars of a pair layout.
	cvalPair
)

// cvalue is a lowered MIR value.
type cvalue struct {
	kind   cvalueKind
	addr   value.Value
	meta   value.Value
	a, b   value.Value
	layout *layout.Layout
	align  int
}

func byRef(addr value.Value, l *layout.Layout, align int) cvalue {
	return cvalue{kind: cvalRef, addr: addr, layout: l, align: align}
}

func byVal(v value.Value, l *layout.Layout) cvalue {
	return cvalue{kind: cvalVal, a: v, layout: l}
}

func byValPair(a, b value.Value, l *layout.Layout) cvalue {
	return cvalue{kind: cvalPair, a: a, b: b, layout: l}
}

type cplaceKind uint8

const (
	cplaceVar cplaceKind = iota
	cplacePair
	cplaceAddr
)

// cplace is a lowered MIR place. Address places carry the alignment that
// is known to hold at addr, which is below the type's alignment inside
// packed structs.
type cplace struct {
	kind    cplaceKind
	local   mir.LocalID
	addr    value.Value
	meta    value.Value
	ty      types.TypeID
	layout  *layout.Layout
	variant int
	align   int
}

// fieldsLayout is the layout whose field offsets apply after a downcast.
func (cp cplace) fieldsLayout() *layout.Layout {
	if cp.variant >= 0 && cp.layout != nil {
		if vl := cp.layout.ForVariant(cp.variant); vl != nil {
			return vl
		}
	}
	return cp.layout
}

// place evaluates a projection chain.
func (fe *funcEmitter) place(p mir.Place) (cplace, error) {
	var cp cplace
	switch p.Kind {
	case mir.PlaceStatic:
		addr, err := fe.emitter.staticAddr(p.Static)
		if err != nil {
			return cplace{}, err
		}
		st := &fe.emitter.mod.Statics[p.Static]
		l, err := fe.emitter.layoutOf(st.Type)
		if err != nil {
			return cplace{}, err
		}
		cp = cplace{kind: cplaceAddr, addr: addr, ty: st.Type, layout: l, variant: -1, align: l.Align}
	default:
		if p.Local < 0 || int(p.Local) >= len(fe.locals) {
			return cplace{}, fmt.Errorf("local L%d does not exist", p.Local)
		}
		cp = fe.localPlace(p.Local)
	}
	if cp.kind != cplaceAddr && len(p.Proj) > 0 && p.Proj[0].Kind != mir.PlaceProjDeref {
		return cplace{}, fmt.Errorf("projection of register local L%d", p.Local)
	}

	in := fe.emitter.types
	for _, proj := range p.Proj {
		pt := mir.PlaceTy{Type: cp.ty, Variant: cp.variant}
		next, err := mir.ProjectType(in, pt, proj)
		if err != nil {
			return cplace{}, err
		}
		switch proj.Kind {
		case mir.PlaceProjDeref:
			ptr, err := fe.readPlace(cp)
			if err != nil {
				return cplace{}, err
			}
			out := cplace{kind: cplaceAddr, ty: next.Type, variant: -1}
			if in.IsUnsized(next.Type) {
				a, b := fe.pair(ptr)
				out.addr, out.meta = a, b
				out.align = fe.elemAlign(next.Type)
			} else {
				out.addr = fe.imm(ptr)
				if out.layout, err = fe.emitter.layoutOf(next.Type); err != nil {
					return cplace{}, err
				}
				out.align = out.layout.Align
			}
			cp = out
		case mir.PlaceProjField:
			fl := cp.fieldsLayout()
			if fl == nil {
				return cplace{}, fmt.Errorf("field of unsized place")
			}
			off := fl.Fields.Offset(proj.FieldIdx)
			l, err := fe.emitter.layoutOf(next.Type)
			if err != nil {
				return cplace{}, err
			}
			cp = cplace{
				kind:    cplaceAddr,
				addr:    fe.byteOffset(cp.addr, off),
				ty:      next.Type,
				layout:  l,
				variant: -1,
				align:   offsetAlign(cp.align, off),
			}
		case mir.PlaceProjIndex, mir.PlaceProjConstIndex:
			stride, elemAlign, err := fe.stride(cp)
			if err != nil {
				return cplace{}, err
			}
			idx, err := fe.indexValue(cp, proj)
			if err != nil {
				return cplace{}, err
			}
			l, err := fe.emitter.layoutOf(next.Type)
			if err != nil {
				return cplace{}, err
			}
			var addr value.Value
			if c, ok := idx.(*constant.Int); ok && c.X.IsInt64() {
				addr = fe.byteOffset(cp.addr, int(c.X.Int64())*stride)
			} else {
				scaled := fe.cur.NewMul(idx, constant.NewInt(fe.emitter.usize(), int64(stride)))
				addr = fe.cur.NewGetElementPtr(lltypes.I8, cp.addr, scaled)
			}
			cp = cplace{
				kind:    cplaceAddr,
				addr:    addr,
				ty:      next.Type,
				layout:  l,
				variant: -1,
				align:   min(cp.align, elemAlign),
			}
		case mir.PlaceProjDowncast:
			if cp.layout == nil || cp.layout.ForVariant(proj.Variant) == nil {
				return cplace{}, fmt.Errorf("downcast to missing variant %d", proj.Variant)
			}
			cp.variant = proj.Variant
		}
	}
	return cp, nil
}

// offsetAlign is the alignment known at base+off when base has align.
func offsetAlign(align, off int) int {
	if off == 0 {
		return align
	}
	low := off & -off
	return min(align, low)
}

// stride returns the element stride and alignment of an array or slice place.
func (fe *funcEmitter) stride(cp cplace) (int, int, error) {
	tt, ok := fe.emitter.types.Lookup(cp.ty)
	if !ok || (tt.Kind != types.KindArray && tt.Kind != types.KindSlice) {
		return 0, 0, fmt.Errorf("index into non-sequence type#%d", cp.ty)
	}
	el, err := fe.emitter.layoutOf(tt.Elem)
	if err != nil {
		return 0, 0, err
	}
	if cp.layout != nil && cp.layout.Fields.Kind == layout.FieldsArray {
		return cp.layout.Fields.Stride, el.Align, nil
	}
	return el.Size, el.Align, nil
}

func (fe *funcEmitter) elemAlign(slice types.TypeID) int {
	tt, ok := fe.emitter.types.Lookup(slice)
	if !ok {
		return 1
	}
	el, err := fe.emitter.layoutOf(tt.Elem)
	if err != nil {
		return 1
	}
	return el.Align
}

// seqLen returns the length of an array or slice place as a usize value.
func (fe *funcEmitter) seqLen(cp cplace) (value.Value, error) {
	if cp.meta != nil {
		return cp.meta, nil
	}
	tt, ok := fe.emitter.types.Lookup(cp.ty)
	if !ok || tt.Kind != types.KindArray {
		return nil, fmt.Errorf("length of non-sequence type#%d", cp.ty)
	}
	return constant.NewInt(fe.emitter.usize(), int64(tt.Count)), nil //nolint:gosec // bounded by MaxObjectSize
}

func (fe *funcEmitter) indexValue(cp cplace, proj mir.PlaceProj) (value.Value, error) {
	usize := fe.emitter.usize()
	if proj.Kind == mir.PlaceProjIndex {
		if proj.IndexLocal < 0 || int(proj.IndexLocal) >= len(fe.locals) {
			return nil, fmt.Errorf("index local L%d does not exist", proj.IndexLocal)
		}
		cv, err := fe.readPlace(fe.localPlace(proj.IndexLocal))
		if err != nil {
			return nil, err
		}
		return fe.intResize(fe.imm(cv), usize, false), nil
	}
	off := constant.NewInt(usize, int64(proj.Offset)) //nolint:gosec // bounded by MaxObjectSize
	if !proj.FromEnd {
		return off, nil
	}
	n, err := fe.seqLen(cp)
	if err != nil {
		return nil, err
	}
	if c, ok := n.(*constant.Int); ok {
		return constant.NewInt(usize, c.X.Int64()-int64(proj.Offset)), nil //nolint:gosec // bounded by MaxObjectSize
	}
	return fe.cur.NewSub(n, off), nil
}

// readPlace produces the value stored in a place. Register-shaped layouts
// are loaded; aggregates stay in memory.
func (fe *funcEmitter) readPlace(cp cplace) (cvalue, error) {
	switch cp.kind {
	case cplaceVar:
		return byVal(fe.ssa.read(fe.cur, varKey{local: cp.local}), cp.layout), nil
	case cplacePair:
		a := fe.ssa.read(fe.cur, varKey{local: cp.local})
		b := fe.ssa.read(fe.cur, varKey{local: cp.local, part: 1})
		return byValPair(a, b, cp.layout), nil
	}
	if cp.layout == nil {
		v := byRef(cp.addr, nil, cp.align)
		v.meta = cp.meta
		return v, nil
	}
	return fe.loadValue(cp.addr, cp.layout, cp.align), nil
}

// loadValue reads a value of layout l from addr.
func (fe *funcEmitter) loadValue(addr value.Value, l *layout.Layout, align int) cvalue {
	if l.IsZST() {
		return byRef(addr, l, align)
	}
	switch l.Abi.Kind {
	case layout.AbiScalar:
		return byVal(fe.loadScalar(addr, l.Abi.A, align), l)
	case layout.AbiScalarPair:
		a := fe.loadScalar(addr, l.Abi.A, align)
		b := fe.loadScalar(fe.byteOffset(addr, l.Abi.BOffset), l.Abi.B, offsetAlign(align, l.Abi.BOffset))
		return byValPair(a, b, l)
	case layout.AbiVector:
		return byVal(fe.load(vectorType(l), addr, align), l)
	default:
		return byRef(addr, l, align)
	}
}

// writePlace stores cv into cp.
func (fe *funcEmitter) writePlace(cp cplace, cv cvalue) error {
	switch cp.kind {
	case cplaceVar:
		fe.ssa.write(fe.cur, varKey{local: cp.local}, fe.imm(cv))
		return nil
	case cplacePair:
		a, b := fe.pair(cv)
		fe.ssa.write(fe.cur, varKey{local: cp.local}, a)
		fe.ssa.write(fe.cur, varKey{local: cp.local, part: 1}, b)
		return nil
	}
	l := cp.layout
	if l == nil {
		return fmt.Errorf("assignment to unsized place")
	}
	fe.storeValue(cp.addr, cp.align, cv, l)
	return nil
}

// storeValue writes cv, a value of layout l, to addr.
func (fe *funcEmitter) storeValue(addr value.Value, align int, cv cvalue, l *layout.Layout) {
	if l.IsZST() || l.IsUninhabited() {
		return
	}
	if cv.kind == cvalRef {
		fe.copyMem(addr, cv.addr, l.Size, min(align, max(cv.align, 1)))
		return
	}
	switch l.Abi.Kind {
	case layout.AbiScalar:
		fe.storeScalar(cv.a, addr, l.Abi.A, align)
	case layout.AbiScalarPair:
		a, b := fe.pair(cv)
		fe.storeScalar(a, addr, l.Abi.A, align)
		fe.storeScalar(b, fe.byteOffset(addr, l.Abi.BOffset), l.Abi.B, offsetAlign(align, l.Abi.BOffset))
	case layout.AbiVector:
		fe.store(cv.a, addr, align)
	}
}

// imm returns the single register value of cv.
func (fe *funcEmitter) imm(cv cvalue) value.Value {
	switch cv.kind {
	case cvalVal:
		return cv.a
	case cvalPair:
		return cv.a
	}
	if cv.layout != nil {
		switch cv.layout.Abi.Kind {
		case layout.AbiScalar:
			return fe.loadScalar(cv.addr, cv.layout.Abi.A, cv.align)
		case layout.AbiVector:
			return fe.load(vectorType(cv.layout), cv.addr, cv.align)
		}
	}
	return cv.addr
}

// pair returns the two halves of a pair value. An unsized by-ref value
// yields its address and length.
func (fe *funcEmitter) pair(cv cvalue) (value.Value, value.Value) {
	switch cv.kind {
	case cvalPair:
		return cv.a, cv.b
	case cvalVal:
		return cv.a, nil
	}
	if cv.layout == nil || cv.layout.Abi.Kind != layout.AbiScalarPair {
		return cv.addr, cv.meta
	}
	l := cv.layout
	a := fe.loadScalar(cv.addr, l.Abi.A, cv.align)
	b := fe.loadScalar(fe.byteOffset(cv.addr, l.Abi.BOffset), l.Abi.B, offsetAlign(cv.align, l.Abi.BOffset))
	return a, b
}

// spill returns cv in memory, copying register values into a fresh slot.
func (fe *funcEmitter) spill(cv cvalue) value.Value {
	if cv.kind == cvalRef {
		return cv.addr
	}
	slot := fe.temp(cv.layout)
	fe.storeValue(slot, cv.layout.Align, cv, cv.layout)
	return slot
}

// addrOf returns the address of an address place as a thin or fat pointer.
func (fe *funcEmitter) addrOf(cp cplace, l *layout.Layout) (cvalue, error) {
	if cp.kind != cplaceAddr {
		return cvalue{}, fmt.Errorf("address of register local L%d", cp.local)
	}
	if cp.meta != nil {
		return byValPair(cp.addr, cp.meta, l), nil
	}
	return byVal(cp.addr, l), nil
}
