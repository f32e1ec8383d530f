package layout

import (
	"math/bits"

	"fortio.org/safecast"

	"lowir/internal/types"
)

func (e *Engine) computeLayout(id types.TypeID, state *layoutState) (*Layout, *LayoutError) {
	tt, ok := e.Types.Lookup(id)
	if !ok {
		return nil, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}

	switch tt.Kind {
	case types.KindUnit:
		return &Layout{Size: 0, Align: 1, Fields: FieldsShape{Kind: FieldsArbitrary}, Abi: Abi{Kind: AbiAggregate, Sized: true}}, nil

	case types.KindNever:
		return &Layout{Size: 0, Align: 1, Fields: FieldsShape{Kind: FieldsPrimitive}, Abi: Abi{Kind: AbiUninhabited}}, nil

	case types.KindBool:
		return e.scalarLayout(Scalar{Prim: Primitive{Kind: PrimInt, Size: 1}, Valid: WrappingRange{Start: 0, End: 1}}), nil

	case types.KindChar:
		return e.scalarLayout(Scalar{Prim: Primitive{Kind: PrimInt, Size: 4}, Valid: WrappingRange{Start: 0, End: 0x10FFFF}}), nil

	case types.KindInt, types.KindUint:
		return e.scalarLayout(FullScalar(e.intPrim(tt))), nil

	case types.KindFloat:
		if tt.Width == types.Width32 {
			return e.scalarLayout(FullScalar(Primitive{Kind: PrimF32, Size: 4})), nil
		}
		return e.scalarLayout(FullScalar(Primitive{Kind: PrimF64, Size: 8})), nil

	case types.KindPointer, types.KindReference:
		data := e.ptrScalar(tt.Kind == types.KindReference)
		if e.Types.IsUnsized(tt.Elem) {
			usize := FullScalar(Primitive{Kind: PrimInt, Size: e.Target.PtrSize})
			return e.pairLayout(data, usize), nil
		}
		return e.scalarLayout(data), nil

	case types.KindFnPtr:
		return e.scalarLayout(e.ptrScalar(true)), nil

	case types.KindOpaque:
		return e.scalarLayout(e.ptrScalar(false)), nil

	case types.KindStruct:
		return e.structLayout(id, state)

	case types.KindTuple:
		info, ok := e.Types.TupleInfo(id)
		if !ok {
			return nil, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
		}
		fields := make([]*Layout, len(info.Elems))
		for i, elem := range info.Elems {
			fl, err := e.layoutOf(elem, state)
			if err != nil {
				return nil, err
			}
			fields[i] = fl
		}
		return e.univariant(id, fields, nil, false, nil, 0, 1)

	case types.KindArray:
		return e.arrayLayout(id, tt.Elem, tt.Count, state)

	case types.KindVector:
		return e.vectorLayout(id, tt.Elem, tt.Count, state)

	case types.KindSlice:
		return nil, &LayoutError{Kind: LayoutErrUnsized, Type: id}

	case types.KindEnum:
		return e.enumLayout(id, state)

	default:
		return nil, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}
}

func (e *Engine) intPrim(tt types.Type) Primitive {
	size := e.Target.PtrSize
	if tt.Width != types.WidthAny {
		size = int(tt.Width) / 8
	}
	return Primitive{Kind: PrimInt, Size: size, Signed: tt.Kind == types.KindInt}
}

func (e *Engine) ptrScalar(nonNull bool) Scalar {
	s := FullScalar(Primitive{Kind: PrimPointer, Size: e.Target.PtrSize})
	if nonNull {
		s.Valid.Start = 1
	}
	return s
}

func (e *Engine) scalarAlign(s Scalar) int {
	if s.Prim.Kind == PrimPointer {
		return e.Target.PtrAlign
	}
	return e.Target.ScalarAlign(s.Prim.Size, s.Prim.IsFloat())
}

func (e *Engine) scalarLayout(s Scalar) *Layout {
	return &Layout{
		Size:         s.Size(),
		Align:        e.scalarAlign(s),
		Fields:       FieldsShape{Kind: FieldsPrimitive},
		Abi:          Abi{Kind: AbiScalar, A: s},
		LargestNiche: nicheOf(0, s),
	}
}

// pairOffset returns where the second scalar of a pair lives.
func (e *Engine) pairOffset(a, b Scalar) int {
	return roundUp(a.Size(), e.scalarAlign(b))
}

func (e *Engine) pairLayout(a, b Scalar) *Layout {
	off := e.pairOffset(a, b)
	align := max(e.scalarAlign(a), e.scalarAlign(b))
	return &Layout{
		Size:         roundUp(off+b.Size(), align),
		Align:        align,
		Fields:       FieldsShape{Kind: FieldsArbitrary, Offsets: []int{0, off}},
		Abi:          Abi{Kind: AbiScalarPair, A: a, B: b, BOffset: off},
		LargestNiche: betterNiche(nicheOf(0, a), nicheOf(off, b)),
	}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func (e *Engine) checkSize(id types.TypeID, size uint64) *LayoutError {
	if limit := e.Target.MaxObjectSize(); size > limit {
		return &LayoutError{Kind: LayoutErrSizeOverflow, Type: id, Size: size, Limit: limit}
	}
	return nil
}

func (e *Engine) structLayout(id types.TypeID, state *layoutState) (*Layout, *LayoutError) {
	info, ok := e.Types.StructInfo(id)
	if !ok {
		return nil, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}
	attrs, _ := e.Types.TypeLayoutAttrs(id)
	if attrs.Packed && attrs.AlignOverride != nil {
		return nil, &LayoutError{Kind: LayoutErrInvalidAttrs, Type: id}
	}
	fields := make([]*Layout, len(info.Fields))
	overrides := make([]*int, len(info.Fields))
	for i, f := range info.Fields {
		fl, err := e.layoutOf(f.Type, state)
		if err != nil {
			return nil, err
		}
		fields[i] = fl
		overrides[i] = f.Layout.AlignOverride
	}
	return e.univariant(id, fields, overrides, attrs.Packed, attrs.AlignOverride, 0, 1)
}

// univariant places fields in declared order after a prefix of prefixSize
// bytes (the tag of an enum variant), padding each to its alignment.
func (e *Engine) univariant(id types.TypeID, fields []*Layout, fieldAlign []*int, packed bool, alignOverride *int, prefixSize, prefixAlign int) (*Layout, *LayoutError) {
	offsets := make([]int, len(fields))
	size := uint64(prefixSize) //nolint:gosec // prefix is a tag size
	align := max(prefixAlign, 1)
	var niche *Niche
	uninhabited := false
	for i, fl := range fields {
		fAlign := fl.Align
		if packed {
			fAlign = 1
		} else if i < len(fieldAlign) && fieldAlign[i] != nil {
			fAlign = max(fAlign, *fieldAlign[i])
		}
		size = uint64(roundUp(int(size), fAlign)) //nolint:gosec // bounded by checkSize below
		off := int(size)                          //nolint:gosec // bounded by checkSize below
		offsets[i] = off
		size += uint64(fl.Size) //nolint:gosec // sizes are non-negative
		if err := e.checkSize(id, size); err != nil {
			return nil, err
		}
		align = max(align, fAlign)
		niche = betterNiche(niche, shiftNiche(fl.LargestNiche, off))
		uninhabited = uninhabited || fl.IsUninhabited()
	}
	if alignOverride != nil {
		align = max(align, *alignOverride)
	}
	total := roundUp(int(size), align) //nolint:gosec // checked above
	if err := e.checkSize(id, uint64(total)); err != nil { //nolint:gosec // non-negative
		return nil, err
	}
	l := &Layout{
		Size:         total,
		Align:        align,
		Fields:       FieldsShape{Kind: FieldsArbitrary, Offsets: offsets},
		LargestNiche: niche,
	}
	switch {
	case uninhabited:
		l.Abi = Abi{Kind: AbiUninhabited}
	case packed || prefixSize > 0:
		l.Abi = Abi{Kind: AbiAggregate, Sized: true}
	default:
		l.Abi = e.univariantAbi(fields, offsets, total, align)
	}
	return l, nil
}

// univariantAbi promotes newtypes and two-scalar records to register shapes.
func (e *Engine) univariantAbi(fields []*Layout, offsets []int, size, align int) Abi {
	aggregate := Abi{Kind: AbiAggregate, Sized: true}
	var nonZST []int
	for i, fl := range fields {
		if !fl.IsZST() {
			nonZST = append(nonZST, i)
		}
	}
	switch len(nonZST) {
	case 1:
		f := fields[nonZST[0]]
		if offsets[nonZST[0]] == 0 && f.Size == size && f.Align == align {
			switch f.Abi.Kind {
			case AbiScalar, AbiScalarPair, AbiVector:
				return f.Abi
			}
		}
	case 2:
		a, b := nonZST[0], nonZST[1]
		if offsets[b] < offsets[a] {
			a, b = b, a
		}
		fa, fb := fields[a], fields[b]
		if fa.Abi.Kind != AbiScalar || fb.Abi.Kind != AbiScalar || offsets[a] != 0 {
			return aggregate
		}
		pair := e.pairLayout(fa.Abi.A, fb.Abi.A)
		if offsets[b] == pair.Fields.Offsets[1] && pair.Size == size && pair.Align == align {
			return pair.Abi
		}
	}
	return aggregate
}

func (e *Engine) arrayLayout(id, elem types.TypeID, count uint64, state *layoutState) (*Layout, *LayoutError) {
	el, err := e.layoutOf(elem, state)
	if err != nil {
		return nil, err
	}
	stride := roundUp(el.Size, el.Align)
	hi, total := bits.Mul64(uint64(stride), count) //nolint:gosec // stride is non-negative
	if hi != 0 {
		return nil, &LayoutError{Kind: LayoutErrSizeOverflow, Type: id, Size: ^uint64(0), Limit: e.Target.MaxObjectSize()}
	}
	if lerr := e.checkSize(id, total); lerr != nil {
		return nil, lerr
	}
	size, cerr := safecast.Conv[int](total)
	if cerr != nil {
		return nil, &LayoutError{Kind: LayoutErrSizeOverflow, Type: id, Size: total, Limit: e.Target.MaxObjectSize()}
	}
	l := &Layout{
		Size:   size,
		Align:  el.Align,
		Fields: FieldsShape{Kind: FieldsArray, Stride: stride, Count: count},
		Abi:    Abi{Kind: AbiAggregate, Sized: true},
	}
	if count > 0 {
		l.LargestNiche = el.LargestNiche
		if el.IsUninhabited() {
			l.Abi = Abi{Kind: AbiUninhabited}
		}
	}
	return l, nil
}

func (e *Engine) vectorLayout(id, elem types.TypeID, lanes uint64, state *layoutState) (*Layout, *LayoutError) {
	el, err := e.layoutOf(elem, state)
	if err != nil {
		return nil, err
	}
	if el.Abi.Kind != AbiScalar || lanes == 0 {
		return nil, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}
	n, cerr := safecast.Conv[int](lanes)
	if cerr != nil || lanes > 1<<16 {
		return nil, &LayoutError{Kind: LayoutErrSizeOverflow, Type: id, Size: lanes, Limit: 1 << 16}
	}
	raw := el.Size * n
	align := 1
	for align < raw {
		align <<= 1
	}
	return &Layout{
		Size:   roundUp(raw, align),
		Align:  align,
		Fields: FieldsShape{Kind: FieldsArray, Stride: el.Size, Count: lanes},
		Abi:    Abi{Kind: AbiVector, A: FullScalar(el.Abi.A.Prim), Lanes: n},
	}, nil
}
