package layout

import (
	"math"

	"lowir/internal/types"
)

func (e *Engine) enumLayout(id types.TypeID, state *layoutState) (*Layout, *LayoutError) {
	info, ok := e.Types.EnumInfo(id)
	if !ok {
		return nil, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}
	if len(info.Variants) == 0 {
		return &Layout{Size: 0, Align: 1, Fields: FieldsShape{Kind: FieldsArbitrary}, Abi: Abi{Kind: AbiUninhabited}}, nil
	}

	variantFields := make([][]*Layout, len(info.Variants))
	explicit := false
	for v, variant := range info.Variants {
		explicit = explicit || variant.Discr != nil
		fields := make([]*Layout, len(variant.Fields))
		for i, f := range variant.Fields {
			fl, err := e.layoutOf(f.Type, state)
			if err != nil {
				return nil, err
			}
			fields[i] = fl
		}
		variantFields[v] = fields
	}

	if len(info.Variants) == 1 {
		l, err := e.univariant(id, variantFields[0], nil, false, nil, 0, 1)
		if err != nil {
			return nil, err
		}
		l.Variants = Variants{Kind: VariantsSingle, Index: 0}
		return l, nil
	}

	tagged, err := e.taggedLayout(id, info, variantFields)
	if err != nil {
		return nil, err
	}
	if explicit {
		return tagged, nil
	}
	niche, err := e.nicheLayout(id, variantFields)
	if err != nil {
		return nil, err
	}
	if niche == nil {
		return tagged, nil
	}
	// Prefer the niche when it is smaller, or equal in size and leaves at
	// least as much room for enclosing enums.
	if niche.Size < tagged.Size ||
		(niche.Size == tagged.Size && niche.LargestNiche.Available() >= tagged.LargestNiche.Available()) {
		return niche, nil
	}
	return tagged, nil
}

// tagPrimitive picks the smallest integer that holds every discriminant.
func tagPrimitive(lo, hi int64) Primitive {
	signed := lo < 0
	for _, size := range []int{1, 2, 4} {
		bits := uint(size * 8)
		if signed {
			if lo >= -(1<<(bits-1)) && hi < 1<<(bits-1) {
				return Primitive{Kind: PrimInt, Size: size, Signed: true}
			}
		} else if uint64(hi) < 1<<bits { //nolint:gosec // hi >= lo >= 0
			return Primitive{Kind: PrimInt, Size: size}
		}
	}
	return Primitive{Kind: PrimInt, Size: 8, Signed: signed}
}

func (e *Engine) taggedLayout(id types.TypeID, info *types.EnumInfo, variantFields [][]*Layout) (*Layout, *LayoutError) {
	discrs := make([]int64, len(variantFields))
	lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
	for v := range variantFields {
		d := info.Discriminant(v)
		discrs[v] = d
		lo, hi = min(lo, d), max(hi, d)
	}
	prim := tagPrimitive(lo, hi)
	mask := sizeMask(prim.Size)
	tag := Scalar{Prim: prim, Valid: WrappingRange{Start: uint64(lo) & mask, End: uint64(hi) & mask}} //nolint:gosec // bit patterns
	tagSize := prim.Size
	tagAlign := e.scalarAlign(tag)

	size, align := tagSize, tagAlign
	variants := make([]*Layout, len(variantFields))
	uninhabited := true
	for v, fields := range variantFields {
		vl, err := e.univariant(id, fields, nil, false, nil, tagSize, tagAlign)
		if err != nil {
			return nil, err
		}
		vl.Variants = Variants{Kind: VariantsSingle, Index: v}
		variants[v] = vl
		size, align = max(size, vl.Size), max(align, vl.Align)
		uninhabited = uninhabited && vl.IsUninhabited()
	}
	size = roundUp(size, align)
	if err := e.checkSize(id, uint64(size)); err != nil { //nolint:gosec // non-negative
		return nil, err
	}
	for _, vl := range variants {
		vl.Size, vl.Align = size, align
	}

	l := &Layout{
		Size:   size,
		Align:  align,
		Fields: FieldsShape{Kind: FieldsArbitrary, Offsets: []int{0}},
		Variants: Variants{
			Kind:     VariantsMultiple,
			Tag:      tag,
			TagField: 0,
			Discrs:   discrs,
			Layouts:  variants,
		},
		LargestNiche: nicheOf(0, tag),
	}
	switch {
	case uninhabited:
		l.Abi = Abi{Kind: AbiUninhabited}
	default:
		l.Abi = e.taggedAbi(tag, variantFields, variants, size, align)
	}
	return l, nil
}

// taggedAbi keeps fieldless enums in a register and turns enums whose
// variants carry at most one scalar of the same shape into a pair.
func (e *Engine) taggedAbi(tag Scalar, variantFields [][]*Layout, variants []*Layout, size, align int) Abi {
	aggregate := Abi{Kind: AbiAggregate, Sized: true}
	var common *Primitive
	commonOff := -1
	for v, fields := range variantFields {
		var found *Layout
		off := 0
		for i, fl := range fields {
			if fl.IsZST() {
				continue
			}
			if found != nil || fl.Abi.Kind != AbiScalar {
				return aggregate
			}
			found, off = fl, variants[v].Fields.Offsets[i]
		}
		if found == nil {
			continue
		}
		prim := found.Abi.A.Prim
		if common == nil {
			common, commonOff = &prim, off
			continue
		}
		if *common != prim || commonOff != off {
			return aggregate
		}
	}
	if common == nil {
		if size == tag.Size() && align == e.scalarAlign(tag) {
			return Abi{Kind: AbiScalar, A: tag}
		}
		return aggregate
	}
	pair := e.pairLayout(tag, FullScalar(*common))
	if pair.Fields.Offsets[1] == commonOff && pair.Size == size && pair.Align == align {
		return pair.Abi
	}
	return aggregate
}

func (e *Engine) nicheLayout(id types.TypeID, variantFields [][]*Layout) (*Layout, *LayoutError) {
	variants := make([]*Layout, len(variantFields))
	largest := 0
	for v, fields := range variantFields {
		vl, err := e.univariant(id, fields, nil, false, nil, 0, 1)
		if err != nil {
			return nil, err
		}
		vl.Variants = Variants{Kind: VariantsSingle, Index: v}
		variants[v] = vl
		if vl.Size > variants[largest].Size {
			largest = v
		}
	}
	dataful := variants[largest]
	niche := dataful.LargestNiche
	if niche == nil {
		return nil, nil
	}

	lo, hi := -1, -1
	size, align := dataful.Size, dataful.Align
	othersZST := true
	for v, vl := range variants {
		if v == largest {
			continue
		}
		if !vl.IsZST() {
			if vl.Size > niche.Offset {
				return nil, nil
			}
			othersZST = false
		}
		if lo < 0 {
			lo = v
		}
		hi = v
		align = max(align, vl.Align)
	}
	count := uint64(hi - lo + 1) //nolint:gosec // hi >= lo
	start, scalar, ok := niche.Reserve(count)
	if !ok {
		return nil, nil
	}
	size = roundUp(size, align)
	if err := e.checkSize(id, uint64(size)); err != nil { //nolint:gosec // non-negative
		return nil, err
	}
	// The register shape is decided from the unpadded variants; resizing
	// below makes every variant look sized.
	abi := nicheAbi(dataful, niche, scalar, othersZST && size == dataful.Size && align == dataful.Align)
	for _, vl := range variants {
		vl.Size, vl.Align = size, align
	}

	discrs := make([]int64, len(variants))
	for v := range discrs {
		discrs[v] = int64(v)
	}
	l := &Layout{
		Size:   size,
		Align:  align,
		Fields: FieldsShape{Kind: FieldsArbitrary, Offsets: []int{niche.Offset}},
		Variants: Variants{
			Kind: VariantsMultiple,
			Tag:  scalar,
			Encoding: TagEncoding{
				Niche:      true,
				Untagged:   largest,
				NicheLo:    lo,
				NicheHi:    hi,
				NicheStart: start,
			},
			TagField: 0,
			Discrs:   discrs,
			Layouts:  variants,
		},
		LargestNiche: nicheOf(niche.Offset, scalar),
		Abi:          abi,
	}
	return l, nil
}

// nicheAbi keeps the dataful variant's register shape, with the niche
// scalar in place of the field that carries the tag, when every other
// variant is empty.
func nicheAbi(dataful *Layout, niche *Niche, scalar Scalar, registerShaped bool) Abi {
	if registerShaped {
		switch dataful.Abi.Kind {
		case AbiScalar:
			return Abi{Kind: AbiScalar, A: scalar}
		case AbiScalarPair:
			pair := dataful.Abi
			switch {
			case niche.Offset == 0 && pair.A.Prim == scalar.Prim:
				pair.A = scalar
				return pair
			case niche.Offset == pair.BOffset && pair.B.Prim == scalar.Prim:
				pair.B = scalar
				return pair
			}
		}
	}
	return Abi{Kind: AbiAggregate, Sized: true}
}
