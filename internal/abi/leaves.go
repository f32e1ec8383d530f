package abi

import (
	"lowir/internal/layout"
	"lowir/internal/target"
	"lowir/internal/types"
)

// leaf is a primitive scalar found at a byte offset inside an aggregate.
type leaf struct {
	Offset int
	Prim   layout.Primitive
}

// maxLeaves bounds the walk; anything larger is passed by reference anyway.
const maxLeaves = 64

// leaves flattens t into its scalars. It reports false for shapes without a
// fixed scalar decomposition (multi-variant enums, oversized aggregates).
func (c *Classifier) leaves(t types.TypeID, base int, out []leaf) ([]leaf, bool) {
	l, err := c.Layouts.LayoutOf(t)
	if err != nil || l.IsMultiVariant() {
		return out, false
	}
	switch l.Abi.Kind {
	case layout.AbiScalar:
		return append(out, leaf{Offset: base, Prim: l.Abi.A.Prim}), true
	case layout.AbiUninhabited:
		return out, false
	}
	tt, _ := c.Layouts.Types.Lookup(t)
	switch tt.Kind {
	case types.KindArray, types.KindVector:
		n := l.Fields.Len()
		if n > maxLeaves {
			return out, false
		}
		for i := range n {
			var ok bool
			if out, ok = c.leaves(tt.Elem, base+l.Fields.Offset(i), out); !ok {
				return out, false
			}
		}
	default:
		for i, ft := range c.Layouts.FieldTypes(t, 0) {
			var ok bool
			if out, ok = c.leaves(ft, base+l.Fields.Offset(i), out); !ok {
				return out, false
			}
		}
		if l.Abi.Kind == layout.AbiScalarPair && len(out) == 0 {
			out = append(out,
				leaf{Offset: base, Prim: l.Abi.A.Prim},
				leaf{Offset: base + l.Abi.BOffset, Prim: l.Abi.B.Prim})
		}
	}
	if len(out) > maxLeaves {
		return out, false
	}
	return out, true
}

// homogeneousFloats recognises aggregates made of 1..HomogeneousFloatMax
// floats of one kind that tile the value without padding.
func (c *Classifier) homogeneousFloats(t types.TypeID, l *layout.Layout, cv *target.Convention) ([]Part, bool) {
	if cv.HomogeneousFloatMax == 0 {
		return nil, false
	}
	ls, ok := c.leaves(t, 0, nil)
	if !ok || len(ls) == 0 || len(ls) > cv.HomogeneousFloatMax {
		return nil, false
	}
	first := ls[0].Prim
	if !first.IsFloat() || first.Size*len(ls) != l.Size {
		return nil, false
	}
	parts := make([]Part, len(ls))
	for i, lf := range ls {
		if lf.Prim != first {
			return nil, false
		}
		parts[i] = Part{Offset: lf.Offset, Size: lf.Prim.Size, Class: ClassFloat}
	}
	return parts, true
}

// chunks tiles l with register-sized integer parts. With FloatChunks, a chunk
// holding exactly one float that fills it travels as a float.
func (c *Classifier) chunks(t types.TypeID, l *layout.Layout, cv *target.Convention) []Part {
	var ls []leaf
	if cv.FloatChunks {
		if got, ok := c.leaves(t, 0, nil); ok {
			ls = got
		}
	}
	var parts []Part
	for off := 0; off < l.Size; off += cv.RegisterSize {
		size := min(cv.RegisterSize, l.Size-off)
		p := Part{Offset: off, Size: size, Class: ClassInt}
		var inChunk []leaf
		for _, lf := range ls {
			if lf.Offset >= off && lf.Offset < off+size {
				inChunk = append(inChunk, lf)
			}
		}
		if len(inChunk) == 1 && inChunk[0].Prim.IsFloat() && inChunk[0].Prim.Size == size && inChunk[0].Offset == off {
			p.Class = ClassFloat
		}
		parts = append(parts, p)
	}
	return parts
}
