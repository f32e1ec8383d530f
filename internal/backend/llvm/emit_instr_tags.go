package llvm

import (
	"fmt"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/layout"
)

// discriminant reads the declared discriminant of the enum in cp as a value
// of layout l.
func (fe *funcEmitter) discriminant(cp cplace, l *layout.Layout) (cvalue, error) {
	el := cp.layout
	if el == nil {
		return cvalue{}, fmt.Errorf("discriminant of unsized place")
	}
	if l.Abi.Kind != layout.AbiScalar || l.Abi.A.Prim.Kind != layout.PrimInt {
		return cvalue{}, fmt.Errorf("discriminant read into non-integer")
	}
	dt := intType(l.Size)
	if !el.IsMultiVariant() {
		d := int64(0)
		if info, ok := fe.emitter.types.EnumInfo(cp.ty); ok {
			d = info.Discriminant(el.Variants.Index)
		}
		return byVal(constant.NewInt(dt, d), l), nil
	}
	if cp.kind != cplaceAddr {
		return cvalue{}, fmt.Errorf("discriminant of register local L%d", cp.local)
	}

	tag := el.Variants.Tag
	tt := intType(tag.Prim.Size)
	off := el.TagOffset()
	raw := fe.load(tt, fe.byteOffset(cp.addr, off), offsetAlign(cp.align, off))
	enc := el.Variants.Encoding
	if !enc.Niche {
		return byVal(fe.intResize(raw, dt, tag.Prim.Signed), l), nil
	}

	// Stored values NicheStart..NicheStart+(NicheHi-NicheLo) name the
	// variants NicheLo..NicheHi; every other value is the untagged variant.
	rel := fe.cur.NewSub(raw, intConst(tt, enc.NicheStart, 0))
	span := uint64(enc.NicheHi - enc.NicheLo) //nolint:gosec // NicheHi >= NicheLo
	inRange := fe.cur.NewICmp(enum.IPredULE, rel, intConst(tt, span, 0))
	idx := value.Value(fe.intResize(rel, dt, false))
	if enc.NicheLo != 0 {
		idx = fe.cur.NewAdd(idx, constant.NewInt(dt, int64(enc.NicheLo)))
	}
	variant := fe.cur.NewSelect(inRange, idx, constant.NewInt(dt, int64(enc.Untagged)))
	return byVal(fe.variantToDiscr(variant, el, dt), l), nil
}

// variantToDiscr maps a variant index to its declared discriminant.
func (fe *funcEmitter) variantToDiscr(v value.Value, el *layout.Layout, dt *lltypes.IntType) value.Value {
	discrs := el.Variants.Discrs
	identity := true
	for i, d := range discrs {
		if d != int64(i) {
			identity = false
			break
		}
	}
	if identity || len(discrs) == 0 {
		return v
	}
	out := value.Value(constant.NewInt(dt, discrs[0]))
	for i := 1; i < len(discrs); i++ {
		is := fe.cur.NewICmp(enum.IPredEQ, v, constant.NewInt(dt, int64(i)))
		out = fe.cur.NewSelect(is, constant.NewInt(dt, discrs[i]), out)
	}
	return out
}

// setDiscriminant stores the tag of variant into the enum at cp. The
// untagged variant of a niche layout stores nothing.
func (fe *funcEmitter) setDiscriminant(cp cplace, variant int) error {
	el := cp.layout
	if el == nil {
		return fmt.Errorf("discriminant of unsized place")
	}
	if !el.IsMultiVariant() {
		if variant != el.Variants.Index {
			return fmt.Errorf("variant %d of single-variant layout", variant)
		}
		return nil
	}
	if variant < 0 || variant >= len(el.Variants.Layouts) {
		return fmt.Errorf("variant %d out of range", variant)
	}
	if cp.kind != cplaceAddr {
		return fmt.Errorf("discriminant of register local L%d", cp.local)
	}
	var bits uint64
	if el.Variants.Encoding.Niche {
		nv, ok := el.NicheValue(variant)
		if !ok {
			return nil
		}
		bits = nv
	} else {
		bits = uint64(el.Variants.Discrs[variant]) //nolint:gosec // two's complement bit pattern
	}
	tag := el.Variants.Tag
	off := el.TagOffset()
	fe.store(intConst(intType(tag.Prim.Size), bits, 0), fe.byteOffset(cp.addr, off), offsetAlign(cp.align, off))
	return nil
}
