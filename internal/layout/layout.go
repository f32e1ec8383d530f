package layout

import "lowir/internal/types"

// AbiKind describes how a value is represented in registers.
type AbiKind uint8

const (
	AbiAggregate AbiKind = iota
	AbiUninhabited
	AbiScalar
	AbiScalarPair
	AbiVector
)

func (k AbiKind) String() string {
	switch k {
	case AbiUninhabited:
		return "uninhabited"
	case AbiScalar:
		return "scalar"
	case AbiScalarPair:
		return "pair"
	case AbiVector:
		return "vector"
	default:
		return "aggregate"
	}
}

// Abi is the register-level shape of a layout. A holds the scalar (or the
// vector element), B the second half of a pair stored at BOffset.
type Abi struct {
	Kind    AbiKind
	A       Scalar
	B       Scalar
	BOffset int
	Lanes   int
	Sized   bool
}

// FieldsKind selects how Fields addresses a layout's fields.
type FieldsKind uint8

const (
	FieldsPrimitive FieldsKind = iota
	FieldsUnion
	FieldsArray
	FieldsArbitrary
)

// FieldsShape locates fields. Union fields all live at offset zero.
type FieldsShape struct {
	Kind    FieldsKind
	Count   uint64
	Stride  int
	Offsets []int
}

// Offset returns the byte offset of field i.
func (f FieldsShape) Offset(i int) int {
	switch f.Kind {
	case FieldsArray:
		return f.Stride * i
	case FieldsArbitrary:
		if i >= 0 && i < len(f.Offsets) {
			return f.Offsets[i]
		}
	}
	return 0
}

// Len returns the number of fields.
func (f FieldsShape) Len() int {
	switch f.Kind {
	case FieldsArbitrary:
		return len(f.Offsets)
	case FieldsUnion, FieldsArray:
		return int(f.Count) //nolint:gosec // bounded by MaxObjectSize
	default:
		return 0
	}
}

// VariantsKind distinguishes plain layouts from tagged unions.
type VariantsKind uint8

const (
	VariantsSingle VariantsKind = iota
	VariantsMultiple
)

// TagEncoding describes how the discriminant is stored. For direct
// encodings the tag holds the discriminant value. Niche encodings store
// NicheStart + (variant - NicheLo) for variants in NicheLo..NicheHi other
// than Untagged; any other value means Untagged.
type TagEncoding struct {
	Niche      bool
	Untagged   int
	NicheLo    int
	NicheHi    int
	NicheStart uint64
}

// Variants describes the variant structure of a layout.
type Variants struct {
	Kind  VariantsKind
	Index int // for VariantsSingle

	Tag      Scalar
	Encoding TagEncoding
	TagField int
	// Discrs holds each variant's declared discriminant. Direct encodings
	// store its bit pattern truncated to the tag size.
	Discrs  []int64
	Layouts []*Layout
}

// Layout is the memory layout of a type on one target.
type Layout struct {
	Type  types.TypeID
	Size  int
	Align int

	Fields       FieldsShape
	Variants     Variants
	Abi          Abi
	LargestNiche *Niche
}

// IsZST reports whether the layout occupies no storage.
func (l *Layout) IsZST() bool { return l.Size == 0 }

// IsUninhabited reports whether no value of the type can exist.
func (l *Layout) IsUninhabited() bool { return l.Abi.Kind == AbiUninhabited }

// IsMultiVariant reports whether the layout carries a discriminant.
func (l *Layout) IsMultiVariant() bool { return l.Variants.Kind == VariantsMultiple }

// ForVariant returns the layout of a single variant; plain layouts are their
// own variant 0.
func (l *Layout) ForVariant(v int) *Layout {
	if l.Variants.Kind == VariantsMultiple {
		if v >= 0 && v < len(l.Variants.Layouts) {
			return l.Variants.Layouts[v]
		}
		return nil
	}
	return l
}

// TagOffset returns the byte offset of the tag or niche field.
func (l *Layout) TagOffset() int {
	return l.Fields.Offset(l.Variants.TagField)
}

// NicheValue returns the stored bit pattern for a niche-encoded variant.
func (l *Layout) NicheValue(variant int) (uint64, bool) {
	enc := l.Variants.Encoding
	if l.Variants.Kind != VariantsMultiple || !enc.Niche || variant == enc.Untagged {
		return 0, false
	}
	if variant < enc.NicheLo || variant > enc.NicheHi {
		return 0, false
	}
	mask := sizeMask(l.Variants.Tag.Prim.Size)
	return (enc.NicheStart + uint64(variant-enc.NicheLo)) & mask, true //nolint:gosec // variant >= NicheLo
}

// DecodeTag maps a stored tag bit pattern back to a variant index.
func (l *Layout) DecodeTag(stored uint64) int {
	if l.Variants.Kind != VariantsMultiple {
		return l.Variants.Index
	}
	enc := l.Variants.Encoding
	mask := sizeMask(l.Variants.Tag.Prim.Size)
	if !enc.Niche {
		for i, d := range l.Variants.Discrs {
			if uint64(d)&mask == stored&mask { //nolint:gosec // two's complement bit pattern
				return i
			}
		}
		return -1
	}
	rel := (stored - enc.NicheStart) & mask
	if rel <= uint64(enc.NicheHi-enc.NicheLo) { //nolint:gosec // NicheHi >= NicheLo
		v := enc.NicheLo + int(rel) //nolint:gosec // rel bounded by variant count
		if v != enc.Untagged {
			return v
		}
	}
	return enc.Untagged
}
