package types

import "slices"

// VariantInfo describes one variant of a tagged union.
type VariantInfo struct {
	Name   string
	Fields []Field
	// Discr overrides the discriminant value; nil means the variant index.
	Discr *int64
}

// EnumInfo stores metadata for a tagged-union type.
type EnumInfo struct {
	Name     string
	Variants []VariantInfo
}

// RegisterEnum allocates a nominal tagged-union type slot.
func (in *Interner) RegisterEnum(name string) TypeID {
	in.enums = append(in.enums, EnumInfo{Name: name})
	slot := in.payloadSlot(len(in.enums)-1, "enum")
	return in.internRaw(Type{Kind: KindEnum, Payload: slot})
}

// SetEnumVariants stores the resolved variant list for the type.
func (in *Interner) SetEnumVariants(typeID TypeID, variants []VariantInfo) {
	info := in.enumInfo(typeID)
	if info == nil {
		return
	}
	info.Variants = cloneVariants(variants)
}

// NewEnum registers a tagged union and sets its variants in one step.
func (in *Interner) NewEnum(name string, variants ...VariantInfo) TypeID {
	id := in.RegisterEnum(name)
	in.SetEnumVariants(id, variants)
	return id
}

// EnumInfo returns metadata for the provided enum TypeID.
func (in *Interner) EnumInfo(typeID TypeID) (*EnumInfo, bool) {
	info := in.enumInfo(typeID)
	if info == nil {
		return nil, false
	}
	return info, true
}

// Discriminant returns the declared discriminant of a variant.
func (info *EnumInfo) Discriminant(variant int) int64 {
	if info == nil || variant < 0 || variant >= len(info.Variants) {
		return int64(variant)
	}
	if d := info.Variants[variant].Discr; d != nil {
		return *d
	}
	return int64(variant)
}

func (in *Interner) enumInfo(typeID TypeID) *EnumInfo {
	tt, ok := in.Lookup(typeID)
	if !ok || tt.Kind != KindEnum {
		return nil
	}
	if int(tt.Payload) >= len(in.enums) {
		return nil
	}
	return &in.enums[tt.Payload]
}

func cloneVariants(variants []VariantInfo) []VariantInfo {
	out := make([]VariantInfo, len(variants))
	for i, v := range variants {
		out[i] = VariantInfo{Name: v.Name, Fields: slices.Clone(v.Fields)}
		if v.Discr != nil {
			d := *v.Discr
			out[i].Discr = &d
		}
	}
	return out
}
