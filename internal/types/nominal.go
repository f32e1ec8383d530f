package types

import "slices"

// Field describes a single field of a struct, tuple-like variant or enum variant.
type Field struct {
	Name   string
	Type   TypeID
	Layout FieldLayoutAttrs
}

// StructInfo stores metadata for a struct type.
type StructInfo struct {
	Name   string
	Fields []Field
}

// RegisterStruct allocates a nominal struct type slot and returns its TypeID.
// Structs are nominal: two registrations never share an ID.
func (in *Interner) RegisterStruct(name string) TypeID {
	in.structs = append(in.structs, StructInfo{Name: name})
	slot := in.payloadSlot(len(in.structs)-1, "struct")
	return in.internRaw(Type{Kind: KindStruct, Payload: slot})
}

// SetStructFields stores the resolved field descriptors for the struct type.
func (in *Interner) SetStructFields(typeID TypeID, fields []Field) {
	info := in.structInfo(typeID)
	if info == nil {
		return
	}
	info.Fields = slices.Clone(fields)
}

// NewStruct registers a struct and sets its fields in one step.
func (in *Interner) NewStruct(name string, fields ...Field) TypeID {
	id := in.RegisterStruct(name)
	in.SetStructFields(id, fields)
	return id
}

// StructInfo returns metadata for the provided struct TypeID.
func (in *Interner) StructInfo(typeID TypeID) (*StructInfo, bool) {
	info := in.structInfo(typeID)
	if info == nil {
		return nil, false
	}
	return info, true
}

func (in *Interner) structInfo(typeID TypeID) *StructInfo {
	tt, ok := in.Lookup(typeID)
	if !ok || tt.Kind != KindStruct {
		return nil
	}
	if int(tt.Payload) >= len(in.structs) {
		return nil
	}
	return &in.structs[tt.Payload]
}
