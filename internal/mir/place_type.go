package mir

import (
	"fmt"

	"lowir/internal/types"
)

// PlaceTy is the type a place projection chain has reached. Variant is the
// enum variant selected by a preceding downcast, or -1.
type PlaceTy struct {
	Type    types.TypeID
	Variant int
}

// RootType returns the type of the place's root local or static.
func RootType(m *Module, f *Func, p Place) (types.TypeID, error) {
	switch p.Kind {
	case PlaceStatic:
		if p.Static < 0 || int(p.Static) >= len(m.Statics) {
			return types.NoTypeID, fmt.Errorf("static S%d does not exist", p.Static)
		}
		return m.Statics[p.Static].Type, nil
	default:
		if p.Local < 0 || int(p.Local) >= len(f.Locals) {
			return types.NoTypeID, fmt.Errorf("local L%d does not exist", p.Local)
		}
		return f.Locals[p.Local].Type, nil
	}
}

// ProjectType applies one projection to pt.
func ProjectType(in *types.Interner, pt PlaceTy, proj PlaceProj) (PlaceTy, error) {
	tt, ok := in.Lookup(pt.Type)
	if !ok {
		return PlaceTy{}, fmt.Errorf("unknown type#%d", pt.Type)
	}
	switch proj.Kind {
	case PlaceProjDeref:
		if !tt.Kind.IsPointerLike() || tt.Kind == types.KindFnPtr {
			return PlaceTy{}, fmt.Errorf("deref of non-pointer %s", tt.Kind)
		}
		return PlaceTy{Type: tt.Elem, Variant: -1}, nil
	case PlaceProjIndex, PlaceProjConstIndex:
		if tt.Kind != types.KindArray && tt.Kind != types.KindSlice && tt.Kind != types.KindVector {
			return PlaceTy{}, fmt.Errorf("index into %s", tt.Kind)
		}
		return PlaceTy{Type: tt.Elem, Variant: -1}, nil
	case PlaceProjDowncast:
		info, ok := in.EnumInfo(pt.Type)
		if !ok || proj.Variant < 0 || proj.Variant >= len(info.Variants) {
			return PlaceTy{}, fmt.Errorf("downcast of type#%d to variant %d", pt.Type, proj.Variant)
		}
		return PlaceTy{Type: pt.Type, Variant: proj.Variant}, nil
	case PlaceProjField:
		ft, err := FieldType(in, pt, proj.FieldIdx)
		if err != nil {
			return PlaceTy{}, err
		}
		return PlaceTy{Type: ft, Variant: -1}, nil
	default:
		return PlaceTy{}, fmt.Errorf("unknown projection kind %d", proj.Kind)
	}
}

// FieldType returns the type of field idx of pt.
func FieldType(in *types.Interner, pt PlaceTy, idx int) (types.TypeID, error) {
	tt, _ := in.Lookup(pt.Type)
	var fields []types.TypeID
	switch tt.Kind {
	case types.KindStruct:
		info, _ := in.StructInfo(pt.Type)
		for _, f := range info.Fields {
			fields = append(fields, f.Type)
		}
	case types.KindTuple:
		info, _ := in.TupleInfo(pt.Type)
		fields = info.Elems
	case types.KindEnum:
		info, _ := in.EnumInfo(pt.Type)
		v := pt.Variant
		if v < 0 {
			if len(info.Variants) != 1 {
				return types.NoTypeID, fmt.Errorf("field of enum type#%d without downcast", pt.Type)
			}
			v = 0
		}
		for _, f := range info.Variants[v].Fields {
			fields = append(fields, f.Type)
		}
	default:
		return types.NoTypeID, fmt.Errorf("field access on %s", tt.Kind)
	}
	if idx < 0 || idx >= len(fields) {
		return types.NoTypeID, fmt.Errorf("field %d out of range for type#%d", idx, pt.Type)
	}
	return fields[idx], nil
}

// TypeOfPlace walks the whole projection chain of p.
func TypeOfPlace(m *Module, f *Func, p Place) (PlaceTy, error) {
	root, err := RootType(m, f, p)
	if err != nil {
		return PlaceTy{}, err
	}
	pt := PlaceTy{Type: root, Variant: -1}
	for i, proj := range p.Proj {
		pt, err = ProjectType(m.Types, pt, proj)
		if err != nil {
			return PlaceTy{}, fmt.Errorf("projection %d: %w", i, err)
		}
	}
	return pt, nil
}

// TypeOfOperand returns the type an operand evaluates to.
func TypeOfOperand(m *Module, f *Func, op Operand) (types.TypeID, error) {
	if op.Kind == OperandConst {
		return op.Const.Type, nil
	}
	pt, err := TypeOfPlace(m, f, op.Place)
	return pt.Type, err
}
