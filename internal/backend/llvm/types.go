package llvm

import (
	lltypes "github.com/llir/llvm/ir/types"

	"lowir/internal/abi"
	"lowir/internal/layout"
)

// Every data pointer is lowered to i8*; typed pointers only appear as the
// operand of a load or store.
var ptrType = lltypes.I8Ptr

func intType(size int) *lltypes.IntType {
	switch size {
	case 1:
		return lltypes.I8
	case 2:
		return lltypes.I16
	case 4:
		return lltypes.I32
	case 8:
		return lltypes.I64
	case 16:
		return lltypes.I128
	default:
		return lltypes.NewInt(uint64(size) * 8) //nolint:gosec // size > 0
	}
}

func isBool(s layout.Scalar) bool {
	return s.Prim.Kind == layout.PrimInt && s.Prim.Size == 1 && s.Valid.Start == 0 && s.Valid.End == 1
}

// scalarMemType is the type a scalar has in memory.
func scalarMemType(s layout.Scalar) lltypes.Type {
	switch s.Prim.Kind {
	case layout.PrimF32:
		return lltypes.Float
	case layout.PrimF64:
		return lltypes.Double
	case layout.PrimPointer:
		return ptrType
	default:
		return intType(s.Prim.Size)
	}
}

// scalarImmType is the type a scalar has as an SSA value: booleans are i1.
func scalarImmType(s layout.Scalar) lltypes.Type {
	if isBool(s) {
		return lltypes.I1
	}
	return scalarMemType(s)
}

// vectorType keeps boolean lanes as bytes so a vector value and its memory
// image have the same size.
func vectorType(l *layout.Layout) *lltypes.VectorType {
	return lltypes.NewVector(uint64(l.Abi.Lanes), scalarMemType(l.Abi.A)) //nolint:gosec // lanes > 0
}

// immType returns the SSA type of a register-representable layout, or nil
// for layouts handled by reference.
func immType(l *layout.Layout) lltypes.Type {
	switch l.Abi.Kind {
	case layout.AbiScalar:
		return scalarImmType(l.Abi.A)
	case layout.AbiScalarPair:
		return lltypes.NewStruct(scalarImmType(l.Abi.A), scalarImmType(l.Abi.B))
	case layout.AbiVector:
		return vectorType(l)
	default:
		return nil
	}
}

// memType is the storage type used for allocas and globals.
func memType(l *layout.Layout) lltypes.Type {
	switch l.Abi.Kind {
	case layout.AbiScalar:
		return scalarMemType(l.Abi.A)
	case layout.AbiVector:
		return vectorType(l)
	default:
		return lltypes.NewArray(uint64(l.Size), lltypes.I8) //nolint:gosec // size >= 0
	}
}

func partType(p abi.Part) lltypes.Type {
	switch p.Class {
	case abi.ClassFloat:
		if p.Size == 4 {
			return lltypes.Float
		}
		return lltypes.Double
	case abi.ClassPointer:
		return ptrType
	default:
		return intType(p.Size)
	}
}

// argTypes returns the LLVM parameter types an argument occupies.
func argTypes(a abi.ArgAbi) []lltypes.Type {
	switch a.Mode {
	case abi.PassIgnore:
		return nil
	case abi.PassIndirect:
		return []lltypes.Type{ptrType}
	case abi.PassSplit:
		out := make([]lltypes.Type, len(a.Parts))
		for i, p := range a.Parts {
			out[i] = partType(p)
		}
		return out
	default:
		if a.Cast > 0 {
			return []lltypes.Type{intType(a.Cast)}
		}
		if t := immType(a.Layout); t != nil {
			return []lltypes.Type{t}
		}
		return []lltypes.Type{intType(a.Layout.Size)}
	}
}

// retType returns the LLVM return type for a classified return value.
func retType(a abi.ArgAbi) lltypes.Type {
	switch a.Mode {
	case abi.PassIgnore, abi.PassIndirect:
		return lltypes.Void
	case abi.PassSplit:
		return lltypes.NewStruct(argTypes(a)...)
	default:
		return argTypes(a)[0]
	}
}

// fnType builds the LLVM function type of a classified signature.
func fnType(fa *abi.FnAbi) *lltypes.FuncType {
	var params []lltypes.Type
	if fa.HasSret() {
		params = append(params, ptrType)
	}
	for _, a := range fa.Args {
		params = append(params, argTypes(a)...)
	}
	ft := lltypes.NewFunc(retType(fa.Ret), params...)
	ft.Variadic = fa.Variadic
	return ft
}
