package types

import (
	"fmt"
	"slices"
)

// CallConv tags a function signature with a calling convention. The empty
// tag selects the target's default convention.
type CallConv string

const (
	ConvDefault CallConv = ""
	ConvC       CallConv = "C"
	ConvSysV64  CallConv = "sysv64"
	ConvWin64   CallConv = "win64"
	ConvAAPCS64 CallConv = "aapcs64"
	ConvFast    CallConv = "fast"
	ConvCold    CallConv = "cold"
)

// FnInfo stores metadata for function pointer types.
type FnInfo struct {
	Params   []TypeID
	Result   TypeID
	Conv     CallConv
	Variadic bool
}

// RegisterFn creates or finds a function signature type.
func (in *Interner) RegisterFn(params []TypeID, result TypeID, conv CallConv, variadic bool) TypeID {
	key := compositeKey("fn", append(slices.Clone(params), result), fmt.Sprintf("%s/%t", conv, variadic))
	if id, ok := in.composite[key]; ok {
		return id
	}
	in.fns = append(in.fns, FnInfo{
		Params:   slices.Clone(params),
		Result:   result,
		Conv:     conv,
		Variadic: variadic,
	})
	slot := in.payloadSlot(len(in.fns)-1, "fn")
	id := in.internRaw(Type{Kind: KindFnPtr, Payload: slot})
	in.composite[key] = id
	return id
}

// FnInfo retrieves function type metadata by TypeID.
func (in *Interner) FnInfo(id TypeID) (*FnInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFnPtr {
		return nil, false
	}
	if int(tt.Payload) >= len(in.fns) {
		return nil, false
	}
	return &in.fns[tt.Payload], true
}
