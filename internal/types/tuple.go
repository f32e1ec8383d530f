package types

import (
	"fmt"
	"slices"
	"strings"
)

// TupleInfo stores metadata for a tuple type.
type TupleInfo struct {
	Elems []TypeID
}

// RegisterTuple creates or finds a structural tuple type.
func (in *Interner) RegisterTuple(elems []TypeID) TypeID {
	if len(elems) == 0 {
		return in.builtins.Unit
	}
	key := compositeKey("tuple", elems, "")
	if id, ok := in.composite[key]; ok {
		return id
	}
	in.tuples = append(in.tuples, TupleInfo{Elems: slices.Clone(elems)})
	slot := in.payloadSlot(len(in.tuples)-1, "tuple")
	id := in.internRaw(Type{Kind: KindTuple, Payload: slot})
	in.composite[key] = id
	return id
}

// TupleInfo returns tuple metadata by TypeID.
func (in *Interner) TupleInfo(id TypeID) (*TupleInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindTuple || int(tt.Payload) >= len(in.tuples) {
		return nil, false
	}
	return &in.tuples[tt.Payload], true
}

func compositeKey(kind string, elems []TypeID, extra string) string {
	var sb strings.Builder
	sb.WriteString(kind)
	for _, e := range elems {
		fmt.Fprintf(&sb, ",%d", e)
	}
	if extra != "" {
		sb.WriteString("|")
		sb.WriteString(extra)
	}
	return sb.String()
}
