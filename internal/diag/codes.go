package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Loading the unit and its target
	IOInfo         Code = 1000
	IOLoadUnit     Code = 1001
	IOCacheFailure Code = 1002

	TgtInfo     Code = 2000
	TgtUnknown  Code = 2001
	TgtInvalid  Code = 2002
	TgtConflict Code = 2003

	// Malformed input units
	MirInfo           Code = 3000
	MirInvalid        Code = 3001
	MirSchemaMismatch Code = 3002
	MirEntryConflict  Code = 3003

	// Layout Resolver
	LayInfo             Code = 4000
	LayRecursiveUnsized Code = 4001
	LaySizeOverflow     Code = 4002
	LayUnsized          Code = 4003
	LayInvalidAttrs     Code = 4004
	LayUnknownType      Code = 4005

	// ABI Classifier
	AbiInfo            Code = 5000
	AbiUnsupportedConv Code = 5001
	AbiNotAFunction    Code = 5002
	AbiLayout          Code = 5003

	// Intrinsic & Builtin Lowering
	IntInfo              Code = 6000
	IntUnsupported       Code = 6001
	IntAtomicUnsupported Code = 6002
	IntBadCall           Code = 6003

	// Function assembly
	LowInfo      Code = 7000
	LowFailure   Code = 7001
	LowCancelled Code = 7002

	ObsInfo     Code = 8000
	ObsTimings  Code = 8001
	ObsCacheHit Code = 8002
)

var (
	codeDescription = map[Code]string{
		UnknownCode:          "Unknown error",
		IOInfo:               "I/O information",
		IOLoadUnit:           "Cannot load MIR unit",
		IOCacheFailure:       "Lowering cache failure",
		TgtInfo:              "Target information",
		TgtUnknown:           "Unknown target preset",
		TgtInvalid:           "Invalid target descriptor",
		TgtConflict:          "Conflicting target selection",
		MirInfo:              "MIR information",
		MirInvalid:           "Malformed MIR unit",
		MirSchemaMismatch:    "MIR unit schema mismatch",
		MirEntryConflict:     "Entry shim conflicts with an existing main",
		LayInfo:              "Layout information",
		LayRecursiveUnsized:  "Recursive type has infinite size",
		LaySizeOverflow:      "Type is too big for the target",
		LayUnsized:           "Type has no static size",
		LayInvalidAttrs:      "Conflicting layout attributes",
		LayUnknownType:       "Unknown type",
		AbiInfo:              "ABI information",
		AbiUnsupportedConv:   "Calling convention not supported by target",
		AbiNotAFunction:      "Signature is not a function type",
		AbiLayout:            "Cannot classify parameter or return type",
		IntInfo:              "Intrinsic information",
		IntUnsupported:       "Builtin needs assembler support",
		IntAtomicUnsupported: "Atomic operation not supported by target",
		IntBadCall:           "Malformed builtin call",
		LowInfo:              "Lowering information",
		LowFailure:           "Function lowering failed",
		LowCancelled:         "Lowering cancelled",
		ObsInfo:              "Observability information",
		ObsTimings:           "Session timings",
		ObsCacheHit:          "Lowered module served from cache",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("TGT%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("MIR%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("LAY%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("ABI%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("INT%04d", ic)
	case ic >= 7000 && ic < 8000:
		return fmt.Sprintf("LOW%04d", ic)
	case ic >= 8000 && ic < 9000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
