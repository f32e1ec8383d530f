package layout

import (
	"fmt"
	"strings"

	"lowir/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursiveUnsized indicates a recursive type with no fixed size.
	LayoutErrRecursiveUnsized LayoutErrorKind = iota + 1
	// LayoutErrSizeOverflow indicates a size beyond the target's object limit.
	LayoutErrSizeOverflow
	// LayoutErrUnsized indicates a by-value use of a dynamically sized type.
	LayoutErrUnsized
	// LayoutErrInvalidAttrs indicates conflicting packed/align attributes.
	LayoutErrInvalidAttrs
	// LayoutErrUnknownType indicates a TypeID the interner does not know.
	LayoutErrUnknownType
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  types.TypeID
	Cycle []types.TypeID // for LayoutErrRecursiveUnsized
	Size  uint64         // for LayoutErrSizeOverflow, saturated
	Limit uint64         // for LayoutErrSizeOverflow
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursiveUnsized:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite size (type#%d)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrSizeOverflow:
		return fmt.Sprintf("type#%d is too big for the target: size %d exceeds %d", e.Type, e.Size, e.Limit)
	case LayoutErrUnsized:
		return fmt.Sprintf("type#%d has no static size", e.Type)
	case LayoutErrInvalidAttrs:
		return fmt.Sprintf("invalid layout attrs on type#%d: packed conflicts with align", e.Type)
	case LayoutErrUnknownType:
		return fmt.Sprintf("unknown type#%d", e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}
