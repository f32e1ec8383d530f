package builtin

import "fmt"

// Ordering is a memory-ordering tag attached to atomic builtins.
type Ordering uint8

const (
	OrderingNone Ordering = iota
	Unordered
	Monotonic
	Acquire
	Release
	AcqRel
	SeqCst
)

var orderingNames = [...]string{
	OrderingNone: "",
	Unordered:    "unordered",
	Monotonic:    "monotonic",
	Acquire:      "acquire",
	Release:      "release",
	AcqRel:       "acq_rel",
	SeqCst:       "seq_cst",
}

func (o Ordering) String() string {
	if int(o) < len(orderingNames) {
		return orderingNames[o]
	}
	return fmt.Sprintf("ordering(%d)", o)
}

// ParseOrdering resolves an ordering tag; "relaxed" is accepted for monotonic.
func ParseOrdering(s string) (Ordering, bool) {
	if s == "relaxed" {
		return Monotonic, true
	}
	for i, n := range orderingNames {
		if n != "" && n == s {
			return Ordering(i), true //nolint:gosec // index into a short table
		}
	}
	return OrderingNone, false
}
