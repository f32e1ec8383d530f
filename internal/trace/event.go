package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	// KindMark is an instant lowering event such as a cache hit or a
	// skipped function.
	KindMark
	KindHeartbeat
)

var kindNames = [...]string{
	KindSpanBegin: "begin",
	KindSpanEnd:   "end",
	KindMark:      "mark",
	KindHeartbeat: "heartbeat",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Scope is the granularity of an event, coarsest first. A run lowers one
// unit; it is split into session stages, each stage lowers functions, and
// each function translates blocks.
type Scope uint8

const (
	ScopeRun Scope = iota + 1
	ScopeStage
	ScopeFunc
	ScopeBlock
)

var scopeNames = [...]string{
	ScopeRun:   "run",
	ScopeStage: "stage",
	ScopeFunc:  "func",
	ScopeBlock: "block",
}

func (s Scope) String() string {
	if int(s) < len(scopeNames) && scopeNames[s] != "" {
		return scopeNames[s]
	}
	return "unknown"
}

// Event is one trace record.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	// Lane is the worker that produced the event; 0 is the driver itself.
	Lane   uint64
	Name   string // "lower", "fn:main", "bb3", "cache-hit"
	Detail string
	Extra  map[string]string
}
