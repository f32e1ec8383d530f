package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity. LevelStage and above admit every Scope
// up to the one of the same name.
type Level uint8

const (
	LevelOff Level = iota
	// LevelError records nothing while running; a ring tracer is still
	// dumped when the command fails.
	LevelError
	LevelStage
	LevelFunc
	LevelBlock
)

var levelNames = [...]string{
	LevelOff:   "off",
	LevelError: "error",
	LevelStage: "stage",
	LevelFunc:  "func",
	LevelBlock: "block",
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel converts a --trace-level value to a Level.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(s)
	for l, name := range levelNames {
		if name == s {
			return Level(l), nil //nolint:gosec // index of a short table
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: %s)", s, strings.Join(levelNames[:], "|"))
}

// ShouldEmit reports whether events of scope are recorded at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	if l <= LevelError {
		return false
	}
	return scope <= Scope(l)
}
