package observ

import (
	"errors"
	"strings"
	"testing"
)

func TestMeasureRecordsFailureNote(t *testing.T) {
	tm := NewTimer()
	if err := tm.Measure("load", func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := errors.New("bad unit")
	if err := tm.Measure("validate", func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("Measure returned %v, want %v", err, want)
	}
	rep := tm.Report()
	if len(rep.Phases) != 2 {
		t.Fatalf("got %d phases, want 2", len(rep.Phases))
	}
	if rep.Phases[0].Name != "load" || rep.Phases[0].Note != "" {
		t.Fatalf("unexpected first phase %+v", rep.Phases[0])
	}
	if rep.Phases[1].Note != "failed: bad unit" {
		t.Fatalf("unexpected note %q", rep.Phases[1].Note)
	}
	if !strings.Contains(tm.Summary(), "validate") {
		t.Fatalf("summary misses phase:\n%s", tm.Summary())
	}
}

func TestEndIgnoresUnknownIndex(t *testing.T) {
	tm := NewTimer()
	if d := tm.End(3, ""); d != 0 {
		t.Fatalf("End on unknown index returned %v", d)
	}
	if rep := tm.Report(); len(rep.Phases) != 0 {
		t.Fatalf("unexpected phases %+v", rep.Phases)
	}
}
