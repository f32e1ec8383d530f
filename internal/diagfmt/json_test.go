package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"lowir/internal/diag"
	"lowir/internal/source"
)

func TestJSONBasic(t *testing.T) {
	bag, files := sampleBag(t)
	var buf bytes.Buffer
	if err := JSON(&buf, bag, files, JSONOpts{PathMode: PathModeBasename}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if out.Count != 2 || len(out.Diagnostics) != 2 {
		t.Fatalf("count = %d, diagnostics = %d", out.Count, len(out.Diagnostics))
	}
	d := out.Diagnostics[0]
	if d.Severity != "ERROR" || d.Code != "LOW7001" || d.Function != "demo::add" {
		t.Errorf("unexpected diagnostic %+v", d)
	}
	if d.Location != (LocationJSON{File: "lib.rs", Line: 4, Col: 9}) {
		t.Errorf("location = %+v", d.Location)
	}
	if len(d.Notes) != 0 {
		t.Errorf("notes included without IncludeNotes: %+v", d.Notes)
	}
	if out.Diagnostics[1].Location.File != "" {
		t.Errorf("unknown span should have no file, got %+v", out.Diagnostics[1].Location)
	}
}

func TestJSONKeepsTimingNotes(t *testing.T) {
	bag := diag.NewBag(4)
	bag.Add(diag.New(diag.SevInfo, diag.ObsTimings, source.Span{}, "timings").
		WithNote(source.Span{}, `{"kind":"lower"}`))
	out := BuildDiagnosticsOutput(bag, source.NewFileTable(), JSONOpts{Max: 1})
	if len(out.Diagnostics) != 1 || len(out.Diagnostics[0].Notes) != 1 {
		t.Fatalf("timing notes dropped: %+v", out)
	}
	if out.Diagnostics[0].Notes[0].Message != `{"kind":"lower"}` {
		t.Fatalf("note = %q", out.Diagnostics[0].Notes[0].Message)
	}
}
