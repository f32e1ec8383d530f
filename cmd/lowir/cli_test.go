package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"lowir/internal/diag"
	"lowir/internal/driver"
	"lowir/internal/source"
)

func TestReadUIMode(t *testing.T) {
	cases := map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, " on ": uiModeOn, "off": uiModeOff}
	for in, want := range cases {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Errorf("readUIMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Error("expected an error for an unknown mode")
	}
	if !shouldUseTUI(uiModeOn) || shouldUseTUI(uiModeOff) {
		t.Error("explicit modes must win over terminal detection")
	}
}

func TestTablePadsByDisplayWidth(t *testing.T) {
	tb := &table{header: []string{"NAME", "SIZE"}}
	tb.add("ширина", "8")
	tb.add("x", "16")
	var buf bytes.Buffer
	if err := tb.write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "NAME    SIZE\nширина  8\nx       16\n"
	if buf.String() != want {
		t.Fatalf("table mismatch\n got: %q\nwant: %q", buf.String(), want)
	}
}

func TestWriteResultEmitModes(t *testing.T) {
	res := &driver.Result{IR: "define void @f() {\n}\n", Funcs: []string{"f", "g"}}
	cases := []struct {
		emit string
		want string
	}{
		{"ll", res.IR},
		{"funcs", "f\ng\n"},
		{"none", ""},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		if err := writeResult(&buf, lowerFlags{output: "-", emit: tc.emit}, res); err != nil {
			t.Fatalf("emit %s: %v", tc.emit, err)
		}
		if buf.String() != tc.want {
			t.Errorf("emit %s wrote %q, want %q", tc.emit, buf.String(), tc.want)
		}
	}
}

func TestLoweringFailedCountsJoinedErrors(t *testing.T) {
	err := loweringFailed(errors.Join(errors.New("a"), errors.New("b"), errors.New("c")))
	if err.Error() != "lowering failed with 3 errors" {
		t.Fatalf("got %q", err)
	}
	single := errors.New("boom")
	if err := loweringFailed(single); !errors.Is(err, single) {
		t.Fatalf("single error not wrapped: %v", err)
	}
}

func TestPrintDiagnosticsShortAndQuiet(t *testing.T) {
	bag := diag.NewBag(8)
	bag.Add(diag.NewError(diag.LowFailure, source.Span{}, "bb0: bad operand").InFunc("f"))
	bag.Add(diag.New(diag.SevInfo, diag.ObsCacheHit, source.Span{}, "served from cache"))

	var buf bytes.Buffer
	if err := printDiagnostics(&buf, withoutInfo(bag), diagOutput{format: "short"}); err != nil {
		t.Fatalf("printDiagnostics: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "error LOW7001 - in f: bb0: bad operand") {
		t.Errorf("unexpected short output %q", out)
	}
	if strings.Contains(out, "cache") {
		t.Errorf("info diagnostic survived quiet filtering: %q", out)
	}
}
