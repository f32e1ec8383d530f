package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"lowir/internal/diag"
	"lowir/internal/source"
)

func sampleBag(t *testing.T) (*diag.Bag, *source.FileTable) {
	t.Helper()
	files := source.NewFileTable()
	id := files.Add("/home/user/project/src/lib.rs")
	bag := diag.NewBag(10)
	d := diag.NewError(diag.LowFailure, source.Span{File: id, Line: 4, Col: 9}, "bb2: operand type mismatch").
		InFunc("demo::add").
		WithNote(source.Span{File: id, Line: 3, Col: 1}, "function starts here")
	bag.Add(d)
	bag.Add(diag.New(diag.SevWarning, diag.LowCancelled, source.Span{}, "2 of 5 functions were not lowered"))
	return bag, files
}

func TestPathModes(t *testing.T) {
	bag, files := sampleBag(t)
	tests := []struct {
		name string
		opts PrettyOpts
		want string
	}{
		{"auto", PrettyOpts{}, "/home/user/project/src/lib.rs:4:9: "},
		{"relative", PrettyOpts{PathMode: PathModeRelative, BaseDir: "/home/user/project"}, "src/lib.rs:4:9: "},
		{"basename", PrettyOpts{PathMode: PathModeBasename}, "lib.rs:4:9: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Pretty(&buf, bag, files, tt.opts); err != nil {
				t.Fatalf("Pretty: %v", err)
			}
			first := strings.SplitN(buf.String(), "\n", 2)[0]
			if !strings.HasPrefix(first, tt.want) {
				t.Fatalf("first line %q does not start with %q", first, tt.want)
			}
		})
	}
}

func TestPrettyLayout(t *testing.T) {
	bag, files := sampleBag(t)
	var buf bytes.Buffer
	err := Pretty(&buf, bag, files, PrettyOpts{PathMode: PathModeBasename, ShowNotes: true})
	if err != nil {
		t.Fatalf("Pretty: %v", err)
	}
	want := "lib.rs:4:9: error[LOW7001]: bb2: operand type mismatch\n" +
		"  in demo::add\n" +
		"  note: lib.rs:3:1: function starts here\n" +
		"warning[LOW7002]: 2 of 5 functions were not lowered\n"
	if buf.String() != want {
		t.Fatalf("output mismatch\n got: %q\nwant: %q", buf.String(), want)
	}
}

func TestPrettyHidesNotesAndHonoursMax(t *testing.T) {
	bag, files := sampleBag(t)
	var buf bytes.Buffer
	if err := Pretty(&buf, bag, files, PrettyOpts{Max: 1}); err != nil {
		t.Fatalf("Pretty: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "note:") {
		t.Errorf("notes printed without ShowNotes:\n%s", out)
	}
	if strings.Contains(out, "LOW7002") {
		t.Errorf("Max ignored:\n%s", out)
	}
}

func TestPrettyColor(t *testing.T) {
	bag, files := sampleBag(t)
	var buf bytes.Buffer
	if err := Pretty(&buf, bag, files, PrettyOpts{Color: true}); err != nil {
		t.Fatalf("Pretty: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected ANSI escapes with Color set:\n%q", buf.String())
	}
}
