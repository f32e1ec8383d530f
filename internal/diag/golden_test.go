package diag

import (
	"sync"
	"testing"

	"lowir/internal/source"
)

func TestFormatShortDiagnostics(t *testing.T) {
	files := source.NewFileTable()
	userFile := files.Add("./testdata/sample.src")

	diags := []Diagnostic{
		{
			Severity: SevWarning,
			Code:     ObsCacheHit,
			Message:  "served from cache",
		},
		{
			Severity: SevError,
			Code:     IntAtomicUnsupported,
			Message:  "first line\nsecond",
			Primary:  source.Span{File: userFile, Line: 2, Col: 1},
			Func:     "swap",
			Notes: []Note{
				{Span: source.Span{File: userFile, Line: 1, Col: 4}, Msg: "note line"},
			},
		},
		{
			Severity: SevError,
			Code:     LayUnsized,
			Message:  "another",
			Primary:  source.Span{File: userFile, Line: 2, Col: 1},
		},
	}

	expected := "warning OBS8002 - served from cache\n" +
		"note INT6002 testdata/sample.src:1:4 in swap: note line\n" +
		"error LAY4003 testdata/sample.src:2:1 another\n" +
		"error INT6002 testdata/sample.src:2:1 in swap: first line second"

	if got := FormatShortDiagnostics(diags, files, true); got != expected {
		t.Fatalf("unexpected short diagnostics:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}

func TestBagLimitAndConcurrentAdd(t *testing.T) {
	bag := NewBag(50)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				bag.Add(NewError(LowFailure, source.Span{}, "boom"))
			}
		}()
	}
	wg.Wait()
	if bag.Len() != 50 {
		t.Fatalf("bag holds %d diagnostics, want 50", bag.Len())
	}
	if !bag.HasErrors() {
		t.Fatal("expected HasErrors")
	}
	if !bag.HasWarnings() {
		t.Fatal("HasWarnings must include errors")
	}
}

func TestBagSortAndDedup(t *testing.T) {
	bag := NewBag(10)
	at := func(line uint32) source.Span { return source.Span{File: 1, Line: line, Col: 1} }
	bag.Add(NewError(LowFailure, at(3), "late"))
	bag.Add(New(SevWarning, LowInfo, at(1), "warn"))
	bag.Add(NewError(LowFailure, at(1), "early"))
	bag.Add(NewError(LowFailure, at(3), "late"))

	bag.Dedup()
	bag.Sort()
	items := bag.Items()
	if len(items) != 3 {
		t.Fatalf("got %d items after dedup, want 3", len(items))
	}
	if items[0].Message != "early" || items[1].Message != "warn" || items[2].Message != "late" {
		t.Fatalf("unexpected order: %q %q %q", items[0].Message, items[1].Message, items[2].Message)
	}
}

func TestMergeGrowsLimit(t *testing.T) {
	a := NewBag(1)
	a.Add(NewError(LowFailure, source.Span{}, "a"))
	b := NewBag(2)
	b.Add(NewError(LowFailure, source.Span{}, "b"))
	b.Add(NewError(LowFailure, source.Span{}, "c"))
	a.Merge(b)
	if a.Len() != 3 || a.Cap() != 3 {
		t.Fatalf("merged bag len=%d cap=%d, want 3/3", a.Len(), a.Cap())
	}
}
