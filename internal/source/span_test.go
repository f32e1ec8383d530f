package source

import "testing"

func TestSpanOrdering(t *testing.T) {
	tests := []struct {
		name string
		a, b Span
		want bool
	}{
		{"same line earlier column", Span{File: 1, Line: 3, Col: 1}, Span{File: 1, Line: 3, Col: 9}, true},
		{"later line", Span{File: 1, Line: 4, Col: 1}, Span{File: 1, Line: 3, Col: 9}, false},
		{"file wins", Span{File: 1, Line: 90}, Span{File: 2, Line: 1}, true},
		{"equal", Span{File: 1, Line: 2, Col: 2}, Span{File: 1, Line: 2, Col: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Before(tt.b); got != tt.want {
				t.Errorf("Before() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileTableDedup(t *testing.T) {
	ft := NewFileTable()
	a := ft.Add("src/main.rs")
	b := ft.Add("src/./main.rs")
	if a != b {
		t.Fatalf("paths should share an id: %d vs %d", a, b)
	}
	if got := ft.Format(Span{File: a, Line: 7, Col: 3}); got != "src/main.rs:7:3" {
		t.Fatalf("Format = %q", got)
	}
	if got := ft.Format(Span{}); got != "?" {
		t.Fatalf("Format(zero) = %q", got)
	}
}

func TestFileTableReindexAfterDecode(t *testing.T) {
	ft := &FileTable{Paths: []string{"", "a.rs", "b.rs"}}
	if id := ft.Add("b.rs"); id != 2 {
		t.Fatalf("Add(b.rs) = %d, want 2", id)
	}
	if id := ft.Add("c.rs"); id != 3 {
		t.Fatalf("Add(c.rs) = %d, want 3", id)
	}
}
