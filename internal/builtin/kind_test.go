package builtin

import "testing"

func TestEveryKindHasNameAndCategory(t *testing.T) {
	seen := make(map[string]Kind)
	for k := Invalid + 1; k < NumKinds; k++ {
		name := k.String()
		if name == "" {
			t.Fatalf("kind %d has no name", k)
		}
		if k.Category() == CatInvalid {
			t.Errorf("%s has no category", name)
		}
		if prev, dup := seen[name]; dup {
			t.Errorf("%s used by %d and %d", name, prev, k)
		}
		seen[name] = k
		if got, ok := Lookup(name); !ok || got != k {
			t.Errorf("Lookup(%q) = %d, %v", name, got, ok)
		}
	}
}

func TestOrderingRoundTrip(t *testing.T) {
	for o := Unordered; o <= SeqCst; o++ {
		got, ok := ParseOrdering(o.String())
		if !ok || got != o {
			t.Errorf("ParseOrdering(%q) = %v, %v", o, got, ok)
		}
	}
	if o, ok := ParseOrdering("relaxed"); !ok || o != Monotonic {
		t.Fatalf("relaxed must alias monotonic")
	}
	if _, ok := ParseOrdering("consume"); ok {
		t.Fatalf("consume is not a supported ordering")
	}
}
