package target

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPresetsValidate(t *testing.T) {
	for _, name := range PresetNames() {
		tgt, ok := Preset(name)
		if !ok {
			t.Fatalf("preset %s missing", name)
		}
		if err := tgt.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestPresetIsACopy(t *testing.T) {
	a, _ := Preset(DefaultPreset)
	a.Conventions[0].RegisterSize = 99
	b, _ := Preset(DefaultPreset)
	if b.Conventions[0].RegisterSize == 99 {
		t.Fatalf("presets must not share conventions")
	}
}

func TestMaxObjectSize(t *testing.T) {
	x64, _ := Preset("x86_64-linux-gnu")
	if got := x64.MaxObjectSize(); got != 1<<47 {
		t.Fatalf("x86_64 max object size = %d", got)
	}
	x86, _ := Preset("i686-linux-gnu")
	if got := x86.MaxObjectSize(); got != 1<<31-1 {
		t.Fatalf("i686 max object size = %d", got)
	}
}

func TestDecodeOverlaysBase(t *testing.T) {
	src := `
base = "x86_64-linux-gnu"

[target.switch]
table_min_cases = 8
table_max_spread = 2

[[target.convention]]
name = "sysv64"
llvm = "x86_64_sysvcc"
register_size = 8
max_split_regs = 4
`
	tgt, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tgt.Switch.TableMinCases != 8 || tgt.Switch.TableMaxSpread != 2 {
		t.Fatalf("switch not overridden: %+v", tgt.Switch)
	}
	c, ok := tgt.Convention("sysv64")
	if !ok || c.MaxSplitRegs != 4 {
		t.Fatalf("convention not replaced: %+v", c)
	}
	if tgt.PtrSize != 8 || tgt.Memory.InlineMax != 64 {
		t.Fatalf("base values lost: %+v", tgt)
	}
}

func TestEncodeRoundTrips(t *testing.T) {
	for _, name := range PresetNames() {
		tgt, _ := Preset(name)
		var first bytes.Buffer
		if err := Encode(&first, tgt); err != nil {
			t.Fatalf("%s: Encode: %v", name, err)
		}
		back, err := Decode(bytes.NewReader(first.Bytes()))
		if err != nil {
			t.Fatalf("%s: Decode: %v\n%s", name, err, first.String())
		}
		var second bytes.Buffer
		if err := Encode(&second, back); err != nil {
			t.Fatalf("%s: re-Encode: %v", name, err)
		}
		if first.String() != second.String() {
			t.Fatalf("%s: encoding changed after a round trip\nfirst:\n%s\nsecond:\n%s", name, first.String(), second.String())
		}
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("base = \"x86_64-linux-gnu\"\n[target]\nptr_sise = 8\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown keys") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadFileValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	src := "[target]\nptr_size = 3\nptr_align = 4\ndefault_conv = \"C\"\n"
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "ptr_size") || !strings.Contains(err.Error(), "default convention") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSupportsAtomic(t *testing.T) {
	win, _ := Preset("x86_64-windows-msvc")
	if !win.SupportsAtomic("seq_cst", 8) {
		t.Fatal("8-byte seq_cst must be supported")
	}
	if win.SupportsAtomic("seq_cst", 16) {
		t.Fatal("16-byte atomics exceed the preset width")
	}
	if win.SupportsAtomic("seq_cst", 3) {
		t.Fatal("non power of two widths are never atomic")
	}
	if win.SupportsAtomic("consume", 4) {
		t.Fatal("unknown ordering accepted")
	}
}
