package target

import (
	"maps"
	"slices"
)

var allOrderings = []string{"unordered", "monotonic", "acquire", "release", "acq_rel", "seq_cst"}

func fastCold(reg int) []Convention {
	return []Convention{
		{Name: "fast", LLVM: "fastcc", RegisterSize: reg, MaxSplitRegs: 2, ReturnMaxSize: reg * 2},
		{Name: "cold", LLVM: "coldcc", RegisterSize: reg, MaxSplitRegs: 2},
	}
}

var presets = map[string]func() Target{
	"x86_64-linux-gnu": func() Target {
		sysv := Convention{Name: "sysv64", LLVM: "x86_64_sysvcc", RegisterSize: 8, MaxSplitRegs: 2, FloatChunks: true, ReturnMaxSize: 16}
		c := sysv
		c.Name, c.LLVM = "C", "ccc"
		return Target{
			Triple:      "x86_64-unknown-linux-gnu",
			DataLayout:  "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-i128:128-f80:128-n8:16:32:64-S128",
			PtrSize:     8,
			PtrAlign:    8,
			I64Align:    8,
			F64Align:    8,
			I128Align:   16,
			DefaultConv: "C",
			Conventions: append([]Convention{c, sysv, win64()}, fastCold(8)...),
			Switch:      SwitchConfig{TableMinCases: 4, TableMaxSpread: 3},
			Memory:      MemoryConfig{InlineMax: 64, Intrinsics: true},
			Atomics:     AtomicConfig{MaxWidth: 16, Orderings: allOrderings},
			Vector:      VectorConfig{Widths: []int{16, 32}},
		}
	},
	"aarch64-linux-gnu": func() Target {
		aapcs := Convention{Name: "aapcs64", LLVM: "ccc", RegisterSize: 8, MaxSplitRegs: 2, HomogeneousFloatMax: 4, ReturnMaxSize: 16}
		c := aapcs
		c.Name = "C"
		return Target{
			Triple:      "aarch64-unknown-linux-gnu",
			DataLayout:  "e-m:e-i8:8:32-i16:16:32-i64:64-i128:128-n32:64-S128",
			PtrSize:     8,
			PtrAlign:    8,
			I64Align:    8,
			F64Align:    8,
			I128Align:   16,
			DefaultConv: "C",
			Conventions: append([]Convention{c, aapcs}, fastCold(8)...),
			Switch:      SwitchConfig{TableMinCases: 4, TableMaxSpread: 3},
			Memory:      MemoryConfig{InlineMax: 64, Intrinsics: true},
			Atomics:     AtomicConfig{MaxWidth: 16, Orderings: allOrderings},
			Vector:      VectorConfig{Widths: []int{8, 16}},
		}
	},
	"x86_64-windows-msvc": func() Target {
		c := win64()
		c.Name, c.LLVM = "C", "ccc"
		return Target{
			Triple:      "x86_64-pc-windows-msvc",
			DataLayout:  "e-m:w-p270:32:32-p271:32:32-p272:64:64-i64:64-i128:128-f80:128-n8:16:32:64-S128",
			PtrSize:     8,
			PtrAlign:    8,
			I64Align:    8,
			F64Align:    8,
			I128Align:   16,
			DefaultConv: "C",
			Conventions: append([]Convention{c, win64()}, fastCold(8)...),
			Switch:      SwitchConfig{TableMinCases: 4, TableMaxSpread: 3},
			Memory:      MemoryConfig{InlineMax: 64, Intrinsics: true},
			Atomics:     AtomicConfig{MaxWidth: 8, Orderings: allOrderings},
			Vector:      VectorConfig{Widths: []int{16}},
		}
	},
	"i686-linux-gnu": func() Target {
		return Target{
			Triple:      "i686-unknown-linux-gnu",
			DataLayout:  "e-m:e-p:32:32-p270:32:32-p271:32:32-p272:64:64-i128:128-f64:32:64-f80:32-n8:16:32-S128",
			PtrSize:     4,
			PtrAlign:    4,
			I64Align:    4,
			F64Align:    4,
			I128Align:   16,
			DefaultConv: "C",
			Conventions: append([]Convention{
				{Name: "C", LLVM: "ccc", RegisterSize: 4, MaxSplitRegs: 2, ReturnMaxSize: 8},
			}, fastCold(4)...),
			Switch:  SwitchConfig{TableMinCases: 4, TableMaxSpread: 3},
			Memory:  MemoryConfig{InlineMax: 32, Intrinsics: true},
			Atomics: AtomicConfig{MaxWidth: 8, Orderings: allOrderings},
			Vector:  VectorConfig{Widths: []int{16}},
			Checked: CheckedConfig{ManualMulWidths: []int{128}},
		}
	},
}

func win64() Convention {
	return Convention{Name: "win64", LLVM: "win64cc", RegisterSize: 8, MaxSplitRegs: 1, PowerOfTwoOnly: true}
}

// DefaultPreset is used when no target is requested.
const DefaultPreset = "x86_64-linux-gnu"

// Preset returns a fresh copy of the named built-in target.
func Preset(name string) (Target, bool) {
	mk, ok := presets[name]
	if !ok {
		return Target{}, false
	}
	return mk(), true
}

// PresetNames lists the built-in targets in sorted order.
func PresetNames() []string {
	return slices.Sorted(maps.Keys(presets))
}
