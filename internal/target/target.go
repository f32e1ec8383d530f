package target

import "slices"

// Target is the read-only description of the code generation target that
// lowering consults. It is supplied once per session and never mutated.
type Target struct {
	Triple     string `toml:"triple"`
	DataLayout string `toml:"datalayout"`

	PtrSize   int `toml:"ptr_size"`  // bytes
	PtrAlign  int `toml:"ptr_align"` // bytes
	I64Align  int `toml:"i64_align"`
	F64Align  int `toml:"f64_align"`
	I128Align int `toml:"i128_align"`

	DefaultConv string       `toml:"default_conv"`
	Conventions []Convention `toml:"convention"`

	Switch  SwitchConfig  `toml:"switch"`
	Memory  MemoryConfig  `toml:"memory"`
	Atomics AtomicConfig  `toml:"atomics"`
	Vector  VectorConfig  `toml:"vector"`
	Checked CheckedConfig `toml:"checked"`
}

// Convention holds the classification thresholds for one calling convention.
type Convention struct {
	Name string `toml:"name"`
	// LLVM is the calling convention keyword placed on functions and calls
	// ("ccc", "fastcc", "coldcc", "x86_64_sysvcc", "win64cc").
	LLVM string `toml:"llvm"`

	RegisterSize int `toml:"register_size"`
	// MaxSplitRegs bounds PassSplit; aggregates above RegisterSize*MaxSplitRegs
	// go by reference.
	MaxSplitRegs int `toml:"max_split_regs"`
	// PowerOfTwoOnly restricts direct aggregates to 1, 2, 4 or 8 bytes.
	PowerOfTwoOnly bool `toml:"power_of_two_only"`
	// HomogeneousFloatMax is the largest member count of a homogeneous float
	// aggregate passed in float registers; 0 disables the rule.
	HomogeneousFloatMax int `toml:"homogeneous_float_max"`
	// FloatChunks classifies split chunks made only of floats as float parts.
	FloatChunks bool `toml:"float_chunks"`
	// ReturnMaxSize is the largest return value that is not returned through a
	// hidden pointer. Zero means RegisterSize.
	ReturnMaxSize int `toml:"return_max_size"`
}

// SwitchConfig selects between jump-table and compare-cascade lowering.
type SwitchConfig struct {
	TableMinCases  int `toml:"table_min_cases"`
	TableMaxSpread int `toml:"table_max_spread"`
}

// MemoryConfig bounds inline expansion of block memory operations.
type MemoryConfig struct {
	InlineMax int `toml:"inline_max"`
	// Intrinsics enables llvm.mem* calls for large constant sizes.
	Intrinsics bool `toml:"intrinsics"`
}

// AtomicConfig lists the atomic operations the target can express.
type AtomicConfig struct {
	MaxWidth  int      `toml:"max_width"` // bytes
	Orderings []string `toml:"orderings"`
}

// VectorConfig lists native vector register widths in bytes.
type VectorConfig struct {
	Widths []int `toml:"widths"`
}

// CheckedConfig lists integer widths (bits) whose overflow-checking
// multiplication must be expanded manually.
type CheckedConfig struct {
	ManualMulWidths []int `toml:"manual_mul_widths"`
}

// Convention returns the convention for name; the empty name selects the default.
func (t *Target) Convention(name string) (*Convention, bool) {
	if t == nil {
		return nil, false
	}
	if name == "" {
		name = t.DefaultConv
	}
	for i := range t.Conventions {
		if t.Conventions[i].Name == name {
			return &t.Conventions[i], true
		}
	}
	return nil, false
}

// MaxObjectSize is the largest size in bytes any single type may have.
func (t *Target) MaxObjectSize() uint64 {
	if t.PtrSize >= 8 {
		return 1 << 47
	}
	return 1<<(uint(t.PtrSize)*8-1) - 1
}

// ScalarAlign returns the ABI alignment of an integer or float of size bytes.
func (t *Target) ScalarAlign(size int, float bool) int {
	switch size {
	case 8:
		if float {
			return orDefault(t.F64Align, 8)
		}
		return orDefault(t.I64Align, 8)
	case 16:
		return orDefault(t.I128Align, 16)
	default:
		if size <= 0 {
			return 1
		}
		return size
	}
}

// HasVectorWidth reports whether bytes is a native vector register width.
func (t *Target) HasVectorWidth(bytes int) bool {
	return slices.Contains(t.Vector.Widths, bytes)
}

// SupportsAtomic reports whether ordering is expressible at width bytes.
func (t *Target) SupportsAtomic(ordering string, width int) bool {
	if width <= 0 || width > t.Atomics.MaxWidth || width&(width-1) != 0 {
		return false
	}
	return slices.Contains(t.Atomics.Orderings, ordering)
}

// ManualMul reports whether checked multiplication of bits-wide integers has
// no native overflow intrinsic on this target.
func (t *Target) ManualMul(bits int) bool {
	return slices.Contains(t.Checked.ManualMulWidths, bits)
}

// EffectiveReturnMax resolves the zero default of ReturnMaxSize.
func (c *Convention) EffectiveReturnMax() int {
	if c.ReturnMaxSize > 0 {
		return c.ReturnMaxSize
	}
	return c.RegisterSize
}

// SplitLimit is the largest aggregate passed in registers.
func (c *Convention) SplitLimit() int {
	if c.MaxSplitRegs <= 1 {
		return c.RegisterSize
	}
	return c.RegisterSize * c.MaxSplitRegs
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
