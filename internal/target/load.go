package target

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/BurntSushi/toml"
)

type targetFile struct {
	Base   string `toml:"base"`
	Target Target `toml:"target"`
}

// LoadFile decodes a target descriptor from a TOML file.
func LoadFile(path string) (Target, error) {
	var f targetFile
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return Target{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	t, err := resolve(f, meta)
	if err != nil {
		return Target{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Decode reads a target descriptor from r.
func Decode(r io.Reader) (Target, error) {
	var f targetFile
	meta, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return Target{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return resolve(f, meta)
}

// Encode writes t in the format read by Decode and LoadFile.
func Encode(w io.Writer, t Target) error {
	return toml.NewEncoder(w).Encode(targetFile{Target: t})
}

// resolve overlays the keys present in the file onto an optional base preset.
func resolve(f targetFile, meta toml.MetaData) (Target, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Target{}, fmt.Errorf("unknown keys: %v", keys)
	}
	if f.Base == "" {
		return f.Target, f.Target.Validate()
	}
	base, ok := Preset(f.Base)
	if !ok {
		return Target{}, fmt.Errorf("unknown base target %q", f.Base)
	}
	over := f.Target
	set := func(key ...string) bool { return meta.IsDefined(append([]string{"target"}, key...)...) }
	if set("triple") {
		base.Triple = over.Triple
	}
	if set("datalayout") {
		base.DataLayout = over.DataLayout
	}
	if set("ptr_size") {
		base.PtrSize = over.PtrSize
	}
	if set("ptr_align") {
		base.PtrAlign = over.PtrAlign
	}
	if set("i64_align") {
		base.I64Align = over.I64Align
	}
	if set("f64_align") {
		base.F64Align = over.F64Align
	}
	if set("i128_align") {
		base.I128Align = over.I128Align
	}
	if set("default_conv") {
		base.DefaultConv = over.DefaultConv
	}
	for _, c := range over.Conventions {
		if i := slices.IndexFunc(base.Conventions, func(b Convention) bool { return b.Name == c.Name }); i >= 0 {
			base.Conventions[i] = c
		} else {
			base.Conventions = append(base.Conventions, c)
		}
	}
	if set("switch") {
		base.Switch = over.Switch
	}
	if set("memory") {
		base.Memory = over.Memory
	}
	if set("atomics") {
		base.Atomics = over.Atomics
	}
	if set("vector") {
		base.Vector = over.Vector
	}
	if set("checked") {
		base.Checked = over.Checked
	}
	return base, base.Validate()
}

// Validate rejects descriptors lowering cannot work with.
func (t *Target) Validate() error {
	var errs []error
	switch t.PtrSize {
	case 4, 8:
	default:
		errs = append(errs, fmt.Errorf("ptr_size must be 4 or 8, got %d", t.PtrSize))
	}
	if t.PtrAlign <= 0 || t.PtrAlign&(t.PtrAlign-1) != 0 {
		errs = append(errs, fmt.Errorf("ptr_align must be a power of two, got %d", t.PtrAlign))
	}
	if _, ok := t.Convention(""); !ok {
		errs = append(errs, fmt.Errorf("default convention %q is not declared", t.DefaultConv))
	}
	seen := make(map[string]bool, len(t.Conventions))
	for _, c := range t.Conventions {
		if seen[c.Name] {
			errs = append(errs, fmt.Errorf("convention %q declared twice", c.Name))
		}
		seen[c.Name] = true
		if c.RegisterSize <= 0 {
			errs = append(errs, fmt.Errorf("convention %q: register_size must be positive", c.Name))
		}
		if c.MaxSplitRegs < 0 || c.HomogeneousFloatMax < 0 || c.ReturnMaxSize < 0 {
			errs = append(errs, fmt.Errorf("convention %q: negative threshold", c.Name))
		}
	}
	if t.Switch.TableMinCases < 0 || t.Switch.TableMaxSpread < 0 {
		errs = append(errs, errors.New("switch thresholds must not be negative"))
	}
	for _, o := range t.Atomics.Orderings {
		if !slices.Contains(allOrderings, o) {
			errs = append(errs, fmt.Errorf("unknown atomic ordering %q", o))
		}
	}
	return errors.Join(errs...)
}
