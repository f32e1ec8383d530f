package layout

import (
	"fmt"
	"math"
)

// PrimKind classifies a machine scalar.
type PrimKind uint8

const (
	PrimInt PrimKind = iota
	PrimF32
	PrimF64
	PrimPointer
)

// Primitive is a machine scalar: an integer of Size bytes, a float or a pointer.
type Primitive struct {
	Kind   PrimKind
	Size   int
	Signed bool
}

func (p Primitive) String() string {
	switch p.Kind {
	case PrimF32:
		return "f32"
	case PrimF64:
		return "f64"
	case PrimPointer:
		return "ptr"
	default:
		if p.Signed {
			return fmt.Sprintf("i%d", p.Size*8)
		}
		return fmt.Sprintf("u%d", p.Size*8)
	}
}

// IsFloat reports whether the primitive is a floating-point value.
func (p Primitive) IsFloat() bool { return p.Kind == PrimF32 || p.Kind == PrimF64 }

// WrappingRange is an inclusive range of valid bit patterns that wraps
// around when Start > End. Scalars wider than 64 bits always use the full
// range and never provide a niche.
type WrappingRange struct {
	Start uint64
	End   uint64
}

// Scalar is a primitive together with the bit patterns a valid value may have.
type Scalar struct {
	Prim  Primitive
	Valid WrappingRange
}

func sizeMask(size int) uint64 {
	if size >= 8 {
		return math.MaxUint64
	}
	return uint64(1)<<(uint(size)*8) - 1
}

// FullScalar returns p with every bit pattern valid.
func FullScalar(p Primitive) Scalar {
	return Scalar{Prim: p, Valid: WrappingRange{Start: 0, End: sizeMask(p.Size)}}
}

// Size returns the scalar size in bytes.
func (s Scalar) Size() int { return s.Prim.Size }

// IsFullRange reports whether every bit pattern of the scalar is valid.
func (s Scalar) IsFullRange() bool {
	if s.Prim.Size > 8 {
		return true
	}
	mask := sizeMask(s.Prim.Size)
	return (s.Valid.End-s.Valid.Start)&mask == mask
}

// Contains reports whether v is a valid bit pattern.
func (s Scalar) Contains(v uint64) bool {
	if s.Prim.Size > 8 {
		return true
	}
	mask := sizeMask(s.Prim.Size)
	v &= mask
	if s.Valid.Start <= s.Valid.End {
		return v >= s.Valid.Start && v <= s.Valid.End
	}
	return v >= s.Valid.Start || v <= s.Valid.End
}

// Niche is an invalid value range of a scalar stored at Offset.
type Niche struct {
	Offset int
	Scalar Scalar
}

// Available returns how many bit patterns the niche can still absorb.
func (n *Niche) Available() uint64 {
	if n == nil || n.Scalar.Prim.Size > 8 {
		return 0
	}
	mask := sizeMask(n.Scalar.Prim.Size)
	v := n.Scalar.Valid
	return (v.Start - v.End - 1) & mask
}

// Reserve claims count invalid values just above the valid range. It returns
// the first claimed value and the scalar with the enlarged valid range.
func (n *Niche) Reserve(count uint64) (uint64, Scalar, bool) {
	if count == 0 || count > n.Available() {
		return 0, Scalar{}, false
	}
	mask := sizeMask(n.Scalar.Prim.Size)
	start := (n.Scalar.Valid.End + 1) & mask
	s := n.Scalar
	s.Valid.End = (s.Valid.End + count) & mask
	return start, s, true
}

func nicheOf(offset int, s Scalar) *Niche {
	n := &Niche{Offset: offset, Scalar: s}
	if n.Available() == 0 {
		return nil
	}
	return n
}

func betterNiche(a, b *Niche) *Niche {
	if b == nil {
		return a
	}
	if a == nil || b.Available() > a.Available() {
		return b
	}
	return a
}

func shiftNiche(n *Niche, by int) *Niche {
	if n == nil {
		return nil
	}
	return &Niche{Offset: n.Offset + by, Scalar: n.Scalar}
}
