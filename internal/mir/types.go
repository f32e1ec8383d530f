package mir

import (
	"lowir/internal/source"
	"lowir/internal/types"
)

type BlockID int32
type LocalID int32
type StaticID int32

const (
	NoBlockID  BlockID  = -1
	NoLocalID  LocalID  = -1
	NoStaticID StaticID = -1
)

type LocalFlags uint8

const (
	LocalFlagMut LocalFlags = 1 << iota
	LocalFlagTemp
	LocalFlagArg
)

type Local struct {
	Type  types.TypeID
	Flags LocalFlags
	Name  string
	Span  source.Span
}

type PlaceProjKind uint8

const (
	PlaceProjDeref PlaceProjKind = iota
	PlaceProjField
	PlaceProjIndex
	// PlaceProjConstIndex indexes with a constant, counted from the end of
	// the sequence when FromEnd is set.
	PlaceProjConstIndex
	// PlaceProjDowncast narrows an enum place to one variant so that
	// following field projections address that variant's fields.
	PlaceProjDowncast
)

type PlaceProj struct {
	Kind PlaceProjKind

	FieldIdx   int
	IndexLocal LocalID
	Offset     uint64
	FromEnd    bool
	Variant    int
}

type PlaceKind uint8

const (
	PlaceLocal PlaceKind = iota
	PlaceStatic
)

type Place struct {
	Kind   PlaceKind
	Local  LocalID
	Static StaticID
	Proj   []PlaceProj
}

func (p Place) IsValid() bool {
	switch p.Kind {
	case PlaceStatic:
		return p.Static != NoStaticID
	default:
		return p.Local != NoLocalID
	}
}

// LocalPlace returns the place naming local l with no projections.
func LocalPlace(l LocalID) Place {
	return Place{Kind: PlaceLocal, Local: l, Static: NoStaticID}
}

// StaticPlace returns the place naming static s.
func StaticPlace(s StaticID) Place {
	return Place{Kind: PlaceStatic, Local: NoLocalID, Static: s}
}

func (p Place) with(proj PlaceProj) Place {
	out := p
	out.Proj = make([]PlaceProj, len(p.Proj), len(p.Proj)+1)
	copy(out.Proj, p.Proj)
	out.Proj = append(out.Proj, proj)
	return out
}

// Deref appends a dereference projection.
func (p Place) Deref() Place { return p.with(PlaceProj{Kind: PlaceProjDeref}) }

// Field appends a field projection.
func (p Place) Field(idx int) Place { return p.with(PlaceProj{Kind: PlaceProjField, FieldIdx: idx}) }

// Index appends an index projection using the value of local idx.
func (p Place) Index(idx LocalID) Place {
	return p.with(PlaceProj{Kind: PlaceProjIndex, IndexLocal: idx})
}

// ConstIndex appends a constant index projection.
func (p Place) ConstIndex(offset uint64, fromEnd bool) Place {
	return p.with(PlaceProj{Kind: PlaceProjConstIndex, Offset: offset, FromEnd: fromEnd})
}

// Downcast appends a variant downcast.
func (p Place) Downcast(variant int) Place {
	return p.with(PlaceProj{Kind: PlaceProjDowncast, Variant: variant})
}

// IsLocalRoot reports whether p names a local without projections.
func (p Place) IsLocalRoot() bool {
	return p.Kind == PlaceLocal && len(p.Proj) == 0
}
