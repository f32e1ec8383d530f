package mir

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"lowir/internal/source"
	"lowir/internal/types"
)

// unitSchemaVersion must be bumped whenever the encoded layout of Module or
// any IR node changes.
const unitSchemaVersion uint16 = 1

// ErrSchemaMismatch is returned when a unit was written by an incompatible
// version of the encoder.
var ErrSchemaMismatch = errors.New("mir: unit schema version mismatch")

// unitFile is the on-disk form of a Module.
type unitFile struct {
	Schema  uint16
	Name    string
	Types   *types.Table
	Files   []string
	Funcs   []*Func
	Decls   []Decl
	Statics []Static
	Entry   string
}

// EncodeModule writes m to w in the msgpack unit format.
func EncodeModule(w io.Writer, m *Module) error {
	if m == nil {
		return errors.New("mir: nil module")
	}
	if m.Types == nil {
		return errors.New("mir: module has no type table")
	}
	file := unitFile{
		Schema:  unitSchemaVersion,
		Name:    m.Name,
		Types:   m.Types.Table(),
		Funcs:   m.Funcs,
		Decls:   m.Decls,
		Statics: m.Statics,
		Entry:   m.Entry,
	}
	if m.Files != nil {
		file.Files = m.Files.Paths
	}
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	return enc.Encode(&file)
}

// DecodeModule reads a unit written by EncodeModule.
func DecodeModule(r io.Reader) (*Module, error) {
	var file unitFile
	if err := msgpack.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("mir: decode unit: %w", err)
	}
	if file.Schema != unitSchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchemaMismatch, file.Schema, unitSchemaVersion)
	}
	in, err := types.FromTable(file.Types)
	if err != nil {
		return nil, fmt.Errorf("mir: decode unit: %w", err)
	}
	files := source.NewFileTable()
	if len(file.Files) > 0 {
		files = &source.FileTable{Paths: file.Files}
	}
	return &Module{
		Name:    file.Name,
		Types:   in,
		Files:   files,
		Funcs:   file.Funcs,
		Decls:   file.Decls,
		Statics: file.Statics,
		Entry:   file.Entry,
	}, nil
}
