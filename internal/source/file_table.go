package source

import (
	"fmt"
	"path/filepath"

	"fortio.org/safecast"
)

// FileTable maps FileIDs to paths. Slot 0 is reserved for NoFileID.
type FileTable struct {
	Paths []string
	index map[string]FileID
}

// NewFileTable creates an empty table.
func NewFileTable() *FileTable {
	return &FileTable{Paths: []string{""}, index: make(map[string]FileID)}
}

// Add registers path and returns its id; repeated paths share an id.
func (ft *FileTable) Add(path string) FileID {
	norm := filepath.ToSlash(filepath.Clean(path))
	if ft.index == nil {
		ft.reindex()
	}
	if id, ok := ft.index[norm]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(ft.Paths))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(n)
	ft.Paths = append(ft.Paths, norm)
	ft.index[norm] = id
	return id
}

// Path returns the path registered for id, or "" for unknown ids.
func (ft *FileTable) Path(id FileID) string {
	if ft == nil || id == NoFileID || int(id) >= len(ft.Paths) {
		return ""
	}
	return ft.Paths[id]
}

// Format renders span as path:line:col when the file is known.
func (ft *FileTable) Format(s Span) string {
	p := ft.Path(s.File)
	if p == "" {
		return s.String()
	}
	return fmt.Sprintf("%s:%d:%d", p, s.Line, s.Col)
}

func (ft *FileTable) reindex() {
	if len(ft.Paths) == 0 {
		ft.Paths = []string{""}
	}
	ft.index = make(map[string]FileID, len(ft.Paths))
	for i, p := range ft.Paths[1:] {
		ft.index[p] = FileID(i + 1)
	}
}
