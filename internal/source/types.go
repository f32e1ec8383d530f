package source

// FileID identifies a source file within a FileTable. Zero means "unknown".
type FileID uint32

// NoFileID marks a span without a file.
const NoFileID FileID = 0
