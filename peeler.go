// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package peeler decodes legacy Macintosh archive and encoding formats —
// BinHex 4.0, MacBinary II, Compact Pro, StuffIt classic, and StuffIt 5 —
// resolving nested encodings such as a StuffIt archive wrapped in BinHex,
// and returning each contained file with its classic Mac fork structure
// (data fork, resource fork) and Finder metadata intact.
package peeler

import "github.com/elliotnunn/peeler/internal/peelerr"

// The fixed error classes every decoder in this module reports through.
// Callers can test against these with errors.Is; component-specific detail
// is layered on with fmt.Errorf("...: %w"). They live in internal/peelerr
// so the format decoders can share them without importing this package back.
var (
	ErrChecksum  = peelerr.ErrChecksum
	ErrFormat    = peelerr.ErrFormat
	ErrPassword  = peelerr.ErrPassword
	ErrAlgo      = peelerr.ErrAlgo
	ErrTruncated = peelerr.ErrTruncated
)

// Metadata is the classic Macintosh Finder metadata every extracted file
// carries: four-character type and creator codes, and the subset of Finder
// flag bits that make sense outside the desktop database (see §4 of each
// format's component for which bits get cleared before this is populated).
type Metadata struct {
	Name    string
	Type    uint32
	Creator uint32
	Flags   uint16
}

// Debug carries optional low-level decode detail for tooling built on this
// library (pack offset, pack size, the compression algorithm ID, and the
// fork's own CRC if one was checked). It is never required reading — the
// zero value just means "not recorded". None of the decoders in this module
// fill it in, so ExtractedFile.Debug is always nil in Peel's results.
type Debug struct {
	PackOffset int64
	PackSize   int64
	Algorithm  int
	CRC        uint16
	HasCRC     bool
}

// ExtractedFile is one file pulled out of an archive, with both classic Mac
// forks present (either may be empty, never nil vs non-nil distinguished).
type ExtractedFile struct {
	Metadata
	Data     []byte
	Resource []byte
	Debug    *Debug
}

// FileList is the flattened result of peeling an archive. Archive formats
// that nest folders (Compact Pro, StuffIt classic, StuffIt 5) still produce
// a flat list; Name carries the full slash-separated path from the archive
// root, and no directory entries appear in the list on their own.
type FileList []ExtractedFile
