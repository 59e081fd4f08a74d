// Package peelerr holds the fixed error-class sentinels every format
// decoder in this module reports through. It exists so internal decoder
// packages and the root peeler package can share the same errors.Is
// targets without an import cycle (peeler imports the decoders; the
// decoders cannot import peeler back).
package peelerr

import "errors"

var (
	ErrChecksum  = errors.New("peeler: checksum mismatch")
	ErrFormat    = errors.New("peeler: malformed container")
	ErrPassword  = errors.New("peeler: password-protected entry")
	ErrAlgo      = errors.New("peeler: unsupported compression algorithm")
	ErrTruncated = errors.New("peeler: truncated input")
)
