// Package cpt decodes Compact Pro (.cpt) archives: the random-access
// directory tree, the 45-byte per-file metadata block, the Compact Pro
// RLE variant, and the archive's own LZH engine (canonical Huffman
// literal/length/offset trees over an 8KiB window).
package cpt

import (
	"encoding/binary"
	"fmt"

	"github.com/elliotnunn/peeler/internal/peelerr"
)

var errTruncated = peelerr.ErrTruncated

const (
	fileFlagEncrypted  = 1 << 0
	fileFlagRsrcLZH    = 1 << 1
	fileFlagDataLZH    = 1 << 2
	maxDirOffset       = 256 << 20
	directoryCountSkip = 4 + 2 + 1 // dir CRC, entry count, comment length
)

// Entry is one file pulled out of a Compact Pro archive, with its path
// (folder names joined by "/") relative to the archive root.
type Entry struct {
	Path     string
	Type     uint32
	Creator  uint32
	Flags    uint16
	Data     []byte
	Resource []byte
}

// Detect reports whether b begins with a structurally valid Compact Pro
// top header: magic byte, volume byte, and an in-bounds directory offset.
func Detect(b []byte) bool {
	_, err := parseTopHeader(b)
	return err == nil
}

func parseTopHeader(b []byte) (dirOffset int, err error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("cpt: short header: %w", errTruncated)
	}
	if b[0] != 0x01 || b[1] != 0x01 {
		return 0, fmt.Errorf("cpt: bad magic bytes: %w", peelerr.ErrFormat)
	}
	off := int(binary.BigEndian.Uint32(b[4:8]))
	if off < 8 || off > maxDirOffset || off >= len(b) {
		return 0, fmt.Errorf("cpt: directory offset %d out of bounds: %w", off, peelerr.ErrFormat)
	}
	return off, nil
}

// Decode parses the whole archive and returns every file it contains.
func Decode(b []byte) ([]Entry, error) {
	dirOff, err := parseTopHeader(b)
	if err != nil {
		return nil, err
	}
	if dirOff+directoryCountSkip > len(b) {
		return nil, fmt.Errorf("cpt: directory header: %w", errTruncated)
	}

	pos := dirOff + 4 // skip unverified directory CRC
	count := int(binary.BigEndian.Uint16(b[pos:]))
	pos += 2
	commentLen := int(b[pos])
	pos++
	pos += commentLen
	if pos > len(b) {
		return nil, fmt.Errorf("cpt: directory comment: %w", errTruncated)
	}

	var entries []Entry
	pos, err = parseEntries(b, pos, count, "", &entries)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func parseEntries(b []byte, pos, count int, prefix string, out *[]Entry) (int, error) {
	for i := 0; i < count; i++ {
		if pos >= len(b) {
			return 0, fmt.Errorf("cpt: entry header: %w", errTruncated)
		}
		flagByte := b[pos]
		pos++
		isDir := flagByte&0x80 != 0
		nameLen := int(flagByte & 0x7f)
		if pos+nameLen > len(b) {
			return 0, fmt.Errorf("cpt: entry name: %w", errTruncated)
		}
		name := string(b[pos : pos+nameLen])
		pos += nameLen
		path := name
		if prefix != "" {
			path = prefix + "/" + name
		}

		if isDir {
			if pos+2 > len(b) {
				return 0, fmt.Errorf("cpt: folder entry: %w", errTruncated)
			}
			sub := int(binary.BigEndian.Uint16(b[pos:]))
			pos += 2
			var err error
			pos, err = parseEntries(b, pos, sub, path, out)
			if err != nil {
				return 0, err
			}
			continue
		}

		entry, next, err := parseFileEntry(b, pos, path)
		if err != nil {
			return 0, err
		}
		pos = next
		*out = append(*out, entry)
	}
	return pos, nil
}

const fileMetaSize = 45

func parseFileEntry(b []byte, pos int, path string) (Entry, int, error) {
	if pos+fileMetaSize > len(b) {
		return Entry{}, 0, fmt.Errorf("cpt: file metadata: %w", errTruncated)
	}
	m := b[pos : pos+fileMetaSize]
	pos += fileMetaSize

	forkOffset := int(binary.BigEndian.Uint32(m[1:5]))
	typ := binary.BigEndian.Uint32(m[5:9])
	creator := binary.BigEndian.Uint32(m[9:13])
	finderFlags := binary.BigEndian.Uint16(m[21:23])
	fileFlags := m[25]
	rsrcCompLen := int(binary.BigEndian.Uint32(m[26:30]))
	rsrcUncompLen := int(binary.BigEndian.Uint32(m[30:34]))
	dataCompLen := int(binary.BigEndian.Uint32(m[34:38]))
	dataUncompLen := int(binary.BigEndian.Uint32(m[38:42]))

	if fileFlags&fileFlagEncrypted != 0 {
		return Entry{}, 0, fmt.Errorf("cpt: %q is password-protected: %w", path, peelerr.ErrPassword)
	}

	if forkOffset < 0 || forkOffset+rsrcCompLen+dataCompLen > len(b) {
		return Entry{}, 0, fmt.Errorf("cpt: fork data for %q: %w", path, errTruncated)
	}

	rsrcPacked := b[forkOffset : forkOffset+rsrcCompLen]
	dataPacked := b[forkOffset+rsrcCompLen : forkOffset+rsrcCompLen+dataCompLen]

	resource, err := unpackFork(rsrcPacked, rsrcUncompLen, fileFlags&fileFlagRsrcLZH != 0)
	if err != nil {
		return Entry{}, 0, fmt.Errorf("cpt: resource fork of %q: %w", path, err)
	}
	data, err := unpackFork(dataPacked, dataUncompLen, fileFlags&fileFlagDataLZH != 0)
	if err != nil {
		return Entry{}, 0, fmt.Errorf("cpt: data fork of %q: %w", path, err)
	}

	return Entry{
		Path:     path,
		Type:     typ,
		Creator:  creator,
		Flags:    finderFlags,
		Data:     data,
		Resource: resource,
	}, pos, nil
}

func unpackFork(packed []byte, uncompLen int, lzh bool) ([]byte, error) {
	rleInput := packed
	if lzh {
		unpacked, err := lzhDecode(packed, uncompLen)
		if err != nil {
			return nil, err
		}
		rleInput = unpacked
	}
	out, err := rleDecode(rleInput)
	if err != nil {
		return nil, err
	}
	if uncompLen >= 0 && len(out) != uncompLen && !lzh {
		// RLE-only forks are self-describing by length; mismatches here
		// indicate a truncated or corrupt fork.
		if len(out) < uncompLen {
			return nil, fmt.Errorf("fork shorter than recorded length: %w", errTruncated)
		}
		out = out[:uncompLen]
	}
	return out, nil
}
