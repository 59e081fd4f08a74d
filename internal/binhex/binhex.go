// Package binhex decodes BinHex 4.0 (.hqx) text envelopes: six-to-eight
// character decoding, the RLE90 byte-stream expansion, and the triple
// CRC-16/XMODEM-checked container (header, data fork, resource fork each
// independently checksummed).
package binhex

import (
	"encoding/binary"
	"fmt"

	"github.com/elliotnunn/peeler/internal/crc16"
	"github.com/elliotnunn/peeler/internal/peelerr"
)

// Preamble is the fixed text BinHex 4.0 tools write just before the
// six-to-eight encoded body begins.
const Preamble = "(This file must be converted with BinHex"

// sixToEightAlphabet is the canonical 64-character BinHex 4.0 alphabet.
const sixToEightAlphabet = "!\"#$%&'()*+,-012345689@ABCDEFGHIJKLMNPQRSTUVXYZ[`abcdefhijklmpqr"

var sixToEightRev [256]int8

func init() {
	for i := range sixToEightRev {
		sixToEightRev[i] = -1
	}
	for i, c := range []byte(sixToEightAlphabet) {
		sixToEightRev[c] = int8(i)
	}
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// Detect reports whether b contains a BinHex 4.0 text envelope anywhere.
func Detect(b []byte) bool {
	return indexPreamble(b) >= 0
}

func indexPreamble(b []byte) int {
	pl := len(Preamble)
	if pl == 0 || len(b) < pl {
		return -1
	}
	for i := 0; i+pl <= len(b); i++ {
		if string(b[i:i+pl]) == Preamble {
			return i
		}
	}
	return -1
}

type file struct {
	name     []byte
	typ      uint32
	creator  uint32
	flags    uint16
	data     []byte
	resource []byte
}

// Decode parses a BinHex 4.0 text stream end to end: envelope, six-to-eight,
// RLE90, and the CRC-checked container.
func Decode(raw []byte) (name string, typ, creator uint32, flags uint16, data, resource []byte, err error) {
	body, err := extractEnvelope(raw)
	if err != nil {
		return "", 0, 0, 0, nil, nil, err
	}
	eightbit, err := sixToEight(body)
	if err != nil {
		return "", 0, 0, 0, nil, nil, err
	}
	decoded, err := rle90Decode(eightbit)
	if err != nil {
		return "", 0, 0, 0, nil, nil, err
	}
	f, err := parseContainer(decoded)
	if err != nil {
		return "", 0, 0, 0, nil, nil, err
	}
	return string(f.name), f.typ, f.creator, f.flags, f.data, f.resource, nil
}

func extractEnvelope(b []byte) ([]byte, error) {
	idx := indexPreamble(b)
	if idx < 0 {
		return nil, fmt.Errorf("binhex: preamble not found: %w", peelerr.ErrFormat)
	}
	rest := b[idx:]
	nl := -1
	for i, c := range rest {
		if c == '\n' {
			nl = i
			break
		}
	}
	if nl < 0 {
		return nil, fmt.Errorf("binhex: no line break after preamble: %w", peelerr.ErrTruncated)
	}
	pos := idx + nl + 1
	for pos < len(b) && isWhitespace(b[pos]) {
		pos++
	}
	if pos >= len(b) || b[pos] != ':' {
		return nil, fmt.Errorf("binhex: opening colon not found: %w", peelerr.ErrFormat)
	}
	return b[pos+1:], nil
}

func sixToEight(encoded []byte) ([]byte, error) {
	var out []byte
	var bitbuf uint32
	var bitcount uint
	closed := false
	for _, ch := range encoded {
		if ch == ':' {
			closed = true
			break
		}
		if isWhitespace(ch) {
			continue
		}
		v := sixToEightRev[ch]
		if v < 0 {
			return nil, fmt.Errorf("binhex: illegal character %q in encoded data: %w", ch, peelerr.ErrFormat)
		}
		bitbuf = bitbuf<<6 | uint32(v)
		bitcount += 6
		if bitcount >= 8 {
			bitcount -= 8
			out = append(out, byte(bitbuf>>bitcount))
			bitbuf &= (1 << bitcount) - 1
		}
	}
	if !closed {
		return nil, fmt.Errorf("binhex: no closing colon: %w", peelerr.ErrTruncated)
	}
	return out, nil
}

// rle90Decode expands the BinHex RLE90 byte stream: escape byte 0x90,
// followed by a repeat count byte N. N==0 means a literal 0x90 byte; N==1
// is illegal; N>=2 means N-2 further copies of the byte preceding the
// escape, on top of the one already emitted.
func rle90Decode(input []byte) ([]byte, error) {
	var out []byte
	var prev byte
	pendingRepeats := 0
	i := 0
	markerPending := false
	for i < len(input) || pendingRepeats > 0 {
		if pendingRepeats > 0 {
			out = append(out, prev)
			pendingRepeats--
			continue
		}
		b := input[i]
		i++
		if markerPending {
			markerPending = false
			switch {
			case b == 0:
				out = append(out, 0x90)
				prev = 0x90
			case b == 1:
				return nil, fmt.Errorf("binhex: illegal RLE sequence 0x90 0x01: %w", peelerr.ErrFormat)
			default:
				pendingRepeats = int(b) - 2
				out = append(out, prev)
			}
			continue
		}
		if b == 0x90 {
			markerPending = true
			continue
		}
		out = append(out, b)
		prev = b
	}
	if markerPending {
		return nil, fmt.Errorf("binhex: truncated RLE sequence: %w", peelerr.ErrTruncated)
	}
	return out, nil
}

func parseContainer(buf []byte) (file, error) {
	if len(buf) < 1 {
		return file{}, fmt.Errorf("binhex container: %w", peelerr.ErrTruncated)
	}
	nameLen := int(buf[0])
	if nameLen < 1 || nameLen > 63 {
		return file{}, fmt.Errorf("binhex: invalid filename length %d: %w", nameLen, peelerr.ErrFormat)
	}
	fixed := 1 + nameLen + 1 + 4 + 4 + 2 + 4 + 4 + 2
	if len(buf) < fixed {
		return file{}, fmt.Errorf("binhex header: %w", peelerr.ErrTruncated)
	}

	name := append([]byte(nil), buf[1:1+nameLen]...)
	p := 1 + nameLen + 1
	typ := binary.BigEndian.Uint32(buf[p:])
	creator := binary.BigEndian.Uint32(buf[p+4:])
	flags := binary.BigEndian.Uint16(buf[p+8:])
	dataLen := binary.BigEndian.Uint32(buf[p+10:])
	rsrcLen := binary.BigEndian.Uint32(buf[p+14:])
	hdrCRCEnd := p + 18 + 2

	if !crc16.XMODEMSelfCheck(buf[:hdrCRCEnd]) {
		return file{}, fmt.Errorf("binhex header checksum: %w", peelerr.ErrChecksum)
	}

	off := hdrCRCEnd
	if uint64(off)+uint64(dataLen)+2 > uint64(len(buf)) {
		return file{}, fmt.Errorf("binhex data fork: %w", peelerr.ErrTruncated)
	}
	dataFork := buf[off : off+int(dataLen)]
	off += int(dataLen)
	if !crc16.XMODEMSelfCheck(buf[off-int(dataLen) : off+2]) {
		return file{}, fmt.Errorf("binhex data fork checksum: %w", peelerr.ErrChecksum)
	}
	off += 2

	if uint64(off)+uint64(rsrcLen)+2 > uint64(len(buf)) {
		return file{}, fmt.Errorf("binhex resource fork: %w", peelerr.ErrTruncated)
	}
	rsrcFork := buf[off : off+int(rsrcLen)]
	off += int(rsrcLen)
	if !crc16.XMODEMSelfCheck(buf[off-int(rsrcLen) : off+2]) {
		return file{}, fmt.Errorf("binhex resource fork checksum: %w", peelerr.ErrChecksum)
	}

	flags &^= 1<<14 | 1<<7 | 1<<2

	return file{name: name, typ: typ, creator: creator, flags: flags, data: dataFork, resource: rsrcFork}, nil
}
