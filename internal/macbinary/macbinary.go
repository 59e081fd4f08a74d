// Package macbinary decodes MacBinary II (.bin) containers: the 128-byte
// header with its CRC-16/XMODEM self-check (falling back to MacBinary I
// semantics when the checksum fails but byte 82 is zero), padded fork
// reading, and the fork-selection heuristic used when MacBinary wraps
// another archive format (a ".sea.bin" with the real payload in the
// resource fork, for instance).
package macbinary

import (
	"encoding/binary"
	"fmt"

	"github.com/elliotnunn/peeler/internal/crc16"
	"github.com/elliotnunn/peeler/internal/peelerr"
	"github.com/elliotnunn/peeler/internal/stuffit"
)

const headerSize = 128

type header struct {
	name           []byte
	typ, creator   uint32
	flags          uint16
	dataLen        uint32
	rsrcLen        uint32
	dataForkOffset int
}

func parseHeader(b []byte) (header, error) {
	if len(b) < headerSize {
		return header{}, fmt.Errorf("macbinary: short header: %w", peelerr.ErrTruncated)
	}
	if b[0] != 0 || b[74] != 0 {
		return header{}, fmt.Errorf("macbinary: bad version bytes: %w", peelerr.ErrFormat)
	}
	nameLen := int(b[1])
	if nameLen < 1 || nameLen > 63 {
		return header{}, fmt.Errorf("macbinary: invalid filename length %d: %w", nameLen, peelerr.ErrFormat)
	}

	crcOK := crc16.XMODEM(b[0:124]) == binary.BigEndian.Uint16(b[124:126])
	if !crcOK {
		if b[82] != 0 {
			return header{}, fmt.Errorf("macbinary: header checksum: %w", peelerr.ErrChecksum)
		}
		// byte 82 zero: accept as a pre-MacBinary-II header with no CRC.
	}

	name := append([]byte(nil), b[2:2+nameLen]...)
	typ := binary.BigEndian.Uint32(b[65:69])
	creator := binary.BigEndian.Uint32(b[69:73])
	flags := uint16(b[73])<<8 | uint16(b[101])
	dataLen := binary.BigEndian.Uint32(b[83:87])
	rsrcLen := binary.BigEndian.Uint32(b[87:91])
	secLen := binary.BigEndian.Uint16(b[120:122])

	if dataLen > 0x7fffffff || rsrcLen > 0x7fffffff {
		return header{}, fmt.Errorf("macbinary: fork length overflow: %w", peelerr.ErrFormat)
	}

	off := headerSize
	if secLen != 0 {
		off += int(secLen)
		off += padLen(int(secLen))
	}

	flags &^= 1<<0 | 1<<1 | 1<<8 | 1<<9 | 1<<10

	return header{
		name: name, typ: typ, creator: creator, flags: flags,
		dataLen: dataLen, rsrcLen: rsrcLen, dataForkOffset: off,
	}, nil
}

func padLen(n int) int {
	return (headerSize - n%headerSize) % headerSize
}

func readFork(b []byte, off int, length uint32) (fork []byte, next int, err error) {
	end := off + int(length)
	if end > len(b) {
		return nil, 0, fmt.Errorf("macbinary: fork runs past end of input: %w", peelerr.ErrTruncated)
	}
	fork = b[off:end]
	next = end + padLen(int(length))
	return fork, next, nil
}

// Detect reports whether b begins with a structurally valid MacBinary
// header (version bytes, name length, and the CRC self-check or its
// MacBinary I fallback all pass).
func Detect(b []byte) bool {
	_, err := parseHeader(b)
	return err == nil
}

// Decode parses a full MacBinary container, returning both forks.
func Decode(b []byte) (name string, typ, creator uint32, flags uint16, data, resource []byte, err error) {
	hdr, err := parseHeader(b)
	if err != nil {
		return "", 0, 0, 0, nil, nil, err
	}
	data, next, err := readFork(b, hdr.dataForkOffset, hdr.dataLen)
	if err != nil {
		return "", 0, 0, 0, nil, nil, err
	}
	resource, _, err = readFork(b, next, hdr.rsrcLen)
	if err != nil {
		return "", 0, 0, 0, nil, nil, err
	}
	return string(hdr.name), hdr.typ, hdr.creator, hdr.flags, data, resource, nil
}

// DecodeWrapper unwraps a MacBinary container used purely as a transport for
// another archive format: it returns the data fork unless the data fork
// doesn't look like a StuffIt archive and the resource fork is non-empty, in
// which case it returns the resource fork without inspecting its contents
// (the classic ".sea.bin" self-extracting-archive-in-the-resource-fork
// layout some tools produced).
func DecodeWrapper(b []byte) ([]byte, error) {
	_, _, _, _, data, resource, err := Decode(b)
	if err != nil {
		return nil, err
	}
	if !stuffit.Detect(data) && len(resource) > 0 {
		return resource, nil
	}
	return data, nil
}
