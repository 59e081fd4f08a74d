// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package appledouble

import "encoding/binary"

// Encode builds a complete AppleDouble sidecar file (magic, version, entry
// descriptors, the 32-byte Finder info record, and the resource fork if
// present) for the given metadata as one compact, self-contained buffer
// suitable for writing straight to a "._name" sidecar file.
func Encode(fileType, creator uint32, flags uint16, resource []byte) []byte {
	numEntries := 1
	if len(resource) > 0 {
		numEntries = 2
	}

	headerLen := 26 + 12*numEntries
	finderOff := headerLen
	total := finderOff + 32
	rsrcOff := total
	if numEntries == 2 {
		total += len(resource)
	}

	buf := make([]byte, total)
	copy(buf, "\x00\x05\x16\x07\x00\x02\x00\x00")
	binary.BigEndian.PutUint16(buf[24:], uint16(numEntries))

	binary.BigEndian.PutUint32(buf[26:], FINDER_INFO)
	binary.BigEndian.PutUint32(buf[30:], uint32(finderOff))
	binary.BigEndian.PutUint32(buf[34:], 32)

	if numEntries == 2 {
		binary.BigEndian.PutUint32(buf[38:], RESOURCE_FORK)
		binary.BigEndian.PutUint32(buf[42:], uint32(rsrcOff))
		binary.BigEndian.PutUint32(buf[46:], uint32(len(resource)))
	}

	binary.BigEndian.PutUint32(buf[finderOff:], fileType)
	binary.BigEndian.PutUint32(buf[finderOff+4:], creator)
	binary.BigEndian.PutUint16(buf[finderOff+8:], flags)

	if numEntries == 2 {
		copy(buf[rsrcOff:], resource)
	}

	return buf
}
