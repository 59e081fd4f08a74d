package stuffit

import (
	"fmt"

	"github.com/elliotnunn/peeler/internal/crc16"
)

const (
	classicTopHeaderSize = 22
	classicEntrySize     = 112
	classicMaxDepth      = 10

	classicFolderStart = 0x20
	classicFolderEnd   = 0x21
)

// decodeClassic parses a classic StuffIt archive whose signature starts at
// off, iterating its sequential fixed-size entry headers.
func decodeClassic(b []byte, off int) ([]Entry, error) {
	b = b[off:]
	if len(b) < classicTopHeaderSize {
		return nil, fmt.Errorf("stuffit: classic archive shorter than top header: %w", errTruncated)
	}

	fileCount := int(b[4])<<8 | int(b[5])

	var entries []Entry
	var folderStack []string
	cursor := classicTopHeaderSize

	for consumed := 0; consumed < fileCount; consumed++ {
		if cursor+classicEntrySize > len(b) {
			return nil, fmt.Errorf("stuffit: classic entry header runs past end of archive: %w", errTruncated)
		}
		hdr := b[cursor : cursor+classicEntrySize]

		headerCRC := uint16(hdr[110])<<8 | uint16(hdr[111])
		if crc16.Reflected(hdr[:110]) != headerCRC {
			return nil, fmt.Errorf("stuffit: classic entry header CRC mismatch: %w", errChecksum)
		}

		rsrcMethodByte := hdr[0]
		dataMethodByte := hdr[1]

		if rsrcMethodByte == classicFolderStart {
			name := classicEntryName(hdr)
			if len(folderStack) >= classicMaxDepth {
				return nil, fmt.Errorf("stuffit: classic folder nesting exceeds depth %d: %w", classicMaxDepth, errFormat)
			}
			folderStack = append(folderStack, name)
			cursor += classicEntrySize
			continue
		}
		if rsrcMethodByte == classicFolderEnd {
			if len(folderStack) == 0 {
				return nil, fmt.Errorf("stuffit: classic folder end without matching start: %w", errFormat)
			}
			folderStack = folderStack[:len(folderStack)-1]
			cursor += classicEntrySize
			continue
		}

		rsrcMethod, rsrcSkip, rsrcEncrypted := classicMethodBits(rsrcMethodByte)
		dataMethod, dataSkip, dataEncrypted := classicMethodBits(dataMethodByte)

		rsrcCompLen := int(be32(hdr[84:88]))
		rsrcUncompLen := int(be32(hdr[88:92]))
		dataCompLen := int(be32(hdr[92:96]))
		dataUncompLen := int(be32(hdr[96:100]))
		rsrcCRC := uint16(hdr[100])<<8 | uint16(hdr[101])
		dataCRC := uint16(hdr[102])<<8 | uint16(hdr[103])

		forkStart := cursor + classicEntrySize
		if forkStart+rsrcCompLen+dataCompLen > len(b) {
			return nil, fmt.Errorf("stuffit: classic entry forks run past end of archive: %w", errTruncated)
		}
		rsrcPacked := b[forkStart : forkStart+rsrcCompLen]
		dataPacked := b[forkStart+rsrcCompLen : forkStart+rsrcCompLen+dataCompLen]

		cursor = forkStart + rsrcCompLen + dataCompLen

		if rsrcSkip || dataSkip {
			continue
		}
		if rsrcEncrypted || dataEncrypted {
			return nil, fmt.Errorf("stuffit: classic entry %q is encrypted: %w", classicEntryName(hdr), errPassword)
		}

		rsrcData, err := decompressFork(rsrcMethod, rsrcPacked, rsrcUncompLen)
		if err != nil {
			return nil, fmt.Errorf("stuffit: classic resource fork: %w", err)
		}
		if crc16.Reflected(rsrcData) != rsrcCRC {
			return nil, fmt.Errorf("stuffit: classic resource fork CRC mismatch: %w", errChecksum)
		}
		fileData, err := decompressFork(dataMethod, dataPacked, dataUncompLen)
		if err != nil {
			return nil, fmt.Errorf("stuffit: classic data fork: %w", err)
		}
		if crc16.Reflected(fileData) != dataCRC {
			return nil, fmt.Errorf("stuffit: classic data fork CRC mismatch: %w", errChecksum)
		}

		entries = append(entries, Entry{
			Path:     classicJoinPath(folderStack, classicEntryName(hdr)),
			Type:     be32(hdr[74:78]),
			Creator:  be32(hdr[78:82]),
			Flags:    uint16(hdr[82])<<8 | uint16(hdr[83]),
			Data:     fileData,
			Resource: rsrcData,
		})
	}

	return entries, nil
}

// classicMethodBits splits a classic per-fork method byte into its low-nibble
// method ID, the "skip this entry" flag (any of the top three bits set), and
// the encryption flag (bit 4).
func classicMethodBits(b byte) (method int, skip, encrypted bool) {
	method = int(b & 0x0f)
	skip = b&0xe0 != 0
	encrypted = b&0x10 != 0
	return method, skip, encrypted
}

func classicEntryName(hdr []byte) string {
	n := int(hdr[2])
	if n > 63 {
		n = 63
	}
	return string(hdr[3 : 3+n])
}

func classicJoinPath(folders []string, name string) string {
	path := name
	for i := len(folders) - 1; i >= 0; i-- {
		path = folders[i] + "/" + path
	}
	return path
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
