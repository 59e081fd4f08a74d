package stuffit

import (
	"fmt"

	"github.com/elliotnunn/peeler/internal/crc16"
)

const (
	sit5TopMinSize    = 100
	sit5EntryCountOff = 92
	sit5CursorOff     = 94
	sit5Magic         = 0xa5a5a5a5
	sit5MaxFolders    = 32

	sit5FlagEncrypted = 0x20
	sit5FlagFolder    = 0x40

	sit5FlagRsrcPresent = 0x1

	sit5SkipLenV1 = 22
	sit5SkipLen   = 18
)

type sit5Folder struct {
	offset int
	path   string
}

// decodeSIT5 parses a StuffIt 5 archive whose 80-byte banner starts at off,
// walking its linked entries from the top header's traversal cursor.
func decodeSIT5(b []byte, off int) ([]Entry, error) {
	archive := b[off:]
	if len(archive) < sit5TopMinSize {
		return nil, fmt.Errorf("stuffit: sit5 archive shorter than top header: %w", errTruncated)
	}

	declaredCount := int(be16(archive[sit5EntryCountOff : sit5EntryCountOff+2]))
	cursor := int(be32(archive[sit5CursorOff : sit5CursorOff+4]))

	var folders []sit5Folder
	var entries []Entry

	for i := 0; i < declaredCount; i++ {
		if cursor+48 > len(archive) {
			return nil, fmt.Errorf("stuffit: sit5 entry header runs past end of archive: %w", errTruncated)
		}
		hdr1 := archive[cursor:]

		magic := be32(hdr1[0:4])
		if magic != sit5Magic {
			return nil, fmt.Errorf("stuffit: sit5 entry magic mismatch at offset %d: %w", cursor, errFormat)
		}
		version := hdr1[4]
		if version != 1 {
			return nil, fmt.Errorf("stuffit: unsupported sit5 entry version %d: %w", version, errFormat)
		}
		hdrSize := int(be16(hdr1[6:8]))
		if hdrSize < 48 || cursor+hdrSize > len(archive) {
			return nil, fmt.Errorf("stuffit: sit5 entry header size %d out of range: %w", hdrSize, errFormat)
		}
		flags := hdr1[9]
		encrypted := flags&sit5FlagEncrypted != 0
		isFolder := flags&sit5FlagFolder != 0
		parentOff := int(be32(hdr1[26:30]))
		nameLen := int(be16(hdr1[30:32]))
		storedCRC := be16(hdr1[32:34])

		crcBuf := append([]byte(nil), hdr1[:hdrSize]...)
		crcBuf[32] = 0
		crcBuf[33] = 0
		if crc16.Reflected(crcBuf) != storedCRC {
			return nil, fmt.Errorf("stuffit: sit5 entry header CRC mismatch at offset %d: %w", cursor, errChecksum)
		}

		dataUncompLen := be32(hdr1[34:38])
		dataCompLen := int(be32(hdr1[38:42]))
		dataCRC := be16(hdr1[42:44])

		var dataMethodByte byte
		var childCount int
		if isFolder {
			childCount = int(be16(hdr1[46:48]))
			_ = childCount
		} else {
			dataMethodByte = hdr1[46]
		}

		if 48+nameLen > len(hdr1) {
			return nil, fmt.Errorf("stuffit: sit5 entry name runs past header: %w", errTruncated)
		}
		name := string(hdr1[48 : 48+nameLen])

		header2Off := cursor + hdrSize
		if header2Off+12 > len(archive) {
			return nil, fmt.Errorf("stuffit: sit5 entry header 2 runs past end of archive: %w", errTruncated)
		}
		hdr2 := archive[header2Off:]
		flags2 := be16(hdr2[0:2])
		rsrcPresent := flags2&sit5FlagRsrcPresent != 0
		typ := be32(hdr2[2:6])
		creator := be32(hdr2[6:10])
		finderFlags := be16(hdr2[10:12])

		skipLen := sit5SkipLenV1
		forkDataStart := header2Off + 12 + skipLen

		var rsrcCompLen, rsrcUncompLen int
		var rsrcCRC uint16
		var rsrcMethodByte byte
		if rsrcPresent {
			if forkDataStart+14 > len(archive) {
				return nil, fmt.Errorf("stuffit: sit5 resource fork block runs past end of archive: %w", errTruncated)
			}
			rb := archive[forkDataStart:]
			rsrcUncompLen = int(be32(rb[0:4]))
			rsrcCompLen = int(be32(rb[4:8]))
			rsrcCRC = be16(rb[8:10])
			rsrcMethodByte = rb[12]
			rsrcPassLen := int(rb[13])
			forkDataStart = forkDataStart + 14 + rsrcPassLen
		}

		path := name
		if parentOff != 0 {
			for _, f := range folders {
				if f.offset == parentOff {
					path = f.path + "/" + name
					break
				}
			}
		}

		if isFolder {
			if len(folders) >= sit5MaxFolders {
				return nil, fmt.Errorf("stuffit: sit5 archive exceeds %d folders: %w", sit5MaxFolders, errFormat)
			}
			folders = append(folders, sit5Folder{offset: cursor, path: path})
			cursor = forkDataStart
			continue
		}

		if encrypted {
			return nil, fmt.Errorf("stuffit: sit5 entry %q is encrypted: %w", path, errPassword)
		}

		rsrcPacked := archive[forkDataStart : forkDataStart+rsrcCompLen]
		dataStart := forkDataStart + rsrcCompLen
		if dataStart+dataCompLen > len(archive) {
			return nil, fmt.Errorf("stuffit: sit5 entry forks run past end of archive: %w", errTruncated)
		}
		dataPacked := archive[dataStart : dataStart+dataCompLen]
		cursor = dataStart + dataCompLen

		var fileData, rsrcData []byte
		var err error
		if dataUncompLen != 0xffffffff {
			method := int(dataMethodByte & 0x0f)
			fileData, err = decompressFork(method, dataPacked, int(dataUncompLen))
			if err != nil {
				return nil, fmt.Errorf("stuffit: sit5 data fork: %w", err)
			}
			if method != 15 && crc16.Reflected(fileData) != dataCRC {
				return nil, fmt.Errorf("stuffit: sit5 data fork CRC mismatch: %w", errChecksum)
			}
		}
		if rsrcPresent {
			method := int(rsrcMethodByte & 0x0f)
			rsrcData, err = decompressFork(method, rsrcPacked, rsrcUncompLen)
			if err != nil {
				return nil, fmt.Errorf("stuffit: sit5 resource fork: %w", err)
			}
			if method != 15 && crc16.Reflected(rsrcData) != rsrcCRC {
				return nil, fmt.Errorf("stuffit: sit5 resource fork CRC mismatch: %w", errChecksum)
			}
		}

		entries = append(entries, Entry{
			Path:     path,
			Type:     typ,
			Creator:  creator,
			Flags:    finderFlags,
			Data:     fileData,
			Resource: rsrcData,
		})
	}

	return entries, nil
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
