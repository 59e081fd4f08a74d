// Package stuffit decodes classic StuffIt and StuffIt 5 archives: two
// mutually incompatible directory layouts sharing the same five compression
// methods (raw, RLE90, LZW, method 13, and Arsenic/method 15).
package stuffit

import (
	"fmt"

	"github.com/elliotnunn/peeler/internal/peelerr"
)

var (
	errFormat    = peelerr.ErrFormat
	errTruncated = peelerr.ErrTruncated
	errAlgo      = peelerr.ErrAlgo
	errPassword  = peelerr.ErrPassword
	errChecksum  = peelerr.ErrChecksum
)

// Entry is one file extracted from a StuffIt archive, in the archive's
// natural depth-first order.
type Entry struct {
	Path     string
	Type     uint32
	Creator  uint32
	Flags    uint16
	Data     []byte
	Resource []byte
}

// Decode parses a classic StuffIt or SIT5 archive and returns its files.
// When both a classic signature and a SIT5 banner are present, the one
// appearing earliest in the buffer is used, matching the detection rule.
func Decode(b []byte) ([]Entry, error) {
	classicOff, classicOK := findClassic(b)
	sit5Off, sit5OK := findSIT5(b)

	switch {
	case classicOK && sit5OK:
		if classicOff <= sit5Off {
			return decodeClassic(b, classicOff)
		}
		return decodeSIT5(b, sit5Off)
	case classicOK:
		return decodeClassic(b, classicOff)
	case sit5OK:
		return decodeSIT5(b, sit5Off)
	default:
		return nil, fmt.Errorf("stuffit: no recognized signature: %w", errFormat)
	}
}

// decompressFork dispatches on the low nibble of a per-fork method byte and
// returns the decompressed bytes, or an error if the method is unsupported.
func decompressFork(method int, packed []byte, uncompLen int) ([]byte, error) {
	switch method {
	case 0:
		if len(packed) < uncompLen {
			return nil, fmt.Errorf("stuffit: raw fork shorter than declared length: %w", errTruncated)
		}
		out := make([]byte, uncompLen)
		copy(out, packed)
		return out, nil
	case 1:
		out, err := rle90Decode(packed)
		if err != nil {
			return nil, err
		}
		if len(out) > uncompLen {
			out = out[:uncompLen]
		}
		return out, nil
	case 2:
		return lzwDecode(packed, uncompLen)
	case 13:
		return method13Decode(packed, uncompLen)
	case 15:
		return arsenicDecode(packed, uncompLen)
	default:
		return nil, fmt.Errorf("stuffit: unsupported compression method %d: %w", method, errAlgo)
	}
}
