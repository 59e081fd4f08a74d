package stuffit

import (
	"fmt"

	"github.com/elliotnunn/peeler/internal/bitio"
)

const (
	lzwClearCode = 256
	lzwFirstFree = 257
	lzwMinWidth  = 9
	lzwMaxWidth  = 14
	lzwDictCap   = 16384
)

// lzwDecode implements StuffIt's algorithm 2: a little-endian-packed LZW
// stream, widths from 9 to 14 bits, code 256 reserved as a clear code that
// also realigns the bitstream to the next 8-code block boundary, and the
// KwKwK edge case (a code equal to the next free dictionary slot, whose
// first byte is the head of the previous entry).
func lzwDecode(input []byte, outSize int) ([]byte, error) {
	br := bitio.NewLSBReader(input)

	parent := make([]int32, lzwDictCap)
	suffix := make([]byte, lzwDictCap)
	head := make([]byte, lzwDictCap)
	for i := 0; i < 256; i++ {
		parent[i] = -1
		suffix[i] = byte(i)
		head[i] = byte(i)
	}

	free := lzwFirstFree
	width := lzwMinWidth
	prev := -1
	codesInBlock := 0

	out := make([]byte, 0, outSize)
	var scratch []byte

	expand := func(code int) []byte {
		scratch = scratch[:0]
		for code >= 0 {
			scratch = append(scratch, suffix[code])
			code = int(parent[code])
		}
		for l, r := 0, len(scratch)-1; l < r; l, r = l+1, r-1 {
			scratch[l], scratch[r] = scratch[r], scratch[l]
		}
		return scratch
	}

	for len(out) < outSize {
		code, err := br.ReadBits(width)
		if err != nil {
			break
		}
		codesInBlock++

		if int(code) == lzwClearCode {
			remaining := (8 - codesInBlock%8) % 8
			br.SkipBits(width * remaining)
			free = lzwFirstFree
			width = lzwMinWidth
			prev = -1
			codesInBlock = 0
			continue
		}

		var entry []byte
		switch {
		case int(code) < free:
			entry = append([]byte(nil), expand(int(code))...)
		case int(code) == free && prev >= 0:
			e := expand(prev)
			entry = make([]byte, len(e)+1)
			copy(entry, e)
			entry[len(e)] = head[prev]
		default:
			return nil, fmt.Errorf("stuffit: invalid lzw code %d: %w", code, errFormat)
		}

		out = append(out, entry...)

		if prev >= 0 && free < lzwDictCap {
			parent[free] = int32(prev)
			suffix[free] = entry[0]
			head[free] = entry[0]
			free++
			if free > (1<<width) && width < lzwMaxWidth {
				width++
			}
		}

		prev = int(code)
	}

	if len(out) > outSize {
		out = out[:outSize]
	}
	return out, nil
}
