package stuffit

import "fmt"

// rle90Decode expands the StuffIt-variant RLE90 stream. It looks similar to
// BinHex's RLE90 but is not the same state machine: there's no "illegal
// sequence" case, and the repeat count is relative to the run already
// implied by N-1 rather than BinHex's N-2-plus-one-already-emitted scheme.
//
//	b != 0x90:        emit b, last = b
//	b == 0x90, n == 0: emit a literal 0x90 (last unchanged)
//	b == 0x90, n == 1: emit nothing
//	b == 0x90, n >= 2: emit n-1 further copies of last
func rle90Decode(input []byte) ([]byte, error) {
	var out []byte
	var last byte
	i := 0
	for i < len(input) {
		b := input[i]
		i++
		if b != 0x90 {
			out = append(out, b)
			last = b
			continue
		}
		if i >= len(input) {
			return nil, fmt.Errorf("stuffit: truncated RLE90 escape: %w", errTruncated)
		}
		n := input[i]
		i++
		switch {
		case n == 0:
			out = append(out, 0x90)
		case n == 1:
			// nothing emitted
		default:
			for k := 0; k < int(n)-1; k++ {
				out = append(out, last)
			}
		}
	}
	return out, nil
}
