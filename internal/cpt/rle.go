package cpt

import "fmt"

// rleDecode expands Compact Pro's RLE variant: escape byte 0x81, with three
// pieces of state carried across the whole stream — saved (the last literal
// emitted), a pending repeat count, and a "half escape" flag for the
// 0x81,0x81 case, where the second 0x81 re-enters escape classification as
// a phantom byte rather than being read from the input.
func rleDecode(input []byte) ([]byte, error) {
	var out []byte
	var saved byte
	runLeft := 0
	halfEscape := false
	i := 0

	readByte := func() (byte, bool) {
		if i >= len(input) {
			return 0, false
		}
		b := input[i]
		i++
		return b, true
	}

	for {
		if runLeft > 0 {
			out = append(out, saved)
			runLeft--
			continue
		}

		var b byte
		var ok bool
		if halfEscape {
			halfEscape = false
			b = 0x81
			ok = true
		} else {
			b, ok = readByte()
			if !ok {
				break
			}
		}

		if b != 0x81 {
			out = append(out, b)
			saved = b
			continue
		}

		next, ok2 := readByte()
		if !ok2 {
			return nil, fmt.Errorf("cpt: truncated RLE escape sequence: %w", errTruncated)
		}

		switch next {
		case 0x82:
			n, ok3 := readByte()
			if !ok3 {
				return nil, fmt.Errorf("cpt: truncated RLE escape sequence: %w", errTruncated)
			}
			if n == 0 {
				out = append(out, 0x81)
				saved = 0x82
				runLeft = 1
			} else {
				// A count byte N yields N-2 further copies of saved (none
				// for N <= 2); one copy comes out immediately and the rest
				// is scheduled.
				total := int(n) - 2
				if total < 0 {
					total = 0
				}
				if total > 0 {
					out = append(out, saved)
					runLeft = total - 1
				}
			}
		case 0x81:
			out = append(out, 0x81)
			saved = 0x81
			halfEscape = true
		default:
			out = append(out, 0x81)
			saved = next
			runLeft = 1
		}
	}

	return out, nil
}
