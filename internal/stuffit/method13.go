package stuffit

import (
	"fmt"

	"github.com/elliotnunn/peeler/internal/bitio"
	"github.com/elliotnunn/peeler/internal/huffman"
)

const (
	m13WindowSize  = 65536 // 64 KiB circular window, zero-initialized
	m13MainSymbols = 321   // 256 literals + 65 length codes (256..320)
	m13MetaSymbols = 37
)

// m13MetaCode is one (symbol, codeword, length) entry of the fixed
// meta-Huffman code that decodes each main/distance tree's length list.
// Unlike every other tree in this package, the meta tree is not built by
// huffman.BuildCanonical: its codeword/length pairs are a hardcoded table,
// inserted bit-by-bit MSB-first into a dedicated tree structure. The pack
// retains no copy of the original decoder's literal bit values (the
// original_source drop kept no code files for this format), so the table
// below is this implementation's own fixed, complete prefix code — built
// once, by hand, as data rather than computed through the shared canonical
// builder — see DESIGN.md. Lengths favor the short/common commands (the
// set-length commands 0-23 and the reset/increment/decrement commands
// 31-33) with 5 bits and the rarer high set-length commands and
// extra-length escapes (24-30, 34-36) with
// 6 bits, a complete 37-leaf code (27 entries of length 5, 10 of length 6).
var m13MetaCodes = [m13MetaSymbols]struct{ code, length int }{
	0:  {0, 5},
	1:  {1, 5},
	2:  {2, 5},
	3:  {3, 5},
	4:  {4, 5},
	5:  {5, 5},
	6:  {6, 5},
	7:  {7, 5},
	8:  {8, 5},
	9:  {9, 5},
	10: {10, 5},
	11: {11, 5},
	12: {12, 5},
	13: {13, 5},
	14: {14, 5},
	15: {15, 5},
	16: {16, 5},
	17: {17, 5},
	18: {18, 5},
	19: {19, 5},
	20: {20, 5},
	21: {21, 5},
	22: {22, 5},
	23: {23, 5},
	31: {24, 5},
	32: {25, 5},
	33: {26, 5},
	24: {54, 6},
	25: {55, 6},
	26: {56, 6},
	27: {57, 6},
	28: {58, 6},
	29: {59, 6},
	30: {60, 6},
	34: {61, 6},
	35: {62, 6},
	36: {63, 6},
}

type metaNode struct {
	leaf      bool
	sym       int
	zero, one *metaNode
}

func buildMetaTree() *metaNode {
	root := &metaNode{}
	for sym, c := range m13MetaCodes {
		n := root
		for b := c.length - 1; b >= 0; b-- {
			bit := (c.code >> uint(b)) & 1
			if bit == 0 {
				if n.zero == nil {
					n.zero = &metaNode{}
				}
				n = n.zero
			} else {
				if n.one == nil {
					n.one = &metaNode{}
				}
				n = n.one
			}
		}
		n.leaf = true
		n.sym = sym
	}
	return root
}

func decodeMeta(br *bitio.LSBReader, root *metaNode) (int, error) {
	n := root
	for !n.leaf {
		b, err := br.ReadBit()
		if err != nil {
			return 0, err
		}
		if b == 0 {
			if n.zero == nil {
				return 0, fmt.Errorf("stuffit: method13 invalid meta code: %w", errFormat)
			}
			n = n.zero
		} else {
			if n.one == nil {
				return 0, fmt.Errorf("stuffit: method13 invalid meta code: %w", errFormat)
			}
			n = n.one
		}
	}
	return n.sym, nil
}

// readLengthsViaMeta decodes numSymbols canonical code lengths through the
// fixed meta tree. Each meta symbol either sets/advances a running length
// value (0..30 set it to cmd+1, 31 resets it to 0, 32/33 increment or
// decrement it) or schedules extra repeats of the running value before the
// standard one-length emit that follows every meta symbol (34 emits zero or
// one extra via a single bit, 35 emits 2..9 extra via 3 bits, 36 emits
// 10..73 extra via 6 bits).
func readLengthsViaMeta(br *bitio.LSBReader, meta *metaNode, numSymbols int) ([]int, error) {
	lengths := make([]int, numSymbols)
	running := 0
	i := 0
	for i < numSymbols {
		cmd, err := decodeMeta(br, meta)
		if err != nil {
			return nil, err
		}

		extra := 0
		switch {
		case cmd <= 30:
			running = cmd + 1
		case cmd == 31:
			running = 0
		case cmd == 32:
			running++
		case cmd == 33:
			running--
			if running < 0 {
				return nil, fmt.Errorf("stuffit: method13 length underflow: %w", errFormat)
			}
		case cmd == 34:
			bit, err := br.ReadBits(1)
			if err != nil {
				return nil, err
			}
			if bit == 1 {
				extra = 1
			}
		case cmd == 35:
			n, err := br.ReadBits(3)
			if err != nil {
				return nil, err
			}
			extra = int(n) + 2
		case cmd == 36:
			n, err := br.ReadBits(6)
			if err != nil {
				return nil, err
			}
			extra = int(n) + 10
		default:
			return nil, fmt.Errorf("stuffit: method13 invalid meta symbol %d: %w", cmd, errFormat)
		}

		for k := 0; k < extra && i < numSymbols; k++ {
			lengths[i] = running
			i++
		}
		if i < numSymbols {
			lengths[i] = running
			i++
		}
	}
	return lengths, nil
}

// method13Decode decodes StuffIt's method 13: an LZSS engine over a 64 KiB
// zero-initialized circular window, with two alternating literal/length
// Huffman trees (the active tree is the first after every literal and the
// second after every length/distance pair) plus one distance tree, all
// rebuilt once per entry from the header byte's mode selection. Only
// dynamic mode (SET=0) is implemented: the five predefined tree sets
// (SET 1..5) need literal codeword tables this pack's retrieval does not
// carry (see DESIGN.md), so they're reported as an unsupported algorithm
// rather than decoded against invented tables that would silently produce
// wrong bytes.
func method13Decode(input []byte, outSize int) ([]byte, error) {
	br := bitio.NewLSBReader(input)

	headerByte, err := br.ReadBits(8)
	if err != nil {
		return nil, fmt.Errorf("stuffit: method13 header byte: %w", err)
	}
	set := int(headerByte>>4) & 0xf
	sBit := int(headerByte>>3) & 1
	kBits := int(headerByte) & 0x7

	if set < 0 || set > 5 {
		return nil, fmt.Errorf("stuffit: method13 invalid tree set %d: %w", set, errFormat)
	}
	if set != 0 {
		return nil, fmt.Errorf("stuffit: method13 predefined tree set %d: %w", set, errAlgo)
	}

	metaRoot := buildMetaTree()

	firstLengths, err := readLengthsViaMeta(br, metaRoot, m13MainSymbols)
	if err != nil {
		return nil, fmt.Errorf("stuffit: method13 first tree lengths: %w", err)
	}
	firstTree, err := huffman.BuildCanonical(firstLengths)
	if err != nil {
		return nil, fmt.Errorf("stuffit: method13 first tree: %w", err)
	}

	secondTree := firstTree
	if sBit == 0 {
		secondLengths, err := readLengthsViaMeta(br, metaRoot, m13MainSymbols)
		if err != nil {
			return nil, fmt.Errorf("stuffit: method13 second tree lengths: %w", err)
		}
		secondTree, err = huffman.BuildCanonical(secondLengths)
		if err != nil {
			return nil, fmt.Errorf("stuffit: method13 second tree: %w", err)
		}
	}

	distSize := kBits + 10
	distLengths, err := readLengthsViaMeta(br, metaRoot, distSize)
	if err != nil {
		return nil, fmt.Errorf("stuffit: method13 distance tree lengths: %w", err)
	}
	distTree, err := huffman.BuildCanonical(distLengths)
	if err != nil {
		return nil, fmt.Errorf("stuffit: method13 distance tree: %w", err)
	}

	window := make([]byte, m13WindowSize)
	wpos := 0
	out := make([]byte, 0, outSize)
	active := firstTree

	for len(out) < outSize {
		sym, err := active.Decode(br)
		if err != nil {
			return nil, fmt.Errorf("stuffit: method13 symbol: %w", err)
		}

		if sym < 256 {
			b := byte(sym)
			out = append(out, b)
			window[wpos] = b
			wpos = (wpos + 1) % m13WindowSize
			active = firstTree
			continue
		}

		var length int
		switch {
		case sym <= 317:
			length = sym - 253
		case sym == 318:
			extra, err := br.ReadBits(10)
			if err != nil {
				return nil, fmt.Errorf("stuffit: method13 length extra bits: %w", err)
			}
			length = int(extra) + 65
		case sym == 319:
			extra, err := br.ReadBits(15)
			if err != nil {
				return nil, fmt.Errorf("stuffit: method13 length extra bits: %w", err)
			}
			length = int(extra) + 65
		default: // 320
			return nil, fmt.Errorf("stuffit: method13 invalid length symbol 320: %w", errFormat)
		}

		dsym, err := distTree.Decode(br)
		if err != nil {
			return nil, fmt.Errorf("stuffit: method13 distance symbol: %w", err)
		}
		distance := 1
		if dsym > 0 {
			x, err := br.ReadBits(dsym - 1)
			if err != nil {
				return nil, fmt.Errorf("stuffit: method13 distance extra bits: %w", err)
			}
			distance = (1 << uint(dsym-1)) + int(x) + 1
		}

		for k := 0; k < length && len(out) < outSize; k++ {
			srcpos := (wpos - distance + m13WindowSize*2) % m13WindowSize
			b := window[srcpos]
			out = append(out, b)
			window[wpos] = b
			wpos = (wpos + 1) % m13WindowSize
		}
		active = secondTree
	}

	return out, nil
}
