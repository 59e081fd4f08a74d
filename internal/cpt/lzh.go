package cpt

import (
	"fmt"
	"io"

	"github.com/elliotnunn/peeler/internal/bitio"
	"github.com/elliotnunn/peeler/internal/huffman"
)

const (
	lzhWindowSize  = 8192
	lzhLitSymbols  = 256
	lzhLenSymbols  = 64
	lzhOffSymbols  = 128
	lzhBlockBudget = 0x1fff0
)

// readTable reads one canonical Huffman table: an 8-bit byte count followed
// by that many bytes, each packing two 4-bit code lengths (max 15). Symbols
// beyond what's encoded implicitly have length zero (unused).
func readTable(br *bitio.MSBReader, numSymbols int) (*huffman.Tree, error) {
	numBytes, err := br.ReadBits(8)
	if err != nil {
		return nil, err
	}
	lengths := make([]int, numSymbols)
	idx := 0
	for i := 0; i < int(numBytes); i++ {
		v, err := br.ReadBits(8)
		if err != nil {
			return nil, err
		}
		hi := int(v>>4) & 0xf
		lo := int(v) & 0xf
		if idx < numSymbols {
			lengths[idx] = hi
			idx++
		}
		if idx < numSymbols {
			lengths[idx] = lo
			idx++
		}
	}
	return huffman.BuildCanonical(lengths)
}

// lzhDecode decodes Compact Pro's LZH fork compressor: blocks of three
// canonical Huffman tables (literal/length/offset) followed by a flag-bit
// stream of literals and length-offset matches against an 8KiB circular
// window, each block ending once its emission cost passes a fixed budget
// (or the bitstream runs out, which ends the final block).
func lzhDecode(input []byte, outSize int) ([]byte, error) {
	br := bitio.NewMSBReader(input)
	out := make([]byte, 0, outSize)
	window := make([]byte, lzhWindowSize)
	wpos := 0

	for len(out) < outSize {
		litTree, err := readTable(br, lzhLitSymbols)
		if err != nil {
			return nil, fmt.Errorf("cpt: lzh literal table: %w", err)
		}
		lenTree, err := readTable(br, lzhLenSymbols)
		if err != nil {
			return nil, fmt.Errorf("cpt: lzh length table: %w", err)
		}
		offTree, err := readTable(br, lzhOffSymbols)
		if err != nil {
			return nil, fmt.Errorf("cpt: lzh offset table: %w", err)
		}

		startBit := br.BitsConsumed()
		cost := 0
		exhausted := false

		for cost < lzhBlockBudget && len(out) < outSize {
			flag, err := br.ReadBit()
			if err == io.ErrUnexpectedEOF {
				exhausted = true
				break
			}
			if err != nil {
				return nil, fmt.Errorf("cpt: lzh flag bit: %w", err)
			}

			if flag == 1 {
				sym, err := litTree.Decode(br)
				if err != nil {
					return nil, fmt.Errorf("cpt: lzh literal: %w", err)
				}
				b := byte(sym)
				out = append(out, b)
				window[wpos] = b
				wpos = (wpos + 1) % lzhWindowSize
				cost += 2
				continue
			}

			lsym, err := lenTree.Decode(br)
			if err != nil {
				return nil, fmt.Errorf("cpt: lzh length: %w", err)
			}
			osym, err := offTree.Decode(br)
			if err != nil {
				return nil, fmt.Errorf("cpt: lzh offset: %w", err)
			}
			lowBits, err := br.ReadBits(6)
			if err != nil {
				return nil, fmt.Errorf("cpt: lzh offset low bits: %w", err)
			}

			length := lsym + 1
			offset := (osym<<6 | int(lowBits)) + 1
			cost += 3

			for k := 0; k < length && len(out) < outSize; k++ {
				srcpos := (wpos - offset + lzhWindowSize*2) % lzhWindowSize
				b := window[srcpos]
				out = append(out, b)
				window[wpos] = b
				wpos = (wpos + 1) % lzhWindowSize
			}
		}

		if exhausted {
			break
		}

		dataBits := br.BitsConsumed() - startBit
		dataBytes := (dataBits + 7) / 8
		skip := 2
		if dataBytes%2 == 1 {
			skip = 3
		}
		br.AlignByte()
		if br.AtEOF() {
			break
		}
		br.SkipBytes(skip)
	}

	return out, nil
}
