// Package huffman builds canonical Huffman decode trees from code-length
// tables, the representation Compact Pro's LZH engine and StuffIt's method
// 13 both use (with different alphabets and different bit sources, unified
// behind bitio.BitSource).
package huffman

import (
	"errors"
	"sort"

	"github.com/elliotnunn/peeler/internal/bitio"
)

var ErrInvalidCode = errors.New("huffman: invalid code in bitstream")

type treeNode struct {
	leaf      bool
	sym       int
	zero, one *treeNode
}

// Tree is a canonical Huffman decode tree, or a degenerate single-symbol
// tree that consumes no bits at all.
type Tree struct {
	root      *treeNode
	single    bool
	singleSym int
}

// BuildCanonical constructs a canonical Huffman tree from a code-length
// table indexed by symbol (0 meaning "symbol unused"). Codes are assigned
// in order of increasing length, and within a length in order of increasing
// symbol, the standard canonical-code construction.
func BuildCanonical(lengths []int) (*Tree, error) {
	type symlen struct{ sym, length int }
	var syms []symlen
	for s, l := range lengths {
		if l > 0 {
			syms = append(syms, symlen{s, l})
		}
	}
	if len(syms) == 0 {
		return nil, errors.New("huffman: code table has no symbols")
	}
	if len(syms) == 1 {
		return &Tree{single: true, singleSym: syms[0].sym}, nil
	}

	sort.Slice(syms, func(i, j int) bool {
		if syms[i].length != syms[j].length {
			return syms[i].length < syms[j].length
		}
		return syms[i].sym < syms[j].sym
	})

	root := &treeNode{}
	code := 0
	prevLen := syms[0].length
	for _, sl := range syms {
		code <<= uint(sl.length - prevLen)
		prevLen = sl.length

		n := root
		for b := sl.length - 1; b >= 0; b-- {
			bit := (code >> uint(b)) & 1
			if bit == 0 {
				if n.zero == nil {
					n.zero = &treeNode{}
				}
				n = n.zero
			} else {
				if n.one == nil {
					n.one = &treeNode{}
				}
				n = n.one
			}
		}
		n.leaf = true
		n.sym = sl.sym
		code++
	}

	return &Tree{root: root}, nil
}

// Decode walks the tree one bit at a time from src until it reaches a leaf.
// A single-symbol tree returns its symbol without touching src.
func (t *Tree) Decode(src bitio.BitSource) (int, error) {
	if t.single {
		return t.singleSym, nil
	}
	n := t.root
	for !n.leaf {
		b, err := src.ReadBit()
		if err != nil {
			return 0, err
		}
		if b == 0 {
			if n.zero == nil {
				return 0, ErrInvalidCode
			}
			n = n.zero
		} else {
			if n.one == nil {
				return 0, ErrInvalidCode
			}
			n = n.one
		}
	}
	return n.sym, nil
}
