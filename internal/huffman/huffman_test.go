// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package huffman

import (
	"testing"

	"github.com/elliotnunn/peeler/internal/bitio"
)

func TestBuildCanonicalSingleSymbol(t *testing.T) {
	tree, err := BuildCanonical([]int{0, 0, 3})
	if err != nil {
		t.Fatalf("BuildCanonical: %v", err)
	}
	// A single-symbol tree must decode without consuming any bits.
	sym, err := tree.Decode(bitio.NewMSBReader(nil))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if sym != 2 {
		t.Errorf("Decode = %d, want 2", sym)
	}
}

func TestBuildCanonicalNoSymbols(t *testing.T) {
	if _, err := BuildCanonical([]int{0, 0, 0}); err == nil {
		t.Fatalf("BuildCanonical succeeded on an all-zero length table")
	}
}

func TestBuildCanonicalDecode(t *testing.T) {
	// Three symbols: A (length 1), B (length 2), C (length 2).
	// Canonical codes: A=0, B=10, C=11.
	tree, err := BuildCanonical([]int{1, 2, 2})
	if err != nil {
		t.Fatalf("BuildCanonical: %v", err)
	}

	cases := []struct {
		bits []byte
		want int
	}{
		{[]byte{0b0_0000000}, 0}, // A
		{[]byte{0b10_000000}, 1}, // B
		{[]byte{0b11_000000}, 2}, // C
	}
	for _, c := range cases {
		sym, err := tree.Decode(bitio.NewMSBReader(c.bits))
		if err != nil {
			t.Fatalf("Decode(%08b): %v", c.bits[0], err)
		}
		if sym != c.want {
			t.Errorf("Decode(%08b) = %d, want %d", c.bits[0], sym, c.want)
		}
	}
}

func TestDecodeExhaustedSource(t *testing.T) {
	tree, err := BuildCanonical([]int{1, 1})
	if err != nil {
		t.Fatalf("BuildCanonical: %v", err)
	}
	// A two-symbol, length-1 tree has no room for an invalid code, so force
	// one with a truncated bit source instead: reading past the end of an
	// empty buffer must surface as an error, not a panic.
	_, err = tree.Decode(bitio.NewMSBReader(nil))
	if err == nil {
		t.Fatalf("Decode on an empty source succeeded, want an error")
	}
}
