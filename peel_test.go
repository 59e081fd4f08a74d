// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package peeler

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/elliotnunn/peeler/internal/crc16"
)

const macBinaryHeaderSize = 128

func macBinaryPadLen(n int) int {
	return (macBinaryHeaderSize - n%macBinaryHeaderSize) % macBinaryHeaderSize
}

// buildMacBinary assembles a minimal, structurally valid MacBinary II
// container wrapping data as the data fork with an empty resource fork, for
// exercising the wrapper-unwrap loop without a captured real-world sample.
func buildMacBinary(t *testing.T, name string, data []byte) []byte {
	t.Helper()

	hdr := make([]byte, macBinaryHeaderSize)
	hdr[1] = byte(len(name))
	copy(hdr[2:], name)
	binary.BigEndian.PutUint32(hdr[83:87], uint32(len(data)))
	binary.BigEndian.PutUint32(hdr[87:91], 0)
	crc := crc16.XMODEM(hdr[0:124])
	binary.BigEndian.PutUint16(hdr[124:126], crc)

	var buf bytes.Buffer
	buf.Write(hdr)
	buf.Write(data)
	buf.Write(make([]byte, macBinaryPadLen(len(data))))
	return buf.Bytes()
}

// nestMacBinary wraps payload in depth layers of MacBinary, innermost first.
func nestMacBinary(t *testing.T, payload []byte, depth int) []byte {
	t.Helper()
	cur := payload
	for i := 0; i < depth; i++ {
		cur = buildMacBinary(t, "layer.bin", cur)
	}
	return cur
}

func TestDetectUnrecognized(t *testing.T) {
	if got := Detect([]byte("just some arbitrary bytes, no archive signature here")); got != "" {
		t.Fatalf("Detect = %q, want \"\"", got)
	}
}

func TestPeelFallbackWrapsUnrecognizedInput(t *testing.T) {
	payload := []byte("entirely unrecognized binary content")
	files, err := Peel(payload)
	if err != nil {
		t.Fatalf("Peel: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if !bytes.Equal(files[0].Data, payload) {
		t.Errorf("Data = %q, want %q", files[0].Data, payload)
	}
}

func TestPeelUnwrapsSingleMacBinaryLayer(t *testing.T) {
	payload := []byte("the data fork payload")
	wrapped := buildMacBinary(t, "single.bin", payload)

	if got := Detect(wrapped); got != "bin" {
		t.Fatalf("Detect = %q, want \"bin\"", got)
	}

	files, err := Peel(wrapped)
	if err != nil {
		t.Fatalf("Peel: %v", err)
	}
	if len(files) != 1 || !bytes.Equal(files[0].Data, payload) {
		t.Fatalf("Peel result = %+v, want a single file with Data %q", files, payload)
	}
}

func TestPeelUnwrapsNestedMacBinaryLayers(t *testing.T) {
	payload := []byte("buried under several wrapper layers")
	const depth = 5
	wrapped := nestMacBinary(t, payload, depth)

	files, err := Peel(wrapped)
	if err != nil {
		t.Fatalf("Peel: %v", err)
	}
	if len(files) != 1 || !bytes.Equal(files[0].Data, payload) {
		t.Fatalf("Peel result = %+v, want a single file with Data %q", files, payload)
	}
}

const (
	classicTopHeaderSize = 22
	classicEntrySize     = 112
)

func classicBE32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// buildClassicStuffIt assembles a minimal one-entry classic StuffIt archive
// (method 0, raw passthrough, no resource fork) for exercising the sit
// archive handler end to end through the root Peel driver.
func buildClassicStuffIt(t *testing.T, name string, data []byte) []byte {
	t.Helper()

	top := make([]byte, classicTopHeaderSize)
	copy(top[0:4], "SIT!")
	top[4], top[5] = 0, 1
	copy(top[10:14], "rLau")

	hdr := make([]byte, classicEntrySize)
	hdr[0] = 0
	hdr[1] = 0
	hdr[2] = byte(len(name))
	copy(hdr[3:], name)
	copy(hdr[74:78], classicBE32(0x54455854))
	copy(hdr[78:82], classicBE32(0x74747874))
	copy(hdr[92:96], classicBE32(uint32(len(data))))
	copy(hdr[96:100], classicBE32(uint32(len(data))))
	rsrcCRC := crc16.Reflected(nil)
	dataCRC := crc16.Reflected(data)
	hdr[100], hdr[101] = byte(rsrcCRC>>8), byte(rsrcCRC)
	hdr[102], hdr[103] = byte(dataCRC>>8), byte(dataCRC)
	headerCRC := crc16.Reflected(hdr[:110])
	hdr[110], hdr[111] = byte(headerCRC>>8), byte(headerCRC)

	var buf bytes.Buffer
	buf.Write(top)
	buf.Write(hdr)
	buf.Write(data)
	return buf.Bytes()
}

func TestPeelArchiveSIT(t *testing.T) {
	data := []byte("a file inside a classic stuffit archive")
	archive := buildClassicStuffIt(t, "inside.txt", data)

	if got := Detect(archive); got != "sit" {
		t.Fatalf("Detect = %q, want \"sit\"", got)
	}

	files, err := Peel(archive)
	if err != nil {
		t.Fatalf("Peel: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if files[0].Name != "inside.txt" {
		t.Errorf("Name = %q, want %q", files[0].Name, "inside.txt")
	}
	if !bytes.Equal(files[0].Data, data) {
		t.Errorf("Data = %q, want %q", files[0].Data, data)
	}
	if files[0].Type != 0x54455854 || files[0].Creator != 0x74747874 {
		t.Errorf("Type/Creator = %#x/%#x, want TEXT/ttxt", files[0].Type, files[0].Creator)
	}
}

func TestPeelArchiveWrappedInMacBinary(t *testing.T) {
	data := []byte("nested archive payload")
	archive := buildClassicStuffIt(t, "nested.txt", data)
	wrapped := buildMacBinary(t, "archive.sit.bin", archive)

	files, err := Peel(wrapped)
	if err != nil {
		t.Fatalf("Peel: %v", err)
	}
	if len(files) != 1 || files[0].Name != "nested.txt" || !bytes.Equal(files[0].Data, data) {
		t.Fatalf("Peel result = %+v, want a single file %q with data %q", files, "nested.txt", data)
	}
}

func TestPeelTerminatesAtDepthCap(t *testing.T) {
	payload := []byte("never reached")
	// Three more layers than maxDepth allows full unwrapping to complete.
	wrapped := nestMacBinary(t, payload, maxDepth+3)

	files, err := Peel(wrapped)
	if err != nil {
		t.Fatalf("Peel: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1 (the depth cap always wraps as a single file)", len(files))
	}
	if bytes.Equal(files[0].Data, payload) {
		t.Fatalf("Peel fully unwrapped past maxDepth=%d, expected the cap to stop it short", maxDepth)
	}
}
