// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package binhex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/elliotnunn/peeler/internal/crc16"
	"github.com/elliotnunn/peeler/internal/peelerr"
)

// encodeSixToEight is the inverse of sixToEight, used only to build test
// fixtures: it has no other caller in this package.
func encodeSixToEight(data []byte) []byte {
	var out []byte
	var bitbuf uint32
	var bitcount uint
	for _, b := range data {
		bitbuf = bitbuf<<8 | uint32(b)
		bitcount += 8
		for bitcount >= 6 {
			bitcount -= 6
			out = append(out, sixToEightAlphabet[(bitbuf>>bitcount)&0x3f])
		}
	}
	if bitcount > 0 {
		out = append(out, sixToEightAlphabet[(bitbuf<<(6-bitcount))&0x3f])
	}
	return out
}

func buildBinHexContainer(t *testing.T, name string, typ, creator uint32, data, resource []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)
	buf.WriteByte(0) // version byte
	var fixed [18]byte
	binary.BigEndian.PutUint32(fixed[0:], typ)
	binary.BigEndian.PutUint32(fixed[4:], creator)
	binary.BigEndian.PutUint16(fixed[8:], 0) // flags
	binary.BigEndian.PutUint32(fixed[10:], uint32(len(data)))
	binary.BigEndian.PutUint32(fixed[14:], uint32(len(resource)))
	buf.Write(fixed[:])

	hdrCRC := crc16.XMODEM(buf.Bytes())
	binary.Write(&buf, binary.BigEndian, hdrCRC)

	buf.Write(data)
	dataCRC := crc16.XMODEM(data)
	binary.Write(&buf, binary.BigEndian, dataCRC)

	buf.Write(resource)
	rsrcCRC := crc16.XMODEM(resource)
	binary.Write(&buf, binary.BigEndian, rsrcCRC)

	return buf.Bytes()
}

func buildBinHexText(t *testing.T, container []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	out.WriteString(Preamble)
	out.WriteString(" by an unwitting test fixture.\n\n:")
	out.Write(encodeSixToEight(container))
	out.WriteString(":\n")
	return out.Bytes()
}

func TestDecodeRoundTrip(t *testing.T) {
	data := []byte("a data fork with some content")
	resource := []byte("a resource fork too")
	container := buildBinHexContainer(t, "test.txt", 0x54455854, 0x74747874, data, resource)
	text := buildBinHexText(t, container)

	if !Detect(text) {
		t.Fatalf("Detect did not recognize a well-formed BinHex envelope")
	}

	name, typ, creator, _, gotData, gotResource, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if name != "test.txt" {
		t.Errorf("name = %q, want %q", name, "test.txt")
	}
	if typ != 0x54455854 || creator != 0x74747874 {
		t.Errorf("type/creator = %#x/%#x, want TEXT/ttxt", typ, creator)
	}
	if !bytes.Equal(gotData, data) {
		t.Errorf("data = %q, want %q", gotData, data)
	}
	if !bytes.Equal(gotResource, resource) {
		t.Errorf("resource = %q, want %q", gotResource, resource)
	}
}

func TestDecodeCorruptedDataForkChecksum(t *testing.T) {
	container := buildBinHexContainer(t, "test.txt", 0, 0, []byte("hello"), nil)
	text := buildBinHexText(t, container)

	// Flip a bit inside the encoded data-fork region. The six-to-eight
	// alphabet has no bit structure that keeps this safely within the same
	// symbol, so find the colon-delimited body and perturb a byte past the
	// header's encoded region: the 30-byte header (with its CRC) fills the
	// first 40 encoded characters, so body character 40 (text[i+41]) holds
	// the first data-fork byte's top six bits.
	for i, c := range text {
		if c == ':' {
			text[i+41] = alternateAlphabetChar(text[i+41])
			break
		}
	}

	_, _, _, _, _, _, err := Decode(text)
	if err == nil {
		t.Fatalf("Decode succeeded on corrupted input, want an error")
	}
	if !errors.Is(err, peelerr.ErrChecksum) && !errors.Is(err, peelerr.ErrFormat) {
		t.Fatalf("Decode error = %v, want ErrChecksum or ErrFormat", err)
	}
}

func alternateAlphabetChar(c byte) byte {
	for _, a := range []byte(sixToEightAlphabet) {
		if a != c {
			return a
		}
	}
	return c
}

func TestDecodeMissingPreamble(t *testing.T) {
	_, _, _, _, _, _, err := Decode([]byte("not a binhex file at all"))
	if !errors.Is(err, peelerr.ErrFormat) {
		t.Fatalf("Decode error = %v, want ErrFormat", err)
	}
}

func TestRLE90DecodeLiteralAndRepeat(t *testing.T) {
	// 'A' 0x90 0x00 -> "A" then a literal 0x90 byte.
	out, err := rle90Decode([]byte{'A', 0x90, 0x00})
	if err != nil {
		t.Fatalf("rle90Decode: %v", err)
	}
	if !bytes.Equal(out, []byte{'A', 0x90}) {
		t.Errorf("rle90Decode = %v, want [A 0x90]", out)
	}

	// 'B' 0x90 0x04 -> the original "B" plus N-2 = 2 further copies, plus the
	// one copy the escape sequence itself always re-emits: four B's total.
	out, err = rle90Decode([]byte{'B', 0x90, 0x04})
	if err != nil {
		t.Fatalf("rle90Decode: %v", err)
	}
	if !bytes.Equal(out, []byte{'B', 'B', 'B', 'B'}) {
		t.Errorf("rle90Decode = %v, want [B B B B]", out)
	}
}

func TestRLE90DecodeIllegalSequence(t *testing.T) {
	_, err := rle90Decode([]byte{'A', 0x90, 0x01})
	if !errors.Is(err, peelerr.ErrFormat) {
		t.Fatalf("rle90Decode error = %v, want ErrFormat", err)
	}
}
