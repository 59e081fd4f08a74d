// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package macbinary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/elliotnunn/peeler/internal/crc16"
	"github.com/elliotnunn/peeler/internal/peelerr"
)

func buildMacBinary(t *testing.T, name string, typ, creator uint32, data, resource []byte) []byte {
	t.Helper()

	hdr := make([]byte, headerSize)
	hdr[1] = byte(len(name))
	copy(hdr[2:], name)
	binary.BigEndian.PutUint32(hdr[65:69], typ)
	binary.BigEndian.PutUint32(hdr[69:73], creator)
	binary.BigEndian.PutUint32(hdr[83:87], uint32(len(data)))
	binary.BigEndian.PutUint32(hdr[87:91], uint32(len(resource)))
	crc := crc16.XMODEM(hdr[0:124])
	binary.BigEndian.PutUint16(hdr[124:126], crc)

	var buf bytes.Buffer
	buf.Write(hdr)
	buf.Write(data)
	buf.Write(make([]byte, padLen(len(data))))
	buf.Write(resource)
	buf.Write(make([]byte, padLen(len(resource))))
	return buf.Bytes()
}

func TestDecodeRoundTrip(t *testing.T) {
	data := []byte("a data fork, longer than one pad boundary perhaps not")
	resource := []byte("resource fork bytes")
	raw := buildMacBinary(t, "sample.bin", 0x41504c20, 0x4d414333, data, resource)

	if !Detect(raw) {
		t.Fatalf("Detect did not recognize a well-formed MacBinary header")
	}

	name, typ, creator, _, gotData, gotResource, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if name != "sample.bin" {
		t.Errorf("name = %q, want %q", name, "sample.bin")
	}
	if typ != 0x41504c20 || creator != 0x4d414333 {
		t.Errorf("type/creator = %#x/%#x", typ, creator)
	}
	if !bytes.Equal(gotData, data) {
		t.Errorf("data = %q, want %q", gotData, data)
	}
	if !bytes.Equal(gotResource, resource) {
		t.Errorf("resource = %q, want %q", gotResource, resource)
	}
}

func TestDecodeBadChecksum(t *testing.T) {
	raw := buildMacBinary(t, "sample.bin", 0, 0, []byte("x"), nil)
	raw[82] = 1 // force the MacBinary I fallback path to be rejected
	raw[50] ^= 0xff // corrupt a header byte covered by the checksum

	_, _, _, _, _, _, err := Decode(raw)
	if !errors.Is(err, peelerr.ErrChecksum) {
		t.Fatalf("Decode error = %v, want ErrChecksum", err)
	}
}

func TestDecodeWrapperPrefersDataFork(t *testing.T) {
	// The data fork carries a classic StuffIt signature ("SIT!" with "rLau"
	// ten bytes on), so it wins over the non-empty resource fork.
	data := []byte("SIT!\x00\x01\x00\x00\x00\x00rLau, a stuffit data fork")
	raw := buildMacBinary(t, "archive.sit.bin", 0, 0, data, []byte("some resource bytes"))

	got, err := DecodeWrapper(raw)
	if err != nil {
		t.Fatalf("DecodeWrapper: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("DecodeWrapper = %q, want the data fork %q", got, data)
	}
}

func TestDecodeWrapperFallsBackToResourceForSeaBin(t *testing.T) {
	// An empty/non-archive data fork alongside a non-empty resource fork
	// models the classic ".sea.bin" layout: the real payload lives in the
	// resource fork.
	resource := []byte("the actual payload lives here")
	raw := buildMacBinary(t, "app.sea.bin", 0, 0, nil, resource)

	got, err := DecodeWrapper(raw)
	if err != nil {
		t.Fatalf("DecodeWrapper: %v", err)
	}
	if !bytes.Equal(got, resource) {
		t.Errorf("DecodeWrapper = %q, want the resource fork %q", got, resource)
	}
}
