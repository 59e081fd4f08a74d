// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package stuffit

import (
	"bytes"
	"errors"
	"testing"

	"github.com/elliotnunn/peeler/internal/crc16"
)

func be16bytes(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

// buildSIT5Archive assembles a minimal one-entry StuffIt 5 archive (method 0,
// raw passthrough, no resource fork, no folder nesting).
func buildSIT5Archive(t *testing.T, name string, data []byte) []byte {
	t.Helper()

	const topSize = 100
	top := make([]byte, topSize)
	copy(top[0:16], sit5BannerHead)
	copy(top[16:20], "5.0 ")
	copy(top[20:20+len(sit5BannerTail)], sit5BannerTail)
	copy(top[sit5EntryCountOff:sit5EntryCountOff+2], be16bytes(1))
	copy(top[sit5CursorOff:sit5CursorOff+4], be32bytes(topSize))

	hdrSize := 48 + len(name)
	hdr1 := make([]byte, hdrSize)
	copy(hdr1[0:4], be32bytes(sit5Magic))
	hdr1[4] = 1 // version
	copy(hdr1[6:8], be16bytes(uint16(hdrSize)))
	hdr1[9] = 0 // flags: not a folder, not encrypted
	copy(hdr1[26:30], be32bytes(0)) // parent offset: root
	copy(hdr1[30:32], be16bytes(uint16(len(name))))
	copy(hdr1[34:38], be32bytes(uint32(len(data))))
	copy(hdr1[38:42], be32bytes(uint32(len(data))))
	dataCRC := crc16.Reflected(data)
	copy(hdr1[42:44], be16bytes(dataCRC))
	hdr1[46] = 0 // data method: raw
	copy(hdr1[48:48+len(name)], name)
	crcBuf := append([]byte(nil), hdr1...)
	crcBuf[32], crcBuf[33] = 0, 0
	headerCRC := crc16.Reflected(crcBuf)
	copy(hdr1[32:34], be16bytes(headerCRC))

	hdr2 := make([]byte, 12+sit5SkipLenV1)
	copy(hdr2[0:2], be16bytes(0)) // flags2: no resource fork
	copy(hdr2[2:6], be32bytes(0x54455854))
	copy(hdr2[6:10], be32bytes(0x74747874))
	copy(hdr2[10:12], be16bytes(0))

	var buf bytes.Buffer
	buf.Write(top)
	buf.Write(hdr1)
	buf.Write(hdr2)
	buf.Write(data)
	return buf.Bytes()
}

func TestDecodeSIT5RoundTrip(t *testing.T) {
	want := []byte("hello, stuffit 5")
	archive := buildSIT5Archive(t, "hi.txt", want)

	if !Detect(archive) {
		t.Fatalf("Detect did not recognize a well-formed sit5 archive")
	}

	entries, err := Decode(archive)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Path != "hi.txt" {
		t.Errorf("Path = %q, want %q", e.Path, "hi.txt")
	}
	if !bytes.Equal(e.Data, want) {
		t.Errorf("Data = %q, want %q", e.Data, want)
	}
	if e.Type != 0x54455854 || e.Creator != 0x74747874 {
		t.Errorf("Type/Creator = %#x/%#x, want TEXT/ttxt", e.Type, e.Creator)
	}
}

func TestDecodeSIT5HeaderCRCMismatch(t *testing.T) {
	archive := buildSIT5Archive(t, "hi.txt", []byte("payload"))
	archive[110] ^= 0xff // corrupt a timestamp byte covered only by the entry header CRC

	_, err := Decode(archive)
	if !errors.Is(err, errFormat) && !errors.Is(err, errChecksum) {
		t.Fatalf("Decode error = %v, want errFormat or errChecksum", err)
	}
}

func TestSIT5WinsWhenEarlierThanClassic(t *testing.T) {
	sit5 := buildSIT5Archive(t, "a.txt", []byte("x"))
	classic := buildClassicArchive(t, "b.txt", []byte("y"))

	// Place the sit5 archive first so its banner offset is strictly earlier;
	// Decode must follow the earliest-match rule and parse it as sit5, not
	// classic, even though both signatures are present in the buffer.
	combined := append(append([]byte{}, sit5...), classic...)

	entries, err := Decode(combined)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "a.txt" {
		t.Fatalf("Decode picked the wrong archive: %+v", entries)
	}
}
