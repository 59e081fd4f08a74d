package stuffit

import "bytes"

// classicSignatures are the nine 4-byte magic numbers classic StuffIt
// archives have carried across format revisions, each paired with the
// separate "rLau" creator marker ten bytes later.
var classicSignatures = [][]byte{
	[]byte("SIT!"), []byte("ST46"), []byte("ST50"), []byte("ST60"),
	[]byte("ST65"), []byte("STin"), []byte("STi2"), []byte("STi3"),
	[]byte("STi4"),
}

// sit5BannerHead and sit5BannerTail are the two fixed fragments of the
// 80-byte SIT5 banner, with the archive's own version digits sitting
// between them.
const (
	sit5BannerHead = "StuffIt (c)1997-"
	sit5BannerTail = " Aladdin Systems, Inc., http://www.aladdinsys.com/StuffIt/"
)

// Detect reports whether b looks like a classic StuffIt or SIT5 archive.
func Detect(b []byte) bool {
	_, classicOK := findClassic(b)
	_, sit5OK := findSIT5(b)
	return classicOK || sit5OK
}

// findClassic scans the whole buffer for the earliest offset carrying one of
// the nine classic signatures with "rLau" ten bytes further on.
func findClassic(b []byte) (int, bool) {
	for i := 0; i+14 <= len(b); i++ {
		if !bytes.Equal(b[i+10:i+14], []byte("rLau")) {
			continue
		}
		for _, sig := range classicSignatures {
			if bytes.Equal(b[i:i+4], sig) {
				return i, true
			}
		}
	}
	return 0, false
}

// findSIT5 scans the whole buffer for the earliest offset carrying the
// 80-byte SIT5 banner.
func findSIT5(b []byte) (int, bool) {
	for i := 0; i+80 <= len(b); i++ {
		if !bytes.HasPrefix(b[i:], []byte(sit5BannerHead)) {
			continue
		}
		if !bytes.Equal(b[i+20:i+78], []byte(sit5BannerTail)) {
			continue
		}
		return i, true
	}
	return 0, false
}
