// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package appledouble

import "time"

// macEpoch and appleDoubleEpoch are the two timestamp origins this package's
// callers convert to and from: the classic Mac OS epoch (used by Finder
// info and HFS catalog timestamps) and the AppleDouble file format's own
// epoch (used by its FILE_DATES_INFO entry).
var (
	macEpoch         = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
	appleDoubleEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
)

// MacTime converts a classic Mac OS timestamp (seconds since 1904) to a Go
// time, the form file-type/creator metadata sources carry dates in even
// though this module's own Metadata type does not currently surface them.
func MacTime(t uint32) time.Time { return macEpoch.Add(time.Second * time.Duration(t)) }

// appleDoubleTimestamp converts a Go time to the signed 32-bit seconds
// offset from the AppleDouble epoch that FILE_DATES_INFO entries store.
func appleDoubleTimestamp(t time.Time) int32 {
	const maxInt32, minInt32 = 1<<31 - 1, -1 << 31
	stamp := int64(t.Sub(appleDoubleEpoch).Seconds())
	if stamp > maxInt32 {
		stamp = maxInt32
	}
	if stamp < minInt32 {
		stamp = minInt32
	}
	return int32(stamp)
}
