// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package peeler

import (
	"github.com/elliotnunn/peeler/internal/binhex"
	"github.com/elliotnunn/peeler/internal/cpt"
	"github.com/elliotnunn/peeler/internal/macbinary"
	"github.com/elliotnunn/peeler/internal/stuffit"
)

// handlerKind distinguishes the two shapes a handler table entry can take: a
// wrapper peels to a single intermediate buffer that the driver keeps
// iterating on, an archive peels to a finished file list.
type handlerKind int

const (
	kindWrapper handlerKind = iota
	kindArchive
)

type handler struct {
	name    string
	kind    handlerKind
	probe   func([]byte) bool
	wrapper func([]byte) ([]byte, error)
	archive func([]byte) (FileList, error)
}

// handlerTable is the fixed detection order every probe and peel walks:
// wrappers before archives, so a BinHex- or MacBinary-wrapped archive is
// unwrapped before its payload is ever tested against the archive probes.
var handlerTable = []handler{
	{name: "hqx", kind: kindWrapper, probe: binhex.Detect, wrapper: binhexWrapperPeel},
	{name: "bin", kind: kindWrapper, probe: macbinary.Detect, wrapper: macbinary.DecodeWrapper},
	{name: "sit", kind: kindArchive, probe: stuffit.Detect, archive: sitArchivePeel},
	{name: "cpt", kind: kindArchive, probe: cpt.Detect, archive: cptArchivePeel},
}

func binhexWrapperPeel(b []byte) ([]byte, error) {
	_, _, _, _, data, _, err := binhex.Decode(b)
	return data, err
}

// Detect probes the handler table in fixed order and returns the name of the
// first format that matches, or "" if none do.
func Detect(b []byte) string {
	for _, h := range handlerTable {
		if h.probe(b) {
			return h.name
		}
	}
	return ""
}
