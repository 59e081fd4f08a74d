// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package peeler

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/elliotnunn/peeler/internal/cpt"
	"github.com/elliotnunn/peeler/internal/stuffit"
)

// maxDepth bounds the wrapper-iteration and recursive-re-peel loops so an
// input that somehow detects as a wrapper indefinitely still terminates.
const maxDepth = 32

func sitArchivePeel(b []byte) (FileList, error) {
	entries, err := stuffit.Decode(b)
	if err != nil {
		return nil, err
	}
	out := make(FileList, len(entries))
	for i, e := range entries {
		out[i] = ExtractedFile{
			Metadata: Metadata{Name: e.Path, Type: e.Type, Creator: e.Creator, Flags: e.Flags},
			Data:     e.Data,
			Resource: e.Resource,
		}
	}
	return out, nil
}

func cptArchivePeel(b []byte) (FileList, error) {
	entries, err := cpt.Decode(b)
	if err != nil {
		return nil, err
	}
	out := make(FileList, len(entries))
	for i, e := range entries {
		out[i] = ExtractedFile{
			Metadata: Metadata{Name: e.Path, Type: e.Type, Creator: e.Creator, Flags: e.Flags},
			Data:     e.Data,
			Resource: e.Resource,
		}
	}
	return out, nil
}

// Peel fully decodes b: it chains wrapper formats until it reaches an
// archive or an unrecognized blob (wrapped as a single nameless file), then
// performs one pass of recursive re-peel over the result.
func Peel(b []byte) (FileList, error) {
	return peelDepth(b, 0)
}

// peelDepth is Peel's implementation, carrying a depth counter shared across
// both the wrapper-chain loop below and rePeel's recursive re-entry into
// Peel, so maxDepth bounds the *cumulative* wrapper<->archive<->wrapper
// recursion rather than just one chain link at a time.
func peelDepth(b []byte, depth int) (FileList, error) {
	cur := b
	for ; ; depth++ {
		if depth >= maxDepth {
			return FileList{{Data: cur}}, nil
		}

		h := matchHandler(cur)
		if h == nil {
			return FileList{{Data: cur}}, nil
		}

		switch h.kind {
		case kindWrapper:
			next, err := h.wrapper(cur)
			if err != nil {
				return nil, fmt.Errorf("peeler: %s: %w", h.name, err)
			}
			cur = next
		case kindArchive:
			files, err := h.archive(cur)
			if err != nil {
				return nil, fmt.Errorf("peeler: %s: %w", h.name, err)
			}
			return rePeel(files, depth+1), nil
		}
	}
}

func matchHandler(b []byte) *handler {
	for i := range handlerTable {
		if handlerTable[i].probe(b) {
			return &handlerTable[i]
		}
	}
	return nil
}

// rePeel splices recursively-unwrapped files in place of any extracted file
// whose data fork itself detects as a *wrapper* format. Archive signatures
// inside extracted forks are deliberately not followed: archive magics are
// weak and would false-positive on arbitrary binary payloads. A failure
// during a sub-peel is swallowed — the original extracted file is kept.
// depth carries the caller's cumulative recursion count so a wrapper that
// keeps unpacking into archives that keep re-peeling into wrappers still
// terminates within maxDepth overall.
func rePeel(files FileList, depth int) FileList {
	out := make(FileList, 0, len(files))
	for _, f := range files {
		h := matchHandler(f.Data)
		if h == nil || h.kind != kindWrapper {
			out = append(out, f)
			continue
		}
		if depth >= maxDepth {
			out = append(out, f)
			continue
		}
		sub, err := peelDepth(f.Data, depth)
		if err != nil {
			slog.Debug("peeler: sub-peel failed, keeping extracted file as-is", "name", f.Name, "error", err)
			out = append(out, f)
			continue
		}
		out = append(out, sub...)
	}
	return out
}

// PeelPath reads path and peels its contents.
func PeelPath(path string) (FileList, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("peeler: %w", err)
	}
	return Peel(b)
}
