// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Command peeler unpacks a legacy Macintosh archive or encoding (BinHex,
// MacBinary, Compact Pro, classic StuffIt, or StuffIt 5), writing each
// extracted file's data fork to an output directory and, where there's a
// resource fork or non-zero Finder metadata to preserve, an AppleDouble
// sidecar alongside it.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/elliotnunn/peeler"
	"github.com/elliotnunn/peeler/internal/appledouble"
)

func main() {
	dump := flag.Bool("dump", false, "print each AppleDouble sidecar's entry layout to stdout instead of writing sidecar files (data forks are still written)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-dump] <archive> [<output-dir>]\n", os.Args[0])
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		flag.Usage()
		os.Exit(1)
	}
	archivePath := args[0]
	outDir := "."
	if len(args) == 2 {
		outDir = args[1]
	}

	if err := run(archivePath, outDir, *dump); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(archivePath, outDir string, dump bool) error {
	files, err := peeler.PeelPath(archivePath)
	if err != nil {
		return err
	}

	for _, f := range files {
		name := f.Name
		if name == "" {
			name = filepath.Base(archivePath)
		}
		destPath := filepath.Join(outDir, filepath.FromSlash(name))

		if err := os.MkdirAll(filepath.Dir(destPath), 0o777); err != nil {
			return fmt.Errorf("peeler: %w", err)
		}
		if err := os.WriteFile(destPath, f.Data, 0o666); err != nil {
			return fmt.Errorf("peeler: %w", err)
		}

		if len(f.Resource) > 0 || f.Type != 0 || f.Creator != 0 || f.Flags != 0 {
			sidecar := appledouble.Encode(f.Type, f.Creator, f.Flags, f.Resource)

			if dump {
				summary, err := appledouble.Dump(bytes.NewReader(sidecar))
				if err != nil {
					return fmt.Errorf("peeler: dump %s: %w", name, err)
				}
				fmt.Printf("%s:\n%s\n", name, summary)
				continue
			}

			dir, base := path.Split(filepath.ToSlash(name))
			sidecarPath := filepath.Join(outDir, filepath.FromSlash(dir), "._"+base)
			if err := os.WriteFile(sidecarPath, sidecar, 0o666); err != nil {
				return fmt.Errorf("peeler: %w", err)
			}
		}
	}

	return nil
}
