// Copyright 2024 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pkgarchive

import (
	"archive/tar"
	"compress/bzip2"
	"fmt"
	"io"

	dsbzip2 "github.com/dsnet/compress/bzip2"
)

// WriteTarBz2 assembles the legacy archive layout: a single bzip2-compressed
// POSIX tar stream with info/ and payload entries interleaved in sorted
// order (spec.md §4.8/§6). The standard library's compress/bzip2 only
// decodes; github.com/dsnet/compress/bzip2 is the ecosystem encoder used
// here (see DESIGN.md).
func WriteTarBz2(w io.Writer, entries []Entry, epochUnix int64) error {
	bz, err := dsbzip2.NewWriter(w, nil)
	if err != nil {
		return fmt.Errorf("opening bzip2 writer: %w", err)
	}
	tw := tar.NewWriter(bz)
	if err := writeEntriesToTar(tw, entries, timeFromUnix(epochUnix)); err != nil {
		bz.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		bz.Close()
		return err
	}
	return bz.Close()
}

// ReadTarBz2Paths decompresses a .tar.bz2 archive and returns the relative
// paths of its tar entries, in the order they appear in the stream — used
// by round-trip tests to confirm an archive re-reads with the same member
// ordering it was written with (spec.md §8 round-trip laws). Reading uses
// the standard library's decode-only compress/bzip2, since no third-party
// decoder in the pack improves on it for this read-back-only path.
func ReadTarBz2Paths(r io.Reader) ([]string, error) {
	tr := tar.NewReader(bzip2.NewReader(r))
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar.bz2 entry: %w", err)
		}
		names = append(names, hdr.Name)
	}
}
