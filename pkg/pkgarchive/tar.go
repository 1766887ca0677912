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
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rbuild-dev/rbuild/pkg/postprocess"
)

// writeEntriesToTar writes entries as a deterministic POSIX ustar stream
// (spec.md §4.8/§6): sorted order (callers pass entries already sorted by
// BuildTree), every mtime pinned to epoch, uid/gid 0, owner/group "", mode
// bits preserving only executable-vs-regular for real files.
func writeEntriesToTar(tw *tar.Writer, entries []Entry, epoch time.Time) error {
	for _, e := range entries {
		if err := writeTarEntry(tw, e, epoch); err != nil {
			return fmt.Errorf("writing %s to archive: %w", e.Path, err)
		}
	}
	return nil
}

func writeTarEntry(tw *tar.Writer, e Entry, epoch time.Time) error {
	hdr := &tar.Header{
		Name:     e.Path,
		ModTime:  epoch,
		Uid:      0,
		Gid:      0,
		Uname:    "",
		Gname:    "",
		Format:   tar.FormatUSTAR,
	}

	switch e.Kind {
	case postprocess.PathDirectory:
		hdr.Typeflag = tar.TypeDir
		hdr.Name += "/"
		hdr.Mode = 0o755
		return tw.WriteHeader(hdr)
	}

	if e.SourcePath != "" {
		info, err := os.Lstat(e.SourcePath)
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(e.SourcePath)
			if err != nil {
				return err
			}
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = target
			hdr.Mode = 0o777
			return tw.WriteHeader(hdr)
		}

		hdr.Typeflag = tar.TypeReg
		hdr.Size = info.Size()
		hdr.Mode = regularFileMode(info.Mode())
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(e.SourcePath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	// In-memory metadata entry.
	hdr.Typeflag = tar.TypeReg
	hdr.Size = int64(len(e.Content))
	hdr.Mode = 0o644
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(e.Content)
	return err
}

// regularFileMode preserves only the executable-vs-regular distinction
// (spec.md §4.8): any execute bit anywhere maps to 0755, else 0644.
func regularFileMode(mode os.FileMode) int64 {
	if mode&0o111 != 0 {
		return 0o755
	}
	return 0o644
}
