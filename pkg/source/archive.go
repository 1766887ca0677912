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

package source

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// extractArchive detects archiveName's format by extension and unpacks its
// contents under destDir, hoisting a single top-level directory's contents
// up one level as spec.md §4.4 requires. It reports whether a hoist
// happened.
func extractArchive(archivePath, archiveName, destDir string) (bool, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return false, err
	}
	defer f.Close()

	switch {
	case hasAnySuffix(archiveName, ".tar.gz", ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return false, err
		}
		defer gz.Close()
		return extractTar(gz, destDir)

	case hasAnySuffix(archiveName, ".tar.bz2", ".tbz2"):
		return extractTar(bzip2.NewReader(f), destDir)

	case hasAnySuffix(archiveName, ".tar.xz", ".txz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return false, err
		}
		return extractTar(xr, destDir)

	case hasAnySuffix(archiveName, ".tar.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return false, err
		}
		defer zr.Close()
		return extractTar(zr, destDir)

	case hasAnySuffix(archiveName, ".tar"):
		return extractTar(f, destDir)

	case hasAnySuffix(archiveName, ".zip"):
		return extractZip(archivePath, destDir)

	default:
		// Not a recognized archive: copy the single file through as-is.
		dst := filepath.Join(destDir, archiveName)
		if err := copyFile(archivePath, dst); err != nil {
			return false, err
		}
		return false, nil
	}
}

func hasAnySuffix(name string, suffixes ...string) bool {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// extractTar unpacks r into destDir, then hoists a lone top-level directory
// entry's contents up one level.
func extractTar(r io.Reader, destDir string) (bool, error) {
	tr := tar.NewReader(r)
	topLevel := map[string]bool{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return false, err
		}
		name := filepath.Clean(hdr.Name)
		if name == "." || name == ".." {
			continue
		}
		target, err := secureJoin(destDir, name)
		if err != nil {
			return false, err
		}
		if first, _, ok := strings.Cut(name, string(filepath.Separator)); ok {
			topLevel[first] = true
		} else {
			topLevel[name] = true
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return false, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return false, err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode&0o777)) //nolint:gosec // archive-declared mode
			if err != nil {
				return false, err
			}
			if _, err := io.Copy(out, tr); err != nil { //nolint:gosec // size bound by the declared archive
				out.Close()
				return false, err
			}
			if err := out.Close(); err != nil {
				return false, err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return false, err
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return false, err
			}
		}
	}
	return hoistSingleTopLevelDir(destDir, topLevel)
}

func extractZip(archivePath, destDir string) (bool, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return false, err
	}
	defer zr.Close()

	topLevel := map[string]bool{}
	for _, f := range zr.File {
		name := filepath.Clean(f.Name)
		if name == "." || name == ".." {
			continue
		}
		target, err := secureJoin(destDir, name)
		if err != nil {
			return false, err
		}
		if first, _, ok := strings.Cut(name, string(filepath.Separator)); ok {
			topLevel[first] = true
		} else {
			topLevel[name] = true
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return false, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return false, err
		}
		rc, err := f.Open()
		if err != nil {
			return false, err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return false, err
		}
		if _, err := io.Copy(out, rc); err != nil { //nolint:gosec // size bound by the declared archive
			out.Close()
			rc.Close()
			return false, err
		}
		out.Close()
		rc.Close()
	}
	return hoistSingleTopLevelDir(destDir, topLevel)
}

// secureJoin joins base and name, rejecting any result that escapes base
// (a zip-slip guard against malicious archive paths).
func secureJoin(base, name string) (string, error) {
	target := filepath.Join(base, name)
	if !strings.HasPrefix(target, filepath.Clean(base)+string(filepath.Separator)) && target != filepath.Clean(base) {
		return "", fmt.Errorf("archive entry %q escapes destination directory", name)
	}
	return target, nil
}

// hoistSingleTopLevelDir moves dir's single top-level directory's contents
// up into dir itself, matching conda-build's "strip one path component when
// the archive wraps everything in project-version/" convention.
func hoistSingleTopLevelDir(dir string, topLevel map[string]bool) (bool, error) {
	if len(topLevel) != 1 {
		return false, nil
	}
	var only string
	for k := range topLevel {
		only = k
	}
	innerPath := filepath.Join(dir, only)
	info, err := os.Stat(innerPath)
	if err != nil || !info.IsDir() {
		return false, nil
	}

	entries, err := os.ReadDir(innerPath)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		src := filepath.Join(innerPath, e.Name())
		dst := filepath.Join(dir, e.Name())
		if err := os.Rename(src, dst); err != nil {
			return false, err
		}
	}
	if err := os.Remove(innerPath); err != nil {
		return false, err
	}
	return true, nil
}

func copyFile(srcPath, dstPath string) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in) //nolint:gosec // caller-provided source file, not a network stream
	return err
}
