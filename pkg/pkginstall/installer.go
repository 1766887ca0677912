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

// Package pkginstall implements pkg/provision.Installer: it fetches a
// solved package's archive into a local cache, extracts it once, and links
// its payload (everything outside info/) into the requested prefix. The
// info/ directory itself is never copied into the prefix, matching real
// conda installers: it stays in the package cache, where
// pkg/provision.ReadRunExports reads it from via InfoDir.
package pkginstall

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/rbuild-dev/rbuild/pkg/pkgarchive"
	"github.com/rbuild-dev/rbuild/pkg/provision"
)

// Installer caches and links solved packages under CacheDir:
//
//	<CacheDir>/archives/<name>-<version>-<build>.<ext>   (downloaded archive)
//	<CacheDir>/pkgs/<name>-<version>-<build>/             (extracted tree)
type Installer struct {
	CacheDir string
	Client   *retryablehttp.Client
}

// New builds an Installer using a retrying HTTP client for remote channel
// URLs (spec.md §4.5's solver/installer split assumes a remote channel).
func New(cacheDir string) *Installer {
	client := retryablehttp.NewClient()
	client.Logger = nil
	return &Installer{CacheDir: cacheDir, Client: client}
}

func (in *Installer) pkgDirName(pkg provision.SolvedPackage) string {
	return fmt.Sprintf("%s-%s-%s", pkg.Name, pkg.Version, pkg.Build)
}

func (in *Installer) extractedDir(pkg provision.SolvedPackage) string {
	return filepath.Join(in.CacheDir, "pkgs", in.pkgDirName(pkg))
}

// InfoDir returns the info/ directory of pkg within this installer's cache,
// regardless of which prefix it was linked into.
func (in *Installer) InfoDir(_ string, pkg provision.SolvedPackage) string {
	return filepath.Join(in.extractedDir(pkg), "info")
}

// Install fetches, extracts (if not already cached) and links every pkg
// into prefix.
func (in *Installer) Install(ctx context.Context, prefix string, pkgs []provision.SolvedPackage) error {
	log := clog.FromContext(ctx)
	for _, pkg := range pkgs {
		dir := in.extractedDir(pkg)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			archivePath, err := in.fetch(ctx, pkg)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", pkg.Name, err)
			}
			if err := extract(archivePath, dir); err != nil {
				return fmt.Errorf("extracting %s: %w", pkg.Name, err)
			}
		} else if err != nil {
			return err
		}

		log.Debugf("linking %s into %s", in.pkgDirName(pkg), prefix)
		if err := linkPayload(dir, prefix); err != nil {
			return fmt.Errorf("linking %s into prefix: %w", pkg.Name, err)
		}
	}
	return nil
}

func (in *Installer) fetch(ctx context.Context, pkg provision.SolvedPackage) (string, error) {
	archiveDir := filepath.Join(in.CacheDir, "archives")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}
	ext := ".conda"
	if strings.HasSuffix(pkg.URL, ".tar.bz2") {
		ext = ".tar.bz2"
	}
	dest := filepath.Join(archiveDir, in.pkgDirName(pkg)+ext)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if strings.HasPrefix(pkg.URL, "file://") {
		return pkg.URL[len("file://"):], nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, pkg.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := in.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: unexpected status %s", pkg.URL, resp.Status)
	}

	out, err := os.CreateTemp(archiveDir, ".download-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	out.Close()
	if err := os.Rename(out.Name(), dest); err != nil {
		return "", err
	}
	return dest, nil
}

func extract(archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	if strings.HasSuffix(archivePath, ".tar.bz2") {
		return fmt.Errorf("extracting .tar.bz2 packages is not yet supported (%s)", archivePath)
	}
	return pkgarchive.ExtractConda(archivePath, destDir)
}

func linkPayload(srcDir, prefix string) error {
	return filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if rel == "info" || strings.HasPrefix(rel, "info"+string(filepath.Separator)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(prefix, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			return os.Symlink(linkTarget, target)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.Link(path, target); err == nil {
			return nil
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
