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

package postprocess

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// buildEntry stats rel, canonicalizes it if it's a symlink, and returns its
// paths.json entry plus any non-fatal warning produced along the way
// (currently only the Windows absolute-symlink warning).
func buildEntry(_ context.Context, prefix, rel, abs string, detection recipe.PrefixDetection) (PathsEntry, string, error) {
	info, err := os.Lstat(abs)
	if err != nil {
		return PathsEntry{}, "", fmt.Errorf("stat %s: %w", rel, err)
	}

	switch {
	case info.IsDir():
		return PathsEntry{Path: rel, PathType: PathDirectory}, "", nil

	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(abs)
		if err != nil {
			return PathsEntry{}, "", fmt.Errorf("readlink %s: %w", rel, err)
		}
		_, warn, err := canonicalizeSymlink(prefix, rel, target)
		if err != nil {
			return PathsEntry{}, "", err
		}
		return PathsEntry{Path: rel, PathType: PathSoftlink}, warn, nil

	default:
		sum, size, err := hashFile(abs)
		if err != nil {
			return PathsEntry{}, "", err
		}
		entry := PathsEntry{Path: rel, PathType: PathHardlink, SHA256: sum, SizeInBytes: size}

		mode, placeholder, err := detectPrefixPlaceholder(prefix, rel, abs, detection)
		if err != nil {
			return PathsEntry{}, "", err
		}
		if mode != "" {
			entry.FileMode = mode
			entry.PrefixPlaceholder = placeholder
		}
		return entry, "", nil
	}
}

func hashFile(path string) (sum string, size int64, err error) {
	f, err := os.Open(path) //nolint:gosec // path is a file inside the prefix being packaged, not user input
	if err != nil {
		return "", 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
