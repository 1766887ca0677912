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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// urlCacheKey is the declared sha256 digest: URL caching is keyed on
// content, not origin, so two recipes fetching the same tarball from
// different mirrors share one cache entry (spec.md §4.4).
func urlCacheKey(src recipe.Source) (string, error) {
	if src.Digest.SHA256 == "" {
		return "", fmt.Errorf("url source requires a sha256 digest to be cached")
	}
	return src.Digest.SHA256, nil
}

// gitCacheKey hashes url + ref + depth + lfs, so distinct refs/depths of the
// same repository occupy distinct cache entries (spec.md §4.4).
func gitCacheKey(src recipe.Source) string {
	ref := src.Rev
	if ref == "" {
		ref = src.Tag
	}
	if ref == "" {
		ref = src.Branch
	}
	depth := -1
	if src.Depth != nil {
		depth = *src.Depth
	}
	h := sha256.New()
	h.Write([]byte(src.Git))
	h.Write([]byte{0})
	h.Write([]byte(ref))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(depth)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(src.LFS)))
	return hex.EncodeToString(h.Sum(nil))
}

// cachePath returns the cache directory for one key, creating its parent.
func cachePath(cacheDir, key string) (string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, key), nil
}

// withCacheLock serializes writers to one cache key across processes via an
// advisory flock on a sibling .lock file (spec.md §5 "writers acquire a
// per-cache-key file lock before materializing").
func withCacheLock(cacheDir, key string, fn func() error) error {
	lockPath := filepath.Join(cacheDir, key+".lock")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}
	l := flock.New(lockPath)
	if err := l.Lock(); err != nil {
		return fmt.Errorf("locking cache entry %s: %w", key, err)
	}
	defer l.Unlock() //nolint:errcheck
	return fn()
}

// cacheEntryExists reports whether key's cache entry was already fully
// materialized (a "complete" sentinel file is written only after a
// successful fetch, so a crash mid-fetch is never mistaken for a hit).
func cacheEntryExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".complete"))
	return err == nil
}

func markCacheEntryComplete(dir string) error {
	return os.WriteFile(filepath.Join(dir, ".complete"), nil, 0o644)
}
