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

package stagingcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rbuild-dev/rbuild/pkg/variant"
)

// Metadata is the staging cache entry's metadata.json (spec.md §4.9).
type Metadata struct {
	Package       string             `json:"package"`
	HostPlatform  string             `json:"host_platform"`
	BuildPlatform string             `json:"build_platform"`
	UsedVariant   variant.Combination `json:"used_variant"`
}

// Store is a directory of staging cache entries laid out as
// <root>/staging_<sha>/{metadata.json,prefix/,work_dir/} (spec.md §4.9:
// "<output>/build_cache/staging_<sha>/").
type Store struct {
	Root string
}

func (s Store) entryDir(key Key) string {
	return filepath.Join(s.Root, "staging_"+key.String())
}

// Lookup reports whether a complete entry for key already exists.
func (s Store) Lookup(key Key) (bool, error) {
	_, err := os.Stat(filepath.Join(s.entryDir(key), "metadata.json"))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Save snapshots a staging output's build into a new cache entry: newFiles
// (the staging build's new-files set, relative to hostPrefix) into
// prefix/, and the full workDir into work_dir/ (spec.md §4.9, spec.md
// line 204: "its new-files set plus the full work/ directory are
// snapshotted").
func Save(root string, key Key, meta Metadata, hostPrefix string, newFiles []string, workDir string) error {
	s := Store{Root: root}
	dir := s.entryDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating staging cache entry %s: %w", key, err)
	}

	prefixDir := filepath.Join(dir, "prefix")
	if err := os.MkdirAll(prefixDir, 0o755); err != nil {
		return err
	}
	if err := copyFiles(hostPrefix, prefixDir, newFiles); err != nil {
		return fmt.Errorf("snapshotting prefix for %s: %w", key, err)
	}

	if err := copyTree(workDir, filepath.Join(dir, "work_dir")); err != nil {
		return fmt.Errorf("snapshotting work dir for %s: %w", key, err)
	}

	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), b, 0o644); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", key, err)
	}
	return nil
}

// Restore copies a cache entry's prefix/ and work_dir/ into a dependent
// output's fresh build directories (spec.md §4.9: "A cache hit restores
// files and skips script execution").
func Restore(root string, key Key, destHostPrefix, destWorkDir string) (Metadata, error) {
	s := Store{Root: root}
	dir := s.entryDir(key)

	var meta Metadata
	b, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return meta, fmt.Errorf("reading metadata for %s: %w", key, err)
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return meta, fmt.Errorf("parsing metadata for %s: %w", key, err)
	}

	if err := copyTree(filepath.Join(dir, "prefix"), destHostPrefix); err != nil {
		return meta, fmt.Errorf("restoring prefix for %s: %w", key, err)
	}
	if err := copyTree(filepath.Join(dir, "work_dir"), destWorkDir); err != nil {
		return meta, fmt.Errorf("restoring work dir for %s: %w", key, err)
	}
	return meta, nil
}
