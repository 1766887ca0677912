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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// applyFilter removes, from dir, every regular file that a source's
// `filter:` block excludes: a file survives only if it matches an Include
// glob (when any are given) and matches none of the Exclude globs.
func applyFilter(dir string, spec recipe.FilterSpec) error {
	var includeMatcher, excludeMatcher *patternmatcher.PatternMatcher
	var err error
	if len(spec.Include) > 0 {
		includeMatcher, err = patternmatcher.New(spec.Include)
		if err != nil {
			return fmt.Errorf("compiling filter.include: %w", err)
		}
	}
	if len(spec.Exclude) > 0 {
		exclude := make([]string, len(spec.Exclude))
		for i, p := range spec.Exclude {
			// An exclude pattern without a slash matches at any depth.
			if !strings.Contains(p, "/") {
				p = "**/" + p
			}
			exclude[i] = p
		}
		excludeMatcher, err = patternmatcher.New(exclude)
		if err != nil {
			return fmt.Errorf("compiling filter.exclude: %w", err)
		}
	}
	if includeMatcher == nil && excludeMatcher == nil {
		return nil
	}

	var toRemove []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		if includeMatcher != nil {
			matched, err := includeMatcher.Matches(rel)
			if err != nil {
				return err
			}
			if !matched {
				toRemove = append(toRemove, path)
				return nil
			}
		}
		if excludeMatcher != nil {
			matched, err := excludeMatcher.Matches(rel)
			if err != nil {
				return err
			}
			if matched {
				toRemove = append(toRemove, path)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, path := range toRemove {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return pruneEmptyDirs(dir)
}

// pruneEmptyDirs removes directories left empty by filtering, so the
// staged work/ tree doesn't carry hollow directories into the build.
func pruneEmptyDirs(root string) error {
	var dirs []string
	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	}); err != nil {
		return err
	}
	// Remove deepest-first so a parent empties only after its children do.
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			if err := os.Remove(dirs[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
