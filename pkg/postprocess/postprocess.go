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

// Package postprocess turns the set of files a build script added to the
// host prefix into a relocatable, metadata-tagged payload: filtering,
// symlink canonicalization, binary relocation, prefix placeholder
// registration and noarch-python entry point lowering.
package postprocess

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/chainguard-dev/clog"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// PathType mirrors info/paths.json's "path_type" enum.
type PathType string

const (
	PathHardlink  PathType = "hardlink"
	PathSoftlink  PathType = "softlink"
	PathDirectory PathType = "directory"
)

// FileMode mirrors info/paths.json's optional "file_mode" field.
type FileMode string

const (
	FileModeText   FileMode = "text"
	FileModeBinary FileMode = "binary"
)

// PathsEntry is one element of the package's paths.json (spec.md §6).
type PathsEntry struct {
	Path              string   `json:"_path"`
	PathType          PathType `json:"path_type"`
	SHA256            string   `json:"sha256,omitempty"`
	SizeInBytes       int64    `json:"size_in_bytes"`
	FileMode          FileMode `json:"file_mode,omitempty"`
	PrefixPlaceholder string   `json:"prefix_placeholder,omitempty"`
	NoLink            bool     `json:"no_link,omitempty"`
}

// Options configures one output's post-processing pass.
type Options struct {
	HostPrefix string
	Before     Manifest
	After      Manifest
	Build      recipe.Build
	EntryPoint func(name string) bool // reports whether a bin/ basename is a declared entry point

	// RunDependencies and ProvidedLibraries feed the overdepending check: a
	// run dependency whose ProvidedLibraries entry exists but shares no
	// library with anything actually linked is reported as unused. A
	// dependency absent from ProvidedLibraries is assumed library-less
	// (e.g. a CLI tool dependency) and never flagged.
	RunDependencies   []string
	ProvidedLibraries map[string][]string
}

// Result is the final set of relocatable package contents plus any
// non-fatal linking diagnostics collected along the way.
type Result struct {
	Paths      []PathsEntry
	LinkJSON   *LinkDirective
	Overlinked []LinkIssue
	Overdepend []LinkIssue
}

// Process runs the full §4.7 pipeline: new-files detection, filtering,
// symlink canonicalization, binary relocation, placeholder registration
// and noarch-python entry point lowering.
func Process(ctx context.Context, opts Options) (*Result, error) {
	log := clog.FromContext(ctx)

	newFiles := opts.Before.Diff(opts.After)
	newFiles, err := ApplyFilter(newFiles, opts.Build.Files)
	if err != nil {
		return nil, fmt.Errorf("applying build.files filter: %w", err)
	}
	newFiles = DropAlwaysExcluded(newFiles)

	var link *LinkDirective
	// origPath maps a renamed noarch-python path back to where the file
	// lives in the host prefix.
	origPath := map[string]string{}
	if opts.Build.Noarch == recipe.NoarchPython {
		newFiles, link = LowerPythonEntryPoints(newFiles, opts.Build.Python, opts.EntryPoint)
		var renamed []string
		for _, p := range newFiles {
			for _, q := range TransformNoarchPython([]string{p}) {
				origPath[q] = p
				renamed = append(renamed, q)
			}
		}
		newFiles = renamed
	}
	sort.Strings(newFiles)

	result := &Result{LinkJSON: link}

	packaged := make(map[string]bool, len(newFiles))
	for _, rel := range newFiles {
		packaged[filepath.Base(rel)] = true
	}

	var overlinked []LinkIssue
	linkedLibs := map[string]bool{}
	for _, rel := range newFiles {
		abs := filepath.Join(opts.HostPrefix, rel)
		if orig, ok := origPath[rel]; ok {
			abs = filepath.Join(opts.HostPrefix, orig)
		}

		entry, warn, err := buildEntry(ctx, opts.HostPrefix, rel, abs, opts.Build.PrefixDetection)
		if err != nil {
			return nil, fmt.Errorf("building paths entry for %s: %w", rel, err)
		}
		if warn != "" {
			log.Warnf("%s", warn)
		}

		if entry.PathType == PathHardlink && runtime.GOOS != "windows" {
			issues, err := relocateBinary(ctx, opts.HostPrefix, rel, abs, opts.Build.DynamicLinking)
			if err != nil {
				return nil, fmt.Errorf("relocating %s: %w", rel, err)
			}
			if issues != nil {
				for _, issue := range issues.overlinked {
					if !packaged[filepath.Base(issue.Library)] {
						overlinked = append(overlinked, issue)
					}
				}
				for _, lib := range issues.needed {
					linkedLibs[filepath.Base(lib)] = true
				}
			}
		}

		result.Paths = append(result.Paths, entry)
	}

	overdepend := unusedDependencies(opts.RunDependencies, opts.ProvidedLibraries, linkedLibs)

	if !opts.Build.DynamicLinking.overlinkingIgnored() {
		result.Overlinked = overlinked
	} else if len(overlinked) > 0 {
		log.Infof("ignoring %d overlinking issue(s) per overlinking_behavior: ignore", len(overlinked))
	}
	if !opts.Build.DynamicLinking.overdependingIgnored() {
		result.Overdepend = overdepend
	} else if len(overdepend) > 0 {
		log.Infof("ignoring %d overdepending issue(s) per overdepending_behavior: ignore", len(overdepend))
	}

	if len(result.Overlinked) > 0 {
		return result, &OverlinkingError{Issues: result.Overlinked}
	}
	if len(result.Overdepend) > 0 {
		return result, &OverdependingError{Issues: result.Overdepend}
	}

	return result, nil
}
