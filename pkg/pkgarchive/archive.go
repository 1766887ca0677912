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
	"fmt"
	"os"
	"path/filepath"
)

// Format selects the archive layout written for one output (spec.md §4.8).
type Format string

const (
	FormatConda  Format = "conda"
	FormatTarBz2 Format = "tarbz2"
)

// Package describes the archive produced for one output: its destination
// path under <output-dir>/<subdir>/ and the tree it was built from.
type Package struct {
	Path    string
	Entries []Entry
}

// Build assembles in's info/ tree and writes the requested archive format
// under outputDir/<subdir>/<name>-<version>-<build_string>.<ext> (spec.md
// §4.8 "Output filename").
func Build(in Inputs, outputDir string, format Format, opts CondaOptions) (*Package, error) {
	entries, err := BuildTree(in)
	if err != nil {
		return nil, fmt.Errorf("building info/ tree: %w", err)
	}

	build := in.Recipe.Build.String
	if build == "" {
		return nil, fmt.Errorf("recipe has no computed build string; render the output before packaging")
	}

	subdir := in.Platform
	if in.Recipe.Build.Noarch != "" {
		subdir = "noarch"
	}

	ext := ".conda"
	if format == FormatTarBz2 {
		ext = ".tar.bz2"
	}
	filename := fmt.Sprintf("%s-%s-%s%s", in.Recipe.Package.Name, in.Recipe.Package.Version, build, ext)
	destDir := filepath.Join(outputDir, subdir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", destDir, err)
	}
	dest := filepath.Join(destDir, filename)

	f, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("creating archive %s: %w", dest, err)
	}
	defer f.Close()

	switch format {
	case FormatConda:
		err = WriteConda(f, in.Recipe.Package.Name, in.Recipe.Package.Version, build, entries, in, opts)
	case FormatTarBz2:
		err = WriteTarBz2(f, entries, in.SourceDateEpoch.Unix())
	default:
		err = fmt.Errorf("unknown archive format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("writing %s: %w", dest, err)
	}

	return &Package{Path: dest, Entries: entries}, nil
}
