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

// Package source materializes recipe.Source entries (URL, git or local
// path) into an output's work/ directory, through a content-addressed cache
// at <output>/src_cache/ (spec.md §4.4).
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// Options configures one Fetch call.
type Options struct {
	// CacheDir is <output>/src_cache/.
	CacheDir string
	// WorkDir is work/, the directory each source is materialized into
	// (under its optional TargetDirectory).
	WorkDir string
	// RecipeDir is the directory the recipe file lives in, used to resolve
	// relative path sources and patch files.
	RecipeDir string
	// HTTPTimeout bounds a single HTTP request attempt (spec.md §5 default
	// 60s); zero means use the package default.
	HTTPTimeout time.Duration
	// HTTPRetries is the number of resumable retries after the first
	// attempt (spec.md §5 default 3, exponential backoff).
	HTTPRetries int
}

// Result reports what Fetch materialized, for .source_info.json.
type Result struct {
	Kind        recipe.SourceKind
	CacheKey    string
	Destination string
	// HoistedSingleDir is true if a URL archive's single top-level
	// directory was hoisted up a level.
	HoistedSingleDir bool
	// ResolvedRev is the commit a git source actually checked out.
	ResolvedRev string
}

// Fetch materializes one source entry into opts.WorkDir, under
// src.TargetDirectory if set, dispatching to the URL/git/path fetcher by
// src.Kind(), then applies src.Patches and returns a description of what
// happened.
func Fetch(ctx context.Context, src recipe.Source, opts Options) (*Result, error) {
	log := clog.FromContext(ctx)

	dest := opts.WorkDir
	if src.TargetDirectory != "" {
		dest = filepath.Join(opts.WorkDir, src.TargetDirectory)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("creating destination %s: %w", dest, err)
	}

	var (
		result *Result
		err    error
	)
	switch src.Kind() {
	case recipe.SourceURLKind:
		log.Infof("fetching url source %s", src.URL)
		result, err = fetchURL(ctx, src, dest, opts)
	case recipe.SourceGitKind:
		log.Infof("fetching git source %s", src.Git)
		result, err = fetchGit(ctx, src, dest, opts)
	case recipe.SourcePathKind:
		log.Infof("staging path source %s", src.Path)
		result, err = fetchPath(ctx, src, dest, opts)
	default:
		return nil, fmt.Errorf("source entry has none of url/git/path set")
	}
	if err != nil {
		return nil, err
	}

	if src.Filter != nil {
		if err := applyFilter(dest, *src.Filter); err != nil {
			return nil, fmt.Errorf("applying filter: %w", err)
		}
	}

	for _, p := range src.Patches {
		patchPath := p
		if !filepath.IsAbs(patchPath) {
			patchPath = filepath.Join(opts.RecipeDir, patchPath)
		}
		log.Infof("applying patch %s", p)
		if err := applyPatch(ctx, dest, patchPath); err != nil {
			return nil, fmt.Errorf("applying patch %s: %w", p, err)
		}
	}

	result.Destination = dest
	return result, nil
}

// FetchAll fetches every entry of sources in order into opts.WorkDir and
// writes work/.source_info.json describing the result.
func FetchAll(ctx context.Context, sources []recipe.Source, opts Options) ([]*Result, error) {
	results := make([]*Result, len(sources))
	for i, src := range sources {
		r, err := Fetch(ctx, src, opts)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		results[i] = r
	}
	if err := WriteSourceInfo(opts.WorkDir, results); err != nil {
		return nil, fmt.Errorf("writing source info: %w", err)
	}
	return results, nil
}
