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
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/moby/patternmatcher"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// ApplyFilter restricts paths to those matching spec's build.files glob
// filter, when one is declared. A nil filter passes everything through.
func ApplyFilter(paths []string, filter *recipe.FilterSpec) ([]string, error) {
	if filter == nil || (len(filter.Include) == 0 && len(filter.Exclude) == 0) {
		return paths, nil
	}

	include := filter.Include
	if len(include) == 0 {
		include = []string{"**"}
	}
	patterns := append(append([]string{}, include...), excludePatterns(filter.Exclude)...)

	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("compiling build.files patterns: %w", err)
	}

	var out []string
	for _, p := range paths {
		matched, err := matcher.Matches(p)
		if err != nil {
			return nil, fmt.Errorf("matching %s against build.files: %w", p, err)
		}
		if matched {
			out = append(out, p)
		}
	}
	return out, nil
}

func excludePatterns(exclude []string) []string {
	out := make([]string, len(exclude))
	for i, p := range exclude {
		// An exclude pattern without a slash matches at any depth.
		if !strings.Contains(p, "/") {
			p = "**/" + p
		}
		out[i] = "!" + p
	}
	return out
}

var pythonVersionDir = regexp.MustCompile(`^lib/python\d+\.\d+/`)

// DropAlwaysExcluded removes the paths spec.md §4.7.1 always drops,
// regardless of noarch kind or build.files.
func DropAlwaysExcluded(paths []string) []string {
	var out []string
	for _, p := range paths {
		if isAlwaysExcluded(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func isAlwaysExcluded(p string) bool {
	base := path.Base(p)
	switch {
	case strings.HasSuffix(p, ".pyo"):
		return true
	case strings.HasSuffix(p, ".la"):
		return true
	case base == ".DS_Store":
		return true
	case base == ".gitignore":
		return true
	case strings.Contains(p, ".git/"):
		return true
	case p == "share/info/dir":
		return true
	default:
		return false
	}
}

// TransformNoarchPython applies the noarch:python-specific renames and
// drops from spec.md §4.7.1: strip the versioned lib/python dir down to
// site-packages, drop bytecode caches, and move launchers out of bin/.
func TransformNoarchPython(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.Contains(p, "__pycache__/") || strings.HasSuffix(p, ".pyc") {
			continue
		}
		p = pythonVersionDir.ReplaceAllString(p, "")
		p = renameScriptsDir(p)
		out = append(out, p)
	}
	return out
}

func renameScriptsDir(p string) string {
	switch {
	case strings.HasPrefix(p, "bin/"):
		return "python-scripts/" + strings.TrimPrefix(p, "bin/")
	case strings.HasPrefix(p, "Scripts/"):
		return "python-scripts/" + strings.TrimPrefix(p, "Scripts/")
	default:
		return p
	}
}
