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
	"path"
	"strings"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// LinkDirective is the noarch-python launcher-generation directive written
// to info/link.json (spec.md §4.7.5): the installer reads it and generates
// platform-appropriate launcher scripts at install time.
type LinkDirective struct {
	NoarchType  string                    `json:"noarch"`
	EntryPoints []recipe.PythonEntryPoint `json:"entry_points,omitempty"`
}

// LowerPythonEntryPoints removes the source bin/<name> (or Scripts/<name>)
// launcher files the build produced for each declared entry point, and
// returns the directive the installer will use to regenerate them.
func LowerPythonEntryPoints(paths []string, opts recipe.PythonOptions, isEntryPoint func(name string) bool) ([]string, *LinkDirective) {
	if len(opts.EntryPoints) == 0 {
		return paths, nil
	}

	drop := func(name string) bool {
		if isEntryPoint != nil {
			return isEntryPoint(name)
		}
		for _, ep := range opts.EntryPoints {
			if ep.Name == name {
				return true
			}
		}
		return false
	}

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if inLauncherDir(p) && drop(path.Base(p)) {
			continue
		}
		out = append(out, p)
	}

	return out, &LinkDirective{NoarchType: "python", EntryPoints: opts.EntryPoints}
}

func inLauncherDir(p string) bool {
	return strings.HasPrefix(p, "bin/") || strings.HasPrefix(p, "Scripts/")
}
