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

package provision

import "strings"

// Prefixes holds the resolved build and host prefix paths for one output's
// build (spec.md §4.5).
type Prefixes struct {
	Build  string
	Host   string
	Merged bool
}

// ResolvePrefixes decides whether build and host share one prefix or get
// separate ones: they're always separate when host requirements are
// present or any `compiler(...)` call appears among the build requirements;
// absent host requirements, build and host merge into one prefix.
func ResolvePrefixes(buildDir, hostDir string, hasHost bool, rawBuildRequirements []string) Prefixes {
	if hasHost || anyCompilerCall(rawBuildRequirements) {
		return Prefixes{Build: buildDir, Host: hostDir, Merged: false}
	}
	return Prefixes{Build: buildDir, Host: buildDir, Merged: true}
}

// anyCompilerCall reports whether any requirement string (taken from the
// recipe before template rendering) invokes the compiler(...) template
// function, since that call only makes sense when build and host are
// distinguished (the returned package targets target_platform, which only
// differs from build_platform in a cross build with a separate host).
func anyCompilerCall(rawRequirements []string) bool {
	for _, req := range rawRequirements {
		if strings.Contains(req, "compiler(") {
			return true
		}
	}
	return false
}
