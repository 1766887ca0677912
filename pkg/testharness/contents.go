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

// Package testharness materializes and runs a recipe's `tests:` entries
// (spec.md §4.10): script/python/perl/r tests against a fresh environment
// containing the just-built package, package_contents enforcement at build
// time, and downstream tests recorded as skipped rather than executed.
package testharness

import (
	"fmt"

	"github.com/moby/patternmatcher"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// CheckPackageContents enforces a package_contents test against the set of
// paths a build produced (spec.md §4.10: "package_contents checks run at
// build time (before archive creation) so missing files fail the build,
// not the test"). Each non-empty glob bucket must match at least one path;
// in Strict mode every path must be matched by some bucket's globs.
func CheckPackageContents(paths []string, test recipe.PackageContentsTest) error {
	buckets := []struct {
		name  string
		globs []string
	}{
		{"files", test.Files},
		{"site_packages", test.SitePackages},
		{"bin", test.Bin},
		{"lib", test.Lib},
		{"include", test.Include},
	}

	matchedAny := make([]bool, len(paths))
	for _, bucket := range buckets {
		if len(bucket.globs) == 0 {
			continue
		}
		matcher, err := patternmatcher.New(bucket.globs)
		if err != nil {
			return fmt.Errorf("compiling package_contents %s globs: %w", bucket.name, err)
		}

		var matchedAnyPath bool
		for i, p := range paths {
			ok, err := matcher.Matches(p)
			if err != nil {
				return fmt.Errorf("matching %s against package_contents %s globs: %w", p, bucket.name, err)
			}
			if ok {
				matchedAnyPath = true
				matchedAny[i] = true
			}
		}
		if !matchedAnyPath {
			return fmt.Errorf("package_contents: no package path matched %s globs %v", bucket.name, bucket.globs)
		}
	}

	if test.Strict {
		for i, p := range paths {
			if !matchedAny[i] {
				return fmt.Errorf("package_contents: strict mode but %s matched no declared glob bucket", p)
			}
		}
	}
	return nil
}
