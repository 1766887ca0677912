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

package recipe

import (
	"fmt"
	"regexp"
	"strings"
)

// topLevelFields is the closed schema set accepted at the recipe root
// (spec.md §4.2.5).
var topLevelFields = map[string]bool{
	"context":        true,
	"package":        true,
	"source":         true,
	"build":          true,
	"requirements":   true,
	"tests":          true,
	"about":          true,
	"extra":          true,
	"outputs":        true,
	"recipe":         true,
	"schema_version": true,
	"cache":          true,
}

// aboutAliases maps deprecated `about:` field names to their canonical form
// (spec.md §4.2.4).
var aboutAliases = map[string]string{
	"home":    "homepage",
	"dev_url": "repository",
}

var (
	packageNameRe = regexp.MustCompile(`^[a-z0-9_.-]+$`)
	commentSelectorRe = regexp.MustCompile(`#\s*\[[a-zA-Z0-9_ ]+\]`)
)

// ValidatePackageName enforces spec.md §3: lowercase, [a-z0-9_.-]+, no spaces.
func ValidatePackageName(name string) error {
	if name == "" {
		return fmt.Errorf("package name must not be empty")
	}
	if !packageNameRe.MatchString(name) {
		return fmt.Errorf("package name %q must match [a-z0-9_.-]+", name)
	}
	return nil
}

// ValidatePackageVersion enforces spec.md §3: version contains no `-`.
func ValidatePackageVersion(version string) error {
	if version == "" {
		return fmt.Errorf("package version must not be empty")
	}
	if strings.Contains(version, "-") {
		return fmt.Errorf("package version %q must not contain '-'", version)
	}
	return nil
}

// ValidateSource enforces the source-level invariants from spec.md §3:
// URL sources without a file_name need a digest, git tag/rev are mutually exclusive, and
// depth+rev requires depth=-1 (the Open Question decision in SPEC_FULL.md §5
// additionally disallows depth=1 with tag= outside depth=-1).
func ValidateSource(s Source) error {
	switch s.Kind() {
	case SourceURLKind:
		if s.FileName == "" && !s.Digest.HasAny() {
			return fmt.Errorf("source url %q requires sha256, sha1, or md5 when no file_name is set", s.URL)
		}
	case SourceGitKind:
		if s.Tag != "" && s.Rev != "" {
			return fmt.Errorf("git source cannot set both tag and rev")
		}
		if s.Depth != nil && s.Rev != "" && *s.Depth != -1 {
			return fmt.Errorf("git source with rev requires depth=-1, got depth=%d", *s.Depth)
		}
		if s.Depth != nil && s.Tag != "" && *s.Depth != -1 {
			return fmt.Errorf("git source with tag requires depth=-1, got depth=%d", *s.Depth)
		}
	case SourcePathKind:
		// no additional invariants
	default:
		return fmt.Errorf("source entry has none of url, git, path set")
	}
	return nil
}

// ValidateZipKeys enforces spec.md §3: zip_keys groups must reference keys
// that all have equal-length value lists in the variant configuration.
func ValidateZipKeys(zipKeys [][]string, variantConfig map[string][]string) error {
	for _, group := range zipKeys {
		var length = -1
		for _, key := range group {
			values, ok := variantConfig[key]
			if !ok {
				return fmt.Errorf("zip_keys group %v references undefined variant key %q", group, key)
			}
			if length == -1 {
				length = len(values)
				continue
			}
			if len(values) != length {
				return fmt.Errorf("zip_keys group %v has unequal-length value lists", group)
			}
		}
	}
	return nil
}

// DetectCommentSelectors scans raw recipe text for pre-1.x comment-style
// selectors (e.g. "# [win]") and returns a warning line for each, without
// interpreting them (spec.md §4.2.2).
func DetectCommentSelectors(data []byte) []string {
	var warnings []string
	for i, line := range strings.Split(string(data), "\n") {
		if commentSelectorRe.MatchString(line) {
			warnings = append(warnings, fmt.Sprintf("line %d: comment-style selector is not interpreted: %q", i+1, strings.TrimSpace(line)))
		}
	}
	return warnings
}

// NormalizeAboutAliasKey returns the canonical field name for a possibly
// deprecated `about:` key, and whether normalization changed it.
func NormalizeAboutAliasKey(key string) (string, bool) {
	canonical, ok := aboutAliases[key]
	if !ok {
		return key, false
	}
	return canonical, true
}
