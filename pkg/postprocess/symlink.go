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
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// canonicalizeSymlink rewrites an absolute symlink whose target lies inside
// prefix to a relative one (spec.md §4.7.2). On Windows it leaves the link
// untouched and returns a warning string instead, since rewriting it may
// require elevation. A symlink whose target lies outside the prefix, or
// whose target is already relative, is left alone.
func canonicalizeSymlink(prefix, rel, target string) (rewrittenTarget string, warning string, err error) {
	if !filepath.IsAbs(target) {
		return target, "", nil
	}

	cleanPrefix := filepath.Clean(prefix)
	cleanTarget := filepath.Clean(target)
	if cleanTarget != cleanPrefix && !strings.HasPrefix(cleanTarget, cleanPrefix+string(filepath.Separator)) {
		return target, "", nil
	}

	if runtime.GOOS == "windows" {
		return target, fmt.Sprintf("absolute symlink %s targets %s inside the prefix; leaving it absolute (rewrite needs elevation on Windows)", rel, target), nil
	}

	linkDir := filepath.Dir(filepath.Join(prefix, rel))
	relTarget, err := filepath.Rel(linkDir, cleanTarget)
	if err != nil {
		return "", "", fmt.Errorf("computing relative symlink target for %s: %w", rel, err)
	}

	absPath := filepath.Join(prefix, rel)
	if err := os.Remove(absPath); err != nil {
		return "", "", fmt.Errorf("removing %s to rewrite its target: %w", rel, err)
	}
	if err := os.Symlink(relTarget, absPath); err != nil {
		return "", "", fmt.Errorf("relinking %s to %s: %w", rel, relTarget, err)
	}

	return relTarget, "", nil
}
