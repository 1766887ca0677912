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

// Package stagingcache implements the multi-output staging cache (spec.md
// §4.9): a content-addressed snapshot of a staging output's host prefix and
// work tree, keyed so that sibling package outputs sharing a compiled tree
// can restore it instead of recompiling.
package stagingcache

import (
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/rbuild-dev/rbuild/pkg/provision"
	"github.com/rbuild-dev/rbuild/pkg/variant"
)

// Key identifies one staging cache entry.
type Key digest.Digest

// String returns the hex-encoded digest, suitable for use in a directory
// name (spec.md §4.9: "Stored contents: ... <output>/build_cache/staging_<sha>/").
func (k Key) String() string { return digest.Digest(k).Encoded() }

// ComputeKey hashes the resolved build+host package list, the subset of
// used_variant actually referenced by the staging output's requirements,
// and the two platform strings (spec.md §3, §4.9). Packages are sorted by
// name before hashing so the key is invariant under reordering of the
// input list (spec.md invariant 8); referenced variant keys are likewise
// sorted.
func ComputeKey(packages []provision.SolvedPackage, used variant.Combination, referencedKeys []string, hostPlatform, buildPlatform string) Key {
	sorted := append([]provision.SolvedPackage(nil), packages...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	for _, p := range sorted {
		b.WriteString(p.Name)
		b.WriteByte('\x00')
		b.WriteString(p.Version)
		b.WriteByte('\x00')
		b.WriteString(p.Build)
		b.WriteByte('\n')
	}

	keys := append([]string(nil), referencedKeys...)
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(used[k])
		b.WriteByte('\n')
	}

	b.WriteString("host_platform=")
	b.WriteString(hostPlatform)
	b.WriteByte('\n')
	b.WriteString("build_platform=")
	b.WriteString(buildPlatform)
	b.WriteByte('\n')

	return Key(digest.FromString(b.String()))
}
