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

package variant

import (
	"crypto/md5" //nolint:gosec // content-addressing digest, not a security boundary
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Compact drops every key from combo that final rendering never actually
// touched (spec.md §4.3 step 4). usedKeys is populated by pkg/render's
// concrete rendering pass, which records every variant key referenced while
// evaluating this output's fully bound template sites — compaction itself
// has no tree to walk once rendering has already produced concrete values,
// so it is a pure filter over the combination the render pass was given.
func Compact(combo Combination, usedKeys map[string]bool) Combination {
	out := make(Combination, len(usedKeys))
	for k, v := range combo {
		if usedKeys[k] {
			out[k] = v
		}
	}
	return out
}

// canonicalJSON serializes usedVariant with sorted keys so that two
// semantically identical combinations always hash identically, independent
// of map iteration order.
func canonicalJSON(usedVariant Combination) ([]byte, error) {
	keys := make([]string, 0, len(usedVariant))
	for k := range usedVariant {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}, len(keys))
	for i, k := range keys {
		ordered[i].Key = k
		ordered[i].Value = usedVariant[k]
	}
	return json.Marshal(ordered)
}

// BuildHash computes the build hash (spec.md §3): MD5 of the canonical JSON
// serialization of usedVariant, truncated to its first 7 hex digits.
func BuildHash(usedVariant Combination) (string, error) {
	data, err := canonicalJSON(usedVariant)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(data) //nolint:gosec // content-addressing digest, not a security boundary
	return hex.EncodeToString(sum[:])[:7], nil
}

// interpreterPrefix returns the py<MM>/r<M.M>/pl<MMM> token prepended to the
// build hash when usedVariant binds the matching language version key, or
// "" if none applies.
func interpreterPrefix(usedVariant Combination) string {
	if v, ok := usedVariant["python"]; ok {
		return pyPrefix(v)
	}
	if v, ok := usedVariant["r_base"]; ok {
		segments := strings.Split(v, ".")
		if len(segments) > 2 {
			segments = segments[:2]
		}
		return "r" + strings.Join(segments, ".")
	}
	if v, ok := usedVariant["perl"]; ok {
		return "pl" + compactDigits(v, 3)
	}
	return ""
}

func pyPrefix(version string) string {
	return "py" + compactDigits(version, 2)
}

// compactDigits joins version's first n dot-separated segments with no
// separator (e.g. "3.11.2" with n=2 -> "311").
func compactDigits(version string, n int) string {
	segments := strings.Split(version, ".")
	if len(segments) > n {
		segments = segments[:n]
	}
	return strings.Join(segments, "")
}

// BuildString computes the default build string (spec.md §3):
// "<interpreter-prefix>h<hash>_<build_number>".
func BuildString(usedVariant Combination, buildNumber int) (string, error) {
	hash, err := BuildHash(usedVariant)
	if err != nil {
		return "", err
	}
	prefix := interpreterPrefix(usedVariant)
	return prefix + "h" + hash + "_" + strconv.Itoa(buildNumber), nil
}
