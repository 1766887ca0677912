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

package source

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// Info is one entry of work/.source_info.json, recording what each source
// entry resolved to for debug reuse (spec.md §4.4).
type Info struct {
	Index            int    `json:"index"`
	Kind             string `json:"kind"`
	Destination      string `json:"destination"`
	CacheKey         string `json:"cache_key,omitempty"`
	HoistedSingleDir bool   `json:"hoisted_single_dir,omitempty"`
	ResolvedRev      string `json:"resolved_rev,omitempty"`
}

func kindName(k recipe.SourceKind) string {
	switch k {
	case recipe.SourceURLKind:
		return "url"
	case recipe.SourceGitKind:
		return "git"
	case recipe.SourcePathKind:
		return "path"
	default:
		return "unknown"
	}
}

// WriteSourceInfo writes work/.source_info.json from the ordered per-source
// Fetch results.
func WriteSourceInfo(workDir string, results []*Result) error {
	entries := make([]Info, len(results))
	for i, r := range results {
		entries[i] = Info{
			Index:            i,
			Kind:             kindName(r.Kind),
			Destination:      r.Destination,
			CacheKey:         r.CacheKey,
			HoistedSingleDir: r.HoistedSingleDir,
			ResolvedRev:      r.ResolvedRev,
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(workDir, ".source_info.json"), data, 0o644)
}
