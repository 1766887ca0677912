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

package pkgarchive

import (
	"cmp"
	"fmt"
	"path"
	"slices"

	"github.com/rbuild-dev/rbuild/pkg/postprocess"
	"gopkg.in/yaml.v3"
)

// Entry is one archive member, either metadata held in memory (Content set)
// or a real installed file streamed from the host prefix at write time
// (SourcePath set).
// Entry is one archive member. Metadata entries carry Content in memory;
// payload entries (hardlink/softlink) carry SourcePath so the tar writer can
// stat/read the real file (and its executable bit) from the host prefix at
// write time.
type Entry struct {
	Path       string
	Kind       postprocess.PathType
	Content    []byte
	SourcePath string
}

// runExportsFile mirrors pkg/provision.ReadRunExports's file shape; defined
// again here (rather than imported) since pkgarchive writes it and
// pkg/provision only reads it from an installed dependency.
type runExportsFile struct {
	Weak   []string `json:"weak,omitempty"`
	Strong []string `json:"strong,omitempty"`
}

// BuildTree assembles every info/ entry plus the real payload entries from
// in.Postprocess.Paths into one sorted archive member list (spec.md §4.8's
// "File ordering inside the archive": entries are written in sorted order).
func BuildTree(in Inputs) ([]Entry, error) {
	var entries []Entry

	add := func(p string, content []byte) {
		entries = append(entries, Entry{Path: p, Kind: postprocess.PathHardlink, Content: content})
	}

	idxJSON, err := marshalJSON(BuildIndex(in))
	if err != nil {
		return nil, fmt.Errorf("marshaling index.json: %w", err)
	}
	add("info/index.json", idxJSON)

	aboutJSON, err := marshalJSON(BuildAbout(in.Recipe))
	if err != nil {
		return nil, fmt.Errorf("marshaling about.json: %w", err)
	}
	add("info/about.json", aboutJSON)

	pathsJSON, err := marshalJSON(BuildPaths(in.Postprocess))
	if err != nil {
		return nil, fmt.Errorf("marshaling paths.json: %w", err)
	}
	add("info/paths.json", pathsJSON)

	hashInputJSON, err := marshalJSON(BuildHashInput(in.UsedVariant))
	if err != nil {
		return nil, fmt.Errorf("marshaling hash_input.json: %w", err)
	}
	add("info/hash_input.json", hashInputJSON)

	for rel, content := range in.LicenseFiles {
		add(path.Join("info/licenses", rel), content)
	}

	if len(in.RecipeYAML) > 0 {
		add("info/recipe/recipe.yaml", in.RecipeYAML)
	}
	if len(in.RenderedYAML) > 0 {
		add("info/recipe/rendered_recipe.yaml", in.RenderedYAML)
	}
	if len(in.VariantConfig) > 0 {
		add("info/recipe/variant_config.yaml", in.VariantConfig)
	}

	if in.Recipe.Requirements != nil && in.Recipe.Requirements.RunExports != nil {
		re := in.Recipe.Requirements.RunExports
		b, err := marshalJSON(runExportsFile{Weak: re.Weak, Strong: re.Strong})
		if err != nil {
			return nil, fmt.Errorf("marshaling run_exports.json: %w", err)
		}
		add("info/run_exports.json", b)
	}

	if len(in.Recipe.Tests) > 0 {
		assets, overview, err := BuildTestAssets(in.Recipe.Tests)
		if err != nil {
			return nil, fmt.Errorf("building test assets: %w", err)
		}
		overviewYAML, err := yaml.Marshal(overview)
		if err != nil {
			return nil, fmt.Errorf("marshaling tests.yaml: %w", err)
		}
		add("info/tests/tests.yaml", overviewYAML)
		for _, a := range assets {
			for name, content := range a.Files {
				add(fmt.Sprintf("info/tests/%d/%s", a.Index, name), content)
			}
		}
	}

	if in.Postprocess.LinkJSON != nil {
		b, err := marshalJSON(in.Postprocess.LinkJSON)
		if err != nil {
			return nil, fmt.Errorf("marshaling link.json: %w", err)
		}
		add("info/link.json", b)
	}

	for _, p := range in.Postprocess.Paths {
		e := Entry{Path: p.Path, Kind: p.PathType}
		switch p.PathType {
		case postprocess.PathDirectory:
			// Directory entries carry no content.
		default:
			// Hardlink and softlink entries are both streamed from the host
			// prefix: the tar writer lstats the source to tell them apart and
			// reads the link target itself for softlinks.
			e.SourcePath = path.Join(in.HostPrefix, p.Path)
		}
		entries = append(entries, e)
	}

	slices.SortFunc(entries, func(a, b Entry) int { return cmp.Compare(a.Path, b.Path) })
	return entries, nil
}
