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

// Package pkgarchive builds the info/ tree (spec.md §4.8) and assembles the
// layered .conda and legacy .tar.bz2 package archives from it (spec.md §6).
package pkgarchive

import (
	"cmp"
	"slices"
	"time"

	"github.com/package-url/packageurl-go"

	"github.com/rbuild-dev/rbuild/pkg/postprocess"
	"github.com/rbuild-dev/rbuild/pkg/recipe"
	"github.com/rbuild-dev/rbuild/pkg/variant"
)

// IndexJSON is info/index.json (spec.md §6).
type IndexJSON struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Build        string   `json:"build"`
	BuildNumber  int      `json:"build_number"`
	Depends      []string `json:"depends"`
	Constrains   []string `json:"constrains,omitempty"`
	Subdir       string   `json:"subdir"`
	Noarch       string   `json:"noarch,omitempty"`
	Timestamp    int64    `json:"timestamp"`
	License      string   `json:"license,omitempty"`
	LicenseFamily string  `json:"license_family,omitempty"`
	Platform     string   `json:"platform,omitempty"`
	Arch         string   `json:"arch,omitempty"`
	// Purl is a package-url (purl) identifying this artifact, carried as
	// provenance metadata alongside index.json's conda-native fields.
	Purl string `json:"purl,omitempty"`
}

// AboutJSON is info/about.json: the recipe's About block, canonicalized.
type AboutJSON struct {
	Homepage      string   `json:"home,omitempty"`
	Repository    string   `json:"dev_url,omitempty"`
	Documentation string   `json:"doc_url,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	Description   string   `json:"description,omitempty"`
	License       string   `json:"license,omitempty"`
	LicenseFiles  []string `json:"license_file,omitempty"`
}

// PathsJSON is info/paths.json.
type PathsJSON struct {
	PathsVersion int                      `json:"paths_version"`
	Paths        []postprocess.PathsEntry `json:"paths"`
}

// Inputs collects everything needed to assemble one output's info/ tree and
// archive. SourceDateEpoch drives every timestamp embedded in metadata and
// tar headers (spec.md §4.8's "File ordering inside the archive").
type Inputs struct {
	Recipe          *recipe.Recipe
	RecipeYAML      []byte
	RenderedYAML    []byte
	VariantConfig   []byte
	UsedVariant     variant.Combination
	Platform        string // e.g. "linux-64", "osx-arm64", "noarch"
	HostPrefix      string
	Postprocess     *postprocess.Result
	LicenseFiles    map[string][]byte // relative path under licenses/ -> content
	SourceDateEpoch time.Time
}

// BuildIndex derives info/index.json from the resolved recipe and the
// platform it was built for.
func BuildIndex(in Inputs) IndexJSON {
	r := in.Recipe
	idx := IndexJSON{
		Name:        r.Package.Name,
		Version:     r.Package.Version,
		Build:       buildStringOf(r),
		BuildNumber: r.Build.Number,
		Subdir:      in.Platform,
		Timestamp:   in.SourceDateEpoch.UnixMilli(),
		Depends:     []string{},
	}
	if r.Requirements != nil {
		idx.Depends = append(idx.Depends, r.Requirements.Run...)
		idx.Constrains = append(idx.Constrains, r.Requirements.RunConstraints...)
	}
	slices.Sort(idx.Depends)
	slices.Sort(idx.Constrains)
	if r.Build.Noarch != recipe.NoarchNone {
		idx.Noarch = string(r.Build.Noarch)
		idx.Subdir = "noarch"
	}
	if r.About != nil {
		idx.License = r.About.License
	}
	idx.Purl = purlFor(r, idx.Subdir).String()
	return idx
}

// purlFor builds a package-url identifying this artifact, qualified by its
// subdir so provenance consumers can distinguish platform builds of the same
// name/version without parsing the build string.
func purlFor(r *recipe.Recipe, subdir string) packageurl.PackageURL {
	qualifiers := packageurl.Qualifiers{}
	if subdir != "" {
		qualifiers = append(qualifiers, packageurl.Qualifier{Key: "subdir", Value: subdir})
	}
	return *packageurl.NewPackageURL("conda", "", r.Package.Name, r.Package.Version, qualifiers, "")
}

func buildStringOf(r *recipe.Recipe) string {
	if r.Build.String != "" {
		return r.Build.String
	}
	return ""
}

// BuildAbout derives info/about.json.
func BuildAbout(r *recipe.Recipe) AboutJSON {
	if r.About == nil {
		return AboutJSON{}
	}
	return AboutJSON{
		Homepage:      r.About.Homepage,
		Repository:    r.About.Repository,
		Documentation: r.About.Documentation,
		Summary:       r.About.Summary,
		Description:   r.About.Description,
		License:       r.About.License,
		LicenseFiles:  r.About.LicenseFile,
	}
}

// BuildPaths derives info/paths.json, sorted ascending by relative path
// (spec.md §8 invariant 4, §4.8 "File ordering inside the archive").
func BuildPaths(result *postprocess.Result) PathsJSON {
	paths := slices.Clone(result.Paths)
	slices.SortFunc(paths, func(a, b postprocess.PathsEntry) int {
		return cmp.Compare(a.Path, b.Path)
	})
	return PathsJSON{PathsVersion: 1, Paths: paths}
}

// HashInputJSON is info/hash_input.json: the canonical used_variant mapping
// the build hash was computed over (spec.md §3 "Build hash").
type HashInputJSON map[string]string

func BuildHashInput(used variant.Combination) HashInputJSON {
	return HashInputJSON(used)
}
