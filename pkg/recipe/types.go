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

// Package recipe holds the recipe data model (spec.md §3) and the Stage 0
// parser: span-preserving YAML decode, schema validation, if/then/else
// splicing and alias normalization. Concrete (Stage 1) values live in the
// same structs; a field is unresolved text until pkg/render substitutes it.
package recipe

// Recipe is a fully decoded recipe, either single-output (Package and
// Requirements set, Outputs empty) or multi-output (Outputs set, Package and
// Requirements empty at the top level).
type Recipe struct {
	SchemaVersion int               `yaml:"schema_version,omitempty"`
	Context       []ContextEntry    `yaml:"-"`
	Package       *Package          `yaml:"package,omitempty"`
	Source        []Source          `yaml:"source,omitempty"`
	Build         Build             `yaml:"build,omitempty"`
	Requirements  *Requirements     `yaml:"requirements,omitempty"`
	Tests         []Test            `yaml:"tests,omitempty"`
	About         *About            `yaml:"about,omitempty"`
	Extra         map[string]any    `yaml:"extra,omitempty"`
	Cache         *Cache            `yaml:"cache,omitempty"`
	Outputs       []Output          `yaml:"outputs,omitempty"`
}

// ContextEntry is one `context:` mapping entry. Context is decoded as an
// ordered slice (not a map) because later entries may reference earlier ones
// by name during the first template rendering pass (spec.md §4.1).
type ContextEntry struct {
	Name  string
	Value string
}

// IsMultiOutput reports whether this recipe uses the `outputs:` form.
func (r *Recipe) IsMultiOutput() bool { return len(r.Outputs) > 0 }

// Output is one entry of a multi-output recipe: either a package output
// (Package set) or a staging/cache-only output (Cache set, no Package).
type Output struct {
	Package      *Package      `yaml:"package,omitempty"`
	Source       []Source      `yaml:"source,omitempty"`
	Build        Build         `yaml:"build,omitempty"`
	Requirements *Requirements `yaml:"requirements,omitempty"`
	Tests        []Test        `yaml:"tests,omitempty"`
	About        *About        `yaml:"about,omitempty"`
	Extra        map[string]any `yaml:"extra,omitempty"`
	Cache        *Cache        `yaml:"cache,omitempty"`
	Inherit      *Inherit      `yaml:"inherit,omitempty"`
}

// IsStaging reports whether this output only produces a staging cache entry
// (no package artifact).
func (o *Output) IsStaging() bool { return o.Cache != nil && o.Package == nil }

// Inherit names a staging cache entry an output restores its prefix and work
// tree from before running its own build script.
type Inherit struct {
	From       string `yaml:"from"`
	RunExports *bool  `yaml:"run_exports,omitempty"`
}

// Cache marks an output as a staging output: it compiles once into
// <output>/build_cache/staging_<sha>/ for reuse by sibling outputs.
type Cache struct {
	Source  []Source `yaml:"source,omitempty"`
	Build   Build    `yaml:"build,omitempty"`
	Requirements *Requirements `yaml:"requirements,omitempty"`
}

// Package identifies the artifact name/version produced by one output.
type Package struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Digest holds the integrity fields accepted on a URL source.
type Digest struct {
	SHA256 string `yaml:"sha256,omitempty"`
	SHA1   string `yaml:"sha1,omitempty"`
	MD5    string `yaml:"md5,omitempty"`
}

// HasAny reports whether at least one digest field is populated.
func (d Digest) HasAny() bool { return d.SHA256 != "" || d.SHA1 != "" || d.MD5 != "" }

// FilterSpec is the include/exclude glob pair applied to a source before
// staging it into work/.
type FilterSpec struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// Source is one `source:` entry: a URL, git, or local-path origin, plus
// common patch/target-directory/filter options.
type Source struct {
	// URL source.
	URL      string `yaml:"url,omitempty"`
	FileName string `yaml:"file_name,omitempty"`
	Digest   Digest `yaml:",inline"`

	// Git source.
	Git    string `yaml:"git,omitempty"`
	Tag    string `yaml:"tag,omitempty"`
	Rev    string `yaml:"rev,omitempty"`
	Branch string `yaml:"branch,omitempty"`
	Depth  *int   `yaml:"depth,omitempty"`
	LFS    bool   `yaml:"lfs,omitempty"`

	// Path source.
	Path         string `yaml:"path,omitempty"`
	UseGitignore *bool  `yaml:"use_gitignore,omitempty"`

	// Common options.
	TargetDirectory string       `yaml:"target_directory,omitempty"`
	Patches         []string     `yaml:"patches,omitempty"`
	Filter          *FilterSpec  `yaml:"filter,omitempty"`
}

// SourceKind classifies a source entry for dispatch by pkg/source.
type SourceKind int

const (
	SourceUnknown SourceKind = iota
	SourceURLKind
	SourceGitKind
	SourcePathKind
)

func (s Source) Kind() SourceKind {
	switch {
	case s.URL != "":
		return SourceURLKind
	case s.Git != "":
		return SourceGitKind
	case s.Path != "":
		return SourcePathKind
	default:
		return SourceUnknown
	}
}

// NoarchKind is the `build.noarch` flag.
type NoarchKind string

const (
	NoarchNone    NoarchKind = ""
	NoarchGeneric NoarchKind = "generic"
	NoarchPython  NoarchKind = "python"
)

// ForceFileType overrides text/binary prefix-placeholder detection for
// matching globs.
type ForceFileType struct {
	Text   []string `yaml:"text,omitempty"`
	Binary []string `yaml:"binary,omitempty"`
}

// PrefixDetection configures §4.7.4 placeholder registration.
type PrefixDetection struct {
	Force  ForceFileType `yaml:"force_file_type,omitempty"`
	Ignore []string      `yaml:"ignore,omitempty"`
	// IgnoreAll disables detection entirely when `ignore: true` was used
	// instead of a glob list.
	IgnoreAll bool `yaml:"-"`
}

// DynamicLinking configures §4.7.3 rpath rewriting and over{linking,depending}
// enforcement.
type DynamicLinking struct {
	Rpaths              []string `yaml:"rpaths,omitempty"`
	RpathAllowlist      []string `yaml:"rpath_allowlist,omitempty"`
	MissingDSOAllowlist []string `yaml:"missing_dso_allowlist,omitempty"`
	// OverlinkingBehavior and OverdependingBehavior are "error" (default) or
	// "ignore".
	OverlinkingBehavior   string `yaml:"overlinking_behavior,omitempty"`
	OverdependingBehavior string `yaml:"overdepending_behavior,omitempty"`
}

func (d DynamicLinking) EffectiveRpaths() []string {
	if len(d.Rpaths) == 0 {
		return []string{"lib/"}
	}
	return d.Rpaths
}

func (d DynamicLinking) overlinkingIgnored() bool {
	return d.OverlinkingBehavior == "ignore"
}

func (d DynamicLinking) overdependingIgnored() bool {
	return d.OverdependingBehavior == "ignore"
}

// PythonEntryPoint is one `python.entry_points` launcher declaration.
type PythonEntryPoint struct {
	Name   string
	Module string
	Func   string
}

// PythonOptions holds noarch:python specific build options.
type PythonOptions struct {
	EntryPoints []PythonEntryPoint `yaml:"entry_points,omitempty"`
}

// Build is the `build:` block, shared by single-output recipes and each
// multi-output `outputs[].build`.
type Build struct {
	Number          int             `yaml:"number"`
	String          string          `yaml:"string,omitempty"`
	Script          Script          `yaml:"script,omitempty"`
	Noarch          NoarchKind      `yaml:"noarch,omitempty"`
	Files           *FilterSpec     `yaml:"files,omitempty"`
	PrefixDetection PrefixDetection `yaml:"prefix_detection,omitempty"`
	DynamicLinking  DynamicLinking  `yaml:"dynamic_linking,omitempty"`
	Python          PythonOptions   `yaml:"python,omitempty"`
	// Skip is a list of boolean expressions; if any renders truthy for a
	// variant combination, that combination is discarded (spec.md §4.3 step 3).
	Skip []string `yaml:"skip,omitempty"`
}

// Script is the `build.script` block: either a bare command list or an
// object carrying an explicit interpreter/env/content.
type Script struct {
	Interpreter string            `yaml:"interpreter,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	Content     []string          `yaml:"content,omitempty"`
	SecretEnv   []string          `yaml:"secrets,omitempty"`
}

// RunExports is the `requirements.run_exports` block.
type RunExports struct {
	Weak   []string `yaml:"weak,omitempty"`
	Strong []string `yaml:"strong,omitempty"`
}

// IgnoreRunExports filters inherited run-exports by name or origin package.
type IgnoreRunExports struct {
	ByName      []string `yaml:"by_name,omitempty"`
	FromPackage []string `yaml:"from_package,omitempty"`
}

// Requirements is the four dependency buckets plus run-exports controls.
type Requirements struct {
	Build           []string          `yaml:"build,omitempty"`
	Host            []string          `yaml:"host,omitempty"`
	Run             []string          `yaml:"run,omitempty"`
	RunConstraints  []string          `yaml:"run_constraints,omitempty"`
	RunExports      *RunExports       `yaml:"run_exports,omitempty"`
	IgnoreRunExports *IgnoreRunExports `yaml:"ignore_run_exports,omitempty"`
}

// About is the `about:` block; the home/dev_url keys are pre-normalization
// aliases folded into homepage/repository by alias normalization (spec.md
// §4.2.4), so About has no fields of their own for them.
type About struct {
	License      string   `yaml:"license,omitempty"`
	LicenseFile  []string `yaml:"license_file,omitempty"`
	Summary      string   `yaml:"summary,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Homepage     string   `yaml:"homepage,omitempty"`
	Repository   string   `yaml:"repository,omitempty"`
	Documentation string  `yaml:"documentation,omitempty"`
}
