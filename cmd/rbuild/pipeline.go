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

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"gopkg.in/yaml.v3"

	"github.com/rbuild-dev/rbuild/pkg/buildexec"
	"github.com/rbuild-dev/rbuild/pkg/orchestrator"
	"github.com/rbuild-dev/rbuild/pkg/pkgarchive"
	"github.com/rbuild-dev/rbuild/pkg/pkginstall"
	"github.com/rbuild-dev/rbuild/pkg/postprocess"
	"github.com/rbuild-dev/rbuild/pkg/provision"
	"github.com/rbuild-dev/rbuild/pkg/recipe"
	"github.com/rbuild-dev/rbuild/pkg/render"
	"github.com/rbuild-dev/rbuild/pkg/source"
	"github.com/rbuild-dev/rbuild/pkg/stagingcache"
	"github.com/rbuild-dev/rbuild/pkg/testharness"
	"github.com/rbuild-dev/rbuild/pkg/variant"
)

// pipeline holds everything buildOutput needs across every output of every
// variant combination: the external collaborators (solver, installer,
// sandbox), the directories a build runs under, and the staging cache keys
// each completed cache output hands to its dependents.
type pipeline struct {
	flags        *BuildFlags
	recipeDir    string
	recipeYAML   []byte
	rawBuildReqs map[int][]string

	solver    provision.Solver
	installer *pkginstall.Installer
	sandbox   buildexec.Sandbox

	sourceDateEpoch    time.Time
	variantConfig      []byte
	recipeYAMLForCombo []byte

	mu          sync.Mutex
	stagingKeys map[string]stagingKeyEntry
}

type stagingKeyEntry struct {
	key       stagingcache.Key
	buildPkgs []provision.SolvedPackage
	hostPkgs  []provision.SolvedPackage
	runDeps   []string
}

func (p *pipeline) stagingRoot() string {
	return filepath.Join(p.flags.CacheDir, "staging")
}

func (p *pipeline) saveStagingKey(name string, entry stagingKeyEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stagingKeys[name] = entry
}

func (p *pipeline) lookupStagingKey(name string) (stagingKeyEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.stagingKeys[name]
	return e, ok
}

// existingLookup implements orchestrator.ExistingLookup by globbing OutDir
// for an archive already named after this output: cmd/rbuild has no index
// to consult, so --skip-existing trusts the archive filename's own
// <name>-<version>-<build> encoding (spec.md §4.8 "Output filename") rather
// than reopening each candidate archive's info/index.json.
func (p *pipeline) existingLookup() orchestrator.ExistingLookup {
	return func(name string) (orchestrator.BuiltInfo, bool) {
		if name == "" {
			return orchestrator.BuiltInfo{}, false
		}
		for _, subdir := range []string{p.flags.Platform, "noarch"} {
			matches, _ := filepath.Glob(filepath.Join(p.flags.OutDir, subdir, name+"-*.conda"))
			for _, m := range matches {
				if info, ok := parseArchiveName(filepath.Base(m), name); ok {
					return info, true
				}
			}
		}
		return orchestrator.BuiltInfo{}, false
	}
}

var archiveSuffix = ".conda"

func parseArchiveName(base, name string) (orchestrator.BuiltInfo, bool) {
	base = strings.TrimSuffix(base, archiveSuffix)
	rest := strings.TrimPrefix(base, name+"-")
	if rest == base {
		return orchestrator.BuiltInfo{}, false
	}
	idx := strings.LastIndex(rest, "-")
	if idx < 0 {
		return orchestrator.BuiltInfo{}, false
	}
	return orchestrator.BuiltInfo{Version: rest[:idx], BuildString: rest[idx+1:]}, true
}

// outputView normalizes a single-output or one multi-output entry of rec
// into one shape, so buildOutput doesn't need an IsMultiOutput branch of
// its own.
type outputView struct {
	Package      *recipe.Package
	Source       []recipe.Source
	Build        recipe.Build
	Requirements *recipe.Requirements
	Tests        []recipe.Test
	About        *recipe.About
	Cache        *recipe.Cache
	Inherit      *recipe.Inherit
}

func viewOutput(rec *recipe.Recipe, node orchestrator.Node) outputView {
	if !rec.IsMultiOutput() {
		return outputView{
			Package:      rec.Package,
			Source:       rec.Source,
			Build:        rec.Build,
			Requirements: rec.Requirements,
			Tests:        rec.Tests,
			About:        rec.About,
			Cache:        rec.Cache,
		}
	}
	o := rec.Outputs[node.Index]
	return outputView{
		Package:      o.Package,
		Source:       o.Source,
		Build:        o.Build,
		Requirements: o.Requirements,
		Tests:        o.Tests,
		About:        o.About,
		Cache:        o.Cache,
		Inherit:      o.Inherit,
	}
}

func dirNameFor(node orchestrator.Node) string {
	if node.Name != "" {
		return node.Name
	}
	return fmt.Sprintf("_output%d", node.Index)
}

func packageName(view outputView, node orchestrator.Node) string {
	if view.Package != nil {
		return view.Package.Name
	}
	return dirNameFor(node)
}

func packageVersion(view outputView) string {
	if view.Package != nil {
		return view.Package.Version
	}
	return ""
}

func usedKeys(used variant.Combination) []string {
	keys := make([]string, 0, len(used))
	for k := range used {
		keys = append(keys, k)
	}
	return keys
}

func marshalVariantConfig(cfg *variant.Config) []byte {
	b, err := yaml.Marshal(cfg.Values)
	if err != nil {
		return nil
	}
	return b
}

// buildOutput implements orchestrator.BuildFunc: it materializes one
// output's sources and dependency environment (or restores them from a
// sibling staging output's cache when view.Inherit is set), runs its build
// script, post-processes the new files, writes the archive, and runs its
// tests.
func (p *pipeline) buildOutput(ctx context.Context, node orchestrator.Node, rec *recipe.Recipe, rendered *render.Result) (orchestrator.BuiltInfo, error) {
	log := clog.FromContext(ctx)
	view := viewOutput(rec, node)
	if view.Package == nil && view.Cache == nil {
		return orchestrator.BuiltInfo{}, fmt.Errorf("output %d declares neither a package nor a cache", node.Index)
	}

	dirName := dirNameFor(node)
	outRoot := filepath.Join(p.flags.WorkDir, dirName)
	work := filepath.Join(outRoot, "work")
	hostPfx := filepath.Join(outRoot, "host")
	buildPfx := filepath.Join(outRoot, "build")
	for _, d := range []string{work, hostPfx, buildPfx} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return orchestrator.BuiltInfo{}, fmt.Errorf("creating %s: %w", d, err)
		}
	}

	before, err := postprocess.CaptureManifest(hostPfx)
	if err != nil {
		return orchestrator.BuiltInfo{}, fmt.Errorf("capturing pre-build manifest for %q: %w", node.Name, err)
	}

	var buildPkgs, hostPkgs []provision.SolvedPackage
	var runDeps []string
	var provResult *provision.Result

	if view.Inherit != nil {
		entry, ok := p.lookupStagingKey(view.Inherit.From)
		if !ok {
			return orchestrator.BuiltInfo{}, fmt.Errorf("output %q inherits from unresolved staging output %q", node.Name, view.Inherit.From)
		}
		meta, err := stagingcache.Restore(p.stagingRoot(), entry.key, hostPfx, work)
		if err != nil {
			return orchestrator.BuiltInfo{}, fmt.Errorf("restoring staging cache for %q: %w", node.Name, err)
		}
		log.Infof("output %q: restored staging cache entry built for %s", node.Name, meta.Package)
		buildPkgs, hostPkgs, runDeps = entry.buildPkgs, entry.hostPkgs, entry.runDeps
	} else {
		srcResults, err := source.FetchAll(ctx, view.Source, source.Options{
			CacheDir:  filepath.Join(outRoot, "src_cache"),
			WorkDir:   work,
			RecipeDir: p.recipeDir,
		})
		if err != nil {
			return orchestrator.BuiltInfo{}, fmt.Errorf("fetching sources for %q: %w", node.Name, err)
		}
		if err := source.WriteSourceInfo(work, srcResults); err != nil {
			return orchestrator.BuiltInfo{}, fmt.Errorf("writing source info for %q: %w", node.Name, err)
		}

		req := provision.Request{
			Channels:             p.flags.Channels,
			Platform:             p.flags.Platform,
			BuildDir:             buildPfx,
			HostDir:              hostPfx,
			RawBuildRequirements: p.rawBuildReqs[node.Index],
		}
		if view.Requirements != nil {
			req.BuildSpecs = view.Requirements.Build
			req.HostSpecs = view.Requirements.Host
			req.Run = view.Requirements.Run
			req.IgnoreRunExports = view.Requirements.IgnoreRunExports
		}

		if len(req.BuildSpecs) > 0 || len(req.HostSpecs) > 0 {
			if p.solver == nil {
				return orchestrator.BuiltInfo{}, fmt.Errorf("output %q needs dependency resolution but no --solver-cmd was configured", node.Name)
			}
			provResult, err = provision.Provision(ctx, p.solver, p.installer, req)
			if err != nil {
				return orchestrator.BuiltInfo{}, fmt.Errorf("provisioning environment for %q: %w", node.Name, err)
			}
			buildPkgs, hostPkgs, runDeps = provResult.BuildPkgs, provResult.HostPkgs, provResult.Run
			if view.Requirements != nil {
				view.Requirements.Run = provResult.Run
			}
		}

		envSpec := buildexec.EnvSpec{
			HostPrefix:      hostPfx,
			BuildPrefix:     buildPfx,
			SrcDir:          work,
			RecipeDir:       p.recipeDir,
			WorkDir:         work,
			PkgName:         packageName(view, node),
			PkgVersion:      packageVersion(view),
			BuildNumber:     view.Build.Number,
			BuildHash:       rendered.BuildHash,
			BuildString:     rendered.BuildString,
			TargetPlatform:  p.flags.Platform,
			BuildPlatform:   hostNativePlatform(),
			SourceDateEpoch: p.sourceDateEpoch.Unix(),
			ScriptEnv:       view.Build.Script.Env,
		}
		if provResult != nil {
			envSpec.Inherit = provResult.Env
		}
		env, err := buildexec.Compose(envSpec)
		if err != nil {
			return orchestrator.BuiltInfo{}, fmt.Errorf("composing build environment for %q: %w", node.Name, err)
		}

		fam := buildexec.ParsePlatformFamily(p.flags.Platform)
		script, err := buildexec.CompileScript(view.Build.Script, fam)
		if err != nil {
			return orchestrator.BuiltInfo{}, fmt.Errorf("compiling build script for %q: %w", node.Name, err)
		}

		cfg := &buildexec.Config{
			Name:     fmt.Sprintf("%s-%s", dirName, rendered.BuildString),
			WorkDir:  work,
			Env:      env,
			Script:   script,
			Platform: p.flags.Platform,
		}
		log.Infof("output %q: running build script", node.Name)
		if err := buildexec.Execute(ctx, p.sandbox, cfg); err != nil {
			return orchestrator.BuiltInfo{}, err
		}
	}

	after, err := postprocess.CaptureManifest(hostPfx)
	if err != nil {
		return orchestrator.BuiltInfo{}, fmt.Errorf("capturing post-build manifest for %q: %w", node.Name, err)
	}

	entryPoints := map[string]bool{}
	for _, ep := range view.Build.Python.EntryPoints {
		entryPoints[ep.Name] = true
	}

	ppResult, err := postprocess.Process(ctx, postprocess.Options{
		HostPrefix:      hostPfx,
		Before:          before,
		After:           after,
		Build:           view.Build,
		EntryPoint:      func(name string) bool { return entryPoints[name] },
		RunDependencies: runDeps,
	})
	if err != nil {
		return orchestrator.BuiltInfo{}, fmt.Errorf("post-processing %q: %w", node.Name, err)
	}

	if view.Cache != nil {
		newFiles := make([]string, 0, len(ppResult.Paths))
		for _, entry := range ppResult.Paths {
			newFiles = append(newFiles, entry.Path)
		}
		used := rendered.UsedVariant
		key := stagingcache.ComputeKey(append(append([]provision.SolvedPackage{}, buildPkgs...), hostPkgs...), used, usedKeys(used), p.flags.Platform, hostNativePlatform())
		meta := stagingcache.Metadata{Package: node.Name, HostPlatform: p.flags.Platform, BuildPlatform: hostNativePlatform(), UsedVariant: used}
		if err := stagingcache.Save(p.stagingRoot(), key, meta, hostPfx, newFiles, work); err != nil {
			return orchestrator.BuiltInfo{}, fmt.Errorf("saving staging cache for %q: %w", node.Name, err)
		}
		p.saveStagingKey(node.Name, stagingKeyEntry{key: key, buildPkgs: buildPkgs, hostPkgs: hostPkgs, runDeps: runDeps})
		log.Infof("output %q: saved staging cache entry %s", node.Name, key)
		if view.Package == nil {
			return orchestrator.BuiltInfo{}, nil
		}
	}

	for i, t := range view.Tests {
		if t.Kind != recipe.TestPackageContents || t.Contents == nil {
			continue
		}
		paths := make([]string, 0, len(ppResult.Paths))
		for _, entry := range ppResult.Paths {
			paths = append(paths, entry.Path)
		}
		if err := testharness.CheckPackageContents(paths, *t.Contents); err != nil {
			return orchestrator.BuiltInfo{}, fmt.Errorf("output %q: test %d: %w", node.Name, i, err)
		}
	}

	pkg, err := p.packageOutput(view, node, hostPfx, rendered, ppResult)
	if err != nil {
		return orchestrator.BuiltInfo{}, fmt.Errorf("packaging %q: %w", node.Name, err)
	}

	if len(view.Tests) > 0 {
		outcomes, err := p.runTests(ctx, view, node, hostPfx)
		if err != nil {
			return orchestrator.BuiltInfo{}, fmt.Errorf("testing %q: %w", node.Name, err)
		}
		for _, o := range outcomes {
			if o.Status == testharness.StatusFailed {
				return orchestrator.BuiltInfo{}, fmt.Errorf("output %q: test %d (%s) failed: %s", node.Name, o.Index, o.Kind, o.Detail)
			}
		}
	}

	log.Infof("output %q: wrote %s", node.Name, pkg.Path)
	return orchestrator.BuiltInfo{Version: packageVersion(view), BuildString: rendered.BuildString}, nil
}

func (p *pipeline) packageOutput(view outputView, node orchestrator.Node, hostPfx string, rendered *render.Result, pp *postprocess.Result) (*pkgarchive.Package, error) {
	platformDir := p.flags.Platform
	if view.Build.Noarch != recipe.NoarchNone {
		platformDir = "noarch"
	}

	build := view.Build
	build.String = rendered.BuildString
	archiveRecipe := &recipe.Recipe{
		Package:      view.Package,
		Build:        build,
		Requirements: view.Requirements,
		About:        view.About,
	}
	renderedYAML, _ := yaml.Marshal(archiveRecipe)

	in := pkgarchive.Inputs{
		Recipe:          archiveRecipe,
		RecipeYAML:      p.recipeYAMLForCombo,
		RenderedYAML:    renderedYAML,
		VariantConfig:   p.variantConfig,
		UsedVariant:     rendered.UsedVariant,
		Platform:        platformDir,
		HostPrefix:      hostPfx,
		Postprocess:     pp,
		SourceDateEpoch: p.sourceDateEpoch,
	}
	return pkgarchive.Build(in, p.flags.OutDir, pkgarchive.FormatConda, pkgarchive.CondaOptions{})
}

func (p *pipeline) runTests(ctx context.Context, view outputView, node orchestrator.Node, hostPfx string) ([]testharness.Outcome, error) {
	fam := buildexec.ParsePlatformFamily(p.flags.Platform)
	dirName := dirNameFor(node)

	envFor := func(i int) (*buildexec.Config, error) {
		testWorkDir := filepath.Join(p.flags.WorkDir, dirName, "tests", strconv.Itoa(i))
		if err := os.MkdirAll(testWorkDir, 0o755); err != nil {
			return nil, err
		}
		return &buildexec.Config{
			Name:    fmt.Sprintf("%s-test-%d", dirName, i),
			WorkDir: testWorkDir,
			Env: map[string]string{
				"PREFIX": hostPfx,
				"PATH":   filepath.Join(hostPfx, "bin") + string(os.PathListSeparator) + os.Getenv("PATH"),
			},
			Platform: p.flags.Platform,
		}, nil
	}

	return testharness.Run(ctx, p.sandbox, fam, view.Tests, envFor)
}
