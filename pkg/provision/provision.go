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

package provision

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// Installer materializes a solver-resolved package list under a prefix. The
// real installer (extracting .conda/.tar.bz2 archives, rewriting prefix
// placeholders at install time) is layered on top of pkg/pkgarchive; this
// package only defines the contract it consumes.
type Installer interface {
	Install(ctx context.Context, prefix string, pkgs []SolvedPackage) error
	// InfoDir returns the info/ directory of a package already installed
	// into prefix (it may live outside prefix, e.g. in a package cache),
	// for run-exports discovery.
	InfoDir(prefix string, pkg SolvedPackage) string
}

// Request describes one output's environment provisioning needs.
type Request struct {
	Channels   []string
	Platform   string
	BuildSpecs []string
	HostSpecs  []string

	// RawBuildRequirements are the build requirement strings as they
	// appeared before template rendering, used only to detect compiler(...)
	// calls (pkg/provision.ResolvePrefixes).
	RawBuildRequirements []string

	BuildDir string
	HostDir  string

	Run              []string
	IgnoreRunExports *recipe.IgnoreRunExports
}

// Result is the outcome of provisioning one output's build/host environment.
type Result struct {
	Prefixes  Prefixes
	BuildPkgs []SolvedPackage
	HostPkgs  []SolvedPackage
	// Run is req.Run with propagated run-exports merged in.
	Run []string
	// Env is the cumulative activation-derived environment (spec.md §4.5).
	Env map[string]string
}

// Provision resolves req.BuildSpecs/HostSpecs via solver, installs them at
// the appropriate prefixes via installer, propagates run-exports into
// req.Run, and activates the resulting prefixes.
func Provision(ctx context.Context, solver Solver, installer Installer, req Request) (*Result, error) {
	log := clog.FromContext(ctx)

	prefixes := ResolvePrefixes(req.BuildDir, req.HostDir, len(req.HostSpecs) > 0, req.RawBuildRequirements)

	var buildPkgs []SolvedPackage
	if len(req.BuildSpecs) > 0 {
		var err error
		buildPkgs, err = solver.Solve(ctx, SolveRequest{Channels: req.Channels, Specs: req.BuildSpecs, Platform: buildPlatformFor(req.Platform)})
		if err != nil {
			return nil, err
		}
		log.Infof("resolved %d build packages", len(buildPkgs))
		if err := installer.Install(ctx, prefixes.Build, buildPkgs); err != nil {
			return nil, fmt.Errorf("installing build environment: %w", err)
		}
	}

	var hostPkgs []SolvedPackage
	if len(req.HostSpecs) > 0 {
		var err error
		hostPkgs, err = solver.Solve(ctx, SolveRequest{Channels: req.Channels, Specs: req.HostSpecs, Platform: req.Platform})
		if err != nil {
			return nil, err
		}
		log.Infof("resolved %d host packages", len(hostPkgs))
		if !prefixes.Merged {
			if err := installer.Install(ctx, prefixes.Host, hostPkgs); err != nil {
				return nil, fmt.Errorf("installing host environment: %w", err)
			}
		}
	}

	hostExports := make([]PackageRunExports, 0, len(hostPkgs))
	for _, pkg := range hostPkgs {
		re, err := ReadRunExports(pkg.Name, installer.InfoDir(prefixes.Host, pkg))
		if err != nil {
			return nil, err
		}
		hostExports = append(hostExports, *re)
	}
	buildExports := make([]PackageRunExports, 0, len(buildPkgs))
	for _, pkg := range buildPkgs {
		re, err := ReadRunExports(pkg.Name, installer.InfoDir(prefixes.Build, pkg))
		if err != nil {
			return nil, err
		}
		buildExports = append(buildExports, *re)
	}

	run := PropagateRunExports(hostExports, buildExports, req.IgnoreRunExports, req.Run)

	var order []string
	if !prefixes.Merged {
		order = []string{prefixes.Build, prefixes.Host}
	} else {
		order = []string{prefixes.Build}
	}
	env, err := Activate(ctx, nil, order...)
	if err != nil {
		return nil, fmt.Errorf("activating build environment: %w", err)
	}

	return &Result{
		Prefixes:  prefixes,
		BuildPkgs: buildPkgs,
		HostPkgs:  hostPkgs,
		Run:       run,
		Env:       env,
	}, nil
}

// buildPlatformFor returns the platform the build-environment solve should
// target: build dependencies always run on the invoking machine's platform,
// not target_platform, so a cross build's compilers run natively.
func buildPlatformFor(_ string) string {
	return hostNativePlatform()
}
