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
	"runtime"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rbuild-dev/rbuild/pkg/buildexec"
	"github.com/rbuild-dev/rbuild/pkg/orchestrator"
	"github.com/rbuild-dev/rbuild/pkg/pkginstall"
	"github.com/rbuild-dev/rbuild/pkg/provision"
	"github.com/rbuild-dev/rbuild/pkg/recipe"
	"github.com/rbuild-dev/rbuild/pkg/render"
	"github.com/rbuild-dev/rbuild/pkg/variant"
)

// addBuildFlags registers build command flags onto fs, populating flags.
func addBuildFlags(fs *pflag.FlagSet, flags *BuildFlags) {
	fs.StringSliceVarP(&flags.Channels, "channel", "c", nil, "channel to solve dependencies against (repeatable)")
	fs.StringSliceVarP(&flags.VariantConfigFiles, "variant-config", "m", nil, "variant config file to merge over any auto-discovered variants.yaml (repeatable, later files win)")
	fs.StringVar(&flags.Platform, "platform", defaultPlatform(), "target platform to build for (e.g. linux-64, osx-arm64)")
	fs.IntVar(&flags.BuildNumber, "build-number", 0, "build number to stamp into the build string")
	fs.StringVar(&flags.OutDir, "out-dir", "./packages", "directory archives are written under, one subdirectory per platform")
	fs.StringVar(&flags.WorkDir, "work-dir", "./rbuild-work", "scratch directory for source trees and build/host prefixes")
	fs.StringVar(&flags.CacheDir, "cache-dir", "./rbuild-cache", "directory used for the source, package and staging caches")
	fs.StringVar(&flags.SolverCommand, "solver-cmd", "", "external solver binary invoked to resolve dependency specs")
	fs.StringSliceVar(&flags.SolverArgs, "solver-arg", nil, "argument passed to the solver binary (repeatable)")
	fs.DurationVar(&flags.SolverTimeout, "solver-timeout", 0, "timeout for a single solver invocation (default 5m)")
	fs.IntVar(&flags.Concurrency, "concurrency", 4, "maximum number of outputs built concurrently")
	fs.BoolVar(&flags.SkipExisting, "skip-existing", false, "skip building outputs that already have an archive in out-dir")
	fs.Int64Var(&flags.SourceDateEpoch, "source-date-epoch", 0, "fixed timestamp embedded in archive metadata (default: build time)")
}

// BuildFlags holds the parsed build command flags.
type BuildFlags struct {
	Channels           []string
	VariantConfigFiles []string
	Platform           string
	BuildNumber        int
	OutDir             string
	WorkDir            string
	CacheDir           string
	SolverCommand      string
	SolverArgs         []string
	SolverTimeout      time.Duration
	Concurrency        int
	SkipExisting       bool
	SourceDateEpoch    int64
}

func buildCmd() *cobra.Command {
	flags := &BuildFlags{}

	cmd := &cobra.Command{
		Use:     "build <recipe.yaml>",
		Short:   "Render and build a recipe into one or more packages",
		Example: "  rbuild build recipe.yaml --channel https://repo.example/channel --solver-cmd rbuild-solver",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), flags, args[0])
		},
	}

	addBuildFlags(cmd.Flags(), flags)
	return cmd
}

func runBuild(ctx context.Context, flags *BuildFlags, recipePath string) error {
	log := clog.FromContext(ctx)

	recipeYAML, err := os.ReadFile(recipePath)
	if err != nil {
		return fmt.Errorf("reading recipe: %w", err)
	}
	recipeDir, err := filepath.Abs(filepath.Dir(recipePath))
	if err != nil {
		return err
	}

	stage0, err := recipe.ParseStage0(recipeYAML)
	if err != nil {
		return fmt.Errorf("parsing recipe: %w", err)
	}
	for _, w := range stage0.Warnings {
		log.Warnf("%s", w)
	}

	cfg, err := loadVariantConfig(recipeDir, flags.VariantConfigFiles)
	if err != nil {
		return err
	}

	skipExprs, rawBuildReqs := extractRawBuildFields(stage0.Root)

	combos, err := variant.Expand(stage0.Root, skipExprs, cfg)
	if err != nil {
		return fmt.Errorf("expanding variant matrix: %w", err)
	}
	log.Infof("expanded %d variant combination(s)", len(combos))

	p := &pipeline{
		flags:        flags,
		recipeDir:    recipeDir,
		recipeYAML:   recipeYAML,
		rawBuildReqs: rawBuildReqs,
		stagingKeys:  map[string]stagingKeyEntry{},
		installer:    pkginstall.New(filepath.Join(flags.CacheDir, "pkgs")),
		sandbox:      buildexec.NewLocalSandbox(),
	}
	if flags.SolverCommand != "" {
		p.solver = provision.SubprocessSolver{Command: flags.SolverCommand, Args: flags.SolverArgs, Timeout: flags.SolverTimeout}
	}

	sourceDateEpoch := time.Unix(flags.SourceDateEpoch, 0).UTC()
	if flags.SourceDateEpoch == 0 {
		sourceDateEpoch = time.Now().UTC()
	}
	p.sourceDateEpoch = sourceDateEpoch

	for i, combo := range combos {
		extraVars := map[string]string{
			"target_platform": flags.Platform,
			"build_platform":  hostNativePlatform(),
		}
		result, err := render.Render(stage0, combo, cfg, extraVars, flags.BuildNumber)
		if err != nil {
			return fmt.Errorf("rendering variant combination %d: %w", i, err)
		}
		p.variantConfig = marshalVariantConfig(cfg)
		p.recipeYAMLForCombo = recipeYAML

		log.Infof("building variant combination %d/%d (build string %s)", i+1, len(combos), result.BuildString)

		policy := orchestrator.Policy{SkipExisting: flags.SkipExisting}
		existing := p.existingLookup()
		buildFn := func(ctx context.Context, node orchestrator.Node, rec *recipe.Recipe) (orchestrator.BuiltInfo, error) {
			return p.buildOutput(ctx, node, rec, result)
		}
		if err := orchestrator.Run(ctx, result.Recipe, policy, flags.Concurrency, existing, buildFn); err != nil {
			return fmt.Errorf("variant combination %d: %w", i, err)
		}
	}

	return nil
}

func loadVariantConfig(recipeDir string, extra []string) (*variant.Config, error) {
	configs := []*variant.Config{}

	autoPath := filepath.Join(recipeDir, "variants.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		c, err := variant.LoadFile(autoPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", autoPath, err)
		}
		configs = append(configs, c)
	}

	for _, path := range extra {
		c, err := variant.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		configs = append(configs, c)
	}

	if len(configs) == 0 {
		return &variant.Config{Values: map[string][]string{}}, nil
	}
	return variant.MergeAll(configs...), nil
}

func defaultPlatform() string {
	arch := runtime.GOARCH
	switch runtime.GOOS {
	case "windows":
		if arch == "arm64" {
			return "win-arm64"
		}
		return "win-64"
	case "darwin":
		if arch == "arm64" {
			return "osx-arm64"
		}
		return "osx-64"
	default:
		switch arch {
		case "arm64":
			return "linux-aarch64"
		case "386":
			return "linux-32"
		default:
			return "linux-64"
		}
	}
}

// hostNativePlatform returns the platform of the machine running the build,
// which agrees with pkg/provision's unexported platform detection on amd64
// and arm64 hosts: build dependencies always solve against that machine,
// never the cross-build target.
func hostNativePlatform() string {
	return defaultPlatform()
}
