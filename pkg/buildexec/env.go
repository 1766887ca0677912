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

// Package buildexec composes the build-script environment for one rendered
// output, selects and validates its interpreter, and hands the script off to
// a caller-supplied sandbox. The sandbox itself is an external collaborator;
// this package only defines the interface and the handoff.
package buildexec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PlatformFamily is the OS family implied by a conda-style platform string
// ("linux-64", "osx-arm64", "win-64", "noarch").
type PlatformFamily string

const (
	FamilyLinux   PlatformFamily = "linux"
	FamilyOSX     PlatformFamily = "osx"
	FamilyWindows PlatformFamily = "win"
	FamilyNoarch  PlatformFamily = "noarch"
)

// ParsePlatformFamily extracts the OS family from a conda platform string.
func ParsePlatformFamily(platform string) PlatformFamily {
	switch {
	case platform == "noarch" || platform == "":
		return FamilyNoarch
	case strings.HasPrefix(platform, "win-"):
		return FamilyWindows
	case strings.HasPrefix(platform, "osx-"):
		return FamilyOSX
	default:
		return FamilyLinux
	}
}

// ShlibExt returns the conda SHLIB_EXT value for a platform family.
func ShlibExt(fam PlatformFamily) string {
	switch fam {
	case FamilyWindows:
		return ".dll"
	case FamilyOSX:
		return ".dylib"
	default:
		return ".so"
	}
}

// EnvSpec is everything needed to compose the variables a build script runs
// with (spec.md §4.6).
type EnvSpec struct {
	HostPrefix  string
	BuildPrefix string // empty when build and host share a prefix
	SrcDir      string
	RecipeDir   string
	WorkDir     string

	PkgName        string
	PkgVersion     string
	BuildNumber    int
	BuildHash      string
	BuildString    string
	TargetPlatform string
	BuildPlatform  string

	CPUCount        int
	SourceDateEpoch int64

	// ScriptEnv carries `build.script.env` entries, applied last so a recipe
	// can override anything this package derives.
	ScriptEnv map[string]string

	// Inherit lists variables from the invoking process environment that
	// should be forwarded. Everything else is excluded: inheritance is
	// opt-in, matching the hermeticity the sandbox is meant to provide.
	Inherit map[string]string
}

// Compose builds the final name->value environment for a build script run.
func Compose(spec EnvSpec) (map[string]string, error) {
	if spec.PkgName == "" {
		return nil, fmt.Errorf("buildexec: PkgName is required")
	}

	buildPrefix := spec.BuildPrefix
	if buildPrefix == "" {
		buildPrefix = spec.HostPrefix
	}

	fam := ParsePlatformFamily(spec.TargetPlatform)

	env := map[string]string{
		"PREFIX":           spec.HostPrefix,
		"BUILD_PREFIX":     buildPrefix,
		"SRC_DIR":          spec.SrcDir,
		"RECIPE_DIR":       spec.RecipeDir,
		"PKG_NAME":         spec.PkgName,
		"PKG_VERSION":      spec.PkgVersion,
		"PKG_BUILDNUM":     strconv.Itoa(spec.BuildNumber),
		"PKG_HASH":         spec.BuildHash,
		"PKG_BUILD_STRING": spec.BuildString,
		"CPU_COUNT":        strconv.Itoa(cpuCountOrDefault(spec.CPUCount)),
		"SHLIB_EXT":        ShlibExt(fam),
		"target_platform":  spec.TargetPlatform,
		"build_platform":   spec.BuildPlatform,
		"CONDA_BUILD":      "1",
	}

	if spec.SourceDateEpoch != 0 {
		env["SOURCE_DATE_EPOCH"] = strconv.FormatInt(spec.SourceDateEpoch, 10)
	}

	if fam == FamilyWindows {
		env["LIBRARY_PREFIX"] = joinPrefix(spec.HostPrefix, "Library")
		env["LIBRARY_BIN"] = joinPrefix(spec.HostPrefix, "Library", "bin")
		env["LIBRARY_INC"] = joinPrefix(spec.HostPrefix, "Library", "include")
		env["LIBRARY_LIB"] = joinPrefix(spec.HostPrefix, "Library", "lib")
	}

	for k, v := range spec.Inherit {
		env[k] = v
	}
	for k, v := range spec.ScriptEnv {
		env[k] = v
	}

	return env, nil
}

func cpuCountOrDefault(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func joinPrefix(parts ...string) string {
	return strings.Join(parts, "/")
}

// sortedKeys returns env's keys sorted, used when a deterministic rendering
// of the environment (for logging or the build log) is needed.
func sortedKeys(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
