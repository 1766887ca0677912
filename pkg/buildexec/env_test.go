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

package buildexec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComposeSetsBaseVariables(t *testing.T) {
	env, err := Compose(EnvSpec{
		HostPrefix:     "/work/host",
		SrcDir:         "/work/src",
		RecipeDir:      "/work/recipe",
		PkgName:        "libfoo",
		PkgVersion:     "1.2.3",
		BuildNumber:    2,
		BuildHash:      "abcdef0",
		BuildString:    "h_abcdef0_2",
		TargetPlatform: "linux-64",
		BuildPlatform:  "linux-64",
		CPUCount:       4,
	})
	require.NoError(t, err)
	require.Equal(t, "/work/host", env["PREFIX"])
	require.Equal(t, "/work/host", env["BUILD_PREFIX"], "build prefix falls back to host prefix when not set separately")
	require.Equal(t, "libfoo", env["PKG_NAME"])
	require.Equal(t, "2", env["PKG_BUILDNUM"])
	require.Equal(t, "4", env["CPU_COUNT"])
	require.Equal(t, ".so", env["SHLIB_EXT"])
	require.Equal(t, "1", env["CONDA_BUILD"])
	require.NotContains(t, env, "SOURCE_DATE_EPOCH")
}

func TestComposeSeparatesBuildAndHostPrefixes(t *testing.T) {
	env, err := Compose(EnvSpec{
		HostPrefix:  "/work/host",
		BuildPrefix: "/work/build",
		PkgName:     "libfoo",
	})
	require.NoError(t, err)
	require.Equal(t, "/work/host", env["PREFIX"])
	require.Equal(t, "/work/build", env["BUILD_PREFIX"])
}

func TestComposeAddsWindowsLibraryPaths(t *testing.T) {
	env, err := Compose(EnvSpec{
		HostPrefix:     "/work/host",
		PkgName:        "libfoo",
		TargetPlatform: "win-64",
	})
	require.NoError(t, err)
	require.Equal(t, ".dll", env["SHLIB_EXT"])
	require.Equal(t, "/work/host/Library/bin", env["LIBRARY_BIN"])
}

func TestComposeRejectsMissingPackageName(t *testing.T) {
	_, err := Compose(EnvSpec{HostPrefix: "/work/host"})
	require.Error(t, err)
}

func TestComposeAppliesSourceDateEpoch(t *testing.T) {
	env, err := Compose(EnvSpec{PkgName: "libfoo", SourceDateEpoch: 1700000000})
	require.NoError(t, err)
	require.Equal(t, "1700000000", env["SOURCE_DATE_EPOCH"])
}

func TestComposeScriptEnvOverridesDerivedValues(t *testing.T) {
	env, err := Compose(EnvSpec{
		PkgName:   "libfoo",
		ScriptEnv: map[string]string{"PKG_NAME": "override"},
	})
	require.NoError(t, err)
	require.Equal(t, "override", env["PKG_NAME"])
}

func TestParsePlatformFamily(t *testing.T) {
	require.Equal(t, FamilyLinux, ParsePlatformFamily("linux-64"))
	require.Equal(t, FamilyOSX, ParsePlatformFamily("osx-arm64"))
	require.Equal(t, FamilyWindows, ParsePlatformFamily("win-64"))
	require.Equal(t, FamilyNoarch, ParsePlatformFamily("noarch"))
}
