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

package template

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFnCompilerDefaults(t *testing.T) {
	env := NewEnv()
	env.Functions = DomainFunctions()
	env.Vars["target_platform"] = Str("linux-64")

	v, err := EvalExpr(`compiler("c")`, env)
	require.NoError(t, err)
	require.Equal(t, "gcc_linux-64", v.Str)
}

func TestFnCompilerWithVariant(t *testing.T) {
	env := NewEnv()
	env.Functions = DomainFunctions()
	env.Vars["target_platform"] = Str("linux-64")
	env.Vars["c_compiler"] = Str("clang")
	env.VariantKeys["c_compiler"] = true
	env.Vars["c_compiler_version"] = Str("16")
	env.VariantKeys["c_compiler_version"] = true

	v, err := EvalExpr(`compiler("c")`, env)
	require.NoError(t, err)
	require.Equal(t, "clang_linux-64 16.*", v.Str)
	require.True(t, env.UsedKeys["c_compiler"])
	require.True(t, env.UsedKeys["c_compiler_version"])
}

func TestFnPinSubpackage(t *testing.T) {
	env := NewEnv()
	env.Functions = DomainFunctions()

	v, err := EvalExpr(`pin_subpackage("libfoo", exact=True)`, env)
	require.NoError(t, err)
	require.Equal(t, KindDeferredPin, v.Kind)
	require.Equal(t, "libfoo", v.Pin.Name)
	require.True(t, v.Pin.Exact)
	require.False(t, v.Pin.Compatible)
}

func TestFnPinCompatible(t *testing.T) {
	env := NewEnv()
	env.Functions = DomainFunctions()

	v, err := EvalExpr(`pin_compatible("zlib", min_pin="1.2", max_pin="2.0")`, env)
	require.NoError(t, err)
	require.True(t, v.Pin.Compatible)
	require.Equal(t, "1.2", v.Pin.LowerBound)
	require.Equal(t, "2.0", v.Pin.UpperBound)
}

func TestFnCDT(t *testing.T) {
	env := NewEnv()
	env.Functions = DomainFunctions()
	env.Vars["target_platform"] = Str("linux-64")

	v, err := EvalExpr(`cdt("libx11-devel")`, env)
	require.NoError(t, err)
	require.Equal(t, "libx11-devel-cos6-x86_64", v.Str)
}

func TestFnMatch(t *testing.T) {
	env := NewEnv()
	env.Functions = DomainFunctions()

	v, err := EvalExpr(`match(">=1.2,<2.0", "1.5.0")`, env)
	require.NoError(t, err)
	require.True(t, v.Truthy())

	v, err = EvalExpr(`match(">=1.2,<2.0", "2.5.0")`, env)
	require.NoError(t, err)
	require.False(t, v.Truthy())
}

func TestFnEnvGetExists(t *testing.T) {
	env := NewEnv()
	env.Functions = DomainFunctions()
	env.OSEnv = map[string]string{"FOO": "bar"}

	v, err := EvalExpr(`env.get("FOO")`, env)
	require.NoError(t, err)
	require.Equal(t, "bar", v.Str)

	v, err = EvalExpr(`env.exists("FOO")`, env)
	require.NoError(t, err)
	require.True(t, v.Truthy())

	v, err = EvalExpr(`env.exists("MISSING_VAR_XYZ")`, env)
	require.NoError(t, err)
	require.False(t, v.Truthy())
}

func TestFnEnvGetWithDefault(t *testing.T) {
	env := NewEnv()
	env.Functions = DomainFunctions()
	env.OSEnv = map[string]string{}

	v, err := EvalExpr(`env.get("MISSING_VAR_XYZ", "fallback")`, env)
	require.NoError(t, err)
	require.Equal(t, "fallback", v.Str)
}

func TestFnLoadFromFileGatedByExperimental(t *testing.T) {
	env := NewEnv()
	env.Functions = DomainFunctions()

	_, err := EvalExpr(`load_from_file("x.yaml")`, env)
	require.Error(t, err)
}

func TestFnGitFunctionsGatedByExperimental(t *testing.T) {
	env := NewEnv()
	env.Functions = DomainFunctions()

	_, err := EvalExpr(`git.latest_tag("https://example.invalid/repo.git")`, env)
	require.Error(t, err)
}
