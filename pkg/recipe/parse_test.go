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

package recipe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const simpleRecipe = `
context:
  name: hello
package:
  name: ${{ name }}
  version: "1.0.0"
build:
  number: 0
  noarch: generic
  script:
    - echo hi
requirements:
  run:
    - python
about:
  home: https://example.invalid
  license: MIT
`

func TestParseStage0Basic(t *testing.T) {
	s0, err := ParseStage0([]byte(simpleRecipe))
	require.NoError(t, err)
	require.False(t, s0.IsMultiOutput)
	require.Len(t, s0.Context, 1)
	require.Equal(t, "name", s0.Context[0].Name)
	require.Equal(t, "hello", s0.Context[0].Value)
}

func TestParseStage0NormalizesAboutAliases(t *testing.T) {
	s0, err := ParseStage0([]byte(simpleRecipe))
	require.NoError(t, err)

	r, err := s0.Decode(func(string) (bool, error) { return true, nil })
	require.NoError(t, err)
	require.Equal(t, "https://example.invalid", r.About.Homepage)
}

func TestParseStage0RejectsUnknownTopLevelField(t *testing.T) {
	_, err := ParseStage0([]byte(`
package:
  name: hello
  version: "1.0.0"
bogus_field: true
`))
	require.Error(t, err)
}

func TestParseStage0RejectsPackageOnMultiOutput(t *testing.T) {
	_, err := ParseStage0([]byte(`
package:
  name: hello
  version: "1.0.0"
outputs:
  - package:
      name: a
      version: "1.0.0"
`))
	require.Error(t, err)
}

func TestDecodeAppliesConditional(t *testing.T) {
	data := []byte(`
package:
  name: hello
  version: "1.0.0"
build:
  number: 0
requirements:
  run:
    - if: target_platform == "win-64"
      then:
        - mingw
      else:
        - glibc
`)
	s0, err := ParseStage0(data)
	require.NoError(t, err)

	r, err := s0.Decode(func(expr string) (bool, error) {
		return expr == `target_platform == "win-64"`, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"mingw"}, r.Requirements.Run)
}

func TestDecodeConditionalElseBranch(t *testing.T) {
	data := []byte(`
package:
  name: hello
  version: "1.0.0"
build:
  number: 0
requirements:
  run:
    - if: target_platform == "win-64"
      then:
        - mingw
      else:
        - glibc
`)
	s0, err := ParseStage0(data)
	require.NoError(t, err)

	r, err := s0.Decode(func(string) (bool, error) { return false, nil })
	require.NoError(t, err)
	require.Equal(t, []string{"glibc"}, r.Requirements.Run)
}

func TestValidatePackageName(t *testing.T) {
	require.NoError(t, ValidatePackageName("lib-foo.bar_1"))
	require.Error(t, ValidatePackageName("Lib-Foo"))
	require.Error(t, ValidatePackageName("has space"))
}

func TestValidatePackageVersion(t *testing.T) {
	require.NoError(t, ValidatePackageVersion("1.2.3"))
	require.Error(t, ValidatePackageVersion("1.2-rc1"))
}

func TestValidateSourceURLRequiresDigest(t *testing.T) {
	err := ValidateSource(Source{URL: "https://example.invalid/x.tar.gz"})
	require.Error(t, err)

	err = ValidateSource(Source{URL: "https://example.invalid/x.tar.gz", Digest: Digest{SHA256: "abc"}})
	require.NoError(t, err)
}

func TestValidateGitTagRevMutuallyExclusive(t *testing.T) {
	err := ValidateSource(Source{Git: "https://example.invalid/repo.git", Tag: "v1", Rev: "deadbeef"})
	require.Error(t, err)
}

func TestValidateGitDepthWithRev(t *testing.T) {
	depth1 := 1
	err := ValidateSource(Source{Git: "https://example.invalid/repo.git", Rev: "deadbeef", Depth: &depth1})
	require.Error(t, err)

	depthAll := -1
	err = ValidateSource(Source{Git: "https://example.invalid/repo.git", Rev: "deadbeef", Depth: &depthAll})
	require.NoError(t, err)
}

func TestValidateZipKeys(t *testing.T) {
	cfg := map[string][]string{
		"python": {"3.11", "3.12"},
		"numpy":  {"1.26", "2.0"},
		"openssl": {"1.1", "3.0", "3.1"},
	}
	require.NoError(t, ValidateZipKeys([][]string{{"python", "numpy"}}, cfg))
	require.Error(t, ValidateZipKeys([][]string{{"python", "openssl"}}, cfg))
	require.Error(t, ValidateZipKeys([][]string{{"python", "missing"}}, cfg))
}

func TestDetectCommentSelectors(t *testing.T) {
	warnings := DetectCommentSelectors([]byte("build:\n  number: 0  # [win]\n"))
	require.Len(t, warnings, 1)
}

func TestDecodeScriptVariants(t *testing.T) {
	data := []byte(`
package:
  name: hello
  version: "1.0.0"
build:
  number: 0
  script:
    interpreter: bash
    env:
      FOO: bar
    content:
      - echo hi
      - echo bye
`)
	s0, err := ParseStage0(data)
	require.NoError(t, err)
	r, err := s0.Decode(func(string) (bool, error) { return true, nil })
	require.NoError(t, err)
	require.Equal(t, "bash", r.Build.Script.Interpreter)
	require.Equal(t, []string{"echo hi", "echo bye"}, r.Build.Script.Content)
	require.Equal(t, "bar", r.Build.Script.Env["FOO"])
}

func TestDecodeTestVariants(t *testing.T) {
	data := []byte(`
package:
  name: hello
  version: "1.0.0"
build:
  number: 0
tests:
  - script:
      - hello --version
  - python:
      imports:
        - hello
      pip_check: true
  - downstream: some-consumer
`)
	s0, err := ParseStage0(data)
	require.NoError(t, err)
	r, err := s0.Decode(func(string) (bool, error) { return true, nil })
	require.NoError(t, err)
	require.Len(t, r.Tests, 3)
	require.Equal(t, TestScript, r.Tests[0].Kind)
	require.Equal(t, TestPython, r.Tests[1].Kind)
	require.True(t, r.Tests[1].Python.PipCheck)
	require.Equal(t, TestDownstream, r.Tests[2].Kind)
	require.Equal(t, "some-consumer", r.Tests[2].Downstream.Package)
}

func TestDiscoverConditionalsWalksBothBranches(t *testing.T) {
	s0, err := ParseStage0([]byte(`
package:
  name: hello
  version: "1.0.0"
build:
  number: 0
requirements:
  run:
    - if: target_platform == "win-64"
      then:
        - mingw
      else:
        - glibc
`))
	require.NoError(t, err)

	var ifExprs []string
	var scalars []string
	err = DiscoverConditionals(s0.Root,
		func(expr string) error { ifExprs = append(ifExprs, expr); return nil },
		func(text string) error { scalars = append(scalars, text); return nil },
	)
	require.NoError(t, err)
	require.Equal(t, []string{`target_platform == "win-64"`}, ifExprs)
	require.Contains(t, scalars, "mingw")
	require.Contains(t, scalars, "glibc")
}

func TestDecodeInheritShorthand(t *testing.T) {
	data := []byte(`
outputs:
  - package:
      name: libfoo
      version: "1.0.0"
    cache:
      build:
        number: 0
  - package:
      name: foo
      version: "1.0.0"
    build:
      number: 0
    inherit: libfoo
`)
	s0, err := ParseStage0(data)
	require.NoError(t, err)
	r, err := s0.Decode(func(string) (bool, error) { return true, nil })
	require.NoError(t, err)
	require.Equal(t, "libfoo", r.Outputs[1].Inherit.From)
}
