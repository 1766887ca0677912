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

package render

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
	"github.com/rbuild-dev/rbuild/pkg/variant"
)

const simpleRecipeYAML = `
context:
  pyver: "3.11"
package:
  name: hello
  version: "1.0.0"
build:
  number: 0
  string: py${{ python }}h${{ hash }}_${{ build_number }}
requirements:
  host:
    - python ${{ pyver }}
  run:
    - python
if: unix
then:
  requirements:
    run:
      - libc
else:
  requirements:
    run:
      - msvcrt
`

func parseStage0(t *testing.T, data string) *recipe.Stage0 {
	t.Helper()
	s0, err := recipe.ParseStage0([]byte(data))
	require.NoError(t, err)
	return s0
}

func TestRenderSubstitutesContextAndVariantValues(t *testing.T) {
	stage0 := parseStage0(t, `
context:
  greeting: "hi ${{ name }}"
package:
  name: hello
  version: "1.0.0"
about:
  summary: ${{ greeting }}
`)
	cfg := &variant.Config{Values: map[string][]string{}}
	combo := variant.Combination{}

	result, err := Render(stage0, combo, cfg, map[string]string{"name": "world"}, 0)
	require.NoError(t, err)
	require.Equal(t, "hi world", result.Recipe.About.Summary)
}

func TestRenderResolvesConditionalOnVariantValue(t *testing.T) {
	stage0 := parseStage0(t, `
package:
  name: hello
  version: "1.0.0"
requirements:
  run:
    - if: python == "3.11"
      then: python311-extra
      else: python-other
`)
	cfg := &variant.Config{Values: map[string][]string{"python": {"3.10", "3.11"}}}

	result, err := Render(stage0, variant.Combination{"python": "3.11"}, cfg, nil, 0)
	require.NoError(t, err)
	require.Contains(t, result.Recipe.Requirements.Run, "python311-extra")

	result, err = Render(stage0, variant.Combination{"python": "3.10"}, cfg, nil, 0)
	require.NoError(t, err)
	require.Contains(t, result.Recipe.Requirements.Run, "python-other")
}

func TestRenderComputesBuildHashAndStringFromUsedKeys(t *testing.T) {
	stage0 := parseStage0(t, `
package:
  name: hello
  version: "1.0.0"
requirements:
  host:
    - python ${{ python }}
`)
	cfg := &variant.Config{Values: map[string][]string{
		"python": {"3.11"},
		"unused": {"a", "b"},
	}}

	result, err := Render(stage0, variant.Combination{"python": "3.11", "unused": "a"}, cfg, nil, 3)
	require.NoError(t, err)
	require.Len(t, result.UsedVariant, 1)
	require.Equal(t, "3.11", result.UsedVariant["python"])
	require.NotEmpty(t, result.BuildHash)
	require.Contains(t, result.BuildString, "h"+result.BuildHash+"_3")
}

func TestRenderErrorsOnUnboundIfClauseVariable(t *testing.T) {
	stage0 := parseStage0(t, `
package:
  name: hello
  version: "1.0.0"
requirements:
  run:
    - if: some_unbound_var
      then: a
      else: b
`)
	cfg := &variant.Config{Values: map[string][]string{}}

	_, err := Render(stage0, variant.Combination{}, cfg, nil, 0)
	require.Error(t, err)
}
