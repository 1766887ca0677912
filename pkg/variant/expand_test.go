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

package variant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandProducesVariantPerCombination(t *testing.T) {
	root := parseRoot(t, `
package:
  name: hello
  version: "1.0.0"
build:
  number: 0
requirements:
  host:
    - python ${{ python }}
`)
	cfg := &Config{Values: map[string][]string{
		"python": {"3.11", "3.12"},
	}}
	combos, err := Expand(root, nil, cfg)
	require.NoError(t, err)
	require.Len(t, combos, 2)
}

func TestExpandWithNoVariantKeysYieldsOneEmptyCombination(t *testing.T) {
	root := parseRoot(t, `
package:
  name: hello
  version: "1.0.0"
build:
  number: 0
`)
	cfg := &Config{Values: map[string][]string{"python": {"3.11"}}}
	combos, err := Expand(root, nil, cfg)
	require.NoError(t, err)
	require.Len(t, combos, 1)
	require.Empty(t, combos[0])
}

func TestExpandAppliesBuildSkip(t *testing.T) {
	root := parseRoot(t, `
package:
  name: hello
  version: "1.0.0"
build:
  number: 0
requirements:
  host:
    - python ${{ python }}
`)
	cfg := &Config{Values: map[string][]string{
		"python": {"3.11", "3.12"},
	}}
	combos, err := Expand(root, []string{`python == "3.12"`}, cfg)
	require.NoError(t, err)
	require.Len(t, combos, 1)
	require.Equal(t, "3.11", combos[0]["python"])
}

func TestExpandRejectsUnequalZipKeys(t *testing.T) {
	root := parseRoot(t, `
package:
  name: hello
  version: "1.0.0"
build:
  number: 0
`)
	cfg := &Config{
		Values: map[string][]string{
			"python": {"3.11", "3.12"},
			"numpy":  {"1.26"},
		},
		ZipKeys: [][]string{{"python", "numpy"}},
	}
	_, err := Expand(root, nil, cfg)
	require.Error(t, err)
}
