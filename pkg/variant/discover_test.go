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
	"gopkg.in/yaml.v3"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

func parseRoot(t *testing.T, data string) *yaml.Node {
	t.Helper()
	s0, err := recipe.ParseStage0([]byte(data))
	require.NoError(t, err)
	return s0.Root
}

func TestDiscoverFindsTemplateSiteKeys(t *testing.T) {
	root := parseRoot(t, `
package:
  name: hello
  version: "1.0.0"
build:
  number: 0
  string: py${{ python }}h0_0
requirements:
  host:
    - python ${{ python }}
`)
	cfg := &Config{Values: map[string][]string{
		"python": {"3.11", "3.12"},
	}}
	used, err := Discover(root, cfg)
	require.NoError(t, err)
	require.True(t, used["python"])
}

func TestDiscoverFindsIfClauseKeys(t *testing.T) {
	root := parseRoot(t, `
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
	cfg := &Config{Values: map[string][]string{
		"target_platform": {"linux-64", "win-64"},
	}}
	used, err := Discover(root, cfg)
	require.NoError(t, err)
	require.True(t, used["target_platform"])
}

func TestDiscoverImplicitDependencyKey(t *testing.T) {
	root := parseRoot(t, `
package:
  name: hello
  version: "1.0.0"
build:
  number: 0
requirements:
  host:
    - openssl
`)
	cfg := &Config{Values: map[string][]string{
		"openssl": {"1.1", "3.0"},
	}}
	used, err := Discover(root, cfg)
	require.NoError(t, err)
	require.True(t, used["openssl"])
}

func TestDiscoverIgnoresUnrelatedVariantKeys(t *testing.T) {
	root := parseRoot(t, `
package:
  name: hello
  version: "1.0.0"
build:
  number: 0
`)
	cfg := &Config{Values: map[string][]string{
		"python": {"3.11"},
	}}
	used, err := Discover(root, cfg)
	require.NoError(t, err)
	require.False(t, used["python"])
}
