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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

func TestReadRunExportsParsesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run_exports.json"), []byte(`{"weak":["libfoo >=1.0"],"strong":["libbar"]}`), 0o644))

	re, err := ReadRunExports("libfoo", dir)
	require.NoError(t, err)
	require.Equal(t, []string{"libfoo >=1.0"}, re.Weak)
	require.Equal(t, []string{"libbar"}, re.Strong)
}

func TestReadRunExportsMissingFileIsEmpty(t *testing.T) {
	re, err := ReadRunExports("libfoo", t.TempDir())
	require.NoError(t, err)
	require.Empty(t, re.Weak)
	require.Empty(t, re.Strong)
}

func TestPropagateRunExportsMergesHostWeakAndStrong(t *testing.T) {
	host := []PackageRunExports{{Package: "libfoo", Weak: []string{"libfoo >=1.0"}, Strong: []string{"libfoo-abi"}}}
	run := PropagateRunExports(host, nil, nil, []string{"existing"})
	require.ElementsMatch(t, []string{"existing", "libfoo >=1.0", "libfoo-abi"}, run)
}

func TestPropagateRunExportsOnlyStrongFromBuild(t *testing.T) {
	build := []PackageRunExports{{Package: "gcc", Weak: []string{"libgcc-weak"}, Strong: []string{"libgcc-abi"}}}
	run := PropagateRunExports(nil, build, nil, nil)
	require.Equal(t, []string{"libgcc-abi"}, run)
}

func TestPropagateRunExportsFiltersByName(t *testing.T) {
	host := []PackageRunExports{{Package: "libfoo", Strong: []string{"libfoo-abi"}}}
	run := PropagateRunExports(host, nil, &recipe.IgnoreRunExports{ByName: []string{"libfoo-abi"}}, nil)
	require.Empty(t, run)
}

func TestPropagateRunExportsFiltersByFromPackage(t *testing.T) {
	host := []PackageRunExports{{Package: "libfoo", Strong: []string{"libfoo-abi"}}}
	run := PropagateRunExports(host, nil, &recipe.IgnoreRunExports{FromPackage: []string{"libfoo"}}, nil)
	require.Empty(t, run)
}

func TestPropagateRunExportsDeduplicates(t *testing.T) {
	host := []PackageRunExports{{Package: "libfoo", Strong: []string{"libbar"}}}
	run := PropagateRunExports(host, nil, nil, []string{"libbar"})
	require.Equal(t, []string{"libbar"}, run)
}
