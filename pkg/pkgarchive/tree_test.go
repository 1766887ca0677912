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

package pkgarchive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbuild-dev/rbuild/pkg/postprocess"
	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

func TestBuildTreeIncludesInfoAndPayloadSorted(t *testing.T) {
	prefix := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(prefix, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(prefix, "bin", "hello"), []byte("#!/bin/sh\necho hi\n"), 0o755))

	in := sampleInputs()
	in.HostPrefix = prefix
	in.Postprocess.Paths = []postprocess.PathsEntry{
		{Path: "bin/hello", PathType: postprocess.PathHardlink, SHA256: "x", SizeInBytes: 18},
		{Path: "bin", PathType: postprocess.PathDirectory},
	}

	entries, err := BuildTree(in)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Path)
	}
	require.Contains(t, names, "info/index.json")
	require.Contains(t, names, "info/paths.json")
	require.Contains(t, names, "bin/hello")
	require.True(t, isSorted(names))
}

func TestBuildTreeWritesTestAssets(t *testing.T) {
	in := sampleInputs()
	in.Recipe.Tests = []recipe.Test{
		{Kind: recipe.TestPython, Python: &recipe.PythonTest{Imports: []string{"hello"}}},
	}

	entries, err := BuildTree(in)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Path)
	}
	require.Contains(t, names, "info/tests/tests.yaml")
	require.Contains(t, names, "info/tests/0/python_test.json")
}

func isSorted(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}
