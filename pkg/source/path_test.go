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

package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

func TestFetchPathCopiesDirectoryRespectingGitignore(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		".gitignore":  "*.log\nbuild/\n",
		"main.c":      "int main(){}",
		"debug.log":   "noise",
		"build/a.out": "binary",
	})

	dest := t.TempDir()
	result, err := fetchPath(context.Background(), recipe.Source{Path: src}, dest, Options{})
	require.NoError(t, err)
	require.Equal(t, recipe.SourcePathKind, result.Kind)

	_, err = os.Stat(filepath.Join(dest, "main.c"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, "debug.log"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dest, "build"))
	require.True(t, os.IsNotExist(err))
}

func TestFetchPathWithGitignoreDisabledKeepsEverything(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		".gitignore": "*.log\n",
		"debug.log":  "noise",
	})

	dest := t.TempDir()
	disabled := false
	_, err := fetchPath(context.Background(), recipe.Source{Path: src, UseGitignore: &disabled}, dest, Options{})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dest, "debug.log"))
	require.NoError(t, err)
}

func TestFetchPathResolvesRelativeToRecipeDir(t *testing.T) {
	recipeDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(recipeDir, "files"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(recipeDir, "files", "a.txt"), []byte("a"), 0o644))

	dest := t.TempDir()
	_, err := fetchPath(context.Background(), recipe.Source{Path: "files"}, dest, Options{RecipeDir: recipeDir})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "a", string(data))
}
