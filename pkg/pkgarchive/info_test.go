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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbuild-dev/rbuild/pkg/postprocess"
	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

func sampleInputs() Inputs {
	return Inputs{
		Recipe: &recipe.Recipe{
			Package: &recipe.Package{Name: "hello", Version: "1.0.0"},
			Build:   recipe.Build{Number: 0, String: "h1234567_0"},
			Requirements: &recipe.Requirements{
				Run:            []string{"libc"},
				RunConstraints: []string{"zlib <2"},
			},
			About: &recipe.About{License: "MIT"},
		},
		Platform:        "linux-64",
		SourceDateEpoch: time.Unix(1700000000, 0).UTC(),
		Postprocess: &postprocess.Result{
			Paths: []postprocess.PathsEntry{
				{Path: "bin/hello", PathType: postprocess.PathHardlink, SHA256: "abc", SizeInBytes: 10},
			},
		},
	}
}

func TestBuildIndexNoarchForcesNoarchSubdir(t *testing.T) {
	in := sampleInputs()
	in.Recipe.Build.Noarch = recipe.NoarchGeneric

	idx := BuildIndex(in)
	require.Equal(t, "noarch", idx.Subdir)
	require.Equal(t, "generic", idx.Noarch)
	require.Equal(t, []string{"libc"}, idx.Depends)
	require.Contains(t, idx.Purl, "pkg:conda/hello@1.0.0")
}

func TestBuildIndexPlatformSubdirWhenNotNoarch(t *testing.T) {
	idx := BuildIndex(sampleInputs())
	require.Equal(t, "linux-64", idx.Subdir)
	require.Empty(t, idx.Noarch)
}

func TestBuildPathsSortsAscending(t *testing.T) {
	result := &postprocess.Result{
		Paths: []postprocess.PathsEntry{
			{Path: "z/file", PathType: postprocess.PathHardlink},
			{Path: "a/file", PathType: postprocess.PathHardlink},
		},
	}
	paths := BuildPaths(result)
	require.Equal(t, 1, paths.PathsVersion)
	require.Equal(t, "a/file", paths.Paths[0].Path)
	require.Equal(t, "z/file", paths.Paths[1].Path)
}

func TestBuildAboutEmptyWhenNoAbout(t *testing.T) {
	require.Equal(t, AboutJSON{}, BuildAbout(&recipe.Recipe{}))
}
