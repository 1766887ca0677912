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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

func TestURLCacheKeyUsesDeclaredSHA256(t *testing.T) {
	key, err := urlCacheKey(recipe.Source{URL: "https://example.com/a.tar.gz", Digest: recipe.Digest{SHA256: "abc123"}})
	require.NoError(t, err)
	require.Equal(t, "abc123", key)
}

func TestURLCacheKeyRejectsMissingDigest(t *testing.T) {
	_, err := urlCacheKey(recipe.Source{URL: "https://example.com/a.tar.gz"})
	require.Error(t, err)
}

func TestGitCacheKeyDiffersByRevTagBranch(t *testing.T) {
	base := recipe.Source{Git: "https://example.com/repo.git"}
	rev := base
	rev.Rev = "deadbeef"
	tag := base
	tag.Tag = "v1.0.0"
	branch := base
	branch.Branch = "main"

	keys := map[string]bool{}
	for _, s := range []recipe.Source{base, rev, tag, branch} {
		keys[gitCacheKey(s)] = true
	}
	require.Len(t, keys, 4)
}

func TestGitCacheKeyDiffersByDepthAndLFS(t *testing.T) {
	base := recipe.Source{Git: "https://example.com/repo.git", Rev: "deadbeef"}
	depth1 := base
	d := 1
	depth1.Depth = &d
	lfs := base
	lfs.LFS = true

	k1 := gitCacheKey(base)
	k2 := gitCacheKey(depth1)
	k3 := gitCacheKey(lfs)
	require.NotEqual(t, k1, k2)
	require.NotEqual(t, k1, k3)
	require.NotEqual(t, k2, k3)
}

func TestGitCacheKeyDeterministic(t *testing.T) {
	s := recipe.Source{Git: "https://example.com/repo.git", Tag: "v1.0.0"}
	require.Equal(t, gitCacheKey(s), gitCacheKey(s))
}
