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

func TestBuildEnvBindsVariantAndExtraVars(t *testing.T) {
	cfg := &variant.Config{Values: map[string][]string{"python": {"3.11"}}}
	combo := variant.Combination{"python": "3.11"}

	env, err := BuildEnv(combo, cfg, nil, map[string]string{"target_platform": "linux-64"})
	require.NoError(t, err)
	require.Equal(t, "3.11", env.Vars["python"].AsString())
	require.Equal(t, "linux-64", env.Vars["target_platform"].AsString())
}

func TestBuildEnvContextEntriesSeeEarlierEntries(t *testing.T) {
	cfg := &variant.Config{Values: map[string][]string{}}
	entries := []recipe.ContextEntry{
		{Name: "base", Value: "hello"},
		{Name: "full", Value: "${{ base }}-world"},
	}

	env, err := BuildEnv(variant.Combination{}, cfg, entries, nil)
	require.NoError(t, err)
	require.Equal(t, "hello-world", env.Vars["full"].AsString())
}

func TestBuildEnvExtraVarsDoNotOverrideVariantBindings(t *testing.T) {
	cfg := &variant.Config{Values: map[string][]string{"python": {"3.11"}}}
	combo := variant.Combination{"python": "3.11"}

	env, err := BuildEnv(combo, cfg, nil, map[string]string{"python": "2.7"})
	require.NoError(t, err)
	require.Equal(t, "3.11", env.Vars["python"].AsString())
}

func TestBuildEnvPropagatesContextRenderError(t *testing.T) {
	cfg := &variant.Config{Values: map[string][]string{}}
	entries := []recipe.ContextEntry{
		{Name: "broken", Value: "${{ not a valid expr ("},
	}

	_, err := BuildEnv(variant.Combination{}, cfg, entries, nil)
	require.Error(t, err)
}
