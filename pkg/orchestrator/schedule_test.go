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

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

func TestRunResolvesPinsInTopologicalOrder(t *testing.T) {
	r := &recipe.Recipe{
		Outputs: []recipe.Output{
			{Package: &recipe.Package{Name: "libfoo", Version: "1.2.3"}},
			{
				Package:      &recipe.Package{Name: "foo-tools"},
				Requirements: &recipe.Requirements{Run: []string{"libfoo " + pinToken("libfoo")}},
			},
		},
	}

	var mu sync.Mutex
	var built []string
	build := func(_ context.Context, node Node, rec *recipe.Recipe) (BuiltInfo, error) {
		mu.Lock()
		built = append(built, node.Name)
		mu.Unlock()
		if node.Name == "foo-tools" {
			req := rec.Outputs[1].Requirements
			require.Equal(t, []string{"libfoo 1.2.3"}, req.Run)
		}
		return BuiltInfo{Version: rec.Outputs[node.Index].Package.Version}, nil
	}

	err := Run(context.Background(), r, Policy{}, 2, nil, build)
	require.NoError(t, err)
	require.Equal(t, []string{"libfoo", "foo-tools"}, built)
}

func TestRunPropagatesBuildError(t *testing.T) {
	r := &recipe.Recipe{
		Outputs: []recipe.Output{
			{Package: &recipe.Package{Name: "a"}},
		},
	}
	err := Run(context.Background(), r, Policy{}, 2, nil, func(context.Context, Node, *recipe.Recipe) (BuiltInfo, error) {
		return BuiltInfo{}, errors.New("boom")
	})
	require.Error(t, err)
}

func TestRunSkipsExistingOutputsButStillFeedsPinResolution(t *testing.T) {
	r := &recipe.Recipe{
		Outputs: []recipe.Output{
			{Package: &recipe.Package{Name: "a"}},
			{Package: &recipe.Package{Name: "b"}, Requirements: &recipe.Requirements{Run: []string{"a " + pinToken("a")}}},
		},
	}
	exists := func(name string) (BuiltInfo, bool) {
		if name == "a" {
			return BuiltInfo{Version: "9.9.9"}, true
		}
		return BuiltInfo{}, false
	}

	var built []string
	err := Run(context.Background(), r, Policy{SkipExisting: true}, 1, exists, func(_ context.Context, node Node, rec *recipe.Recipe) (BuiltInfo, error) {
		built = append(built, node.Name)
		require.Equal(t, []string{"a 9.9.9"}, rec.Outputs[1].Requirements.Run)
		return BuiltInfo{Version: "1"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, built)
}
