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
	"fmt"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
	"github.com/rbuild-dev/rbuild/pkg/template"
	"github.com/rbuild-dev/rbuild/pkg/variant"
)

// Result is one output's Stage 1 recipe plus the variant metadata derived
// from rendering it.
type Result struct {
	Recipe      *recipe.Recipe
	UsedVariant variant.Combination
	BuildHash   string
	BuildString string
}

// Render performs the Stage 1 concrete rendering pass over one output's
// Stage 0 tree for exactly one variant combination: it builds the concrete
// environment (context pass, §4.1), resolves every if/then/else clause to
// its single branch, substitutes every remaining ${{ ... }} site (leaving
// deferred-pin placeholders for the orchestrator's finalize pass), decodes
// the result, and computes the build hash/string over the keys the render
// actually touched (spec.md §4.3 steps 4-5).
func Render(stage0 *recipe.Stage0, combo variant.Combination, cfg *variant.Config, extraVars map[string]string, buildNumber int) (*Result, error) {
	env, err := BuildEnv(combo, cfg, stage0.Context, extraVars)
	if err != nil {
		return nil, err
	}

	evalIf := func(expr string) (bool, error) {
		v, err := template.EvalExpr(expr, env)
		if err != nil {
			return false, fmt.Errorf("evaluating if-clause %q: %w", expr, err)
		}
		if v.IsUndetermined() {
			return false, fmt.Errorf("if-clause %q is undetermined during concrete rendering", expr)
		}
		return v.Truthy(), nil
	}

	resolved, err := recipe.ResolveConditionals(stage0.Root, evalIf)
	if err != nil {
		return nil, fmt.Errorf("resolving conditionals: %w", err)
	}

	rendered, err := RenderTree(resolved, env)
	if err != nil {
		return nil, fmt.Errorf("rendering template sites: %w", err)
	}

	var r recipe.Recipe
	if err := rendered.Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding rendered recipe: %w", err)
	}
	r.Context = stage0.Context
	if err := recipe.ValidateRecipe(&r); err != nil {
		return nil, err
	}

	used := variant.Compact(combo, env.UsedKeys)
	hash, err := variant.BuildHash(used)
	if err != nil {
		return nil, err
	}
	buildString, err := variant.BuildString(used, buildNumber)
	if err != nil {
		return nil, err
	}

	return &Result{
		Recipe:      &r,
		UsedVariant: used,
		BuildHash:   hash,
		BuildString: buildString,
	}, nil
}
